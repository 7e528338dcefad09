package echonet_lite

const (
	EPC_NPO_VersionInfo              EPCType = 0x82 // Version 情報
	EPC_NPO_SelfNodeInstances        EPCType = 0xd3 // 自ノードインスタンス数
	EPC_NPO_SelfNodeClasses          EPCType = 0xd4 // 自ノードクラス数
	EPC_NPO_InstanceListNotification EPCType = 0xd5 // インスタンスリスト通知
	EPC_NPO_SelfNodeInstanceListS    EPCType = 0xd6 // 自ノードインスタンスリストS
	EPC_NPO_SelfNodeClassListS       EPCType = 0xd7 // 自ノードクラスリストS
)

func (r PropertyRegistry) NodeProfileObject() PropertyTable {
	return PropertyTable{
		ClassCode:   NodeProfile_ClassCode,
		Description: "Node Profile",
		Properties: []Epc{
			{EPCOperationStatus, "Operation status", "operation_status", OperationStatusCodec},
			{EPC_NPO_VersionInfo, "Version information", "version_information", HexStringCodec{}},
			{EPCIdentificationNumber, "Identification number", "identification_number", HexStringCodec{}},
			{EPCManufacturerCode, "Manufacturer code", "manufacturer", ManufacturerCodec{}},
			{EPCStatusAnnouncementPropertyMap, "Status announcement property map", "", PropertyMapCodec{}},
			{EPCSetPropertyMap, "Set property map", "", PropertyMapCodec{}},
			{EPCGetPropertyMap, "Get property map", "", PropertyMapCodec{}},
			{EPC_NPO_SelfNodeInstances, "Number of self-node instances", "instance_count", NumberCodec{Size: 3, Max: 0xffffff}},
			{EPC_NPO_SelfNodeClasses, "Number of self-node classes", "class_count", NumberCodec{Size: 2, Max: 0xffff}},
			{EPC_NPO_InstanceListNotification, "Instance list notification", "", InstanceListCodec{}},
			{EPC_NPO_SelfNodeInstanceListS, "Self-node instance list S", "instance_list", InstanceListCodec{}},
			{EPC_NPO_SelfNodeClassListS, "Self-node class list S", "", HexStringCodec{}},
		},
	}
}
