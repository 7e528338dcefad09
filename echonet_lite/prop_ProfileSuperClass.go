package echonet_lite

// 機器オブジェクトスーパークラス
const (
	EPCOperationStatus                       EPCType = 0x80 // 動作状態
	EPCInstallationLocation                  EPCType = 0x81 // 設置場所
	EPCStandardVersion                       EPCType = 0x82 // 規格Version情報
	EPCIdentificationNumber                  EPCType = 0x83 // 識別番号
	EPCMeasuredInstantaneousPowerConsumption EPCType = 0x84 // 瞬時消費電力計測値
	EPCMeasuredCumulativePowerConsumption    EPCType = 0x85 // 積算消費電力量計測値
	EPCManufacturerFaultCode                 EPCType = 0x86 // メーカ異常コード
	EPCFaultStatus                           EPCType = 0x88 // 異常発生状態
	EPCManufacturerCode                      EPCType = 0x8a // メーカコード
	EPCProductCode                           EPCType = 0x8c // 商品コード
	EPCProductionNumber                      EPCType = 0x8d // 製造番号
	EPCProductionDate                        EPCType = 0x8e // 製造年月日
	EPCPowerSavingOperationSetting           EPCType = 0x8f // 節電動作設定
	EPCRemoteControlSetting                  EPCType = 0x93 // 遠隔操作設定
	EPCCumulativeOperatingTime               EPCType = 0x9a // 積算運転時間
	EPCStatusAnnouncementPropertyMap         EPCType = 0x9d // 状態アナウンスプロパティマップ
	EPCSetPropertyMap                        EPCType = 0x9e // Set プロパティマップ
	EPCGetPropertyMap                        EPCType = 0x9f // Get プロパティマップ
)

var OperationStatusCodec = OnOffCodec{On: 0x30, Off: 0x31}

var DeviceSuperClass_PropertyTable = PropertyTable{
	Description: "Device Object Super Class",
	Properties: []Epc{
		{EPCOperationStatus, "Operation status", "operation_status", OperationStatusCodec},
		{EPCInstallationLocation, "Installation location", "installation_location", InstallationLocationCodec{}},
		{EPCStandardVersion, "Standard version", "standard_version", StandardVersionCodec{}},
		{EPCIdentificationNumber, "Identification number", "identification_number", HexStringCodec{}},
		{EPCMeasuredInstantaneousPowerConsumption, "Measured instantaneous power consumption", "instantaneous_power",
			NumberCodec{Size: 2, Max: 65533, Unit: "W"}},
		{EPCMeasuredCumulativePowerConsumption, "Measured cumulative power consumption", "cumulative_power",
			NumberCodec{Size: 4, Max: 999999999, Unit: "0.001kWh"}},
		{EPCManufacturerFaultCode, "Manufacturer fault code", "manufacturer_fault_code", HexStringCodec{}},
		{EPCFaultStatus, "Fault occurrence status", "fault_status", OnOffCodec{On: 0x41, Off: 0x42}},
		{EPCManufacturerCode, "Manufacturer code", "manufacturer", ManufacturerCodec{}},
		{EPCProductCode, "Product code", "product_code", StringCodec{Size: 12}},
		{EPCProductionNumber, "Production number", "production_number", StringCodec{Size: 12}},
		{EPCProductionDate, "Production date", "production_date", DateCodec{}},
		{EPCPowerSavingOperationSetting, "Power saving operation setting", "power_saving", OnOffCodec{On: 0x41, Off: 0x42}},
		{EPCRemoteControlSetting, "Remote control setting", "remote_control", NewOptionCodec(
			Option{"not_public_line", 0x41},
			Option{"public_line", 0x42},
			Option{"not_public_line_normal", 0x61},
			Option{"public_line_normal", 0x62},
		)},
		{EPCCumulativeOperatingTime, "Cumulative operating time", "operating_time", OperatingTimeCodec{}},
		{EPCStatusAnnouncementPropertyMap, "Status announcement property map", "", PropertyMapCodec{}},
		{EPCSetPropertyMap, "Set property map", "", PropertyMapCodec{}},
		{EPCGetPropertyMap, "Get property map", "", PropertyMapCodec{}},
	},
}
