package echonet_lite

const (
	EPC_SB_WorkingOperationStatus EPCType = 0xCF // 運転動作状態
	EPC_SB_ChargeDischargePower   EPCType = 0xD3 // 瞬時充放電電力計測値
	EPC_SB_OperationMode          EPCType = 0xDA // 運転モード設定
	EPC_SB_RemainingCapacity      EPCType = 0xE4 // 蓄電残量3
)

var storageBatteryModes = []Option{
	{"rapid_charging", 0x41},
	{"charging", 0x42},
	{"discharging", 0x43},
	{"standby", 0x44},
	{"test", 0x45},
	{"auto", 0x46},
	{"restart", 0x48},
	{"capacity_recalculation", 0x49},
	{"other", 0x40},
}

func (r PropertyRegistry) StorageBattery() PropertyTable {
	return PropertyTable{
		ClassCode:   StorageBattery_ClassCode,
		Description: "Storage Battery",
		Properties: []Epc{
			{EPC_SB_WorkingOperationStatus, "Working operation status", "working_status", readOnly{NewOptionCodec(storageBatteryModes...)}},
			{EPC_SB_ChargeDischargePower, "Measured instantaneous charging/discharging electric power", "charge_power",
				NumberCodec{Size: 4, Signed: true, Min: -999999999, Max: 999999999, Unit: "W"}},
			{EPC_SB_OperationMode, "Operation mode setting", "operation_mode", NewOptionCodec(storageBatteryModes...)},
			{EPC_SB_RemainingCapacity, "Remaining stored electricity 3", "remaining_capacity", NumberCodec{Max: 100, Unit: "%"}},
		},
	}
}
