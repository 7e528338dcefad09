package echonet_lite

const (
	EPC_HAC_AirVolumeSetting          EPCType = 0xA0 // 風量設定
	EPC_HAC_OperationModeSetting      EPCType = 0xB0 // 運転モード設定
	EPC_HAC_TemperatureSetting        EPCType = 0xB3 // 温度設定値
	EPC_HAC_CurrentRoomHumidity       EPCType = 0xBA // 室内相対湿度計測値
	EPC_HAC_CurrentRoomTemperature    EPCType = 0xBB // 室内温度計測値
	EPC_HAC_CurrentOutsideTemperature EPCType = 0xBE // 外気温度計測値
)

func (r PropertyRegistry) HomeAirConditioner() PropertyTable {
	return PropertyTable{
		ClassCode:   HomeAirConditioner_ClassCode,
		Description: "Home Air Conditioner",
		Properties: []Epc{
			{EPC_HAC_AirVolumeSetting, "Air flow rate setting", "air_volume", NewOptionCodec(
				Option{"auto", 0x41},
				Option{"1", 0x31},
				Option{"2", 0x32},
				Option{"3", 0x33},
				Option{"4", 0x34},
				Option{"5", 0x35},
				Option{"6", 0x36},
				Option{"7", 0x37},
				Option{"8", 0x38},
			)},
			{EPC_HAC_OperationModeSetting, "Operation mode setting", "operation_mode", NewOptionCodec(
				Option{"auto", 0x41},
				Option{"cooling", 0x42},
				Option{"heating", 0x43},
				Option{"dehumidification", 0x44},
				Option{"fan", 0x45},
				Option{"other", 0x40},
			)},
			{EPC_HAC_TemperatureSetting, "Set temperature value", "set_temperature", NumberCodec{Max: 50, Unit: "℃"}},
			{EPC_HAC_CurrentRoomHumidity, "Measured value of room relative humidity", "room_humidity", NumberCodec{Max: 100, Unit: "%"}},
			{EPC_HAC_CurrentRoomTemperature, "Measured value of room temperature", "room_temperature", TemperatureCodec{}},
			{EPC_HAC_CurrentOutsideTemperature, "Measured outdoor air temperature", "outdoor_temperature", TemperatureCodec{}},
		},
	}
}
