package echonet_lite

const (
	EPC_EWH_AutomaticHeating     EPCType = 0xB0 // 沸き上げ自動設定
	EPC_EWH_HeatingStatus        EPCType = 0xB2 // 沸き上げ中状態
	EPC_EWH_WaterTemperature     EPCType = 0xB3 // 沸き上げ湯温設定値
	EPC_EWH_HotWaterSupplyStatus EPCType = 0xC3 // 給湯中状態
	EPC_EWH_RemainingHotWater    EPCType = 0xE1 // 残湯量計測値
)

func (r PropertyRegistry) ElectricWaterHeater() PropertyTable {
	return PropertyTable{
		ClassCode:   ElectricWaterHeater_ClassCode,
		Description: "Electric Water Heater",
		Properties: []Epc{
			{EPC_EWH_AutomaticHeating, "Automatic water heating setting", "automatic_heating", NewOptionCodec(
				Option{"auto", 0x41},
				Option{"manual_heating", 0x42},
				Option{"manual_stop", 0x43},
			)},
			{EPC_EWH_HeatingStatus, "Water heating status", "heating_status", OnOffCodec{On: 0x41, Off: 0x42}},
			{EPC_EWH_WaterTemperature, "Water heating temperature setting", "water_temperature", NumberCodec{Min: 30, Max: 90, Unit: "℃"}},
			{EPC_EWH_HotWaterSupplyStatus, "Hot water supply status", "hot_water_supply", OnOffCodec{On: 0x41, Off: 0x42}},
			{EPC_EWH_RemainingHotWater, "Measured amount of remaining hot water", "remaining_hot_water", NumberCodec{Size: 2, Max: 65533, Unit: "L"}},
		},
	}
}
