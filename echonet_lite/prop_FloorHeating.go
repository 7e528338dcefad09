package echonet_lite

const (
	EPC_FH_TemperatureLevel EPCType = 0xE1 // 温度設定値
	EPC_FH_RoomTemperature  EPCType = 0xE2 // 室内温度計測値
	EPC_FH_FloorTemperature EPCType = 0xE3 // 床温度計測値
	EPC_FH_SpecialMode      EPCType = 0xE5 // 特別運転設定
)

func (r PropertyRegistry) FloorHeating() PropertyTable {
	levels := []Option{{"auto", 0x41}}
	for i := 1; i <= 15; i++ {
		levels = append(levels, Option{Name: Decimal(i).String(), Value: byte(0x30 + i)})
	}
	return PropertyTable{
		ClassCode:   FloorHeating_ClassCode,
		Description: "Floor Heating",
		Properties: []Epc{
			{EPC_FH_TemperatureLevel, "Temperature setting (level)", "temperature_level", NewOptionCodec(levels...)},
			{EPC_FH_RoomTemperature, "Room temperature", "room_temperature", TemperatureCodec{}},
			{EPC_FH_FloorTemperature, "Floor temperature", "floor_temperature", TemperatureCodec{}},
			{EPC_FH_SpecialMode, "Special mode", "special_mode", NewOptionCodec(
				Option{"normal", 0x41}, // 通常運転
				Option{"low", 0x42},    // ひかえめ運転
				Option{"high", 0x43},   // ハイパワー運転
			)},
		},
	}
}
