package echonet_lite

const (
	EPC_TS_MeasuredTemperature EPCType = 0xE0 // 温度計測値 (0.1℃)
	EPC_HS_MeasuredHumidity    EPCType = 0xE0 // 相対湿度計測値
)

func (r PropertyRegistry) TemperatureSensor() PropertyTable {
	return PropertyTable{
		ClassCode:   TemperatureSensor_ClassCode,
		Description: "Temperature Sensor",
		Properties: []Epc{
			{EPC_TS_MeasuredTemperature, "Measured temperature value", "temperature",
				NumberCodec{Size: 2, Signed: true, Min: -2732, Max: 32766, Unit: "0.1℃"}},
		},
	}
}

func (r PropertyRegistry) HumiditySensor() PropertyTable {
	return PropertyTable{
		ClassCode:   HumiditySensor_ClassCode,
		Description: "Humidity Sensor",
		Properties: []Epc{
			{EPC_HS_MeasuredHumidity, "Measured value of relative humidity", "humidity", NumberCodec{Max: 100, Unit: "%"}},
		},
	}
}
