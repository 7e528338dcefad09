package echonet_lite

const (
	EPC_SF_Illuminance EPCType = 0xb0 // 照度レベル設定
)

func (r PropertyRegistry) SingleFunctionLighting() PropertyTable {
	return PropertyTable{
		ClassCode:   SingleFunctionLighting_ClassCode,
		Description: "Single Function Lighting",
		Properties: []Epc{
			{EPC_SF_Illuminance, "Illuminance level", "illuminance", NumberCodec{Max: 100, Unit: "%"}},
		},
	}
}
