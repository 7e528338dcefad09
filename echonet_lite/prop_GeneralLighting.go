package echonet_lite

const (
	EPC_GL_Illuminance  EPCType = 0xb0 // 照度レベル設定
	EPC_GL_LightingMode EPCType = 0xb6 // 点灯モード設定
)

func (r PropertyRegistry) GeneralLighting() PropertyTable {
	return PropertyTable{
		ClassCode:   GeneralLighting_ClassCode,
		Description: "General Lighting",
		Properties: []Epc{
			{EPC_GL_Illuminance, "Illuminance level", "illuminance", NumberCodec{Max: 100, Unit: "%"}},
			{EPC_GL_LightingMode, "Lighting mode setting", "lighting_mode", NewOptionCodec(
				Option{"auto", 0x41},
				Option{"normal", 0x42},
				Option{"night", 0x43},
				Option{"color", 0x45},
			)},
		},
	}
}
