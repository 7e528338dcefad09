package echonet_lite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_Resolve(t *testing.T) {
	catalog := DefaultCatalog()

	c := catalog.Resolve(0x01, 0x30)
	assert.True(t, c.Known())
	assert.Equal(t, "Home Air Conditioner", c.Description)

	unknown := catalog.Resolve(0x03, 0xb7)
	assert.False(t, unknown.Known())
	assert.Equal(t, EOJClassCode(0x03b7), unknown.Code, "未知のクラスでもコードは保持する")
	assert.Equal(t, ClassGroupCodeType(0x03), unknown.GroupCode())
}

func TestCatalog_Lookup(t *testing.T) {
	catalog := DefaultCatalog()

	// クラス固有
	e := catalog.Lookup(HomeAirConditioner_ClassCode, EPC_HAC_OperationModeSetting)
	assert.Equal(t, "operation_mode", e.ChannelID)

	// スーパークラス
	e = catalog.Lookup(HomeAirConditioner_ClassCode, EPCInstallationLocation)
	assert.Equal(t, "installation_location", e.ChannelID)

	// 同じ EPC でもクラスによって異なる
	assert.Equal(t, "temperature", catalog.Lookup(TemperatureSensor_ClassCode, 0xE0).ChannelID)
	assert.Equal(t, "humidity", catalog.Lookup(HumiditySensor_ClassCode, 0xE0).ChannelID)

	// 未知のプロパティ
	e = catalog.Lookup(HomeAirConditioner_ClassCode, 0xF5)
	assert.False(t, e.Known())
	assert.Equal(t, Text("0102"), e.Decode([]byte{0x01, 0x02}))

	// ノードプロファイルには機器スーパークラスを適用しない
	assert.False(t, catalog.Lookup(NodeProfile_ClassCode, EPCInstallationLocation).Known())

	// 未知クラスの機器オブジェクトにはスーパークラスだけを適用する
	assert.True(t, catalog.Lookup(0x03b7, EPCOperationStatus).Known())
}

func TestCatalog_LookupChannel(t *testing.T) {
	catalog := DefaultCatalog()

	e, ok := catalog.LookupChannel(GeneralLighting_ClassCode, "lighting_mode")
	require.True(t, ok)
	assert.Equal(t, EPC_GL_LightingMode, e.Code)

	e, ok = catalog.LookupChannel(GeneralLighting_ClassCode, "operation_status")
	require.True(t, ok)
	assert.Equal(t, EPCOperationStatus, e.Code)

	e, ok = catalog.LookupChannel(0x03b7, "manufacturer")
	require.True(t, ok)
	assert.Equal(t, EPCManufacturerCode, e.Code)

	_, ok = catalog.LookupChannel(GeneralLighting_ClassCode, "set_temperature")
	assert.False(t, ok)
	_, ok = catalog.LookupChannel(0x0ef1, "operation_status")
	assert.False(t, ok)
}

func TestCatalog_Properties(t *testing.T) {
	catalog := NewCatalog(
		PropertyTable{Properties: []Epc{
			{EPCOperationStatus, "Operation status", "operation_status", OperationStatusCodec},
			{EPCGetPropertyMap, "Get property map", "", PropertyMapCodec{}},
		}},
		PropertyTable{ClassCode: HumiditySensor_ClassCode, Description: "Humidity Sensor", Properties: []Epc{
			{0xE0, "Humidity", "humidity", NumberCodec{Max: 100}},
		}},
	)

	props := catalog.Properties(HumiditySensor_ClassCode)
	require.Len(t, props, 2, "プロパティマップは含まない")
	assert.Equal(t, EPCOperationStatus, props[0].Code)
	assert.Equal(t, EPCType(0xE0), props[1].Code)
	assert.Equal(t, 1, catalog.Classes().Len())
}

func TestDefaultCatalog_Classes(t *testing.T) {
	catalog := DefaultCatalog()
	for _, code := range []EOJClassCode{
		NodeProfile_ClassCode,
		Controller_ClassCode,
		HomeAirConditioner_ClassCode,
		TemperatureSensor_ClassCode,
		HumiditySensor_ClassCode,
		SingleFunctionLighting_ClassCode,
		GeneralLighting_ClassCode,
		ElectricWaterHeater_ClassCode,
		StorageBattery_ClassCode,
		FloorHeating_ClassCode,
	} {
		assert.True(t, catalog.Classes().Lookup(code).Known(), "%v", code)
	}
}

func TestClassIndex_All(t *testing.T) {
	classes := DefaultCatalog().Classes().All()
	require.NotEmpty(t, classes)
	assert.Equal(t, TemperatureSensor_ClassCode, classes[0].Code)
	assert.Equal(t, NodeProfile_ClassCode, classes[len(classes)-1].Code)
	for i := 1; i < len(classes); i++ {
		assert.Less(t, classes[i-1].Code, classes[i].Code)
	}

	var idx *ClassIndex
	assert.Nil(t, idx.All())
}
