package echonet_lite

import (
	"echonet-bridge/echonet_lite/utils"
	"fmt"
)

// EOJ は ECHONET オブジェクト (クラスグループコード, クラスコード, インスタンスコード) を表します。
type EOJ uint32

type EOJClassCode uint16
type EOJInstanceCode uint8

type ClassGroupCodeType byte
type ClassCodeType byte

func (e EOJ) ClassCode() EOJClassCode {
	return EOJClassCode(e >> 8 & 0xffff)
}
func (e EOJ) InstanceCode() EOJInstanceCode {
	return EOJInstanceCode(e)
}

func (c EOJClassCode) ClassGroupCode() ClassGroupCodeType {
	return ClassGroupCodeType(c >> 8)
}
func (c EOJClassCode) ClassCode() ClassCodeType {
	return ClassCodeType(c)
}

// IsDeviceObject は機器オブジェクト (クラスグループ 0x00〜0x06) かどうかを返します。
// 機器オブジェクトスーパークラスのプロパティはこれらのクラスにだけ適用されます。
func (c EOJClassCode) IsDeviceObject() bool {
	return c.ClassGroupCode() <= 0x06
}

func MakeEOJClassCode(classGroupCode ClassGroupCodeType, classCode ClassCodeType) EOJClassCode {
	return EOJClassCode(uint16(classGroupCode)<<8 | uint16(classCode))
}
func MakeEOJ(classCode EOJClassCode, instanceCode EOJInstanceCode) EOJ {
	return EOJ(uint32(classCode)<<8 | uint32(instanceCode))
}

func DecodeEOJ(data []byte) EOJ {
	if len(data) != 3 {
		return 0
	}
	classCode := EOJClassCode(utils.BytesToUint32(data[0:2]))
	instanceCode := EOJInstanceCode(data[2])
	return MakeEOJ(classCode, instanceCode)
}
func (e EOJ) Encode() []byte {
	return utils.Uint32ToBytes(uint32(e), 3)
}

const (
	TemperatureSensor_ClassCode      EOJClassCode = 0x0011 // 温度センサ
	HumiditySensor_ClassCode         EOJClassCode = 0x0012 // 湿度センサ
	HomeAirConditioner_ClassCode     EOJClassCode = 0x0130 // 家庭用エアコン
	ElectricWaterHeater_ClassCode    EOJClassCode = 0x026b // 電気温水器
	FloorHeating_ClassCode           EOJClassCode = 0x027b // 床暖房
	StorageBattery_ClassCode         EOJClassCode = 0x027d // 蓄電池
	GeneralLighting_ClassCode        EOJClassCode = 0x0290 // 一般照明
	SingleFunctionLighting_ClassCode EOJClassCode = 0x0291 // 単機能照明
	Controller_ClassCode             EOJClassCode = 0x05ff // コントローラ
	NodeProfile_ClassCode            EOJClassCode = 0x0ef0 // ノードプロファイル
)

func (c EOJClassCode) String() string {
	var s string
	switch c.ClassGroupCode() {
	case 0x00:
		s = "Sensor-related device"
	case 0x01:
		s = "Air conditioner-related device"
	case 0x02:
		s = "Housing/facility-related device"
	case 0x03:
		s = "Cooking/housework-related device"
	case 0x04:
		s = "Health-related device"
	case 0x05:
		s = "Management/control-related device"
	case 0x06:
		s = "Audiovisual-related device"
	case 0x0e:
		s = "Profile"
	case 0x0f:
		s = "User definition"
	default:
		s = "?"
	}
	return fmt.Sprintf("%04X[%s]", uint16(c), s)
}

func (e EOJ) String() string {
	return fmt.Sprintf("%04X:%d", uint16(e.ClassCode()), e.InstanceCode())
}

func (e EOJ) IDString() string {
	return fmt.Sprintf("%06X", uint32(e))
}
