package echonet_lite

import (
	"echonet-bridge/echonet_lite/utils"
	"encoding/hex"
	"fmt"
	"strings"
)

// StateDecoder は EDT をアプリケーション側の State に変換します。
// DecodeState は失敗しません。解釈できない EDT には Undef などを返します。
type StateDecoder interface {
	DecodeState(edt []byte) State
	ItemType() string
}

// StateEncoder は State を EDT に変換します。
// 書き込みできない値は ErrUnsupportedValue を返します。
type StateEncoder interface {
	EncodeState(state State) ([]byte, error)
}

// StateCodec は読み書き可能なプロパティのコーデックです。
// 読み取り専用のプロパティは StateDecoder だけを実装します。
type StateCodec interface {
	StateDecoder
	StateEncoder
}

var (
	_ StateCodec = OnOffCodec{}
	_ StateCodec = (*OptionCodec)(nil)
	_ StateCodec = TemperatureCodec{}
	_ StateCodec = NumberCodec{}
	_ StateCodec = InstallationLocationCodec{}
)

func unsupported(state State, what string) error {
	return fmt.Errorf("%w: %v (%T) for %s", ErrUnsupportedValue, state, state, what)
}

// OnOffCodec は1バイトの ON/OFF プロパティです。On 以外の値は OFF として扱います。
type OnOffCodec struct {
	On  byte
	Off byte
}

func (c OnOffCodec) ItemType() string { return ItemTypeSwitch }

func (c OnOffCodec) DecodeState(edt []byte) State {
	if len(edt) == 0 {
		return Undef
	}
	return OnOff(edt[0] == c.On)
}

func (c OnOffCodec) EncodeState(state State) ([]byte, error) {
	s, ok := state.(OnOff)
	if !ok {
		return nil, unsupported(state, "on/off")
	}
	if s {
		return []byte{c.On}, nil
	}
	return []byte{c.Off}, nil
}

// StandardVersionCodec は規格Version情報 (4バイト) のリリース番号 (3バイト目の文字) を返します。
type StandardVersionCodec struct{}

func (StandardVersionCodec) ItemType() string { return ItemTypeString }

func (StandardVersionCodec) DecodeState(edt []byte) State {
	if len(edt) != 4 {
		return Text("")
	}
	return Text(string(rune(edt[2])))
}

// HexStringCodec は EDT を小文字16進文字列にします。
type HexStringCodec struct{}

func (HexStringCodec) ItemType() string { return ItemTypeString }

func (HexStringCodec) DecodeState(edt []byte) State {
	return Text(hex.EncodeToString(edt))
}

// OperatingTimeCodec は積算運転時間 (単位1バイト + 4バイト) を秒に換算します。
type OperatingTimeCodec struct{}

func (OperatingTimeCodec) ItemType() string { return ItemTypeNumber }

func (OperatingTimeCodec) DecodeState(edt []byte) State {
	if len(edt) < 5 {
		return Undef
	}
	value := int64(utils.BytesToUint32(edt[1:5]))
	switch edt[0] {
	case 0x42: // 分
		value *= 60
	case 0x43: // 時
		value *= 60 * 60
	case 0x44: // 日
		value *= 24 * 60 * 60
	}
	return Decimal(value)
}

// Option は選択肢型プロパティの1つの値です。
type Option struct {
	Name  string
	Value byte
}

// OptionCodec は1バイトの選択肢と名前を相互に変換します。
type OptionCodec struct {
	byName  map[string]Option
	byValue [256]*Option
	options []Option
}

func NewOptionCodec(options ...Option) *OptionCodec {
	c := &OptionCodec{
		byName:  make(map[string]Option, len(options)),
		options: options,
	}
	for i := range options {
		c.byName[options[i].Name] = options[i]
		c.byValue[options[i].Value] = &c.options[i]
	}
	return c
}

func (c *OptionCodec) ItemType() string { return ItemTypeString }

// DecodeState は未定義の値に対して Undef を返します。
func (c *OptionCodec) DecodeState(edt []byte) State {
	if len(edt) == 0 {
		return Undef
	}
	if o := c.byValue[edt[0]]; o != nil {
		return Text(o.Name)
	}
	return Undef
}

func (c *OptionCodec) EncodeState(state State) ([]byte, error) {
	if s, ok := state.(Text); ok {
		if o, ok := c.byName[string(s)]; ok {
			return []byte{o.Value}, nil
		}
	}
	return nil, unsupported(state, "option")
}

// Names は選択肢の名前を定義順に返します。
func (c *OptionCodec) Names() []string {
	names := make([]string, len(c.options))
	for i, o := range c.options {
		names[i] = o.Name
	}
	return names
}

// TemperatureCodec は1バイト符号付きの温度 (℃) です。
// 0x7E (計測不能), 0x7F (オーバーフロー), 0x80 (アンダーフロー) は Undef になります。
type TemperatureCodec struct{}

func (TemperatureCodec) ItemType() string { return ItemTypeNumber }

func (TemperatureCodec) DecodeState(edt []byte) State {
	if len(edt) == 0 {
		return Undef
	}
	switch edt[0] {
	case 0x7e, 0x7f, 0x80:
		return Undef
	}
	return Decimal(int8(edt[0]))
}

func (TemperatureCodec) EncodeState(state State) ([]byte, error) {
	s, ok := state.(Decimal)
	if !ok || s < -127 || s > 125 {
		return nil, unsupported(state, "temperature")
	}
	return []byte{byte(int8(s))}, nil
}

// NumberCodec は Size バイトのビッグエンディアン整数です。
// [Min, Max] の範囲外 (オーバーフロー等の特殊値を含む) は Undef になります。
type NumberCodec struct {
	Size   int // 1〜4 (0のときは1扱い)
	Signed bool
	Min    int64
	Max    int64
	Unit   string
}

func (c NumberCodec) size() int {
	if c.Size == 0 {
		return 1
	}
	return c.Size
}

func (c NumberCodec) ItemType() string { return ItemTypeNumber }

func (c NumberCodec) DecodeState(edt []byte) State {
	if len(edt) != c.size() {
		return Undef
	}
	var v int64
	if c.Signed {
		v = int64(utils.BytesToInt32(edt))
	} else {
		v = int64(utils.BytesToUint32(edt))
	}
	if v < c.Min || v > c.Max {
		return Undef
	}
	return Decimal(v)
}

func (c NumberCodec) EncodeState(state State) ([]byte, error) {
	s, ok := state.(Decimal)
	if !ok || int64(s) < c.Min || int64(s) > c.Max {
		return nil, unsupported(state, fmt.Sprintf("number[%d..%d]", c.Min, c.Max))
	}
	return utils.Uint32ToBytes(uint32(int32(s)), c.size()), nil
}

// StringCodec は固定長の ASCII 文字列です。末尾の NUL と空白は取り除きます。
type StringCodec struct {
	Size int
}

func (StringCodec) ItemType() string { return ItemTypeString }

func (StringCodec) DecodeState(edt []byte) State {
	return Text(strings.TrimRight(string(edt), "\x00 "))
}

// DateCodec は年(2バイト)月日の日付を "YYYY-MM-DD" にします。
type DateCodec struct{}

func (DateCodec) ItemType() string { return ItemTypeString }

func (DateCodec) DecodeState(edt []byte) State {
	if len(edt) != 4 {
		return Undef
	}
	return Text(fmt.Sprintf("%04d-%02d-%02d", utils.BytesToUint32(edt[0:2]), edt[2], edt[3]))
}

// ManufacturerCodec はメーカコード (3バイト) を既知のメーカ名に変換します。
type ManufacturerCodec struct{}

var manufacturerNames = map[uint32]string{
	0x000005: "Sharp",
	0x000006: "Mitsubishi Electric",
	0x000008: "Daikin",
	0x00000b: "Panasonic",
	0x000016: "Toshiba",
	0x000022: "Hitachi",
	0xffffff: "Experimental",
}

func (ManufacturerCodec) ItemType() string { return ItemTypeString }

func (ManufacturerCodec) DecodeState(edt []byte) State {
	if len(edt) != 3 {
		return Undef
	}
	if name, ok := manufacturerNames[utils.BytesToUint32(edt)]; ok {
		return Text(name)
	}
	return Text(hex.EncodeToString(edt))
}

// PropertyMapCodec はプロパティマップを "[80 81 9F]" のような文字列にします。
type PropertyMapCodec struct{}

func (PropertyMapCodec) ItemType() string { return ItemTypeString }

func (PropertyMapCodec) DecodeState(edt []byte) State {
	m, err := DecodePropertyMap(edt)
	if err != nil {
		return Undef
	}
	return Text(m.String())
}

// InstanceListCodec はインスタンスリスト (0xD5, 0xD6) を "0130:1,0291:1" のような文字列にします。
type InstanceListCodec struct{}

func (InstanceListCodec) ItemType() string { return ItemTypeString }

func (InstanceListCodec) DecodeState(edt []byte) State {
	eojs, err := DecodeInstanceList(edt)
	if err != nil {
		return Undef
	}
	parts := make([]string, len(eojs))
	for i, eoj := range eojs {
		parts[i] = eoj.String()
	}
	return Text(strings.Join(parts, ","))
}

// DecodeInstanceList は個数(1バイト)に続く EOJ の列をデコードします。
// 個数より実データが短い場合は読めた分とエラーを返します。
func DecodeInstanceList(edt []byte) ([]EOJ, error) {
	if len(edt) == 0 {
		return nil, fmt.Errorf("%w: empty instance list", ErrTruncatedProperty)
	}
	n := int(edt[0])
	eojs := make([]EOJ, 0, n)
	for i := 0; i < n; i++ {
		pos := 1 + i*3
		if pos+3 > len(edt) {
			return eojs, fmt.Errorf("%w: instance list declares %d entries, has %d", ErrTruncatedProperty, n, i)
		}
		eojs = append(eojs, DecodeEOJ(edt[pos:pos+3]))
	}
	return eojs, nil
}

// EncodeInstanceList は DecodeInstanceList の逆変換です。
func EncodeInstanceList(eojs []EOJ) []byte {
	edt := make([]byte, 1, 1+len(eojs)*3)
	edt[0] = byte(len(eojs))
	for _, eoj := range eojs {
		edt = append(edt, eoj.Encode()...)
	}
	return edt
}
