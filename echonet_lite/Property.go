package echonet_lite

import (
	"fmt"
)

// EPCType はプロパティコードを表します。
// プロパティコードは、Echonet Lite のプロパティを識別するための 1 バイトの値です。
type EPCType byte

func (e EPCType) String() string {
	return fmt.Sprintf("%02X", byte(e))
}

// Epc はクラスごとのプロパティカタログの1エントリです。
// ChannelID が空のプロパティ (プロパティマップなど) は内部処理用で、アプリケーションには公開しません。
type Epc struct {
	Code      EPCType
	Name      string
	ChannelID string
	Codec     StateDecoder
}

// Known はアプリケーションに公開するチャンネルかどうかを返します。
func (e *Epc) Known() bool {
	return e.ChannelID != ""
}

func (e *Epc) ItemType() string {
	return e.Codec.ItemType()
}

// Writable はエンコーダを持つかどうかを返します。
func (e *Epc) Writable() bool {
	_, ok := e.Codec.(StateEncoder)
	return ok
}

// Decode は空の EDT に対して Undef を返し、それ以外はコーデックに委ねます。
func (e *Epc) Decode(edt []byte) State {
	if len(edt) == 0 {
		return Undef
	}
	return e.Codec.DecodeState(edt)
}

func (e *Epc) Encode(state State) ([]byte, error) {
	enc, ok := e.Codec.(StateEncoder)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrReadOnlyProperty, e)
	}
	edt, err := enc.EncodeState(state)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e, err)
	}
	return edt, nil
}

func (e *Epc) String() string {
	if e.ChannelID == "" {
		return fmt.Sprintf("%s(%s)", e.Code, e.Name)
	}
	return fmt.Sprintf("%s(%s)", e.Code, e.ChannelID)
}

// PropertyTable はクラス1つ分のプロパティ定義です。
type PropertyTable struct {
	ClassCode   EOJClassCode
	Description string
	Properties  []Epc
}
