package echonet_lite

import (
	"fmt"
	"strconv"
	"strings"
)

// アプリケーション側に公開する値の型名
const (
	ItemTypeSwitch = "Switch"
	ItemTypeNumber = "Number"
	ItemTypeString = "String"
)

// State はプロパティ値をアプリケーション側の型で表したものです。
// OnOff, Decimal, Text, Undef のいずれかです。
type State interface {
	String() string
	// Value は JSON などに載せるための素の値 (bool, int64, string, nil) を返します。
	Value() any
}

type OnOff bool

const (
	On  OnOff = true
	Off OnOff = false
)

func (s OnOff) String() string {
	if s {
		return "ON"
	}
	return "OFF"
}

func (s OnOff) Value() any { return bool(s) }

type Decimal int64

func (s Decimal) String() string { return strconv.FormatInt(int64(s), 10) }
func (s Decimal) Value() any     { return int64(s) }

type Text string

func (s Text) String() string { return string(s) }
func (s Text) Value() any     { return string(s) }

type undefState struct{}

func (undefState) String() string { return "UNDEF" }
func (undefState) Value() any     { return nil }

// Undef はデコードできなかった値を表します。
var Undef State = undefState{}

// ParseState は外部から受け取った文字列を itemType の State に変換します。
func ParseState(itemType, s string) (State, error) {
	s = strings.TrimSpace(s)
	switch itemType {
	case ItemTypeSwitch:
		switch strings.ToUpper(s) {
		case "ON", "TRUE", "1":
			return On, nil
		case "OFF", "FALSE", "0":
			return Off, nil
		}
		return nil, fmt.Errorf("%w: %q is not ON/OFF", ErrUnsupportedValue, s)
	case ItemTypeNumber:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrUnsupportedValue, s)
		}
		return Decimal(n), nil
	case ItemTypeString:
		return Text(s), nil
	}
	return nil, fmt.Errorf("%w: item type %q", ErrUnsupportedValue, itemType)
}

// StateFromValue は JSON 等でデコードされた値 (bool, float64, string) から State を作ります。
func StateFromValue(itemType string, v any) (State, error) {
	switch v := v.(type) {
	case bool:
		if itemType == ItemTypeSwitch {
			return OnOff(v), nil
		}
	case float64:
		if itemType == ItemTypeNumber {
			return Decimal(int64(v)), nil
		}
	case string:
		return ParseState(itemType, v)
	}
	return nil, fmt.Errorf("%w: %v for %s", ErrUnsupportedValue, v, itemType)
}
