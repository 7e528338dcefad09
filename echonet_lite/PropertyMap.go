package echonet_lite

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// プロパティマップ記述形式
// プロパティマップは、EPC(0x80〜0xff)の有無の集合。
//
// 1. プロパティの個数が16未満の場合 (1+プロパティの個数バイト)
//   1バイト目: プロパティの個数
//   2バイト目以降: EPC がそのまま列挙される
//
// 2. プロパティの個数が16以上の場合 (17バイト)
//   1バイト目: プロパティの個数
//   2〜17バイト目: プロパティコードのビットマップ。8*16=128ビット。EPCは0x80〜0xff
//     ビットの場所は bytes[(EPC & 0x0f)] & (1 << ((EPC >> 4) - 8)) で表す。

type PropertyMap map[EPCType]struct{}

func NewPropertyMap(epcs ...EPCType) PropertyMap {
	m := make(PropertyMap, len(epcs))
	for _, epc := range epcs {
		m.Set(epc)
	}
	return m
}

func (m PropertyMap) Has(epc EPCType) bool {
	_, ok := m[epc]
	return ok
}

func (m PropertyMap) Set(epc EPCType) {
	m[epc] = struct{}{}
}

func (m PropertyMap) Delete(epc EPCType) {
	delete(m, epc)
}

// EPCs は昇順に並べた EPC を返します。
func (m PropertyMap) EPCs() []EPCType {
	epcs := make([]EPCType, 0, len(m))
	for epc := range m {
		epcs = append(epcs, epc)
	}
	slices.Sort(epcs)
	return epcs
}

func (m PropertyMap) Encode() []byte {
	if len(m) < 16 {
		bytes := make([]byte, 1, 1+len(m))
		bytes[0] = byte(len(m))
		for _, epc := range m.EPCs() {
			bytes = append(bytes, byte(epc))
		}
		return bytes
	}

	bytes := make([]byte, 17)
	bytes[0] = byte(len(m))
	for epc := range m {
		if epc < 0x80 {
			continue
		}
		bytes[epc&0x0f+1] |= 1 << (epc>>4 - 8)
	}
	return bytes
}

func DecodePropertyMap(bytes []byte) (PropertyMap, error) {
	if len(bytes) < 1 {
		return nil, ErrInvalidPropertyMap{EDT: bytes}
	}

	m := make(PropertyMap)
	n := int(bytes[0])
	if n < 16 {
		if len(bytes) != n+1 {
			return nil, ErrInvalidPropertyMap{EDT: bytes}
		}
		for _, epc := range bytes[1:] {
			m.Set(EPCType(epc))
		}
		return m, nil
	}

	if len(bytes) != 17 {
		return nil, ErrInvalidPropertyMap{EDT: bytes}
	}
	for i, b := range bytes[1:] {
		for j := 0; j < 8; j++ {
			if b&(1<<j) != 0 {
				m.Set(EPCType(i + j<<4 + 0x80))
			}
		}
	}
	return m, nil
}

func (m PropertyMap) String() string {
	epcs := m.EPCs()
	parts := make([]string, len(epcs))
	for i, epc := range epcs {
		parts[i] = epc.String()
	}
	return fmt.Sprintf("[%s]", strings.Join(parts, " "))
}
