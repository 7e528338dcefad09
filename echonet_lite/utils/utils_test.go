package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUint32ToBytes(t *testing.T) {
	tests := []struct {
		name     string
		input    uint32
		size     int
		expected []byte
	}{
		{"1バイト変換 (255)", 255, 1, []byte{0xFF}},
		{"2バイト変換 (256)", 256, 2, []byte{0x01, 0x00}},
		{"3バイト変換 (65536)", 65536, 3, []byte{0x01, 0x00, 0x00}},
		{"4バイト変換 (4294967295)", 4294967295, 4, []byte{0xFF, 0xFF, 0xFF, 0xFF}},
		{"上位ビットは切り捨て", 0x1234, 1, []byte{0x34}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Uint32ToBytes(tt.input, tt.size))
		})
	}
	assert.Panics(t, func() { Uint32ToBytes(1, 0) })
	assert.Panics(t, func() { Uint32ToBytes(1, 5) })
}

func TestBytesToUint32(t *testing.T) {
	assert.Equal(t, uint32(0xFF), BytesToUint32([]byte{0xFF}))
	assert.Equal(t, uint32(0x0100), BytesToUint32([]byte{0x01, 0x00}))
	assert.Equal(t, uint32(0x010203), BytesToUint32([]byte{0x01, 0x02, 0x03}))
	assert.Equal(t, uint32(0xFFFFFFFF), BytesToUint32([]byte{0xFF, 0xFF, 0xFF, 0xFF}))
	assert.Panics(t, func() { BytesToUint32(nil) })
	assert.Panics(t, func() { BytesToUint32(make([]byte, 5)) })
}

func TestBytesToInt32(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected int32
	}{
		{"1バイト正", []byte{0x7F}, 127},
		{"1バイト負", []byte{0x80}, -128},
		{"2バイト負", []byte{0xFF, 0xFE}, -2},
		{"3バイト正", []byte{0x01, 0x00, 0x00}, 65536},
		{"4バイト負", []byte{0xFF, 0xFF, 0xFF, 0xFF}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BytesToInt32(tt.input))
		})
	}
	assert.Panics(t, func() { BytesToInt32([]byte{}) })
}

func TestHexDump(t *testing.T) {
	assert.Equal(t, "[]", HexDump(nil))
	assert.Equal(t, "[0x10]", HexDump([]byte{0x10}))
	assert.Equal(t, "[0x10,0x81,0x00,0xff]", HexDump([]byte{0x10, 0x81, 0x00, 0xFF}))
}
