package echonet_lite

import (
	"net/netip"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testController = NewInstanceKey(netip.MustParseAddrPort("192.168.0.2:3610"), Controller_ClassCode, 1)
	testAircon     = NewInstanceKey(netip.MustParseAddrPort("192.168.0.10:3610"), HomeAirConditioner_ClassCode, 1)
)

func TestMessageBuilder_Get(t *testing.T) {
	b := NewMessageBuilder()
	b.Start(0x1234, testController, testAircon, ESVGet)
	require.NoError(t, b.AppendEPCRequest(EPCOperationStatus))
	require.NoError(t, b.AppendEPCRequest(EPC_HAC_TemperatureSetting))

	expected := []byte{
		0x10, 0x81, // EHD
		0x12, 0x34, // TID
		0x05, 0xff, 0x01, // SEOJ
		0x01, 0x30, 0x01, // DEOJ
		0x62,       // ESV
		0x02,       // OPC
		0x80, 0x00, // EPC, PDC
		0xb3, 0x00,
	}
	if diff := cmp.Diff(expected, b.Bytes()); diff != "" {
		t.Errorf("frame mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, b.OPC())
}

func TestMessageBuilder_StartResets(t *testing.T) {
	b := NewMessageBuilder()
	b.Start(1, testController, testAircon, ESVSetC)
	require.NoError(t, b.AppendEPCUpdate(EPCOperationStatus, []byte{0x30}))

	b.Start(2, testController, testAircon, ESVGet)
	assert.Equal(t, 0, b.OPC())
	assert.Len(t, b.Bytes(), frameHeaderLen)
}

func TestMessageBuilder_Limits(t *testing.T) {
	b := NewMessageBuilder()
	b.Start(1, testController, testAircon, ESVSetC)
	assert.ErrorIs(t, b.AppendEPCUpdate(0x80, make([]byte, 256)), ErrEDTTooLong)

	for i := 0; i < maxOPC; i++ {
		require.NoError(t, b.AppendEPCRequest(EPCType(i)))
	}
	assert.ErrorIs(t, b.AppendEPCRequest(0x80), ErrTooManyProperties)
}

func TestFrame_RoundTrip(t *testing.T) {
	requested := []EPCType{0x80, 0x81, 0xb0, 0xb3, 0xbb}

	b := NewMessageBuilder()
	b.Start(7, testController, testAircon, ESVGet)
	for _, epc := range requested {
		require.NoError(t, b.AppendEPCRequest(epc))
	}

	frame, err := ParseFrame(b.Bytes())
	require.NoError(t, err)
	assert.Equal(t, TIDType(7), frame.TID)
	assert.Equal(t, ESVGet, frame.ESV)
	assert.Equal(t, testController.EOJ, frame.SEOJ)
	assert.Equal(t, testAircon.EOJ, frame.DEOJ)
	assert.Equal(t, requested, frame.Properties.EPCs())
	for _, p := range frame.Properties {
		assert.Empty(t, p.EDT, "Get の EDT は空")
	}
}

func TestFrame_DecodeIsIdempotent(t *testing.T) {
	b := NewMessageBuilder()
	b.Start(9, testAircon, testController, ESVGet_Res)
	require.NoError(t, b.AppendEPCUpdate(EPCOperationStatus, []byte{0x30}))
	require.NoError(t, b.AppendEPCUpdate(EPC_HAC_CurrentRoomTemperature, []byte{0x19}))
	data := b.Bytes()

	first, err := ParseFrame(data)
	require.NoError(t, err)
	second, err := ParseFrame(data)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("decode differs (-first +second):\n%s", diff)
	}
	p, ok := first.Properties.FindEPC(EPC_HAC_CurrentRoomTemperature)
	require.True(t, ok)
	assert.Equal(t, []byte{0x19}, p.EDT)
}

func TestParseFrame_Malformed(t *testing.T) {
	b := NewMessageBuilder()
	b.Start(9, testAircon, testController, ESVGet_Res)
	require.NoError(t, b.AppendEPCUpdate(EPCOperationStatus, []byte{0x30}))
	valid := b.Bytes()

	tests := []struct {
		name string
		data []byte
		err  error
	}{
		{"empty", nil, ErrFrameTooShort},
		{"header only", valid[:11], ErrFrameTooShort},
		{"bad EHD", append([]byte{0x10, 0x82}, valid[2:]...), ErrInvalidEHD},
		{"missing EDT", valid[:len(valid)-1], ErrTruncatedProperty},
		{"missing PDC", valid[:len(valid)-2], ErrTruncatedProperty},
		{"OPC too large", func() []byte {
			d := append([]byte(nil), valid...)
			d[11] = 3
			return d
		}(), ErrTruncatedProperty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := ParseFrame(tt.data)
			assert.Nil(t, frame)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestParseFrame_SetGet(t *testing.T) {
	data := []byte{
		0x10, 0x81, 0x00, 0x01,
		0x05, 0xff, 0x01, 0x01, 0x30, 0x01,
		0x6e,
		0x01, 0x80, 0x01, 0x30, // Set
		0x02, 0x80, 0x00, 0xb0, 0x00, // Get
	}
	frame, err := ParseFrame(data)
	require.NoError(t, err)
	assert.Equal(t, []EPCType{0x80}, frame.Properties.EPCs())
	assert.Equal(t, []EPCType{0x80, 0xb0}, frame.SetGetProperties.EPCs())

	_, err = ParseFrame(data[:len(data)-4])
	assert.ErrorIs(t, err, ErrTruncatedProperty)
}

func TestESVType(t *testing.T) {
	tests := []struct {
		esv     ESVType
		name    string
		request bool
		sna     bool
		setGet  bool
	}{
		{ESVGet, "Get", true, false, false},
		{ESVSetC, "SetC", true, false, false},
		{ESVGet_Res, "Get_Res", false, false, false},
		{ESVINFC, "INFC", false, false, false},
		{ESVGet_SNA, "Get_SNA", false, true, false},
		{ESVSetC_SNA, "SetC_SNA", false, true, false},
		{ESVSetGet, "SetGet", true, false, true},
		{ESVSetGet_Res, "SetGet_Res", false, false, true},
		{ESVSetGet_SNA, "SetGet_SNA", false, true, true},
		{ESVType(0x99), "(99)", false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.esv.String())
			assert.Equal(t, tt.request, tt.esv.IsRequest())
			assert.Equal(t, tt.sna, tt.esv.IsSNA())
			assert.Equal(t, tt.setGet, tt.esv.ISSetGet())
		})
	}
}
