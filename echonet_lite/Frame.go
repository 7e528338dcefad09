package echonet_lite

import (
	"fmt"
	"strings"
)

// frameHeaderLen は EHD(2)+TID(2)+SEOJ(3)+DEOJ(3)+ESV(1)+OPC(1) のバイト数です。
const frameHeaderLen = 12

// Property は各プロパティ（EPC, PDC, EDT）を表します。PDC は len(EDT) です。
type Property struct {
	EPC EPCType // プロパティコード
	EDT []byte  // プロパティデータ
}

type Properties []Property

// Frame は受信したECHONET Liteフレームを表します。
type Frame struct {
	EHD              EHDType
	TID              TIDType
	SEOJ             EOJ
	DEOJ             EOJ
	ESV              ESVType
	Properties       Properties
	SetGetProperties Properties // SetGet系のときのGetプロパティ
}

func parseProperties(data []byte, pos int) (int, Properties, error) {
	if pos >= len(data) {
		return pos, nil, fmt.Errorf("%w: OPC missing at offset %d", ErrTruncatedProperty, pos)
	}
	OPC := int(data[pos])
	pos++
	properties := make(Properties, 0, OPC)
	for i := 0; i < OPC; i++ {
		if pos+2 > len(data) {
			return pos, nil, fmt.Errorf("%w: property %d/%d header at offset %d", ErrTruncatedProperty, i+1, OPC, pos)
		}
		prop := Property{
			EPC: EPCType(data[pos]),
		}
		PDC := int(data[pos+1])
		pos += 2
		if PDC > 0 {
			if pos+PDC > len(data) {
				return pos, nil, fmt.Errorf("%w: EPC %s wants %d bytes, %d left", ErrTruncatedProperty, prop.EPC, PDC, len(data)-pos)
			}
			prop.EDT = data[pos : pos+PDC]
			pos += PDC
		}
		properties = append(properties, prop)
	}
	return pos, properties, nil
}

// ParseFrame は受信したバイト列からECHONET Liteフレームをパースします。
// EDT は data を参照します。data を再利用する場合は呼び出し側でコピーしてください。
func ParseFrame(data []byte) (*Frame, error) {
	if len(data) < frameHeaderLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooShort, len(data))
	}

	frame := &Frame{
		EHD:  EHDType(data[0])<<8 | EHDType(data[1]),
		TID:  TIDType(data[2])<<8 | TIDType(data[3]),
		SEOJ: DecodeEOJ(data[4:7]),
		DEOJ: DecodeEOJ(data[7:10]),
		ESV:  ESVType(data[10]),
	}
	if frame.EHD != EHD_ECHONETLite {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEHD, frame.EHD)
	}

	pos, properties, err := parseProperties(data, 11)
	if err != nil {
		return nil, err
	}
	frame.Properties = properties

	if frame.ESV.ISSetGet() {
		_, properties, err = parseProperties(data, pos)
		if err != nil {
			return nil, err
		}
		frame.SetGetProperties = properties
	}
	return frame, nil
}

func (f *Frame) String() string {
	parts := []string{
		fmt.Sprintf("EHD:%v", f.EHD),
		fmt.Sprintf("TID:%d", f.TID),
		fmt.Sprintf("SEOJ:%v", f.SEOJ),
		fmt.Sprintf("DEOJ:%v", f.DEOJ),
		fmt.Sprintf("ESV:%v", f.ESV),
		fmt.Sprintf("Properties:%v", f.Properties),
	}
	if f.ESV.ISSetGet() {
		parts = append(parts, fmt.Sprintf("Properties(Get):%v", f.SetGetProperties))
	}
	return strings.Join(parts, ", ")
}

func (p Property) String() string {
	return fmt.Sprintf("%s:%X", p.EPC, p.EDT)
}

func (ps Properties) FindEPC(epc EPCType) (Property, bool) {
	for _, p := range ps {
		if p.EPC == epc {
			return p, true
		}
	}
	return Property{}, false
}

func (ps Properties) EPCs() []EPCType {
	epcs := make([]EPCType, 0, len(ps))
	for _, p := range ps {
		epcs = append(epcs, p.EPC)
	}
	return epcs
}
