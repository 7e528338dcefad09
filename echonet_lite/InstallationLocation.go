package echonet_lite

import "strconv"

// 設置場所コード (上位5ビット)。下位3ビットは場所番号です。
var installationLocations = []Option{
	{"Not specified", 0x00},
	{"Living Room", 0x08},
	{"Dining Room", 0x10},
	{"Kitchen", 0x18},
	{"Lavatory", 0x20},
	{"Washroom/changing room", 0x28},
	{"Passageway", 0x38},
	{"Room", 0x40},
	{"Stairway", 0x48},
	{"Front door", 0x50},
	{"Storeroom", 0x58},
	{"Garden/perimeter", 0x60},
	{"Garage", 0x68},
	{"Veranda/balcony", 0x70},
	{"Others", 0x78},
}

// InstallationLocationCodec は設置場所 (0x81) のコーデックです。
// 1バイト形式と17バイトの位置情報形式があり、それ以外の長さは "Unknown" になります。
type InstallationLocationCodec struct{}

func (InstallationLocationCodec) ItemType() string { return ItemTypeString }

func (InstallationLocationCodec) DecodeState(edt []byte) State {
	switch len(edt) {
	case 1:
	case 17:
		return Text("Position information")
	default:
		return Text("Unknown")
	}

	b0 := edt[0]
	for _, l := range installationLocations {
		if b0&0xf8 == l.Value {
			return Text(l.Name)
		}
	}
	switch {
	case b0 >= 0x80 && b0 <= 0xfe:
		return Text(strconv.Itoa(int(b0)))
	case b0 == 0xff:
		return Text("Indefinite")
	case b0 == 0x01:
		return Text("Position information")
	}
	return Text("Reserved")
}

func (InstallationLocationCodec) EncodeState(state State) ([]byte, error) {
	if s, ok := state.(Text); ok {
		for _, l := range installationLocations {
			if string(s) == l.Name {
				return []byte{l.Value}, nil
			}
		}
	}
	return nil, unsupported(state, "installation location")
}
