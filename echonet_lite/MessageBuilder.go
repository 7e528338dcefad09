package echonet_lite

// maxOPC は1フレームに格納できるプロパティ数の上限です (OPCは1バイト)。
const maxOPC = 255

// MessageBuilder は送信フレームを組み立てるカーソルです。
// Start でヘッダを書き込み、Append* でプロパティを追加するたびにヘッダの OPC を更新します。
// Start を呼ぶと以前の内容は破棄されます。並行利用はできません。
type MessageBuilder struct {
	buf []byte
}

func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{buf: make([]byte, 0, 256)}
}

// Start はヘッダを書き込みます。OPC は 0 で始まります。
func (b *MessageBuilder) Start(tid TIDType, source, destination InstanceKey, esv ESVType) {
	b.buf = b.buf[:0]
	b.buf = append(b.buf, byte(EHD_ECHONETLite>>8), byte(EHD_ECHONETLite&0xff))
	b.buf = append(b.buf, byte(tid>>8), byte(tid))
	b.buf = append(b.buf, source.EOJ.Encode()...)
	b.buf = append(b.buf, destination.EOJ.Encode()...)
	b.buf = append(b.buf, byte(esv), 0)
}

// AppendEPCRequest は EDT 無し (PDC=0) のプロパティを追加します。Get や INFC_Res で使います。
func (b *MessageBuilder) AppendEPCRequest(epc EPCType) error {
	return b.AppendEPCUpdate(epc, nil)
}

// AppendEPCUpdate は EPC, PDC, EDT を追加します。
func (b *MessageBuilder) AppendEPCUpdate(epc EPCType, edt []byte) error {
	if len(b.buf) < frameHeaderLen {
		panic("MessageBuilder: Append before Start")
	}
	if len(edt) > 0xff {
		return ErrEDTTooLong
	}
	if b.OPC() >= maxOPC {
		return ErrTooManyProperties
	}
	b.buf = append(b.buf, byte(epc), byte(len(edt)))
	b.buf = append(b.buf, edt...)
	b.buf[frameHeaderLen-1]++
	return nil
}

// OPC は現在のプロパティ数です。
func (b *MessageBuilder) OPC() int {
	if len(b.buf) < frameHeaderLen {
		return 0
	}
	return int(b.buf[frameHeaderLen-1])
}

// Bytes は組み立て済みのフレームのコピーを返します。
func (b *MessageBuilder) Bytes() []byte {
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out
}
