package echonet_lite

import (
	"golang.org/x/exp/slices"
)

// Catalog はクラスとプロパティの不変のカタログです。起動時に1度だけ作成し、
// 必要なコンポーネントに渡して使います。並行に読み出して構いません。
type Catalog struct {
	classes    *ClassIndex
	superClass map[EPCType]*Epc
	byCode     map[EOJClassCode]map[EPCType]*Epc
	byChannel  map[EOJClassCode]map[string]*Epc
}

// NewCatalog は機器オブジェクトスーパークラスとクラスごとのテーブルからカタログを作ります。
// スーパークラスのプロパティは機器オブジェクト (クラスグループ 0x00〜0x06) にだけ適用され、
// クラス側に同じ EPC があればクラス側が優先されます。
func NewCatalog(superClass PropertyTable, tables ...PropertyTable) *Catalog {
	c := &Catalog{
		classes:    NewClassIndex(tables...),
		superClass: make(map[EPCType]*Epc, len(superClass.Properties)),
		byCode:     make(map[EOJClassCode]map[EPCType]*Epc, len(tables)),
		byChannel:  make(map[EOJClassCode]map[string]*Epc, len(tables)),
	}
	for i := range superClass.Properties {
		e := superClass.Properties[i]
		c.superClass[e.Code] = &e
	}
	for _, t := range tables {
		codes := make(map[EPCType]*Epc)
		if t.ClassCode.IsDeviceObject() {
			for code, e := range c.superClass {
				codes[code] = e
			}
		}
		for i := range t.Properties {
			e := t.Properties[i]
			codes[e.Code] = &e
		}
		channels := make(map[string]*Epc, len(codes))
		for _, e := range codes {
			if e.Known() {
				channels[e.ChannelID] = e
			}
		}
		c.byCode[t.ClassCode] = codes
		c.byChannel[t.ClassCode] = channels
	}
	return c
}

func (c *Catalog) Classes() *ClassIndex {
	return c.classes
}

func (c *Catalog) Resolve(groupCode ClassGroupCodeType, classCode ClassCodeType) *EchonetClass {
	return c.classes.Resolve(groupCode, classCode)
}

func (c *Catalog) codes(class EOJClassCode) map[EPCType]*Epc {
	if codes, ok := c.byCode[class]; ok {
		return codes
	}
	if class.IsDeviceObject() {
		return c.superClass
	}
	return nil
}

// Lookup は失敗しません。未知のプロパティには Known() が false で
// HexStringCodec を持つ Epc を返します。
func (c *Catalog) Lookup(class EOJClassCode, code EPCType) *Epc {
	if e, ok := c.codes(class)[code]; ok {
		return e
	}
	return &Epc{Code: code, Name: "Unknown", Codec: HexStringCodec{}}
}

func (c *Catalog) LookupChannel(class EOJClassCode, channelID string) (*Epc, bool) {
	if channels, ok := c.byChannel[class]; ok {
		e, ok := channels[channelID]
		return e, ok
	}
	if class.IsDeviceObject() {
		for _, e := range c.superClass {
			if e.ChannelID == channelID && e.Known() {
				return e, true
			}
		}
	}
	return nil, false
}

// Properties はクラスで公開しているチャンネルを EPC の昇順で返します。
func (c *Catalog) Properties(class EOJClassCode) []*Epc {
	codes := c.codes(class)
	result := make([]*Epc, 0, len(codes))
	for _, e := range codes {
		if e.Known() {
			result = append(result, e)
		}
	}
	slices.SortFunc(result, func(a, b *Epc) int {
		return int(a.Code) - int(b.Code)
	})
	return result
}
