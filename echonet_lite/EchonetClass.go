package echonet_lite

import (
	"cmp"
	"fmt"

	"golang.org/x/exp/slices"
)

// EchonetClass はクラスカタログの1エントリです。
// カタログに無いクラスは known=false のまま Code だけを保持します。
type EchonetClass struct {
	Code        EOJClassCode
	Description string
	known       bool
}

func (c *EchonetClass) GroupCode() ClassGroupCodeType {
	return c.Code.ClassGroupCode()
}

func (c *EchonetClass) ClassCode() ClassCodeType {
	return c.Code.ClassCode()
}

// Known はカタログに登録されたクラスかどうかを返します。
func (c *EchonetClass) Known() bool {
	return c.known
}

func (c *EchonetClass) String() string {
	if !c.known {
		return fmt.Sprintf("%04X(Unknown)", uint16(c.Code))
	}
	return fmt.Sprintf("%04X(%s)", uint16(c.Code), c.Description)
}

// ClassIndex はクラスグループコード/クラスコードの組から EchonetClass を引く不変の索引です。
type ClassIndex struct {
	classes map[EOJClassCode]*EchonetClass
}

func NewClassIndex(tables ...PropertyTable) *ClassIndex {
	idx := &ClassIndex{classes: make(map[EOJClassCode]*EchonetClass, len(tables))}
	for _, t := range tables {
		idx.classes[t.ClassCode] = &EchonetClass{Code: t.ClassCode, Description: t.Description, known: true}
	}
	return idx
}

// Resolve は失敗しません。未知のコードには Known() が false のクラスを返します。
func (idx *ClassIndex) Resolve(groupCode ClassGroupCodeType, classCode ClassCodeType) *EchonetClass {
	return idx.Lookup(MakeEOJClassCode(groupCode, classCode))
}

func (idx *ClassIndex) Lookup(code EOJClassCode) *EchonetClass {
	if idx != nil {
		if c, ok := idx.classes[code]; ok {
			return c
		}
	}
	return &EchonetClass{Code: code, Description: "Unknown"}
}

func (idx *ClassIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.classes)
}

// All はカタログに登録されたクラスをコード順に返します。
func (idx *ClassIndex) All() []*EchonetClass {
	if idx == nil {
		return nil
	}
	classes := make([]*EchonetClass, 0, len(idx.classes))
	for _, c := range idx.classes {
		classes = append(classes, c)
	}
	slices.SortFunc(classes, func(a, b *EchonetClass) int {
		return cmp.Compare(a.Code, b.Code)
	})
	return classes
}
