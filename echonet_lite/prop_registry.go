package echonet_lite

import "reflect"

// PropertyRegistry のメソッドのうち PropertyTable を返すものがクラス定義です。
type PropertyRegistry struct{}

// BuildPropertyTables は PropertyRegistry に定義されたすべてのクラスのテーブルを返します。
func BuildPropertyTables() []PropertyTable {
	var result []PropertyTable

	var registry any = &PropertyRegistry{}
	t := reflect.TypeOf(registry)
	v := reflect.ValueOf(registry)
	for i := range t.NumMethod() {
		method := t.Method(i)
		if method.Type.NumOut() == 1 && method.Type.Out(0) == reflect.TypeOf(PropertyTable{}) {
			result = append(result, v.Method(i).Call(nil)[0].Interface().(PropertyTable))
		}
	}
	return result
}

// DefaultCatalog は組み込みのすべてのクラスを含むカタログを作ります。
func DefaultCatalog() *Catalog {
	return NewCatalog(DeviceSuperClass_PropertyTable, BuildPropertyTables()...)
}

// readOnly はコーデックのエンコード側を隠します。
type readOnly struct {
	StateDecoder
}
