package echonet_lite

import (
	"fmt"
	"net/netip"
	"strings"
)

// InstanceKey はリモート(またはローカル)の ECHONET オブジェクトを一意に識別します。
// 値として比較でき、map のキーとして使用します。
type InstanceKey struct {
	Addr netip.AddrPort
	EOJ  EOJ
}

func NewInstanceKey(addr netip.AddrPort, classCode EOJClassCode, instance EOJInstanceCode) InstanceKey {
	return InstanceKey{Addr: addr, EOJ: MakeEOJ(classCode, instance)}
}

func (k InstanceKey) ClassCode() EOJClassCode {
	return k.EOJ.ClassCode()
}

func (k InstanceKey) Instance() EOJInstanceCode {
	return k.EOJ.InstanceCode()
}

// WithEOJ は同じアドレス上の別オブジェクトのキーを返します。
func (k InstanceKey) WithEOJ(eoj EOJ) InstanceKey {
	return InstanceKey{Addr: k.Addr, EOJ: eoj}
}

func (k InstanceKey) String() string {
	return fmt.Sprintf("%v %v", k.Addr, k.EOJ)
}

var identifierReplacer = strings.NewReplacer(".", "_", ":", "_", "[", "", "]", "")

// Identifier は外部に公開するための識別子です。英数字とアンダースコアだけで構成されます。
// 例: "192_168_0_10_013001"
func (k InstanceKey) Identifier() string {
	return identifierReplacer.Replace(k.Addr.Addr().String()) + "_" + k.EOJ.IDString()
}

func (k InstanceKey) Compare(other InstanceKey) int {
	if c := k.Addr.Compare(other.Addr); c != 0 {
		return c
	}
	if k.EOJ > other.EOJ {
		return 1
	} else if k.EOJ < other.EOJ {
		return -1
	}
	return 0
}
