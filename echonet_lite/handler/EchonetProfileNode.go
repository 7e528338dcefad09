package handler

import (
	"echonet-bridge/echonet_lite"
	"time"
)

// EchonetProfileNode はノードプロファイルに自ノードインスタンスリストSを問い合わせ、
// 見つかったオブジェクトを onInstance に渡します。
// マルチキャストアドレスに置くと、応答したすべてのノードのインスタンスを列挙できます。
type EchonetProfileNode struct {
	baseObject
	onInstance func(key echonet_lite.InstanceKey)
}

// newEchonetProfileNode は discoveryInterval ごとにインスタンスリストを要求するノードを作ります。
// 再送回数を使い切っても到達不能は通知しません。
func newEchonetProfileNode(key echonet_lite.InstanceKey, cfg objectConfig, discoveryInterval time.Duration, onInstance func(echonet_lite.InstanceKey)) *EchonetProfileNode {
	cfg.pollInterval = discoveryInterval
	return &EchonetProfileNode{
		baseObject: newBaseObject(key, cfg, echonet_lite.EPC_NPO_SelfNodeInstanceListS),
		onInstance: onInstance,
	}
}

func (n *EchonetProfileNode) buildPollMessage(b *echonet_lite.MessageBuilder, tids func() echonet_lite.TIDType, now time.Time, controller echonet_lite.InstanceKey) bool {
	return n.pollGets(b, tids, now, controller)
}

func (n *EchonetProfileNode) buildUpdateMessage(*echonet_lite.MessageBuilder, func() echonet_lite.TIDType, time.Time, echonet_lite.InstanceKey) bool {
	return false
}

func (n *EchonetProfileNode) applyHeader(esv echonet_lite.ESVType, tid echonet_lite.TIDType, now time.Time) {
	// マルチキャストへの要求には複数のノードが同じ tid で応答する。
	// 2つ目以降の応答だけを無視し、タイムアウト後の応答は matchHeader で記録する
	if (esv == echonet_lite.ESVGet_Res || esv == echonet_lite.ESVGet_SNA) && n.getInflight.Answered(tid) {
		return
	}
	n.matchHeader(esv, tid, now)
}

func (n *EchonetProfileNode) applyProperty(source echonet_lite.InstanceKey, esv echonet_lite.ESVType, code echonet_lite.EPCType, edt []byte) {
	if source.ClassCode() != echonet_lite.NodeProfile_ClassCode {
		return
	}
	if code != echonet_lite.EPC_NPO_SelfNodeInstanceListS && code != echonet_lite.EPC_NPO_InstanceListNotification {
		return
	}
	if len(edt) == 0 {
		n.logger.Debug("インスタンスリストが空です", "from", source, "esv", esv)
		return
	}

	eojs, err := echonet_lite.DecodeInstanceList(edt)
	if err != nil {
		n.logger.Warn("インスタンスリストの解析に失敗しました", "from", source, "err", err, "found", len(eojs))
	}
	for _, eoj := range eojs {
		n.onInstance(source.WithEOJ(eoj))
	}
}

func (n *EchonetProfileNode) refresh(string) error {
	n.refreshDue = true
	return nil
}

func (n *EchonetProfileNode) update(string, echonet_lite.State) error {
	return ErrUnknownChannel
}

func (n *EchonetProfileNode) removed() {
	n.pendingGets = echonet_lite.NewPropertyMap()
}
