package mqtt

import "strings"

// Topics はトピック名を組み立てる
//
//	<prefix>/bridge/status            ブリッジの online/offline
//	<prefix>/<device>/status          デバイスの online/unreachable/removed
//	<prefix>/<device>/<channel>       チャンネルの値
//	<prefix>/<device>/<channel>/set   値の書き込み要求
type Topics struct {
	Prefix string
}

func (t Topics) join(parts ...string) string {
	if t.Prefix == "" {
		return strings.Join(parts, "/")
	}
	return t.Prefix + "/" + strings.Join(parts, "/")
}

func (t Topics) BridgeStatus() string {
	return t.join("bridge", "status")
}

func (t Topics) DeviceStatus(device string) string {
	return t.join(device, "status")
}

func (t Topics) State(device, channel string) string {
	return t.join(device, channel)
}

// SetFilter はすべての書き込み要求に一致するフィルタ
func (t Topics) SetFilter() string {
	return t.join("+", "+", "set")
}

// ParseSet は書き込み要求のトピックからデバイスとチャンネルを取り出す
func (t Topics) ParseSet(topic string) (device, channel string, ok bool) {
	rest := topic
	if t.Prefix != "" {
		var found bool
		rest, found = strings.CutPrefix(topic, t.Prefix+"/")
		if !found {
			return "", "", false
		}
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[2] != "set" || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
