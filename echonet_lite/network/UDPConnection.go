package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"time"

	"golang.org/x/exp/slices"
)

// Config は UDPConnection の設定です。
type Config struct {
	ListenIP    netip.Addr // 無効値または 0.0.0.0 のときはワイルドカード
	Port        int
	MulticastIP netip.Addr // 無効値のときはマルチキャストグループに参加しない
	// MonitorInterval が正のとき、ネットワークインターフェースの変化を監視して
	// 自送信判定に使うローカルIPを更新します。
	MonitorInterval time.Duration
	Logger          *slog.Logger
}

// UDPConnection は ECHONET Lite の UDP ソケットを管理します。
// IPv4 のユニキャストとマルチキャストを受信し、自分が送信したパケットは捨てます。
type UDPConnection struct {
	conn        *net.UDPConn
	port        int
	multicastIP netip.Addr
	logger      *slog.Logger

	mu       sync.RWMutex
	localIPs []netip.Addr

	monitor *networkMonitor
}

// networkMonitor はネットワークインターフェースの監視を行います
type networkMonitor struct {
	cancel     context.CancelFunc
	done       chan struct{} // goroutine終了通知用
	interfaces []net.Interface
}

// CreateUDPConnection はソケットを開きます。IPv6 のアドレスはエラーになります。
func CreateUDPConnection(ctx context.Context, cfg Config) (*UDPConnection, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ListenIP.IsValid() && !cfg.ListenIP.Is4() {
		return nil, fmt.Errorf("IPv6 not supported for listen ip: %v", cfg.ListenIP)
	}

	var conn *net.UDPConn
	var err error
	if cfg.MulticastIP.IsValid() {
		if !cfg.MulticastIP.Is4() || !cfg.MulticastIP.IsMulticast() {
			return nil, fmt.Errorf("not an IPv4 multicast address: %v", cfg.MulticastIP)
		}
		gaddr := net.UDPAddrFromAddrPort(netip.AddrPortFrom(cfg.MulticastIP, uint16(cfg.Port)))
		conn, err = net.ListenMulticastUDP("udp4", nil, gaddr)
		if err != nil {
			return nil, fmt.Errorf("failed to ListenMulticastUDP: %w", err)
		}
	} else {
		bindIP := cfg.ListenIP
		if !bindIP.IsValid() {
			bindIP = netip.IPv4Unspecified()
		}
		conn, err = net.ListenUDP("udp4", net.UDPAddrFromAddrPort(netip.AddrPortFrom(bindIP, uint16(cfg.Port))))
		if err != nil {
			return nil, err
		}
	}

	c := &UDPConnection{
		conn:        conn,
		port:        conn.LocalAddr().(*net.UDPAddr).Port,
		multicastIP: cfg.MulticastIP,
		logger:      logger,
	}
	c.localIPs = c.collectLocalIPs()

	if cfg.MonitorInterval > 0 {
		c.startNetworkMonitor(ctx, cfg.MonitorInterval)
	}
	return c, nil
}

// collectLocalIPs はローカルIPに、Listen しているアドレス (Unspecified でない場合) を加えて返します。
func (c *UDPConnection) collectLocalIPs() []netip.Addr {
	localIPs, err := GetLocalIPv4s()
	if err != nil {
		c.logger.Warn("could not reliably determine local IPs for self-message filtering", "err", err)
	}
	listen := c.conn.LocalAddr().(*net.UDPAddr).AddrPort().Addr().Unmap()
	if listen.Is4() && !listen.IsUnspecified() && !slices.Contains(localIPs, listen) {
		localIPs = append(localIPs, listen)
	}
	return localIPs
}

// LocalAddr は実際に Listen しているアドレスです。
func (c *UDPConnection) LocalAddr() netip.AddrPort {
	return c.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

// isSelfPacket は指定されたアドレスが自身のいずれかのローカルIPとポートから送信されたものかを確認します
func (c *UDPConnection) isSelfPacket(src netip.AddrPort) bool {
	if int(src.Port()) != c.port {
		return false
	}
	return c.IsLocalIP(src.Addr())
}

// IsLocalIP は指定されたIPアドレスが自身のローカルIPのいずれかと一致するかを確認します
func (c *UDPConnection) IsLocalIP(ip netip.Addr) bool {
	ip = ip.Unmap()
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Contains(c.localIPs, ip)
}

// Close はソケットを閉じます
func (c *UDPConnection) Close() error {
	c.stopNetworkMonitor()
	return c.conn.Close()
}

// SendTo は指定先にデータを送信します
func (c *UDPConnection) SendTo(dst netip.AddrPort, data []byte) (int, error) {
	return c.conn.WriteToUDPAddrPort(data, dst)
}

// bufferPool は受信バッファのプールです
var bufferPool = sync.Pool{
	New: func() interface{} { return make([]byte, 1500) },
}

// Receive は UDP パケットを1つ受信し、データと送信元アドレスを返します。
// 自送信パケットは読み飛ばします。ctx がキャンセルされると ctx.Err() を返します。
func (c *UDPConnection) Receive(ctx context.Context) ([]byte, netip.AddrPort, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(deadline)
	} else {
		_ = c.conn.SetReadDeadline(time.Time{})
	}

	type result struct {
		data []byte
		addr netip.AddrPort
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		buf := bufferPool.Get().([]byte)
		defer bufferPool.Put(buf)
		for {
			n, addr, err := c.conn.ReadFromUDPAddrPort(buf)
			if err != nil {
				ch <- result{err: err}
				return
			}
			addr = netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())
			if c.isSelfPacket(addr) {
				continue
			}
			data := make([]byte, n)
			copy(data, buf[:n])
			ch <- result{data: data, addr: addr}
			return
		}
	}()

	select {
	case <-ctx.Done():
		_ = c.conn.SetReadDeadline(time.Now())
		<-ch
		return nil, netip.AddrPort{}, ctx.Err()
	case res := <-ch:
		var ne net.Error
		if res.err != nil && errors.As(res.err, &ne) && ne.Timeout() {
			// ctx の deadline によるタイムアウトは ctx のエラーとして返す
			if err := ctx.Err(); err != nil {
				return nil, netip.AddrPort{}, err
			}
			if _, ok := ctx.Deadline(); ok {
				return nil, netip.AddrPort{}, context.DeadlineExceeded
			}
		}
		return res.data, res.addr, res.err
	}
}

func (c *UDPConnection) startNetworkMonitor(ctx context.Context, interval time.Duration) {
	monitorCtx, cancel := context.WithCancel(ctx)
	m := &networkMonitor{cancel: cancel, done: make(chan struct{})}
	if interfaces, err := net.Interfaces(); err == nil {
		m.interfaces = interfaces
	} else {
		c.logger.Warn("ネットワークインターフェース情報の取得に失敗", "err", err)
	}
	c.monitor = m

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				c.monitorNetworkChanges(m)
			}
		}
	}()
	c.logger.Debug("ネットワーク監視が開始されました", "interval", interval)
}

func (c *UDPConnection) stopNetworkMonitor() {
	if c.monitor == nil {
		return
	}
	c.monitor.cancel()
	<-c.monitor.done
	c.monitor = nil
}

// IsNetworkMonitorEnabled はネットワーク監視が有効かどうかを返します
func (c *UDPConnection) IsNetworkMonitorEnabled() bool {
	return c.monitor != nil
}

// monitorNetworkChanges はインターフェースが変化していればローカルIPを取り直します
func (c *UDPConnection) monitorNetworkChanges(m *networkMonitor) {
	current, err := net.Interfaces()
	if err != nil {
		c.logger.Warn("ネットワークインターフェース情報の取得に失敗", "err", err)
		return
	}
	if !hasNetworkChanged(m.interfaces, current) {
		return
	}
	m.interfaces = current
	localIPs := c.collectLocalIPs()
	c.mu.Lock()
	c.localIPs = localIPs
	c.mu.Unlock()
	c.logger.Info("ネットワークインターフェースの変更を検出しました", "localIPs", len(localIPs))
}

// hasNetworkChanged はインターフェースの名前とフラグを比較します
func hasNetworkChanged(previous, current []net.Interface) bool {
	if len(previous) != len(current) {
		return true
	}
	prevMap := make(map[string]net.Flags, len(previous))
	for _, iface := range previous {
		prevMap[iface.Name] = iface.Flags
	}
	for _, iface := range current {
		if prevFlags, exists := prevMap[iface.Name]; !exists || prevFlags != iface.Flags {
			return true
		}
	}
	return false
}
