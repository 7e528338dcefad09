package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WebSocketTransport はWebSocketサーバーのネットワーク層を抽象化するインターフェース
type WebSocketTransport interface {
	// SetMessageHandler はクライアントからメッセージを受信した時に呼び出されるハンドラを設定する
	// connID はクライアント接続を識別するための一意なID
	SetMessageHandler(handler func(connID string, message []byte) error)

	// SetConnectHandler は新しいクライアントが接続した時に呼び出されるハンドラを設定する
	SetConnectHandler(handler func(connID string) error)

	// SetDisconnectHandler はクライアントが切断した時に呼び出されるハンドラを設定する
	SetDisconnectHandler(handler func(connID string))

	// SendMessage は特定のクライアントにメッセージを送信する
	SendMessage(connID string, message []byte) error

	// BroadcastMessage は接続中の全クライアントにメッセージを送信する
	BroadcastMessage(message []byte) error
}

// clientConnection wraps a WebSocket connection with a mutex for safe concurrent writes
type clientConnection struct {
	conn  *websocket.Conn
	mutex sync.Mutex
}

func (c *clientConnection) write(messageType int, data []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

// DefaultWebSocketTransport は WebSocketTransport インターフェースのデフォルト実装
// http.Handler として任意の ServeMux に登録できる
type DefaultWebSocketTransport struct {
	ctx               context.Context
	cancel            context.CancelFunc
	logger            *slog.Logger
	upgrader          websocket.Upgrader
	clients           map[string]*clientConnection
	clientsMutex      sync.RWMutex
	handlersMutex     sync.RWMutex
	messageHandler    func(connID string, message []byte) error
	connectHandler    func(connID string) error
	disconnectHandler func(connID string)
}

// NewDefaultWebSocketTransport は DefaultWebSocketTransport の新しいインスタンスを作成する
func NewDefaultWebSocketTransport(ctx context.Context, logger *slog.Logger) *DefaultWebSocketTransport {
	if logger == nil {
		logger = slog.Default()
	}
	transportCtx, cancel := context.WithCancel(ctx)
	return &DefaultWebSocketTransport{
		ctx:    transportCtx,
		cancel: cancel,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow all origins for development
				return true
			},
		},
		clients: make(map[string]*clientConnection),
	}
}

// Serve は addr で待ち受け、path に WebSocket を、extra にその他のハンドラを登録して HTTP サーバーを起動する
// ready は待ち受けを開始した時点で閉じられる。ctx が終了するとサーバーを停止する
func (t *DefaultWebSocketTransport) Serve(ctx context.Context, addr, path string, extra map[string]http.Handler, ready chan<- net.Addr) error {
	mux := http.NewServeMux()
	mux.Handle(path, t)
	for p, h := range extra {
		mux.Handle(p, h)
	}

	// 先にリスナーをバインド
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if ready != nil {
		ready <- listener.Addr()
	}
	t.logger.Info("WebSocket server starting", "addr", listener.Addr(), "path", path)

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		_ = t.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			t.logger.Info("Error shutting down WebSocket server", "err", err)
		}
	}()

	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop は接続中のクライアントをすべて切断する
func (t *DefaultWebSocketTransport) Stop() error {
	t.cancel()
	t.clientsMutex.RLock()
	clients := make([]*clientConnection, 0, len(t.clients))
	for _, c := range t.clients {
		clients = append(clients, c)
	}
	t.clientsMutex.RUnlock()

	for _, c := range clients {
		c.mutex.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(writeWait))
		_ = c.conn.Close()
		c.mutex.Unlock()
	}
	return nil
}

// SetMessageHandler はクライアントからメッセージを受信した時に呼び出されるハンドラを設定する
func (t *DefaultWebSocketTransport) SetMessageHandler(handler func(connID string, message []byte) error) {
	t.handlersMutex.Lock()
	defer t.handlersMutex.Unlock()
	t.messageHandler = handler
}

// SetConnectHandler は新しいクライアントが接続した時に呼び出されるハンドラを設定する
func (t *DefaultWebSocketTransport) SetConnectHandler(handler func(connID string) error) {
	t.handlersMutex.Lock()
	defer t.handlersMutex.Unlock()
	t.connectHandler = handler
}

// SetDisconnectHandler はクライアントが切断した時に呼び出されるハンドラを設定する
func (t *DefaultWebSocketTransport) SetDisconnectHandler(handler func(connID string)) {
	t.handlersMutex.Lock()
	defer t.handlersMutex.Unlock()
	t.disconnectHandler = handler
}

func (t *DefaultWebSocketTransport) handlers() (func(string, []byte) error, func(string) error, func(string)) {
	t.handlersMutex.RLock()
	defer t.handlersMutex.RUnlock()
	return t.messageHandler, t.connectHandler, t.disconnectHandler
}

// ClientCount は接続中のクライアント数を返す
func (t *DefaultWebSocketTransport) ClientCount() int {
	t.clientsMutex.RLock()
	defer t.clientsMutex.RUnlock()
	return len(t.clients)
}

// isConnectionClosedError checks if the error indicates a closed connection
func isConnectionClosedError(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived) ||
		errors.Is(err, websocket.ErrCloseSent) ||
		errors.Is(err, net.ErrClosed) ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// removeClient はクライアントを取り除き、切断ハンドラを呼ぶ
// 既に取り除かれていたときは false を返す
func (t *DefaultWebSocketTransport) removeClient(connID string) bool {
	t.clientsMutex.Lock()
	_, exists := t.clients[connID]
	delete(t.clients, connID)
	t.clientsMutex.Unlock()
	if !exists {
		return false
	}

	if _, _, onDisconnect := t.handlers(); onDisconnect != nil && t.ctx.Err() == nil {
		onDisconnect(connID)
	}
	return true
}

// SendMessage は特定のクライアントにメッセージを送信する
func (t *DefaultWebSocketTransport) SendMessage(connID string, message []byte) error {
	t.clientsMutex.RLock()
	client, exists := t.clients[connID]
	t.clientsMutex.RUnlock()

	if !exists {
		return fmt.Errorf("client with ID %s not found", connID)
	}

	if err := client.write(websocket.TextMessage, message); err != nil {
		if isConnectionClosedError(err) {
			t.removeClient(connID)
		}
		return fmt.Errorf("failed to send message to client %s: %w", connID, err)
	}
	return nil
}

// BroadcastMessage は接続中の全クライアントにメッセージを送信する
func (t *DefaultWebSocketTransport) BroadcastMessage(message []byte) error {
	t.clientsMutex.RLock()
	clients := make(map[string]*clientConnection, len(t.clients))
	for connID, client := range t.clients {
		clients[connID] = client
	}
	t.clientsMutex.RUnlock()

	var disconnectedClients []string
	for connID, client := range clients {
		if err := client.write(websocket.TextMessage, message); err != nil {
			if isConnectionClosedError(err) {
				disconnectedClients = append(disconnectedClients, connID)
			} else {
				t.logger.Error("Error broadcasting message to client", "err", err, "connID", connID)
			}
		}
	}

	for _, connID := range disconnectedClients {
		t.removeClient(connID)
	}
	return nil
}

// ServeHTTP はWebSocket接続を処理する
func (t *DefaultWebSocketTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.logger.Error("Error upgrading to WebSocket", "err", err, "remote_addr", r.RemoteAddr)
		return
	}
	defer conn.Close()

	connID := fmt.Sprintf("%p", conn)
	client := &clientConnection{conn: conn}
	t.clientsMutex.Lock()
	t.clients[connID] = client
	t.clientsMutex.Unlock()
	defer t.removeClient(connID)

	onMessage, onConnect, _ := t.handlers()
	if onConnect != nil {
		if err := onConnect(connID); err != nil {
			t.logger.Error("Error in connect handler", "err", err)
			return
		}
	}

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	stopPing := make(chan struct{})
	defer close(stopPing)
	go t.pingLoop(client, stopPing)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived) {
				t.logger.Error("Unexpected WebSocket close error", "err", err)
			}
			return
		}
		if onMessage != nil {
			if err := onMessage(connID, message); err != nil && !isConnectionClosedError(err) {
				t.logger.Warn("Error in message handler", "err", err, "connID", connID)
			}
		}
	}
}

func (t *DefaultWebSocketTransport) pingLoop(client *clientConnection, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			client.mutex.Lock()
			err := client.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			client.mutex.Unlock()
			if err != nil {
				return
			}
		case <-stop:
			return
		case <-t.ctx.Done():
			return
		}
	}
}
