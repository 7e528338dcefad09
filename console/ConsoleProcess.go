package console

import (
	"echonet-bridge/echonet_lite"
	"echonet-bridge/echonet_lite/handler"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/c-bata/go-prompt"
)

// Controller はコンソールから操作する Messenger の API です。
type Controller interface {
	NewDevice(key echonet_lite.InstanceKey, cfg handler.DeviceConfig, listener handler.DeviceListener) error
	RemoveDevice(key echonet_lite.InstanceKey) error
	RefreshDevice(key echonet_lite.InstanceKey, channelID string) error
	UpdateDevice(key echonet_lite.InstanceKey, channelID string, state echonet_lite.State) error
	Devices() ([]handler.DeviceInfo, error)
	StartDiscovery(listener handler.DiscoveryListener, duration time.Duration) error
	StopDiscovery() error
}

// Console は対話的なコマンド入力を処理します。
type Console struct {
	ctrl        Controller
	catalog     *echonet_lite.Catalog
	listenerFor func(echonet_lite.InstanceKey) handler.DeviceListener
	out         io.Writer
	outMu       sync.Mutex
	historyFile string
	history     []string
	quit        bool
}

// NewConsole は add で登録するデバイスに listenerFor の listener を付けるコンソールを作ります。
func NewConsole(ctrl Controller, catalog *echonet_lite.Catalog, listenerFor func(echonet_lite.InstanceKey) handler.DeviceListener, out io.Writer) *Console {
	if listenerFor == nil {
		listenerFor = func(echonet_lite.InstanceKey) handler.DeviceListener { return handler.NopDeviceListener{} }
	}
	return &Console{
		ctrl:        ctrl,
		catalog:     catalog,
		listenerFor: listenerFor,
		out:         out,
	}
}

func (c *Console) printf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	_, _ = fmt.Fprintf(c.out, format, args...)
}

// Quit は quit コマンドが実行されたかどうかを返します。
func (c *Console) Quit() bool {
	return c.quit
}

// Execute は1行分のコマンドを実行します。
func (c *Console) Execute(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	c.addHistory(line)

	args := splitWords(line)
	def, ok := findCommand(args[0])
	if !ok {
		c.printf("エラー: 不明なコマンド: %s (help で一覧を表示)\n", args[0])
		return
	}
	if err := def.Run(c, args); err != nil {
		if errors.Is(err, errQuit) {
			c.quit = true
			return
		}
		c.printf("エラー: %v\n", err)
	}
}

// Run はプロンプトを表示し、quit が実行されるか入力が終わるまで戻りません。
func (c *Console) Run() {
	c.historyFile = getHistoryFilePath()
	c.history = loadHistory(c.historyFile)
	defer func() {
		saveHistory(c.historyFile, c.history)
	}()

	c.printf("help for usage, quit to exit\n")
	p := prompt.New(
		c.Execute,
		c.Complete,
		prompt.OptionPrefix("> "),
		prompt.OptionTitle("echonet-bridge"),
		prompt.OptionHistory(c.history),
		prompt.OptionSetExitCheckerOnInput(func(string, bool) bool { return c.quit }),
	)
	p.Run()
}

// resolve は args[1] のデバイスを探す。args が min 個に満たなければ使い方を返す
func (c *Console) resolve(args []string, min int, usage string) (handler.DeviceInfo, error) {
	if len(args) < min {
		return handler.DeviceInfo{}, fmt.Errorf("使い方: %s", usage)
	}
	infos, err := c.ctrl.Devices()
	if err != nil {
		return handler.DeviceInfo{}, err
	}
	return findDevice(infos, args[1])
}

func (c *Console) addHistory(line string) {
	if n := len(c.history); n > 0 && c.history[n-1] == line {
		return
	}
	c.history = append(c.history, line)
}
