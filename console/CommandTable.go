package console

import (
	"echonet-bridge/echonet_lite"
	"echonet-bridge/echonet_lite/handler"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/c-bata/go-prompt"
	"golang.org/x/exp/slices"
)

// errQuit は quit コマンドが実行されたことを示す
var errQuit = errors.New("quit")

const defaultDiscoverDuration = 30 * time.Second

// CommandDefinition はコマンドの定義を保持する構造体
type CommandDefinition struct {
	Name       string                                           // コマンド名
	Aliases    []string                                         // 別名（例: devicesとlistなど）
	Summary    string                                           // 概要（短い説明）
	Syntax     string                                           // 構文
	Run        func(c *Console, args []string) error            // 実行関数。args[0] はコマンド名
	Candidates func(c *Console, args []string) []prompt.Suggest // 補完候補生成関数。args は入力中の単語を含む
}

// CommandTable はコマンドの定義を格納するテーブル
var CommandTable []CommandDefinition

func init() {
	// help が CommandTable を参照するため init で組み立てる
	CommandTable = []CommandDefinition{
		{
			Name:    "devices",
			Aliases: []string{"list"},
			Summary: "デバイスの一覧と現在の値を表示",
			Syntax:  "devices [device]",
			Run:     runDevices,
			Candidates: func(c *Console, args []string) []prompt.Suggest {
				if len(args) == 2 {
					return c.deviceCandidates()
				}
				return nil
			},
		},
		{
			Name:    "add",
			Summary: "デバイスを登録",
			Syntax:  "add <ipAddress[:port]> <classCode:instanceCode> [pollInterval]",
			Run:     runAdd,
			Candidates: func(c *Console, args []string) []prompt.Suggest {
				if len(args) == 3 {
					return c.classCandidates()
				}
				return nil
			},
		},
		{
			Name:       "remove",
			Summary:    "デバイスの登録を取り消す",
			Syntax:     "remove <device>",
			Run:        runRemove,
			Candidates: deviceThenChannel(false),
		},
		{
			Name:       "refresh",
			Aliases:    []string{"get"},
			Summary:    "値を取得し直す",
			Syntax:     "refresh <device> [channel]",
			Run:        runRefresh,
			Candidates: deviceThenChannel(true),
		},
		{
			Name:    "set",
			Summary: "値を書き込む",
			Syntax:  "set <device> <channel> <value>",
			Run:     runSet,
			Candidates: func(c *Console, args []string) []prompt.Suggest {
				if len(args) == 4 {
					return c.valueCandidates(args[1], args[2])
				}
				return deviceThenChannel(true)(c, args)
			},
		},
		{
			Name:    "channels",
			Summary: "デバイスのチャンネルと型を表示",
			Syntax:  "channels <device>",
			Run:     runChannels,
			Candidates: func(c *Console, args []string) []prompt.Suggest {
				if len(args) == 2 {
					return c.deviceCandidates()
				}
				return nil
			},
		},
		{
			Name:    "discover",
			Summary: "ネットワーク上のデバイスを探索",
			Syntax:  "discover [seconds|stop]",
			Run:     runDiscover,
			Candidates: func(c *Console, args []string) []prompt.Suggest {
				if len(args) == 2 {
					return []prompt.Suggest{{Text: "stop", Description: "探索を終了"}}
				}
				return nil
			},
		},
		{
			Name:    "help",
			Summary: "コマンドの一覧を表示",
			Syntax:  "help [command]",
			Run:     runHelp,
			Candidates: func(c *Console, args []string) []prompt.Suggest {
				if len(args) == 2 {
					return commandCandidates()
				}
				return nil
			},
		},
		{
			Name:    "quit",
			Aliases: []string{"exit"},
			Summary: "終了",
			Syntax:  "quit",
			Run:     func(*Console, []string) error { return errQuit },
		},
	}
}

// findCommand は名前または別名からコマンドを探す
func findCommand(name string) (*CommandDefinition, bool) {
	for i := range CommandTable {
		def := &CommandTable[i]
		if def.Name == name || slices.Contains(def.Aliases, name) {
			return def, true
		}
	}
	return nil, false
}

func deviceThenChannel(withChannel bool) func(c *Console, args []string) []prompt.Suggest {
	return func(c *Console, args []string) []prompt.Suggest {
		switch {
		case len(args) == 2:
			return c.deviceCandidates()
		case len(args) == 3 && withChannel:
			return c.channelCandidates(args[1])
		}
		return nil
	}
}

func runDevices(c *Console, args []string) error {
	infos, err := c.ctrl.Devices()
	if err != nil {
		return err
	}
	if len(args) > 1 {
		info, err := findDevice(infos, args[1])
		if err != nil {
			return err
		}
		infos = []handler.DeviceInfo{info}
	}
	if len(infos) == 0 {
		c.printf("デバイスはありません\n")
		return nil
	}
	for _, info := range infos {
		var flags []string
		if !info.Initialised {
			flags = append(flags, "initialising")
		}
		if info.Unreachable {
			flags = append(flags, "unreachable")
		}
		if info.Discovered {
			flags = append(flags, "discovered")
		}
		status := ""
		if len(flags) > 0 {
			status = " [" + strings.Join(flags, ",") + "]"
		}
		c.printf("%s  %v  %s%s\n", info.Identifier, info.Key, className(info), status)
		for _, ch := range sortedChannels(info.Channels) {
			value := "-"
			if st, ok := info.States[ch]; ok {
				value = st.String()
			}
			c.printf("  %s = %s\n", ch, value)
		}
	}
	return nil
}

func runAdd(c *Console, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("使い方: add <ipAddress[:port]> <classCode:instanceCode> [pollInterval]")
	}
	addr, err := echonet_lite.ParseAddrPort(args[1])
	if err != nil {
		return err
	}
	eoj, err := echonet_lite.ParseEOJString(args[2])
	if err != nil {
		return err
	}
	var cfg handler.DeviceConfig
	if len(args) > 3 {
		interval, err := time.ParseDuration(args[3])
		if err != nil {
			return fmt.Errorf("ポーリング間隔が無効です: %w", err)
		}
		cfg.PollInterval = interval
	}
	key := echonet_lite.InstanceKey{Addr: addr, EOJ: eoj}
	if err := c.ctrl.NewDevice(key, cfg, c.listenerFor(key)); err != nil {
		return err
	}
	c.printf("登録しました: %s\n", key.Identifier())
	return nil
}

func runRemove(c *Console, args []string) error {
	info, err := c.resolve(args, 2, "remove <device>")
	if err != nil {
		return err
	}
	return c.ctrl.RemoveDevice(info.Key)
}

func runRefresh(c *Console, args []string) error {
	info, err := c.resolve(args, 2, "refresh <device> [channel]")
	if err != nil {
		return err
	}
	channel := ""
	if len(args) > 2 {
		channel = args[2]
	}
	return c.ctrl.RefreshDevice(info.Key, channel)
}

func runSet(c *Console, args []string) error {
	info, err := c.resolve(args, 4, "set <device> <channel> <value>")
	if err != nil {
		return err
	}
	itemType, ok := info.Channels[args[2]]
	if !ok {
		return fmt.Errorf("%w: %s", handler.ErrUnknownChannel, args[2])
	}
	state, err := echonet_lite.ParseState(itemType, strings.Join(args[3:], " "))
	if err != nil {
		return err
	}
	return c.ctrl.UpdateDevice(info.Key, args[2], state)
}

func runChannels(c *Console, args []string) error {
	info, err := c.resolve(args, 2, "channels <device>")
	if err != nil {
		return err
	}
	for _, ch := range sortedChannels(info.Channels) {
		c.printf("%-32s %s\n", ch, info.Channels[ch])
	}
	return nil
}

func runDiscover(c *Console, args []string) error {
	duration := defaultDiscoverDuration
	if len(args) > 1 {
		if args[1] == "stop" {
			return c.ctrl.StopDiscovery()
		}
		seconds, err := strconv.Atoi(args[1])
		if err != nil || seconds < 0 {
			return fmt.Errorf("秒数が無効です: %s", args[1])
		}
		duration = time.Duration(seconds) * time.Second
	}
	listener := handler.DiscoveryListenerFunc(func(identifier string, key echonet_lite.InstanceKey) {
		c.printf("発見: %s  %v\n", identifier, key)
	})
	if err := c.ctrl.StartDiscovery(listener, duration); err != nil {
		return err
	}
	c.printf("探索を開始しました (%v)\n", duration)
	return nil
}

func runHelp(c *Console, args []string) error {
	if len(args) > 1 {
		def, ok := findCommand(args[1])
		if !ok {
			return fmt.Errorf("不明なコマンド: %s", args[1])
		}
		c.printf("%s\n  %s\n", def.Syntax, def.Summary)
		return nil
	}
	for _, def := range CommandTable {
		c.printf("%-60s %s\n", def.Syntax, def.Summary)
	}
	return nil
}

func sortedChannels(channels map[string]string) []string {
	names := make([]string, 0, len(channels))
	for ch := range channels {
		names = append(names, ch)
	}
	slices.Sort(names)
	return names
}

func className(info handler.DeviceInfo) string {
	if info.Class == nil {
		return info.Key.ClassCode().String()
	}
	return info.Class.Description
}

// findDevice は識別子からデバイスを探す
func findDevice(infos []handler.DeviceInfo, identifier string) (handler.DeviceInfo, error) {
	for _, info := range infos {
		if info.Identifier == identifier {
			return info, nil
		}
	}
	return handler.DeviceInfo{}, fmt.Errorf("%w: %s", handler.ErrUnknownDevice, identifier)
}
