package main

import (
	"context"
	"echonet-bridge/config"
	"echonet-bridge/console"
	"echonet-bridge/echonet_lite"
	"echonet-bridge/echonet_lite/handler"
	"echonet-bridge/echonet_lite/log"
	"echonet-bridge/echonet_lite/network"
	"echonet-bridge/mqtt"
	"echonet-bridge/server"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"
)

func runBridge(args config.CommandLineArgs) error {
	cfg, err := config.LoadConfig(args.ConfigFile)
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗しました: %w", err)
	}
	cfg.ApplyCommandLineArgs(args)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("設定が不正です: %w", err)
	}

	// コンソールは標準入力が端末のときだけ有効にする
	interactive := cfg.Console.Enabled && term.IsTerminal(int(os.Stdin.Fd()))
	if cfg.Console.Enabled && !interactive {
		_, _ = fmt.Fprintln(os.Stderr, "標準入力が端末ではないため、コンソールを無効にします")
	}

	// ロガーのセットアップ。コンソールを使うときは標準エラー出力に書かない
	logger, err := log.NewLogger(log.Options{
		Filename:   cfg.Log.Filename,
		Level:      cfg.Log.Level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
		Stderr:     !interactive,
	})
	if err != nil {
		return fmt.Errorf("ログ設定エラー: %w", err)
	}
	log.SetLogger(logger)
	defer log.SetLogger(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// シグナルハンドリングの設定 (SIGINT, SIGTERM)
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalCh)
	go func() {
		select {
		case <-signalCh:
			_, _ = fmt.Fprintln(os.Stderr, "\nシグナルを受信しました。終了します...")
			cancel()
		case <-ctx.Done():
		}
	}()

	// ログローテーション用のシグナルハンドリング (SIGHUP)
	rotateSignalCh := make(chan os.Signal, 1)
	signal.Notify(rotateSignalCh, syscall.SIGHUP)
	defer signal.Stop(rotateSignalCh)
	go func() {
		for {
			select {
			case <-rotateSignalCh:
				logger := log.GetLogger()
				logger.Info("SIGHUPを受信しました。ログファイルをローテーションします")
				if err := logger.Rotate(); err != nil {
					_, _ = fmt.Fprintf(os.Stderr, "ログローテーションエラー: %v\n", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return run(ctx, cancel, cfg, logger.Logger, interactive)
}

func run(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, logger *slog.Logger, interactive bool) error {
	e := cfg.Echonet
	controller, err := echonet_lite.ParseEOJString(e.Controller)
	if err != nil {
		return err
	}
	multicastIP, err := netip.ParseAddr(e.MulticastIP)
	if err != nil {
		return err
	}
	var listenIP netip.Addr
	if e.ListenIP != "" {
		if listenIP, err = netip.ParseAddr(e.ListenIP); err != nil {
			return err
		}
	}

	var transport *server.DefaultWebSocketTransport
	if cfg.WebSocket.Enabled {
		transport = server.NewDefaultWebSocketTransport(ctx, logger)
		// 警告以上のログは WebSocket クライアントにも流す
		logger = slog.New(server.NewBroadcastHandler(logger.Handler(), transport, slog.LevelWarn))
		slog.SetDefault(logger)
	}

	conn, err := network.CreateUDPConnection(ctx, network.Config{
		ListenIP:        listenIP,
		Port:            e.Port,
		MulticastIP:     multicastIP,
		MonitorInterval: e.NetworkMonitorInterval,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("UDP ソケットを開けませんでした: %w", err)
	}
	defer conn.Close()

	var metrics *handler.Metrics
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		reg := handler.NewRegistry()
		metrics = handler.NewMetrics(reg)
		metricsHandler = handler.MetricsHandler(reg)
	}

	catalog := echonet_lite.DefaultCatalog()
	messenger := handler.NewMessenger(conn, messengerOptions(e, controller, multicastIP, catalog, logger, metrics))
	runErr := make(chan error, 1)
	go func() { runErr <- messenger.Run(ctx) }()
	defer messenger.Close()

	b := &bridge{devices: messenger, logger: logger}
	if transport != nil {
		b.hub = server.NewEventHub(transport, messenger, logger)
	}
	if cfg.MQTT.Enabled {
		client, err := mqtt.Connect(mqtt.Config{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         cfg.MQTT.QoS,
		}, logger)
		if err != nil {
			return err
		}
		defer client.Close()
		b.mqtt = mqtt.NewBridge(client, messenger, cfg.MQTT.TopicPrefix, cfg.MQTT.QoS, logger)
		if err := b.mqtt.Start(); err != nil {
			return err
		}
	}

	httpErr := make(chan error, 2)
	if transport != nil {
		extra := map[string]http.Handler{}
		if metricsHandler != nil && cfg.Metrics.Addr == cfg.WebSocket.Addr {
			extra[cfg.Metrics.Path] = metricsHandler
			metricsHandler = nil
		}
		go func() { httpErr <- transport.Serve(ctx, cfg.WebSocket.Addr, cfg.WebSocket.Path, extra, nil) }()
	}
	if metricsHandler != nil {
		go func() { httpErr <- serveMetrics(ctx, cfg.Metrics.Addr, cfg.Metrics.Path, metricsHandler, logger) }()
	}

	b.registerDevices(cfg.Devices)
	if e.DiscoveryDuration > 0 {
		if err := messenger.StartDiscovery(handler.DiscoveryListenerFunc(b.onDeviceFound), e.DiscoveryDuration); err != nil {
			logger.Warn("探索を開始できませんでした", "err", err)
		}
	}

	if interactive {
		go func() {
			console.NewConsole(messenger, catalog, b.listenerFor, os.Stdout).Run()
			cancel()
		}()
	}

	for {
		select {
		case err := <-runErr:
			return err
		case err := <-httpErr:
			if err != nil {
				return fmt.Errorf("HTTP サーバーエラー: %w", err)
			}
		}
	}
}

func messengerOptions(e config.EchonetConfig, controller echonet_lite.EOJ, multicastIP netip.Addr, catalog *echonet_lite.Catalog, logger *slog.Logger, metrics *handler.Metrics) handler.Options {
	maxRetries := e.MaxRetries
	if maxRetries == 0 {
		// Options では 0 が既定値を意味する
		maxRetries = -1
	}
	return handler.Options{
		Controller:          controller,
		Catalog:             catalog,
		TickInterval:        e.TickInterval,
		DefaultPollInterval: e.PollInterval,
		DefaultRetryTimeout: e.RetryTimeout,
		DiscoveryInterval:   e.DiscoveryInterval,
		MaxRetries:          maxRetries,
		OldRequestCapacity:  e.OldRequestCapacity,
		ListenerQueueSize:   e.ListenerQueueSize,
		FramesPerSecond:     e.FramesPerSecond,
		Burst:               e.Burst,
		MulticastAddr:       netip.AddrPortFrom(multicastIP, uint16(e.Port)),
		Logger:              logger,
		Metrics:             metrics,
	}
}

// deviceRegistry はデバイスの登録に使う Messenger の API
type deviceRegistry interface {
	NewDevice(key echonet_lite.InstanceKey, cfg handler.DeviceConfig, listener handler.DeviceListener) error
}

// bridge はデバイスの通知をログ、WebSocket、MQTT に配る
type bridge struct {
	devices deviceRegistry
	logger  *slog.Logger
	hub     *server.EventHub
	mqtt    *mqtt.Bridge
}

func (b *bridge) listenerFor(key echonet_lite.InstanceKey) handler.DeviceListener {
	listeners := handler.MultiListener{handler.LogListener{Logger: b.logger, Key: key}}
	if b.hub != nil {
		listeners = append(listeners, b.hub.ListenerFor(key))
	}
	if b.mqtt != nil {
		listeners = append(listeners, b.mqtt.ListenerFor(key))
	}
	return listeners
}

func (b *bridge) registerDevices(entries []config.DeviceEntry) {
	for i, d := range entries {
		key, err := d.Key()
		if err != nil {
			b.logger.Error("設定のデバイスを登録できません", "index", i, "err", err)
			continue
		}
		cfg := handler.DeviceConfig{PollInterval: d.PollInterval, RetryTimeout: d.RetryTimeout}
		if err := b.devices.NewDevice(key, cfg, b.listenerFor(key)); err != nil {
			b.logger.Error("デバイスの登録に失敗しました", "device", key, "err", err)
		}
	}
}

// onDeviceFound は探索で見つかったデバイスを既定のポーリング設定で登録する
func (b *bridge) onDeviceFound(identifier string, key echonet_lite.InstanceKey) {
	b.logger.Info("デバイスを発見しました", "device", key, "id", identifier)
	if b.hub != nil {
		b.hub.OnDeviceFound(identifier, key)
	}
	err := b.devices.NewDevice(key, handler.DeviceConfig{}, b.listenerFor(key))
	if err != nil && !errors.Is(err, handler.ErrDeviceExists) {
		b.logger.Warn("発見したデバイスを登録できませんでした", "device", key, "err", err)
	}
}

// serveMetrics は WebSocket とは別のアドレスでメトリクスを公開する
func serveMetrics(ctx context.Context, addr, path string, h http.Handler, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(path, h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Info("Error shutting down metrics server", "err", err)
		}
	}()

	logger.Info("Metrics server starting", "addr", addr, "path", path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
