// echonet-bridge は ECHONET Lite 機器をポーリングし、状態の変化を WebSocket と MQTT に流します。
//
// Usage:
//
//	echonet-bridge [flags]
//
// 設定は config.toml (または --config で指定したファイル) から読み込み、
// コマンドラインで指定した値で上書きします。
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"echonet-bridge/config"
)

func main() {
	if err := newRootCmd(runBridge).Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "エラー: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd はフラグを解析して run を呼ぶコマンドを作る
func newRootCmd(run func(config.CommandLineArgs) error) *cobra.Command {
	var args config.CommandLineArgs

	cmd := &cobra.Command{
		Use:   "echonet-bridge",
		Short: "ECHONET Lite device bridge",
		Long: `ECHONET Lite 機器を定期的にポーリングし、値の変化を WebSocket クライアントと
MQTT ブローカーに配信します。WebSocket と MQTT からは値の取得と書き込みを受け付けます。`,
		Example: `  # config.toml を読み込んで起動
  echonet-bridge

  # 起動時に 10 秒間探索し、対話コンソールを開く
  echonet-bridge --discover 10s --console

  # MQTT ブローカーとメトリクスを有効にする
  echonet-bridge --mqtt-broker tcp://localhost:1883 --metrics-addr :9100`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			changed := cmd.Flags().Changed
			args.ConfigSpecified = changed("config")
			args.DebugSpecified = changed("debug")
			args.LogFilenameSpecified = changed("log")
			args.LogLevelSpecified = changed("log-level")
			args.ListenIPSpecified = changed("listen-ip")
			args.DiscoverSpecified = changed("discover")
			args.ConsoleSpecified = changed("console")
			args.WebSocketEnabledSpecified = changed("websocket")
			args.WebSocketAddrSpecified = changed("ws-addr")
			args.MQTTBrokerSpecified = changed("mqtt-broker")
			args.MetricsAddrSpecified = changed("metrics-addr")
			return run(args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&args.ConfigFile, "config", "", "設定ファイルのパス (省略時はカレントディレクトリの config.toml)")
	f.BoolVar(&args.Debug, "debug", false, "デバッグモードを有効にする")
	f.StringVar(&args.LogFilename, "log", "", "ログファイル名")
	f.StringVar(&args.LogLevel, "log-level", "", "ログレベル (debug, info, warn, error)")
	f.StringVar(&args.ListenIP, "listen-ip", "", "ECHONET Lite の受信に使うローカルIPアドレス")
	f.DurationVar(&args.Discover, "discover", 0, "起動時に探索する時間 (0 で探索しない)")
	f.BoolVar(&args.Console, "console", false, "対話コンソールを有効にする")
	f.BoolVar(&args.WebSocketEnabled, "websocket", false, "WebSocket サーバーを有効にする")
	f.StringVar(&args.WebSocketAddr, "ws-addr", "", "WebSocket サーバーの待ち受けアドレス")
	f.StringVar(&args.MQTTBroker, "mqtt-broker", "", "MQTT ブローカーの URL (指定すると MQTT を有効にする)")
	f.StringVar(&args.MetricsAddr, "metrics-addr", "", "メトリクスの待ち受けアドレス (指定するとメトリクスを有効にする)")
	return cmd
}
