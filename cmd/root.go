package cmd

import (
	"os"
	"time"

	clibase "github.com/shouni/go-cli-base"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/shouni/go-testimonial-exact/internal/pipeline"
	"github.com/shouni/go-testimonial-exact/pkg/visitor"
)

// --- グローバル定数 ---

const (
	appName            = "testimonial-exact"
	defaultTimeoutSec  = int(visitor.DefaultNavigationTimeout / time.Second) // 秒
	defaultMaxAttempts = visitor.DefaultMaxAttempts                          // 1リンクあたりの試行回数
)

// --- グローバル変数とフラグ構造体 ---

// AppFlags はこのアプリケーション固有の永続フラグを保持
type AppFlags struct {
	TimeoutSec  int // --timeout 1回のページ読み込みのタイムアウト
	MaxAttempts int // --max-attempts 詳細ページごとの最大試行回数
}

var Flags AppFlags                 // アプリケーション固有フラグにアクセスするためのグローバル変数
var globalFetcher pipeline.Fetcher // static 描画とフィード取得で共有

// --- 初期化とロジック (clibaseへのコールバックとして利用) ---

// addAppPersistentFlags は、アプリケーション固有の永続フラグをルートコマンドに追加します。
func addAppPersistentFlags(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().IntVar(
		&Flags.TimeoutSec,
		"timeout",
		defaultTimeoutSec,
		"1回のページ読み込みのタイムアウト時間（秒）",
	)
	rootCmd.PersistentFlags().IntVar(
		&Flags.MaxAttempts,
		"max-attempts",
		defaultMaxAttempts,
		"詳細ページごとの最大試行回数（初回を含む）",
	)
}

// initAppPreRunE は、clibase共通処理の後に実行される、アプリケーション固有のPersistentPreRunEです。
// NOTE: clibaseの PersistentPreRunE チェーンにより、clibase.Flags.Verbose はこの関数実行前に設定済み
func initAppPreRunE(cmd *cobra.Command, args []string) error {
	// 1. ロガーの設定
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if clibase.Flags.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}

	timeout := navigationTimeout()
	logrus.WithFields(logrus.Fields{
		"timeout":      timeout,
		"max_attempts": Flags.MaxAttempts,
	}).Debug("実行設定を読み込みました")

	// 2. 共有フェッチャーの初期化
	// 再試行は Visitor が行うため、HTTPクライアント自体はリトライしない
	globalFetcher = httpkit.New(
		timeout,
		httpkit.WithMaxRetries(0),
	)

	return nil
}

// GetGlobalFetcher は、初期化されたフェッチャーを返す関数 (DIの代わり)
func GetGlobalFetcher() pipeline.Fetcher {
	return globalFetcher
}

func navigationTimeout() time.Duration {
	if Flags.TimeoutSec <= 0 {
		return visitor.DefaultNavigationTimeout
	}
	return time.Duration(Flags.TimeoutSec) * time.Second
}

// --- エントリポイント ---

// Execute は、clibaseを使用してルートコマンドを構築し、実行します。
func Execute() {
	clibase.Execute(
		appName,
		addAppPersistentFlags,
		initAppPreRunE,
		scrapeCmd,
		linksCmd,
	)
	// clibase.Execute() の中で os.Exit(1) が処理されるため、ここでは不要
}
