package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shouni/go-testimonial-exact/internal/pipeline"
)

var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "一覧ページ (またはフィード) から収集される詳細ページのリンクを表示します",
	Long:  `詳細ページは訪問せず、ファイルも書き出しません。セレクターの確認やページ構造の変化の調査に使います。`,
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		collected, err := pipeline.CollectLinks(ctx, cfg)
		if err != nil {
			return fmt.Errorf("リンク収集の実行エラー: %w", err)
		}

		fmt.Printf("--- 収集リンク (%d 件) ---\n", len(collected))
		for i, link := range collected {
			fmt.Printf("[%d] %s\n", i+1, link)
		}
		return nil
	},
}

func init() {
	addSourceFlags(linksCmd, &source)
}
