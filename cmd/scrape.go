package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shouni/go-testimonial-exact/internal/pipeline"
	"github.com/shouni/go-testimonial-exact/pkg/extract"
	"github.com/shouni/go-testimonial-exact/pkg/output"
	"github.com/shouni/go-testimonial-exact/pkg/scraper"
)

// runScrapePipeline は、収集から書き出しまでを実行し、結果の概要を表示します。
func runScrapePipeline(ctx context.Context, cfg pipeline.Config) error {
	// 1. SIGINT/SIGTERM で全体をキャンセルする (描画セッションの解放は pipeline が保証)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. メインロジックの実行
	report, err := pipeline.Run(ctx, cfg)
	if err != nil {
		return fmt.Errorf("スクレイピングパイプラインの実行エラー: %w", err)
	}

	// 3. 結果の出力
	printReport(report, cfg.OutputPath)
	return nil
}

func printReport(report *scraper.Report, path string) {
	fmt.Println("--- スクレイピング結果 ---")
	fmt.Printf("収集リンク数: %d\n", report.Links)
	fmt.Printf("抽出レコード数: %d\n", len(report.Records))
	if len(report.Skipped) > 0 {
		fmt.Printf("スキップ: %d 件\n", len(report.Skipped))
		for _, s := range report.Skipped {
			fmt.Printf("  - [%s] %s\n", s.Reason, s.Link)
		}
	}
	fmt.Println("-------------------------------")
	fmt.Printf("出力ファイル: %s\n", path)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "顧客事例ページから推薦者情報を抽出し、JSONファイルに書き出します",
	Long: `一覧ページ (またはフィード) から詳細ページへのリンクを集め、各ページを1件ずつ描画して
キャプションから「氏名, 役職, 企業名」を抽出し、結果をJSON配列として書き出します。
一時的な失敗は --max-attempts 回まで再試行されます。`,
	Args: cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig()
		if err != nil {
			return err
		}
		return runScrapePipeline(cmd.Context(), cfg)
	},
}

func init() {
	addSourceFlags(scrapeCmd, &source)

	scrapeCmd.Flags().StringVarP(&scrapeOpts.OutputPath, "output", "o", output.DefaultPath, "出力するJSONファイルのパス (既存のファイルは上書き)")
	scrapeCmd.Flags().StringVar(&scrapeOpts.CaptionSelector, "caption-selector", extract.DefaultCaptionSelector, "詳細ページでキャプションを特定するCSSセレクター")
	scrapeCmd.Flags().Float64Var(&scrapeOpts.Rate, "rate", 0, "1秒あたりの詳細ページ訪問数の上限 (0 の場合は制限なし)")
}
