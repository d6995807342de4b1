package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shouni/go-testimonial-exact/internal/pipeline"
	"github.com/shouni/go-testimonial-exact/pkg/links"
	"github.com/shouni/go-testimonial-exact/pkg/output"
	"github.com/shouni/go-testimonial-exact/pkg/retry"
	"github.com/shouni/go-testimonial-exact/pkg/visitor"
)

// sourceFlags は、scrape と links の両方で使うリンク収集元と描画方式のフラグです。
type sourceFlags struct {
	ListingURL    string
	FeedURL       string
	Renderer      string
	Headless      bool
	ChromePath    string
	LinksSelector string
	ExcludeMarker string
}

// scrapeFlags は scrape サブコマンド固有のフラグです。
type scrapeFlags struct {
	OutputPath      string
	CaptionSelector string
	Rate            float64
}

var (
	source     sourceFlags
	scrapeOpts scrapeFlags
)

// addSourceFlags は、リンク収集元と描画方式のフラグをコマンドに追加します。
func addSourceFlags(cmd *cobra.Command, f *sourceFlags) {
	cmd.Flags().StringVarP(&f.ListingURL, "url", "u", pipeline.DefaultListingURL, "顧客事例一覧ページのURL")
	cmd.Flags().StringVar(&f.FeedURL, "feed-url", "", "一覧ページの代わりにリンクを読み込む RSS/Atom フィードのURL")
	cmd.Flags().StringVar(&f.Renderer, "renderer", string(pipeline.RendererChrome), "ページの描画方式 (chrome | static)")
	cmd.Flags().BoolVar(&f.Headless, "headless", true, "Chromeをヘッドレスで起動する")
	cmd.Flags().StringVar(&f.ChromePath, "chrome-path", "", "Chrome実行ファイルのパス (空の場合は自動検出)")
	cmd.Flags().StringVar(&f.LinksSelector, "links-selector", links.DefaultSelector, "一覧ページでリンク領域を特定するCSSセレクター")
	cmd.Flags().StringVar(&f.ExcludeMarker, "exclude", links.DefaultExcludeMarker, "この文字列を含むリンクを除外する (空の場合は除外しない)")
}

// buildConfig は、フラグの値から pipeline.Config を組み立てます。
func buildConfig() (pipeline.Config, error) {
	cfg := pipeline.DefaultConfig()

	// 1. URLの検証とスキーム補完
	listingURL, err := ensureScheme(source.ListingURL)
	if err != nil {
		return cfg, fmt.Errorf("一覧ページURLが不正です: %w", err)
	}
	cfg.ListingURL = listingURL

	if source.FeedURL != "" {
		feedURL, err := ensureScheme(source.FeedURL)
		if err != nil {
			return cfg, fmt.Errorf("フィードURLが不正です: %w", err)
		}
		cfg.FeedURL = feedURL
	}

	// 2. 描画方式
	switch kind := pipeline.RendererKind(source.Renderer); kind {
	case pipeline.RendererChrome, pipeline.RendererStatic:
		cfg.Renderer = kind
	default:
		return cfg, fmt.Errorf("無効な描画方式です。chrome または static を指定してください: %s", source.Renderer)
	}
	cfg.Chrome.Headless = source.Headless
	cfg.Chrome.ChromePath = source.ChromePath
	cfg.Fetcher = GetGlobalFetcher()

	// 3. 抽出とリトライの設定
	cfg.Links = links.Options{Selector: source.LinksSelector, ExcludeMarker: source.ExcludeMarker}
	if scrapeOpts.CaptionSelector != "" {
		cfg.CaptionSelector = scrapeOpts.CaptionSelector
	}
	cfg.Visitor = visitor.Options{
		MaxAttempts:       Flags.MaxAttempts,
		NavigationTimeout: navigationTimeout(),
		Backoff:           retry.DefaultConfig(),
	}
	if Flags.MaxAttempts <= 0 {
		return cfg, fmt.Errorf("--max-attempts は1以上を指定してください: %d", Flags.MaxAttempts)
	}
	if scrapeOpts.Rate < 0 {
		return cfg, fmt.Errorf("--rate は0以上を指定してください: %g", scrapeOpts.Rate)
	}
	cfg.RateLimit = scrapeOpts.Rate

	cfg.OutputPath = scrapeOpts.OutputPath
	if cfg.OutputPath == "" {
		cfg.OutputPath = output.DefaultPath
	}
	return cfg, nil
}
