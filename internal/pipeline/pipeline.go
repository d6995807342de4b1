package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/shouni/go-testimonial-exact/pkg/extract"
	"github.com/shouni/go-testimonial-exact/pkg/links"
	"github.com/shouni/go-testimonial-exact/pkg/output"
	"github.com/shouni/go-testimonial-exact/pkg/parser"
	"github.com/shouni/go-testimonial-exact/pkg/render"
	"github.com/shouni/go-testimonial-exact/pkg/scraper"
	"github.com/shouni/go-testimonial-exact/pkg/types"
	"github.com/shouni/go-testimonial-exact/pkg/visitor"
)

// DefaultListingURL は、顧客事例一覧ページの既定のURLです。
const DefaultListingURL = "https://www.digitalocean.com/customers"

// RendererKind は、ページの描画に使う実装の種類です。
type RendererKind string

const (
	RendererChrome RendererKind = "chrome"
	RendererStatic RendererKind = "static"
)

var log = logrus.WithField("component", "pipeline")

// Fetcher は、静的描画とフィード取得で共有するHTTP取得処理です。
type Fetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// Config は、1回の実行に必要な設定をまとめたものです。
type Config struct {
	ListingURL string
	FeedURL    string // 設定されている場合、一覧ページの代わりにフィードからリンクを得る
	OutputPath string

	Renderer RendererKind
	Chrome   render.ChromeOptions
	Fetcher  Fetcher // static 描画とフィード取得で使用

	Links           links.Options
	CaptionSelector string
	Visitor         visitor.Options
	RateLimit       float64

	// NewRenderer が設定されている場合、Renderer の種類より優先して使われます。
	NewRenderer func(ctx context.Context) (render.Renderer, error)
}

// DefaultConfig は推奨されるデフォルト設定を返します。
func DefaultConfig() Config {
	return Config{
		ListingURL:      DefaultListingURL,
		OutputPath:      output.DefaultPath,
		Renderer:        RendererChrome,
		Chrome:          render.DefaultChromeOptions(),
		Links:           links.DefaultOptions(),
		CaptionSelector: extract.DefaultCaptionSelector,
		Visitor:         visitor.DefaultOptions(),
	}
}

// Run は、描画セッションを取得し、リンクの収集と訪問を行い、結果をファイルに書き出します。
// 描画セッションはどの経路で終了しても解放されます。
// 準備段階 (起動、一覧ページ、フィード) の失敗はエラーとして返され、ファイルは書き出されません。
func Run(ctx context.Context, cfg Config) (*scraper.Report, error) {
	var report *scraper.Report
	err := withScraper(ctx, cfg, func(s *scraper.Scraper) error {
		detailLinks, err := collect(ctx, cfg, s)
		if err != nil {
			return err
		}
		report = s.VisitAll(ctx, detailLinks)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := output.WriteJSON(cfg.OutputPath, report.Records); err != nil {
		return report, fmt.Errorf("結果の書き出しに失敗しました: %w", err)
	}
	log.WithFields(logrus.Fields{
		"path":    cfg.OutputPath,
		"records": len(report.Records),
	}).Info("結果を書き出しました")
	return report, nil
}

// CollectLinks は、詳細ページを訪問せずに、収集されるリンクのみを返します。
func CollectLinks(ctx context.Context, cfg Config) ([]types.DetailLink, error) {
	var collected []types.DetailLink
	err := withScraper(ctx, cfg, func(s *scraper.Scraper) error {
		var err error
		collected, err = collect(ctx, cfg, s)
		return err
	})
	return collected, err
}

// withScraper は、描画セッションの取得と解放の間で fn を実行します。
func withScraper(ctx context.Context, cfg Config, fn func(*scraper.Scraper) error) (err error) {
	// 1. 描画セッションの取得
	renderer, err := newRenderer(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := renderer.Close(); cerr != nil {
			log.Warnf("描画セッションの解放に失敗しました: %v", cerr)
		}
	}()

	// 2. 依存性の初期化
	v, err := visitor.New(renderer, extract.NewTestimonialExtractor(cfg.CaptionSelector), cfg.Visitor)
	if err != nil {
		return fmt.Errorf("Visitorの初期化エラー: %w", err)
	}
	s, err := scraper.New(renderer, v, scraper.Options{
		Links:             cfg.Links,
		NavigationTimeout: cfg.Visitor.NavigationTimeout,
		RateLimit:         cfg.RateLimit,
	})
	if err != nil {
		return fmt.Errorf("Scraperの初期化エラー: %w", err)
	}

	// 3. 実行
	return fn(s)
}

// collect は、フィードまたは一覧ページからリンクを収集します。
func collect(ctx context.Context, cfg Config, s *scraper.Scraper) ([]types.DetailLink, error) {
	if cfg.FeedURL == "" {
		return s.CollectLinks(ctx, cfg.ListingURL)
	}

	p, err := parser.NewParser(cfg.Fetcher)
	if err != nil {
		return nil, fmt.Errorf("フィードパーサーの初期化エラー: %w", err)
	}
	feed, err := p.FetchAndParse(ctx, cfg.FeedURL)
	if err != nil {
		return nil, err
	}
	collected := links.GetAllLinks(links.NewFeedAdapter(feed, cfg.Links.ExcludeMarker))
	log.WithFields(logrus.Fields{
		"url":   cfg.FeedURL,
		"links": len(collected),
	}).Info("フィードからリンクを収集しました")
	return collected, nil
}

func newRenderer(ctx context.Context, cfg Config) (render.Renderer, error) {
	if cfg.NewRenderer != nil {
		r, err := cfg.NewRenderer(ctx)
		if err != nil {
			return nil, fmt.Errorf("描画セッションの初期化エラー: %w", err)
		}
		return r, nil
	}

	switch cfg.Renderer {
	case RendererStatic:
		if cfg.Fetcher == nil {
			return nil, errors.New("static 描画にはHTTPクライアントが必要です")
		}
		return render.NewStaticRenderer(cfg.Fetcher)
	case RendererChrome, "":
		log.WithField("headless", cfg.Chrome.Headless).Info("Chromeを起動します")
		return render.NewChromeRenderer(ctx, cfg.Chrome)
	default:
		return nil, fmt.Errorf("未知の描画方式です: %q (chrome または static を指定してください)", cfg.Renderer)
	}
}
