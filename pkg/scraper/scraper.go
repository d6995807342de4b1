package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/shouni/go-testimonial-exact/pkg/extract"
	"github.com/shouni/go-testimonial-exact/pkg/links"
	"github.com/shouni/go-testimonial-exact/pkg/render"
	"github.com/shouni/go-testimonial-exact/pkg/types"
	"github.com/shouni/go-testimonial-exact/pkg/visitor"
)

var log = logrus.WithField("component", "scraper")

// Visitor は、1つのリンクを訪問して結果を返す処理を表します。
type Visitor interface {
	Visit(ctx context.Context, link types.DetailLink) visitor.Result
}

// SkipReason は、リンクがレコードを生まなかった理由です。
type SkipReason string

const (
	SkipNotFound  SkipReason = "not_found"
	SkipMalformed SkipReason = "malformed"
	SkipGaveUp    SkipReason = "gave_up"
)

// Skip は、レコードを生まなかったリンクとその理由です。
type Skip struct {
	Link   types.DetailLink
	Reason SkipReason
	Detail string // 形式不正時のキャプション、または断念時の最終エラー
}

// Report は、1回の実行で得られたレコードと、スキップしたリンクをまとめたものです。
// Records は訪問順に並び、追加のみが行われます。
type Report struct {
	Records []types.TestimonialRecord
	Skipped []Skip
	Links   int // 収集したリンクの総数
}

// Options は Scraper の設定です。
type Options struct {
	Links             links.Options
	NavigationTimeout time.Duration // 一覧ページの読み込み上限
	// RateLimit は、詳細ページの訪問開始を1秒あたりの回数で制限します。0 以下の場合は制限しません。
	RateLimit float64
}

// DefaultOptions は推奨されるデフォルト設定を返します。
func DefaultOptions() Options {
	return Options{
		Links:             links.DefaultOptions(),
		NavigationTimeout: visitor.DefaultNavigationTimeout,
	}
}

// Scraper は、一覧ページからリンクを集め、各リンクを順番に訪問します。
// 訪問は常に1件ずつ、収集した順序で行われます。
type Scraper struct {
	renderer render.Renderer
	visitor  Visitor
	opts     Options
	limiter  *rate.Limiter
}

// New は Scraper を初期化します。
func New(renderer render.Renderer, v Visitor, opts Options) (*Scraper, error) {
	if renderer == nil {
		return nil, errors.New("scraper.New: Renderer cannot be nil")
	}
	if v == nil {
		return nil, errors.New("scraper.New: Visitor cannot be nil")
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = visitor.DefaultNavigationTimeout
	}

	s := &Scraper{renderer: renderer, visitor: v, opts: opts}
	if opts.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return s, nil
}

// Run は、一覧ページからリンクを収集し、すべてのリンクを訪問します。
// 一覧ページの処理に失敗した場合はエラーを返します。個々のリンクの失敗はエラーになりません。
func (s *Scraper) Run(ctx context.Context, listingURL string) (*Report, error) {
	collected, err := s.CollectLinks(ctx, listingURL)
	if err != nil {
		return nil, err
	}
	return s.VisitAll(ctx, collected), nil
}

// CollectLinks は、一覧ページを描画し、詳細ページへのリンクを文書順に返します。
func (s *Scraper) CollectLinks(ctx context.Context, listingURL string) ([]types.DetailLink, error) {
	// 1. 一覧用のページを開く
	page, err := s.renderer.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("一覧ページ用のページ作成に失敗しました: %w", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			log.Warnf("一覧ページのクローズに失敗しました: %v", cerr)
		}
	}()

	// 2. 読み込み
	navCtx, cancel := context.WithTimeout(ctx, s.opts.NavigationTimeout)
	defer cancel()

	log.WithField("url", listingURL).Info("一覧ページを読み込みます")
	if err := page.Navigate(navCtx, listingURL); err != nil {
		return nil, fmt.Errorf("一覧ページの読み込みに失敗しました (URL: %s): %w", listingURL, err)
	}

	doc, err := page.Document(navCtx)
	if err != nil {
		return nil, fmt.Errorf("一覧ページのDOM取得に失敗しました (URL: %s): %w", listingURL, err)
	}

	// 3. リンクの収集 (相対リンクは最終URLを基準に解決)
	base := page.URL()
	if base == "" {
		base = listingURL
	}
	adapter := links.NewDocumentAdapter(doc, base, s.opts.Links)
	collected := links.GetAllLinks(adapter)

	switch {
	case !adapter.RegionFound():
		log.WithField("selector", s.opts.Links.Selector).Warn("一覧ページにリンク領域が見つかりませんでした。ページ構造が変わった可能性があります")
	case len(collected) == 0:
		log.Warn("リンク領域は見つかりましたが、リンクが0件でした")
	default:
		log.WithField("links", len(collected)).Info("リンクを収集しました")
	}
	return collected, nil
}

// VisitAll は、リンクを順番に訪問し、成功したレコードを訪問順に集めます。
// コンテキストが終了した場合は、残りのリンクを断念として記録します。
func (s *Scraper) VisitAll(ctx context.Context, detailLinks []types.DetailLink) *Report {
	report := &Report{
		Records: []types.TestimonialRecord{},
		Skipped: []Skip{},
		Links:   len(detailLinks),
	}

	for i, link := range detailLinks {
		entry := log.WithFields(logrus.Fields{
			"link":  link,
			"index": i + 1,
			"total": len(detailLinks),
		})

		if err := s.wait(ctx); err != nil {
			entry.Warnf("訪問を中断しました: %v", err)
			report.Skipped = append(report.Skipped, Skip{Link: link, Reason: SkipGaveUp, Detail: err.Error()})
			continue
		}

		entry.Info("訪問中")
		res := s.visitor.Visit(ctx, link)

		switch {
		case res.Outcome.Kind == extract.OutcomeSuccess && res.Outcome.Record != nil:
			report.Records = append(report.Records, *res.Outcome.Record)
		case res.Outcome.Kind == extract.OutcomeNotFound:
			entry.Info("キャプションが見つからないためスキップします")
			report.Skipped = append(report.Skipped, Skip{Link: link, Reason: SkipNotFound})
		case res.Outcome.Kind == extract.OutcomeMalformed:
			entry.WithField("caption", res.Outcome.RawText).Info("キャプションの形式が不正なためスキップします")
			report.Skipped = append(report.Skipped, Skip{Link: link, Reason: SkipMalformed, Detail: res.Outcome.RawText})
		default:
			detail := ""
			if res.Outcome.Err != nil {
				detail = res.Outcome.Err.Error()
			}
			report.Skipped = append(report.Skipped, Skip{Link: link, Reason: SkipGaveUp, Detail: detail})
		}
	}

	log.WithFields(logrus.Fields{
		"links":   report.Links,
		"records": len(report.Records),
		"skipped": len(report.Skipped),
	}).Info("すべてのリンクの訪問が完了しました")
	return report
}

// wait は、訪問の開始間隔を制御します。
func (s *Scraper) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}
