package visitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/shouni/go-testimonial-exact/pkg/extract"
	"github.com/shouni/go-testimonial-exact/pkg/render"
	"github.com/shouni/go-testimonial-exact/pkg/retry"
	"github.com/shouni/go-testimonial-exact/pkg/types"
)

const (
	// DefaultMaxAttempts は、1つのリンクに対する最大試行回数 (初回を含む) です。
	DefaultMaxAttempts = 3
	// DefaultNavigationTimeout は、1回の試行でページの読み込みを待つ上限時間です。
	DefaultNavigationTimeout = 60 * time.Second
)

var log = logrus.WithField("component", "visitor")

var errUnknownFailure = errors.New("visitor: attempt failed without error")

// Extractor は、描画済みのページからレコードを取り出す処理を表します。
type Extractor interface {
	Extract(doc *goquery.Document, link types.DetailLink) extract.Outcome
}

// Options は Visitor の試行回数とタイムアウトを設定します。
type Options struct {
	MaxAttempts       int
	NavigationTimeout time.Duration
	Backoff           retry.Config // MaxRetries は MaxAttempts から算出されるため無視されます
}

// DefaultOptions は推奨されるデフォルト設定を返します。
func DefaultOptions() Options {
	return Options{
		MaxAttempts:       DefaultMaxAttempts,
		NavigationTimeout: DefaultNavigationTimeout,
		Backoff:           retry.DefaultConfig(),
	}
}

// Result は、1つのリンクを訪問した最終結果です。
type Result struct {
	Link     types.DetailLink
	Outcome  extract.Outcome
	Attempts int
	// GaveUp は、すべての試行が一時的なエラーで終わったことを示します。
	GaveUp bool
}

// Visitor は、リンクごとに新しいページを開いて抽出を行い、一時的な失敗をリトライします。
type Visitor struct {
	renderer  render.Renderer
	extractor Extractor
	opts      Options
}

// New は、新しい Visitor を生成します。
func New(renderer render.Renderer, extractor Extractor, opts Options) (*Visitor, error) {
	if renderer == nil {
		return nil, errors.New("visitor.New: Renderer cannot be nil")
	}
	if extractor == nil {
		return nil, errors.New("visitor.New: Extractor cannot be nil")
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = DefaultNavigationTimeout
	}
	return &Visitor{renderer: renderer, extractor: extractor, opts: opts}, nil
}

// Visit は、リンクを最大 MaxAttempts 回まで試行し、最後の結果を返します。
// ページの内容に起因する結果 (Success / NotFound / Malformed) が得られた時点で終了します。
// どのような失敗も呼び出し元へはエラーとして伝播しません。
func (v *Visitor) Visit(ctx context.Context, link types.DetailLink) Result {
	res := Result{Link: link}

	cfg := v.opts.Backoff
	cfg.MaxRetries = uint64(v.opts.MaxAttempts - 1)
	cfg.Notify = func(err error, wait time.Duration) {
		log.WithFields(logrus.Fields{
			"link":    link,
			"attempt": res.Attempts,
			"wait":    wait,
		}).Warnf("試行に失敗しました。リトライします: %v", err)
	}

	op := func() error {
		res.Attempts++
		res.Outcome = v.attempt(ctx, link)
		if res.Outcome.Resolved() {
			return nil
		}
		if res.Outcome.Err == nil {
			return errUnknownFailure
		}
		return res.Outcome.Err
	}

	if err := retry.Do(ctx, cfg, fmt.Sprintf("リンク %s の訪問", link), op, nil); err != nil {
		res.GaveUp = true
		res.Outcome = extract.TransientError(err)
		log.WithFields(logrus.Fields{
			"link":     link,
			"attempts": res.Attempts,
		}).Errorf("リンクの訪問を断念しました: %v", err)
		return res
	}

	log.WithFields(logrus.Fields{
		"link":     link,
		"attempts": res.Attempts,
		"outcome":  res.Outcome.Kind,
	}).Debug("リンクの訪問が完了しました")
	return res
}

// attempt は、新しいページで1回分の訪問と抽出を行います。
// ページは結果に関わらず必ず閉じられます。
func (v *Visitor) attempt(ctx context.Context, link types.DetailLink) extract.Outcome {
	// 1. 試行ごとに新しいページを開く
	page, err := v.renderer.NewPage(ctx)
	if err != nil {
		return extract.TransientError(fmt.Errorf("ページの作成に失敗しました: %w", err))
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			log.WithField("link", link).Warnf("ページのクローズに失敗しました: %v", cerr)
		}
	}()

	// 2. 読み込みは1回の試行ごとにタイムアウトを設ける
	navCtx, cancel := context.WithTimeout(ctx, v.opts.NavigationTimeout)
	defer cancel()

	if err := page.Navigate(navCtx, link); err != nil {
		return extract.TransientError(fmt.Errorf("ページの読み込みに失敗しました: %w", err))
	}

	// 3. 描画済みDOMの取得
	doc, err := page.Document(navCtx)
	if err != nil {
		return extract.TransientError(fmt.Errorf("DOMの取得に失敗しました: %w", err))
	}

	// 4. 抽出
	return v.extractor.Extract(doc, link)
}
