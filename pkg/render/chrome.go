package render

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const (
	// DefaultUserAgent は、ヘッドレスChromeが名乗るUser-Agentです。
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

	// networkAlmostIdleEvent は、実行中のリクエストが2件以下になった状態を示すライフサイクルイベント名です。
	// puppeteer の networkidle2 に相当します。
	networkAlmostIdleEvent = "networkAlmostIdle"
)

// ChromeOptions は ChromeRenderer の起動設定です。
type ChromeOptions struct {
	Headless   bool
	ChromePath string // 空の場合は自動検出
	UserAgent  string
	// WaitNetworkIdle が true の場合、Navigate は networkAlmostIdle を待ってから戻ります。
	WaitNetworkIdle bool
}

// DefaultChromeOptions は推奨されるデフォルト設定を返します。
func DefaultChromeOptions() ChromeOptions {
	return ChromeOptions{
		Headless:        true,
		UserAgent:       DefaultUserAgent,
		WaitNetworkIdle: true,
	}
}

// ChromeRenderer は、ヘッドレスChromeのブラウザセッションを保持します。
// ページ (タブ) は試行ごとに新しく作られ、セッション自体は実行全体で共有されます。
type ChromeRenderer struct {
	opts        ChromeOptions
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc
	closeOnce   sync.Once
}

// NewChromeRenderer は、Chromeを起動し、ブラウザセッションを確立します。
// 起動に失敗した場合は、確保済みのリソースを解放してからエラーを返します。
func NewChromeRenderer(ctx context.Context, opts ChromeOptions) (*ChromeRenderer, error) {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(opts.UserAgent),
		chromedp.WindowSize(1920, 1080),
	)
	if opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ChromePath))
	}

	// ブラウザの寿命は呼び出し元のコンテキストではなく Close で管理する
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	// 最初の Run でブラウザプロセスが起動する
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("Chromeの起動に失敗しました: %w", err)
	}

	return &ChromeRenderer{
		opts:        opts,
		allocCancel: allocCancel,
		browserCtx:  browserCtx,
		cancel:      cancel,
	}, nil
}

// NewPage は、共有ブラウザセッション上に新しいタブを開きます。
func (r *ChromeRenderer) NewPage(ctx context.Context) (Page, error) {
	if err := r.browserCtx.Err(); err != nil {
		return nil, fmt.Errorf("ブラウザセッションは既に終了しています: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tabCtx, cancel := chromedp.NewContext(r.browserCtx)
	// 最初の Run でタブ (ターゲット) が作成される
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("新しいタブの作成に失敗しました: %w", err)
	}

	return &chromePage{
		tabCtx:   tabCtx,
		cancel:   cancel,
		waitIdle: r.opts.WaitNetworkIdle,
	}, nil
}

// Close は、ブラウザを終了します。複数回呼び出しても安全です。
func (r *ChromeRenderer) Close() error {
	var err error
	r.closeOnce.Do(func() {
		err = chromedp.Cancel(r.browserCtx)
		r.cancel()
		r.allocCancel()
	})
	if err != nil {
		return fmt.Errorf("Chromeの終了に失敗しました: %w", err)
	}
	return nil
}

// chromePage は ChromeRenderer の1タブ分の Page 実装です。
type chromePage struct {
	tabCtx   context.Context
	cancel   context.CancelFunc
	waitIdle bool

	mu        sync.Mutex
	finalURL  string
	navigated bool
	closed    bool
}

// Navigate は、URLへ遷移し、ロード完了と (有効な場合) ネットワークのほぼアイドル状態を待ちます。
// タイムアウトは ctx の期限で制御されます。
func (p *chromePage) Navigate(ctx context.Context, url string) error {
	if p.isClosed() {
		return ErrPageClosed
	}

	runCtx, stop := p.runContext(ctx)
	defer stop()

	// 1. アイドルに達したローダーを記録する (about:blank の再送イベントと区別するため)
	var idleMu sync.Mutex
	idleLoaders := make(map[cdp.LoaderID]bool)
	notify := make(chan struct{}, 1)
	if p.waitIdle {
		chromedp.ListenTarget(runCtx, func(ev any) {
			e, ok := ev.(*page.EventLifecycleEvent)
			if !ok || e.Name != networkAlmostIdleEvent {
				return
			}
			idleMu.Lock()
			idleLoaders[e.LoaderID] = true
			idleMu.Unlock()
			select {
			case notify <- struct{}{}:
			default:
			}
		})
	}

	// 2. 遷移して、ロード完了後のフレーム情報を取得
	var frame *cdp.Frame
	err := chromedp.Run(runCtx,
		page.SetLifecycleEventsEnabled(p.waitIdle),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			frame = tree.Frame
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("ページ遷移に失敗しました (URL: %s): %w", url, err)
	}

	// 3. 現在のローダーがアイドルになるまで待機
	if p.waitIdle {
		for {
			idleMu.Lock()
			reached := idleLoaders[frame.LoaderID]
			idleMu.Unlock()
			if reached {
				break
			}
			select {
			case <-notify:
			case <-runCtx.Done():
				return fmt.Errorf("ネットワークのアイドル待機がタイムアウトしました (URL: %s): %w", url, runCtx.Err())
			}
		}
	}

	p.mu.Lock()
	p.finalURL = frame.URL + frame.URLFragment
	p.navigated = true
	p.mu.Unlock()
	return nil
}

// Document は、描画後のDOMを outerHTML として取得し、goquery.Document に変換します。
func (p *chromePage) Document(ctx context.Context) (*goquery.Document, error) {
	if p.isClosed() {
		return nil, ErrPageClosed
	}
	p.mu.Lock()
	navigated := p.navigated
	p.mu.Unlock()
	if !navigated {
		return nil, ErrNotNavigated
	}

	runCtx, stop := p.runContext(ctx)
	defer stop()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("DOMの取得に失敗しました: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("HTML解析に失敗しました: %w", err)
	}
	return doc, nil
}

func (p *chromePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finalURL
}

// Close は、タブを閉じます。複数回呼び出しても安全です。
func (p *chromePage) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	err := chromedp.Cancel(p.tabCtx)
	p.cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("タブのクローズに失敗しました: %w", err)
	}
	return nil
}

func (p *chromePage) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// runContext は、タブのコンテキストに呼び出し元の期限とキャンセルを引き継いだコンテキストを返します。
// chromedp のアクションはタブのコンテキストから派生している必要があるため、ctx を直接は使えません。
func (p *chromePage) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	var runCtx context.Context
	var cancel context.CancelFunc
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(p.tabCtx, deadline)
	} else {
		runCtx, cancel = context.WithCancel(p.tabCtx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}
