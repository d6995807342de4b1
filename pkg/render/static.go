package render

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// Fetcher は、HTMLドキュメントの生バイト配列を取得する機能のインターフェースを定義します。
// *httpkit.Client はこのインターフェースを満たします。
type Fetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// StaticRenderer は、JavaScriptを実行せずにHTTPで取得したHTMLをそのまま「描画結果」として扱います。
// サーバーサイドレンダリングされたサイトや、Chromeを使えない環境向けです。
type StaticRenderer struct {
	fetcher Fetcher
}

// NewStaticRenderer は、新しいStaticRendererのインスタンスを生成します。
func NewStaticRenderer(fetcher Fetcher) (*StaticRenderer, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("render.NewStaticRenderer: Fetcher cannot be nil")
	}
	return &StaticRenderer{fetcher: fetcher}, nil
}

func (r *StaticRenderer) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &staticPage{fetcher: r.fetcher}, nil
}

// Close は何もしません。StaticRenderer は外部プロセスを持ちません。
func (r *StaticRenderer) Close() error {
	return nil
}

type staticPage struct {
	fetcher Fetcher

	mu     sync.Mutex
	url    string
	body   []byte
	closed bool
}

func (p *staticPage) Navigate(ctx context.Context, url string) error {
	if p.isClosed() {
		return ErrPageClosed
	}

	body, err := p.fetcher.FetchBytes(ctx, url)
	if err != nil {
		return fmt.Errorf("ページの取得に失敗しました (URL: %s): %w", url, err)
	}

	p.mu.Lock()
	p.url = url
	p.body = body
	p.mu.Unlock()
	return nil
}

func (p *staticPage) Document(ctx context.Context) (*goquery.Document, error) {
	if p.isClosed() {
		return nil, ErrPageClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	body := p.body
	navigated := p.url != ""
	p.mu.Unlock()
	if !navigated {
		return nil, ErrNotNavigated
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("HTML解析に失敗しました: %w", err)
	}
	return doc, nil
}

func (p *staticPage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *staticPage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.body = nil
	return nil
}

func (p *staticPage) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
