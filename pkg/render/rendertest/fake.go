// Package rendertest は、ブラウザを起動せずに render.Renderer を差し替えるためのテスト用実装を提供します。
package rendertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/shouni/go-testimonial-exact/pkg/render"
)

// ErrUnknownURL は、応答が登録されていないURLへ遷移しようとした場合に返されます。
var ErrUnknownURL = errors.New("rendertest: no response registered for url")

// Response は、1回の Navigate に対する応答です。
type Response struct {
	HTML     string
	Err      error  // 設定されている場合、Navigate はこのエラーを返します
	Hang     bool   // true の場合、Navigate はコンテキストが終了するまで戻りません
	FinalURL string // リダイレクト後のURL。空の場合は要求されたURL
}

// Renderer は、URLごとに登録された応答を順番に返す render.Renderer です。
// 登録された応答を使い切った後は、最後の応答を繰り返します。
type Renderer struct {
	mu         sync.Mutex
	responses  map[string][]Response
	visits     map[string]int
	order      []string
	opened     int
	closed     int
	NewPageErr error
	rendClosed bool
}

// NewRenderer は、空の Renderer を生成します。
func NewRenderer() *Renderer {
	return &Renderer{
		responses: make(map[string][]Response),
		visits:    make(map[string]int),
	}
}

// Handle は、URLに対する応答を試行順に登録します。
func (r *Renderer) Handle(url string, responses ...Response) *Renderer {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[url] = append(r.responses[url], responses...)
	return r
}

// NewPage は render.Renderer を満たします。
func (r *Renderer) NewPage(ctx context.Context) (render.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rendClosed {
		return nil, errors.New("rendertest: renderer is closed")
	}
	if r.NewPageErr != nil {
		return nil, r.NewPageErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.opened++
	return &page{renderer: r}, nil
}

// Close は render.Renderer を満たします。
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rendClosed = true
	return nil
}

// Visits は、URLへの Navigate 呼び出し回数を返します。
func (r *Renderer) Visits(url string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visits[url]
}

// Order は、Navigate されたURLを呼び出し順に返します。
func (r *Renderer) Order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// OpenPages は、作成されてまだ閉じられていないページ数を返します。
func (r *Renderer) OpenPages() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opened - r.closed
}

// PagesOpened は、これまでに作成されたページ数を返します。
func (r *Renderer) PagesOpened() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opened
}

// Closed は、Renderer 自体が Close されたかどうかを返します。
func (r *Renderer) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rendClosed
}

func (r *Renderer) next(url string) (Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, url)
	r.visits[url]++
	list := r.responses[url]
	if len(list) == 0 {
		return Response{}, fmt.Errorf("%w: %s", ErrUnknownURL, url)
	}
	i := r.visits[url] - 1
	if i >= len(list) {
		i = len(list) - 1
	}
	return list[i], nil
}

type page struct {
	renderer *Renderer
	html     string
	url      string
	loaded   bool
	closed   bool
}

func (p *page) Navigate(ctx context.Context, url string) error {
	if p.closed {
		return render.ErrPageClosed
	}
	resp, err := p.renderer.next(url)
	if err != nil {
		return err
	}
	if resp.Hang {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if resp.Err != nil {
		return resp.Err
	}
	p.html = resp.HTML
	p.url = url
	if resp.FinalURL != "" {
		p.url = resp.FinalURL
	}
	p.loaded = true
	return nil
}

func (p *page) Document(ctx context.Context) (*goquery.Document, error) {
	if p.closed {
		return nil, render.ErrPageClosed
	}
	if !p.loaded {
		return nil, render.ErrNotNavigated
	}
	return goquery.NewDocumentFromReader(strings.NewReader(p.html))
}

func (p *page) URL() string {
	return p.url
}

func (p *page) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.renderer.mu.Lock()
	p.renderer.closed++
	p.renderer.mu.Unlock()
	return nil
}
