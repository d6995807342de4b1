package links

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

const (
	// DefaultSelector は、顧客事例一覧ページでカードのリンクを含む領域のセレクターです。
	DefaultSelector = "#__next > div.Layout__StyledLayout-sc-3a10f19e-0.etQQpa > div.CustomerCardsStyles__StyledCustomerCardsWrapper-sc-72ac5ef3-0.boCwOR > div > div.CustomerCardsStyles__StyledCustomerCardsContainer-sc-72ac5ef3-2.fkfRA a"
	// DefaultExcludeMarker は、「さらに読み込む」ボタンのリンクに含まれる文字列です。
	DefaultExcludeMarker = "load-more"
)

// Options はリンク収集の対象領域と除外条件を設定します。
type Options struct {
	Selector      string
	ExcludeMarker string // 空の場合は除外しない
}

// DefaultOptions は推奨されるデフォルト設定を返します。
func DefaultOptions() Options {
	return Options{
		Selector:      DefaultSelector,
		ExcludeMarker: DefaultExcludeMarker,
	}
}

// 汎用抽出のためのインターフェースとアダプター

// LinkSource は、リンクアイテムのリストを提供できる任意の型を表します。
// このインターフェースが抽象化の境界線となります。
type LinkSource interface {
	GetLinks() []string
}

// DocumentAdapter は描画済みの一覧ページを LinkSource に適合させるためのアダプターです。
type DocumentAdapter struct {
	doc     *goquery.Document
	baseURL *url.URL
	opts    Options
}

// NewDocumentAdapter は goquery.Document と、そのページのURLから新しいアダプターを作成します。
// pageURL は相対リンクを絶対URLに解決するために使われます。解析できない場合は解決を行いません。
func NewDocumentAdapter(doc *goquery.Document, pageURL string, opts Options) *DocumentAdapter {
	if opts.Selector == "" {
		opts.Selector = DefaultSelector
	}
	base, err := url.Parse(pageURL)
	if err != nil || pageURL == "" {
		base = nil
	}
	return &DocumentAdapter{doc: doc, baseURL: base, opts: opts}
}

// RegionFound は、セレクターに一致する要素が一つでも存在したかどうかを返します。
// 「領域が見つからない」と「リンクが0件」を区別するために使います。
func (a *DocumentAdapter) RegionFound() bool {
	if a == nil || a.doc == nil {
		return false
	}
	return a.doc.Find(a.opts.Selector).Length() > 0
}

// GetLinks は LinkSource インターフェースを満たし、対象領域のアンカーのリンク先を文書順に返します。
// 領域が見つからない場合はエラーではなく空のスライスを返します。
func (a *DocumentAdapter) GetLinks() []string {
	if a == nil || a.doc == nil {
		return []string{}
	}

	urls := []string{}
	a.doc.Find(a.opts.Selector).Each(func(i int, s *goquery.Selection) {
		// セレクターがアンカー以外に一致した場合は、その子孫のアンカーを対象にする
		anchors := s
		if !s.Is("a") {
			anchors = s.Find("a")
		}
		anchors.Each(func(j int, anchor *goquery.Selection) {
			href, ok := anchor.Attr("href")
			if !ok {
				return
			}
			link := a.resolve(strings.TrimSpace(href))
			if link == "" || isExcluded(link, a.opts.ExcludeMarker) {
				return
			}
			urls = append(urls, link)
		})
	})
	return urls
}

// resolve はブラウザの el.href と同様に、リンクをページURL基準の絶対URLへ変換します。
func (a *DocumentAdapter) resolve(href string) string {
	if href == "" {
		return ""
	}
	if a.baseURL == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return a.baseURL.ResolveReference(ref).String()
}

// FeedAdapter は gofeed.Feed を LinkSource に適合させるためのアダプターです。
// gofeed.Feed の具体的な構造への依存を内部に閉じ込めます。
type FeedAdapter struct {
	*gofeed.Feed
	excludeMarker string
}

// NewFeedAdapter は gofeed.Feed から新しいアダプターを作成します。
func NewFeedAdapter(feed *gofeed.Feed, excludeMarker string) *FeedAdapter {
	return &FeedAdapter{Feed: feed, excludeMarker: excludeMarker}
}

// GetLinks は LinkSource インターフェースを満たし、gofeed.Feed からリンクを抽出します。
func (a *FeedAdapter) GetLinks() []string {
	// nil またはアイテムがない場合は、すぐに空のスライスを返します。
	if a == nil || a.Feed == nil || len(a.Items) == 0 {
		return []string{}
	}

	urls := make([]string, 0, len(a.Items))
	for _, item := range a.Items {
		if item == nil {
			continue
		}
		link := strings.TrimSpace(item.Link)
		if link == "" || isExcluded(link, a.excludeMarker) {
			continue
		}
		urls = append(urls, link)
	}
	return urls
}

// GetAllLinks は LinkSource インターフェースを満たすオブジェクトからリンクを抽出する汎用関数です。
// この関数は LinkSource 実装の詳細を知る必要がありません。
func GetAllLinks(source LinkSource) []string {
	if source == nil {
		return []string{}
	}
	links := source.GetLinks()
	if links == nil {
		return []string{}
	}
	return links
}

func isExcluded(link, marker string) bool {
	return marker != "" && strings.Contains(link, marker)
}
