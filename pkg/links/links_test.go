package links

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockLinkSource は LinkSource インターフェースを満たすテスト用のモックです。
type MockLinkSource struct {
	Links []string
}

// GetLinks は MockLinkSource のメソッドで、設定されたリンクを返します。
func (m *MockLinkSource) GetLinks() []string {
	return m.Links
}

func newDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

const listingHTML = `<html><body>
<div id="cards">
  <a href="/customers/acme">Acme</a>
  <a href="https://www.example.com/customers/globex">Globex</a>
  <a>no href</a>
  <a href="/customers/acme">Acme again</a>
  <a href="/customers?page=load-more">Load more</a>
  <a href="customers/initech">Initech</a>
</div>
<a href="/customers/outside">outside the region</a>
</body></html>`

func TestDocumentAdapter_GetLinks(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		pageURL  string
		opts     Options
		expected []string
		region   bool
	}{
		{
			name:    "正常ケース_相対リンクを解決し順序を維持する",
			html:    listingHTML,
			pageURL: "https://www.example.com/customers",
			opts:    Options{Selector: "#cards a", ExcludeMarker: DefaultExcludeMarker},
			expected: []string{
				"https://www.example.com/customers/acme",
				"https://www.example.com/customers/globex",
				"https://www.example.com/customers/acme",
				"https://www.example.com/customers/initech",
			},
			region: true,
		},
		{
			name:    "正常ケース_セレクターが領域を指す場合は子孫のアンカーを使う",
			html:    listingHTML,
			pageURL: "https://www.example.com/customers",
			opts:    Options{Selector: "#cards", ExcludeMarker: DefaultExcludeMarker},
			expected: []string{
				"https://www.example.com/customers/acme",
				"https://www.example.com/customers/globex",
				"https://www.example.com/customers/acme",
				"https://www.example.com/customers/initech",
			},
			region: true,
		},
		{
			name:    "エッジケース_除外マーカーなしなら load-more も残る",
			html:    listingHTML,
			pageURL: "https://www.example.com/customers",
			opts:    Options{Selector: "#cards a"},
			expected: []string{
				"https://www.example.com/customers/acme",
				"https://www.example.com/customers/globex",
				"https://www.example.com/customers/acme",
				"https://www.example.com/customers?page=load-more",
				"https://www.example.com/customers/initech",
			},
			region: true,
		},
		{
			name:     "エッジケース_領域が見つからない場合は空",
			html:     listingHTML,
			pageURL:  "https://www.example.com/customers",
			opts:     Options{Selector: "#missing a", ExcludeMarker: DefaultExcludeMarker},
			expected: []string{},
			region:   false,
		},
		{
			name:     "エッジケース_ページURLが空なら相対リンクをそのまま返す",
			html:     `<div id="cards"><a href="/customers/acme">Acme</a></div>`,
			pageURL:  "",
			opts:     Options{Selector: "#cards a", ExcludeMarker: DefaultExcludeMarker},
			expected: []string{"/customers/acme"},
			region:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := NewDocumentAdapter(newDoc(t, tt.html), tt.pageURL, tt.opts)

			actual := GetAllLinks(adapter)

			assert.Equal(t, tt.expected, actual)
			assert.Equal(t, tt.region, adapter.RegionFound())
			for _, link := range actual {
				if tt.opts.ExcludeMarker != "" {
					assert.NotContains(t, link, tt.opts.ExcludeMarker)
				}
			}
		})
	}
}

func TestDocumentAdapter_DefaultSelector(t *testing.T) {
	adapter := NewDocumentAdapter(newDoc(t, listingHTML), "https://www.example.com/", Options{})

	assert.Equal(t, DefaultSelector, adapter.opts.Selector)
	assert.False(t, adapter.RegionFound())
	assert.Empty(t, adapter.GetLinks())
}

func TestFeedAdapter_GetLinks(t *testing.T) {
	tests := []struct {
		name     string
		feed     *gofeed.Feed
		marker   string
		expected []string
	}{
		{
			name: "正常ケース_複数のリンクを含む",
			feed: &gofeed.Feed{
				Items: []*gofeed.Item{
					{Link: "http://example.com/a"},
					{Link: "http://example.com/b"},
					{Link: ""}, // 空リンクは無視されるべき
					{Link: "http://example.com/load-more"},
					{Link: "http://example.com/c"},
				},
			},
			marker: DefaultExcludeMarker,
			expected: []string{
				"http://example.com/a",
				"http://example.com/b",
				"http://example.com/c",
			},
		},
		{
			name:     "エッジケース_アイテムが空",
			feed:     &gofeed.Feed{Items: []*gofeed.Item{}},
			expected: []string{},
		},
		{
			name:     "エッジケース_フィードがnil",
			feed:     nil,
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual := NewFeedAdapter(tt.feed, tt.marker).GetLinks()
			assert.Equal(t, tt.expected, actual)
		})
	}
}

func TestGetAllLinks(t *testing.T) {
	expectedLinks := []string{"link1", "link2", "link3"}

	tests := []struct {
		name     string
		source   LinkSource
		expected []string
	}{
		{
			name:     "正常ケース_MockLinkSourceの利用",
			source:   &MockLinkSource{Links: expectedLinks},
			expected: expectedLinks,
		},
		{
			name:     "エッジケース_ソースがnil",
			source:   nil,
			expected: []string{},
		},
		{
			name:     "エッジケース_ソースがnilスライスを返す",
			source:   &MockLinkSource{},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetAllLinks(tt.source))
		})
	}
}
