package parser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockFetcher は Fetcher インターフェースのモックです。
type MockFetcher struct {
	FetchBytesFunc func(ctx context.Context, url string) ([]byte, error)
}

// FetchBytes は設定された関数を実行します。
func (m *MockFetcher) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	return m.FetchBytesFunc(ctx, url)
}

func TestNewParser(t *testing.T) {
	_, err := NewParser(nil)
	assert.Error(t, err)

	p, err := NewParser(&MockFetcher{})
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestFetchAndParse(t *testing.T) {
	ctx := context.Background()
	testURL := "https://www.example.com/customers/feed"

	// 最小限の有効なRSS XML
	validRSS := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Customer Stories</title>
    <link>https://www.example.com/customers</link>
    <item>
      <title>Acme</title>
      <link>https://www.example.com/customers/acme</link>
    </item>
    <item>
      <title>Globex</title>
      <link>https://www.example.com/customers/globex</link>
    </item>
  </channel>
</rss>`

	validAtom := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Customer Stories</title>
  <entry>
    <title>Acme</title>
    <link href="https://www.example.com/customers/acme"/>
  </entry>
</feed>`

	tests := []struct {
		name          string
		mockFetchFunc func(ctx context.Context, url string) ([]byte, error)
		expectedTitle string
		expectedLinks []string
		errorContains string
	}{
		{
			name: "成功ケース_有効なRSS",
			mockFetchFunc: func(ctx context.Context, url string) ([]byte, error) {
				return []byte(validRSS), nil
			},
			expectedTitle: "Customer Stories",
			expectedLinks: []string{
				"https://www.example.com/customers/acme",
				"https://www.example.com/customers/globex",
			},
		},
		{
			name: "成功ケース_有効なAtom",
			mockFetchFunc: func(ctx context.Context, url string) ([]byte, error) {
				return []byte(validAtom), nil
			},
			expectedTitle: "Customer Stories",
			expectedLinks: []string{"https://www.example.com/customers/acme"},
		},
		{
			name: "エラーケース_フィード取得失敗",
			mockFetchFunc: func(ctx context.Context, url string) ([]byte, error) {
				return nil, errors.New("HTTPエラー: 500 Internal Server Error")
			},
			errorContains: "フィードの取得失敗",
		},
		{
			name: "エラーケース_パース失敗",
			mockFetchFunc: func(ctx context.Context, url string) ([]byte, error) {
				return []byte(`<invalid><tag>`), nil
			},
			errorContains: "RSSフィードのパース失敗",
		},
		{
			name: "エッジケース_空ボディ",
			mockFetchFunc: func(ctx context.Context, url string) ([]byte, error) {
				return []byte(""), nil
			},
			errorContains: "RSSフィードのパース失敗",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requested string
			mock := &MockFetcher{
				FetchBytesFunc: func(ctx context.Context, url string) ([]byte, error) {
					requested = url
					return tt.mockFetchFunc(ctx, url)
				},
			}
			p, err := NewParser(mock)
			require.NoError(t, err)

			feed, err := p.FetchAndParse(ctx, testURL)
			assert.Equal(t, testURL, requested)

			if tt.errorContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				assert.Nil(t, feed)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, feed)
			assert.Equal(t, tt.expectedTitle, feed.Title)

			links := make([]string, 0, len(feed.Items))
			for _, item := range feed.Items {
				links = append(links, item.Link)
			}
			assert.Equal(t, tt.expectedLinks, links)
		})
	}
}
