package render

import (
	"context"
	"errors"

	"github.com/PuerkitoBio/goquery"
)

// ----------------------------------------------------------------------
// 依存性の定義 (DIP)
// ----------------------------------------------------------------------

// ErrPageClosed は、Close 済みのページを操作しようとした場合に返されます。
var ErrPageClosed = errors.New("render: page is closed")

// ErrNotNavigated は、Navigate の前に Document を呼び出した場合に返されます。
var ErrNotNavigated = errors.New("render: page has not been navigated")

// Page は、1回の試行だけで使われる描画済みページです。
// 呼び出し側は、結果に関わらず必ず Close を呼び出す責務を持ちます。
type Page interface {
	// Navigate は、URLを読み込み、ロード完了 (またはコンテキストの期限切れ) まで待機します。
	Navigate(ctx context.Context, url string) error
	// Document は、現在描画されているDOMを goquery.Document として返します。
	Document(ctx context.Context) (*goquery.Document, error)
	// URL は、リダイレクト後の最終的なURLを返します。Navigate 前は空文字列です。
	URL() string
	Close() error
}

// Renderer は、実行全体で共有されるブラウザセッション (またはその代替) です。
// 実行開始時に一度だけ取得し、終了時に一度だけ Close します。
type Renderer interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}
