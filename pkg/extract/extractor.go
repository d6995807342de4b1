package extract

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
	textUtils "github.com/shouni/go-utils/text"

	"github.com/shouni/go-testimonial-exact/pkg/types"
)

// ----------------------------------------------------------------------
// 定数定義 (解析関連のみ)
// ----------------------------------------------------------------------
const (
	// DefaultCaptionSelector は、詳細ページの引用セクション内のキャプション要素のセレクターです。
	DefaultCaptionSelector = ".HeroQuoteStyles__StyledQuoteSectionContent-sc-e3812a2-5.YqNBJ figcaption"

	// MinSegments は、キャプションを「氏名, 役職, 企業名」として扱うために必要な最小の区切り数です。
	MinSegments = 3

	segmentSeparator = ","
)

// errNilDocument は、描画結果が得られなかった場合のエラーです。
var errNilDocument = errors.New("extract: document is nil")

// TestimonialExtractor は、詳細ページのキャプションから推薦者情報を抽出します。
type TestimonialExtractor struct {
	captionSelector string
}

// NewTestimonialExtractor は、新しいTestimonialExtractorのインスタンスを生成します。
// captionSelector が空の場合は DefaultCaptionSelector を使用します。
func NewTestimonialExtractor(captionSelector string) *TestimonialExtractor {
	if captionSelector == "" {
		captionSelector = DefaultCaptionSelector
	}
	return &TestimonialExtractor{captionSelector: captionSelector}
}

// Extract は、描画済みの詳細ページから1件のレコードの抽出を試みます。
// 要素が存在しない場合もエラーにはせず、NotFound として返します。
func (e *TestimonialExtractor) Extract(doc *goquery.Document, link types.DetailLink) Outcome {
	if doc == nil {
		return TransientError(errNilDocument)
	}

	// 1. キャプション要素の特定
	caption := doc.Find(e.captionSelector).First()
	if caption.Length() == 0 {
		return NotFound()
	}

	// 2. テキストの取得 (innerText と同様に空白を正規化)
	text := strings.TrimSpace(textUtils.NormalizeText(caption.Text()))

	// 3. 区切りごとに分割
	parts, ok := SplitCaption(text)
	if !ok {
		return Malformed(text)
	}

	// 4. レコードへのマッピング (4つ目以降の区切りは無視)
	return Success(types.NewTestimonialRecord(parts[0], parts[1], parts[2], link))
}

// SplitCaption は、キャプションをカンマで分割し、各要素をトリムして返します。
// 要素数が MinSegments 未満の場合は false を返します。
func SplitCaption(text string) ([]string, bool) {
	raw := strings.Split(text, segmentSeparator)
	parts := make([]string, len(raw))
	for i, p := range raw {
		parts[i] = strings.TrimSpace(p)
	}
	if len(parts) < MinSegments {
		return parts, false
	}
	return parts, true
}
