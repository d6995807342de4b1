package types

// DetailLink は、顧客事例の詳細ページを指す絶対URLです。
// 収集後に変更されることはなく、重複もそのまま保持されます。
type DetailLink = string

// Testimonial は、詳細ページのキャプションから取り出した推薦者の情報を保持します。
type Testimonial struct {
	Name    string `json:"name"`    // 推薦者の氏名
	Title   string `json:"title"`   // 役職
	Company string `json:"company"` // 所属企業
	URL     string `json:"URL"`     // 抽出元の詳細ページURL
}

// TestimonialRecord は、出力ファイルに書き出される1件分のレコードです。
// 抽出成功時に一度だけ生成され、以降は変更されません。
type TestimonialRecord struct {
	Company     string      `json:"company"`
	Testimonial Testimonial `json:"testimonial"`
}

// NewTestimonialRecord は、氏名・役職・企業名と抽出元URLからレコードを生成します。
// 企業名はトップレベルとネストされた testimonial の両方に設定されます。
func NewTestimonialRecord(name, title, company string, link DetailLink) TestimonialRecord {
	return TestimonialRecord{
		Company: company,
		Testimonial: Testimonial{
			Name:    name,
			Title:   title,
			Company: company,
			URL:     link,
		},
	}
}
