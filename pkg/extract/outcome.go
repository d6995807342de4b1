package extract

import (
	"fmt"

	"github.com/shouni/go-testimonial-exact/pkg/types"
)

// OutcomeKind は、1回の抽出試行の結果の種類です。
type OutcomeKind int

const (
	// OutcomeSuccess はレコードの抽出に成功したことを示します。
	OutcomeSuccess OutcomeKind = iota
	// OutcomeNotFound はキャプション要素が存在しなかったことを示します。
	OutcomeNotFound
	// OutcomeMalformed はキャプションのカンマ区切りが3つ未満だったことを示します。
	OutcomeMalformed
	// OutcomeTransientError はページの取得・描画自体に失敗したことを示します (リトライ対象)。
	OutcomeTransientError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeTransientError:
		return "transient_error"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome は、抽出試行の結果を表すタグ付きの値です。
// Kind に応じて Record (Success)、RawText (Malformed)、Err (TransientError) のいずれかが設定されます。
type Outcome struct {
	Kind    OutcomeKind
	Record  *types.TestimonialRecord
	RawText string
	Err     error
}

// Success は抽出に成功した Outcome を生成します。
func Success(record types.TestimonialRecord) Outcome {
	return Outcome{Kind: OutcomeSuccess, Record: &record}
}

// NotFound はキャプションが見つからなかった Outcome を生成します。
func NotFound() Outcome {
	return Outcome{Kind: OutcomeNotFound}
}

// Malformed は形式が不正だった Outcome を、元のテキストとともに生成します。
func Malformed(rawText string) Outcome {
	return Outcome{Kind: OutcomeMalformed, RawText: rawText}
}

// TransientError は一時的な失敗の Outcome を生成します。
func TransientError(err error) Outcome {
	return Outcome{Kind: OutcomeTransientError, Err: err}
}

// Resolved は、この結果でリトライを終了してよいかどうかを返します。
// ページの内容に起因する結果 (Success / NotFound / Malformed) はリトライしても変わりません。
func (o Outcome) Resolved() bool {
	return o.Kind != OutcomeTransientError
}
