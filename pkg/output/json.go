package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shouni/go-testimonial-exact/pkg/types"
)

// DefaultPath は、出力ファイルの既定のパスです。
const DefaultPath = "digital_ocean-case_studies.json"

const indent = "  "

// Encode は、レコードを2スペースインデントのJSON配列に変換します。
// レコードが0件の場合は空配列 "[]" になります。
func Encode(records []types.TestimonialRecord) ([]byte, error) {
	if records == nil {
		records = []types.TestimonialRecord{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", indent)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("JSONへの変換に失敗しました: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteJSON は、レコードをJSON配列として path に書き出します。既存のファイルは上書きされます。
// 同じディレクトリに一時ファイルを書いてから置き換えるため、途中で失敗しても既存ファイルは壊れません。
func WriteJSON(path string, records []types.TestimonialRecord) error {
	if path == "" {
		path = DefaultPath
	}

	data, err := Encode(records)
	if err != nil {
		return err
	}

	// 1. 一時ファイルへの書き込み
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("一時ファイルの作成に失敗しました: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // rename 成功後は何もしない

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("出力ファイルへの書き込みに失敗しました: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("出力ファイルのクローズに失敗しました: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("出力ファイルの権限設定に失敗しました: %w", err)
	}

	// 2. 置き換え
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("出力ファイルの置き換えに失敗しました (path: %s): %w", path, err)
	}
	return nil
}
