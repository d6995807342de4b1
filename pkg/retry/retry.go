package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// リトライ関連の定数
	DefaultMaxRetries = 2 // 最大リトライ回数 (初回と合わせて3回試行)

	// バックオフのカスタム設定
	InitialBackoffInterval = 500 * time.Millisecond
	MaxBackoffInterval     = 5 * time.Second
)

// Operation はリトライ可能な処理を表す関数です。成功時は nil を返します。
type Operation func() error

// ShouldRetryFunc はエラーを受け取り、そのエラーがリトライ可能かどうかを判定する関数です。
type ShouldRetryFunc func(error) bool

// NotifyFunc は、リトライの待機に入る直前に、直前のエラーと待機時間を受け取ります。
type NotifyFunc func(err error, wait time.Duration)

// Config はリトライ動作を設定するための構造体です。
type Config struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Notify          NotifyFunc // nil の場合は通知しない
}

// DefaultConfig は推奨されるデフォルト設定を返します。
func DefaultConfig() Config {
	return Config{
		MaxRetries:      DefaultMaxRetries,
		InitialInterval: InitialBackoffInterval,
		MaxInterval:     MaxBackoffInterval,
	}
}

// newBackOffPolicy は Config から、回数上限とコンテキストを適用した指数バックオフを構築します。
// 経過時間による打ち切りは行わず、回数のみで終了を判定します。
func newBackOffPolicy(ctx context.Context, cfg Config) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval
	b.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(b, cfg.MaxRetries), ctx)
}

// Do は指数バックオフとカスタムエラー判定を使用して操作をリトライします。
// 操作は最大で cfg.MaxRetries + 1 回実行されます。
// shouldRetryFn が nil の場合は、すべてのエラーをリトライ対象とみなします。
func Do(ctx context.Context, cfg Config, operationName string, op Operation, shouldRetryFn ShouldRetryFunc) error {
	bo := newBackOffPolicy(ctx, cfg)

	var lastErr error
	permanent := false

	// リトライ処理内で実行される実際の操作
	retryableOp := func() error {
		err := op()
		if err == nil {
			return nil // 成功
		}

		// 操作自身が永続エラーを返した場合は、その中身を最終エラーとする
		var pErr *backoff.PermanentError
		if errors.As(err, &pErr) {
			permanent = true
			lastErr = pErr.Err
			return err
		}

		lastErr = err
		if shouldRetryFn == nil || shouldRetryFn(err) {
			return err // リトライ対象
		}

		permanent = true
		return backoff.Permanent(err) // 永続エラーとしてラップし、即時終了
	}

	var notify backoff.Notify
	if cfg.Notify != nil {
		notify = backoff.Notify(cfg.Notify)
	}

	err := backoff.RetryNotify(retryableOp, bo, notify)
	if err == nil {
		return nil
	}

	// 致命的なエラーはラップせずにそのまま返す
	if permanent {
		return lastErr
	}

	// コンテキストキャンセル/タイムアウトのエラー処理
	// 1回ごとの試行のタイムアウトと区別するため、親コンテキストの状態で判定する
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%sに失敗しました: コンテキストタイムアウト/キャンセル: %w", operationName, ctxErr)
	}

	// その他のリトライ上限到達エラー
	return fmt.Errorf("%sに失敗しました: 最大リトライ回数 (%d回) に到達。最終エラー: %w", operationName, cfg.MaxRetries, lastErr)
}
