package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// DefaultWorkers は同時に実行するインジェスト数
const DefaultWorkers = 4

// ErrRunnerClosed は Shutdown 後に Submit された場合のエラー
var ErrRunnerClosed = errors.New("runner is closed")

// Runner はリクエストから切り離してタスクを実行するプロセス内ランナー。
// Submit は呼び出し元をブロックせず、実行数はワーカー数で制限される
type Runner struct {
	ctx    context.Context
	cancel context.CancelFunc
	slots  chan struct{}
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool

	logger *slog.Logger
}

// RunnerOption は Runner のオプション設定
type RunnerOption func(*Runner)

// WithRunnerLogger は Runner にロガーを設定する
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner は workers 件まで同時実行する Runner を作成する
func NewRunner(workers int, opts ...RunnerOption) *Runner {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		ctx:    ctx,
		cancel: cancel,
		slots:  make(chan struct{}, workers),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Submit はタスクを登録する。タスクには Runner のコンテキストが渡され、
// Shutdown のタイムアウト時にキャンセルされる
func (r *Runner) Submit(name string, task func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRunnerClosed
	}

	r.wg.Add(1)
	go r.execute(name, task)
	return nil
}

func (r *Runner) execute(name string, task func(ctx context.Context) error) {
	defer r.wg.Done()

	// キャンセル済みでもタスク自身に後始末させるため実行はする
	select {
	case r.slots <- struct{}{}:
		defer func() { <-r.slots }()
	case <-r.ctx.Done():
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("タスクが panic しました", "task", name, "panic", fmt.Sprint(rec))
		}
	}()

	if err := task(r.ctx); err != nil {
		r.logger.Warn("タスクがエラーで終了", "task", name, "error", err)
		return
	}
	r.logger.Debug("タスク完了", "task", name)
}

// Wait は登録済みのタスクがすべて終わるまで待つ
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown は新規受付を止めて実行中のタスクを待つ。
// ctx が先に終了した場合は残りのタスクをキャンセルし、終了を待ってから ctx のエラーを返す
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return ctx.Err()
	}
}
