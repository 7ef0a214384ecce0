// Package tasks runs best-effort side effects after the primary
// operation has committed. A failed task is logged with its name and
// never affects the committed result.
package tasks

import (
	"context"

	"go.uber.org/zap"
)

// Task is one named post-commit side effect.
type Task struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Run executes tasks in order. Every failure is logged and swallowed;
// Run itself never fails.
func Run(ctx context.Context, list []Task) {
	for _, t := range list {
		if t.Fn == nil {
			continue
		}
		if err := t.Fn(ctx); err != nil {
			zap.L().Warn("post-commit task failed",
				zap.String("task", t.Name),
				zap.Error(err))
		}
	}
}
