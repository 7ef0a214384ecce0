// Package notify delivers fire-and-forget messages about captured leads
// and finished tests to a manager chat, and answers subscription checks
// against the required channel.
package notify

import (
	"context"

	"github.com/vostroslava/teremok-platform/internal/model"
)

// Notifier is the outbound message sink. All methods are best-effort;
// callers log failures and move on.
type Notifier interface {
	LeadCaptured(ctx context.Context, c *model.Contact, deduped bool) error
	TestFinished(ctx context.Context, subject int64, product, resultType string) error
}

// SubscriptionChecker reports whether a subject follows the required
// channel. An unreachable backend means "not subscribed" plus an error
// the caller can surface explicitly.
type SubscriptionChecker interface {
	IsSubscribed(ctx context.Context, userID int64) (bool, error)
}

// Noop satisfies both interfaces and does nothing. Used when no bot
// token is configured.
type Noop struct{}

func (Noop) LeadCaptured(context.Context, *model.Contact, bool) error  { return nil }
func (Noop) TestFinished(context.Context, int64, string, string) error { return nil }
func (Noop) IsSubscribed(context.Context, int64) (bool, error)         { return false, nil }
