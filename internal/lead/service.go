package lead

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vostroslava/teremok-platform/internal/model"
	"github.com/vostroslava/teremok-platform/internal/store"
	"github.com/vostroslava/teremok-platform/internal/tasks"
)

// Notifier announces a captured lead. Implementations are best-effort.
type Notifier interface {
	LeadCaptured(ctx context.Context, c *model.Contact, deduped bool) error
}

// Exporter appends a captured lead to an external report.
type Exporter interface {
	AppendLead(ctx context.Context, c *model.Contact) error
}

// Service orchestrates lead registration: normalize, resolve identity,
// persist, then dispatch post-commit side effects.
type Service struct {
	store    store.Store
	resolver *Resolver
	notifier Notifier
	exporter Exporter
}

// NewService builds a lead Service. Notifier and exporter may be nil;
// the corresponding side effects are then skipped.
func NewService(st store.Store, windowDays int, notifier Notifier, exporter Exporter) *Service {
	return &Service{
		store:    st,
		resolver: NewResolver(st, windowDays),
		notifier: notifier,
		exporter: exporter,
	}
}

// Result is the outcome of a register call.
type Result struct {
	LeadID    int64  `json:"lead_id"`
	Deduped   bool   `json:"deduped"`
	SessionID string `json:"session_id"`
}

// Register runs the full intake pipeline for one submission. The
// returned error is a *ValidationError when the payload is rejected
// before persistence.
func (s *Service) Register(ctx context.Context, payload map[string]any) (*Result, error) {
	draft, err := Normalize(payload)
	if err != nil {
		return nil, err
	}
	if draft.SessionID == "" {
		draft.SessionID = uuid.NewString()
	}

	deduped := false
	if draft.UserID == 0 {
		existing, err := s.resolver.FindDuplicate(ctx, draft.Product, draft.Phone)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			draft = Merge(existing, draft)
			deduped = true
		} else {
			draft.UserID = AllocateIdentity()
		}
	}

	if err := s.store.UpsertContact(ctx, draft); err != nil {
		return nil, eris.Wrap(err, "lead: persist contact")
	}

	zap.L().Info("lead registered",
		zap.Int64("user_id", draft.UserID),
		zap.String("product", draft.Product),
		zap.Bool("deduped", deduped),
		zap.Bool("synthetic", IsSynthetic(draft.UserID)))

	s.afterCommit(ctx, draft, deduped)

	return &Result{LeadID: draft.UserID, Deduped: deduped, SessionID: draft.SessionID}, nil
}

// afterCommit dispatches the best-effort side effects. The contact is
// already persisted; nothing here can fail the request.
func (s *Service) afterCommit(ctx context.Context, c *model.Contact, deduped bool) {
	var list []tasks.Task
	if s.notifier != nil {
		list = append(list, tasks.Task{Name: "notify-lead", Fn: func(ctx context.Context) error {
			return s.notifier.LeadCaptured(ctx, c, deduped)
		}})
	}
	if s.exporter != nil {
		list = append(list, tasks.Task{Name: "export-lead", Fn: func(ctx context.Context) error {
			return s.exporter.AppendLead(ctx, c)
		}})
	}
	if c.Comment != "" {
		// Mirror free-text requests into the legacy leads table while the
		// old admin tooling still reads from it.
		list = append(list, tasks.Task{Name: "mirror-legacy-lead", Fn: func(ctx context.Context) error {
			handle := c.Phone
			if handle == "" {
				handle = c.TelegramUsername
			}
			_, err := s.store.SubmitLead(ctx, &model.Lead{
				UserID:      c.UserID,
				ContactInfo: handle,
				Message:     c.Comment,
			})
			return err
		}})
	}
	tasks.Run(ctx, list)
}
