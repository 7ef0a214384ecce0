package lead

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/vostroslava/teremok-platform/internal/model"
	"github.com/vostroslava/teremok-platform/internal/store"
)

// Resolver finds an existing contact for a submission that carries no
// explicit identity, matching on product + handle within a lookback
// window. Two near-simultaneous submissions for the same new handle can
// both miss and create two contacts; there is no locking across the
// find-then-write sequence and that gap is accepted.
type Resolver struct {
	store  store.Store
	window time.Duration
}

// NewResolver builds a Resolver with the given lookback window in days.
func NewResolver(st store.Store, windowDays int) *Resolver {
	if windowDays <= 0 {
		windowDays = 30
	}
	return &Resolver{store: st, window: time.Duration(windowDays) * 24 * time.Hour}
}

// FindDuplicate returns the most recent contact for the same product and
// handle inside the window, or nil when none matches. An empty handle
// never matches anything.
func (r *Resolver) FindDuplicate(ctx context.Context, product, handle string) (*model.Contact, error) {
	if handle == "" {
		return nil, nil
	}
	since := time.Now().UTC().Add(-r.window)
	c, err := r.store.FindContactByHandle(ctx, product, handle, since)
	if err != nil {
		return nil, eris.Wrap(err, "lead: dedup lookup")
	}
	return c, nil
}

// Merge folds a new submission into an existing contact. Descriptive
// fields adopt the new value only when it is non-empty; attribution
// fields always take the newest touch.
func Merge(existing, incoming *model.Contact) *model.Contact {
	merged := *existing

	merged.Name = mergeValue(incoming.Name, existing.Name, "Unknown")
	merged.Role = mergeValue(incoming.Role, existing.Role, "other")
	merged.Email = firstNonEmpty(incoming.Email, existing.Email)
	merged.Company = firstNonEmpty(incoming.Company, existing.Company)
	merged.TeamSize = firstNonEmpty(incoming.TeamSize, existing.TeamSize)
	merged.Comment = firstNonEmpty(incoming.Comment, existing.Comment)
	merged.PreferredChannel = firstNonEmpty(incoming.PreferredChannel, existing.PreferredChannel)
	merged.TelegramUsername = firstNonEmpty(incoming.TelegramUsername, existing.TelegramUsername)
	merged.SessionID = firstNonEmpty(incoming.SessionID, existing.SessionID)
	merged.Consent = existing.Consent || incoming.Consent

	// Last-touch attribution.
	merged.Source = incoming.Source
	merged.UTMSource = incoming.UTMSource
	merged.UTMMedium = incoming.UTMMedium
	merged.UTMCampaign = incoming.UTMCampaign
	merged.UTMContent = incoming.UTMContent
	merged.UTMTerm = incoming.UTMTerm

	return &merged
}

// mergeValue prefers a real incoming value, then the existing one. The
// normalizer's placeholder never overwrites something a person typed.
func mergeValue(incoming, existing, placeholder string) string {
	if incoming != "" && incoming != placeholder {
		return incoming
	}
	if existing != "" {
		return existing
	}
	return incoming
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
