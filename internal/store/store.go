package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vostroslava/teremok-platform/internal/model"
)

// SessionFilter specifies criteria for listing unified test sessions.
// SortBy is matched against a fixed allow-list; anything else silently
// falls back to creation-time descending.
type SessionFilter struct {
	Product   string `json:"product,omitempty"`
	Days      int    `json:"days,omitempty"`
	SortBy    string `json:"sort_by,omitempty"`
	SortOrder string `json:"sort_order,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// LegacyFilter specifies criteria for listing legacy teremok results.
type LegacyFilter struct {
	Product    string `json:"product,omitempty"`
	ResultType string `json:"result_type,omitempty"`
	Days       int    `json:"days,omitempty"`
	SortBy     string `json:"sort_by,omitempty"`
	SortOrder  string `json:"sort_order,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// Store defines the persistence interface for the lead and test-session
// pipeline.
type Store interface {
	// Contacts
	UpsertContact(ctx context.Context, c *model.Contact) error
	GetContact(ctx context.Context, userID int64) (*model.Contact, error)
	HasContact(ctx context.Context, userID int64) (bool, error)
	FindContactByHandle(ctx context.Context, product, handle string, since time.Time) (*model.Contact, error)

	// Legacy free-text leads
	SubmitLead(ctx context.Context, l *model.Lead) (int64, error)

	// Unified sessions
	InsertSession(ctx context.Context, s *model.TestSession) (int64, error)
	InsertSessionIfAbsent(ctx context.Context, s *model.TestSession) (bool, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]model.SessionRow, error)

	// Legacy result tables
	InsertTeremokResult(ctx context.Context, r *model.TeremokResult) (int64, error)
	InsertFormulaResult(ctx context.Context, r *model.FormulaResult) (int64, error)
	GetTeremokResult(ctx context.Context, id int64) (*model.TeremokResult, error)
	GetFormulaResult(ctx context.Context, id int64) (*model.FormulaResult, error)
	ListTeremokJoined(ctx context.Context) ([]model.TeremokResult, error)
	ListFormulaJoined(ctx context.Context) ([]model.FormulaResult, error)
	ListLegacyTests(ctx context.Context, filter LegacyFilter) ([]model.LegacyRow, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// sessionSortColumns is the allow-list for ListSessions. Values are
// static identifiers, never caller input.
var sessionSortColumns = map[string]string{
	"created_at":   "ts.created_at",
	"product":      "ts.product",
	"status":       "ts.status",
	"source":       "ts.source",
	"lead_name":    "c.name",
	"lead_company": "c.company",
	"lead_role":    "c.role",
}

// legacySortColumns is the allow-list for ListLegacyTests.
var legacySortColumns = map[string]string{
	"created_at":  "t.created_at",
	"result_type": "t.result_type",
	"product":     "t.product",
	"name":        "c.name",
	"company":     "c.company",
	"role":        "c.role",
}

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// orderClause resolves a requested sort against an allow-list. Unknown
// keys are not an error: the caller gets creation-time descending.
func orderClause(allowed map[string]string, fallback, sortBy, sortOrder string) string {
	col, ok := allowed[sortBy]
	if !ok {
		return fmt.Sprintf(" ORDER BY %s DESC", fallback)
	}
	order := "DESC"
	if strings.EqualFold(sortOrder, "asc") {
		order = "ASC"
	}
	return fmt.Sprintf(" ORDER BY %s %s", col, order)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
