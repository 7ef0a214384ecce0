// Package model defines the persisted entities shared across the
// platform.
package model

import "time"

// Product line tags.
const (
	ProductTeremok    = "teremok"
	ProductFormulaRSP = "formula_rsp"
)

// Contact is one person in one product context, keyed by subject
// identity. The identity is either a chat-platform user id or a
// synthetic one minted by the lead allocator.
type Contact struct {
	UserID           int64      `json:"user_id"`
	SessionID        string     `json:"session_id,omitempty"`
	Name             string     `json:"name"`
	Role             string     `json:"role"`
	Company          string     `json:"company,omitempty"`
	TeamSize         string     `json:"team_size,omitempty"`
	Phone            string     `json:"phone,omitempty"`
	Email            string     `json:"email,omitempty"`
	Comment          string     `json:"comment,omitempty"`
	PreferredChannel string     `json:"preferred_channel,omitempty"`
	Consent          bool       `json:"consent"`
	TelegramUsername string     `json:"telegram_username,omitempty"`
	Product          string     `json:"product"`
	Source           string     `json:"source"`
	Status           string     `json:"status"`
	UTMSource        string     `json:"utm_source,omitempty"`
	UTMMedium        string     `json:"utm_medium,omitempty"`
	UTMCampaign      string     `json:"utm_campaign,omitempty"`
	UTMContent       string     `json:"utm_content,omitempty"`
	UTMTerm          string     `json:"utm_term,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

// Lead is a free-form callback request mirrored into the legacy leads
// table.
type Lead struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id,omitempty"`
	ContactInfo string    `json:"contact_info"`
	Message     string    `json:"message,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
