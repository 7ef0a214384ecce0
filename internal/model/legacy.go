package model

import "time"

// TeremokResult is a row in the legacy test_results table. Source and
// PreferredChannel are populated only by joined reads.
type TeremokResult struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	ResultType string    `json:"result_type"`
	Scores     string    `json:"scores"`
	Answers    string    `json:"answers"`
	Product    string    `json:"product"`
	CreatedAt  time.Time `json:"created_at"`

	Source           string `json:"source,omitempty"`
	PreferredChannel string `json:"preferred_channel,omitempty"`
}

// FormulaResult is a row in the legacy formula_rsp_results table.
type FormulaResult struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	PrimaryTypeCode string    `json:"primary_type_code"`
	PrimaryTypeName string    `json:"primary_type_name"`
	Scores          string    `json:"scores"`
	Answers         string    `json:"answers"`
	CreatedAt       time.Time `json:"created_at"`

	Source           string `json:"source,omitempty"`
	PreferredChannel string `json:"preferred_channel,omitempty"`
}

// LegacyRow is a TeremokResult joined with contact fields for the
// legacy dashboard listing.
type LegacyRow struct {
	TeremokResult
	Name             string `json:"name"`
	Role             string `json:"role"`
	Company          string `json:"company"`
	TeamSize         string `json:"team_size"`
	Phone            string `json:"phone"`
	TelegramUsername string `json:"telegram_username"`
}
