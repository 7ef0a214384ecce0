package model

import "time"

// SessionStatusFinished is the only lifecycle status produced today;
// draft or in-progress sessions are not modeled.
const SessionStatusFinished = "finished"

// Legacy origin tags for the (legacy_source, legacy_id) idempotency key.
const (
	LegacySourceTeremok = "teremok_test_results"
	LegacySourceFormula = "formula_rsp_results"
)

// TestSession is one finished test attempt in the unified append-only
// table. LegacySource/LegacyID are set only for backfilled rows; their
// pair is unique when both are non-null and is the sole duplicate
// guard for repeated migration runs.
type TestSession struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Product      string    `json:"product"`
	Source       string    `json:"source"`
	Channel      string    `json:"channel"`
	Status       string    `json:"status"`
	AnswersJSON  string    `json:"answers_json"`
	ResultJSON   string    `json:"result_json"`
	MetaJSON     string    `json:"meta_json,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LegacySource *string   `json:"legacy_source,omitempty"`
	LegacyID     *int64    `json:"legacy_id,omitempty"`
}

// SessionRow is a TestSession joined with its contact's lead fields
// for the query layer. Contact fields are empty for anonymous subjects.
type SessionRow struct {
	TestSession
	LeadName             string `json:"lead_name"`
	LeadPhone            string `json:"lead_phone"`
	LeadRole             string `json:"lead_role"`
	LeadCompany          string `json:"lead_company"`
	LeadTeamSize         string `json:"lead_team_size"`
	LeadPreferredChannel string `json:"lead_preferred_channel"`
	UTMSource            string `json:"utm_source"`
	UTMMedium            string `json:"utm_medium"`
	UTMCampaign          string `json:"utm_campaign"`
}

// ResultDoc is the canonical result document stored in result_json.
// PrimaryName is set only for formula_rsp results.
type ResultDoc struct {
	Type        string             `json:"type"`
	PrimaryName string             `json:"primary_name,omitempty"`
	Scores      map[string]float64 `json:"scores"`
}
