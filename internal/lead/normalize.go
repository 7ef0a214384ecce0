// Package lead implements the intake pipeline for contact submissions:
// payload normalization, duplicate resolution, identity allocation and
// the register orchestration that ties them together.
package lead

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/vostroslava/teremok-platform/internal/model"
)

// ValidationError rejects a submission before any persistence happens.
// Handlers map it to a 4xx response.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("lead: invalid field %q: %s", e.Field, e.Reason)
}

// fieldAliases maps each canonical field to the payload keys that may
// carry it, canonical name first. First non-empty value wins.
var fieldAliases = []struct {
	canonical string
	aliases   []string
}{
	{"name", []string{"name", "full_name", "fio"}},
	{"role", []string{"role", "position"}},
	{"phone", []string{"phone_or_messenger", "phone", "messenger"}},
	{"email", []string{"email"}},
	{"company", []string{"company", "company_name"}},
	{"team_size", []string{"team_size", "teamsize"}},
	{"comment", []string{"comment", "message"}},
	{"preferred_channel", []string{"preferred_channel", "channel"}},
	{"product", []string{"product"}},
	{"source", []string{"source"}},
	{"session_id", []string{"session_id"}},
	{"telegram_username", []string{"telegram_username", "username"}},
	{"utm_source", []string{"utm_source"}},
	{"utm_medium", []string{"utm_medium"}},
	{"utm_campaign", []string{"utm_campaign"}},
	{"utm_content", []string{"utm_content"}},
	{"utm_term", []string{"utm_term"}},
}

// Normalize maps a loosely-typed submission into a canonical Contact
// draft. Missing soft fields get placeholders; consent is the one hard
// precondition and its absence is a ValidationError.
func Normalize(payload map[string]any) (*model.Contact, error) {
	if !truthy(payload["consent"]) {
		return nil, &ValidationError{Field: "consent", Reason: "explicit consent is required"}
	}

	fields := make(map[string]string, len(fieldAliases))
	for _, fa := range fieldAliases {
		for _, alias := range fa.aliases {
			if v := cleanString(payload[alias]); v != "" {
				fields[fa.canonical] = v
				break
			}
		}
	}

	c := &model.Contact{
		UserID:           asInt64(payload["user_id"]),
		SessionID:        fields["session_id"],
		Name:             withDefault(fields["name"], "Unknown"),
		Role:             withDefault(fields["role"], "other"),
		Phone:            normalizeHandle(fields["phone"]),
		Email:            fields["email"],
		Company:          fields["company"],
		TeamSize:         fields["team_size"],
		Comment:          fields["comment"],
		PreferredChannel: fields["preferred_channel"],
		Consent:          true,
		Product:          withDefault(fields["product"], model.ProductTeremok),
		Source:           withDefault(fields["source"], "landing"),
		TelegramUsername: fields["telegram_username"],
		Status:           "new",
		UTMSource:        fields["utm_source"],
		UTMMedium:        fields["utm_medium"],
		UTMCampaign:      fields["utm_campaign"],
		UTMContent:       fields["utm_content"],
		UTMTerm:          fields["utm_term"],
	}
	return c, nil
}

// cleanString coerces a payload value to a trimmed, NFC-normalized string.
func cleanString(v any) string {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case fmt.Stringer:
		s = t.String()
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	default:
		return ""
	}
	return strings.TrimSpace(norm.NFC.String(s))
}

// normalizeHandle strips formatting noise from phone-shaped handles so
// the same number always compares equal during dedup. Messenger handles
// (@name) are lowercased instead.
func normalizeHandle(h string) string {
	if h == "" {
		return ""
	}
	if strings.HasPrefix(h, "@") {
		return strings.ToLower(h)
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, h)
}

func withDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "on":
			return true
		}
	case float64:
		return t != 0
	case int:
		return t != 0
	}
	return false
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n
	}
	return 0
}
