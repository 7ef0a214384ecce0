package lead

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vostroslava/teremok-platform/internal/model"
)

func TestNormalizeAliases(t *testing.T) {
	c, err := Normalize(map[string]any{
		"consent":            true,
		"name":               "  Алёна ",
		"phone_or_messenger": "+7 999 123-45-67",
		"phone":              "ignored",
		"position":           "ceo",
		"message":            "perezvonite",
		"utm_source":         "vk",
	})
	require.NoError(t, err)

	assert.Equal(t, "Алёна", c.Name)
	assert.Equal(t, "+79991234567", c.Phone, "canonical alias wins and formatting is stripped")
	assert.Equal(t, "ceo", c.Role)
	assert.Equal(t, "perezvonite", c.Comment)
	assert.Equal(t, "vk", c.UTMSource)
	assert.Equal(t, model.ProductTeremok, c.Product)
	assert.Equal(t, "landing", c.Source)
	assert.True(t, c.Consent)
}

func TestNormalizeDefaults(t *testing.T) {
	c, err := Normalize(map[string]any{"consent": "yes"})
	require.NoError(t, err)

	assert.Equal(t, "Unknown", c.Name)
	assert.Equal(t, "other", c.Role)
	assert.Empty(t, c.Phone)
	assert.Equal(t, "new", c.Status)
}

func TestNormalizeConsentGate(t *testing.T) {
	for name, payload := range map[string]map[string]any{
		"absent":       {"name": "Alice"},
		"false":        {"name": "Alice", "consent": false},
		"false string": {"name": "Alice", "consent": "false"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Normalize(payload)
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "consent", verr.Field)
		})
	}
}

func TestNormalizeHandle(t *testing.T) {
	assert.Equal(t, "@username", normalizeHandle("@UserName"))
	assert.Equal(t, "+79991234567", normalizeHandle("+7 (999) 123-45-67"))
	assert.Empty(t, normalizeHandle(""))
}

func TestNormalizeUserID(t *testing.T) {
	c, err := Normalize(map[string]any{"consent": true, "user_id": float64(42)})
	require.NoError(t, err)
	assert.Equal(t, int64(42), c.UserID)

	c, err = Normalize(map[string]any{"consent": true, "user_id": "77"})
	require.NoError(t, err)
	assert.Equal(t, int64(77), c.UserID)
}
