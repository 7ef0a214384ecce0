package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vostroslava/teremok-platform/internal/model"
	"github.com/vostroslava/teremok-platform/internal/store"
)

type fakeChecker struct {
	subscribed bool
	err        error
}

func (f *fakeChecker) IsSubscribed(context.Context, int64) (bool, error) {
	return f.subscribed, f.err
}

func newTestServer(t *testing.T, opts ...func(*Options)) (*Server, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	o := Options{Store: st, DedupWindow: 30, HistoryLimit: 200}
	for _, fn := range opts {
		fn(&o)
	}
	return NewServer(o), st
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, body := doJSON(t, srv.Router(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestLeadRegister(t *testing.T) {
	srv, st := newTestServer(t)
	router := srv.Router()

	rec, body := doJSON(t, router, http.MethodPost, "/api/lead/register", map[string]any{
		"consent":            true,
		"name":               "Alice",
		"phone_or_messenger": "+79991234567",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.False(t, body["deduped"].(bool))
	assert.NotEmpty(t, body["session_id"])

	leadID := int64(body["lead_id"].(float64))
	c, err := st.GetContact(context.Background(), leadID)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Alice", c.Name)
}

func TestLeadRegisterConsentGate(t *testing.T) {
	srv, st := newTestServer(t)

	rec, body := doJSON(t, srv.Router(), http.MethodPost, "/api/lead/register", map[string]any{
		"name":               "Alice",
		"phone_or_messenger": "+79991234567",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", body["status"])

	found, err := st.FindContactByHandle(context.Background(), model.ProductTeremok,
		"+79991234567", time.Now().UTC().AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestLeadRegisterDedup(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	payload := map[string]any{
		"consent":            true,
		"name":               "Alice",
		"phone_or_messenger": "+79991234567",
	}
	_, first := doJSON(t, router, http.MethodPost, "/api/lead/register", payload)

	payload["company"] = "Acme"
	_, second := doJSON(t, router, http.MethodPost, "/api/lead/register", payload)

	assert.True(t, second["deduped"].(bool))
	assert.Equal(t, first["lead_id"], second["lead_id"])
}

func TestContactsRequiresUserID(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, _ := doJSON(t, srv.Router(), http.MethodPost, "/api/contacts", map[string]any{
		"consent": true,
		"name":    "Alice",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTestSubmitEndToEnd(t *testing.T) {
	srv, st := newTestServer(t)

	rec, body := doJSON(t, srv.Router(), http.MethodPost, "/api/test/submit", map[string]any{
		"user_id": 42,
		"answers": map[string]string{"q1": "a", "q2": "c", "q6": "b", "q7": "b"},
		"source":  "landing",
		"channel": "web",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "wolf", body["result_type"])
	assert.NotNil(t, body["scores"])
	assert.NotNil(t, body["result_info"])

	rows, err := st.ListSessions(context.Background(), store.SessionFilter{Product: model.ProductTeremok})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(42), rows[0].UserID)
	assert.Equal(t, model.SessionStatusFinished, rows[0].Status)
	assert.Contains(t, rows[0].ResultJSON, `"type":"wolf"`)

	legacy, err := st.ListLegacyTests(context.Background(), store.LegacyFilter{})
	require.NoError(t, err)
	require.Len(t, legacy, 1, "legacy table gets the dual write")
	assert.Equal(t, "wolf", legacy[0].ResultType)
}

func TestTestSubmitBadAnswers(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, _ := doJSON(t, srv.Router(), http.MethodPost, "/api/test/submit", map[string]any{
		"user_id": 42,
		"answers": map[string]string{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFormulaSubmitWithContact(t *testing.T) {
	srv, st := newTestServer(t)

	rec, body := doJSON(t, srv.Router(), http.MethodPost, "/api/formula/rsp/submit", map[string]any{
		"contact": map[string]any{
			"consent":            true,
			"name":               "Boris",
			"phone_or_messenger": "+79990001122",
		},
		"answers": map[string]int{"ft1": 5, "ft5": 5, "ft2": 2},
		"source":  "landing",
		"channel": "web",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rezultatnost", body["result_type"])
	assert.Equal(t, "Команда-Результатники", body["primary_name"])

	rows, err := st.ListSessions(context.Background(), store.SessionFilter{Product: model.ProductFormulaRSP})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Boris", rows[0].LeadName, "session subject is the registered contact")
}

func TestGetTestResultByID(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	_, body := doJSON(t, router, http.MethodPost, "/api/test/submit", map[string]any{
		"user_id": 42,
		"answers": map[string]string{"q1": "a", "q2": "c", "q6": "b", "q7": "b"},
	})
	id := int64(body["result_id"].(float64))

	rec, got := doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/test/results/%d", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "wolf", got["result_type"])
	assert.NotNil(t, got["result_info"])
	assert.NotNil(t, got["scores"])

	rec, _ = doJSON(t, router, http.MethodGet, "/api/test/results/99999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doJSON(t, router, http.MethodGet, "/api/test/results/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetFormulaResultByID(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	_, body := doJSON(t, router, http.MethodPost, "/api/formula/rsp/submit", map[string]any{
		"user_id": 42,
		"answers": map[string]int{"ft1": 5, "ft5": 5, "ft2": 2},
	})
	id := int64(body["result_id"].(float64))

	rec, got := doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/formula/rsp/results/%d", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rezultatnost", got["result_type"])
	assert.Equal(t, "Команда-Результатники", got["primary_name"])

	rec, _ = doJSON(t, router, http.MethodGet, "/api/formula/rsp/results/99999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContactExists(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	doJSON(t, router, http.MethodPost, "/api/contacts", map[string]any{
		"consent":            true,
		"user_id":            42,
		"name":               "Alice",
		"phone_or_messenger": "+79991234567",
	})

	rec, body := doJSON(t, router, http.MethodGet, "/api/contacts/exists?user_id=42", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body["exists"].(bool))

	rec, body = doJSON(t, router, http.MethodGet, "/api/contacts/exists?user_id=777", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, body["exists"].(bool))

	rec, _ = doJSON(t, router, http.MethodGet, "/api/contacts/exists", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListTests(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	doJSON(t, router, http.MethodPost, "/api/test/submit", map[string]any{
		"user_id": 42,
		"answers": map[string]string{"q1": "a"},
	})

	rec, body := doJSON(t, router, http.MethodGet, "/api/tests?product=teremok", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["total"])

	t.Run("legacy listing sees the dual write", func(t *testing.T) {
		rec, body := doJSON(t, router, http.MethodGet, "/api/legacy/tests?product=teremok", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(1), body["total"])
	})

	t.Run("hostile sort key falls back", func(t *testing.T) {
		rec, body := doJSON(t, router, http.MethodGet,
			"/api/tests?sort_by=%27%3B+DROP+TABLE+test_sessions%3B--", nil)
		require.Equal(t, http.StatusOK, rec.Code, "hostile key is ignored, not an error")
		assert.Equal(t, float64(1), body["total"])
	})
}

func TestCheckSubscription(t *testing.T) {
	t.Run("subscribed", func(t *testing.T) {
		srv, _ := newTestServer(t, func(o *Options) {
			o.Checker = &fakeChecker{subscribed: true}
		})
		rec, body := doJSON(t, srv.Router(), http.MethodGet, "/api/check-subscription?user_id=42", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, body["subscribed"].(bool))
		assert.True(t, body["checked"].(bool))
	})

	t.Run("oracle unreachable", func(t *testing.T) {
		srv, _ := newTestServer(t, func(o *Options) {
			o.Checker = &fakeChecker{err: eris.New("timeout")}
		})
		rec, body := doJSON(t, srv.Router(), http.MethodGet, "/api/check-subscription?user_id=42", nil)
		require.Equal(t, http.StatusOK, rec.Code, "unreachable oracle is not a request failure")
		assert.False(t, body["subscribed"].(bool))
		assert.False(t, body["checked"].(bool))
	})

	t.Run("missing user_id", func(t *testing.T) {
		srv, _ := newTestServer(t)
		rec, _ := doJSON(t, srv.Router(), http.MethodGet, "/api/check-subscription", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestQuestionsEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec, body := doJSON(t, router, http.MethodGet, "/api/teremok/questions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(8), body["total"])

	rec, body = doJSON(t, router, http.MethodGet, "/api/formula/rsp/questions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(18), body["total"])
}

func TestRateLimit(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	var last int
	for i := 0; i < 12; i++ {
		rec, _ := doJSON(t, router, http.MethodPost, "/api/lead/register", map[string]any{
			"consent": true,
			"name":    "Alice",
		})
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last, "burst budget is exhausted")
}
