package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vostroslava/teremok-platform/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func sampleContact(userID int64) *model.Contact {
	return &model.Contact{
		UserID:           userID,
		Name:             "Alice",
		Role:             "founder",
		Company:          "Acme",
		Phone:            "+79991234567",
		Consent:          true,
		Product:          model.ProductTeremok,
		Source:           "landing",
		PreferredChannel: "telegram",
		Status:           "new",
	}
}

func TestSQLiteUpsertContact(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertContact(ctx, sampleContact(42)))

	got, err := s.GetContact(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "Alice", got.Name)
	require.Equal(t, "Acme", got.Company)
	require.True(t, got.Consent)
	require.Nil(t, got.UpdatedAt)

	updated := sampleContact(42)
	updated.Company = "Acme Holdings"
	updated.TeamSize = "11-30"
	require.NoError(t, s.UpsertContact(ctx, updated))

	got, err = s.GetContact(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, "Acme Holdings", got.Company)
	require.Equal(t, "11-30", got.TeamSize)
	require.NotNil(t, got.UpdatedAt)
}

func TestSQLiteGetContactMissing(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetContact(context.Background(), 999)
	require.NoError(t, err)
	require.Nil(t, got)

	ok, err := s.HasContact(context.Background(), 999)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSQLiteFindContactByHandle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := sampleContact(1)
	old.CreatedAt = now.AddDate(0, 0, -31)
	require.NoError(t, s.UpsertContact(ctx, old))

	t.Run("outside the window", func(t *testing.T) {
		got, err := s.FindContactByHandle(ctx, model.ProductTeremok, "+79991234567", now.AddDate(0, 0, -30))
		require.NoError(t, err)
		require.Nil(t, got)
	})

	recent := sampleContact(2)
	recent.Name = "Bob"
	recent.CreatedAt = now.AddDate(0, 0, -3)
	require.NoError(t, s.UpsertContact(ctx, recent))

	t.Run("most recent wins", func(t *testing.T) {
		mid := sampleContact(3)
		mid.Name = "Carol"
		mid.CreatedAt = now.AddDate(0, 0, -10)
		require.NoError(t, s.UpsertContact(ctx, mid))

		got, err := s.FindContactByHandle(ctx, model.ProductTeremok, "+79991234567", now.AddDate(0, 0, -30))
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, "Bob", got.Name)
	})

	t.Run("product scoped", func(t *testing.T) {
		got, err := s.FindContactByHandle(ctx, model.ProductFormulaRSP, "+79991234567", now.AddDate(0, 0, -30))
		require.NoError(t, err)
		require.Nil(t, got)
	})
}

func TestSQLiteInsertSessionIfAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	src := model.LegacySourceTeremok
	legacyID := int64(7)
	sess := &model.TestSession{
		UserID:       42,
		Product:      model.ProductTeremok,
		Source:       "bot",
		Channel:      "telegram",
		Status:       model.SessionStatusFinished,
		AnswersJSON:  `{"1":"a"}`,
		ResultJSON:   `{"type":"fox","scores":{"fox":5}}`,
		CreatedAt:    time.Now().UTC(),
		LegacySource: &src,
		LegacyID:     &legacyID,
	}

	inserted, err := s.InsertSessionIfAbsent(ctx, sess)
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = s.InsertSessionIfAbsent(ctx, sess)
	require.NoError(t, err)
	require.False(t, inserted)

	rows, err := s.ListSessions(ctx, SessionFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	t.Run("missing key rejected", func(t *testing.T) {
		_, err := s.InsertSessionIfAbsent(ctx, &model.TestSession{Product: model.ProductTeremok})
		require.Error(t, err)
	})
}

func TestSQLiteListSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertContact(ctx, sampleContact(42)))
	for _, product := range []string{model.ProductTeremok, model.ProductFormulaRSP} {
		_, err := s.InsertSession(ctx, &model.TestSession{
			UserID:      42,
			Product:     product,
			Source:      "landing",
			Channel:     "web",
			Status:      model.SessionStatusFinished,
			AnswersJSON: `{}`,
			ResultJSON:  `{"type":"x","scores":{}}`,
		})
		require.NoError(t, err)
	}

	t.Run("product filter", func(t *testing.T) {
		rows, err := s.ListSessions(ctx, SessionFilter{Product: model.ProductTeremok})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		require.Equal(t, model.ProductTeremok, rows[0].Product)
	})

	t.Run("joined lead fields", func(t *testing.T) {
		rows, err := s.ListSessions(ctx, SessionFilter{})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		require.Equal(t, "Alice", rows[0].LeadName)
		require.Equal(t, "Acme", rows[0].LeadCompany)
	})

	t.Run("hostile sort key falls back", func(t *testing.T) {
		rows, err := s.ListSessions(ctx, SessionFilter{SortBy: "created_at; DROP TABLE test_sessions"})
		require.NoError(t, err)
		require.Len(t, rows, 2)
	})
}

func TestSQLiteLegacyResults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertContact(ctx, sampleContact(42)))

	id, err := s.InsertTeremokResult(ctx, &model.TeremokResult{
		UserID:     42,
		ResultType: "fox",
		Scores:     `{"fox":5,"wolf":2}`,
		Answers:    `{"1":"a"}`,
		Product:    model.ProductTeremok,
	})
	require.NoError(t, err)
	require.Positive(t, id)

	got, err := s.GetTeremokResult(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "fox", got.ResultType)

	fid, err := s.InsertFormulaResult(ctx, &model.FormulaResult{
		UserID:          42,
		PrimaryTypeCode: "rezultatnost",
		PrimaryTypeName: "Результатность",
		Scores:          `{"rezultatnost":85.5}`,
		Answers:         `{"1":5}`,
	})
	require.NoError(t, err)
	require.Positive(t, fid)

	t.Run("joined teremok", func(t *testing.T) {
		rows, err := s.ListTeremokJoined(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		require.Equal(t, "landing", rows[0].Source)
		require.Equal(t, "telegram", rows[0].PreferredChannel)
	})

	t.Run("joined formula", func(t *testing.T) {
		rows, err := s.ListFormulaJoined(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		require.Equal(t, "Результатность", rows[0].PrimaryTypeName)
	})

	t.Run("legacy list with type filter", func(t *testing.T) {
		rows, err := s.ListLegacyTests(ctx, LegacyFilter{ResultType: "fox"})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		require.Equal(t, "Alice", rows[0].Name)
		require.Equal(t, "+79991234567", rows[0].Phone)

		rows, err = s.ListLegacyTests(ctx, LegacyFilter{ResultType: "bear"})
		require.NoError(t, err)
		require.Empty(t, rows)
	})
}

func TestSQLiteSubmitLead(t *testing.T) {
	s := newTestStore(t)

	id, err := s.SubmitLead(context.Background(), &model.Lead{
		UserID:      42,
		ContactInfo: "+79991234567",
		Message:     "call me",
	})
	require.NoError(t, err)
	require.Positive(t, id)
}
