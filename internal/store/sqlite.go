package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/vostroslava/teremok-platform/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs
// single-node deployments and the store-level test suite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := sqldb.Exec(pragma); err != nil {
			sqldb.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sqldb}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS users (
	user_id    INTEGER PRIMARY KEY,
	username   TEXT,
	first_name TEXT,
	joined_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS leads (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id      INTEGER,
	contact_info TEXT,
	message      TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS user_contacts (
	user_id           INTEGER PRIMARY KEY,
	session_id        TEXT NOT NULL DEFAULT '',
	name              TEXT NOT NULL,
	role              TEXT NOT NULL,
	company           TEXT NOT NULL DEFAULT '',
	team_size         TEXT NOT NULL DEFAULT '',
	phone             TEXT NOT NULL DEFAULT '',
	email             TEXT NOT NULL DEFAULT '',
	comment           TEXT NOT NULL DEFAULT '',
	preferred_channel TEXT NOT NULL DEFAULT '',
	consent           BOOLEAN NOT NULL DEFAULT FALSE,
	telegram_username TEXT NOT NULL DEFAULT '',
	product           TEXT NOT NULL DEFAULT 'teremok',
	source            TEXT NOT NULL DEFAULT 'landing',
	status            TEXT NOT NULL DEFAULT 'new',
	utm_source        TEXT NOT NULL DEFAULT '',
	utm_medium        TEXT NOT NULL DEFAULT '',
	utm_campaign      TEXT NOT NULL DEFAULT '',
	utm_content       TEXT NOT NULL DEFAULT '',
	utm_term          TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME
);

CREATE INDEX IF NOT EXISTS idx_contacts_created ON user_contacts(created_at);
CREATE INDEX IF NOT EXISTS idx_contacts_product_phone ON user_contacts(product, phone);

CREATE TABLE IF NOT EXISTS test_results (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id     INTEGER NOT NULL,
	result_type TEXT NOT NULL,
	scores      TEXT,
	answers     TEXT,
	product     TEXT NOT NULL DEFAULT 'teremok',
	created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tests_created ON test_results(created_at);
CREATE INDEX IF NOT EXISTS idx_tests_user_id ON test_results(user_id);

CREATE TABLE IF NOT EXISTS formula_rsp_results (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id           INTEGER NOT NULL,
	primary_type_code TEXT NOT NULL,
	primary_type_name TEXT NOT NULL,
	scores            TEXT,
	answers           TEXT,
	created_at        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_formula_rsp_user ON formula_rsp_results(user_id);

CREATE TABLE IF NOT EXISTS test_sessions (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id       INTEGER,
	product       TEXT NOT NULL,
	source        TEXT NOT NULL DEFAULT 'unknown',
	channel       TEXT NOT NULL DEFAULT 'unknown',
	status        TEXT NOT NULL DEFAULT 'finished',
	answers_json  TEXT NOT NULL,
	result_json   TEXT NOT NULL,
	meta_json     TEXT,
	created_at    DATETIME NOT NULL,
	legacy_source TEXT,
	legacy_id     INTEGER
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_test_sessions_legacy
	ON test_sessions (legacy_source, legacy_id);
CREATE INDEX IF NOT EXISTS idx_test_sessions_created ON test_sessions(created_at);

CREATE TABLE IF NOT EXISTS web_admins (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT UNIQUE NOT NULL,
	password_hash TEXT NOT NULL,
	salt          TEXT NOT NULL,
	session_token TEXT,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertContact(ctx context.Context, c *model.Contact) error {
	created := c.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_contacts
		 (user_id, session_id, name, role, company, team_size, phone, email,
		  comment, preferred_channel, consent, telegram_username, product, source, status,
		  utm_source, utm_medium, utm_campaign, utm_content, utm_term, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		   session_id = excluded.session_id, name = excluded.name, role = excluded.role,
		   company = excluded.company, team_size = excluded.team_size, phone = excluded.phone,
		   email = excluded.email, comment = excluded.comment,
		   preferred_channel = excluded.preferred_channel, consent = excluded.consent,
		   telegram_username = excluded.telegram_username, product = excluded.product,
		   source = excluded.source, status = excluded.status,
		   utm_source = excluded.utm_source, utm_medium = excluded.utm_medium,
		   utm_campaign = excluded.utm_campaign, utm_content = excluded.utm_content,
		   utm_term = excluded.utm_term, updated_at = datetime('now')`,
		c.UserID, c.SessionID, c.Name, c.Role, c.Company, c.TeamSize, c.Phone, c.Email,
		c.Comment, c.PreferredChannel, c.Consent, c.TelegramUsername, c.Product, c.Source,
		c.Status, c.UTMSource, c.UTMMedium, c.UTMCampaign, c.UTMContent, c.UTMTerm, created,
	)
	return eris.Wrapf(err, "sqlite: upsert contact %d", c.UserID)
}

func (s *SQLiteStore) GetContact(ctx context.Context, userID int64) (*model.Contact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM user_contacts WHERE user_id = ?`,
		userID,
	)
	c, err := scanContactSQL(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get contact %d", userID)
	}
	return c, nil
}

func (s *SQLiteStore) HasContact(ctx context.Context, userID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM user_contacts WHERE user_id = ?`, userID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: has contact %d", userID)
	}
	return true, nil
}

func (s *SQLiteStore) FindContactByHandle(ctx context.Context, product, handle string, since time.Time) (*model.Contact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM user_contacts
		 WHERE product = ? AND phone = ? AND created_at >= ?
		 ORDER BY created_at DESC LIMIT 1`,
		product, handle, since,
	)
	c, err := scanContactSQL(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find contact by handle")
	}
	return c, nil
}

func (s *SQLiteStore) SubmitLead(ctx context.Context, l *model.Lead) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (user_id, contact_info, message, created_at) VALUES (?, ?, ?, ?)`,
		l.UserID, l.ContactInfo, l.Message, time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: submit lead")
	}
	id, err := res.LastInsertId()
	return id, eris.Wrap(err, "sqlite: submit lead id")
}

func (s *SQLiteStore) InsertSession(ctx context.Context, sess *model.TestSession) (int64, error) {
	created := sess.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO test_sessions
		 (user_id, product, source, channel, status, answers_json, result_json, meta_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.UserID, sess.Product, sess.Source, sess.Channel, sess.Status,
		sess.AnswersJSON, sess.ResultJSON, nullIfEmpty(sess.MetaJSON), created,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert session")
	}
	id, err := res.LastInsertId()
	return id, eris.Wrap(err, "sqlite: insert session id")
}

func (s *SQLiteStore) InsertSessionIfAbsent(ctx context.Context, sess *model.TestSession) (bool, error) {
	if sess.LegacySource == nil || sess.LegacyID == nil {
		return false, eris.New("sqlite: insert-if-absent requires a legacy idempotency key")
	}
	created := sess.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO test_sessions
		 (user_id, product, source, channel, status, answers_json, result_json, meta_json, created_at, legacy_source, legacy_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (legacy_source, legacy_id) DO NOTHING`,
		sess.UserID, sess.Product, sess.Source, sess.Channel, sess.Status,
		sess.AnswersJSON, sess.ResultJSON, nullIfEmpty(sess.MetaJSON), created,
		*sess.LegacySource, *sess.LegacyID,
	)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: insert session if absent")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, filter SessionFilter) ([]model.SessionRow, error) {
	query := `SELECT ts.id, ts.user_id, ts.product, ts.source, ts.channel, ts.status,
		ts.answers_json, ts.result_json, COALESCE(ts.meta_json, ''), ts.created_at,
		ts.legacy_source, ts.legacy_id,
		COALESCE(c.name, ''), COALESCE(c.phone, ''), COALESCE(c.role, ''),
		COALESCE(c.company, ''), COALESCE(c.team_size, ''), COALESCE(c.preferred_channel, ''),
		COALESCE(c.utm_source, ''), COALESCE(c.utm_medium, ''), COALESCE(c.utm_campaign, '')
	FROM test_sessions ts
	LEFT JOIN user_contacts c ON ts.user_id = c.user_id
	WHERE 1=1`
	var args []any

	if filter.Product != "" && filter.Product != "all" {
		query += ` AND ts.product = ?`
		args = append(args, filter.Product)
	}
	if filter.Days > 0 {
		query += ` AND ts.created_at >= ?`
		args = append(args, time.Now().UTC().AddDate(0, 0, -filter.Days))
	}

	query += orderClause(sessionSortColumns, "ts.created_at", filter.SortBy, filter.SortOrder)
	query += ` LIMIT ?`
	args = append(args, clampLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sessions")
	}
	defer rows.Close()

	var out []model.SessionRow
	for rows.Next() {
		var r model.SessionRow
		var legacySource sql.NullString
		var legacyID sql.NullInt64
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.Product, &r.Source, &r.Channel, &r.Status,
			&r.AnswersJSON, &r.ResultJSON, &r.MetaJSON, &r.CreatedAt,
			&legacySource, &legacyID,
			&r.LeadName, &r.LeadPhone, &r.LeadRole,
			&r.LeadCompany, &r.LeadTeamSize, &r.LeadPreferredChannel,
			&r.UTMSource, &r.UTMMedium, &r.UTMCampaign,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan session row")
		}
		if legacySource.Valid {
			r.LegacySource = &legacySource.String
		}
		if legacyID.Valid {
			r.LegacyID = &legacyID.Int64
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list sessions iterate")
}

func (s *SQLiteStore) InsertTeremokResult(ctx context.Context, r *model.TeremokResult) (int64, error) {
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO test_results (user_id, result_type, scores, answers, product, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.UserID, r.ResultType, r.Scores, r.Answers, r.Product, created,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert teremok result")
	}
	id, err := res.LastInsertId()
	return id, eris.Wrap(err, "sqlite: insert teremok result id")
}

func (s *SQLiteStore) InsertFormulaResult(ctx context.Context, r *model.FormulaResult) (int64, error) {
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO formula_rsp_results (user_id, primary_type_code, primary_type_name, scores, answers, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.UserID, r.PrimaryTypeCode, r.PrimaryTypeName, r.Scores, r.Answers, created,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert formula result")
	}
	id, err := res.LastInsertId()
	return id, eris.Wrap(err, "sqlite: insert formula result id")
}

func (s *SQLiteStore) GetTeremokResult(ctx context.Context, id int64) (*model.TeremokResult, error) {
	var r model.TeremokResult
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, result_type, COALESCE(scores, ''), COALESCE(answers, ''), product, created_at
		 FROM test_results WHERE id = ?`,
		id,
	).Scan(&r.ID, &r.UserID, &r.ResultType, &r.Scores, &r.Answers, &r.Product, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get teremok result %d", id)
	}
	return &r, nil
}

func (s *SQLiteStore) GetFormulaResult(ctx context.Context, id int64) (*model.FormulaResult, error) {
	var r model.FormulaResult
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, primary_type_code, primary_type_name, COALESCE(scores, ''), COALESCE(answers, ''), created_at
		 FROM formula_rsp_results WHERE id = ?`,
		id,
	).Scan(&r.ID, &r.UserID, &r.PrimaryTypeCode, &r.PrimaryTypeName, &r.Scores, &r.Answers, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get formula result %d", id)
	}
	return &r, nil
}

func (s *SQLiteStore) ListTeremokJoined(ctx context.Context) ([]model.TeremokResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.user_id, t.result_type, COALESCE(t.scores, ''), COALESCE(t.answers, ''),
			t.product, t.created_at, COALESCE(c.source, ''), COALESCE(c.preferred_channel, '')
		 FROM test_results t
		 LEFT JOIN user_contacts c ON t.user_id = c.user_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list teremok joined")
	}
	defer rows.Close()

	var out []model.TeremokResult
	for rows.Next() {
		var r model.TeremokResult
		if err := rows.Scan(&r.ID, &r.UserID, &r.ResultType, &r.Scores, &r.Answers,
			&r.Product, &r.CreatedAt, &r.Source, &r.PreferredChannel); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan teremok row")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list teremok iterate")
}

func (s *SQLiteStore) ListFormulaJoined(ctx context.Context) ([]model.FormulaResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT f.id, f.user_id, f.primary_type_code, f.primary_type_name,
			COALESCE(f.scores, ''), COALESCE(f.answers, ''), f.created_at,
			COALESCE(c.source, ''), COALESCE(c.preferred_channel, '')
		 FROM formula_rsp_results f
		 LEFT JOIN user_contacts c ON f.user_id = c.user_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list formula joined")
	}
	defer rows.Close()

	var out []model.FormulaResult
	for rows.Next() {
		var r model.FormulaResult
		if err := rows.Scan(&r.ID, &r.UserID, &r.PrimaryTypeCode, &r.PrimaryTypeName,
			&r.Scores, &r.Answers, &r.CreatedAt, &r.Source, &r.PreferredChannel); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan formula row")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list formula iterate")
}

func (s *SQLiteStore) ListLegacyTests(ctx context.Context, filter LegacyFilter) ([]model.LegacyRow, error) {
	query := `SELECT t.id, t.user_id, t.result_type, COALESCE(t.scores, ''), COALESCE(t.answers, ''),
		t.product, t.created_at,
		COALESCE(c.name, ''), COALESCE(c.role, ''), COALESCE(c.company, ''),
		COALESCE(c.team_size, ''), COALESCE(c.phone, ''), COALESCE(c.telegram_username, '')
	FROM test_results t
	LEFT JOIN user_contacts c ON t.user_id = c.user_id
	WHERE 1=1`
	var args []any

	if filter.Product != "" && filter.Product != "all" {
		query += ` AND t.product = ?`
		args = append(args, filter.Product)
	}
	if filter.ResultType != "" && filter.ResultType != "all" {
		query += ` AND t.result_type = ?`
		args = append(args, filter.ResultType)
	}
	if filter.Days > 0 {
		query += ` AND t.created_at >= ?`
		args = append(args, time.Now().UTC().AddDate(0, 0, -filter.Days))
	}

	query += orderClause(legacySortColumns, "t.created_at", filter.SortBy, filter.SortOrder)
	query += ` LIMIT ?`
	args = append(args, clampLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list legacy tests")
	}
	defer rows.Close()

	var out []model.LegacyRow
	for rows.Next() {
		var r model.LegacyRow
		if err := rows.Scan(&r.ID, &r.UserID, &r.ResultType, &r.Scores, &r.Answers,
			&r.Product, &r.CreatedAt,
			&r.Name, &r.Role, &r.Company, &r.TeamSize, &r.Phone, &r.TelegramUsername); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan legacy row")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list legacy iterate")
}

// scanContactSQL scans a contact from a database/sql row, tolerating a
// NULL updated_at.
func scanContactSQL(row scannable) (*model.Contact, error) {
	var c model.Contact
	var updated sql.NullTime
	err := row.Scan(
		&c.UserID, &c.SessionID, &c.Name, &c.Role, &c.Company, &c.TeamSize, &c.Phone,
		&c.Email, &c.Comment, &c.PreferredChannel, &c.Consent, &c.TelegramUsername,
		&c.Product, &c.Source, &c.Status,
		&c.UTMSource, &c.UTMMedium, &c.UTMCampaign, &c.UTMContent, &c.UTMTerm,
		&c.CreatedAt, &updated,
	)
	if err != nil {
		return nil, err
	}
	if updated.Valid {
		c.UpdatedAt = &updated.Time
	}
	return &c, nil
}
