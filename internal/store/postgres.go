package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/vostroslava/teremok-platform/internal/config"
	"github.com/vostroslava/teremok-platform/internal/db"
	"github.com/vostroslava/teremok-platform/internal/model"
)

// PostgresStore implements Store using pgxpool. The pool is bounded;
// callers block on acquisition when it is exhausted, which is the
// backpressure mechanism for the whole request path.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg config.PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(20)
	minConns := int32(1)
	if poolCfg.MaxConns > 0 {
		maxConns = poolCfg.MaxConns
	}
	if poolCfg.MinConns > 0 {
		minConns = poolCfg.MinConns
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS users (
	user_id    BIGINT PRIMARY KEY,
	username   TEXT,
	first_name TEXT,
	joined_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS leads (
	id           BIGSERIAL PRIMARY KEY,
	user_id      BIGINT,
	contact_info TEXT,
	message      TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS user_contacts (
	user_id           BIGINT PRIMARY KEY,
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
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_contacts_created ON user_contacts(created_at);
CREATE INDEX IF NOT EXISTS idx_contacts_status ON user_contacts(status);
CREATE INDEX IF NOT EXISTS idx_contacts_product_phone ON user_contacts(product, phone);

CREATE TABLE IF NOT EXISTS test_results (
	id          BIGSERIAL PRIMARY KEY,
	user_id     BIGINT NOT NULL,
	result_type TEXT NOT NULL,
	scores      TEXT,
	answers     TEXT,
	product     TEXT NOT NULL DEFAULT 'teremok',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_tests_created ON test_results(created_at);
CREATE INDEX IF NOT EXISTS idx_tests_user_id ON test_results(user_id);
CREATE INDEX IF NOT EXISTS idx_tests_product ON test_results(product);

CREATE TABLE IF NOT EXISTS formula_rsp_results (
	id                BIGSERIAL PRIMARY KEY,
	user_id           BIGINT NOT NULL,
	primary_type_code TEXT NOT NULL,
	primary_type_name TEXT NOT NULL,
	scores            TEXT,
	answers           TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_formula_rsp_user ON formula_rsp_results(user_id);

CREATE TABLE IF NOT EXISTS test_sessions (
	id            BIGSERIAL PRIMARY KEY,
	user_id       BIGINT,
	product       TEXT NOT NULL,
	source        TEXT NOT NULL DEFAULT 'unknown',
	channel       TEXT NOT NULL DEFAULT 'unknown',
	status        TEXT NOT NULL DEFAULT 'finished',
	answers_json  TEXT NOT NULL,
	result_json   TEXT NOT NULL,
	meta_json     TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	legacy_source TEXT,
	legacy_id     BIGINT
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_test_sessions_legacy
	ON test_sessions (legacy_source, legacy_id);
CREATE INDEX IF NOT EXISTS idx_test_sessions_created ON test_sessions(created_at);
CREATE INDEX IF NOT EXISTS idx_test_sessions_product ON test_sessions(product);

CREATE TABLE IF NOT EXISTS web_admins (
	id            BIGSERIAL PRIMARY KEY,
	username      TEXT UNIQUE NOT NULL,
	password_hash TEXT NOT NULL,
	salt          TEXT NOT NULL,
	session_token TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const contactColumns = `user_id, session_id, name, role, company, team_size, phone, email,
	comment, preferred_channel, consent, telegram_username, product, source, status,
	utm_source, utm_medium, utm_campaign, utm_content, utm_term, created_at, updated_at`

func (s *PostgresStore) UpsertContact(ctx context.Context, c *model.Contact) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_contacts
		 (user_id, session_id, name, role, company, team_size, phone, email,
		  comment, preferred_channel, consent, telegram_username, product, source, status,
		  utm_source, utm_medium, utm_campaign, utm_content, utm_term)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		 ON CONFLICT (user_id) DO UPDATE SET
		   session_id = $2, name = $3, role = $4, company = $5, team_size = $6,
		   phone = $7, email = $8, comment = $9, preferred_channel = $10, consent = $11,
		   telegram_username = $12, product = $13, source = $14, status = $15,
		   utm_source = $16, utm_medium = $17, utm_campaign = $18, utm_content = $19,
		   utm_term = $20, updated_at = now()`,
		c.UserID, c.SessionID, c.Name, c.Role, c.Company, c.TeamSize, c.Phone, c.Email,
		c.Comment, c.PreferredChannel, c.Consent, c.TelegramUsername, c.Product, c.Source,
		c.Status, c.UTMSource, c.UTMMedium, c.UTMCampaign, c.UTMContent, c.UTMTerm,
	)
	return eris.Wrapf(err, "postgres: upsert contact %d", c.UserID)
}

func (s *PostgresStore) GetContact(ctx context.Context, userID int64) (*model.Contact, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+contactColumns+` FROM user_contacts WHERE user_id = $1`,
		userID,
	)
	c, err := scanContact(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get contact %d", userID)
	}
	return c, nil
}

func (s *PostgresStore) HasContact(ctx context.Context, userID int64) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM user_contacts WHERE user_id = $1`, userID,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "postgres: has contact %d", userID)
	}
	return true, nil
}

func (s *PostgresStore) FindContactByHandle(ctx context.Context, product, handle string, since time.Time) (*model.Contact, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+contactColumns+` FROM user_contacts
		 WHERE product = $1 AND phone = $2 AND created_at >= $3
		 ORDER BY created_at DESC LIMIT 1`,
		product, handle, since,
	)
	c, err := scanContact(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: find contact by handle")
	}
	return c, nil
}

func (s *PostgresStore) SubmitLead(ctx context.Context, l *model.Lead) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO leads (user_id, contact_info, message) VALUES ($1, $2, $3) RETURNING id`,
		l.UserID, l.ContactInfo, l.Message,
	).Scan(&id)
	return id, eris.Wrap(err, "postgres: submit lead")
}

func (s *PostgresStore) InsertSession(ctx context.Context, sess *model.TestSession) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO test_sessions
		 (user_id, product, source, channel, status, answers_json, result_json, meta_json)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		sess.UserID, sess.Product, sess.Source, sess.Channel, sess.Status,
		sess.AnswersJSON, sess.ResultJSON, nullIfEmpty(sess.MetaJSON),
	).Scan(&id)
	return id, eris.Wrap(err, "postgres: insert session")
}

func (s *PostgresStore) InsertSessionIfAbsent(ctx context.Context, sess *model.TestSession) (bool, error) {
	if sess.LegacySource == nil || sess.LegacyID == nil {
		return false, eris.New("postgres: insert-if-absent requires a legacy idempotency key")
	}
	inserted, err := db.InsertIfAbsent(ctx, s.pool, "test_sessions",
		[]string{"user_id", "product", "source", "channel", "status",
			"answers_json", "result_json", "meta_json", "created_at",
			"legacy_source", "legacy_id"},
		[]string{"legacy_source", "legacy_id"},
		[]any{sess.UserID, sess.Product, sess.Source, sess.Channel, sess.Status,
			sess.AnswersJSON, sess.ResultJSON, nullIfEmpty(sess.MetaJSON), sess.CreatedAt,
			*sess.LegacySource, *sess.LegacyID},
	)
	return inserted, eris.Wrap(err, "postgres: insert session if absent")
}

func (s *PostgresStore) ListSessions(ctx context.Context, filter SessionFilter) ([]model.SessionRow, error) {
	query := `SELECT ts.id, ts.user_id, ts.product, ts.source, ts.channel, ts.status,
		ts.answers_json, ts.result_json, COALESCE(ts.meta_json, ''), ts.created_at,
		ts.legacy_source, ts.legacy_id,
		COALESCE(c.name, ''), COALESCE(c.phone, ''), COALESCE(c.role, ''),
		COALESCE(c.company, ''), COALESCE(c.team_size, ''), COALESCE(c.preferred_channel, ''),
		COALESCE(c.utm_source, ''), COALESCE(c.utm_medium, ''), COALESCE(c.utm_campaign, '')
	FROM test_sessions ts
	LEFT JOIN user_contacts c ON ts.user_id = c.user_id
	WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Product != "" && filter.Product != "all" {
		query += fmt.Sprintf(` AND ts.product = $%d`, argIdx)
		args = append(args, filter.Product)
		argIdx++
	}
	if filter.Days > 0 {
		query += fmt.Sprintf(` AND ts.created_at >= $%d`, argIdx)
		args = append(args, time.Now().UTC().AddDate(0, 0, -filter.Days))
		argIdx++
	}

	query += orderClause(sessionSortColumns, "ts.created_at", filter.SortBy, filter.SortOrder)
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, clampLimit(filter.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sessions")
	}
	defer rows.Close()

	var out []model.SessionRow
	for rows.Next() {
		var r model.SessionRow
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.Product, &r.Source, &r.Channel, &r.Status,
			&r.AnswersJSON, &r.ResultJSON, &r.MetaJSON, &r.CreatedAt,
			&r.LegacySource, &r.LegacyID,
			&r.LeadName, &r.LeadPhone, &r.LeadRole,
			&r.LeadCompany, &r.LeadTeamSize, &r.LeadPreferredChannel,
			&r.UTMSource, &r.UTMMedium, &r.UTMCampaign,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan session row")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list sessions iterate")
}

func (s *PostgresStore) InsertTeremokResult(ctx context.Context, r *model.TeremokResult) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO test_results (user_id, result_type, scores, answers, product)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		r.UserID, r.ResultType, r.Scores, r.Answers, r.Product,
	).Scan(&id)
	return id, eris.Wrap(err, "postgres: insert teremok result")
}

func (s *PostgresStore) InsertFormulaResult(ctx context.Context, r *model.FormulaResult) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO formula_rsp_results (user_id, primary_type_code, primary_type_name, scores, answers)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		r.UserID, r.PrimaryTypeCode, r.PrimaryTypeName, r.Scores, r.Answers,
	).Scan(&id)
	return id, eris.Wrap(err, "postgres: insert formula result")
}

func (s *PostgresStore) GetTeremokResult(ctx context.Context, id int64) (*model.TeremokResult, error) {
	var r model.TeremokResult
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, result_type, COALESCE(scores, ''), COALESCE(answers, ''), product, created_at
		 FROM test_results WHERE id = $1`,
		id,
	).Scan(&r.ID, &r.UserID, &r.ResultType, &r.Scores, &r.Answers, &r.Product, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get teremok result %d", id)
	}
	return &r, nil
}

func (s *PostgresStore) GetFormulaResult(ctx context.Context, id int64) (*model.FormulaResult, error) {
	var r model.FormulaResult
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, primary_type_code, primary_type_name, COALESCE(scores, ''), COALESCE(answers, ''), created_at
		 FROM formula_rsp_results WHERE id = $1`,
		id,
	).Scan(&r.ID, &r.UserID, &r.PrimaryTypeCode, &r.PrimaryTypeName, &r.Scores, &r.Answers, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get formula result %d", id)
	}
	return &r, nil
}

func (s *PostgresStore) ListTeremokJoined(ctx context.Context) ([]model.TeremokResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT t.id, t.user_id, t.result_type, COALESCE(t.scores, ''), COALESCE(t.answers, ''),
			t.product, t.created_at, COALESCE(c.source, ''), COALESCE(c.preferred_channel, '')
		 FROM test_results t
		 LEFT JOIN user_contacts c ON t.user_id = c.user_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list teremok joined")
	}
	defer rows.Close()

	var out []model.TeremokResult
	for rows.Next() {
		var r model.TeremokResult
		if err := rows.Scan(&r.ID, &r.UserID, &r.ResultType, &r.Scores, &r.Answers,
			&r.Product, &r.CreatedAt, &r.Source, &r.PreferredChannel); err != nil {
			return nil, eris.Wrap(err, "postgres: scan teremok row")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list teremok iterate")
}

func (s *PostgresStore) ListFormulaJoined(ctx context.Context) ([]model.FormulaResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT f.id, f.user_id, f.primary_type_code, f.primary_type_name,
			COALESCE(f.scores, ''), COALESCE(f.answers, ''), f.created_at,
			COALESCE(c.source, ''), COALESCE(c.preferred_channel, '')
		 FROM formula_rsp_results f
		 LEFT JOIN user_contacts c ON f.user_id = c.user_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list formula joined")
	}
	defer rows.Close()

	var out []model.FormulaResult
	for rows.Next() {
		var r model.FormulaResult
		if err := rows.Scan(&r.ID, &r.UserID, &r.PrimaryTypeCode, &r.PrimaryTypeName,
			&r.Scores, &r.Answers, &r.CreatedAt, &r.Source, &r.PreferredChannel); err != nil {
			return nil, eris.Wrap(err, "postgres: scan formula row")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list formula iterate")
}

func (s *PostgresStore) ListLegacyTests(ctx context.Context, filter LegacyFilter) ([]model.LegacyRow, error) {
	query := `SELECT t.id, t.user_id, t.result_type, COALESCE(t.scores, ''), COALESCE(t.answers, ''),
		t.product, t.created_at,
		COALESCE(c.name, ''), COALESCE(c.role, ''), COALESCE(c.company, ''),
		COALESCE(c.team_size, ''), COALESCE(c.phone, ''), COALESCE(c.telegram_username, '')
	FROM test_results t
	LEFT JOIN user_contacts c ON t.user_id = c.user_id
	WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Product != "" && filter.Product != "all" {
		query += fmt.Sprintf(` AND t.product = $%d`, argIdx)
		args = append(args, filter.Product)
		argIdx++
	}
	if filter.ResultType != "" && filter.ResultType != "all" {
		query += fmt.Sprintf(` AND t.result_type = $%d`, argIdx)
		args = append(args, filter.ResultType)
		argIdx++
	}
	if filter.Days > 0 {
		query += fmt.Sprintf(` AND t.created_at >= $%d`, argIdx)
		args = append(args, time.Now().UTC().AddDate(0, 0, -filter.Days))
		argIdx++
	}

	query += orderClause(legacySortColumns, "t.created_at", filter.SortBy, filter.SortOrder)
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, clampLimit(filter.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list legacy tests")
	}
	defer rows.Close()

	var out []model.LegacyRow
	for rows.Next() {
		var r model.LegacyRow
		if err := rows.Scan(&r.ID, &r.UserID, &r.ResultType, &r.Scores, &r.Answers,
			&r.Product, &r.CreatedAt,
			&r.Name, &r.Role, &r.Company, &r.TeamSize, &r.Phone, &r.TelegramUsername); err != nil {
			return nil, eris.Wrap(err, "postgres: scan legacy row")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list legacy iterate")
}

// helpers

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type scannable interface {
	Scan(dest ...any) error
}

func scanContact(row scannable) (*model.Contact, error) {
	var c model.Contact
	err := row.Scan(
		&c.UserID, &c.SessionID, &c.Name, &c.Role, &c.Company, &c.TeamSize, &c.Phone,
		&c.Email, &c.Comment, &c.PreferredChannel, &c.Consent, &c.TelegramUsername,
		&c.Product, &c.Source, &c.Status,
		&c.UTMSource, &c.UTMMedium, &c.UTMCampaign, &c.UTMContent, &c.UTMTerm,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
