package session

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vostroslava/teremok-platform/internal/model"
	"github.com/vostroslava/teremok-platform/internal/store"
)

// Backfiller migrates the two legacy result tables into test_sessions.
// Rows already migrated are skipped via the (legacy_source, legacy_id)
// key, so the job is re-runnable to completion; running it twice leaves
// the unified table with the same row count as running it once. The job
// is not meant to run concurrently with itself, but overlapping runs
// stay correct for the same reason.
type Backfiller struct {
	store store.Store
}

func NewBackfiller(st store.Store) *Backfiller {
	return &Backfiller{store: st}
}

// Counts reports rows processed per product. A row is processed whether
// it was inserted or already present; rows that fail to reshape are
// logged and skipped.
type Counts struct {
	Teremok  int `json:"teremok"`
	Formula  int `json:"formula_rsp"`
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

// Run migrates both legacy tables, one goroutine per table.
func (b *Backfiller) Run(ctx context.Context) (*Counts, error) {
	var teremokN, teremokIns, formulaN, formulaIns int
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		teremokN, teremokIns, err = b.migrateTeremok(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		formulaN, formulaIns, err = b.migrateFormula(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	counts := Counts{
		Teremok:  teremokN,
		Formula:  formulaN,
		Inserted: teremokIns + formulaIns,
		Skipped:  teremokN + formulaN - teremokIns - formulaIns,
	}
	zap.L().Info("backfill finished",
		zap.Int("teremok", counts.Teremok),
		zap.Int("formula_rsp", counts.Formula),
		zap.Int("inserted", counts.Inserted),
		zap.Int("skipped", counts.Skipped))
	return &counts, nil
}

func (b *Backfiller) migrateTeremok(ctx context.Context) (processed, inserted int, err error) {
	rows, err := b.store.ListTeremokJoined(ctx)
	if err != nil {
		return 0, 0, eris.Wrap(err, "session: backfill read teremok")
	}

	for _, r := range rows {
		doc, err := teremokDoc(&r)
		if err != nil {
			zap.L().Warn("backfill: skip malformed teremok row",
				zap.Int64("id", r.ID), zap.Error(err))
			continue
		}
		src := model.LegacySourceTeremok
		legacyID := r.ID
		ok, err := b.store.InsertSessionIfAbsent(ctx, &model.TestSession{
			UserID:       r.UserID,
			Product:      model.ProductTeremok,
			Source:       defaultUnknown(r.Source),
			Channel:      defaultUnknown(r.PreferredChannel),
			Status:       model.SessionStatusFinished,
			AnswersJSON:  defaultDoc(r.Answers),
			ResultJSON:   doc,
			CreatedAt:    r.CreatedAt,
			LegacySource: &src,
			LegacyID:     &legacyID,
		})
		if err != nil {
			zap.L().Warn("backfill: skip failed teremok insert",
				zap.Int64("id", r.ID), zap.Error(err))
			continue
		}
		processed++
		if ok {
			inserted++
		}
	}
	return processed, inserted, nil
}

func (b *Backfiller) migrateFormula(ctx context.Context) (processed, inserted int, err error) {
	rows, err := b.store.ListFormulaJoined(ctx)
	if err != nil {
		return 0, 0, eris.Wrap(err, "session: backfill read formula")
	}

	for _, r := range rows {
		doc, err := formulaDoc(&r)
		if err != nil {
			zap.L().Warn("backfill: skip malformed formula row",
				zap.Int64("id", r.ID), zap.Error(err))
			continue
		}
		src := model.LegacySourceFormula
		legacyID := r.ID
		ok, err := b.store.InsertSessionIfAbsent(ctx, &model.TestSession{
			UserID:       r.UserID,
			Product:      model.ProductFormulaRSP,
			Source:       defaultUnknown(r.Source),
			Channel:      defaultUnknown(r.PreferredChannel),
			Status:       model.SessionStatusFinished,
			AnswersJSON:  defaultDoc(r.Answers),
			ResultJSON:   doc,
			CreatedAt:    r.CreatedAt,
			LegacySource: &src,
			LegacyID:     &legacyID,
		})
		if err != nil {
			zap.L().Warn("backfill: skip failed formula insert",
				zap.Int64("id", r.ID), zap.Error(err))
			continue
		}
		processed++
		if ok {
			inserted++
		}
	}
	return processed, inserted, nil
}

// teremokDoc reshapes a legacy teremok row into the canonical result
// document.
func teremokDoc(r *model.TeremokResult) (string, error) {
	scores, err := decodeScores(r.Scores)
	if err != nil {
		return "", err
	}
	return Encode(model.ResultDoc{Type: r.ResultType, Scores: scores})
}

// formulaDoc reshapes a legacy formula row, carrying the human-readable
// primary type name alongside the code.
func formulaDoc(r *model.FormulaResult) (string, error) {
	scores, err := decodeScores(r.Scores)
	if err != nil {
		return "", err
	}
	return Encode(model.ResultDoc{
		Type:        r.PrimaryTypeCode,
		PrimaryName: r.PrimaryTypeName,
		Scores:      scores,
	})
}

func decodeScores(raw string) (map[string]float64, error) {
	if raw == "" {
		return map[string]float64{}, nil
	}
	var scores map[string]float64
	if err := Decode(raw, &scores); err != nil {
		return nil, err
	}
	return scores, nil
}

func defaultDoc(raw string) string {
	if raw == "" {
		return "{}"
	}
	return raw
}
