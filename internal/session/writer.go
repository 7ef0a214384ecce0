package session

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/vostroslava/teremok-platform/internal/model"
	"github.com/vostroslava/teremok-platform/internal/store"
)

// Writer appends finished sessions to the unified table. Direct writes
// carry no idempotency key: a retried client request creates a second
// row, which is accepted.
type Writer struct {
	store store.Store
}

func NewWriter(st store.Store) *Writer {
	return &Writer{store: st}
}

// Save serializes the documents and inserts one finished session,
// returning its id.
func (w *Writer) Save(ctx context.Context, subject int64, product, source, channel string, answers, result, meta any) (int64, error) {
	answersJSON, err := Encode(answers)
	if err != nil {
		return 0, err
	}
	resultJSON, err := Encode(result)
	if err != nil {
		return 0, err
	}
	metaJSON := ""
	if meta != nil {
		if metaJSON, err = Encode(meta); err != nil {
			return 0, err
		}
	}

	id, err := w.store.InsertSession(ctx, &model.TestSession{
		UserID:      subject,
		Product:     product,
		Source:      defaultUnknown(source),
		Channel:     defaultUnknown(channel),
		Status:      model.SessionStatusFinished,
		AnswersJSON: answersJSON,
		ResultJSON:  resultJSON,
		MetaJSON:    metaJSON,
	})
	if err != nil {
		return 0, eris.Wrap(err, "session: save")
	}
	return id, nil
}

func defaultUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
