// Package export appends captured leads and finished tests to xlsx
// workbooks on disk. Export is strictly best-effort: callers log
// failures and never surface them.
package export

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/vostroslava/teremok-platform/internal/model"
)

var leadHeader = []string{
	"captured_at", "lead_id", "name", "role", "company", "team_size",
	"phone", "email", "preferred_channel", "product", "source",
	"utm_source", "utm_medium", "utm_campaign", "comment",
}

var testHeader = []string{
	"finished_at", "user_id", "product", "result_type", "source", "channel",
}

// Exporter maintains one workbook per record kind under dir.
type Exporter struct {
	mu  sync.Mutex
	dir string
}

// New creates the export directory if needed.
func New(dir string) (*Exporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "export: create dir %s", dir)
	}
	return &Exporter{dir: dir}, nil
}

// AppendLead adds one row to leads.xlsx.
func (e *Exporter) AppendLead(_ context.Context, c *model.Contact) error {
	return e.appendRow("leads.xlsx", "Leads", leadHeader, []string{
		time.Now().UTC().Format(time.RFC3339),
		strconv.FormatInt(c.UserID, 10),
		c.Name, c.Role, c.Company, c.TeamSize,
		c.Phone, c.Email, c.PreferredChannel, c.Product, c.Source,
		c.UTMSource, c.UTMMedium, c.UTMCampaign, c.Comment,
	})
}

// AppendTest adds one row to tests.xlsx.
func (e *Exporter) AppendTest(_ context.Context, subject int64, product, resultType, source, channel string) error {
	return e.appendRow("tests.xlsx", "Tests", testHeader, []string{
		time.Now().UTC().Format(time.RFC3339),
		strconv.FormatInt(subject, 10),
		product, resultType, source, channel,
	})
}

// appendRow opens (or creates) the workbook, appends one row and saves
// it back. The mutex serializes concurrent post-commit tasks; workbooks
// here stay small enough that rewrite-on-append is fine.
func (e *Exporter) appendRow(filename, sheetName string, header, values []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	path := filepath.Join(e.dir, filename)

	var file *xlsx.File
	var sheet *xlsx.Sheet
	if _, err := os.Stat(path); err == nil {
		file, err = xlsx.OpenFile(path)
		if err != nil {
			return eris.Wrapf(err, "export: open %s", filename)
		}
		if len(file.Sheets) == 0 {
			return eris.Errorf("export: %s has no sheets", filename)
		}
		sheet = file.Sheets[0]
	} else {
		file = xlsx.NewFile()
		sheet, err = file.AddSheet(sheetName)
		if err != nil {
			return eris.Wrapf(err, "export: add sheet %s", sheetName)
		}
		headerRow := sheet.AddRow()
		for _, h := range header {
			headerRow.AddCell().SetString(h)
		}
	}

	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}

	return eris.Wrapf(file.Save(path), "export: save %s", filename)
}
