// Package templates renders the HTMX fragments returned to the upload page.
package templates

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/cms/internal/core"
)

// maxSkippedRows caps the skipped-row table in the result fragment.
const maxSkippedRows = 50

// ErrorAlert renders a dismissible error box.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<div class="alert alert-error" role="alert"><p class="alert-message">%s</p>`,
			templ.EscapeString(message))
		if err != nil {
			return err
		}
		if action != "" {
			if _, err := fmt.Fprintf(w, `<p class="alert-action">%s</p>`, templ.EscapeString(action)); err != nil {
				return err
			}
		}
		_, err = fmt.Fprintf(w, `<p class="alert-code">Error code: %s</p></div>`, templ.EscapeString(code))
		return err
	})
}

// ImportSummary renders the counts of a finished import and the first
// skipped rows.
func ImportSummary(r *core.ImportResult) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		ew := &errWriter{w: w}
		ew.printf(`<div class="import-result" data-import-id="%s">`, r.ImportID)
		ew.printf(`<h3>%s</h3><dl>`, templ.EscapeString(r.FileName))
		ew.printf(`<dt>Processed</dt><dd>%d</dd>`, r.Processed)
		ew.printf(`<dt>Imported</dt><dd>%d</dd>`, r.Imported)
		ew.printf(`<dt>Skipped</dt><dd>%d</dd>`, r.Skipped)
		ew.printf(`<dt>Parents not linked</dt><dd>%d</dd>`, r.UnlinkedParents)
		ew.printf(`<dt>Batches</dt><dd>%d</dd>`, r.Batches)
		ew.printf(`<dt>Duration</dt><dd>%s</dd></dl>`, r.Duration.Round(time.Millisecond))

		if len(r.SkippedRows) > 0 {
			ew.printf(`<table class="skipped-rows"><thead><tr><th>Row</th><th>National ID</th><th>Reason</th><th>Detail</th></tr></thead><tbody>`)
			for i, s := range r.SkippedRows {
				if i == maxSkippedRows {
					ew.printf(`<tr><td colspan="4">%d more not shown</td></tr>`, len(r.SkippedRows)-maxSkippedRows)
					break
				}
				ew.printf(`<tr><td>%d</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
					s.Row,
					templ.EscapeString(s.NationalID),
					templ.EscapeString(string(s.Reason)),
					templ.EscapeString(s.Detail),
				)
			}
			ew.printf(`</tbody></table>`)
		}
		ew.printf(`</div>`)
		return ew.err
	})
}

// RollbackSummary renders the outcome of a rollback.
func RollbackSummary(r *core.RollbackResult) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<div class="alert alert-success" role="status">Rolled back %s: %d customers deleted.</div>`,
			templ.EscapeString(r.FileName), r.CustomersDeleted)
		return err
	})
}

// errWriter stops writing after the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
