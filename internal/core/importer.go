package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/JonMunkholm/cms/internal/logging"
	"github.com/JonMunkholm/cms/internal/workbook"
)

// ImportOptions configures the pipeline.
type ImportOptions struct {
	Layout          Layout
	Dates           *DateParser
	ReferencePolicy ReferencePolicy
	BatchSize       int
}

// Importer drives rows through decode, normalize, dedup, resolve, assemble
// and buffer, strictly in file order. Later rows may name earlier rows as
// parents, so rows are never processed concurrently.
type Importer struct {
	opts    ImportOptions
	metrics Metrics
}

func NewImporter(opts ImportOptions, metrics Metrics) *Importer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.ReferencePolicy == "" {
		opts.ReferencePolicy = ReferenceSkip
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Importer{opts: opts, metrics: metrics}
}

// importRun holds the state of one Run call.
type importRun struct {
	opts    ImportOptions
	metrics Metrics
	logger  *slog.Logger
	result  *ImportResult

	gate      *DedupGate
	assembler *Assembler
	committer *BatchCommitter

	phase ImportPhase
	row   int

	// headersLeft counts header rows still to skip. Blank lines before the
	// header do not count.
	headersLeft int
}

// Run imports every data row of rows into records. result.ImportID must be
// set; counts are accumulated into result. Rows are read in windows of the
// batch size so that store existence checks cost one query per window.
//
// Any error returned is an *ImportError. Batches flushed before the failure
// stay in records; callers decide whether to roll them back.
func (im *Importer) Run(ctx context.Context, rows workbook.Reader, records RecordStore, refs ReferenceStore, result *ImportResult) error {
	run := &importRun{
		opts:      im.opts,
		metrics:   im.metrics,
		logger:    logging.FromContext(ctx),
		result:    result,
		gate:      NewDedupGate(records),
		assembler: NewAssembler(records, NewReferenceResolver(refs)),
		committer: NewBatchCommitter(records, im.opts.BatchSize),
		phase:     PhaseStart,

		headersLeft: im.opts.Layout.HeaderRows,
	}
	run.committer.onFlush = func(n int, d time.Duration) {
		run.metrics.BatchFlushed(n, d)
		run.logger.Debug("batch flushed", "records", n, "duration_ms", d.Milliseconds())
	}

	err := run.readRows(ctx, rows)
	if err == nil {
		run.phase = PhaseFlushing
		run.row = 0
		err = run.committer.Flush(ctx)
	}

	result.Imported = run.committer.Committed()
	result.Batches = run.committer.Batches()

	if err != nil {
		return &ImportError{
			Row:       run.row,
			Phase:     run.phase,
			Committed: run.committer.Committed(),
			Err:       err,
		}
	}
	run.phase = PhaseDone
	return nil
}

func (run *importRun) readRows(ctx context.Context, rows workbook.Reader) error {
	run.phase = PhaseReadingRows

	window := make([]ImportRow, 0, run.opts.BatchSize)
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}

		row := rows.Row()
		if run.headersLeft > 0 {
			if !row.Blank() {
				run.headersLeft--
			}
			continue
		}
		ir := DecodeRow(row, run.opts.Layout)
		if ir.empty() {
			continue
		}

		window = append(window, ir)
		if len(window) == cap(window) {
			if err := run.processWindow(ctx, window); err != nil {
				return err
			}
			window = window[:0]
		}
	}
	if err := rows.Err(); err != nil {
		return &WorkbookFormatError{Err: err}
	}
	return run.processWindow(ctx, window)
}

func (run *importRun) processWindow(ctx context.Context, window []ImportRow) error {
	if len(window) == 0 {
		return nil
	}

	candidates := make([]Candidate, 0, len(window))
	keys := make([]string, 0, len(window))
	for _, ir := range window {
		run.row = ir.Number
		run.result.Processed++

		c, err := Normalize(ir, run.opts.Dates)
		if err != nil {
			if run.skip(ir.Number, ir.NationalID, err) {
				continue
			}
			return err
		}
		candidates = append(candidates, c)
		keys = append(keys, c.NationalID)
	}

	if err := run.gate.Prefetch(ctx, keys); err != nil {
		return err
	}

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		run.row = c.Row
		if err := run.accept(ctx, c); err != nil {
			if run.skip(c.Row, c.NationalID, err) {
				continue
			}
			return err
		}
	}
	return nil
}

func (run *importRun) accept(ctx context.Context, c Candidate) error {
	if err := run.gate.Check(ctx, c.NationalID); err != nil {
		return err
	}

	cust, err := run.assembler.FromCandidate(ctx, c, run.opts.ReferencePolicy, run.result.ImportID, run.gate.Accepted)
	if err != nil {
		return err
	}
	if c.ParentNationalID != "" && cust.ParentID == nil && cust.ParentKey == "" {
		run.result.UnlinkedParents++
		run.logger.Warn("parent not found, link omitted",
			"row", c.Row,
			"national_id", c.NationalID,
			"parent_national_id", c.ParentNationalID,
		)
	}

	run.gate.Accept(c.NationalID)
	run.metrics.RowProcessed(RowAccepted)

	run.phase = PhaseFlushing
	if err := run.committer.Add(ctx, cust); err != nil {
		return err
	}
	run.phase = PhaseReadingRows
	return nil
}

// skip records err as a skipped row when it is recoverable under the
// reference policy and reports whether it did.
func (run *importRun) skip(row int, nationalID string, err error) bool {
	reason, ok := skipReason(err)
	if !ok {
		return false
	}
	if run.opts.ReferencePolicy == ReferenceFail &&
		(reason == SkipMalformedReference || reason == SkipUnknownReference) {
		return false
	}

	run.result.skip(row, nationalID, reason, err)
	run.metrics.RowProcessed(string(reason))
	run.logger.Debug("row skipped", "row", row, "reason", reason, "error", err)
	return true
}
