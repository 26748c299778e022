package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/JonMunkholm/cms/internal/config"
	"github.com/JonMunkholm/cms/internal/logging"
	"github.com/JonMunkholm/cms/internal/workbook"
)

// CommitPolicy controls how import flushes map to transactions.
type CommitPolicy string

const (
	// CommitBatch commits every flush on its own. A failure leaves earlier
	// batches stored; RollbackImport removes them.
	CommitBatch CommitPolicy = "batch"
	// CommitFile runs the whole import in one transaction.
	CommitFile CommitPolicy = "file"
)

var commitPolicies = []CommitPolicy{CommitBatch, CommitFile}

// ParseCommitPolicy accepts batch or file in any case.
func ParseCommitPolicy(s string) (CommitPolicy, error) {
	p := CommitPolicy(strings.ToLower(s))
	if !slices.Contains(commitPolicies, p) {
		return "", fmt.Errorf("unknown commit policy %q (want one of %s)", s, joinNames(commitPolicies))
	}
	return p, nil
}

func joinNames[T ~string](names []T) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}
	return strings.Join(parts, ", ")
}

const (
	defaultListLimit = 100
	maxListLimit     = 1000

	// maxParentDepth bounds the walk up a family tree when checking for cycles.
	maxParentDepth = 64
)

// Service is the entry point for imports and single-customer writes. It is
// safe for concurrent use; each import runs sequentially on the caller's
// goroutine.
type Service struct {
	store        Store
	importer     *Importer
	dates        *DateParser
	layout       Layout
	policy       ReferencePolicy
	commitPolicy CommitPolicy
	maxFileSize  int64
	timeout      time.Duration

	limiter  *ImportLimiter
	metrics  Metrics
	validate *validator.Validate
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithMetrics sets the import instrumentation.
func WithMetrics(m Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService builds a service from the import configuration. Layout, date
// formats and policies are parsed here and every invalid setting is
// reported in one error.
func NewService(store Store, cfg config.ImportConfig, opts ...ServiceOption) (*Service, error) {
	layout, formats, layoutErr := importLayout(cfg)
	dates, datesErr := NewDateParser(formats)
	policy, policyErr := ParseReferencePolicy(cfg.ReferencePolicy)
	commit, commitErr := ParseCommitPolicy(cfg.CommitPolicy)
	if err := errors.Join(layoutErr, datesErr, policyErr, commitErr); err != nil {
		return nil, fmt.Errorf("import config: %w", err)
	}

	s := &Service{
		store:        store,
		dates:        dates,
		layout:       layout,
		policy:       policy,
		commitPolicy: commit,
		maxFileSize:  cfg.MaxFileSize,
		timeout:      cfg.Timeout,
		limiter:      NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWaitTime),
		metrics:      nopMetrics{},
		validate:     newValidator(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.importer = NewImporter(ImportOptions{
		Layout:          layout,
		Dates:           dates,
		ReferencePolicy: policy,
		BatchSize:       cfg.BatchSize,
	}, s.metrics)
	return s, nil
}

// importLayout resolves the column layout and date formats. A layout file,
// when configured, overrides the preset and may replace the date formats and
// the configured header row count.
func importLayout(cfg config.ImportConfig) (Layout, []string, error) {
	if cfg.LayoutFile == "" {
		layout, err := Preset(cfg.Layout)
		layout.HeaderRows = cfg.HeaderRows
		return layout, cfg.DateFormats, err
	}

	layout, fileFormats, err := LoadLayoutFile(cfg.LayoutFile, cfg.Layout, cfg.HeaderRows)
	if len(fileFormats) > 0 {
		return layout, fileFormats, err
	}
	return layout, cfg.DateFormats, err
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Limiter exposes the import limiter for shutdown draining and health checks.
func (s *Service) Limiter() *ImportLimiter { return s.limiter }

// Layout returns the active column layout.
func (s *Service) Layout() Layout { return s.layout }

// Import reads a workbook and persists its customers. On success the result
// carries the counts; on a fatal error no result is returned and the error
// is an *ImportError. Every attempt is written to the import history.
func (s *Service) Import(ctx context.Context, fileName string, r io.Reader) (*ImportResult, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result := &ImportResult{ImportID: uuid.New(), FileName: fileName}
	logger := logging.WithFields(ctx, "import_id", result.ImportID, "file", fileName)
	ctx = logging.NewContext(ctx, logger)

	start := time.Now()
	logger.Info("import started",
		"layout", s.layout.Name,
		"reference_policy", s.policy,
		"commit_policy", s.commitPolicy,
	)

	err := s.runImport(ctx, r, result)
	result.Duration = time.Since(start)
	s.recordRun(ctx, result, start, err)

	if err != nil {
		s.metrics.ImportFinished(ImportFailed, result.Duration)
		logger.Error("import failed", "error", err, "processed", result.Processed)
		return nil, err
	}

	s.metrics.ImportFinished(ImportCompleted, result.Duration)
	logger.Info("import completed",
		"processed", result.Processed,
		"imported", result.Imported,
		"skipped", result.Skipped,
		"unlinked_parents", result.UnlinkedParents,
		"batches", result.Batches,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

func (s *Service) runImport(ctx context.Context, r io.Reader, result *ImportResult) error {
	rows, err := workbook.Open(r, result.FileName, s.maxFileSize)
	if err != nil {
		return &ImportError{Phase: PhaseStart, Err: &WorkbookFormatError{Err: err}}
	}
	defer rows.Close()

	if s.commitPolicy == CommitBatch {
		return s.importer.Run(ctx, rows, s.store, s.store, result)
	}

	err = s.store.InTx(ctx, func(records RecordStore) error {
		return s.importer.Run(ctx, rows, records, s.store, result)
	})
	if err == nil {
		return nil
	}

	// Nothing survives a rolled back file transaction.
	result.Imported = 0
	var ie *ImportError
	if errors.As(err, &ie) {
		ie.Committed = 0
		return ie
	}
	return &ImportError{Phase: PhaseFlushing, Err: &StoreFailure{Op: "commit import", Err: err}}
}

func (s *Service) recordRun(ctx context.Context, result *ImportResult, start time.Time, runErr error) {
	run := ImportRun{
		ID:              result.ImportID,
		FileName:        result.FileName,
		Status:          ImportCompleted,
		Processed:       result.Processed,
		Imported:        result.Imported,
		Skipped:         result.Skipped,
		UnlinkedParents: result.UnlinkedParents,
		Source:          SourceFromContext(ctx),
		StartedAt:       start,
		Duration:        result.Duration,
	}
	if runErr != nil {
		run.Status = ImportFailed
		run.Error = runErr.Error()
	}

	// The import context may already be cancelled or timed out.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.RecordImport(recordCtx, run); err != nil {
		logging.FromContext(ctx).Warn("failed to record import run", "error", err)
	}
}

// CreateCustomer validates and stores a new customer.
func (s *Service) CreateCustomer(ctx context.Context, in CustomerInput) (*Customer, error) {
	return s.AssembleAndSave(ctx, 0, in)
}

// UpdateCustomer replaces customer id, including its full address list.
func (s *Service) UpdateCustomer(ctx context.Context, id int64, in CustomerInput) (*Customer, error) {
	return s.AssembleAndSave(ctx, id, in)
}

// AssembleAndSave is the single-record write path: id zero creates, any other
// id replaces. Validation, date and reference errors are returned as is; an
// unresolved parent id is dropped with a warning, as in imports.
func (s *Service) AssembleAndSave(ctx context.Context, id int64, in CustomerInput) (*Customer, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.NationalID = strings.TrimSpace(in.NationalID)
	in.DateOfBirth = strings.TrimSpace(in.DateOfBirth)

	if err := s.validateInput(in); err != nil {
		return nil, err
	}
	dob, err := s.dates.Parse(in.DateOfBirth)
	if err != nil {
		return nil, err
	}

	var existing *Customer
	if id != 0 {
		existing, err = s.store.FindByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("customer %d: %w", id, err)
		}
		if err := s.checkParentCycle(ctx, id, in.ParentID); err != nil {
			return nil, err
		}
	}
	if existing == nil || existing.NationalID != in.NationalID {
		taken, err := s.store.ExistsByKey(ctx, in.NationalID)
		if err != nil {
			return nil, &StoreFailure{Op: "check national id", Err: err}
		}
		if taken {
			return nil, duplicate(in.NationalID, "already exists")
		}
	}

	asm := NewAssembler(s.store, NewReferenceResolver(s.store))
	cust, unlinked, err := asm.FromInput(ctx, in, dob)
	if err != nil {
		return nil, err
	}
	if unlinked {
		logging.FromContext(ctx).Warn("parent not found, link omitted",
			"national_id", in.NationalID,
			"parent_id", *in.ParentID,
		)
	}
	if existing != nil {
		cust.ID = existing.ID
		cust.ImportID = existing.ImportID
	}

	saved, err := s.store.Save(ctx, cust)
	switch {
	case errors.Is(err, ErrDuplicateKey):
		return nil, duplicate(in.NationalID, "already exists")
	case errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("customer %d: %w", id, err)
	case err != nil:
		return nil, &StoreFailure{Op: "save customer", Err: err}
	}
	return saved, nil
}

func (s *Service) validateInput(in CustomerInput) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Field: "input", Reason: err.Error()}
	}

	fe := fieldErrs[0]
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	reason := "failed " + fe.Tag()
	if fe.Param() != "" {
		reason += "=" + fe.Param()
	}
	return &ValidationError{Field: field, Reason: reason}
}

// checkParentCycle rejects a parent that is the customer itself or one of
// its descendants.
func (s *Service) checkParentCycle(ctx context.Context, id int64, parentID *int64) error {
	cur := parentID
	for depth := 0; cur != nil && depth < maxParentDepth; depth++ {
		if *cur == id {
			return &ValidationError{Field: "parent_id", Reason: "would create a family cycle"}
		}
		p, err := s.store.FindByID(ctx, *cur)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return &StoreFailure{Op: "find parent", Err: err}
		}
		cur = p.ParentID
	}
	return nil
}

// GetCustomer returns one customer with addresses and phone numbers.
func (s *Service) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	c, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("customer %d: %w", id, err)
	}
	return c, nil
}

// ListFamilyMembers returns the customers whose parent is id. It fails with
// ErrNotFound when id itself does not exist.
func (s *Service) ListFamilyMembers(ctx context.Context, id int64) ([]Customer, error) {
	if _, err := s.store.FindByID(ctx, id); err != nil {
		return nil, fmt.Errorf("customer %d: %w", id, err)
	}
	members, err := s.store.ListChildren(ctx, id)
	if err != nil {
		return nil, &StoreFailure{Op: "list family members", Err: err}
	}
	return members, nil
}

// ListCustomers pages customers ordered by id.
func (s *Service) ListCustomers(ctx context.Context, opts ListOptions) ([]Customer, error) {
	if opts.Limit <= 0 {
		opts.Limit = defaultListLimit
	}
	if opts.Limit > maxListLimit {
		opts.Limit = maxListLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	return s.store.List(ctx, opts)
}

func (s *Service) ListCities(ctx context.Context) ([]City, error) {
	return s.store.ListCities(ctx)
}

func (s *Service) ListCountries(ctx context.Context) ([]Country, error) {
	return s.store.ListCountries(ctx)
}

// ListImports returns the most recent import runs first.
func (s *Service) ListImports(ctx context.Context, limit int) ([]ImportRun, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	return s.store.ListImports(ctx, limit)
}

// RollbackImport deletes every customer created by an import run and marks
// the run rolled back. Failed runs under the batch commit policy can be
// rolled back too.
func (s *Service) RollbackImport(ctx context.Context, id uuid.UUID) (*RollbackResult, error) {
	run, err := s.store.GetImport(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", id, ErrImportNotFound)
	}
	if err != nil {
		return nil, &StoreFailure{Op: "get import", Err: err}
	}
	if run.Status == ImportRolledBack {
		return nil, fmt.Errorf("%s: %w", id, ErrAlreadyRolledBack)
	}

	var deleted int64
	err = s.store.InTx(ctx, func(records RecordStore) error {
		n, err := records.DeleteByImport(ctx, id)
		deleted = n
		return err
	})
	if err != nil {
		return nil, &StoreFailure{Op: "delete imported customers", Err: err}
	}

	logger := logging.WithFields(ctx, "import_id", id, "file", run.FileName)
	if err := s.store.MarkRolledBack(ctx, id); err != nil {
		// Customers are already gone; only the history entry is stale.
		logger.Warn("failed to mark import rolled back", "error", err)
	}
	logger.Info("import rolled back", "customers_deleted", deleted)

	return &RollbackResult{ImportID: id, FileName: run.FileName, CustomersDeleted: deleted}, nil
}
