// Package services – ComplaintService
//
// This file implements ComplaintService, the application-level component
// that owns complaint ingestion and retrieval. It validates single-entry
// submissions, runs uploads through the import normaliser, persists through
// the repository, and serves filtered and exported views of the store.
//
// Two date policies coexist on purpose: a submitted record must carry a
// YYYY-MM-DD date or it is rejected, while an imported row with a missing or
// unreadable date is stamped with the import time.
//
// Errors are the typed values from the domain package (ValidationError,
// UnsupportedFormatError, ParseError, StorageError, PartialImportError) so
// handlers can map them with errors.As.
//
// Observability: all public methods are OpenTelemetry-instrumented; import
// outcomes are also counted in Prometheus.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/tbourn/complaints-backend/internal/domain"
	"github.com/tbourn/complaints-backend/internal/export"
	"github.com/tbourn/complaints-backend/internal/ingest"
	"github.com/tbourn/complaints-backend/internal/repo"
	"github.com/tbourn/complaints-backend/internal/search"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Idempotency scopes.
const (
	ScopeSubmit = "submit"
	ScopeUpload = "upload"
)

// DefaultPreviewRows is used when Preview is called with limit <= 0.
const DefaultPreviewRows = 10

var (
	importedRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "complaints_imported_rows_total",
			Help: "Complaint rows persisted by bulk upload, by source format.",
		},
		[]string{"format"},
	)
	importFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "complaints_import_failures_total",
			Help: "Bulk uploads that failed, by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(importedRows, importFailures)
}

// ComplaintRepo defines the repository contract required by ComplaintService.
// The functions in package repo satisfy it through a small shim.
type ComplaintRepo interface {
	// CreateComplaint inserts c and sets its store-assigned id.
	CreateComplaint(ctx context.Context, db *gorm.DB, c *domain.Complaint) error
	// BulkCreateComplaints inserts every record or none.
	BulkCreateComplaints(ctx context.Context, db *gorm.DB, recs []domain.Complaint, batchSize int) error
	// AppendComplaints commits batch by batch and reports the committed prefix.
	AppendComplaints(ctx context.Context, db *gorm.DB, recs []domain.Complaint, batchSize int) (int, error)
	// ListComplaints returns all records, newest date first.
	ListComplaints(ctx context.Context, db *gorm.DB) ([]domain.Complaint, error)
	// GetComplaint fetches one record by id.
	GetComplaint(ctx context.Context, db *gorm.DB, id int64) (*domain.Complaint, error)
	// ComplaintsStats returns (count, max id) for conditional responses.
	ComplaintsStats(ctx context.Context, db *gorm.DB) (int64, int64, error)
}

// IdempotencyRepo persists replayable outcomes of POST requests.
type IdempotencyRepo interface {
	GetIdempotency(ctx context.Context, db *gorm.DB, scope, key string, now time.Time) (*domain.Idempotency, error)
	CreateIdempotency(ctx context.Context, db *gorm.DB, scope, key string, resourceID int64, count, status int, ttl time.Duration) (*domain.Idempotency, error)
}

// ComplaintService provides complaint ingestion, listing, and export.
type ComplaintService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the complaint repository used by this service.
	Repo ComplaintRepo
	// Idem stores idempotency records; nil disables replay support.
	Idem IdempotencyRepo

	// Atomic makes uploads all-or-nothing. When false, rows are committed
	// batch by batch and a failure reports the committed prefix.
	Atomic bool
	// BatchSize is the number of rows per INSERT during upload.
	BatchSize int
	// StoreTimeout bounds each store round-trip; 0 disables the deadline.
	StoreTimeout time.Duration
	// IdempotencyTTL is how long a stored outcome can be replayed.
	IdempotencyTTL time.Duration

	// Now is the clock; tests may replace it.
	Now func() time.Time
}

// NewComplaintService constructs a ComplaintService with atomic uploads and
// the default batch size.
func NewComplaintService(db *gorm.DB, r ComplaintRepo, idem IdempotencyRepo) *ComplaintService {
	return &ComplaintService{
		DB:             db,
		Repo:           r,
		Idem:           idem,
		Atomic:         true,
		BatchSize:      repo.DefaultBatchSize,
		IdempotencyTTL: 24 * time.Hour,
		Now:            time.Now,
	}
}

// ImportResult summarises a completed upload.
type ImportResult struct {
	Count  int
	Format ingest.Format
}

// PreviewResult is the head of a normalised upload that was not persisted.
type PreviewResult struct {
	TotalRows int
	Records   []domain.Complaint
}

// Submit validates in and persists it as a new complaint. Invalid input
// returns *domain.ValidationError or domain.ValidationErrors and nothing is
// written.
func (s *ComplaintService) Submit(ctx context.Context, in SubmitInput) (*domain.Complaint, error) {
	ctx, span := s.tracer().Start(ctx, "Submit")
	defer span.End()

	c, err := in.toComplaint()
	if err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return nil, err
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.Repo.CreateComplaint(sctx, s.DB, c); err != nil {
		return nil, s.storageErr(span, "create", err)
	}
	span.SetAttributes(attribute.Int64("complaint.id", c.ID))
	return c, nil
}

// Import normalises an uploaded file and persists every data row. A file
// with a header and no rows succeeds with Count 0.
func (s *ComplaintService) Import(ctx context.Context, filename string, data []byte) (*ImportResult, error) {
	ctx, span := s.tracer().Start(ctx, "Import",
		trace.WithAttributes(
			attribute.String("upload.filename", filename),
			attribute.Int("upload.bytes", len(data)),
			attribute.Bool("import.atomic", s.Atomic),
		),
	)
	defer span.End()

	format, err := ingest.DetectFormat(filename)
	if err != nil {
		importFailures.WithLabelValues("unsupported_format").Inc()
		span.SetStatus(codes.Error, "unsupported format")
		return nil, err
	}
	res, err := ingest.NormalizeFile(data, filename, s.now())
	if err != nil {
		importFailures.WithLabelValues("parse").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("import.rows", res.Rows))
	if res.Rows == 0 {
		return &ImportResult{Count: 0, Format: format}, nil
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if s.Atomic {
		if err := s.Repo.BulkCreateComplaints(sctx, s.DB, res.Records, s.BatchSize); err != nil {
			importFailures.WithLabelValues("storage").Inc()
			return nil, s.storageErr(span, "bulk_create", err)
		}
	} else {
		written, err := s.Repo.AppendComplaints(sctx, s.DB, res.Records, s.BatchSize)
		if written > 0 {
			importedRows.WithLabelValues(string(format)).Add(float64(written))
		}
		if err != nil {
			serr := s.storageErr(span, "append", err)
			if written == 0 {
				importFailures.WithLabelValues("storage").Inc()
				return nil, serr
			}
			importFailures.WithLabelValues("partial").Inc()
			return nil, &domain.PartialImportError{Written: written, Total: res.Rows, Err: serr}
		}
		return &ImportResult{Count: written, Format: format}, nil
	}

	importedRows.WithLabelValues(string(format)).Add(float64(res.Rows))
	return &ImportResult{Count: res.Rows, Format: format}, nil
}

// Preview normalises an upload without persisting it and returns the first
// limit records plus the total number of data rows.
func (s *ComplaintService) Preview(ctx context.Context, filename string, data []byte, limit int) (*PreviewResult, error) {
	_, span := s.tracer().Start(ctx, "Preview",
		trace.WithAttributes(attribute.String("upload.filename", filename)),
	)
	defer span.End()

	if limit <= 0 {
		limit = DefaultPreviewRows
	}
	res, err := ingest.NormalizeFile(data, filename, s.now())
	if err != nil {
		span.SetStatus(codes.Error, "preview failed")
		return nil, err
	}
	head := res.Records
	if len(head) > limit {
		head = head[:limit]
	}
	return &PreviewResult{TotalRows: res.Rows, Records: head}, nil
}

// List re-reads the whole store and returns the records matching query,
// newest date first. An empty query returns everything.
func (s *ComplaintService) List(ctx context.Context, query string) ([]domain.Complaint, error) {
	ctx, span := s.tracer().Start(ctx, "List",
		trace.WithAttributes(attribute.Int("query.len", len(query))),
	)
	defer span.End()

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	recs, err := s.Repo.ListComplaints(sctx, s.DB)
	if err != nil {
		return nil, s.storageErr(span, "list", err)
	}
	out := search.Filter(recs, query)
	span.SetAttributes(attribute.Int("result.count", len(out)))
	return out, nil
}

// Get returns one complaint by id; a missing id yields repo.ErrNotFound.
func (s *ComplaintService) Get(ctx context.Context, id int64) (*domain.Complaint, error) {
	ctx, span := s.tracer().Start(ctx, "Get",
		trace.WithAttributes(attribute.Int64("complaint.id", id)),
	)
	defer span.End()

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	c, err := s.Repo.GetComplaint(sctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, s.storageErr(span, "get", err)
	}
	return c, nil
}

// Stats returns the record count and the largest id, which together change
// whenever the collection does.
func (s *ComplaintService) Stats(ctx context.Context) (count int64, maxID int64, err error) {
	ctx, span := s.tracer().Start(ctx, "Stats")
	defer span.End()

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	count, maxID, err = s.Repo.ComplaintsStats(sctx, s.DB)
	if err != nil {
		return 0, 0, s.storageErr(span, "stats", err)
	}
	return count, maxID, nil
}

// Export lists the records matching query and renders them in format.
func (s *ComplaintService) Export(ctx context.Context, format export.Format, query string) (*export.File, error) {
	ctx, span := s.tracer().Start(ctx, "Export",
		trace.WithAttributes(attribute.String("export.format", string(format))),
	)
	defer span.End()

	recs, err := s.List(ctx, query)
	if err != nil {
		return nil, err
	}
	f, err := export.Render(format, recs, s.now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "render failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("export.rows", len(recs)), attribute.Int("export.bytes", len(f.Data)))
	return f, nil
}

// Replay returns a stored, unexpired outcome for (scope, key), or nil when
// there is none. Lookup failures are reported as "no replay".
func (s *ComplaintService) Replay(ctx context.Context, scope, key string) *domain.Idempotency {
	if s.Idem == nil || key == "" {
		return nil
	}
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	rec, err := s.Idem.GetIdempotency(sctx, s.DB, scope, key, s.now().UTC())
	if err != nil {
		return nil
	}
	return rec
}

// Remember stores the outcome of a completed request under (scope, key).
// A concurrent duplicate is not an error.
func (s *ComplaintService) Remember(ctx context.Context, scope, key string, resourceID int64, count, status int) error {
	if s.Idem == nil || key == "" {
		return nil
	}
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	_, err := s.Idem.CreateIdempotency(sctx, s.DB, scope, key, resourceID, count, status, s.IdempotencyTTL)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

func (s *ComplaintService) tracer() trace.Tracer {
	return otel.Tracer("services/ComplaintService")
}

func (s *ComplaintService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// storeCtx derives the per-operation store deadline.
func (s *ComplaintService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.StoreTimeout > 0 {
		return context.WithTimeout(ctx, s.StoreTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *ComplaintService) storageErr(span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, op+" failed")
	return &domain.StorageError{Op: op, Err: err}
}
