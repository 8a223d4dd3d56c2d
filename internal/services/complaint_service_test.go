package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/complaints-backend/internal/domain"
	"github.com/tbourn/complaints-backend/internal/export"
	"github.com/tbourn/complaints-backend/internal/repo"
)

// ----- Fake repo -----

type fakeComplaintRepo struct {
	created   []domain.Complaint
	createErr error

	bulk       []domain.Complaint
	bulkSize   int
	bulkErr    error
	bulkCalled bool

	appendWritten int
	appendErr     error
	appendCalled  bool

	list    []domain.Complaint
	listErr error

	sawDeadline bool
}

func (r *fakeComplaintRepo) CreateComplaint(ctx context.Context, db *gorm.DB, c *domain.Complaint) error {
	_, r.sawDeadline = ctx.Deadline()
	if r.createErr != nil {
		return r.createErr
	}
	c.ID = int64(len(r.created) + 1)
	r.created = append(r.created, *c)
	return nil
}

func (r *fakeComplaintRepo) BulkCreateComplaints(ctx context.Context, db *gorm.DB, recs []domain.Complaint, batchSize int) error {
	r.bulkCalled = true
	r.bulk, r.bulkSize = recs, batchSize
	return r.bulkErr
}

func (r *fakeComplaintRepo) AppendComplaints(ctx context.Context, db *gorm.DB, recs []domain.Complaint, batchSize int) (int, error) {
	r.appendCalled = true
	if r.appendErr == nil {
		return len(recs), nil
	}
	return r.appendWritten, r.appendErr
}

func (r *fakeComplaintRepo) ListComplaints(ctx context.Context, db *gorm.DB) ([]domain.Complaint, error) {
	return r.list, r.listErr
}

func (r *fakeComplaintRepo) GetComplaint(ctx context.Context, db *gorm.DB, id int64) (*domain.Complaint, error) {
	for i := range r.created {
		if r.created[i].ID == id {
			c := r.created[i]
			return &c, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (r *fakeComplaintRepo) ComplaintsStats(ctx context.Context, db *gorm.DB) (int64, int64, error) {
	return int64(len(r.list)), int64(len(r.list)), r.listErr
}

// ----- Real repo over SQLite -----

type sqliteRepo struct{}

func (sqliteRepo) CreateComplaint(ctx context.Context, db *gorm.DB, c *domain.Complaint) error {
	return repo.CreateComplaint(ctx, db, c)
}
func (sqliteRepo) BulkCreateComplaints(ctx context.Context, db *gorm.DB, recs []domain.Complaint, n int) error {
	return repo.BulkCreateComplaints(ctx, db, recs, n)
}
func (sqliteRepo) AppendComplaints(ctx context.Context, db *gorm.DB, recs []domain.Complaint, n int) (int, error) {
	return repo.AppendComplaints(ctx, db, recs, n)
}
func (sqliteRepo) ListComplaints(ctx context.Context, db *gorm.DB) ([]domain.Complaint, error) {
	return repo.ListComplaints(ctx, db)
}
func (sqliteRepo) GetComplaint(ctx context.Context, db *gorm.DB, id int64) (*domain.Complaint, error) {
	return repo.GetComplaint(ctx, db, id)
}
func (sqliteRepo) ComplaintsStats(ctx context.Context, db *gorm.DB) (int64, int64, error) {
	return repo.ComplaintsStats(ctx, db)
}

type sqliteIdem struct{}

func (sqliteIdem) GetIdempotency(ctx context.Context, db *gorm.DB, scope, key string, now time.Time) (*domain.Idempotency, error) {
	return repo.GetIdempotency(ctx, db, scope, key, now)
}
func (sqliteIdem) CreateIdempotency(ctx context.Context, db *gorm.DB, scope, key string, id int64, count, status int, ttl time.Duration) (*domain.Idempotency, error) {
	return repo.CreateIdempotency(ctx, db, scope, key, id, count, status, ttl)
}

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

var clock = time.Date(2025, 7, 4, 12, 0, 0, 0, time.UTC)

func newRealService(t *testing.T) *ComplaintService {
	t.Helper()
	s := NewComplaintService(newServiceDB(t), sqliteRepo{}, sqliteIdem{})
	s.Now = func() time.Time { return clock }
	return s
}

func validInput() SubmitInput {
	return SubmitInput{
		Date:             "2024-05-01",
		ComplaintDetails: "leak",
		ComplaintNumber:  "C1",
		Circle:           "North",
		ConsumerNumber:   "U9",
		Dept:             "Water",
		Remarks:          "urgent",
	}
}

// ----- Tests -----

func TestNewComplaintService_Defaults(t *testing.T) {
	r := &fakeComplaintRepo{}
	s := NewComplaintService(nil, r, nil)
	if s.Repo != r || !s.Atomic || s.BatchSize != repo.DefaultBatchSize || s.IdempotencyTTL != 24*time.Hour || s.Now == nil {
		t.Fatalf("unexpected defaults: %+v", s)
	}
}

func TestSubmit_RoundTripThroughStore(t *testing.T) {
	s := newRealService(t)
	ctx := context.Background()

	c, err := s.Submit(ctx, validInput())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if c.ID == 0 {
		t.Fatalf("expected id to be assigned")
	}
	c2, err := s.Submit(ctx, validInput())
	if err != nil {
		t.Fatalf("duplicate numbers must be accepted: %v", err)
	}
	if c2.ID == c.ID {
		t.Fatalf("id reused: %d", c2.ID)
	}

	all, err := s.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len = %d", len(all))
	}
	got := all[0]
	if got.ID != c.ID || !got.Date.Equal(c.Date) || got.ComplaintDetails != "leak" || got.ComplaintNumber != "C1" ||
		got.Circle != "North" || got.ConsumerNumber != "U9" || got.Dept != "Water" || got.Remarks != "urgent" {
		t.Fatalf("round-trip mismatch:\n got %+v\nwant %+v", got, *c)
	}
}

func TestSubmit_TrimsFields(t *testing.T) {
	r := &fakeComplaintRepo{}
	s := NewComplaintService(nil, r, nil)
	in := validInput()
	in.Date = " 2024-05-01 "
	in.Circle = "  North  "
	c, err := s.Submit(context.Background(), in)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if c.Circle != "North" || c.Date.Format(domain.DateLayout) != "2024-05-01" {
		t.Fatalf("unexpected: %+v", c)
	}
}

func TestSubmit_RejectsBadDateWithoutPersisting(t *testing.T) {
	for _, d := range []string{"", "05/01/2024", "2024-02-30", "soon"} {
		r := &fakeComplaintRepo{}
		s := NewComplaintService(nil, r, nil)
		in := validInput()
		in.Date = d

		_, err := s.Submit(context.Background(), in)
		var ve *domain.ValidationError
		if !errors.As(err, &ve) || ve.Field != "date" {
			t.Fatalf("date %q: expected date ValidationError, got %v", d, err)
		}
		if len(r.created) != 0 {
			t.Fatalf("date %q: record persisted despite validation failure", d)
		}
	}
}

func TestSubmit_RejectsOverlongFields(t *testing.T) {
	r := &fakeComplaintRepo{}
	s := NewComplaintService(nil, r, nil)
	in := validInput()
	in.Circle = strings.Repeat("x", 101)
	in.Remarks = strings.Repeat("é", 501)

	_, err := s.Submit(context.Background(), in)
	var ves domain.ValidationErrors
	if !errors.As(err, &ves) || len(ves) != 2 {
		t.Fatalf("expected two field errors, got %v", err)
	}
	if ves[0].Field != "circle" || ves[1].Field != "remarks" {
		t.Fatalf("unexpected fields: %v", ves)
	}

	in = validInput()
	in.Remarks = strings.Repeat("é", 500) // at the bound, in runes
	if _, err := s.Submit(context.Background(), in); err != nil {
		t.Fatalf("500 runes should be accepted: %v", err)
	}
}

func TestSubmit_StorageFailureIsTyped(t *testing.T) {
	r := &fakeComplaintRepo{createErr: errors.New("disk full")}
	s := NewComplaintService(nil, r, nil)
	s.StoreTimeout = time.Second

	_, err := s.Submit(context.Background(), validInput())
	var se *domain.StorageError
	if !errors.As(err, &se) || se.Op != "create" {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if !r.sawDeadline {
		t.Fatalf("store call should carry the StoreTimeout deadline")
	}
}

func TestImport_PersistsEveryRow(t *testing.T) {
	s := newRealService(t)
	ctx := context.Background()
	data := []byte("date,Circle,REMARKS\n2024-01-01,a,\n2024-03-01,b,x\n,c,\n")

	res, err := s.Import(ctx, "upload.CSV", data)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Count != 3 || res.Format != "csv" {
		t.Fatalf("unexpected result: %+v", res)
	}
	all, _ := s.List(ctx, "")
	if len(all) != 3 {
		t.Fatalf("store holds %d rows", len(all))
	}
	// The dateless row is stamped with the import time and sorts first.
	if all[0].Circle != "c" || !all[0].Date.Equal(clock) || all[1].Circle != "b" {
		t.Fatalf("unexpected order: %+v", all)
	}
}

func TestImport_HeaderOnlySucceedsWithZero(t *testing.T) {
	r := &fakeComplaintRepo{}
	s := NewComplaintService(nil, r, nil)
	res, err := s.Import(context.Background(), "x.csv", []byte("DATE,REMARKS\n"))
	if err != nil || res.Count != 0 {
		t.Fatalf("got %+v, %v", res, err)
	}
	if r.bulkCalled || r.appendCalled {
		t.Fatalf("store must not be touched for an empty file")
	}
}

func TestImport_UnsupportedAndParseErrorsPersistNothing(t *testing.T) {
	r := &fakeComplaintRepo{}
	s := NewComplaintService(nil, r, nil)

	_, err := s.Import(context.Background(), "data.txt", []byte("DATE\n2024-01-01\n"))
	var ufe *domain.UnsupportedFormatError
	if !errors.As(err, &ufe) {
		t.Fatalf("expected UnsupportedFormatError, got %v", err)
	}

	_, err = s.Import(context.Background(), "bad.xlsx", []byte("not a workbook"))
	var pe *domain.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if r.bulkCalled || r.appendCalled {
		t.Fatalf("store must not be touched on rejected uploads")
	}
}

func TestImport_AtomicFailureIsStorageError(t *testing.T) {
	r := &fakeComplaintRepo{bulkErr: errors.New("constraint")}
	s := NewComplaintService(nil, r, nil)
	s.BatchSize = 2

	_, err := s.Import(context.Background(), "x.csv", []byte("DATE\n2024-01-01\n2024-01-02\n"))
	var se *domain.StorageError
	if !errors.As(err, &se) || se.Op != "bulk_create" {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if r.bulkSize != 2 || len(r.bulk) != 2 {
		t.Fatalf("bulk called with size=%d recs=%d", r.bulkSize, len(r.bulk))
	}
}

func TestImport_AppendModeReportsPartialWrite(t *testing.T) {
	r := &fakeComplaintRepo{appendWritten: 1, appendErr: errors.New("lost connection")}
	s := NewComplaintService(nil, r, nil)
	s.Atomic = false

	_, err := s.Import(context.Background(), "x.csv", []byte("DATE\n2024-01-01\n2024-01-02\n2024-01-03\n"))
	var pie *domain.PartialImportError
	if !errors.As(err, &pie) || pie.Written != 1 || pie.Total != 3 {
		t.Fatalf("expected PartialImportError{1,3}, got %v", err)
	}
	var se *domain.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("partial import should wrap the storage error")
	}

	r2 := &fakeComplaintRepo{appendErr: errors.New("down")}
	s2 := NewComplaintService(nil, r2, nil)
	s2.Atomic = false
	_, err = s2.Import(context.Background(), "x.csv", []byte("DATE\n2024-01-01\n"))
	if !errors.As(err, &se) || errors.As(err, &pie) {
		t.Fatalf("nothing written should be a plain StorageError, got %v", err)
	}

	r3 := &fakeComplaintRepo{}
	s3 := NewComplaintService(nil, r3, nil)
	s3.Atomic = false
	res, err := s3.Import(context.Background(), "x.csv", []byte("DATE\n2024-01-01\n2024-01-02\n"))
	if err != nil || res.Count != 2 || !r3.appendCalled || r3.bulkCalled {
		t.Fatalf("append success unexpected: %+v %v", res, err)
	}
}

func TestPreview_DoesNotPersist(t *testing.T) {
	r := &fakeComplaintRepo{}
	s := NewComplaintService(nil, r, nil)
	var b strings.Builder
	b.WriteString("DATE,CIRCLE\n")
	for i := 0; i < 15; i++ {
		fmt.Fprintf(&b, "2024-01-%02d,c%d\n", i+1, i)
	}

	res, err := s.Preview(context.Background(), "p.csv", []byte(b.String()), 0)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if res.TotalRows != 15 || len(res.Records) != DefaultPreviewRows || res.Records[0].Circle != "c0" {
		t.Fatalf("unexpected preview: total=%d len=%d", res.TotalRows, len(res.Records))
	}
	if r.bulkCalled || r.appendCalled || len(r.created) != 0 {
		t.Fatalf("preview must not write")
	}

	small, err := s.Preview(context.Background(), "p.csv", []byte("DATE\n2024-01-01\n"), 5)
	if err != nil || small.TotalRows != 1 || len(small.Records) != 1 {
		t.Fatalf("small preview unexpected: %+v %v", small, err)
	}
}

func TestList_FiltersAndWrapsStorageErrors(t *testing.T) {
	r := &fakeComplaintRepo{list: []domain.Complaint{
		{ID: 1, Circle: "North"},
		{ID: 2, Circle: "South"},
	}}
	s := NewComplaintService(nil, r, nil)
	out, err := s.List(context.Background(), "NORTH")
	if err != nil || len(out) != 1 || out[0].ID != 1 {
		t.Fatalf("filter unexpected: %+v %v", out, err)
	}

	r.listErr = errors.New("unreachable")
	_, err = s.List(context.Background(), "")
	var se *domain.StorageError
	if !errors.As(err, &se) || se.Op != "list" {
		t.Fatalf("expected StorageError, got %v", err)
	}
}

func TestExport_RendersFilteredRecords(t *testing.T) {
	s := newRealService(t)
	ctx := context.Background()
	if _, err := s.Submit(ctx, validInput()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	other := validInput()
	other.Circle = "South"
	if _, err := s.Submit(ctx, other); err != nil {
		t.Fatalf("seed: %v", err)
	}

	f, err := s.Export(ctx, export.FormatCSV, "south")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if f.Filename != "complaints_20250704_120000.csv" || f.ContentType != export.ContentTypeCSV {
		t.Fatalf("unexpected file meta: %+v", f)
	}
	lines := strings.Split(strings.TrimSpace(string(f.Data)), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], "South") {
		t.Fatalf("unexpected csv: %q", f.Data)
	}

	_, err = s.Export(ctx, export.Format("pdf"), "")
	var ufe *domain.UnsupportedFormatError
	if !errors.As(err, &ufe) {
		t.Fatalf("expected UnsupportedFormatError, got %v", err)
	}
}

func TestGetAndStats(t *testing.T) {
	s := newRealService(t)
	ctx := context.Background()

	if n, max, err := s.Stats(ctx); err != nil || n != 0 || max != 0 {
		t.Fatalf("empty stats = (%d, %d, %v)", n, max, err)
	}
	c, err := s.Submit(ctx, validInput())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	got, err := s.Get(ctx, c.ID)
	if err != nil || got.ComplaintNumber != "C1" {
		t.Fatalf("Get = %+v, %v", got, err)
	}
	if _, err := s.Get(ctx, c.ID+100); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if n, max, err := s.Stats(ctx); err != nil || n != 1 || max != c.ID {
		t.Fatalf("stats = (%d, %d, %v)", n, max, err)
	}
}

func TestReplayAndRemember(t *testing.T) {
	s := newRealService(t)
	s.Now = time.Now
	ctx := context.Background()

	if rec := s.Replay(ctx, ScopeSubmit, "k1"); rec != nil {
		t.Fatalf("unexpected replay before remember: %+v", rec)
	}
	if err := s.Remember(ctx, ScopeSubmit, "k1", 7, 0, 201); err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if err := s.Remember(ctx, ScopeSubmit, "k1", 8, 0, 201); err != nil {
		t.Fatalf("duplicate Remember should be swallowed: %v", err)
	}
	rec := s.Replay(ctx, ScopeSubmit, "k1")
	if rec == nil || rec.ResourceID != 7 {
		t.Fatalf("replay = %+v", rec)
	}
	if s.Replay(ctx, ScopeUpload, "k1") != nil {
		t.Fatalf("scopes must not share keys")
	}

	noIdem := NewComplaintService(nil, &fakeComplaintRepo{}, nil)
	if noIdem.Replay(ctx, ScopeSubmit, "k1") != nil || noIdem.Remember(ctx, ScopeSubmit, "k1", 1, 0, 201) != nil {
		t.Fatalf("nil Idem must disable replay")
	}
}
