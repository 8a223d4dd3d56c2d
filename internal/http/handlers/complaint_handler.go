// Complaint HTTP handlers.
//
// This file exposes REST endpoints for complaint records:
//   - POST /complaints                 (submit one record)
//   - POST /complaints/upload          (bulk import from CSV/XLSX/XLS)
//   - POST /complaints/upload/preview  (parse and normalize without storing)
//   - GET  /complaints                 (list/search, optional pagination, ETag)
//   - GET  /complaints/export          (download as CSV or spreadsheet)
//
// Handlers are transport-thin: they read and bound inputs, delegate to the
// ComplaintService, and translate typed domain errors into the standard
// error envelope.
//
// Idempotency:
// If the client supplies an Idempotency-Key header on submit or upload and a
// previous successful outcome exists for that key, the handler returns the
// recorded result and sets `Idempotency-Replayed: true`.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/complaints-backend/internal/domain"
	"github.com/tbourn/complaints-backend/internal/export"
	"github.com/tbourn/complaints-backend/internal/http/middleware"
	"github.com/tbourn/complaints-backend/internal/services"
	"github.com/tbourn/complaints-backend/internal/utils"
)

//
// Service contract (context-aware)
//

// ComplaintService defines the complaint operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ComplaintService interface {
	// Submit validates and stores a single record.
	Submit(ctx context.Context, in services.SubmitInput) (*domain.Complaint, error)
	// Import parses, normalizes, and stores every row of an uploaded file.
	Import(ctx context.Context, filename string, data []byte) (*services.ImportResult, error)
	// Preview parses and normalizes an upload without storing it.
	Preview(ctx context.Context, filename string, data []byte, limit int) (*services.PreviewResult, error)
	// List returns the records matching query, newest first.
	List(ctx context.Context, query string) ([]domain.Complaint, error)
	// Get fetches one record by id.
	Get(ctx context.Context, id int64) (*domain.Complaint, error)
	// Stats returns (count, max id) for conditional responses.
	Stats(ctx context.Context) (int64, int64, error)
	// Export renders the records matching query as a downloadable file.
	Export(ctx context.Context, format export.Format, query string) (*export.File, error)
	// Replay returns a stored outcome for (scope, key), or nil.
	Replay(ctx context.Context, scope, key string) *domain.Idempotency
	// Remember records the outcome of a completed request.
	Remember(ctx context.Context, scope, key string, resourceID int64, count, status int) error
}

//
// Handler wiring
//

// Handlers groups the complaint HTTP endpoints.
type Handlers struct {
	svc ComplaintService
}

// New constructs and returns a Handlers instance bound to svc.
func New(svc ComplaintService) *Handlers {
	return &Handlers{svc: svc}
}

//
// DTOs
//

// CreateComplaintRequest is the JSON payload for a single-record submission.
// Date is required; text fields may be empty.
type CreateComplaintRequest struct {
	Date             string `json:"date" example:"2024-05-01"`
	ComplaintDetails string `json:"complaint_details" example:"No water supply since morning"`
	ComplaintNumber  string `json:"complaint_number" example:"CMP-10293"`
	Circle           string `json:"circle" example:"North"`
	ConsumerNumber   string `json:"consumer_number" example:"4410098812"`
	Dept             string `json:"dept" example:"Water"`
	Remarks          string `json:"remarks" example:"Escalated to field team"`
}

// CreateComplaintResponse acknowledges a stored record.
type CreateComplaintResponse struct {
	Message   string            `json:"message" example:"Complaint added successfully"`
	ID        int64             `json:"id" example:"42"`
	Complaint *domain.Complaint `json:"complaint"`
}

// UploadResponse reports how many rows an upload stored.
type UploadResponse struct {
	Message string `json:"message" example:"Successfully uploaded 120 records"`
	Count   int    `json:"count" example:"120"`
}

// PreviewResponse carries the head of a normalized upload.
type PreviewResponse struct {
	TotalRows  int                `json:"total_rows" example:"120"`
	Complaints []domain.Complaint `json:"complaints"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListComplaintsResponse wraps matching records. Count is the number of
// matches; Pagination is present only when the client asked for a page.
type ListComplaintsResponse struct {
	Complaints []domain.Complaint `json:"complaints"`
	Count      int                `json:"count" example:"3"`
	Pagination *Pagination        `json:"pagination,omitempty"`
}

// MessageResponse is a plain acknowledgement body.
type MessageResponse struct {
	Message string `json:"message" example:"Complaint Management API is running"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// clampPreviewLimit bounds the preview row count.
func clampPreviewLimit(c *gin.Context) int {
	const maxPreview = 100
	n := utils.AtoiDefault(c.Query("limit"), services.DefaultPreviewRows)
	if n < 1 {
		n = services.DefaultPreviewRows
	}
	if n > maxPreview {
		n = maxPreview
	}
	return n
}

// readUpload returns the name and content of the multipart "file" field.
// The part is closed before returning.
func readUpload(c *gin.Context) (string, []byte, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		if isTooLarge(err) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "upload exceeds the size limit")
			return "", nil, false
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "multipart field \"file\" is required")
		return "", nil, false
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cannot open uploaded file")
		return "", nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		if isTooLarge(err) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "upload exceeds the size limit")
			return "", nil, false
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cannot read uploaded file")
		return "", nil, false
	}
	return fh.Filename, data, true
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

// writeServiceError maps the domain error taxonomy onto HTTP responses.
func writeServiceError(c *gin.Context, err error) {
	var (
		ve  *domain.ValidationError
		ves domain.ValidationErrors
		ufe *domain.UnsupportedFormatError
		pe  *domain.ParseError
		pie *domain.PartialImportError
		se  *domain.StorageError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &ves):
		fail(c, http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
	case errors.As(err, &ufe):
		fail(c, http.StatusUnsupportedMediaType, ErrCodeUnsupportedFormat, err.Error())
	case errors.As(err, &pe):
		fail(c, http.StatusUnprocessableEntity, ErrCodeParseFailed, err.Error())
	case errors.As(err, &pie):
		middleware.LoggerFrom(c).Error().Err(pie.Err).
			Int("written", pie.Written).Int("total", pie.Total).
			Msg("partial import")
		fail(c, http.StatusInternalServerError, ErrCodePartialImport,
			fmt.Sprintf("import stopped after %d of %d rows", pie.Written, pie.Total))
	case errors.As(err, &se):
		middleware.LoggerFrom(c).Error().Err(se.Err).Str("op", se.Op).Msg("store failure")
		fail(c, http.StatusInternalServerError, ErrCodeStorageFailed, "storage failure: "+se.Op)
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// setReplayed marks a response as served from a stored outcome.
func setReplayed(c *gin.Context) {
	c.Header(middleware.HeaderIdempotencyReplayed, "true")
}

//
// Handlers
//

// Root godoc
// @ID          root
// @Summary     Service banner
// @Tags        Health
// @Produce     json
// @Success     200  {object}  handlers.MessageResponse
// @Router      / [get]
func (h *Handlers) Root(c *gin.Context) {
	ok(c, http.StatusOK, MessageResponse{Message: "Complaint Management API is running"})
}

// CreateComplaint godoc
// @ID          createComplaint
// @Summary     Submit a complaint
// @Description Validates and stores a single complaint record. Date must be YYYY-MM-DD.
// @Description Supports idempotency via the Idempotency-Key header (same key, same result).
// @Tags        Complaints
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.CreateComplaintRequest  true  "Complaint payload"
//
// @Success     201  {object}  handlers.CreateComplaintResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     500  {object}  handlers.ErrorResponse  "Storage failure"
// @Router      /complaints [post]
func (h *Handlers) CreateComplaint(c *gin.Context) {
	ctx := c.Request.Context()

	var req CreateComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if isTooLarge(err) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "request body exceeds the size limit")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey != "" {
		if rec := h.svc.Replay(ctx, services.ScopeSubmit, idemKey); rec != nil {
			if prev, err := h.svc.Get(ctx, rec.ResourceID); err == nil {
				setReplayed(c)
				ok(c, rec.Status, CreateComplaintResponse{
					Message:   "Complaint added successfully",
					ID:        prev.ID,
					Complaint: prev,
				})
				return
			}
		}
	}

	cmp, err := h.svc.Submit(ctx, services.SubmitInput(req))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	if idemKey != "" {
		if err := h.svc.Remember(ctx, services.ScopeSubmit, idemKey, cmp.ID, 1, http.StatusCreated); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record not stored")
		}
	}

	ok(c, http.StatusCreated, CreateComplaintResponse{
		Message:   "Complaint added successfully",
		ID:        cmp.ID,
		Complaint: cmp,
	})
}

// UploadComplaints godoc
// @ID          uploadComplaints
// @Summary     Bulk upload complaints
// @Description Imports every row of a CSV (.csv) or Excel (.xlsx, .xls) file. Columns are matched
// @Description by name, case-insensitively; missing columns default to empty and a missing date
// @Description to the import time. The upload is all-or-nothing unless IMPORT_ATOMIC=false.
// @Tags        Complaints
// @Accept      multipart/form-data
// @Produce     json
//
// @Param       Idempotency-Key  header    string  false "Idempotency key for safe retries"
// @Param       file             formData  file    true  "CSV or Excel file"
//
// @Success     200  {object}  handlers.UploadResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing file"
// @Failure     413  {object}  handlers.ErrorResponse  "Upload too large"
// @Failure     415  {object}  handlers.ErrorResponse  "Unsupported format"
// @Failure     422  {object}  handlers.ErrorResponse  "Unreadable file"
// @Failure     500  {object}  handlers.ErrorResponse  "Storage failure or partial import"
// @Router      /complaints/upload [post]
func (h *Handlers) UploadComplaints(c *gin.Context) {
	ctx := c.Request.Context()

	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey != "" {
		if rec := h.svc.Replay(ctx, services.ScopeUpload, idemKey); rec != nil {
			setReplayed(c)
			ok(c, rec.Status, uploadResponse(rec.Count))
			return
		}
	}

	name, data, good := readUpload(c)
	if !good {
		return
	}

	res, err := h.svc.Import(ctx, name, data)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	middleware.LoggerFrom(c).Info().
		Str("format", string(res.Format)).
		Int("rows", res.Count).
		Msg("complaints imported")

	if idemKey != "" {
		if err := h.svc.Remember(ctx, services.ScopeUpload, idemKey, 0, res.Count, http.StatusOK); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record not stored")
		}
	}

	ok(c, http.StatusOK, uploadResponse(res.Count))
}

func uploadResponse(n int) UploadResponse {
	return UploadResponse{Message: fmt.Sprintf("Successfully uploaded %d records", n), Count: n}
}

// PreviewUpload godoc
// @ID          previewUpload
// @Summary     Preview an upload
// @Description Parses and normalizes a file exactly like the upload endpoint but stores nothing.
// @Tags        Complaints
// @Accept      multipart/form-data
// @Produce     json
//
// @Param       file   formData  file  true  "CSV or Excel file"
// @Param       limit  query     int   false "Rows to return"  minimum(1) maximum(100) default(10)
//
// @Success     200  {object}  handlers.PreviewResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing file"
// @Failure     415  {object}  handlers.ErrorResponse  "Unsupported format"
// @Failure     422  {object}  handlers.ErrorResponse  "Unreadable file"
// @Router      /complaints/upload/preview [post]
func (h *Handlers) PreviewUpload(c *gin.Context) {
	name, data, good := readUpload(c)
	if !good {
		return
	}
	res, err := h.svc.Preview(c.Request.Context(), name, data, clampPreviewLimit(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, PreviewResponse{TotalRows: res.TotalRows, Complaints: res.Records})
}

// ListComplaints godoc
// @ID          listComplaints
// @Summary     List or search complaints
// @Description Returns complaints ordered by date (newest first). When q is non-empty only records
// @Description with a field containing q (case-insensitive) are returned. Supplying page enables
// @Description pagination. Responses carry a weak ETag that changes whenever the collection does.
// @Tags        Complaints
// @Produce     json
//
// @Param       q          query  string  false "Free-text search"
// @Param       page       query  int     false "Page number"     minimum(1)
// @Param       page_size  query  int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListComplaintsResponse
// @Success     304  "Not modified"
// @Failure     500  {object}  handlers.ErrorResponse  "Storage failure"
// @Router      /complaints [get]
func (h *Handlers) ListComplaints(c *gin.Context) {
	ctx := c.Request.Context()

	// ETag pre-check (best effort).
	if count, maxID, err := h.svc.Stats(ctx); err == nil {
		etag := fmt.Sprintf(`W/"complaints:%d:%d"`, count, maxID)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			notModified(c)
			return
		}
	}

	items, err := h.svc.List(ctx, c.Query("q"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	resp := ListComplaintsResponse{Complaints: items, Count: len(items)}
	if _, paged := c.GetQuery("page"); paged {
		page, pageSize := clampPagination(c)
		total := int64(len(items))
		lo, hi := utils.PageBounds(len(items), page, pageSize)
		totalPages := utils.TotalPages(total, pageSize)
		resp.Complaints = items[lo:hi]
		resp.Pagination = &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		}
	}
	ok(c, http.StatusOK, resp)
}

// ExportComplaints godoc
// @ID          exportComplaints
// @Summary     Export complaints
// @Description Downloads the complaints matching q (all when empty) as CSV or an Excel workbook.
// @Tags        Complaints
// @Produce     text/csv
// @Produce     application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
//
// @Param       format  query  string  false "csv or spreadsheet"  Enums(csv, spreadsheet) default(csv)
// @Param       q       query  string  false "Free-text search"
//
// @Success     200  {file}    file
// @Failure     400  {object}  handlers.ErrorResponse  "Unsupported format"
// @Failure     500  {object}  handlers.ErrorResponse  "Storage or render failure"
// @Router      /complaints/export [get]
func (h *Handlers) ExportComplaints(c *gin.Context) {
	format, err := export.ParseFormat(c.DefaultQuery("format", string(export.FormatCSV)))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeUnsupportedFormat, err.Error())
		return
	}

	f, err := h.svc.Export(c.Request.Context(), format, c.Query("q"))
	if err != nil {
		var se *domain.StorageError
		if errors.As(err, &se) {
			writeServiceError(c, err)
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeExportFailed, err.Error())
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, strings.ReplaceAll(f.Filename, `"`, "")))
	c.Data(http.StatusOK, f.ContentType, f.Data)
}
