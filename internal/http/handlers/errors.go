// Machine-readable error codes carried in ErrorResponse.Code. The domain
// codes map one to one onto the typed errors in package domain; see
// writeServiceError.

package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodePayloadTooLarge  = "payload_too_large"

	ErrCodeValidationFailed  = "validation_failed"
	ErrCodeUnsupportedFormat = "unsupported_format"
	ErrCodeParseFailed       = "parse_failed"
	ErrCodeStorageFailed     = "storage_failed"
	ErrCodePartialImport     = "partial_import"
	ErrCodeExportFailed      = "export_failed"
)
