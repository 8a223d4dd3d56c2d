// Package repo implements the data persistence layer for complaints, backed
// by GORM. This file provides repository functions for the Complaint model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no validation or normalisation, only
// persistence and query composition.
//
// Error semantics:
//   - When a complaint is not found, GetComplaint returns ErrNotFound.
//   - On DB errors (missing table, connectivity, constraint violations) the
//     raw gorm error is propagated; the service layer wraps it.
//
// Ordering: every list is newest date first, ties broken by ascending id so
// the order is stable across calls.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/complaints-backend/internal/domain"
)

// DefaultBatchSize is the number of rows per INSERT when the caller passes 0.
const DefaultBatchSize = 500

const listOrder = "date desc, id asc"

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateComplaint inserts c and sets c.ID to the store-assigned id.
func CreateComplaint(ctx context.Context, db *gorm.DB, c *domain.Complaint) error {
	c.ID = 0
	return db.WithContext(ctx).Create(c).Error
}

// BulkCreateComplaints inserts recs inside one transaction: either every row
// is committed or none is. IDs are assigned in slice order.
func BulkCreateComplaints(ctx context.Context, db *gorm.DB, recs []domain.Complaint, batchSize int) error {
	if len(recs) == 0 {
		return nil
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(resetIDs(recs), batchSizeOr(batchSize)).Error
	})
}

// AppendComplaints inserts recs batch by batch, committing each batch on its
// own. It returns how many rows were committed before the first failure, so
// on error recs[:written] are durable and the rest are not.
func AppendComplaints(ctx context.Context, db *gorm.DB, recs []domain.Complaint, batchSize int) (written int, err error) {
	size := batchSizeOr(batchSize)
	recs = resetIDs(recs)
	for start := 0; start < len(recs); start += size {
		end := min(start+size, len(recs))
		batch := recs[start:end]
		if err := db.WithContext(ctx).Create(&batch).Error; err != nil {
			return written, err
		}
		written = end
	}
	return written, nil
}

// ListComplaints returns every complaint, newest date first.
func ListComplaints(ctx context.Context, db *gorm.DB) ([]domain.Complaint, error) {
	out := []domain.Complaint{}
	err := db.WithContext(ctx).
		Order(listOrder).
		Find(&out).Error
	return out, err
}

// CountComplaints returns the number of stored complaints.
func CountComplaints(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Complaint{}).
		Count(&total).Error
	return total, err
}

// GetComplaint fetches a single complaint by id, or ErrNotFound.
func GetComplaint(ctx context.Context, db *gorm.DB, id int64) (*domain.Complaint, error) {
	var c domain.Complaint
	if err := db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// resetIDs returns a copy of recs with ids cleared so the store assigns them.
func resetIDs(recs []domain.Complaint) []domain.Complaint {
	out := make([]domain.Complaint, len(recs))
	copy(out, recs)
	for i := range out {
		out[i].ID = 0
	}
	return out
}

func batchSizeOr(n int) int {
	if n > 0 {
		return n
	}
	return DefaultBatchSize
}
