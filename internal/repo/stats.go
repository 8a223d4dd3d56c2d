// Package repo implements the data persistence layer for complaints, backed
// by GORM. This file provides small aggregate queries used for conditional
// responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/complaints-backend/internal/domain"
)

// ComplaintsStats returns the number of stored complaints and the largest
// id. Complaints are append-only, so the pair changes whenever the
// collection does. When the store is empty both values are 0.
func ComplaintsStats(ctx context.Context, db *gorm.DB) (count int64, maxID int64, err error) {
	if count, err = CountComplaints(ctx, db); err != nil {
		return 0, 0, err
	}
	if count == 0 {
		return 0, 0, nil
	}

	var row struct {
		ID int64
	}
	if err = db.WithContext(ctx).Model(&domain.Complaint{}).
		Select("id").Order("id DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, 0, err
	}
	return count, row.ID, nil
}
