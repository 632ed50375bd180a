package repository

import (
	"context"
	"database/sql"
	"errors"

	"ocppcs/internal/models"
)

// ChargeTagRepository reads charge tags maintained by the administrative side.
type ChargeTagRepository struct {
	db *sql.DB
}

// NewChargeTagRepository returns repository.
func NewChargeTagRepository(db *sql.DB) *ChargeTagRepository {
	return &ChargeTagRepository{db: db}
}

// Find returns a tag by its normalized id, or nil when unknown.
func (r *ChargeTagRepository) Find(ctx context.Context, tagID string) (*models.ChargeTag, error) {
	const query = `
		SELECT tag_id, COALESCE(parent_tag_id,''), COALESCE(tag_name,''),
		       expiry_date, COALESCE(blocked, FALSE), company_id, COALESCE(charging_time_mins, 0)
		FROM charge_tags
		WHERE tag_id = $1
	`
	row := r.db.QueryRowContext(ctx, query, tagID)

	var tag models.ChargeTag
	err := row.Scan(&tag.TagID, &tag.ParentTagID, &tag.TagName,
		&tag.ExpiryDate, &tag.Blocked, &tag.CompanyID, &tag.ChargingTimeMins)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &tag, nil
}
