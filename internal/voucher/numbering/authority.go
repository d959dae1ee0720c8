// Package numbering assigns gap-free voucher numbers per tenant and
// document class.
package numbering

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/bookkeeping/internal/clock"
	"github.com/smallbiznis/bookkeeping/internal/voucher/domain"
)

type Authority struct {
	log   *zap.Logger
	clock clock.Clock
}

func NewAuthority(log *zap.Logger, clk clock.Clock) domain.Numbering {
	return &Authority{log: log.Named("voucher.numbering"), clock: clk}
}

// NextNumber increments the tenant's counter row inside tx and returns the
// new value. The increment takes the row's write lock, so a concurrent
// caller blocks until tx ends and then sees the committed value. A unique
// violation on first insert or on the voucher number index means another
// writer won the race; the caller retries the whole transaction.
func (a *Authority) NextNumber(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, class domain.DocumentClass) (int64, error) {
	if orgID == 0 {
		return 0, domain.ErrInvalidOrganization
	}
	now := a.clock.Now().UTC()

	result := tx.WithContext(ctx).Exec(
		`UPDATE voucher_sequences
		SET last_number = last_number + 1, updated_at = ?
		WHERE org_id = ? AND document_class = ?`,
		now, orgID, string(class),
	)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO voucher_sequences (org_id, document_class, last_number, updated_at)
			VALUES (?, ?, 1, ?)`,
			orgID, string(class), now,
		).Error; err != nil {
			return 0, err
		}
	}

	var last int64
	if err := tx.WithContext(ctx).Raw(
		`SELECT last_number FROM voucher_sequences WHERE org_id = ? AND document_class = ?`,
		orgID, string(class),
	).Scan(&last).Error; err != nil {
		return 0, err
	}

	var maxBooked sql.NullInt64
	if err := tx.WithContext(ctx).Raw(
		`SELECT MAX(number) FROM vouchers WHERE org_id = ? AND document_class = ?`,
		orgID, string(class),
	).Scan(&maxBooked).Error; err != nil {
		return 0, err
	}

	if maxBooked.Valid && last <= maxBooked.Int64 {
		healed := maxBooked.Int64 + 1
		if err := tx.WithContext(ctx).Exec(
			`UPDATE voucher_sequences SET last_number = ?, updated_at = ?
			WHERE org_id = ? AND document_class = ?`,
			healed, now, orgID, string(class),
		).Error; err != nil {
			return 0, err
		}
		a.log.Warn("voucher sequence behind booked numbers, advanced",
			zap.String("org_id", orgID.String()),
			zap.String("document_class", string(class)),
			zap.Int64("counter", last),
			zap.Int64("max_booked", maxBooked.Int64),
		)
		last = healed
	}

	if last <= 0 {
		return 0, fmt.Errorf("voucher sequence for %s returned %d", class, last)
	}
	return last, nil
}

// Ensure creates a zeroed counter row when none exists.
func (a *Authority) Ensure(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, class domain.DocumentClass) error {
	if orgID == 0 {
		return domain.ErrInvalidOrganization
	}
	var count int64
	if err := tx.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM voucher_sequences WHERE org_id = ? AND document_class = ?`,
		orgID, string(class),
	).Scan(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return tx.WithContext(ctx).Exec(
		`INSERT INTO voucher_sequences (org_id, document_class, last_number, updated_at)
		VALUES (?, ?, 0, ?)`,
		orgID, string(class), a.clock.Now().UTC(),
	).Error
}
