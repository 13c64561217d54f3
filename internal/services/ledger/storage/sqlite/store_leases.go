package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/leaselog/internal/services/ledger/domain/event"
	"github.com/louisbranch/leaselog/internal/services/ledger/storage"
)

const leaseColumns = "lease_id, user_id, commencement_date, expiration_date, monthly_payment_amount, created_time"

// GetLease returns the immutable identity of a lease.
func (s *Store) GetLease(ctx context.Context, leaseID string) (storage.Lease, error) {
	if err := ctx.Err(); err != nil {
		return storage.Lease{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Lease{}, fmt.Errorf("storage is not configured")
	}
	leaseID = strings.TrimSpace(leaseID)
	if leaseID == "" {
		return storage.Lease{}, fmt.Errorf("lease id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+leaseColumns+`
FROM leases
WHERE lease_id = ?
`, leaseID)
	lease, err := scanLease(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Lease{}, storage.ErrNotFound
		}
		return storage.Lease{}, fmt.Errorf("get lease: %w", err)
	}
	return lease, nil
}

// ListLeasesPage returns a page of registered leases ordered by lease id.
func (s *Store) ListLeasesPage(ctx context.Context, req storage.ListLeasesPageRequest) (storage.ListLeasesPageResult, error) {
	if err := ctx.Err(); err != nil {
		return storage.ListLeasesPageResult{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ListLeasesPageResult{}, fmt.Errorf("storage is not configured")
	}
	if req.PageSize <= 0 {
		req.PageSize = 50
	}
	if req.PageSize > 200 {
		req.PageSize = 200
	}

	whereClause := "1 = 1"
	params := []any{}
	if req.CursorKey != "" {
		if req.CursorDir == "bwd" {
			whereClause += " AND lease_id < ?"
		} else {
			whereClause += " AND lease_id > ?"
		}
		params = append(params, req.CursorKey)
	}

	orderClause := "ORDER BY lease_id ASC"
	if req.CursorReverse {
		orderClause = "ORDER BY lease_id DESC"
	}

	query := fmt.Sprintf(
		"SELECT %s FROM leases WHERE %s %s LIMIT %d",
		leaseColumns,
		whereClause,
		orderClause,
		req.PageSize+1,
	)

	rows, err := s.sqlDB.QueryContext(ctx, query, params...)
	if err != nil {
		return storage.ListLeasesPageResult{}, fmt.Errorf("query leases: %w", err)
	}
	defer rows.Close()

	leases := make([]storage.Lease, 0, req.PageSize)
	for rows.Next() {
		lease, err := scanLease(rows.Scan)
		if err != nil {
			return storage.ListLeasesPageResult{}, fmt.Errorf("scan lease: %w", err)
		}
		leases = append(leases, lease)
	}
	if err := rows.Err(); err != nil {
		return storage.ListLeasesPageResult{}, fmt.Errorf("iterate leases: %w", err)
	}

	hasMore := len(leases) > req.PageSize
	if hasMore {
		leases = leases[:req.PageSize]
	}

	if req.CursorReverse {
		for i, j := 0, len(leases)-1; i < j; i, j = i+1, j-1 {
			leases[i], leases[j] = leases[j], leases[i]
		}
	}

	var totalCount int
	if err := s.sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM leases").Scan(&totalCount); err != nil {
		return storage.ListLeasesPageResult{}, fmt.Errorf("count leases: %w", err)
	}

	result := storage.ListLeasesPageResult{
		Leases:     leases,
		TotalCount: totalCount,
	}

	if req.CursorReverse {
		result.HasNextPage = true
		result.HasPrevPage = hasMore
	} else {
		result.HasNextPage = hasMore
		result.HasPrevPage = req.CursorKey != ""
	}

	return result, nil
}

func scanLease(scan func(dest ...any) error) (storage.Lease, error) {
	var (
		leaseID       string
		userID        string
		commencement  string
		expiration    string
		monthlyAmount float64
		createdTime   int64
	)
	if err := scan(
		&leaseID,
		&userID,
		&commencement,
		&expiration,
		&monthlyAmount,
		&createdTime,
	); err != nil {
		return storage.Lease{}, err
	}

	commencementDate, err := event.ParseDate(commencement)
	if err != nil {
		return storage.Lease{}, fmt.Errorf("parse commencement date: %w", err)
	}
	expirationDate, err := event.ParseDate(expiration)
	if err != nil {
		return storage.Lease{}, fmt.Errorf("parse expiration date: %w", err)
	}

	return storage.Lease{
		LeaseID:              leaseID,
		UserID:               userID,
		CommencementDate:     commencementDate,
		ExpirationDate:       expirationDate,
		MonthlyPaymentAmount: monthlyAmount,
		CreatedTime:          fromMillis(createdTime),
	}, nil
}
