package sqlite

import (
	"fmt"

	"github.com/louisbranch/leaselog/internal/services/ledger/domain/event"
	"github.com/louisbranch/leaselog/internal/services/ledger/storage"
)

type readEventsPageSQLPlan struct {
	whereClause      string
	params           []any
	orderClause      string
	limitClause      string
	countWhereClause string
	countParams      []any
}

func buildReadEventsPageSQLPlan(req storage.ReadEventsPageRequest) readEventsPageSQLPlan {
	whereClause := "lease_id = ?"
	params := []any{req.LeaseID}
	if !req.CreatedBefore.IsZero() {
		whereClause += " AND created_time <= ?"
		params = append(params, toMillis(req.CreatedBefore))
	}
	if !req.EffectiveOnOrBefore.IsZero() {
		whereClause += " AND effective_date <= ?"
		params = append(params, event.FormatDate(req.EffectiveOnOrBefore))
	}
	if req.FilterClause != "" {
		whereClause += " AND " + req.FilterClause
		params = append(params, req.FilterParams...)
	}

	// The page total reflects the full temporal window, not the cursor slice.
	countWhereClause := whereClause
	countParams := append([]any(nil), params...)

	// The cursor direction determines comparison operators; sort order is
	// applied separately.
	if req.CursorSeq > 0 {
		if req.CursorDir == "bwd" {
			whereClause += " AND event_id < ?"
		} else {
			whereClause += " AND event_id > ?"
		}
		params = append(params, req.CursorSeq)
	}

	orderClause := "ORDER BY event_id ASC"
	// Reverse sort temporarily for previous-page queries so near-edge rows are
	// fetched first.
	if req.CursorReverse {
		orderClause = "ORDER BY event_id DESC"
	}

	return readEventsPageSQLPlan{
		whereClause:      whereClause,
		params:           params,
		orderClause:      orderClause,
		limitClause:      fmt.Sprintf("LIMIT %d", req.PageSize+1),
		countWhereClause: countWhereClause,
		countParams:      countParams,
	}
}
