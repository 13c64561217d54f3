package api

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/louisbranch/leaselog/internal/errors"
	"github.com/louisbranch/leaselog/internal/services/ledger/core/filter"
	"github.com/louisbranch/leaselog/internal/services/ledger/domain/event"
	"github.com/louisbranch/leaselog/internal/services/ledger/domain/lease"
	"github.com/louisbranch/leaselog/internal/services/ledger/storage"
	"github.com/louisbranch/leaselog/internal/storage/cursor"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200

	eventsOrderBy = "event_id"
	leasesOrderBy = "lease_id"
)

// QueryService answers bi-temporal reads over the lease ledger.
type QueryService struct {
	stores Stores
	now    func() time.Time
}

// NewQueryService creates a QueryService with the provided stores.
func NewQueryService(stores Stores) *QueryService {
	return &QueryService{
		stores: stores,
		now:    time.Now,
	}
}

// GetLeaseRequest asks for one lease observation at a bi-temporal cutoff.
type GetLeaseRequest struct {
	LeaseID string
	// AsAt is the transaction-time cutoff, RFC 3339. Empty means now.
	AsAt string
	// AsOn is the business-date cutoff, YYYY-MM-DD. Empty means today.
	AsOn string
}

// GetLeaseResponse carries the derived observation.
type GetLeaseResponse struct {
	Lease Lease `json:"lease"`
}

// ListLeaseEventsRequest pages through one lease journal at a bi-temporal
// cutoff, optionally filtered with an AIP-160 expression.
type ListLeaseEventsRequest struct {
	LeaseID   string
	AsAt      string
	AsOn      string
	Filter    string
	PageSize  int
	PageToken string
}

// ListLeaseEventsResponse is one page of journal events.
type ListLeaseEventsResponse struct {
	Events        []Event `json:"events"`
	TotalCount    int     `json:"total_count"`
	NextPageToken string  `json:"next_page_token,omitempty"`
	PrevPageToken string  `json:"prev_page_token,omitempty"`
}

// ListLeasesRequest pages through the lease registry.
type ListLeasesRequest struct {
	PageSize  int
	PageToken string
}

// ListLeasesResponse is one page of registered leases.
type ListLeasesResponse struct {
	Leases        []LeaseIdentity `json:"leases"`
	TotalCount    int             `json:"total_count"`
	NextPageToken string          `json:"next_page_token,omitempty"`
	PrevPageToken string          `json:"prev_page_token,omitempty"`
}

// GetLease folds the journal visible at asAt into an observation as of asOn.
func (s *QueryService) GetLease(ctx context.Context, req GetLeaseRequest) (GetLeaseResponse, error) {
	leaseID := strings.TrimSpace(req.LeaseID)
	if leaseID == "" {
		return GetLeaseResponse{}, apperrors.HandleError(
			apperrors.New(apperrors.CodeLeaseIDEmpty, "lease id is required"))
	}

	asAt, asOn, err := s.parseCutoffs(req.AsAt, req.AsOn)
	if err != nil {
		return GetLeaseResponse{}, apperrors.HandleError(err)
	}

	events, err := s.stores.Event.ReadEvents(ctx, leaseID, asAt)
	if err != nil {
		return GetLeaseResponse{}, apperrors.HandleError(err)
	}

	obs := lease.Observe(events, asOn)
	if obs.LeaseID == "" {
		return GetLeaseResponse{}, apperrors.HandleError(
			apperrors.WithMetadata(apperrors.CodeNotFound, "lease not found at the requested cutoff", map[string]string{
				"lease_id": leaseID,
			}))
	}

	return GetLeaseResponse{Lease: observationToView(obs)}, nil
}

// ListLeaseEvents returns a paginated, filtered bi-temporal slice of one
// lease journal.
func (s *QueryService) ListLeaseEvents(ctx context.Context, req ListLeaseEventsRequest) (ListLeaseEventsResponse, error) {
	leaseID := strings.TrimSpace(req.LeaseID)
	if leaseID == "" {
		return ListLeaseEventsResponse{}, apperrors.HandleError(
			apperrors.New(apperrors.CodeLeaseIDEmpty, "lease id is required"))
	}

	asAt, asOn, err := s.parseCutoffs(req.AsAt, req.AsOn)
	if err != nil {
		return ListLeaseEventsResponse{}, apperrors.HandleError(err)
	}

	pageSize := clampPageSize(req.PageSize)

	filterStr := strings.TrimSpace(req.Filter)
	var filterClause string
	var filterParams []any
	if filterStr != "" {
		cond, err := filter.ParseEventFilter(filterStr)
		if err != nil {
			return ListLeaseEventsResponse{}, apperrors.HandleError(
				apperrors.Wrap(apperrors.CodeFilterInvalid, "invalid filter: "+err.Error(), err))
		}
		filterClause = cond.Clause
		filterParams = cond.Params
	}

	// Tokens are scoped to the filter and both temporal cutoffs so a page
	// token cannot silently continue a different listing.
	paginationScope := filterStr + "|as_at=" + strings.TrimSpace(req.AsAt) + "|as_on=" + strings.TrimSpace(req.AsOn)

	var cursorSeq uint64
	var cursorDir string
	var cursorReverse bool
	pageToken := strings.TrimSpace(req.PageToken)
	if pageToken != "" {
		c, err := cursor.Decode(pageToken)
		if err != nil {
			return ListLeaseEventsResponse{}, apperrors.HandleError(
				apperrors.Wrap(apperrors.CodePageTokenInvalid, "invalid page token", err))
		}
		if err := cursor.ValidateFilterHash(c, paginationScope); err != nil {
			return ListLeaseEventsResponse{}, apperrors.HandleError(
				apperrors.Wrap(apperrors.CodePageTokenInvalid, "page token does not match this listing", err))
		}
		if err := cursor.ValidateOrderHash(c, eventsOrderBy); err != nil {
			return ListLeaseEventsResponse{}, apperrors.HandleError(
				apperrors.Wrap(apperrors.CodePageTokenInvalid, "page token does not match this listing", err))
		}
		cursorSeq = c.Seq
		cursorDir = string(c.Dir)
		cursorReverse = c.Reverse
	}

	result, err := s.stores.Event.ReadEventsPage(ctx, storage.ReadEventsPageRequest{
		LeaseID:             leaseID,
		CreatedBefore:       asAt,
		EffectiveOnOrBefore: asOn,
		PageSize:            pageSize,
		CursorSeq:           cursorSeq,
		CursorDir:           cursorDir,
		CursorReverse:       cursorReverse,
		FilterClause:        filterClause,
		FilterParams:        filterParams,
	})
	if err != nil {
		return ListLeaseEventsResponse{}, apperrors.HandleError(err)
	}

	response := ListLeaseEventsResponse{
		Events:     make([]Event, 0, len(result.Events)),
		TotalCount: result.TotalCount,
	}
	for _, evt := range result.Events {
		response.Events = append(response.Events, eventToView(evt))
	}

	if len(result.Events) > 0 {
		if result.HasNextPage {
			lastSeq := result.Events[len(result.Events)-1].EventID
			if token, err := cursor.Encode(cursor.NewNextPageCursor(lastSeq, paginationScope, eventsOrderBy)); err == nil {
				response.NextPageToken = token
			}
		}
		if result.HasPrevPage {
			firstSeq := result.Events[0].EventID
			if token, err := cursor.Encode(cursor.NewPrevPageCursor(firstSeq, paginationScope, eventsOrderBy)); err == nil {
				response.PrevPageToken = token
			}
		}
	}

	return response, nil
}

// ListLeases pages through the lease registry ordered by lease id.
func (s *QueryService) ListLeases(ctx context.Context, req ListLeasesRequest) (ListLeasesResponse, error) {
	pageSize := clampPageSize(req.PageSize)

	var cursorKey string
	var cursorDir string
	var cursorReverse bool
	pageToken := strings.TrimSpace(req.PageToken)
	if pageToken != "" {
		c, err := cursor.Decode(pageToken)
		if err != nil {
			return ListLeasesResponse{}, apperrors.HandleError(
				apperrors.Wrap(apperrors.CodePageTokenInvalid, "invalid page token", err))
		}
		if err := cursor.ValidateOrderHash(c, leasesOrderBy); err != nil {
			return ListLeasesResponse{}, apperrors.HandleError(
				apperrors.Wrap(apperrors.CodePageTokenInvalid, "page token does not match this listing", err))
		}
		cursorKey = c.Key
		cursorDir = string(c.Dir)
		cursorReverse = c.Reverse
	}

	result, err := s.stores.Lease.ListLeasesPage(ctx, storage.ListLeasesPageRequest{
		PageSize:      pageSize,
		CursorKey:     cursorKey,
		CursorDir:     cursorDir,
		CursorReverse: cursorReverse,
	})
	if err != nil {
		return ListLeasesResponse{}, apperrors.HandleError(err)
	}

	response := ListLeasesResponse{
		Leases:     make([]LeaseIdentity, 0, len(result.Leases)),
		TotalCount: result.TotalCount,
	}
	for _, l := range result.Leases {
		response.Leases = append(response.Leases, leaseToIdentityView(l))
	}

	if len(result.Leases) > 0 {
		if result.HasNextPage {
			lastKey := result.Leases[len(result.Leases)-1].LeaseID
			if token, err := cursor.Encode(cursor.NewNextPageKeyCursor(lastKey, "", leasesOrderBy)); err == nil {
				response.NextPageToken = token
			}
		}
		if result.HasPrevPage {
			firstKey := result.Leases[0].LeaseID
			if token, err := cursor.Encode(cursor.NewPrevPageKeyCursor(firstKey, "", leasesOrderBy)); err == nil {
				response.PrevPageToken = token
			}
		}
	}

	return response, nil
}

// parseCutoffs resolves the asAt timestamp and asOn date, both defaulting to
// now.
func (s *QueryService) parseCutoffs(asAtRaw, asOnRaw string) (time.Time, time.Time, error) {
	now := s.now().UTC()

	asAt := now
	if value := strings.TrimSpace(asAtRaw); value != "" {
		parsed, err := time.Parse(time.RFC3339, value)
		if err != nil {
			parsed, err = time.Parse(time.RFC3339Nano, value)
			if err != nil {
				return time.Time{}, time.Time{}, apperrors.New(apperrors.CodeAsOfInvalid, "asAt must be an RFC 3339 timestamp")
			}
		}
		asAt = parsed.UTC()
	}

	asOn := event.TruncateToDay(now)
	if value := strings.TrimSpace(asOnRaw); value != "" {
		parsed, err := event.ParseDate(value)
		if err != nil {
			return time.Time{}, time.Time{}, apperrors.New(apperrors.CodeAsOfInvalid, "asOn must be a YYYY-MM-DD date")
		}
		asOn = parsed
	}

	return asAt, asOn, nil
}

func clampPageSize(size int) int {
	if size <= 0 {
		return defaultPageSize
	}
	if size > maxPageSize {
		return maxPageSize
	}
	return size
}
