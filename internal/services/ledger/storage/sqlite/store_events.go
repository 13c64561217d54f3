package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/leaselog/internal/services/ledger/domain/event"
	"github.com/louisbranch/leaselog/internal/services/ledger/storage"
	"github.com/louisbranch/leaselog/internal/services/ledger/storage/integrity"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const eventColumns = "lease_id, event_id, created_time, effective_date, event_type, request_id, event_hash, signature_key_id, event_signature, payload_json"

// AppendEvent atomically appends an event and returns it with its sequence,
// creation time, and integrity fields set.
func (s *Store) AppendEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if s == nil || s.sqlDB == nil {
		return event.Event{}, fmt.Errorf("storage is not configured")
	}
	if s.keyring == nil {
		return event.Event{}, fmt.Errorf("event integrity keyring is required")
	}

	validated, err := event.ValidateForAppend(evt)
	if err != nil {
		return event.Event{}, err
	}
	evt = validated

	if evt.CreatedTime.IsZero() {
		evt.CreatedTime = time.Now().UTC()
	}
	evt.CreatedTime = evt.CreatedTime.UTC().Truncate(time.Millisecond)

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return event.Event{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Transaction time never moves backwards within a lease journal, even if
	// the wall clock does.
	var lastCreated sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		"SELECT MAX(created_time) FROM events WHERE lease_id = ?",
		evt.LeaseID,
	).Scan(&lastCreated); err != nil {
		return event.Event{}, fmt.Errorf("read last created time: %w", err)
	}
	if lastCreated.Valid && toMillis(evt.CreatedTime) < lastCreated.Int64 {
		evt.CreatedTime = fromMillis(lastCreated.Int64)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO lease_seq (lease_id, next_seq) VALUES (?, 1) ON CONFLICT (lease_id) DO NOTHING",
		evt.LeaseID,
	); err != nil {
		return event.Event{}, fmt.Errorf("init lease seq: %w", err)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx,
		"SELECT next_seq FROM lease_seq WHERE lease_id = ?",
		evt.LeaseID,
	).Scan(&seq); err != nil {
		return event.Event{}, fmt.Errorf("get lease seq: %w", err)
	}
	evt.EventID = uint64(seq)

	if _, err := tx.ExecContext(ctx,
		"UPDATE lease_seq SET next_seq = next_seq + 1 WHERE lease_id = ?",
		evt.LeaseID,
	); err != nil {
		return event.Event{}, fmt.Errorf("increment lease seq: %w", err)
	}

	if evt.Type == event.TypeLeaseCreated {
		if err := s.registerLease(ctx, tx, evt); err != nil {
			return event.Event{}, err
		}
	}

	sealed, err := integrity.SealEvent(s.keyring, evt)
	if err != nil {
		return event.Event{}, err
	}
	evt = sealed

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO events ("+eventColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		evt.LeaseID,
		int64(evt.EventID),
		toMillis(evt.CreatedTime),
		event.FormatDate(evt.EffectiveDate),
		string(evt.Type),
		evt.RequestID,
		evt.Hash,
		evt.SignatureKeyID,
		evt.Signature,
		string(evt.PayloadJSON),
	); err != nil {
		if isPaymentConflict(err) {
			return event.Event{}, storage.ErrDuplicatePayment
		}
		if isConstraintError(err) {
			return event.Event{}, storage.ErrAppendConflict
		}
		return event.Event{}, fmt.Errorf("append event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return event.Event{}, fmt.Errorf("commit: %w", err)
	}

	return evt, nil
}

// registerLease inserts the lease identity row alongside its LeaseCreated
// event so both commit or neither does.
func (s *Store) registerLease(ctx context.Context, tx *sql.Tx, evt event.Event) error {
	var payload event.LeaseCreatedPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("decode lease created payload: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO leases (lease_id, user_id, commencement_date, expiration_date, monthly_payment_amount, created_time)
VALUES (?, ?, ?, ?, ?, ?)
`,
		evt.LeaseID,
		payload.UserID,
		payload.CommencementDate,
		payload.ExpirationDate,
		payload.MonthlyPaymentAmount,
		toMillis(evt.CreatedTime),
	); err != nil {
		if isConstraintError(err) {
			return storage.ErrDuplicateLease
		}
		return fmt.Errorf("register lease: %w", err)
	}
	return nil
}

// ReadEvents returns all events for a lease created at or before
// createdBefore, ordered by event id ascending. A zero createdBefore means
// now.
func (s *Store) ReadEvents(ctx context.Context, leaseID string, createdBefore time.Time) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	leaseID = strings.TrimSpace(leaseID)
	if leaseID == "" {
		return nil, fmt.Errorf("lease id is required")
	}
	if createdBefore.IsZero() {
		createdBefore = time.Now().UTC()
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+eventColumns+`
FROM events
WHERE lease_id = ? AND created_time <= ?
ORDER BY event_id ASC
`, leaseID, toMillis(createdBefore))
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		evt, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ReadEventsPage returns a paginated, filtered, bi-temporal slice of a lease
// journal.
func (s *Store) ReadEventsPage(ctx context.Context, req storage.ReadEventsPageRequest) (storage.ReadEventsPageResult, error) {
	if err := ctx.Err(); err != nil {
		return storage.ReadEventsPageResult{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ReadEventsPageResult{}, fmt.Errorf("storage is not configured")
	}
	req.LeaseID = strings.TrimSpace(req.LeaseID)
	if req.LeaseID == "" {
		return storage.ReadEventsPageResult{}, fmt.Errorf("lease id is required")
	}
	if req.PageSize <= 0 {
		req.PageSize = 50
	}
	if req.PageSize > 200 {
		req.PageSize = 200
	}

	plan := buildReadEventsPageSQLPlan(req)

	query := fmt.Sprintf(
		"SELECT %s FROM events WHERE %s %s %s",
		eventColumns,
		plan.whereClause,
		plan.orderClause,
		plan.limitClause,
	)

	rows, err := s.sqlDB.QueryContext(ctx, query, plan.params...)
	if err != nil {
		return storage.ReadEventsPageResult{}, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := make([]event.Event, 0, req.PageSize)
	for rows.Next() {
		evt, err := scanEvent(rows.Scan)
		if err != nil {
			return storage.ReadEventsPageResult{}, err
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return storage.ReadEventsPageResult{}, fmt.Errorf("iterate events: %w", err)
	}

	hasMore := len(events) > req.PageSize
	if hasMore {
		events = events[:req.PageSize]
	}

	// Previous-page queries fetch in reverse; restore ascending order.
	if req.CursorReverse {
		for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
			events[i], events[j] = events[j], events[i]
		}
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM events WHERE %s", plan.countWhereClause)
	var totalCount int
	if err := s.sqlDB.QueryRowContext(ctx, countQuery, plan.countParams...).Scan(&totalCount); err != nil {
		return storage.ReadEventsPageResult{}, fmt.Errorf("count events: %w", err)
	}

	result := storage.ReadEventsPageResult{
		Events:     events,
		TotalCount: totalCount,
	}

	if req.CursorReverse {
		result.HasNextPage = true // We came from a next page, so one exists.
		result.HasPrevPage = hasMore
	} else {
		result.HasNextPage = hasMore
		result.HasPrevPage = req.CursorSeq > 0
	}

	return result, nil
}

// GetEventByID retrieves a single event from a lease journal.
func (s *Store) GetEventByID(ctx context.Context, leaseID string, eventID uint64) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if s == nil || s.sqlDB == nil {
		return event.Event{}, fmt.Errorf("storage is not configured")
	}
	leaseID = strings.TrimSpace(leaseID)
	if leaseID == "" {
		return event.Event{}, fmt.Errorf("lease id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+eventColumns+`
FROM events
WHERE lease_id = ? AND event_id = ?
`, leaseID, int64(eventID))
	evt, err := scanEvent(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return event.Event{}, storage.ErrNotFound
		}
		return event.Event{}, fmt.Errorf("get event by id: %w", err)
	}
	return evt, nil
}

// DeleteEvent physically removes one event from a lease journal. Deleting a
// LeaseCreated event also removes the lease identity row so the registry
// mirrors the journal.
func (s *Store) DeleteEvent(ctx context.Context, leaseID string, eventID uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	leaseID = strings.TrimSpace(leaseID)
	if leaseID == "" {
		return fmt.Errorf("lease id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var eventType string
	if err := tx.QueryRowContext(ctx,
		"SELECT event_type FROM events WHERE lease_id = ? AND event_id = ?",
		leaseID, int64(eventID),
	).Scan(&eventType); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("load event: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM events WHERE lease_id = ? AND event_id = ?",
		leaseID, int64(eventID),
	); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}

	if eventType == string(event.TypeLeaseCreated) {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM leases WHERE lease_id = ?",
			leaseID,
		); err != nil {
			return fmt.Errorf("delete lease registration: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// VerifyLedgerIntegrity recomputes hashes and checks signatures for every
// stored event. It reports the first mismatch found.
func (s *Store) VerifyLedgerIntegrity(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if s.keyring == nil {
		return fmt.Errorf("event integrity keyring is required")
	}

	leaseIDs, err := s.listEventLeaseIDs(ctx)
	if err != nil {
		return err
	}

	for _, leaseID := range leaseIDs {
		events, err := s.ReadEvents(ctx, leaseID, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("read events lease_id=%s: %w", leaseID, err)
		}
		for _, evt := range events {
			if err := integrity.VerifyEvent(s.keyring, evt); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) listEventLeaseIDs(ctx context.Context) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, "SELECT DISTINCT lease_id FROM events ORDER BY lease_id")
	if err != nil {
		return nil, fmt.Errorf("list event lease ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan lease id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lease ids: %w", err)
	}
	return ids, nil
}

func scanEvent(scan func(dest ...any) error) (event.Event, error) {
	var (
		leaseID       string
		eventID       int64
		createdTime   int64
		effectiveDate string
		eventType     string
		requestID     string
		hash          string
		keyID         string
		signature     string
		payloadJSON   string
	)
	if err := scan(
		&leaseID,
		&eventID,
		&createdTime,
		&effectiveDate,
		&eventType,
		&requestID,
		&hash,
		&keyID,
		&signature,
		&payloadJSON,
	); err != nil {
		return event.Event{}, err
	}

	effective, err := event.ParseDate(effectiveDate)
	if err != nil {
		return event.Event{}, fmt.Errorf("parse effective date: %w", err)
	}

	return event.Event{
		LeaseID:        leaseID,
		EventID:        uint64(eventID),
		CreatedTime:    fromMillis(createdTime),
		EffectiveDate:  effective,
		Type:           event.Type(eventType),
		RequestID:      requestID,
		Hash:           hash,
		SignatureKeyID: keyID,
		Signature:      signature,
		PayloadJSON:    []byte(payloadJSON),
	}, nil
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func isPaymentConflict(err error) bool {
	if !isConstraintError(err) {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "idx_events_payment")
}
