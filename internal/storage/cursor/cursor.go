// Package cursor provides opaque pagination token encoding/decoding.
package cursor

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Direction indicates the pagination direction.
type Direction string

const (
	// DirectionForward paginates forward (position > cursor).
	DirectionForward Direction = "fwd"
	// DirectionBackward paginates backward (position < cursor).
	DirectionBackward Direction = "bwd"
)

// Cursor represents the internal state of a pagination cursor.
//
// Event pages position by Seq; lease pages position by Key. Exactly one of the
// two is meaningful for a given listing.
type Cursor struct {
	// Seq is the event sequence number to paginate from.
	Seq uint64 `json:"seq,omitempty"`
	// Key is the string sort key to paginate from (lease listings).
	Key string `json:"key,omitempty"`
	// Dir is the pagination direction.
	Dir Direction `json:"dir"`
	// Reverse indicates whether to temporarily reverse sort order.
	// This is needed when going to a "previous" page to fetch from the near edge.
	Reverse bool `json:"rev,omitempty"`
	// FilterHash ensures tokens are invalidated if the filter changes.
	FilterHash string `json:"filter_hash,omitempty"`
	// OrderHash ensures tokens are invalidated if the order_by changes.
	OrderHash string `json:"order_hash,omitempty"`
}

// Encode encodes a cursor to an opaque base64 string.
func Encode(c Cursor) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// Decode decodes an opaque base64 string to a cursor.
// Returns an error if the token is invalid or malformed.
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, fmt.Errorf("empty token")
	}

	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode base64: %w", err)
	}

	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, fmt.Errorf("unmarshal cursor: %w", err)
	}

	if c.Dir != DirectionForward && c.Dir != DirectionBackward {
		return Cursor{}, fmt.Errorf("invalid cursor direction: %q", c.Dir)
	}

	return c, nil
}

// HashFilter computes a short hash of the filter string for cursor validation.
// Returns empty string for empty filter.
func HashFilter(filter string) string {
	if filter == "" {
		return ""
	}
	h := sha256.Sum256([]byte(filter))
	return hex.EncodeToString(h[:8]) // 64-bit hash is sufficient for validation
}

// ValidateFilterHash checks if the cursor's filter hash matches the current filter.
// Returns an error if the filter has changed since the cursor was created.
func ValidateFilterHash(c Cursor, currentFilter string) error {
	if c.FilterHash != HashFilter(currentFilter) {
		return fmt.Errorf("filter changed since cursor was created")
	}
	return nil
}

// ValidateOrderHash checks if the cursor's order hash matches the current order_by.
// Returns an error if the order_by has changed since the cursor was created.
func ValidateOrderHash(c Cursor, currentOrderBy string) error {
	if c.OrderHash != HashFilter(currentOrderBy) {
		return fmt.Errorf("order_by changed since cursor was created")
	}
	return nil
}

// NewNextPageCursor creates a sequence cursor for the next page.
func NewNextPageCursor(lastSeq uint64, filter, orderBy string) Cursor {
	return Cursor{
		Seq:        lastSeq,
		Dir:        DirectionForward,
		FilterHash: HashFilter(filter),
		OrderHash:  HashFilter(orderBy),
	}
}

// NewPrevPageCursor creates a sequence cursor for the previous page.
// The reverse flag makes the store fetch from the near edge, then restore order.
func NewPrevPageCursor(firstSeq uint64, filter, orderBy string) Cursor {
	return Cursor{
		Seq:        firstSeq,
		Dir:        DirectionBackward,
		Reverse:    true,
		FilterHash: HashFilter(filter),
		OrderHash:  HashFilter(orderBy),
	}
}

// NewNextPageKeyCursor creates a string-key cursor for the next page.
func NewNextPageKeyCursor(lastKey, filter, orderBy string) Cursor {
	return Cursor{
		Key:        lastKey,
		Dir:        DirectionForward,
		FilterHash: HashFilter(filter),
		OrderHash:  HashFilter(orderBy),
	}
}

// NewPrevPageKeyCursor creates a string-key cursor for the previous page.
func NewPrevPageKeyCursor(firstKey, filter, orderBy string) Cursor {
	return Cursor{
		Key:        firstKey,
		Dir:        DirectionBackward,
		Reverse:    true,
		FilterHash: HashFilter(filter),
		OrderHash:  HashFilter(orderBy),
	}
}
