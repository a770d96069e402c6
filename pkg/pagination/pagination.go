package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 25
	// MaxLimit caps how many rows any list query can request.
	MaxLimit = 100

	cursorPrefix = "offset:"
)

// Params holds pagination inputs from controllers or services.
type Params struct {
	Limit  int
	Cursor string
}

// Window is the resolved slice of rows a query should read.
type Window struct {
	Limit  int
	Offset int
}

// Page is one slice of a list plus the cursor for the next slice, if any.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer returns the normalization result plus one to detect the next page.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// Resolve validates params into a Window. Rows are read with LimitWithBuffer so
// BuildPage can tell whether another page exists.
func Resolve(params Params) (Window, error) {
	offset, err := ParseCursor(params.Cursor)
	if err != nil {
		return Window{}, err
	}
	return Window{Limit: NormalizeLimit(params.Limit), Offset: offset}, nil
}

// BuildPage trims the buffered row and computes the next cursor.
func BuildPage[T any](rows []T, window Window) Page[T] {
	page := Page[T]{Items: rows}
	if len(rows) > window.Limit {
		page.Items = rows[:window.Limit]
		page.NextCursor = EncodeCursor(window.Offset + window.Limit)
	}
	if page.Items == nil {
		page.Items = []T{}
	}
	return page
}

// EncodeCursor builds an opaque cursor pointing at offset.
func EncodeCursor(offset int) string {
	return base64.StdEncoding.EncodeToString([]byte(cursorPrefix + strconv.Itoa(offset)))
}

// ParseCursor decodes the cursor string back into an offset. Empty means zero.
func ParseCursor(value string) (int, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return 0, fmt.Errorf("decode cursor: %w", err)
	}
	raw, ok := strings.CutPrefix(string(decoded), cursorPrefix)
	if !ok {
		return 0, fmt.Errorf("invalid cursor format")
	}
	offset, err := strconv.Atoi(raw)
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("invalid cursor offset %q", raw)
	}
	return offset, nil
}
