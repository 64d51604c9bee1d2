// Package store defines the contract with the spreadsheet-backed record
// store that closed downtime requests are appended to.
package store

import (
	"context"
	"errors"
	"strconv"
)

// Store errors. ErrRateLimited marks a transient quota rejection so callers
// can distinguish it from other failures.
var (
	ErrRateLimited = errors.New("store: rate limited")
	ErrUnavailable = errors.New("store: unavailable")
)

// Column indexes of the persisted record layout. One row per closed
// request; every column is present even when empty so alignment stays
// stable across rows.
const (
	ColSeqNumber = iota
	ColRecordedAt
	ColInitiatorID
	ColInitiatorName
	ColSite
	ColLineSection
	ColReason
	ColDescription
	ColDurationMinutes
	ColShiftStart
	ColShiftEnd
	ColResponsibleGroup
	ColAcceptedByID
	ColAcceptedByName
	ColAcceptedAt
	ColGroupCompletedByID
	ColGroupCompletedByName
	ColGroupCompletedAt
	ColClosingComment
	ColMediaRef

	ColumnCount
)

// Headers are the column names of the record table, in column order.
var Headers = []string{
	"seq_number",
	"recorded_at",
	"initiator_id",
	"initiator_name",
	"site",
	"line_section",
	"reason",
	"description",
	"duration_minutes",
	"shift_start",
	"shift_end",
	"responsible_group",
	"accepted_by_id",
	"accepted_by_name",
	"accepted_at",
	"group_completed_by_id",
	"group_completed_by_name",
	"group_completed_at",
	"closing_comment",
	"media_ref",
}

// Store is the persistence collaborator the core depends on. Retry and
// backoff live behind this interface; the core only reacts to terminal
// failures.
type Store interface {
	// AppendRecord appends one row of ordered field values.
	AppendRecord(ctx context.Context, row []string) error

	// FetchAllRows returns the header row and all data rows.
	FetchAllRows(ctx context.Context) (headers []string, rows [][]string, err error)

	// NextSequenceNumber returns max(numeric first-column values)+1, or 1
	// if none exist. Sequence numbers are advisory; implementations must
	// never fail the caller and return 1 on any internal error.
	NextSequenceNumber(ctx context.Context) int
}

// Fetcher is the read-only subset of Store the cache depends on.
type Fetcher interface {
	FetchAllRows(ctx context.Context) (headers []string, rows [][]string, err error)
}

// NextSequenceFromColumn computes the next advisory sequence number from
// the raw values of the first column, header included.
func NextSequenceFromColumn(values []string) int {
	next := 1
	for i, v := range values {
		if i == 0 {
			continue // header row
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			continue
		}
		if n+1 > next {
			next = n + 1
		}
	}
	return next
}
