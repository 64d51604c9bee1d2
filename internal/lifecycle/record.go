package lifecycle

import (
	"strconv"
	"time"

	"github.com/plantops/downtime-keeper/internal/domain"
	"github.com/plantops/downtime-keeper/internal/shift"
	"github.com/plantops/downtime-keeper/internal/store"
)

// TimestampLayout is how instants are written into the record table.
const TimestampLayout = "2006-01-02 15:04:05"

// buildRow assembles the persisted record for a closed request. Every
// column is filled, empty string for absent values, so alignment stays
// stable across rows.
func buildRow(req *domain.DowntimeRequest, seq int, recordedAt time.Time, durationMinutes int, window shift.Window, comment string) []string {
	row := make([]string, store.ColumnCount)

	row[store.ColSeqNumber] = strconv.Itoa(seq)
	row[store.ColRecordedAt] = recordedAt.Format(TimestampLayout)
	row[store.ColInitiatorID] = req.Initiator.ID
	row[store.ColInitiatorName] = req.Initiator.DisplayName
	row[store.ColSite] = req.Site
	row[store.ColLineSection] = req.LineSection
	row[store.ColReason] = req.Reason
	row[store.ColDescription] = req.Description
	row[store.ColDurationMinutes] = strconv.Itoa(durationMinutes)
	row[store.ColShiftStart] = window.Start.Format(TimestampLayout)
	row[store.ColShiftEnd] = window.End.Format(TimestampLayout)
	if req.ResponsibleGroup != nil {
		row[store.ColResponsibleGroup] = req.ResponsibleGroup.Name
	}
	if req.AcceptedBy != nil {
		row[store.ColAcceptedByID] = req.AcceptedBy.ID
		row[store.ColAcceptedByName] = req.AcceptedBy.DisplayName
	}
	if req.AcceptedAt != nil {
		row[store.ColAcceptedAt] = req.AcceptedAt.Format(TimestampLayout)
	}
	if req.GroupCompletedBy != nil {
		row[store.ColGroupCompletedByID] = req.GroupCompletedBy.ID
		row[store.ColGroupCompletedByName] = req.GroupCompletedBy.DisplayName
	}
	if req.GroupCompletedAt != nil {
		row[store.ColGroupCompletedAt] = req.GroupCompletedAt.Format(TimestampLayout)
	}
	row[store.ColClosingComment] = comment
	row[store.ColMediaRef] = req.MediaRef

	return row
}

// durationMinutes floors the interval to whole minutes, clamped to a
// minimum of 1 so even sub-minute stops register.
func durationMinutes(start, end time.Time) int {
	minutes := int(end.Sub(start) / time.Minute)
	if minutes < 1 {
		return 1
	}
	return minutes
}
