package reminder

import (
	"fmt"

	"github.com/plantops/downtime-keeper/internal/domain"
)

func groupReminderText(req *domain.DowntimeRequest) string {
	return fmt.Sprintf(
		"Reminder: downtime on %s / %s (%s) is still waiting for someone to accept it.",
		req.Site, req.LineSection, req.Reason,
	)
}

func initiatorReminderText(req *domain.DowntimeRequest) string {
	return fmt.Sprintf(
		"Reminder: %s has finished work on %s / %s. Please confirm and close the downtime.",
		groupName(req), req.Site, req.LineSection,
	)
}

func groupName(req *domain.DowntimeRequest) string {
	if req.ResponsibleGroup != nil {
		return req.ResponsibleGroup.Name
	}
	return "the responsible group"
}
