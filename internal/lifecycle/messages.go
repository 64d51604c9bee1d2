package lifecycle

import (
	"fmt"
	"strings"

	"github.com/plantops/downtime-keeper/internal/domain"
)

// Notification texts delivered to the responsible group and the initiator.
// Plain text; rendering into transport-specific markup is the sender's
// concern.

func groupNotificationText(req *domain.DowntimeRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New downtime (%s)\n\n", req.ID)
	fmt.Fprintf(&b, "Site: %s\n", req.Site)
	fmt.Fprintf(&b, "Line/section: %s\n", req.LineSection)
	fmt.Fprintf(&b, "Reason: %s\n", req.Reason)
	if req.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", req.Description)
	}
	fmt.Fprintf(&b, "Started: %s\n", req.CreatedAt.Format(TimestampLayout))
	fmt.Fprintf(&b, "Reported by: %s", req.Initiator.DisplayName)
	return b.String()
}

func acceptedNotificationText(req *domain.DowntimeRequest) string {
	return groupNotificationText(req) +
		fmt.Sprintf("\n\nAccepted by: %s", req.AcceptedBy.DisplayName)
}

func completedNotificationText(req *domain.DowntimeRequest) string {
	return acceptedNotificationText(req) +
		fmt.Sprintf("\nWork completed by: %s", req.GroupCompletedBy.DisplayName)
}

func initiatorAcceptedText(req *domain.DowntimeRequest) string {
	return fmt.Sprintf("Your downtime report for %s/%s was accepted by %s (%s).",
		req.Site, req.LineSection, req.AcceptedBy.DisplayName, req.ResponsibleGroup.Name)
}

func initiatorCompletedText(req *domain.DowntimeRequest) string {
	return fmt.Sprintf("Group %s finished work on your downtime report for %s/%s. Please close the record.",
		req.ResponsibleGroup.Name, req.Site, req.LineSection)
}
