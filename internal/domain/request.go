package domain

import "time"

// RequestStatus represents the current lifecycle state of a downtime request.
type RequestStatus string

// Lifecycle states. A request with a responsible group travels
// pending_acceptance -> work_in_progress -> pending_initiator_closure;
// a request without one goes straight to waiting_for_closure.
const (
	StatusPendingAcceptance       RequestStatus = "pending_acceptance"
	StatusWorkInProgress          RequestStatus = "work_in_progress"
	StatusPendingInitiatorClosure RequestStatus = "pending_initiator_closure"
	StatusWaitingForClosure       RequestStatus = "waiting_for_closure"
)

// Closeable reports whether the initiator may close a request in this state.
func (s RequestStatus) Closeable() bool {
	return s == StatusPendingInitiatorClosure || s == StatusWaitingForClosure
}

// Actor identifies a participant and where replies to them are delivered.
type Actor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	ChatID      string `json:"chat_id"`
}

// Group is the optional responsible party expected to resolve a downtime.
type Group struct {
	Name   string `json:"name"`
	ChatID string `json:"chat_id"`
}

// MessageRef is a handle to a delivered notification, used to edit it in
// place as the request advances.
type MessageRef struct {
	ChatID    string `json:"chat_id"`
	MessageID int64  `json:"message_id"`
}

// IsZero reports whether the ref points at no message.
func (r MessageRef) IsZero() bool {
	return r.ChatID == "" && r.MessageID == 0
}

// DowntimeRequest is one reported line-blocking incident, tracked from
// creation to closure.
type DowntimeRequest struct {
	ID          string `json:"id"`
	Site        string `json:"site"`
	LineSection string `json:"line_section"`
	Reason      string `json:"reason"`
	Description string `json:"description"`
	MediaRef    string `json:"media_ref,omitempty"`

	Initiator        Actor  `json:"initiator"`
	ResponsibleGroup *Group `json:"responsible_group,omitempty"`

	Status    RequestStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`

	AcceptedBy       *Actor     `json:"accepted_by,omitempty"`
	AcceptedAt       *time.Time `json:"accepted_at,omitempty"`
	GroupCompletedBy *Actor     `json:"group_completed_by,omitempty"`
	GroupCompletedAt *time.Time `json:"group_completed_at,omitempty"`

	ClosingComment string `json:"closing_comment,omitempty"`

	// Each reminder flag flips false->true at most once for the whole
	// lifetime of the request.
	ReminderGroupSent     bool `json:"reminder_group_sent"`
	ReminderInitiatorSent bool `json:"reminder_initiator_sent"`

	NotificationRef MessageRef `json:"notification_ref,omitempty"`
}

// Clone returns a deep copy so callers can mutate a candidate without
// touching the stored entity until the transition commits.
func (r *DowntimeRequest) Clone() *DowntimeRequest {
	c := *r
	if r.ResponsibleGroup != nil {
		g := *r.ResponsibleGroup
		c.ResponsibleGroup = &g
	}
	if r.AcceptedBy != nil {
		a := *r.AcceptedBy
		c.AcceptedBy = &a
	}
	if r.AcceptedAt != nil {
		t := *r.AcceptedAt
		c.AcceptedAt = &t
	}
	if r.GroupCompletedBy != nil {
		a := *r.GroupCompletedBy
		c.GroupCompletedBy = &a
	}
	if r.GroupCompletedAt != nil {
		t := *r.GroupCompletedAt
		c.GroupCompletedAt = &t
	}
	return &c
}
