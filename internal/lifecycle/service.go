// Package lifecycle owns the set of in-flight downtime requests and the
// transition rules between their states. State here is the source of
// truth; notifications are fire-and-log side effects with no transactional
// coupling to the transitions they accompany.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plantops/downtime-keeper/internal/domain"
	"github.com/plantops/downtime-keeper/internal/notify"
	"github.com/plantops/downtime-keeper/internal/shift"
	"github.com/plantops/downtime-keeper/internal/store"
)

// Refresher triggers a cache refresh after a record is persisted.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Service is the request lifecycle state machine.
type Service struct {
	store     store.Store
	notifier  notify.Notifier
	shifts    *shift.Calculator
	refresher Refresher
	now       func() time.Time

	mu       sync.Mutex
	inflight map[string]*domain.DowntimeRequest
	closing  map[string]bool

	index *ActiveIndex
}

// NewService creates the lifecycle service.
func NewService(st store.Store, notifier notify.Notifier, shifts *shift.Calculator, refresher Refresher, index *ActiveIndex) *Service {
	return &Service{
		store:     st,
		notifier:  notifier,
		shifts:    shifts,
		refresher: refresher,
		now:       time.Now,
		inflight:  make(map[string]*domain.DowntimeRequest),
		closing:   make(map[string]bool),
		index:     index,
	}
}

// Index returns the active downtime index the service maintains.
func (s *Service) Index() *ActiveIndex {
	return s.index
}

// CreateInput holds the already-validated facts of a new incident.
type CreateInput struct {
	Site        string
	LineSection string
	Reason      string
	Description string
	MediaRef    string
	Initiator   domain.Actor
	Group       *domain.Group
}

// Create opens a new downtime request. With a responsible group the
// request waits for acceptance; without one it goes straight to
// waiting_for_closure. The line is marked blocked either way. If the
// group notification cannot be delivered the request still opens on the
// no-group path rather than being lost.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.DowntimeRequest, error) {
	req := &domain.DowntimeRequest{
		ID:          "dt-" + uuid.NewString(),
		Site:        input.Site,
		LineSection: input.LineSection,
		Reason:      input.Reason,
		Description: input.Description,
		MediaRef:    input.MediaRef,
		Initiator:   input.Initiator,
		CreatedAt:   s.now(),
		Status:      domain.StatusWaitingForClosure,
	}

	if input.Group != nil {
		group := *input.Group
		req.ResponsibleGroup = &group

		ref, err := s.notifier.Notify(ctx, group.ChatID, notify.Message{
			Text:     groupNotificationText(req),
			MediaRef: req.MediaRef,
			Actions:  []notify.Action{{Label: "Accept", Data: "accept:" + req.ID}},
		})
		if err != nil {
			slog.Error("group notification failed, falling back to no-group path",
				"request_id", req.ID,
				"group", group.Name,
				"error", err,
			)
		} else {
			req.Status = domain.StatusPendingAcceptance
			req.NotificationRef = ref
		}
	}

	s.mu.Lock()
	s.inflight[req.ID] = req
	recordInflight(len(s.inflight))
	s.mu.Unlock()

	s.index.Set(LineKey{Site: req.Site, LineSection: req.LineSection}, req.Reason)
	recordTransition("create", "ok")

	slog.Info("downtime request created",
		"request_id", req.ID,
		"site", req.Site,
		"line", req.LineSection,
		"status", req.Status,
	)

	return req.Clone(), nil
}

// Accept records a group member taking the request into work. Legal only
// from pending_acceptance.
func (s *Service) Accept(ctx context.Context, id string, actor domain.Actor) (*domain.DowntimeRequest, error) {
	s.mu.Lock()
	req, ok := s.inflight[id]
	if !ok {
		s.mu.Unlock()
		recordTransition("accept", "not_found")
		return nil, ErrNotFound
	}
	if req.Status != domain.StatusPendingAcceptance {
		s.mu.Unlock()
		recordTransition("accept", "invalid")
		return nil, fmt.Errorf("%w: accept from %s", ErrInvalidTransition, req.Status)
	}

	now := s.now()
	next := req.Clone()
	next.Status = domain.StatusWorkInProgress
	next.AcceptedBy = &actor
	next.AcceptedAt = &now
	s.inflight[id] = next
	result := next.Clone()
	s.mu.Unlock()

	recordTransition("accept", "ok")

	// Best-effort: reflect acceptance on the outstanding group message and
	// tell the initiator. Failures never roll the transition back.
	if !result.NotificationRef.IsZero() {
		if err := s.notifier.Edit(ctx, result.NotificationRef, notify.Message{
			Text:     acceptedNotificationText(result),
			MediaRef: result.MediaRef,
			Actions:  []notify.Action{{Label: "Work done", Data: "complete:" + result.ID}},
		}); err != nil {
			slog.Error("failed to edit group notification", "request_id", id, "error", err)
		}
	}
	if _, err := s.notifier.Notify(ctx, result.Initiator.ChatID, notify.Message{
		Text: initiatorAcceptedText(result),
	}); err != nil {
		slog.Error("failed to notify initiator about acceptance", "request_id", id, "error", err)
	}

	return result, nil
}

// MarkGroupComplete records the group finishing its portion of work. Legal
// only from work_in_progress.
func (s *Service) MarkGroupComplete(ctx context.Context, id string, actor domain.Actor) (*domain.DowntimeRequest, error) {
	s.mu.Lock()
	req, ok := s.inflight[id]
	if !ok {
		s.mu.Unlock()
		recordTransition("complete", "not_found")
		return nil, ErrNotFound
	}
	if req.Status != domain.StatusWorkInProgress {
		s.mu.Unlock()
		recordTransition("complete", "invalid")
		return nil, fmt.Errorf("%w: complete from %s", ErrInvalidTransition, req.Status)
	}

	now := s.now()
	next := req.Clone()
	next.Status = domain.StatusPendingInitiatorClosure
	next.GroupCompletedBy = &actor
	next.GroupCompletedAt = &now
	s.inflight[id] = next
	result := next.Clone()
	s.mu.Unlock()

	recordTransition("complete", "ok")

	if !result.NotificationRef.IsZero() {
		if err := s.notifier.Edit(ctx, result.NotificationRef, notify.Message{
			Text:     completedNotificationText(result),
			MediaRef: result.MediaRef,
		}); err != nil {
			slog.Error("failed to edit group notification", "request_id", id, "error", err)
		}
	}
	if _, err := s.notifier.Notify(ctx, result.Initiator.ChatID, notify.Message{
		Text:    initiatorCompletedText(result),
		Actions: []notify.Action{{Label: "Close downtime", Data: "close:" + result.ID}},
	}); err != nil {
		slog.Error("failed to notify initiator about completion", "request_id", id, "error", err)
	}

	return result, nil
}

// CloseReceipt summarizes a persisted closure.
type CloseReceipt struct {
	SequenceNumber  int          `json:"sequence_number"`
	RecordedAt      time.Time    `json:"recorded_at"`
	DurationMinutes int          `json:"duration_minutes"`
	ShiftWindow     shift.Window `json:"shift_window"`
}

// Close finishes a request: builds the record, appends it to the store,
// unblocks the line and drops the request from the in-flight set. On a
// store failure the request stays in-flight and closeable again; retrying
// is the caller's responsibility.
func (s *Service) Close(ctx context.Context, id, comment string) (*CloseReceipt, error) {
	s.mu.Lock()
	req, ok := s.inflight[id]
	if !ok {
		s.mu.Unlock()
		recordTransition("close", "not_found")
		return nil, ErrNotFound
	}
	if s.closing[id] {
		s.mu.Unlock()
		recordTransition("close", "invalid")
		return nil, fmt.Errorf("%w: closure already in progress", ErrInvalidTransition)
	}
	if !req.Status.Closeable() {
		s.mu.Unlock()
		recordTransition("close", "invalid")
		return nil, fmt.Errorf("%w: close from %s", ErrInvalidTransition, req.Status)
	}
	s.closing[id] = true
	snapshot := req.Clone()
	s.mu.Unlock()

	now := s.now()
	duration := durationMinutes(snapshot.CreatedAt, now)
	window := s.shifts.Enclosing(snapshot.CreatedAt)
	seq := s.store.NextSequenceNumber(ctx)
	row := buildRow(snapshot, seq, now, duration, window, comment)

	if err := s.store.AppendRecord(ctx, row); err != nil {
		s.mu.Lock()
		delete(s.closing, id)
		s.mu.Unlock()
		recordTransition("close", "persistence_failure")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.mu.Lock()
	delete(s.inflight, id)
	delete(s.closing, id)
	recordInflight(len(s.inflight))
	s.mu.Unlock()

	s.index.ClearIf(LineKey{Site: snapshot.Site, LineSection: snapshot.LineSection}, snapshot.Reason)
	recordTransition("close", "ok")
	s.refreshCacheAsync()

	slog.Info("downtime request closed",
		"request_id", id,
		"seq", seq,
		"duration_minutes", duration,
	)

	return &CloseReceipt{
		SequenceNumber:  seq,
		RecordedAt:      now,
		DurationMinutes: duration,
		ShiftWindow:     window,
	}, nil
}

// BackfillInput describes a historical incident entered after the fact.
type BackfillInput struct {
	Site        string
	LineSection string
	Reason      string
	Description string
	Initiator   domain.Actor
	Group       *domain.Group
	Start       time.Time
	End         time.Time
	Comment     string
}

// Backfill persists a historical incident directly, skipping the
// acceptance and completion sub-states. Duration comes from the explicit
// interval; the shift window is resolved from the start timestamp.
func (s *Service) Backfill(ctx context.Context, input BackfillInput) (*CloseReceipt, error) {
	if !input.End.After(input.Start) {
		recordTransition("backfill", "invalid_interval")
		return nil, ErrInvalidInterval
	}

	req := &domain.DowntimeRequest{
		ID:               "dt-" + uuid.NewString(),
		Site:             input.Site,
		LineSection:      input.LineSection,
		Reason:           input.Reason,
		Description:      input.Description,
		Initiator:        input.Initiator,
		ResponsibleGroup: input.Group,
		CreatedAt:        input.Start,
	}

	now := s.now()
	duration := durationMinutes(input.Start, input.End)
	window := s.shifts.Enclosing(input.Start)
	seq := s.store.NextSequenceNumber(ctx)

	comment := input.Comment
	if comment == "" {
		comment = fmt.Sprintf("backfilled %s - %s",
			input.Start.Format(TimestampLayout), input.End.Format(TimestampLayout))
	}

	if err := s.store.AppendRecord(ctx, buildRow(req, seq, now, duration, window, comment)); err != nil {
		recordTransition("backfill", "persistence_failure")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	recordTransition("backfill", "ok")
	s.refreshCacheAsync()

	slog.Info("historical downtime backfilled",
		"seq", seq,
		"site", input.Site,
		"line", input.LineSection,
		"duration_minutes", duration,
	)

	return &CloseReceipt{
		SequenceNumber:  seq,
		RecordedAt:      now,
		DurationMinutes: duration,
		ShiftWindow:     window,
	}, nil
}

// Get returns a copy of an in-flight request.
func (s *Service) Get(id string) (*domain.DowntimeRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.inflight[id]
	if !ok {
		return nil, ErrNotFound
	}
	return req.Clone(), nil
}

// InflightSnapshot returns copies of all in-flight requests. The scanner
// iterates this snapshot, so requests closed concurrently simply vanish
// from the next one.
func (s *Service) InflightSnapshot() []*domain.DowntimeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.DowntimeRequest, 0, len(s.inflight))
	for _, req := range s.inflight {
		out = append(out, req.Clone())
	}
	return out
}

// MarkGroupReminderSent flips the group reminder flag, once. Returns false
// when the request is gone or the flag was already set.
func (s *Service) MarkGroupReminderSent(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.inflight[id]
	if !ok || req.ReminderGroupSent {
		return false
	}
	next := req.Clone()
	next.ReminderGroupSent = true
	s.inflight[id] = next
	return true
}

// MarkInitiatorReminderSent flips the initiator reminder flag, once.
func (s *Service) MarkInitiatorReminderSent(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.inflight[id]
	if !ok || req.ReminderInitiatorSent {
		return false
	}
	next := req.Clone()
	next.ReminderInitiatorSent = true
	s.inflight[id] = next
	return true
}

func (s *Service) refreshCacheAsync() {
	if s.refresher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.refresher.Refresh(ctx); err != nil {
			slog.Error("post-close cache refresh failed", "error", err)
		}
	}()
}
