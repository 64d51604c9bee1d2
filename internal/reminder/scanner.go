// Package reminder periodically scans in-flight downtime requests and
// nudges the party whose turn it is: the responsible group when a request
// sits unaccepted, the initiator when group work is done but the downtime
// is still open. Each request gets each reminder at most once.
package reminder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/plantops/downtime-keeper/internal/domain"
	"github.com/plantops/downtime-keeper/internal/notify"
)

// Requests is the slice of the lifecycle service the scanner needs.
type Requests interface {
	InflightSnapshot() []*domain.DowntimeRequest
	MarkGroupReminderSent(id string) bool
	MarkInitiatorReminderSent(id string) bool
}

// Config contains scanner configuration.
type Config struct {
	Interval          time.Duration `koanf:"interval" validate:"required"`
	GroupDelay        time.Duration `koanf:"group_delay" validate:"required"`
	InitiatorDelay    time.Duration `koanf:"initiator_delay" validate:"required"`
	PerRequestTimeout time.Duration `koanf:"per_request_timeout"`
}

// DefaultConfig returns default scanner configuration.
func DefaultConfig() Config {
	return Config{
		Interval:          5 * time.Minute,
		GroupDelay:        30 * time.Minute,
		InitiatorDelay:    2 * time.Hour,
		PerRequestTimeout: 10 * time.Second,
	}
}

// Scanner walks the in-flight set on a fixed interval.
type Scanner struct {
	config   Config
	requests Requests
	notifier notify.Notifier
	now      func() time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewScanner creates a new reminder scanner.
func NewScanner(config Config, requests Requests, notifier notify.Notifier) *Scanner {
	return &Scanner{
		config:   config,
		requests: requests,
		notifier: notifier,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the scan loop.
func (s *Scanner) Start(ctx context.Context) {
	slog.Info("starting reminder scanner",
		"interval", s.config.Interval,
		"group_delay", s.config.GroupDelay,
		"initiator_delay", s.config.InitiatorDelay,
	)

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop gracefully stops the scanner.
func (s *Scanner) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	slog.Info("reminder scanner stopped")
}

func (s *Scanner) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Scan(ctx)
		}
	}
}

// Scan runs one pass over the in-flight snapshot. One misbehaving
// request never blocks the rest of the pass.
func (s *Scanner) Scan(ctx context.Context) {
	snapshot := s.requests.InflightSnapshot()
	if len(snapshot) == 0 {
		return
	}

	now := s.now()
	for _, req := range snapshot {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.scanOne(ctx, req, now)
	}
}

func (s *Scanner) scanOne(ctx context.Context, req *domain.DowntimeRequest, now time.Time) {
	switch {
	case s.groupReminderDue(req, now):
		s.sendGroupReminder(ctx, req)
	case s.initiatorReminderDue(req, now):
		s.sendInitiatorReminder(ctx, req)
	}
}

func (s *Scanner) groupReminderDue(req *domain.DowntimeRequest, now time.Time) bool {
	return req.Status == domain.StatusPendingAcceptance &&
		!req.ReminderGroupSent &&
		req.ResponsibleGroup != nil &&
		now.Sub(req.CreatedAt) >= s.config.GroupDelay
}

func (s *Scanner) initiatorReminderDue(req *domain.DowntimeRequest, now time.Time) bool {
	return req.Status == domain.StatusPendingInitiatorClosure &&
		!req.ReminderInitiatorSent &&
		req.GroupCompletedAt != nil &&
		now.Sub(*req.GroupCompletedAt) >= s.config.InitiatorDelay
}

// sendGroupReminder delivers first, flips the flag second: a failed send
// leaves the flag clear so the next pass retries, and a request closed
// between snapshot and flip is simply skipped.
func (s *Scanner) sendGroupReminder(ctx context.Context, req *domain.DowntimeRequest) {
	ctx, cancel := s.requestContext(ctx)
	defer cancel()

	msg := notify.Message{Text: groupReminderText(req)}
	if !req.NotificationRef.IsZero() {
		msg.ReplyTo = &req.NotificationRef
	}

	if _, err := s.notifier.Notify(ctx, req.ResponsibleGroup.ChatID, msg); err != nil {
		slog.Error("group reminder delivery failed",
			"request_id", req.ID,
			"group", req.ResponsibleGroup.Name,
			"error", err,
		)
		recordReminder("group", "failed")
		return
	}

	if !s.requests.MarkGroupReminderSent(req.ID) {
		slog.Debug("group reminder raced with close or repeat", "request_id", req.ID)
		recordReminder("group", "stale")
		return
	}

	slog.Info("group reminder sent", "request_id", req.ID, "group", req.ResponsibleGroup.Name)
	recordReminder("group", "sent")
}

func (s *Scanner) sendInitiatorReminder(ctx context.Context, req *domain.DowntimeRequest) {
	ctx, cancel := s.requestContext(ctx)
	defer cancel()

	msg := notify.Message{
		Text:    initiatorReminderText(req),
		Actions: []notify.Action{{Label: "Close downtime", Data: "close:" + req.ID}},
	}

	if _, err := s.notifier.Notify(ctx, req.Initiator.ChatID, msg); err != nil {
		slog.Error("initiator reminder delivery failed",
			"request_id", req.ID,
			"initiator", req.Initiator.ID,
			"error", err,
		)
		recordReminder("initiator", "failed")
		return
	}

	if !s.requests.MarkInitiatorReminderSent(req.ID) {
		slog.Debug("initiator reminder raced with close or repeat", "request_id", req.ID)
		recordReminder("initiator", "stale")
		return
	}

	slog.Info("initiator reminder sent", "request_id", req.ID, "initiator", req.Initiator.ID)
	recordReminder("initiator", "sent")
}

func (s *Scanner) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.PerRequestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.config.PerRequestTimeout)
}
