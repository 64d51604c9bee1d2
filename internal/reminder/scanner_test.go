package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/plantops/downtime-keeper/internal/domain"
	"github.com/plantops/downtime-keeper/internal/notify"
)

type fakeRequests struct {
	mu       sync.Mutex
	inflight map[string]*domain.DowntimeRequest
}

func newFakeRequests(reqs ...*domain.DowntimeRequest) *fakeRequests {
	f := &fakeRequests{inflight: make(map[string]*domain.DowntimeRequest)}
	for _, r := range reqs {
		f.inflight[r.ID] = r
	}
	return f
}

func (f *fakeRequests) InflightSnapshot() []*domain.DowntimeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.DowntimeRequest, 0, len(f.inflight))
	for _, r := range f.inflight {
		out = append(out, r.Clone())
	}
	return out
}

func (f *fakeRequests) MarkGroupReminderSent(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.inflight[id]
	if !ok || r.ReminderGroupSent {
		return false
	}
	r.ReminderGroupSent = true
	return true
}

func (f *fakeRequests) MarkInitiatorReminderSent(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.inflight[id]
	if !ok || r.ReminderInitiatorSent {
		return false
	}
	r.ReminderInitiatorSent = true
	return true
}

type fakeNotifier struct {
	mu        sync.Mutex
	sent      []string // recipients in delivery order
	notifyErr error
}

func (f *fakeNotifier) Notify(_ context.Context, recipient string, _ notify.Message) (domain.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.notifyErr != nil {
		return domain.MessageRef{}, f.notifyErr
	}
	f.sent = append(f.sent, recipient)
	return domain.MessageRef{ChatID: recipient, MessageID: int64(len(f.sent))}, nil
}

func (f *fakeNotifier) Edit(_ context.Context, _ domain.MessageRef, _ notify.Message) error {
	return nil
}

func (f *fakeNotifier) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

var baseTime = time.Date(2025, time.June, 27, 12, 0, 0, 0, time.UTC)

func pendingRequest(id string, createdAt time.Time) *domain.DowntimeRequest {
	return &domain.DowntimeRequest{
		ID:               id,
		Site:             "ОМЕТ",
		LineSection:      "ОМЕТ1",
		Reason:           "Механика",
		Status:           domain.StatusPendingAcceptance,
		Initiator:        domain.Actor{ID: "u1", ChatID: "chat-u1"},
		ResponsibleGroup: &domain.Group{Name: "Mechanics", ChatID: "chat-grp"},
		CreatedAt:        createdAt,
	}
}

func awaitingClosureRequest(id string, completedAt time.Time) *domain.DowntimeRequest {
	req := pendingRequest(id, completedAt.Add(-time.Hour))
	req.Status = domain.StatusPendingInitiatorClosure
	req.GroupCompletedAt = &completedAt
	return req
}

func newTestScanner(reqs Requests, nt notify.Notifier, now time.Time) *Scanner {
	s := NewScanner(DefaultConfig(), reqs, nt)
	s.now = func() time.Time { return now }
	return s
}

func TestScan_GroupReminder(t *testing.T) {
	t.Run("not due before delay", func(t *testing.T) {
		nt := &fakeNotifier{}
		reqs := newFakeRequests(pendingRequest("dt-1", baseTime.Add(-29*time.Minute)))
		newTestScanner(reqs, nt, baseTime).Scan(context.Background())
		assert.Empty(t, nt.recipients())
	})

	t.Run("due at delay, sent to group once", func(t *testing.T) {
		nt := &fakeNotifier{}
		reqs := newFakeRequests(pendingRequest("dt-1", baseTime.Add(-30*time.Minute)))
		s := newTestScanner(reqs, nt, baseTime)

		s.Scan(context.Background())
		assert.Equal(t, []string{"chat-grp"}, nt.recipients())

		// The next pass sees the flipped flag and stays quiet.
		s.Scan(context.Background())
		assert.Equal(t, []string{"chat-grp"}, nt.recipients())
	})

	t.Run("failed delivery is retried next pass", func(t *testing.T) {
		nt := &fakeNotifier{notifyErr: errors.New("telegram down")}
		reqs := newFakeRequests(pendingRequest("dt-1", baseTime.Add(-time.Hour)))
		s := newTestScanner(reqs, nt, baseTime)

		s.Scan(context.Background())
		assert.Empty(t, nt.recipients())

		nt.notifyErr = nil
		s.Scan(context.Background())
		assert.Equal(t, []string{"chat-grp"}, nt.recipients())
	})
}

func TestScan_InitiatorReminder(t *testing.T) {
	t.Run("not due before delay", func(t *testing.T) {
		nt := &fakeNotifier{}
		reqs := newFakeRequests(awaitingClosureRequest("dt-1", baseTime.Add(-time.Hour)))
		newTestScanner(reqs, nt, baseTime).Scan(context.Background())
		assert.Empty(t, nt.recipients())
	})

	t.Run("due at delay, sent to initiator once", func(t *testing.T) {
		nt := &fakeNotifier{}
		reqs := newFakeRequests(awaitingClosureRequest("dt-1", baseTime.Add(-2*time.Hour)))
		s := newTestScanner(reqs, nt, baseTime)

		s.Scan(context.Background())
		assert.Equal(t, []string{"chat-u1"}, nt.recipients())

		s.Scan(context.Background())
		assert.Equal(t, []string{"chat-u1"}, nt.recipients())
	})
}

func TestScan_SkipsOtherStates(t *testing.T) {
	nt := &fakeNotifier{}

	accepted := pendingRequest("dt-1", baseTime.Add(-3*time.Hour))
	accepted.Status = domain.StatusWorkInProgress

	noGroup := pendingRequest("dt-2", baseTime.Add(-3*time.Hour))
	noGroup.Status = domain.StatusWaitingForClosure
	noGroup.ResponsibleGroup = nil

	newTestScanner(newFakeRequests(accepted, noGroup), nt, baseTime).Scan(context.Background())
	assert.Empty(t, nt.recipients())
}

func TestScan_OneFailureDoesNotBlockOthers(t *testing.T) {
	// Both requests are due; delivery fails wholesale, then recovers. Every
	// request must still get exactly one reminder in the end.
	nt := &fakeNotifier{notifyErr: errors.New("flaky")}
	reqs := newFakeRequests(
		pendingRequest("dt-1", baseTime.Add(-time.Hour)),
		pendingRequest("dt-2", baseTime.Add(-time.Hour)),
	)
	s := newTestScanner(reqs, nt, baseTime)

	s.Scan(context.Background())
	assert.Empty(t, nt.recipients())

	nt.notifyErr = nil
	s.Scan(context.Background())
	s.Scan(context.Background())
	assert.Len(t, nt.recipients(), 2)
}
