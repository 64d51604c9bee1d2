package report

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantops/downtime-keeper/internal/cache"
	"github.com/plantops/downtime-keeper/internal/domain"
	"github.com/plantops/downtime-keeper/internal/lifecycle"
	"github.com/plantops/downtime-keeper/internal/notify"
	"github.com/plantops/downtime-keeper/internal/shift"
	"github.com/plantops/downtime-keeper/internal/store"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent map[string][]string // recipient -> texts
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{sent: make(map[string][]string)}
}

func (f *fakeNotifier) Notify(_ context.Context, recipient string, msg notify.Message) (domain.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[recipient] = append(f.sent[recipient], msg.Text)
	return domain.MessageRef{ChatID: recipient, MessageID: 1}, nil
}

func (f *fakeNotifier) Edit(context.Context, domain.MessageRef, notify.Message) error {
	return nil
}

func (f *fakeNotifier) count(recipient string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent[recipient])
}

func newTestBroadcaster(t *testing.T, rows [][]string) (*Broadcaster, *fakeNotifier, *time.Location) {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	c := cache.New(&fakeFetcher{rows: rows}, time.Hour)
	require.NoError(t, c.Refresh(context.Background()))

	shifts := shift.NewCalculator(loc)
	builder := NewBuilder(c, lifecycle.NewActiveIndex(), shifts, domain.DefaultTopology(), 3)

	nt := newFakeNotifier()
	b := NewBroadcaster(BroadcastConfig{
		Enabled:       true,
		AdminChatIDs:  []string{"admin"},
		ReportChatIDs: []string{"reports"},
		StatusLead:    5 * time.Minute,
		SummaryLag:    5 * time.Minute,
	}, builder, c, shifts, nt)

	return b, nt, loc
}

func at(loc *time.Location, hour, minute int) time.Time {
	return time.Date(2025, time.June, 27, hour, minute, 0, 0, loc)
}

func TestBroadcaster_LineStatusBeforeBoundary(t *testing.T) {
	b, nt, loc := newTestBroadcaster(t, nil)

	clock := at(loc, 19, 50)
	b.now = func() time.Time { return clock }
	b.lastStatusFire = clock
	b.lastSummaryFire = clock

	b.tick(context.Background())
	assert.Zero(t, nt.count("reports"), "nothing due at 19:50")

	clock = at(loc, 19, 55)
	b.tick(context.Background())
	assert.Equal(t, 1, nt.count("reports"), "line status fires 5 minutes before the boundary")

	clock = at(loc, 19, 56)
	b.tick(context.Background())
	assert.Equal(t, 1, nt.count("reports"), "fires once per boundary")
}

func TestBroadcaster_SummaryAfterBoundary(t *testing.T) {
	builder := builderRows()
	b, nt, loc := newTestBroadcaster(t, builder)

	clock := at(loc, 20, 0)
	b.now = func() time.Time { return clock }
	b.builder.now = func() time.Time { return clock }
	b.lastStatusFire = clock
	b.lastSummaryFire = clock

	b.tick(context.Background())
	assert.Zero(t, nt.count("admin"), "nothing due right at the boundary")

	clock = at(loc, 20, 5)
	b.tick(context.Background())
	assert.Equal(t, 1, nt.count("admin"), "admin summary fires 5 minutes after the boundary")
	assert.Equal(t, 1, nt.count("reports"), "report chats get the short notice")

	clock = at(loc, 20, 6)
	b.tick(context.Background())
	assert.Equal(t, 1, nt.count("admin"))
}

// builderRows returns one closed record inside the day shift that ended at
// 20:00, so the post-boundary summary has something to report.
func builderRows() [][]string {
	return [][]string{row("2025-06-27 15:00:00", "ОМЕТ", "Механика", "30")}
}

func TestBroadcaster_RateLimitAlertOncePerEpisode(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	fetcher := &failingFetcher{}
	c := cache.New(fetcher, time.Hour)
	require.NoError(t, c.Refresh(context.Background())) // initial good snapshot

	shifts := shift.NewCalculator(loc)
	builder := NewBuilder(c, lifecycle.NewActiveIndex(), shifts, domain.DefaultTopology(), 3)

	nt := newFakeNotifier()
	b := NewBroadcaster(BroadcastConfig{
		Enabled:      true,
		AdminChatIDs: []string{"admin"},
		StatusLead:   5 * time.Minute,
		SummaryLag:   5 * time.Minute,
	}, builder, c, shifts, nt)

	clock := at(loc, 12, 0)
	b.now = func() time.Time { return clock }
	b.lastStatusFire = clock
	b.lastSummaryFire = clock

	b.tick(context.Background())
	assert.Zero(t, nt.count("admin"), "healthy cache, no alert")

	fetcher.rateLimited = true
	_ = c.Refresh(context.Background())

	b.tick(context.Background())
	b.tick(context.Background())
	assert.Equal(t, 1, nt.count("admin"), "one alert per rate-limit episode")

	fetcher.rateLimited = false
	require.NoError(t, c.Refresh(context.Background()))
	b.tick(context.Background())
	assert.Equal(t, 1, nt.count("admin"), "recovery clears the latch without a new alert")

	fetcher.rateLimited = true
	_ = c.Refresh(context.Background())
	b.tick(context.Background())
	assert.Equal(t, 2, nt.count("admin"), "a new episode alerts again")
}

type failingFetcher struct {
	rateLimited bool
}

func (f *failingFetcher) FetchAllRows(context.Context) ([]string, [][]string, error) {
	if f.rateLimited {
		return nil, nil, store.ErrRateLimited
	}
	return store.Headers, nil, nil
}
