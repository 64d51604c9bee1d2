package report

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/plantops/downtime-keeper/internal/cache"
	"github.com/plantops/downtime-keeper/internal/notify"
	"github.com/plantops/downtime-keeper/internal/shift"
)

// BroadcastConfig contains broadcast scheduler configuration.
type BroadcastConfig struct {
	Enabled       bool          `koanf:"enabled"`
	AdminChatIDs  []string      `koanf:"admin_chat_ids"`
	ReportChatIDs []string      `koanf:"report_chat_ids"`
	StatusLead    time.Duration `koanf:"status_lead"`
	SummaryLag    time.Duration `koanf:"summary_lag"`
}

// DefaultBroadcastConfig returns default broadcast configuration: line
// status 5 minutes before each shift boundary, the previous-shift summary
// 5 minutes after.
func DefaultBroadcastConfig() BroadcastConfig {
	return BroadcastConfig{
		StatusLead: 5 * time.Minute,
		SummaryLag: 5 * time.Minute,
	}
}

// Broadcaster pushes reports to chats around shift boundaries and alerts
// admins when the record cache degrades to rate-limited refreshes.
type Broadcaster struct {
	config   BroadcastConfig
	builder  *Builder
	cache    *cache.Cache
	shifts   *shift.Calculator
	notifier notify.Notifier
	now      func() time.Time

	lastStatusFire  time.Time
	lastSummaryFire time.Time
	rateLimitAlert  bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewBroadcaster creates a broadcast scheduler.
func NewBroadcaster(config BroadcastConfig, builder *Builder, c *cache.Cache, shifts *shift.Calculator, notifier notify.Notifier) *Broadcaster {
	return &Broadcaster{
		config:   config,
		builder:  builder,
		cache:    c,
		shifts:   shifts,
		notifier: notifier,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the broadcast loop. A disabled broadcaster starts
// nothing.
func (b *Broadcaster) Start(ctx context.Context) {
	if !b.config.Enabled {
		slog.Info("report broadcasts disabled")
		return
	}

	slog.Info("starting report broadcaster",
		"admin_chats", len(b.config.AdminChatIDs),
		"report_chats", len(b.config.ReportChatIDs),
		"status_lead", b.config.StatusLead,
		"summary_lag", b.config.SummaryLag,
	)

	b.wg.Add(1)
	go b.run(ctx)
}

// Stop gracefully stops the broadcaster.
func (b *Broadcaster) Stop() {
	close(b.stopCh)
	b.wg.Wait()
}

func (b *Broadcaster) run(ctx context.Context) {
	defer b.wg.Done()

	// Targets already in the past at startup are skipped, not replayed.
	now := b.now().In(b.shifts.Location())
	b.lastStatusFire = now
	b.lastSummaryFire = now

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.tick(ctx)
		}
	}
}

func (b *Broadcaster) tick(ctx context.Context) {
	now := b.now().In(b.shifts.Location())
	b.maybeBroadcastStatus(ctx, now)
	b.maybeBroadcastSummary(ctx, now)
	b.maybeAlertRateLimit(ctx)
}

// due reports whether target lies in (lastFired, now]. The minute ticker
// does not land exactly on the target instant, so the check is an
// interval, not an equality.
func due(target, lastFired, now time.Time) bool {
	return !target.After(now) && target.After(lastFired)
}

func (b *Broadcaster) maybeBroadcastStatus(ctx context.Context, now time.Time) {
	// Fires StatusLead before the end of the running shift.
	target := b.shifts.Enclosing(now).End.Add(-b.config.StatusLead)
	if !due(target, b.lastStatusFire, now) {
		return
	}
	b.lastStatusFire = now

	text := renderLineStatus(b.builder.LineStatusReport())
	for _, chatID := range b.config.ReportChatIDs {
		if _, err := b.notifier.Notify(ctx, chatID, notify.Message{Text: text}); err != nil {
			slog.Error("line status broadcast failed", "chat_id", chatID, "error", err)
		}
	}
	slog.Info("line status broadcast sent", "chats", len(b.config.ReportChatIDs))
}

func (b *Broadcaster) maybeBroadcastSummary(ctx context.Context, now time.Time) {
	// Fires SummaryLag after a boundary, summarizing the window that just
	// ended.
	boundary := b.shifts.Enclosing(now).Start
	target := boundary.Add(b.config.SummaryLag)
	if !due(target, b.lastSummaryFire, now) {
		return
	}
	b.lastSummaryFire = now

	summary, err := b.builder.Summary(shift.KindPrevious)
	if err != nil {
		slog.Error("shift summary broadcast skipped", "error", err)
		return
	}

	text := renderSummary(summary)
	for _, chatID := range b.config.AdminChatIDs {
		if _, err := b.notifier.Notify(ctx, chatID, notify.Message{Text: text}); err != nil {
			slog.Error("shift summary broadcast failed", "chat_id", chatID, "error", err)
		}
	}
	for _, chatID := range b.config.ReportChatIDs {
		if _, err := b.notifier.Notify(ctx, chatID, notify.Message{Text: renderSummaryNotice(summary)}); err != nil {
			slog.Error("shift summary notice failed", "chat_id", chatID, "error", err)
		}
	}
	slog.Info("shift summary broadcast sent",
		"window_start", summary.Window.Start,
		"incidents", summary.Incidents,
	)
}

// maybeAlertRateLimit tells admins once per episode when cache refreshes
// start failing on the store's rate limit, and clears the latch when the
// cause goes away.
func (b *Broadcaster) maybeAlertRateLimit(ctx context.Context) {
	state, err := b.cache.State()
	if err != nil && state.Cause == cache.CauseNone {
		return
	}

	if state.Cause != cache.CauseRateLimit {
		b.rateLimitAlert = false
		return
	}
	if b.rateLimitAlert {
		return
	}
	b.rateLimitAlert = true

	text := "Record store is rate-limiting cache refreshes; reports may be stale until it recovers."
	for _, chatID := range b.config.AdminChatIDs {
		if _, err := b.notifier.Notify(ctx, chatID, notify.Message{Text: text}); err != nil {
			slog.Error("rate limit alert failed", "chat_id", chatID, "error", err)
		}
	}
}
