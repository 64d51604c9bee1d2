// Package report derives line-status and shift downtime reports from the
// record cache and the active downtime index.
package report

import (
	"sort"
	"strconv"
	"time"

	"golang.org/x/text/cases"

	"github.com/plantops/downtime-keeper/internal/cache"
	"github.com/plantops/downtime-keeper/internal/domain"
	"github.com/plantops/downtime-keeper/internal/lifecycle"
	"github.com/plantops/downtime-keeper/internal/shift"
	"github.com/plantops/downtime-keeper/internal/store"
)

// timestampLayouts are the record timestamp formats accepted when reading
// rows back. Rows written by this service use the first; rows entered by
// hand have shown up in the other two.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"02.01.2006 15:04:05",
	"2006/01/02 15:04:05",
}

// Builder assembles reports. It never fetches: it reads whatever snapshot
// the cache currently holds and says how trustworthy that snapshot is.
type Builder struct {
	cache    *cache.Cache
	index    *lifecycle.ActiveIndex
	shifts   *shift.Calculator
	topology domain.Topology
	topN     int
	now      func() time.Time

	fold cases.Caser
}

// NewBuilder creates a report builder. topN bounds the reason ranking in
// admin summaries.
func NewBuilder(c *cache.Cache, index *lifecycle.ActiveIndex, shifts *shift.Calculator, topology domain.Topology, topN int) *Builder {
	return &Builder{
		cache:    c,
		index:    index,
		shifts:   shifts,
		topology: topology,
		topN:     topN,
		now:      time.Now,
		fold:     cases.Fold(),
	}
}

// LineStatus is the state of one line.
type LineStatus struct {
	Line    string `json:"line"`
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason,omitempty"`
}

// SiteStatus groups line statuses under their site, in topology order.
type SiteStatus struct {
	Site  string       `json:"site"`
	Emoji string       `json:"emoji,omitempty"`
	Lines []LineStatus `json:"lines"`
}

// LineStatusReport is the live picture of all lines across all sites.
type LineStatusReport struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Sites       []SiteStatus `json:"sites"`
}

// LineStatusReport reports every known line as blocked (with its reason)
// or operating, from the live index. No cache involved, so it is always
// fresh.
func (b *Builder) LineStatusReport() LineStatusReport {
	active := b.index.Snapshot()

	out := LineStatusReport{GeneratedAt: b.now(), Sites: make([]SiteStatus, 0, len(b.topology.Sites))}
	for _, site := range b.topology.Sites {
		ss := SiteStatus{Site: site.Name, Emoji: site.Emoji, Lines: make([]LineStatus, 0, len(site.Lines))}
		for _, line := range site.Lines {
			reason, blocked := active[lifecycle.LineKey{Site: site.Name, LineSection: line.Name}]
			ss.Lines = append(ss.Lines, LineStatus{Line: line.Name, Blocked: blocked, Reason: reason})
		}
		out.Sites = append(out.Sites, ss)
	}
	return out
}

// SiteDowntime aggregates closed incidents of one site within a window.
type SiteDowntime struct {
	Site         string `json:"site"`
	Incidents    int    `json:"incidents"`
	TotalMinutes int    `json:"total_minutes"`
}

// ShiftReport summarizes one shift window from the cached records. Stale
// and LastError qualify the numbers; consumers decide how much to trust
// them.
type ShiftReport struct {
	Window       shift.Window   `json:"window"`
	NoIncidents  bool           `json:"no_incidents"`
	Incidents    int            `json:"incidents"`
	TotalMinutes int            `json:"total_minutes"`
	Sites        []SiteDowntime `json:"sites"`
	Stale        bool           `json:"stale"`
	LastError    string         `json:"last_error,omitempty"`
}

// ShiftReport builds the per-site downtime summary for the current or
// previous shift. Returns cache.ErrNeverRefreshed when no data has ever
// been loaded.
func (b *Builder) ShiftReport(kind shift.Kind) (*ShiftReport, error) {
	state, err := b.cache.State()
	if err != nil {
		return nil, err
	}
	window := b.shifts.Relative(b.now(), kind)
	return b.buildShiftReport(state, window), nil
}

func (b *Builder) buildShiftReport(state cache.State, window shift.Window) *ShiftReport {
	records := b.recordsIn(state.Snapshot, window)

	out := &ShiftReport{
		Window:      window,
		NoIncidents: len(records) == 0,
		Incidents:   len(records),
		Stale:       state.Stale,
	}
	if state.LastError != nil {
		out.LastError = state.LastError.Error()
	}

	perSite := make(map[string]*SiteDowntime)
	for _, rec := range records {
		out.TotalMinutes += rec.minutes
		agg, ok := perSite[rec.site]
		if !ok {
			agg = &SiteDowntime{Site: rec.site}
			perSite[rec.site] = agg
		}
		agg.Incidents++
		agg.TotalMinutes += rec.minutes
	}

	// Topology order first, then anything the topology does not know.
	seen := make(map[string]bool)
	for _, site := range b.topology.Sites {
		key := b.fold.String(site.Name)
		if agg, ok := perSite[key]; ok {
			agg.Site = site.Name
			out.Sites = append(out.Sites, *agg)
			seen[key] = true
		}
	}
	rest := make([]SiteDowntime, 0)
	for key, agg := range perSite {
		if !seen[key] {
			rest = append(rest, *agg)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].Site < rest[j].Site })
	out.Sites = append(out.Sites, rest...)

	return out
}

// ReasonTotal is one entry of the admin reason ranking.
type ReasonTotal struct {
	Reason       string `json:"reason"`
	Incidents    int    `json:"incidents"`
	TotalMinutes int    `json:"total_minutes"`
}

// Summary is the admin view of a shift window: the shift report plus the
// top downtime reasons.
type Summary struct {
	ShiftReport
	TopReasons []ReasonTotal `json:"top_reasons"`
}

// Summary builds the admin summary: the shift aggregate plus the top-N
// reasons ranked by total minutes descending, ties broken by reason name
// ascending so repeated runs over the same data agree.
func (b *Builder) Summary(kind shift.Kind) (*Summary, error) {
	state, err := b.cache.State()
	if err != nil {
		return nil, err
	}
	window := b.shifts.Relative(b.now(), kind)
	base := b.buildShiftReport(state, window)

	perReason := make(map[string]*ReasonTotal)
	for _, rec := range b.recordsIn(state.Snapshot, window) {
		agg, ok := perReason[rec.reason]
		if !ok {
			agg = &ReasonTotal{Reason: rec.reason}
			perReason[rec.reason] = agg
		}
		agg.Incidents++
		agg.TotalMinutes += rec.minutes
	}

	ranked := make([]ReasonTotal, 0, len(perReason))
	for _, agg := range perReason {
		ranked = append(ranked, *agg)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].TotalMinutes != ranked[j].TotalMinutes {
			return ranked[i].TotalMinutes > ranked[j].TotalMinutes
		}
		return ranked[i].Reason < ranked[j].Reason
	})
	if len(ranked) > b.topN {
		ranked = ranked[:b.topN]
	}

	return &Summary{ShiftReport: *base, TopReasons: ranked}, nil
}

// record is one cached row reduced to what reports aggregate on. Sites
// are fold-normalized so hand-entered rows in a different case still land
// on the right topology site.
type record struct {
	site    string
	reason  string
	minutes int
}

func (b *Builder) recordsIn(snap *cache.Snapshot, window shift.Window) []record {
	out := make([]record, 0)
	for _, row := range snap.Rows {
		if len(row) <= store.ColDurationMinutes {
			continue
		}
		ts, ok := b.parseTimestamp(row[store.ColRecordedAt])
		if !ok || !window.Contains(ts) {
			continue
		}
		minutes, err := strconv.Atoi(row[store.ColDurationMinutes])
		if err != nil || minutes < 0 {
			continue
		}
		out = append(out, record{
			site:    b.fold.String(row[store.ColSite]),
			reason:  row[store.ColReason],
			minutes: minutes,
		})
	}
	return out
}

func (b *Builder) parseTimestamp(value string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, value, b.shifts.Location()); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
