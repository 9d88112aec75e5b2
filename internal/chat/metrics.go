package chat

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Metrics holds operational counters of one Service.
type Metrics struct {
	SessionsCreated        atomic.Int64
	SessionsClaimed        atomic.Int64
	SessionsClosed         atomic.Int64
	SessionsReaped         atomic.Int64
	MessagesPosted         atomic.Int64
	BotReplies             atomic.Int64
	AdvisoryAppendFailures atomic.Int64
	ReaperRuns             atomic.Int64
}

var metricKeys = []string{
	"sessions_created",
	"sessions_claimed",
	"sessions_closed",
	"sessions_reaped",
	"messages_posted",
	"bot_replies",
	"advisory_append_failures",
	"reaper_runs",
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"sessions_created":         m.SessionsCreated.Load(),
		"sessions_claimed":         m.SessionsClaimed.Load(),
		"sessions_closed":          m.SessionsClosed.Load(),
		"sessions_reaped":          m.SessionsReaped.Load(),
		"messages_posted":          m.MessagesPosted.Load(),
		"bot_replies":              m.BotReplies.Load(),
		"advisory_append_failures": m.AdvisoryAppendFailures.Load(),
		"reaper_runs":              m.ReaperRuns.Load(),
	}
}

// Format renders the counters as "name value" lines for the metrics endpoint.
func (m *Metrics) Format() string {
	snap := m.Snapshot()
	var sb strings.Builder
	for _, k := range metricKeys {
		fmt.Fprintf(&sb, "supportdesk_%s %d\n", k, snap[k])
	}
	return sb.String()
}
