package governor

import (
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultWindow is the span of the rate budget.
const DefaultWindow = 60 * time.Second

// Governor is the single consumer of the request queue. Each Tick dispatches
// at most one request and only while the rate window has capacity.
type Governor struct {
	queue  *Queue
	window *RateWindow
}

// New creates a Governor allowing maxCalls dispatches per window.
func New(maxCalls int, window time.Duration) *Governor {
	return &Governor{queue: NewQueue(), window: NewRateWindow(maxCalls, window)}
}

// Queue exposes the request queue to producers.
func (g *Governor) Queue() *Queue { return g.queue }

// Window exposes the rate window for inspection.
func (g *Governor) Window() *RateWindow { return g.window }

// Tick prunes the window and, if capacity and a queued request exist, pops
// the head and records the dispatch at now. The caller performs the fetch.
func (g *Governor) Tick(now time.Time) (Request, bool) {
	g.window.Prune(now)
	if !g.window.Available() || g.queue.Len() == 0 {
		return Request{}, false
	}
	req, _ := g.queue.Pop()
	if err := g.window.Record(now); err != nil {
		// Available was checked above; reaching this is a bug.
		panic(err)
	}
	log.Debug().
		Str("symbol", req.Symbol).
		Str("timeframe", string(req.Timeframe)).
		Str("stage", req.Stage.String()).
		Int("window", g.window.Len()).
		Int("limit", g.window.Limit()).
		Int("queue_depth", g.queue.Len()).
		Msg("governor dispatch")
	return req, true
}
