package model

import "time"

// SymbolStatistics counts signal outcomes for one symbol.
type SymbolStatistics struct {
	Initial            int `json:"initial"`
	Confirmed          int `json:"confirmed"`
	FailedConfirmation int `json:"failed_confirmation"`
}

// State is the persisted snapshot of settings and statistics.
type State struct {
	Settings   Settings                    `json:"bot_state"`
	Statistics map[string]SymbolStatistics `json:"signals_statistics"`
	UpdatedAt  time.Time                   `json:"updated_at"`
}

// Status is a point-in-time view of the scheduling core.
type Status struct {
	Running      bool      `json:"running"`
	Profile      string    `json:"profile"`
	Symbols      []string  `json:"symbols"`
	QueueDepth   int       `json:"queue_depth"`
	WindowUsed   int       `json:"window_used"`
	WindowLimit  int       `json:"window_limit"`
	Pending      int       `json:"pending_signals"`
	InFlight     []string  `json:"in_flight"`
	Dispatched   uint64    `json:"dispatched_total"`
	LastDispatch time.Time `json:"last_dispatch,omitempty"`
	StartedAt    time.Time `json:"started_at"`
}
