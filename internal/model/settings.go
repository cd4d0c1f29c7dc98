package model

import "time"

// TrendFilter selects which higher-timeframe labels gate a signal direction.
type TrendFilter string

const (
	TrendFilterNone  TrendFilter = "NONE"
	TrendFilterM15   TrendFilter = "M15"
	TrendFilterH1    TrendFilter = "H1"
	TrendFilterM15H1 TrendFilter = "M15_H1"
)

// Valid reports whether f is a known mode.
func (f TrendFilter) Valid() bool {
	switch f {
	case TrendFilterNone, TrendFilterM15, TrendFilterH1, TrendFilterM15H1:
		return true
	}
	return false
}

// MACDStrategy selects how MACD crossovers are counted.
type MACDStrategy string

const (
	// MACDGated counts a bullish cross only below zero and a bearish cross only above zero.
	MACDGated MACDStrategy = "gated"
	// MACDUngated counts any crossover.
	MACDUngated MACDStrategy = "ungated"
)

// Valid reports whether m is a known strategy.
func (m MACDStrategy) Valid() bool {
	return m == MACDGated || m == MACDUngated
}

// IndicatorParams is the parameter bundle for the indicator engine.
type IndicatorParams struct {
	RSIPeriod        int `yaml:"rsi_period" json:"rsi_period" validate:"gte=2,lte=500"`
	MACDFast         int `yaml:"macd_fast" json:"macd_fast" validate:"gte=2,lte=500"`
	MACDSlow         int `yaml:"macd_slow" json:"macd_slow" validate:"gte=2,lte=500,gtfield=MACDFast"`
	MACDSignal       int `yaml:"macd_signal" json:"macd_signal" validate:"gte=1,lte=500"`
	BollingerPeriod  int `yaml:"bollinger_period" json:"bollinger_period" validate:"gte=2,lte=500"`
	StochasticPeriod int `yaml:"stochastic_period" json:"stochastic_period" validate:"gte=1,lte=500"`
	ADXPeriod        int `yaml:"adx_period" json:"adx_period" validate:"gte=2,lte=500"`
	M15EMAPeriod     int `yaml:"m15_ema_period" json:"m15_ema_period" validate:"gte=2,lte=500"`
	H1EMAPeriod      int `yaml:"h1_ema_period" json:"h1_ema_period" validate:"gte=2,lte=500"`
}

// MaxPeriod returns the longest configured period.
func (p IndicatorParams) MaxPeriod() int {
	m := 0
	for _, v := range []int{
		p.RSIPeriod, p.MACDFast, p.MACDSlow, p.MACDSignal, p.BollingerPeriod,
		p.StochasticPeriod, p.ADXPeriod, p.M15EMAPeriod, p.H1EMAPeriod,
	} {
		if v > m {
			m = v
		}
	}
	return m
}

// Named exposes the parameters by their profile key, in display order.
func (p *IndicatorParams) Named() []NamedParam {
	return []NamedParam{
		{"rsi_period", &p.RSIPeriod},
		{"macd_fast", &p.MACDFast},
		{"macd_slow", &p.MACDSlow},
		{"macd_signal", &p.MACDSignal},
		{"bollinger_period", &p.BollingerPeriod},
		{"stochastic_period", &p.StochasticPeriod},
		{"adx_period", &p.ADXPeriod},
		{"m15_ema_period", &p.M15EMAPeriod},
		{"h1_ema_period", &p.H1EMAPeriod},
	}
}

// NamedParam binds a profile key to a parameter field.
type NamedParam struct {
	Name  string
	Value *int
}

// Settings are the runtime knobs read by the analysis core.
type Settings struct {
	Running                bool            `yaml:"running" json:"running"`
	ProfileName            string          `yaml:"profile_name" json:"profile_name"`
	Symbols                []string        `yaml:"symbols" json:"symbols" validate:"dive,required,max=16,uppercase"`
	ScanInterval           time.Duration   `yaml:"scan_interval" json:"scan_interval" validate:"gte=1s"`
	ConfirmationDelay      time.Duration   `yaml:"confirmation_delay" json:"confirmation_delay" validate:"gte=0"`
	InitialConfidence      int             `yaml:"initial_confidence" json:"initial_confidence" validate:"gte=1,lte=10"`
	ConfirmationConfidence int             `yaml:"confirmation_confidence" json:"confirmation_confidence" validate:"gte=1,lte=10"`
	TrendFilter            TrendFilter     `yaml:"trend_filter_mode" json:"trend_filter_mode" validate:"oneof=NONE M15 H1 M15_H1"`
	MACDStrategy           MACDStrategy    `yaml:"macd_strategy" json:"macd_strategy" validate:"oneof=gated ungated"`
	Indicators             IndicatorParams `yaml:"indicator_params" json:"indicator_params"`
}

// DefaultSettings returns the built-in fallback profile.
func DefaultSettings() Settings {
	return Settings{
		ProfileName:            "fallback",
		ScanInterval:           5 * time.Second,
		ConfirmationDelay:      5 * time.Minute,
		InitialConfidence:      3,
		ConfirmationConfidence: 4,
		TrendFilter:            TrendFilterM15,
		MACDStrategy:           MACDGated,
		Indicators: IndicatorParams{
			RSIPeriod:        14,
			MACDFast:         12,
			MACDSlow:         26,
			MACDSignal:       9,
			BollingerPeriod:  20,
			StochasticPeriod: 14,
			ADXPeriod:        14,
			M15EMAPeriod:     50,
			H1EMAPeriod:      50,
		},
	}
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	out := s
	out.Symbols = append([]string(nil), s.Symbols...)
	return out
}

// HasSymbol reports whether sym is in the configured list.
func (s Settings) HasSymbol(sym string) bool {
	for _, v := range s.Symbols {
		if v == sym {
			return true
		}
	}
	return false
}
