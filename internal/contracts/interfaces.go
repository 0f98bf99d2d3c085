package contracts

import (
	"context"
	"time"
)

// SignalComputer is the callback boundary between an execution host and the decision engine.
// The host owns the replay loop and calls ComputeSignal once per (instrument, session).
type SignalComputer interface {
	ComputeSignal(bar BarContext) Action
}

// BarContext is everything the host knows about the bar being replayed
type BarContext struct {
	Instrument string
	Session    time.Time
	// SeriesID and Sessions identify the instrument's price calendar;
	// Version must change whenever Sessions is replaced or mutated.
	SeriesID string
	Sessions []time.Time
	Version  string
}

// WeightProvider answers target-weight queries for a (date, instrument)
type WeightProvider interface {
	Weight(date time.Time, code string) float64
}

// Journal persists the trade ledger and equity curve of a run
type Journal interface {
	RecordTrade(ctx context.Context, runID string, trade Trade) error
	RecordEquity(ctx context.Context, runID string, point EquityPoint) error
	Trades(ctx context.Context, runID string) ([]Trade, error)
	EquityCurve(ctx context.Context, runID string) ([]EquityPoint, error)
	Close() error
}
