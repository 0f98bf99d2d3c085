package contracts

import (
	"fmt"
	"time"
)

// Side is the direction of an executed trade
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Trade is one fill reported by the execution host
type Trade struct {
	Instrument string    `json:"instrument"`
	Side       Side      `json:"side"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	Date       time.Time `json:"trade_date"`
	Commission float64   `json:"commission"`
}

// Validate checks the structural invariants of a fill
func (t Trade) Validate() error {
	if t.Instrument == "" {
		return fmt.Errorf("trade: empty instrument")
	}
	if t.Side != SideBuy && t.Side != SideSell {
		return fmt.Errorf("trade %s: unknown side %q", t.Instrument, t.Side)
	}
	if t.Quantity <= 0 {
		return fmt.Errorf("trade %s: quantity must be > 0, got %v", t.Instrument, t.Quantity)
	}
	if t.Price <= 0 {
		return fmt.Errorf("trade %s: price must be > 0, got %v", t.Instrument, t.Price)
	}
	if t.Commission < 0 {
		return fmt.Errorf("trade %s: commission must be >= 0, got %v", t.Instrument, t.Commission)
	}
	return nil
}

// Value is quantity times price, before commission
func (t Trade) Value() float64 {
	return t.Quantity * t.Price
}

// EquityPoint is one account-value sample of the equity curve
type EquityPoint struct {
	Date   time.Time `json:"date"`
	Equity float64   `json:"equity"`
}

// Equities extracts the value column of a curve
func Equities(curve []EquityPoint) []float64 {
	values := make([]float64, len(curve))
	for i, p := range curve {
		values[i] = p.Equity
	}
	return values
}

// Bar is one price session of an instrument as seen by the execution host
type Bar struct {
	Instrument string    `json:"instrument"`
	Time       time.Time `json:"time"`
	Close      float64   `json:"close"`
}
