package backtest

import (
	"errors"
	"math"
	"time"

	"github.com/wonny/aegis-signal/internal/contracts"
)

// ErrNoPosition is returned when selling an instrument that is not held
var ErrNoPosition = errors.New("backtest: no position to sell")

// Position is one open holding
type Position struct {
	Instrument string
	Shares     float64
	CostBasis  float64 // including commission
}

// Costs are the execution frictions applied to every fill
type Costs struct {
	CommissionRate float64 // e.g. 0.0015 for 0.15%
	SlippageRate   float64 // e.g. 0.001 for 0.1%
	LotSize        float64 // shares are rounded down to a multiple; <= 0 means 1
}

// Simulator fills orders at the bar close with slippage and commission
// ⭐ SSOT: 백테스팅 체결 시뮬레이션은 여기서만
type Simulator struct {
	costs     Costs
	cash      float64
	positions map[string]*Position
	marks     map[string]float64
}

// NewSimulator creates a simulator holding only cash
func NewSimulator(capital float64, costs Costs) *Simulator {
	if costs.LotSize <= 0 {
		costs.LotSize = 1
	}
	return &Simulator{
		costs:     costs,
		cash:      capital,
		positions: make(map[string]*Position),
		marks:     make(map[string]float64),
	}
}

// Mark records the latest close used for valuation
func (s *Simulator) Mark(instrument string, price float64) {
	s.marks[instrument] = price
}

// Cash returns uninvested cash
func (s *Simulator) Cash() float64 { return s.cash }

// Position returns the open holding of instrument
func (s *Simulator) Position(instrument string) (*Position, bool) {
	p, ok := s.positions[instrument]
	return p, ok
}

// Equity is cash plus every position marked at its latest close
func (s *Simulator) Equity() float64 {
	equity := s.cash
	for inst, pos := range s.positions {
		px, ok := s.marks[inst]
		if !ok {
			equity += pos.CostBasis
			continue
		}
		equity += pos.Shares * px
	}
	return equity
}

// Buy spends up to targetValue on instrument. It returns nil when the budget does
// not cover one lot.
func (s *Simulator) Buy(instrument string, date time.Time, price, targetValue float64) *contracts.Trade {
	if price <= 0 || targetValue <= 0 {
		return nil
	}

	fill := price * (1 + s.costs.SlippageRate)
	unit := fill * (1 + s.costs.CommissionRate)

	budget := math.Min(targetValue, s.cash)
	shares := math.Floor(budget/unit/s.costs.LotSize) * s.costs.LotSize
	if shares <= 0 {
		return nil
	}

	value := shares * fill
	commission := value * s.costs.CommissionRate
	s.cash -= value + commission

	if pos, ok := s.positions[instrument]; ok {
		pos.Shares += shares
		pos.CostBasis += value + commission
	} else {
		s.positions[instrument] = &Position{Instrument: instrument, Shares: shares, CostBasis: value + commission}
	}
	s.marks[instrument] = price

	return &contracts.Trade{
		Instrument: instrument,
		Side:       contracts.SideBuy,
		Quantity:   shares,
		Price:      fill,
		Date:       date,
		Commission: commission,
	}
}

// Sell closes the whole position in instrument
func (s *Simulator) Sell(instrument string, date time.Time, price float64) (*contracts.Trade, error) {
	pos, ok := s.positions[instrument]
	if !ok {
		return nil, ErrNoPosition
	}

	fill := price * (1 - s.costs.SlippageRate)
	value := pos.Shares * fill
	commission := value * s.costs.CommissionRate

	s.cash += value - commission
	delete(s.positions, instrument)
	s.marks[instrument] = price

	return &contracts.Trade{
		Instrument: instrument,
		Side:       contracts.SideSell,
		Quantity:   pos.Shares,
		Price:      fill,
		Date:       date,
		Commission: commission,
	}, nil
}
