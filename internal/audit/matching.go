package audit

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wonny/aegis-signal/internal/contracts"
)

// MatchPolicy decides which open BUY lots a SELL closes
type MatchPolicy string

const (
	// MatchFIFO closes the oldest open lots first
	MatchFIFO MatchPolicy = "fifo"
	// MatchLIFO closes the newest open lots first
	MatchLIFO MatchPolicy = "lifo"
	// MatchSingleSlot keeps one pending BUY per instrument; a later BUY replaces it
	MatchSingleSlot MatchPolicy = "single_slot"
)

// ParseMatchPolicy accepts fifo, lifo and single_slot; empty means fifo
func ParseMatchPolicy(s string) (MatchPolicy, error) {
	switch MatchPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", MatchFIFO:
		return MatchFIFO, nil
	case MatchLIFO:
		return MatchLIFO, nil
	case MatchSingleSlot, "single", "slot":
		return MatchSingleSlot, nil
	}
	return "", fmt.Errorf("unknown match policy %q (want fifo|lifo|single_slot)", s)
}

// MatchedPair is one SELL together with the BUY quantity it closed
type MatchedPair struct {
	Instrument string    `json:"instrument"`
	BuyDate    time.Time `json:"buy_date"`
	SellDate   time.Time `json:"sell_date"`
	BuyPrice   float64   `json:"buy_price"` // quantity-weighted over the closed lots
	SellPrice  float64   `json:"sell_price"`
	Quantity   float64   `json:"quantity"`
	Profit     float64   `json:"profit"`
}

// Win reports a strictly positive profit
func (p MatchedPair) Win() bool { return p.Profit > 0 }

type lot struct {
	date     time.Time
	price    float64
	quantity float64
}

// MatchTrades pairs SELLs with open BUYs per instrument in trade-date order.
// SELLs with nothing open and trades failing Validate are ignored.
func MatchTrades(trades []contracts.Trade, policy MatchPolicy) []MatchedPair {
	ordered := make([]contracts.Trade, 0, len(trades))
	for _, t := range trades {
		if t.Validate() == nil {
			ordered = append(ordered, t)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Date.Before(ordered[j].Date) })

	if policy == MatchSingleSlot {
		return matchSingleSlot(ordered)
	}
	return matchLots(ordered, policy == MatchLIFO)
}

func matchSingleSlot(trades []contracts.Trade) []MatchedPair {
	pending := make(map[string]contracts.Trade)
	var pairs []MatchedPair

	for _, t := range trades {
		if t.Side == contracts.SideBuy {
			pending[t.Instrument] = t
			continue
		}

		buy, ok := pending[t.Instrument]
		if !ok {
			continue
		}
		delete(pending, t.Instrument)

		pairs = append(pairs, MatchedPair{
			Instrument: t.Instrument,
			BuyDate:    buy.Date,
			SellDate:   t.Date,
			BuyPrice:   buy.Price,
			SellPrice:  t.Price,
			Quantity:   t.Quantity,
			Profit:     (t.Price - buy.Price) * t.Quantity,
		})
	}
	return pairs
}

func matchLots(trades []contracts.Trade, lifo bool) []MatchedPair {
	open := make(map[string][]lot)
	var pairs []MatchedPair

	for _, t := range trades {
		if t.Side == contracts.SideBuy {
			open[t.Instrument] = append(open[t.Instrument], lot{date: t.Date, price: t.Price, quantity: t.Quantity})
			continue
		}

		lots := open[t.Instrument]
		remaining := t.Quantity
		var closed, cost, profit float64
		var first time.Time

		for remaining > 0 && len(lots) > 0 {
			i := 0
			if lifo {
				i = len(lots) - 1
			}

			q := lots[i].quantity
			if q > remaining {
				q = remaining
			}
			if closed == 0 {
				first = lots[i].date
			}

			closed += q
			cost += q * lots[i].price
			profit += q * (t.Price - lots[i].price)
			remaining -= q
			lots[i].quantity -= q

			if lots[i].quantity <= 0 {
				if lifo {
					lots = lots[:i]
				} else {
					lots = lots[1:]
				}
			}
		}
		open[t.Instrument] = lots

		if closed == 0 {
			continue
		}
		pairs = append(pairs, MatchedPair{
			Instrument: t.Instrument,
			BuyDate:    first,
			SellDate:   t.Date,
			BuyPrice:   cost / closed,
			SellPrice:  t.Price,
			Quantity:   closed,
			Profit:     profit,
		})
	}
	return pairs
}

// WinRate is wins / matched pairs, or 0 when nothing matched
func WinRate(trades []contracts.Trade, policy MatchPolicy) float64 {
	rate, _ := winStats(MatchTrades(trades, policy))
	return rate
}

func winStats(pairs []MatchedPair) (float64, int) {
	if len(pairs) == 0 {
		return 0, 0
	}
	wins := 0
	for _, p := range pairs {
		if p.Win() {
			wins++
		}
	}
	return float64(wins) / float64(len(pairs)), len(pairs)
}
