// Package portfolio builds the rebalance-cadence Top-K pool and answers target-weight queries.
package portfolio

import (
	"errors"
	"fmt"
	"time"

	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/selection"
	"github.com/wonny/aegis-signal/pkg/logger"
)

// ErrUnknownPeriod is returned for a rebalance period other than day/week/month
var ErrUnknownPeriod = errors.New("portfolio: unknown rebalance period")

// PoolEntry is one rebalance date and its selection
type PoolEntry struct {
	Date time.Time
	Set  *selection.TopKSet
}

// Pool is the eagerly computed Top-K pool over a date range
// ⭐ SSOT: 리밸런싱 풀 / 목표 비중은 여기서만
type Pool struct {
	period  contracts.RebalancePeriod
	k       int
	entries []PoolEntry
	sets    map[time.Time]*selection.TopKSet
	// every calendar day from the first rebalance date to the range end -> governing rebalance date
	governing map[time.Time]time.Time
}

var _ contracts.WeightProvider = (*Pool)(nil)

// periodKey buckets a date into its day, ISO week or calendar month
func periodKey(d time.Time, period contracts.RebalancePeriod) (int, int, error) {
	switch period {
	case contracts.RebalanceDay:
		return d.Year(), d.YearDay(), nil
	case contracts.RebalanceWeek:
		y, w := d.ISOWeek()
		return y, w, nil
	case contracts.RebalanceMonth:
		return d.Year(), int(d.Month()), nil
	}
	return 0, 0, fmt.Errorf("%w: %q", ErrUnknownPeriod, period)
}

// RebalanceDates keeps the first date of every period bucket. dates must be increasing.
func RebalanceDates(dates []time.Time, period contracts.RebalancePeriod) ([]time.Time, error) {
	if _, _, err := periodKey(time.Time{}, period); err != nil {
		return nil, err
	}

	out := make([]time.Time, 0, len(dates))
	var lastA, lastB int
	for i, d := range dates {
		a, b, _ := periodKey(d, period)
		if i == 0 || a != lastA || b != lastB {
			out = append(out, contracts.DateOf(d))
		}
		lastA, lastB = a, b
	}
	return out, nil
}

// NewPool enumerates rebalance dates over the selector's prediction dates in [from, to]
// and computes every selection up front. Zero bounds are open.
func NewPool(sel *selection.Selector, from, to time.Time, period contracts.RebalancePeriod, log *logger.Logger) (*Pool, error) {
	if log == nil {
		log = logger.Nop()
	}

	dates := sel.Table().DatesBetween(from, to)
	rebalance, err := RebalanceDates(dates, period)
	if err != nil {
		return nil, err
	}

	p := &Pool{
		period:    period,
		k:         sel.K(),
		entries:   make([]PoolEntry, 0, len(rebalance)),
		sets:      make(map[time.Time]*selection.TopKSet, len(rebalance)),
		governing: make(map[time.Time]time.Time),
	}

	for _, d := range rebalance {
		set := sel.TopK(d)
		p.entries = append(p.entries, PoolEntry{Date: d, Set: set})
		p.sets[d] = set
	}

	if len(rebalance) > 0 {
		end := dates[len(dates)-1]
		if !to.IsZero() && contracts.DateOf(to).After(end) {
			end = contracts.DateOf(to)
		}

		next := 1
		current := rebalance[0]
		for d := rebalance[0]; !d.After(end); d = d.AddDate(0, 0, 1) {
			if next < len(rebalance) && !d.Before(rebalance[next]) {
				current = rebalance[next]
				next++
			}
			p.governing[d] = current
		}
	}

	log.Component("portfolio").WithFields(map[string]interface{}{
		"period":          string(period),
		"top_k":           p.k,
		"rebalance_dates": len(rebalance),
		"prediction_days": len(dates),
	}).Info("Pool built")

	return p, nil
}

// Period returns the rebalance cadence
func (p *Pool) Period() contracts.RebalancePeriod { return p.period }

// Get returns the ordered rebalance date -> selection mapping
func (p *Pool) Get() []PoolEntry {
	out := make([]PoolEntry, len(p.entries))
	copy(out, p.entries)
	return out
}

// RebalanceDates lists the pool's rebalance dates in order
func (p *Pool) RebalanceDates() []time.Time {
	out := make([]time.Time, len(p.entries))
	for i, e := range p.entries {
		out[i] = e.Date
	}
	return out
}

// SetFor returns the selection governing date and its rebalance date
func (p *Pool) SetFor(date time.Time) (*selection.TopKSet, time.Time, bool) {
	rd, ok := p.governing[contracts.DateOf(date)]
	if !ok {
		return nil, time.Time{}, false
	}
	return p.sets[rd], rd, true
}

// Weight is 1/K for a member of the governing selection, else 0.
// An unlimited pool splits equally across the scored members.
func (p *Pool) Weight(date time.Time, code string) float64 {
	set, _, ok := p.SetFor(date)
	if !ok {
		return 0
	}
	return weightOf(set, code)
}

func weightOf(set *selection.TopKSet, code string) float64 {
	if _, member := set.Rank(code); !member {
		return 0
	}
	if set.K > selection.Unlimited {
		return 1 / float64(set.K)
	}
	return 1 / float64(set.Len())
}

// Target converts the selection governing date into an equal-weight target
func (p *Pool) Target(date time.Time) (*contracts.TargetPortfolio, bool) {
	set, rd, ok := p.SetFor(date)
	if !ok {
		return nil, false
	}
	return p.target(rd, set), true
}

// Targets converts every rebalance date into a target portfolio
func (p *Pool) Targets() []contracts.TargetPortfolio {
	out := make([]contracts.TargetPortfolio, len(p.entries))
	for i, e := range p.entries {
		out[i] = *p.target(e.Date, e.Set)
	}
	return out
}

func (p *Pool) target(date time.Time, set *selection.TopKSet) *contracts.TargetPortfolio {
	target := &contracts.TargetPortfolio{
		Date:      date,
		Period:    p.period,
		Positions: make([]contracts.TargetPosition, 0, set.Len()),
	}
	for _, m := range set.Members {
		target.Positions = append(target.Positions, contracts.TargetPosition{
			Code:   m.Code,
			Rank:   m.Rank,
			Score:  m.Score,
			Weight: weightOf(set, m.Code),
		})
	}

	target.Cash = 1 - target.TotalWeight()
	if target.Cash < 1e-12 {
		target.Cash = 0
	}
	return target
}
