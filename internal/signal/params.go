// Package signal turns prediction scores and Top-K membership into BUY/SELL/HOLD decisions.
package signal

import (
	"errors"
	"fmt"

	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/selection"
)

var (
	// ErrInvalidThresholds is returned when buy_threshold <= sell_threshold
	ErrInvalidThresholds = errors.New("signal: buy_threshold must be greater than sell_threshold")
	// ErrInvalidTopK is returned when an explicit top_k is not positive
	ErrInvalidTopK = errors.New("signal: top_k must be positive")
)

// Params is the immutable decision configuration. TopK = selection.Unlimited means every
// instrument is eligible.
type Params struct {
	BuyThreshold  float64
	SellThreshold float64
	TopK          int
}

// NewParams validates thresholds and a nullable top_k (nil = unlimited)
func NewParams(buy, sell float64, topK *int) (Params, error) {
	p := Params{BuyThreshold: buy, SellThreshold: sell, TopK: selection.Unlimited}
	if topK != nil {
		if *topK <= 0 {
			return Params{}, fmt.Errorf("%w: got %d", ErrInvalidTopK, *topK)
		}
		p.TopK = *topK
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Validate checks the threshold ordering and K
func (p Params) Validate() error {
	if p.BuyThreshold <= p.SellThreshold {
		return fmt.Errorf("%w: buy=%v sell=%v", ErrInvalidThresholds, p.BuyThreshold, p.SellThreshold)
	}
	if p.TopK < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidTopK, p.TopK)
	}
	return nil
}

// Decide is the per-(instrument, date) state machine.
//
//	no score              -> NONE
//	in Top-K:  > buy      -> BUY
//	           < sell     -> SELL
//	           otherwise  -> HOLD
//	outside:   < sell     -> SELL (exits stay open after losing eligibility)
//	           otherwise  -> NONE
func Decide(p Params, score float64, hasScore, inTopK bool) contracts.Action {
	if !hasScore {
		return contracts.ActionNone
	}

	if inTopK {
		switch {
		case score > p.BuyThreshold:
			return contracts.ActionBuy
		case score < p.SellThreshold:
			return contracts.ActionSell
		default:
			return contracts.ActionHold
		}
	}

	if score < p.SellThreshold {
		return contracts.ActionSell
	}
	return contracts.ActionNone
}
