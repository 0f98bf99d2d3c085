package contracts

import (
	"fmt"
	"strings"
	"time"
)

// RebalancePeriod is the cadence at which the eligible pool is recomputed
type RebalancePeriod string

const (
	RebalanceDay   RebalancePeriod = "day"
	RebalanceWeek  RebalancePeriod = "week"
	RebalanceMonth RebalancePeriod = "month"
)

// ParseRebalancePeriod accepts day/week/month (case-insensitive, D/W/M shorthands allowed)
func ParseRebalancePeriod(s string) (RebalancePeriod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day", "daily", "d":
		return RebalanceDay, nil
	case "week", "weekly", "w":
		return RebalanceWeek, nil
	case "month", "monthly", "m":
		return RebalanceMonth, nil
	}
	return "", fmt.Errorf("unknown rebalance period %q (want day|week|month)", s)
}

// TargetPortfolio is the equal-weight target for one rebalance date
// ⭐ SSOT: 풀 → 목표 비중 전달
type TargetPortfolio struct {
	Date      time.Time        `json:"date"`
	Period    RebalancePeriod  `json:"period"`
	Positions []TargetPosition `json:"positions"`
	Cash      float64          `json:"cash"` // weight left unallocated
}

// TargetPosition is one instrument's target weight
type TargetPosition struct {
	Code   string  `json:"code"`
	Rank   int     `json:"rank"`
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
}

// TotalWeight returns the sum of all position weights
func (tp *TargetPortfolio) TotalWeight() float64 {
	total := 0.0
	for _, pos := range tp.Positions {
		total += pos.Weight
	}
	return total
}

// GetPosition returns the position for a code
func (tp *TargetPortfolio) GetPosition(code string) (*TargetPosition, bool) {
	for i := range tp.Positions {
		if tp.Positions[i].Code == code {
			return &tp.Positions[i], true
		}
	}
	return nil, false
}
