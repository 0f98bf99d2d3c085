package contracts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateOf(t *testing.T) {
	kst := time.FixedZone("KST", 9*3600)
	// 2024-01-02 08:00 KST is 2024-01-01 23:00 UTC; the local calendar date wins
	got := DateOf(time.Date(2024, 1, 2, 8, 0, 0, 0, kst))
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), got)

	a := DateOf(time.Date(2024, 1, 2, 15, 30, 0, 0, time.UTC))
	b := DateOf(time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC))
	m := map[time.Time]int{a: 1}
	assert.Equal(t, 1, m[b], "normalized dates must be usable as map keys")
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-03-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("15/03/2024")
	assert.Error(t, err)
}

func TestAction_Emits(t *testing.T) {
	assert.True(t, ActionBuy.Emits())
	assert.True(t, ActionSell.Emits())
	assert.False(t, ActionHold.Emits())
	assert.False(t, ActionNone.Emits())
	assert.Equal(t, "NONE", ActionNone.String())
	assert.Equal(t, "HOLD", ActionHold.String())
}

func TestTrade_Validate(t *testing.T) {
	ok := Trade{Instrument: "sh600000", Side: SideBuy, Quantity: 100, Price: 10, Commission: 0}
	assert.NoError(t, ok.Validate())
	assert.Equal(t, 1000.0, ok.Value())

	tests := []struct {
		name  string
		trade Trade
	}{
		{"empty instrument", Trade{Side: SideBuy, Quantity: 1, Price: 1}},
		{"bad side", Trade{Instrument: "a", Side: "SHORT", Quantity: 1, Price: 1}},
		{"zero quantity", Trade{Instrument: "a", Side: SideSell, Quantity: 0, Price: 1}},
		{"zero price", Trade{Instrument: "a", Side: SideSell, Quantity: 1, Price: 0}},
		{"negative commission", Trade{Instrument: "a", Side: SideSell, Quantity: 1, Price: 1, Commission: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.trade.Validate())
		})
	}
}

func TestParseRebalancePeriod(t *testing.T) {
	for in, want := range map[string]RebalancePeriod{
		"day": RebalanceDay, "W": RebalanceWeek, "Monthly": RebalanceMonth,
	} {
		got, err := ParseRebalancePeriod(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseRebalancePeriod("quarter")
	assert.Error(t, err)
}

func TestTargetPortfolio(t *testing.T) {
	tp := &TargetPortfolio{Positions: []TargetPosition{
		{Code: "005930", Weight: 0.5},
		{Code: "000660", Weight: 0.25},
	}}
	assert.InDelta(t, 0.75, tp.TotalWeight(), 1e-12)

	pos, ok := tp.GetPosition("000660")
	require.True(t, ok)
	assert.Equal(t, 0.25, pos.Weight)

	_, ok = tp.GetPosition("999999")
	assert.False(t, ok)
}

func TestEquities(t *testing.T) {
	curve := []EquityPoint{{Equity: 1}, {Equity: 2}}
	assert.Equal(t, []float64{1, 2}, Equities(curve))
}
