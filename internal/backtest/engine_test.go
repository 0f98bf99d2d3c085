package backtest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-signal/internal/audit"
	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/journal"
	"github.com/wonny/aegis-signal/internal/marketdata"
	"github.com/wonny/aegis-signal/internal/portfolio"
	"github.com/wonny/aegis-signal/internal/prediction"
	"github.com/wonny/aegis-signal/internal/selection"
	"github.com/wonny/aegis-signal/internal/signal"
)

func day(d int) time.Time { return time.Date(2024, 1, d, 15, 30, 0, 0, time.UTC) }

type scripted map[string]contracts.Action

func (s scripted) ComputeSignal(bar contracts.BarContext) contracts.Action {
	return s[bar.Instrument+"@"+bar.Session.Format("02")]
}

type fixedWeight float64

func (w fixedWeight) Weight(time.Time, string) float64 { return float64(w) }

func universe() marketdata.Universe {
	return marketdata.Group([]contracts.Bar{
		{Instrument: "A", Time: day(2), Close: 100},
		{Instrument: "A", Time: day(3), Close: 110},
		{Instrument: "A", Time: day(4), Close: 120},
		{Instrument: "B", Time: day(3), Close: 50},
		{Instrument: "B", Time: day(4), Close: 40},
	})
}

func newEngine(j contracts.Journal) *Engine {
	return NewEngine(audit.NewAnalyzer(audit.DefaultRiskFreeRate, audit.MatchFIFO, nil), j, nil)
}

func TestSimulator_BuySellWithCosts(t *testing.T) {
	sim := NewSimulator(10000, Costs{CommissionRate: 0.01, SlippageRate: 0.02, LotSize: 10})

	buy := sim.Buy("A", day(2), 100, 5000)
	require.NotNil(t, buy)
	// unit cost 102 * 1.01 = 103.02 -> 48 shares -> 40 after lot rounding
	assert.Equal(t, 40.0, buy.Quantity)
	assert.InDelta(t, 102, buy.Price, 1e-9)
	assert.InDelta(t, 40.8, buy.Commission, 1e-9)
	assert.InDelta(t, 10000-4080-40.8, sim.Cash(), 1e-9)

	sim.Mark("A", 110)
	assert.InDelta(t, sim.Cash()+40*110, sim.Equity(), 1e-9)

	sell, err := sim.Sell("A", day(3), 110)
	require.NoError(t, err)
	assert.Equal(t, 40.0, sell.Quantity)
	assert.InDelta(t, 107.8, sell.Price, 1e-9)
	assert.NoError(t, sell.Validate())

	_, err = sim.Sell("A", day(4), 110)
	assert.ErrorIs(t, err, ErrNoPosition)

	assert.Nil(t, sim.Buy("A", day(4), 100, 50), "budget below one lot")
}

func TestEngine_Run(t *testing.T) {
	computer := scripted{
		"A@02": contracts.ActionBuy,
		"A@03": contracts.ActionBuy, // already held
		"A@04": contracts.ActionSell,
		"B@03": contracts.ActionBuy,
	}

	res, err := newEngine(nil).Run(context.Background(), Config{
		RunID:          "run_test",
		StrategyName:   "scripted",
		InitialCapital: 10000,
		PositionPct:    0.5,
	}, universe(), computer, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Sessions)
	require.Len(t, res.Trades, 3)
	assert.Equal(t, contracts.SideBuy, res.Trades[0].Side)
	assert.Equal(t, 50.0, res.Trades[0].Quantity)
	assert.Equal(t, "B", res.Trades[1].Instrument)
	assert.Equal(t, contracts.SideSell, res.Trades[2].Side)

	require.Len(t, res.EquityCurve, 3)
	assert.InDelta(t, 10000, res.EquityCurve[0].Equity, 1e-9)
	assert.InDelta(t, 10500, res.EquityCurve[1].Equity, 1e-9)

	// A: +1000; B spent the remaining cash at 50 and is marked at 40
	b := res.Trades[1].Quantity
	assert.InDelta(t, 10000+1000-b*10, res.Report.FinalCapital, 1e-9)
	assert.Equal(t, 1.0, res.Report.WinRate)
	assert.Equal(t, 3, res.Report.TotalTrades)
	assert.Equal(t, "run_test", res.Report.RunID)
}

func TestEngine_Run_DateBoundsAndWeights(t *testing.T) {
	computer := scripted{"A@03": contracts.ActionBuy, "B@03": contracts.ActionBuy}

	res, err := newEngine(nil).Run(context.Background(), Config{
		InitialCapital: 10000,
		StartDate:      day(3),
		EndDate:        day(3),
	}, universe(), computer, fixedWeight(0.1))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Sessions)
	require.Len(t, res.Trades, 2)
	assert.Equal(t, 9.0, res.Trades[0].Quantity, "a tenth of 10000 at 110")

	zero, err := newEngine(nil).Run(context.Background(), Config{InitialCapital: 10000}, universe(), computer, fixedWeight(0))
	require.NoError(t, err)
	assert.Empty(t, zero.Trades)
}

func TestEngine_Run_Validation(t *testing.T) {
	_, err := newEngine(nil).Run(context.Background(), Config{}, universe(), scripted{}, nil)
	assert.Error(t, err)

	_, err = newEngine(nil).Run(context.Background(), Config{InitialCapital: 1}, universe(), scripted{}, nil)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = newEngine(nil).Run(ctx, Config{InitialCapital: 1, PositionPct: 1}, universe(), scripted{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_Run_Journal(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	computer := scripted{"A@02": contracts.ActionBuy, "A@04": contracts.ActionSell}
	res, err := newEngine(j).Run(context.Background(), Config{RunID: "run_j", InitialCapital: 10000, PositionPct: 1}, universe(), computer, nil)
	require.NoError(t, err)

	ctx := context.Background()
	trades, err := j.Trades(ctx, "run_j")
	require.NoError(t, err)
	assert.Equal(t, res.Trades, trades)

	curve, err := j.EquityCurve(ctx, "run_j")
	require.NoError(t, err)
	assert.Equal(t, res.EquityCurve, curve)

	replayed := audit.BuildReport(audit.Run{RunID: "run_j", InitialCapital: 10000, Curve: curve, Trades: trades}, audit.DefaultRiskFreeRate, audit.MatchFIFO)
	assert.Equal(t, res.Report.SharpeRatio, replayed.SharpeRatio)
}

// end to end: predictions -> signal engine -> pool weights -> host -> analytics
func TestEngine_Run_WithSignalEngine(t *testing.T) {
	var points []contracts.PredictionPoint
	scores := map[string][]float64{
		"A": {0.05, 0.04, -0.05},
		"B": {0.03, 0.01, 0.00},
		"C": {-0.01, -0.03, 0.06},
	}
	for i := 0; i < 3; i++ {
		for _, inst := range []string{"A", "B", "C"} {
			points = append(points, contracts.PredictionPoint{Date: day(2 + i), Instrument: inst, Score: scores[inst][i]})
		}
	}
	tbl, err := prediction.FromPoints(points)
	require.NoError(t, err)

	k := 2
	params, err := signal.NewParams(0.02, -0.02, &k)
	require.NoError(t, err)
	eng, err := signal.NewEngine(params, tbl, nil)
	require.NoError(t, err)

	sel, err := selection.NewSelector(tbl, k, nil)
	require.NoError(t, err)
	pool, err := portfolio.NewPool(sel, time.Time{}, time.Time{}, contracts.RebalanceDay, nil)
	require.NoError(t, err)

	bars := marketdata.Group([]contracts.Bar{
		{Instrument: "A", Time: day(2), Close: 10}, {Instrument: "A", Time: day(3), Close: 11}, {Instrument: "A", Time: day(4), Close: 12},
		{Instrument: "B", Time: day(2), Close: 20}, {Instrument: "B", Time: day(3), Close: 20}, {Instrument: "B", Time: day(4), Close: 20},
		{Instrument: "C", Time: day(2), Close: 30}, {Instrument: "C", Time: day(3), Close: 30}, {Instrument: "C", Time: day(4), Close: 33},
	})

	res, err := newEngine(nil).Run(context.Background(), Config{RunID: "run_e2e", InitialCapital: 1000}, bars, eng, pool)
	require.NoError(t, err)

	// day 2: A and B BUY; day 3: A BUY (held), B HOLD; day 4: A SELL (out of top-2 and below sell), C BUY
	var got []string
	for _, tr := range res.Trades {
		got = append(got, tr.Date.Format("02")+":"+tr.Instrument+":"+string(tr.Side))
	}
	assert.Equal(t, []string{"02:A:BUY", "02:B:BUY", "04:A:SELL", "04:C:BUY"}, got)
	assert.Equal(t, 1.0, res.Report.WinRate)
	assert.Greater(t, res.Report.TotalReturn, 0.0)
}
