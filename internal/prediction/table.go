// Package prediction ingests the externally produced (date, instrument, score) table
// and exposes it date-major for ranking and per instrument for signal decisions.
package prediction

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/aegis-signal/internal/contracts"
)

var (
	// ErrMalformedIndex is returned when the table is not indexed by exactly (date, instrument)
	ErrMalformedIndex = errors.New("prediction: malformed index")
	// ErrDuplicateKey is returned when a (date, instrument) pair appears twice
	ErrDuplicateKey = errors.New("prediction: duplicate (date, instrument)")
)

// IndexOrder is the level order of the ingested table
type IndexOrder int

const (
	DateMajor IndexOrder = iota
	InstrumentMajor
)

func (o IndexOrder) String() string {
	if o == InstrumentMajor {
		return "instrument-major"
	}
	return "date-major"
}

var (
	dateLevelNames       = []string{"datetime", "date", "session_date", "pred_date", "trade_date"}
	instrumentLevelNames = []string{"instrument", "instrument_id", "code", "stock_code", "symbol"}
	dateLayouts          = []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339, "20060102"}
)

// RawRow is one row as read from a source, index keys in IndexNames order
type RawRow struct {
	Keys  []string
	Score float64
}

// RawTable is an unvalidated prediction table
type RawTable struct {
	IndexNames []string
	Rows       []RawRow
}

// Entry is one instrument score inside a date slice. Row is the position in the
// ingested table and is the tie-break order for ranking.
type Entry struct {
	Instrument string
	Score      float64
	Row        int
}

// Table is the normalized, immutable prediction table
type Table struct {
	order       IndexOrder
	dates       []time.Time
	slices      map[time.Time][]Entry
	series      map[string]*Series
	instruments []string
	rows        int
	skipped     int
	fingerprint string
}

// NewTable validates raw and normalizes it to date-major.
// Rows with a non-finite score are skipped and counted in Skipped.
func NewTable(raw RawTable) (*Table, error) {
	dateLevel, instLevel, err := resolveLevels(raw.IndexNames)
	if err != nil {
		return nil, err
	}

	t := &Table{
		slices: make(map[time.Time][]Entry),
		series: make(map[string]*Series),
	}
	if dateLevel == 1 {
		t.order = InstrumentMajor
	}

	seen := make(map[string]map[time.Time]struct{})

	for i, row := range raw.Rows {
		if len(row.Keys) != 2 {
			return nil, fmt.Errorf("%w: row %d has %d index keys, want 2", ErrMalformedIndex, i, len(row.Keys))
		}

		date, err := parseDate(row.Keys[dateLevel])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedIndex, i, err)
		}

		inst := strings.TrimSpace(row.Keys[instLevel])
		if inst == "" {
			return nil, fmt.Errorf("%w: row %d: empty instrument", ErrMalformedIndex, i)
		}

		if math.IsNaN(row.Score) || math.IsInf(row.Score, 0) {
			t.skipped++
			continue
		}

		if seen[inst] == nil {
			seen[inst] = make(map[time.Time]struct{})
			t.instruments = append(t.instruments, inst)
		}
		if _, dup := seen[inst][date]; dup {
			return nil, fmt.Errorf("%w: %s on %s (row %d)", ErrDuplicateKey, inst, date.Format(contracts.DateLayout), i)
		}
		seen[inst][date] = struct{}{}

		if _, ok := t.slices[date]; !ok {
			t.dates = append(t.dates, date)
		}
		t.slices[date] = append(t.slices[date], Entry{Instrument: inst, Score: row.Score, Row: i})

		s, ok := t.series[inst]
		if !ok {
			s = newSeries(inst)
			t.series[inst] = s
		}
		s.add(date, row.Score)

		t.rows++
	}

	sort.Slice(t.dates, func(i, j int) bool { return t.dates[i].Before(t.dates[j]) })
	for _, s := range t.series {
		s.seal()
	}
	t.fingerprint = t.computeFingerprint()

	return t, nil
}

// FromPoints builds a date-major table from points in the given order
func FromPoints(points []contracts.PredictionPoint) (*Table, error) {
	raw := RawTable{IndexNames: []string{"datetime", "instrument"}, Rows: make([]RawRow, len(points))}
	for i, p := range points {
		raw.Rows[i] = RawRow{
			Keys:  []string{p.Date.Format(contracts.DateLayout), p.Instrument},
			Score: p.Score,
		}
	}
	return NewTable(raw)
}

func resolveLevels(names []string) (dateLevel, instLevel int, err error) {
	if len(names) != 2 {
		return 0, 0, fmt.Errorf("%w: want 2 index levels (date, instrument), got %d %v", ErrMalformedIndex, len(names), names)
	}

	dateLevel, instLevel = -1, -1
	for i, name := range names {
		n := strings.ToLower(strings.TrimSpace(name))
		switch {
		case contains(dateLevelNames, n):
			dateLevel = i
		case contains(instrumentLevelNames, n):
			instLevel = i
		}
	}

	if dateLevel < 0 || instLevel < 0 {
		return 0, 0, fmt.Errorf("%w: index levels %v must name one date level %v and one instrument level %v",
			ErrMalformedIndex, names, dateLevelNames, instrumentLevelNames)
	}
	return dateLevel, instLevel, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return contracts.DateOf(t), nil
		}
	}
	// unix milliseconds, as written by parquet timestamp columns
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && len(s) > 8 {
		return contracts.DateOf(time.UnixMilli(ms).UTC()), nil
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

func (t *Table) computeFingerprint() string {
	h := sha256.New()
	for _, d := range t.dates {
		for _, e := range t.slices[d] {
			fmt.Fprintf(h, "%s|%s|%s\n", d.Format(contracts.DateLayout), e.Instrument,
				strconv.FormatFloat(e.Score, 'g', -1, 64))
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Order is the index order the table was ingested in
func (t *Table) Order() IndexOrder { return t.order }

// Dates returns every prediction date in increasing order
func (t *Table) Dates() []time.Time {
	out := make([]time.Time, len(t.dates))
	copy(out, t.dates)
	return out
}

// DatesBetween returns prediction dates within [from, to]; zero bounds are open
func (t *Table) DatesBetween(from, to time.Time) []time.Time {
	out := make([]time.Time, 0, len(t.dates))
	for _, d := range t.dates {
		if !from.IsZero() && d.Before(contracts.DateOf(from)) {
			continue
		}
		if !to.IsZero() && d.After(contracts.DateOf(to)) {
			break
		}
		out = append(out, d)
	}
	return out
}

// Slice returns the entries of one date in table order. Callers must not modify it.
func (t *Table) Slice(date time.Time) []Entry {
	return t.slices[contracts.DateOf(date)]
}

// Series returns the per-instrument score series
func (t *Table) Series(instrument string) (*Series, bool) {
	s, ok := t.series[instrument]
	return s, ok
}

// Instruments lists instruments in first-appearance order
func (t *Table) Instruments() []string {
	out := make([]string, len(t.instruments))
	copy(out, t.instruments)
	return out
}

// Score looks up one (instrument, date) score
func (t *Table) Score(instrument string, date time.Time) (float64, bool) {
	s, ok := t.series[instrument]
	if !ok {
		return 0, false
	}
	return s.Score(date)
}

// Len is the number of ingested rows
func (t *Table) Len() int { return t.rows }

// Skipped is the number of rows dropped for a non-finite score
func (t *Table) Skipped() int { return t.skipped }

// Fingerprint is a content hash identifying this table in caches and snapshots
func (t *Table) Fingerprint() string { return t.fingerprint }
