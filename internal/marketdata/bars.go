// Package marketdata loads per-instrument price sessions for the replay host and the calendar.
package marketdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/wonny/aegis-signal/internal/calendar"
	"github.com/wonny/aegis-signal/internal/contracts"
)

// Series is one instrument's bars in time order
type Series struct {
	Instrument string
	Bars       []contracts.Bar
}

// Sessions returns the bar timestamps
func (s *Series) Sessions() []time.Time {
	out := make([]time.Time, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Time
	}
	return out
}

// Version is the calendar token of the current bars
func (s *Series) Version() string {
	return calendar.VersionOf(s.Sessions())
}

// Universe maps instrument -> series
type Universe map[string]*Series

// Instruments lists instruments sorted by id
func (u Universe) Instruments() []string {
	out := make([]string, 0, len(u))
	for inst := range u {
		out = append(out, inst)
	}
	sort.Strings(out)
	return out
}

// Group splits bars per instrument and sorts each series by time
func Group(bars []contracts.Bar) Universe {
	u := make(Universe)
	for _, b := range bars {
		s, ok := u[b.Instrument]
		if !ok {
			s = &Series{Instrument: b.Instrument}
			u[b.Instrument] = s
		}
		s.Bars = append(s.Bars, b)
	}
	for _, s := range u {
		sort.SliceStable(s.Bars, func(i, j int) bool { return s.Bars[i].Time.Before(s.Bars[j].Time) })
	}
	return u
}

var (
	instrumentColumns = []string{"instrument", "code", "stock_code", "symbol"}
	timeColumns       = []string{"datetime", "date", "time", "timestamp"}
	timeLayouts       = []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339}
)

func column(header []string, names []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, n := range names {
			if h == n {
				return i
			}
		}
	}
	return -1
}

// ReadCSV reads instrument,datetime,close rows (column order free, extra columns ignored)
func ReadCSV(r io.Reader) ([]contracts.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read bars header: %w", err)
	}

	instCol := column(header, instrumentColumns)
	timeCol := column(header, timeColumns)
	closeCol := column(header, []string{"close", "adj_close", "price"})
	if instCol < 0 || timeCol < 0 || closeCol < 0 {
		return nil, fmt.Errorf("bars header %v needs instrument, datetime and close columns", header)
	}

	var bars []contracts.Bar
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read bars line %d: %w", line, err)
		}

		ts, err := parseTime(rec[timeCol])
		if err != nil {
			return nil, fmt.Errorf("bars line %d: %w", line, err)
		}
		px, err := strconv.ParseFloat(strings.TrimSpace(rec[closeCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("bars line %d: invalid close %q", line, rec[closeCol])
		}

		bars = append(bars, contracts.Bar{Instrument: strings.TrimSpace(rec[instCol]), Time: ts, Close: px})
	}

	return bars, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable time %q", s)
}

// BarRow is the parquet layout of a bar file
type BarRow struct {
	Instrument string  `parquet:"instrument"`
	Timestamp  int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Close      float64 `parquet:"close"`
}

// ReadParquet loads every bar in the file
func ReadParquet(path string) ([]contracts.Bar, error) {
	rows, err := parquet.ReadFile[BarRow](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	bars := make([]contracts.Bar, len(rows))
	for i, r := range rows {
		bars[i] = contracts.Bar{Instrument: r.Instrument, Time: time.UnixMilli(r.Timestamp).UTC(), Close: r.Close}
	}
	return bars, nil
}

// WriteParquet writes bars in the given order
func WriteParquet(path string, bars []contracts.Bar) error {
	rows := make([]BarRow, len(bars))
	for i, b := range bars {
		rows[i] = BarRow{Instrument: b.Instrument, Timestamp: b.Time.UnixMilli(), Close: b.Close}
	}
	return parquet.WriteFile(path, rows)
}

// LoadFile reads a .csv or .parquet bar file and groups it per instrument
func LoadFile(path string) (Universe, error) {
	var (
		bars []contracts.Bar
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, openErr := os.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("open bars: %w", openErr)
		}
		defer f.Close()
		bars, err = ReadCSV(f)
	case ".parquet", ".pq":
		bars, err = ReadParquet(path)
	default:
		return nil, fmt.Errorf("unsupported bar file %q (want .csv or .parquet)", path)
	}
	if err != nil {
		return nil, err
	}

	return Group(bars), nil
}
