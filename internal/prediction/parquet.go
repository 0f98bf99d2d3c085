package prediction

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/wonny/aegis-signal/internal/contracts"
)

// ParquetRow is the on-disk layout of a date-major prediction file
type ParquetRow struct {
	Datetime   int64   `parquet:"datetime,timestamp(millisecond)"` // Unix ms
	Instrument string  `parquet:"instrument"`
	Score      float64 `parquet:"score"`
}

// ReadParquet loads a prediction parquet file in row order
func ReadParquet(path string) (RawTable, error) {
	rows, err := parquet.ReadFile[ParquetRow](path)
	if err != nil {
		return RawTable{}, fmt.Errorf("read parquet %s: %w", path, err)
	}

	raw := RawTable{IndexNames: []string{"datetime", "instrument"}, Rows: make([]RawRow, len(rows))}
	for i, r := range rows {
		raw.Rows[i] = RawRow{
			Keys:  []string{strconv.FormatInt(r.Datetime, 10), r.Instrument},
			Score: r.Score,
		}
	}
	return raw, nil
}

// WriteParquet writes points in the given order
func WriteParquet(path string, points []contracts.PredictionPoint) error {
	rows := make([]ParquetRow, len(points))
	for i, p := range points {
		rows[i] = ParquetRow{
			Datetime:   contracts.DateOf(p.Date).UnixMilli(),
			Instrument: p.Instrument,
			Score:      p.Score,
		}
	}
	return parquet.WriteFile(path, rows)
}

// LoadParquet opens path and builds a Table from it
func LoadParquet(path string) (*Table, error) {
	raw, err := ReadParquet(path)
	if err != nil {
		return nil, err
	}
	return NewTable(raw)
}

// LoadFile dispatches on the file extension
func LoadFile(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(path)
	case ".parquet", ".pq":
		return LoadParquet(path)
	default:
		return nil, fmt.Errorf("unsupported prediction file %q (want .csv or .parquet)", path)
	}
}

// Points flattens the table back to date-major points
func (t *Table) Points() []contracts.PredictionPoint {
	out := make([]contracts.PredictionPoint, 0, t.rows)
	for _, d := range t.dates {
		for _, e := range t.slices[d] {
			out = append(out, contracts.PredictionPoint{Date: d, Instrument: e.Instrument, Score: e.Score})
		}
	}
	return out
}

func nan() float64 { return math.NaN() }

