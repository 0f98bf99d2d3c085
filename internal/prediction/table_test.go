package prediction

import (
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-signal/internal/contracts"
)

func day(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

func TestNewTable_DateMajor(t *testing.T) {
	raw := RawTable{
		IndexNames: []string{"datetime", "instrument"},
		Rows: []RawRow{
			{Keys: []string{"2024-01-02", "B"}, Score: 0.2},
			{Keys: []string{"2024-01-02", "A"}, Score: 0.1},
			{Keys: []string{"2024-01-03", "A"}, Score: 0.3},
		},
	}

	tbl, err := NewTable(raw)
	require.NoError(t, err)

	assert.Equal(t, DateMajor, tbl.Order())
	assert.Equal(t, []time.Time{day(2), day(3)}, tbl.Dates())
	assert.Equal(t, 3, tbl.Len())

	slice := tbl.Slice(day(2))
	require.Len(t, slice, 2)
	assert.Equal(t, "B", slice[0].Instrument)
	assert.Equal(t, "A", slice[1].Instrument)

	score, ok := tbl.Score("A", day(3))
	require.True(t, ok)
	assert.Equal(t, 0.3, score)

	_, ok = tbl.Score("B", day(3))
	assert.False(t, ok)
	assert.Equal(t, []string{"B", "A"}, tbl.Instruments())
}

func TestNewTable_InstrumentMajorNormalized(t *testing.T) {
	instMajor := RawTable{
		IndexNames: []string{"instrument", "datetime"},
		Rows: []RawRow{
			{Keys: []string{"A", "2024-01-03"}, Score: 0.3},
			{Keys: []string{"A", "2024-01-02"}, Score: 0.1},
			{Keys: []string{"B", "2024-01-02"}, Score: 0.2},
		},
	}

	tbl, err := NewTable(instMajor)
	require.NoError(t, err)

	assert.Equal(t, InstrumentMajor, tbl.Order())
	assert.Equal(t, []time.Time{day(2), day(3)}, tbl.Dates())

	slice := tbl.Slice(day(2))
	require.Len(t, slice, 2)
	assert.Equal(t, "A", slice[0].Instrument, "original row order is kept within a date")
	assert.Equal(t, "B", slice[1].Instrument)

	s, ok := tbl.Series("A")
	require.True(t, ok)
	assert.Equal(t, []time.Time{day(2), day(3)}, s.Dates())
}

func TestNewTable_SameContentSameFingerprint(t *testing.T) {
	a, err := FromPoints([]contracts.PredictionPoint{
		{Date: day(2), Instrument: "A", Score: 1},
		{Date: day(2), Instrument: "B", Score: 2},
	})
	require.NoError(t, err)
	b, err := NewTable(RawTable{
		IndexNames: []string{"code", "date"},
		Rows: []RawRow{
			{Keys: []string{"A", "2024-01-02"}, Score: 1},
			{Keys: []string{"B", "2024-01-02"}, Score: 2},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	c, err := FromPoints([]contracts.PredictionPoint{{Date: day(2), Instrument: "A", Score: 1.5}})
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestNewTable_MalformedIndex(t *testing.T) {
	tests := []struct {
		name  string
		names []string
	}{
		{"single level", []string{"datetime"}},
		{"three levels", []string{"datetime", "instrument", "field"}},
		{"no date level", []string{"instrument", "code"}},
		{"unknown names", []string{"foo", "bar"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(RawTable{IndexNames: tt.names})
			assert.True(t, errors.Is(err, ErrMalformedIndex), "got %v", err)
		})
	}
}

func TestNewTable_BadRows(t *testing.T) {
	names := []string{"datetime", "instrument"}

	_, err := NewTable(RawTable{IndexNames: names, Rows: []RawRow{{Keys: []string{"not-a-date", "A"}}}})
	assert.True(t, errors.Is(err, ErrMalformedIndex))

	_, err = NewTable(RawTable{IndexNames: names, Rows: []RawRow{{Keys: []string{"2024-01-02", " "}}}})
	assert.True(t, errors.Is(err, ErrMalformedIndex))

	_, err = NewTable(RawTable{IndexNames: names, Rows: []RawRow{{Keys: []string{"2024-01-02"}}}})
	assert.True(t, errors.Is(err, ErrMalformedIndex))

	_, err = NewTable(RawTable{IndexNames: names, Rows: []RawRow{
		{Keys: []string{"2024-01-02", "A"}, Score: 1},
		{Keys: []string{"2024-01-02", "A"}, Score: 2},
	}})
	assert.True(t, errors.Is(err, ErrDuplicateKey))
}

func TestNewTable_SkipsNonFinite(t *testing.T) {
	tbl, err := NewTable(RawTable{
		IndexNames: []string{"datetime", "instrument"},
		Rows: []RawRow{
			{Keys: []string{"2024-01-02", "A"}, Score: math.NaN()},
			{Keys: []string{"2024-01-02", "B"}, Score: math.Inf(1)},
			{Keys: []string{"2024-01-02", "C"}, Score: 0.5},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, tbl.Len())
	assert.Equal(t, 2, tbl.Skipped())
	_, ok := tbl.Score("A", day(2))
	assert.False(t, ok)
}

func TestTable_DatesBetween(t *testing.T) {
	tbl, err := FromPoints([]contracts.PredictionPoint{
		{Date: day(2), Instrument: "A", Score: 1},
		{Date: day(3), Instrument: "A", Score: 1},
		{Date: day(4), Instrument: "A", Score: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, []time.Time{day(3), day(4)}, tbl.DatesBetween(day(3), time.Time{}))
	assert.Equal(t, []time.Time{day(2), day(3)}, tbl.DatesBetween(time.Time{}, day(3)))
	assert.Empty(t, tbl.DatesBetween(day(5), day(9)))
}

func TestReadCSV(t *testing.T) {
	in := "datetime,instrument,score\n2024-01-02,A,0.5\n2024-01-02,B,\n2024-01-03,A,-0.1\n"

	raw, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"datetime", "instrument"}, raw.IndexNames)
	require.Len(t, raw.Rows, 3)

	tbl, err := NewTable(raw)
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, 1, tbl.Skipped())
}

// Excel exports prefix the header with a byte-order mark
func TestReadCSV_ByteOrderMark(t *testing.T) {
	in := "\uFEFFdatetime,instrument,score\n2024-01-02,A,0.5\n"

	raw, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"datetime", "instrument"}, raw.IndexNames)

	tbl, err := NewTable(raw)
	require.NoError(t, err)
	score, ok := tbl.Score("A", day(2))
	require.True(t, ok)
	assert.Equal(t, 0.5, score)
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("datetime,instrument\n2024-01-02,A\n"))
	assert.Error(t, err, "score column is required")

	_, err = ReadCSV(strings.NewReader("datetime,instrument,score\n2024-01-02,A,abc\n"))
	assert.Error(t, err)

	raw, err := ReadCSV(strings.NewReader("datetime,instrument,field,score\n2024-01-02,A,x,1\n"))
	require.NoError(t, err)
	_, err = NewTable(raw)
	assert.True(t, errors.Is(err, ErrMalformedIndex))
}

func TestParquetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pred.parquet")
	points := []contracts.PredictionPoint{
		{Date: day(2), Instrument: "005930", Score: 0.12},
		{Date: day(2), Instrument: "000660", Score: 0.08},
		{Date: day(3), Instrument: "005930", Score: -0.02},
	}
	require.NoError(t, WriteParquet(path, points))

	tbl, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, points, tbl.Points())
}

func TestLoadFile_UnknownExtension(t *testing.T) {
	_, err := LoadFile("pred.pkl")
	assert.Error(t, err)
}
