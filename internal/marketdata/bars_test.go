package marketdata

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-signal/internal/calendar"
	"github.com/wonny/aegis-signal/internal/contracts"
)

func TestReadCSV_GroupsAndSorts(t *testing.T) {
	in := "date,code,open,close\n" +
		"2024-01-03,A,1,11\n" +
		"2024-01-02,A,1,10\n" +
		"2024-01-02,B,1,20\n"

	bars, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, bars, 3)

	u := Group(bars)
	assert.Equal(t, []string{"A", "B"}, u.Instruments())

	a := u["A"]
	require.Len(t, a.Bars, 2)
	assert.Equal(t, 10.0, a.Bars[0].Close)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), a.Sessions()[1])
	assert.Equal(t, calendar.VersionOf(a.Sessions()), a.Version())
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("date,close\n2024-01-02,1\n"))
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("date,code,close\nyesterday,A,1\n"))
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("date,code,close\n2024-01-02,A,x\n"))
	assert.Error(t, err)
}

func TestParquetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.parquet")
	bars := []contracts.Bar{
		{Instrument: "A", Time: time.Date(2024, 1, 2, 6, 30, 0, 0, time.UTC), Close: 10},
		{Instrument: "B", Time: time.Date(2024, 1, 2, 6, 30, 0, 0, time.UTC), Close: 20},
	}
	require.NoError(t, WriteParquet(path, bars))

	u, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, bars[1], u["B"].Bars[0])
}

func TestLoadFile_Unsupported(t *testing.T) {
	_, err := LoadFile("bars.json")
	assert.Error(t, err)
}
