package prediction

import (
	"sort"
	"time"

	"github.com/wonny/aegis-signal/internal/contracts"
)

// Series is one instrument's scores by date; append-only during ingestion, read-only after
type Series struct {
	instrument string
	dates      []time.Time
	scores     map[time.Time]float64
}

func newSeries(instrument string) *Series {
	return &Series{instrument: instrument, scores: make(map[time.Time]float64)}
}

func (s *Series) add(date time.Time, score float64) {
	s.dates = append(s.dates, date)
	s.scores[date] = score
}

func (s *Series) seal() {
	sort.Slice(s.dates, func(i, j int) bool { return s.dates[i].Before(s.dates[j]) })
}

// Instrument returns the series' instrument id
func (s *Series) Instrument() string { return s.instrument }

// Score returns the score on the calendar date of t
func (s *Series) Score(t time.Time) (float64, bool) {
	v, ok := s.scores[contracts.DateOf(t)]
	return v, ok
}

// Dates returns the dates with a score, increasing
func (s *Series) Dates() []time.Time {
	out := make([]time.Time, len(s.dates))
	copy(out, s.dates)
	return out
}

// Len is the number of scored dates
func (s *Series) Len() int { return len(s.dates) }
