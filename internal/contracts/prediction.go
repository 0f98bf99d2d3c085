package contracts

import "time"

// PredictionPoint is one (date, instrument, score) row produced by the external model pipeline
type PredictionPoint struct {
	Date       time.Time `json:"date"`
	Instrument string    `json:"instrument"`
	Score      float64   `json:"score"`
}

// DateOf normalizes t to midnight UTC of its own calendar date.
// Every map keyed by date in this module uses DateOf keys.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateLayout is the canonical text form of a calendar date
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string into a normalized date
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return DateOf(t), nil
}
