// Package calendar aligns calendar dates with the trading sessions of one price series.
package calendar

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/aegis-signal/internal/contracts"
)

// ErrUnorderedSessions is returned when a session sequence goes backwards in time
var ErrUnorderedSessions = errors.New("calendar: sessions are not in increasing order")

// Session is the position and timestamp of the first session on a calendar date
type Session struct {
	Position  int
	Timestamp time.Time
}

// Index maps normalized calendar dates to sessions of one series.
// It is immutable after Build and safe for concurrent reads.
type Index struct {
	version  string
	sessions []time.Time
	byDate   map[time.Time]Session
	dates    []time.Time
}

// VersionOf derives a content token from the first and last timestamp and the length.
// It is O(1); callers that mutate sessions in place must still hand a new token to Cache.Get.
func VersionOf(sessions []time.Time) string {
	if len(sessions) == 0 {
		return "0"
	}
	return fmt.Sprintf("%d:%d:%d",
		len(sessions),
		sessions[0].UnixNano(),
		sessions[len(sessions)-1].UnixNano(),
	)
}

// Build indexes sessions in O(n). Sessions must be non-decreasing; when several
// sessions share a calendar date (intraday bars) the first one represents the date.
func Build(sessions []time.Time) (*Index, error) {
	idx := &Index{
		version:  VersionOf(sessions),
		sessions: make([]time.Time, len(sessions)),
		byDate:   make(map[time.Time]Session, len(sessions)),
		dates:    make([]time.Time, 0, len(sessions)),
	}
	copy(idx.sessions, sessions)

	for i, ts := range sessions {
		if i > 0 && ts.Before(sessions[i-1]) {
			return nil, fmt.Errorf("%w: position %d (%s) precedes %s", ErrUnorderedSessions,
				i, ts.Format(time.RFC3339), sessions[i-1].Format(time.RFC3339))
		}

		date := contracts.DateOf(ts)
		if _, exists := idx.byDate[date]; exists {
			continue
		}
		idx.byDate[date] = Session{Position: i, Timestamp: ts}
		idx.dates = append(idx.dates, date)
	}

	return idx, nil
}

// Lookup returns the session for the calendar date of t
func (idx *Index) Lookup(t time.Time) (Session, bool) {
	s, ok := idx.byDate[contracts.DateOf(t)]
	return s, ok
}

// Contains reports whether the date of t is a trading session
func (idx *Index) Contains(t time.Time) bool {
	_, ok := idx.byDate[contracts.DateOf(t)]
	return ok
}

// Dates returns the distinct session dates in increasing order
func (idx *Index) Dates() []time.Time {
	out := make([]time.Time, len(idx.dates))
	copy(out, idx.dates)
	return out
}

// Len is the number of sessions, not dates
func (idx *Index) Len() int { return len(idx.sessions) }

// Version is the content token of the sessions the index was built from
func (idx *Index) Version() string { return idx.version }

// Floor returns the last session on or before the date of t
func (idx *Index) Floor(t time.Time) (Session, bool) {
	date := contracts.DateOf(t)
	i := sort.Search(len(idx.dates), func(i int) bool { return idx.dates[i].After(date) })
	if i == 0 {
		return Session{}, false
	}
	return idx.byDate[idx.dates[i-1]], true
}
