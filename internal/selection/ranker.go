package selection

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/prediction"
	"github.com/wonny/aegis-signal/pkg/logger"
)

// Unlimited is the K that selects every scored instrument
const Unlimited = 0

// ErrNegativeK is returned for k < 0
var ErrNegativeK = errors.New("selection: k must be >= 0 (0 = unlimited)")

// TopKSet is the ordered selection for one rebalance date
type TopKSet struct {
	Date    time.Time
	K       int
	Members []contracts.RankedStock
	index   map[string]int
}

// Contains reports membership; an unlimited set contains every instrument
func (s *TopKSet) Contains(code string) bool {
	if s == nil {
		return false
	}
	if s.K == Unlimited {
		return true
	}
	_, ok := s.index[code]
	return ok
}

// Rank returns the 1-based rank of code within the set
func (s *TopKSet) Rank(code string) (int, bool) {
	if s == nil {
		return 0, false
	}
	i, ok := s.index[code]
	if !ok {
		return 0, false
	}
	return s.Members[i].Rank, true
}

// Codes lists members in rank order
func (s *TopKSet) Codes() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.Members))
	for i, m := range s.Members {
		out[i] = m.Code
	}
	return out
}

// Len is the number of members
func (s *TopKSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Members)
}

// SelectTopK ranks one date slice by score descending and keeps min(k, len) members.
// Equal scores keep table order so identical inputs always give identical output.
func SelectTopK(date time.Time, entries []prediction.Entry, k int) *TopKSet {
	ranked := make([]prediction.Entry, len(entries))
	copy(ranked, entries)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Row < ranked[j].Row
	})

	n := len(ranked)
	if k > Unlimited && k < n {
		n = k
	}

	set := &TopKSet{
		Date:    contracts.DateOf(date),
		K:       k,
		Members: make([]contracts.RankedStock, n),
		index:   make(map[string]int, n),
	}
	for i := 0; i < n; i++ {
		set.Members[i] = contracts.RankedStock{Code: ranked[i].Instrument, Rank: i + 1, Score: ranked[i].Score}
		set.index[ranked[i].Instrument] = i
	}

	return set
}

// Selector memoizes SelectTopK per date for one prediction table
// ⭐ SSOT: Top-K 선정 로직은 여기서만
type Selector struct {
	table  *prediction.Table
	k      int
	logger *logger.Logger

	mu     sync.RWMutex
	cache  map[time.Time]*TopKSet
	builds int
}

// NewSelector creates a selector; k = Unlimited disables membership filtering
func NewSelector(table *prediction.Table, k int, log *logger.Logger) (*Selector, error) {
	if table == nil {
		return nil, fmt.Errorf("selection: nil prediction table")
	}
	if k < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrNegativeK, k)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Selector{
		table:  table,
		k:      k,
		logger: log.Component("selection"),
		cache:  make(map[time.Time]*TopKSet),
	}, nil
}

// K returns the configured K
func (s *Selector) K() int { return s.k }

// Unlimited reports whether every instrument is eligible
func (s *Selector) Unlimited() bool { return s.k == Unlimited }

// Table returns the prediction table the selector ranks
func (s *Selector) Table() *prediction.Table { return s.table }

// TopK returns the cached set for date, computing it on first use
func (s *Selector) TopK(date time.Time) *TopKSet {
	d := contracts.DateOf(date)

	s.mu.RLock()
	set, ok := s.cache[d]
	s.mu.RUnlock()
	if ok {
		return set
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if set, ok := s.cache[d]; ok {
		return set
	}

	set = SelectTopK(d, s.table.Slice(d), s.k)
	s.cache[d] = set
	s.builds++

	return set
}

// Contains reports whether code is eligible on date
func (s *Selector) Contains(date time.Time, code string) bool {
	if s.Unlimited() {
		return true
	}
	return s.TopK(date).Contains(code)
}

// Precompute fills the cache for dates so later readers never take the write lock
func (s *Selector) Precompute(dates []time.Time) int {
	for _, d := range dates {
		s.TopK(d)
	}

	s.mu.RLock()
	n := len(s.cache)
	s.mu.RUnlock()

	s.logger.WithFields(map[string]interface{}{
		"dates":  len(dates),
		"cached": n,
		"k":      s.k,
	}).Debug("Top-K cache precomputed")

	return n
}

// Reset drops every cached set; call it when a new run starts
func (s *Selector) Reset() {
	s.mu.Lock()
	s.cache = make(map[time.Time]*TopKSet)
	s.builds = 0
	s.mu.Unlock()
}

// Builds is the number of sets computed since the last Reset
func (s *Selector) Builds() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.builds
}
