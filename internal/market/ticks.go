package market

import (
	"sync"

	"algotrade/internal/types"
)

const defaultTickCapacity = 1000

// TickDatabase keeps the most recent ticks of one ticker in a ring buffer.
type TickDatabase struct {
	ticker string

	mu    sync.RWMutex
	buf   []types.Tick
	start int
	size  int
	total uint64
}

func NewTickDatabase(ticker string, capacity int) *TickDatabase {
	if capacity <= 0 {
		capacity = defaultTickCapacity
	}
	return &TickDatabase{ticker: ticker, buf: make([]types.Tick, capacity)}
}

func (db *TickDatabase) Ticker() string { return db.ticker }

func (db *TickDatabase) Append(t types.Tick) {
	db.mu.Lock()
	defer db.mu.Unlock()
	idx := (db.start + db.size) % len(db.buf)
	db.buf[idx] = t
	if db.size < len(db.buf) {
		db.size++
	} else {
		db.start = (db.start + 1) % len(db.buf)
	}
	db.total++
}

func (db *TickDatabase) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.size
}

// Total counts every tick ever appended, including evicted ones.
func (db *TickDatabase) Total() uint64 {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.total
}

func (db *TickDatabase) Latest() (types.Tick, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.size == 0 {
		return types.Tick{}, false
	}
	return db.buf[(db.start+db.size-1)%len(db.buf)], true
}

// Last returns up to n most recent ticks, oldest first. n <= 0 returns everything held.
func (db *TickDatabase) Last(n int) []types.Tick {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if n <= 0 || n > db.size {
		n = db.size
	}
	out := make([]types.Tick, n)
	first := db.start + db.size - n
	for i := 0; i < n; i++ {
		out[i] = db.buf[(first+i)%len(db.buf)]
	}
	return out
}
