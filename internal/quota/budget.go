package quota

import "sync"

// Budget caps the write actions one job invocation may attempt, independent
// of the hourly window. Create one per run.
type Budget struct {
	mu    sync.Mutex
	limit int
	used  int
}

func NewBudget(limit int) *Budget {
	if limit <= 0 {
		limit = DefaultCycleCap
	}
	return &Budget{limit: limit}
}

// Take reserves one action. It returns false once the limit is reached.
func (b *Budget) Take() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.used >= b.limit {
		return false
	}
	b.used++
	return true
}

func (b *Budget) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used
}

func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.limit - b.used
}
