package usecase

import "github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"

// Cache lookup outcomes reported to a CacheObserver.
const (
	CacheResultHit   = "hit"
	CacheResultMiss  = "miss"
	CacheResultError = "error"
)

// DecisionObserver records authorization outcomes.
type DecisionObserver interface {
	ObserveDecision(decision domain.Decision)
}

// CacheObserver records license cache lookups.
type CacheObserver interface {
	ObserveCacheLookup(result string)
}

// ReplayObserver records refresh tokens presented after being consumed.
type ReplayObserver interface {
	ObserveRefreshReplay()
}

type nopObserver struct{}

func (nopObserver) ObserveDecision(domain.Decision) {}
func (nopObserver) ObserveCacheLookup(string)       {}
func (nopObserver) ObserveRefreshReplay()           {}
