package cache

// Outcome classifies how a lookup was answered.
type Outcome string

const (
	OutcomeHit       Outcome = "hit"       // fresh entry, no upstream call
	OutcomeRefreshed Outcome = "refreshed" // upstream returned a new value
	OutcomeStale     Outcome = "stale"     // refresh failed or was empty, old value served
	OutcomeEmpty     Outcome = "empty"     // upstream had nothing and nothing was stored
	OutcomeMiss      Outcome = "miss"      // refresh failed and nothing was stored
)

// Observer is told about every lookup. Implementations must be safe for
// concurrent use and must not block.
type Observer interface {
	CacheLookup(outcome Outcome)
}

// NoopObserver ignores all events.
type NoopObserver struct{}

func (NoopObserver) CacheLookup(Outcome) {}
