package market

import "sync"

// Kind names one orchestration operation for the per-kind mutual exclusion
// policy. Two operations of different kinds may run concurrently; a second
// invocation of the same kind is rejected while the first is outstanding.
type Kind string

const (
	KindAirdrop  Kind = "airdrop"
	KindListing  Kind = "listing"
	KindExchange Kind = "exchange"
	KindPurchase Kind = "purchase"

	KindQueryOwned    Kind = "query.owned"
	KindQueryListings Kind = "query.listings"
	KindQueryDetail   Kind = "query.detail"
	KindQueryBalance  Kind = "query.balance"
	KindQueryOwner    Kind = "query.owner"
)

// Flights tracks in-flight operation kinds. Not a global lock.
type Flights struct {
	mu     sync.Mutex
	active map[Kind]bool
}

func NewFlights() *Flights {
	return &Flights{active: make(map[Kind]bool)}
}

// Begin claims the kind, or returns ErrBusy if a prior invocation of the same
// kind has not settled.
func (f *Flights) Begin(kind Kind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active[kind] {
		return ErrBusy
	}
	f.active[kind] = true
	return nil
}

// End releases the kind. Called on settle and on failure alike.
func (f *Flights) End(kind Kind) {
	f.mu.Lock()
	delete(f.active, kind)
	f.mu.Unlock()
}
