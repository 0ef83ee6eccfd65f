package market

import (
	"context"
	"fmt"
	"sync"

	"buymyroom/internal/wallet"
)

// PurchaseState names the per-attempt states of the approve-then-buy flow.
type PurchaseState int

const (
	StateIdle PurchaseState = iota
	StateSelected
	StateConfirming
	StateApproving
	StateBuying
)

func (s PurchaseState) String() string {
	switch s {
	case StateSelected:
		return "selected"
	case StateConfirming:
		return "confirming"
	case StateApproving:
		return "approving"
	case StateBuying:
		return "buying"
	default:
		return "idle"
	}
}

// Purchase drives one house purchase at a time. The two on-chain calls go to
// two different contracts (token approve, then marketplace buy) and cannot be
// atomic from here: there is an unavoidable window where the approval exists
// but the purchase has not happened. The state machine keeps that window
// observable and resumable. A failed step returns the machine to Confirming
// with the selection intact, so a retry starts from confirmation, never from
// scratch (which would double-approve) and never silently (which would strand
// an allowance the user does not know about).
type Purchase struct {
	gw          Gateway
	session     *wallet.Session
	cache       *Cache
	flights     *Flights
	marketplace string // spender for the token approval

	mu      sync.Mutex
	state   PurchaseState
	houseID uint64
}

func NewPurchase(gw Gateway, session *wallet.Session, cache *Cache, flights *Flights, marketplaceAddr string) *Purchase {
	return &Purchase{
		gw:          gw,
		session:     session,
		cache:       cache,
		flights:     flights,
		marketplace: marketplaceAddr,
	}
}

// SelectHouse records the house the user wants. Local state only; no network.
func (p *Purchase) SelectHouse(houseID uint64) error {
	if err := p.flights.Begin(KindPurchase); err != nil {
		return err
	}
	defer p.flights.End(KindPurchase)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateIdle {
		return fmt.Errorf("%w: select from %s", ErrBadState, p.state)
	}
	p.houseID = houseID
	p.state = StateSelected
	return nil
}

// RequestConfirmation surfaces the selected house for user confirmation.
// No network call.
func (p *Purchase) RequestConfirmation() error {
	if err := p.flights.Begin(KindPurchase); err != nil {
		return err
	}
	defer p.flights.End(KindPurchase)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateSelected {
		return fmt.Errorf("%w: request confirmation from %s", ErrBadState, p.state)
	}
	p.state = StateConfirming
	return nil
}

// Cancel abandons a confirmation. Local reset only; it cannot retract a
// transaction that was already submitted.
func (p *Purchase) Cancel() error {
	if err := p.flights.Begin(KindPurchase); err != nil {
		return err
	}
	defer p.flights.End(KindPurchase)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateConfirming {
		return fmt.Errorf("%w: cancel from %s", ErrBadState, p.state)
	}
	p.state = StateIdle
	p.houseID = 0
	return nil
}

// ConfirmPurchase runs the two-phase flow: approve the marketplace to spend
// exactly the listed price, wait for that approval to settle, then submit the
// buy. The listing price comes from the house-detail snapshot fetched before
// confirmation; the buy call itself takes no price.
func (p *Purchase) ConfirmPurchase(ctx context.Context) (Receipt, error) {
	if err := p.flights.Begin(KindPurchase); err != nil {
		return Receipt{}, err
	}
	defer p.flights.End(KindPurchase)

	p.mu.Lock()
	if p.state != StateConfirming {
		state := p.state
		p.mu.Unlock()
		return Receipt{}, fmt.Errorf("%w: confirm from %s", ErrBadState, state)
	}
	houseID := p.houseID
	account := p.session.Account()
	if account == "" {
		p.mu.Unlock()
		return Receipt{}, ErrPrecondition
	}
	detail, ok := p.cache.HouseDetail(houseID)
	if !ok {
		p.mu.Unlock()
		return Receipt{}, fmt.Errorf("%w: house %d", ErrMissingHouseDetail, houseID)
	}
	p.state = StateApproving
	p.mu.Unlock()

	if _, err := p.gw.Approve(ctx, account, p.marketplace, detail.Price); err != nil {
		p.setState(StateConfirming)
		return Receipt{}, fmt.Errorf("%w: %w", ErrApprovalFailed, err)
	}

	// The approval has settled on chain; only now may the buy be submitted.
	p.setState(StateBuying)
	receipt, err := p.gw.BuyHouseWithTokens(ctx, account, houseID)
	if err != nil {
		p.setState(StateConfirming)
		return Receipt{}, fmt.Errorf("%w: %w", ErrPurchaseAfterApproval, err)
	}

	p.cache.InvalidateListings()
	p.cache.InvalidateHouseDetail(houseID)
	p.cache.InvalidateBalance(account)
	p.cache.InvalidateOwned(account)
	p.mu.Lock()
	p.state = StateIdle
	p.houseID = 0
	p.mu.Unlock()
	return receipt, nil
}

func (p *Purchase) setState(s PurchaseState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// State reports the current machine state and selection for the caller's UI.
func (p *Purchase) State() (PurchaseState, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.houseID
}
