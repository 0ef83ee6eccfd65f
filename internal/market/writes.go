package market

import (
	"context"
	"fmt"

	"buymyroom/internal/units"
	"buymyroom/internal/wallet"
)

// Writes holds the single-phase write orchestrators: airdrop claim, listing,
// and native-currency-for-token exchange. Each validates locally, requires a
// connected account before touching the gateway, and submits exactly one
// write. No retries: a failed write goes back to the user as-is, because a
// blind resubmission is a second on-chain effect.
type Writes struct {
	gw      Gateway
	session *wallet.Session
	cache   *Cache
	flights *Flights
}

func NewWrites(gw Gateway, session *wallet.Session, cache *Cache, flights *Flights) *Writes {
	return &Writes{gw: gw, session: session, cache: cache, flights: flights}
}

// ClaimAirdrop claims the welcome houses for the connected account. Whether a
// repeat claim is allowed is the contract's decision; a rejection is surfaced,
// not suppressed.
func (w *Writes) ClaimAirdrop(ctx context.Context) (Receipt, error) {
	account := w.session.Account()
	if account == "" {
		return Receipt{}, ErrPrecondition
	}
	if err := w.flights.Begin(KindAirdrop); err != nil {
		return Receipt{}, err
	}
	defer w.flights.End(KindAirdrop)

	receipt, err := w.gw.AirdropHouses(ctx, account)
	if err != nil {
		return Receipt{}, fmt.Errorf("claim airdrop: %w", err)
	}
	w.cache.InvalidateOwned(account)
	return receipt, nil
}

// ListHouse puts a house up for sale at the given decimal token price.
// Ownership of the house is enforced by the contract; a mismatch surfaces as
// a write rejection.
func (w *Writes) ListHouse(ctx context.Context, houseID int64, price string) (Receipt, error) {
	if houseID < 0 {
		return Receipt{}, fmt.Errorf("%w: house id %d", ErrInvalidInput, houseID)
	}
	priceBase, err := units.ToBaseUnits(price)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: price %q", ErrInvalidInput, price)
	}
	if priceBase.Sign() <= 0 {
		return Receipt{}, fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	}
	account := w.session.Account()
	if account == "" {
		return Receipt{}, ErrPrecondition
	}
	if err := w.flights.Begin(KindListing); err != nil {
		return Receipt{}, err
	}
	defer w.flights.End(KindListing)

	receipt, err := w.gw.ListHouse(ctx, account, uint64(houseID), priceBase)
	if err != nil {
		return Receipt{}, fmt.Errorf("list house %d: %w", houseID, err)
	}
	w.cache.InvalidateListings()
	w.cache.InvalidateHouseDetail(uint64(houseID))
	return receipt, nil
}

// Exchange sends the given decimal amount of native currency to the
// marketplace and receives house tokens back. The cached token balance is
// stale afterward and is invalidated, never left showing the pre-exchange
// value.
func (w *Writes) Exchange(ctx context.Context, amount string) (Receipt, error) {
	value, err := units.ToBaseUnits(amount)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: amount %q", ErrInvalidInput, amount)
	}
	if value.Sign() <= 0 {
		return Receipt{}, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	account := w.session.Account()
	if account == "" {
		return Receipt{}, ErrPrecondition
	}
	if err := w.flights.Begin(KindExchange); err != nil {
		return Receipt{}, err
	}
	defer w.flights.End(KindExchange)

	receipt, err := w.gw.BuyTokens(ctx, account, value)
	if err != nil {
		return Receipt{}, fmt.Errorf("exchange: %w", err)
	}
	w.cache.InvalidateBalance(account)
	return receipt, nil
}
