package market

import (
	"context"
	"fmt"
	"math/big"
	"strings"
)

// Queries serves the read side: each fetch goes through the gateway, stores
// the fresh snapshot in the cache, and normalizes anything malformed into
// ErrMalformedResponse instead of letting a shape mismatch escape.
type Queries struct {
	gw      Gateway
	cache   *Cache
	flights *Flights
}

func NewQueries(gw Gateway, cache *Cache, flights *Flights) *Queries {
	return &Queries{gw: gw, cache: cache, flights: flights}
}

func (q *Queries) FetchOwnedHouses(ctx context.Context, account string) ([]uint64, error) {
	if err := q.flights.Begin(KindQueryOwned); err != nil {
		return nil, err
	}
	defer q.flights.End(KindQueryOwned)

	houses, err := q.gw.GetUserHouses(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("fetch owned houses: %w", err)
	}
	if houses == nil {
		return nil, fmt.Errorf("%w: user houses", ErrMalformedResponse)
	}
	q.cache.SetOwned(account, houses)
	return houses, nil
}

func (q *Queries) FetchListings(ctx context.Context) ([]uint64, error) {
	if err := q.flights.Begin(KindQueryListings); err != nil {
		return nil, err
	}
	defer q.flights.End(KindQueryListings)

	houses, err := q.gw.GetHousesForSale(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch listings: %w", err)
	}
	if houses == nil {
		return nil, fmt.Errorf("%w: houses for sale", ErrMalformedResponse)
	}
	q.cache.SetListings(houses)
	return houses, nil
}

// FetchHouseDetail reads one house and records the snapshot; the purchase
// flow requires this snapshot before a confirmation is possible.
func (q *Queries) FetchHouseDetail(ctx context.Context, houseID uint64) (HouseInfo, error) {
	if err := q.flights.Begin(KindQueryDetail); err != nil {
		return HouseInfo{}, err
	}
	defer q.flights.End(KindQueryDetail)

	info, err := q.gw.GetHouseInfo(ctx, houseID)
	if err != nil {
		return HouseInfo{}, fmt.Errorf("fetch house %d: %w", houseID, err)
	}
	if info.Price == nil || info.Price.Sign() < 0 {
		return HouseInfo{}, fmt.Errorf("%w: house %d price", ErrMalformedResponse, houseID)
	}
	info.HouseID = houseID
	q.cache.SetHouseDetail(info)
	return info, nil
}

func (q *Queries) FetchTokenBalance(ctx context.Context, account string) (*big.Int, error) {
	if err := q.flights.Begin(KindQueryBalance); err != nil {
		return nil, err
	}
	defer q.flights.End(KindQueryBalance)

	balance, err := q.gw.GetUserTokenBalance(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("fetch token balance: %w", err)
	}
	if balance == nil || balance.Sign() < 0 {
		return nil, fmt.Errorf("%w: token balance", ErrMalformedResponse)
	}
	q.cache.SetBalance(account, balance)
	return balance, nil
}

func (q *Queries) FetchHouseOwner(ctx context.Context, houseID uint64) (string, error) {
	if err := q.flights.Begin(KindQueryOwner); err != nil {
		return "", err
	}
	defer q.flights.End(KindQueryOwner)

	owner, err := q.gw.GetHouseOwner(ctx, houseID)
	if err != nil {
		return "", fmt.Errorf("fetch house %d owner: %w", houseID, err)
	}
	if strings.TrimSpace(owner) == "" {
		return "", fmt.Errorf("%w: house %d owner", ErrMalformedResponse, houseID)
	}
	return owner, nil
}
