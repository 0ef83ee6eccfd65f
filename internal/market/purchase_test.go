package market

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"buymyroom/internal/wallet"
)

const buyer = "0x00000000000000000000000000000000000000B1"

func connectedSession(t *testing.T, addr string) *wallet.Session {
	t.Helper()
	s := wallet.NewSession(wallet.StaticProvider{Address: addr})
	s.Restore(context.Background())
	require.Equal(t, addr, s.Account())
	return s
}

func purchaseFixture(t *testing.T) (*FakeGateway, *Cache, *Queries, *Purchase) {
	t.Helper()
	gw := NewFakeGateway()
	cache := NewCache()
	flights := NewFlights()
	queries := NewQueries(gw, cache, flights)
	p := NewPurchase(gw, connectedSession(t, buyer), cache, flights, gw.Marketplace)
	return gw, cache, queries, p
}

func TestPurchaseHappyPath(t *testing.T) {
	ctx := context.Background()
	gw, cache, queries, p := purchaseFixture(t)

	price, _ := new(big.Int).SetString("100000000000000000000", 10)
	gw.SeedHouse(7, "0xSELLER", price, true)
	gw.SeedBalance(buyer, price)

	_, err := queries.FetchHouseDetail(ctx, 7)
	require.NoError(t, err)
	_, err = queries.FetchListings(ctx)
	require.NoError(t, err)

	require.NoError(t, p.SelectHouse(7))
	require.NoError(t, p.RequestConfirmation())
	receipt, err := p.ConfirmPurchase(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, receipt.TxHash)

	state, selected := p.State()
	require.Equal(t, StateIdle, state)
	require.Zero(t, selected)

	// listings snapshot was invalidated; a fresh fetch no longer includes 7
	_, ok := cache.Listings()
	require.False(t, ok)
	listings, err := queries.FetchListings(ctx)
	require.NoError(t, err)
	require.NotContains(t, listings, uint64(7))

	// new owner on chain
	owner, err := gw.GetHouseOwner(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, buyer, owner)
}

func TestConfirmRequiresHouseDetail(t *testing.T) {
	ctx := context.Background()
	gw, _, _, p := purchaseFixture(t)
	gw.SeedHouse(7, "0xSELLER", big.NewInt(100), true)

	require.NoError(t, p.SelectHouse(7))
	require.NoError(t, p.RequestConfirmation())

	_, err := p.ConfirmPurchase(ctx)
	require.ErrorIs(t, err, ErrMissingHouseDetail)
	require.NotContains(t, gw.Calls, "approve")
}

func TestApproveSettlesBeforeBuyIsSubmitted(t *testing.T) {
	ctx := context.Background()
	gw, _, queries, p := purchaseFixture(t)

	price := big.NewInt(500)
	gw.SeedHouse(3, "0xSELLER", price, true)
	gw.SeedBalance(buyer, price)

	_, err := queries.FetchHouseDetail(ctx, 3)
	require.NoError(t, err)
	require.NoError(t, p.SelectHouse(3))
	require.NoError(t, p.RequestConfirmation())
	_, err = p.ConfirmPurchase(ctx)
	require.NoError(t, err)

	approveAt, buyAt := -1, -1
	for i, call := range gw.Calls {
		switch call {
		case "approve":
			approveAt = i
		case "buyHouseWithTokens":
			buyAt = i
		}
	}
	require.GreaterOrEqual(t, approveAt, 0)
	require.Greater(t, buyAt, approveAt)
}

func TestApprovalFailureReturnsToConfirming(t *testing.T) {
	ctx := context.Background()
	gw, _, queries, p := purchaseFixture(t)

	gw.SeedHouse(7, "0xSELLER", big.NewInt(100), true)
	_, err := queries.FetchHouseDetail(ctx, 7)
	require.NoError(t, err)
	require.NoError(t, p.SelectHouse(7))
	require.NoError(t, p.RequestConfirmation())

	gw.Errs["approve"] = errors.New("user rejected signature")
	_, err = p.ConfirmPurchase(ctx)
	require.ErrorIs(t, err, ErrApprovalFailed)
	require.ErrorContains(t, err, "user rejected signature")
	require.NotContains(t, gw.Calls, "buyHouseWithTokens")

	// retry starts from confirmation with the selection preserved
	state, selected := p.State()
	require.Equal(t, StateConfirming, state)
	require.Equal(t, uint64(7), selected)

	delete(gw.Errs, "approve")
	gw.SeedBalance(buyer, big.NewInt(100))
	_, err = p.ConfirmPurchase(ctx)
	require.NoError(t, err)
}

func TestBuyFailureAfterApproval(t *testing.T) {
	ctx := context.Background()
	gw, _, queries, p := purchaseFixture(t)

	price, _ := new(big.Int).SetString("100000000000000000000", 10)
	gw.SeedHouse(7, "0xSELLER", price, true)
	// no balance seeded: approval succeeds, the buy reverts

	_, err := queries.FetchHouseDetail(ctx, 7)
	require.NoError(t, err)
	require.NoError(t, p.SelectHouse(7))
	require.NoError(t, p.RequestConfirmation())

	_, err = p.ConfirmPurchase(ctx)
	require.ErrorIs(t, err, ErrPurchaseAfterApproval)
	require.ErrorIs(t, err, ErrPurchaseFailed)

	state, selected := p.State()
	require.Equal(t, StateConfirming, state)
	require.Equal(t, uint64(7), selected)

	// the allowance stands on chain; nothing revoked it
	require.Zero(t, gw.Allowance(buyer).Cmp(price))
}

func TestCancelResetsSelection(t *testing.T) {
	_, _, _, p := purchaseFixture(t)

	require.NoError(t, p.SelectHouse(9))
	require.NoError(t, p.RequestConfirmation())
	require.NoError(t, p.Cancel())

	state, selected := p.State()
	require.Equal(t, StateIdle, state)
	require.Zero(t, selected)

	// cancelling twice is a state error, not a silent no-op
	require.ErrorIs(t, p.Cancel(), ErrBadState)
}

func TestConfirmWithoutAccount(t *testing.T) {
	ctx := context.Background()
	gw := NewFakeGateway()
	cache := NewCache()
	flights := NewFlights()
	session := wallet.NewSession(nil)
	p := NewPurchase(gw, session, cache, flights, gw.Marketplace)

	cache.SetHouseDetail(HouseInfo{HouseID: 7, Price: big.NewInt(100), IsForSale: true})
	require.NoError(t, p.SelectHouse(7))
	require.NoError(t, p.RequestConfirmation())

	_, err := p.ConfirmPurchase(ctx)
	require.ErrorIs(t, err, ErrPrecondition)
	require.Empty(t, gw.Calls)
}

func TestSelectFromSelectedIsRejected(t *testing.T) {
	_, _, _, p := purchaseFixture(t)
	require.NoError(t, p.SelectHouse(1))
	require.ErrorIs(t, p.SelectHouse(2), ErrBadState)
}
