package market

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"sync"
)

// airdropSize matches the contract's welcome grant.
const airdropSize = 3

// FakeGateway is an in-memory marketplace for tests and keyless dev runs. It
// keeps a tiny contract model (owners, listings, balances, allowances) and
// records the order of calls so tests can assert sequencing. Error hooks let
// a test fail any single method.
type FakeGateway struct {
	mu sync.Mutex

	owners     map[uint64]string
	prices     map[uint64]*big.Int
	forSale    map[uint64]bool
	balances   map[string]*big.Int
	allowance  map[string]*big.Int // owner -> approved amount for the marketplace
	airdropped map[string]bool
	nextHouse  uint64

	// Errs fails the named method on its next call.
	Errs map[string]error
	// Calls records method names in invocation order.
	Calls []string

	// TokenRate is how many house tokens one unit of native currency buys.
	TokenRate int64

	Marketplace string
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		owners:      make(map[uint64]string),
		prices:      make(map[uint64]*big.Int),
		forSale:     make(map[uint64]bool),
		balances:    make(map[string]*big.Int),
		allowance:   make(map[string]*big.Int),
		airdropped:  make(map[string]bool),
		nextHouse:   1,
		Errs:        make(map[string]error),
		TokenRate:   1,
		Marketplace: "0x00000000000000000000000000000000000000A1",
	}
}

func (f *FakeGateway) record(method string) error {
	f.Calls = append(f.Calls, method)
	if err := f.Errs[method]; err != nil {
		return err
	}
	return nil
}

func (f *FakeGateway) receiptFor(method, from string) Receipt {
	sum := sha256.Sum256([]byte(method + from + fmt.Sprint(len(f.Calls))))
	return Receipt{
		TxHash:      "0x" + hex.EncodeToString(sum[:]),
		BlockNumber: uint64(len(f.Calls)),
		GasUsed:     21000,
	}
}

func (f *FakeGateway) AirdropHouses(_ context.Context, from string) (Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("airdropHouses"); err != nil {
		return Receipt{}, err
	}
	if f.airdropped[from] {
		return Receipt{}, fmt.Errorf("%w: airdrop already claimed", ErrWriteRejected)
	}
	for i := 0; i < airdropSize; i++ {
		f.owners[f.nextHouse] = from
		f.nextHouse++
	}
	f.airdropped[from] = true
	return f.receiptFor("airdropHouses", from), nil
}

func (f *FakeGateway) ListHouse(_ context.Context, from string, houseID uint64, price *big.Int) (Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("listHouse"); err != nil {
		return Receipt{}, err
	}
	if f.owners[houseID] != from {
		return Receipt{}, fmt.Errorf("%w: not the owner of house %d", ErrWriteRejected, houseID)
	}
	f.prices[houseID] = new(big.Int).Set(price)
	f.forSale[houseID] = true
	return f.receiptFor("listHouse", from), nil
}

func (f *FakeGateway) BuyHouseWithTokens(_ context.Context, from string, houseID uint64) (Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("buyHouseWithTokens"); err != nil {
		return Receipt{}, err
	}
	if !f.forSale[houseID] {
		return Receipt{}, fmt.Errorf("%w: house %d is not for sale", ErrWriteRejected, houseID)
	}
	price := f.prices[houseID]
	allowed := f.allowance[from]
	if allowed == nil || allowed.Cmp(price) < 0 {
		return Receipt{}, fmt.Errorf("%w: allowance below price", ErrWriteRejected)
	}
	balance := f.balances[from]
	if balance == nil || balance.Cmp(price) < 0 {
		return Receipt{}, fmt.Errorf("%w: insufficient token balance", ErrWriteRejected)
	}

	seller := f.owners[houseID]
	f.balances[from] = new(big.Int).Sub(balance, price)
	f.credit(seller, price)
	f.allowance[from] = new(big.Int).Sub(allowed, price)
	f.owners[houseID] = from
	delete(f.forSale, houseID)
	delete(f.prices, houseID)
	return f.receiptFor("buyHouseWithTokens", from), nil
}

func (f *FakeGateway) BuyTokens(_ context.Context, from string, value *big.Int) (Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("buyTokens"); err != nil {
		return Receipt{}, err
	}
	if value == nil || value.Sign() <= 0 {
		return Receipt{}, fmt.Errorf("%w: no value attached", ErrWriteRejected)
	}
	tokens := new(big.Int).Mul(value, big.NewInt(f.TokenRate))
	f.credit(from, tokens)
	return f.receiptFor("buyTokens", from), nil
}

func (f *FakeGateway) Approve(_ context.Context, from, spender string, amount *big.Int) (Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("approve"); err != nil {
		return Receipt{}, err
	}
	if spender != f.Marketplace {
		return Receipt{}, fmt.Errorf("%w: unknown spender %s", ErrWriteRejected, spender)
	}
	f.allowance[from] = new(big.Int).Set(amount)
	return f.receiptFor("approve", from), nil
}

func (f *FakeGateway) GetUserHouses(_ context.Context, account string) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("getUserHouses"); err != nil {
		return nil, err
	}
	houses := []uint64{}
	for id, owner := range f.owners {
		if owner == account {
			houses = append(houses, id)
		}
	}
	sort.Slice(houses, func(i, j int) bool { return houses[i] < houses[j] })
	return houses, nil
}

func (f *FakeGateway) GetHousesForSale(_ context.Context) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("getHousesForSale"); err != nil {
		return nil, err
	}
	houses := []uint64{}
	for id := range f.forSale {
		houses = append(houses, id)
	}
	sort.Slice(houses, func(i, j int) bool { return houses[i] < houses[j] })
	return houses, nil
}

func (f *FakeGateway) GetHouseOwner(_ context.Context, houseID uint64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("getHouseOwner"); err != nil {
		return "", err
	}
	owner, ok := f.owners[houseID]
	if !ok {
		return "", fmt.Errorf("%w: house %d does not exist", ErrWriteRejected, houseID)
	}
	return owner, nil
}

func (f *FakeGateway) GetHouseInfo(_ context.Context, houseID uint64) (HouseInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("getHouseInfo"); err != nil {
		return HouseInfo{}, err
	}
	owner, ok := f.owners[houseID]
	if !ok {
		return HouseInfo{}, fmt.Errorf("%w: house %d does not exist", ErrWriteRejected, houseID)
	}
	price := f.prices[houseID]
	if price == nil {
		price = new(big.Int)
	}
	return HouseInfo{
		HouseID:   houseID,
		Owner:     owner,
		Price:     new(big.Int).Set(price),
		IsForSale: f.forSale[houseID],
	}, nil
}

func (f *FakeGateway) GetUserTokenBalance(_ context.Context, account string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("getUserTokenBalance"); err != nil {
		return nil, err
	}
	balance := f.balances[account]
	if balance == nil {
		return new(big.Int), nil
	}
	return new(big.Int).Set(balance), nil
}

// SeedHouse plants a house for tests without going through an airdrop.
func (f *FakeGateway) SeedHouse(houseID uint64, owner string, price *big.Int, forSale bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.owners[houseID] = owner
	if price != nil {
		f.prices[houseID] = new(big.Int).Set(price)
	}
	f.forSale[houseID] = forSale
	if houseID >= f.nextHouse {
		f.nextHouse = houseID + 1
	}
}

// SeedBalance plants a token balance for tests.
func (f *FakeGateway) SeedBalance(account string, balance *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[account] = new(big.Int).Set(balance)
}

func (f *FakeGateway) credit(account string, amount *big.Int) {
	cur := f.balances[account]
	if cur == nil {
		cur = new(big.Int)
	}
	f.balances[account] = new(big.Int).Add(cur, amount)
}

// Allowance exposes the standing approval for assertions on the
// failed-after-approval path.
func (f *FakeGateway) Allowance(account string) *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.allowance[account]
	if a == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a)
}
