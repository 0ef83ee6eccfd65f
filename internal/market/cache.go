package market

import (
	"math/big"
	"sync"
)

// Cache mirrors the last-fetched read results keyed by account or house.
// Entries are snapshots: a fresh fetch supersedes the previous one, and
// writes that change the underlying state invalidate the affected entries
// rather than leaving them stale.
type Cache struct {
	mu sync.RWMutex

	owned       map[string][]uint64
	balances    map[string]*big.Int
	details     map[uint64]HouseInfo
	listings    []uint64
	hasListings bool
}

func NewCache() *Cache {
	return &Cache{
		owned:    make(map[string][]uint64),
		balances: make(map[string]*big.Int),
		details:  make(map[uint64]HouseInfo),
	}
}

func (c *Cache) SetOwned(account string, houses []uint64) {
	c.mu.Lock()
	c.owned[account] = houses
	c.mu.Unlock()
}

func (c *Cache) Owned(account string) ([]uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	houses, ok := c.owned[account]
	return houses, ok
}

// InvalidateOwned drops the owned-house snapshot after an operation that
// changed the account's holdings.
func (c *Cache) InvalidateOwned(account string) {
	c.mu.Lock()
	delete(c.owned, account)
	c.mu.Unlock()
}

func (c *Cache) SetListings(houses []uint64) {
	c.mu.Lock()
	c.listings = houses
	c.hasListings = true
	c.mu.Unlock()
}

func (c *Cache) Listings() ([]uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.listings, c.hasListings
}

// InvalidateListings drops the for-sale snapshot after a sale or delisting so
// the next fetch reflects the removal.
func (c *Cache) InvalidateListings() {
	c.mu.Lock()
	c.listings = nil
	c.hasListings = false
	c.mu.Unlock()
}

func (c *Cache) SetBalance(account string, balance *big.Int) {
	c.mu.Lock()
	c.balances[account] = balance
	c.mu.Unlock()
}

func (c *Cache) Balance(account string) (*big.Int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.balances[account]
	return b, ok
}

// InvalidateBalance drops the cached balance after any operation that moved
// tokens for the account.
func (c *Cache) InvalidateBalance(account string) {
	c.mu.Lock()
	delete(c.balances, account)
	c.mu.Unlock()
}

func (c *Cache) SetHouseDetail(info HouseInfo) {
	c.mu.Lock()
	c.details[info.HouseID] = info
	c.mu.Unlock()
}

func (c *Cache) HouseDetail(houseID uint64) (HouseInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.details[houseID]
	return info, ok
}

func (c *Cache) InvalidateHouseDetail(houseID uint64) {
	c.mu.Lock()
	delete(c.details, houseID)
	c.mu.Unlock()
}
