package market

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"buymyroom/internal/contracts"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EthGateway submits transactions to the BuyMyRoom marketplace and the
// HouseToken contract over one RPC connection.
type EthGateway struct {
	client      *ethclient.Client
	marketplace *bind.BoundContract
	token       *bind.BoundContract
	mktAddress  common.Address
	chainID     *big.Int
	transacts   *bind.TransactOpts
	pollEvery   time.Duration
}

type EthGatewayConfig struct {
	RPCURL             string
	PrivateKeyHex      string
	MarketplaceAddress string
	TokenAddress       string
	ReceiptPoll        time.Duration
}

func NewEthGateway(ctx context.Context, cfg EthGatewayConfig) (*EthGateway, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if cfg.MarketplaceAddress == "" || cfg.TokenAddress == "" {
		return nil, fmt.Errorf("marketplace and token addresses are required")
	}
	if cfg.PrivateKeyHex == "" {
		return nil, fmt.Errorf("private key is required for submitting writes")
	}

	cli, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	mktABI, err := abi.JSON(strings.NewReader(contracts.BuyMyRoomABI))
	if err != nil {
		return nil, fmt.Errorf("parse marketplace abi: %w", err)
	}
	tokABI, err := abi.JSON(strings.NewReader(contracts.HouseTokenABI))
	if err != nil {
		return nil, fmt.Errorf("parse token abi: %w", err)
	}

	mktAddress := common.HexToAddress(cfg.MarketplaceAddress)
	tokAddress := common.HexToAddress(cfg.TokenAddress)

	pk, err := parsePrivateKey(cfg.PrivateKeyHex)
	if err != nil {
		return nil, err
	}
	chainID, err := cli.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}
	txOpts, err := bind.NewKeyedTransactorWithChainID(pk, chainID)
	if err != nil {
		return nil, fmt.Errorf("transactor: %w", err)
	}
	txOpts.Context = ctx
	txOpts.GasLimit = 0 // let node estimate
	txOpts.GasPrice = nil
	txOpts.Nonce = nil

	poll := cfg.ReceiptPoll
	if poll <= 0 {
		poll = 2 * time.Second
	}

	return &EthGateway{
		client:      cli,
		marketplace: bind.NewBoundContract(mktAddress, mktABI, cli, cli, cli),
		token:       bind.NewBoundContract(tokAddress, tokABI, cli, cli, cli),
		mktAddress:  mktAddress,
		chainID:     chainID,
		transacts:   txOpts,
		pollEvery:   poll,
	}, nil
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(hexKey, "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// MarketplaceAddress is the spender address used by token approvals.
func (g *EthGateway) MarketplaceAddress() string {
	return g.mktAddress.Hex()
}

func (g *EthGateway) AirdropHouses(ctx context.Context, from string) (Receipt, error) {
	return g.transact(ctx, g.marketplace, from, nil, "airdropHouses")
}

func (g *EthGateway) ListHouse(ctx context.Context, from string, houseID uint64, price *big.Int) (Receipt, error) {
	return g.transact(ctx, g.marketplace, from, nil, "listHouse", new(big.Int).SetUint64(houseID), price)
}

func (g *EthGateway) BuyHouseWithTokens(ctx context.Context, from string, houseID uint64) (Receipt, error) {
	return g.transact(ctx, g.marketplace, from, nil, "buyHouseWithTokens", new(big.Int).SetUint64(houseID))
}

func (g *EthGateway) BuyTokens(ctx context.Context, from string, value *big.Int) (Receipt, error) {
	return g.transact(ctx, g.marketplace, from, value, "buyTokens")
}

func (g *EthGateway) Approve(ctx context.Context, from, spender string, amount *big.Int) (Receipt, error) {
	if !common.IsHexAddress(spender) {
		return Receipt{}, fmt.Errorf("%w: spender %q", ErrInvalidInput, spender)
	}
	return g.transact(ctx, g.token, from, nil, "approve", common.HexToAddress(spender), amount)
}

// transact submits one write and waits for it to mine. A mined-but-reverted
// receipt is a write rejection, not a transport error.
func (g *EthGateway) transact(ctx context.Context, contract *bind.BoundContract, from string, value *big.Int, method string, args ...interface{}) (Receipt, error) {
	if !common.IsHexAddress(from) {
		return Receipt{}, fmt.Errorf("%w: from address %q", ErrInvalidInput, from)
	}

	opts := *g.transacts
	opts.Context = ctx
	opts.Value = value

	tx, err := contract.Transact(&opts, method, args...)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %s: %w", ErrWriteRejected, method, err)
	}

	receipt, err := g.waitMined(ctx, tx)
	if err != nil {
		return Receipt{}, fmt.Errorf("%s: await receipt: %w", method, err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return Receipt{}, fmt.Errorf("%w: %s reverted in tx %s", ErrWriteRejected, method, tx.Hash().Hex())
	}

	return Receipt{
		TxHash:      tx.Hash().Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}, nil
}

// waitMined polls until the transaction is mined or the context is cancelled.
// No timeout of its own: an unconfirmed write stays pending until the chain
// settles it or the caller abandons the flow.
func (g *EthGateway) waitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	ticker := time.NewTicker(g.pollEvery)
	defer ticker.Stop()

	for {
		receipt, err := g.client.TransactionReceipt(ctx, tx.Hash())
		if receipt != nil {
			return receipt, nil
		}
		if err != nil && err.Error() != "not found" {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (g *EthGateway) GetUserHouses(ctx context.Context, account string) ([]uint64, error) {
	if !common.IsHexAddress(account) {
		return nil, fmt.Errorf("%w: account %q", ErrInvalidInput, account)
	}
	var out []interface{}
	err := g.marketplace.Call(&bind.CallOpts{Context: ctx}, &out, "getUserHouses", common.HexToAddress(account))
	if err != nil {
		return nil, fmt.Errorf("getUserHouses: %w", err)
	}
	return decodeHouseIDs(out)
}

func (g *EthGateway) GetHousesForSale(ctx context.Context) ([]uint64, error) {
	var out []interface{}
	err := g.marketplace.Call(&bind.CallOpts{Context: ctx}, &out, "getHousesForSale")
	if err != nil {
		return nil, fmt.Errorf("getHousesForSale: %w", err)
	}
	return decodeHouseIDs(out)
}

func (g *EthGateway) GetHouseOwner(ctx context.Context, houseID uint64) (string, error) {
	var out []interface{}
	err := g.marketplace.Call(&bind.CallOpts{Context: ctx}, &out, "getHouseOwner", new(big.Int).SetUint64(houseID))
	if err != nil {
		return "", fmt.Errorf("getHouseOwner: %w", err)
	}
	if len(out) != 1 {
		return "", fmt.Errorf("%w: getHouseOwner returned %d values", ErrMalformedResponse, len(out))
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return "", fmt.Errorf("%w: getHouseOwner value is not an address", ErrMalformedResponse)
	}
	return addr.Hex(), nil
}

func (g *EthGateway) GetHouseInfo(ctx context.Context, houseID uint64) (HouseInfo, error) {
	var out []interface{}
	err := g.marketplace.Call(&bind.CallOpts{Context: ctx}, &out, "getHouseInfo", new(big.Int).SetUint64(houseID))
	if err != nil {
		return HouseInfo{}, fmt.Errorf("getHouseInfo: %w", err)
	}
	return decodeHouseInfo(houseID, out)
}

func (g *EthGateway) GetUserTokenBalance(ctx context.Context, account string) (*big.Int, error) {
	if !common.IsHexAddress(account) {
		return nil, fmt.Errorf("%w: account %q", ErrInvalidInput, account)
	}
	var out []interface{}
	err := g.marketplace.Call(&bind.CallOpts{Context: ctx}, &out, "getUserTokenBalance", common.HexToAddress(account))
	if err != nil {
		return nil, fmt.Errorf("getUserTokenBalance: %w", err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: getUserTokenBalance returned %d values", ErrMalformedResponse, len(out))
	}
	balance, ok := out[0].(*big.Int)
	if !ok || balance == nil {
		return nil, fmt.Errorf("%w: getUserTokenBalance value is not an integer", ErrMalformedResponse)
	}
	return balance, nil
}

func (g *EthGateway) Ping(ctx context.Context) error {
	if g.client == nil {
		return fmt.Errorf("rpc client not configured")
	}
	_, err := g.client.BlockNumber(ctx)
	return err
}

// decodeHouseIDs converts the raw call result into house ids, normalizing any
// unexpected shape into ErrMalformedResponse at this boundary.
func decodeHouseIDs(out []interface{}) ([]uint64, error) {
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: expected one return value, got %d", ErrMalformedResponse, len(out))
	}
	raw, ok := out[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: house list is not uint256[]", ErrMalformedResponse)
	}
	ids := make([]uint64, 0, len(raw))
	for _, v := range raw {
		if v == nil || v.Sign() < 0 || !v.IsUint64() {
			return nil, fmt.Errorf("%w: house id out of range", ErrMalformedResponse)
		}
		ids = append(ids, v.Uint64())
	}
	return ids, nil
}

func decodeHouseInfo(houseID uint64, out []interface{}) (HouseInfo, error) {
	if len(out) != 4 {
		return HouseInfo{}, fmt.Errorf("%w: getHouseInfo returned %d values", ErrMalformedResponse, len(out))
	}
	owner, ok := out[0].(common.Address)
	if !ok {
		return HouseInfo{}, fmt.Errorf("%w: house owner is not an address", ErrMalformedResponse)
	}
	price, ok := out[1].(*big.Int)
	if !ok || price == nil {
		return HouseInfo{}, fmt.Errorf("%w: house price is not an integer", ErrMalformedResponse)
	}
	listedAt, ok := out[2].(*big.Int)
	if !ok || listedAt == nil || !listedAt.IsUint64() {
		return HouseInfo{}, fmt.Errorf("%w: listed timestamp out of range", ErrMalformedResponse)
	}
	forSale, ok := out[3].(bool)
	if !ok {
		return HouseInfo{}, fmt.Errorf("%w: for-sale flag is not a bool", ErrMalformedResponse)
	}
	return HouseInfo{
		HouseID:   houseID,
		Owner:     owner.Hex(),
		Price:     price,
		ListedAt:  listedAt.Uint64(),
		IsForSale: forSale,
	}, nil
}
