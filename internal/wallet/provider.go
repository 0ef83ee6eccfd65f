package wallet

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// Provider is the wallet boundary. Accounts lists already-authorized
// addresses without prompting; RequestAccounts asks the wallet to authorize
// one, which may prompt the user. Only the first returned address is used.
type Provider interface {
	Accounts(ctx context.Context) ([]string, error)
	RequestAccounts(ctx context.Context) ([]string, error)
}

// RPCProvider talks to a wallet-capable JSON-RPC endpoint.
type RPCProvider struct {
	client *rpc.Client
}

func DialProvider(ctx context.Context, url string) (*RPCProvider, error) {
	cli, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial wallet rpc: %w", err)
	}
	return &RPCProvider{client: cli}, nil
}

func (p *RPCProvider) Accounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := p.client.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, fmt.Errorf("eth_accounts: %w", err)
	}
	return accounts, nil
}

func (p *RPCProvider) RequestAccounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := p.client.CallContext(ctx, &accounts, "eth_requestAccounts"); err != nil {
		return nil, fmt.Errorf("eth_requestAccounts: %w", err)
	}
	return accounts, nil
}

// StaticProvider serves a fixed address, for deployments where the service
// holds its own signing key instead of delegating to a wallet extension.
type StaticProvider struct {
	Address string
}

func (p StaticProvider) Accounts(context.Context) ([]string, error) {
	if p.Address == "" {
		return nil, nil
	}
	return []string{p.Address}, nil
}

func (p StaticProvider) RequestAccounts(ctx context.Context) ([]string, error) {
	return p.Accounts(ctx)
}
