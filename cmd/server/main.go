package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"buymyroom/internal/config"
	"buymyroom/internal/market"
	"buymyroom/internal/server"
	"buymyroom/internal/txlog"
	"buymyroom/internal/wallet"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config error")
	}
	if level, err := zerolog.ParseLevel(cfg.Service.LogLevel); err == nil {
		log = log.Level(level)
	}

	ctx := context.Background()

	var journal txlog.Store = txlog.NewMemoryStore()
	if cfg.Service.PostgresDSN != "" {
		pg, err := txlog.NewPostgresStore(ctx, cfg.Service.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("submission journal error")
		}
		defer pg.Close()
		journal = pg
	}

	var provider wallet.Provider
	switch {
	case cfg.Chain.Account != "":
		provider = wallet.StaticProvider{Address: cfg.Chain.Account}
	case cfg.Chain.WalletURL != "":
		rpcProvider, err := wallet.DialProvider(ctx, cfg.Chain.WalletURL)
		if err != nil {
			log.Fatal().Err(err).Msg("wallet provider error")
		}
		provider = rpcProvider
	}
	session := wallet.NewSession(provider)
	session.Restore(ctx)
	if account := session.Account(); account != "" {
		log.Info().Str("account", account).Msg("restored wallet session")
	}

	var gateway market.Gateway
	marketplaceAddr := cfg.Deployment.Contracts.BuyMyRoom
	if cfg.Chain.PrivateKey != "" {
		ethGateway, err := market.NewEthGateway(ctx, market.EthGatewayConfig{
			RPCURL:             cfg.Chain.RPCURL,
			PrivateKeyHex:      cfg.Chain.PrivateKey,
			MarketplaceAddress: cfg.Deployment.Contracts.BuyMyRoom,
			TokenAddress:       cfg.Deployment.Contracts.HouseToken,
			ReceiptPoll:        cfg.Chain.ReceiptPoll,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("gateway error")
		}
		gateway = ethGateway
	} else {
		log.Warn().Msg("no private key configured, using in-memory fake gateway")
		fake := market.NewFakeGateway()
		fake.Marketplace = marketplaceAddr
		gateway = fake
	}

	cache := market.NewCache()
	flights := market.NewFlights()

	apiServer := server.NewServer(cfg, log, server.Deps{
		Session:  session,
		Gateway:  gateway,
		Queries:  market.NewQueries(gateway, cache, flights),
		Writes:   market.NewWrites(gateway, session, cache, flights),
		Purchase: market.NewPurchase(gateway, session, cache, flights, marketplaceAddr),
		Journal:  journal,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			log.Info().Err(err).Msg("server stopped")
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiServer.Shutdown(shutdownCtx)
}
