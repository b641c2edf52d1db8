package main

import (
	"context"
	"flag"
	"log"
	"math/big"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"stablevault/config"
	"stablevault/core/events"
	"stablevault/native/oracle"
	"stablevault/native/swap"
	"stablevault/native/token"
	"stablevault/native/vault"
	"stablevault/observability/logging"
	telemetry "stablevault/observability/otel"
	"stablevault/server"
	"stablevault/storage"
)

var poolAddress = common.HexToAddress("0x0000000000000000000000000000000000000b01")

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "config.yaml", "path to vaultd configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("VAULTD_ENV"))
	logger := logging.Setup("vaultd", env)

	otlpEndpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	insecure := true
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "vaultd",
		Environment: env,
		Endpoint:    otlpEndpoint,
		Insecure:    insecure,
		Headers:     telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		Metrics:     otlpEndpoint != "",
		Traces:      otlpEndpoint != "",
	})
	if err != nil {
		log.Fatalf("vaultd: init telemetry: %v", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("vaultd: load config: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("vaultd: create data dir: %v", err)
	}
	stateDB, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "vaultstate"))
	if err != nil {
		log.Fatalf("vaultd: open state database: %v", err)
	}
	defer stateDB.Close()

	history, err := storage.OpenHistory(cfg.HistoryPath, logger)
	if err != nil {
		log.Fatalf("vaultd: open history store: %v", err)
	}
	defer history.Close()

	vaultAddr := cfg.VaultAddress()
	stable := token.NewLedger("USDC")
	native := token.NewLedger("ETH")
	volatile := token.NewWrappedLedger("WETH", native)
	seedLedgers(cfg, vaultAddr, stable, native, volatile)

	roundSource := oracle.NewManualSource()
	if answer := config.Amount(cfg.Genesis.PriceAnswer); answer != nil {
		roundSource.SetAnswer(answer, time.Now())
	}
	feed := oracle.NewFeed(roundSource, cfg.Oracle.MaxPriceAge.Duration)

	poolPrice := big.NewInt(0)
	if price, err := feed.AuthoritativePrice(); err == nil {
		poolPrice = price
	}
	pool := swap.NewOraclePricedPool(poolAddress, stableToken(), volatileToken(), stable, volatile, poolPrice, 0)
	adapter := swap.NewAdapter(vaultAddr, pool.Address(), stableToken(), volatileToken(), stable, volatile, pool, swap.Config{
		Fee:         cfg.Venue.FeeTier,
		Deadline:    cfg.Venue.TradeDeadline.Duration,
		SlippageBps: cfg.Venue.SlippageBps,
	})

	engine, err := vault.NewEngine(vaultAddr, vault.Policy{
		TargetStablePct:  cfg.Vault.TargetStablePct,
		DividendPct:      cfg.Vault.DividendPct,
		DividendInterval: cfg.Vault.DividendInterval.Duration,
		QuoteProbe:       cfg.QuoteProbeAmount(),
	}, storage.NewVaultStore(stateDB), stable, volatile, native, feed, adapter)
	if err != nil {
		log.Fatalf("vaultd: build engine: %v", err)
	}
	engine.SetEmitter(events.MultiEmitter{events.SlogEmitter{Logger: logger}, history})
	if err := engine.Provision(cfg.OwnerAddress()); err != nil {
		log.Fatalf("vaultd: provision vault: %v", err)
	}

	principals := make([]server.Principal, 0, len(cfg.Auth.Principals))
	for _, principal := range cfg.Auth.Principals {
		principals = append(principals, server.Principal{
			Token:   principal.Token,
			Address: common.HexToAddress(principal.Address),
		})
	}
	srv := server.New(server.Config{ListenAddress: cfg.ListenAddress}, engine, history, server.NewAuthenticator(principals), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("vaultd listening", "addr", cfg.ListenAddress)
	if err := srv.ListenAndServe(ctx); err != nil {
		log.Fatalf("vaultd: serve: %v", err)
	}
}

func stableToken() common.Address {
	return common.HexToAddress("0x0000000000000000000000000000000000000c01")
}

func volatileToken() common.Address {
	return common.HexToAddress("0x0000000000000000000000000000000000000c02")
}

func seedLedgers(cfg *config.Config, vaultAddr common.Address, stable, native *token.Ledger, volatile *token.WrappedLedger) {
	if amount := config.Amount(cfg.Genesis.StableBalance); amount != nil && amount.Sign() > 0 {
		_ = stable.Mint(vaultAddr, amount)
	}
	if amount := config.Amount(cfg.Genesis.NativeBalance); amount != nil && amount.Sign() > 0 {
		_ = native.Mint(vaultAddr, amount)
	}
	if amount := config.Amount(cfg.Genesis.VolatileBalance); amount != nil && amount.Sign() > 0 {
		_ = volatile.Mint(vaultAddr, amount)
	}
	if amount := config.Amount(cfg.Genesis.PoolStable); amount != nil && amount.Sign() > 0 {
		_ = stable.Mint(poolAddress, amount)
	}
	if amount := config.Amount(cfg.Genesis.PoolVolatile); amount != nil && amount.Sign() > 0 {
		_ = volatile.Mint(poolAddress, amount)
	}
}
