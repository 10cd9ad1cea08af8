package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"escrowd/config"
	"escrowd/core/events"
	"escrowd/native/ledger"
	"escrowd/native/market"
	"escrowd/native/params"
	"escrowd/native/payments"
	"escrowd/observability/logging"
	"escrowd/observability/metrics"
	"escrowd/rpc"
	"escrowd/state"
	"escrowd/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("ESCROWD_ENV"))
	logger := logging.Setup("escrowd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	manager := state.NewManager(db)
	store := params.NewStore(manager)

	if err := bootstrap(cfg, store); err != nil {
		logger.Error("Failed to bootstrap settlement parameters", slog.Any("error", err))
		os.Exit(1)
	}

	emitter := metrics.NewRecorder(events.NoopEmitter{})

	settlementLedger := ledger.NewEngine()
	settlementLedger.SetState(manager)
	settlementLedger.SetAdminView(store)

	marketEngine := market.NewEngine()
	marketEngine.SetState(manager)
	marketEngine.SetLedger(settlementLedger)
	marketEngine.SetPlatform(store)
	marketEngine.SetPauses(store.PauseView())
	marketEngine.SetEmitter(emitter)
	marketEngine.SetStrictShipping(cfg.StrictShipping)

	paymentsEngine := payments.NewEngine()
	paymentsEngine.SetState(manager)
	paymentsEngine.SetPlatform(store)
	paymentsEngine.SetPauses(store.PauseView())
	paymentsEngine.SetEmitter(emitter)

	server := rpc.NewServer(rpc.Config{
		Market:             marketEngine,
		Payments:           paymentsEngine,
		Ledger:             settlementLedger,
		Params:             store,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("escrowd listening",
		slog.String("address", cfg.ListenAddress),
		slog.String("network", cfg.NetworkName),
	)
	if err := server.ListenAndServe(ctx, cfg.ListenAddress); err != nil {
		logger.Error("Server terminated", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("escrowd stopped")
}

// bootstrap seeds the parameter store from configuration on first start.
// The admin is only written once; later runs keep whatever the current
// admin has configured through the RPC surface.
func bootstrap(cfg *config.Config, store *params.Store) error {
	if strings.TrimSpace(cfg.AdminAddress) == "" {
		return nil
	}
	if _, err := store.Admin(); err == nil {
		// Already initialised on a previous start. Parameter changes
		// now go through RPC administration.
		return nil
	} else if !errors.Is(err, params.ErrAdminUnset) {
		return err
	}
	admin, err := config.ParseAddress(cfg.AdminAddress)
	if err != nil {
		return fmt.Errorf("admin address: %w", err)
	}
	if err := store.InitializeAdmin(admin); err != nil {
		return err
	}
	if err := store.SetFeeBps(admin, cfg.FeeBps); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.TreasuryAddress) != "" {
		treasury, err := config.ParseAddress(cfg.TreasuryAddress)
		if err != nil {
			return fmt.Errorf("treasury address: %w", err)
		}
		if err := store.SetTreasury(admin, treasury); err != nil {
			return err
		}
	}
	if cfg.EscrowTimeout > 0 {
		if err := store.SetEscrowTimeout(admin, cfg.EscrowTimeout); err != nil {
			return err
		}
	}
	for _, symbol := range cfg.SupportedAssets {
		if err := store.AddSupportedAsset(admin, symbol); err != nil {
			return err
		}
	}
	return nil
}
