package main

import (
	"context"
	"flag"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"sidekick/config"
	"sidekick/core/events"
	"sidekick/native/boost"
	"sidekick/native/dailyaction"
	"sidekick/native/escrow"
	"sidekick/native/transfer"
	"sidekick/observability/logging"
	"sidekick/rpc"
	"sidekick/state"
	"sidekick/storage"
)

const (
	authTokenEnv = "SIDEKICK_RPC_TOKEN"
	envNameEnv   = "SIDEKICK_ENV"

	roleAdmin        = "ROLE_ADMIN"
	roleDefaultAdmin = "ROLE_DEFAULT_ADMIN"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envNameEnv))
	logger := logging.Setup("sidekickd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	ledger := state.NewLedger(db)
	if err := seedRoles(ledger, cfg); err != nil {
		logger.Error("failed to seed roles", slog.Any("error", err))
		os.Exit(1)
	}

	collector := events.NewCollector(4096)

	escrowEngine := escrow.NewEngine()
	escrowEngine.SetState(ledger)
	escrowEngine.SetVaultAddress(state.EscrowVaultAddress())
	escrowEngine.SetEmitter(collector)
	feeAddr, err := optionalAddress(cfg.FeeAddress)
	if err != nil {
		logger.Error("invalid fee address", slog.Any("error", err))
		os.Exit(1)
	}
	escrowEngine.Configure(cfg.BlockTimeSeconds, cfg.FeePercent, big.NewInt(cfg.FeeForGas), feeAddr)

	boostEngine := boost.NewEngine()
	boostEngine.SetState(ledger)
	boostEngine.SetVaultAddress(state.BoostVaultAddress())
	boostEngine.SetEmitter(collector)
	sidekickWallet, err := optionalAddress(cfg.SidekickWallet)
	if err != nil {
		logger.Error("invalid sidekick wallet", slog.Any("error", err))
		os.Exit(1)
	}
	boostEngine.SetSidekickWallet(sidekickWallet)
	if sidekickWallet != ([20]byte{}) && cfg.SidekickPercentage != boostEngine.SidekickPercentage() {
		if err := boostEngine.ChangeSidekickPercentage(sidekickWallet, cfg.SidekickPercentage); err != nil {
			logger.Error("failed to apply sidekick percentage", slog.Any("error", err))
			os.Exit(1)
		}
	}

	tracker := dailyaction.NewTracker()
	tracker.SetState(ledger)

	forwarder := transfer.NewForwarder(sidekickWallet, cfg.TransferFeeBps)
	forwarder.SetState(ledger)
	forwarder.SetEmitter(collector)

	authToken := strings.TrimSpace(os.Getenv(authTokenEnv))
	if authToken == "" {
		authToken = cfg.AuthToken
	}
	if authToken == "" {
		logger.Warn("no RPC auth token configured; privileged methods are disabled")
	}

	server := rpc.NewServer(rpc.ServerDeps{
		Ledger:    ledger,
		Escrow:    escrowEngine,
		Boost:     boostEngine,
		Daily:     tracker,
		Transfer:  forwarder,
		Collector: collector,
		AuthToken: authToken,
		Logger:    logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.RPCAddress)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", slog.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Stop(ctx); err != nil {
			logger.Error("shutdown failed", slog.Any("error", err))
			os.Exit(1)
		}
	case err := <-errCh:
		if err != nil {
			logger.Error("rpc server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}
}

func seedRoles(ledger *state.Ledger, cfg *config.Config) error {
	for _, raw := range cfg.Admins {
		addr, err := config.ParseAddress(raw)
		if err != nil {
			return err
		}
		if err := ledger.GrantRole(roleAdmin, addr[:]); err != nil {
			return err
		}
	}
	for _, raw := range cfg.DefaultAdmins {
		addr, err := config.ParseAddress(raw)
		if err != nil {
			return err
		}
		if err := ledger.GrantRole(roleDefaultAdmin, addr[:]); err != nil {
			return err
		}
	}
	return nil
}

func optionalAddress(raw string) ([20]byte, error) {
	if strings.TrimSpace(raw) == "" {
		return [20]byte{}, nil
	}
	return config.ParseAddress(raw)
}
