// Command bridge runs one federation member's bridge validator process:
// the event streams, signers, and (if elected) leaders that together
// move value between chain A and chain B, plus the operational HTTP
// surface (health, metrics, swap status) every member exposes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/certen-labs/fedbridge/pkg/chaina"
	"github.com/certen-labs/fedbridge/pkg/chainb"
	"github.com/certen-labs/fedbridge/pkg/config"
	"github.com/certen-labs/fedbridge/pkg/eventstream"
	"github.com/certen-labs/fedbridge/pkg/httpapi"
	"github.com/certen-labs/fedbridge/pkg/leader"
	"github.com/certen-labs/fedbridge/pkg/metrics"
	"github.com/certen-labs/fedbridge/pkg/signer"
	"github.com/certen-labs/fedbridge/pkg/store"
	"github.com/certen-labs/fedbridge/pkg/supervisor"
	"github.com/certen-labs/fedbridge/pkg/tokenmap"
)

func main() {
	flag.Parse()

	logger := log.New(os.Stderr, "[bridge] ", log.LstdFlags)

	if err := run(logger); err != nil {
		logger.Fatalf("fatal: %v", err)
	}
}

func run(logger *log.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	tokensEthToScrt, err := tokenmap.Load(cfg.TokenMapEthPath, "eth->scrt")
	if err != nil {
		return fmt.Errorf("load eth->scrt token map: %w", err)
	}
	tokensScrtToEth, err := tokenmap.Load(cfg.TokenMapScrtPath, "scrt->eth")
	if err != nil {
		return fmt.Errorf("load scrt->eth token map: %w", err)
	}
	logger.Printf("loaded token maps (%d eth->scrt, %d scrt->eth)", tokensEthToScrt.Len(), tokensScrtToEth.Len())

	chainAClient, err := chaina.New(cfg.EthereumURL, cfg.EthChainID, cfg.MultisigContractAddress, cfg.VaultContractAddress)
	if err != nil {
		return fmt.Errorf("connect chain a: %w", err)
	}

	chainBClient := chainb.New(cfg.ChainBCLIPath, cfg.SecretContractAddress, cfg.ViewingKey, cfg.SignerAccName,
		chainb.WithTimeout(cfg.ChainBCLITimeout))

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.MigrateUp(ctx); err != nil {
		cancel()
		return fmt.Errorf("run migrations: %w", err)
	}
	cancel()

	swaps := store.NewSwapStore(db)
	signatures := store.NewSignatureStore(db)
	reg := metrics.New()

	self, err := chaina.PublicAddress(cfg.EthPrivateKey)
	if err != nil {
		return fmt.Errorf("derive chain a address from private key: %w", err)
	}

	lockObserver := leader.NewLockObserver(swaps, tokensEthToScrt, reg)
	signerA := signer.NewSignerA(chainAClient, chainBClient, tokensEthToScrt, cfg.EthPrivateKey, self, reg)
	signerB := signer.NewSignerB(swaps, signatures, chainBClient, cfg.SignerAccName, cfg.DefaultSleepInterval, reg)

	handlers := []eventstream.Handler{lockObserver, signerA}

	sup := supervisor.New(log.New(os.Stderr, "[supervisor] ", log.LstdFlags))
	sup.Add(signerB)

	if cfg.Role.LeaderA {
		leaderA := leader.NewLeaderA(chainBClient, chainAClient, chainAClient, swaps,
			store.NewCheckpointStore(db, "leader_a_nonce"), tokensScrtToEth,
			cfg.LeaderKey, cfg.ScrtStartNonce, cfg.DefaultSleepInterval, reg)
		handlers = append(handlers, leaderA)
		sup.Add(leaderA)
		logger.Println("leader A role enabled")
	}
	if cfg.Role.LeaderB {
		leaderB := leader.NewLeaderB(swaps, signatures, chainBClient, chainBClient, cfg.SignaturesThreshold, cfg.DefaultSleepInterval, cfg.QuorumTimeout, reg)
		sup.Add(leaderB)
		logger.Println("leader B role enabled")
	}

	stream := eventstream.New(chainAClient, store.NewCheckpointStore(db, "chain_a_log"), eventstream.Multi(handlers...), eventstream.Config{
		Confirmations: uint64(cfg.BlocksConfirmationReq),
		StartBlock:    cfg.EthStartBlock,
		PollInterval:  cfg.DefaultSleepInterval,
		Metrics:       reg,
		StreamName:    "chain_a_log",
	})
	sup.AddStarter(stream)

	health := httpapi.NewHealthHandlers(db, chainAClient, chainBClient, reg)
	swapHandlers := httpapi.NewSwapHandlers(swaps)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", health.HandleLivez)
	mux.HandleFunc("/readyz", health.HandleReadyz)
	mux.HandleFunc("/api/swaps/", swapHandlers.HandleGetSwap)
	mux.HandleFunc("/api/swaps", swapHandlers.HandleListSwaps)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", reg.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	go func() {
		logger.Printf("metrics server listening on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("metrics server error: %v", err)
		}
	}()
	defer metricsServer.Close()

	httpServer := &http.Server{Addr: cfg.HealthAddr, Handler: mux}

	ctx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serverErrCh := make(chan error, 1)
	go func() {
		logger.Printf("http server listening on %s", cfg.HealthAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	supervisorErrCh := make(chan error, 1)
	go func() { supervisorErrCh <- sup.Run(ctx) }()

	supervisorDone := false
	select {
	case sig := <-sigCh:
		logger.Printf("received %s, shutting down", sig)
	case err := <-serverErrCh:
		logger.Printf("http server error: %v", err)
	case err := <-supervisorErrCh:
		supervisorDone = true
		if err != nil {
			logger.Printf("supervisor error: %v", err)
		}
	}

	cancelRun()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("http server shutdown: %v", err)
	}

	if !supervisorDone {
		<-supervisorErrCh
	}
	logger.Println("shutdown complete")
	return nil
}
