package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"reservecore/config"
	"reservecore/core/state"
	"reservecore/crypto"
	"reservecore/native/amm"
	"reservecore/native/reserve"
	"reservecore/native/timelock"
	"reservecore/native/token"
	"reservecore/observability/logging"
	"reservecore/rpc"
	"reservecore/storage"
)

func main() {
	configPath := flag.String("config", "./reserve.toml", "path to the daemon configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// moduleAccount derives a deterministic system account from a domain tag, so
// the treasury and pool addresses are stable across restarts without key
// material.
func moduleAccount(tag string) crypto.Address {
	digest := ethcrypto.Keccak256([]byte("reservecore/account/" + tag))
	return crypto.NewAddress(crypto.ReservePrefix, digest[12:])
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logging.Setup("reserved", cfg.Environment)
	if cfg.Log.File != "" {
		log = logging.SetupWithRotation("reserved", cfg.Environment, cfg.Log.File, cfg.Log.MaxSizeMB)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()
	manager := state.NewManager(db)

	owner, err := crypto.DecodeAddress(cfg.OwnerAddress)
	if err != nil {
		return err
	}
	treasury := moduleAccount("reserve/treasury")
	poolAccount := moduleAccount("reserve/pool")

	reserveTok := token.NewLedger(manager, cfg.Tokens.Reserve)
	peggedTok := token.NewLedger(manager, cfg.Tokens.Pegged)
	paymentTok := token.NewLedger(manager, cfg.Tokens.Payment)

	// The engine holds mint authority over the reserve and pegged ledgers;
	// the payment token is externally issued and never minted here.
	if err := reserveTok.SetAuthority(treasury, treasury); err != nil {
		return fmt.Errorf("claim reserve authority: %w", err)
	}
	if err := peggedTok.SetAuthority(treasury, treasury); err != nil {
		return fmt.Errorf("claim pegged authority: %w", err)
	}

	engine := reserve.NewEngine(treasury, reserveTok, peggedTok, paymentTok)
	engine.SetState(manager)
	if err := engine.InitializeOwner(owner); err != nil && !errors.Is(err, reserve.ErrUnauthorized) {
		return fmt.Errorf("initialize owner: %w", err)
	}

	// The stored owner wins over the configured one after an ownership
	// transfer.
	activeOwner, ok, err := engine.Owner()
	if err != nil {
		return err
	}
	if !ok {
		activeOwner = owner
	}

	pair := amm.NewPair(manager, poolAccount, peggedTok, paymentTok)
	router := amm.NewRouter()
	router.Register(pair)
	if err := engine.SetRouter(activeOwner, router); err != nil {
		return fmt.Errorf("wire router: %w", err)
	}
	if err := engine.SetPair(activeOwner, pair); err != nil {
		return fmt.Errorf("wire pair: %w", err)
	}

	lock := timelock.New(manager, activeOwner, time.Duration(cfg.TimelockDelaySeconds)*time.Second)
	lock.RegisterDispatcher("reserve", reserve.AdminDispatcher(engine, activeOwner))

	server := rpc.NewServer(engine, lock, log)
	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("rpc listening", "address", cfg.RPCAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return fmt.Errorf("rpc server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
