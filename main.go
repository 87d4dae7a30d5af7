package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/withobsrvr/payroll-sync-processor/chain"
	"github.com/withobsrvr/payroll-sync-processor/config"
	"github.com/withobsrvr/payroll-sync-processor/logging"
	"github.com/withobsrvr/payroll-sync-processor/payroll"
	"github.com/withobsrvr/payroll-sync-processor/pgsink"
	"github.com/withobsrvr/payroll-sync-processor/processor"
	"github.com/withobsrvr/payroll-sync-processor/server"
	"github.com/withobsrvr/payroll-sync-processor/settle"
	"github.com/withobsrvr/payroll-sync-processor/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.NewComponentLogger(cfg.Service.Name, cfg.Service.Version)
	if err != nil {
		os.Stderr.WriteString("failed to create logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting payroll sync processor",
		zap.String("rpc_endpoint", cfg.Chain.RPCEndpoint),
		zap.String("contract", cfg.Chain.ContractAddress),
		zap.Uint64("start_block", cfg.Chain.StartBlock),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := ethclient.DialContext(ctx, cfg.Chain.RPCEndpoint)
	if err != nil {
		logger.Fatal("failed to connect to rpc endpoint", zap.Error(err))
	}
	defer client.Close()

	contract := cfg.Contract()
	clock := chain.NewBlockClock(client)
	decoder := payroll.NewEventDecoder(clock, logger)
	history := store.NewHistoryStore(logger)

	caller := payroll.NewCaller(contract, client)
	registry := store.NewRegistryProjection(caller, logger)

	backfiller := processor.NewBackfiller(client, client, clock, decoder, contract, cfg.Chain.ChunkSize, logger)
	mux := processor.NewLiveMultiplexer(client, client, decoder, contract, cfg.GetPollInterval(), logger)

	var sink processor.ArchiveSink
	var pg *pgsink.Sink
	if cfg.Postgres.Enabled {
		pg, err = pgsink.NewSink(cfg.Postgres.ConnectionString(), logger)
		if err != nil {
			logger.Fatal("failed to initialize postgres sink", zap.Error(err))
		}
		defer pg.Close()
		sink = pg
	}

	pipeline := processor.NewPipeline(backfiller, mux, history, sink, cfg.Chain.StartBlock, logger)

	healthServer := server.NewHealthServer(cfg.Health.Port, logger)
	healthServer.SetPhaseProvider(pipeline.Phase)
	healthServer.RegisterStats("decoder", decoder.Stats)
	healthServer.RegisterStats("history", history.Stats)
	healthServer.RegisterStats("live", mux.Stats)
	if pg != nil {
		healthServer.RegisterStats("archive", pg.Stats)
	}

	if cfg.Chain.PrivateKey != "" {
		submitter, err := chain.NewKeyedSubmitter(ctx, client, cfg.Chain.PrivateKey, logger)
		if err != nil {
			logger.Fatal("failed to initialize transaction signer", zap.Error(err))
		}
		transactor := payroll.NewTransactor(contract, submitter)
		coordinator := settle.NewCoordinator(registry, transactor, submitter, cfg.Settlement.MaxBatchSize, logger)
		healthServer.RegisterStats("settlement", coordinator.Stats)
	} else {
		logger.Info("no signing key configured, running read-only")
	}

	healthServer.Start()

	done := make(chan error, 1)
	go func() {
		done <- pipeline.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-done:
		if err != nil && ctx.Err() == nil {
			logger.Error("pipeline terminated", zap.Error(err))
		}
	}

	pipeline.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("health server shutdown error", zap.Error(err))
	}

	logger.Info("payroll sync processor stopped")
}
