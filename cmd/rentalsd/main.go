package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rentalchain/cmd/internal/passphrase"
	"rentalchain/config"
	"rentalchain/core"
	"rentalchain/crypto"
	"rentalchain/observability/logging"
	telemetry "rentalchain/observability/otel"
	"rentalchain/rpc"
	"rentalchain/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, logFile := logging.SetupWithFile("rentalsd", cfg.Environment, logging.FileOptions{
		Path:       cfg.LogFile.Path,
		MaxSizeMB:  cfg.LogFile.MaxSizeMB,
		MaxBackups: cfg.LogFile.MaxBackups,
		MaxAgeDays: cfg.LogFile.MaxAgeDays,
		Compress:   cfg.LogFile.Compress,
	})

	err = run(cfg, logger)
	if err != nil {
		logger.Error("rentalsd stopped", slog.Any("error", err))
	}
	_ = logFile.Close()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "rentalsd",
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Traces:      cfg.Telemetry.Traces,
		Metrics:     cfg.Telemetry.Metrics,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	key, err := passphrase.Unlock(cfg.OwnerKeystorePath, passphrase.NewSource(cfg.KeystorePassEnv, "owner keystore"))
	if err != nil {
		return err
	}
	genesis, err := cfg.Genesis(key.Address())
	if err != nil {
		return err
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	node, err := core.NewNode(db, genesis, core.WithLogger(logger))
	if err != nil {
		return err
	}
	logger.Info("node ready",
		slog.Uint64("height", node.Chain().Height()),
		slog.String("contract", node.Engine().Address().Hex()),
		logging.MaskField("owner", crypto.FromCommon(key.Address()).String()))

	token := cfg.RPCAuthToken()
	jwtSecret := cfg.RPCJWTSecret()
	if token == "" && jwtSecret == "" {
		logger.Warn("RPC credentials not set; mutating methods are disabled",
			slog.String("token_env", cfg.RPCAuthTokenEnv),
			slog.String("jwt_env", cfg.RPCJWT.SecretEnv))
	}
	server := rpc.NewServer(node, rpc.ServerConfig{
		AuthToken: token,
		JWT: rpc.JWTConfig{
			HMACSecret: jwtSecret,
			Issuer:     cfg.RPCJWT.Issuer,
			Audience:   cfg.RPCJWT.Audience,
		},
		RateLimit:    cfg.RPCRateLimit,
		RateBurst:    cfg.RPCRateBurst,
		ReadTimeout:  time.Duration(cfg.RPCReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.RPCWriteTimeoutSecs) * time.Second,
		Logger:       logger,
	})

	if addr := strings.TrimSpace(cfg.MetricsAddress); addr != "" {
		metrics := &http.Server{Addr: addr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("metrics listening", slog.String("addr", addr))
			if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metrics.Shutdown(shutdownCtx)
		}()
	}

	if err := server.Start(ctx, cfg.RPCAddress); err != nil {
		return err
	}
	logger.Info("rentalsd shutting down")
	return nil
}
