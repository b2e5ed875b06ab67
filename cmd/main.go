package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"thread-manager/handler"
	"thread-manager/internal/config"
	"thread-manager/internal/integrations/openai"
	"thread-manager/internal/integrations/paramstore"
	"thread-manager/internal/logging"
	"thread-manager/internal/repository"
	"thread-manager/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		slog.Error("thread manager stopped", "err", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	// ---- AWS SDK config, only when something needs it ----
	var awsCfg aws.Config
	if cfg.NeedsAWS() {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return fmt.Errorf("load AWS config: %w", err)
		}
	}

	// ---- Store ----
	store, closeStore, err := newStore(cfg, awsCfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// ---- Provider ----
	provider, err := newProvider(cfg, awsCfg)
	if err != nil {
		return err
	}
	if cfg.OpenAIAPIKey == "" && cfg.ParamPrefix == "" {
		logger.Warn("no OpenAI credential configured; thread creation will fail")
	}

	// ---- Handler ----
	svc, err := usecase.NewThreadService(store, provider, logger)
	if err != nil {
		return fmt.Errorf("create thread service: %w", err)
	}
	h, err := handler.NewHandler(svc, logger)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	if cfg.Lambda {
		lambda.StartWithOptions(h.Handle, lambda.WithContext(ctx))
		return nil
	}
	return serve(ctx, logger, cfg, h.Router())
}

func newStore(cfg config.Config, awsCfg aws.Config) (usecase.ThreadStore, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendDynamoDB:
		store, err := repository.NewDynamoClient(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable)
		if err != nil {
			return nil, nil, fmt.Errorf("create dynamodb store: %w", err)
		}
		return store, func() {}, nil
	default:
		rdb, err := repository.OpenRedis(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		store, err := repository.NewRedisClient(rdb)
		if err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("create redis store: %w", err)
		}
		return store, func() {
			if err := rdb.Close(); err != nil {
				slog.Warn("close redis", "err", err)
			}
		}, nil
	}
}

func newProvider(cfg config.Config, awsCfg aws.Config) (*openai.Client, error) {
	opts := []openai.Option{openai.WithBaseURL(cfg.OpenAIBaseURL)}
	if cfg.OpenAIAPIKey == "" && cfg.ParamPrefix != "" {
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			return nil, fmt.Errorf("create SSM client: %w", err)
		}
		opts = append(opts, openai.WithParamStore(ssmClient, cfg.ParamPrefix))
	}
	client, err := openai.NewClient(cfg.OpenAIAPIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("create OpenAI client: %w", err)
	}
	return client, nil
}

func serve(ctx context.Context, logger *slog.Logger, cfg config.Config, router http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.BindAddr, "store", cfg.StoreBackend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
