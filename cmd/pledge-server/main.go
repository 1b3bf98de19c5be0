// Package main запускает HTTP-сервер приёма ежемесячных пожертвований.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/pledge-service/internal/config"
	"github.com/mmeshcher/pledge-service/internal/gateway"
	"github.com/mmeshcher/pledge-service/internal/handler"
	"github.com/mmeshcher/pledge-service/internal/ledger"
	"github.com/mmeshcher/pledge-service/internal/repository"
	"github.com/mmeshcher/pledge-service/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	fiscal, err := cfg.LoadFiscal()
	if err != nil {
		sugar.Fatalw("fiscal configuration error", "error", err.Error(), "file", cfg.FiscalConfig)
	}

	if cfg.StripeSecretKey == "" {
		sugar.Warn("stripe secret key is empty, checkout requests will fail")
	}

	csvLedger := ledger.NewCSVWriter(cfg.LedgerPath)
	recorder := ledger.Multi{csvLedger}

	var history handler.History
	if cfg.DatabaseURI != "" {
		repo, err := repository.NewPostgresRepository(context.Background(), cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
		defer repo.Close()

		recorder = append(recorder, ledger.RecorderFunc(repo.AppendLedgerRecord))
		history = repo
	}

	gw := gateway.NewStripeGateway(cfg.StripeSecretKey)
	svc := service.NewService(gw, recorder, fiscal, cfg.Domain, service.WithLogger(logger))

	h := handler.NewHandler(svc, history, logger, cfg.StaticDir)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Журнал останавливается только после завершения HTTP-сервера
	ledgerCtx, stopLedger := context.WithCancel(context.Background())
	defer stopLedger()

	g.Go(func() error {
		csvLedger.Run(ledgerCtx)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting pledge server",
			"addr", cfg.RunAddress,
			"fiscal_year_end", fiscal.YearEnd.String(),
			"ledger", csvLedger.Path())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		defer stopLedger()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
