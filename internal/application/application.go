// Package application собирает сервис из модулей: соединения,
// восстановление состояния, движок сделок, воркеры и серверы.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cardbridge/internal/config"
	"cardbridge/internal/domain/service/deal"
	"cardbridge/internal/domain/service/eligibility"
	"cardbridge/internal/domain/service/ledger"
	"cardbridge/internal/infrastructure/benefits"
	"cardbridge/internal/infrastructure/notifier"
	"cardbridge/internal/infrastructure/persistence"
	"cardbridge/internal/registry"
	"cardbridge/internal/server"
	"cardbridge/internal/worker"
	"cardbridge/pkg/application/connectors"
	"cardbridge/pkg/application/modules"
	"cardbridge/pkg/logx"
	"cardbridge/pkg/middlewarex"
)

const (
	appName    = "cardbridge"
	appVersion = "1.0.0"

	eventBufferSize = 100
	logFieldMaxLen  = 4096
)

func Run(ctx context.Context, log *slog.Logger) error {
	// 1. Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}

	// 2. Connections
	pg := &connectors.Postgres{
		DSN:             cfg.Postgres.DSN,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
	}
	db := pg.Client(ctx)
	defer pg.Close(ctx)

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	log.Info("database connection OK")

	rd := &connectors.Redis{
		Address:            cfg.Redis.Address,
		Username:           cfg.Redis.Username,
		Password:           cfg.Redis.Password,
		DatabaseNumber:     cfg.Redis.DatabaseNumber,
		PoolSize:           cfg.Redis.PoolSize,
		MinIdleConnections: cfg.Redis.MinIdleConnections,
		MaxIdleConnections: cfg.Redis.MaxIdleConnections,
	}
	rd.Client(ctx)
	defer rd.Close(ctx)

	// 3. Repository + state replay
	dealRepo := persistence.NewDealRepository(db)

	reg := registry.New()
	led := ledger.New()

	if err := replay(ctx, dealRepo, reg, led); err != nil {
		return fmt.Errorf("state replay: %w", err)
	}

	// 4. Deal engine
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Address,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DatabaseNumber,
	})
	defer func() { _ = asynqClient.Close() }()

	events := make(chan deal.Event, eventBufferSize)

	profileSource := benefits.NewHTTPSource(cfg.Benefits.BaseURL)
	eligibilitySvc := eligibility.NewService(profileSource)

	dealSvc := deal.NewService(reg, led, eligibilitySvc).
		WithJournal(dealRepo).
		WithScheduler(worker.NewAsynqScheduler(asynqClient)).
		WithEvents(events).
		WithPolicy(deal.Policy{
			PlatformFeeBps: cfg.Deals.PlatformFeeBps,
			FundingWindow:  cfg.Deals.FundingWindow,
			ConfirmWindow:  cfg.Deals.ConfirmWindow,
		})

	g, ctx := errgroup.WithContext(ctx)

	// 5. Notifier
	if cfg.Bot.Enabled {
		alertBot, err := notifier.NewTelegramBot(cfg.Bot.Token, cfg.Bot.ChatID)
		if err != nil {
			return fmt.Errorf("notifier bot: %w", err)
		}

		g.Go(func() error {
			if err := alertBot.Run(ctx, events); err != nil && ctx.Err() == nil {
				return fmt.Errorf("alertBot.Run: %w", err)
			}
			return nil
		})
	}

	// 6. Workers
	expirer := worker.NewExpirer(dealSvc).WithInterval(cfg.Deals.SweepInterval)

	g.Go(func() error {
		if err := expirer.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("expirer.Run: %w", err)
		}
		return nil
	})

	zapLogger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("zap.NewProduction: %w", err)
	}

	modules.AsynqServer{
		RedisUsername: cfg.Redis.Username,
		RedisPassword: cfg.Redis.Password,
		RedisAddress:  cfg.Redis.Address,
		RedisDB:       cfg.Redis.DatabaseNumber,
		Logger:        worker.NewZapAsynqLogger(zapLogger),
	}.Run(ctx, g,
		modules.AsynqQueues{"default": 1},
		modules.AsynqHandler{Pattern: worker.TypeDealExpire, Handle: expirer.HandleExpireTask},
		modules.AsynqHandler{Pattern: worker.TypeDealSweep, Handle: expirer.HandleSweepTask},
	)

	// 7. Servers
	router := newRouter(server.NewServer(server.NewDealServer(dealSvc, led)))

	modules.HTTPServer{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}.Run(ctx, g, &http.Server{
		Addr:              cfg.Server.ListenAddress,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	})

	modules.MetricServer{
		ListenAddress: cfg.Server.MetricListenAddress,
	}.Run(ctx, g)

	modules.ProbeServer{
		Name:          appName,
		Version:       appVersion,
		ListenAddress: cfg.Server.ProbeListenAddress,
	}.Run(ctx, g)

	return g.Wait()
}

// replay восстанавливает реестр и леджер из упреждающих записей.
func replay(
	ctx context.Context,
	repo *persistence.DealRepository,
	reg *registry.Registry,
	led *ledger.Ledger,
) error {
	deals, err := repo.LoadDeals(ctx)
	if err != nil {
		return fmt.Errorf("repo.LoadDeals: %w", err)
	}

	for _, d := range deals {
		if err := reg.Put(d); err != nil {
			return fmt.Errorf("registry.Put: %w", err)
		}
	}

	entries, err := repo.LoadLedger(ctx)
	if err != nil {
		return fmt.Errorf("repo.LoadLedger: %w", err)
	}

	led.Restore(entries)

	logger(ctx).Info("state replayed",
		slog.Int("deals", len(deals)),
		slog.Int("ledger_entries", len(entries)))

	return nil
}

func newRouter(srv server.Server) chi.Router {
	router := chi.NewRouter()

	masker := logx.NewSensitiveDataMasker()

	router.Use(
		middlewarex.Recovery,
		middlewarex.TraceID,
		middlewarex.Logger,
		middlewarex.UserID,
		middlewarex.RequestLogging(masker, logFieldMaxLen),
		middlewarex.ResponseLogging(masker, logFieldMaxLen),
	)

	srv.RegisterRoutes(router)

	return router
}
