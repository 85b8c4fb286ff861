package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/community-bot/internal/api/http"
	"github.com/spec-kit/community-bot/internal/api/http/handlers"
	"github.com/spec-kit/community-bot/internal/auth"
	"github.com/spec-kit/community-bot/internal/config"
	"github.com/spec-kit/community-bot/internal/discord"
	"github.com/spec-kit/community-bot/internal/domain"
	"github.com/spec-kit/community-bot/internal/events"
	"github.com/spec-kit/community-bot/internal/observability"
	"github.com/spec-kit/community-bot/internal/persistence"
	"github.com/spec-kit/community-bot/internal/pubsub"
	"github.com/spec-kit/community-bot/internal/repository"
	"github.com/spec-kit/community-bot/internal/service"
	"github.com/spec-kit/community-bot/internal/transcript"
	"github.com/spec-kit/community-bot/internal/worker"
)

func runServe(c *cli.Context) error {
	cfg, logger, err := loadBase()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if err := cfg.Validate(); err != nil {
		return err
	}
	rules, err := config.LoadRules(cfg.Rewards)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			return err
		}
	}

	rdb := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer rdb.Close()

	ledger, err := ledgerStore(cfg.Engagement, rdb)
	if err != nil {
		return err
	}

	var publisher pubsub.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err = pubsub.NewKafkaPublisher(cfg.Kafka)
		if err != nil {
			return err
		}
		defer publisher.Close()
	}

	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		return err
	}

	clk := clockwork.NewRealClock()
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	archives := repository.NewTicketArchiveRepository(pg.PoolHandle())
	messenger := discord.NewMessenger(session)
	granter := discord.NewRoleGranter(session, cfg.Discord.GuildID)

	tickets := service.NewTicketService(service.TicketDependencies{
		Provisioner: discord.NewChannelProvisioner(session, cfg.Discord.GuildID),
		Archiver: discord.NewTranscriptArchiver(session, transcript.NewRenderer(),
			cfg.Tickets.LogChannelID, cfg.Tickets.PrivilegedRoles, clk, logger),
		Messenger:   messenger,
		ArchiveRepo: archives,
		Dispatcher:  dispatcher,
		Clock:       clk,
		Logger:      logger.Named("tickets"),
		Metrics:     metrics,
		Settings: service.TicketSettings{
			GuildID:         cfg.Discord.GuildID,
			ParentID:        cfg.Tickets.CategoryID,
			PrivilegedRoles: cfg.Tickets.PrivilegedRoles,
		},
	})
	if err := tickets.Restore(ctx); err != nil {
		return fmt.Errorf("restore ticket ids: %w", err)
	}

	engagement := service.NewEngagementService(service.EngagementDependencies{
		Store:      ledger,
		Dispatcher: dispatcher,
		Clock:      clk,
		Logger:     logger.Named("engagement"),
		Metrics:    metrics,
		Config:     cfg.Engagement,
	})
	if err := engagement.Load(ctx); err != nil {
		return fmt.Errorf("load engagement ledger: %w", err)
	}

	roleMenus := service.NewRoleMenuService(toRoleMenus(rules.RoleMenus), granter, dispatcher, clk, logger.Named("roles"))
	worker.StartRewardWorker(service.NewRewardService(toRewardRules(rules.Rewards), granter, dispatcher, logger.Named("rewards"), metrics))
	exportDone := worker.StartNotificationWorker(ctx, service.NewNotificationService(dispatcher, publisher, cfg.Kafka.Topic, logger.Named("export")))

	router := discord.NewRouter(ctx, discord.RouterDeps{
		Tickets:        tickets,
		Engagement:     engagement,
		RoleMenus:      roleMenus,
		Announcer:      messenger,
		Logger:         logger.Named("gateway"),
		AnnounceLevels: cfg.Engagement.AnnounceLevel,
		HandlerTimeout: cfg.Discord.HandlerTimeout(),
	})
	router.Attach(session)
	if err := session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger.Named("http"), metrics, cfg.App.RequestTimeout())
	var guard *auth.AuthMiddleware
	if cfg.Auth.JWTSecret != "" {
		guard = auth.NewAuthMiddleware(auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, clk))
	} else {
		logger.Warn("API_JWT_SECRET not set; dashboard API is unauthenticated")
	}
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readinessDeps(pg, rdb)),
		Tickets:        handlers.NewTicketsHandler(tickets, archives),
		Engagement:     handlers.NewEngagementHandler(engagement),
		Metrics:        handlers.NewMetricsHandler(metrics),
		AuthMiddleware: guard,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Error("fiber listen", zap.Error(err))
			stop()
		}
	}()
	logger.Info("bot started", zap.String("addr", cfg.App.Addr()), zap.String("guild_id", cfg.Discord.GuildID))

	<-ctx.Done()
	logger.Info("shutting down")

	if err := session.Close(); err != nil {
		logger.Warn("gateway close", zap.Error(err))
	}
	if err := app.Shutdown(); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	tickets.Drain()
	<-exportDone
	return nil
}

func ledgerStore(cfg config.EngagementConfig, rdb *persistence.Redis) (repository.LedgerStore, error) {
	switch cfg.LedgerBackend {
	case "redis":
		if rdb.Handle() == nil {
			return nil, fmt.Errorf("LEDGER_BACKEND=redis requires redis")
		}
		return repository.NewRedisLedgerStore(rdb.Handle(), repository.DefaultLedgerKey), nil
	default:
		return repository.NewFileLedgerStore(cfg.LedgerPath), nil
	}
}

func readinessDeps(pg *persistence.Postgres, rdb *persistence.Redis) map[string]handlers.Pinger {
	deps := map[string]handlers.Pinger{}
	if pg.PoolHandle() != nil {
		deps["postgres"] = pg
	}
	if rdb != nil {
		deps["redis"] = rdb
	}
	return deps
}

func toRewardRules(cfgs []config.RewardRuleConfig) []domain.RewardRule {
	out := make([]domain.RewardRule, 0, len(cfgs))
	for _, rule := range cfgs {
		out = append(out, domain.RewardRule{Level: rule.Level, RoleID: rule.RoleID})
	}
	return out
}

func toRoleMenus(cfgs []config.RoleMenuConfig) []domain.RoleMenu {
	out := make([]domain.RoleMenu, 0, len(cfgs))
	for _, menu := range cfgs {
		options := make([]domain.RoleOption, 0, len(menu.Roles))
		for _, role := range menu.Roles {
			options = append(options, domain.RoleOption{RoleID: role.RoleID, Label: role.Label})
		}
		out = append(out, domain.RoleMenu{
			Name:        menu.Name,
			Placeholder: menu.Placeholder,
			MaxValues:   menu.MaxValues,
			Options:     options,
		})
	}
	return out
}
