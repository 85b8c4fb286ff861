package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/community-bot/internal/auth"
	"github.com/spec-kit/community-bot/internal/config"
	"github.com/spec-kit/community-bot/internal/discord"
	"github.com/spec-kit/community-bot/internal/observability"
	"github.com/spec-kit/community-bot/internal/persistence"
)

func loadBase() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

func runRegisterCommands(c *cli.Context) error {
	cfg, logger, err := loadBase()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.Discord.ApplicationID == "" {
		return fmt.Errorf("CLIENT_ID is required to register commands")
	}
	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		return err
	}
	registered, err := discord.RegisterCommands(session, cfg.Discord.ApplicationID, cfg.Discord.GuildID)
	if err != nil {
		return err
	}
	logger.Info("slash commands registered", zap.Int("count", len(registered)), zap.String("guild_id", cfg.Discord.GuildID))
	return nil
}

func runMigrate(c *cli.Context) error {
	cfg, logger, err := loadBase()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.Postgres.DSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required to migrate")
	}
	dir := c.String("dir")
	if dir == "" {
		dir = cfg.Postgres.MigrationsDir
	}
	pg, err := persistence.NewPostgres(c.Context, cfg.Postgres, logger)
	if err != nil {
		return err
	}
	defer pg.Close()
	return persistence.RunMigrations(c.Context, pg.PoolHandle(), dir, logger)
}

func runIssueToken(c *cli.Context) error {
	cfg, logger, err := loadBase()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("API_JWT_SECRET is required to issue tokens")
	}
	scope, ok := auth.ParseScope(c.String("scope"))
	if !ok {
		return fmt.Errorf("unknown scope %q", c.String("scope"))
	}
	token, expiresAt, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, nil).
		GenerateToken(c.String("subject"), scope)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	logger.Info("token issued", zap.String("subject", c.String("subject")), zap.Time("expires_at", expiresAt))
	fmt.Fprintln(c.App.Writer, token)
	return nil
}
