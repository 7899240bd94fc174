package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"codesensei/internal/bootstrap/config"
	"codesensei/internal/bootstrap/database"
	"codesensei/internal/bootstrap/logging"
	cacheinfra "codesensei/internal/infrastructure/cache"
	sqliterepo "codesensei/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "codesensei/internal/infrastructure/persistence/sqlite/uow"
	"codesensei/internal/ports"
	"codesensei/internal/usecase/review"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewReviewRepository,
			fx.As(new(ports.ReviewRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewSQLiteCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(provideService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideService(cfg config.Config, repo ports.ReviewRepository, uow ports.UnitOfWork, cache ports.Cache) (*review.Service, error) {
	svc := review.NewService(repo, uow, cache)
	svc.SetDashboardBaseURL(cfg.Server.PublicBaseURL)
	svc.SetDiffCharBudget(cfg.LLM.DiffCharBudget)

	profile, err := review.LoadRewardsProfile(cfg.Rewards.ProfileFile)
	if err != nil {
		return nil, err
	}
	svc.SetRewardsProfile(profile)
	return svc, nil
}
