package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"code_duel/internal/api"
	"code_duel/internal/api/middleware"
	"code_duel/internal/app/catalog"
	"code_duel/internal/app/judge"
	"code_duel/internal/app/lifecycle"
	"code_duel/internal/app/notify"
	"code_duel/internal/app/service"
	"code_duel/internal/app/worker"
	"code_duel/internal/domain/model"
	"code_duel/internal/domain/repository"
	"code_duel/internal/platform/broker"
	"code_duel/internal/platform/config"
	"code_duel/internal/platform/database"
	"code_duel/internal/platform/logger"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveArgs struct {
	migrate         bool
	shutdownTimeout time.Duration
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and WebSocket endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, config.AppConfig)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveArgs.migrate, "migrate", false, "apply the schema before serving (postgres storage only)")
	serveCmd.Flags().DurationVar(&serveArgs.shutdownTimeout, "shutdown-timeout", 15*time.Second, "grace period for in-flight requests and judging")
}

type repositories struct {
	db          *sql.DB
	users       repository.UserRepository
	profiles    repository.ProfileRepository
	matches     repository.MatchRepository
	submissions repository.SubmissionRepository
	problems    repository.ProblemRepository
}

func openStorage(ctx context.Context, cfg *config.Config) (*repositories, func(), error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		store := repository.NewMemoryStore()
		logger.L().Warn("storage_in_memory", zap.String("hint", "data is lost on restart"))
		return &repositories{
			users:       store.Users(),
			profiles:    store.Profiles(),
			matches:     store.Matches(),
			submissions: store.Submissions(),
			problems:    store.Problems(),
		}, func() {}, nil
	}

	if err := database.Connect(); err != nil {
		return nil, nil, err
	}
	if serveArgs.migrate {
		if err := database.Migrate(ctx, database.DB); err != nil {
			database.Close()
			return nil, nil, err
		}
	}
	db := database.DB
	return &repositories{
		db:          db,
		users:       repository.NewPgUserRepository(db),
		profiles:    repository.NewPgProfileRepository(db),
		matches:     repository.NewPgMatchRepository(db),
		submissions: repository.NewPgSubmissionRepository(db),
		problems:    repository.NewPgProblemRepository(db),
	}, database.Close, nil
}

func problemProvider(cfg *config.Config, repos *repositories) (catalog.Provider, error) {
	// An empty in-memory problem table could never pair anyone.
	if cfg.ProblemSource == config.ProblemSourceCatalog || repos.db == nil {
		c, err := catalog.New(cfg.ProblemCatalogPath)
		if err != nil {
			return nil, err
		}
		logger.L().Info("problem_catalog_loaded",
			zap.Int("easy", c.Len(model.DifficultyEasy)),
			zap.Int("medium", c.Len(model.DifficultyMedium)),
			zap.Int("hard", c.Len(model.DifficultyHard)),
		)
		return c, nil
	}
	return catalog.NewRepositoryProvider(repos.problems), nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	defer logger.Sync()

	repos, closeStorage, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStorage()

	problems, err := problemProvider(cfg, repos)
	if err != nil {
		return err
	}

	hub := notify.NewHub(func(r *http.Request) (string, bool) {
		return middleware.GetUserIDFromContext(r.Context())
	})

	var (
		rdb      *redis.Client
		locker   lifecycle.Locker = lifecycle.NewLocalLocker()
		notifier notify.Notifier  = hub
	)
	if cfg.LockDriver == config.LockDriverRedis {
		if err := broker.Connect(); err != nil {
			return err
		}
		defer broker.Close()
		rdb = broker.RDB
		locker = lifecycle.NewRedisLocker(rdb, cfg.NotifyChannelPrefix, cfg.MatchLockTTL)
		notifier = notify.NewRedisNotifier(rdb, cfg.NotifyChannelPrefix)
	}

	sandbox := judge.NewHTTPSandbox(cfg.SandboxURL,
		judge.WithCredentials(cfg.SandboxClientID, cfg.SandboxClientSecret),
		judge.WithTimeout(cfg.SandboxTimeout),
	)
	evaluator := judge.NewEvaluator(judge.NewAdapter(sandbox, cfg.SandboxTimeout))
	pool := worker.NewPool("judge", cfg.WorkerPoolSize)

	manager := lifecycle.NewManager(repos.db, repos.matches, repos.profiles, repos.users, locker, notifier)
	duel := service.NewDuelService(repos.matches, repos.submissions, problems, manager, evaluator, notifier, pool, service.DuelConfig{
		TimeLimit:     cfg.MatchTimeLimit,
		RetryAttempts: cfg.PairingRetryAttempts,
		RetryBackoff:  cfg.PairingRetryBackoff,
	})
	hub.Attach(duel)

	router := api.NewRouter(api.Services{
		Auth:    service.NewAuthService(repos.db, repos.users, repos.profiles),
		Problem: service.NewProblemService(repos.problems, evaluator, pool, repos.db),
		Duel:    duel,
		Profile: service.NewProfileService(repos.profiles),
	}, hub)

	server := &http.Server{
		Addr:        ":" + cfg.APIPort,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.L().Info("server_starting",
			zap.String("port", cfg.APIPort),
			zap.String("storage", cfg.StorageDriver),
			zap.String("lock", cfg.LockDriver),
			zap.Int("workers", cfg.WorkerPoolSize),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", cfg.APIPort, err)
		}
		return nil
	})
	if rdb != nil {
		g.Go(func() error { return notify.Relay(gctx, rdb, cfg.NotifyChannelPrefix, hub) })
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.L().Info("server_shutting_down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), serveArgs.shutdownTimeout)
		defer cancel()
		var errs []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
		if err := pool.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		logger.L().Error("server_stopped", zap.Error(err))
		return err
	}
	logger.L().Info("server_stopped")
	return nil
}
