// Package main runs the textcamp world server: the simulation, its
// scheduler, and the HTTP, websocket and Telnet frontends.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/textcamp/internal/auth"
	"github.com/cory-johannsen/textcamp/internal/config"
	"github.com/cory-johannsen/textcamp/internal/connection"
	"github.com/cory-johannsen/textcamp/internal/content"
	"github.com/cory-johannsen/textcamp/internal/delivery"
	"github.com/cory-johannsen/textcamp/internal/frontend/httpapi"
	"github.com/cory-johannsen/textcamp/internal/frontend/telnet"
	"github.com/cory-johannsen/textcamp/internal/frontend/websocket"
	"github.com/cory-johannsen/textcamp/internal/game/dice"
	"github.com/cory-johannsen/textcamp/internal/game/scheduler"
	"github.com/cory-johannsen/textcamp/internal/game/world"
	"github.com/cory-johannsen/textcamp/internal/observability"
	"github.com/cory-johannsen/textcamp/internal/server"
	"github.com/cory-johannsen/textcamp/internal/storage/memory"
	"github.com/cory-johannsen/textcamp/internal/storage/postgres"
)

const (
	shutdownTimeout     = 10 * time.Second
	healthCheckInterval = 30 * time.Second
	healthCheckTimeout  = 5 * time.Second
)

// repositories bundles the persistence collaborators for one server mode.
type repositories struct {
	characters world.CharacterRepository
	accounts   auth.AccountRepository
	sessions   auth.SessionRepository
	health     httpapi.HealthFunc
	pool       *postgres.Pool
}

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer func() { _ = observability.Sync(logger) }()

	logger.Info("starting textcamp",
		zap.String("mode", cfg.Server.Mode),
		zap.String("http_addr", cfg.HTTP.Addr()),
	)

	repos := openRepositories(ctx, cfg, logger)
	if repos.pool != nil {
		defer repos.pool.Close()
	}

	roller := dice.NewLoggedRoller(dice.NewCryptoSource(), logger)
	damage, err := world.ParseDamage(cfg.World.Damage, roller)
	if err != nil {
		logger.Fatal("parsing damage policy", zap.Error(err))
	}

	authSvc := auth.New(auth.Options{
		Logger:    logger.Named("auth"),
		Accounts:  repos.accounts,
		Sessions:  repos.sessions,
		Mailer:    auth.LogMailer{Logger: logger.Named("mail")},
		PublicURL: cfg.HTTP.PublicURL,
		OTPTTL:    cfg.Auth.OTPTTL,
	})

	w := world.New(world.Options{
		Logger:         logger.Named("world"),
		Characters:     repos.characters,
		Auth:           authSvc,
		Random:         dice.NewCryptoSource(),
		Damage:         damage,
		StartTick:      cfg.World.StartTick,
		RegenPerTick:   cfg.World.RegenPerTick,
		CommitAttempts: cfg.World.CommitAttempts,
	})

	contentStart := time.Now()
	set, err := content.Load(cfg.World.ContentDir)
	if err != nil {
		logger.Fatal("loading content", zap.String("dir", cfg.World.ContentDir), zap.Error(err))
	}
	set.Inject(w)
	w.MustValidate()
	characters, locations := w.Counts()
	logger.Info("world loaded",
		zap.Int("locations", locations),
		zap.Int("characters", characters),
		zap.String("clock", w.Clock().Dump()),
		zap.Duration("elapsed", time.Since(contentStart)),
	)

	registry := delivery.NewRegistry(logger.Named("delivery"))
	sched := scheduler.New(logger.Named("scheduler"), w, registry, cfg.World.TickInterval, cfg.World.MeleeInterval)

	handlerOpts := func(name string, enc delivery.Encoder) connection.Options {
		return connection.Options{
			Logger:             logger.Named(name),
			World:              w,
			Registry:           registry,
			Encoder:            enc,
			HeartbeatInterval:  cfg.Connection.HeartbeatInterval,
			ClientTimeout:      cfg.Connection.ClientTimeout,
			TimeUpdateInterval: cfg.Connection.TimeUpdateInterval,
			MailboxSize:        cfg.Connection.MailboxSize,
		}
	}

	sessionsCtx, cancelSessions := context.WithCancel(ctx)
	defer cancelSessions()

	wsHandler := connection.New(handlerOpts("websocket", delivery.JSONEncoder))
	httpServer := &http.Server{
		Addr: cfg.HTTP.Addr(),
		Handler: httpapi.NewHandler(httpapi.Options{
			Logger:    logger.Named("http"),
			Auth:      w,
			Sessions:  authSvc,
			Websocket: websocket.NewServer(sessionsCtx, logger.Named("websocket"), wsHandler),
			Health:    repos.health,
		}),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("scheduler", server.ContextService(sched.Run))

	lifecycle.Add("http", &server.FuncService{
		StartFn: func() error {
			logger.Info("http server listening", zap.String("addr", httpServer.Addr))
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
		StopFn: func() {
			cancelSessions()
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http shutdown", zap.Error(err))
			}
		},
	})

	if cfg.Telnet.Enabled {
		telnetHandler := connection.New(handlerOpts("telnet", telnet.Render))
		acceptor := telnet.NewAcceptor(cfg.Telnet, telnetHandler, logger.Named("telnet"))
		lifecycle.Add("telnet", &server.FuncService{
			StartFn: acceptor.ListenAndServe,
			StopFn:  acceptor.Stop,
		})
	}

	if repos.pool != nil {
		pool := repos.pool
		lifecycle.Add("postgres", server.ContextService(func(ctx context.Context) error {
			ticker := time.NewTicker(healthCheckInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					if err := pool.Health(ctx, healthCheckTimeout); err != nil {
						logger.Warn("database health check failed", zap.Error(err))
					}
				}
			}
		}))
	}

	logger.Info("textcamp initialized",
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Error("server error", zap.Error(err))
		_ = observability.Sync(logger)
		repos.close()
		log.Fatalf("server error: %v", err)
	}
}

func (r repositories) close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

// openRepositories selects the persistence collaborators for cfg.Server.Mode.
func openRepositories(ctx context.Context, cfg config.Config, logger *zap.Logger) repositories {
	if cfg.Server.Mode != config.ModePostgres {
		logger.Info("using in-memory storage; characters are lost on restart")
		return repositories{
			characters: memory.NewCharacterRepository(),
			accounts:   memory.NewAccountRepository(),
			sessions:   memory.NewSessionRepository(),
		}
	}

	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)
	return repositories{
		characters: postgres.NewCharacterRepository(pool.DB()),
		accounts:   postgres.NewAccountRepository(pool.DB()),
		sessions:   postgres.NewSessionRepository(pool.DB()),
		health: func(ctx context.Context) error {
			return pool.Health(ctx, healthCheckTimeout)
		},
		pool: pool,
	}
}
