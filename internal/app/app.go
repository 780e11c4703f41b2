// Package app wires configuration, storage, services and transports into a running server.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/cory-johannsen/corsair/internal/config"
	"github.com/cory-johannsen/corsair/internal/game/combat"
	"github.com/cory-johannsen/corsair/internal/game/session"
	"github.com/cory-johannsen/corsair/internal/game/skill"
	"github.com/cory-johannsen/corsair/internal/gameserver"
	"github.com/cory-johannsen/corsair/internal/ratelimit"
	"github.com/cory-johannsen/corsair/internal/server"
	"github.com/cory-johannsen/corsair/internal/storage/postgres"
	"github.com/cory-johannsen/corsair/internal/storage/sqlite"
)

const (
	probeTimeout       = 2 * time.Second
	sweepInterval      = time.Minute
	defaultStopTimeout = 10 * time.Second
)

// Stores bundles the repositories of one database driver.
type Stores struct {
	Accounts   gameserver.AccountStore
	Characters gameserver.CharacterStore
	Chat       gameserver.ChatStore
	Probe      gameserver.Prober
	Close      func()
}

// OpenStores connects to the database selected by cfg.Driver. SQLite databases are
// migrated on open; PostgreSQL is migrated by cmd/migrate.
//
// Postcondition: the caller must call Close on the returned Stores.
func OpenStores(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (Stores, error) {
	start := time.Now()
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return Stores{}, err
		}
		logger.Info("database connected",
			zap.String("driver", cfg.Driver),
			zap.String("path", cfg.SQLitePath),
			zap.Duration("elapsed", time.Since(start)),
		)
		return Stores{
			Accounts:   sqlite.NewAccountRepository(db.SQL()),
			Characters: sqlite.NewCharacterRepository(db.SQL()),
			Chat:       sqlite.NewChatRepository(db.SQL()),
			Probe:      db.Health,
			Close: func() {
				if err := db.Close(); err != nil {
					logger.Warn("closing database", zap.Error(err))
				}
			},
		}, nil
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg)
		if err != nil {
			return Stores{}, err
		}
		logger.Info("database connected",
			zap.String("driver", cfg.Driver),
			zap.String("host", cfg.Host),
			zap.Int("port", cfg.Port),
			zap.String("database", cfg.Name),
			zap.Duration("elapsed", time.Since(start)),
		)
		return Stores{
			Accounts:   postgres.NewAccountRepository(pool.DB()),
			Characters: postgres.NewCharacterRepository(pool.DB()),
			Chat:       postgres.NewChatRepository(pool.DB()),
			Probe:      pool.Health,
			Close:      pool.Close,
		}, nil
	default:
		return Stores{}, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Server is a fully wired game server ready to Run.
type Server struct {
	Router  *gin.Engine
	Health  *gameserver.HealthMonitor
	Session *session.Manager

	lifecycle *server.Lifecycle
	logger    *zap.Logger
}

// New builds every service over stores and registers the HTTP listener, the gRPC health
// endpoint, the health probe and the session janitor with a Lifecycle.
//
// Precondition: cfg has passed Validate.
func New(cfg config.Config, stores Stores, logger *zap.Logger) (*Server, error) {
	catalog, err := skill.LoadDirectory(cfg.Content.SkillsDir)
	if err != nil {
		return nil, fmt.Errorf("loading skills: %w", err)
	}
	logger.Info("skills loaded", zap.Int("count", catalog.Len()), zap.String("dir", cfg.Content.SkillsDir))

	clock := time.Now
	sessions := session.NewManager(clock)
	enemy := combat.EnemyProfile{Name: cfg.Battle.EnemyName, Level: cfg.Battle.EnemyLevel, MaxHP: cfg.Battle.EnemyMaxHP}
	battles, err := gameserver.NewBattleService(stores.Characters, sessions, catalog, combat.DefaultRules(), enemy, logger.Named("battle"))
	if err != nil {
		return nil, err
	}
	logins := ratelimit.New(cfg.Auth.LoginLimit, clock)
	chatLimit := ratelimit.New(cfg.Chat.RateLimit, clock)
	accounts := gameserver.NewAccountService(stores.Accounts, stores.Characters, sessions, catalog, logins, cfg.Auth.SessionTTL, logger.Named("account"))
	hub := gameserver.NewChatHub(stores.Chat, sessions, chatLimit, cfg.Chat.HistoryLimit, cfg.Chat.OutboxSize, clock, logger.Named("chat"))

	gin.SetMode(cfg.Server.Mode)
	router := gameserver.NewRouter(gameserver.Deps{
		Accounts: accounts,
		Battles:  battles,
		Chat:     hub,
		Sessions: sessions,
		Tokens:   gameserver.NewTokenIssuer(cfg.Auth.JWTSecret, clock),
		Catalog:  catalog,
		Logger:   logger.Named("http"),
	}, gameserver.HTTPOptions{
		CookieName:   cfg.Auth.CookieName,
		SecureCookie: cfg.Auth.SecureCookie,
		StaticDir:    cfg.Server.StaticDir,
	})

	monitor := gameserver.NewHealthMonitor(stores.Probe, probeTimeout, logger.Named("health"))
	grpcServer := grpc.NewServer()
	monitor.Register(grpcServer)

	stopTimeout := cfg.Server.ShutdownTimeout
	if stopTimeout <= 0 {
		stopTimeout = defaultStopTimeout
	}
	lc := server.NewLifecycle(logger, stopTimeout)
	lc.Add("http", &server.HTTPService{Server: &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}})
	lc.Add("grpc-health", &server.GRPCService{Server: grpcServer, Addr: cfg.Health.Addr()})
	lc.Add("health-probe", &server.TickerService{Interval: cfg.Health.CheckInterval, Fn: monitor.Check})
	lc.Add("session-janitor", &server.TickerService{Interval: sweepInterval, Fn: func(context.Context) {
		expired := sessions.Sweep()
		pruned := logins.Prune() + chatLimit.Prune()
		if expired > 0 || pruned > 0 {
			logger.Debug("janitor swept", zap.Int("sessions", expired), zap.Int("limiter_keys", pruned))
		}
	}})

	return &Server{Router: router, Health: monitor, Session: sessions, lifecycle: lc, logger: logger}, nil
}

// Run probes the database once, then serves until ctx is cancelled or a signal arrives.
func (s *Server) Run(ctx context.Context) error {
	s.Health.Check(ctx)
	defer s.Health.Shutdown()
	return s.lifecycle.Run(ctx)
}
