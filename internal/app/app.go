package app

import (
	"net/http"

	"gorm.io/gorm"
	"osbb-app-go/internal/config"
	"osbb-app-go/internal/db"
	auditdomain "osbb-app-go/internal/domain/audit"
	directorydomain "osbb-app-go/internal/domain/directory"
	votingdomain "osbb-app-go/internal/domain/voting"
	auditrepo "osbb-app-go/internal/repository/postgres/audit"
	directoryrepo "osbb-app-go/internal/repository/postgres/directory"
	votingrepo "osbb-app-go/internal/repository/postgres/voting"
	"osbb-app-go/internal/sweeper"
	"osbb-app-go/internal/transport/httpserver"
	"osbb-app-go/internal/transport/httpserver/handler"
	"osbb-app-go/pkg/logger"
)

type App struct {
	cfg        config.Config
	httpServer *http.Server
	db         *gorm.DB
	sweeper    *sweeper.Sweeper
}

func New(log logger.Logger) (*App, error) {
	log.Info("app: loading config")
	cfg, err := config.Load(log)
	if err != nil {
		return nil, err
	}

	log.Info("app: initializing database")
	dbConn, err := db.NewPostgres(cfg.DB, log)
	if err != nil {
		return nil, err
	}

	log.Info("app: applying migrations")
	if err := db.Migrate(dbConn); err != nil {
		return nil, err
	}

	directoryService := directorydomain.NewService(directoryrepo.NewPostgres(dbConn))
	auditService := auditdomain.NewService(auditrepo.NewPostgres(dbConn))
	votingService := votingdomain.NewService(
		votingrepo.NewPostgres(dbConn),
		directoryService,
		auditService,
		votingdomain.SystemClock(),
		cfg.Voting.QuorumThreshold,
	)

	handlers := handler.New(votingService, auditService, log)

	log.Info("app: initializing router")
	router := httpserver.NewRouter(cfg, handlers, directoryService, log)

	app := &App{
		cfg:        cfg,
		httpServer: httpserver.New(cfg, router),
		db:         dbConn,
	}

	if cfg.Voting.SweepEnabled {
		app.sweeper = sweeper.New(votingService, cfg.Voting.SweepInterval, log)
	}

	return app, nil
}

func (a *App) HTTPServer() *http.Server {
	return a.httpServer
}

// Sweeper returns nil when the auto-close sweep is disabled.
func (a *App) Sweeper() *sweeper.Sweeper {
	return a.sweeper
}

func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
