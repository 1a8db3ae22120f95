package app

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"time"
	_ "time/tzdata"

	"github.com/asaskevich/EventBus"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"

	"github.com/talkincode/storefront/config"
	"github.com/talkincode/storefront/internal/auth"
	"github.com/talkincode/storefront/internal/catalog"
	"github.com/talkincode/storefront/internal/contact"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/gate"
	"github.com/talkincode/storefront/internal/media"
	"github.com/talkincode/storefront/internal/storage"
)

type Application struct {
	appConfig *config.AppConfig
	gormDB    *gorm.DB
	sched     *cron.Cron
	jobs      []job
	store     storage.ObjectStore
	bus       EventBus.Bus
	catalog   *catalog.Service
	media     *media.Manager
	contact   *contact.Builder
	gate      *gate.Gate
	verifier  *auth.Verifier
}

// Ensure Application implements all interfaces
var (
	_ DBProvider        = (*Application)(nil)
	_ ConfigProvider    = (*Application)(nil)
	_ SchedulerProvider = (*Application)(nil)
	_ StoreProvider     = (*Application)(nil)
	_ CatalogProvider   = (*Application)(nil)
	_ MediaProvider     = (*Application)(nil)
	_ ContactProvider   = (*Application)(nil)
	_ GateProvider      = (*Application)(nil)
	_ AuthProvider      = (*Application)(nil)
	_ AppContext        = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) DB() *gorm.DB {
	return a.gormDB
}

// OverrideDB replaces the application's database handle (used in tests).
func (a *Application) OverrideDB(db *gorm.DB) {
	a.gormDB = db
}

// OverrideStore replaces the application's object store (used in tests).
func (a *Application) OverrideStore(store storage.ObjectStore) {
	a.store = store
}

func (a *Application) Store() storage.ObjectStore { return a.store }
func (a *Application) Bus() EventBus.Bus          { return a.bus }
func (a *Application) Catalog() *catalog.Service  { return a.catalog }
func (a *Application) Media() *media.Manager      { return a.media }
func (a *Application) Contact() *contact.Builder  { return a.contact }
func (a *Application) Gate() *gate.Gate           { return a.gate }
func (a *Application) Verifier() *auth.Verifier   { return a.verifier }

// Scheduler returns the cron scheduler
func (a *Application) Scheduler() *cron.Cron {
	return a.sched
}

func initLogger(cfg *config.AppConfig) error {
	var zapConfig zap.Config
	if cfg.Logger.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.OutputPaths = []string{"stdout"}

	var logger *zap.Logger
	if cfg.Logger.FileEnable {
		lumberJackLogger := &lumberjack.Logger{
			Filename:   cfg.Logger.Filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller())
	} else {
		var err error
		logger, err = zapConfig.Build(zap.AddCaller())
		if err != nil {
			return err
		}
	}

	zap.ReplaceGlobals(logger)
	return nil
}

// Init wires logging, database, object store, services and background jobs.
func (a *Application) Init(cfg *config.AppConfig) error {
	a.appConfig = cfg
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	if err := initLogger(cfg); err != nil {
		return errors.Wrap(err, "init logger")
	}

	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	a.gormDB, err = getDatabase(cfg.Database, cfg.System.Workdir)
	if err != nil {
		return err
	}
	zap.S().Infof("Database connection successful, type: %s", cfg.Database.Type)

	if err := a.MigrateDB(false); err != nil {
		zap.S().Errorf("database migration failed: %v", err)
	}
	a.checkCategories()
	a.checkAdmins()

	a.store, err = storage.New(cfg)
	if err != nil {
		return errors.Wrap(err, "init object storage")
	}
	zap.L().Info("object storage ready",
		zap.String("backend", cfg.Storage.Backend),
		zap.String("bucket", a.store.Bucket()))

	a.InitServices()
	a.sched.Start()
	return nil
}

// InitServices builds the domain services on top of the current database and store.
func (a *Application) InitServices() {
	cfg := a.appConfig
	a.bus = EventBus.New()
	a.subscribeAudit()

	a.verifier = auth.NewVerifier(cfg.Auth.JwtSecret, cfg.Auth.Audience)
	a.catalog = catalog.NewService(catalog.NewGormRepository(a.gormDB))
	a.media = media.NewManager(
		media.NewGormRepository(a.gormDB),
		a.store,
		media.WithEventBus(a.bus),
		media.WithSweepWorkers(cfg.Storage.SweepWorkers),
	)
	a.contact = contact.NewBuilder(contact.Config{
		Phone:   cfg.Whatsapp.Number,
		SiteURL: cfg.Web.PublicURL,
	})
	a.gate = gate.New(gate.NewRouter(gate.StoreRoutes), gate.NewGormAdminLookup(a.gormDB))
	a.initJob()
}

func (a *Application) MigrateDB(track bool) (err error) {
	defer func() {
		if err1 := recover(); err1 != nil {
			if os.Getenv("GO_DEGUB_TRACE") != "" {
				debug.PrintStack()
			}
			err2, ok := err1.(error)
			if ok {
				err = err2
				zap.S().Error(err2.Error())
			}
		}
	}()
	db := a.gormDB
	if track {
		db = db.Debug()
	}
	return db.Migrator().AutoMigrate(domain.Tables...)
}

func (a *Application) DropAll() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
}

func (a *Application) InitDb() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
	err := a.gormDB.Migrator().AutoMigrate(domain.Tables...)
	if err != nil {
		zap.S().Error(err)
	}
	a.checkCategories()
	a.checkAdmins()
}

// SweepOrphans runs the orphan image sweep with the configured grace period.
func (a *Application) SweepOrphans(ctx context.Context) (*media.SweepReport, error) {
	grace := time.Duration(a.appConfig.Storage.SweepGraceMinutes) * time.Minute
	return a.media.SweepOrphans(ctx, grace)
}

// Release releases application resources
func (a *Application) Release() {
	if a.sched != nil {
		<-a.sched.Stop().Done()
	}
	if a.bus != nil {
		a.bus.WaitAsync()
	}
	if c, ok := a.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			zap.L().Warn("failed to close object storage", zap.Error(err))
		}
	}
	if a.gormDB != nil {
		if sqlDB, err := a.gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	_ = zap.L().Sync()
}
