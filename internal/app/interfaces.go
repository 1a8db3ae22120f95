package app

import (
	"context"

	"github.com/asaskevich/EventBus"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/talkincode/storefront/config"
	"github.com/talkincode/storefront/internal/auth"
	"github.com/talkincode/storefront/internal/catalog"
	"github.com/talkincode/storefront/internal/contact"
	"github.com/talkincode/storefront/internal/gate"
	"github.com/talkincode/storefront/internal/media"
	"github.com/talkincode/storefront/internal/storage"
)

// DBProvider provides database access
type DBProvider interface {
	DB() *gorm.DB
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// SchedulerProvider provides task scheduling capability
type SchedulerProvider interface {
	Scheduler() *cron.Cron
	Jobs() []JobInfo
	RunJobNow(name string) error
}

// StoreProvider provides the product image object store
type StoreProvider interface {
	Store() storage.ObjectStore
}

// EventBusProvider provides the in-process event bus
type EventBusProvider interface {
	Bus() EventBus.Bus
}

// CatalogProvider provides the catalog read service
type CatalogProvider interface {
	Catalog() *catalog.Service
}

// MediaProvider provides the image asset manager
type MediaProvider interface {
	Media() *media.Manager
}

// ContactProvider provides the WhatsApp link builder
type ContactProvider interface {
	Contact() *contact.Builder
}

// GateProvider provides the route authorization gate
type GateProvider interface {
	Gate() *gate.Gate
}

// AuthProvider provides access token verification
type AuthProvider interface {
	Verifier() *auth.Verifier
}

// AppContext combines all provider interfaces for full application context
// Services should depend on specific providers or this combined interface
type AppContext interface {
	DBProvider
	ConfigProvider
	SchedulerProvider
	StoreProvider
	EventBusProvider
	CatalogProvider
	MediaProvider
	ContactProvider
	GateProvider
	AuthProvider

	// Application lifecycle methods
	MigrateDB(track bool) error
	InitDb()
	DropAll()
	// SweepOrphans removes stored images no metadata row references
	SweepOrphans(ctx context.Context) (*media.SweepReport, error)
}
