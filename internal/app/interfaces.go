package app

import (
	EventBus "github.com/asaskevich/EventBus"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/estatehub/marketplace/config"
	"github.com/estatehub/marketplace/internal/cart"
	"github.com/estatehub/marketplace/internal/intake"
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
}

// CartProvider provides the cart service
type CartProvider interface {
	CartService() *cart.Service
}

// IntakeProvider provides the intake service
type IntakeProvider interface {
	IntakeService() *intake.Service
}

// EventProvider provides the in-process event bus
type EventProvider interface {
	Bus() EventBus.Bus
}

// AppContext combines all provider interfaces for full application context
// Handlers should depend on specific providers or this combined interface
type AppContext interface {
	DBProvider
	ConfigProvider
	SchedulerProvider
	CartProvider
	IntakeProvider
	EventProvider

	// Application lifecycle methods
	MigrateDB(track bool) error
	InitDb()
	DropAll()
	// RunCartSweep reconciles every stored cart immediately
	RunCartSweep() (int, error)
}
