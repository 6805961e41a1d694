// Package app wires repositories, services and the HTTP server from configuration.
package app

import (
	"net/http"

	"github.com/jnst/storefront-sync/internal/api"
	"github.com/jnst/storefront-sync/internal/config"
	"github.com/jnst/storefront-sync/internal/export"
	"github.com/jnst/storefront-sync/internal/model"
	"github.com/jnst/storefront-sync/internal/service"
	"github.com/jnst/storefront-sync/internal/storage"
)

// App is the dependency graph shared by the API server and the command line tool.
type App struct {
	Config    *config.Config
	Repos     *storage.Repositories
	Orders    service.OrderService
	Users     service.UserService
	OrderFeed *service.Feed[model.OrderDetail]
	UserFeed  *service.Feed[model.UserSnapshot]
	Exports   service.ExportService
}

// New builds the services on top of repos.
func New(cfg *config.Config, repos *storage.Repositories) *App {
	writer := service.NewSyncWriterImpl(repos.Tx, repos.OrderQueue, repos.UserQueue)
	trigger := service.NewSyncTriggerImpl(writer, repos.Orders, service.TriggerOptionsFromConfig(cfg))

	return &App{
		Config:    cfg,
		Repos:     repos,
		Orders:    service.NewOrderServiceImpl(repos.Orders, repos.Users, trigger, repos.Tx),
		Users:     service.NewUserServiceImpl(repos.Users, trigger, repos.Tx),
		OrderFeed: service.NewOrderFeed(repos.OrderQueue, repos.Orders, cfg.SyncBatchMax),
		UserFeed:  service.NewUserFeed(repos.UserQueue, repos.Users, cfg.SyncBatchMax),
		Exports: service.NewExportServiceImpl(
			export.Options{Encoding: cfg.CSVEncoding}, repos.OrderQueue, repos.UserQueue,
		),
	}
}

// Handler returns the routed HTTP handler of the sync API.
func (a *App) Handler() http.Handler {
	server := api.NewAPIServer(
		api.Options{
			APIKeys: map[model.Subject]string{
				model.SubjectOrder: a.Config.OrderSyncAPIKey,
				model.SubjectUser:  a.Config.UserSyncAPIKey,
			},
			AdminAPIKey:  a.Config.AdminAPIKey,
			ExportFormat: a.Config.ExportFormat,
		},
		a.Orders, a.Users, a.Exports,
		a.OrderFeed, a.UserFeed,
	)

	return server.Handler()
}

// Close releases the database.
func (a *App) Close() {
	a.Repos.Close()
}
