package services

import (
	"log/slog"

	"wishdoc/internal/config"
	"wishdoc/internal/db"
	"wishdoc/internal/docstore"
	"wishdoc/internal/services/admin"
	"wishdoc/internal/services/document"
	"wishdoc/internal/services/user"
)

type Services struct {
	User     *user.UserService
	Document *document.DocumentService
	Admin    *admin.AdminService

	Store docstore.Store
}

// NewServices wires the document store and the services on top of it.
// An unreachable database is not fatal: the server still starts and
// every store operation fails with a persistence error until the
// database comes back and the process is restarted. With no database
// configured at all, an in-memory store keeps local runs useful.
func NewServices(conf *config.Config) *Services {
	var store docstore.Store
	if conf.DB_HOST == "" {
		slog.Warn("No database configured, using in-memory store; data will not survive a restart")
		store = docstore.NewMemory()
	} else {
		conn, err := db.NewConn(conf)
		if err != nil {
			slog.Error("Database unreachable at startup, operations will fail until it is back", slog.Any("error", err))
			conn = nil
		}
		store = docstore.NewPostgres(conn, conf.SEARCH_ANALYZER)
	}

	return &Services{
		User:     user.NewUserService(store),
		Document: document.NewDocumentService(store),
		Admin:    admin.NewAdminService(store),
		Store:    store,
	}
}
