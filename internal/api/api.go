package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"

	"wishdoc/internal/config"
	"wishdoc/internal/db"
	"wishdoc/internal/pubsub"
	"wishdoc/internal/services"
)

// Server is the HTTP surface over the document services.
type Server struct {
	srv      *fasthttp.Server
	addr     string
	services *services.Services
	feed     *pubsub.PubSub
}

func New() *Server {
	conf := config.ReadConfig()

	s := &Server{
		srv:      &fasthttp.Server{},
		addr:     fmt.Sprintf("0.0.0.0:%s", conf.APP_PORT),
		services: services.NewServices(conf),
	}

	if conf.DB_HOST != "" {
		s.feed = pubsub.New(db.ConnString(conf))
	}

	s.srv.Handler = s.initRoutes()

	return s
}

// Start serves requests until an OS interrupt arrives.
func (s *Server) Start() {
	slog.Info("Starting REST server...", slog.String("addr", s.addr))
	go func() {
		if err := s.srv.ListenAndServe(s.addr); err != nil {
			slog.Error("Server shutdown", slog.Any("error", err))
		}
	}()
	slog.Info("REST server started!")

	if s.feed != nil {
		s.feed.Subscribe(func(event pubsub.RecordChangeEvent) {
			slog.Info("Record changed",
				slog.String("type", event.RecordType),
				slog.String("operation", event.Operation),
				slog.String("id", event.RecordID))
		})
		if err := s.feed.Start(); err != nil {
			slog.Warn("Change feed unavailable", slog.Any("error", err))
		}
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c
	slog.Info("Received interrupt...")

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	s.shutdown(ctx)
}

func (s *Server) shutdown(ctx context.Context) {
	slog.Info("Gracefully shutting down REST server...")
	if s.feed != nil {
		s.feed.Stop()
	}
	if err := s.srv.Shutdown(); err != nil {
		slog.Error("Failed to shutdown the server", slog.Any("error", err))
	}
	slog.Info("REST server shutdown!")
}
