// Package server wires the matchmaking runtime and HTTP lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/louisbranch/stylematch/internal/api/rest"
	"github.com/louisbranch/stylematch/internal/auth"
	"github.com/louisbranch/stylematch/internal/broadcast"
	"github.com/louisbranch/stylematch/internal/genjobs"
	"github.com/louisbranch/stylematch/internal/matchmaking/engine"
	"github.com/louisbranch/stylematch/internal/matchmaking/storage/sqlite"
	"github.com/louisbranch/stylematch/internal/platform/config"
	"github.com/louisbranch/stylematch/internal/platform/timeouts"
)

var _ engine.WaitArmer = (*engine.Supervisor)(nil)

type serverEnv struct {
	DBPath    string `env:"STYLEMATCH_DB_PATH"`
	RedisAddr string `env:"STYLEMATCH_REDIS_ADDR"`
	JWTSecret string `env:"STYLEMATCH_JWT_SECRET"`
}

func loadServerEnv() serverEnv {
	var cfg serverEnv
	_ = config.ParseEnv(&cfg)
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "matchmaking.db")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		cfg.JWTSecret = "dev-secret-change-in-production"
	}
	return cfg
}

func openStore(path string) (*sqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return store, nil
}

// Server hosts the matchmaking HTTP API and its background supervisor.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	store      *sqlite.Store
	hub        *broadcast.Hub
	supervisor *engine.Supervisor
	redis      *redis.Client
}

// New creates a configured server listening on the provided port.
func New(port int) (*Server, error) {
	return NewWithAddr(fmt.Sprintf(":%d", port))
}

// NewWithAddr creates a configured server for the provided address.
func NewWithAddr(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	env := loadServerEnv()

	store, err := openStore(env.DBPath)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	tokens, err := auth.NewService([]byte(env.JWTSecret), auth.DefaultTTL)
	if err != nil {
		_ = listener.Close()
		_ = store.Close()
		return nil, fmt.Errorf("token service: %w", err)
	}

	var redisClient *redis.Client
	var jobs genjobs.Queue = genjobs.NopQueue{}
	if strings.TrimSpace(env.RedisAddr) != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: env.RedisAddr})
		jobs = genjobs.NewRedisQueue(redisClient)
	}

	hub := broadcast.NewHub()

	supervisor, err := engine.NewSupervisor(engine.SupervisorConfig{
		Store:       store,
		Broadcaster: hub,
	})
	if err != nil {
		_ = listener.Close()
		_ = store.Close()
		hub.Close()
		return nil, fmt.Errorf("supervisor: %w", err)
	}

	eng, err := engine.New(engine.Config{
		Store:       store,
		Broadcaster: hub,
		Jobs:        jobs,
		Armer:       supervisor,
	})
	if err != nil {
		_ = listener.Close()
		_ = store.Close()
		hub.Close()
		return nil, fmt.Errorf("engine: %w", err)
	}

	router := rest.NewRouter(&rest.Container{
		Tokens: tokens,
		Engine: eng,
		Store:  store,
		Hub:    hub,
	})

	return &Server{
		listener: listener,
		httpServer: &http.Server{
			Handler:           router,
			ReadHeaderTimeout: timeouts.ReadHeader,
		},
		store:      store,
		hub:        hub,
		supervisor: supervisor,
		redis:      redisClient,
	}, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a server until context cancellation.
func Run(ctx context.Context, port int) error {
	server, err := New(port)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the HTTP server and the sweep loop until context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go s.supervisor.Run(sweepCtx)

	log.Printf("server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown HTTP: %w", err)
		}
		err := <-serveErr
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	}
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.hub != nil {
		s.hub.Close()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Printf("close redis: %v", err)
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}
}
