package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/chess-session-backend/internal/coordinator"
	"github.com/DoyleJ11/chess-session-backend/internal/httpapi"
	"github.com/DoyleJ11/chess-session-backend/internal/perk"
	"github.com/DoyleJ11/chess-session-backend/internal/rules"
	"github.com/DoyleJ11/chess-session-backend/internal/store"
	"github.com/DoyleJ11/chess-session-backend/internal/store/gormstore"
)

func main() {
	_ = godotenv.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}

	var st store.Store
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		gs, err := gormstore.Open(dsn)
		if err != nil {
			log.Fatal("opening postgres store", zap.Error(err))
		}
		st = gs
		log.Info("using postgres store")
	} else {
		st = store.NewMemory()
		log.Info("using in-memory store")
	}

	pipeline := perk.NewPipeline()
	pipeline.Register(perk.NewVanish())
	pipeline.Register(perk.NewGuard())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The coordinator outlives the signal context: it stops only after
	// the HTTP server has drained, via the explicit Shutdown below.
	c := coordinator.New(context.Background(), st, rules.NewChessEngine(), pipeline, log)
	srv := &http.Server{
		Addr:    addr,
		Handler: httpapi.SetupRoutes(c, st, log),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// Drain in-flight requests before stopping the coordinator, so
		// none of them find a closed hub.
		err := srv.Shutdown(shutdownCtx)
		c.Shutdown()
		return err
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}
