package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/showtime-booking/internal/app"
	"github.com/iliyamo/showtime-booking/internal/config"
	"github.com/iliyamo/showtime-booking/internal/handler"
	"github.com/iliyamo/showtime-booking/internal/middleware"
	"github.com/iliyamo/showtime-booking/internal/queue"
	"github.com/iliyamo/showtime-booking/internal/router"
)

func main() {
	// A .env file is optional; real deployments set the variables directly.
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer a.Close()

	go a.Sweeper.Run(ctx, cfg.Booking.SweepInterval)
	if cfg.AMQPURL != "" {
		consumer := queue.NewConsumer(cfg.AMQPURL, queue.DefaultQueue, "", a.Log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.Log.Errorf("booking log consumer stopped: %v", err)
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(app.ParseLevel(cfg.LogLevel))

	router.RegisterRoutes(e, map[string]handler.Check{
		"mysql": a.DB.PingContext,
		"redis": func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() },
	})
	router.RegisterBookings(e,
		handler.NewBookingHandler(a.Engine),
		cfg.JWTSecret,
		middleware.NewTokenBucket(cfg.RateLimit, a.Redis),
	)

	addr := ":" + cfg.Port
	go func() {
		a.Log.Infof("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Errorf("server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	a.Log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		a.Log.Errorf("shutdown: %v", err)
	}
}
