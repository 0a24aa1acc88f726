package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/5w1tchy/library-web/internal/api/handlers/books"
	"github.com/5w1tchy/library-web/internal/api/handlers/lists"
	mw "github.com/5w1tchy/library-web/internal/api/middlewares"
	"github.com/5w1tchy/library-web/internal/api/router"
	"github.com/5w1tchy/library-web/internal/backend"
	"github.com/5w1tchy/library-web/internal/cache"
	"github.com/5w1tchy/library-web/internal/config"
	"github.com/5w1tchy/library-web/internal/logging"
	"github.com/5w1tchy/library-web/internal/maintenance"
	"github.com/5w1tchy/library-web/internal/services"
	"github.com/5w1tchy/library-web/internal/session"
	"github.com/5w1tchy/library-web/internal/storage/s3"
)

func main() {
	cfg, err := config.Load(".env", "../../.env")
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.Fatalf("logging: %v", err)
	}
	for _, w := range cfg.HardeningWarnings() {
		log.Warn(w)
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(cfg config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := connectRedis(cfg)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		log.Info("connected to Redis")
	}

	client, err := backend.New(backend.Config{
		BaseURL:     cfg.APIURL,
		Timeout:     cfg.RequestTimeout,
		Token:       session.TokenFromContext,
		Fingerprint: backend.FingerprintFromContext,
		OnRelogin:   session.ReloginFromContext,
		Logger:      log.WithField("component", "backend"),
	})
	if err != nil {
		return err
	}
	svc := router.Services{
		Auth:         services.NewAuth(client),
		Catalog:      services.NewCatalog(client),
		Books:        services.NewBooks(client),
		Copies:       services.NewBookCopies(client),
		Users:        services.NewUsers(client),
		Reservations: services.NewReservations(client),
	}

	var store session.Scoper
	var limiter mw.Limiter
	if rdb != nil {
		store = session.NewRedisStore(rdb)
		limiter = mw.NewRedisLimiter(rdb, cfg.LoginMaxAttempts, cfg.LoginWindow)
	} else {
		local, err := mw.NewLocalLimiter(cfg.LoginMaxAttempts, cfg.LoginWindow, 4096)
		if err != nil {
			return err
		}
		limiter = local

		mem := session.NewMemoryScoper()
		daily, err := maintenance.ParseDaily(cfg.SessionSweepAt, cfg.SessionSweepTZ)
		if err != nil {
			return err
		}
		maintenance.StartSessionSweep(ctx, mem, daily, log.WithField("component", "maintenance"))
		store = mem
	}

	sessions, err := mw.NewSessions(mw.SessionConfig{
		Store:         store,
		Auth:          svc.Auth,
		TTL:           cfg.SessionTTL,
		RedirectDelay: cfg.RedirectDelay,
		CookieSecure:  cfg.CookieSecure,
		CacheSize:     cfg.ListCacheSize,
		Logger:        log.WithField("component", "session"),
	})
	if err != nil {
		return err
	}
	reg, err := lists.NewRegistry(lists.Options{
		PageSize: cfg.PageSize,
		Debounce: cfg.SearchDebounce,
		Size:     cfg.ListCacheSize,
		Logger:   log.WithField("component", "lists"),
	}, router.ListDefs(cfg, svc)...)
	if err != nil {
		return err
	}
	opts, err := cache.New(rdb, 10*time.Minute, log.WithField("component", "cache"))
	if err != nil {
		return err
	}

	var covers books.Covers
	if cfg.ObjectStorage() {
		c, err := s3.NewCovers(ctx, s3.Options{
			Endpoint:        cfg.AWSEndpoint,
			Region:          cfg.AWSRegion,
			Bucket:          cfg.AWSBucket,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			PresignTTL:      cfg.AWSPresignTTL,
		})
		if err != nil {
			return err
		}
		covers = c
	}

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: router.Router(router.Deps{
			Config:   cfg,
			Log:      log,
			Redis:    rdb,
			Services: svc,
			Sessions: sessions,
			Lists:    reg,
			Limiter:  limiter,
			Options:  opts,
			Covers:   covers,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"port": cfg.Port, "api": cfg.APIURL}).Info("server is running")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// connectRedis returns nil without REDIS_URL. A configured Redis that does
// not answer is fatal.
func connectRedis(cfg config.Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	if opt.TLSConfig != nil {
		opt.TLSConfig.MinVersion = tls.VersionTLS12
	}
	opt.DialTimeout = 2 * time.Second
	opt.ReadTimeout = 500 * time.Millisecond
	opt.WriteTimeout = 500 * time.Millisecond
	rdb := redis.NewClient(opt)
	if err := config.PingRedis(rdb, 3*time.Second); err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}
