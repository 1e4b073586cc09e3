package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/MdanzDev/nickstore/internal/config"
	"github.com/MdanzDev/nickstore/internal/fulfillment"
	"github.com/MdanzDev/nickstore/internal/handlers"
	"github.com/MdanzDev/nickstore/internal/store"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterStoreRoutes(r, cfg)

	return r
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	local := os.Getenv("RUN_LOCAL") == "true"
	if !local {
		cfg.LogJSON = true
	}
	log := cfg.Logger()

	ctx := context.Background()
	deps, err := config.Build(ctx, cfg, log)
	if err != nil {
		log.Fatalf("failed to build dependencies: %v", err)
	}
	defer deps.Close()

	m := store.New(deps.KV,
		store.WithLogger(log.WithField("component", "store")),
		store.WithFulfiller(fulfillment.Handoff{Channel: deps.Channel}),
		store.WithLocation(cfg.Location()),
		store.WithWriteTimeout(cfg.WriteTimeout),
		store.WithPersistErrorHook(deps.PersistHook(cfg, log)),
	)
	if err := m.Load(ctx); err != nil {
		log.Fatalf("failed to load store state: %v", err)
	}

	r := setupRouter(handlers.HandlerConfig{Manager: m, WhatsApp: deps.WhatsApp})

	// if environment variable RUN_LOCAL is set to "true", run local HTTP server for development.
	if local {
		runLocal(r, m, cfg.ListenAddr, log)
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		resp, err := adapter.ProxyWithContext(ctx, req)
		// a frozen sandbox may never resume, so writes must land before returning
		if ferr := m.Flush(ctx); ferr != nil {
			log.WithError(ferr).Warn("flush after request")
		}
		return resp, err
	})
}

func runLocal(r *gin.Engine, m *store.Manager, addr string, log logrus.FieldLogger) {
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		log.Infof("running local server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to run local server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("server shutdown")
	}
	if err := m.Close(ctx); err != nil {
		log.WithError(err).Warn("store close")
	}
	log.Info("server stopped")
}
