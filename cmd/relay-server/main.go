// Command relay-server boots the Relay HTTP surface (spec.md section 4.7),
// following the teacher's cmd/orchestrator/main.go decomposition:
// setupEcho/setupMiddleware/setupHealthCheck/registerRoutes/startServer.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/relayhq/relay/internal/config"
	"github.com/relayhq/relay/internal/httpapi"
	"github.com/relayhq/relay/internal/httpapi/middleware"
	"github.com/relayhq/relay/internal/httpapi/routes"
	"github.com/relayhq/relay/internal/logging"
)

// Exit codes (SPEC_FULL.md section 2): 0 ok, 2 config error, 3 fatal I/O
// (container construction failure or fatal serve error).
const (
	exitOK            = 0
	exitConfigError   = 2
	exitContainerFail = 3
	exitServeFail     = 3
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "relay-server: config: %v\n", err)
		os.Exit(exitConfigError)
	}

	log := logging.New(cfg.Service.LogLevel, cfg.Service.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := httpapi.NewContainer(ctx, cfg, log)
	if err != nil {
		log.Error("relay-server: container init failed", "error", err)
		os.Exit(exitContainerFail)
	}
	container.SetPusher(httpapi.NewHTTPPusher(container))

	startPeerSync(ctx, container, log)

	e := setupEcho()
	setupMiddleware(e, container)
	setupHealthCheck(e)
	routes.Register(e, container)

	startServer(ctx, e, cfg, log)
}

func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	return e
}

func setupMiddleware(e *echo.Echo, c *httpapi.Container) {
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.Logger())
	e.Use(middleware.CORS())
	e.Use(middleware.Selection())
	e.Use(middleware.RateLimit(c.Limiter))
}

func setupHealthCheck(e *echo.Echo) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok", "service": "relay-server"})
	})
}

// startPeerSync launches the peer-push drain loop over one topic per
// already-configured repo (spec.md section 4.8). Repos created after
// startup via WRITE do not auto-push until a restart: Schedule enqueues on a
// per-repo topic string, and Drain's topic list is fixed at boot, so a
// brand-new repo's first pushes queue until the next restart picks up its
// topic -- acceptable since RELAY_MASTER_REPO_LIST names the steady-state
// repo set this deployment serves.
func startPeerSync(ctx context.Context, c *httpapi.Container, log *logging.Logger) {
	names, err := c.ListRepoNames()
	if err != nil {
		log.Error("relay-server: list repos for peer sync", "error", err)
		names = nil
	}
	for _, extra := range c.Config.Git.MasterRepos {
		found := false
		for _, n := range names {
			if n == extra {
				found = true
				break
			}
		}
		if !found {
			names = append(names, extra)
		}
	}

	topics := make([]string, len(names))
	for i, n := range names {
		topics[i] = "peer-push:" + n
	}
	if len(topics) == 0 {
		return
	}

	go c.PeerScheduler.Drain(ctx, topics...)
}

func startServer(ctx context.Context, e *echo.Echo, cfg *config.Config, log *logging.Logger) {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Error("relay-server: graceful shutdown failed", "error", err)
		}
	}()

	log.Info("relay-server: listening", "addr", cfg.Addr())
	if err := e.Start(cfg.Addr()); err != nil && err != http.ErrServerClosed {
		log.Error("relay-server: serve error", "error", err)
		os.Exit(exitServeFail)
	}
	os.Exit(exitOK)
}
