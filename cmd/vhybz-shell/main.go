package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	adapterhandler "vhybz-auth/internal/adapter/handler"
	"vhybz-auth/internal/bootstrap"
	"vhybz-auth/internal/infrastructure/navigator"
	infratoken "vhybz-auth/internal/infrastructure/token"

	"vhybz-auth/config"
	appmiddleware "vhybz-auth/middleware"
	"vhybz-auth/utils/logger"
	"vhybz-auth/utils/otel"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"golang.org/x/sync/errgroup"
)

const googleAccountsOrigin = "https://accounts.google.com"

func main() {
	// Handle healthcheck subcommand (for Docker healthcheck in distroless image)
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		if err := runHealthcheck(); err != nil {
			fmt.Fprintf(os.Stderr, "Healthcheck failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Initialize OpenTelemetry
	otelCfg := otel.ConfigFromEnv("shell")
	otelShutdown, err := otel.InitProvider(ctx, otelCfg)
	if err != nil {
		slog.Warn("failed to initialize OpenTelemetry, continuing without tracing", "error", err)
		otelCfg.Enabled = false
	}

	// Initialize structured logger
	logger.Init(otelCfg.Enabled)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.InfoContext(ctx, "configuration loaded",
		"identity_backend", cfg.IdentityBackend,
		"identity_url", cfg.IdentityURL(),
		"listen_addr", cfg.Address(),
		"cache_ttl", cfg.CacheTTL,
		"fetch_timeout", cfg.FetchTimeout,
		"cookie_store", cfg.CookieStorePath)

	if cfg.CSRFSecret == "" {
		slog.WarnContext(ctx, "CSRF_SECRET is empty, shell pages will fail to render")
	}
	if ip, err := netip.ParseAddr(cfg.ListenAddr); cfg.ListenAddr != "localhost" && (err != nil || !ip.IsLoopback()) {
		slog.WarnContext(ctx, "shell listens beyond loopback; every reachable peer acts as the stored session",
			"listen_addr", cfg.ListenAddr)
	}

	// Infrastructure
	jar, err := bootstrap.OpenJar(cfg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to open cookie store", "error", err)
		os.Exit(1)
	}
	transport, err := bootstrap.NewTransport(cfg, jar, navigator.NewRedirect(nil))
	if err != nil {
		slog.ErrorContext(ctx, "failed to create session transport", "error", err)
		os.Exit(1)
	}
	stack := bootstrap.New(cfg, transport, slog.Default())
	defer stack.Close()

	csrfGenerator := infratoken.NewHMACCSRFGenerator(cfg.CSRFSecret)

	// Handlers
	csrfGuard := adapterhandler.NewCSRFGuard(csrfGenerator, cfg.SecureCookies)
	pageHandler := adapterhandler.NewPageHandler(stack.Facade, stack.Roles, csrfGuard, cfg.LoginPath)
	gateMiddleware := adapterhandler.NewGateMiddleware(stack.Gate, pageHandler, adapterhandler.DefaultGateWait, slog.Default())

	renderer, err := adapterhandler.NewRenderer()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load page templates", "error", err)
		os.Exit(1)
	}

	// Setup Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer

	// Security middleware
	e.Use(appmiddleware.SecurityHeaders(cfg.IdentityURL(), googleAccountsOrigin))

	// OpenTelemetry tracing
	if otelCfg.Enabled {
		e.Use(otelecho.Middleware(otelCfg.ServiceName))
		e.Use(appmiddleware.OTelStatusMiddleware())
	}

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, requestID string) {
			req := c.Request()
			c.SetRequest(req.WithContext(logger.WithRequestID(req.Context(), requestID)))
		},
	}))

	// Request logging
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/health"
		},
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		LogMethod:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			rctx := c.Request().Context()
			log := logger.GlobalContext.WithContext(rctx)
			if v.Error == nil {
				log.InfoContext(rctx, "request completed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds())
			} else {
				log.ErrorContext(rctx, "request failed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds(),
					"error", v.Error.Error())
			}
			return nil
		},
	}))

	e.Use(middleware.Recover())

	// Rate limiters per endpoint group
	pageRL := appmiddleware.NewRateLimiter(ctx, 120.0/60.0, 20, appmiddleware.RealIPKey)    // 120 req/min
	actionRL := appmiddleware.NewRateLimiter(ctx, 20.0/60.0, 5, appmiddleware.RealIPKey)    // 20 req/min
	internalRL := appmiddleware.NewRateLimiter(ctx, 60.0/60.0, 10, appmiddleware.RealIPKey) // 60 req/min

	adapterhandler.Register(e, adapterhandler.Routes{
		Pages:          pageHandler,
		Actions:        adapterhandler.NewActionHandler(stack.Facade, cfg.LoginPath),
		Gate:           gateMiddleware,
		CSRF:           csrfGuard,
		Internal:       adapterhandler.NewInternalHandler(stack.Facade, stack.Cache),
		Health:         adapterhandler.NewHealthHandler(cfg.IdentityBackend, stack.Cache),
		PageLimit:      pageRL.Middleware(),
		ActionLimit:    actionRL.Middleware(),
		InternalLimit:  internalRL.Middleware(),
		InternalSecret: cfg.InternalSecret,
	})

	// Start server with errgroup for graceful shutdown
	address := cfg.Address()
	slog.InfoContext(ctx, "starting vhybz shell", "address", address)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := e.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return otelShutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited properly")
}

// runHealthcheck performs a health check against the local server.
func runHealthcheck() error {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	host := os.Getenv("LISTEN_ADDR")
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + net.JoinHostPort(host, port) + "/health")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health endpoint returned status: %d", resp.StatusCode)
	}
	return nil
}
