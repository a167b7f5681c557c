package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/asli-tracking/backend/internal/ais"
	"github.com/asli-tracking/backend/internal/api"
	"github.com/asli-tracking/backend/internal/config"
	"github.com/asli-tracking/backend/internal/seed"
	"github.com/asli-tracking/backend/internal/store"
	syncpkg "github.com/asli-tracking/backend/internal/sync"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Get the executable's directory for config resolution
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	exeDir := filepath.Dir(exePath)

	// Load XML configuration
	configPath := filepath.Join(exeDir, "VesselTracker.config.xml")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	// Initialize DuckDB storage
	st, err := store.NewDuckStore(cfg.GetDatabasePath(), cfg.Database)
	if err != nil {
		fmt.Printf("Failed to initialize storage: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	// Initialize the AIS lookup client and the sync orchestrator
	gateway := ais.NewClient(cfg.AIS, cfg.RequestTimeout())
	if !gateway.Configured() {
		fmt.Println("Warning: AIS provider not configured, position lookups will be skipped")
	}
	orchestrator := syncpkg.NewOrchestrator(st, gateway, cfg.ThrottleWindow(), cfg.CallDelay(), cfg.AIS.CreditsPerVessel)

	// Apply vessel identifier defaults on startup
	if applied, err := seed.LoadAndApply(context.Background(), st, cfg.GetSeedPath()); err != nil {
		fmt.Printf("Warning: failed to load identifier defaults: %v\n", err)
	} else if applied > 0 {
		fmt.Printf("Identifier defaults loaded for %d vessels\n", applied)
	}

	e := echo.New()
	e.HideBanner = true

	api.SetupMiddleware(e)

	// Configure middleware
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			// Skip logging if disabled in config
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return path == "/health" ||
				strings.HasSuffix(path, "/active") ||
				strings.HasSuffix(path, "/active/msgpack")
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize:         1024 * 4,
		DisablePrintStack: false,
		LogLevel:          0,
	}))

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Skipper: func(c echo.Context) bool {
			// Position update batches pace themselves between provider
			// calls and can legitimately outlive the request timeout.
			path := c.Request().URL.Path
			return strings.Contains(path, "/update-positions") ||
				strings.Contains(path, "/sync-")
		},
		ErrorMessage: "Request timeout - query took too long",
	}))

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			// msgpack payloads are already compact
			return strings.HasSuffix(c.Request().URL.Path, "/msgpack")
		},
	}))

	// Body limit middleware
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// CORS configuration
	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}

	// Initialize API handlers and routes
	handlers := api.NewHandlers(&api.Dependencies{
		Store:        st,
		Syncer:       orchestrator,
		CronToken:    cfg.Security.CronToken,
		HistoryLimit: cfg.Advanced.HistoryPointLimit,
		Version:      Version,
	})
	api.RegisterRoutes(e, handlers)

	// Configure server with settings from XML config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Print startup banner
	provider := "not configured"
	if gateway.Configured() {
		provider = cfg.AIS.BaseURL
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Vessel Tracking Server                          ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("║  Provider:  %-46s║\n", provider)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	e.Logger.Fatal(e.StartServer(s))
}
