/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the rental engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (optional) and parse command-line flags
  2. Initialize SQLite store
  3. Seed the demo catalog when -seed is set
  4. Create API handler and router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080, env PORT)
  -db      SQLite database path (default: rental.db, env DATABASE_PATH)
           Use ":memory:" for an in-memory database
  -seed    Seed demo price lists and charges on startup

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/rental.db"

  # Run with in-memory database and demo data
  ./server -db=":memory:" -seed

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/fleetops/rental-engine/api"
	"github.com/fleetops/rental-engine/catalog"
	"github.com/fleetops/rental-engine/store/sqlite"
)

func main() {
	// .env is optional; flags still win over the environment.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envString("DATABASE_PATH", "rental.db"), "SQLite database path")
	seed := flag.Bool("seed", false, "Seed demo price lists and charges")
	flag.Parse()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer store.Close()

	if *seed {
		if err := seedCatalog(context.Background(), store); err != nil {
			log.Warn().Err(err).Msg("failed to seed catalog")
		}
	}

	handler := api.NewHandler(store, log)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", *port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// seedCatalog loads the demo price lists and charge catalog.
func seedCatalog(ctx context.Context, store *sqlite.Store) error {
	lists := []string{
		catalog.StandardPriceListJSON("pl-standard", "Standard fleet", "9.5", "45", "270", "950"),
		catalog.DailyOnlyPriceListJSON("pl-economy", "Economy fleet", "30"),
	}
	for _, configJSON := range lists {
		pl, err := catalog.ParsePriceList(configJSON)
		if err != nil {
			return err
		}
		rec := sqlite.PriceListRecord{ID: pl.ID, Name: pl.Name, ConfigJSON: configJSON}
		if err := store.SavePriceList(ctx, rec); err != nil {
			return err
		}
	}

	for _, cj := range catalog.DefaultCharges() {
		charge, err := catalog.ChargeFromJSON(cj)
		if err != nil {
			return err
		}
		if err := store.SaveMiscCharge(ctx, *charge); err != nil {
			return err
		}
	}
	return nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
