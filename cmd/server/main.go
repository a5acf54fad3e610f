package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/finsight/backend/internal/ledger"
	"github.com/finsight/backend/internal/service"
)

func main() {
	// NOTE: Default is 8111 to avoid conflicts with other projects (not 8080)
	port := os.Getenv("PORT")
	if port == "" {
		port = "8111"
	}

	if os.Getenv("ENV") == "local" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	ctx := context.Background()

	store, err := buildStore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize ledger store")
	}

	mlService := service.NewMLService(store, log.Logger)
	if d := os.Getenv("ANALYSIS_TIMEOUT"); d != "" {
		timeout, err := time.ParseDuration(d)
		if err != nil {
			log.Fatal().Err(err).Str("value", d).Msg("invalid ANALYSIS_TIMEOUT")
		}
		mlService.Cache().SetTimeout(timeout)
	}

	mux := http.NewServeMux()
	mlService.Register(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// NOTE: Frontend runs on port 1234, not 3000
	c := cors.New(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:1234",
			"http://127.0.0.1:1234",
			"https://finsight.dev",
			"https://www.finsight.dev",
		},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"User-Agent",
		},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: h2c.NewHandler(c.Handler(mux), &http2.Server{}),
	}

	log.Info().Str("port", port).Msg("starting server")
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// buildStore selects the ledger backend from LEDGER_STORE: memory, csv
// (the default) or firestore.
func buildStore(ctx context.Context) (ledger.Store, error) {
	backend := os.Getenv("LEDGER_STORE")
	if backend == "" {
		if os.Getenv("ENV") == "local" {
			backend = "memory"
		} else {
			backend = "csv"
		}
	}

	switch backend {
	case "memory":
		log.Info().Msg("using in-memory ledger store")
		return ledger.NewMemoryStore(), nil

	case "csv":
		dir := os.Getenv("LEDGER_DATA_DIR")
		if dir == "" {
			dir = "user_data"
		}
		log.Info().Str("dir", dir).Msg("using csv ledger store")
		return ledger.NewCSVStore(dir)

	case "firestore":
		projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
		if projectID == "" {
			return nil, fmt.Errorf("firestore backend requires GOOGLE_CLOUD_PROJECT")
		}
		client, err := firestore.NewClient(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("create firestore client: %w", err)
		}
		log.Info().Str("project", projectID).Msg("using firestore ledger store")
		return ledger.NewFirestoreStore(client), nil

	default:
		return nil, fmt.Errorf("unknown LEDGER_STORE %q", backend)
	}
}
