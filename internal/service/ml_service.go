// Package service exposes the analytics pipeline and the transaction
// ledger over HTTP JSON.
package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/finsight/backend/internal/analytics"
	"github.com/finsight/backend/internal/ledger"
)

// MLService serves the per-user analysis endpoints backed by the
// analyzer cache.
type MLService struct {
	cache *analytics.Cache
	store ledger.Store
	log   zerolog.Logger
}

// NewMLService creates the service over a ledger store.
func NewMLService(store ledger.Store, log zerolog.Logger) *MLService {
	return &MLService{
		cache: analytics.NewCache(store, log),
		store: store,
		log:   log.With().Str("component", "ml_service").Logger(),
	}
}

// Cache exposes the analyzer cache, mainly for tuning timeouts in main.
func (s *MLService) Cache() *analytics.Cache { return s.cache }

// Register mounts every route on the mux.
func (s *MLService) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/ml/health", s.handleHealth)
	mux.HandleFunc("GET /api/ml/analyze/{user}", s.handleAnalyze)
	mux.HandleFunc("GET /api/ml/predictions/{user}", s.handlePredictions)
	mux.HandleFunc("GET /api/ml/forecasts/{user}", s.handleForecasts)
	mux.HandleFunc("GET /api/ml/insights/{user}", s.handleInsights)
	mux.HandleFunc("GET /api/ml/risk-analysis/{user}", s.handleRiskAnalysis)
	mux.HandleFunc("POST /api/ml/refresh/{user}", s.handleRefresh)
	mux.HandleFunc("GET /api/transactions/{user}", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions/{user}", s.handleAppendTransaction)
}

func (s *MLService) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "healthy",
		"ml_available": true,
		"timestamp":    time.Now().Format(time.RFC3339),
	})
}

// fullAnalysis is the analyze endpoint payload.
type fullAnalysis struct {
	Summary            *analytics.SummaryStats    `json:"summary"`
	Categories         *analytics.CategoryReport  `json:"categories"`
	MoodImpact         *analytics.MoodReport      `json:"mood_impact"`
	TimePatterns       *analytics.TimeReport      `json:"time_patterns"`
	Locations          *analytics.LocationReport  `json:"locations"`
	Merchants          *analytics.MerchantReport  `json:"merchants"`
	Personas           *analytics.PersonaReport   `json:"personas"`
	Recommendations    []string                   `json:"recommendations"`
	BehavioralInsights []string                   `json:"behavioral_insights"`
	Anomalies          []analytics.AnomalyDetail  `json:"anomalies"`
	Forecasts          *analytics.ForecastBundle  `json:"forecasts"`
}

func (s *MLService) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("user")
	analyzer, err := s.cache.Get(r.Context(), user)
	if err != nil {
		s.writeError(w, user, err)
		return
	}

	summary, err := analyzer.Summary()
	if err != nil {
		s.writeError(w, user, err)
		return
	}
	// The remaining queries can only fail with ErrNotReady, ruled out
	// by the Summary call above.
	categories, _ := analyzer.Categories()
	moodImpact, _ := analyzer.MoodImpact()
	timePatterns, _ := analyzer.TimePatterns()
	locations, _ := analyzer.Locations()
	merchants, _ := analyzer.Merchants()
	personas, _ := analyzer.Personas()
	recommendations, _ := analyzer.Recommendations()
	insights, _ := analyzer.Insights()
	anomalies, _ := analyzer.AnomalyDetails()
	forecasts, _ := analyzer.Forecasts()

	payload := &fullAnalysis{
		Summary:            summary,
		Categories:         categories,
		MoodImpact:         moodImpact,
		TimePatterns:       timePatterns,
		Locations:          locations,
		Merchants:          merchants,
		Personas:           personas,
		Recommendations:    truncate(recommendations, 10),
		BehavioralInsights: truncate(insights, 10),
		Anomalies:          anomalies,
		Forecasts:          forecasts,
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"username":  user,
		"data":      payload,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *MLService) handlePredictions(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("user")
	analyzer, err := s.cache.Get(r.Context(), user)
	if err != nil {
		s.writeError(w, user, err)
		return
	}
	predictions, err := analyzer.Predictions()
	if err != nil {
		s.writeError(w, user, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    predictions,
		"total":   len(predictions),
	})
}

func (s *MLService) handleForecasts(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("user")
	analyzer, err := s.cache.Get(r.Context(), user)
	if err != nil {
		s.writeError(w, user, err)
		return
	}
	forecasts, err := analyzer.Forecasts()
	if err != nil {
		s.writeError(w, user, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    forecasts,
	})
}

func (s *MLService) handleInsights(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("user")
	analyzer, err := s.cache.Get(r.Context(), user)
	if err != nil {
		s.writeError(w, user, err)
		return
	}
	insights, err := analyzer.Insights()
	if err != nil {
		s.writeError(w, user, err)
		return
	}
	recommendations, err := analyzer.Recommendations()
	if err != nil {
		s.writeError(w, user, err)
		return
	}
	stability, err := analyzer.Stability()
	if err != nil {
		s.writeError(w, user, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"behavioral_insights":       insights,
			"recommendations":           recommendations,
			"financial_stability_score": stability,
		},
	})
}

func (s *MLService) handleRiskAnalysis(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("user")
	analyzer, err := s.cache.Get(r.Context(), user)
	if err != nil {
		s.writeError(w, user, err)
		return
	}
	report, err := analyzer.RiskAnalysis()
	if err != nil {
		s.writeError(w, user, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    report,
	})
}

func (s *MLService) handleRefresh(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("user")
	s.cache.Invalidate(user)
	if _, err := s.cache.Get(r.Context(), user); err != nil {
		s.writeError(w, user, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"message":   fmt.Sprintf("Analysis refreshed for %s", user),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *MLService) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("user")
	recs, err := s.store.List(r.Context(), user)
	if err != nil {
		s.writeError(w, user, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    recs,
		"total":   len(recs),
	})
}

func (s *MLService) handleAppendTransaction(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("user")
	var rec ledger.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "invalid transaction payload",
		})
		return
	}
	if err := s.store.Append(r.Context(), user, rec); err != nil {
		s.writeError(w, user, err)
		return
	}
	// The next analysis request sees the new ledger revision and
	// rebuilds on its own; no explicit invalidation needed.
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Transaction recorded for %s", user),
	})
}

func (s *MLService) writeError(w http.ResponseWriter, user string, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()

	var dataErr *analytics.DataError
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		status = http.StatusNotFound
		msg = fmt.Sprintf("No data found for user %s", user)
	case errors.As(err, &dataErr):
		status = http.StatusUnprocessableEntity
	}

	if status >= 500 {
		s.log.Error().Err(err).Str("user", user).Msg("request failed")
	} else {
		s.log.Warn().Err(err).Str("user", user).Msg("request rejected")
	}
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func truncate(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
