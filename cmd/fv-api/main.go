package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"FlowVane/internal/config"
	"FlowVane/internal/query"

	"github.com/gorilla/mux"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Find the first enabled ClickHouse writer config.
	var chCfg *config.ClickHouseConfig
	for _, writerDef := range cfg.Writers {
		if writerDef.Enabled && writerDef.Type == "clickhouse" {
			chCfg = &writerDef.ClickHouse
			break
		}
	}
	if chCfg == nil {
		log.Fatalf("No enabled ClickHouse writer found in config. API server cannot start.")
	}

	querier, err := query.NewClickHouseQuerier(*chCfg)
	if err != nil {
		log.Fatalf("Failed to create querier: %v", err)
	}

	apiHandler := &APIHandler{querier: querier}

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/pairs/{src}/{dst}/paths", apiHandler.pathSharesHandler).Methods("GET")
	r.HandleFunc("/api/v1/links/history", apiHandler.linkHistoryHandler).Methods("GET")
	r.HandleFunc("/api/v1/flows/trace", apiHandler.traceFlowHandler).Methods("GET")

	server := &http.Server{
		Addr:    cfg.API.ListenAddr,
		Handler: r,
	}

	go func() {
		log.Printf("API server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", server.Addr, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("API server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("API server exited.")
}

// APIHandler holds the dependencies for API handlers.
type APIHandler struct {
	querier query.Querier
}

// pathSharesHandler reports how decisions for one leaf pair spread over the
// spines.
func (h *APIHandler) pathSharesHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	since, err := parseSince(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	shares, err := h.querier.PathShares(r.Context(), vars["src"], vars["dst"], since)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to query path shares: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, shares)
}

// linkHistoryHandler returns recent utilization samples for ?link=.
func (h *APIHandler) linkHistoryHandler(w http.ResponseWriter, r *http.Request) {
	link := r.URL.Query().Get("link")
	if link == "" {
		http.Error(w, "missing required query parameter: link", http.StatusBadRequest)
		return
	}
	since, err := parseSince(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit := parseLimit(r)

	points, err := h.querier.LinkHistory(r.Context(), link, since, limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to query link history: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, points)
}

// traceFlowHandler returns the decision history for a flow selected by
// five-tuple query parameters.
func (h *APIHandler) traceFlowHandler(w http.ResponseWriter, r *http.Request) {
	filter := query.TraceFilter{}
	for param, column := range map[string]string{
		"src_ip":   "SrcIP",
		"dst_ip":   "DstIP",
		"src_port": "SrcPort",
		"dst_port": "DstPort",
		"protocol": "Protocol",
	} {
		if v := r.URL.Query().Get(param); v != "" {
			filter[column] = v
		}
	}
	if len(filter) == 0 {
		http.Error(w, "at least one flow key parameter is required", http.StatusBadRequest)
		return
	}
	since, err := parseSince(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit := parseLimit(r)

	entries, err := h.querier.TraceFlow(r.Context(), filter, since, limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to trace flow: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, entries)
}

// parseSince reads an optional ?since= RFC3339 timestamp.
func parseSince(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid since parameter: %v", err)
	}
	return t, nil
}

func parseLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
