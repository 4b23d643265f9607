package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FlowVane/internal/config"
	"FlowVane/internal/engine"
	"FlowVane/internal/export"
	"FlowVane/internal/factory"
	"FlowVane/internal/installer"
	"FlowVane/internal/model"
	"FlowVane/internal/monitor"
	"FlowVane/internal/record"
	"FlowVane/internal/stats"
	"FlowVane/internal/topology"

	"github.com/gorilla/mux"

	_ "FlowVane/internal/routing/impl/adaptive" // Registers the adaptive strategy
	_ "FlowVane/internal/routing/impl/ecmp"     // Registers the ecmp strategy
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	flag.Parse()

	log.Println("Starting fv-engine...")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	fabric, err := topology.New(cfg.Topology)
	if err != nil {
		log.Fatalf("Failed to build topology: %v", err)
	}
	log.Printf("Fabric: %d spines, %d leaves, %d links.", len(fabric.Spines), len(fabric.Leaves), len(fabric.Links()))

	probeInterval, err := cfg.ProbeInterval()
	if err != nil {
		log.Fatalf("Invalid monitor config: %v", err)
	}
	switchPorts, reverse := fabric.PortPlan()
	source := stats.NewOfctlSource(stats.ExecRunner{}, switchPorts, reverse)
	mon := monitor.New(source, fabric.Links(), probeInterval, cfg.Monitor.EWMAAlpha, cfg.Monitor.StaleAfter)

	inst, err := buildInstaller(cfg, fabric)
	if err != nil {
		log.Fatalf("Failed to build installer: %v", err)
	}

	writers, err := record.BuildWriters(cfg.Writers)
	if err != nil {
		log.Fatalf("Failed to build writers: %v", err)
	}

	strategy, err := factory.Create(cfg.Engine.Strategy, factory.Deps{
		Config:   cfg,
		Paths:    fabric,
		Snapshot: mon.Snapshot,
	})
	if err != nil {
		log.Fatalf("Failed to create strategy: %v", err)
	}

	eng, err := engine.New(cfg, fabric, strategy, mon, inst, writers)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	var pub *export.Publisher
	if cfg.NATS.DecisionSubject != "" {
		pub, err = export.NewPublisher(cfg.NATS)
		if err != nil {
			log.Fatalf("Failed to connect decision publisher: %v", err)
		}
		eng.OnDecision(func(dec *model.PathDecision) {
			if err := pub.PublishDecision(dec); err != nil {
				log.Printf("Failed to publish decision: %v", err)
			}
		})
	}

	eng.Start()

	sub, err := export.NewSubscriber(cfg.NATS)
	if err != nil {
		log.Fatalf("Failed to connect flow subscriber: %v", err)
	}
	in := eng.InputChannel()
	if err := sub.SubscribeFlowEvents(func(ev *model.FlowEvent) {
		in <- ev
	}); err != nil {
		log.Fatalf("Failed to subscribe to flow events: %v", err)
	}

	var debugServer *http.Server
	if cfg.API.DebugListenAddr != "" {
		debugServer = startDebugServer(cfg.API.DebugListenAddr, mon, eng)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutdown signal received, stopping engine...")
	sub.Close()
	eng.Stop()
	if pub != nil {
		pub.Close()
	}
	if debugServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := debugServer.Shutdown(ctx); err != nil {
			log.Printf("Debug server forced to shutdown: %v", err)
		}
	}
	log.Println("Shutdown complete.")
}

func buildInstaller(cfg *config.Config, fabric *topology.Fabric) (model.Installer, error) {
	switch cfg.Installer.Type {
	case "ovs":
		ovs := installer.NewOVS(stats.ExecRunner{}, fabric)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := ovs.Bootstrap(ctx, cfg.Topology.HostsPerLeaf); err != nil {
			return nil, err
		}
		log.Println("Bootstrapped OVS base rules on all switches.")
		return installer.NewCached(ovs), nil
	case "log", "":
		return installer.NewCached(installer.LogInstaller{}), nil
	default:
		log.Fatalf("Unknown installer type %q", cfg.Installer.Type)
		return nil, nil
	}
}

func startDebugServer(addr string, mon *monitor.Monitor, eng *engine.Engine) *http.Server {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/snapshot", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, mon.Snapshot())
	}).Methods("GET")
	r.HandleFunc("/api/v1/status", func(w http.ResponseWriter, _ *http.Request) {
		routed, skipped, errs := eng.Counters()
		writeJSON(w, map[string]interface{}{
			"routed":   routed,
			"skipped":  skipped,
			"errors":   errs,
			"flowlets": eng.FlowCount(),
		})
	}).Methods("GET")

	server := &http.Server{Addr: addr, Handler: r}
	go func() {
		log.Printf("Debug server starting on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", addr, err)
		}
	}()
	return server
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
