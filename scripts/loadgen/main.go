package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"FlowVane/internal/config"
	"FlowVane/internal/export"
	"FlowVane/internal/model"
)

// loadgen publishes synthetic flow events to NATS so the engine can be
// exercised without a fabric. Patterns mirror synchronized training traffic:
// all-to-all keeps every host pair busy, bursty alternates send bursts with
// idle gaps long enough to open new flowlets.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	pattern := flag.String("pattern", "all_to_all", "Traffic pattern: 'all_to_all' or 'bursty'.")
	rate := flag.Int("rate", 1000, "Events per second.")
	duration := flag.Duration("duration", 30*time.Second, "How long to generate traffic.")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pub, err := export.NewPublisher(cfg.NATS)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer pub.Close()

	if *rate < 1 {
		log.Fatal("-rate must be at least 1")
	}
	hosts := fabricHosts(cfg.Topology)
	if len(hosts) < 2 {
		log.Fatal("Topology has fewer than two hosts, nothing to generate.")
	}
	log.Printf("Generating %s traffic over %d hosts at %d events/s for %s.", *pattern, len(hosts), *rate, *duration)

	switch *pattern {
	case "all_to_all":
		runAllToAll(pub, hosts, *rate, *duration)
	case "bursty":
		runBursty(pub, hosts, *rate, *duration)
	default:
		log.Fatalf("Unknown pattern %q", *pattern)
	}
	log.Println("Done.")
}

// fabricHosts lists every host address of the configured fabric.
func fabricHosts(topo config.TopologyConfig) []string {
	var hosts []string
	for l := 1; l <= topo.NumLeaves; l++ {
		for h := 1; h <= topo.HostsPerLeaf; h++ {
			hosts = append(hosts, hostAddr(l, h))
		}
	}
	return hosts
}

func hostAddr(leaf, host int) string {
	return fmt.Sprintf("10.0.%d.%d", leaf, host)
}

// runAllToAll publishes a steady mix of events between every ordered host
// pair. Long-lived flows keep stable ports so flowlet assignments persist.
func runAllToAll(pub *export.Publisher, hosts []string, rate int, duration time.Duration) {
	type pair struct{ src, dst string }
	var pairs []pair
	for _, src := range hosts {
		for _, dst := range hosts {
			if src != dst {
				pairs = append(pairs, pair{src, dst})
			}
		}
	}

	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()
	deadline := time.Now().Add(duration)

	published := 0
	for now := range ticker.C {
		if now.After(deadline) {
			break
		}
		p := pairs[published%len(pairs)]
		ev := &model.FlowEvent{
			Timestamp: now,
			FlowKey: model.FlowKey{
				SrcIP:    p.src,
				DstIP:    p.dst,
				SrcPort:  uint16(30000 + published%len(pairs)),
				DstPort:  5001,
				Protocol: 6,
			},
			Length: 1400 + rand.Intn(100),
		}
		if err := pub.PublishFlowEvent(ev); err != nil {
			log.Printf("Failed to publish flow event: %v", err)
		}
		published++
		if published%10000 == 0 {
			log.Printf("%d flow events published...", published)
		}
	}
	log.Printf("Published %d flow events total.", published)
}

// runBursty sends short bursts on a few flows with idle gaps between bursts,
// giving an adaptive engine flowlet boundaries to reroute on.
func runBursty(pub *export.Publisher, hosts []string, rate int, duration time.Duration) {
	deadline := time.Now().Add(duration)
	burst := rate / 10
	if burst < 1 {
		burst = 1
	}

	published := 0
	for time.Now().Before(deadline) {
		src := hosts[rand.Intn(len(hosts))]
		dst := hosts[rand.Intn(len(hosts))]
		if src == dst {
			continue
		}
		key := model.FlowKey{
			SrcIP:    src,
			DstIP:    dst,
			SrcPort:  uint16(40000 + rand.Intn(1000)),
			DstPort:  5001,
			Protocol: 6,
		}
		for i := 0; i < burst; i++ {
			ev := &model.FlowEvent{Timestamp: time.Now(), FlowKey: key, Length: 1400 + rand.Intn(100)}
			if err := pub.PublishFlowEvent(ev); err != nil {
				log.Printf("Failed to publish flow event: %v", err)
			}
			published++
			time.Sleep(time.Second / time.Duration(rate))
		}
		// Idle long enough for the flowlet to expire before the next burst.
		time.Sleep(100 * time.Millisecond)
	}
	log.Printf("Published %d flow events total.", published)
}
