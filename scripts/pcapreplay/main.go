package main

import (
	"flag"
	"log"
	"time"

	"FlowVane/internal/config"
	"FlowVane/internal/export"
	"FlowVane/internal/model"
	"FlowVane/pkg/pcap"
)

// pcapreplay publishes the flows of a capture file to NATS, preserving the
// original inter-packet gaps so the engine sees the trace's real flowlet
// structure.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	file := flag.String("file", "", "Path to the pcap file to replay (required).")
	pace := flag.Bool("pace", true, "Replay with original timing instead of as fast as possible.")
	flag.Parse()

	if *file == "" {
		log.Fatal("-file is required")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pub, err := export.NewPublisher(cfg.NATS)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer pub.Close()

	reader, err := pcap.NewReader(*file)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", *file, err)
	}
	defer reader.Close()

	events := make(chan *model.FlowEvent, 1024)
	go reader.ReadEvents(events)

	var last time.Time
	published := 0
	for ev := range events {
		if *pace && !last.IsZero() {
			if gap := ev.Timestamp.Sub(last); gap > 0 {
				time.Sleep(gap)
			}
		}
		last = ev.Timestamp
		if err := pub.PublishFlowEvent(ev); err != nil {
			log.Printf("Failed to publish flow event: %v", err)
		}
		published++
		if published%10000 == 0 {
			log.Printf("%d flow events replayed...", published)
		}
	}
	log.Printf("Replayed %d flow events from %s.", published, *file)
}
