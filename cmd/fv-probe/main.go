package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"FlowVane/internal/capture"
	"FlowVane/internal/config"
	"FlowVane/internal/export"
	"FlowVane/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
)

const (
	snapshotLen int32 = 1600
	promiscuous       = true
	timeout           = pcap.BlockForever
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	mode := flag.String("mode", "sub", "Operating mode: 'pub' to capture and publish flow events, 'sub' to subscribe to decisions and print.")
	iface := flag.String("iface", "", "Interface to capture packets from (required for pub mode).")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	switch *mode {
	case "pub":
		runProbe(cfg, *iface)
	case "sub":
		runSubscriber(cfg)
	default:
		fmt.Fprintf(os.Stderr, "Invalid mode: %s\n", *mode)
		flag.Usage()
		os.Exit(1)
	}
}

// runProbe captures packets on an interface and publishes the resulting flow
// events to NATS.
func runProbe(cfg *config.Config, interfaceName string) {
	if interfaceName == "" {
		log.Println("Error: -iface flag is required for pub mode.")
		flag.Usage()
		os.Exit(1)
	}
	log.Printf("Starting fv-probe in PUBLISH mode on interface: %s", interfaceName)

	pub, err := export.NewPublisher(cfg.NATS)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer pub.Close()

	handle, err := pcap.OpenLive(interfaceName, snapshotLen, promiscuous, timeout)
	if err != nil {
		log.Fatalf("Error opening device %s: %v", interfaceName, err)
	}
	defer handle.Close()

	log.Println("Capture started successfully. Publishing flow events to NATS...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
		published := 0
		for packet := range packetSource.Packets() {
			ev, err := capture.ParsePacket(packet.Data())
			if err != nil {
				continue // Skip non-IP packets
			}
			if meta := packet.Metadata(); meta != nil {
				ev.Timestamp = meta.Timestamp
			}
			if err := pub.PublishFlowEvent(ev); err != nil {
				log.Printf("Failed to publish flow event: %v", err)
			}
			published++
			if published%1000 == 0 {
				log.Printf("%d flow events published...", published)
			}
		}
	}()

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
}

// runSubscriber prints every routing decision as it is made.
func runSubscriber(cfg *config.Config) {
	log.Println("Starting fv-probe in SUBSCRIBER mode...")

	sub, err := export.NewSubscriber(cfg.NATS)
	if err != nil {
		log.Fatalf("Failed to create subscriber: %v", err)
	}
	defer sub.Close()

	if err := sub.SubscribeDecisions(func(dec *model.PathDecision) {
		log.Printf("Decision: %s %s via %s (%s, new flowlet: %t)", dec.FlowKey, dec.Pair, dec.Via, dec.Strategy, dec.NewFlowlet)
	}); err != nil {
		log.Fatalf("Failed to subscribe: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
}
