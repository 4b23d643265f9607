package pcap

import (
	"log"

	"FlowVane/internal/capture"
	"FlowVane/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
)

// Reader reads flow events from a pcap file.
type Reader struct {
	handle *pcap.Handle
}

// NewReader creates a new pcap reader for the given file path.
func NewReader(filePath string) (*Reader, error) {
	handle, err := pcap.OpenOffline(filePath)
	if err != nil {
		return nil, err
	}
	return &Reader{handle: handle}, nil
}

// Close closes the pcap handle.
func (r *Reader) Close() {
	r.handle.Close()
}

// ReadEvents reads all packets from the pcap file and sends the parsed flow
// events to the provided channel, which it closes when done. Capture
// timestamps are preserved so flowlet gaps in the trace survive replay.
func (r *Reader) ReadEvents(out chan<- *model.FlowEvent) {
	defer close(out)

	packetSource := gopacket.NewPacketSource(r.handle, r.handle.LinkType())
	for packet := range packetSource.Packets() {
		ev, err := capture.ParsePacket(packet.Data())
		if err != nil {
			// Unsupported packet types or corrupt data. Log and keep going.
			log.Printf("Error parsing packet: %v", err)
			continue
		}
		if meta := packet.Metadata(); meta != nil && !meta.Timestamp.IsZero() {
			ev.Timestamp = meta.Timestamp
		}
		out <- ev
	}
}
