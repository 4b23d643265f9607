package capture

import (
	"fmt"
	"time"

	"FlowVane/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ParsePacket decodes a raw Ethernet frame and extracts the flow event the
// engine routes on. Non-IPv4 and non-TCP/UDP packets are rejected.
func ParsePacket(data []byte) (*model.FlowEvent, error) {
	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)

	ev := &model.FlowEvent{
		Timestamp: time.Now(),
		Length:    len(data),
	}
	if meta := packet.Metadata(); meta != nil && !meta.Timestamp.IsZero() {
		ev.Timestamp = meta.Timestamp
	}

	l := packet.Layer(layers.LayerTypeIPv4)
	if l == nil {
		return nil, fmt.Errorf("not an IPv4 packet")
	}
	ip := l.(*layers.IPv4)
	ev.FlowKey.SrcIP = ip.SrcIP.String()
	ev.FlowKey.DstIP = ip.DstIP.String()
	ev.FlowKey.Protocol = uint8(ip.Protocol)

	if l := packet.Layer(layers.LayerTypeTCP); l != nil {
		tcp := l.(*layers.TCP)
		ev.FlowKey.SrcPort = uint16(tcp.SrcPort)
		ev.FlowKey.DstPort = uint16(tcp.DstPort)
	} else if l := packet.Layer(layers.LayerTypeUDP); l != nil {
		udp := l.(*layers.UDP)
		ev.FlowKey.SrcPort = uint16(udp.SrcPort)
		ev.FlowKey.DstPort = uint16(udp.DstPort)
	} else {
		return nil, fmt.Errorf("not a TCP or UDP packet")
	}

	return ev, nil
}
