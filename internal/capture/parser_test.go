package capture

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

func buildTCPPacket(t *testing.T, srcIP, dstIP string, srcPort, dstPort uint16) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:       net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x02},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		SrcIP:    net.ParseIP(srcIP),
		DstIP:    net.ParseIP(dstIP),
		Protocol: layers.IPProtocolTCP,
	}
	tcp := &layers.TCP{SrcPort: layers.TCPPort(srcPort), DstPort: layers.TCPPort(dstPort)}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("checksum setup: %v", err)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload([]byte("data"))); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return buf.Bytes()
}

func TestParsePacketTCP(t *testing.T) {
	data := buildTCPPacket(t, "10.0.1.1", "10.0.3.2", 33000, 5001)

	ev, err := ParsePacket(data)
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	if ev.FlowKey.SrcIP != "10.0.1.1" || ev.FlowKey.DstIP != "10.0.3.2" {
		t.Errorf("addresses = %s -> %s", ev.FlowKey.SrcIP, ev.FlowKey.DstIP)
	}
	if ev.FlowKey.SrcPort != 33000 || ev.FlowKey.DstPort != 5001 {
		t.Errorf("ports = %d -> %d", ev.FlowKey.SrcPort, ev.FlowKey.DstPort)
	}
	if ev.FlowKey.Protocol != 6 {
		t.Errorf("protocol = %d, want 6", ev.FlowKey.Protocol)
	}
	if ev.Length != len(data) {
		t.Errorf("length = %d, want %d", ev.Length, len(data))
	}
}

func TestParsePacketRejectsNonIP(t *testing.T) {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:       net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x02},
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x01},
		SourceProtAddress: []byte{10, 0, 1, 1},
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    []byte{10, 0, 1, 2},
	}
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, eth, arp); err != nil {
		t.Fatalf("serialize: %v", err)
	}

	if _, err := ParsePacket(buf.Bytes()); err == nil {
		t.Fatal("expected error for non-IP packet")
	}
}
