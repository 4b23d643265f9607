package stats

import (
	"context"
	"errors"
	"strings"
	"testing"

	"FlowVane/internal/model"
)

const sampleDumpPorts = `OFPST_PORT reply (xid=0x2): 3 ports
  port LOCAL: rx pkts=0, bytes=0, drop=0, errs=0, frame=0, over=0, crc=0
           tx pkts=0, bytes=0, drop=0, errs=0, coll=0
  port  1: rx pkts=1200, bytes=150000, drop=2, errs=0, frame=0, over=0, crc=0
           tx pkts=900, bytes=98000, drop=1, errs=0, coll=0
  port  2: rx pkts=55, bytes=6800, drop=0, errs=0, frame=0, over=0, crc=0
           tx pkts=70, bytes=9100, drop=0, errs=0, coll=0
`

func TestParseDumpPorts(t *testing.T) {
	parsed := ParseDumpPorts(sampleDumpPorts)

	if len(parsed) != 2 {
		t.Fatalf("expected 2 numeric ports, got %d (%v)", len(parsed), parsed)
	}

	p1 := parsed[1]
	if p1.RxPackets != 1200 || p1.RxBytes != 150000 || p1.RxDrops != 2 {
		t.Errorf("port 1 rx parsed as %+v", p1)
	}
	if p1.TxPackets != 900 || p1.TxBytes != 98000 || p1.TxDrops != 1 {
		t.Errorf("port 1 tx parsed as %+v", p1)
	}

	p2 := parsed[2]
	if p2.TxBytes != 9100 || p2.RxBytes != 6800 {
		t.Errorf("port 2 parsed as %+v", p2)
	}
}

func TestParseDumpPorts_SingleLineFormat(t *testing.T) {
	// Some OVS builds emit rx and tx on one line per port.
	out := `  port  3: rx pkts=10, bytes=1000, drop=0, errs=0, frame=0, over=0, crc=0 tx pkts=20, bytes=2000, drop=3, errs=0, coll=0`
	parsed := ParseDumpPorts(out)
	p := parsed[3]
	if p.RxBytes != 1000 {
		t.Errorf("rx bytes = %d, want 1000", p.RxBytes)
	}
}

func TestParseDumpPorts_UnknownCounters(t *testing.T) {
	out := `  port  1: rx pkts=?, bytes=?, drop=?, errs=?, frame=?, over=?, crc=?
           tx pkts=5, bytes=500, drop=0, errs=0, coll=0`
	parsed := ParseDumpPorts(out)
	p := parsed[1]
	if p.RxBytes != 0 || p.TxBytes != 500 {
		t.Errorf("unknown rx counters must read as zero, got %+v", p)
	}
}

// fakeRunner serves canned dump-ports output per switch.
type fakeRunner struct {
	outputs map[string]string
	fail    map[string]bool
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	sw := args[len(args)-1]
	if r.fail[sw] {
		return "", errors.New("ovs-ofctl: " + sw + " is not a bridge")
	}
	return r.outputs[sw], nil
}

func TestOfctlSource_Counters(t *testing.T) {
	leafOut := LinkID("leaf1->spine1")
	spineOut := LinkID("spine1->leaf1")
	spineDump := `  port  1: rx pkts=880, bytes=120000, drop=0, errs=0, frame=0, over=0, crc=0
           tx pkts=640, bytes=71000, drop=4, errs=0, coll=0
`
	runner := &fakeRunner{outputs: map[string]string{
		"leaf1":  strings.ReplaceAll(sampleDumpPorts, "port  1", "port  5"),
		"spine1": spineDump,
	}}
	src := NewOfctlSource(runner,
		map[string]map[int]model.LinkID{
			"leaf1":  {5: leafOut},
			"spine1": {1: spineOut},
		},
		map[model.LinkID]model.LinkID{leafOut: spineOut, spineOut: leafOut},
	)

	counters, err := src.Counters(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	c, ok := counters[leafOut]
	if !ok {
		t.Fatalf("no counters for %s", leafOut)
	}
	if c.TxBytes != 98000 || c.TxDrops != 1 {
		t.Errorf("outbound link counters %+v", c)
	}
	if c.RxBytes != 120000 {
		t.Errorf("rx counters from the spine side not mirrored: %+v", c)
	}
	rc, ok := counters[spineOut]
	if !ok {
		t.Fatalf("no counters for reverse link %s", spineOut)
	}
	if rc.TxBytes != 71000 || rc.TxDrops != 4 {
		t.Errorf("spine outbound counters %+v", rc)
	}
	if rc.RxBytes != 150000 || rc.RxDrops != 2 {
		t.Errorf("inbound link counters %+v", rc)
	}
}

func TestOfctlSource_AllSwitchesDown(t *testing.T) {
	runner := &fakeRunner{fail: map[string]bool{"leaf1": true}}
	src := NewOfctlSource(runner,
		map[string]map[int]model.LinkID{"leaf1": {5: LinkID("leaf1->spine1")}},
		nil,
	)

	_, err := src.Counters(context.Background())
	if !errors.Is(err, model.ErrStatsUnavailable) {
		t.Fatalf("expected ErrStatsUnavailable, got %v", err)
	}
}

func TestOfctlSource_PartialFailure(t *testing.T) {
	leafOut := LinkID("leaf1->spine1")
	spineOut := LinkID("spine1->leaf1")
	runner := &fakeRunner{
		outputs: map[string]string{"leaf1": strings.ReplaceAll(sampleDumpPorts, "port  1", "port  5")},
		fail:    map[string]bool{"spine1": true, "leaf2": true},
	}
	src := NewOfctlSource(runner,
		map[string]map[int]model.LinkID{
			"leaf1":  {5: leafOut},
			"leaf2":  {5: LinkID("leaf2->spine1")},
			"spine1": {1: spineOut},
		},
		map[model.LinkID]model.LinkID{leafOut: spineOut, spineOut: leafOut},
	)

	counters, err := src.Counters(context.Background())
	if err != nil {
		t.Fatalf("partial failure must not error, got %v", err)
	}
	if _, ok := counters[leafOut]; !ok {
		t.Error("healthy switch's counters missing")
	}
	if _, ok := counters[LinkID("leaf2->spine1")]; ok {
		t.Error("failed switch contributed counters")
	}
	// leaf1's rx side mirrors onto spine1's outbound link, but spine1 itself
	// was unreachable. A partial entry here would mask the outage from the
	// staleness tracking.
	if _, ok := counters[spineOut]; ok {
		t.Errorf("dead switch's outbound link has counters: %+v", counters[spineOut])
	}
}

// LinkID shortens model.LinkID construction in tests.
func LinkID(s string) model.LinkID { return model.LinkID(s) }
