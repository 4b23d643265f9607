package stats

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"FlowVane/internal/model"
)

// CommandRunner executes a switch CLI command and returns its output. The
// seam keeps the parser testable without a running OVS.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner runs commands on the local host.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return string(out), err
}

// PortCounters are the per-port counters parsed from one dump-ports line pair.
type PortCounters struct {
	RxPackets uint64
	RxBytes   uint64
	RxDrops   uint64
	TxPackets uint64
	TxBytes   uint64
	TxDrops   uint64
}

// OfctlSource reads cumulative link counters by invoking
// `ovs-ofctl dump-ports <switch>` once per monitor cycle and mapping port
// numbers back onto directed fabric links. Tx counters of a port belong to
// the outbound link, rx counters to the inbound one.
type OfctlSource struct {
	runner CommandRunner
	// switchPorts maps switch name -> port number -> outbound link id.
	switchPorts map[string]map[int]model.LinkID
	reverse     map[model.LinkID]model.LinkID
}

// NewOfctlSource builds a source for the given port plan. reverse maps each
// outbound link to its inbound counterpart on the same port.
func NewOfctlSource(runner CommandRunner, switchPorts map[string]map[int]model.LinkID, reverse map[model.LinkID]model.LinkID) *OfctlSource {
	return &OfctlSource{runner: runner, switchPorts: switchPorts, reverse: reverse}
}

// Counters implements model.StatsSource. A switch that cannot be queried this
// cycle contributes no entries for its outbound links, not even the rx mirror
// a reachable peer could supply: a half-populated entry would reset the
// monitor's miss count and hide the outage. The monitor tracks the resulting
// staleness per link.
func (s *OfctlSource) Counters(ctx context.Context) (map[model.LinkID]model.LinkCounters, error) {
	parsedBySwitch := make(map[string]map[int]PortCounters)
	var failures int
	for sw := range s.switchPorts {
		text, err := s.runner.Run(ctx, "ovs-ofctl", "dump-ports", sw)
		if err != nil {
			log.Printf("dump-ports failed for %s: %v", sw, err)
			failures++
			continue
		}
		parsedBySwitch[sw] = ParseDumpPorts(text)
	}
	if failures == len(s.switchPorts) && failures > 0 {
		return nil, fmt.Errorf("all %d switches unreachable: %w", failures, model.ErrStatsUnavailable)
	}

	out := make(map[model.LinkID]model.LinkCounters)
	for sw, parsed := range parsedBySwitch {
		for port, link := range s.switchPorts[sw] {
			pc, ok := parsed[port]
			if !ok {
				continue
			}
			c := out[link]
			c.TxBytes = pc.TxBytes
			c.TxPackets = pc.TxPackets
			c.TxDrops = pc.TxDrops
			out[link] = c
		}
	}
	// Rx counters mirror onto the reverse link, but only when that link's own
	// tx-side switch reported this cycle.
	for sw, parsed := range parsedBySwitch {
		for port, link := range s.switchPorts[sw] {
			pc, ok := parsed[port]
			if !ok {
				continue
			}
			rev, ok := s.reverse[link]
			if !ok {
				continue
			}
			rc, ok := out[rev]
			if !ok {
				continue
			}
			rc.RxBytes = pc.RxBytes
			rc.RxPackets = pc.RxPackets
			rc.RxDrops = pc.RxDrops
			out[rev] = rc
		}
	}
	return out, nil
}

var (
	portRe = regexp.MustCompile(`^\s*port\s+"?([^\s":]+)"?:`)
	dirRe  = regexp.MustCompile(`\b(rx|tx)\s+pkts=`)
	kvRe   = regexp.MustCompile(`(pkts|bytes|drop)=(\d+|\?)`)
)

// ParseDumpPorts parses `ovs-ofctl dump-ports` output into per-port counters.
// The usual format is two half-lines per port:
//
//	port  1: rx pkts=100, bytes=10000, drop=0, errs=0, frame=0, over=0, crc=0
//	         tx pkts=100, bytes=10000, drop=0, errs=0, coll=0
//
// though some builds emit rx and tx on one line. Ports named LOCAL (the
// bridge-internal port), "?" counters and unparsable lines are skipped.
func ParseDumpPorts(output string) map[int]PortCounters {
	result := make(map[int]PortCounters)
	current := -1

	for _, line := range strings.Split(output, "\n") {
		if m := portRe.FindStringSubmatch(line); m != nil {
			port, err := strconv.Atoi(m[1])
			if err != nil {
				current = -1 // LOCAL or a named port
				continue
			}
			current = port
		}
		if current < 0 {
			continue
		}

		// Slice the line into its rx/tx segments so one-line output does
		// not bleed tx counters into rx fields.
		marks := dirRe.FindAllStringSubmatchIndex(line, -1)
		pc := result[current]
		for i, m := range marks {
			dir := line[m[2]:m[3]]
			end := len(line)
			if i+1 < len(marks) {
				end = marks[i+1][0]
			}
			parseCounterSegment(&pc, dir, line[m[0]:end])
		}
		result[current] = pc
	}

	return result
}

func parseCounterSegment(pc *PortCounters, dir, segment string) {
	for _, kv := range kvRe.FindAllStringSubmatch(segment, -1) {
		if kv[2] == "?" {
			continue
		}
		v, err := strconv.ParseUint(kv[2], 10, 64)
		if err != nil {
			continue
		}
		switch dir + "." + kv[1] {
		case "rx.pkts":
			pc.RxPackets = v
		case "rx.bytes":
			pc.RxBytes = v
		case "rx.drop":
			pc.RxDrops = v
		case "tx.pkts":
			pc.TxPackets = v
		case "tx.bytes":
			pc.TxBytes = v
		case "tx.drop":
			pc.TxDrops = v
		}
	}
}
