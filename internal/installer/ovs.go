package installer

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"FlowVane/internal/model"
	"FlowVane/internal/stats"
	"FlowVane/internal/topology"
)

// OVSInstaller realizes path decisions as OpenFlow rules on Open vSwitch
// leaves. Per-pair steering rules are installed at priority 200 on the
// source leaf so they shadow the bootstrap multipath rules at priority 100.
type OVSInstaller struct {
	runner stats.CommandRunner
	fabric *topology.Fabric
}

func NewOVS(runner stats.CommandRunner, fabric *topology.Fabric) *OVSInstaller {
	return &OVSInstaller{runner: runner, fabric: fabric}
}

// Install points the destination leaf's subnet at the chosen spine port on
// the source leaf. add-flow overwrites a rule with the same match, so
// re-installing a pair is safe.
func (o *OVSInstaller) Install(ctx context.Context, pair model.EndpointPair, path model.Path) error {
	port := o.fabric.SpinePort(pair.SrcLeaf, path.Via)
	if port == 0 {
		return fmt.Errorf("leaf %s has no port toward %s", pair.SrcLeaf, path.Via)
	}
	subnet, err := leafSubnet(pair.DstLeaf)
	if err != nil {
		return err
	}
	flow := fmt.Sprintf("priority=200,ip,nw_dst=%s,actions=output:%d", subnet, port)
	if out, err := o.runner.Run(ctx, "ovs-ofctl", "add-flow", pair.SrcLeaf, flow); err != nil {
		return fmt.Errorf("add-flow on %s: %v (%s)", pair.SrcLeaf, err, strings.TrimSpace(out))
	}
	return nil
}

// Bootstrap installs the static base rules the steering rules refine:
// direct host forwarding and a select group over all spines on every leaf,
// per-host forwarding on every spine, and a flood rule as the default.
func (o *OVSInstaller) Bootstrap(ctx context.Context, hostsPerLeaf int) error {
	for li, leaf := range o.fabric.Leaves {
		if _, err := o.runner.Run(ctx, "ovs-ofctl", "del-flows", leaf); err != nil {
			return fmt.Errorf("del-flows on %s: %w", leaf, err)
		}
		for h := 1; h <= hostsPerLeaf; h++ {
			flow := fmt.Sprintf("priority=100,ip,nw_dst=10.0.%d.%d,actions=output:%d", li+1, h, topology.HostPort(h))
			if _, err := o.runner.Run(ctx, "ovs-ofctl", "add-flow", leaf, flow); err != nil {
				return fmt.Errorf("add-flow on %s: %w", leaf, err)
			}
		}

		// One select group spraying remote traffic across every spine port.
		buckets := make([]string, 0, len(o.fabric.Spines))
		for _, spine := range o.fabric.Spines {
			buckets = append(buckets, fmt.Sprintf("bucket=output:%d", o.fabric.SpinePort(leaf, spine)))
		}
		group := fmt.Sprintf("group_id=1,type=select,%s", strings.Join(buckets, ","))
		if _, err := o.runner.Run(ctx, "ovs-ofctl", "add-group", leaf, group); err != nil {
			return fmt.Errorf("add-group on %s: %w", leaf, err)
		}
		for ri := range o.fabric.Leaves {
			if ri == li {
				continue
			}
			flow := fmt.Sprintf("priority=100,ip,nw_dst=10.0.%d.0/24,actions=group:1", ri+1)
			if _, err := o.runner.Run(ctx, "ovs-ofctl", "add-flow", leaf, flow); err != nil {
				return fmt.Errorf("add-flow on %s: %w", leaf, err)
			}
		}
		if _, err := o.runner.Run(ctx, "ovs-ofctl", "add-flow", leaf, "priority=0,actions=flood"); err != nil {
			return fmt.Errorf("add-flow on %s: %w", leaf, err)
		}
	}

	for _, spine := range o.fabric.Spines {
		if _, err := o.runner.Run(ctx, "ovs-ofctl", "del-flows", spine); err != nil {
			return fmt.Errorf("del-flows on %s: %w", spine, err)
		}
		for li, leaf := range o.fabric.Leaves {
			port, err := spineLeafPort(o.fabric, spine, leaf)
			if err != nil {
				return err
			}
			flow := fmt.Sprintf("priority=100,ip,nw_dst=10.0.%d.0/24,actions=output:%d", li+1, port)
			if _, err := o.runner.Run(ctx, "ovs-ofctl", "add-flow", spine, flow); err != nil {
				return fmt.Errorf("add-flow on %s: %w", spine, err)
			}
		}
		if _, err := o.runner.Run(ctx, "ovs-ofctl", "add-flow", spine, "priority=0,actions=flood"); err != nil {
			return fmt.Errorf("add-flow on %s: %w", spine, err)
		}
	}
	return nil
}

// leafSubnet maps "leafN" to the 10.0.N.0/24 subnet its hosts live in.
func leafSubnet(leaf string) (string, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(leaf, "leaf"))
	if err != nil || n < 1 {
		return "", fmt.Errorf("malformed leaf name %q", leaf)
	}
	return fmt.Sprintf("10.0.%d.0/24", n), nil
}

func spineLeafPort(f *topology.Fabric, spine, leaf string) (int, error) {
	for i, l := range f.Leaves {
		if l == leaf {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("spine %s has no port toward %s", spine, leaf)
}
