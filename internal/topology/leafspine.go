package topology

import (
	"fmt"
	"strconv"
	"strings"

	"FlowVane/internal/config"
	"FlowVane/internal/model"
)

// Fabric is a two-tier leaf-spine fabric. Leaves connect hosts, spines
// interconnect leaves in a full mesh, so every distinct leaf pair has exactly
// one two-hop path per spine. The fabric is fixed for the lifetime of a run.
type Fabric struct {
	Spines []string
	Leaves []string

	hostsPerLeaf int
	links        []model.Link
	linkIndex    map[model.LinkID]model.Link
	paths        map[model.EndpointPair][]model.Path
}

// New builds the fabric described by the topology config. Naming follows the
// fabric convention: switches "spineS"/"leafL", hosts addressed 10.0.L.H.
func New(cfg config.TopologyConfig) (*Fabric, error) {
	if cfg.NumSpines <= 0 || cfg.NumLeaves <= 0 {
		return nil, fmt.Errorf("topology needs at least one spine and one leaf, got %d/%d", cfg.NumSpines, cfg.NumLeaves)
	}
	capacityBps := cfg.LinkCapacityMbps * 1e6
	if capacityBps <= 0 {
		capacityBps = 1e9
	}

	f := &Fabric{
		hostsPerLeaf: cfg.HostsPerLeaf,
		linkIndex:    make(map[model.LinkID]model.Link),
		paths:        make(map[model.EndpointPair][]model.Path),
	}
	for s := 1; s <= cfg.NumSpines; s++ {
		f.Spines = append(f.Spines, fmt.Sprintf("spine%d", s))
	}
	for l := 1; l <= cfg.NumLeaves; l++ {
		f.Leaves = append(f.Leaves, fmt.Sprintf("leaf%d", l))
	}

	// Directed links, both directions of every leaf-spine adjacency.
	for _, leaf := range f.Leaves {
		for _, spine := range f.Spines {
			f.addLink(leaf, spine, capacityBps)
			f.addLink(spine, leaf, capacityBps)
		}
	}

	// One equal-cost path per spine for every ordered distinct leaf pair,
	// indexed in spine order so path identifiers are reproducible.
	for _, src := range f.Leaves {
		for _, dst := range f.Leaves {
			if src == dst {
				continue
			}
			pair := model.EndpointPair{SrcLeaf: src, DstLeaf: dst}
			candidates := make([]model.Path, 0, len(f.Spines))
			for i, spine := range f.Spines {
				candidates = append(candidates, model.Path{
					ID:    model.PathID(i),
					Via:   spine,
					Links: []model.LinkID{LinkIDFor(src, spine), LinkIDFor(spine, dst)},
				})
			}
			f.paths[pair] = candidates
		}
	}

	return f, nil
}

func (f *Fabric) addLink(from, to string, capacityBps float64) {
	link := model.Link{
		ID:          LinkIDFor(from, to),
		From:        from,
		To:          to,
		CapacityBps: capacityBps,
	}
	f.links = append(f.links, link)
	f.linkIndex[link.ID] = link
}

// LinkIDFor names the directed link between two switches.
func LinkIDFor(from, to string) model.LinkID {
	return model.LinkID(from + "->" + to)
}

// Links returns all directed links of the fabric.
func (f *Fabric) Links() []model.Link {
	return f.links
}

// Link looks up one link by id.
func (f *Fabric) Link(id model.LinkID) (model.Link, bool) {
	l, ok := f.linkIndex[id]
	return l, ok
}

// Paths returns the static candidate path set for an endpoint pair. The
// returned slice must not be modified. Same-leaf pairs have no fabric paths.
func (f *Fabric) Paths(pair model.EndpointPair) []model.Path {
	return f.paths[pair]
}

// PortPlan returns, per switch, the OpenFlow port number carrying each
// outbound fabric link, plus the inbound counterpart sharing the port.
// Leaf ports 1..H face hosts and spine-facing ports follow in spine order;
// spine ports are numbered in leaf order. This matches how the links are
// attached when the fabric is brought up.
func (f *Fabric) PortPlan() (map[string]map[int]model.LinkID, map[model.LinkID]model.LinkID) {
	ports := make(map[string]map[int]model.LinkID, len(f.Leaves)+len(f.Spines))
	reverse := make(map[model.LinkID]model.LinkID, len(f.links))

	for _, leaf := range f.Leaves {
		ports[leaf] = make(map[int]model.LinkID, len(f.Spines))
		for i, spine := range f.Spines {
			out := LinkIDFor(leaf, spine)
			ports[leaf][f.hostsPerLeaf+i+1] = out
			reverse[out] = LinkIDFor(spine, leaf)
		}
	}
	for _, spine := range f.Spines {
		ports[spine] = make(map[int]model.LinkID, len(f.Leaves))
		for i, leaf := range f.Leaves {
			out := LinkIDFor(spine, leaf)
			ports[spine][i+1] = out
			reverse[out] = LinkIDFor(leaf, spine)
		}
	}
	return ports, reverse
}

// SpinePort returns the port a leaf uses to reach a spine, or 0 if the spine
// is unknown.
func (f *Fabric) SpinePort(leaf, spine string) int {
	for i, s := range f.Spines {
		if s == spine {
			return f.hostsPerLeaf + i + 1
		}
	}
	return 0
}

// HostPort returns the leaf port facing host 10.0.L.H, which is simply H.
func HostPort(hostOctet int) int {
	return hostOctet
}

// LeafForHost resolves a host address of the form 10.0.L.H to its leaf
// switch.
func (f *Fabric) LeafForHost(ip string) (string, error) {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 || parts[0] != "10" || parts[1] != "0" {
		return "", fmt.Errorf("host address %q is not in the fabric's 10.0.L.H plan", ip)
	}
	l, err := strconv.Atoi(parts[2])
	if err != nil || l < 1 || l > len(f.Leaves) {
		return "", fmt.Errorf("host address %q maps to no leaf", ip)
	}
	return f.Leaves[l-1], nil
}

// PairForFlow maps a flow's endpoints onto the leaf pair its traffic
// traverses.
func (f *Fabric) PairForFlow(key model.FlowKey) (model.EndpointPair, error) {
	src, err := f.LeafForHost(key.SrcIP)
	if err != nil {
		return model.EndpointPair{}, err
	}
	dst, err := f.LeafForHost(key.DstIP)
	if err != nil {
		return model.EndpointPair{}, err
	}
	return model.EndpointPair{SrcLeaf: src, DstLeaf: dst}, nil
}
