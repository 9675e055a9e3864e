package sim

import (
	"hash/fnv"
	"math/rand"
)

// RNG subsystems. Each draws from its own stream so that, for instance, adding
// a company never changes which trades are generated.
const (
	// SubsystemCargo draws trades and their realisation. It is seeded with the
	// master seed itself, so trades depend on nothing but the seed.
	SubsystemCargo = "cargo"
	// SubsystemNetwork places randomly generated ports.
	SubsystemNetwork = "network"
	// SubsystemPlacement puts vessels without a start port on a random port.
	SubsystemPlacement = "placement"
)

// SubsystemCompany is the subsystem of the named company's own decisions.
func SubsystemCompany(name string) string {
	return "company/" + name
}

// PartitionedRNG hands out one deterministic *rand.Rand per subsystem, derived
// from a master seed as seed XOR fnv1a64(subsystem), except for SubsystemCargo.
//
// Not safe for concurrent use; companies take their stream at bind time.
type PartitionedRNG struct {
	seed    int64
	streams map[string]*rand.Rand
}

func NewPartitionedRNG(seed int64) *PartitionedRNG {
	return &PartitionedRNG{seed: seed, streams: make(map[string]*rand.Rand)}
}

// ForSubsystem returns the stream of the subsystem, creating it on first use.
// Repeated calls return the same stream.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if r, ok := p.streams[name]; ok {
		return r
	}
	seed := p.seed
	if name != SubsystemCargo {
		h := fnv.New64a()
		h.Write([]byte(name))
		seed ^= int64(h.Sum64())
	}
	r := rand.New(rand.NewSource(seed))
	p.streams[name] = r
	return r
}

func (p *PartitionedRNG) Seed() int64 { return p.seed }
