package sim

import (
	"errors"
	"fmt"
)

var (
	ErrNegativeAmount    = errors.New("negative cargo amount")
	ErrUnknownCargoType  = errors.New("unknown cargo type")
	ErrOverCapacity      = errors.New("cargo exceeds capacity")
	ErrInsufficientCargo = errors.New("insufficient cargo aboard")
)

// cargoEpsilon absorbs float rounding when comparing loads against capacity.
const cargoEpsilon = 1e-9

// CargoCapacity describes one hold compartment of a vessel.
type CargoCapacity struct {
	CargoType   string  `yaml:"cargo_type" json:"cargo_type"`
	Capacity    float64 `yaml:"capacity" json:"capacity"`
	LoadingRate float64 `yaml:"loading_rate" json:"loading_rate"` // amount per hour
}

type container struct {
	CargoCapacity
	load float64
}

// CargoHold is the set of compartments of a vessel, one per cargo type.
type CargoHold struct {
	containers []*container
}

// NewCargoHold creates an empty hold. Capacities with a repeated cargo type are merged.
func NewCargoHold(capacities ...CargoCapacity) *CargoHold {
	h := &CargoHold{}
	for _, c := range capacities {
		if existing := h.find(c.CargoType); existing != nil {
			existing.Capacity += c.Capacity
			continue
		}
		h.containers = append(h.containers, &container{CargoCapacity: c})
	}
	return h
}

func (h *CargoHold) find(cargoType string) *container {
	for _, c := range h.containers {
		if c.CargoType == cargoType {
			return c
		}
	}
	return nil
}

// Load adds amount of cargoType to the hold.
func (h *CargoHold) Load(cargoType string, amount float64) error {
	if amount < 0 {
		return fmt.Errorf("load %v of %s: %w", amount, cargoType, ErrNegativeAmount)
	}
	c := h.find(cargoType)
	if c == nil {
		return fmt.Errorf("load %s: %w", cargoType, ErrUnknownCargoType)
	}
	if c.load+amount > c.Capacity+cargoEpsilon {
		return fmt.Errorf("load %v of %s onto %v/%v: %w", amount, cargoType, c.load, c.Capacity, ErrOverCapacity)
	}
	c.load += amount
	return nil
}

// Unload removes amount of cargoType from the hold.
func (h *CargoHold) Unload(cargoType string, amount float64) error {
	if amount < 0 {
		return fmt.Errorf("unload %v of %s: %w", amount, cargoType, ErrNegativeAmount)
	}
	c := h.find(cargoType)
	if c == nil {
		return fmt.Errorf("unload %s: %w", cargoType, ErrUnknownCargoType)
	}
	if amount > c.load+cargoEpsilon {
		return fmt.Errorf("unload %v of %s with %v aboard: %w", amount, cargoType, c.load, ErrInsufficientCargo)
	}
	c.load = max(0, c.load-amount)
	return nil
}

// Amount returns the amount of cargoType aboard.
func (h *CargoHold) Amount(cargoType string) float64 {
	if c := h.find(cargoType); c != nil {
		return c.load
	}
	return 0
}

// Capacity returns the capacity for cargoType and whether the hold can carry it at all.
func (h *CargoHold) Capacity(cargoType string) (float64, bool) {
	if c := h.find(cargoType); c != nil {
		return c.Capacity, true
	}
	return 0, false
}

// LoadingRate returns the loading rate for cargoType.
func (h *CargoHold) LoadingRate(cargoType string) (float64, bool) {
	if c := h.find(cargoType); c != nil {
		return c.LoadingRate, true
	}
	return 0, false
}

// Empty reports whether nothing is aboard.
func (h *CargoHold) Empty() bool {
	for _, c := range h.containers {
		if c.load > cargoEpsilon {
			return false
		}
	}
	return true
}

// Capacities returns the hold's compartments.
func (h *CargoHold) Capacities() []CargoCapacity {
	out := make([]CargoCapacity, 0, len(h.containers))
	for _, c := range h.containers {
		out = append(out, c.CargoCapacity)
	}
	return out
}

func (h *CargoHold) clone() *CargoHold {
	out := &CargoHold{containers: make([]*container, len(h.containers))}
	for i, c := range h.containers {
		cc := *c
		out.containers[i] = &cc
	}
	return out
}

func (h *CargoHold) loads() map[string]float64 {
	out := make(map[string]float64, len(h.containers))
	for _, c := range h.containers {
		out[c.CargoType] = c.load
	}
	return out
}
