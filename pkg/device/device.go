// Package device reports which compute devices a trainer may place work on.
package device

import (
	"fmt"
	"slices"

	"github.com/klauspost/cpuid/v2"
)

// Inventory is the host compute inventory. Devices are numbered
// 0..Cores-1.
type Inventory struct {
	Brand    string
	Cores    int
	Features []string
}

// Detect reads the host inventory.
func Detect() Inventory {
	cores := cpuid.CPU.LogicalCores
	if cores <= 0 {
		cores = 1
	}

	return Inventory{
		Brand:    cpuid.CPU.BrandName,
		Cores:    cores,
		Features: cpuid.CPU.FeatureSet(),
	}
}

// Available keeps the requested ids that exist on this host, preserving
// order and dropping duplicates. No request selects device 0.
func (inv Inventory) Available(requested []int) []int {
	if len(requested) == 0 {
		return []int{0}
	}
	out := make([]int, 0, len(requested))
	for _, id := range requested {
		if id < 0 || id >= inv.Cores || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}

	return out
}

func Name(id int) string {
	return fmt.Sprintf("cpu:%d", id)
}
