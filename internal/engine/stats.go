package engine

import "github.com/MRamiBalles/factorysim/internal/domain/item"

// StatsSnapshot is the serializable form of the production counters.
type StatsSnapshot struct {
	Mined   map[item.ID]float64 `json:"mined"`
	Crafted map[item.ID]float64 `json:"crafted"`
	Built   map[string]int      `json:"built"`
}

// Stats counts what the factory produced. Research triggers read it.
type Stats struct {
	mined     map[item.ID]float64
	crafted   map[item.ID]float64
	built     map[string]int
	inventory *InventorySystem
}

func NewStats(inv *InventorySystem) *Stats {
	return &Stats{
		mined:     make(map[item.ID]float64),
		crafted:   make(map[item.ID]float64),
		built:     make(map[string]int),
		inventory: inv,
	}
}

func (s *Stats) AddMined(id item.ID, amount float64) { s.mined[id] += amount }
func (s *Stats) AddCrafted(id item.ID, amount float64) { s.crafted[id] += amount }
func (s *Stats) AddBuilt(facilityID string, n int) { s.built[facilityID] += n }

func (s *Stats) MinedCount(id item.ID) float64 { return s.mined[id] }
func (s *Stats) CraftedCount(id item.ID) float64 { return s.crafted[id] }
func (s *Stats) BuiltCount(facilityID string) int { return s.built[facilityID] }

func (s *Stats) StockOf(id item.ID) float64 {
	if s.inventory == nil {
		return 0
	}
	return s.inventory.Amount(id)
}

// Snapshot returns a copy of the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	out := StatsSnapshot{
		Mined:   make(map[item.ID]float64, len(s.mined)),
		Crafted: make(map[item.ID]float64, len(s.crafted)),
		Built:   make(map[string]int, len(s.built)),
	}
	for k, v := range s.mined {
		out.Mined[k] = v
	}
	for k, v := range s.crafted {
		out.Crafted[k] = v
	}
	for k, v := range s.built {
		out.Built[k] = v
	}
	return out
}

// Restore replaces the counters.
func (s *Stats) Restore(snap StatsSnapshot) {
	s.mined = make(map[item.ID]float64, len(snap.Mined))
	s.crafted = make(map[item.ID]float64, len(snap.Crafted))
	s.built = make(map[string]int, len(snap.Built))
	for k, v := range snap.Mined {
		s.mined[k] = v
	}
	for k, v := range snap.Crafted {
		s.crafted[k] = v
	}
	for k, v := range snap.Built {
		s.built[k] = v
	}
}
