package bank

import (
	"time"

	"github.com/RoaringBitmap/roaring/v2"
)

// NoLocation is the location recorded for foods that have never been seen on
// a current-day menu.
const NoLocation = "none"

// Food is a registered food. ID is stable for the lifetime of the registry and
// doubles as the food's bit position in client vote bitmaps.
type Food struct {
	ID       uint32
	Name     string
	Location string
}

// Location is a registered dining location.
type Location struct {
	ID   uint32
	Name string
}

// MenuItem is one raw (location, item) pair as reported by the menu feed.
type MenuItem struct {
	Location string
	Item     string
}

// MergeResult counts what a merge added to the registry.
type MergeResult struct {
	NewFoods     int
	NewLocations int
	Skipped      int
}

// Add accumulates another result into r.
func (r *MergeResult) Add(o MergeResult) {
	r.NewFoods += o.NewFoods
	r.NewLocations += o.NewLocations
	r.Skipped += o.Skipped
}

// DailyMenu records which foods each location serves on Date.
type DailyMenu struct {
	Date      string
	Locations map[uint32]*roaring.Bitmap
}

// NewDailyMenu returns an empty menu for date (YYYY-MM-DD).
func NewDailyMenu(date string) *DailyMenu {
	return &DailyMenu{
		Date:      date,
		Locations: make(map[uint32]*roaring.Bitmap),
	}
}

// Add marks foodID as served at locationID.
func (m *DailyMenu) Add(locationID, foodID uint32) {
	bm, ok := m.Locations[locationID]
	if !ok {
		bm = roaring.New()
		m.Locations[locationID] = bm
	}
	bm.Add(foodID)
}

// FoodsAt returns the food IDs served at locationID in ascending order.
func (m *DailyMenu) FoodsAt(locationID uint32) []uint32 {
	if m == nil {
		return nil
	}
	bm, ok := m.Locations[locationID]
	if !ok {
		return []uint32{}
	}
	return bm.ToArray()
}

// Serves reports whether foodID is on today's menu at locationID.
func (m *DailyMenu) Serves(locationID, foodID uint32) bool {
	if m == nil {
		return false
	}
	bm, ok := m.Locations[locationID]
	return ok && bm.Contains(foodID)
}

// retain drops menu entries for locations and foods not in the given sets.
func (m *DailyMenu) retain(foods map[string]*Food, locations map[string]*Location) {
	if m == nil {
		return
	}
	locIDs := make(map[uint32]struct{}, len(locations))
	for _, l := range locations {
		locIDs[l.ID] = struct{}{}
	}
	known := roaring.New()
	for _, f := range foods {
		known.Add(f.ID)
	}
	for id, bm := range m.Locations {
		if _, ok := locIDs[id]; !ok {
			delete(m.Locations, id)
			continue
		}
		bm.And(known)
	}
}

func (m *DailyMenu) clone() *DailyMenu {
	if m == nil {
		return nil
	}
	out := NewDailyMenu(m.Date)
	for id, bm := range m.Locations {
		out.Locations[id] = bm.Clone()
	}
	return out
}

// Stats summarizes a registry for logs and CLI output.
type Stats struct {
	Foods          int
	Locations      int
	NextFoodID     uint32
	NextLocationID uint32
	MenuDate       string
	UpdatedAt      time.Time
}
