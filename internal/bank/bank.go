// Package bank holds the food and location registry: the append-only mapping
// between canonical names and the compact integer IDs shared with vote
// bitmaps, the search index and clients.
//
// A Registry is owned by a single writer (the builder). Serving processes load
// a decoded copy and treat it as immutable.
package bank

import (
	"sort"
	"time"

	pstrings "foodvote/pkg/platform/strings"
)

// Registry maps canonical names to their entries. IDs are assigned from the
// Next* counters and never reused.
type Registry struct {
	Foods          map[string]*Food
	Locations      map[string]*Location
	NextFoodID     uint32
	NextLocationID uint32
	Today          *DailyMenu
	UpdatedAt      time.Time
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		Foods:     make(map[string]*Food),
		Locations: make(map[string]*Location),
	}
}

// Merge folds one day of raw menu pairs into the registry and returns what was
// added. Only current-day data may set a food's location; backfilled days add
// vocabulary without touching where an existing food is served.
func (r *Registry) Merge(items []MenuItem, isCurrentDay bool) MergeResult {
	var res MergeResult
	for _, it := range items {
		loc := pstrings.Sanitize(it.Location)
		if loc == "" {
			res.Skipped++
			continue
		}
		location, isNew := r.addLocation(loc)
		if isNew {
			res.NewLocations++
		}

		name := pstrings.Sanitize(it.Item)
		if name == "" {
			res.Skipped++
			continue
		}

		food, ok := r.Foods[name]
		if !ok {
			food = &Food{ID: r.NextFoodID, Name: name, Location: NoLocation}
			r.Foods[name] = food
			r.NextFoodID++
			res.NewFoods++
		}
		if isCurrentDay {
			food.Location = location.Name
			if r.Today != nil {
				r.Today.Add(location.ID, food.ID)
			}
		}
	}
	return res
}

// MergeToday merges the current day's menu and replaces the recorded daily
// menu with it.
func (r *Registry) MergeToday(date string, items []MenuItem) MergeResult {
	r.Today = NewDailyMenu(date)
	return r.Merge(items, true)
}

func (r *Registry) addLocation(name string) (*Location, bool) {
	if loc, ok := r.Locations[name]; ok {
		return loc, false
	}
	loc := &Location{ID: r.NextLocationID, Name: name}
	r.Locations[name] = loc
	r.NextLocationID++
	return loc, true
}

// Canonicalize re-sanitizes every stored name. Names are canonical on
// ingestion so this is normally a no-op; if two entries collide the one with
// the lower ID wins. IDs are never renumbered and counters never move back.
// It returns the number of entries dropped.
func (r *Registry) Canonicalize() int {
	dropped := 0

	foods := make(map[string]*Food, len(r.Foods))
	for _, f := range sortedFoods(r.Foods) {
		name := pstrings.Sanitize(f.Name)
		if name == "" {
			dropped++
			continue
		}
		if prev, ok := foods[name]; ok {
			dropped++
			if prev.ID <= f.ID {
				continue
			}
		}
		loc := pstrings.Sanitize(f.Location)
		if loc == "" {
			loc = NoLocation
		}
		foods[name] = &Food{ID: f.ID, Name: name, Location: loc}
		if f.ID >= r.NextFoodID {
			r.NextFoodID = f.ID + 1
		}
	}

	locations := make(map[string]*Location, len(r.Locations))
	for _, l := range sortedLocations(r.Locations) {
		name := pstrings.Sanitize(l.Name)
		if name == "" {
			dropped++
			continue
		}
		if prev, ok := locations[name]; ok {
			dropped++
			if prev.ID <= l.ID {
				continue
			}
		}
		locations[name] = &Location{ID: l.ID, Name: name}
		if l.ID >= r.NextLocationID {
			r.NextLocationID = l.ID + 1
		}
	}

	r.Foods = foods
	r.Locations = locations
	r.Today.retain(foods, locations)
	return dropped
}

// Clone returns a deep copy.
func (r *Registry) Clone() *Registry {
	out := &Registry{
		Foods:          make(map[string]*Food, len(r.Foods)),
		Locations:      make(map[string]*Location, len(r.Locations)),
		NextFoodID:     r.NextFoodID,
		NextLocationID: r.NextLocationID,
		Today:          r.Today.clone(),
		UpdatedAt:      r.UpdatedAt,
	}
	for k, v := range r.Foods {
		f := *v
		out.Foods[k] = &f
	}
	for k, v := range r.Locations {
		l := *v
		out.Locations[k] = &l
	}
	return out
}

// FoodLookup builds the dense id -> food name table.
func (r *Registry) FoodLookup() Lookup {
	lookup := make(Lookup, r.NextFoodID)
	for name, f := range r.Foods {
		if f.ID < r.NextFoodID {
			lookup[f.ID] = name
		}
	}
	return lookup
}

// LocationLookup builds the dense id -> location name table.
func (r *Registry) LocationLookup() Lookup {
	lookup := make(Lookup, r.NextLocationID)
	for name, l := range r.Locations {
		if l.ID < r.NextLocationID {
			lookup[l.ID] = name
		}
	}
	return lookup
}

// SortedFoods returns foods ordered by name.
func (r *Registry) SortedFoods() []*Food {
	return sortedFoods(r.Foods)
}

// SortedLocations returns locations ordered by name.
func (r *Registry) SortedLocations() []*Location {
	return sortedLocations(r.Locations)
}

// Stats summarizes the registry.
func (r *Registry) Stats() Stats {
	s := Stats{
		Foods:          len(r.Foods),
		Locations:      len(r.Locations),
		NextFoodID:     r.NextFoodID,
		NextLocationID: r.NextLocationID,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.Today != nil {
		s.MenuDate = r.Today.Date
	}
	return s
}

func sortedFoods(m map[string]*Food) []*Food {
	out := make([]*Food, 0, len(m))
	for _, f := range m {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sortedLocations(m map[string]*Location) []*Location {
	out := make([]*Location, 0, len(m))
	for _, l := range m {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}
