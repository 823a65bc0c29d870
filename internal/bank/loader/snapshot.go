// Package loader turns fetched registry bytes into immutable snapshots and
// keeps the serving process pointed at the newest valid one.
package loader

import (
	"context"
	"time"

	"foodvote/internal/bank"
	"foodvote/internal/bank/source"
)

// Snapshot is an immutable view of one registry version together with its
// dense reverse lookups. Nothing may mutate a Snapshot once it is published
// to a Holder.
type Snapshot struct {
	Registry  *bank.Registry
	Foods     bank.Lookup
	Locations bank.Lookup
	Raw       []byte
	Checksum  string
	LoadedAt  time.Time
}

// Fetch retrieves and decodes the latest snapshot from src.
func Fetch(ctx context.Context, src source.Source) (*Snapshot, error) {
	data, err := src.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return FromBytes(data)
}

// FromBytes decodes raw snapshot bytes and derives the lookups.
func FromBytes(data []byte) (*Snapshot, error) {
	reg, err := bank.Decode(data)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Registry:  reg,
		Foods:     reg.FoodLookup(),
		Locations: reg.LocationLookup(),
		Raw:       data,
		Checksum:  bank.Checksum(data),
		LoadedAt:  time.Now(),
	}, nil
}

// FromRegistry encodes reg and builds a snapshot from it.
func FromRegistry(reg *bank.Registry) (*Snapshot, error) {
	data, err := bank.Encode(reg)
	if err != nil {
		return nil, err
	}
	return FromBytes(data)
}

// Food returns the food registered with id.
func (s *Snapshot) Food(id uint32) (*bank.Food, bool) {
	name, ok := s.Foods.Name(id)
	if !ok {
		return nil, false
	}
	f, ok := s.Registry.Foods[name]
	return f, ok
}

// Location returns the location registered with id.
func (s *Snapshot) Location(id uint32) (*bank.Location, bool) {
	name, ok := s.Locations.Name(id)
	if !ok {
		return nil, false
	}
	l, ok := s.Registry.Locations[name]
	return l, ok
}
