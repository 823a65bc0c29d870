package bank

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"slices"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	pstrings "foodvote/pkg/platform/strings"
)

const snapshotVersion = 1

// zstdMagic prefixes compressed snapshots. A bare CBOR snapshot starts with a
// map header and can never collide with it.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Snapshot wire schema. Integer keys keep the encoding compact; entries are
// written sorted by name so successive snapshots diff cleanly.
type wireSnapshot struct {
	Version        uint8          `cbor:"1,keyasint"`
	Foods          []wireFood     `cbor:"2,keyasint"`
	Locations      []wireLocation `cbor:"3,keyasint"`
	NextFoodID     uint32         `cbor:"4,keyasint"`
	NextLocationID uint32         `cbor:"5,keyasint"`
	Today          *wireMenu      `cbor:"6,keyasint,omitempty"`
	UpdatedAt      int64          `cbor:"7,keyasint,omitempty"`
}

type wireFood struct {
	ID       uint32 `cbor:"1,keyasint"`
	Name     string `cbor:"2,keyasint"`
	Location string `cbor:"3,keyasint,omitempty"`
}

type wireLocation struct {
	ID   uint32 `cbor:"1,keyasint"`
	Name string `cbor:"2,keyasint"`
}

type wireMenu struct {
	Date      string          `cbor:"1,keyasint"`
	Locations []wireMenuEntry `cbor:"2,keyasint"`
}

type wireMenuEntry struct {
	LocationID uint32 `cbor:"1,keyasint"`
	Foods      []byte `cbor:"2,keyasint"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode

	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("bank: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic("bank: CBOR decoder initialization failed: " + err.Error())
	}

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		panic("bank: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(64<<20))
	if err != nil {
		panic("bank: zstd decoder initialization failed: " + err.Error())
	}
}

// Encode serializes r. Output is deterministic for a given registry content.
func Encode(r *Registry) ([]byte, error) {
	w := wireSnapshot{
		Version:        snapshotVersion,
		Foods:          make([]wireFood, 0, len(r.Foods)),
		Locations:      make([]wireLocation, 0, len(r.Locations)),
		NextFoodID:     r.NextFoodID,
		NextLocationID: r.NextLocationID,
	}
	if !r.UpdatedAt.IsZero() {
		w.UpdatedAt = r.UpdatedAt.Unix()
	}
	for _, f := range r.SortedFoods() {
		loc := f.Location
		if loc == NoLocation {
			loc = ""
		}
		w.Foods = append(w.Foods, wireFood{ID: f.ID, Name: f.Name, Location: loc})
	}
	for _, l := range r.SortedLocations() {
		w.Locations = append(w.Locations, wireLocation{ID: l.ID, Name: l.Name})
	}
	if r.Today != nil {
		menu, err := encodeMenu(r.Today)
		if err != nil {
			return nil, err
		}
		w.Today = menu
	}
	return encMode.Marshal(w)
}

// EncodeCompressed serializes r and wraps it in a zstd frame.
func EncodeCompressed(r *Registry) ([]byte, error) {
	raw, err := Encode(r)
	if err != nil {
		return nil, err
	}
	return zstdEncoder.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

// Decode parses a snapshot, compressed or not, and validates its structure.
// Any failure is reported as ErrCorruptSnapshot.
func Decode(data []byte) (*Registry, error) {
	if IsCompressed(data) {
		raw, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, corrupt("zstd: %v", err)
		}
		data = raw
	}
	if len(data) == 0 {
		return nil, corrupt("empty snapshot")
	}

	var w wireSnapshot
	if err := decMode.Unmarshal(data, &w); err != nil {
		return nil, corrupt("cbor: %v", err)
	}
	return fromWire(&w)
}

// IsCompressed reports whether data is a zstd-framed snapshot.
func IsCompressed(data []byte) bool {
	return bytes.HasPrefix(data, zstdMagic)
}

// ContentType is the media type to serve snapshot bytes under.
func ContentType(data []byte) string {
	if IsCompressed(data) {
		return "application/zstd"
	}
	return "application/cbor"
}

// Checksum returns a stable content hash of snapshot bytes, used for change
// detection and HTTP entity tags.
func Checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:16])
}

func fromWire(w *wireSnapshot) (*Registry, error) {
	if w.Version == 0 || w.Version > snapshotVersion {
		return nil, corrupt("unsupported version %d", w.Version)
	}

	r := New()
	r.NextFoodID = w.NextFoodID
	r.NextLocationID = w.NextLocationID
	if w.UpdatedAt != 0 {
		r.UpdatedAt = time.Unix(w.UpdatedAt, 0).UTC()
	}

	locIDs := make(map[uint32]struct{}, len(w.Locations))
	for _, l := range w.Locations {
		if err := checkName(l.Name); err != nil {
			return nil, corrupt("location %d: %v", l.ID, err)
		}
		if l.ID >= w.NextLocationID {
			return nil, corrupt("location %q id %d beyond next id %d", l.Name, l.ID, w.NextLocationID)
		}
		if _, dup := locIDs[l.ID]; dup {
			return nil, corrupt("duplicate location id %d", l.ID)
		}
		if _, dup := r.Locations[l.Name]; dup {
			return nil, corrupt("duplicate location name %q", l.Name)
		}
		locIDs[l.ID] = struct{}{}
		r.Locations[l.Name] = &Location{ID: l.ID, Name: l.Name}
	}

	foodIDs := make(map[uint32]struct{}, len(w.Foods))
	for _, f := range w.Foods {
		if err := checkName(f.Name); err != nil {
			return nil, corrupt("food %d: %v", f.ID, err)
		}
		if f.ID >= w.NextFoodID {
			return nil, corrupt("food %q id %d beyond next id %d", f.Name, f.ID, w.NextFoodID)
		}
		if _, dup := foodIDs[f.ID]; dup {
			return nil, corrupt("duplicate food id %d", f.ID)
		}
		if _, dup := r.Foods[f.Name]; dup {
			return nil, corrupt("duplicate food name %q", f.Name)
		}
		loc := f.Location
		if loc == "" {
			loc = NoLocation
		} else if err := checkName(loc); err != nil {
			return nil, corrupt("food %q location: %v", f.Name, err)
		}
		foodIDs[f.ID] = struct{}{}
		r.Foods[f.Name] = &Food{ID: f.ID, Name: f.Name, Location: loc}
	}

	if w.Today != nil {
		menu, err := decodeMenu(w.Today, locIDs, foodIDs)
		if err != nil {
			return nil, err
		}
		r.Today = menu
	}
	return r, nil
}

func checkName(name string) error {
	if name == "" {
		return fmt.Errorf("empty name")
	}
	if pstrings.Sanitize(name) != name {
		return fmt.Errorf("name %q is not canonical", name)
	}
	return nil
}

func encodeMenu(m *DailyMenu) (*wireMenu, error) {
	out := &wireMenu{Date: m.Date, Locations: make([]wireMenuEntry, 0, len(m.Locations))}
	ids := make([]uint32, 0, len(m.Locations))
	for id := range m.Locations {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		bm := m.Locations[id]
		data, err := bm.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("encode menu for location %d: %w", id, err)
		}
		out.Locations = append(out.Locations, wireMenuEntry{LocationID: id, Foods: data})
	}
	return out, nil
}

func decodeMenu(w *wireMenu, locIDs, foodIDs map[uint32]struct{}) (*DailyMenu, error) {
	m := NewDailyMenu(w.Date)
	for _, e := range w.Locations {
		if _, ok := locIDs[e.LocationID]; !ok {
			return nil, corrupt("menu names unknown location %d", e.LocationID)
		}
		if _, dup := m.Locations[e.LocationID]; dup {
			return nil, corrupt("duplicate menu for location %d", e.LocationID)
		}
		bm := roaring.New()
		if err := bm.UnmarshalBinary(e.Foods); err != nil {
			return nil, corrupt("menu for location %d: %v", e.LocationID, err)
		}
		it := bm.Iterator()
		for it.HasNext() {
			id := it.Next()
			if _, ok := foodIDs[id]; !ok {
				return nil, corrupt("menu for location %d names unknown food %d", e.LocationID, id)
			}
		}
		m.Locations[e.LocationID] = bm
	}
	return m, nil
}
