package votes

import (
	"fmt"

	"foodvote/internal/bank"
)

// Diff compares the bitmaps bit by bit and returns one delta per changed bit
// whose food ID is known to lookup, ordered by food ID. Bits for IDs that are
// gaps in lookup are dropped: the client may be ahead of this registry.
//
// The bitmaps must have equal length and be no longer than the whole number
// of bytes needed to address every ID in lookup. A shorter bitmap is fine;
// IDs past its end are treated as not voted.
func Diff(req Request, lookup bank.Lookup) ([]Delta, error) {
	if len(req.Old) != len(req.New) {
		return nil, fmt.Errorf("%w: old bitmap has %d bytes, new bitmap has %d",
			ErrMalformedPayload, len(req.Old), len(req.New))
	}
	if len(req.Old) > BitmapSize(lookup.Len()) {
		return nil, fmt.Errorf("%w: bitmap has %d bytes, registry of %d ids needs at most %d",
			ErrMalformedPayload, len(req.Old), lookup.Len(), BitmapSize(lookup.Len()))
	}

	var deltas []Delta
	for b := range req.Old {
		changed := req.Old[b] ^ req.New[b]
		if changed == 0 {
			continue
		}
		for i := range 8 {
			mask := byte(1) << i
			if changed&mask == 0 {
				continue
			}
			id := uint32(b*8 + i)
			if _, ok := lookup.Name(id); !ok {
				continue
			}
			dir := int8(1)
			if req.Old[b]&mask != 0 {
				dir = -1
			}
			deltas = append(deltas, Delta{FoodID: id, Direction: dir})
		}
	}
	return deltas, nil
}
