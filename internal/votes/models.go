// Package votes turns a client's before/after vote bitmaps into per-food
// counter deltas and applies them.
//
// Bit p of a bitmap (byte p/8, bit p%8 counting from the least significant
// bit) is the client's vote for food ID p.
package votes

// Request is a vote submission: the client's previous and current bitmaps.
type Request struct {
	Old []byte `cbor:"old_bit_map"`
	New []byte `cbor:"new_bit_map"`
}

// Delta is a single-step change to one food's count.
type Delta struct {
	FoodID    uint32
	Direction int8
}

// Result reports what a submission changed.
type Result struct {
	// Changes is the number of deltas derived from the bitmaps.
	Changes int
	// Applied is how many of them the counter store applied; the rest would
	// have taken a count below zero.
	Applied int
}
