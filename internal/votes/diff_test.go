package votes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodvote/internal/bank"
)

func lookupOf(n int) bank.Lookup {
	l := make(bank.Lookup, n)
	for i := range l {
		l[i] = "food"
	}
	return l
}

func TestDiff(t *testing.T) {
	tests := []struct {
		name   string
		req    Request
		lookup bank.Lookup
		want   []Delta
	}{
		{
			name:   "two new votes",
			req:    Request{Old: []byte{0b00000000}, New: []byte{0b00000011}},
			lookup: bank.Lookup{"pizza", "salad", "", "", "", "", "", ""},
			want:   []Delta{{FoodID: 0, Direction: 1}, {FoodID: 1, Direction: 1}},
		},
		{
			name:   "retracted vote",
			req:    Request{Old: []byte{0b00000100}, New: []byte{0b00000000}},
			lookup: lookupOf(8),
			want:   []Delta{{FoodID: 2, Direction: -1}},
		},
		{
			name:   "bit zero is the least significant bit",
			req:    Request{Old: []byte{0x00, 0x00}, New: []byte{0x00, 0x80}},
			lookup: lookupOf(16),
			want:   []Delta{{FoodID: 15, Direction: 1}},
		},
		{
			name:   "mixed changes come out ordered by id",
			req:    Request{Old: []byte{0b10000001, 0b00000001}, New: []byte{0b00000010, 0b00000000}},
			lookup: lookupOf(16),
			want: []Delta{
				{FoodID: 0, Direction: -1},
				{FoodID: 1, Direction: 1},
				{FoodID: 7, Direction: -1},
				{FoodID: 8, Direction: -1},
			},
		},
		{
			name:   "unchanged bitmaps",
			req:    Request{Old: []byte{0xff}, New: []byte{0xff}},
			lookup: lookupOf(8),
			want:   nil,
		},
		{
			name:   "empty bitmaps",
			req:    Request{},
			lookup: lookupOf(3),
			want:   nil,
		},
		{
			name:   "gap ids are dropped",
			req:    Request{Old: []byte{0x00}, New: []byte{0b00000111}},
			lookup: bank.Lookup{"pizza", "", "soup", "", "", "", "", ""},
			want:   []Delta{{FoodID: 0, Direction: 1}, {FoodID: 2, Direction: 1}},
		},
		{
			name:   "bits past the registry inside the last byte are dropped",
			req:    Request{Old: []byte{0x00}, New: []byte{0xff}},
			lookup: append(lookupOf(3), make(bank.Lookup, 5)...),
			want: []Delta{
				{FoodID: 0, Direction: 1},
				{FoodID: 1, Direction: 1},
				{FoodID: 2, Direction: 1},
			},
		},
		{
			name:   "last byte may be partially used",
			req:    Request{Old: []byte{0x00, 0x00}, New: []byte{0x00, 0x01}},
			lookup: lookupOf(9),
			want:   []Delta{{FoodID: 8, Direction: 1}},
		},
		{
			name:   "short bitmap is accepted",
			req:    Request{Old: []byte{0x00}, New: []byte{0x01}},
			lookup: lookupOf(64),
			want:   []Delta{{FoodID: 0, Direction: 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Diff(tt.req, tt.lookup)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiffRejectsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		req    Request
		lookup bank.Lookup
	}{
		{
			name:   "length mismatch",
			req:    Request{Old: []byte{0, 0}, New: []byte{0, 0, 0}},
			lookup: lookupOf(64),
		},
		{
			name:   "one side missing",
			req:    Request{Old: nil, New: []byte{1}},
			lookup: lookupOf(8),
		},
		{
			name:   "bitmap longer than registry",
			req:    Request{Old: []byte{0, 0}, New: []byte{0, 1}},
			lookup: lookupOf(8),
		},
		{
			name:   "any bitmap against an empty registry",
			req:    Request{Old: []byte{0}, New: []byte{1}},
			lookup: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Diff(tt.req, tt.lookup)
			assert.ErrorIs(t, err, ErrMalformedPayload)
			assert.Nil(t, got)
		})
	}
}

func TestDiffSingleBitRoundTrip(t *testing.T) {
	const nbytes = 4
	lookup := lookupOf(nbytes * 8)
	for p := uint32(0); p < nbytes*8; p++ {
		base := EncodeBitmap([]uint32{3, 17, 30}, nbytes)
		flipped := Toggle(base, p)

		got, err := Diff(Request{Old: base, New: flipped}, lookup)
		require.NoError(t, err)
		require.Len(t, got, 1, "position %d", p)
		assert.Equal(t, p, got[0].FoodID)

		wantDir := int8(1)
		if base[p/8]&(1<<(p%8)) != 0 {
			wantDir = -1
		}
		assert.Equal(t, wantDir, got[0].Direction, "position %d", p)
	}
}

func FuzzDiff(f *testing.F) {
	f.Add([]byte{0x00}, []byte{0x03}, 8)
	f.Add([]byte{0xff, 0x00}, []byte{0x00, 0xff}, 16)
	f.Fuzz(func(t *testing.T, old, new []byte, n int) {
		if n < 0 || n > 1<<12 {
			return
		}
		deltas, err := Diff(Request{Old: old, New: new}, lookupOf(n))
		if err != nil {
			return
		}
		prev := int64(-1)
		for _, d := range deltas {
			assert.Greater(t, int64(d.FoodID), prev)
			assert.Less(t, int(d.FoodID), n)
			assert.Contains(t, []int8{-1, 1}, d.Direction)
			prev = int64(d.FoodID)
		}
	})
}
