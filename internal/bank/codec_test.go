package bank

import (
	"testing"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRegistry() *Registry {
	r := New()
	r.Merge([]MenuItem{
		{Location: "Hillenbrand", Item: "Old Soup"},
	}, false)
	r.MergeToday("2025-11-14", []MenuItem{
		{Location: "Wiley", Item: "Pizza"},
		{Location: "Wiley", Item: "Salad"},
		{Location: "Ford", Item: "Burger"},
	})
	r.UpdatedAt = time.Date(2025, 11, 14, 6, 0, 0, 0, time.UTC)
	return r
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for name, encode := range map[string]func(*Registry) ([]byte, error){
		"plain":      Encode,
		"compressed": EncodeCompressed,
	} {
		t.Run(name, func(t *testing.T) {
			orig := sampleRegistry()
			data, err := encode(orig)
			require.NoError(t, err)

			got, err := Decode(data)
			require.NoError(t, err)

			assert.Equal(t, orig.Foods, got.Foods)
			assert.Equal(t, orig.Locations, got.Locations)
			assert.Equal(t, orig.NextFoodID, got.NextFoodID)
			assert.Equal(t, orig.NextLocationID, got.NextLocationID)
			assert.Equal(t, orig.UpdatedAt, got.UpdatedAt)
			require.NotNil(t, got.Today)
			assert.Equal(t, "2025-11-14", got.Today.Date)
			wiley := got.Locations["wiley"].ID
			assert.Equal(t, orig.Today.FoodsAt(wiley), got.Today.FoodsAt(wiley))
		})
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	a, err := Encode(sampleRegistry())
	require.NoError(t, err)
	b, err := Encode(sampleRegistry())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, Checksum(a), Checksum(b))
}

func TestEncodeEmptyRegistry(t *testing.T) {
	data, err := Encode(New())
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Empty(t, got.Foods)
	assert.Zero(t, got.NextFoodID)
	assert.Nil(t, got.Today)
}

func TestContentType(t *testing.T) {
	plain, err := Encode(sampleRegistry())
	require.NoError(t, err)
	compressed, err := EncodeCompressed(sampleRegistry())
	require.NoError(t, err)

	assert.False(t, IsCompressed(plain))
	assert.True(t, IsCompressed(compressed))
	assert.Equal(t, "application/cbor", ContentType(plain))
	assert.Equal(t, "application/zstd", ContentType(compressed))
}

func TestDecodeRejectsCorruptSnapshots(t *testing.T) {
	mustMarshal := func(v any) []byte {
		data, err := encMode.Marshal(v)
		require.NoError(t, err)
		return data
	}
	menuOf := func(ids ...uint32) []byte {
		data, err := roaring.BitmapOf(ids...).MarshalBinary()
		require.NoError(t, err)
		return data
	}
	withMenu := func(entries ...wireMenuEntry) []byte {
		return mustMarshal(wireSnapshot{
			Version: 1, NextFoodID: 3, NextLocationID: 1,
			Foods:     []wireFood{{ID: 0, Name: "pizza"}, {ID: 2, Name: "salad"}},
			Locations: []wireLocation{{ID: 0, Name: "wiley"}},
			Today:     &wireMenu{Date: "2025-11-14", Locations: entries},
		})
	}

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty input", data: nil},
		{name: "not cbor", data: []byte("definitely not a snapshot")},
		{name: "truncated", data: func() []byte {
			data, err := Encode(sampleRegistry())
			require.NoError(t, err)
			return data[:len(data)/2]
		}()},
		{name: "bad zstd frame", data: append(append([]byte{}, zstdMagic...), 0x00, 0x01)},
		{name: "unknown version", data: mustMarshal(wireSnapshot{Version: 9})},
		{name: "id beyond counter", data: mustMarshal(wireSnapshot{
			Version: 1, NextFoodID: 1,
			Foods: []wireFood{{ID: 1, Name: "pizza"}},
		})},
		{name: "duplicate food id", data: mustMarshal(wireSnapshot{
			Version: 1, NextFoodID: 2,
			Foods: []wireFood{{ID: 0, Name: "pizza"}, {ID: 0, Name: "salad"}},
		})},
		{name: "duplicate food name", data: mustMarshal(wireSnapshot{
			Version: 1, NextFoodID: 2,
			Foods: []wireFood{{ID: 0, Name: "pizza"}, {ID: 1, Name: "pizza"}},
		})},
		{name: "empty name", data: mustMarshal(wireSnapshot{
			Version: 1, NextFoodID: 1,
			Foods: []wireFood{{ID: 0, Name: ""}},
		})},
		{name: "non canonical name", data: mustMarshal(wireSnapshot{
			Version: 1, NextLocationID: 1,
			Locations: []wireLocation{{ID: 0, Name: "Wiley Dining"}},
		})},
		{name: "bad menu bitmap", data: mustMarshal(wireSnapshot{
			Version: 1,
			Today:   &wireMenu{Date: "2025-11-14", Locations: []wireMenuEntry{{LocationID: 0, Foods: []byte{1, 2, 3}}}},
		})},
		{name: "menu at unknown location", data: withMenu(wireMenuEntry{LocationID: 7, Foods: menuOf(0)})},
		{name: "menu food beyond counter", data: withMenu(wireMenuEntry{LocationID: 0, Foods: menuOf(0, 99)})},
		{name: "menu food in id gap", data: withMenu(wireMenuEntry{LocationID: 0, Foods: menuOf(1)})},
		{name: "duplicate menu location", data: withMenu(
			wireMenuEntry{LocationID: 0, Foods: menuOf(0)},
			wireMenuEntry{LocationID: 0, Foods: menuOf(2)},
		)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			assert.ErrorIs(t, err, ErrCorruptSnapshot)
		})
	}
}

func TestDecodeToleratesGaps(t *testing.T) {
	data, err := cbor.Marshal(wireSnapshot{
		Version:    1,
		NextFoodID: 5,
		Foods:      []wireFood{{ID: 0, Name: "pizza"}, {ID: 4, Name: "salad", Location: "wiley"}},
	})
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)

	lookup := got.FoodLookup()
	assert.Equal(t, Lookup{"pizza", "", "", "", "salad"}, lookup)
	assert.Equal(t, NoLocation, got.Foods["pizza"].Location)
	assert.Equal(t, "wiley", got.Foods["salad"].Location)
}
