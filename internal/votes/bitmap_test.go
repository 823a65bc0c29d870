package votes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeBitmap(t *testing.T) {
	assert.Equal(t, []byte{0b00000011}, EncodeBitmap([]uint32{0, 1}, 1))
	assert.Equal(t, []byte{0x00, 0x80}, EncodeBitmap([]uint32{15}, 2))
	assert.Equal(t, []byte{0x01}, EncodeBitmap([]uint32{0, 8, 99}, 1), "ids past the end are ignored")
	assert.Equal(t, []byte{}, EncodeBitmap(nil, 0))
}

func TestBitsSetInvertsEncodeBitmap(t *testing.T) {
	ids := []uint32{0, 5, 9, 22, 23}
	assert.Equal(t, ids, BitsSet(EncodeBitmap(ids, 3)))
	assert.Nil(t, BitsSet([]byte{0, 0}))
}

func TestBitmapSize(t *testing.T) {
	assert.Equal(t, 0, BitmapSize(0))
	assert.Equal(t, 1, BitmapSize(1))
	assert.Equal(t, 1, BitmapSize(8))
	assert.Equal(t, 2, BitmapSize(9))
}

func TestToggleCopies(t *testing.T) {
	orig := []byte{0x01}
	got := Toggle(orig, 0)
	assert.Equal(t, []byte{0x00}, got)
	assert.Equal(t, []byte{0x01}, orig)
	assert.Equal(t, orig, Toggle(orig, 40), "out of range is a no-op")
}
