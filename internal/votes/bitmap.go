package votes

import "slices"

// EncodeBitmap returns a bitmap of nbytes with the bits for ids set. IDs that
// do not fit are ignored.
func EncodeBitmap(ids []uint32, nbytes int) []byte {
	out := make([]byte, nbytes)
	for _, id := range ids {
		if int(id/8) >= nbytes {
			continue
		}
		out[id/8] |= 1 << (id % 8)
	}
	return out
}

// BitmapSize is the number of bytes needed to address ids [0, n).
func BitmapSize(n int) int {
	return (n + 7) / 8
}

// BitsSet lists the IDs whose bits are set, in ascending order.
func BitsSet(bitmap []byte) []uint32 {
	var ids []uint32
	for b, v := range bitmap {
		for i := range 8 {
			if v&(1<<i) != 0 {
				ids = append(ids, uint32(b*8+i))
			}
		}
	}
	return ids
}

// Toggle returns a copy of bitmap with the bit for id flipped.
func Toggle(bitmap []byte, id uint32) []byte {
	out := slices.Clone(bitmap)
	if int(id/8) < len(out) {
		out[id/8] ^= 1 << (id % 8)
	}
	return out
}
