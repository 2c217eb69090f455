package pool

import "math/bits"

// fullWord marks a bitmap word whose slots are all occupied.
const fullWord = ^uint64(0)

// lowestClear returns the position of the lowest zero bit of w.
// w must not be fullWord.
//
// The search narrows from the low half word to the byte holding the bit.
func lowestClear(w uint64) int {
	free := ^w
	bit := 0
	if uint32(free) == 0 {
		bit = 32
	}
	if uint16(free>>bit) == 0 {
		bit += 16
	}
	if uint8(free>>bit) == 0 {
		bit += 8
	}
	return bit + bits.TrailingZeros8(uint8(free>>bit))
}

// occupyFirst finds the lowest clear bit across words, sets it and returns
// its absolute index.
func occupyFirst(words []uint64) (int, bool) {
	for i, w := range words {
		if w == fullWord {
			continue
		}
		bit := lowestClear(w)
		words[i] = w | 1<<bit
		return i*BitsPerWord + bit, true
	}
	return 0, false
}

// clearBit clears bit index and reports whether it was set.
func clearBit(words []uint64, index int) bool {
	i, mask := index/BitsPerWord, uint64(1)<<(index%BitsPerWord)
	if words[i]&mask == 0 {
		return false
	}
	words[i] &^= mask
	return true
}

// testBit reports whether bit index is set.
func testBit(words []uint64, index int) bool {
	return words[index/BitsPerWord]&(uint64(1)<<(index%BitsPerWord)) != 0
}
