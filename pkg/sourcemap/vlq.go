package sourcemap

import (
	"fmt"
	"strings"
)

const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

var base64Index = func() [256]int8 {
	var idx [256]int8
	for i := range idx {
		idx[i] = -1
	}
	for i := 0; i < len(base64Chars); i++ {
		idx[base64Chars[i]] = int8(i)
	}
	return idx
}()

const (
	vlqShift    = 5
	vlqBase     = 1 << vlqShift
	vlqMask     = vlqBase - 1
	vlqContinue = vlqBase
)

// encodeVLQ appends the base64 VLQ encoding of v to b.
func encodeVLQ(b *strings.Builder, v int) {
	var n int
	if v < 0 {
		n = (-v << 1) | 1
	} else {
		n = v << 1
	}
	for {
		digit := n & vlqMask
		n >>= vlqShift
		if n > 0 {
			digit |= vlqContinue
		}
		b.WriteByte(base64Chars[digit])
		if n == 0 {
			return
		}
	}
}

// decodeVLQ reads one value from s starting at pos.
// Returns the value and the position after it.
func decodeVLQ(s string, pos int) (int, int, error) {
	result := 0
	shift := 0
	for {
		if pos >= len(s) {
			return 0, pos, fmt.Errorf("unterminated VLQ value")
		}
		digit := base64Index[s[pos]]
		if digit < 0 {
			return 0, pos, fmt.Errorf("invalid base64 character %q at %d", s[pos], pos)
		}
		pos++
		result += int(digit&vlqMask) << shift
		if digit&vlqContinue == 0 {
			break
		}
		shift += vlqShift
	}
	if result&1 != 0 {
		return -(result >> 1), pos, nil
	}
	return result >> 1, pos, nil
}
