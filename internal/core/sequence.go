package core

import (
	"errors"
	"math"

	"applicantsync/pkg/domain"
)

// ErrKeySpaceExhausted is returned when the largest key leaves no room for another.
var ErrKeySpaceExhausted = errors.New("sequence key space exhausted")

// NextKey returns one more than the largest numeric key in rows, or 1 when there is none.
// Malformed keys count as zero. Keys are recomputed from contents every time, so the result
// must be appended before anything else reads the store.
func NextKey(schema domain.Schema, rows []domain.Row) (int64, error) {
	var highest int64
	for _, r := range rows {
		if n, ok := schema.KeyOf(r).Int(); ok && n > highest {
			highest = n
		}
	}
	if highest == math.MaxInt64 {
		return 0, ErrKeySpaceExhausted
	}
	return highest + 1, nil
}
