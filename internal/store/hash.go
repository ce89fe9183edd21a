package store

import (
	"fmt"

	"github.com/zeebo/xxh3"
)

// ContentHash returns the hash stored with a cell to detect unchanged
// sources on re-indexing.
func ContentHash(src []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(src))
}
