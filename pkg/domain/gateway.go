package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// StateHash is a cheap fingerprint of the authoritative table, compared only for equality.
type StateHash string

// Gateway is the durable backend the sync engine writes through to. Implementations
// must be safe for concurrent use; calls may take arbitrarily long.
type Gateway interface {
	// Save writes record. update selects overwrite of the row identified by key
	// rather than insertion of a new row.
	Save(ctx context.Context, record Fields, update bool, key Key) error
	Delete(ctx context.Context, key Key) error
	FetchStateHash(ctx context.Context) (StateHash, error)
	FetchAll(ctx context.Context) (Table, error)
}

// HashTable fingerprints a table by header and row contents in order.
func HashTable(t Table) StateHash {
	h := sha256.New()
	write := func(cells []string) {
		for _, c := range cells {
			_, _ = h.Write([]byte(c))
			_, _ = h.Write([]byte{0x1f})
		}
		_, _ = h.Write([]byte{0x1e})
	}
	write(t.Header)
	for _, r := range t.Rows {
		write(r)
	}
	return StateHash(hex.EncodeToString(h.Sum(nil)))
}
