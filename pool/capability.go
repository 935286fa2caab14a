package pool

import (
	"crypto/rand"
	"encoding/hex"
)

// AdminCap is an opaque capability token authorizing admin operations on
// one pool. It carries no secret material of its own; possession of a copy
// is sufficient authorization, and copies are freely duplicable by value
// (it is a plain struct, not a pointer) -- the original admin may hand out
// as many as it likes.
type AdminCap struct {
	ID     string
	PoolID string
}

// NewAdminCap mints a fresh capability scoped to poolID.
func NewAdminCap(poolID string) AdminCap {
	return AdminCap{ID: randomID(), PoolID: poolID}
}

// authorizes reports whether this capability may act on poolID.
func (c AdminCap) authorizes(poolID string) bool {
	return c.PoolID == poolID
}

func randomID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand on a sane platform does not fail; if it ever does,
		// degrade to a fixed-zero id rather than crashing admin flows.
		return "00000000000000000000000000000000"
	}
	return hex.EncodeToString(b)
}
