// Package signature produces the claim tokens workers stamp on the rows
// they own.
package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Length is the size of a token in characters.
const Length = 32

// lastStamp is shared by every Generator in the process so two generators
// never hash the same timestamp.
var lastStamp atomic.Int64

// Generator hands out the token of one dispatcher.
type Generator struct {
	serverID int
	now      func() time.Time

	mu      sync.Mutex
	current string
}

// New returns a Generator for serverID.
func New(serverID int) *Generator {
	return &Generator{serverID: serverID, now: time.Now}
}

// Signature returns the cached token, generating one on first use or when
// renew is set.
func (g *Generator) Signature(renew bool) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if renew || g.current == "" {
		g.current = g.generate()
	}
	return g.current
}

func (g *Generator) generate() string {
	stamp := nextStamp(g.now().UnixNano())

	h := sha256.New()
	h.Write([]byte(strconv.FormatInt(stamp, 10)))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.Itoa(g.serverID)))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.Itoa(os.Getpid())))
	sum := h.Sum(nil)

	return hex.EncodeToString(sum[:Length/2])
}

// nextStamp returns a timestamp strictly greater than any previously
// returned one, advancing by 1ns when the clock has not moved.
func nextStamp(now int64) int64 {
	for {
		last := lastStamp.Load()
		next := now
		if next <= last {
			next = last + 1
		}
		if lastStamp.CompareAndSwap(last, next) {
			return next
		}
	}
}
