package registry

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// monoEntropy is a package-level monotone entropy source shared across all
// newKey calls. Using a single shared source ensures that handle keys remain
// lexicographically ordered even when minted within the same millisecond.
var (
	monoMu      sync.Mutex
	monoEntropy io.Reader = ulid.Monotonic(rand.Reader, 0)
)

// newKey mints a fresh time-ordered ULID for a handle. The mutex ensures
// monotonicity across concurrent registries.
func newKey() (string, error) {
	monoMu.Lock()
	defer monoMu.Unlock()
	ms := ulid.Timestamp(time.Now())
	id, err := ulid.New(ms, monoEntropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// mustNewKey is like newKey but panics on error. The only failure mode is
// the entropy source failing to read, which crypto/rand treats as fatal too.
func mustNewKey() string {
	key, err := newKey()
	if err != nil {
		panic(fmt.Sprintf("registry: mint handle key: %v", err))
	}
	return key
}
