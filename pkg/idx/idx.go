package idx

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ID is a ULID in its canonical 26 character form. Challenge IDs and
// request IDs are both IDs.
type ID string

// Zero is the empty ID.
const Zero ID = ""

var (
	once sync.Once
	mu   sync.Mutex
	src  *ulid.MonotonicEntropy
)

func entropy() *ulid.MonotonicEntropy {
	once.Do(func() {
		src = ulid.Monotonic(rand.Reader, 0)
	})
	return src
}

// New returns a new ID stamped with the current UTC time.
func New() ID {
	return NewAt(time.Now().UTC())
}

// NewAt returns a new ID stamped with t. IDs minted within the same
// millisecond stay strictly increasing.
func NewAt(t time.Time) ID {
	e := entropy()

	mu.Lock()
	defer mu.Unlock()

	return ID(ulid.MustNew(ulid.Timestamp(t), e).String())
}

func (id ID) IsZero() bool   { return id == Zero }
func (id ID) String() string { return string(id) }
