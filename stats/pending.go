package stats

import (
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// pendingMap tracks in-flight requests by correlation id, recording the
// moment each was dispatched so PendingCount can report queue depth
// without a central counter serializing every begin/end pair.
type pendingMap struct {
	m *xsync.MapOf[uuid.UUID, time.Time]
}

func newPendingMap() *pendingMap {
	return &pendingMap{m: xsync.NewMapOf[uuid.UUID, time.Time]()}
}

func (p *pendingMap) begin(id uuid.UUID, at time.Time) {
	p.m.Store(id, at)
}

// end removes id and reports whether it was present (a request that was
// never begun, or already completed once, is not double-counted).
func (p *pendingMap) end(id uuid.UUID) (time.Time, bool) {
	v, ok := p.m.LoadAndDelete(id)
	return v, ok
}

func (p *pendingMap) count() int {
	return p.m.Size()
}
