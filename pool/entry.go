package pool

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/clusterrpc/clusterrpc/record"
)

// entry is a connected socket plus the time it was opened. broken is
// set by the reader goroutine once the socket errors; removed guards
// retireEntry so the pool's open-socket count is decremented exactly
// once no matter which code path notices the entry is dead first.
//
// inFlight tracks every response-expecting request written to this
// socket whose response has not arrived yet, so a read error can give
// each of them a terminal completion instead of leaving them stranded
// in the client's correlation table forever.
type entry struct {
	conn      net.Conn
	createdAt time.Time
	broken    atomic.Bool
	removed   atomic.Bool

	inFlight *xsync.MapOf[uuid.UUID, *record.Request]
}

func newEntry(conn net.Conn) *entry {
	return &entry{
		conn:      conn,
		createdAt: time.Now(),
		inFlight:  xsync.NewMapOf[uuid.UUID, *record.Request](),
	}
}

// reusable reports whether an entry is still within its configured
// lifetime. closeChannelTimeMillis < 0 means never age out, 0 means
// close after a single use, > 0 means close once age exceeds the value.
func (e *entry) reusable(closeChannelTimeMillis int64) bool {
	if closeChannelTimeMillis < 0 {
		return true
	}
	if closeChannelTimeMillis == 0 {
		return false
	}
	age := time.Since(e.createdAt)
	return age < time.Duration(closeChannelTimeMillis)*time.Millisecond
}

// trackInFlight records that req was just written to this socket and
// has not yet received a response.
func (e *entry) trackInFlight(req *record.Request) {
	e.inFlight.Store(req.CorrelationID, req)
}

// untrackInFlight removes corrID from the in-flight set, called once
// its response has been read off the socket.
func (e *entry) untrackInFlight(corrID uuid.UUID) {
	e.inFlight.Delete(corrID)
}

// drainInFlight returns every request still awaiting a response on
// this socket, used when the reader observes a read error and has to
// give each of them a terminal completion.
func (e *entry) drainInFlight() []*record.Request {
	var reqs []*record.Request
	e.inFlight.Range(func(_ uuid.UUID, req *record.Request) bool {
		reqs = append(reqs, req)
		return true
	})
	return reqs
}
