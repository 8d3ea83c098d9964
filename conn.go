package ernode

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
)

const frameHeaderSize = 4

// Handler receives the lifecycle and message callbacks a Conn drives
// (spec §6 "Handler interface"). OnMessage runs on the Conn's read-loop
// goroutine, in arrival order. OnConnect and OnConnectFailure run on the
// goroutine that called Dial. OnDisconnect runs on whichever goroutine
// ends the connection (the read loop, a write flight, or the caller of
// Stop), so it can overlap an OnMessage call in progress.
type Handler interface {
	OnConnect(c *Conn)
	OnConnectFailure(c *Conn, reason error)
	OnDisconnect(c *Conn, reason error)
	OnMessage(c *Conn, msg TransportMessage)
	OnError(c *Conn, message string)
	Verbose() Verbosity
}

// Conn is a framed, authenticated distribution connection to one peer
// node (spec §4.6). Reads run on a single internal goroutine that
// decodes frames and invokes the Handler in arrival order; writes are
// coalesced through a writeQueue and flushed by whichever goroutine
// finds no flight already running, so submission order is preserved
// without serializing callers behind network latency.
type Conn struct {
	id      uuid.UUID
	ep      Endpoint
	cfg     Config
	handler Handler
	wq      *writeQueue

	readBuf []byte
	filled  int
	cursor  int
	// nextWant is the byte count the next Read should satisfy before the
	// loop tries to peel off another frame: HEADER_SIZE until a header is
	// decoded, then HEADER_SIZE plus the declared body length.
	nextWant int

	stopped int32
}

func newConn(ep Endpoint, cfg Config, handler Handler) *Conn {
	id, err := uuid.NewV4()
	if err != nil {
		id = uuid.UUID{}
	}
	return &Conn{
		id:       id,
		ep:       ep,
		cfg:      cfg,
		handler:  handler,
		wq:       newWriteQueue(),
		readBuf:  make([]byte, 4096),
		nextWant: frameHeaderSize,
	}
}

// ID returns the connection's process-unique identifier, for log
// correlation across its lifetime.
func (c *Conn) ID() uuid.UUID { return c.id }

// Verbosity reports the handler's configured diagnostic level.
func (c *Conn) Verbosity() Verbosity { return c.handler.Verbose() }

// Send encodes control (and payload, when non-nil) as a framed outbound
// distribution message and queues it, starting a write flight if none is
// already running (spec §4.6 "Write path"; spec §4.3 "inside the payload
// a PASS_THROUGH byte precedes each of the control tuple and optional
// payload term, and each of those begins with its own version magic").
func (c *Conn) Send(control Term, payload *Term) error {
	controlBytes, err := Encode(control)
	if err != nil {
		return err
	}
	size := 1 + len(controlBytes)
	var payloadBytes []byte
	if payload != nil {
		payloadBytes, err = Encode(*payload)
		if err != nil {
			return err
		}
		size += 1 + len(payloadBytes)
	}

	sb := newSentinelBuf(frameHeaderSize + size)
	binary.BigEndian.PutUint32(sb.payload()[:4], uint32(size))
	body := sb.payload()[4:]
	body[0] = ettPassThrough
	copy(body[1:], controlBytes)
	if payload != nil {
		off := 1 + len(controlBytes)
		body[off] = ettPassThrough
		copy(body[off+1:], payloadBytes)
	}
	return c.sendRaw(sb)
}

// sendTick writes a zero-length frame (TICK/TOCK keepalive, spec §4.6
// "Special inbound handling").
func (c *Conn) sendTick() error {
	sb := newSentinelBuf(frameHeaderSize)
	binary.BigEndian.PutUint32(sb.payload(), 0)
	return c.sendRaw(sb)
}

func (c *Conn) sendRaw(sb *sentinelBuf) error {
	if atomic.LoadInt32(&c.stopped) != 0 {
		sb.release()
		return ErrNotConnected
	}
	if c.wq.submit(sb) {
		c.runFlights()
	}
	return nil
}

// runFlights drains the write queue until no more submissions are
// pending, issuing one gathered write per flight (spec §4.6 "On I/O
// start, queues are flipped ... handed to the async writer as a
// gathered write").
func (c *Conn) runFlights() {
	for {
		bufs := c.wq.beginFlight()
		if len(bufs) > 0 {
			if _, err := c.ep.WriteBuffers(bufs); err != nil {
				c.fail(errors.Wrap(&IoError{Detail: err}, "write"))
				c.wq.drain()
				return
			}
		}
		if !c.wq.completeFlight() {
			return
		}
	}
}

// readLoop is the connection's single read/dispatch goroutine (spec §5
// "Suspension points are exactly at outbound writes and inbound reads").
func (c *Conn) readLoop() {
	for {
		if atomic.LoadInt32(&c.stopped) != 0 {
			return
		}
		if err := c.fillAtLeast(c.nextWant); err != nil {
			c.fail(err)
			return
		}
		for {
			consumed, err := c.tryExtractFrame()
			if err != nil {
				c.fail(err)
				return
			}
			if !consumed {
				break
			}
		}
		c.compact()
	}
}

// fillAtLeast reads until the buffer holds at least n unconsumed bytes
// from cursor, growing readBuf (never shrinking it) as needed.
func (c *Conn) fillAtLeast(n int) error {
	for c.filled-c.cursor < n {
		if len(c.readBuf)-c.filled < n {
			grown := make([]byte, c.filled+n)
			copy(grown, c.readBuf[:c.filled])
			c.readBuf = grown
		}
		read, err := c.ep.Read(c.readBuf[c.filled:])
		if err != nil {
			return &IoError{Detail: err}
		}
		c.filled += read
	}
	return nil
}

// tryExtractFrame decodes one frame header+body from the buffer if a
// complete one is present, invoking the handler (or handling a TICK).
// It reports whether a frame was consumed so the caller can loop for
// further already-buffered frames before issuing another Read.
func (c *Conn) tryExtractFrame() (bool, error) {
	if c.filled-c.cursor < frameHeaderSize {
		c.nextWant = frameHeaderSize
		return false, nil
	}
	bodyLen := int(binary.BigEndian.Uint32(c.readBuf[c.cursor : c.cursor+4]))
	if c.cfg.MaxFrameSize > 0 && bodyLen > c.cfg.MaxFrameSize {
		return false, ErrFrameTooLarge
	}
	if c.filled-c.cursor < frameHeaderSize+bodyLen {
		c.nextWant = frameHeaderSize + bodyLen
		return false, nil
	}

	body := c.readBuf[c.cursor+frameHeaderSize : c.cursor+frameHeaderSize+bodyLen]
	c.cursor += frameHeaderSize + bodyLen
	c.nextWant = frameHeaderSize

	if bodyLen == 0 {
		if c.Verbosity() >= VerbosityWire {
			log.Debugf("ernode: TICK received, replying TOCK")
		}
		if err := c.sendTick(); err != nil {
			return false, err
		}
		return true, nil
	}

	msg, err := decodeDistMessage(body)
	if err != nil {
		return false, err
	}
	if c.Verbosity() >= VerbosityMessage {
		log.Debugf("ernode: message kind=%s control=%s", msg.Kind, msg.Control.String())
	}
	c.handler.OnMessage(c, msg)
	return true, nil
}

// compact slides any unconsumed bytes to the start of readBuf once the
// cursor has caught up to them, bounding memory use for a long-lived
// connection (spec §4.6 "leftover bytes are compacted to the buffer's
// start when the cursor reaches the end").
func (c *Conn) compact() {
	if c.cursor == 0 {
		return
	}
	remaining := c.filled - c.cursor
	copy(c.readBuf, c.readBuf[c.cursor:c.filled])
	c.filled = remaining
	c.cursor = 0
}

// decodeDistMessage decodes a non-TICK frame body into a TransportMessage
// (spec §3, §4.3): a PASS_THROUGH byte precedes the control tuple, and,
// for SEND/REG_SEND-family opcodes, a second PASS_THROUGH byte precedes
// an optional payload term, each version-tagged on its own.
func decodeDistMessage(body []byte) (TransportMessage, error) {
	if len(body) == 0 || body[0] != ettPassThrough {
		return TransportMessage{}, newDecodeError(0, "distribution frame missing PASS_THROUGH byte")
	}
	control, n, err := DecodeTerm(body[1:])
	if err != nil {
		return TransportMessage{}, err
	}
	off := 1 + n

	kind, err := kindOf(control)
	if err != nil {
		return TransportMessage{}, err
	}

	msg := TransportMessage{Kind: kind, Control: control}
	if off < len(body) {
		if body[off] != ettPassThrough {
			return TransportMessage{}, newDecodeError(off, "payload term missing PASS_THROUGH byte")
		}
		payload, _, err := DecodeTerm(body[off+1:])
		if err != nil {
			return TransportMessage{}, err
		}
		msg.Payload = &payload
	}
	return msg, nil
}

// fail transitions the connection to the failed/disconnected state and
// invokes the handler exactly once (spec §5 "invokes on_disconnect(reason)
// exactly once").
func (c *Conn) fail(reason error) {
	if !atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		return
	}
	c.wq.drain()
	c.ep.Close()
	c.handler.OnDisconnect(c, reason)
}

// Stop cancels the connection (spec §5 "Cancellation") and reports
// ErrNotConnected to OnDisconnect, whether or not a write is in flight;
// ErrOperationAborted is never reported. A peer-initiated close instead
// surfaces as the read loop's IoError, so the two stay distinguishable.
func (c *Conn) Stop() {
	if !atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		return
	}
	c.wq.drain()
	c.ep.Close()
	c.handler.OnDisconnect(c, ErrNotConnected)
}
