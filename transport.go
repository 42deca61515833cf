package paxos

import (
	"bufio"
	"fmt"
	"net"
	"sync"
)

// Inbound is one decoded message arriving from the network. From is the
// sender id the message itself carries (a copy of Message.Sender); the
// transport does not check it against the connection's remote address.
type Inbound struct {
	Message Message
	From    string
}

// Transport delivers Paxos messages peer-to-peer, connection-per-message,
// over TCP, parameterized by a static Directory. Grounded on
// dyv-paxos/agent.go's ServeClients (net.Listen, one goroutine per
// accepted connection) and peer.go's Peer.Send (dial-per-send), moved from
// the teacher's UDP peer channel to TCP per spec.md §4.2, and from JSON
// framing to the newline-terminated line format of message.go.
type Transport struct {
	self      string
	directory *Directory
	logger    *Logger

	listener net.Listener

	inboundMu sync.Mutex
	inboundCh chan Inbound

	stopped chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewTransport builds a Transport for self using directory to resolve
// peers. It does not start listening; call Listen to do that.
func NewTransport(self string, directory *Directory, logger *Logger) *Transport {
	return &Transport{
		self:      self,
		directory: directory,
		logger:    logger,
		inboundCh: make(chan Inbound, 256),
		stopped:   make(chan struct{}),
	}
}

// Listen starts accepting inbound connections on this peer's own port
// (spec.md §4.2). It spawns one goroutine per accepted connection that
// decodes a line and enqueues it; there is no fixed-size worker pool.
func (t *Transport) Listen() error {
	self, ok := t.directory.Lookup(t.self)
	if !ok {
		return fmt.Errorf("%w: self %q not found in directory", ErrConfig, t.self)
	}
	addr := fmt.Sprintf("%s:%d", self.Host, self.Port)
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: listen on %s: %v", ErrTransport, addr, err)
	}
	t.listener = l
	t.wg.Add(1)
	go t.acceptLoop(l)
	return nil
}

func (t *Transport) acceptLoop(l net.Listener) {
	defer t.wg.Done()
	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-t.stopped:
				return
			default:
				t.logger.Warnf("accept error: %v", err)
				return
			}
		}
		t.wg.Add(1)
		go t.handleConn(conn)
	}
}

// handleConn reads a single newline-terminated line, decodes it, and
// enqueues it on the inbound queue (spec.md §4.2). Framing errors are
// logged and the line dropped; the connection is not torn down for that
// reason (though this connection-per-message transport closes it anyway
// once the single line has been read).
func (t *Transport) handleConn(conn net.Conn) {
	defer t.wg.Done()
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		return
	}
	line := scanner.Text()
	msg, err := Decode(line)
	if err != nil {
		t.logger.Warnf("dropping malformed line from %s: %v", conn.RemoteAddr(), err)
		return
	}
	select {
	case t.inboundCh <- Inbound{Message: msg, From: msg.Sender}:
	case <-t.stopped:
	}
}

// Send delivers msg to peer over a fresh TCP connection. Returns success
// iff the bytes were handed to the OS (spec.md §4.2); failure is
// observable via the returned error but non-fatal to the caller.
func (t *Transport) Send(peer string, msg Message) error {
	info, ok := t.directory.Lookup(peer)
	if !ok {
		return fmt.Errorf("%w: unknown peer %q", ErrTransport, peer)
	}
	addr := fmt.Sprintf("%s:%d", info.Host, info.Port)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrTransport, addr, err)
	}
	defer conn.Close()
	_, err = fmt.Fprintln(conn, msg.Encode())
	if err != nil {
		return fmt.Errorf("%w: write to %s: %v", ErrTransport, addr, err)
	}
	return nil
}

// Broadcast sends msg to every known peer except self, returning the count
// of successful sends (spec.md §4.2).
func (t *Transport) Broadcast(msg Message) int {
	sent := 0
	for _, peer := range t.directory.PeersExcept(t.self) {
		if err := t.Send(peer, msg); err != nil {
			t.logger.Debugf("broadcast to %s failed: %v", peer, err)
			continue
		}
		sent++
	}
	return sent
}

// Inbound returns the channel callers dequeue arrived messages from, in
// arrival order (spec.md §4.2, §5).
func (t *Transport) Inbound() <-chan Inbound {
	return t.inboundCh
}

// Close stops accepting connections and releases the listener. It does not
// close the inbound channel (readers should stop pulling from it once
// Close returns).
func (t *Transport) Close() {
	t.closeOnce.Do(func() {
		close(t.stopped)
		if t.listener != nil {
			t.listener.Close()
		}
	})
	t.wg.Wait()
}
