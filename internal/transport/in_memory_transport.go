// file: internal/transport/in_memory_transport.go
package transport

import (
	"context"
	"sync"
)

// InMemoryTransport implements Transport over channels. Two linked instances
// form a client/server pair for tests without any real I/O.
type InMemoryTransport struct {
	incoming chan []byte
	outgoing chan []byte

	// done is closed by Close; peerDone is the other end's done.
	done     chan struct{}
	peerDone chan struct{}

	closeOnce sync.Once
	readLock  sync.Mutex
}

// InMemoryTransportPair contains a pair of linked InMemoryTransport instances.
type InMemoryTransportPair struct {
	ClientTransport *InMemoryTransport
	ServerTransport *InMemoryTransport
}

var _ Transport = (*InMemoryTransport)(nil)

// NewInMemoryTransportPair creates two transports where messages written to one
// are read from the other.
func NewInMemoryTransportPair() *InMemoryTransportPair {
	clientToServer := make(chan []byte, 100)
	serverToClient := make(chan []byte, 100)
	clientDone := make(chan struct{})
	serverDone := make(chan struct{})

	return &InMemoryTransportPair{
		ClientTransport: &InMemoryTransport{
			incoming: serverToClient,
			outgoing: clientToServer,
			done:     clientDone,
			peerDone: serverDone,
		},
		ServerTransport: &InMemoryTransport{
			incoming: clientToServer,
			outgoing: serverToClient,
			done:     serverDone,
			peerDone: clientDone,
		},
	}
}

// Close closes both ends.
func (p *InMemoryTransportPair) Close() {
	_ = p.ClientTransport.Close()
	_ = p.ServerTransport.Close()
}

// ReadMessage implements Transport.ReadMessage. Once the peer closes, messages it
// already sent are still delivered before the closed error.
func (t *InMemoryTransport) ReadMessage(ctx context.Context) ([]byte, error) {
	t.readLock.Lock()
	defer t.readLock.Unlock()

	select {
	case <-t.done:
		return nil, NewClosedError("read")
	default:
	}

	select {
	case <-ctx.Done():
		return nil, NewTimeoutError("read", ctx.Err())
	case <-t.done:
		return nil, NewClosedError("read")
	case msg := <-t.incoming:
		return msg, ValidateMessage(msg)
	case <-t.peerDone:
		select {
		case msg := <-t.incoming:
			return msg, ValidateMessage(msg)
		default:
			return nil, NewClosedError("read")
		}
	}
}

// WriteMessage implements Transport.WriteMessage.
func (t *InMemoryTransport) WriteMessage(ctx context.Context, message []byte) error {
	select {
	case <-t.done:
		return NewClosedError("write")
	default:
	}
	if err := ValidateMessage(message); err != nil {
		return err
	}
	if len(message) > MaxMessageSize {
		return NewMessageSizeError(len(message), MaxMessageSize, message[:previewLen])
	}

	// Copy so callers may reuse their buffer.
	msg := append([]byte(nil), message...)
	select {
	case <-ctx.Done():
		return NewTimeoutError("write", ctx.Err())
	case <-t.done:
		return NewClosedError("write")
	case t.outgoing <- msg:
		return nil
	}
}

// WriteRaw delivers message to the peer without validation, for feeding malformed input in tests.
func (t *InMemoryTransport) WriteRaw(ctx context.Context, message []byte) error {
	select {
	case <-ctx.Done():
		return NewTimeoutError("write", ctx.Err())
	case t.outgoing <- append([]byte(nil), message...):
		return nil
	}
}

// Close implements Transport.Close. Channels are never closed, so a late write from the
// peer cannot panic.
func (t *InMemoryTransport) Close() error {
	t.closeOnce.Do(func() { close(t.done) })
	return nil
}
