// Package arqclient implements the ARQ client: dialing, the three-way
// handshake, and the foreground loop that drives the sender window
// engines and the interactive prompt.
package arqclient

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/arqgo/arqgo/internal/protocol"
)

// connTransport implements sender.Transport over one net.Conn. A
// single background goroutine owns all reads off the socket and fans
// ack records into a channel; AwaitFinalAck and TryDrainAcks are two
// distinct consumers of that one channel with different wait
// semantics, replacing a single socket juggling two settimeout
// regimes.
type connTransport struct {
	conn net.Conn
	acks chan *protocol.Record
	errs chan error
}

func newConnTransport(conn net.Conn) *connTransport {
	t := &connTransport{
		conn: conn,
		acks: make(chan *protocol.Record, 64),
		errs: make(chan error, 1),
	}
	go t.readLoop()
	return t
}

func (t *connTransport) readLoop() {
	r := protocol.NewReader(t.conn)
	for {
		rec, err := r.ReadRecord()
		if err != nil {
			if errors.Is(err, protocol.ErrDecodeError) {
				continue
			}
			t.errs <- err
			close(t.acks)
			return
		}
		if kind, kindErr := rec.Kind(); kindErr == nil && kind == protocol.KindAck {
			t.acks <- rec
		}
	}
}

func (t *connTransport) Send(rec *protocol.Record) error {
	return protocol.WriteRecord(t.conn, rec)
}

// AwaitFinalAck blocks for up to deadline for the next ack on the
// wire — GBN's single aggregate-ack wait.
func (t *connTransport) AwaitFinalAck(deadline time.Duration) (*protocol.Record, error) {
	timer := time.NewTimer(deadline)
	defer timer.Stop()
	select {
	case rec, ok := <-t.acks:
		if !ok {
			return nil, <-t.errs
		}
		return rec, nil
	case err := <-t.errs:
		return nil, err
	case <-timer.C:
		return nil, fmt.Errorf("timed out waiting for ack after %s", deadline)
	}
}

// TryDrainAcks collects every ack that arrives within maxWait without
// blocking past it — SR's non-blocking poll between bursts. An empty
// slice and nil error just means nothing arrived in time.
func (t *connTransport) TryDrainAcks(maxWait time.Duration) ([]*protocol.Record, error) {
	timer := time.NewTimer(maxWait)
	defer timer.Stop()

	var acks []*protocol.Record
	for {
		select {
		case rec, ok := <-t.acks:
			if !ok {
				if len(acks) > 0 {
					return acks, nil
				}
				return nil, <-t.errs
			}
			acks = append(acks, rec)
		case err := <-t.errs:
			if len(acks) > 0 {
				return acks, nil
			}
			return nil, err
		case <-timer.C:
			return acks, nil
		}
	}
}
