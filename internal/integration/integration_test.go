// Package integration exercises the client and server packages
// together over real loopback TCP connections, covering the
// end-to-end delivery scenarios: GBN and SR happy paths, single-chunk
// corruption and loss recovery, and GBN retry exhaustion against an
// uncooperative peer.
package integration

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/arqgo/arqgo/internal/arqclient"
	"github.com/arqgo/arqgo/internal/arqserver"
	"github.com/arqgo/arqgo/internal/config"
	"github.com/arqgo/arqgo/internal/logging"
	"github.com/arqgo/arqgo/internal/protocol"
	"github.com/arqgo/arqgo/internal/session"
	"github.com/arqgo/arqgo/internal/sender"
)

func startServer(t *testing.T, variant string, windowSize int) (string, *protocol.Key, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening: %v", err)
	}
	key, err := protocol.GenerateKey()
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}

	cfg := &config.ServerConfig{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Protocol = variant
	cfg.Server.MaxChars = 30
	cfg.Server.MaxPayload = 4
	cfg.Server.WindowSize = windowSize
	cfg.Server.ChecksumMode = protocol.ChecksumSHA1
	cfg.Logging.Level = "error"
	cfg.Logging.Format = "json"

	logger := logging.NewLogger("error", "json")
	ctx, cancel := context.WithCancel(context.Background())
	go arqserver.RunWithListener(ctx, ln, cfg, logger, key)

	return ln.Addr().String(), key, func() {
		cancel()
		ln.Close()
	}
}

func dial(t *testing.T, addr string, key *protocol.Key, variant string, windowSize int) *clientHandle {
	t.Helper()
	host, portStr, _ := net.SplitHostPort(addr)
	port := 0
	for _, c := range portStr {
		port = port*10 + int(c-'0')
	}
	cfg := &config.ClientConfig{}
	cfg.Client.Host = host
	cfg.Client.Port = port
	cfg.Client.Protocol = variant
	cfg.Client.MaxChars = 30
	cfg.Client.PacketSize = 4
	cfg.Client.WindowSize = windowSize

	logger := logging.NewLogger("error", "json")
	c, err := arqclient.Dial(cfg, key, logger)
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	return &clientHandle{c}
}

// clientHandle exposes Send for the test without depending on
// arqclient's unexported fields.
type clientHandle struct {
	c *arqclient.Client
}

func (h *clientHandle) Send(message string, fault *sender.Fault) (sender.Outcome, error) {
	return h.c.Send(message, fault, nil)
}

func (h *clientHandle) Close() { h.c.Close() }

// S1: GBN happy path.
func TestGBNHappyPath(t *testing.T) {
	addr, key, stop := startServer(t, protocol.VariantGBN, 5)
	defer stop()
	c := dial(t, addr, key, protocol.VariantGBN, 5)
	defer c.Close()

	out, err := c.Send("Hello World!", nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !out.Delivered || out.TotalPackets != 3 || out.Reassembled != "Hello World!" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

// S2: SR happy path.
func TestSRHappyPath(t *testing.T) {
	addr, key, stop := startServer(t, protocol.VariantSR, 3)
	defer stop()
	c := dial(t, addr, key, protocol.VariantSR, 3)
	defer c.Close()

	out, err := c.Send("abcdefghij", nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !out.Delivered || out.TotalPackets != 3 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

// S3: SR single-chunk corruption recovers within one delivery.
func TestSRSingleChunkCorruption(t *testing.T) {
	addr, key, stop := startServer(t, protocol.VariantSR, 3)
	defer stop()
	c := dial(t, addr, key, protocol.VariantSR, 3)
	defer c.Close()

	fault := sender.New(0, 1, sender.ModeCorrupt)
	out, err := c.Send("abcdefghij", fault)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !out.Delivered {
		t.Fatalf("expected eventual delivery, got %+v", out)
	}
}

// S4: SR single-chunk loss recovers after the per-chunk timer elapses.
// This test sleeps through a real sender.SRChunkTimeout window.
func TestSRSingleChunkLoss(t *testing.T) {
	addr, key, stop := startServer(t, protocol.VariantSR, 3)
	defer stop()
	c := dial(t, addr, key, protocol.VariantSR, 3)
	defer c.Close()

	fault := sender.New(0, 1, sender.ModeLose)
	start := time.Now()
	out, err := c.Send("abcdefghij", fault)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !out.Delivered {
		t.Fatalf("expected eventual delivery, got %+v", out)
	}
	if time.Since(start) < sender.SRChunkTimeout {
		t.Fatalf("expected at least one chunk timeout's worth of delay, took %s", time.Since(start))
	}
}

// S5: GBN corruption forces one whole-message retransmission; the
// fault fires only once, so the second attempt succeeds.
func TestGBNCorruptionRetransmits(t *testing.T) {
	addr, key, stop := startServer(t, protocol.VariantGBN, 5)
	defer stop()
	c := dial(t, addr, key, protocol.VariantGBN, 5)
	defer c.Close()

	fault := sender.New(0, 1, sender.ModeCorrupt)
	out, err := c.Send("Hello World!", fault)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !out.Delivered {
		t.Fatalf("expected eventual delivery, got %+v", out)
	}
	if out.Attempts < 2 {
		t.Fatalf("expected at least 2 attempts, got %d", out.Attempts)
	}
}

// S6: GBN retry exhaustion against a peer that always nacks. The
// sender's sequence counter still advances by total_packets even
// though the message is abandoned.
func TestGBNRetryExhaustion(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening: %v", err)
	}
	defer ln.Close()

	key, err := protocol.GenerateKey()
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}

	go runAlwaysNackServer(t, ln)

	cfg := &config.ClientConfig{}
	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port := 0
	for _, ch := range portStr {
		port = port*10 + int(ch-'0')
	}
	cfg.Client.Host = host
	cfg.Client.Port = port
	cfg.Client.Protocol = protocol.VariantGBN
	cfg.Client.MaxChars = 30
	cfg.Client.PacketSize = 4
	cfg.Client.WindowSize = 5

	logger := logging.NewLogger("error", "json")
	c, err := arqclient.Dial(cfg, key, logger)
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	defer c.Close()

	out, err := c.Send("Hello World!", nil, nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if out.Delivered {
		t.Fatalf("expected abandonment, got %+v", out)
	}
	if out.Attempts != sender.GBNRetries {
		t.Fatalf("expected %d attempts, got %d", sender.GBNRetries, out.Attempts)
	}
}

// runAlwaysNackServer performs the handshake honestly but answers
// every data burst with an error ack, modeling an uncooperative peer.
func runAlwaysNackServer(t *testing.T, ln net.Listener) {
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	reader := protocol.NewReader(conn)
	syn, err := reader.ReadRecord()
	if err != nil {
		return
	}

	sess, synAck := session.NegotiateServer(syn, session.Limits{
		MaxChars: 30, DefaultPacket: 4, MinPacket: 4, MaxPacket: 4,
		DefaultWindow: 5, MaxWindow: 5, ChecksumMode: protocol.ChecksumSHA1,
	})
	if err := protocol.WriteRecord(conn, synAck); err != nil {
		return
	}

	ack, err := reader.ReadRecord()
	if err != nil {
		return
	}
	if err := session.CompleteServer(sess, ack); err != nil {
		return
	}

	var lastSeq uint64
	for {
		rec, err := reader.ReadRecord()
		if err != nil {
			return
		}
		lastSeq = rec.Sequence
		if !rec.IsLast {
			continue
		}
		nack := &protocol.Record{Type: string(protocol.KindAck), SessionID: sess.ID(), Sequence: lastSeq, Status: protocol.StatusError}
		if err := protocol.WriteRecord(conn, nack); err != nil {
			return
		}
	}
}
