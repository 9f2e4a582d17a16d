// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package arqserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/arqgo/arqgo/internal/config"
	"github.com/arqgo/arqgo/internal/protocol"
	"github.com/arqgo/arqgo/internal/receiver"
	"github.com/arqgo/arqgo/internal/session"
)

// Handler dispatches every record on an accepted connection to the
// right session/protocol-variant handling, one worker goroutine per
// connection, each worker owning its session's mutable state
// exclusively.
type Handler struct {
	cfg      *config.ServerConfig
	logger   *slog.Logger
	key      *protocol.Key
	sessions *sync.Map // session id (string) -> *session.Session

	ActiveConns atomic.Int64
}

// NewHandler builds a Handler. sessions is shared across connections
// only so the stats reporter can snapshot every live session; each
// connection's worker is otherwise the sole owner of its own entry.
func NewHandler(cfg *config.ServerConfig, logger *slog.Logger, key *protocol.Key, sessions *sync.Map) *Handler {
	return &Handler{cfg: cfg, logger: logger, key: key, sessions: sessions}
}

// connState is the per-connection worker state: exactly one of
// gbnRecv/srRecv is live once a session is established, chosen by the
// negotiated protocol variant.
type connState struct {
	sess    *session.Session
	gbnRecv *receiver.GBN
	srRecv  *receiver.SR
}

// HandleConnection owns conn end to end: it reads records off the
// stream, dispatches each by kind, and tears the session down on
// close or disconnect.
func (h *Handler) HandleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	h.ActiveConns.Add(1)
	defer h.ActiveConns.Add(-1)

	logger := h.logger.With("remote", conn.RemoteAddr().String())
	reader := protocol.NewReader(conn)
	var st connState

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		rec, err := reader.ReadRecord()
		if err != nil {
			if errors.Is(err, protocol.ErrDecodeError) {
				logger.Warn("discarding malformed record", "error", err)
				continue
			}
			if errors.Is(err, io.EOF) {
				logger.Info("connection closed by peer")
			} else {
				logger.Warn("read error, closing connection", "error", err)
			}
			h.forget(&st)
			return
		}

		kind, err := rec.Kind()
		if err != nil {
			logger.Warn("discarding unrecognized record", "error", err)
			continue
		}

		switch kind {
		case protocol.KindSyn:
			h.handleSyn(conn, rec, &st, logger)
		case protocol.KindHandshakeAck:
			h.handleHandshakeAck(rec, &st, logger)
		case protocol.KindData:
			h.handleData(conn, rec, &st, logger)
		case protocol.KindClose:
			h.handleClose(&st, logger)
			return
		default:
			logger.Warn("unsupported record kind on server", "kind", kind)
		}
	}
}

func (h *Handler) handleSyn(conn net.Conn, rec *protocol.Record, st *connState, logger *slog.Logger) {
	sess, synAck := session.NegotiateServer(rec, h.cfg.Limits())
	h.sessions.Store(sess.ID(), sess)
	st.sess = sess

	if err := protocol.WriteRecord(conn, synAck); err != nil {
		logger.Warn("writing syn-ack", "error", err)
		return
	}

	switch sess.Params().Protocol {
	case protocol.VariantSR:
		st.srRecv = receiver.NewSR(sess.Params().WindowSize, 0)
		st.gbnRecv = nil
	default:
		st.gbnRecv = receiver.NewGBN(0)
		st.srRecv = nil
	}

	logger.Info("session negotiated", "session_id", sess.ID(), "protocol", sess.Params().Protocol,
		"max_chars", sess.Params().MaxChars, "packet_size", sess.Params().PacketSize, "window_size", sess.Params().WindowSize)
}

func (h *Handler) handleHandshakeAck(rec *protocol.Record, st *connState, logger *slog.Logger) {
	if st.sess == nil {
		logger.Warn("handshake-ack with no pending session")
		return
	}
	if err := session.CompleteServer(st.sess, rec); err != nil {
		logger.Warn("completing handshake", "error", err)
		return
	}
	logger.Info("session established", "session_id", st.sess.ID())
}

func (h *Handler) handleData(conn net.Conn, rec *protocol.Record, st *connState, logger *slog.Logger) {
	if st.sess == nil || !st.sess.Established() {
		logger.Warn("data record outside an established session, discarding")
		return
	}
	if rec.SessionID != st.sess.ID() {
		return // session mismatch: discard silently
	}

	params := st.sess.Params()
	v := protocol.Validate(rec, st.sess.ID(), h.key, params.ChecksumMode, params.PacketSize)
	st.sess.RecordPacketReceived()
	if v.Err != nil {
		st.sess.RecordCorruption()
	}

	if st.srRecv != nil {
		h.handleDataSR(conn, rec, v, st, logger)
		return
	}
	h.handleDataGBN(conn, rec, v, st, logger)
}

func (h *Handler) handleDataGBN(conn net.Conn, rec *protocol.Record, v protocol.Validated, st *connState, logger *slog.Logger) {
	var out receiver.Outcome
	if v.Err != nil {
		out = st.gbnRecv.Reject(rec.Sequence, rec.IsLast)
	} else {
		out = st.gbnRecv.Accept(rec.Sequence, v.Cleartext, rec.IsLast)
	}
	if !out.FinalAck {
		return
	}

	ack := &protocol.Record{
		Type:      string(protocol.KindAck),
		SessionID: st.sess.ID(),
		Sequence:  rec.Sequence,
		Status:    out.Status,
		Message:   out.Reassembled,
	}
	if err := protocol.WriteRecord(conn, ack); err != nil {
		logger.Warn("writing aggregate ack", "error", err)
		return
	}
	st.sess.RecordAckSent()
	if out.Status == protocol.StatusOK {
		logger.Info("message reassembled", "session_id", st.sess.ID(), "text", out.Reassembled)
	} else {
		logger.Info("message rejected, corruption latched", "session_id", st.sess.ID())
	}
}

func (h *Handler) handleDataSR(conn net.Conn, rec *protocol.Record, v protocol.Validated, st *connState, logger *slog.Logger) {
	var ack receiver.Ack
	var outcome *receiver.Outcome
	if v.Err != nil {
		ack = st.srRecv.Reject(rec.Sequence)
	} else {
		ack, outcome = st.srRecv.Accept(rec.Sequence, v.Cleartext, rec.TotalPackets)
	}

	if ack.Emit {
		resp := &protocol.Record{
			Type:      string(protocol.KindAck),
			SessionID: st.sess.ID(),
			Sequence:  ack.Sequence,
			Status:    ack.Status,
		}
		if err := protocol.WriteRecord(conn, resp); err != nil {
			logger.Warn("writing ack", "error", err)
			return
		}
		st.sess.RecordAckSent()
	}

	if outcome != nil && outcome.MessageComplete {
		logger.Info("message reassembled", "session_id", st.sess.ID(), "text", outcome.Reassembled)
	}
}

func (h *Handler) handleClose(st *connState, logger *slog.Logger) {
	if st.sess == nil {
		return
	}
	st.sess.Transition(session.StateClosing)
	st.sess.Transition(session.StateClosed)
	stats := st.sess.Snapshot()
	logger.Info("session closed", "session_id", stats.ID, "packets_received", stats.PacketsRecv,
		"acks_sent", stats.AcksSent, "corrupted", stats.CorruptedCount, "uptime", stats.Uptime)
	h.forget(st)
}

func (h *Handler) forget(st *connState) {
	if st.sess != nil {
		h.sessions.Delete(st.sess.ID())
	}
}
