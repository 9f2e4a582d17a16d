// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package arqserver

import (
	"context"
	"time"

	"github.com/arqgo/arqgo/internal/session"
)

// StartStatsReporter logs an aggregate line over every live session
// every interval, until ctx is cancelled. It never mutates session
// state — Snapshot is the only thing it touches.
func (h *Handler) StartStatsReporter(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.logAggregateStats()
		}
	}
}

func (h *Handler) logAggregateStats() {
	var sessions int
	var packetsRecv, acksSent, corrupted int

	h.sessions.Range(func(_, v any) bool {
		sess, ok := v.(*session.Session)
		if !ok {
			return true
		}
		stats := sess.Snapshot()
		sessions++
		packetsRecv += stats.PacketsRecv
		acksSent += stats.AcksSent
		corrupted += stats.CorruptedCount
		return true
	})

	h.logger.Info("server stats",
		"active_conns", h.ActiveConns.Load(),
		"active_sessions", sessions,
		"packets_received", packetsRecv,
		"acks_sent", acksSent,
		"corrupted", corrupted,
	)
}
