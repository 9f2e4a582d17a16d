// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package arqclient

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/arqgo/arqgo/internal/sender"
)

// RunREPL drives the interactive prompt: each line of in is either a
// "/fault" command arming a single-shot corruption or loss on the next
// message, or plain text to send as the next message. Grounded on
// original_source/client.py's connect() loop, which prompts for one
// message at a time over stdin and prints delivery status after each
// one; the fault-injection attributes that loop set ad hoc on the
// client object (corrupt_message_seq, corrupt_packet_index) are here a
// single armed *sender.Fault consumed by the very next Send call.
func RunREPL(c *Client, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	var pending *sender.Fault

	fmt.Fprintf(out, "connected, session %s, protocol %s\n", c.SessionID(), c.sess.Params().Protocol)
	fmt.Fprintln(out, "type a message to send, /fault corrupt|lose <chunk>, or /quit")

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if line == "/quit" || line == "/exit" {
			return c.Close()
		}

		if strings.HasPrefix(line, "/fault") {
			f, err := parseFaultCommand(line, c.messageIndex)
			if err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			pending = f
			fmt.Fprintf(out, "armed: next message's chunk will be %s\n", line)
			continue
		}

		outcome, err := c.Send(line, pending, sink(out))
		pending = nil
		if err != nil {
			fmt.Fprintln(out, "send failed:", err)
			continue
		}
		if outcome.Delivered {
			fmt.Fprintf(out, "delivered in %d attempt(s), %d packet(s)\n", outcome.Attempts, outcome.TotalPackets)
		} else {
			fmt.Fprintf(out, "abandoned after %d attempt(s)\n", outcome.Attempts)
		}
	}
}

func parseFaultCommand(line string, messageIndex int) (*sender.Fault, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return nil, fmt.Errorf("usage: /fault corrupt|lose <chunk index>")
	}
	var mode sender.Mode
	switch fields[1] {
	case "corrupt":
		mode = sender.ModeCorrupt
	case "lose":
		mode = sender.ModeLose
	default:
		return nil, fmt.Errorf("unknown fault mode %q", fields[1])
	}
	chunk, err := strconv.Atoi(fields[2])
	if err != nil {
		return nil, fmt.Errorf("invalid chunk index %q", fields[2])
	}
	return sender.New(messageIndex, chunk, mode), nil
}

func sink(out io.Writer) sender.Sink {
	return func(e sender.Event) {
		switch e.Kind {
		case sender.KindRetry:
			fmt.Fprintf(out, "  retry %d (%s)\n", e.Attempt, e.Detail)
		case sender.KindPacketNacked:
			fmt.Fprintf(out, "  packet %d nacked\n", e.Sequence)
		case sender.KindAbandoned:
			fmt.Fprintf(out, "  abandoned after %d attempt(s)\n", e.Attempt)
		}
	}
}
