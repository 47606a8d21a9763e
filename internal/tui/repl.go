// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// REPL is the line-oriented chat used when stdin is not a terminal. Each
// non-empty input line is one question; it stops at EOF, "exit" or "quit".
// An expired session is replaced when asker is also a Starter.
func REPL(ctx context.Context, asker Asker, sessionID string, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		turn, _, sid, err := askOrRestart(ctx, asker, sessionID, line)
		sessionID = sid
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(out, "%s\nConfidence: %s\n\n", turn.Content, turn.Confidence); err != nil {
			return err
		}
	}
	return sc.Err()
}
