package kfmt

import "io"

// PrefixWriter is an io.Writer that wraps another io.Writer and injects a
// prefix at the beginning of each line.
type PrefixWriter struct {
	// A writer where all writes get sent to.
	Sink io.Writer

	// The prefix injected at the beginning of each line.
	Prefix []byte

	midLine bool
}

// Write writes p to the sink, emitting Prefix before the first byte of every
// line. A prefix is only emitted once a byte of its line arrives, so a write
// ending in '\n' leaves the next prefix to the following write. The
// returned count excludes injected prefixes.
func (w *PrefixWriter) Write(p []byte) (int, error) {
	var written int

	for len(p) != 0 {
		if !w.midLine {
			if _, err := w.Sink.Write(w.Prefix); err != nil {
				return written, err
			}
			w.midLine = true
		}

		lineLen := len(p)
		for i, b := range p {
			if b == '\n' {
				lineLen = i + 1
				w.midLine = false
				break
			}
		}

		n, err := w.Sink.Write(p[:lineLen])
		written += n
		if err != nil {
			return written, err
		}
		p = p[lineLen:]
	}

	return written, nil
}
