package session

import (
	"log/slog"
	"strings"
)

// traceWriter forwards raw IMAP protocol traffic to the debug logger.
// go-imap writes both directions to the same DebugWriter, so the writer
// tags each line by its leading token. LIST responses additionally get a
// parsed summary, which makes delimiter problems on misbehaving servers
// visible without a packet capture.
type traceWriter struct {
	logger *slog.Logger
}

func newTraceWriter(logger *slog.Logger) *traceWriter {
	return &traceWriter{logger: logger}
}

func (w *traceWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\r\n"), "\r\n") {
		if line == "" {
			continue
		}
		w.logger.Debug("imap wire", "line", line)

		if payload, ok := listPayload(line); ok {
			entry := ParseListLine(payload)
			if entry.Mailbox != "" {
				w.logger.Debug("imap list entry", "mailbox", entry.Mailbox, "delim", entry.Delim, "attrs", strings.Join(entry.Attrs, " "))
			}
		}
	}
	return len(p), nil
}

// listPayload extracts the parseable tail of an untagged LIST response
// (`* LIST (...) "/" "Name"`), or reports false for any other line.
func listPayload(line string) (string, bool) {
	const prefix = "* LIST "
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	return line[len(prefix):], true
}
