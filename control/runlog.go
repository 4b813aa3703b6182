package main

import (
	"bytes"
	"io"
	"log"
	"strings"
	"sync"
)

// LogTeeWriter forwards log output to dst and copies ERROR/WARN lines to a
// channel for the TUI. Lines are dropped from the channel when it is full.
type LogTeeWriter struct {
	dst    io.Writer
	errors chan<- string
	mu     sync.Mutex
	buf    []byte
}

// NewLogTeeWriter creates a writer that forwards to dst and sends ERROR/WARN lines to errCh (if non-nil).
func NewLogTeeWriter(dst io.Writer, errCh chan<- string) *LogTeeWriter {
	return &LogTeeWriter{dst: dst, errors: errCh}
}

// Write implements io.Writer.
func (w *LogTeeWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, err = w.dst.Write(p)
	if err != nil || w.errors == nil {
		return n, err
	}
	w.buf = append(w.buf, p...)
	for {
		idx := bytes.IndexByte(w.buf, '\n')
		if idx < 0 {
			break
		}
		line := string(w.buf[:idx])
		w.buf = w.buf[idx+1:]
		if isProblemLine(line) {
			select {
			case w.errors <- line:
			default:
			}
		}
	}
	return n, nil
}

// Detach stops sending lines to the channel. Further writes still reach dst.
func (w *LogTeeWriter) Detach() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.errors = nil
	w.buf = nil
}

func isProblemLine(line string) bool {
	return strings.Contains(line, "ERROR:") || strings.Contains(line, "WARN:")
}

// RedirectLogToFile redirects the standard log output to the given writer and returns a restore func.
func RedirectLogToFile(w io.Writer) (restore func()) {
	oldFlags := log.Flags()
	oldPrefix := log.Prefix()
	oldOut := log.Writer()
	log.SetOutput(w)
	log.SetFlags(0)
	log.SetPrefix("")
	return func() {
		log.SetOutput(oldOut)
		log.SetFlags(oldFlags)
		log.SetPrefix(oldPrefix)
	}
}
