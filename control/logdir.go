package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// getLogDir returns STRAVATALLY_LOG_DIR or ".logs" under current dir.
func getLogDir() string {
	if d := os.Getenv("STRAVATALLY_LOG_DIR"); d != "" {
		return d
	}
	return ".logs"
}

// runDirKind is the type of run (fetch or summarize).
type runDirKind string

const (
	RunDirFetch     runDirKind = "fetch"
	RunDirSummarize runDirKind = "summarize"
)

// CreateRunDir creates a per-run directory under the log dir (.logs/run_<timestamp>_<nanos>/)
// and returns the run directory path and the path to the log file (fetch.log or summarize.log).
// The nanosecond suffix keeps runs started in the same second apart.
func CreateRunDir(kind runDirKind) (runDir, logPath string, err error) {
	base := getLogDir()
	if err := os.MkdirAll(base, 0755); err != nil {
		return "", "", fmt.Errorf("create log base dir: %w", err)
	}
	now := time.Now()
	ts := strings.ReplaceAll(now.Format(time.RFC3339), ":", "-")
	runDir = filepath.Join(base, "run_"+ts+"_"+strconv.FormatInt(now.UnixNano(), 10))
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", "", fmt.Errorf("create run dir: %w", err)
	}
	logPath = filepath.Join(runDir, string(kind)+".log")
	return runDir, logPath, nil
}
