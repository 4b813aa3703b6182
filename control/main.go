package main

import (
	"fmt"
	"os"
)

var (
	// Version is set at build time via ldflags
	// Example: go build -ldflags="-X main.Version=v1.2.3"
	Version = "dev"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	// Handle version command
	if command == "version" || command == "--version" || command == "-v" {
		fmt.Printf("stravatally version %s\n", Version)
		os.Exit(0)
	}

	switch command {
	case "fetch":
		os.Exit(fetchCommand(os.Args[2:]))
	case "summarize", "summarise":
		os.Exit(summarizeCommand(os.Args[2:], os.Stdout))
	case "help", "-h", "--help":
		printUsage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `stravatally - yearly distance totals from your Strava activities

USAGE:
    stravatally <command> [flags]

COMMANDS:
    fetch       Authorize in the browser and save a year's activities to the snapshot
    summarize   Print de-duplicated distance totals from the snapshot
    version     Show version information

FETCH:
    stravatally fetch [--config FILE] [--no-tui] <client_id> <client_secret> <year>
    stravatally fetch [--config FILE] [--no-tui] <year>
        (credentials from STRAVA_CLIENT_ID / STRAVA_CLIENT_SECRET or .env)

SUMMARIZE:
    stravatally summarize [--config FILE] [--unit km|mi]

ENVIRONMENT:
    STRAVATALLY_CONFIG      Configuration file (default: ./stravatally.yaml when present)
    STRAVATALLY_LOG_DIR     Run log directory (default: .logs)
    STRAVATALLY_LOG_LEVEL   Minimum run log level (DEBUG, INFO, WARN, ERROR)
    STRAVATALLY_NO_TUI      Disable the terminal UI when set

EXAMPLES:
    stravatally fetch 12345 abcdef0123456789 2023
    stravatally summarize --unit mi

For more information, see https://github.com/sv4u/stravatally
`)
}
