package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "serve":
		if err := serve(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "replay":
		if err := replayCmd(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Println("monkeyd version 1.0.0")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`monkeyd - breedable monkey ledger daemon

Usage:
  monkeyd <command> [options]

Commands:
  serve      Run the ledger node and HTTP API
  replay     Rebuild state from the journal and print the state root
  help       Show this help message
  version    Show version information

Examples:
  # Run with an in-memory journal
  monkeyd serve --listen :8090

  # Run against SQLite
  monkeyd serve --journal sqlite --journal-path monkeychain.db

  # Verify a journal replays cleanly
  monkeyd replay --journal sqlite --journal-path monkeychain.db

Configuration may also come from MONKEYD_* environment variables or a
monkeyd.yaml file in the working directory; flags take precedence.`)
}
