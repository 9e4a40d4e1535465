package main

import (
	"fmt"
	"log/slog"
	"os"
)

// version is reported in agent cards and the MCP handshake.
const version = "1.0.0"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		printUsage()
		return fmt.Errorf("missing command")
	}

	switch args[0] {
	case "serve":
		return runServe(args[1:])
	case "up":
		return runUp(args[1:])
	case "demo":
		return runDemo(args[1:])
	case "audit":
		return runAudit(args[1:])
	case "admin":
		return runAdmin(args[1:])
	case "help", "--help", "-h":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: caremesh <command> [options]

Commands:
  serve    Serve one mesh role (--role tools|coordinator|records|triage|insurance)
  up       Run all five roles in one process
  demo     Send the canned demo prompts through the coordinator
  audit    Tail the durable audit trail from NATS
  admin    Administrative commands (seed, list-patients, add-patient, add-encounter)
  help     Show this help message

Examples:
  caremesh up
  caremesh serve --role tools
  caremesh serve --role coordinator --port 9010
  caremesh demo --coordinator http://localhost:8010/rpc
  caremesh audit --subject audit.tool_called
  caremesh admin seed
`)
}
