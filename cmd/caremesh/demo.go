package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/Strob0t/CareMesh/internal/adapter/rpcclient"
	"github.com/Strob0t/CareMesh/internal/config"
)

// demoPrompts walk every route the coordinator knows: insurance, triage,
// the two-hop records-then-triage path, case intake, and a records listing.
var demoPrompts = []string{
	"Patient 1 coverage summary and copay guidance",
	"Patient 2 has a fever and cough, what should triage do?",
	"Patient history then triage guidance",
	"Open a new urgent case for patient 3 about chest tightness",
	"List recent urgent patients and suggest a follow-up action",
}

// runDemo sends the canned prompts through the coordinator one by one and
// prints each reply.
func runDemo(args []string) error {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	coordinatorURL := fs.String("coordinator", "", "coordinator RPC endpoint (defaults to agents.coordinator_url)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	endpoint := cfg.Agents.CoordinatorURL
	if *coordinatorURL != "" {
		endpoint = *coordinatorURL
	}

	client := rpcclient.NewClient(rpcclient.WithTimeout(cfg.Agents.Timeout))
	ctx := context.Background()
	bold := term.IsTerminal(int(os.Stdout.Fd()))

	for i, prompt := range demoPrompts {
		printPromptHeader(bold, i+1, prompt)

		reply, err := client.CallAgent(ctx, endpoint, prompt)
		if err != nil {
			return fmt.Errorf("prompt %d: %w", i+1, err)
		}
		if reply == "" {
			reply = "(no reply)"
		}
		fmt.Println(reply)
		fmt.Println()
	}
	return nil
}

// printPromptHeader writes one prompt header, bold when stdout is a terminal.
func printPromptHeader(bold bool, n int, prompt string) {
	if bold {
		fmt.Printf("\x1b[1m[%d] %s\x1b[0m\n", n, prompt)
		return
	}
	fmt.Printf("[%d] %s\n", n, prompt)
}
