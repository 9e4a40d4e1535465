package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cmnats "github.com/Strob0t/CareMesh/internal/adapter/nats"
	"github.com/Strob0t/CareMesh/internal/config"
	"github.com/Strob0t/CareMesh/internal/port/messagequeue"
)

// runAudit tails the durable audit trail, printing one line per event until
// interrupted. The consumer starts at the beginning of the retained stream,
// so the tail includes history.
func runAudit(args []string) error {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	subject := fs.String("subject", messagequeue.SubjectAuditAll, "audit subject filter")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.NATS.URL == "" {
		return fmt.Errorf("nats.url is empty; the durable audit trail is disabled")
	}

	queue, err := cmnats.Connect(context.Background(), cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}

	stop, err := queue.Subscribe(context.Background(), *subject, printAuditEvent)
	if err != nil {
		_ = queue.Close()
		return fmt.Errorf("subscribe %s: %w", *subject, err)
	}

	fmt.Fprintf(os.Stderr, "Tailing %s (ctrl-c to stop)\n", *subject)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	<-done

	stop()
	if err := queue.Drain(); err != nil {
		return fmt.Errorf("drain: %w", err)
	}
	return nil
}

// printAuditEvent writes one line per message. It never returns an error: a
// failure here must not send the message through the retry path.
func printAuditEvent(_ context.Context, subject string, data []byte) error {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		fmt.Printf("%s %s\n", subject, data)
		return nil
	}
	fmt.Printf("%s %s\n", subject, buf.String())
	return nil
}
