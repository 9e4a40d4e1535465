// Package nats implements the message queue port using NATS JetStream.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/CareMesh/internal/logger"
	"github.com/Strob0t/CareMesh/internal/port/messagequeue"
)

const (
	streamName = "CAREMESH"

	// headerRequestID carries the request ID across the queue so audit
	// consumers log under the same ID as the request that caused the event.
	headerRequestID = "X-Request-ID"

	// headerRetryCount tracks how many times a message has been republished
	// after a handler failure. At maxRetries the message moves to the DLQ.
	headerRetryCount = "Retry-Count"

	maxRetries = 3
)

// Queue implements messagequeue.Queue using NATS JetStream.
type Queue struct {
	nc *nats.Conn
	js jetstream.JetStream
}

var _ messagequeue.Queue = (*Queue)(nil)

// Connect establishes a connection to NATS and ensures the JetStream stream
// capturing the audit subjects exists.
func Connect(ctx context.Context, url string) (*Queue, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	// audit.> also captures the per-subject DLQ subjects (audit.*.dlq).
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{messagequeue.SubjectAuditAll},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", streamName)
	return &Queue{nc: nc, js: js}, nil
}

// Publish sends a message to the given subject. The request ID, if present
// in ctx, travels in a header so consumers resume the same trace.
func (q *Queue) Publish(ctx context.Context, subject string, data []byte) error {
	msg := &nats.Msg{Subject: subject, Data: data, Header: nats.Header{}}
	if id := logger.RequestID(ctx); id != "" {
		msg.Header.Set(headerRequestID, id)
	}
	if _, err := q.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a handler for messages on the given subject.
//
// Payloads are schema-validated before the handler runs; invalid messages go
// straight to the subject's DLQ. Handler failures are retried up to
// maxRetries times by republishing with an incremented retry header, then
// dead-lettered.
func (q *Queue) Subscribe(ctx context.Context, subject string, handler messagequeue.Handler) (func(), error) {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		q.handle(msg, handler)
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	return cons.Stop, nil
}

// handle runs one delivery through validation, the handler, and the
// retry/DLQ policy. Every delivery is acked; redelivery happens by
// republish, never by nak, so the retry header survives.
func (q *Queue) handle(msg jetstream.Msg, handler messagequeue.Handler) {
	subject := msg.Subject()
	data := msg.Data()
	hdrs := msg.Headers()

	if err := messagequeue.Validate(subject, data); err != nil {
		slog.Warn("message failed validation, dead-lettering", "subject", subject, "error", err)
		q.moveToDLQ(subject, data, hdrs)
		q.ack(msg)
		return
	}

	ctx := context.Background()
	if id := hdrs.Get(headerRequestID); id != "" {
		ctx = logger.WithRequestID(ctx, id)
	}

	if err := handler(ctx, subject, data); err != nil {
		retries := retryCount(hdrs)
		if retries >= maxRetries {
			slog.Error("handler failed, retries exhausted", "subject", subject, "retries", retries, "error", err)
			q.moveToDLQ(subject, data, hdrs)
			q.ack(msg)
			return
		}
		slog.Warn("handler failed, retrying", "subject", subject, "attempt", retries+1, "error", err)
		q.republish(subject, data, hdrs, retries+1)
		q.ack(msg)
		return
	}

	q.ack(msg)
}

// moveToDLQ copies the message onto <subject>.dlq, preserving headers.
func (q *Queue) moveToDLQ(subject string, data []byte, hdrs nats.Header) {
	msg := &nats.Msg{Subject: subject + ".dlq", Data: data, Header: copyHeader(hdrs)}
	if _, err := q.js.PublishMsg(context.Background(), msg); err != nil {
		slog.Error("dead-letter publish failed", "subject", subject, "error", err)
	}
}

func (q *Queue) republish(subject string, data []byte, hdrs nats.Header, retries int) {
	msg := &nats.Msg{Subject: subject, Data: data, Header: copyHeader(hdrs)}
	msg.Header.Set(headerRetryCount, strconv.Itoa(retries))
	if _, err := q.js.PublishMsg(context.Background(), msg); err != nil {
		slog.Error("retry publish failed", "subject", subject, "error", err)
	}
}

func (q *Queue) ack(msg jetstream.Msg) {
	if err := msg.Ack(); err != nil {
		slog.Error("nats ack failed", "subject", msg.Subject(), "error", err)
	}
}

// KeyValue returns a JetStream KV bucket, creating it with the given TTL if
// it does not exist. Buckets back the L2 tier of the record cache.
func (q *Queue) KeyValue(ctx context.Context, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := q.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("jetstream kv %s: %w", bucket, err)
	}
	return kv, nil
}

// Drain processes pending messages on all subscriptions, then closes the
// connection.
func (q *Queue) Drain() error {
	if err := q.nc.Drain(); err != nil {
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}

// Close shuts down the NATS connection immediately.
func (q *Queue) Close() error {
	q.nc.Close()
	return nil
}

// IsConnected reports whether the NATS connection is currently up.
func (q *Queue) IsConnected() bool {
	return q.nc != nil && q.nc.IsConnected()
}

func retryCount(h nats.Header) int {
	n, err := strconv.Atoi(h.Get(headerRetryCount))
	if err != nil {
		return 0
	}
	return n
}

func copyHeader(h nats.Header) nats.Header {
	out := nats.Header{}
	for k, vs := range h {
		for _, v := range vs {
			out.Add(k, v)
		}
	}
	return out
}
