package service

import (
	"context"
	"log/slog"
	"strings"

	cmotel "github.com/Strob0t/CareMesh/internal/adapter/otel"
	"github.com/Strob0t/CareMesh/internal/config"
	"github.com/Strob0t/CareMesh/internal/domain/a2a"
	"github.com/Strob0t/CareMesh/internal/domain/routing"
)

// AgentCaller sends one text request to a downstream agent endpoint and
// returns the reply text.
type AgentCaller interface {
	CallAgent(ctx context.Context, endpointURL, text string) (string, error)
}

// CoordinatorService is the coordinator agent's skill. Each request runs a
// three-stage pipeline: classify the text into a route, dispatch one or two
// downstream calls along that route, and summarize whatever came back. A
// failed downstream leg degrades the summary instead of failing the request,
// so the user always gets the best effort of whichever legs succeeded.
type CoordinatorService struct {
	caller  AgentCaller
	agents  config.Agents
	metrics *cmotel.Metrics
}

// CoordinatorOption configures a CoordinatorService.
type CoordinatorOption func(*CoordinatorService)

// WithCoordinatorMetrics attaches the dispatch fan-out instrument.
func WithCoordinatorMetrics(m *cmotel.Metrics) CoordinatorOption {
	return func(s *CoordinatorService) { s.metrics = m }
}

// NewCoordinatorService creates a new CoordinatorService.
func NewCoordinatorService(caller AgentCaller, agents config.Agents, opts ...CoordinatorOption) *CoordinatorService {
	s := &CoordinatorService{caller: caller, agents: agents}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// pipeline carries the state of one request through the stages. It is built
// fresh per request and never shared.
type pipeline struct {
	originalText string
	route        routing.Route
	replies      []string
}

// Invoke implements the skill contract for the coordinator role.
func (s *CoordinatorService) Invoke(ctx context.Context, msg a2a.Message) (a2a.Message, error) {
	p := &pipeline{originalText: msg.Text()}

	p.route = routing.Classify(p.originalText)
	slog.Debug("request classified", "route", p.route)

	s.dispatch(ctx, p)
	summary := summarize(p.replies)

	slog.Info("pipeline finished", "route", p.route, "legs", len(p.replies))
	return a2a.NewAgentMessage(summary), nil
}

// dispatch issues the downstream calls for the chosen route. The two-hop
// route is strictly sequential: the triage prompt embeds the records reply,
// so the second call cannot start before the first returns.
func (s *CoordinatorService) dispatch(ctx context.Context, p *pipeline) {
	switch p.route {
	case routing.RouteInsurance:
		p.replies = append(p.replies, s.callLeg(ctx, "insurance", s.agents.InsuranceURL, p.originalText))
	case routing.RouteRecordsThenTriage:
		records := s.callLeg(ctx, "records", s.agents.RecordsURL, p.originalText)
		derived := "Data context: " + records + ". Provide guidance to the user."
		p.replies = append(p.replies, records, s.callLeg(ctx, "triage", s.agents.TriageURL, derived))
	default:
		p.replies = append(p.replies, s.callLeg(ctx, "triage", s.agents.TriageURL, p.originalText))
	}

	if s.metrics != nil {
		s.metrics.DispatchFanout.Record(ctx, int64(len(p.replies)))
	}
}

// callLeg returns the reply text of one downstream call, or "" when the leg
// failed. Failures are logged here and go no further.
func (s *CoordinatorService) callLeg(ctx context.Context, specialty, endpointURL, text string) string {
	ctx, span := cmotel.StartDispatchSpan(ctx, specialty)
	defer span.End()

	reply, err := s.caller.CallAgent(ctx, endpointURL, text)
	if err != nil {
		slog.Error("downstream agent call failed", "endpoint", endpointURL, "error", err)
		return ""
	}
	return reply
}

// summarize joins the non-empty replies with newlines. A single reply passes
// through unmodified; a request whose legs all failed summarizes to "".
func summarize(replies []string) string {
	kept := make([]string, 0, len(replies))
	for _, r := range replies {
		if r != "" {
			kept = append(kept, r)
		}
	}
	return strings.Join(kept, "\n")
}
