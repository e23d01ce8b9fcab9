package agent

import (
	"context"
	"fmt"
	"time"

	"contextpilot/backend/internal/adapter"
	"contextpilot/backend/internal/constants"
	"contextpilot/backend/internal/graph"
	"contextpilot/backend/internal/state"
	"contextpilot/backend/internal/vector"
	apperrors "contextpilot/backend/pkg/errors"
	"contextpilot/backend/pkg/logger"
	"contextpilot/backend/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options tunes retrieval and the completion retry policy
type Options struct {
	Radius       int
	TopK         int
	MaxAttempts  int
	RetryBackoff time.Duration
}

// DefaultOptions returns the standard retrieval settings
func DefaultOptions() Options {
	return Options{
		Radius:       graph.DefaultRadius,
		TopK:         vector.DefaultTopK,
		MaxAttempts:  3,
		RetryBackoff: time.Second,
	}
}

// Orchestrator runs the retrieve -> generate -> store pipeline for each
// user message against one context graph and one vector index
type Orchestrator struct {
	graph  *graph.ContextGraph
	index  *vector.Index
	llm    adapter.Completer
	opts   Options
	newID  func() string
	logger *zap.Logger
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(g *graph.ContextGraph, index *vector.Index, llm adapter.Completer, opts Options) *Orchestrator {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Orchestrator{
		graph:  g,
		index:  index,
		llm:    llm,
		opts:   opts,
		newID:  func() string { return uuid.New().String() },
		logger: logger.Named("agent"),
	}
}

// Graph returns the context graph the orchestrator writes to
func (o *Orchestrator) Graph() *graph.ContextGraph {
	return o.graph
}

// Index returns the knowledge index the orchestrator reads from
func (o *Orchestrator) Index() *vector.Index {
	return o.index
}

// Model returns the completion model, or "" when the completer does not expose one
func (o *Orchestrator) Model() string {
	if sel, ok := o.llm.(adapter.ModelSelector); ok {
		return sel.GetModel()
	}
	return ""
}

// SetModel switches the completion model for subsequent turns. It reports
// false when model is empty or the completer has a fixed model.
func (o *Orchestrator) SetModel(model string) bool {
	sel, ok := o.llm.(adapter.ModelSelector)
	if !ok || model == "" {
		return false
	}
	sel.SetModel(model)
	o.logger.Info("Completion model switched", zap.String("model", model))
	return true
}

// TurnResult represents the result of a single turn
type TurnResult struct {
	Content       string             `json:"content"`
	MessageID     string             `json:"message_id"`
	ResponseID    string             `json:"response_id"`
	Context       graph.Neighborhood `json:"context"`
	RetrievedDocs []string           `json:"retrieved_docs"`
}

type step struct {
	name string
	run  func(ctx context.Context, st *state.TurnState) error
}

// RunTurn answers one user message. The user must have been onboarded.
// Nothing is written to the graph unless the completion succeeds.
func (o *Orchestrator) RunTurn(ctx context.Context, userID, message string) (*TurnResult, error) {
	st := state.NewTurnState(userID, message)
	if err := st.Validate(); err != nil {
		return nil, err
	}
	if !o.graph.NodeExists(userID) {
		return nil, apperrors.NewGraphUserNotFound(userID)
	}

	o.logger.Debug("Starting turn",
		zap.String("user_id", userID),
		zap.Int("message_length", len(message)),
	)

	pipeline := []step{
		{"retrieve_context", o.retrieveContext},
		{"build_prompt", o.generate},
		{"store_conversation", o.storeConversation},
	}
	for _, s := range pipeline {
		if err := s.run(ctx, st); err != nil {
			metrics.TurnsTotal.WithLabelValues("error").Inc()
			o.logger.Warn("Turn step failed",
				zap.String("step", s.name),
				zap.String("user_id", userID),
				zap.Error(err),
			)
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
	}
	metrics.TurnsTotal.WithLabelValues("ok").Inc()

	return &TurnResult{
		Content:       st.Response,
		MessageID:     st.MessageID,
		ResponseID:    st.ResponseID,
		Context:       st.Context,
		RetrievedDocs: st.RetrievedDocs,
	}, nil
}

// Baseline answers without any user context, for side-by-side comparison
func (o *Orchestrator) Baseline(ctx context.Context, message string) (string, error) {
	return o.complete(ctx, buildBaselinePrompt(message))
}

// retrieveContext loads the user's neighborhood and the relevant snippets
func (o *Orchestrator) retrieveContext(ctx context.Context, st *state.TurnState) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		st.Context = o.graph.Neighborhood(st.UserID, o.opts.Radius)
		return nil
	})
	g.Go(func() error {
		docs, err := o.index.Search(gctx, st.UserMessage, o.opts.TopK)
		if err != nil {
			return fmt.Errorf("knowledge search failed: %w", err)
		}
		st.RetrievedDocs = docs
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	o.logger.Debug("Context retrieved",
		zap.Int("nodes", len(st.Context.Nodes)),
		zap.Int("edges", len(st.Context.Edges)),
		zap.Int("docs", len(st.RetrievedDocs)),
	)
	return nil
}

// generate builds the prompt and calls the LLM
func (o *Orchestrator) generate(ctx context.Context, st *state.TurnState) error {
	prompt, err := buildTurnPrompt(st)
	if err != nil {
		return fmt.Errorf("failed to build prompt: %w", err)
	}
	st.Prompt = prompt

	response, err := o.complete(ctx, prompt)
	if err != nil {
		return err
	}
	st.Response = response
	return nil
}

// storeConversation writes the exchange back as Message and Response nodes
func (o *Orchestrator) storeConversation(ctx context.Context, st *state.TurnState) error {
	now := time.Now().UTC().Format(time.RFC3339)
	msgID := constants.MessagePrefix + o.newID()
	resID := constants.ResponsePrefix + o.newID()

	if err := o.graph.AddNode(msgID, constants.NodeTypeMessage, graph.NewAttributes(
		graph.Attr("text", graph.String(st.UserMessage)),
		graph.Attr("created_at", graph.String(now)),
	)); err != nil {
		return err
	}
	if err := o.graph.AddNode(resID, constants.NodeTypeResponse, graph.NewAttributes(
		graph.Attr("text", graph.String(st.Response)),
		graph.Attr("created_at", graph.String(now)),
	)); err != nil {
		return err
	}
	if _, err := o.graph.AddEdge(st.UserID, msgID, constants.RelationSent); err != nil {
		return err
	}
	if _, err := o.graph.AddEdge(msgID, resID, constants.RelationGenerated); err != nil {
		return err
	}

	st.MessageID = msgID
	st.ResponseID = resID
	return nil
}

// complete calls the LLM, retrying retryable failures with linear backoff
func (o *Orchestrator) complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < o.opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * o.opts.RetryBackoff
			o.logger.Warn("Retrying LLM request",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-ctx.Done():
				return "", apperrors.NewContextCancelled("complete", ctx.Err())
			case <-time.After(backoff):
			}
		}

		response, err := o.llm.Complete(ctx, prompt)
		if err == nil {
			return response, nil
		}
		lastErr = err
		if !apperrors.IsRetryable(err) {
			break
		}
	}
	return "", lastErr
}
