package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"contextpilot/backend/internal/adapter"
	"contextpilot/backend/internal/agent"
	"contextpilot/backend/internal/graph"
	"contextpilot/backend/internal/state"
	"contextpilot/backend/internal/vector"
	apperrors "contextpilot/backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type scriptedCompleter struct {
	calls int
	err   error
}

type switchableCompleter struct {
	scriptedCompleter
	model string
}

func (s *switchableCompleter) SetModel(model string) { s.model = model }
func (s *switchableCompleter) GetModel() string      { return s.model }

func (s *scriptedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if strings.Contains(prompt, "User Context Graph") {
		return "Start with your regression notes.", nil
	}
	return "Try reading the docs.", nil
}

func newTestSession(t *testing.T, input string, llm adapter.Completer, baseline bool) (*session, *bytes.Buffer) {
	t.Helper()
	index, err := vector.NewIndex(context.Background(), vector.NewHashingEmbedder(64))
	require.NoError(t, err)

	opts := agent.DefaultOptions()
	opts.MaxAttempts = 1
	out := &bytes.Buffer{}
	return &session{
		orch:     agent.NewOrchestrator(graph.NewContextGraph(), index, llm, opts),
		in:       bufio.NewScanner(strings.NewReader(input)),
		out:      out,
		baseline: baseline,
		log:      zap.NewNop(),
	}, out
}

func TestSession_OnboardsAndChats(t *testing.T) {
	input := strings.Join([]string{
		"u1",
		"Ada", "Student", "Finish regression", "Assignments", "Intro to ML",
		"How do I start?",
		"",
		"EXIT",
		"never read",
	}, "\n")
	llm := &scriptedCompleter{}
	s, out := newTestSession(t, input, llm, true)

	require.NoError(t, s.run(context.Background(), ""))

	text := out.String()
	assert.Contains(t, text, "Enter role (Student/Parent/Counselor): ")
	assert.Contains(t, text, "AI Assistant Ready")
	assert.Contains(t, text, "--- BASELINE ---")
	assert.Contains(t, text, "Try reading the docs.")
	assert.Contains(t, text, "--- CONTEXT GRAPH ---")
	assert.Contains(t, text, "Start with your regression notes.")
	assert.Less(t, strings.Index(text, "--- BASELINE ---"), strings.Index(text, "--- CONTEXT GRAPH ---"))
	assert.Equal(t, 2, llm.calls)
	assert.Equal(t, 7, s.orch.Graph().NodeCount())
}

func TestSession_ExistingUserSkipsOnboarding(t *testing.T) {
	llm := &scriptedCompleter{}
	s, out := newTestSession(t, "hello\nexit\n", llm, false)
	_, err := s.orch.EnsureUser(context.Background(), "u1", testProfileForChat())
	require.NoError(t, err)

	require.NoError(t, s.run(context.Background(), "u1"))

	text := out.String()
	assert.NotContains(t, text, "Enter user name")
	assert.NotContains(t, text, "--- BASELINE ---")
	assert.Equal(t, 1, llm.calls)
}

func TestSession_ErrorsDoNotEndConversation(t *testing.T) {
	llm := &scriptedCompleter{err: apperrors.NewCompletionProvider("m", 400, false, errors.New("bad request"))}
	s, out := newTestSession(t, "first\nsecond\n", llm, false)
	_, err := s.orch.EnsureUser(context.Background(), "u1", testProfileForChat())
	require.NoError(t, err)

	// input ends without exit; EOF closes the session cleanly
	require.NoError(t, s.run(context.Background(), "u1"))

	assert.Equal(t, 2, strings.Count(out.String(), "Error: "))
	assert.Equal(t, 5, s.orch.Graph().NodeCount())
}

func TestSession_InvalidProfileAsksAgain(t *testing.T) {
	input := strings.Join([]string{
		"", "", "", "", "",
		"Ada", "", "", "", "",
		"Ada", "Student", "Finish regression", "Assignments", "Intro to ML",
		"exit",
	}, "\n")
	s, out := newTestSession(t, input, &scriptedCompleter{}, false)

	require.NoError(t, s.run(context.Background(), "u1"))

	text := out.String()
	assert.Contains(t, text, "A name is required, please try again.")
	assert.Contains(t, text, "A role is required, please try again.")
	assert.Equal(t, 3, strings.Count(text, "Enter user name: "))
	assert.Contains(t, text, "AI Assistant Ready")
	assert.True(t, s.orch.Graph().NodeExists("u1"))
	assert.Equal(t, 5, s.orch.Graph().NodeCount())
}

func TestSession_InvalidProfileThenEOF(t *testing.T) {
	s, out := newTestSession(t, "\n\n\n\n\n", &scriptedCompleter{}, false)

	err := s.run(context.Background(), "u1")
	assert.ErrorIs(t, err, io.EOF)
	assert.Contains(t, out.String(), "A name is required")
	assert.False(t, s.orch.Graph().NodeExists("u1"))
}

func TestSession_LogsGraphAfterEachTurn(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s, _ := newTestSession(t, "hello\nagain\nexit\n", &scriptedCompleter{}, false)
	s.log = zap.New(core)
	_, err := s.orch.EnsureUser(context.Background(), "u1", testProfileForChat())
	require.NoError(t, err)

	require.NoError(t, s.run(context.Background(), "u1"))

	// 5 profile nodes plus a message and response per turn
	assert.Equal(t, 7+9, logs.FilterMessage("graph node").Len())
	assert.Equal(t, 6+8, logs.FilterMessage("graph edge").Len())
}

func TestSession_FailedTurnDoesNotLogGraph(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	llm := &scriptedCompleter{err: apperrors.NewCompletionProvider("m", 400, false, errors.New("bad request"))}
	s, _ := newTestSession(t, "hello\n", llm, false)
	s.log = zap.New(core)
	_, err := s.orch.EnsureUser(context.Background(), "u1", testProfileForChat())
	require.NoError(t, err)

	require.NoError(t, s.run(context.Background(), "u1"))
	assert.Zero(t, logs.Len())
}

func TestSession_ModelCommand(t *testing.T) {
	llm := &switchableCompleter{model: "gemini/gemini-2.5-flash"}
	s, out := newTestSession(t, "/model\n/model gpt-4o-mini\n/model\nexit\n", llm, false)
	_, err := s.orch.EnsureUser(context.Background(), "u1", testProfileForChat())
	require.NoError(t, err)

	require.NoError(t, s.run(context.Background(), "u1"))

	text := out.String()
	assert.Contains(t, text, "Model: gemini/gemini-2.5-flash")
	assert.Contains(t, text, "Model switched to gpt-4o-mini")
	assert.Contains(t, text, "Model: gpt-4o-mini")
	assert.Equal(t, "gpt-4o-mini", llm.model)
	assert.Zero(t, llm.calls)
	assert.Equal(t, 5, s.orch.Graph().NodeCount())
}

func TestSession_ModelCommandFixedCompleter(t *testing.T) {
	s, out := newTestSession(t, "/model\n/model gpt-4o-mini\nexit\n", &scriptedCompleter{}, false)
	_, err := s.orch.EnsureUser(context.Background(), "u1", testProfileForChat())
	require.NoError(t, err)

	require.NoError(t, s.run(context.Background(), "u1"))

	text := out.String()
	assert.Contains(t, text, "Model: (fixed)")
	assert.Contains(t, text, "The completion model cannot be changed")
}

func TestNewChatCmd_Flags(t *testing.T) {
	cmd := newChatCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--user", "u9", "-r", "1", "--baseline=false", "-m", "gpt-4o-mini"}))

	user, _ := cmd.Flags().GetString("user")
	radius, _ := cmd.Flags().GetInt("radius")
	topK, _ := cmd.Flags().GetInt("top-k")
	baseline, _ := cmd.Flags().GetBool("baseline")
	model, _ := cmd.Flags().GetString("model")
	assert.Equal(t, "u9", user)
	assert.Equal(t, "gpt-4o-mini", model)
	assert.Equal(t, 1, radius)
	assert.Equal(t, 3, topK)
	assert.False(t, baseline)
	assert.True(t, cmd.Flags().Changed("radius"))
	assert.False(t, cmd.Flags().Changed("top-k"))
}

func testProfileForChat() state.Profile {
	return state.Profile{Name: "Ada", Role: "Student", Goal: "Finish regression", Screen: "Assignments", Course: "Intro to ML"}
}
