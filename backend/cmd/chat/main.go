package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"contextpilot/backend/internal/agent"
	"contextpilot/backend/internal/constants"
	"contextpilot/backend/internal/state"
	"contextpilot/backend/pkg/config"
	"contextpilot/backend/pkg/logger"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	aiStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type chatCommander struct {
	userID   string
	model    string
	radius   int
	topK     int
	baseline bool
}

const chatLongDesc string = `Chat with the context-graph assistant.

On first contact the user is onboarded: name, role, goal, current screen and
course become nodes in the user's context graph. Every message is answered
with the user's graph neighborhood and the most relevant knowledge snippets
in the prompt, and the exchange is written back into the graph.

With --baseline each message is also answered without any context, so the
two answers can be compared side by side.

Type '/model' to show the completion model, '/model <name>' to switch it,
and 'exit' to quit.

Example:
  chat --user u1
  chat --user u1 --model gpt-4o-mini
  chat --user u1 --radius 1 --top-k 2 --baseline=false`

func main() {
	if err := newChatCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:          "chat",
		Short:        "Interactive context-graph assistant",
		Long:         chatLongDesc,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.userID, "user", "u", "", "User ID (prompted when empty)")
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Completion model (overrides MODEL_ID)")
	cmd.Flags().IntVarP(&cmder.radius, "radius", "r", 2, "Neighborhood radius around the user")
	cmd.Flags().IntVarP(&cmder.topK, "top-k", "k", 3, "Number of knowledge snippets per message")
	cmd.Flags().BoolVar(&cmder.baseline, "baseline", true, "Also print a context-free answer")

	return cmd
}

func (c *chatCommander) run(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if c.model != "" {
		cfg.ModelID = c.model
	}
	if cmd.Flags().Changed("radius") {
		cfg.NeighborhoodRadius = c.radius
	}
	if cmd.Flags().Changed("top-k") {
		cfg.SearchTopK = c.topK
	}
	if !cmd.Flags().Changed("baseline") {
		c.baseline = cfg.BaselineEnabled
	}

	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch, err := agent.NewFromConfig(ctx, cfg)
	if err != nil {
		logger.Get().Error("Failed to initialize assistant", zap.Error(err))
		return err
	}

	s := &session{
		orch:     orch,
		in:       bufio.NewScanner(cmd.InOrStdin()),
		out:      cmd.OutOrStdout(),
		baseline: c.baseline,
		log:      logger.Named("chat"),
	}
	return s.run(ctx, c.userID)
}

// session is one interactive conversation over line-based input
type session struct {
	orch     *agent.Orchestrator
	in       *bufio.Scanner
	out      io.Writer
	baseline bool
	log      *zap.Logger
}

func (s *session) run(ctx context.Context, userID string) error {
	var err error
	if userID == "" {
		if userID, err = s.prompt("Enter user ID: "); err != nil {
			return err
		}
	}

	if !s.orch.Graph().NodeExists(userID) {
		if err := s.onboard(ctx, userID); err != nil {
			return err
		}
	}

	fmt.Fprintf(s.out, "\nAI Assistant Ready. Type '%s' to quit.\n\n", constants.ExitCommand)

	for {
		message, err := s.prompt("You: ")
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if strings.EqualFold(message, constants.ExitCommand) {
			return nil
		}
		if message == "" {
			continue
		}
		if s.handleCommand(message) {
			continue
		}

		if s.baseline {
			fmt.Fprintf(s.out, "\n%s\n", headerStyle.Render("--- BASELINE ---"))
			answer, err := s.orch.Baseline(ctx, message)
			if err != nil {
				fmt.Fprintln(s.out, errorStyle.Render("Error: "+err.Error()))
			} else {
				fmt.Fprintln(s.out, answer)
			}
		}

		fmt.Fprintf(s.out, "\n%s\n", headerStyle.Render("--- CONTEXT GRAPH ---"))
		result, err := s.orch.RunTurn(ctx, userID, message)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintln(s.out, errorStyle.Render("Error: "+err.Error()))
			fmt.Fprintln(s.out)
			continue
		}
		fmt.Fprintf(s.out, "%s %s\n", aiStyle.Render("AI:"), result.Content)
		fmt.Fprintln(s.out, dimStyle.Render(fmt.Sprintf("(%d context nodes, %d knowledge snippets)",
			len(result.Context.Nodes), len(result.RetrievedDocs))))
		fmt.Fprintln(s.out)

		s.orch.Graph().LogDebug(s.log)
	}
}

// onboard asks for the profile until it is complete enough to store
func (s *session) onboard(ctx context.Context, userID string) error {
	for {
		profile, err := s.askProfile()
		if err != nil {
			return err
		}
		_, err = s.orch.EnsureUser(ctx, userID, profile)
		if err == nil {
			return nil
		}
		var invalid state.ErrInvalidProfile
		if !errors.As(err, &invalid) {
			return err
		}
		fmt.Fprintln(s.out, errorStyle.Render(fmt.Sprintf("A %s is required, please try again.", invalid.Field)))
	}
}

// handleCommand runs slash commands and reports whether message was one
func (s *session) handleCommand(message string) bool {
	fields := strings.Fields(message)
	if len(fields) == 0 || fields[0] != constants.ModelCommand {
		return false
	}

	if len(fields) == 1 {
		model := s.orch.Model()
		if model == "" {
			model = "(fixed)"
		}
		fmt.Fprintln(s.out, dimStyle.Render("Model: "+model))
		return true
	}
	if s.orch.SetModel(fields[1]) {
		fmt.Fprintln(s.out, dimStyle.Render("Model switched to "+fields[1]))
	} else {
		fmt.Fprintln(s.out, errorStyle.Render("The completion model cannot be changed"))
	}
	return true
}

func (s *session) askProfile() (state.Profile, error) {
	var p state.Profile
	questions := []struct {
		label string
		dst   *string
	}{
		{"Enter user name: ", &p.Name},
		{fmt.Sprintf("Enter role (%s): ", strings.Join(constants.OnboardingRoles, "/")), &p.Role},
		{"Enter current goal: ", &p.Goal},
		{"Enter current screen: ", &p.Screen},
		{"Enter course name: ", &p.Course},
	}

	for _, q := range questions {
		v, err := s.prompt(q.label)
		if err != nil {
			return p, err
		}
		*q.dst = v
	}
	return p, nil
}

// prompt writes label and reads one trimmed line
func (s *session) prompt(label string) (string, error) {
	fmt.Fprint(s.out, label)
	if !s.in.Scan() {
		if err := s.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(s.in.Text()), nil
}
