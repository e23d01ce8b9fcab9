package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"contextpilot/backend/internal/state"
)

// buildTurnPrompt renders the personalized prompt from the retrieved context
func buildTurnPrompt(st *state.TurnState) (string, error) {
	contextJSON, err := json.MarshalIndent(st.Context, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal user context: %w", err)
	}

	knowledge := "(none)"
	if len(st.RetrievedDocs) > 0 {
		var sb strings.Builder
		for i, doc := range st.RetrievedDocs {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString("- ")
			sb.WriteString(doc)
		}
		knowledge = sb.String()
	}

	return fmt.Sprintf(`You are an intelligent SaaS AI assistant.

User Message:
%s

User Context Graph:
%s

Relevant Knowledge:
%s

Generate a helpful, personalized response.
`, st.UserMessage, string(contextJSON), knowledge), nil
}

// buildBaselinePrompt renders the context-free prompt
func buildBaselinePrompt(message string) string {
	return fmt.Sprintf(`You are an AI assistant for an education SaaS platform.
User says: %s

Respond helpfully.
`, message)
}
