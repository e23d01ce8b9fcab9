package state

import (
	"fmt"
	"strings"

	"contextpilot/backend/internal/graph"
)

// TurnState is the value threaded through the turn pipeline. Each step
// fills in its own fields: retrieval sets Context and RetrievedDocs,
// generation sets Prompt and Response, storage sets MessageID and ResponseID.
type TurnState struct {
	UserID        string             `json:"user_id"`
	UserMessage   string             `json:"user_message"`
	Context       graph.Neighborhood `json:"context"`
	RetrievedDocs []string           `json:"retrieved_docs"`
	Prompt        string             `json:"-"`
	Response      string             `json:"response"`
	MessageID     string             `json:"message_id,omitempty"`
	ResponseID    string             `json:"response_id,omitempty"`
}

// NewTurnState starts a pipeline run for one user message
func NewTurnState(userID, message string) *TurnState {
	return &TurnState{
		UserID:        userID,
		UserMessage:   message,
		RetrievedDocs: []string{},
	}
}

// Validate checks if the TurnState can enter the pipeline
func (s *TurnState) Validate() error {
	if strings.TrimSpace(s.UserID) == "" {
		return ErrInvalidTurnState{Field: "user_id", Reason: "cannot be empty"}
	}
	if strings.TrimSpace(s.UserMessage) == "" {
		return ErrInvalidTurnState{Field: "user_message", Reason: "cannot be empty"}
	}
	return nil
}

// Profile is what onboarding collects about a new user
type Profile struct {
	Name   string `json:"name"`
	Role   string `json:"role"`
	Goal   string `json:"goal"`
	Screen string `json:"screen"`
	Course string `json:"course"`
}

// Validate checks if the Profile is complete enough to onboard
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrInvalidProfile{Field: "name"}
	}
	if strings.TrimSpace(p.Role) == "" {
		return ErrInvalidProfile{Field: "role"}
	}
	return nil
}

// Errors

type ErrInvalidTurnState struct {
	Field  string
	Reason string
}

func (e ErrInvalidTurnState) Error() string {
	return fmt.Sprintf("invalid turn state: %s - %s", e.Field, e.Reason)
}

type ErrInvalidProfile struct {
	Field string
}

func (e ErrInvalidProfile) Error() string {
	return fmt.Sprintf("invalid profile: %s is required", e.Field)
}
