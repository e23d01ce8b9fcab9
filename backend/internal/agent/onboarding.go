package agent

import (
	"context"

	"contextpilot/backend/internal/constants"
	"contextpilot/backend/internal/graph"
	"contextpilot/backend/internal/state"
	apperrors "contextpilot/backend/pkg/errors"
	"go.uber.org/zap"
)

// EnsureUser creates the user's profile subgraph on first contact:
//
//	user -HAS_ROLE-> role_<id>
//	user -WORKING_ON-> goal_<id> -RELATED_TO-> course_<id>
//	user -CURRENT_SCREEN-> screen_<id>
//
// It reports whether anything was created. Existing users are left untouched.
// If a derived id is already taken, nothing is written.
func (o *Orchestrator) EnsureUser(ctx context.Context, userID string, profile state.Profile) (bool, error) {
	if existing, ok := o.graph.Node(userID); ok && existing.Type != "" {
		if existing.Type != constants.NodeTypeUser {
			return false, apperrors.NewGraphTypeConflict(userID, existing.Type, constants.NodeTypeUser)
		}
		return false, nil
	}
	if err := profile.Validate(); err != nil {
		return false, err
	}

	roleID := constants.RolePrefix + userID
	goalID := constants.GoalPrefix + userID
	screenID := constants.ScreenPrefix + userID
	courseID := constants.CoursePrefix + userID

	nodes := []struct {
		id       string
		nodeType string
		attrs    graph.Attributes
	}{
		{userID, constants.NodeTypeUser, graph.NewAttributes(graph.Attr("name", graph.String(profile.Name)))},
		{roleID, constants.NodeTypeRole, graph.NewAttributes(graph.Attr("value", graph.String(profile.Role)))},
		{goalID, constants.NodeTypeGoal, graph.NewAttributes(graph.Attr("title", graph.String(profile.Goal)))},
		{screenID, constants.NodeTypeScreen, graph.NewAttributes(graph.Attr("name", graph.String(profile.Screen)))},
		{courseID, constants.NodeTypeCourse, graph.NewAttributes(graph.Attr("name", graph.String(profile.Course)))},
	}

	// Profile ids are derived from the user id and may already belong to
	// another user's node; check them all before writing anything.
	for _, n := range nodes[1:] {
		existing, ok := o.graph.Node(n.id)
		if !ok || existing.Type == "" {
			continue
		}
		if existing.Type != n.nodeType {
			return false, apperrors.NewGraphTypeConflict(n.id, existing.Type, n.nodeType)
		}
		return false, apperrors.NewGraphNodeExists(n.id)
	}

	for _, n := range nodes {
		if err := o.graph.AddNode(n.id, n.nodeType, n.attrs); err != nil {
			return false, err
		}
	}

	edges := [][3]string{
		{userID, roleID, constants.RelationHasRole},
		{userID, goalID, constants.RelationWorkingOn},
		{userID, screenID, constants.RelationCurrentScreen},
		{goalID, courseID, constants.RelationRelatedTo},
	}
	for _, e := range edges {
		if _, err := o.graph.AddEdge(e[0], e[1], e[2]); err != nil {
			return false, err
		}
	}

	o.logger.Info("User onboarded",
		zap.String("user_id", userID),
		zap.String("role", profile.Role),
	)
	return true, nil
}
