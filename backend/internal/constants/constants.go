package constants

// Node types
const (
	NodeTypeUser     = "User"
	NodeTypeRole     = "Role"
	NodeTypeGoal     = "Goal"
	NodeTypeScreen   = "Screen"
	NodeTypeCourse   = "Course"
	NodeTypeMessage  = "Message"
	NodeTypeResponse = "Response"
)

// Relation labels
const (
	RelationHasRole       = "HAS_ROLE"
	RelationWorkingOn     = "WORKING_ON"
	RelationCurrentScreen = "CURRENT_SCREEN"
	RelationRelatedTo     = "RELATED_TO"
	RelationSent          = "SENT"
	RelationGenerated     = "GENERATED"
)

// Node id prefixes. Onboarding nodes are "<prefix><userID>", message and
// response nodes are "<prefix><uuid>".
const (
	RolePrefix     = "role_"
	GoalPrefix     = "goal_"
	ScreenPrefix   = "screen_"
	CoursePrefix   = "course_"
	MessagePrefix  = "msg_"
	ResponsePrefix = "res_"
)

// Chat constants
const (
	// ExitCommand ends the interactive chat loop (case-insensitive)
	ExitCommand = "exit"
	// ModelCommand shows or switches the completion model
	ModelCommand = "/model"
)

// Roles offered during onboarding
var OnboardingRoles = []string{"Student", "Parent", "Counselor"}

// DefaultKnowledge seeds the vector index when no knowledge source is configured
var DefaultKnowledge = []string{
	"Assignments require regression, classification, and evaluation.",
	"Students should review lectures, datasets, and deadlines.",
}
