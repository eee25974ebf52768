package rbac

type Role string
type Action string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
	RoleNone   Role = "none"
)

const (
	ActionViewBoard        Action = "view-board"
	ActionEditBoard        Action = "edit-board"
	ActionAddTask          Action = "add-task"
	ActionEditTask         Action = "edit-task"
	ActionMoveTask         Action = "move-task"
	ActionDeleteTask       Action = "delete-task"
	ActionAddComment       Action = "add-comment"
	ActionEditComment      Action = "edit-comment"
	ActionDeleteComment    Action = "delete-comment"
	ActionAddAttachment    Action = "add-attachment"
	ActionDeleteAttachment Action = "delete-attachment"
	ActionInviteMember     Action = "invite-member"
	ActionChangeRole       Action = "change-role"
	ActionRemoveMember     Action = "remove-member"
)

// Actions enumerates every known action, in a stable order.
var Actions = []Action{
	ActionViewBoard,
	ActionEditBoard,
	ActionAddTask,
	ActionEditTask,
	ActionMoveTask,
	ActionDeleteTask,
	ActionAddComment,
	ActionEditComment,
	ActionDeleteComment,
	ActionAddAttachment,
	ActionDeleteAttachment,
	ActionInviteMember,
	ActionChangeRole,
	ActionRemoveMember,
}

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleEditor:
		switch action {
		case ActionViewBoard,
			ActionAddTask, ActionEditTask, ActionMoveTask, ActionDeleteTask,
			ActionAddComment, ActionEditComment, ActionDeleteComment,
			ActionAddAttachment, ActionDeleteAttachment:
			return true
		}
		return false
	case RoleViewer:
		return action == ActionViewBoard || action == ActionAddComment
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleAdmin, RoleEditor, RoleViewer:
		return Role(role)
	default:
		return RoleNone
	}
}
