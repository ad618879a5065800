package models

// Project represents a planner project
type Project struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	CreatedAt   Timestamp   `json:"createdAt"`
	Lists       []BoardList `json:"lists,omitempty"`
}

// BoardList is an ordered column of tasks within a project
type BoardList struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Position  int       `json:"position"`
	CreatedAt Timestamp `json:"createdAt"`
	Tasks     []Task    `json:"tasks"`
}

// Task represents a single task on the board
type Task struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	StartDate     *Date     `json:"startDate,omitempty"`
	DueDate       *Date     `json:"dueDate,omitempty"`
	CreatedAt     Timestamp `json:"createdAt"`
	Position      int       `json:"position"`
	ListID        int64     `json:"listId"`
	DependencyIDs []int64   `json:"dependencyIds"`
}

// Dependency is a directed edge: TaskID depends on DependsOnID
type Dependency struct {
	ID          int64 `json:"id"`
	TaskID      int64 `json:"taskId"`
	DependsOnID int64 `json:"dependsOnId"`
}

// Role is a collaborator role within a project
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// Collaborator associates a user with a project
type Collaborator struct {
	ID                int64     `json:"id"`
	ProjectID         int64     `json:"projectId"`
	ProjectName       string    `json:"projectName"`
	UserID            int64     `json:"userId"`
	Username          string    `json:"username"`
	UserEmail         string    `json:"userEmail"`
	Role              Role      `json:"role"`
	InvitedByUsername string    `json:"invitedByUsername"`
	JoinedAt          Timestamp `json:"joinedAt"`
}

// InvitationStatus tracks the lifecycle of an invitation
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationDeclined InvitationStatus = "DECLINED"
	InvitationExpired  InvitationStatus = "EXPIRED"
)

// Invitation is an offer to join a project
type Invitation struct {
	ID                int64            `json:"id"`
	ProjectID         int64            `json:"projectId"`
	ProjectName       string           `json:"projectName"`
	InvitedByUsername string           `json:"invitedByUsername"`
	InvitedEmail      string           `json:"invitedEmail"`
	Role              Role             `json:"role"`
	Status            InvitationStatus `json:"status"`
	CreatedAt         Timestamp        `json:"createdAt"`
	ExpiresAt         Timestamp        `json:"expiresAt"`
	RespondedAt       *Timestamp       `json:"respondedAt,omitempty"`
}

// ActivityType classifies an activity log entry
type ActivityType string

const (
	ActivityTaskCreated             ActivityType = "TASK_CREATED"
	ActivityTaskUpdated             ActivityType = "TASK_UPDATED"
	ActivityTaskDeleted             ActivityType = "TASK_DELETED"
	ActivityTaskMoved               ActivityType = "TASK_MOVED"
	ActivityListCreated             ActivityType = "LIST_CREATED"
	ActivityListUpdated             ActivityType = "LIST_UPDATED"
	ActivityListDeleted             ActivityType = "LIST_DELETED"
	ActivityListMoved               ActivityType = "LIST_MOVED"
	ActivityProjectUpdated          ActivityType = "PROJECT_UPDATED"
	ActivityCollaboratorInvited     ActivityType = "COLLABORATOR_INVITED"
	ActivityCollaboratorJoined      ActivityType = "COLLABORATOR_JOINED"
	ActivityCollaboratorLeft        ActivityType = "COLLABORATOR_LEFT"
	ActivityCollaboratorRoleChanged ActivityType = "COLLABORATOR_ROLE_CHANGED"
	ActivityDependencyAdded         ActivityType = "DEPENDENCY_ADDED"
	ActivityDependencyRemoved       ActivityType = "DEPENDENCY_REMOVED"
)

// Activity is an immutable log entry describing a mutation
type Activity struct {
	ID           int64        `json:"id"`
	ProjectID    int64        `json:"projectId"`
	Username     string       `json:"username"`
	UserEmail    string       `json:"userEmail"`
	ActivityType ActivityType `json:"activityType"`
	EntityType   string       `json:"entityType"`
	EntityID     int64        `json:"entityId"`
	EntityName   string       `json:"entityName"`
	Action       string       `json:"action"`
	Description  string       `json:"description"`
	OldValues    string       `json:"oldValues"`
	NewValues    string       `json:"newValues"`
	Timestamp    Timestamp    `json:"timestamp"`
}

// ActivityPage is one page of a paginated activity query
type ActivityPage struct {
	Content       []Activity `json:"content"`
	TotalElements int64      `json:"totalElements"`
	TotalPages    int        `json:"totalPages"`
	Number        int        `json:"number"`
	Size          int        `json:"size"`
}

// User is the cached profile of the signed-in user
type User struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"isAdmin"`
}

// AuthResponse is returned by a successful login
type AuthResponse struct {
	Token    string `json:"token"`
	Type     string `json:"type"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"isAdmin"`
}

// FlattenTasks returns every task of every list, in board order
func FlattenTasks(lists []BoardList) []Task {
	var tasks []Task
	for _, l := range lists {
		tasks = append(tasks, l.Tasks...)
	}
	return tasks
}
