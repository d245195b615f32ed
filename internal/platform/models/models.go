package models

// Platform roles, ordered user < admin < super_admin.
const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

const AuthProviderLocal = "local"

// Organization member roles.
const (
	MemberRoleMember = "member"
	MemberRoleAdmin  = "admin"
)

type User struct {
	ID           string  `json:"id"`
	Username     string  `json:"username"`
	Email        string  `json:"email"`
	PasswordHash *string `json:"-"`
	AvatarURL    *string `json:"avatar_url,omitempty"`
	Role         string  `json:"role"`
	IsSuspended  bool    `json:"is_suspended"`
	AuthProvider string  `json:"auth_provider"`
	ProviderID   *string `json:"-"`
	CreatedAt    int64   `json:"created_at"`
	UpdatedAt    int64   `json:"updated_at"`
}

// UserSummary is the public projection of a user embedded in other records.
type UserSummary struct {
	ID        string  `json:"id"`
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

type Organization struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Slug      string  `json:"slug"`
	LogoURL   *string `json:"logo_url,omitempty"`
	CreatedAt int64   `json:"created_at"`
	UpdatedAt int64   `json:"updated_at"`

	// Role of the requesting user, when the organization is read on their behalf.
	Role string `json:"role,omitempty"`
}

type OrganizationMember struct {
	OrganizationID string  `json:"organization_id"`
	UserID         string  `json:"user_id"`
	Username       string  `json:"username"`
	Email          string  `json:"email"`
	AvatarURL      *string `json:"avatar_url,omitempty"`
	Role           string  `json:"role"`
	JoinedAt       int64   `json:"joined_at"`
}

type Board struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	BackgroundColor string  `json:"background_color"`
	BackgroundImage *string `json:"background_image,omitempty"`
	OwnerID         string  `json:"owner_id"`
	OrganizationID  *string `json:"organization_id,omitempty"`
	CreatedAt       int64   `json:"created_at"`
	UpdatedAt       int64   `json:"updated_at"`

	IsStarred bool     `json:"is_starred"`
	Labels    []*Label `json:"labels,omitempty"`
	Lists     []*List  `json:"lists,omitempty"`
}

type Label struct {
	ID      string `json:"id"`
	BoardID string `json:"board_id"`
	Name    string `json:"name"`
	Color   string `json:"color"`
}

type List struct {
	ID        string  `json:"id"`
	BoardID   string  `json:"board_id"`
	Title     string  `json:"title"`
	Position  float64 `json:"position"`
	CreatedAt int64   `json:"created_at"`
	UpdatedAt int64   `json:"updated_at"`

	Cards []*Card `json:"cards"`
}

type Card struct {
	ID          string  `json:"id"`
	ListID      string  `json:"list_id"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	DueDate     *int64  `json:"due_date,omitempty"`
	Position    float64 `json:"position"`
	CreatedAt   int64   `json:"created_at"`
	UpdatedAt   int64   `json:"updated_at"`

	Labels     []*Label       `json:"labels"`
	Members    []*UserSummary `json:"members"`
	Checklists []*Checklist   `json:"checklists,omitempty"`
}

type Checklist struct {
	ID        string  `json:"id"`
	CardID    string  `json:"card_id"`
	Title     string  `json:"title"`
	Position  float64 `json:"position"`
	CreatedAt int64   `json:"created_at"`

	Items []*ChecklistItem `json:"items"`
}

type ChecklistItem struct {
	ID          string  `json:"id"`
	ChecklistID string  `json:"checklist_id"`
	Content     string  `json:"content"`
	IsCompleted bool    `json:"is_completed"`
	Position    float64 `json:"position"`
	CreatedAt   int64   `json:"created_at"`
}
