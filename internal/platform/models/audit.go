package models

type ActivityEntry struct {
	ID             string                 `json:"id"`
	UserID         string                 `json:"user_id"`
	OrganizationID *string                `json:"organization_id,omitempty"`
	BoardID        *string                `json:"board_id,omitempty"`
	EntityType     string                 `json:"entity_type"`
	EntityID       string                 `json:"entity_id"`
	ActionType     string                 `json:"action_type"`
	Details        map[string]interface{} `json:"details"`
	CreatedAt      int64                  `json:"created_at"`

	Username  string  `json:"username,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

type AdminAuditEntry struct {
	ID               string                 `json:"id"`
	AdminUserID      string                 `json:"admin_user_id"`
	ActionType       string                 `json:"action_type"`
	TargetEntityType string                 `json:"target_entity_type"`
	TargetEntityID   string                 `json:"target_entity_id"`
	Details          map[string]interface{} `json:"details"`
	CreatedAt        int64                  `json:"created_at"`

	AdminUsername string `json:"admin_username,omitempty"`
	AdminEmail    string `json:"admin_email,omitempty"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// NewPagination derives the page count for total rows at the given page size.
func NewPagination(page, limit int, total int64) Pagination {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}
