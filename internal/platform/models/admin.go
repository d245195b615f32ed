package models

type UserDetail struct {
	*User
	OrganizationCount int64 `json:"organization_count"`
	BoardCount        int64 `json:"board_count"`
}

type OrganizationSummary struct {
	*Organization
	MemberCount int64 `json:"member_count"`
	BoardCount  int64 `json:"board_count"`
}

type OrganizationDetail struct {
	*OrganizationSummary
	Members []*OrganizationMember `json:"members"`
}

type GrowthPoint struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type PlatformAnalytics struct {
	TotalUsers         int64         `json:"total_users"`
	ActiveUsers        int64         `json:"active_users"`
	SuspendedUsers     int64         `json:"suspended_users"`
	TotalOrganizations int64         `json:"total_organizations"`
	TotalBoards        int64         `json:"total_boards"`
	TotalCards         int64         `json:"total_cards"`
	RecentSignups      int64         `json:"recent_signups"`
	UserGrowth         []GrowthPoint `json:"user_growth"`
}
