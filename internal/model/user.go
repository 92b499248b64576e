package model

// User is a credential record. Regular users own one task collection;
// admin accounts use the same record in a separate namespace and own no
// tasks.
type User struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}

// Role names carried inside tokens.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// UserSummary is the admin listing row for one user.
type UserSummary struct {
	Username  string `json:"username"`
	TaskCount int    `json:"taskCount"`
}

// DashboardStats aggregates task counts over every user.
type DashboardStats struct {
	TotalUsers     int `json:"totalUsers"`
	TotalTasks     int `json:"totalTasks"`
	CompletedTasks int `json:"completedTasks"`
	ActiveTasks    int `json:"activeTasks"`
}

// Dashboard is the admin overview.
type Dashboard struct {
	Stats DashboardStats `json:"stats"`
	Users []UserSummary  `json:"users"`
}
