package models

import (
	"time"

	"github.com/lib/pq"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin       UserRole = "admin"
	RoleDistributor UserRole = "distributor"
	RoleUser        UserRole = "user"
)

// User represents an application user stored in the users table.
// AssignedRegions holds region IDs; orphaned references stay valid
// strings after a region is deleted.
type User struct {
	ID                  string         `db:"id" json:"id"`
	Email               string         `db:"email" json:"email"`
	PasswordHash        string         `db:"password_hash" json:"-"`
	FullName            string         `db:"full_name" json:"full_name"`
	Role                UserRole       `db:"role" json:"role"`
	DefaultLockInMonths int            `db:"default_lock_in_months" json:"default_lock_in_months"`
	AssignedRegions     pq.StringArray `db:"assigned_regions" json:"assigned_regions"`
	Active              bool           `db:"active" json:"active"`
	LastLogin           *time.Time     `db:"last_login" json:"last_login,omitempty"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
