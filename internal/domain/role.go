package domain

import "time"

// Role is an entry of the role catalog.
type Role struct {
	RoleID int64  `json:"id" dynamodbav:"role_id"`
	Name   string `json:"name" dynamodbav:"name"`
	Enable bool   `json:"enable" dynamodbav:"enable"`
}

// Built-in roles seeded at bootstrap.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"

	RoleIDAdmin int64 = 1
	RoleIDUser  int64 = 2
)

// RoleAssignment associates a principal with a role.
// AssignmentID is a ULID, so assignments sort by creation time.
type RoleAssignment struct {
	PrincipalID  int64     `json:"principal_id" dynamodbav:"principal_id"`
	AssignmentID string    `json:"id" dynamodbav:"assignment_id"`
	RoleID       int64     `json:"role_id" dynamodbav:"role_id"`
	StateID      int64     `json:"state_id" dynamodbav:"state_id"`
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
}
