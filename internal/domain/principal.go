package domain

import "time"

// Account types recognised by the login gates.
const (
	AccountTypeBackOffice int64 = 1
	AccountTypeCorporate  int64 = 2
)

// Lifecycle states shared by principals, role assignments and external identifiers.
// Removal is modelled as a transition to StateEliminated; nothing is hard-deleted.
const (
	StateActive     int64 = 1
	StateInactive   int64 = 2
	StateEliminated int64 = 3
)

// Principal is an authenticatable credential holder.
// Email, contact and username are unique among non-eliminated principals.
type Principal struct {
	PrincipalID   int64     `json:"id" dynamodbav:"principal_id"`
	Username      string    `json:"username" dynamodbav:"username"`
	Name          string    `json:"name" dynamodbav:"name"`
	Email         string    `json:"email" dynamodbav:"email"`
	Contact       string    `json:"contact" dynamodbav:"contact"`
	PasswordHash  string    `json:"-" dynamodbav:"password_hash"`
	AccountTypeID int64     `json:"account_type_id" dynamodbav:"account_type_id"`
	StateID       int64     `json:"state_id" dynamodbav:"state_id"`
	CreatedAt     time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt     time.Time `json:"updated" dynamodbav:"updated_at"`
}

// Active reports whether the principal may authenticate.
func (p *Principal) Active() bool {
	return p.StateID == StateActive
}

// AccountType is a coarse classification gating which login flow a principal may use.
type AccountType struct {
	AccountTypeID int64  `json:"id" dynamodbav:"account_type_id"`
	Name          string `json:"name" dynamodbav:"name"`
}

// ExternalIdentifier links a principal to the entity kind it represents in other subsystems.
type ExternalIdentifier struct {
	IdentifierID string    `json:"id" dynamodbav:"identifier_id"`
	PrincipalID  int64     `json:"principal_id" dynamodbav:"principal_id"`
	EntityKind   string    `json:"entity_kind" dynamodbav:"entity_kind"`
	StateID      int64     `json:"state_id" dynamodbav:"state_id"`
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
}

// ProvisionRequest is the administrative input for creating a principal.
type ProvisionRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Name            string `json:"name" validate:"required"`
	Password        string `json:"password" validate:"required,min=6,max=72"`
	Contact         string `json:"contact" validate:"required"`
	AccountTypeID   int64  `json:"account_type_id" validate:"required,oneof=1 2"`
	StateID         int64  `json:"state_id"`
	EntityKind      string `json:"entity_kind" validate:"required"`
	DefaultRoleName string `json:"default_role_name" validate:"required"`
}
