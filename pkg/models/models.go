package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type Tenant struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type User struct {
	ID            int64     `json:"id" db:"id"`
	TenantID      int64     `json:"tenant_id" db:"tenant_id"`
	Username      string    `json:"username" db:"username"`
	IsTenantAdmin bool      `json:"is_tenant_admin" db:"is_tenant_admin"`
	APIKey        *string   `json:"api_key,omitempty" db:"api_key"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// CaseStatus follows the case lifecycle Draft→Intake→Active→Review→Closed→Archived.
type CaseStatus string

const (
	CaseStatusDraft    CaseStatus = "draft"
	CaseStatusIntake   CaseStatus = "intake"
	CaseStatusActive   CaseStatus = "active"
	CaseStatusReview   CaseStatus = "review"
	CaseStatusClosed   CaseStatus = "closed"
	CaseStatusArchived CaseStatus = "archived"
)

// IntakeRecord is the structured intake payload collected before plan
// generation. It is stored as a JSON blob on the case row and must round-trip
// exactly.
type IntakeRecord struct {
	DeceasedName         string `json:"deceased_name"`
	DeceasedAt           string `json:"deceased_at,omitempty"`
	HasWill              bool   `json:"has_will"`
	RequiresLegalSupport bool   `json:"requires_legal_support"`
	EstateValueEstimate  int64  `json:"estate_value_estimate,omitempty"`
	Notes                string `json:"notes,omitempty"`
}

type Case struct {
	ID                int64         `json:"id" db:"id"`
	TenantID          int64         `json:"tenant_id" db:"tenant_id"`
	Title             string        `json:"title" db:"title"`
	Status            CaseStatus    `json:"status" db:"status"`
	Intake            *IntakeRecord `json:"intake,omitempty" db:"intake_json"`
	IntakeCompletedAt *time.Time    `json:"intake_completed_at,omitempty" db:"intake_completed_at"`
	CreatedBy         int64         `json:"created_by" db:"created_by"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at" db:"updated_at"`
}

// CaseRole is the closed role hierarchy for case access. Roles are totally
// ordered: Reader < Editor < Manager. Tenant admins act as Manager on every
// case of their tenant.
type CaseRole string

const (
	RoleNone    CaseRole = ""
	RoleReader  CaseRole = "reader"
	RoleEditor  CaseRole = "editor"
	RoleManager CaseRole = "manager"
)

var roleRank = map[CaseRole]int{
	RoleNone:    0,
	RoleReader:  1,
	RoleEditor:  2,
	RoleManager: 3,
}

// Rank returns the position of the role in the total order. Unknown roles
// rank below Reader.
func (r CaseRole) Rank() int {
	return roleRank[r]
}

// Valid reports whether the role is one of the known case roles.
func (r CaseRole) Valid() bool {
	switch r {
	case RoleReader, RoleEditor, RoleManager:
		return true
	}
	return false
}

type CaseMember struct {
	ID        int64     `json:"id" db:"id"`
	CaseID    int64     `json:"case_id" db:"case_id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Role      CaseRole  `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Setting represents a tenant-level key/value configuration entry.
type Setting struct {
	ID          int64     `json:"id" db:"id"`
	TenantID    int64     `json:"tenant_id" db:"tenant_id"`
	Key         string    `json:"key" db:"key"`
	Value       string    `json:"value" db:"value"`
	Description *string   `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type Webhook struct {
	ID             int64     `json:"id" db:"id"`
	TenantID       int64     `json:"tenant_id" db:"tenant_id"`
	Name           string    `json:"name" db:"name"`
	URL            string    `json:"url" db:"url"`
	Secret         string    `json:"secret,omitempty" db:"secret"`
	Enabled        bool      `json:"enabled" db:"enabled"`
	Events         string    `json:"events" db:"events"` // JSON array of event names, "*" matches all
	TimeoutSeconds int       `json:"timeout_seconds" db:"timeout_seconds"`
	RetryAttempts  int       `json:"retry_attempts" db:"retry_attempts"`
	CreatedBy      int64     `json:"created_by" db:"created_by"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

type WebhookDelivery struct {
	ID             int64      `json:"id" db:"id"`
	DeliveryID     string     `json:"delivery_id" db:"delivery_id"`
	WebhookID      int64      `json:"webhook_id" db:"webhook_id"`
	EventType      string     `json:"event_type" db:"event_type"`
	Payload        string     `json:"payload" db:"payload"`
	Status         string     `json:"status" db:"status"` // pending, success, failed
	HTTPStatusCode *int       `json:"http_status_code,omitempty" db:"http_status_code"`
	ErrorMessage   *string    `json:"error_message,omitempty" db:"error_message"`
	AttemptCount   int        `json:"attempt_count" db:"attempt_count"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// JSONMap handles JSON object serialization for sqlite columns.
type JSONMap map[string]interface{}

func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", value)
	}
}

func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}
