package models

import "time"

// StepStatus is the readiness state of a workflow step.
type StepStatus string

const (
	StepStatusBlocked    StepStatus = "blocked"
	StepStatusReady      StepStatus = "ready"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusComplete   StepStatus = "complete"
)

// Valid reports whether the status is one of the known step statuses.
func (s StepStatus) Valid() bool {
	switch s {
	case StepStatusBlocked, StepStatusReady, StepStatusInProgress, StepStatusComplete:
		return true
	}
	return false
}

// BlockedReasonCode categorizes why a step is blocked by an external cause
// rather than an unmet dependency.
type BlockedReasonCode string

const (
	BlockedReasonEvidenceMissing    BlockedReasonCode = "evidence_missing"
	BlockedReasonPaymentOrBilling   BlockedReasonCode = "payment_or_billing"
	BlockedReasonExternalDependency BlockedReasonCode = "external_dependency"
	BlockedReasonPolicyRestriction  BlockedReasonCode = "policy_restriction"
)

// WorkflowStep is one unit of work in a case's generated plan. StepKey is
// unique within a case and a step never moves between cases.
type WorkflowStep struct {
	ID       int64  `json:"id" db:"id"`
	CaseID   int64  `json:"case_id" db:"case_id"`
	TenantID int64  `json:"tenant_id" db:"tenant_id"`
	StepKey  string `json:"step_key" db:"step_key"`
	Title    string `json:"title" db:"title"`
	Sequence int    `json:"sequence" db:"sequence"`

	Status         StepStatus `json:"status" db:"status"`
	DueDate        *time.Time `json:"due_date,omitempty" db:"due_date"`
	AssignedUserID *int64     `json:"assigned_user_id,omitempty" db:"assigned_user_id"`

	IsReadinessOverridden bool       `json:"is_readiness_overridden" db:"is_readiness_overridden"`
	OverrideRationale     *string    `json:"override_rationale,omitempty" db:"override_rationale"`
	OverrideByUserID      *int64     `json:"override_by_user_id,omitempty" db:"override_by_user_id"`
	OverriddenAt          *time.Time `json:"overridden_at,omitempty" db:"overridden_at"`

	BlockedReasonCode   *BlockedReasonCode `json:"blocked_reason_code,omitempty" db:"blocked_reason_code"`
	BlockedReasonDetail *string            `json:"blocked_reason_detail,omitempty" db:"blocked_reason_detail"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// WorkflowStepDependency is a directed edge: the step identified by StepID
// cannot become Ready until the step identified by DependsOnStepID is
// Complete. Both endpoints belong to the same case and the per-case edge set
// is acyclic by construction.
type WorkflowStepDependency struct {
	ID              int64     `json:"id" db:"id"`
	CaseID          int64     `json:"case_id" db:"case_id"`
	TenantID        int64     `json:"tenant_id" db:"tenant_id"`
	StepID          int64     `json:"step_id" db:"step_id"`
	DependsOnStepID int64     `json:"depends_on_step_id" db:"depends_on_step_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Audit event types emitted by the plan engine.
const (
	EventCasePlanGenerated             = "CasePlanGenerated"
	EventCasePlanReadinessRecalculated = "CasePlanReadinessRecalculated"
	EventCasePlanReadinessOverridden   = "CasePlanReadinessOverridden"
	EventWorkflowTaskStatusUpdated     = "WorkflowTaskStatusUpdated"
	EventWorkflowTaskDueDateSet        = "WorkflowTaskDueDateSet"
	EventCaseIntakeCompleted           = "CaseIntakeCompleted"
	EventCaseMemberRoleAssigned        = "CaseMemberRoleAssigned"
	EventCaseNotificationQueued        = "CaseNotificationQueued"
	EventCaseAccessDenied              = "CaseAccessDenied"
	EventPlaybookApplied               = "PlaybookApplied"
)

// AuditEvent is one immutable row in the append-only audit log. EventID is a
// ULID so rows sort by creation time even across processes.
type AuditEvent struct {
	ID          int64     `json:"id" db:"id"`
	EventID     string    `json:"event_id" db:"event_id"`
	TenantID    int64     `json:"tenant_id" db:"tenant_id"`
	CaseID      int64     `json:"case_id" db:"case_id"`
	EventType   string    `json:"event_type" db:"event_type"`
	ActorUserID int64     `json:"actor_user_id" db:"actor_user_id"`
	Metadata    JSONMap   `json:"metadata,omitempty" db:"metadata"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Playbook is a tenant-configurable alternate step/dependency template. The
// template body is YAML in the shared catalog schema; at most one playbook is
// active per tenant at a time.
type Playbook struct {
	ID        int64     `json:"id" db:"id"`
	TenantID  int64     `json:"tenant_id" db:"tenant_id"`
	Name      string    `json:"name" db:"name"`
	Version   int64     `json:"version" db:"version"`
	Active    bool      `json:"active" db:"active"`
	Template  string    `json:"template" db:"template"`
	CreatedBy int64     `json:"created_by" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UrgencyIndicator is the derived due-date urgency shown in the task
// workspace.
type UrgencyIndicator string

const (
	UrgencyOverdue UrgencyIndicator = "overdue"
	UrgencyDueSoon UrgencyIndicator = "due_soon"
	UrgencyNormal  UrgencyIndicator = "normal"
	UrgencyNone    UrgencyIndicator = "none"
)

// WorkspaceItem is one row of the priority-ordered task workspace view.
// UrgencyIndicator and PriorityRank are derived at read time, never stored.
type WorkspaceItem struct {
	Step             *WorkflowStep    `json:"step"`
	UrgencyIndicator UrgencyIndicator `json:"urgency_indicator"`
	PriorityRank     int              `json:"priority_rank"`
}
