package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin             = "LOGIN"
	AuditActionCycleStart        = "CYCLE_START"
	AuditActionSubmissionStatus  = "SUBMISSION_STATUS"
	AuditActionNotificationSent  = "NOTIFICATION_SENT"
	AuditActionStudentClassMoved = "STUDENT_CLASS_CHANGE"
	AuditActionReportExport      = "REPORT_EXPORT"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// MaxAuditPageSize caps a single audit trail read.
const MaxAuditPageSize = 200

// AuditFilter narrows an audit trail read. Empty fields match everything.
type AuditFilter struct {
	Resource   string
	ResourceID string
	Action     string
	Limit      int
}
