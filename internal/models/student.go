package models

import "time"

// Student represents a learner whose notebook submissions are tracked.
type Student struct {
	ID            string    `db:"id" json:"id"`
	ScholarNo     string    `db:"scholar_no" json:"scholar_no"`
	RollNo        string    `db:"roll_no" json:"roll_no"`
	FullName      string    `db:"full_name" json:"full_name"`
	GuardianName  string    `db:"guardian_name" json:"guardian_name"`
	GuardianPhone *string   `db:"guardian_phone" json:"guardian_phone,omitempty"`
	GuardianEmail *string   `db:"guardian_email" json:"guardian_email,omitempty"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// StudentDetail contains student information with current class context.
type StudentDetail struct {
	Student
	CurrentClassID   *string    `db:"current_class_id" json:"current_class_id,omitempty"`
	CurrentClassName *string    `db:"current_class_name" json:"current_class_name,omitempty"`
	JoinedAt         *time.Time `db:"joined_at" json:"joined_at,omitempty"`
}

// ClassHistoryEntry is one append-only row of a student's class membership log.
// The latest entry by StartedAt is the current class.
type ClassHistoryEntry struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	ClassName string    `db:"class_name" json:"class_name"`
	StartedAt time.Time `db:"started_at" json:"started_at"`
	ChangedBy *string   `db:"changed_by" json:"changed_by,omitempty"`
}
