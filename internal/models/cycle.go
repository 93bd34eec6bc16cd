package models

import "time"

// CollectionCycle is one round of notebook collection for a class/subject pair.
// At most one cycle per pair is active at a time.
type CollectionCycle struct {
	ID        string     `db:"id" json:"id"`
	ClassID   string     `db:"class_id" json:"class_id"`
	SubjectID string     `db:"subject_id" json:"subject_id"`
	StartedAt time.Time  `db:"started_at" json:"started_at"`
	DueAt     *time.Time `db:"due_at" json:"due_at,omitempty"`
	Active    bool       `db:"active" json:"active"`
	EndedAt   *time.Time `db:"ended_at" json:"ended_at,omitempty"`
	CreatedBy *string    `db:"created_by" json:"created_by,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// CycleDetail enriches a cycle with class and subject names.
type CycleDetail struct {
	CollectionCycle
	ClassName   string `db:"class_name" json:"class_name"`
	SubjectName string `db:"subject_name" json:"subject_name"`
}
