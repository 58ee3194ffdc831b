package models

import (
	"time"

	"github.com/lib/pq"
)

// Progress tracks completion within an enrollment. It is stored but not computed by the API.
type Progress struct {
	CompletedSectionRefs []string `json:"completedSections"`
	IsCompleted          bool     `json:"isCompleted"`
}

// Enrollment is an append-only ledger entry; at most one exists per (student, course).
type Enrollment struct {
	ID          string         `db:"id" json:"id"`
	StudentID   string         `db:"student_id" json:"studentId"`
	CourseID    string         `db:"course_id" json:"courseId"`
	EnrolledAt  time.Time      `db:"enrolled_at" json:"enrolledAt"`
	Completed   pq.StringArray `db:"completed_sections" json:"-"`
	IsCompleted bool           `db:"is_completed" json:"-"`
}

// Progress returns the progress view of the enrollment.
func (e Enrollment) Progress() Progress {
	refs := e.Completed
	if refs == nil {
		refs = []string{}
	}
	return Progress{CompletedSectionRefs: refs, IsCompleted: e.IsCompleted}
}

// EnrolledCourse pairs a ledger entry with a snapshot of the course and its owner.
type EnrolledCourse struct {
	Enrollment Enrollment `json:"enrollment"`
	Progress   Progress   `json:"progress"`
	Course     Course     `json:"course"`
}
