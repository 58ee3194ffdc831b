package models

import "time"

// ActivityAction enumerates audited operations.
type ActivityAction string

const (
	ActionCreateCourse ActivityAction = "CREATE_COURSE"
	ActionUpdateCourse ActivityAction = "UPDATE_COURSE"
	ActionDeleteCourse ActivityAction = "DELETE_COURSE"
	ActionAddSection   ActivityAction = "ADD_SECTION"
	ActionEnrollCourse ActivityAction = "ENROLL_COURSE"
)

// ActivityLog is an immutable audit record. The actor is referenced by id only.
type ActivityLog struct {
	ID            string         `db:"id" json:"id"`
	ActorID       string         `db:"actor_id" json:"actorId"`
	Action        ActivityAction `db:"action" json:"action"`
	Details       string         `db:"details" json:"details"`
	SourceAddress string         `db:"source_address" json:"sourceAddress"`
	CreatedAt     time.Time      `db:"created_at" json:"createdAt"`
}

// ActivityEntry is an audit record joined with the actor's current account state.
// Actor is nil when the actor can no longer be resolved.
type ActivityEntry struct {
	ActivityLog
	Actor *ActivityActor `json:"user"`
}

// ActivityActor is the actor view embedded in audit listings.
type ActivityActor struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Role  UserRole `json:"role"`
}
