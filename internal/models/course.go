package models

import "time"

// Section is an ordered unit of course content.
type Section struct {
	Title    string `json:"title"`
	MediaRef string `json:"mediaRef"`
	IsFree   bool   `json:"isFree"`
}

// Course is a catalog entry. EnrolledCount is derived from the enrollment ledger on read.
type Course struct {
	ID            string       `db:"id" json:"id"`
	Title         string       `db:"title" json:"title"`
	Description   string       `db:"description" json:"description"`
	Category      string       `db:"category" json:"category"`
	Price         float64      `db:"price" json:"price"`
	OwnerID       string       `db:"owner_id" json:"ownerId"`
	Sections      SectionList  `db:"sections" json:"sections"`
	EnrolledCount int          `db:"enrolled_count" json:"enrolledCount"`
	CreatedAt     time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updatedAt"`
	Owner         *UserSummary `db:"-" json:"owner,omitempty"`
}

// CourseDetail is a course row joined with its owner summary.
type CourseDetail struct {
	Course
	OwnerName  *string `db:"owner_name" json:"-"`
	OwnerEmail *string `db:"owner_email" json:"-"`
}

// Resolve fills the embedded owner summary from the joined columns.
func (d *CourseDetail) Resolve() Course {
	course := d.Course
	if d.OwnerName != nil {
		summary := &UserSummary{ID: course.OwnerID, Name: *d.OwnerName}
		if d.OwnerEmail != nil {
			summary.Email = *d.OwnerEmail
		}
		course.Owner = summary
	}
	if course.Sections == nil {
		course.Sections = SectionList{}
	}
	return course
}

// CourseFilter narrows catalog listings.
type CourseFilter struct {
	Keyword string
	OwnerID string
}

// CoursePatch carries a partial update; nil fields are left unchanged.
type CoursePatch struct {
	Title       *string
	Description *string
	Category    *string
	Price       *float64
}

// Apply copies the set fields onto the course.
func (p CoursePatch) Apply(c *Course) {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.Category != nil {
		c.Category = *p.Category
	}
	if p.Price != nil {
		c.Price = *p.Price
	}
}
