package dto

import (
	"strings"

	"github.com/noah-isme/learnhub-api/internal/models"
)

// SectionInput is a section as submitted by clients. videoUrl is the legacy name for mediaRef.
type SectionInput struct {
	Title    string `json:"title" validate:"required,max=200"`
	MediaRef string `json:"mediaRef" validate:"max=2048"`
	VideoURL string `json:"videoUrl,omitempty" validate:"max=2048"`
	IsFree   bool   `json:"isFree"`
}

// Section returns the canonical section.
func (in SectionInput) Section() models.Section {
	ref := strings.TrimSpace(in.MediaRef)
	if ref == "" {
		ref = strings.TrimSpace(in.VideoURL)
	}
	return models.Section{Title: strings.TrimSpace(in.Title), MediaRef: ref, IsFree: in.IsFree}
}

// CreateCourseRequest is the POST /courses body. educator is the legacy name for ownerId.
type CreateCourseRequest struct {
	Title       string         `json:"title" validate:"required,max=200"`
	Description string         `json:"description" validate:"required"`
	Category    string         `json:"category" validate:"required,max=80"`
	Price       *float64       `json:"price" validate:"omitempty,gte=0"`
	Sections    []SectionInput `json:"sections" validate:"omitempty,dive"`
	OwnerID     string         `json:"ownerId,omitempty"`
	Educator    string         `json:"educator,omitempty"`
}

// Normalize trims text fields and folds legacy names into the canonical ones.
func (r *CreateCourseRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.Category = strings.TrimSpace(r.Category)
	r.OwnerID = strings.TrimSpace(r.OwnerID)
	if r.OwnerID == "" {
		r.OwnerID = strings.TrimSpace(r.Educator)
	}
	r.Educator = ""
}

// Course builds the course owned by ownerID.
func (r CreateCourseRequest) Course(ownerID string) models.Course {
	course := models.Course{
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		OwnerID:     ownerID,
		Sections:    make(models.SectionList, 0, len(r.Sections)),
	}
	if r.Price != nil {
		course.Price = *r.Price
	}
	for _, in := range r.Sections {
		course.Sections = append(course.Sections, in.Section())
	}
	return course
}

// UpdateCourseRequest is the PUT /courses/{id} body; absent fields stay unchanged.
type UpdateCourseRequest struct {
	Title       *string  `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string  `json:"description" validate:"omitempty,min=1"`
	Category    *string  `json:"category" validate:"omitempty,min=1,max=80"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
}

// Patch converts the request into a course patch.
func (r UpdateCourseRequest) Patch() models.CoursePatch {
	return models.CoursePatch{
		Title:       trimmed(r.Title),
		Description: trimmed(r.Description),
		Category:    trimmed(r.Category),
		Price:       r.Price,
	}
}

// Empty reports whether no field was supplied.
func (r UpdateCourseRequest) Empty() bool {
	return r.Title == nil && r.Description == nil && r.Category == nil && r.Price == nil
}

// MediaLinkResponse is returned by the section media endpoint.
type MediaLinkResponse struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expiresAt"`
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
