package memory

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/learnhub-api/internal/models"
	"github.com/noah-isme/learnhub-api/internal/repository"
)

func seedCourse(t *testing.T, store *Store, ownerID, title string) *models.Course {
	t.Helper()
	course := &models.Course{Title: title, Description: "d", Category: "dev", OwnerID: ownerID}
	require.NoError(t, store.Courses().Create(context.Background(), course))
	return course
}

func TestUsersRejectDuplicateEmail(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Users().Create(ctx, &models.User{Name: "A", Email: "A@example.com", Role: models.RoleStudent}))
	err := store.Users().Create(ctx, &models.User{Name: "B", Email: "a@example.com", Role: models.RoleStudent})
	require.ErrorIs(t, err, repository.ErrAlreadyExists)

	user, err := store.Users().FindByEmail(ctx, "a@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, "A", user.Name)

	_, err = store.Users().FindByID(ctx, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCoursesListNewestFirstWithKeyword(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	teacher := &models.User{Name: "Tina", Email: "t@example.com", Role: models.RoleTeacher}
	require.NoError(t, store.Users().Create(ctx, teacher))

	seedCourse(t, store, teacher.ID, "Go Basics")
	seedCourse(t, store, teacher.ID, "Rust Basics")
	latest := seedCourse(t, store, "other", "Advanced Go")

	all, err := store.Courses().List(ctx, models.CourseFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, latest.ID, all[0].ID)

	goCourses, err := store.Courses().List(ctx, models.CourseFilter{Keyword: "go"})
	require.NoError(t, err)
	assert.Len(t, goCourses, 2)

	mine, err := store.Courses().List(ctx, models.CourseFilter{OwnerID: teacher.ID})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	require.NotNil(t, mine[0].Owner)
	assert.Equal(t, "Tina", mine[0].Owner.Name)
}

func TestCourseSectionsAreCopied(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	course := seedCourse(t, store, "t1", "Go")

	require.NoError(t, store.Courses().AppendSection(ctx, course.ID, models.Section{Title: "Intro", MediaRef: "intro.mp4"}))
	got, err := store.Courses().FindByID(ctx, course.ID)
	require.NoError(t, err)
	require.Len(t, got.Sections, 1)

	got.Sections[0].Title = "mutated"
	again, err := store.Courses().FindByID(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, "Intro", again.Sections[0].Title)

	assert.ErrorIs(t, store.Courses().AppendSection(ctx, "missing", models.Section{}), sql.ErrNoRows)
}

func TestConcurrentEnrollIsUnique(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	course := seedCourse(t, store, "t1", "Go")

	const attempts = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	var successes, conflicts int
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Enrollments().Enroll(ctx, &models.Enrollment{StudentID: "s1", CourseID: course.ID})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, repository.ErrAlreadyExists):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, conflicts)

	got, err := store.Courses().FindByID(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.EnrolledCount)
	assert.Equal(t, 1, store.Enrollments().Count(course.ID))
}

func TestEnrollMissingCourse(t *testing.T) {
	store := NewStore()
	err := store.Enrollments().Enroll(context.Background(), &models.Enrollment{StudentID: "s1", CourseID: "missing"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestLedgerOutlivesCourse(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	kept := seedCourse(t, store, "t1", "Kept")
	gone := seedCourse(t, store, "t1", "Gone")

	require.NoError(t, store.Enrollments().Enroll(ctx, &models.Enrollment{StudentID: "s1", CourseID: kept.ID}))
	require.NoError(t, store.Enrollments().Enroll(ctx, &models.Enrollment{StudentID: "s1", CourseID: gone.ID}))
	require.NoError(t, store.Courses().Delete(ctx, gone.ID))

	items, err := store.Enrollments().ListByStudent(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, kept.ID, items[0].Course.ID)
	assert.Equal(t, 1, store.Enrollments().Count(gone.ID))
}

func TestActivitiesOrderedAndReplaySafe(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	actor := &models.User{Name: "Sam", Email: "s@example.com", Role: models.RoleStudent}
	require.NoError(t, store.Users().Create(ctx, actor))

	now := time.Now().UTC()
	older := &models.ActivityLog{ID: "a1", ActorID: actor.ID, Action: models.ActionEnrollCourse, CreatedAt: now.Add(-time.Minute)}
	newer := &models.ActivityLog{ID: "a2", ActorID: "deleted", Action: models.ActionCreateCourse, CreatedAt: now}
	require.NoError(t, store.Activities().Create(ctx, newer))
	require.NoError(t, store.Activities().Create(ctx, older))
	require.NoError(t, store.Activities().Create(ctx, older))

	entries, err := store.Activities().ListWithActors(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a2", entries[0].ID)
	assert.Nil(t, entries[0].Actor)
	require.NotNil(t, entries[1].Actor)
	assert.Equal(t, "Sam", entries[1].Actor.Name)
}

func TestCancelledContext(t *testing.T) {
	store := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.Courses().List(ctx, models.CourseFilter{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.Ping(ctx), context.Canceled)
}

func TestCountByCourseFollowsLedger(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	first := seedCourse(t, store, "t1", "Go")
	second := seedCourse(t, store, "t1", "Rust")

	require.NoError(t, store.Enrollments().Enroll(ctx, &models.Enrollment{StudentID: "s1", CourseID: first.ID}))
	require.NoError(t, store.Enrollments().Enroll(ctx, &models.Enrollment{StudentID: "s2", CourseID: first.ID}))

	counts, err := store.Enrollments().CountByCourse(ctx, []string{first.ID, second.ID})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{first.ID: 2, second.ID: 0}, counts)
}

func TestCourseKeywordIsLiteral(t *testing.T) {
	store := NewStore()
	seedCourse(t, store, "t1", "Go Basics")
	seedCourse(t, store, "t1", "100% Go_Fast")

	for keyword, want := range map[string]int{"_": 1, "%": 1, "go": 2} {
		courses, err := store.Courses().List(context.Background(), models.CourseFilter{Keyword: keyword})
		require.NoError(t, err)
		assert.Len(t, courses, want, keyword)
	}
}
