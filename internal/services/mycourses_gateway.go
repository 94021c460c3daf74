// Package services – MyCoursesGateway
//
// MyCoursesGateway manages the student's saved courses on the record store
// and joins them with catalog details from the advisor service.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/course-advisor-backend/internal/cache"
	"github.com/tbourn/course-advisor-backend/internal/domain"
)

// DefaultDetailConcurrency bounds concurrent detail lookups in GetUserCourses.
const DefaultDetailConcurrency = 8

// MyCoursesGateway provides saved-course operations for the signed-in user.
type MyCoursesGateway struct {
	Store   MyCourseStore
	Catalog CatalogSource
	Session Session
	Cache   *cache.Cache

	// Concurrency bounds detail lookups; <= 0 means DefaultDetailConcurrency.
	Concurrency int

	Now   func() time.Time
	NewID func() string

	addLocks keyedMutex
}

// NewMyCoursesGateway wires a MyCoursesGateway with real clocks and UUIDs.
func NewMyCoursesGateway(st MyCourseStore, cat CatalogSource, sess Session, c *cache.Cache) *MyCoursesGateway {
	return &MyCoursesGateway{
		Store:   st,
		Catalog: cat,
		Session: sess,
		Cache:   c,
		Now:     time.Now,
		NewID:   uuid.NewString,
	}
}

func (g *MyCoursesGateway) tracer() trace.Tracer { return otel.Tracer("services/MyCoursesGateway") }

// AddCourseToMyCourses saves courseID for the signed-in user. The course
// must exist in the catalog. When a record already exists and override is
// false, the existing record is returned unchanged.
func (g *MyCoursesGateway) AddCourseToMyCourses(ctx context.Context, courseID string, override bool) (domain.MyCourse, error) {
	ctx, span := g.tracer().Start(ctx, "AddCourseToMyCourses",
		trace.WithAttributes(
			attribute.String("course.id", courseID),
			attribute.Bool("override", override),
		),
	)
	defer span.End()

	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return domain.MyCourse{}, ErrInvalidCourse
	}
	uid := g.Session.UserID()
	if uid == "" {
		return domain.MyCourse{}, ErrNoUser
	}

	if _, err := g.GetCourseDetails(ctx, courseID); err != nil {
		span.RecordError(err)
		return domain.MyCourse{}, err
	}

	unlock := g.addLocks.Lock(uid + "\x00" + courseID)
	defer unlock()

	existing, err := g.Store.ListMyCourses(ctx, uid, courseID)
	if err != nil {
		return domain.MyCourse{}, external("list my courses", err)
	}
	if len(existing) > 0 && !override {
		span.SetAttributes(attribute.Bool("existing", true))
		return existing[0], nil
	}

	rec := domain.MyCourse{
		ID:       g.NewID(),
		UserID:   uid,
		CourseID: courseID,
		AddedAt:  g.Now().UTC(),
	}
	saved, err := g.Store.CreateMyCourse(ctx, rec)
	if err != nil {
		return domain.MyCourse{}, external("create my course", err)
	}
	if saved.ID == "" {
		saved = rec
	}
	g.Cache.Invalidate(cache.T(cache.TypeMyCourses))
	return saved, nil
}

// RemoveCourseFromMyCourses deletes a saved-course record.
func (g *MyCoursesGateway) RemoveCourseFromMyCourses(ctx context.Context, myCourseID string) error {
	if strings.TrimSpace(myCourseID) == "" {
		return ErrInvalidCourse
	}
	if g.Session.UserID() == "" {
		return ErrNoUser
	}
	if err := g.Store.DeleteMyCourse(ctx, myCourseID); err != nil {
		if isNotFound(err) {
			return ErrCourseNotFound
		}
		return external("delete my course", err)
	}
	g.Cache.Invalidate(cache.T(cache.TypeMyCourses))
	return nil
}

// GetUserCourses returns the signed-in user's saved courses joined with
// their catalog details, in saved order. Any failed detail lookup fails the
// whole call.
func (g *MyCoursesGateway) GetUserCourses(ctx context.Context) ([]domain.SavedCourse, error) {
	uid := g.Session.UserID()
	if uid == "" {
		return nil, ErrNoUser
	}
	return cache.Fetch(ctx, g.Cache, "getUserCourses", "mycourses:"+uid,
		[]cache.Tag{cache.T(cache.TypeMyCourses)},
		func(ctx context.Context) ([]domain.SavedCourse, error) {
			return g.joinUserCourses(ctx, uid)
		})
}

func (g *MyCoursesGateway) joinUserCourses(ctx context.Context, uid string) ([]domain.SavedCourse, error) {
	ctx, span := g.tracer().Start(ctx, "GetUserCourses")
	defer span.End()

	recs, err := g.Store.ListMyCourses(ctx, uid, "")
	if err != nil {
		return nil, external("list my courses", err)
	}
	span.SetAttributes(attribute.Int("mycourses.count", len(recs)))

	out := make([]domain.SavedCourse, len(recs))
	n := g.Concurrency
	if n <= 0 {
		n = DefaultDetailConcurrency
	}
	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError().WithMaxGoroutines(n)
	for i, rec := range recs {
		p.Go(func(ctx context.Context) error {
			course, err := g.GetCourseDetails(ctx, rec.CourseID)
			if err != nil {
				return err
			}
			out[i] = domain.SavedCourse{MyCourse: rec, CourseDetails: course}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}

// GetCourseDetails loads one catalog course.
func (g *MyCoursesGateway) GetCourseDetails(ctx context.Context, courseID string) (domain.Course, error) {
	if strings.TrimSpace(courseID) == "" {
		return domain.Course{}, ErrInvalidCourse
	}
	return cache.Fetch(ctx, g.Cache, "getCourseDetails", "course:"+courseID,
		[]cache.Tag{cache.T(cache.TypeCourses, courseID)},
		func(ctx context.Context) (domain.Course, error) {
			c, err := g.Catalog.CourseDetail(ctx, courseID)
			if err != nil {
				if isNotFound(err) {
					return domain.Course{}, ErrCourseNotFound
				}
				return domain.Course{}, external("course detail", err)
			}
			return c, nil
		})
}
