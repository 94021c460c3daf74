// Package services – CourseGateway
//
// CourseGateway serves the read-only course catalog from the advisor service.
// The catalog is fetched once, normalized and cached under the Courses tag;
// filtering and keyword search run over the cached copy.
package services

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/course-advisor-backend/internal/cache"
	"github.com/tbourn/course-advisor-backend/internal/catalog"
	"github.com/tbourn/course-advisor-backend/internal/domain"
	"github.com/tbourn/course-advisor-backend/internal/search"
)

// CourseGateway provides catalog reads.
type CourseGateway struct {
	Source CatalogSource
	Cache  *cache.Cache

	// SearchOptions configure the keyword index built over the catalog.
	SearchOptions []search.Option
}

// NewCourseGateway returns a CourseGateway over src.
func NewCourseGateway(src CatalogSource, c *cache.Cache) *CourseGateway {
	return &CourseGateway{Source: src, Cache: c}
}

// GetCourses returns the whole catalog as a flat list. An unrecognized
// payload shape yields an empty list, not an error.
func (g *CourseGateway) GetCourses(ctx context.Context) ([]domain.Course, error) {
	return cache.Fetch(ctx, g.Cache, "getCourses", "courses",
		[]cache.Tag{cache.T(cache.TypeCourses)},
		func(ctx context.Context) ([]domain.Course, error) {
			ctx, span := otel.Tracer("services/CourseGateway").Start(ctx, "fetchCatalog")
			defer span.End()

			raw, err := g.Source.Catalog(ctx)
			if err != nil {
				return nil, external("course catalog", err)
			}
			courses := catalog.Normalize(raw)
			span.SetAttributes(attribute.Int("catalog.size", len(courses)))
			return courses, nil
		})
}

// FilterCourses returns the catalog narrowed by f.
func (g *CourseGateway) FilterCourses(ctx context.Context, f catalog.Filters) ([]domain.Course, error) {
	if f.MaxCredits < 0 {
		return nil, &ValidationError{Field: "maxCredits", Reason: "must not be negative", Err: ErrInvalidFilter}
	}
	courses, err := g.GetCourses(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.FilterCourses(courses, f), nil
}

// SearchCourses ranks the catalog against a free-text query and returns at
// most k results.
func (g *CourseGateway) SearchCourses(ctx context.Context, query string, k int) ([]search.Result, error) {
	ctx, span := otel.Tracer("services/CourseGateway").Start(ctx, "SearchCourses",
		trace.WithAttributes(attribute.Int("search.k", k)))
	defer span.End()

	if strings.TrimSpace(query) == "" {
		return nil, &ValidationError{Field: "q", Reason: "is required", Err: ErrInvalidFilter}
	}
	idx, err := cache.Fetch(ctx, g.Cache, "courseIndex", "courses:index",
		[]cache.Tag{cache.T(cache.TypeCourses)},
		func(ctx context.Context) (*search.CourseIndex, error) {
			courses, err := g.GetCourses(ctx)
			if err != nil {
				return nil, err
			}
			return search.NewCourseIndex(courses, g.SearchOptions...), nil
		})
	if err != nil {
		return nil, err
	}
	res := idx.TopK(query, k)
	if res == nil {
		res = []search.Result{}
	}
	span.SetAttributes(attribute.Int("search.hits", len(res)))
	return res, nil
}

// GetCourseTrends returns the yearly statistics of a course.
func (g *CourseGateway) GetCourseTrends(ctx context.Context, courseID string) (domain.CourseTrends, error) {
	if strings.TrimSpace(courseID) == "" {
		return domain.CourseTrends{}, ErrInvalidCourse
	}
	return cache.Fetch(ctx, g.Cache, "getCourseTrends", "trends:"+courseID,
		[]cache.Tag{cache.T(cache.TypeCourseTrends, courseID)},
		func(ctx context.Context) (domain.CourseTrends, error) {
			tr, err := g.Source.Trends(ctx, courseID)
			if err != nil {
				if isNotFound(err) {
					return domain.CourseTrends{}, ErrTrendsNotFound
				}
				return domain.CourseTrends{}, external("course trends", err)
			}
			if tr.Trends == nil {
				tr.Trends = []domain.CourseTrend{}
			}
			return tr, nil
		})
}

// FilterOptions returns the choices offered by the filter form.
func (g *CourseGateway) FilterOptions() catalog.Options {
	return catalog.FilterOptions()
}
