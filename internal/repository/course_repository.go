package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

const courseColumns = "c.id, c.course_code, c.name, c.description, c.credit_hours, c.max_capacity, c.created_at, c.updated_at"

// courseDetailSelect adds the live ENROLLED count and the prerequisite codes.
const courseDetailSelect = `SELECT ` + courseColumns + `,
        (SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id AND e.status = 'ENROLLED') AS current_enrollment,
        ARRAY(SELECT p.course_code FROM course_prerequisites cp JOIN courses p ON p.id = cp.prerequisite_id
              WHERE cp.course_id = c.id ORDER BY p.course_code) AS prerequisite_codes
        FROM courses c`

// CourseRepository manages courses and their prerequisite edges.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

func (r *CourseRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns courses with enrollment counts and prerequisite codes.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	where := ""
	var args []interface{}
	if filter.Search != "" {
		where = ` WHERE (LOWER(c.course_code) LIKE $1 ESCAPE '\' OR LOWER(c.name) LIKE $1 ESCAPE '\')`
		args = append(args, containsPattern(filter.Search))
	}

	allowedSorts := map[string]string{
		"course_code":  "c.course_code",
		"name":         "c.name",
		"credit_hours": "c.credit_hours",
		"created_at":   "c.created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "c.course_code"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	limit, offset := pageBounds(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s ORDER BY %s %s LIMIT %d OFFSET %d", courseDetailSelect, where, column, order, limit, offset)
	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM courses c"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindDetailByID returns a course with counts and prerequisites.
func (r *CourseRepository) FindDetailByID(ctx context.Context, id int64) (*models.CourseDetail, error) {
	var course models.CourseDetail
	if err := r.db.GetContext(ctx, &course, courseDetailSelect+" WHERE c.id = $1", id); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindDetailByCode returns a course by code with counts and prerequisites.
func (r *CourseRepository) FindDetailByCode(ctx context.Context, code string) (*models.CourseDetail, error) {
	var course models.CourseDetail
	if err := r.db.GetContext(ctx, &course, courseDetailSelect+" WHERE c.course_code = $1", code); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindByCode returns the bare course row for a code.
func (r *CourseRepository) FindByCode(ctx context.Context, exec sqlx.ExtContext, code string) (*models.Course, error) {
	query := fmt.Sprintf("SELECT %s FROM courses c WHERE c.course_code = $1", courseColumns)
	var course models.Course
	if err := sqlx.GetContext(ctx, r.exec(exec), &course, query, code); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindByCodeForUpdate loads the course and holds a row lock until the
// surrounding transaction ends.
func (r *CourseRepository) FindByCodeForUpdate(ctx context.Context, tx sqlx.ExtContext, code string) (*models.Course, error) {
	query := fmt.Sprintf("SELECT %s FROM courses c WHERE c.course_code = $1 FOR UPDATE", courseColumns)
	var course models.Course
	if err := sqlx.GetContext(ctx, tx, &course, query, code); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindByCodes resolves several codes at once. Unknown codes are absent from
// the result.
func (r *CourseRepository) FindByCodes(ctx context.Context, codes []string) ([]models.Course, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT %s FROM courses c WHERE c.course_code = ANY($1) ORDER BY c.course_code", courseColumns)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, pq.Array(codes)); err != nil {
		return nil, fmt.Errorf("find courses by code: %w", err)
	}
	return courses, nil
}

// ExistsByCode checks whether a course code is taken by another course.
func (r *CourseRepository) ExistsByCode(ctx context.Context, code string, excludeID int64) (bool, error) {
	query := "SELECT 1 FROM courses WHERE course_code = $1"
	args := []interface{}{code}
	if excludeID > 0 {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	query += " LIMIT 1"
	var found int
	if err := r.db.GetContext(ctx, &found, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course code: %w", err)
	}
	return true, nil
}

// ListPrerequisiteIDs returns the ids of the courses required before courseID.
func (r *CourseRepository) ListPrerequisiteIDs(ctx context.Context, exec sqlx.ExtContext, courseID int64) ([]int64, error) {
	const query = `SELECT prerequisite_id FROM course_prerequisites WHERE course_id = $1 ORDER BY prerequisite_id`
	var ids []int64
	if err := sqlx.SelectContext(ctx, r.exec(exec), &ids, query, courseID); err != nil {
		return nil, fmt.Errorf("list prerequisites: %w", err)
	}
	return ids, nil
}

// AddPrerequisite records an edge. Existing edges are left untouched.
func (r *CourseRepository) AddPrerequisite(ctx context.Context, exec sqlx.ExtContext, courseID, prerequisiteID int64) error {
	const query = `INSERT INTO course_prerequisites (course_id, prerequisite_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.exec(exec).ExecContext(ctx, query, courseID, prerequisiteID); err != nil {
		return fmt.Errorf("add prerequisite: %w", err)
	}
	return nil
}

// RemovePrerequisite deletes an edge and reports whether it existed.
func (r *CourseRepository) RemovePrerequisite(ctx context.Context, courseID, prerequisiteID int64) (bool, error) {
	const query = `DELETE FROM course_prerequisites WHERE course_id = $1 AND prerequisite_id = $2`
	res, err := r.db.ExecContext(ctx, query, courseID, prerequisiteID)
	if err != nil {
		return false, fmt.Errorf("remove prerequisite: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove prerequisite: %w", err)
	}
	return affected > 0, nil
}

// ReplacePrerequisites swaps the whole prerequisite set of a course.
func (r *CourseRepository) ReplacePrerequisites(ctx context.Context, exec sqlx.ExtContext, courseID int64, prerequisiteIDs []int64) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM course_prerequisites WHERE course_id = $1`, courseID); err != nil {
		return fmt.Errorf("clear prerequisites: %w", err)
	}
	for _, id := range prerequisiteIDs {
		if err := r.AddPrerequisite(ctx, target, courseID, id); err != nil {
			return err
		}
	}
	return nil
}

// ListEnrolledForStudent returns courses the student currently holds an
// ENROLLED enrollment in.
func (r *CourseRepository) ListEnrolledForStudent(ctx context.Context, studentID int64) ([]models.CourseDetail, error) {
	query := courseDetailSelect + `
        JOIN enrollments en ON en.course_id = c.id
        WHERE en.student_id = $1 AND en.status = $2
        ORDER BY c.course_code`
	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, studentID, models.EnrollmentStatusEnrolled); err != nil {
		return nil, fmt.Errorf("list enrolled courses: %w", err)
	}
	return courses, nil
}

// ListAvailableForStudent returns courses with no enrollment row of any status
// for the student.
func (r *CourseRepository) ListAvailableForStudent(ctx context.Context, studentID int64) ([]models.CourseDetail, error) {
	query := courseDetailSelect + `
        WHERE NOT EXISTS (SELECT 1 FROM enrollments en WHERE en.course_id = c.id AND en.student_id = $1)
        ORDER BY c.course_code`
	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, studentID); err != nil {
		return nil, fmt.Errorf("list available courses: %w", err)
	}
	return courses, nil
}

// Create inserts a course and fills in the generated id.
func (r *CourseRepository) Create(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error {
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	const query = `INSERT INTO courses (course_code, name, description, credit_hours, max_capacity, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	if err := r.exec(exec).QueryRowxContext(ctx, query,
		course.CourseCode, course.Name, course.Description, course.CreditHours, course.MaxCapacity, course.CreatedAt, course.UpdatedAt,
	).Scan(&course.ID); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update persists changes to a course.
func (r *CourseRepository) Update(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET course_code = $2, name = $3, description = $4, credit_hours = $5, max_capacity = $6, updated_at = $7
        WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query,
		course.ID, course.CourseCode, course.Name, course.Description, course.CreditHours, course.MaxCapacity, course.UpdatedAt,
	); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// Delete removes a course. Schedules, enrollments and prerequisite edges cascade.
func (r *CourseRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM courses WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return nil
}
