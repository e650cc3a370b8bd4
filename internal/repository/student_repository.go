package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

const studentColumns = "s.id, s.student_id, s.first_name, s.last_name, s.email, s.phone_number, s.created_at, s.updated_at"

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

func (r *StudentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	base := "FROM students s"
	var args []interface{}
	if filter.Search != "" {
		base += ` WHERE (LOWER(s.first_name || ' ' || s.last_name) LIKE $1 ESCAPE '\' OR LOWER(s.student_id) LIKE $1 ESCAPE '\' OR LOWER(s.email) LIKE $1 ESCAPE '\')`
		args = append(args, containsPattern(filter.Search))
	}

	allowedSorts := map[string]string{
		"student_id": "s.student_id",
		"last_name":  "s.last_name",
		"created_at": "s.created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "s.student_id"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	limit, offset := pageBounds(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", studentColumns, base, column, order, limit, offset)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID returns a student by surrogate id.
func (r *StudentRepository) FindByID(ctx context.Context, id int64) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students s WHERE s.id = $1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByNumber returns a student by natural key.
func (r *StudentRepository) FindByNumber(ctx context.Context, exec sqlx.ExtContext, number string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students s WHERE s.student_id = $1", studentColumns)
	var student models.Student
	if err := sqlx.GetContext(ctx, r.exec(exec), &student, query, number); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByNumberForUpdate loads the student and holds a row lock until the
// surrounding transaction ends.
func (r *StudentRepository) FindByNumberForUpdate(ctx context.Context, tx sqlx.ExtContext, number string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students s WHERE s.student_id = $1 FOR UPDATE", studentColumns)
	var student models.Student
	if err := sqlx.GetContext(ctx, tx, &student, query, number); err != nil {
		return nil, err
	}
	return &student, nil
}

// ExistsByNumber checks whether the natural key is taken by another student.
func (r *StudentRepository) ExistsByNumber(ctx context.Context, number string, excludeID int64) (bool, error) {
	return r.exists(ctx, "student_id", number, excludeID)
}

// ExistsByEmail checks whether the email is taken by another student.
func (r *StudentRepository) ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error) {
	return r.exists(ctx, "email", email, excludeID)
}

func (r *StudentRepository) exists(ctx context.Context, column, value string, excludeID int64) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM students WHERE %s = $1", column)
	args := []interface{}{value}
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
		return false, fmt.Errorf("check student %s: %w", column, err)
	}
	return true, nil
}

// Create inserts a new student and fills in the generated id.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	const query = `INSERT INTO students (student_id, first_name, last_name, email, phone_number, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query,
		student.StudentNumber, student.FirstName, student.LastName, student.Email, student.PhoneNumber,
		student.CreatedAt, student.UpdatedAt,
	).Scan(&student.ID); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update persists changes to a student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET student_id = $2, first_name = $3, last_name = $4, email = $5, phone_number = $6, updated_at = $7
        WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query,
		student.ID, student.StudentNumber, student.FirstName, student.LastName, student.Email, student.PhoneNumber, student.UpdatedAt,
	); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// Delete removes a student. Enrollments cascade.
func (r *StudentRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM students WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return nil
}
