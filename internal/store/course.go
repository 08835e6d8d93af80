package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"golang.org/x/mod/semver"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/apperr"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/content"
)

// CourseInfo is a course row without its document.
type CourseInfo struct {
	ID        string
	Title     string
	Version   string
	UpdatedAt time.Time
}

// CourseRepo stores course documents. It implements content.DocumentSource.
type CourseRepo struct {
	db *sql.DB
}

// Save stores c as its canonical JSON document. Replacing a course with an
// older version is refused unless force is set; unversioned documents
// always replace.
func (r *CourseRepo) Save(ctx context.Context, c *content.Course, force bool) error {
	doc, err := content.Encode(c)
	if err != nil {
		return err
	}

	existing, err := r.Info(ctx, string(c.ID))
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return err
	}
	if existing != nil && !force && c.Version != "" && existing.Version != "" && semver.Compare(c.Version, existing.Version) < 0 {
		return apperr.Conflict("refusing to downgrade course",
			fmt.Sprintf("%s is stored at %s, import has %s", c.ID, existing.Version, c.Version))
	}

	now := millis(time.Now())
	if existing == nil {
		_, err = execQuery(ctx, r.db, build().Insert("courses").
			Columns("id", "title", "version", "document", "updated_at").
			Values(string(c.ID), c.Title, c.Version, string(doc), now))
	} else {
		_, err = execQuery(ctx, r.db, build().Update("courses").
			Set("title", c.Title).
			Set("version", c.Version).
			Set("document", string(doc)).
			Set("updated_at", now).
			Where(entsql.EQ("id", string(c.ID))))
	}
	if err != nil {
		return fmt.Errorf("save course %s: %w", c.ID, err)
	}
	return nil
}

// Info returns the course row for id.
func (r *CourseRepo) Info(ctx context.Context, id string) (*CourseInfo, error) {
	query, args := build().Select("id", "title", "version", "updated_at").
		From(entsql.Table("courses")).
		Where(entsql.EQ("id", id)).
		Query()

	var info CourseInfo
	var updated int64
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&info.ID, &info.Title, &info.Version, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("course " + id)
	}
	if err != nil {
		return nil, fmt.Errorf("query course %s: %w", id, err)
	}
	info.UpdatedAt = fromMillis(updated)
	return &info, nil
}

// CourseDocument returns the stored JSON document for id.
func (r *CourseRepo) CourseDocument(ctx context.Context, id string) ([]byte, error) {
	query, args := build().Select("document").
		From(entsql.Table("courses")).
		Where(entsql.EQ("id", id)).
		Query()

	var doc string
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("course " + id)
	}
	if err != nil {
		return nil, fmt.Errorf("query course %s: %w", id, err)
	}
	return []byte(doc), nil
}

// List returns every stored course ordered by id.
func (r *CourseRepo) List(ctx context.Context) ([]CourseInfo, error) {
	query, args := build().Select("id", "title", "version", "updated_at").
		From(entsql.Table("courses")).
		OrderBy("id").
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	var out []CourseInfo
	for rows.Next() {
		var info CourseInfo
		var updated int64
		if err := rows.Scan(&info.ID, &info.Title, &info.Version, &updated); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		info.UpdatedAt = fromMillis(updated)
		out = append(out, info)
	}
	return out, rows.Err()
}

// Delete removes the course and every progress record for it.
func (r *CourseRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete course: %w", err)
	}
	defer tx.Rollback()

	res, err := execQuery(ctx, tx, build().Delete("courses").Where(entsql.EQ("id", id)))
	if err != nil {
		return fmt.Errorf("delete course %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("course " + id)
	}
	if _, err := execQuery(ctx, tx, build().Delete("progress").Where(entsql.EQ("course_id", id))); err != nil {
		return fmt.Errorf("delete progress of course %s: %w", id, err)
	}
	return tx.Commit()
}
