package store

import (
	"context"
	"database/sql"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/notify"
)

// NotificationRepo implements notify.NotificationRepo.
type NotificationRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

func (r *NotificationRepo) CreateNotification(ctx context.Context, n notify.Notification) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return err
	}
	_, err = execQuery(ctx, r.db, build().Insert("notifications").
		Columns("id", "sequence", "user_id", "course_id", "title", "body", "created_at").
		Values(n.ID, seqNum, n.UserID, n.CourseID, n.Title, n.Body, millis(n.CreatedAt)))
	if err != nil {
		return fmt.Errorf("save notification: %w", err)
	}
	return nil
}

// List returns the user's notifications, newest first.
func (r *NotificationRepo) List(ctx context.Context, userID string, limit int) ([]notify.Notification, error) {
	sel := build().Select("id", "user_id", "course_id", "title", "body", "created_at").
		From(entsql.Table("notifications")).
		Where(entsql.EQ("user_id", userID)).
		OrderBy(entsql.Desc("sequence"))
	if limit > 0 {
		sel = sel.Limit(limit)
	}
	query, args := sel.Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	out := []notify.Notification{}
	for rows.Next() {
		var n notify.Notification
		var created int64
		if err := rows.Scan(&n.ID, &n.UserID, &n.CourseID, &n.Title, &n.Body, &created); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.CreatedAt = fromMillis(created)
		out = append(out, n)
	}
	return out, rows.Err()
}
