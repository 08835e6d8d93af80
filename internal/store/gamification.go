package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/apperr"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/gamification"
)

// GamificationRepo implements gamification.Repo.
type GamificationRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

func (r *GamificationRepo) GetXP(ctx context.Context, userID string) (*gamification.XP, error) {
	query, args := build().Select("user_id", "total_xp", "level", "xp_to_next_level", "updated_at").
		From(entsql.Table("user_xp")).
		Where(entsql.EQ("user_id", userID)).
		Query()

	var x gamification.XP
	var updated int64
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&x.UserID, &x.TotalXP, &x.Level, &x.XPToNextLevel, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query xp: %w", err)
	}
	x.UpdatedAt = fromMillis(updated)
	return &x, nil
}

func (r *GamificationRepo) RecordXP(ctx context.Context, x gamification.XP, entry gamification.LedgerEntry) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record xp: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO user_xp (user_id, total_xp, level, xp_to_next_level, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			total_xp = excluded.total_xp,
			level = excluded.level,
			xp_to_next_level = excluded.xp_to_next_level,
			updated_at = excluded.updated_at`,
		x.UserID, x.TotalXP, x.Level, x.XPToNextLevel, millis(x.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save xp: %w", err)
	}

	_, err = execQuery(ctx, tx, build().Insert("xp_ledger").
		Columns("id", "sequence", "user_id", "amount", "source", "source_id", "description", "created_at").
		Values(entry.ID, seqNum, entry.UserID, entry.Amount, entry.Source, entry.SourceID, entry.Description, millis(entry.CreatedAt)))
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return tx.Commit()
}

func (r *GamificationRepo) HasLedgerEntry(ctx context.Context, userID, source, sourceID string) (bool, error) {
	query, args := build().Select(entsql.Count("*")).
		From(entsql.Table("xp_ledger")).
		Where(entsql.And(
			entsql.EQ("user_id", userID),
			entsql.EQ("source", source),
			entsql.EQ("source_id", sourceID),
		)).
		Query()

	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("query ledger: %w", err)
	}
	return n > 0, nil
}

// Ledger returns the user's entries, oldest first.
func (r *GamificationRepo) Ledger(ctx context.Context, userID string) ([]gamification.LedgerEntry, error) {
	query, args := build().Select("id", "user_id", "amount", "source", "source_id", "description", "created_at").
		From(entsql.Table("xp_ledger")).
		Where(entsql.EQ("user_id", userID)).
		OrderBy("sequence").
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var out []gamification.LedgerEntry
	for rows.Next() {
		var e gamification.LedgerEntry
		var created int64
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Source, &e.SourceID, &e.Description, &created); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.CreatedAt = fromMillis(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *GamificationRepo) CompletedCourseCount(ctx context.Context, userID string) (int, error) {
	return completedCourseCount(ctx, r.db, userID)
}

// EnsureAchievements inserts missing catalogue entries and refreshes the
// name, description and points of existing ones.
func (r *GamificationRepo) EnsureAchievements(ctx context.Context, catalogue []gamification.Achievement) error {
	for _, a := range catalogue {
		_, err := r.db.ExecContext(ctx, `INSERT INTO achievements (code, name, description, points)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (code) DO UPDATE SET
				name = excluded.name,
				description = excluded.description,
				points = excluded.points`,
			a.Code, a.Name, a.Description, a.Points)
		if err != nil {
			return fmt.Errorf("seed achievement %s: %w", a.Code, err)
		}
	}
	return nil
}

func (r *GamificationRepo) Achievement(ctx context.Context, code string) (*gamification.Achievement, error) {
	query, args := build().Select("code", "name", "description", "points").
		From(entsql.Table("achievements")).
		Where(entsql.EQ("code", code)).
		Query()

	var a gamification.Achievement
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&a.Code, &a.Name, &a.Description, &a.Points)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query achievement: %w", err)
	}
	return &a, nil
}

func (r *GamificationRepo) HasUserAchievement(ctx context.Context, userID, code string) (bool, error) {
	query, args := build().Select(entsql.Count("*")).
		From(entsql.Table("user_achievements")).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.EQ("code", code))).
		Query()

	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("query user achievement: %w", err)
	}
	return n > 0, nil
}

// AwardAchievement returns an apperr Conflict error when the user already
// holds code.
func (r *GamificationRepo) AwardAchievement(ctx context.Context, userID, code string, at time.Time) error {
	_, err := execQuery(ctx, r.db, build().Insert("user_achievements").
		Columns("user_id", "code", "awarded_at").
		Values(userID, code, millis(at)))
	if isUniqueViolation(err) {
		return apperr.Conflict("achievement already awarded", code)
	}
	if err != nil {
		return fmt.Errorf("award achievement: %w", err)
	}
	return nil
}

func (r *GamificationRepo) UserAchievements(ctx context.Context, userID string) ([]gamification.Awarded, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT a.code, a.name, a.description, a.points, ua.awarded_at
		FROM user_achievements ua
		JOIN achievements a ON a.code = ua.code
		WHERE ua.user_id = ?
		ORDER BY ua.awarded_at, a.code`, userID)
	if err != nil {
		return nil, fmt.Errorf("query user achievements: %w", err)
	}
	defer rows.Close()

	var out []gamification.Awarded
	for rows.Next() {
		var aw gamification.Awarded
		var at int64
		if err := rows.Scan(&aw.Code, &aw.Name, &aw.Description, &aw.Points, &at); err != nil {
			return nil, fmt.Errorf("scan user achievement: %w", err)
		}
		aw.AwardedAt = fromMillis(at)
		out = append(out, aw)
	}
	return out, rows.Err()
}
