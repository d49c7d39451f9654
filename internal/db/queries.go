package db

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/hpungsan/cadence/internal/errors"
	"github.com/hpungsan/cadence/internal/post"
	"github.com/hpungsan/cadence/internal/recommend"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.CadenceError{
	Code:    errors.ErrConflict,
	Status:  409,
	Message: "unique constraint violation",
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const postColumns = `id, title, content, platforms_json, scheduled_at, status,
	tags_json, all_day, created_at, updated_at`

// InsertPost stores a new post.
func InsertPost(db *sql.DB, p *post.Post) error {
	platformsJSON, tagsJSON, err := encodePostSets(p)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO posts (` + postColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = db.Exec(query,
		p.ID, p.Title, p.Content, platformsJSON, toMillis(p.ScheduledDate), string(p.Status),
		tagsJSON, p.AllDay, toMillis(p.CreatedAt), toMillis(p.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// GetPost retrieves a post by its ULID.
func GetPost(db *sql.DB, id string) (*post.Post, error) {
	row := db.QueryRow(`SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	p, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("post", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return p, nil
}

// UpdatePost overwrites every mutable field of an existing post.
// Does NOT change: id, created_at
func UpdatePost(db *sql.DB, p *post.Post) error {
	platformsJSON, tagsJSON, err := encodePostSets(p)
	if err != nil {
		return err
	}

	query := `
		UPDATE posts
		SET title = ?, content = ?, platforms_json = ?, scheduled_at = ?,
			status = ?, tags_json = ?, all_day = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := db.Exec(query,
		p.Title, p.Content, platformsJSON, toMillis(p.ScheduledDate),
		string(p.Status), tagsJSON, p.AllDay, toMillis(p.UpdatedAt),
		p.ID,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return requireRow(result, "post", p.ID)
}

// DeletePost removes a post.
func DeletePost(db *sql.DB, id string) error {
	result, err := db.Exec(`DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	return requireRow(result, "post", id)
}

// ListParams narrows ListPosts. Zero values mean no constraint.
// Values must already be normalized.
type ListParams struct {
	Platforms []string
	Statuses  []string
	Tags      []string
	From      time.Time // inclusive
	To        time.Time // inclusive
}

// ListPosts returns posts ordered by scheduled time, then id.
func ListPosts(db *sql.DB, params ListParams) ([]post.Post, error) {
	var (
		where []string
		args  []any
	)
	if len(params.Platforms) > 0 {
		where = append(where, `EXISTS (SELECT 1 FROM json_each(posts.platforms_json) WHERE value IN (`+placeholders(len(params.Platforms))+`))`)
		args = appendStrings(args, params.Platforms)
	}
	if len(params.Statuses) > 0 {
		where = append(where, `status IN (`+placeholders(len(params.Statuses))+`)`)
		args = appendStrings(args, params.Statuses)
	}
	if len(params.Tags) > 0 {
		where = append(where, `EXISTS (SELECT 1 FROM json_each(COALESCE(posts.tags_json, '[]')) WHERE value IN (`+placeholders(len(params.Tags))+`))`)
		args = appendStrings(args, params.Tags)
	}
	if !params.From.IsZero() {
		where = append(where, `scheduled_at >= ?`)
		args = append(args, toMillis(params.From))
	}
	if !params.To.IsZero() {
		where = append(where, `scheduled_at <= ?`)
		args = append(args, toMillis(params.To))
	}

	query := `SELECT ` + postColumns + ` FROM posts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY scheduled_at ASC, id ASC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	posts := []post.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return posts, nil
}

// ReplaceRecommendations swaps in recs for every platform they mention, in
// one transaction. Rows for other platforms are left alone. Insertion order
// is kept so ranking ties resolve the same way on every read.
func ReplaceRecommendations(db *sql.DB, recs []recommend.Recommendation, importedAt time.Time) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.NewInternal(err)
	}
	defer func() { _ = tx.Rollback() }()

	cleared := make(map[post.Platform]bool)
	for _, r := range recs {
		if cleared[r.Platform] {
			continue
		}
		if _, err := tx.Exec(`DELETE FROM recommendations WHERE platform = ?`, string(r.Platform)); err != nil {
			return errors.NewInternal(err)
		}
		cleared[r.Platform] = true
	}

	stmt, err := tx.Prepare(`
		INSERT INTO recommendations (
			platform, day_of_week, time_of_day, engagement_score,
			confidence, sample_size, imported_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer stmt.Close()

	for _, r := range recs {
		if _, err := stmt.Exec(string(r.Platform), int(r.DayOfWeek), r.TimeOfDay,
			r.EngagementScore, string(r.Confidence), r.SampleSize, toMillis(importedAt)); err != nil {
			return errors.NewInternal(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ListRecommendations returns recommendations for platform (all when empty)
// in import order.
func ListRecommendations(db *sql.DB, platform string) ([]recommend.Recommendation, error) {
	query := `
		SELECT platform, day_of_week, time_of_day, engagement_score, confidence, sample_size
		FROM recommendations
	`
	var args []any
	if platform != "" {
		query += ` WHERE platform = ?`
		args = append(args, platform)
	}
	query += ` ORDER BY seq ASC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	recs := []recommend.Recommendation{}
	for rows.Next() {
		var (
			r          recommend.Recommendation
			platformS  string
			day        int
			confidence string
		)
		if err := rows.Scan(&platformS, &day, &r.TimeOfDay, &r.EngagementScore, &confidence, &r.SampleSize); err != nil {
			return nil, errors.NewInternal(err)
		}
		r.Platform = post.Platform(platformS)
		r.DayOfWeek = time.Weekday(day)
		r.Confidence = recommend.Confidence(confidence)
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return recs, nil
}

// UpsertTimeSlot inserts or replaces a time slot by id.
func UpsertTimeSlot(db *sql.DB, s *recommend.TimeSlot) error {
	query := `
		INSERT INTO time_slots (id, platform, day_of_week, start_time, end_time, is_active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			platform = excluded.platform,
			day_of_week = excluded.day_of_week,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			is_active = excluded.is_active
	`
	_, err := db.Exec(query, s.ID, string(s.Platform), int(s.DayOfWeek), s.StartTime, s.EndTime, s.IsActive)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetTimeSlot retrieves a time slot by id.
func GetTimeSlot(db *sql.DB, id string) (*recommend.TimeSlot, error) {
	row := db.QueryRow(`
		SELECT id, platform, day_of_week, start_time, end_time, is_active
		FROM time_slots WHERE id = ?
	`, id)
	s, err := scanTimeSlot(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("time_slot", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return s, nil
}

// SetTimeSlotActive toggles a slot.
func SetTimeSlotActive(db *sql.DB, id string, active bool) error {
	result, err := db.Exec(`UPDATE time_slots SET is_active = ? WHERE id = ?`, active, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	return requireRow(result, "time_slot", id)
}

// ListTimeSlots returns slots for platform (all when empty), ordered by
// day, start time and id.
func ListTimeSlots(db *sql.DB, platform string) ([]recommend.TimeSlot, error) {
	query := `
		SELECT id, platform, day_of_week, start_time, end_time, is_active
		FROM time_slots
	`
	var args []any
	if platform != "" {
		query += ` WHERE platform = ?`
		args = append(args, platform)
	}
	query += ` ORDER BY day_of_week ASC, start_time ASC, id ASC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	slots := []recommend.TimeSlot{}
	for rows.Next() {
		s, err := scanTimeSlot(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		slots = append(slots, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return slots, nil
}

func scanPost(row scanner) (*post.Post, error) {
	var (
		p             post.Post
		platformsJSON string
		tagsJSON      sql.NullString
		status        string
		scheduledAt   int64
		createdAt     int64
		updatedAt     int64
	)

	err := row.Scan(
		&p.ID, &p.Title, &p.Content, &platformsJSON, &scheduledAt, &status,
		&tagsJSON, &p.AllDay, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Status = post.Status(status)
	p.ScheduledDate = fromMillis(scheduledAt)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)

	if err := json.Unmarshal([]byte(platformsJSON), &p.Platforms); err != nil {
		return nil, err
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &p.Tags); err != nil {
			return nil, err
		}
	}

	return &p, nil
}

func scanTimeSlot(row scanner) (*recommend.TimeSlot, error) {
	var (
		s        recommend.TimeSlot
		platform string
		day      int
	)
	if err := row.Scan(&s.ID, &platform, &day, &s.StartTime, &s.EndTime, &s.IsActive); err != nil {
		return nil, err
	}
	s.Platform = post.Platform(platform)
	s.DayOfWeek = time.Weekday(day)
	return &s, nil
}

func encodePostSets(p *post.Post) (string, sql.NullString, error) {
	platforms, err := json.Marshal(p.Platforms)
	if err != nil {
		return "", sql.NullString{}, errors.NewInternal(err)
	}
	var tagsJSON sql.NullString
	if len(p.Tags) > 0 {
		data, err := json.Marshal(p.Tags)
		if err != nil {
			return "", sql.NullString{}, errors.NewInternal(err)
		}
		tagsJSON = sql.NullString{String: string(data), Valid: true}
	}
	return string(platforms), tagsJSON, nil
}

func requireRow(result sql.Result, kind, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(kind, id)
	}
	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func appendStrings(args []any, values []string) []any {
	for _, v := range values {
		args = append(args, v)
	}
	return args
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
