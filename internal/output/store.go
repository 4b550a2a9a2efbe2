package output

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"matrusp-crawler/internal/components/assert"
	"matrusp-crawler/internal/components/chrono"
	"matrusp-crawler/internal/scrapers/jupiter"
	"os"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store keeps every crawl run in a sqlite database, each run is identified
// by a random id. A store opened with OpenStoreReadOnly has no run of its
// own and every write fails.
type Store struct {
	db    *sql.DB
	runId uuid.UUID
	time  chrono.TimeAPI
}

// OpenStore opens (or creates) the sqlite database at path.
func OpenStore(ctx context.Context, path string, time chrono.TimeAPI) (*Store, error) {
	assert.NotEmptyStr(path)

	_, statErr := os.Stat(path)
	if os.IsNotExist(statErr) {
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		f.Close()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite only supports a single writer at a time.
	db.SetMaxOpenConns(1)
	_, err = db.ExecContext(ctx, "PRAGMA journal_mode=WAL")
	if err != nil {
		db.Close()
		return nil, err
	}

	store, err := NewStore(ctx, db, time)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewStore migrates db and starts a new run in it.
func NewStore(ctx context.Context, db *sql.DB, time chrono.TimeAPI) (*Store, error) {
	assert.NotNil(db)
	assert.NotNil(time)

	_, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON")
	if err != nil {
		return nil, err
	}

	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return nil, err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose new provider: %w", err)
	}
	_, err = provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose up: %w", err)
	}

	s := &Store{
		db:    db,
		runId: uuid.New(),
		time:  time,
	}
	err = s.exec(ctx, s.db, sq.Insert("runs").
		Columns("id", "started_at").
		Values(s.runId.String(), time.Now().Unix()),
	)
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	return s, nil
}

func (s *Store) RunId() uuid.UUID {
	return s.runId
}

// OpenStoreReadOnly opens an existing database to read previous runs, it is
// neither migrated nor written to.
func OpenStoreReadOnly(ctx context.Context, path string) (*Store, error) {
	assert.NotEmptyStr(path)

	_, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro&_pragma=query_only(1)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, runId: uuid.Nil, time: chrono.StandardTime{}}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) exec(ctx context.Context, db execer, query sq.Sqlizer) error {
	text, args, err := query.ToSql()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, text, args...)
	return err
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("make tx: %w", err)
	}
	err = fn(tx)
	if err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// WriteCampi stores the units and the subjects they offer.
func (s *Store) WriteCampi(ctx context.Context, catalog *jupiter.Catalog) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		units := catalog.Units()
		for _, u := range units {
			err := s.exec(ctx, tx, sq.Replace("units").
				Columns("run_id", "code", "name", "campus").
				Values(s.runId.String(), u.Code, u.Name, catalog.CampusOfUnit(u.Code)),
			)
			if err != nil {
				return fmt.Errorf("insert unit %d: %w", u.Code, err)
			}
		}

		subjects := catalog.Subjects()
		for _, subject := range subjects {
			err := s.exec(ctx, tx, sq.Replace("unit_subjects").
				Columns("run_id", "unit_code", "subject_code", "subject_name").
				Values(s.runId.String(), subject.UnitCode, subject.Code, subject.Name),
			)
			if err != nil {
				return fmt.Errorf("insert subject %s: %w", subject.Code, err)
			}
		}

		return s.exec(ctx, tx, sq.Update("runs").
			Set("units", len(units)).
			Set("discovered", len(subjects)).
			Where(sq.Eq{"id": s.runId.String()}),
		)
	})
}

func nullableDate(d *jupiter.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// WriteSubject stores a course along with its sections.
func (s *Store) WriteSubject(ctx context.Context, course jupiter.CourseInfo) error {
	data, err := json.Marshal(course)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		err := s.exec(ctx, tx, sq.Replace("courses").
			Columns(
				"run_id", "code", "name", "unit_name", "department_name", "campus",
				"lecture_credits", "work_credits", "data",
			).
			Values(
				s.runId.String(), course.Code, course.Name, course.UnitName, course.DepartmentName,
				course.CampusName, course.LectureCredits, course.WorkCredits, string(data),
			),
		)
		if err != nil {
			return fmt.Errorf("insert course %s: %w", course.Code, err)
		}

		err = s.exec(ctx, tx, sq.Delete("sections").
			Where(sq.Eq{"run_id": s.runId.String(), "course_code": course.Code}),
		)
		if err != nil {
			return fmt.Errorf("clear sections of %s: %w", course.Code, err)
		}
		// sections are keyed by position, their codes are not always unique
		for i, section := range course.Sections {
			err = s.exec(ctx, tx, sq.Insert("sections").
				Columns(
					"run_id", "course_code", "ordinal", "code",
					"theory_code", "kind", "start_date", "end_date",
				).
				Values(
					s.runId.String(), course.Code, i, section.Code,
					nullableString(section.TheoryCode), nullableString(section.Kind),
					nullableDate(section.StartDate), nullableDate(section.EndDate),
				),
			)
			if err != nil {
				return fmt.Errorf("insert section %s of %s: %w", section.Code, course.Code, err)
			}
		}
		return nil
	})
}

// WriteDataset closes the run, courses were already stored one by one.
func (s *Store) WriteDataset(ctx context.Context, courses []jupiter.CourseInfo) error {
	return s.exec(ctx, s.db, sq.Update("runs").
		Set("finished_at", s.time.Now().Unix()).
		Set("processed", len(courses)).
		Where(sq.Eq{"id": s.runId.String()}),
	)
}

type Run struct {
	Id         uuid.UUID
	StartedAt  time.Time
	FinishedAt *time.Time
	Units      int
	Discovered int
	Processed  int
}

// Runs lists every run, latest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	text, args, err := sq.Select("id", "started_at", "finished_at", "units", "discovered", "processed").
		From("runs").
		OrderBy("started_at desc", "rowid desc").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, text, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			id         string
			startedAt  int64
			finishedAt sql.NullInt64
			run        Run
		)
		err = rows.Scan(&id, &startedAt, &finishedAt, &run.Units, &run.Discovered, &run.Processed)
		if err != nil {
			return nil, err
		}
		run.Id, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("run id '%s': %w", id, err)
		}
		run.StartedAt = time.Unix(startedAt, 0)
		if finishedAt.Valid {
			t := time.Unix(finishedAt.Int64, 0)
			run.FinishedAt = &t
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Courses returns the courses stored by a run ordered by code.
func (s *Store) Courses(ctx context.Context, runId uuid.UUID) ([]jupiter.CourseInfo, error) {
	text, args, err := sq.Select("data").
		From("courses").
		Where(sq.Eq{"run_id": runId.String()}).
		OrderBy("code").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, text, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []jupiter.CourseInfo
	for rows.Next() {
		var data string
		err = rows.Scan(&data)
		if err != nil {
			return nil, err
		}
		var course jupiter.CourseInfo
		err = json.Unmarshal([]byte(data), &course)
		if err != nil {
			return nil, err
		}
		out = append(out, course)
	}
	return out, rows.Err()
}

// SectionsOfTheory returns the codes of the sections linked to a theory
// section within a run.
func (s *Store) SectionsOfTheory(ctx context.Context, runId uuid.UUID, theoryCode string) ([]string, error) {
	text, args, err := sq.Select("code").
		From("sections").
		Where(sq.Eq{"run_id": runId.String(), "theory_code": theoryCode}).
		OrderBy("code", "course_code", "ordinal").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, text, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var code string
		err = rows.Scan(&code)
		if err != nil {
			return nil, err
		}
		out = append(out, code)
	}
	return out, rows.Err()
}
