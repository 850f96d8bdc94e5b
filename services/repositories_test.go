package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/fatoldnerd/sedemoscoring/models"
)

type stepKind int

const (
	kindQuery stepKind = iota
	kindExec
)

type queryStep struct {
	kind    stepKind
	pattern *regexp.Regexp
	columns []string
	rows    [][]driver.Value
	err     error
	result  driver.Result
}

type scriptedDB struct {
	mu    sync.Mutex
	steps []*queryStep
}

func (db *scriptedDB) next(kind stepKind, query string) (*queryStep, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.steps) == 0 {
		return nil, fmt.Errorf("unexpected query: %s", query)
	}
	step := db.steps[0]
	if step.kind != kind {
		return nil, fmt.Errorf("unexpected kind for query %s: got %v want %v", query, kind, step.kind)
	}
	if !step.pattern.MatchString(query) {
		return nil, fmt.Errorf("unexpected query: %s", query)
	}
	db.steps = db.steps[1:]
	return step, nil
}

func (db *scriptedDB) verifyComplete() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.steps) != 0 {
		return fmt.Errorf("unmet expectations: %d", len(db.steps))
	}
	return nil
}

type scriptedDriver struct {
	db *scriptedDB
}

func (d *scriptedDriver) Open(string) (driver.Conn, error) {
	return &scriptedConn{db: d.db}, nil
}

type scriptedConn struct {
	db *scriptedDB
}

func (c *scriptedConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}

func (c *scriptedConn) Close() error { return nil }

// Transactions are accepted and discarded: the scripted steps themselves are
// the assertion, commit/rollback carry no state here.
func (c *scriptedConn) Begin() (driver.Tx, error) {
	return scriptedTx{}, nil
}

type scriptedTx struct{}

func (scriptedTx) Commit() error   { return nil }
func (scriptedTx) Rollback() error { return nil }

func (c *scriptedConn) QueryContext(ctx context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	step, err := c.db.next(kindQuery, query)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if step.err != nil {
		return nil, step.err
	}
	return &scriptedRows{columns: step.columns, rows: step.rows}, nil
}

func (c *scriptedConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	step, err := c.db.next(kindExec, query)
	if err != nil {
		return nil, err
	}
	if step.err != nil {
		return nil, step.err
	}
	if step.result != nil {
		return step.result, nil
	}
	return scriptedResult{}, nil
}

type scriptedResult struct {
	lastInsertID int64
	rowsAffected int64
}

func (r scriptedResult) LastInsertId() (int64, error) { return r.lastInsertID, nil }

func (r scriptedResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

type scriptedRows struct {
	columns []string
	rows    [][]driver.Value
	idx     int
}

func (r *scriptedRows) Columns() []string { return r.columns }

func (r *scriptedRows) Close() error { return nil }

func (r *scriptedRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	row := r.rows[r.idx]
	for i := range dest {
		dest[i] = nil
	}
	for i := range row {
		dest[i] = row[i]
	}
	r.idx++
	return nil
}

func newScriptedGormDB(t *testing.T, steps []*queryStep) (*gorm.DB, *scriptedDB, func()) {
	t.Helper()
	state := &scriptedDB{steps: steps}
	driverName := fmt.Sprintf("scripted_%d", time.Now().UnixNano())
	sql.Register(driverName, &scriptedDriver{db: state})

	sqlDB, err := sql.Open(driverName, "")
	if err != nil {
		t.Fatalf("failed to open sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to create gorm db: %v", err)
	}

	cleanup := func() {
		_ = sqlDB.Close()
	}
	return gormDB, state, cleanup
}

func TestScorecardSubmitGuardsDoubleSubmission(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("UPDATE .scorecards. SET .*submitted_at IS NULL"),
			result:  scriptedResult{rowsAffected: 0},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT count\\(\\*\\) FROM .scorecards."),
			columns: []string{"count"},
			rows:    [][]driver.Value{{int64(1)}},
		},
	}

	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	repo := NewScorecardRepository(db)
	err := repo.Submit(context.Background(), "cr-1", models.ScorerSelf,
		models.BlankScores(), models.SectionText{}, models.SectionText{}, 0, time.Now())
	if !errors.Is(err, ErrScorecardAlreadySubmitted) {
		t.Fatalf("Submit() error = %v, want ErrScorecardAlreadySubmitted", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatal(err)
	}
}

func TestScorecardSubmitMissingCard(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("UPDATE .scorecards. SET .*submitted_at IS NULL"),
			result:  scriptedResult{rowsAffected: 0},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile("SELECT count\\(\\*\\) FROM .scorecards."),
			columns: []string{"count"},
			rows:    [][]driver.Value{{int64(0)}},
		},
	}

	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	repo := NewScorecardRepository(db)
	err := repo.Submit(context.Background(), "cr-1", models.ScorerSelf,
		models.BlankScores(), models.SectionText{}, models.SectionText{}, 0, time.Now())
	if !errors.Is(err, ErrScorecardNotFound) {
		t.Fatalf("Submit() error = %v, want ErrScorecardNotFound", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatal(err)
	}
}

func TestScorecardSubmitWritesOnce(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("UPDATE .scorecards. SET .*submitted_at IS NULL"),
			result:  scriptedResult{rowsAffected: 1},
		},
	}

	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	repo := NewScorecardRepository(db)
	err := repo.Submit(context.Background(), "cr-1", models.ScorerAI,
		models.BlankScores(), models.SectionText{}, models.SectionText{}, 87, time.Now())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatal(err)
	}
}

func TestCallReviewUpdateStatusNotFound(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindExec,
			pattern: regexp.MustCompile(`UPDATE .call_reviews. SET .*status = \?`),
			result:  scriptedResult{rowsAffected: 0},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile(`SELECT count\(\*\) FROM .call_reviews.`),
			columns: []string{"count"},
			rows:    [][]driver.Value{{int64(0)}},
		},
	}

	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	repo := NewCallReviewRepository(db)
	err := repo.UpdateStatus(context.Background(), "missing",
		models.StatusPendingManagerReview, models.StatusReadyForCoaching)
	if !errors.Is(err, ErrCallReviewNotFound) {
		t.Fatalf("UpdateStatus() error = %v, want ErrCallReviewNotFound", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatal(err)
	}
}

func TestCallReviewUpdateStatusDetectsConcurrentWrite(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindExec,
			pattern: regexp.MustCompile(`UPDATE .call_reviews. SET .*status = \?`),
			result:  scriptedResult{rowsAffected: 0},
		},
		{
			kind:    kindQuery,
			pattern: regexp.MustCompile(`SELECT count\(\*\) FROM .call_reviews.`),
			columns: []string{"count"},
			rows:    [][]driver.Value{{int64(1)}},
		},
	}

	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	repo := NewCallReviewRepository(db)
	err := repo.UpdateStatus(context.Background(), "cr-1",
		models.StatusPendingSelfScore, models.StatusPendingManagerReview)
	if !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("UpdateStatus() error = %v, want ErrStatusConflict", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateProvisionsThreeScorecards(t *testing.T) {
	steps := []*queryStep{
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("INSERT INTO .call_reviews."),
			result:  scriptedResult{rowsAffected: 1},
		},
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("INSERT INTO .scorecards."),
			result:  scriptedResult{rowsAffected: 1},
		},
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("INSERT INTO .scorecards."),
			result:  scriptedResult{rowsAffected: 1},
		},
		{
			kind:    kindExec,
			pattern: regexp.MustCompile("INSERT INTO .scorecards."),
			result:  scriptedResult{rowsAffected: 1},
		},
	}

	db, state, cleanup := newScriptedGormDB(t, steps)
	defer cleanup()

	repo := NewCallReviewRepository(db)
	review := models.CallReview{
		SeID:         7,
		ManagerID:    3,
		CustomerName: "Globex",
		CallDate:     time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC),
		Transcript:   "Prospect: we keep losing track of renewals...",
	}
	if err := repo.Create(context.Background(), &review); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if review.CallReviewID == "" {
		t.Error("Create() did not assign an id")
	}
	if review.Status != models.StatusPendingSelfScore {
		t.Errorf("Create() status = %q, want %q", review.Status, models.StatusPendingSelfScore)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatal(err)
	}
}
