package review

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"

	"github.com/agenthands/canon/internal/errs"
)

type Store interface {
	Save(ctx context.Context, r *Review) error
	Get(ctx context.Context, id string) (*Review, error)
	SetDecision(ctx context.Context, id, key string, d Decision) error
	Delete(ctx context.Context, id string) error
}

const schema = `
CREATE TABLE IF NOT EXISTS reviews (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS review_items (
	review_id TEXT NOT NULL,
	item_key  TEXT NOT NULL,
	position  INTEGER NOT NULL,
	kind      TEXT NOT NULL,
	payload   TEXT NOT NULL,
	decision  TEXT NOT NULL,
	PRIMARY KEY (review_id, item_key)
);
`

// SQLStore keeps reviews in SQLite so pending reviews survive restarts.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the review database at path. ":memory:"
// gives a private database for the life of the store.
func OpenSQLite(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open review db '%s'", path)
	}
	db.SetMaxOpenConns(1)
	s := NewSQLStore(db)
	if err := s.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "migrate review schema")
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Save(ctx context.Context, r *Review) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin save review")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO reviews (id, run_id, created_at) VALUES (?, ?, ?)`,
		r.ID, r.RunID, r.CreatedAt.UTC(),
	); err != nil {
		return errors.Wrapf(err, "insert review %s", r.ID)
	}

	for i, it := range r.Items {
		payload, err := json.Marshal(it)
		if err != nil {
			return errors.Wrapf(err, "encode review item %s", it.Key)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO review_items (review_id, item_key, position, kind, payload, decision) VALUES (?, ?, ?, ?, ?, ?)`,
			r.ID, it.Key, i, string(it.Kind), string(payload), string(it.Decision),
		); err != nil {
			return errors.Wrapf(err, "insert review item %s", it.Key)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit review")
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*Review, error) {
	r := &Review{ID: id}
	var created time.Time
	err := s.db.QueryRowContext(ctx, `SELECT run_id, created_at FROM reviews WHERE id = ?`, id).Scan(&r.RunID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf("review %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load review %s", id)
	}
	r.CreatedAt = created

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload, decision FROM review_items WHERE review_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, errors.Wrapf(err, "load review items %s", id)
	}
	defer rows.Close()

	for rows.Next() {
		var payload, decision string
		if err := rows.Scan(&payload, &decision); err != nil {
			return nil, errors.Wrap(err, "scan review item")
		}
		var it Item
		if err := json.Unmarshal([]byte(payload), &it); err != nil {
			return nil, errors.Wrap(err, "decode review item")
		}
		it.Decision = Decision(decision)
		r.Items = append(r.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate review items")
	}
	return r, nil
}

func (s *SQLStore) SetDecision(ctx context.Context, id, key string, d Decision) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE review_items SET decision = ? WHERE review_id = ? AND item_key = ?`,
		string(d), id, key,
	)
	if err != nil {
		return errors.Wrapf(err, "update decision %s/%s", id, key)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return errs.NotFoundf("review item %s/%s", id, key)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin delete review")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM review_items WHERE review_id = ?`, id); err != nil {
		return errors.Wrapf(err, "delete review items %s", id)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM reviews WHERE id = ?`, id); err != nil {
		return errors.Wrapf(err, "delete review %s", id)
	}
	return errors.Wrap(tx.Commit(), "commit delete review")
}
