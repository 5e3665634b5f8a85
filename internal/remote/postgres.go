package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/vaxtrack/internal/dbx"
	"github.com/dmitrijs2005/vaxtrack/internal/remote/migrations"
	json "github.com/goccy/go-json"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const defaultPollInterval = 2 * time.Second

// PostgresStore keeps every collection in one JSONB documents table. Live
// subscriptions poll at PollInterval.
type PostgresStore struct {
	db           *sql.DB
	pollInterval time.Duration
}

// OpenPostgres connects through the pgx driver.
func OpenPostgres(dsn string, pollInterval time.Duration) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	return NewPostgresStore(db, pollInterval), nil
}

func NewPostgresStore(db *sql.DB, pollInterval time.Duration) *PostgresStore {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &PostgresStore{db: db, pollInterval: pollInterval}
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, s.db, ".")
}

func (s *PostgresStore) conn(ctx context.Context) dbx.DBTX {
	return dbx.Conn(ctx, s.db)
}

func (s *PostgresStore) Fetch(ctx context.Context, collection string, f Filter) ([]Document, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}

	query := `SELECT id, data FROM documents WHERE collection = $1`
	args := []any{collection}

	if f.Field != "" {
		if len(f.Values) == 0 {
			return nil, nil
		}
		placeholders := make([]string, len(f.Values))
		for i, v := range f.Values {
			args = append(args, v)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		// the field is a literal so the planner can use its expression index
		query += ` AND data->>'` + f.Field + `' IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY id`

	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		data, err := decodeData(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
		}
		docs = append(docs, Document{ID: id, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return docs, nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var raw []byte
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`, collection, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
		}
		return Document{}, fmt.Errorf("db error: %w", err)
	}

	data, err := decodeData(raw)
	if err != nil {
		return Document{}, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return Document{ID: id, Data: data}, nil
}

func (s *PostgresStore) Put(ctx context.Context, collection, id string, data map[string]any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = s.conn(ctx).ExecContext(ctx, `
		INSERT INTO documents (collection, id, data, updated_at) VALUES ($1, $2, $3::jsonb, now())
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()
	`, collection, id, string(b))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	b, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE documents SET data = data || $3::jsonb, updated_at = now()
		WHERE collection = $1 AND id = $2
	`, collection, id, string(b))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.conn(ctx).ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *PostgresStore) Listen(ctx context.Context, collection string, f Filter) (*Subscription, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	sub := newSubscription()
	trigger := make(chan struct{})

	go func() {
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sub.done:
				return
			case <-ticker.C:
				select {
				case trigger <- struct{}{}:
				case <-sub.done:
					return
				}
			}
		}
	}()

	sub.run(ctx, trigger, func(ctx context.Context) ([]Document, error) {
		return s.Fetch(ctx, collection, f)
	})
	return sub, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
