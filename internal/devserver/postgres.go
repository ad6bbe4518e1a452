package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uwscope/scope-web-sub000/internal/model"
	"github.com/uwscope/scope-web-sub000/internal/platform/db"
)

// PostgresRepository stores each patient as a jsonb document in the patients
// table created by the embedded migrations.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) ListPatients(ctx context.Context) ([]model.PatientSummary, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT id, document->'profile' FROM patients ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	out := []model.PatientSummary{}
	for rows.Next() {
		var (
			s       model.PatientSummary
			profile []byte
		)
		if err := rows.Scan(&s.PatientID, &profile); err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		if err := json.Unmarshal(profile, &s.Profile); err != nil {
			return nil, fmt.Errorf("decode profile of %s: %w", s.PatientID, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) GetPatient(ctx context.Context, id string) (model.PatientDocument, error) {
	return r.load(ctx, db.Conn(ctx, r.pool), id, false)
}

func (r *PostgresRepository) load(ctx context.Context, q db.Querier, id string, lock bool) (model.PatientDocument, error) {
	sql := `SELECT document FROM patients WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	var b []byte
	if err := q.QueryRow(ctx, sql, id).Scan(&b); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PatientDocument{}, fmt.Errorf("patient %s: %w", id, ErrNotFound)
		}
		return model.PatientDocument{}, fmt.Errorf("load patient %s: %w", id, err)
	}
	return decodeDocument(b)
}

func (r *PostgresRepository) CreatePatient(ctx context.Context, doc model.PatientDocument) error {
	b, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	_, err = db.Conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO patients (id, document) VALUES ($1, $2)`, doc.PatientID, b)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("patient %s: %w", doc.PatientID, ErrExists)
	}
	if err != nil {
		return fmt.Errorf("insert patient %s: %w", doc.PatientID, err)
	}
	return nil
}

func (r *PostgresRepository) UpdatePatient(ctx context.Context, id string, fn func(*model.PatientDocument) error) (model.PatientDocument, error) {
	var out model.PatientDocument
	err := db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		tx := db.TxFromContext(ctx)
		doc, err := r.load(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := fn(&doc); err != nil {
			return err
		}
		b, err := encodeDocument(doc)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE patients SET document = $2, updated_at = NOW() WHERE id = $1`, id, b); err != nil {
			return fmt.Errorf("update patient %s: %w", id, err)
		}
		out = doc
		return nil
	})
	return out, err
}

func (r *PostgresRepository) ListProviders(ctx context.Context) ([]model.Provider, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT id, name, role FROM providers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()

	out := []model.Provider{}
	for rows.Next() {
		var p model.Provider
		if err := rows.Scan(&p.ProviderID, &p.Name, &p.Role); err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) PutProvider(ctx context.Context, p model.Provider) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO providers (id, name, role) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, role = EXCLUDED.role`,
		p.ProviderID, p.Name, string(p.Role))
	if err != nil {
		return fmt.Errorf("put provider %s: %w", p.ProviderID, err)
	}
	return nil
}

func (r *PostgresRepository) GetConfig(ctx context.Context) (map[string]any, error) {
	var b []byte
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT document FROM app_config WHERE id = 1`).Scan(&b)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("config: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	var cfg map[string]any
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func (r *PostgresRepository) PutConfig(ctx context.Context, cfg map[string]any) error {
	b, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	_, err = db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO app_config (id, document) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, updated_at = NOW()`, b)
	if err != nil {
		return fmt.Errorf("put config: %w", err)
	}
	return nil
}

var (
	_ Repository = (*PostgresRepository)(nil)
	_ Repository = (*MemoryRepository)(nil)
)
