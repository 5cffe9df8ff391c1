// Package postgres provides the PostgreSQL folder backend, backed by a
// pgx connection pool and golang-migrate schema management.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arborhq/arbor/pkg/folder"
	"github.com/arborhq/arbor/pkg/folder/acl"
)

// Store implements folder.Backend on PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	config Config
	logger *slog.Logger
}

// NewStore connects the pool and optionally runs migrations.
func NewStore(ctx context.Context, config Config, logger *slog.Logger) (*Store, error) {
	config.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	poolConfig.MaxConns = config.MaxConns
	poolConfig.MinConns = config.MinConns
	poolConfig.MaxConnLifetime = config.MaxConnLifetime
	poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = config.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if config.AutoMigrate {
		if err := runMigrations(ctx, config, logger); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return &Store{pool: pool, config: config, logger: logger}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// querier abstracts pool vs. transaction so the row mapping is written
// once.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const nodeColumns = `
	tenant, id, parent, name, type, module,
	created_by, modified_by, created_at, modified_at,
	is_default, is_trash, has_subfolders, meta`

func scanNode(row pgx.Row) (*folder.Node, error) {
	var n folder.Node
	err := row.Scan(
		&n.Tenant, &n.ID, &n.Parent, &n.Name, &n.Type, &n.Module,
		&n.CreatedBy, &n.ModifiedBy, &n.CreatedAt, &n.ModifiedAt,
		&n.Default, &n.Trash, &n.HasSubfolders, &n.Meta,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func getNode(ctx context.Context, q querier, tenant, id int64) (*folder.Node, error) {
	query := `SELECT ` + nodeColumns + ` FROM folders WHERE tenant = $1 AND id = $2`
	node, err := scanNode(q.QueryRow(ctx, query, tenant, id))
	if err != nil {
		return nil, mapPgError(err, "get folder", id)
	}
	if err := loadPermissions(ctx, q, node); err != nil {
		return nil, err
	}
	return node, nil
}

func getChildren(ctx context.Context, q querier, tenant, parent int64) ([]*folder.Node, error) {
	query := `SELECT ` + nodeColumns + `
		FROM folders
		WHERE tenant = $1 AND parent = $2 AND id <> parent
		ORDER BY is_default DESC, name ASC`
	rows, err := q.Query(ctx, query, tenant, parent)
	if err != nil {
		return nil, mapPgError(err, "list children", parent)
	}
	defer rows.Close()

	var children []*folder.Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, mapPgError(err, "scan child", parent)
		}
		children = append(children, node)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err, "list children", parent)
	}

	for _, child := range children {
		if err := loadPermissions(ctx, q, child); err != nil {
			return nil, err
		}
	}
	return children, nil
}

func getChildByName(ctx context.Context, q querier, tenant, parent int64, name string) (*folder.Node, error) {
	query := `SELECT ` + nodeColumns + `
		FROM folders
		WHERE tenant = $1 AND parent = $2 AND LOWER(name) = LOWER($3)`
	node, err := scanNode(q.QueryRow(ctx, query, tenant, parent, name))
	if err != nil {
		return nil, mapPgError(err, "resolve child by name", parent)
	}
	if err := loadPermissions(ctx, q, node); err != nil {
		return nil, err
	}
	return node, nil
}

func getTrashRoot(ctx context.Context, q querier, tenant, owner int64) (*folder.Node, error) {
	query := `SELECT ` + nodeColumns + `
		FROM folders
		WHERE tenant = $1 AND created_by = $2 AND is_trash`
	node, err := scanNode(q.QueryRow(ctx, query, tenant, owner))
	if err != nil {
		return nil, mapPgError(err, "resolve trash root", 0)
	}
	if err := loadPermissions(ctx, q, node); err != nil {
		return nil, err
	}
	return node, nil
}

func loadPermissions(ctx context.Context, q querier, node *folder.Node) error {
	query := `
		SELECT subject, is_group, folder_level, read_level, write_level,
		       delete_level, is_admin, is_system
		FROM folder_permissions
		WHERE tenant = $1 AND folder_id = $2
		ORDER BY is_group, subject`
	rows, err := q.Query(ctx, query, node.Tenant, node.ID)
	if err != nil {
		return mapPgError(err, "load permissions", node.ID)
	}
	defer rows.Close()

	node.Permissions = nil
	for rows.Next() {
		var e acl.Entry
		if err := rows.Scan(
			&e.Subject, &e.Group, &e.Folder, &e.Read, &e.Write,
			&e.Delete, &e.Admin, &e.System,
		); err != nil {
			return mapPgError(err, "scan permission", node.ID)
		}
		node.Permissions = append(node.Permissions, e)
	}
	return mapPgError(rows.Err(), "load permissions", node.ID)
}

// Get implements folder.Queries.
func (s *Store) Get(ctx context.Context, tenant, id int64) (*folder.Node, error) {
	return getNode(ctx, s.pool, tenant, id)
}

// Children implements folder.Queries.
func (s *Store) Children(ctx context.Context, tenant, parent int64) ([]*folder.Node, error) {
	return getChildren(ctx, s.pool, tenant, parent)
}

// ChildByName implements folder.Queries.
func (s *Store) ChildByName(ctx context.Context, tenant, parent int64, name string) (*folder.Node, error) {
	return getChildByName(ctx, s.pool, tenant, parent, name)
}

// TrashRoot implements folder.Queries.
func (s *Store) TrashRoot(ctx context.Context, tenant, owner int64) (*folder.Node, error) {
	return getTrashRoot(ctx, s.pool, tenant, owner)
}

// Begin implements folder.Backend.
func (s *Store) Begin(ctx context.Context) (folder.Tx, error) {
	pgxTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, mapPgError(err, "begin transaction", 0)
	}
	return &tx{inner: pgxTx}, nil
}

// DeleteReservation implements folder.Backend.
func (s *Store) DeleteReservation(ctx context.Context, tenant, parent, nameHash int64) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM folder_reservations WHERE tenant = $1 AND parent = $2 AND name_hash = $3`,
		tenant, parent, nameHash)
	return mapPgError(err, "delete reservation", parent)
}

// DeleteExpiredReservations implements folder.Backend.
func (s *Store) DeleteExpiredReservations(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM folder_reservations WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, mapPgError(err, "sweep reservations", 0)
	}
	return tag.RowsAffected(), nil
}

var _ folder.Backend = (*Store)(nil)
