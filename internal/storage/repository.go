package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/Jeffreasy/tenantcore/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository is a generic CRUD layer over a single table, parameterized by
// an entity type T and a row type Row, with explicit mapping functions
// supplied by the concrete repository instead of ORM reflection — per the
// teacher's to_row/from_row design note.
type Repository[T any, Row any] struct {
	table        string
	toRow        func(T) Row
	fromRow      func(Row) T
	scanRow      func(pgx.Row) (Row, error)
	insertCols   []string
	rowValues    func(Row) []any
	tenantScoped bool
}

// NewRepository constructs a Repository. insertCols/rowValues drive Add;
// scanRow drives every read path. tenantScoped repositories refuse to run
// without an active, non-admin tenant context (see requireTenant).
func NewRepository[T any, Row any](
	table string,
	toRow func(T) Row,
	fromRow func(Row) T,
	scanRow func(pgx.Row) (Row, error),
	insertCols []string,
	rowValues func(Row) []any,
	tenantScoped bool,
) *Repository[T, Row] {
	return &Repository[T, Row]{
		table: table, toRow: toRow, fromRow: fromRow, scanRow: scanRow,
		insertCols: insertCols, rowValues: rowValues, tenantScoped: tenantScoped,
	}
}

// requireTenant panics with ErrTenantContextMissing if this repository is
// tenant-scoped and the UoW was not opened with a concrete tenant — a
// programmer error, not a recoverable condition, per spec §7.
func (r *Repository[T, Row]) requireTenant(uow *UnitOfWork) {
	if !r.tenantScoped {
		return
	}
	if uow.tenant.Admin {
		return
	}
	if !uow.tenant.HasTenant() {
		panic(domain.ErrTenantContextMissing)
	}
}

func (r *Repository[T, Row]) placeholders(n int) string {
	s := ""
	for i := 1; i <= n; i++ {
		if i > 1 {
			s += ", "
		}
		s += fmt.Sprintf("$%d", i)
	}
	return s
}

// Add inserts a new entity.
func (r *Repository[T, Row]) Add(ctx context.Context, uow *UnitOfWork, entity T) error {
	r.requireTenant(uow)
	row := r.toRow(entity)
	cols := r.insertCols
	colList := ""
	for i, c := range cols {
		if i > 0 {
			colList += ", "
		}
		colList += c
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", r.table, colList, r.placeholders(len(cols)))
	_, err := uow.Tx().Exec(ctx, query, r.rowValues(row)...)
	return NewStorageError("Add:"+r.table, err)
}

// GetByID fetches a single row by primary key.
func (r *Repository[T, Row]) GetByID(ctx context.Context, uow *UnitOfWork, id uuid.UUID) (T, error) {
	r.requireTenant(uow)
	var zero T
	query := fmt.Sprintf("SELECT * FROM %s WHERE id = $1", r.table)
	pgRow := uow.Tx().QueryRow(ctx, query, id)
	row, err := r.scanRow(pgRow)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, fmt.Errorf("%s: %w", r.table, domain.ErrNotFound)
		}
		return zero, NewStorageError("GetByID:"+r.table, err)
	}
	return r.fromRow(row), nil
}

// GetByIDs fetches all rows whose primary key is in ids, in no particular
// order; callers that need ordering re-sort client side.
func (r *Repository[T, Row]) GetByIDs(ctx context.Context, uow *UnitOfWork, ids []uuid.UUID) ([]T, error) {
	r.requireTenant(uow)
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT * FROM %s WHERE id = ANY($1)", r.table)
	rows, err := uow.Tx().Query(ctx, query, ids)
	if err != nil {
		return nil, NewStorageError("GetByIDs:"+r.table, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		row, err := r.scanRow(rows)
		if err != nil {
			return nil, NewStorageError("GetByIDs:"+r.table, err)
		}
		out = append(out, r.fromRow(row))
	}
	return out, NewStorageError("GetByIDs:"+r.table, rows.Err())
}

// FindOne runs whereSQL (e.g. "email = $1") against the table and returns
// the first match.
func (r *Repository[T, Row]) FindOne(ctx context.Context, uow *UnitOfWork, whereSQL string, args ...any) (T, error) {
	r.requireTenant(uow)
	var zero T
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s LIMIT 1", r.table, whereSQL)
	pgRow := uow.Tx().QueryRow(ctx, query, args...)
	row, err := r.scanRow(pgRow)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, fmt.Errorf("%s: %w", r.table, domain.ErrNotFound)
		}
		return zero, NewStorageError("FindOne:"+r.table, err)
	}
	return r.fromRow(row), nil
}

// FindAll runs whereSQL against the table and returns every match.
func (r *Repository[T, Row]) FindAll(ctx context.Context, uow *UnitOfWork, whereSQL string, args ...any) ([]T, error) {
	r.requireTenant(uow)
	query := fmt.Sprintf("SELECT * FROM %s", r.table)
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}
	rows, err := uow.Tx().Query(ctx, query, args...)
	if err != nil {
		return nil, NewStorageError("FindAll:"+r.table, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		row, err := r.scanRow(rows)
		if err != nil {
			return nil, NewStorageError("FindAll:"+r.table, err)
		}
		out = append(out, r.fromRow(row))
	}
	return out, NewStorageError("FindAll:"+r.table, rows.Err())
}

// Update replaces an existing row's non-key columns with entity's values.
// setSQL is a comma-separated SET clause (e.g. "status = $2, updated_at =
// $3"); args must start with the WHERE id value followed by the SET values
// in the same order as the placeholders.
func (r *Repository[T, Row]) Update(ctx context.Context, uow *UnitOfWork, id uuid.UUID, setSQL string, args ...any) error {
	r.requireTenant(uow)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $1", r.table, setSQL)
	full := append([]any{id}, args...)
	tag, err := uow.Tx().Exec(ctx, query, full...)
	if err != nil {
		return NewStorageError("Update:"+r.table, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", r.table, domain.ErrNotFound)
	}
	return nil
}

// Delete removes a single row by id.
func (r *Repository[T, Row]) Delete(ctx context.Context, uow *UnitOfWork, id uuid.UUID) error {
	r.requireTenant(uow)
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", r.table)
	tag, err := uow.Tx().Exec(ctx, query, id)
	if err != nil {
		return NewStorageError("Delete:"+r.table, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", r.table, domain.ErrNotFound)
	}
	return nil
}

// DeleteMany removes every row matching whereSQL.
func (r *Repository[T, Row]) DeleteMany(ctx context.Context, uow *UnitOfWork, whereSQL string, args ...any) (int64, error) {
	r.requireTenant(uow)
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", r.table, whereSQL)
	tag, err := uow.Tx().Exec(ctx, query, args...)
	if err != nil {
		return 0, NewStorageError("DeleteMany:"+r.table, err)
	}
	return tag.RowsAffected(), nil
}

// Count returns the number of rows matching whereSQL ("" counts the whole
// table).
func (r *Repository[T, Row]) Count(ctx context.Context, uow *UnitOfWork, whereSQL string, args ...any) (int64, error) {
	r.requireTenant(uow)
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", r.table)
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}
	var n int64
	err := uow.Tx().QueryRow(ctx, query, args...).Scan(&n)
	return n, NewStorageError("Count:"+r.table, err)
}

// Exists reports whether any row matches whereSQL.
func (r *Repository[T, Row]) Exists(ctx context.Context, uow *UnitOfWork, whereSQL string, args ...any) (bool, error) {
	n, err := r.Count(ctx, uow, whereSQL, args...)
	return n > 0, err
}

// QueryRaw is the escape hatch for queries the generic shape can't express
// (the audit partition scan, aggregate reports). The caller supplies its
// own scan function and is responsible for closing nothing — rows.Close()
// happens here.
func (r *Repository[T, Row]) QueryRaw(ctx context.Context, uow *UnitOfWork, query string, scan func(pgx.Rows) error, args ...any) error {
	r.requireTenant(uow)
	rows, err := uow.Tx().Query(ctx, query, args...)
	if err != nil {
		return NewStorageError("QueryRaw", err)
	}
	defer rows.Close()
	return scan(rows)
}
