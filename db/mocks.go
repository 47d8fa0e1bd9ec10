package db

import (
	"context"
	"reflect"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgproto3/v2"
	"github.com/jackc/pgx/v4"
	"github.com/pkg/errors"
	"github.com/sksmith/allocation-service/test"
)

type MockConn struct {
	QueryFunc    func(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...interface{}) pgx.Row
	ExecFunc     func(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	BeginFunc    func(ctx context.Context) (pgx.Tx, error)
	*test.CallWatcher
}

func NewMockConn() MockConn {
	return MockConn{
		QueryFunc: func(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
			return NewMockRows(), nil
		},
		QueryRowFunc: func(ctx context.Context, sql string, args ...interface{}) pgx.Row {
			return NewMockRow(pgx.ErrNoRows)
		},
		ExecFunc: func(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
			return pgconn.CommandTag("UPDATE 1"), nil
		},
		BeginFunc:   func(ctx context.Context) (pgx.Tx, error) { return nil, nil },
		CallWatcher: test.NewCallWatcher(),
	}
}

func (c *MockConn) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	c.AddCall(ctx, sql, args)
	return c.QueryFunc(ctx, sql, args...)
}

func (c *MockConn) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	c.AddCall(ctx, sql, args)
	return c.QueryRowFunc(ctx, sql, args...)
}

func (c *MockConn) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	c.AddCall(ctx, sql, args)
	return c.ExecFunc(ctx, sql, args...)
}

func (c *MockConn) Begin(ctx context.Context) (pgx.Tx, error) {
	c.AddCall(ctx)
	return c.BeginFunc(ctx)
}

// MockTransaction records its own calls and those of the embedded MockConn
// on the same watcher.
type MockTransaction struct {
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error

	MockConn
}

func NewMockTransaction() *MockTransaction {
	return &MockTransaction{
		MockConn:     NewMockConn(),
		CommitFunc:   func(ctx context.Context) error { return nil },
		RollbackFunc: func(ctx context.Context) error { return nil },
	}
}

func (t *MockTransaction) Commit(ctx context.Context) error {
	t.AddCall(ctx)
	return t.CommitFunc(ctx)
}

func (t *MockTransaction) Rollback(ctx context.Context) error {
	t.AddCall(ctx)
	return t.RollbackFunc(ctx)
}

// MockRows replays fixed rows. Scan copies each value into the matching
// destination, which must be a pointer to the value's exact type.
type MockRows struct {
	rows [][]interface{}
	pos  int
	err  error
}

func NewMockRows(rows ...[]interface{}) *MockRows {
	return &MockRows{rows: rows, pos: -1}
}

// FailWith makes Err report err once the rows are exhausted.
func (r *MockRows) FailWith(err error) *MockRows {
	r.err = err
	return r
}

func (r *MockRows) Close() {}

func (r *MockRows) Err() error {
	return r.err
}

func (r *MockRows) CommandTag() pgconn.CommandTag {
	return pgconn.CommandTag("SELECT")
}

func (r *MockRows) FieldDescriptions() []pgproto3.FieldDescription {
	return nil
}

func (r *MockRows) Next() bool {
	r.pos++
	return r.pos < len(r.rows)
}

func (r *MockRows) Scan(dest ...interface{}) error {
	if r.pos < 0 || r.pos >= len(r.rows) {
		return errors.New("scan called without a current row")
	}
	return scanInto(r.rows[r.pos], dest)
}

func (r *MockRows) Values() ([]interface{}, error) {
	return r.rows[r.pos], nil
}

func (r *MockRows) RawValues() [][]byte {
	return nil
}

type MockRow struct {
	values []interface{}
	err    error
}

// NewMockRow returns a row that fails Scan with err.
func NewMockRow(err error) *MockRow {
	return &MockRow{err: err}
}

func NewMockRowOf(values ...interface{}) *MockRow {
	return &MockRow{values: values}
}

func (r *MockRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	return scanInto(r.values, dest)
}

func scanInto(values []interface{}, dest []interface{}) error {
	if len(values) != len(dest) {
		return errors.Errorf("row has %d values, scanning into %d", len(values), len(dest))
	}
	for i, v := range values {
		d := reflect.ValueOf(dest[i])
		if d.Kind() != reflect.Ptr || d.IsNil() {
			return errors.Errorf("destination %d is not a pointer", i)
		}
		if v == nil {
			d.Elem().Set(reflect.Zero(d.Elem().Type()))
			continue
		}
		val := reflect.ValueOf(v)
		if !val.Type().AssignableTo(d.Elem().Type()) {
			return errors.Errorf("cannot scan %T into %T", v, dest[i])
		}
		d.Elem().Set(val)
	}
	return nil
}
