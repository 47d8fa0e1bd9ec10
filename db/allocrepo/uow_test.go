package allocrepo

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/pkg/errors"
	"github.com/sksmith/allocation-service/core"
	"github.com/sksmith/allocation-service/core/allocation"
	"github.com/sksmith/allocation-service/db"
	"github.com/sksmith/allocation-service/test"
)

func TestMain(m *testing.M) {
	test.ConfigLogging()
	os.Exit(m.Run())
}

type storedProduct struct {
	skuID   uuid.UUID
	batchID uuid.UUID
	itemID  uuid.UUID
	eta     time.Time
}

// mockLoad makes tx answer the load queries for a product at version 3 with
// one dated batch holding one order item.
func mockLoad(tx *db.MockTransaction) storedProduct {
	sp := storedProduct{
		skuID:   uuid.New(),
		batchID: uuid.New(),
		itemID:  uuid.New(),
		eta:     time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}

	tx.QueryRowFunc = func(ctx context.Context, sql string, args ...interface{}) pgx.Row {
		return db.NewMockRowOf(sp.skuID.String(), "SMALL-TABLE", int64(3), "Active")
	}
	tx.QueryFunc = func(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
		switch {
		case strings.Contains(sql, "FROM allocations"):
			return db.NewMockRows([]interface{}{sp.itemID.String(), sp.batchID.String()}), nil
		case strings.Contains(sql, "FROM order_items"):
			return db.NewMockRows([]interface{}{sp.itemID.String(), int64(4), "Active"}), nil
		case strings.Contains(sql, "FROM batches"):
			return db.NewMockRows([]interface{}{sp.batchID.String(), int64(10), pgtype.Date{Time: sp.eta, Status: pgtype.Present}, "Active"}), nil
		}
		return db.NewMockRows(), nil
	}
	return sp
}

func newTestUnitOfWork(tx *db.MockTransaction) *unitOfWork {
	return &unitOfWork{begin: func(ctx context.Context) (core.Transaction, error) { return tx, nil }}
}

func TestLoad(t *testing.T) {
	tx := db.NewMockTransaction()
	sp := mockLoad(tx)

	p, err := NewProductStore(tx).Load(context.Background(), sp.skuID)
	if err != nil {
		t.Fatal(err)
	}

	if p.SkuID() != sp.skuID || p.SKU().Name != "SMALL-TABLE" || p.Version() != 3 {
		t.Errorf("product got sku=%s name=%s version=%d", p.SkuID(), p.SKU().Name, p.Version())
	}
	b, err := p.Batch(sp.batchID)
	if err != nil {
		t.Fatal(err)
	}
	if b.ETA == nil || !b.ETA.Equal(sp.eta) {
		t.Errorf("eta got=%v want=%v", b.ETA, sp.eta)
	}
	if b.AvailableQuantity() != 6 {
		t.Errorf("available got=%d want=6", b.AvailableQuantity())
	}
	if held, ok := p.AllocatedBatch(sp.itemID); !ok || held.ID != sp.batchID {
		t.Errorf("allocation not restored")
	}
	if len(p.PendingEvents()) != 0 {
		t.Errorf("loaded product has %d events", len(p.PendingEvents()))
	}
}

func TestLoadMissing(t *testing.T) {
	tx := db.NewMockTransaction()

	_, err := NewProductStore(tx).Load(context.Background(), uuid.New())
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("err got=%v want=%v", err, core.ErrNotFound)
	}
}

func TestUpdateStaleVersion(t *testing.T) {
	tx := db.NewMockTransaction()
	tx.ExecFunc = func(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
		return pgconn.CommandTag("UPDATE 0"), nil
	}
	p := allocation.NewProduct(allocation.NewSKU("SMALL-TABLE"))

	err := NewProductStore(tx).Update(context.Background(), p, 7)
	if !errors.Is(err, core.ErrConflict) {
		t.Errorf("err got=%v want=%v", err, core.ErrConflict)
	}
	tx.VerifyCount("Exec", 1, t)
}

func TestInsertDuplicate(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		wantExists bool
	}{
		{name: "sku already stored", constraint: "skus_pkey", wantExists: true},
		{name: "product already stored", constraint: "products_pkey", wantExists: true},
		{name: "batch id reused", constraint: "batches_pkey", wantExists: false},
		{name: "order item id reused", constraint: "order_items_pkey", wantExists: false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tx := db.NewMockTransaction()
			tx.ExecFunc = func(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
				return nil, &pgconn.PgError{Code: "23505", ConstraintName: test.constraint}
			}
			p := allocation.NewProduct(allocation.NewSKU("SMALL-TABLE"))

			err := NewProductStore(tx).Insert(context.Background(), p)
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := errors.Is(err, allocation.ErrProductExists); got != test.wantExists {
				t.Errorf("product exists got=%v want=%v err=%v", got, test.wantExists, err)
			}
			var pgErr *pgconn.PgError
			if !test.wantExists && (!errors.As(err, &pgErr) || pgErr.ConstraintName != test.constraint) {
				t.Errorf("driver error should be kept got=%v", err)
			}
		})
	}
}

func TestInsertWritesEtaAsDate(t *testing.T) {
	tx := db.NewMockTransaction()
	var eta interface{}
	tx.ExecFunc = func(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
		if strings.Contains(sql, "INSERT INTO batches") {
			eta = args[3]
		}
		return pgconn.CommandTag("INSERT 0 1"), nil
	}
	sku := allocation.NewSKU("SMALL-TABLE")
	p := allocation.NewProduct(sku)
	evening := time.Date(2026, 3, 2, 17, 45, 0, 0, time.FixedZone("CET", 60*60))
	b, _ := allocation.NewBatch(sku.ID, 10, &evening)
	_ = p.RegisterBatch(b)

	if err := NewProductStore(tx).Insert(context.Background(), p); err != nil {
		t.Fatal(err)
	}

	d, ok := eta.(pgtype.Date)
	if !ok {
		t.Fatalf("eta param got=%T want=pgtype.Date", eta)
	}
	want := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if d.Status != pgtype.Present || !d.Time.Equal(want) {
		t.Errorf("eta param got=%v want=%v", d.Time, want)
	}
}

func TestInsertWritesChildren(t *testing.T) {
	tx := db.NewMockTransaction()
	sku := allocation.NewSKU("SMALL-TABLE")
	p := allocation.NewProduct(sku)
	b, _ := allocation.NewBatch(sku.ID, 10, nil)
	_ = p.RegisterBatch(b)
	oi, _ := allocation.NewOrderItem(sku.ID, 2)
	if _, err := p.Allocate(oi); err != nil {
		t.Fatal(err)
	}

	if err := NewProductStore(tx).Insert(context.Background(), p); err != nil {
		t.Fatal(err)
	}

	// sku, product, batch, order item, allocation cleanup, allocation
	tx.VerifyCount("Exec", 6, t)
}

func TestCommit(t *testing.T) {
	tx := db.NewMockTransaction()
	uow := newTestUnitOfWork(tx)
	ctx := context.Background()

	if err := uow.Begin(ctx); err != nil {
		t.Fatal(err)
	}
	if err := uow.Products().Add(ctx, allocation.NewProduct(allocation.NewSKU("SMALL-TABLE"))); err != nil {
		t.Fatal(err)
	}
	if err := uow.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	tx.VerifyCount("Commit", 1, t)
	tx.VerifyCount("Rollback", 0, t)

	if err := uow.Rollback(ctx); err != nil {
		t.Errorf("rollback after commit failed: %v", err)
	}
	tx.VerifyCount("Rollback", 0, t)

	if err := uow.Commit(ctx); !errors.Is(err, ErrNotStarted) {
		t.Errorf("second commit err got=%v want=%v", err, ErrNotStarted)
	}
}

func TestCommitConflictRollsBack(t *testing.T) {
	tx := db.NewMockTransaction()
	sp := mockLoad(tx)
	tx.ExecFunc = func(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
		return pgconn.CommandTag("UPDATE 0"), nil
	}
	uow := newTestUnitOfWork(tx)
	ctx := context.Background()

	err := allocation.Do(ctx, uow, func(ctx context.Context, products allocation.ProductRepository) error {
		p, err := products.Get(ctx, sp.skuID)
		if err != nil {
			return err
		}
		p.Rename("LARGE-TABLE")
		return nil
	})

	if !errors.Is(err, core.ErrConflict) {
		t.Errorf("err got=%v want=%v", err, core.ErrConflict)
	}
	tx.VerifyCount("Commit", 0, t)
	tx.VerifyCount("Rollback", 1, t)
}

func TestCommitSerializationFailure(t *testing.T) {
	tx := db.NewMockTransaction()
	tx.CommitFunc = func(ctx context.Context) error {
		return &pgconn.PgError{Code: "40001"}
	}
	uow := newTestUnitOfWork(tx)
	ctx := context.Background()

	if err := uow.Begin(ctx); err != nil {
		t.Fatal(err)
	}
	err := uow.Commit(ctx)
	if !errors.Is(err, core.ErrConflict) {
		t.Errorf("err got=%v want=%v", err, core.ErrConflict)
	}
	if !allocation.IsRetryable(err) {
		t.Errorf("serialization failure should be retryable")
	}
}

func TestReadOnlyCommitWritesNothing(t *testing.T) {
	tx := db.NewMockTransaction()
	sp := mockLoad(tx)
	uow := newTestUnitOfWork(tx)

	err := allocation.Do(context.Background(), uow, func(ctx context.Context, products allocation.ProductRepository) error {
		_, err := products.Get(ctx, sp.skuID)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	tx.VerifyCount("Exec", 0, t)
	tx.VerifyCount("Commit", 1, t)
}

func TestBeginFailure(t *testing.T) {
	uow := &unitOfWork{begin: func(ctx context.Context) (core.Transaction, error) {
		return nil, errors.New("connection refused")
	}}

	err := allocation.Do(context.Background(), uow, func(ctx context.Context, products allocation.ProductRepository) error {
		t.Errorf("work ran without a transaction")
		return nil
	})
	if err == nil {
		t.Errorf("expected an error")
	}
}
