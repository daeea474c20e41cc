package ordermgr

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sigvend/sigvend-server/dal"
	"github.com/sigvend/sigvend-server/model"
	"github.com/sigvend/sigvend-server/service"
)

// TestSweepExpired checks that the expiry pass expires exactly the pending
// orders whose payment window lapsed and returns their reserved stock,
// leaving orders still inside their window untouched.
func TestSweepExpired(t *testing.T) {
	if err := dal.InitDB(&dal.DBConfig{Path: filepath.Join(t.TempDir(), "vend.db")}, true); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	db := dal.GetDB(ctx)

	product, err := service.GetProductService().CreateProduct(ctx, db, "hunter2",
		"widget", "a widget", 9.99, "USD", 10, "")
	if err != nil {
		t.Fatal(err)
	}

	lapsed, err := service.GetOrderService().CreateOrder(ctx, db, 1, product.ID,
		2, 1_000_000, "sub1", 1, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	open, err := service.GetOrderService().CreateOrder(ctx, db, 1, product.ID,
		1, 1_000_000, "sub2", 2, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	m := &OrderManager{db: db}
	m.sweepExpired(ctx)

	expired, err := service.GetOrderService().GetOrder(ctx, db, lapsed.ID)
	if err != nil {
		t.Fatal(err)
	}
	if expired.Status != string(model.OrderStatusExpired) {
		t.Fatalf("lapsed order status = %q, want expired", expired.Status)
	}

	pending, err := service.GetOrderService().GetOrder(ctx, db, open.ID)
	if err != nil {
		t.Fatal(err)
	}
	if pending.Status != string(model.OrderStatusPending) {
		t.Fatalf("open order status = %q, want pending", pending.Status)
	}

	// 10 in stock, 3 reserved, 2 returned by the expiry.
	after, err := service.GetProductService().GetProduct(ctx, db, "hunter2", product.ID)
	if err != nil {
		t.Fatal(err)
	}
	if after.Stock != 9 {
		t.Fatalf("stock after expiry = %d, want 9", after.Stock)
	}

	// A second pass finds nothing left to expire.
	m.sweepExpired(ctx)
	after, err = service.GetProductService().GetProduct(ctx, db, "hunter2", product.ID)
	if err != nil {
		t.Fatal(err)
	}
	if after.Stock != 9 {
		t.Fatalf("stock after repeated sweep = %d, want 9", after.Stock)
	}
}
