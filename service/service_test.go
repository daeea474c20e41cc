package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sigvend/sigvend-server/dal"
	"github.com/sigvend/sigvend-server/errcode"
	"github.com/sigvend/sigvend-server/model"

	"gorm.io/gorm"
)

const testMasterPassword = "correct horse battery staple"

// newTestDB opens a fresh database in a temp directory and returns a handle
// bound to the test context.
func newTestDB(t *testing.T) (context.Context, *gorm.DB) {
	t.Helper()
	err := dal.InitDB(&dal.DBConfig{
		Path: filepath.Join(t.TempDir(), "test.db"),
	}, true)
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	ctx := context.Background()
	return ctx, dal.GetDB(ctx)
}

func TestSellerLifecycle(t *testing.T) {
	ctx, tx := newTestDB(t)
	svc := GetSellerService()

	exists, err := svc.SellerExists(ctx, tx)
	if err != nil {
		t.Fatalf("SellerExists: %v", err)
	}
	if exists {
		t.Fatal("seller exists in a fresh database")
	}

	if _, err := svc.VerifyPIN(ctx, tx, "2580"); !errors.Is(err, errcode.ErrSellerNotInitialized) {
		t.Errorf("VerifyPIN before registration: got %v, want ErrSellerNotInitialized", err)
	}

	_, err = svc.RegisterSeller(ctx, tx, "2580", testMasterPassword,
		"+4915112345678", "store.wallet", "EUR", "888commission")
	if err != nil {
		t.Fatalf("RegisterSeller: %v", err)
	}

	if _, err := svc.RegisterSeller(ctx, tx, "1111", testMasterPassword,
		"", "other.wallet", "USD", ""); err == nil {
		t.Error("second registration succeeded")
	}

	ok, err := svc.VerifyPIN(ctx, tx, "2580")
	if err != nil || !ok {
		t.Errorf("VerifyPIN with correct PIN: ok=%v err=%v", ok, err)
	}
	ok, err = svc.VerifyPIN(ctx, tx, "0852")
	if err != nil || ok {
		t.Errorf("VerifyPIN with wrong PIN: ok=%v err=%v", ok, err)
	}

	identity, err := svc.GetIdentity(ctx, tx, testMasterPassword)
	if err != nil || identity != "+4915112345678" {
		t.Errorf("GetIdentity: got %q err=%v", identity, err)
	}
	commission, err := svc.GetCommissionAddress(ctx, tx, testMasterPassword)
	if err != nil || commission != "888commission" {
		t.Errorf("GetCommissionAddress: got %q err=%v", commission, err)
	}
	walletFile, err := svc.GetWalletFile(ctx, tx)
	if err != nil || walletFile != "store.wallet" {
		t.Errorf("GetWalletFile: got %q err=%v", walletFile, err)
	}

	if err := svc.ChangePIN(ctx, tx, "0000", "1234"); err == nil {
		t.Error("ChangePIN accepted a wrong old PIN")
	}
	if err := svc.ChangePIN(ctx, tx, "2580", "1234"); err != nil {
		t.Fatalf("ChangePIN: %v", err)
	}
	ok, err = svc.VerifyPIN(ctx, tx, "1234")
	if err != nil || !ok {
		t.Errorf("VerifyPIN after ChangePIN: ok=%v err=%v", ok, err)
	}
}

func TestProductCRUD(t *testing.T) {
	ctx, tx := newTestDB(t)
	svc := GetProductService()

	created, err := svc.CreateProduct(ctx, tx, testMasterPassword,
		"Coffee Beans", "1kg arabica", 12.5, "EUR", 10, "/data/img/beans.jpg")
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	if _, err := svc.CreateProduct(ctx, tx, testMasterPassword,
		"   ", "", 1, "EUR", 1, ""); err == nil {
		t.Error("blank product name accepted")
	}
	if _, err := svc.CreateProduct(ctx, tx, testMasterPassword,
		"Bad", "", -1, "EUR", 1, ""); err == nil {
		t.Error("negative price accepted")
	}

	details, err := svc.GetProduct(ctx, tx, testMasterPassword, created.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if details.Name != "Coffee Beans" || details.Stock != 10 || !details.Active {
		t.Errorf("unexpected product details: %+v", details)
	}
	if details.ImagePath != "/data/img/beans.jpg" {
		t.Errorf("image path not decrypted: %q", details.ImagePath)
	}

	// A wrong master password must degrade to an empty field, not an error.
	details, err = svc.GetProduct(ctx, tx, "wrong password", created.ID)
	if err != nil {
		t.Fatalf("GetProduct with wrong password: %v", err)
	}
	if details.ImagePath != "" {
		t.Error("image path decrypted with the wrong password")
	}

	err = svc.UpdateProduct(ctx, tx, created.ID, map[string]interface{}{
		"fiat_price": 15.0,
		"stock":      7,
	})
	if err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}
	details, err = svc.GetProduct(ctx, tx, testMasterPassword, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if details.FiatPrice != 15.0 || details.Stock != 7 {
		t.Errorf("update not applied: price=%v stock=%d", details.FiatPrice, details.Stock)
	}

	if err := svc.DeactivateProduct(ctx, tx, created.ID); err != nil {
		t.Fatalf("DeactivateProduct: %v", err)
	}
	active, err := svc.GetActiveProducts(ctx, tx, testMasterPassword)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range active {
		if p.ID == created.ID {
			t.Error("deactivated product still listed as active")
		}
	}
}

func TestOrderLifecycle(t *testing.T) {
	ctx, tx := newTestDB(t)
	products := GetProductService()
	orders := GetOrderService()

	product, err := products.CreateProduct(ctx, tx, testMasterPassword,
		"Sticker Pack", "", 3, "EUR", 5, "")
	if err != nil {
		t.Fatal(err)
	}

	stockOf := func() int {
		t.Helper()
		details, err := products.GetProduct(ctx, tx, testMasterPassword, product.ID)
		if err != nil {
			t.Fatal(err)
		}
		return details.Stock
	}

	order, err := orders.CreateOrder(ctx, tx, 1, product.ID, 2, 60_000_000_000,
		"8sub1", 1, time.Hour)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.Status != string(model.OrderStatusPending) {
		t.Errorf("new order status %q, want pending", order.Status)
	}
	if got := stockOf(); got != 3 {
		t.Errorf("stock after order: %d, want 3", got)
	}

	// Over-ordering must fail atomically without touching stock.
	if _, err := orders.CreateOrder(ctx, tx, 1, product.ID, 10, 1, "8sub2", 2,
		time.Hour); !errors.Is(err, errcode.ErrInsufficientStock) {
		t.Errorf("oversized order: got %v, want ErrInsufficientStock", err)
	}
	if got := stockOf(); got != 3 {
		t.Errorf("stock after refused order: %d, want 3", got)
	}

	err = orders.UpdateProgress(ctx, tx, order.ID, model.OrderStatusPartial,
		30_000_000_000, "tx1", 0)
	if err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}

	paidAt := time.Now()
	err = orders.MarkPaid(ctx, tx, order.ID, 60_000_000_000, "tx2", 10, 3_000_000_000, paidAt)
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}

	// A settled order is terminal for the poller.
	err = orders.MarkPaid(ctx, tx, order.ID, 60_000_000_000, "tx2", 11, 0, paidAt)
	if !errors.Is(err, errcode.ErrStaleTransition) {
		t.Errorf("second MarkPaid: got %v, want ErrStaleTransition", err)
	}
	err = orders.UpdateProgress(ctx, tx, order.ID, model.OrderStatusUnconfirmed,
		1, "tx3", 1)
	if !errors.Is(err, errcode.ErrStaleTransition) {
		t.Errorf("UpdateProgress on paid order: got %v, want ErrStaleTransition", err)
	}
	if err := orders.MarkExpired(ctx, tx, order.ID); !errors.Is(err, errcode.ErrStaleTransition) {
		t.Errorf("MarkExpired on paid order: got %v, want ErrStaleTransition", err)
	}
	if got := stockOf(); got != 3 {
		t.Errorf("stock changed by refused expiry: %d, want 3", got)
	}

	if err := orders.MarkShipped(ctx, tx, order.ID); err != nil {
		t.Fatalf("MarkShipped: %v", err)
	}
	got, err := orders.GetOrder(ctx, tx, order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != string(model.OrderStatusShipped) {
		t.Errorf("final status %q, want shipped", got.Status)
	}
	if got.AtomicReceived != 60_000_000_000 || got.AtomicFee != 3_000_000_000 {
		t.Errorf("amounts not persisted: received=%d fee=%d",
			got.AtomicReceived, got.AtomicFee)
	}
}

func TestCancelAndExpireRestoreStock(t *testing.T) {
	ctx, tx := newTestDB(t)
	products := GetProductService()
	orders := GetOrderService()

	product, err := products.CreateProduct(ctx, tx, testMasterPassword,
		"Poster", "", 8, "EUR", 4, "")
	if err != nil {
		t.Fatal(err)
	}

	cancelled, err := orders.CreateOrder(ctx, tx, 1, product.ID, 1,
		100_000_000_000, "8sub1", 1, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if err := orders.CancelOrder(ctx, tx, cancelled.ID); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}

	expired, err := orders.CreateOrder(ctx, tx, 1, product.ID, 2,
		200_000_000_000, "8sub2", 2, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if err := orders.MarkExpired(ctx, tx, expired.ID); err != nil {
		t.Fatalf("MarkExpired: %v", err)
	}

	details, err := products.GetProduct(ctx, tx, testMasterPassword, product.ID)
	if err != nil {
		t.Fatal(err)
	}
	if details.Stock != 4 {
		t.Errorf("stock after cancel and expiry: %d, want 4", details.Stock)
	}

	got, err := orders.GetOrder(ctx, tx, expired.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != string(model.OrderStatusExpired) {
		t.Errorf("expired order status %q", got.Status)
	}
}

func TestRecordTransfers(t *testing.T) {
	ctx, tx := newTestDB(t)
	products := GetProductService()
	orders := GetOrderService()

	product, err := products.CreateProduct(ctx, tx, testMasterPassword,
		"Mug", "", 6, "EUR", 3, "")
	if err != nil {
		t.Fatal(err)
	}
	order, err := orders.CreateOrder(ctx, tx, 1, product.ID, 1,
		150_000_000_000, "8sub1", 1, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	err = orders.RecordTransfers(ctx, tx, order.ID, []*model.OrderTransferDetails{
		{TxID: "aaa", AtomicAmount: 100_000_000_000, Height: 100, Confirmations: 2},
		{TxID: "bbb", AtomicAmount: 50_000_000_000, Height: 101, Confirmations: 1},
	})
	if err != nil {
		t.Fatalf("RecordTransfers: %v", err)
	}

	// A later sweep re-reports the same transfers with more confirmations;
	// the rows must update in place, not duplicate.
	err = orders.RecordTransfers(ctx, tx, order.ID, []*model.OrderTransferDetails{
		{TxID: "aaa", AtomicAmount: 100_000_000_000, Height: 100, Confirmations: 7},
		{TxID: "bbb", AtomicAmount: 50_000_000_000, Height: 101, Confirmations: 6},
	})
	if err != nil {
		t.Fatal(err)
	}

	transfers, err := orders.GetOrderTransfers(ctx, tx, order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(transfers) != 2 {
		t.Fatalf("got %d transfers, want 2", len(transfers))
	}
	byTx := make(map[string]*model.OrderTransferDetails)
	for _, tr := range transfers {
		byTx[tr.TxID] = tr
	}
	if byTx["aaa"] == nil || byTx["aaa"].Confirmations != 7 {
		t.Errorf("transfer aaa not updated: %+v", byTx["aaa"])
	}
	if byTx["bbb"] == nil || byTx["bbb"].AtomicAmount != 50_000_000_000 {
		t.Errorf("transfer bbb wrong: %+v", byTx["bbb"])
	}
}

func TestContactsAndMessages(t *testing.T) {
	ctx, tx := newTestDB(t)
	svc := GetMessageService()

	contact, created, err := svc.UpsertContact(ctx, tx, testMasterPassword, "+4915112345678")
	if err != nil {
		t.Fatalf("UpsertContact: %v", err)
	}
	if !created {
		t.Error("first upsert did not create the contact")
	}

	again, created, err := svc.UpsertContact(ctx, tx, testMasterPassword, "+4915112345678")
	if err != nil {
		t.Fatal(err)
	}
	if created || again.ID != contact.ID {
		t.Errorf("second upsert: created=%v id=%d, want existing id %d",
			created, again.ID, contact.ID)
	}

	if _, _, err := svc.UpsertContact(ctx, tx, testMasterPassword, "  "); err == nil {
		t.Error("blank address accepted")
	}

	details, err := svc.GetContact(ctx, tx, testMasterPassword, contact.ID)
	if err != nil {
		t.Fatal(err)
	}
	if details.Address != "+4915112345678" {
		t.Errorf("address not decrypted: %q", details.Address)
	}

	if err := svc.SetContactTrusted(ctx, tx, contact.ID, true); err != nil {
		t.Fatalf("SetContactTrusted: %v", err)
	}
	details, err = svc.GetContact(ctx, tx, testMasterPassword, contact.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !details.Trusted {
		t.Error("trusted flag not persisted")
	}

	_, err = svc.RecordIncoming(ctx, tx, testMasterPassword, contact.ID,
		"hi, is the mug still available?", time.Now().UnixMilli())
	if err != nil {
		t.Fatalf("RecordIncoming: %v", err)
	}
	_, err = svc.RecordOutgoing(ctx, tx, testMasterPassword, contact.ID,
		"yes, 3 left", true)
	if err != nil {
		t.Fatalf("RecordOutgoing: %v", err)
	}

	conversation, err := svc.GetConversation(ctx, tx, testMasterPassword, contact.ID, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(conversation) != 2 {
		t.Fatalf("got %d messages, want 2", len(conversation))
	}
	bodies := map[string]bool{}
	for _, msg := range conversation {
		bodies[msg.Body] = true
	}
	if !bodies["hi, is the mug still available?"] || !bodies["yes, 3 left"] {
		t.Errorf("conversation bodies wrong: %v", bodies)
	}

	// A wrong master password blanks the bodies record by record but still
	// returns the rows.
	conversation, err = svc.GetConversation(ctx, tx, "wrong password", contact.ID, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, msg := range conversation {
		if msg.Body != "" {
			t.Errorf("body decrypted with the wrong password: %q", msg.Body)
		}
	}
}
