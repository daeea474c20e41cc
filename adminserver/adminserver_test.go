package adminserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/sigvend/sigvend-server/dal"
	"github.com/sigvend/sigvend-server/feemgr"
	"github.com/sigvend/sigvend-server/model"
	"github.com/sigvend/sigvend-server/monerojson"
	"github.com/sigvend/sigvend-server/ordermgr"
	"github.com/sigvend/sigvend-server/walletclient"
)

// newTestServer builds an admin server over a fresh temp database and
// starts it on an ephemeral port. The returned URL is the RPC endpoint.
func newTestServer(t *testing.T) (*AdminServer, string) {
	t.Helper()

	err := dal.InitDB(&dal.DBConfig{
		Path: filepath.Join(t.TempDir(), "test.db"),
	}, true)
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	ctx := context.Background()
	db := dal.GetDB(ctx)

	// The wallet endpoint is never dialed by the methods under test.
	wallet := walletclient.NewRPCClient("127.0.0.1", 1, time.Second)
	orders := ordermgr.NewOrderManager(model.PaymentPollConfig{
		Interval:              time.Minute,
		RequiredConfirmations: 10,
		OrderExpiry:           time.Hour,
	}, db, wallet, feemgr.NewFeeManager(feemgr.Config{}, wallet))

	s, err := NewAdminServer(Config{
		Listen:         "127.0.0.1:0",
		RPCUser:        "op",
		RPCPass:        "secret",
		MasterPassword: "master",
		OrderExpiry:    time.Hour,
	}, Deps{
		DB:     db,
		Orders: orders,
		Wallet: wallet,
	})
	if err != nil {
		t.Fatalf("NewAdminServer: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(s.Stop)

	return s, "http://" + s.listener.Addr().String() + "/"
}

func post(t *testing.T, url, user, pass, method string, params interface{}) (*http.Response, *monerojson.Response) {
	t.Helper()

	request, err := monerojson.NewRequest(method, params)
	if err != nil {
		t.Fatal(err)
	}
	body, err := json.Marshal(request)
	if err != nil {
		t.Fatal(err)
	}
	httpReq, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if user != "" {
		httpReq.SetBasicAuth(user, pass)
	}

	httpResp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return httpResp, nil
	}
	var response monerojson.Response
	if err := json.NewDecoder(httpResp.Body).Decode(&response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return httpResp, &response
}

func TestNewAdminServerRequiresCredentials(t *testing.T) {
	if _, err := NewAdminServer(Config{Listen: "127.0.0.1:0"}, Deps{}); err == nil {
		t.Fatal("server accepted empty credentials")
	}
}

func TestAuthRejection(t *testing.T) {
	_, url := newTestServer(t)

	httpResp, _ := post(t, url, "", "", MethodListProducts, nil)
	if httpResp.StatusCode != http.StatusUnauthorized {
		t.Errorf("missing auth: status %d, want 401", httpResp.StatusCode)
	}

	httpResp, _ = post(t, url, "op", "wrong", MethodListProducts, nil)
	if httpResp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong password: status %d, want 401", httpResp.StatusCode)
	}
}

func TestUnknownMethod(t *testing.T) {
	_, url := newTestServer(t)

	httpResp, response := post(t, url, "op", "secret", "mineblock", nil)
	if httpResp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", httpResp.StatusCode)
	}
	if response.Error == nil || response.Error.Code != ErrCodeUnknownMethod {
		t.Errorf("unknown method error: %+v, want code %d",
			response.Error, ErrCodeUnknownMethod)
	}
}

func TestProductRoundTripOverRPC(t *testing.T) {
	_, url := newTestServer(t)

	_, response := post(t, url, "op", "secret", MethodCreateProduct, CreateProductCmd{
		Name:     "Tea Sampler",
		Price:    9.5,
		Currency: "EUR",
		Stock:    12,
	})
	if response.Error != nil {
		t.Fatalf("createproduct: %v", response.Error)
	}
	var created ProductResult
	if err := json.Unmarshal(response.Result, &created); err != nil {
		t.Fatal(err)
	}
	if created.ID == 0 || created.Name != "Tea Sampler" {
		t.Fatalf("unexpected created product: %+v", created)
	}

	_, response = post(t, url, "op", "secret", MethodListProducts, ListProductsCmd{
		Page: 1, Num: 10,
	})
	if response.Error != nil {
		t.Fatalf("listproducts: %v", response.Error)
	}
	var listed []ProductResult
	if err := json.Unmarshal(response.Result, &listed); err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 || listed[0].ID != created.ID {
		t.Errorf("listed products: %+v, want the one created", listed)
	}
}
