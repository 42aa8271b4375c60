package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/usecase"
)

func newTestApp(t *testing.T) (*fiber.App, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	engine := usecase.NewEngine(store, nil, nil)

	app := fiber.New()
	NewServer(engine).Register(app)
	return app, store
}

func seedOwner(t *testing.T, store *memory.Store, email, balance string) uuid.UUID {
	t.Helper()
	ownerID := uuid.New()
	err := store.CreateAccount(context.Background(), &domain.Account{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Email:     email,
		Currency:  "USD",
		Balance:   decimal.RequireFromString(balance),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return ownerID
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode body %q: %v", raw, err)
	}
	return out
}

func TestCreditEndpoint(t *testing.T) {
	app, store := newTestApp(t)
	owner := seedOwner(t, store, "a@example.com", "1000.00")

	resp, body := postJSON(t, app, "/v1/credit", map[string]string{
		"owner_id":  owner.String(),
		"amount":    "500.00",
		"reference": "R1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
	if body["reference"] != "R1" {
		t.Errorf("reference = %v", body["reference"])
	}
	if body["balance_after"] != "1500" && body["balance_after"] != "1500.00" {
		t.Errorf("balance_after = %v", body["balance_after"])
	}
}

func TestCreditEndpointDuplicate(t *testing.T) {
	app, store := newTestApp(t)
	owner := seedOwner(t, store, "a@example.com", "0.00")

	req := map[string]string{"owner_id": owner.String(), "amount": "10.00", "reference": "R1"}
	if resp, _ := postJSON(t, app, "/v1/credit", req); resp.StatusCode != http.StatusCreated {
		t.Fatalf("first credit status = %d", resp.StatusCode)
	}

	resp, body := postJSON(t, app, "/v1/credit", req)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["error"] != "duplicate_reference" {
		t.Errorf("error kind = %v", body["error"])
	}
}

func TestDebitEndpointInsufficient(t *testing.T) {
	app, store := newTestApp(t)
	owner := seedOwner(t, store, "a@example.com", "5.00")

	resp, body := postJSON(t, app, "/v1/debit", map[string]string{
		"owner_id": owner.String(),
		"amount":   "10.00",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["error"] != "insufficient_balance" {
		t.Errorf("error kind = %v", body["error"])
	}
}

func TestInvalidAmountEndpoint(t *testing.T) {
	app, store := newTestApp(t)
	owner := seedOwner(t, store, "a@example.com", "5.00")

	resp, body := postJSON(t, app, "/v1/credit", map[string]string{
		"owner_id": owner.String(),
		"amount":   "-1.00",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["error"] != "invalid_amount" {
		t.Errorf("error kind = %v", body["error"])
	}
}

func TestTransferEndpoint(t *testing.T) {
	app, store := newTestApp(t)
	sender := seedOwner(t, store, "a@example.com", "500.00")
	seedOwner(t, store, "b@example.com", "200.00")

	resp, body := postJSON(t, app, "/v1/transfer", map[string]string{
		"sender_owner_id": sender.String(),
		"recipient_email": "b@example.com",
		"amount":          "100.00",
		"reference":       "T1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}

	out, ok := body["out_record"].(map[string]any)
	if !ok || out["reference"] != "T1-OUT" {
		t.Errorf("out_record = %v", body["out_record"])
	}
}

func TestBalanceEndpoint(t *testing.T) {
	app, store := newTestApp(t)
	owner := seedOwner(t, store, "a@example.com", "42.00")

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/"+owner.String()+"/balance", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["currency"] != "USD" {
		t.Errorf("currency = %v", body["currency"])
	}
}

func TestBalanceEndpointUnknownOwner(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/"+uuid.NewString()+"/balance", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["error"] != "account_not_found" {
		t.Errorf("error kind = %v", body["error"])
	}
}

func TestHistoryEndpoint(t *testing.T) {
	app, store := newTestApp(t)
	owner := seedOwner(t, store, "a@example.com", "0.00")

	for i := 0; i < 3; i++ {
		resp, _ := postJSON(t, app, "/v1/credit", map[string]string{
			"owner_id": owner.String(),
			"amount":   "1.00",
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("seed credit status = %d", resp.StatusCode)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/"+owner.String()+"/transactions?page=1&page_size=2", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	body := decodeBody(t, resp)
	if body["total"] != float64(3) {
		t.Errorf("total = %v", body["total"])
	}
	records, ok := body["records"].([]any)
	if !ok || len(records) != 2 {
		t.Errorf("records = %v", body["records"])
	}
}
