package server

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"buymyroom/internal/config"
	"buymyroom/internal/hmacauth"
	"buymyroom/internal/market"
	"buymyroom/internal/txlog"
	"buymyroom/internal/wallet"
)

const testAccount = "0x00000000000000000000000000000000000000B1"

func newTestServer(t *testing.T, hmacSecret string) (*Server, *market.FakeGateway) {
	t.Helper()

	cfg := &config.AppConfig{
		Service: config.ServiceConfig{
			HTTPPort:         0,
			HMACSecret:       hmacSecret,
			HMACClockSkew:    time.Minute,
			SubmissionWindow: time.Minute,
		},
	}

	gw := market.NewFakeGateway()
	session := wallet.NewSession(wallet.StaticProvider{Address: testAccount})
	session.Restore(context.Background())

	cache := market.NewCache()
	flights := market.NewFlights()

	srv := NewServer(cfg, zerolog.Nop(), Deps{
		Session:  session,
		Gateway:  gw,
		Queries:  market.NewQueries(gw, cache, flights),
		Writes:   market.NewWrites(gw, session, cache, flights),
		Purchase: market.NewPurchase(gw, session, cache, flights, gw.Marketplace),
		Journal:  txlog.NewMemoryStore(),
	})
	return srv, gw
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func TestAirdropJournalReplay(t *testing.T) {
	srv, gw := newTestServer(t, "")

	headers := map[string]string{"X-Idempotency-Key": "claim-1"}
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/airdrop", nil, headers)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	first := rec.Body.Bytes()

	rec2 := doJSON(t, srv, http.MethodPost, "/api/v1/airdrop", nil, headers)
	if rec2.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201 got %d", rec2.Code)
	}
	if !bytes.Equal(first, rec2.Body.Bytes()) {
		t.Fatalf("expected identical body on journal replay")
	}

	airdrops := 0
	for _, call := range gw.Calls {
		if call == "airdropHouses" {
			airdrops++
		}
	}
	if airdrops != 1 {
		t.Fatalf("expected one on-chain airdrop, got %d", airdrops)
	}
}

func TestListHouseValidationStatus(t *testing.T) {
	srv, gw := newTestServer(t, "")

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/listings", map[string]interface{}{
		"houseId": -1,
		"price":   "10",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if len(gw.Calls) != 0 {
		t.Fatalf("expected zero gateway calls, got %v", gw.Calls)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp["kind"] != "invalid_input" {
		t.Fatalf("expected invalid_input kind, got %q", resp["kind"])
	}
}

func TestPurchaseFlowOverHTTP(t *testing.T) {
	srv, gw := newTestServer(t, "")

	price, _ := new(big.Int).SetString("100000000000000000000", 10)
	gw.SeedHouse(7, "0xSELLER", price, true)
	gw.SeedBalance(testAccount, price)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/houses/7", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("detail fetch: %d", rec.Code)
	}

	for _, step := range []string{"select", "request-confirmation"} {
		body := map[string]interface{}{}
		if step == "select" {
			body["houseId"] = 7
		}
		rec := doJSON(t, srv, http.MethodPost, "/api/v1/purchase/"+step, body, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d: %s", step, rec.Code, rec.Body.String())
		}
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/purchase/confirm", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200 got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/purchase", nil, nil)
	var state map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &state)
	if state["state"] != "idle" {
		t.Fatalf("expected idle after settlement, got %v", state["state"])
	}
}

func TestPurchaseConfirmWithoutDetail(t *testing.T) {
	srv, gw := newTestServer(t, "")
	gw.SeedHouse(7, "0xSELLER", big.NewInt(100), true)

	doJSON(t, srv, http.MethodPost, "/api/v1/purchase/select", map[string]interface{}{"houseId": 7}, nil)
	doJSON(t, srv, http.MethodPost, "/api/v1/purchase/request-confirmation", nil, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/purchase/confirm", nil, nil)
	if rec.Code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412 got %d", rec.Code)
	}

	var resp map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["kind"] != "missing_house_detail" {
		t.Fatalf("expected missing_house_detail kind, got %v", resp["kind"])
	}
}

func TestPurchaseFailureAfterApprovalSurfacesState(t *testing.T) {
	srv, gw := newTestServer(t, "")

	price, _ := new(big.Int).SetString("100000000000000000000", 10)
	gw.SeedHouse(7, "0xSELLER", price, true)
	// approval will settle, the buy will revert on missing balance

	doJSON(t, srv, http.MethodGet, "/api/v1/houses/7", nil, nil)
	doJSON(t, srv, http.MethodPost, "/api/v1/purchase/select", map[string]interface{}{"houseId": 7}, nil)
	doJSON(t, srv, http.MethodPost, "/api/v1/purchase/request-confirmation", nil, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/purchase/confirm", nil, nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 got %d", rec.Code)
	}

	var resp map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["kind"] != "purchase_failed_after_approval" {
		t.Fatalf("expected purchase_failed_after_approval, got %v", resp["kind"])
	}
	if resp["state"] != "confirming" {
		t.Fatalf("expected confirming retry point, got %v", resp["state"])
	}
	if resp["houseId"] != float64(7) {
		t.Fatalf("expected selection retained, got %v", resp["houseId"])
	}
}

func TestWriteEndpointsRequireSignature(t *testing.T) {
	srv, gw := newTestServer(t, "top-secret")

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/exchange", map[string]interface{}{"amount": "1"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	if len(gw.Calls) != 0 {
		t.Fatalf("expected zero gateway calls, got %v", gw.Calls)
	}

	payload, _ := json.Marshal(map[string]interface{}{"amount": "1"})
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/exchange", map[string]interface{}{"amount": "1"}, map[string]string{
		"X-Request-Timestamp": ts,
		"X-Request-Signature": hmacauth.ComputeSignature("top-secret", ts, payload),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, "")

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	var resp map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["status"] != "healthy" {
		t.Fatalf("expected healthy, got %v", resp["status"])
	}
}
