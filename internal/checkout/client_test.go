package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/funnel"
)

func sampleConfirmation() funnel.Confirmation {
	return funnel.Confirmation{
		ProductID: "zen-mug",
		Mode:      funnel.ModeSingle,
		Lines:     []funnel.ConfirmationLine{{SKUID: "MUG-001", Quantity: 2}},
		Quote:     funnel.Quote{Currency: "USD", Total: 3700},
	}
}

func TestSubmitOrderFake(t *testing.T) {
	c := NewClient("", Options{})
	if !c.Fake() {
		t.Fatalf("expected fake client")
	}
	resp, err := c.SubmitOrder(context.Background(), OrderRequest{Confirmation: sampleConfirmation()})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if !strings.HasPrefix(resp.OrderID, "ord_") || len(resp.OrderID) != len("ord_")+26 {
		t.Fatalf("unexpected order id %q", resp.OrderID)
	}
	if resp.Status != "pending" || resp.Total != 3700 || resp.Currency != "USD" || resp.CreatedAt.IsZero() {
		t.Fatalf("unexpected fake response: %+v", resp)
	}
}

func TestSubmitOrderPostsToBackend(t *testing.T) {
	var gotKey, gotLang string
	var body orderPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/orders" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotKey = r.Header.Get("X-Idem")
		gotLang = r.Header.Get("Accept-Language")
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"orderId":" ORD-9 ","total":0}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/v1/", Options{IdempotencyHeader: "X-Idem"})
	resp, err := c.SubmitOrder(context.Background(), OrderRequest{
		FunnelID:       "01F",
		Locale:         "ar",
		IdempotencyKey: "key-1",
		Confirmation:   sampleConfirmation(),
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if resp.OrderID != "ORD-9" || resp.Status != "pending" || resp.Total != 3700 || resp.Currency != "USD" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if gotKey != "key-1" || gotLang != "ar" {
		t.Fatalf("unexpected headers key=%q lang=%q", gotKey, gotLang)
	}
	if body.FunnelID != "01F" || body.Confirmation.ProductID != "zen-mug" {
		t.Fatalf("unexpected payload: %+v", body)
	}
}

func TestSubmitOrderGeneratesIdempotencyKey(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		_, _ = w.Write([]byte(`{"orderId":"x","status":"accepted"}`))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, Options{}).SubmitOrder(context.Background(), OrderRequest{Confirmation: sampleConfirmation()})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if resp.Status != "accepted" {
		t.Fatalf("expected backend status, got %q", resp.Status)
	}
	if !strings.HasPrefix(gotKey, "ord_") {
		t.Fatalf("expected generated key, got %q", gotKey)
	}
}

func TestSubmitOrderKeysRetriesByFunnel(t *testing.T) {
	var keys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		_, _ = w.Write([]byte(`{"orderId":"x"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Options{})
	for i := 0; i < 2; i++ {
		if _, err := c.SubmitOrder(context.Background(), OrderRequest{FunnelID: "01HXFUNNEL", Confirmation: sampleConfirmation()}); err != nil {
			t.Fatalf("SubmitOrder: %v", err)
		}
	}
	if len(keys) != 2 || keys[0] != "funnel_01HXFUNNEL" || keys[1] != keys[0] {
		t.Fatalf("expected a stable funnel key, got %v", keys)
	}
}

func TestSubmitOrderErrors(t *testing.T) {
	cases := map[int]error{
		http.StatusUnprocessableEntity: ErrOrderRejected,
		http.StatusBadGateway:          ErrBackendUnavailable,
	}
	for status, want := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", status)
		}))
		_, err := NewClient(srv.URL, Options{}).SubmitOrder(context.Background(), OrderRequest{Confirmation: sampleConfirmation()})
		srv.Close()
		if !errors.Is(err, want) {
			t.Fatalf("status %d: expected %v, got %v", status, want, err)
		}
	}

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()
	if _, err := NewClient(url, Options{}).SubmitOrder(context.Background(), OrderRequest{}); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected transport failure to be unavailable, got %v", err)
	}
}
