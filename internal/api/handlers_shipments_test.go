// handlers_shipments_test.go - Tests for shipment ingestion handlers
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/asli-tracking/backend/internal/models"
	"github.com/asli-tracking/backend/internal/testutil"
)

func TestHandleUpsertShipments(t *testing.T) {
	st := testutil.NewMockStore()
	handler := NewShipmentHandler(st)

	body := []byte(`{"shipments": [
		{"id": "s-1", "rawVessel": "MSC CARMELA [001E]", "booking": "BK-1"},
		{"rawVessel": "HMM BLESSING", "booking": "BK-2"}
	]}`)
	c, rec := newTestContext(http.MethodPost, "/api/shipments", body)
	if err := handler.HandleUpsertShipments(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Upserted int `json:"upserted"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.Upserted != 2 {
		t.Errorf("upserted = %d, want 2", resp.Upserted)
	}

	// Rows without an id got one assigned.
	shipments, err := st.ListShipments(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(shipments) != 2 {
		t.Fatalf("stored %d shipments", len(shipments))
	}
	for _, s := range shipments {
		if s.ID == "" {
			t.Errorf("shipment %q stored without an id", s.RawVessel)
		}
	}
}

func TestHandleUpsertShipmentsReplacesInPlace(t *testing.T) {
	st := testutil.NewMockStore()
	handler := NewShipmentHandler(st)

	first := []byte(`{"shipments": [{"id": "s-1", "rawVessel": "MSC CARMELA", "eta": "2025-12-01"}]}`)
	c, _ := newTestContext(http.MethodPost, "/api/shipments", first)
	if err := handler.HandleUpsertShipments(c); err != nil {
		t.Fatal(err)
	}

	second := []byte(`{"shipments": [{"id": "s-1", "rawVessel": "MSC CARMELA", "eta": "2025-12-10"}]}`)
	c, _ = newTestContext(http.MethodPost, "/api/shipments", second)
	if err := handler.HandleUpsertShipments(c); err != nil {
		t.Fatal(err)
	}

	shipments, _ := st.ListShipments(context.Background())
	if len(shipments) != 1 {
		t.Fatalf("expected the row replaced, got %d rows", len(shipments))
	}
	if shipments[0].ETA != "2025-12-10" {
		t.Errorf("ETA = %q, want the second sync's value", shipments[0].ETA)
	}
}

func TestHandleUpsertShipmentsValidation(t *testing.T) {
	handler := NewShipmentHandler(testutil.NewMockStore())

	tests := []struct {
		name string
		body string
	}{
		{"empty list", `{"shipments": []}`},
		{"missing field", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestContext(http.MethodPost, "/api/shipments", []byte(tt.body))
			err := handler.HandleUpsertShipments(c)
			apiErr, ok := err.(*APIError)
			if !ok {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.Code != "VALIDATION_ERROR" {
				t.Errorf("code = %q", apiErr.Code)
			}
		})
	}
}

func TestHandleListShipments(t *testing.T) {
	st := testutil.NewMockStore()
	st.UpsertShipments(context.Background(), []models.Shipment{
		{ID: "s-1", RawVessel: "MSC CARMELA"},
	})
	handler := NewShipmentHandler(st)

	c, rec := newTestContext(http.MethodGet, "/api/shipments", nil)
	if err := handler.HandleListShipments(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}

	var resp struct {
		Shipments []models.Shipment `json:"shipments"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if len(resp.Shipments) != 1 || resp.Shipments[0].ID != "s-1" {
		t.Errorf("shipments = %+v", resp.Shipments)
	}
}

func TestHandleHealth(t *testing.T) {
	handler := NewHealthHandler("1.2.3")

	c, rec := newTestContext(http.MethodGet, "/health", nil)
	if err := handler.HandleHealth(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp["status"] != "ok" || resp["version"] != "1.2.3" {
		t.Errorf("health = %v", resp)
	}
}
