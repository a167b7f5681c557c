package vessel

import (
	"reflect"
	"testing"
	"time"

	"github.com/asli-tracking/backend/internal/models"
)

var testNow = time.Date(2025, 11, 20, 12, 0, 0, 0, time.UTC)

func TestIsActive(t *testing.T) {
	tests := []struct {
		name     string
		shipment models.Shipment
		want     bool
	}{
		{
			name:     "no eta stays active",
			shipment: models.Shipment{RawVessel: "A", Status: models.ShipmentStatusConfirmed},
			want:     true,
		},
		{
			name:     "future eta active",
			shipment: models.Shipment{RawVessel: "A", ETA: "2025-12-01"},
			want:     true,
		},
		{
			name:     "past eta inactive",
			shipment: models.Shipment{RawVessel: "A", ETA: "2025-11-01"},
			want:     false,
		},
		{
			name:     "cancelled inactive",
			shipment: models.Shipment{RawVessel: "A", Status: models.ShipmentStatusCancelled, ETA: "2025-12-01"},
			want:     false,
		},
		{
			name:     "cancelled case insensitive",
			shipment: models.Shipment{RawVessel: "A", Status: "cancelled"},
			want:     false,
		},
		{
			name:     "soft deleted inactive",
			shipment: models.Shipment{RawVessel: "A", DeletedAt: "2025-11-10T00:00:00Z"},
			want:     false,
		},
		{
			name:     "unparseable eta treated as no eta",
			shipment: models.Shipment{RawVessel: "A", ETA: "TBA"},
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsActive(&tt.shipment, testNow); got != tt.want {
				t.Errorf("IsActive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveGroupsByCanonicalName(t *testing.T) {
	shipments := []models.Shipment{
		{ID: "1", RawVessel: "MSC CARMELA [001E]", Booking: "BK-1", POD: "Rotterdam", ETA: "2025-12-05", ETD: "2025-11-22"},
		{ID: "2", RawVessel: "MSC CARMELA [003W]", Booking: "BK-2", POD: "Hamburg", ETA: "2025-12-01", ETD: "2025-11-25"},
		{ID: "3", RawVessel: "HMM BLESSING", Booking: "BK-3", ETA: "2025-11-01"}, // past ETA
		{ID: "4", RawVessel: "", Booking: "BK-4"},                               // unresolvable name
	}

	byVessel := Resolve(shipments, testNow)

	if len(byVessel) != 1 {
		t.Fatalf("expected 1 active vessel, got %d: %v", len(byVessel), ActiveVesselNames(byVessel))
	}

	agg := byVessel["MSC CARMELA"]
	if agg == nil {
		t.Fatal("expected aggregate for MSC CARMELA")
	}
	if got := agg.ETD(); got != "2025-11-22" {
		t.Errorf("ETD = %q, want earliest 2025-11-22", got)
	}
	if got := agg.ETA(); got != "2025-12-01" {
		t.Errorf("ETA = %q, want soonest 2025-12-01", got)
	}
	if got := agg.Destination(); got != "Hamburg / Rotterdam" {
		t.Errorf("Destination = %q, want joined ports", got)
	}
	if got := agg.BookingList(); !reflect.DeepEqual(got, []string{"BK-1", "BK-2"}) {
		t.Errorf("BookingList = %v", got)
	}
}

func TestResolvePlaceholderBookingDropped(t *testing.T) {
	shipments := []models.Shipment{
		{ID: "1", RawVessel: "EVER ATOP", Booking: "-"},
		{ID: "2", RawVessel: "EVER ATOP", Booking: ""},
	}
	byVessel := Resolve(shipments, testNow)
	agg := byVessel["EVER ATOP"]
	if agg == nil {
		t.Fatal("expected aggregate")
	}
	if got := agg.BookingList(); len(got) != 0 {
		t.Errorf("expected no bookings, got %v", got)
	}
}

func TestParseContainers(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"single token", "MSKU1234567", []string{"MSKU1234567"}},
		{"space delimited", "MSKU1234567 TCLU7654321", []string{"MSKU1234567", "TCLU7654321"}},
		{"json array", `["MSKU1234567","TCLU7654321"]`, []string{"MSKU1234567", "TCLU7654321"}},
		{"json array with multi-token entry", `["MSKU1234567 TCLU7654321"]`, []string{"MSKU1234567", "TCLU7654321"}},
		{"placeholder dropped", "- MSKU1234567 -", []string{"MSKU1234567"}},
		{"duplicates deduped", "MSKU1234567 MSKU1234567", []string{"MSKU1234567"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseContainers(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseContainers(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseTimestampLayouts(t *testing.T) {
	tests := []struct {
		in     string
		wantOK bool
	}{
		{"2025-11-16T03:20:00Z", true},
		{"Nov 16, 2025 03:20 UTC", true},
		{"2025-11-16 03:20:00", true},
		{"2025-11-16", true},
		{"somewhere at sea", false},
		{"", false},
	}

	for _, tt := range tests {
		if _, ok := ParseTimestamp(tt.in); ok != tt.wantOK {
			t.Errorf("ParseTimestamp(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
		}
	}
}
