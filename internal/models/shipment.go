package models

// Shipment statuses as stored in the shipments table. Status is free-form
// upstream; only CANCELLED has meaning to the tracking core.
const (
	ShipmentStatusConfirmed = "CONFIRMED"
	ShipmentStatusCancelled = "CANCELLED"
)

// Shipment is one booking row as ingested from the operations system.
// The vessel field may embed a voyage code ("MSC CARMELA [001E]"); the
// tracking core joins on the normalized name, never on this raw value.
// Timestamps are carried as strings in the form the upstream system sends
// them (ISO dates in practice).
type Shipment struct {
	ID         string `json:"id"`
	RawVessel  string `json:"rawVessel"`
	Booking    string `json:"booking,omitempty"`
	Containers string `json:"containers,omitempty"` // free text, tokens or a JSON array
	ETD        string `json:"etd,omitempty"`
	ETA        string `json:"eta,omitempty"`
	POD        string `json:"pod,omitempty"`
	Status     string `json:"status"`
	DeletedAt  string `json:"deletedAt,omitempty"`
}
