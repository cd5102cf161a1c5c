package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventLotReceived    = "inventory.lot.received"
	EventStockDeducted  = "inventory.stock.deducted"
	EventStockAdjusted  = "inventory.stock.adjusted"
	EventLotExpired     = "inventory.lot.expired"
	EventAlertGenerated = "inventory.alert.generated"
	EventAlertResolved  = "inventory.alert.resolved"
)

// Exchange names
const (
	ExchangeInventoryEvents = "inventory.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// LotReceivedEvent is published when a new lot is received into stock
type LotReceivedEvent struct {
	LotID      string `json:"lot_id"`
	LotNumber  string `json:"lot_number"`
	ProductID  string `json:"product_id"`
	LocationID string `json:"location_id"`
	Quantity   int    `json:"quantity"`
	ExpiresAt  string `json:"expires_at"`
	ReceivedBy string `json:"received_by"`
}

// StockDeductedEvent is published when a treatment deduction completes
type StockDeductedEvent struct {
	ProductID     string `json:"product_id"`
	LocationID    string `json:"location_id"`
	Quantity      int    `json:"quantity"`
	LotCount      int    `json:"lot_count"`
	AppointmentID string `json:"appointment_id,omitempty"`
	PatientID     string `json:"patient_id,omitempty"`
	PerformedBy   string `json:"performed_by"`
	StockStatus   string `json:"stock_status"`
}

// StockAdjustedEvent is published when stock is manually adjusted
type StockAdjustedEvent struct {
	ProductID   string `json:"product_id"`
	LotID       string `json:"lot_id"`
	Adjustment  int    `json:"adjustment"`
	NewQuantity int    `json:"new_quantity"`
	PerformedBy string `json:"performed_by"`
	Reason      string `json:"reason"`
}

// AlertGeneratedEvent is published when an inventory alert is created
type AlertGeneratedEvent struct {
	AlertID    string `json:"alert_id"`
	AlertType  string `json:"alert_type"`
	Severity   string `json:"severity"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	ProductID  string `json:"product_id"`
	LotID      string `json:"lot_id,omitempty"`
	LocationID string `json:"location_id"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.New().String()
}
