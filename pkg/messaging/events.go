package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Stock events
	EventStockMovementRecorded = "stock.movement.recorded"
	EventLotExpiring           = "stock.lot.expiring"
	EventLotExpired            = "stock.lot.expired"
	EventLotRecalled           = "stock.lot.recalled"

	// Order events
	EventOrderCreated      = "order.created"
	EventOrderTransitioned = "order.transitioned"
)

// Exchange names
const (
	ExchangeStockEvents = "stock.events"
	ExchangeOrderEvents = "order.events"
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
		ID:            uuid.New().String(),
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

// StockMovementRecordedEvent is published after each committed movement.
type StockMovementRecordedEvent struct {
	EntityID          string `json:"entity_id"`
	LotID             string `json:"lot_id"`
	MovementType      string `json:"movement_type"`
	Quantity          int    `json:"quantity"`
	AppliedChange     int    `json:"applied_change"`
	ResultingQuantity int    `json:"resulting_quantity"`
	ActorID           string `json:"actor_id"`
}

// LotExpiryEvent is published by the expiry scanner.
type LotExpiryEvent struct {
	LotID           string    `json:"lot_id"`
	MedicamentID    string    `json:"medicament_id"`
	BatchNumber     string    `json:"batch_number"`
	ExpiryDate      time.Time `json:"expiry_date"`
	DaysUntilExpiry int       `json:"days_until_expiry"`
}

// OrderTransitionedEvent is published after each workflow transition.
type OrderTransitionedEvent struct {
	OrderID    string `json:"order_id"`
	Action     string `json:"action"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	ActorID    string `json:"actor_id"`
}
