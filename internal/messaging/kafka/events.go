package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// Provisioning события
	EventTypeRunStarted    EventType = "provisioning.started"
	EventTypeRunSucceeded  EventType = "provisioning.succeeded"
	EventTypeRunFailed     EventType = "provisioning.failed"
	EventTypeStepCompleted EventType = "provisioning.step.completed"
	EventTypeStepFailed    EventType = "provisioning.step.failed"

	// Lifecycle события
	EventTypeDomainActivated  EventType = "domain.activated"
	EventTypeDomainGrace      EventType = "domain.grace_entered"
	EventTypeDomainRedemption EventType = "domain.redemption_entered"
	EventTypeDomainHold       EventType = "domain.registry_hold_entered"
	EventTypeDomainAuction    EventType = "domain.auction_entered"
	EventTypeDomainReleased   EventType = "domain.released"
	EventTypeDomainRecovered  EventType = "domain.recovered"
)

// Topics для Kafka
const (
	TopicProvisioningEvents = "dms.provisioning.events"
	TopicLifecycleEvents    = "dms.lifecycle.events"
	TopicDeadLetterQueue    = "dms.dlq" // Dead Letter Queue для failed messages
)

// ProvisioningEvent представляет событие provisioning саги
type ProvisioningEvent struct {
	EventType EventType              `json:"event_type"`
	RunID     string                 `json:"run_id"`
	OrderID   string                 `json:"order_id"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// LifecycleEvent представляет событие жизненного цикла домена
type LifecycleEvent struct {
	EventType EventType              `json:"event_type"`
	DomainID  string                 `json:"domain_id"`
	FQDN      string                 `json:"fqdn"`
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewProvisioningEvent создает новое событие саги
func NewProvisioningEvent(eventType EventType, runID, orderID string, metadata map[string]interface{}) *ProvisioningEvent {
	return &ProvisioningEvent{
		EventType: eventType,
		RunID:     runID,
		OrderID:   orderID,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}

// NewLifecycleEvent создает новое событие жизненного цикла
func NewLifecycleEvent(eventType EventType, domainID, fqdn, status string, metadata map[string]interface{}) *LifecycleEvent {
	return &LifecycleEvent{
		EventType: eventType,
		DomainID:  domainID,
		FQDN:      fqdn,
		Status:    status,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}
