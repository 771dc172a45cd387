package kafka

import (
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

func mockedProducer(t *testing.T) (*Producer, *mocks.SyncProducer) {
	t.Helper()

	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-test"),
	}
	return producer, mockProducer
}

func TestOutboxPublisher_Publish(t *testing.T) {
	t.Parallel()

	producer, mockProducer := mockedProducer(t)
	mockProducer.ExpectSendMessageAndSucceed()

	publisher := NewOutboxPublisher(producer, TopicLifecycleEvents)
	err := publisher.Publish(domain.OutboxMessage{
		ID:            "outbox-1",
		AggregateType: "domain",
		AggregateID:   "dom-123",
		EventType:     string(EventTypeDomainGrace),
		Payload:       []byte(`{"status":"grace"}`),
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_PublishProducerError(t *testing.T) {
	t.Parallel()

	producer, mockProducer := mockedProducer(t)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	publisher := NewOutboxPublisher(producer, TopicLifecycleEvents)
	err := publisher.Publish(domain.OutboxMessage{
		ID:            "outbox-2",
		AggregateType: "domain",
		AggregateID:   "dom-234",
		EventType:     string(EventTypeDomainReleased),
		Payload:       []byte(`{"status":"released"}`),
	})
	if err == nil {
		t.Fatal("expected publish error")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxRouter_RoutesByAggregateType(t *testing.T) {
	t.Parallel()

	producer, mockProducer := mockedProducer(t)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicProvisioningEvents {
			t.Fatalf("topic = %s, want %s", msg.Topic, TopicProvisioningEvents)
		}
		return nil
	})
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicLifecycleEvents {
			t.Fatalf("topic = %s, want %s", msg.Topic, TopicLifecycleEvents)
		}
		return nil
	})

	router := NewOutboxRouter(producer)
	if err := router.Publish(domain.OutboxMessage{
		ID:            "outbox-1",
		AggregateType: "provisioning_run",
		AggregateID:   "run-1",
		EventType:     string(EventTypeRunStarted),
		Payload:       []byte(`{}`),
	}); err != nil {
		t.Fatalf("publish run event: %v", err)
	}
	if err := router.Publish(domain.OutboxMessage{
		ID:            "outbox-2",
		AggregateType: "domain",
		AggregateID:   "dom-1",
		EventType:     string(EventTypeDomainGrace),
		Payload:       []byte(`{}`),
	}); err != nil {
		t.Fatalf("publish domain event: %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_NotInitialized(t *testing.T) {
	t.Parallel()

	publisher := NewOutboxPublisher(nil, TopicLifecycleEvents)
	if err := publisher.Publish(domain.OutboxMessage{ID: "outbox-1"}); err == nil {
		t.Fatal("expected error for uninitialized publisher")
	}
}
