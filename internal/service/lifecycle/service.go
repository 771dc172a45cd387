package lifecycle

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dms/internal/domain"
	"github.com/vladislavdragonenkov/dms/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/dms/internal/metrics"
)

// Service — прикладной слой жизненного цикла: применяет переходы state
// machine к хранилищу, пишет timeline и outbox, публикует события в Kafka.
type Service struct {
	domains  domain.DomainRepository
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository
	machine  *Machine
	logger   *log.Entry
	metrics  *metrics.ProvisioningMetrics
	producer *kafka.Producer
}

// NewService создаёт lifecycle service без Kafka producer'а.
func NewService(
	domains domain.DomainRepository,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	machine *Machine,
	logger *log.Entry,
	provisioningMetrics *metrics.ProvisioningMetrics,
) *Service {
	return NewServiceWithKafka(domains, outbox, timeline, machine, logger, provisioningMetrics, nil)
}

// NewServiceWithKafka создаёт lifecycle service с Kafka producer'ом.
func NewServiceWithKafka(
	domains domain.DomainRepository,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	machine *Machine,
	logger *log.Entry,
	provisioningMetrics *metrics.ProvisioningMetrics,
	producer *kafka.Producer,
) *Service {
	if logger == nil {
		logger = log.WithField("component", "lifecycle-service")
	}
	return &Service{
		domains:  domains,
		outbox:   outbox,
		timeline: timeline,
		machine:  machine,
		logger:   logger,
		metrics:  provisioningMetrics,
		producer: producer,
	}
}

// Machine возвращает state machine сервиса.
func (s *Service) Machine() *Machine {
	return s.machine
}

// SubmitRecoveryPayment применяет платёжное событие к домену.
//
// Платёж валидируется против свежей записи: для просроченного окна
// возвращается ErrStaleRecoveryWindow, для невосстановимых состояний —
// ErrRecoveryNotAvailable. При проигрыше optimistic lock наружу уходит
// ErrDomainVersionConflict — вызывающий перечитывает состояние и
// принимает решение заново, сам платёж не повторяется автоматически.
func (s *Service) SubmitRecoveryPayment(domainID, paymentRef string) (domain.Domain, error) {
	d, err := s.domains.Get(domainID)
	if err != nil {
		return domain.Domain{}, err
	}

	now := time.Now().UTC()
	from := d.RegistrarStatus

	updated, err := s.machine.ApplyRecoveryPayment(d, now)
	if err != nil {
		if errors.Is(err, domain.ErrStaleRecoveryWindow) && s.metrics != nil {
			s.metrics.RecordStalePayment()
		}
		s.logger.WithError(err).WithFields(log.Fields{
			"domain_id": domainID,
			"status":    string(from),
		}).Warn("recovery payment rejected")
		return domain.Domain{}, err
	}

	if err := s.domains.Save(updated); err != nil {
		if errors.Is(err, domain.ErrDomainVersionConflict) {
			s.logger.WithField("domain_id", domainID).Warn("recovery payment lost optimistic lock race")
		}
		return domain.Domain{}, err
	}
	updated.Version++

	if s.metrics != nil {
		s.metrics.RecordTransition(string(from), string(updated.RegistrarStatus))
	}
	s.recordEvent(updated, kafka.EventTypeDomainRecovered, now, map[string]interface{}{
		"payment_ref": paymentRef,
		"from":        string(from),
		"expires_at":  updated.ExpiresAt,
	})

	s.logger.WithFields(log.Fields{
		"domain_id":   domainID,
		"fqdn":        updated.FQDN,
		"from":        string(from),
		"payment_ref": paymentRef,
	}).Info("domain recovered by payment")

	return updated, nil
}

// SweepDomain продвигает один домен по всем назревшим переходам и сохраняет
// результат. При конфликте версий перечитывает запись и повторяет решение
// один раз. Возвращает обновлённый домен и количество применённых переходов.
func (s *Service) SweepDomain(d domain.Domain, now time.Time) (domain.Domain, int, error) {
	for attempt := 0; ; attempt++ {
		updated, transitions := s.machine.Advance(d, now)
		if len(transitions) == 0 {
			return d, 0, nil
		}

		if err := s.domains.Save(updated); err != nil {
			if errors.Is(err, domain.ErrDomainVersionConflict) && attempt == 0 {
				fresh, getErr := s.domains.Get(d.ID)
				if getErr != nil {
					return domain.Domain{}, 0, getErr
				}
				d = fresh
				continue
			}
			return domain.Domain{}, 0, err
		}
		updated.Version++

		for _, tr := range transitions {
			if s.metrics != nil {
				s.metrics.RecordTransition(string(tr.From), string(tr.To))
			}
			s.recordEvent(updated, transitionEventType(tr.To), now, map[string]interface{}{
				"from":     string(tr.From),
				"deadline": tr.At,
			})
		}

		s.logger.WithFields(log.Fields{
			"domain_id":   updated.ID,
			"fqdn":        updated.FQDN,
			"status":      string(updated.RegistrarStatus),
			"transitions": len(transitions),
		}).Info("domain lifecycle advanced")

		return updated, len(transitions), nil
	}
}

// recordEvent пишет событие в timeline и outbox и, при наличии producer'а,
// публикует его в Kafka. Ошибки побочных записей логируются и не ломают
// основную операцию: источник правды — сохранённый домен.
func (s *Service) recordEvent(d domain.Domain, eventType kafka.EventType, now time.Time, metadata map[string]interface{}) {
	event := kafka.NewLifecycleEvent(eventType, d.ID, d.FQDN, string(d.RegistrarStatus), metadata)

	if s.timeline != nil {
		timelineEvent := domain.TimelineEvent{
			AggregateID: d.ID,
			Type:        string(eventType),
			Reason:      fmt.Sprintf("status changed to %s", d.RegistrarStatus),
			Occurred:    now,
		}
		if err := s.timeline.Append(timelineEvent); err != nil {
			s.logger.WithError(err).WithField("domain_id", d.ID).Warn("failed to append timeline event")
		} else if s.metrics != nil {
			s.metrics.RecordTimelineEvent()
		}
	}

	if s.outbox != nil {
		payload, err := json.Marshal(event)
		if err != nil {
			s.logger.WithError(err).WithField("domain_id", d.ID).Error("failed to marshal lifecycle event")
			return
		}
		msg := domain.OutboxMessage{
			AggregateType: "domain",
			AggregateID:   d.ID,
			EventType:     string(eventType),
			Payload:       payload,
		}
		if _, err := s.outbox.Enqueue(msg); err != nil {
			s.logger.WithError(err).WithField("domain_id", d.ID).Warn("failed to enqueue outbox event")
		} else if s.metrics != nil {
			s.metrics.RecordOutboxEvent()
		}
	}

	if s.producer != nil {
		if err := s.producer.PublishEvent(kafka.TopicLifecycleEvents, d.ID, event); err != nil {
			s.logger.WithError(err).WithField("domain_id", d.ID).Warn("failed to publish lifecycle event")
		}
	}
}

func transitionEventType(to domain.RegistrarStatus) kafka.EventType {
	switch to {
	case domain.StatusActive:
		return kafka.EventTypeDomainActivated
	case domain.StatusGrace:
		return kafka.EventTypeDomainGrace
	case domain.StatusRedemption:
		return kafka.EventTypeDomainRedemption
	case domain.StatusRegistryHold:
		return kafka.EventTypeDomainHold
	case domain.StatusAuction:
		return kafka.EventTypeDomainAuction
	case domain.StatusReleased:
		return kafka.EventTypeDomainReleased
	default:
		return kafka.EventType("domain." + string(to))
	}
}
