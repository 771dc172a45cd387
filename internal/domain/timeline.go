package domain

import "time"

// TimelineEvent описывает событие в истории агрегата: provisioning run
// или домена.
type TimelineEvent struct {
	AggregateID string
	Type        string
	Reason      string
	Occurred    time.Time
}
