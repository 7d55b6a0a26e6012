package notify

import (
	"context"
	"time"
)

// Kind classifies a notification.
type Kind string

const (
	KindAlert         Kind = "alert"
	KindResolution    Kind = "resolution"
	KindRegimeChanged Kind = "regime_changed"
	KindRegimeDefined Kind = "regime_defined"
	KindNewEntity     Kind = "new_entity"
	KindReport        Kind = "report"
)

// Destination is a logical channel name.
type Destination string

const (
	// DestDefault is the general alert channel. Always configured.
	DestDefault Destination = "default"
	// DestSuspended receives alerts about suspended entities.
	DestSuspended Destination = "suspended"
	// DestGeneral receives new-entity announcements.
	DestGeneral Destination = "general"
	// DestReports receives scheduled reports.
	DestReports Destination = "reports"
)

// Notification is one message to deliver.
type Notification struct {
	// ID correlates the notification with its change event in the journal.
	// Empty for reports.
	ID          string
	Kind        Kind
	Destination Destination

	EntityID string
	Name     string
	Previous string
	Current  string
	// Regime is the entity's regime at the time of the notification.
	Regime string
	At     time.Time

	// Title and Body carry pre-rendered text for KindReport.
	Title string
	Body  string
}

// Sink delivers notifications. Send blocks until the notification has been
// delivered or has failed for good.
type Sink interface {
	Send(ctx context.Context, n Notification) error
}
