package entity

// GroupMode decides what a group send does after a failed recipient.
type GroupMode string

const (
	GroupModeStopOnError     GroupMode = "stop_on_error"
	GroupModeContinueOnError GroupMode = "continue_on_error"
)

func (m GroupMode) String() string { return string(m) }

type RecipientStatus string

const (
	RecipientStatusSent    RecipientStatus = "sent"
	RecipientStatusFailed  RecipientStatus = "failed"
	RecipientStatusSkipped RecipientStatus = "skipped"
)

// Outcome is what happened to a consumed queue message.
type Outcome string

const (
	OutcomeAcked        Outcome = "acked"
	OutcomeRequeued     Outcome = "requeued"
	OutcomeNacked       Outcome = "nacked"
	OutcomeDeadLettered Outcome = "dead_lettered"
	OutcomeDropped      Outcome = "dropped"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeIgnored      Outcome = "ignored"
)

func (o Outcome) String() string { return string(o) }

// DeliveryStatus is stored on each delivery log row.
type DeliveryStatus string

const (
	DeliveryStatusSent         DeliveryStatus = "sent"
	DeliveryStatusFailed       DeliveryStatus = "failed"
	DeliveryStatusRequeued     DeliveryStatus = "requeued"
	DeliveryStatusDeadLettered DeliveryStatus = "dead_lettered"
)

func (s DeliveryStatus) String() string { return string(s) }
