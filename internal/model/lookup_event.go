package model

import "time"

type Outcome string

const (
	OutcomeInvalid       Outcome = "invalid"
	OutcomeThrottled     Outcome = "throttled"
	OutcomeCacheHit      Outcome = "cache_hit"
	OutcomeSimulated     Outcome = "simulated"
	OutcomeProviderOK    Outcome = "provider_ok"
	OutcomeProviderError Outcome = "provider_error"
)

func (o Outcome) String() string { return string(o) }

func (o Outcome) Valid() bool {
	switch o {
	case OutcomeInvalid, OutcomeThrottled, OutcomeCacheHit, OutcomeSimulated, OutcomeProviderOK, OutcomeProviderError:
		return true
	}
	return false
}

// LookupEvent is published to Kafka after every check of a well-formed IMEI
// and persisted by the recorder worker. It never carries the client address.
type LookupEvent struct {
	ID             string    `json:"id"              db:"id"` // ULID
	IMEI           string    `json:"imei"            db:"imei"`
	Outcome        Outcome   `json:"outcome"         db:"outcome"`
	Cached         bool      `json:"cached"          db:"cached"`
	Simulated      bool      `json:"simulated"       db:"simulated"`
	ProviderStatus int       `json:"provider_status" db:"provider_status"` // 0 when the provider was not called
	DurationMs     int64     `json:"duration_ms"     db:"duration_ms"`
	CreatedAt      time.Time `json:"created_at"      db:"created_at"`
}
