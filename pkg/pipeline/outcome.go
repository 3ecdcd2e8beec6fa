package pipeline

import "time"

// Kind is the terminal state of one candidate.
type Kind string

const (
	KindUploaded Kind = "uploaded"
	KindSkipped  Kind = "skipped"
	KindFailed   Kind = "failed"
)

// Reason says which step stopped a candidate.
type Reason string

const (
	ReasonTempName     Reason = "temp_name"
	ReasonMissing      Reason = "missing"
	ReasonUnsettled    Reason = "unsettled"
	ReasonCancelled    Reason = "cancelled"
	ReasonAlreadyKnown Reason = "already_known"
	ReasonPolicyError  Reason = "policy_error"
	ReasonDisabled     Reason = "disabled"
	ReasonExtension    Reason = "extension"
	ReasonTooLarge     Reason = "too_large"
	ReasonNoWifi       Reason = "no_wifi"
	ReasonNoAuth       Reason = "no_auth"
	ReasonReadError    Reason = "read_error"
	ReasonGateway      Reason = "gateway"
)

// Outcome is the result of evaluating one candidate. It is never persisted.
type Outcome struct {
	Kind     Kind
	Reason   Reason
	RemoteID string
	Err      error
	Notified bool
}

func uploaded(remoteID string) Outcome {
	return Outcome{Kind: KindUploaded, RemoteID: remoteID, Notified: true}
}

func skipped(reason Reason) Outcome {
	return Outcome{Kind: KindSkipped, Reason: reason}
}

func rejected(reason Reason) Outcome {
	return Outcome{Kind: KindSkipped, Reason: reason, Notified: true}
}

func failed(reason Reason, err error) Outcome {
	return Outcome{Kind: KindFailed, Reason: reason, Err: err, Notified: true}
}

// MetricsCollector receives pipeline events.
type MetricsCollector interface {
	IncrementCandidates()
	RecordSkip(reason string)
	RecordUpload(bytes int64, duration time.Duration)
	RecordUploadFailure()
}

type nopMetrics struct{}

func (nopMetrics) IncrementCandidates()              {}
func (nopMetrics) RecordSkip(string)                 {}
func (nopMetrics) RecordUpload(int64, time.Duration) {}
func (nopMetrics) RecordUploadFailure()              {}
