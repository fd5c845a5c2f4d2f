// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ContentTypePDF is the content type of artifacts produced by every backend.
const ContentTypePDF = "application/pdf"

// Artifact is the rendered output of a successful conversion.
type Artifact struct {
	// ID uniquely identifies the artifact.
	ID string `json:"id" yaml:"id"`

	// Seq is the sequence number of the request that produced it.
	Seq uint64 `json:"seq" yaml:"seq"`

	// Data holds the rendered document bytes.
	Data []byte `json:"-" yaml:"-"`

	// ContentType is the MIME type of Data.
	ContentType string `json:"content_type" yaml:"content_type"`

	// CreatedAt is when the backend returned the artifact.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Phase is the controller's conversion phase.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseConverting Phase = "converting"
	PhaseReady      Phase = "ready"
	PhaseError      Phase = "error"
)

// ConversionState is the observable state of a preview controller.
type ConversionState struct {
	// Phase is idle, converting, ready, or error. Ready and error are the
	// settled forms of idle and carry the latest applied result.
	Phase Phase `json:"phase" yaml:"phase"`

	// Seq is the highest sequence number issued so far.
	Seq uint64 `json:"seq" yaml:"seq"`

	// Artifact is the most recent applied artifact. It survives later
	// converting and error phases.
	Artifact *Artifact `json:"artifact,omitempty" yaml:"artifact,omitempty"`

	// Message is the error text while Phase is error.
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// Busy reports whether the newest request is still in flight.
func (s ConversionState) Busy() bool {
	return s.Phase == PhaseConverting
}

// ConversionResult is the settled outcome of one conversion request.
type ConversionResult struct {
	// Seq is the sequence number of the request.
	Seq uint64 `json:"seq" yaml:"seq"`

	// Artifact is set on success.
	Artifact *Artifact `json:"artifact,omitempty" yaml:"artifact,omitempty"`

	// Message is the failure text; empty on success.
	Message string `json:"message,omitempty" yaml:"message,omitempty"`

	// Source is the draft snapshot the request was issued for.
	Source string `json:"-" yaml:"-"`

	// Duration is the time from issue to settlement.
	Duration time.Duration `json:"duration" yaml:"duration"`

	// SettledAt is when the result arrived.
	SettledAt time.Time `json:"settled_at" yaml:"settled_at"`
}

// OK reports whether the conversion succeeded.
func (r ConversionResult) OK() bool {
	return r.Artifact != nil
}

// ConversionStatus indicates the outcome of converting one file in a batch.
type ConversionStatus string

const (
	ConversionDone    ConversionStatus = "converted"
	ConversionSkipped ConversionStatus = "skipped"
	ConversionFailed  ConversionStatus = "failed"
)
