package booking

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidTransition = errors.New("booking: invalid status transition")
	ErrUnknownStatus     = errors.New("booking: unknown status")
)

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusDenied    Status = "denied"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// BlockingStatuses hold dates against new requests.
var BlockingStatuses = []Status{StatusPending, StatusApproved}

// ParseStatus accepts any casing and surrounding space; unknown values wrap
// ErrUnknownStatus.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case StatusPending, StatusApproved, StatusDenied, StatusCancelled, StatusCompleted:
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
}

// Blocking statuses hold their nights against other requests.
func (s Status) Blocking() bool {
	return s == StatusPending || s == StatusApproved
}

// Terminal statuses have no outgoing transitions.
func (s Status) Terminal() bool {
	return s == StatusDenied || s == StatusCancelled || s == StatusCompleted
}

// Capability is the relation an actor holds to a booking.
type Capability string

const (
	// CapabilityOwner is held by the property owner and by admins.
	CapabilityOwner Capability = "owner"
	// CapabilityGuest is held by the user who made the booking and by admins.
	CapabilityGuest Capability = "guest"
	// CapabilitySystem is held only by scheduled sweeps.
	CapabilitySystem Capability = "system"
)

// Effect is what a transition does to the property's availability.
type Effect int

const (
	EffectNone Effect = iota
	EffectBlock
	EffectRelease
)

func (e Effect) String() string {
	switch e {
	case EffectBlock:
		return "block"
	case EffectRelease:
		return "release"
	default:
		return "none"
	}
}

// Rule is one row of the transition table: who may move a booking from
// From to To, and what that does to availability.
type Rule struct {
	From   Status
	To     Status
	Allow  []Capability
	Effect Effect
}

// Allows reports whether any of caps is listed in the rule.
func (r Rule) Allows(caps []Capability) bool {
	for _, want := range r.Allow {
		for _, have := range caps {
			if want == have {
				return true
			}
		}
	}
	return false
}

// Transitions is the complete set of legal status changes.
var Transitions = []Rule{
	{From: StatusPending, To: StatusApproved, Allow: []Capability{CapabilityOwner}, Effect: EffectBlock},
	{From: StatusPending, To: StatusDenied, Allow: []Capability{CapabilityOwner}, Effect: EffectNone},
	{From: StatusPending, To: StatusCancelled, Allow: []Capability{CapabilityGuest}, Effect: EffectNone},
	{From: StatusApproved, To: StatusCancelled, Allow: []Capability{CapabilityGuest, CapabilityOwner}, Effect: EffectRelease},
	{From: StatusApproved, To: StatusCompleted, Allow: []Capability{CapabilityOwner, CapabilitySystem}, Effect: EffectNone},
}

// LookupRule returns the table row for from -> to.
func LookupRule(from, to Status) (Rule, bool) {
	for _, r := range Transitions {
		if r.From == from && r.To == to {
			return r, true
		}
	}
	return Rule{}, false
}

// TransitionError names both statuses of a rejected change. It matches ErrInvalidTransition.
type TransitionError struct {
	From   Status
	To     Status
	Reason string
	Err    error
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("booking: cannot move from %s to %s", e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}
