// Package station runs the card loop: poll, load credentials, acknowledge,
// authorize, give feedback, repeat.
package station

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"gocheckin/authz"
	"gocheckin/credential"
	"gocheckin/indicator"
	"gocheckin/reader"
)

// State of the loop.
type State int32

const (
	StateIdle State = iota
	StateProcessing
)

func (s State) String() string {
	if s == StateProcessing {
		return "processing"
	}
	return "idle"
}

// Poller detects a card. See reader.CardPoller.
type Poller interface {
	Poll(ctx context.Context) (uint32, error)
}

// Authorizer performs the remote round-trip. See authz.Client.
type Authorizer interface {
	Authorize(ctx context.Context, op authz.OperationType, card uint32, token, url string) authz.Result
}

// Signaler plays feedback. See indicator.Signaler.
type Signaler interface {
	Signal(p indicator.Pattern) error
}

// FeedbackError means the feedback device failed. It is fatal: the link to
// the reader is gone.
type FeedbackError struct {
	Pattern indicator.Pattern
	Err     error
}

func (e *FeedbackError) Error() string {
	return fmt.Sprintf("signal %s: %v", e.Pattern, e.Err)
}

func (e *FeedbackError) Unwrap() error { return e.Err }

// Deps holds the loop's collaborators. OnEvent may be nil.
type Deps struct {
	Poller      Poller
	Credentials credential.Source
	Authorizer  Authorizer
	Signaler    Signaler
	OnEvent     func(Event)

	// Backoff is the pause after a poll link error. Default 1s.
	Backoff time.Duration
}

// Station is the Idle/Processing state machine.
type Station struct {
	deps  Deps
	state atomic.Int32
	newID func() string
}

// New creates a Station in StateIdle.
func New(deps Deps) *Station {
	if deps.Backoff == 0 {
		deps.Backoff = time.Second
	}
	return &Station{
		deps:  deps,
		newID: func() string { return uuid.NewString() },
	}
}

// State reports the current state.
func (s *Station) State() State {
	return State(s.state.Load())
}

// Run steps until ctx is cancelled, returning nil, or until feedback fails,
// returning the *FeedbackError.
func (s *Station) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		if err := s.Step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Step runs one poll cycle and always leaves the station Idle. Only a
// feedback failure is returned; everything else abandons the cycle.
func (s *Station) Step(ctx context.Context) error {
	card, err := s.deps.Poller.Poll(ctx)
	if err != nil {
		if errors.Is(err, reader.ErrNoCard) || ctx.Err() != nil {
			return nil
		}
		log.Warnf("Poll: %v", err)
		s.emit(Event{Kind: EventPollFailed, Err: err})
		sleepCtx(ctx, s.deps.Backoff)
		return nil
	}

	s.state.Store(int32(StateProcessing))
	defer s.state.Store(int32(StateIdle))

	return s.process(ctx, card)
}

func (s *Station) process(ctx context.Context, card uint32) error {
	cycle := s.newID()
	logger := log.WithFields(log.Fields{"cycle": cycle, "card": card})

	fmt.Printf("Card number: %d (0x%08x)\n", card, card)
	s.emit(Event{Kind: EventCardDetected, Cycle: cycle, Card: card})

	creds, err := s.deps.Credentials.Load()
	if err != nil {
		logger.Warnf("Load credentials: %v", err)
		s.emit(Event{Kind: EventCredentialsUnavailable, Cycle: cycle, Card: card, Err: err})
		return nil
	}
	logger.Debugf("Authorizing against %s", creds.EndpointURL)

	if err := s.signal(indicator.InputAccepted); err != nil {
		return err
	}

	// The round-trip is not cancelled by shutdown; the client timeout
	// bounds it.
	actx := authz.WithRequestID(context.WithoutCancel(ctx), cycle)
	res := s.deps.Authorizer.Authorize(actx, authz.CheckInOut, card, creds.BearerToken, creds.EndpointURL)

	pattern, ok := Feedback(res)
	if !ok {
		logger.WithField("result", res.String()).Warn("Unhandled authorization result")
		s.emit(Event{Kind: EventUnhandled, Cycle: cycle, Card: card, Result: res})
		return nil
	}

	logger.WithField("code", res.Code).Infof("Outcome %s", pattern)
	if err := s.signal(pattern); err != nil {
		return err
	}
	s.emit(Event{Kind: EventFeedback, Cycle: cycle, Card: card, Result: res, Pattern: pattern})
	return nil
}

func (s *Station) signal(p indicator.Pattern) error {
	if err := s.deps.Signaler.Signal(p); err != nil {
		return &FeedbackError{Pattern: p, Err: err}
	}
	return nil
}

func (s *Station) emit(e Event) {
	if s.deps.OnEvent == nil {
		return
	}
	e.Time = time.Now()
	s.deps.OnEvent(e)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
