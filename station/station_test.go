package station

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocheckin/authz"
	"gocheckin/credential"
	"gocheckin/indicator"
	"gocheckin/reader"
)

type fakePoller struct {
	results []pollResult
	calls   int
	cancel  context.CancelFunc // called once results run out
}

type pollResult struct {
	card uint32
	err  error
}

func (f *fakePoller) Poll(ctx context.Context) (uint32, error) {
	f.calls++
	if len(f.results) == 0 {
		if f.cancel != nil {
			f.cancel()
		}
		return 0, reader.ErrNoCard
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r.card, r.err
}

type fakeCreds struct {
	creds credential.Credentials
	err   error
	calls int
}

func (f *fakeCreds) Load() (credential.Credentials, error) {
	f.calls++
	return f.creds, f.err
}

type authCall struct {
	op    authz.OperationType
	card  uint32
	token string
	url   string
}

type fakeAuth struct {
	result authz.Result
	calls  []authCall
	ctxErr error
}

func (f *fakeAuth) Authorize(ctx context.Context, op authz.OperationType, card uint32, token, url string) authz.Result {
	f.calls = append(f.calls, authCall{op, card, token, url})
	f.ctxErr = ctx.Err()
	return f.result
}

type fakeSignaler struct {
	st       *Station
	patterns []indicator.Pattern
	states   []State
	failOn   map[indicator.Pattern]error
}

func (f *fakeSignaler) Signal(p indicator.Pattern) error {
	f.patterns = append(f.patterns, p)
	if f.st != nil {
		f.states = append(f.states, f.st.State())
	}
	return f.failOn[p]
}

type harness struct {
	poller *fakePoller
	creds  *fakeCreds
	auth   *fakeAuth
	sig    *fakeSignaler
	events []Event
	st     *Station
}

func newHarness(result authz.Result, polls ...pollResult) *harness {
	h := &harness{
		poller: &fakePoller{results: polls},
		creds:  &fakeCreds{creds: credential.Credentials{EndpointURL: "http://auth.test/checkin", BearerToken: "abc"}},
		auth:   &fakeAuth{result: result},
		sig:    &fakeSignaler{},
	}
	h.st = New(Deps{
		Poller:      h.poller,
		Credentials: h.creds,
		Authorizer:  h.auth,
		Signaler:    h.sig,
		OnEvent:     func(e Event) { h.events = append(h.events, e) },
		Backoff:     time.Millisecond,
	})
	h.st.newID = func() string { return "cycle-1" }
	h.sig.st = h.st
	return h
}

func (h *harness) kinds() []EventKind {
	var k []EventKind
	for _, e := range h.events {
		k = append(k, e.Kind)
	}
	return k
}

func card(id uint32) pollResult { return pollResult{card: id} }

func TestFeedbackTable(t *testing.T) {
	known := map[int]indicator.Pattern{
		-1: indicator.ServerFailure,
		0:  indicator.CheckInOutSuccess,
		2:  indicator.CheckInOutFailure,
		10: indicator.RegistrationSuccess,
		90: indicator.NoCardOnFile,
		99: indicator.DeviceInvalid,
	}
	for code, want := range known {
		t.Run(fmt.Sprintf("code %d", code), func(t *testing.T) {
			h := newHarness(authz.Result{Kind: authz.Code, Code: code}, card(7))
			require.NoError(t, h.st.Step(context.Background()))
			assert.Equal(t, []indicator.Pattern{indicator.InputAccepted, want}, h.sig.patterns)
			assert.Equal(t, []EventKind{EventCardDetected, EventFeedback}, h.kinds())
		})
	}
}

func TestUnmappedResultsGiveNoFeedback(t *testing.T) {
	results := []authz.Result{
		{Kind: authz.Code, Code: -2},
		{Kind: authz.Code, Code: 1},
		{Kind: authz.Code, Code: 100},
		{Kind: authz.TransportFailure},
		{Kind: authz.ServerError, Message: "expired"},
	}
	for _, res := range results {
		t.Run(res.String(), func(t *testing.T) {
			h := newHarness(res, card(7))
			require.NoError(t, h.st.Step(context.Background()))

			assert.Equal(t, []indicator.Pattern{indicator.InputAccepted}, h.sig.patterns)
			require.Equal(t, []EventKind{EventCardDetected, EventUnhandled}, h.kinds())
			assert.Equal(t, res, h.events[1].Result)
			assert.Equal(t, StateIdle, h.st.State())
		})
	}
}

func TestCycleSequence(t *testing.T) {
	h := newHarness(authz.Result{Kind: authz.Code, Code: 10}, card(305419896))
	require.NoError(t, h.st.Step(context.Background()))

	require.Len(t, h.auth.calls, 1)
	assert.Equal(t, authCall{authz.CheckInOut, 305419896, "abc", "http://auth.test/checkin"}, h.auth.calls[0])
	assert.Equal(t, []State{StateProcessing, StateProcessing}, h.sig.states)
	assert.Equal(t, StateIdle, h.st.State())
	assert.Equal(t, "cycle-1", h.events[0].Cycle)
	assert.Equal(t, uint32(305419896), h.events[0].Card)
}

func TestNoCardDoesNothing(t *testing.T) {
	h := newHarness(authz.Result{Kind: authz.Code, Code: 0}, pollResult{err: reader.ErrNoCard})
	require.NoError(t, h.st.Step(context.Background()))

	assert.Zero(t, h.creds.calls)
	assert.Empty(t, h.auth.calls)
	assert.Empty(t, h.sig.patterns)
	assert.Empty(t, h.events)
}

func TestPollLinkErrorIsReported(t *testing.T) {
	linkErr := errors.New("serial gone")
	h := newHarness(authz.Result{Kind: authz.Code, Code: 0}, pollResult{err: linkErr})
	require.NoError(t, h.st.Step(context.Background()))

	require.Equal(t, []EventKind{EventPollFailed}, h.kinds())
	assert.ErrorIs(t, h.events[0].Err, linkErr)
	assert.Zero(t, h.creds.calls)
	assert.Equal(t, StateIdle, h.st.State())
}

func TestCredentialFailureSkipsAuthorization(t *testing.T) {
	for _, credErr := range []error{credential.ErrMissing, credential.ErrMalformed} {
		t.Run(credErr.Error(), func(t *testing.T) {
			h := newHarness(authz.Result{Kind: authz.Code, Code: 0}, card(7))
			h.creds.err = credErr
			require.NoError(t, h.st.Step(context.Background()))

			assert.Empty(t, h.auth.calls)
			assert.Empty(t, h.sig.patterns)
			require.Equal(t, []EventKind{EventCardDetected, EventCredentialsUnavailable}, h.kinds())
			assert.ErrorIs(t, h.events[1].Err, credErr)
			assert.Equal(t, StateIdle, h.st.State())
		})
	}
}

func TestFeedbackFailureIsFatal(t *testing.T) {
	linkDown := errors.New("link down")

	t.Run("input accepted", func(t *testing.T) {
		h := newHarness(authz.Result{Kind: authz.Code, Code: 0}, card(7))
		h.sig.failOn = map[indicator.Pattern]error{indicator.InputAccepted: linkDown}

		err := h.st.Step(context.Background())
		var fe *FeedbackError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, indicator.InputAccepted, fe.Pattern)
		assert.ErrorIs(t, err, linkDown)
		assert.Empty(t, h.auth.calls)
		assert.Equal(t, StateIdle, h.st.State())
	})

	t.Run("outcome", func(t *testing.T) {
		h := newHarness(authz.Result{Kind: authz.Code, Code: 2}, card(7), card(8))
		h.sig.failOn = map[indicator.Pattern]error{indicator.CheckInOutFailure: linkDown}

		err := h.st.Run(context.Background())
		assert.ErrorIs(t, err, linkDown)
		assert.Equal(t, 1, h.poller.calls)
	})
}

func TestRunUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := newHarness(authz.Result{Kind: authz.Code, Code: 0}, card(1), pollResult{err: reader.ErrNoCard}, card(2))
	h.poller.cancel = cancel

	require.NoError(t, h.st.Run(ctx))
	assert.Len(t, h.auth.calls, 2)
	assert.Equal(t, 4, h.poller.calls)
	assert.Equal(t, StateIdle, h.st.State())
}

func TestAuthorizeNotCancelledByShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := newHarness(authz.Result{Kind: authz.Code, Code: 0}, card(1))
	h.creds = &fakeCreds{creds: credential.Credentials{EndpointURL: "u", BearerToken: "t"}}
	h.st.deps.Credentials = &cancellingCreds{fakeCreds: h.creds, cancel: cancel}

	require.NoError(t, h.st.Step(ctx))
	require.Len(t, h.auth.calls, 1)
	assert.NoError(t, h.auth.ctxErr)
	assert.Equal(t, []indicator.Pattern{indicator.InputAccepted, indicator.CheckInOutSuccess}, h.sig.patterns)
}

type cancellingCreds struct {
	*fakeCreds
	cancel context.CancelFunc
}

func (c *cancellingCreds) Load() (credential.Credentials, error) {
	c.cancel()
	return c.fakeCreds.Load()
}

// The scenarios below run the real authz client against a test server.

func stepWithServer(t *testing.T, url string) *harness {
	t.Helper()
	client, err := authz.New(authz.Config{Timeout: time.Second}, "gocheckin/test")
	require.NoError(t, err)

	h := newHarness(authz.Result{}, card(305419896))
	h.creds.creds.EndpointURL = url
	h.st.deps.Authorizer = client
	require.NoError(t, h.st.Step(context.Background()))
	return h
}

func serve(body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
}

func TestScenarioRegistration(t *testing.T) {
	srv := serve(`{"code": 10}`)
	defer srv.Close()

	h := stepWithServer(t, srv.URL)
	assert.Equal(t, []indicator.Pattern{indicator.InputAccepted, indicator.RegistrationSuccess}, h.sig.patterns)
	assert.Equal(t, authz.Result{Kind: authz.Code, Code: 10}, h.events[1].Result)
}

func TestScenarioServerError(t *testing.T) {
	srv := serve(`{"error": "expired"}`)
	defer srv.Close()

	h := stepWithServer(t, srv.URL)
	assert.Equal(t, []indicator.Pattern{indicator.InputAccepted}, h.sig.patterns)
	assert.Equal(t, authz.Result{Kind: authz.ServerError, Message: "expired"}, h.events[1].Result)
}

func TestScenarioNonNumericCode(t *testing.T) {
	srv := serve(`{"code": "not-a-number"}`)
	defer srv.Close()

	h := stepWithServer(t, srv.URL)
	assert.Equal(t, []indicator.Pattern{indicator.InputAccepted}, h.sig.patterns)
	assert.Equal(t, authz.Result{Kind: authz.TransportFailure}, h.events[1].Result)
}

func TestScenarioConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()

	h := stepWithServer(t, "http://"+addr)
	assert.Equal(t, []indicator.Pattern{indicator.InputAccepted}, h.sig.patterns)
	assert.Equal(t, []EventKind{EventCardDetected, EventUnhandled}, h.kinds())
	assert.Equal(t, authz.TransportFailure, h.events[1].Result.Kind)
	assert.Equal(t, StateIdle, h.st.State())
}
