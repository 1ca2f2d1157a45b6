// Package authz performs the check-in/out round-trip with the remote
// endpoint and reduces its reply to an outcome.
package authz

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

// maxBody caps how much of a reply is read.
const maxBody = 64 << 10

// OperationType is the "type" field of a request.
type OperationType int

// CheckInOut is the only operation the terminal sends.
const CheckInOut OperationType = 0

// Request is the JSON body posted to the endpoint.
type Request struct {
	Type       OperationType `json:"type"`
	CardNumber uint32        `json:"cardNumber"`
	Token      string        `json:"token"`
}

// Kind tags a Result.
type Kind int

const (
	TransportFailure Kind = iota
	ServerError
	Code
)

func (k Kind) String() string {
	switch k {
	case ServerError:
		return "server_error"
	case Code:
		return "code"
	default:
		return "transport_failure"
	}
}

// Result is the outcome of one round-trip. Message is set for ServerError,
// Code for Code.
type Result struct {
	Kind    Kind
	Message string
	Code    int
}

func (r Result) String() string {
	switch r.Kind {
	case ServerError:
		return fmt.Sprintf("ServerError(%q)", r.Message)
	case Code:
		return fmt.Sprintf("Code(%d)", r.Code)
	default:
		return "TransportFailure"
	}
}

// Config holds HTTP settings for the endpoint.
type Config struct {
	Timeout time.Duration `yaml:"timeout"`
	CAFile  string        `yaml:"ca_file"`
}

// Client posts authorization requests.
type Client struct {
	http      *http.Client
	userAgent string
}

// New builds a Client. A CA file, when given, replaces the system roots.
func New(cfg Config, userAgent string) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.CAFile != "" {
		caCert, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("no certificates in %s", cfg.CAFile)
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool}
	}

	return &Client{
		http:      &http.Client{Transport: transport, Timeout: cfg.Timeout},
		userAgent: userAgent,
	}, nil
}

type requestIDKey struct{}

// WithRequestID attaches an id sent as X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// Authorize posts the request to url and blocks until the reply is read
// or the client timeout expires.
func (c *Client) Authorize(ctx context.Context, op OperationType, card uint32, token, url string) Result {
	body, err := json.Marshal(Request{Type: op, CardNumber: card, Token: token})
	if err != nil {
		log.Errorf("Encode request: %v", err)
		return Result{Kind: TransportFailure}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Warnf("Create request: %v", err)
		return Result{Kind: TransportFailure}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Warnf("Authorize request: %v", err)
		return Result{Kind: TransportFailure}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		log.Warnf("Read response: %v", err)
		return Result{Kind: TransportFailure}
	}
	log.WithField("status", resp.StatusCode).Debugf("data: %s", data)

	return Parse(data)
}

// Parse reduces a reply body to a Result. The HTTP status is not consulted;
// the body alone decides.
func Parse(data []byte) Result {
	obj, ok := fields(data)
	if !ok {
		return Result{Kind: TransportFailure}
	}

	if raw, ok := obj["error"]; ok {
		var msg string
		if json.Unmarshal(raw, &msg) == nil && msg != "" {
			return Result{Kind: ServerError, Message: msg}
		}
	}

	raw, ok := obj["code"]
	if !ok {
		return Result{Kind: TransportFailure}
	}
	code, ok := number(raw)
	if !ok {
		return Result{Kind: TransportFailure}
	}
	return Result{Kind: Code, Code: code}
}

// fields splits a JSON object into its members. When a key repeats, the
// first occurrence wins.
func fields(data []byte) (map[string]json.RawMessage, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, false
	}
	obj := make(map[string]json.RawMessage)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		key, ok := tok.(string)
		if !ok {
			return nil, false
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, false
		}
		if _, dup := obj[key]; !dup {
			obj[key] = raw
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return obj, true
}

// number accepts any JSON number and truncates fractions toward zero.
func number(raw json.RawMessage) (int, bool) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	// json.Number also accepts a quoted string; only bare numbers count.
	if len(raw) == 0 || raw[0] == '"' {
		return 0, false
	}
	if i, err := strconv.ParseInt(string(n), 10, 32); err == nil {
		return int(i), true
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(math.Trunc(f)), true
}
