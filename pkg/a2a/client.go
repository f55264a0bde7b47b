package a2a

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/convene-dev/convene/pkg/observability"
)

// ============================================================================
// A2A CLIENT - Peer Transport
// ============================================================================

// TransportError reports a failure to reach or read from a peer endpoint.
type TransportError struct {
	Endpoint string
	Op       string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s failed for %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SendResult is the assembled outcome of one peer exchange.
type SendResult struct {
	// Text is the user-visible response text; NoTextPlaceholder when the
	// peer sent frames but no extractable text.
	Text string
	// ContextID is the continuity token to pass back on the next Send.
	ContextID string
	// Streamed reports whether the exchange used the streaming path.
	Streamed bool
}

// ClientConfig configures the peer transport client.
type ClientConfig struct {
	Timeout time.Duration
	// DisableStreaming forces the non-streaming path even when the peer's
	// card advertises streaming.
	DisableStreaming bool
	Logger           *slog.Logger
	// Metrics records per-exchange transport counters; nil disables recording.
	Metrics *observability.Metrics
}

// Client is the peer transport: it discovers agent cards and exchanges
// messages, reconstructing response text from the multi-frame stream while
// preserving the conversation continuity id.
type Client struct {
	httpClient       *http.Client
	disableStreaming bool
	logger           *slog.Logger
	metrics          *observability.Metrics
}

// NewClient creates a peer transport client.
func NewClient(cfg *ClientConfig) *Client {
	if cfg == nil {
		cfg = &ClientConfig{}
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		httpClient:       &http.Client{Timeout: timeout},
		disableStreaming: cfg.DisableStreaming,
		logger:           logger,
		metrics:          cfg.Metrics,
	}
}

// ============================================================================
// AGENT DISCOVERY
// ============================================================================

// DiscoverCard fetches a peer's agent card from the well-known path under
// the endpoint base. Absent card fields default conservatively: streaming
// off, message url = discovery base.
func (c *Client) DiscoverCard(ctx context.Context, endpoint string) (*AgentCard, error) {
	cardURL := strings.TrimSuffix(endpoint, "/") + WellKnownCardPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cardURL, nil)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Op: "discovery", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Op: "discovery", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &TransportError{Endpoint: endpoint, Op: "discovery",
			Err: fmt.Errorf("%s - %s", resp.Status, string(body))}
	}

	var card AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, &TransportError{Endpoint: endpoint, Op: "discovery", Err: err}
	}

	if card.URL == "" {
		card.URL = strings.TrimSuffix(endpoint, "/")
	}
	return &card, nil
}

// ============================================================================
// MESSAGE SENDING
// ============================================================================

// Send delivers text to the peer behind endpoint and assembles the response.
// contextID may be empty on the first turn; callers pass the returned
// ContextID back on the next Send to continue the same peer-side
// conversation. The supplied ctx bounds the whole exchange including
// discovery.
func (c *Client) Send(ctx context.Context, endpoint, text, contextID string) (*SendResult, error) {
	started := time.Now()
	result, err := c.send(ctx, endpoint, text, contextID)
	c.metrics.RecordTransport(ctx, endpoint, time.Since(started), err)
	return result, err
}

func (c *Client) send(ctx context.Context, endpoint, text, contextID string) (*SendResult, error) {
	card, err := c.DiscoverCard(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	request := Request{
		ID: uuid.NewString(),
		Params: SendParams{
			ID:      uuid.NewString(),
			Message: TextMessage(uuid.NewString(), text, contextID),
		},
	}

	streaming := card.Capabilities.Streaming && !c.disableStreaming

	body, err := json.Marshal(request)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Op: "send", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, card.URL, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Op: "send", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if streaming {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Op: "send", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &TransportError{Endpoint: endpoint, Op: "send",
			Err: fmt.Errorf("%s - %s", resp.Status, string(respBody))}
	}

	var frames []*Frame
	streamed := streaming && strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream")
	if streamed {
		frames, err = c.readEventStream(ctx, resp.Body)
	} else {
		frames, err = c.readSingleEnvelope(resp.Body)
	}
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Op: "receive", Err: err}
	}

	result := &SendResult{
		Text:      AssembleText(frames),
		ContextID: LastContextID(frames, contextID),
		Streamed:  streamed,
	}
	if result.Text == "" {
		result.Text = NoTextPlaceholder
	}

	c.logger.Debug("peer exchange complete",
		"endpoint", endpoint, "frames", len(frames), "streamed", streamed,
		"context_id", result.ContextID)
	return result, nil
}

// readEventStream consumes SSE data lines, normalizing each into a frame.
// Unparseable or unknown frames are skipped; a frame marked final or
// carrying a terminal task state ends the read early.
func (c *Client) readEventStream(ctx context.Context, body io.Reader) (frames []*Frame, err error) {
	// A malformed frame must never abort the whole exchange.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stream parse panic: %v", r)
		}
	}()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return frames, ctx.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "event:") || strings.HasPrefix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "data:") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
		if line == "" || !strings.HasPrefix(line, "{") {
			continue
		}

		frame, parseErr := ParseFrame([]byte(line))
		if parseErr != nil {
			c.logger.Debug("skipping unparseable frame", "error", parseErr)
			continue
		}
		frames = append(frames, frame)

		if frame.Final || isTerminalFrame(frame) {
			break
		}
	}

	if scanErr := scanner.Err(); scanErr != nil && ctx.Err() == nil {
		// Frames already collected still count; surface the error only if
		// nothing arrived.
		if len(frames) == 0 {
			return nil, scanErr
		}
		c.logger.Debug("stream ended with error after frames", "error", scanErr)
	}
	return frames, nil
}

// readSingleEnvelope parses a non-streaming response body as one frame.
func (c *Client) readSingleEnvelope(body io.Reader) ([]*Frame, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	frame, err := ParseFrame(data)
	if err != nil {
		return nil, err
	}
	return []*Frame{frame}, nil
}

func isTerminalFrame(f *Frame) bool {
	if f.Kind != FrameKindStatusUpdate || f.Status == nil {
		return false
	}
	switch f.Status.State {
	case "completed", "failed", "canceled", "rejected":
		return true
	}
	return false
}
