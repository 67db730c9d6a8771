package stream

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/papercomputeco/murmur/pkg/logger"
	"github.com/papercomputeco/murmur/pkg/sse"
	"github.com/papercomputeco/murmur/pkg/utils"
)

// maxErrorBodySize bounds how much of a non-2xx body is kept for the error.
const maxErrorBodySize = 4 * 1024

// Request describes the single streamed HTTP request a Reader performs.
type Request struct {
	URL    string
	Method string
	Header http.Header
	Body   []byte
}

// Handlers are the per-kind callbacks. Nil handlers are skipped. All handlers
// are called from the reader's goroutine, one at a time, in arrival order.
type Handlers struct {
	OnText            func(text string)
	OnAudio           func(sequence int, payload string)
	OnSuggestions     func(items []string)
	OnMetadata        func(values map[string]any)
	OnDone            func(done Done)
	OnError           func(err ServerError)
	OnConnectionError func(err ConnectionError)
}

// Reader consumes one streamed response and dispatches decoded events.
// A Reader is single use.
type Reader struct {
	req      Request
	handlers Handlers
	client   *http.Client
	logger   *slog.Logger
	tee      io.Writer

	started atomic.Bool
	stopped atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Reader.
type Option func(*Reader)

// WithHTTPClient sets the client used for the request. The client should not
// carry an overall timeout since streams are long lived.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Reader) {
		r.client = client
	}
}

// WithLogger sets the logger used for skipped events and failures.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reader) {
		r.logger = l
	}
}

// WithTee copies every raw byte of the response body to w.
func WithTee(w io.Writer) Option {
	return func(r *Reader) {
		r.tee = w
	}
}

// NewReader creates a Reader for req. Nothing happens until Start.
func NewReader(req Request, handlers Handlers, opts ...Option) *Reader {
	r := &Reader{
		req:      req,
		handlers: handlers,
		client:   http.DefaultClient,
		logger:   logger.Nop(),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.req.Method == "" {
		r.req.Method = http.MethodPost
	}

	return r
}

// Start opens the request and begins decoding on a new goroutine. Start
// returns immediately; transport failures are reported through
// OnConnectionError.
func (r *Reader) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	if r.stopped.Load() {
		// Stop raced ahead of Start.
		cancel()
		close(r.done)
		return nil
	}

	go r.run(ctx)
	return nil
}

// Stop aborts the underlying request. Once Stop returns no handler starts.
// Stop never blocks and is safe to call from inside a handler and more than
// once.
func (r *Reader) Stop() {
	r.stopped.Store(true)

	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Done is closed once the read loop has exited.
func (r *Reader) Done() <-chan struct{} {
	return r.done
}

func (r *Reader) run(ctx context.Context) {
	defer close(r.done)
	defer r.Stop()

	resp, err := r.open(ctx)
	if err != nil {
		r.fail(err)
		return
	}
	defer resp.Body.Close()

	next := r.framer(resp)

	for {
		ev, err := next()
		if err != nil {
			r.fail(ConnectionError{Err: fmt.Errorf("reading stream: %w", err)})
			return
		}
		if ev == nil {
			r.fail(ConnectionError{Err: fmt.Errorf("stream ended before done event: %w", io.ErrUnexpectedEOF)})
			return
		}

		decoded, err := Decode(ev)
		if err != nil {
			r.logger.Warn("skipping stream event",
				"error", err,
				"data", utils.Truncate(ev.Data, 128),
			)
			continue
		}

		if r.dispatch(decoded) {
			return
		}
	}
}

// open performs the HTTP request and validates the status code.
func (r *Reader) open(ctx context.Context) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, r.req.Method, r.req.URL, bytes.NewReader(r.req.Body))
	if err != nil {
		return nil, ConnectionError{Err: fmt.Errorf("creating request: %w", err)}
	}

	for key, values := range r.req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", utils.UserAgent())
	}
	if len(r.req.Body) > 0 && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	r.logger.Debug("opening stream",
		"method", r.req.Method,
		"url", r.req.URL,
	)

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, ConnectionError{Err: fmt.Errorf("sending request: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		resp.Body.Close()
		return nil, ConnectionError{
			Err:        fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(body))),
			StatusCode: resp.StatusCode,
		}
	}

	return resp, nil
}

// framer picks SSE or NDJSON framing based on the response content type.
// NDJSON lines are wrapped into untyped sse.Events so Decode falls back to
// the JSON "type" discriminator.
func (r *Reader) framer(resp *http.Response) func() (*sse.Event, error) {
	var src io.Reader = resp.Body

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		sr := sse.NewTeeReader(src, r.tee)
		return sr.Next
	}

	if r.tee != nil {
		src = io.TeeReader(src, r.tee)
	}
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	return func() (*sse.Event, error) {
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			return &sse.Event{Data: line}, nil
		}
		return nil, scanner.Err()
	}
}

// dispatch invokes the handler for ev. It reports whether the loop must end.
func (r *Reader) dispatch(ev Event) bool {
	if r.stopped.Load() {
		return true
	}

	h := r.handlers
	switch e := ev.(type) {
	case TextToken:
		if h.OnText != nil {
			h.OnText(e.Text)
		}
	case AudioChunk:
		if h.OnAudio != nil {
			h.OnAudio(e.Sequence, e.Payload)
		}
	case Suggestions:
		if h.OnSuggestions != nil {
			h.OnSuggestions(e.Items)
		}
	case Metadata:
		if h.OnMetadata != nil {
			h.OnMetadata(e.Values)
		}
	case ServerError:
		if h.OnError != nil {
			h.OnError(e)
		}
	case Done:
		if h.OnDone != nil {
			h.OnDone(e)
		}
		return true
	default:
		r.logger.Warn("unhandled stream event", "kind", ev.Kind())
	}

	return false
}

// fail reports a terminal transport failure unless the reader was stopped,
// in which case the failure is the expected result of the abort.
func (r *Reader) fail(err error) {
	if r.stopped.Load() {
		r.logger.Debug("stream closed after stop", "error", err)
		return
	}

	var connErr ConnectionError
	if !errors.As(err, &connErr) {
		connErr = ConnectionError{Err: err}
	}

	r.logger.Warn("stream connection failed", "error", connErr)

	if r.handlers.OnConnectionError != nil {
		r.handlers.OnConnectionError(connErr)
	}
}
