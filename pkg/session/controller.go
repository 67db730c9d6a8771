package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/murmur/pkg/audio"
	"github.com/papercomputeco/murmur/pkg/logger"
	"github.com/papercomputeco/murmur/pkg/stream"
)

// IdentityProvider supplies the opaque caller identity. Empty values are
// valid and sent as such.
type IdentityProvider interface {
	Phone() string
	Token() string
}

// Recorder receives every completion, typically to persist it. Record is
// called with the controller lock held and must not block.
type Recorder interface {
	Record(c Completion)
}

// RecorderFunc adapts a function to a Recorder.
type RecorderFunc func(c Completion)

func (f RecorderFunc) Record(c Completion) { f(c) }

// Observer receives the controller's reactive updates. OnText, OnComplete
// and OnError run with the controller lock held. OnAudioState may also run
// on the audio engine's playback goroutine. None of them may call back into
// the Controller synchronously.
type Observer interface {
	OnText(text string)
	OnComplete(c Completion)
	OnError(err error)
	OnAudioState(st audio.State)
}

// ObserverFuncs is an Observer built from optional functions.
type ObserverFuncs struct {
	Text       func(text string)
	Complete   func(c Completion)
	Error      func(err error)
	AudioState func(st audio.State)
}

func (o ObserverFuncs) OnText(text string) {
	if o.Text != nil {
		o.Text(text)
	}
}

func (o ObserverFuncs) OnComplete(c Completion) {
	if o.Complete != nil {
		o.Complete(c)
	}
}

func (o ObserverFuncs) OnError(err error) {
	if o.Error != nil {
		o.Error(err)
	}
}

func (o ObserverFuncs) OnAudioState(st audio.State) {
	if o.AudioState != nil {
		o.AudioState(st)
	}
}

// EngineFactory builds the audio engine; listener must be registered as the
// engine's state listener.
type EngineFactory func(listener func(audio.State)) *audio.Engine

// Config configures a Controller.
type Config struct {
	Endpoint   string
	ChannelID  string
	TTSEnabled bool

	// HTTPClient is used for the streamed request. It must not carry an
	// overall timeout.
	HTTPClient *http.Client

	Identity      IdentityProvider
	Recorder      Recorder
	Observer      Observer
	EngineFactory EngineFactory

	// SessionID identifies the conversation. A random UUID is used when
	// empty.
	SessionID string

	Logger *slog.Logger
	Clock  func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithStreamOptions passes extra options to every stream.Reader.
func WithStreamOptions(opts ...stream.Option) Option {
	return func(c *Controller) {
		c.streamOpts = append(c.streamOpts, opts...)
	}
}

// Controller owns at most one in-flight streamed answer.
//
// The controller mutex serializes every session transition: SendMessage,
// StopStreaming and all reader callbacks. Lock order is controller before
// engine.
type Controller struct {
	cfg        Config
	logger     *slog.Logger
	clock      func() time.Time
	observer   Observer
	streamOpts []stream.Option

	mu        sync.Mutex
	epoch     uint64
	current   *StreamSession
	reader    *stream.Reader
	engine    *audio.Engine
	lastQuery string
	hasQuery  bool
	lastErr   error
	metrics   *Metrics
	closed    bool
}

// New creates a Controller.
func New(cfg Config, opts ...Option) *Controller {
	c := &Controller{
		cfg:      cfg,
		logger:   cfg.Logger,
		clock:    cfg.Clock,
		observer: cfg.Observer,
	}

	if c.logger == nil {
		c.logger = logger.Nop()
	}
	if c.clock == nil {
		c.clock = time.Now
	}
	if c.observer == nil {
		c.observer = ObserverFuncs{}
	}
	if c.cfg.HTTPClient == nil {
		c.cfg.HTTPClient = &http.Client{}
	}
	if c.cfg.SessionID == "" {
		c.cfg.SessionID = uuid.NewString()
	}
	if c.cfg.EngineFactory == nil {
		log := c.logger
		c.cfg.EngineFactory = func(listener func(audio.State)) *audio.Engine {
			return audio.NewEngine(audio.NopPlayer{},
				audio.WithLogger(log),
				audio.WithStateListener(listener),
			)
		}
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// SessionID returns the conversation identity sent with every request.
func (c *Controller) SessionID() string {
	return c.cfg.SessionID
}

// SendMessage starts streaming the answer to query. It returns once the
// request was handed to the reader; progress arrives through the Observer.
// ctx bounds the lifetime of the stream.
func (c *Controller) SendMessage(ctx context.Context, query string) error {
	if strings.TrimSpace(query) == "" {
		return ErrEmptyQuery
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	if c.current != nil && c.current.state == StateStreaming {
		c.logger.Warn("rejecting message while a session is active",
			"active_query", c.current.Query,
		)
		return ErrSessionActive
	}

	// a new answer replaces whatever is still playing
	c.engineLocked().Stop()

	c.epoch++
	s := &StreamSession{
		Query:     query,
		ChannelID: c.cfg.ChannelID,
		SessionID: c.cfg.SessionID,
		StartedAt: c.clock(),
		state:     StateStreaming,
		epoch:     c.epoch,
	}

	c.current = s
	c.lastQuery = query
	c.hasQuery = true
	c.lastErr = nil

	req, err := c.request(query)
	if err != nil {
		s.state = StateErrored
		c.lastErr = err
		return err
	}

	opts := append([]stream.Option{
		stream.WithHTTPClient(c.cfg.HTTPClient),
		stream.WithLogger(c.logger),
	}, c.streamOpts...)

	c.reader = stream.NewReader(req, c.handlers(s), opts...)

	c.logger.Debug("starting session",
		"session", s.SessionID,
		"epoch", s.epoch,
		"endpoint", c.cfg.Endpoint,
	)

	// Start only spawns the read loop; callbacks block on c.mu until we
	// return.
	return c.reader.Start(ctx)
}

// Retry resends the last query verbatim.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	query, ok := c.lastQuery, c.hasQuery
	c.mu.Unlock()

	if !ok {
		return ErrNothingToRetry
	}
	return c.SendMessage(ctx, query)
}

// StopStreaming cancels the active session, if any, and stops audio. No
// callback from the cancelled session fires afterwards. It is safe to call
// at any time.
func (c *Controller) StopStreaming() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelLocked()
	if c.engine != nil {
		c.engine.Stop()
	}
}

// PauseAudio pauses playback.
func (c *Controller) PauseAudio() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e := c.engineLocked(); e != nil {
		e.Pause()
	}
}

// ResumeAudio resumes playback.
func (c *Controller) ResumeAudio() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e := c.engineLocked(); e != nil {
		e.Resume()
	}
}

// SetMuted mutes or unmutes playback.
func (c *Controller) SetMuted(muted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e := c.engineLocked(); e != nil {
		e.SetMuted(muted)
	}
}

// AudioState returns the audio engine's state. A closed controller reports
// the zero State.
func (c *Controller) AudioState() audio.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.engineLocked()
	if e == nil {
		return audio.State{}
	}
	return e.State()
}

// Snapshot returns the current observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		State:     StateIdle,
		LastError: c.lastErr,
	}
	if c.current != nil {
		snap.Text = c.current.text
		snap.Streaming = c.current.state == StateStreaming
		snap.State = c.current.state
	}
	if c.metrics != nil {
		m := *c.metrics
		snap.LastMetrics = &m
	}
	if c.engine != nil {
		snap.AudioPlaying = c.engine.State().IsPlaying
	}

	return snap
}

// Close cancels any session and tears down the audio engine.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.cancelLocked()
	engine := c.engine
	c.engine = nil
	c.mu.Unlock()

	if engine != nil {
		engine.Close()
	}
}

func (c *Controller) cancelLocked() {
	s := c.current
	if s == nil || s.state != StateStreaming {
		return
	}

	c.epoch++
	s.state = StateCancelled
	if c.reader != nil {
		c.reader.Stop()
		c.reader = nil
	}

	c.logger.Debug("session cancelled", "session", s.SessionID)
}

// engineLocked builds the engine on first use. It returns nil once the
// controller is closed so nothing outlives Close.
func (c *Controller) engineLocked() *audio.Engine {
	if c.closed {
		return nil
	}
	if c.engine == nil {
		observer := c.observer
		c.engine = c.cfg.EngineFactory(func(st audio.State) {
			observer.OnAudioState(st)
		})
	}
	return c.engine
}

type requestBody struct {
	ChannelID  string `json:"channelId"`
	Query      string `json:"query"`
	SessionID  string `json:"sessionId"`
	TTSEnabled bool   `json:"ttsEnabled"`
	Phone      string `json:"phone"`
}

func (c *Controller) request(query string) (stream.Request, error) {
	var phone, token string
	if c.cfg.Identity != nil {
		phone = c.cfg.Identity.Phone()
		token = c.cfg.Identity.Token()
	}

	body, err := json.Marshal(requestBody{
		ChannelID:  c.cfg.ChannelID,
		Query:      query,
		SessionID:  c.cfg.SessionID,
		TTSEnabled: c.cfg.TTSEnabled,
		Phone:      phone,
	})
	if err != nil {
		return stream.Request{}, fmt.Errorf("encoding request: %w", err)
	}

	header := http.Header{}
	header.Set("Accept", "text/event-stream")
	header.Set("Content-Type", "application/json")
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	return stream.Request{
		URL:    c.cfg.Endpoint,
		Method: http.MethodPost,
		Header: header,
		Body:   body,
	}, nil
}

// handlers binds the reader callbacks to s. Every callback is a no-op once
// s stopped being the live session.
func (c *Controller) handlers(s *StreamSession) stream.Handlers {
	return stream.Handlers{
		OnText: func(text string) {
			c.mu.Lock()
			defer c.mu.Unlock()
			if !c.liveLocked(s) {
				return
			}

			if s.FirstTextAt.IsZero() {
				s.FirstTextAt = c.clock()
			}
			s.raw.WriteString(text)
			s.text = Sanitize(s.raw.String()).Text
			c.observer.OnText(s.text)
		},
		OnAudio: func(sequence int, payload string) {
			c.mu.Lock()
			defer c.mu.Unlock()
			if !c.liveLocked(s) {
				return
			}

			if s.FirstAudioAt.IsZero() {
				s.FirstAudioAt = c.clock()
			}
			e := c.engineLocked()
			if e == nil {
				return
			}
			if err := e.AddSequencedChunk(payload, sequence); err != nil {
				c.logger.Debug("audio fragment dropped", "sequence", sequence, "error", err)
			}
		},
		OnSuggestions: func(items []string) {
			c.mu.Lock()
			defer c.mu.Unlock()
			if !c.liveLocked(s) {
				return
			}
			s.Suggestions = items
			s.hasSuggestions = true
		},
		OnMetadata: func(values map[string]any) {
			c.mu.Lock()
			defer c.mu.Unlock()
			if !c.liveLocked(s) {
				return
			}
			s.Metadata = values
		},
		OnDone: func(done stream.Done) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.completeLocked(s, done)
		},
		OnError: func(err stream.ServerError) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.failLocked(s, err)
		},
		OnConnectionError: func(err stream.ConnectionError) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.failLocked(s, err)
		},
	}
}

func (c *Controller) liveLocked(s *StreamSession) bool {
	return s.epoch == c.epoch && s.state == StateStreaming
}

// completeLocked finalizes s. The state check and the read of the
// accumulated text happen in one critical section, so duplicate done
// events produce one Completion.
func (c *Controller) completeLocked(s *StreamSession, done stream.Done) {
	if !c.liveLocked(s) {
		return
	}
	s.state = StateCompleted

	local := Sanitize(s.raw.String())
	final := local
	if strings.TrimSpace(done.FullAnswer) != "" {
		final = Sanitize(done.FullAnswer)
		if len(final.Suggestions) == 0 {
			final.Suggestions = local.Suggestions
		}
	}

	suggestions := final.Suggestions
	if s.hasSuggestions {
		suggestions = s.Suggestions
	}

	now := c.clock()
	metrics := Metrics{
		Duration:  now.Sub(s.StartedAt),
		WordCount: len(strings.Fields(final.Text)),
		Server:    done.Metrics,
	}
	if !s.FirstTextAt.IsZero() {
		metrics.TimeToFirstToken = s.FirstTextAt.Sub(s.StartedAt)
	}
	if !s.FirstAudioAt.IsZero() {
		metrics.TimeToFirstAudio = s.FirstAudioAt.Sub(s.StartedAt)
	}

	completion := Completion{
		Query:       s.Query,
		SessionID:   s.SessionID,
		ChannelID:   s.ChannelID,
		Text:        final.Text,
		Suggestions: suggestions,
		Metadata:    s.Metadata,
		Metrics:     metrics,
		CompletedAt: now,
	}

	c.metrics = &metrics
	c.releaseLocked()

	c.logger.Debug("session completed",
		"session", s.SessionID,
		"duration", metrics.Duration,
		"ttft", metrics.TimeToFirstToken,
		"words", metrics.WordCount,
	)

	if final.Text != s.text {
		s.text = final.Text
		c.observer.OnText(s.text)
	}

	if c.cfg.Recorder != nil {
		c.cfg.Recorder.Record(completion)
	}
	c.observer.OnComplete(completion)
}

func (c *Controller) failLocked(s *StreamSession, err error) {
	if !c.liveLocked(s) {
		return
	}
	s.state = StateErrored
	c.lastErr = err
	c.releaseLocked()

	c.logger.Warn("session failed", "session", s.SessionID, "error", err)
	c.observer.OnError(err)
}

// releaseLocked hands buffered audio to the engine and drops the reader.
func (c *Controller) releaseLocked() {
	if e := c.engineLocked(); e != nil {
		e.FinalizeStream()
	}
	if c.reader != nil {
		c.reader.Stop()
		c.reader = nil
	}
}
