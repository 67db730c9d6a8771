package session_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/murmur/pkg/audio"
	"github.com/papercomputeco/murmur/pkg/session"
	"github.com/papercomputeco/murmur/pkg/stream"
)

var _ = Describe("Controller", func() {
	var (
		server *chatServer
		obs    *collector
		ctrl   *session.Controller
		ctx    context.Context
	)

	newController := func(cfg session.Config) *session.Controller {
		cfg.Endpoint = server.URL
		if cfg.Observer == nil {
			cfg.Observer = obs.observer()
		}
		ctrl = session.New(cfg)
		return ctrl
	}

	BeforeEach(func() {
		obs = &collector{}
		ctx = context.Background()
	})

	AfterEach(func() {
		if ctrl != nil {
			ctrl.Close()
			ctrl = nil
		}
		if server != nil {
			server.Close()
			server = nil
		}
	})

	Describe("SendMessage", func() {
		It("streams sanitized text and completes once", func() {
			server = newChatServer(func(w http.ResponseWriter, _ *http.Request, _ int) {
				text(w, "Hel")
				text(w, "lo [SUGG")
				text(w, "ESTIONS: a|b]")
				done(w, "Hello [SUGGESTIONS: a|b]")
			})
			newController(session.Config{ChannelID: "web"})

			Expect(ctrl.SendMessage(ctx, "Hello")).To(Succeed())

			Eventually(obs.Completions).Should(HaveLen(1))
			Expect(obs.Texts()).To(Equal([]string{"Hel", "Hello", "Hello"}))

			c := obs.Completions()[0]
			Expect(c.Text).To(Equal("Hello"))
			Expect(c.Suggestions).To(Equal([]string{"a", "b"}))
			Expect(c.Query).To(Equal("Hello"))
			Expect(c.ChannelID).To(Equal("web"))
			Expect(c.SessionID).To(Equal(ctrl.SessionID()))
			Expect(c.Metrics.WordCount).To(Equal(1))

			snap := ctrl.Snapshot()
			Expect(snap.Streaming).To(BeFalse())
			Expect(snap.State).To(Equal(session.StateCompleted))
			Expect(snap.Text).To(Equal("Hello"))
			Expect(snap.LastMetrics).NotTo(BeNil())
		})

		It("sends the conversation identity", func() {
			server = newChatServer(func(w http.ResponseWriter, _ *http.Request, _ int) {
				done(w, "ok")
			})
			newController(session.Config{
				ChannelID:  "web",
				TTSEnabled: true,
				Identity:   identity{phone: "+15550100", token: "t0k3n"},
				SessionID:  "conv-1",
			})

			Expect(ctrl.SendMessage(ctx, "first")).To(Succeed())
			Eventually(obs.Completions).Should(HaveLen(1))
			Expect(ctrl.SendMessage(ctx, "second")).To(Succeed())
			Eventually(obs.Completions).Should(HaveLen(2))

			Expect(server.Body(0)).To(Equal(map[string]any{
				"channelId":  "web",
				"query":      "first",
				"sessionId":  "conv-1",
				"ttsEnabled": true,
				"phone":      "+15550100",
			}))
			Expect(server.Body(1)["sessionId"]).To(Equal("conv-1"))
			Expect(server.Header(0).Get("Authorization")).To(Equal("Bearer t0k3n"))
			Expect(server.Header(0).Get("Accept")).To(Equal("text/event-stream"))
		})

		It("sends an empty identity when none is configured", func() {
			server = newChatServer(func(w http.ResponseWriter, _ *http.Request, _ int) {
				done(w, "ok")
			})
			newController(session.Config{})

			Expect(ctrl.SendMessage(ctx, "q")).To(Succeed())
			Eventually(obs.Completions).Should(HaveLen(1))

			Expect(server.Body(0)).To(HaveKeyWithValue("phone", ""))
			Expect(server.Header(0).Get("Authorization")).To(BeEmpty())
		})

		It("rejects empty queries", func() {
			server = newChatServer(func(http.ResponseWriter, *http.Request, int) {})
			newController(session.Config{})

			Expect(ctrl.SendMessage(ctx, "  ")).To(MatchError(session.ErrEmptyQuery))
			Expect(server.Requests()).To(BeZero())
		})

		It("rejects a second message while streaming", func() {
			server = newChatServer(func(w http.ResponseWriter, r *http.Request, _ int) {
				text(w, "first")
				hold(r)
			})
			newController(session.Config{})

			Expect(ctrl.SendMessage(ctx, "a")).To(Succeed())
			Eventually(obs.Texts).Should(Equal([]string{"first"}))
			before := ctrl.Snapshot()

			Expect(ctrl.SendMessage(ctx, "x")).To(MatchError(session.ErrSessionActive))

			after := ctrl.Snapshot()
			Expect(after.Text).To(Equal(before.Text))
			Expect(after.Streaming).To(BeTrue())
			Expect(after.LastMetrics).To(BeNil())
			Consistently(server.Requests, "50ms").Should(Equal(1))
		})

		It("prefers the server's full answer", func() {
			server = newChatServer(func(w http.ResponseWriter, _ *http.Request, _ int) {
				text(w, "Hi ther")
				done(w, "Hi there, friend")
			})
			newController(session.Config{})

			Expect(ctrl.SendMessage(ctx, "q")).To(Succeed())
			Eventually(obs.Completions).Should(HaveLen(1))

			Expect(obs.Completions()[0].Text).To(Equal("Hi there, friend"))
			Expect(obs.Completions()[0].Metrics.WordCount).To(Equal(3))
			Expect(obs.Texts()).To(Equal([]string{"Hi ther", "Hi there, friend"}))
		})

		It("falls back to the local text without a full answer", func() {
			server = newChatServer(func(w http.ResponseWriter, _ *http.Request, _ int) {
				text(w, "local ")
				text(w, "answer [SUGGESTIONS: more]")
				done(w, "")
			})
			newController(session.Config{})

			Expect(ctrl.SendMessage(ctx, "q")).To(Succeed())
			Eventually(obs.Completions).Should(HaveLen(1))

			c := obs.Completions()[0]
			Expect(c.Text).To(Equal("local answer"))
			Expect(c.Suggestions).To(Equal([]string{"more"}))
		})

		It("attaches side channel suggestions and the latest metadata", func() {
			server = newChatServer(func(w http.ResponseWriter, _ *http.Request, _ int) {
				text(w, "x [SUGGESTIONS: marker]")
				send(w, "metadata", map[string]any{"metadata": map[string]any{"round": 1}})
				send(w, "suggestions", map[string]any{"suggestions": []string{"side"}})
				send(w, "metadata", map[string]any{"metadata": map[string]any{"round": 2}})
				done(w, "")
			})
			newController(session.Config{})

			Expect(ctrl.SendMessage(ctx, "q")).To(Succeed())
			Eventually(obs.Completions).Should(HaveLen(1))

			c := obs.Completions()[0]
			Expect(c.Suggestions).To(Equal([]string{"side"}))
			Expect(c.Metadata).To(Equal(map[string]any{"round": float64(2)}))
		})

		It("completes once when done arrives twice", func() {
			server = newChatServer(func(w http.ResponseWriter, _ *http.Request, _ int) {
				text(w, "once")
				done(w, "once")
				done(w, "twice")
			})
			newController(session.Config{})

			Expect(ctrl.SendMessage(ctx, "q")).To(Succeed())
			Eventually(obs.Completions).Should(HaveLen(1))
			Consistently(obs.Completions, "100ms").Should(HaveLen(1))
			Expect(obs.Completions()[0].Text).To(Equal("once"))
		})

		It("hands the completion to the recorder", func() {
			server = newChatServer(func(w http.ResponseWriter, _ *http.Request, _ int) {
				done(w, "saved")
			})

			var (
				mu       sync.Mutex
				recorded []session.Completion
			)
			newController(session.Config{
				Recorder: session.RecorderFunc(func(c session.Completion) {
					mu.Lock()
					recorded = append(recorded, c)
					mu.Unlock()
				}),
			})

			Expect(ctrl.SendMessage(ctx, "q")).To(Succeed())
			Eventually(obs.Completions).Should(HaveLen(1))

			mu.Lock()
			defer mu.Unlock()
			Expect(recorded).To(HaveLen(1))
			Expect(recorded[0].Text).To(Equal("saved"))
		})
	})

	Describe("metrics", func() {
		It("measures time to first token and first audio", func() {
			server = newChatServer(func(w http.ResponseWriter, _ *http.Request, _ int) {
				text(w, "one")
				text(w, " two")
				send(w, "audio-chunk", map[string]any{"sequence": 0, "payload": "AAABAA=="})
				send(w, "done", map[string]any{"fullAnswer": "one two", "metrics": map[string]any{"tokens": 2}})
			})
			clock := &stepClock{now: time.Unix(0, 0)}
			player := &countingPlayer{}
			newController(session.Config{
				Clock: clock.Now,
				EngineFactory: func(listener func(audio.State)) *audio.Engine {
					return audio.NewEngine(player, audio.WithStateListener(listener))
				},
			})

			Expect(ctrl.SendMessage(ctx, "q")).To(Succeed())
			Eventually(obs.Completions).Should(HaveLen(1))

			m := obs.Completions()[0].Metrics
			Expect(m.TimeToFirstToken).To(Equal(time.Second))
			Expect(m.TimeToFirstAudio).To(Equal(2 * time.Second))
			Expect(m.Duration).To(Equal(3 * time.Second))
			Expect(m.WordCount).To(Equal(2))
			Expect(m.Server).To(Equal(map[string]any{"tokens": float64(2)}))

			Eventually(player.Samples).Should(Equal(2))
		})

		It("leaves time to first audio at zero without audio", func() {
			server = newChatServer(func(w http.ResponseWriter, _ *http.Request, _ int) {
				text(w, "quiet")
				done(w, "quiet")
			})
			newController(session.Config{})

			Expect(ctrl.SendMessage(ctx, "q")).To(Succeed())
			Eventually(obs.Completions).Should(HaveLen(1))
			Expect(obs.Completions()[0].Metrics.TimeToFirstAudio).To(BeZero())
		})
	})

	Describe("failures", func() {
		It("ends the session on a connection error and allows retry", func() {
			server = newChatServer(func(w http.ResponseWriter, _ *http.Request, n int) {
				if n == 0 {
					w.WriteHeader(http.StatusBadGateway)
					return
				}
				done(w, "recovered")
			})
			newController(session.Config{})

			Expect(ctrl.SendMessage(ctx, "again")).To(Succeed())
			Eventually(obs.Errors).Should(HaveLen(1))

			var connErr stream.ConnectionError
			Expect(errors.As(obs.Errors()[0], &connErr)).To(BeTrue())
			Expect(connErr.StatusCode).To(Equal(http.StatusBadGateway))

			snap := ctrl.Snapshot()
			Expect(snap.State).To(Equal(session.StateErrored))
			Expect(snap.LastError).To(MatchError(connErr))

			Expect(ctrl.Retry(ctx)).To(Succeed())
			Eventually(obs.Completions).Should(HaveLen(1))
			Expect(server.Body(1)["query"]).To(Equal("again"))
			Expect(ctrl.Snapshot().LastError).To(BeNil())
		})

		It("ends the session on a stream that closes early", func() {
			server = newChatServer(func(w http.ResponseWriter, _ *http.Request, _ int) {
				text(w, "cut")
			})
			newController(session.Config{})

			Expect(ctrl.SendMessage(ctx, "q")).To(Succeed())
			Eventually(obs.Errors).Should(HaveLen(1))
			Expect(obs.Completions()).To(BeEmpty())
		})

		It("surfaces server error events", func() {
			server = newChatServer(func(w http.ResponseWriter, _ *http.Request, _ int) {
				text(w, "partial")
				send(w, "error", map[string]any{"message": "overloaded", "code": "busy"})
				done(w, "late")
			})
			newController(session.Config{})

			Expect(ctrl.SendMessage(ctx, "q")).To(Succeed())
			Eventually(obs.Errors).Should(HaveLen(1))

			var serverErr stream.ServerError
			Expect(errors.As(obs.Errors()[0], &serverErr)).To(BeTrue())
			Expect(serverErr.Message).To(Equal("overloaded"))
			Consistently(obs.Completions, "100ms").Should(BeEmpty())
		})

		It("keeps undecodable audio out of the session error state", func() {
			server = newChatServer(func(w http.ResponseWriter, _ *http.Request, _ int) {
				send(w, "audio-chunk", map[string]any{"sequence": 0, "payload": "!!bad"})
				text(w, "still here")
				done(w, "still here")
			})
			newController(session.Config{})

			Expect(ctrl.SendMessage(ctx, "q")).To(Succeed())
			Eventually(obs.Completions).Should(HaveLen(1))
			Consistently(obs.Completions, "100ms").Should(HaveLen(1))

			Expect(obs.Completions()[0].Text).To(Equal("still here"))
			Expect(obs.Errors()).To(BeEmpty())
			Expect(ctrl.Snapshot().LastError).To(BeNil())
			Expect(ctrl.Snapshot().State).To(Equal(session.StateCompleted))
		})

		It("completes when the audio output refuses playback", func() {
			server = newChatServer(func(w http.ResponseWriter, _ *http.Request, _ int) {
				send(w, "audio-chunk", map[string]any{"sequence": 0, "payload": "AAABAA=="})
				text(w, "spoken")
				done(w, "spoken")
			})
			player := &failingPlayer{}
			newController(session.Config{
				EngineFactory: func(listener func(audio.State)) *audio.Engine {
					return audio.NewEngine(player, audio.WithStateListener(listener))
				},
			})

			Expect(ctrl.SendMessage(ctx, "q")).To(Succeed())
			Eventually(obs.Completions).Should(HaveLen(1))
			Eventually(player.Attempts).Should(Equal(1))

			Expect(obs.Completions()[0].Text).To(Equal("spoken"))
			Expect(obs.Errors()).To(BeEmpty())
			Expect(ctrl.Snapshot().LastError).To(BeNil())
			Eventually(func() bool { return ctrl.AudioState().IsPlaying }).Should(BeFalse())
		})

		It("reports nothing to retry before the first message", func() {
			server = newChatServer(func(http.ResponseWriter, *http.Request, int) {})
			newController(session.Config{})

			Expect(ctrl.Retry(ctx)).To(MatchError(session.ErrNothingToRetry))
		})
	})

	Describe("StopStreaming", func() {
		It("is safe before any message", func() {
			server = newChatServer(func(http.ResponseWriter, *http.Request, int) {})
			newController(session.Config{})

			Expect(ctrl.StopStreaming).NotTo(Panic())
			Expect(ctrl.Snapshot().State).To(Equal(session.StateIdle))
		})

		It("cancels before the first event and accepts a new message", func() {
			server = newChatServer(func(w http.ResponseWriter, r *http.Request, n int) {
				if n == 0 {
					hold(r)
					return
				}
				done(w, "next")
			})
			newController(session.Config{})

			Expect(ctrl.SendMessage(ctx, "slow")).To(Succeed())
			ctrl.StopStreaming()
			Expect(ctrl.Snapshot().State).To(Equal(session.StateCancelled))

			Expect(ctrl.SendMessage(ctx, "fast")).To(Succeed())
			Eventually(obs.Completions).Should(HaveLen(1))
			Expect(obs.Completions()[0].Query).To(Equal("fast"))
			Expect(obs.Errors()).To(BeEmpty())
		})

		It("silences the aborted session mid stream", func() {
			release := make(chan struct{})
			server = newChatServer(func(w http.ResponseWriter, r *http.Request, n int) {
				if n > 0 {
					done(w, "second")
					return
				}
				text(w, "first")
				select {
				case <-release:
				case <-r.Context().Done():
					return
				}
				text(w, "stale")
				done(w, "stale")
			})
			newController(session.Config{})

			Expect(ctrl.SendMessage(ctx, "one")).To(Succeed())
			Eventually(obs.Texts).Should(Equal([]string{"first"}))

			ctrl.StopStreaming()
			close(release)
			Expect(ctrl.SendMessage(ctx, "two")).To(Succeed())

			Eventually(obs.Completions).Should(HaveLen(1))
			Consistently(obs.Texts, "100ms").Should(Equal([]string{"first", "second"}))
			Expect(obs.Completions()[0].Text).To(Equal("second"))
		})

		It("is a no-op after completion", func() {
			server = newChatServer(func(w http.ResponseWriter, _ *http.Request, _ int) {
				done(w, "done")
			})
			newController(session.Config{})

			Expect(ctrl.SendMessage(ctx, "q")).To(Succeed())
			Eventually(obs.Completions).Should(HaveLen(1))
			events := obs.Events()

			ctrl.StopStreaming()
			Expect(ctrl.Snapshot().State).To(Equal(session.StateCompleted))
			Consistently(obs.Events, "50ms").Should(Equal(events))

			Expect(ctrl.SendMessage(ctx, "again")).To(Succeed())
			Eventually(obs.Completions).Should(HaveLen(2))
		})

		It("stops audio", func() {
			server = newChatServer(func(http.ResponseWriter, *http.Request, int) {})
			var states []audio.State
			var mu sync.Mutex
			newController(session.Config{
				Observer: session.ObserverFuncs{
					AudioState: func(st audio.State) {
						mu.Lock()
						states = append(states, st)
						mu.Unlock()
					},
				},
			})

			ctrl.SetMuted(true)
			ctrl.StopStreaming()

			Expect(ctrl.AudioState()).To(Equal(audio.State{IsMuted: true}))
			mu.Lock()
			defer mu.Unlock()
			Expect(states).NotTo(BeEmpty())
		})
	})

	Describe("audio controls", func() {
		It("forwards pause and resume to the engine", func() {
			server = newChatServer(func(http.ResponseWriter, *http.Request, int) {})
			newController(session.Config{})

			ctrl.PauseAudio()
			Expect(ctrl.AudioState().IsPaused).To(BeTrue())
			ctrl.ResumeAudio()
			Expect(ctrl.AudioState().IsPaused).To(BeFalse())
		})
	})

	It("builds no engine after Close", func() {
		server = newChatServer(func(http.ResponseWriter, *http.Request, int) {})
		var (
			mu     sync.Mutex
			builds int
		)
		newController(session.Config{
			EngineFactory: func(listener func(audio.State)) *audio.Engine {
				mu.Lock()
				builds++
				mu.Unlock()
				return audio.NewEngine(audio.NopPlayer{}, audio.WithStateListener(listener))
			},
		})

		ctrl.SetMuted(true)
		ctrl.Close()

		ctrl.PauseAudio()
		ctrl.ResumeAudio()
		ctrl.SetMuted(false)
		Expect(ctrl.AudioState()).To(Equal(audio.State{}))
		ctrl.StopStreaming()

		mu.Lock()
		defer mu.Unlock()
		Expect(builds).To(Equal(1))
	})

	It("refuses messages after Close", func() {
		server = newChatServer(func(http.ResponseWriter, *http.Request, int) {})
		newController(session.Config{})
		ctrl.Close()

		Expect(ctrl.SendMessage(ctx, "q")).To(MatchError(session.ErrClosed))
	})
})
