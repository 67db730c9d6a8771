package server

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/papercomputeco/murmur/pkg/audio"
	"github.com/papercomputeco/murmur/pkg/logger"
	"github.com/papercomputeco/murmur/pkg/sse"
	"github.com/papercomputeco/murmur/pkg/stream"
)

func post(s *Server, body string) *http.Response {
	req := httptest.NewRequest(http.MethodPost, StreamPath, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.app.Test(req, -1)
	Expect(err).NotTo(HaveOccurred())
	return resp
}

// decodeAll reads every SSE event from body through the client decoder.
func decodeAll(body io.Reader) []stream.Event {
	r := sse.NewReader(body)
	var out []stream.Event
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		Expect(err).NotTo(HaveOccurred())
		decoded, err := stream.Decode(ev)
		Expect(err).NotTo(HaveOccurred())
		out = append(out, decoded)
	}
}

var _ = Describe("Server", func() {
	var s *Server

	BeforeEach(func() {
		s = NewServer(Config{ListenAddr: ":0", Seed: 7}, logger.New(logger.WithWriter(GinkgoWriter)))
	})

	It("answers ping", func() {
		resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})

	It("rejects an empty query", func() {
		resp := post(s, `{"query":"   "}`)
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
	})

	It("rejects a malformed body", func() {
		resp := post(s, `{"query":`)
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
	})

	Describe("streaming a reply", func() {
		var events []stream.Event

		BeforeEach(func() {
			resp := post(s, `{"channelId":"cli","query":"hello","sessionId":"conv-1","ttsEnabled":true}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/event-stream"))
			events = decodeAll(resp.Body)
		})

		It("ends with metadata then done", func() {
			Expect(len(events)).To(BeNumerically(">", 2))
			Expect(events[len(events)-1]).To(BeAssignableToTypeOf(stream.Done{}))
			meta, ok := events[len(events)-2].(stream.Metadata)
			Expect(ok).To(BeTrue())
			Expect(meta.Values).To(HaveKeyWithValue("sessionId", "conv-1"))
		})

		It("streams tokens that add up to the full answer", func() {
			var text string
			for _, ev := range events {
				if t, ok := ev.(stream.TextToken); ok {
					text += t.Text
				}
			}
			done := events[len(events)-1].(stream.Done)
			Expect(text).To(Equal(done.FullAnswer))
			Expect(text).To(ContainSubstring("You asked: hello."))
			Expect(text).To(HaveSuffix("[SUGGESTIONS: Tell me more | Ask something else | What can you do?]"))
		})

		It("sends every audio sequence exactly once, out of order", func() {
			seen := map[int]int{}
			var order []int
			total := 0
			for _, ev := range events {
				if a, ok := ev.(stream.AudioChunk); ok {
					seen[a.Sequence]++
					order = append(order, a.Sequence)
					raw, err := base64.StdEncoding.DecodeString(a.Payload)
					Expect(err).NotTo(HaveOccurred())
					Expect(len(raw) % audio.DefaultFormat.BlockAlign()).To(BeZero())
					total += len(raw)
				}
			}

			Expect(order).NotTo(BeEmpty())
			for i := range order {
				Expect(seen).To(HaveKeyWithValue(i, 1))
			}
			Expect(order).NotTo(Equal(sortedInts(len(order))))
			Expect(total).To(BeNumerically(">", 0))
		})
	})

	It("omits audio when tts is disabled", func() {
		events := decodeAll(post(s, `{"query":"hello","ttsEnabled":false}`).Body)
		for _, ev := range events {
			Expect(ev).NotTo(BeAssignableToTypeOf(stream.AudioChunk{}))
		}
	})

	It("keeps fragments in order without a shuffle window", func() {
		s = NewServer(Config{ShuffleWindow: 1}, nil)
		var order []int
		for _, ev := range decodeAll(post(s, `{"query":"hello","ttsEnabled":true}`).Body) {
			if a, ok := ev.(stream.AudioChunk); ok {
				order = append(order, a.Sequence)
			}
		}
		Expect(order).To(Equal(sortedInts(len(order))))
	})

	It("ends with a server error for the failure script", func() {
		events := decodeAll(post(s, `{"query":"!error please","ttsEnabled":true}`).Body)
		last, ok := events[len(events)-1].(stream.ServerError)
		Expect(ok).To(BeTrue())
		Expect(last.Code).To(Equal("mock_error"))
	})

	Describe("metrics", func() {
		scrape := func() string {
			resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, MetricsPath, nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			return string(body)
		}

		It("counts replies by outcome", func() {
			decodeAll(post(s, `{"query":"hello","ttsEnabled":true}`).Body)
			decodeAll(post(s, `{"query":"!error","ttsEnabled":true}`).Body)

			Eventually(func() float64 {
				return testutil.ToFloat64(s.metrics.streamsTotal.WithLabelValues("done"))
			}).Should(Equal(1.0))
			Eventually(func() float64 {
				return testutil.ToFloat64(s.metrics.streamsTotal.WithLabelValues("error"))
			}).Should(Equal(1.0))
			Expect(testutil.ToFloat64(s.metrics.streamsActive)).To(BeZero())
		})

		It("exposes the counters in the Prometheus text format", func() {
			events := decodeAll(post(s, `{"query":"hello","ttsEnabled":false}`).Body)

			Eventually(scrape).Should(ContainSubstring(`murmur_mock_streams_total{outcome="done"} 1`))
			Expect(scrape()).To(ContainSubstring(`murmur_mock_events_total{type="done"} 1`))
			Expect(testutil.ToFloat64(s.metrics.eventsTotal.WithLabelValues("text-token"))).
				To(BeNumerically("==", len(events)-2))
		})
	})
})

func sortedInts(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
