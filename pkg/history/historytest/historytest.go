// Package historytest holds shared conformance specs for history drivers.
package historytest

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/murmur/pkg/history"
)

var base = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func entry(sessionID string, n int) *history.Entry {
	return &history.Entry{
		SessionID:   sessionID,
		ChannelID:   "cli",
		Query:       fmt.Sprintf("question %d", n),
		Text:        fmt.Sprintf("answer %d", n),
		Duration:    time.Duration(n) * time.Second,
		TTFT:        250 * time.Millisecond,
		WordCount:   2,
		CompletedAt: base.Add(time.Duration(n) * time.Minute),
	}
}

// DriverSpecs registers behavior every history.Driver must satisfy. newDriver
// is called before each spec.
func DriverSpecs(newDriver func() history.Driver) {
	var (
		driver history.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()
	})

	AfterEach(func() {
		Expect(driver.Close()).To(Succeed())
	})

	It("rejects nil entries", func() {
		Expect(driver.Append(ctx, nil)).NotTo(Succeed())
	})

	It("assigns ids to entries without one", func() {
		e := entry("s1", 1)
		Expect(driver.Append(ctx, e)).To(Succeed())
		Expect(e.ID).NotTo(BeEmpty())
	})

	It("round-trips every field", func() {
		e := entry("s1", 1)
		e.Suggestions = []string{"Weather", "News"}
		e.Metadata = map[string]any{"lang": "en"}
		e.TTFA = 1500 * time.Millisecond
		Expect(driver.Append(ctx, e)).To(Succeed())

		got, err := driver.List(ctx, "s1", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveLen(1))
		Expect(got[0].ID).To(Equal(e.ID))
		Expect(got[0].Query).To(Equal("question 1"))
		Expect(got[0].Text).To(Equal("answer 1"))
		Expect(got[0].Suggestions).To(Equal([]string{"Weather", "News"}))
		Expect(got[0].Metadata).To(HaveKeyWithValue("lang", "en"))
		Expect(got[0].Duration).To(Equal(time.Second))
		Expect(got[0].TTFT).To(Equal(250 * time.Millisecond))
		Expect(got[0].TTFA).To(Equal(1500 * time.Millisecond))
		Expect(got[0].CompletedAt.Equal(e.CompletedAt)).To(BeTrue())
	})

	It("lists newest first and honors the limit", func() {
		for i := 1; i <= 3; i++ {
			Expect(driver.Append(ctx, entry("s1", i))).To(Succeed())
		}

		got, err := driver.List(ctx, "", 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveLen(2))
		Expect(got[0].Query).To(Equal("question 3"))
		Expect(got[1].Query).To(Equal("question 2"))
	})

	It("filters by session", func() {
		Expect(driver.Append(ctx, entry("s1", 1))).To(Succeed())
		Expect(driver.Append(ctx, entry("s2", 2))).To(Succeed())

		got, err := driver.List(ctx, "s2", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveLen(1))
		Expect(got[0].SessionID).To(Equal("s2"))
	})

	It("returns nothing for an empty store", func() {
		got, err := driver.List(ctx, "", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeEmpty())
	})
}
