package historycmder_test

import (
	"bytes"
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	historycmder "github.com/papercomputeco/murmur/cmd/murmur/history"
	"github.com/papercomputeco/murmur/pkg/history"
	"github.com/papercomputeco/murmur/pkg/history/sqlite"
)

var _ = Describe("History Command", func() {
	var (
		tmpDir string
		out    *bytes.Buffer
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
	})

	newCmd := func(args ...string) *cobra.Command {
		cmd := historycmder.NewHistoryCmd()
		cmd.PersistentFlags().String("config-dir", "", "Override path to .murmur/ config directory")
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(append(args, "--config-dir", tmpDir))
		return cmd
	}

	seed := func(entries ...*history.Entry) {
		ctx := context.Background()
		driver, err := sqlite.NewDriver(ctx, filepath.Join(tmpDir, "history.db"))
		Expect(err).NotTo(HaveOccurred())
		defer driver.Close()
		for _, e := range entries {
			Expect(driver.Append(ctx, e)).To(Succeed())
		}
	}

	It("registers its flags", func() {
		cmd := historycmder.NewHistoryCmd()
		for _, name := range []string{"session", "limit", "full", "history-provider", "sqlite", "postgres-dsn"} {
			Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), name)
		}
		Expect(cmd.Flags().Lookup("limit").Shorthand).To(Equal("n"))
	})

	It("reports an empty store", func() {
		Expect(newCmd().Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("No history yet."))
	})

	It("lists stored answers newest first", func() {
		now := time.Now().UTC()
		seed(
			&history.Entry{SessionID: "s1", Query: "first question", Text: "first answer", CompletedAt: now.Add(-time.Minute)},
			&history.Entry{SessionID: "s1", Query: "second question", Text: "second answer", CompletedAt: now},
		)

		Expect(newCmd().Execute()).To(Succeed())
		text := out.String()
		Expect(text).To(ContainSubstring("first question"))
		Expect(text).To(ContainSubstring("second answer"))
		Expect(bytes.Index(out.Bytes(), []byte("second question"))).To(BeNumerically("<", bytes.Index(out.Bytes(), []byte("first question"))))
	})

	It("filters by session and honours the limit", func() {
		now := time.Now().UTC()
		seed(
			&history.Entry{SessionID: "a", Query: "from a", CompletedAt: now.Add(-2 * time.Minute)},
			&history.Entry{SessionID: "b", Query: "older from b", CompletedAt: now.Add(-time.Minute)},
			&history.Entry{SessionID: "b", Query: "newer from b", CompletedAt: now},
		)

		Expect(newCmd("--session", "b", "-n", "1").Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("newer from b"))
		Expect(out.String()).NotTo(ContainSubstring("older from b"))
		Expect(out.String()).NotTo(ContainSubstring("from a"))
	})

	It("prints suggestions with --full", func() {
		seed(&history.Entry{SessionID: "s", Query: "q", Text: "answer", Suggestions: []string{"Tell me more"}, CompletedAt: time.Now().UTC()})

		Expect(newCmd("--full").Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Tell me more"))
	})

	It("says so when history is disabled", func() {
		Expect(newCmd("--history-provider", "none").Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("History is disabled"))
	})

	It("rejects an unknown provider", func() {
		err := newCmd("--history-provider", "bogus").Execute()
		Expect(err).To(MatchError(ContainSubstring("unknown history provider")))
	})
})
