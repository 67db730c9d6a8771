package chatcmder

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"charm.land/lipgloss/v2"

	"github.com/papercomputeco/murmur/pkg/audio"
	"github.com/papercomputeco/murmur/pkg/cliui"
	"github.com/papercomputeco/murmur/pkg/session"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("murmur> ")
)

// printer renders controller updates to the terminal and signals the end of
// every turn on turns.
type printer struct {
	mu       sync.Mutex
	out      io.Writer
	printed  string
	markdown bool
	logger   *slog.Logger

	turns chan struct{}
}

func newPrinter(out io.Writer, markdown bool, log *slog.Logger) *printer {
	return &printer{
		out:      out,
		markdown: markdown,
		logger:   log,
		turns:    make(chan struct{}, 1),
	}
}

func (p *printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

// begin starts a new assistant line.
func (p *printer) begin() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printed = ""
	fmt.Fprint(p.out, assistantPrompt)
}

func (p *printer) prompt() {
	p.printf("%s", userPrompt)
}

// OnText prints only the newly appended part of the live text. Rewrites that
// shrink the text, such as a suggestions marker being hidden, are held until
// the text grows past what was printed.
func (p *printer) OnText(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !strings.HasPrefix(text, p.printed) {
		return
	}
	fmt.Fprint(p.out, text[len(p.printed):])
	p.printed = text
}

func (p *printer) OnComplete(c session.Completion) {
	p.mu.Lock()
	switch {
	case p.markdown:
		rendered, err := cliui.RenderMarkdown(c.Text)
		if err != nil {
			p.logger.Debug("markdown rendering failed", "error", err)
		}
		fmt.Fprintf(p.out, "\n%s", rendered)
	case strings.HasPrefix(c.Text, p.printed):
		fmt.Fprintln(p.out, c.Text[len(p.printed):])
	default:
		// The server's full answer replaced the streamed text.
		fmt.Fprintf(p.out, "\n%s\n", cliui.AnswerStyle.Render(c.Text))
	}
	p.printed = ""

	if len(c.Suggestions) > 0 {
		fmt.Fprintf(p.out, "\n%s", cliui.Suggestions(c.Suggestions))
	}
	fmt.Fprintf(p.out, "  %s\n\n", cliui.DimStyle.Render(metricsLine(c.Metrics)))
	p.mu.Unlock()

	p.endTurn()
}

func (p *printer) OnError(err error) {
	p.mu.Lock()
	p.printed = ""
	fmt.Fprintf(p.out, "\n  %s %s %s\n\n",
		cliui.FailMark,
		cliui.ErrorStyle.Render(err.Error()),
		cliui.DimStyle.Render("(/retry to try again)"),
	)
	p.mu.Unlock()

	p.endTurn()
}

func (p *printer) OnAudioState(st audio.State) {
	p.logger.Debug("audio state",
		"playing", st.IsPlaying,
		"queued", st.QueueLength,
		"paused", st.IsPaused,
		"muted", st.IsMuted,
	)
}

func (p *printer) endTurn() {
	select {
	case p.turns <- struct{}{}:
	default:
	}
}

func metricsLine(m session.Metrics) string {
	parts := []string{
		"first token " + cliui.FormatDuration(m.TimeToFirstToken),
	}
	if m.TimeToFirstAudio > 0 {
		parts = append(parts, "first audio "+cliui.FormatDuration(m.TimeToFirstAudio))
	}
	parts = append(parts,
		"total "+cliui.FormatDuration(m.Duration),
		fmt.Sprintf("%d words", m.WordCount),
	)
	return strings.Join(parts, " · ")
}
