package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/papercomputeco/murmur/pkg/cliui"
	"github.com/papercomputeco/murmur/pkg/session"
)

const helpText = `  /retry    resend the last question
  /stop     stop the current answer and its audio
  /pause    pause speech
  /resume   resume speech
  /mute     mute speech
  /unmute   unmute speech
  /exit     quit (Ctrl+D works too)
`

// controller is the part of session.Controller the loop drives.
type controller interface {
	SendMessage(ctx context.Context, query string) error
	Retry(ctx context.Context) error
	StopStreaming()
	PauseAudio()
	ResumeAudio()
	SetMuted(muted bool)
	Snapshot() session.Snapshot
}

// repl reads lines and routes them to the controller. Lines are accepted
// while an answer streams so playback can be controlled mid-answer.
type repl struct {
	ctrl    controller
	printer *printer
	in      io.Reader
	signals <-chan os.Signal
}

func (r *repl) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	r.printer.printf("  %s\n\n", cliui.DimStyle.Render("Type a question and press Enter. /help for commands, /exit or Ctrl+D to quit."))
	r.printer.prompt()

	streaming := false
	for {
		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-lines:
			if !ok {
				// Let an in-flight answer finish before leaving.
				if streaming {
					select {
					case <-r.printer.turns:
					case <-r.signals:
						r.ctrl.StopStreaming()
					case <-ctx.Done():
					}
				}
				r.printer.printf("\n")
				select {
				case err := <-scanErr:
					if err != nil {
						return err
					}
				default:
				}
				return nil
			}

			exit, started := r.handle(ctx, strings.TrimSpace(line))
			if exit {
				r.ctrl.StopStreaming()
				return nil
			}
			if started {
				streaming = true
			} else if !streaming {
				r.printer.prompt()
			}

		case <-r.printer.turns:
			streaming = false
			r.printer.prompt()

		case <-r.signals:
			if !r.ctrl.Snapshot().Streaming {
				r.printer.printf("\n")
				return nil
			}
			r.ctrl.StopStreaming()
			streaming = false
			r.drainTurn()
			r.printer.printf("\n  %s\n\n", cliui.DimStyle.Render("stopped"))
			r.printer.prompt()
		}
	}
}

// handle executes one input line. It reports whether the loop should exit
// and whether a new answer started streaming.
func (r *repl) handle(ctx context.Context, input string) (exit, started bool) {
	switch input {
	case "":
		return false, false
	case "/exit", "/quit":
		return true, false
	case "/help":
		r.printer.printf("%s", helpText)
		return false, false
	case "/stop":
		r.ctrl.StopStreaming()
		r.drainTurn()
		r.printer.printf("  %s\n", cliui.DimStyle.Render("stopped"))
		return false, false
	case "/pause":
		r.ctrl.PauseAudio()
		return false, false
	case "/resume":
		r.ctrl.ResumeAudio()
		return false, false
	case "/mute":
		r.ctrl.SetMuted(true)
		return false, false
	case "/unmute":
		r.ctrl.SetMuted(false)
		return false, false
	case "/retry":
		r.printer.begin()
		if err := r.ctrl.Retry(ctx); err != nil {
			r.report(err)
			return false, false
		}
		return false, true
	}

	if strings.HasPrefix(input, "/") {
		r.printer.printf("  %s unknown command %s\n", cliui.FailMark, input)
		return false, false
	}

	if r.ctrl.Snapshot().Streaming {
		r.report(session.ErrSessionActive)
		return false, false
	}

	r.printer.begin()
	if err := r.ctrl.SendMessage(ctx, input); err != nil {
		r.report(err)
		return false, false
	}
	return false, true
}

func (r *repl) report(err error) {
	hint := ""
	switch {
	case errors.Is(err, session.ErrSessionActive):
		hint = " (/stop to interrupt)"
	case errors.Is(err, session.ErrNothingToRetry):
		hint = " (ask a question first)"
	}
	r.printer.printf("\n  %s %s%s\n", cliui.FailMark, cliui.ErrorStyle.Render(err.Error()), cliui.DimStyle.Render(hint))
}

// drainTurn discards a turn signal raised before a stop took effect.
func (r *repl) drainTurn() {
	select {
	case <-r.printer.turns:
	default:
	}
}
