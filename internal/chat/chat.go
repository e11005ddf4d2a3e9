// Package chat implements the interactive terminal front end: a line-oriented
// read-eval-stream loop over one session. The terminal renders conversation
// state it is handed — all memory and ordering rules live in the session.
package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/skcet-ai/skcetbot/internal/logging"
	"github.com/skcet-ai/skcetbot/internal/memory"
	"github.com/skcet-ai/skcetbot/internal/session"
)

// Greeting is the fixed opening message of every new conversation.
const Greeting = "Hi! Ask me a question about SKCET."

// failureNotice is shown when a question could not be answered. The session
// continues; the user may simply try again.
const failureNotice = "Sorry, I couldn't answer that right now. Please try again."

const (
	userLabel = "you> "
	botLabel  = "skcetbot> "
)

// Loop drives one terminal conversation: greet or replay on start, then
// read a line, stream the answer, repeat until EOF or an exit command.
type Loop struct {
	session *session.Session
	in      io.Reader
	out     io.Writer
}

// NewLoop constructs a Loop over the given session and terminal streams.
func NewLoop(sess *session.Session, in io.Reader, out io.Writer) *Loop {
	return &Loop{session: sess, in: in, out: out}
}

// Run executes the conversation loop until the input ends or the user types
// "exit" or "quit". Pipeline failures are rendered as a notice and the loop
// continues — an outage never ends the conversation.
func (l *Loop) Run(ctx context.Context) error {
	log := logging.FromContext(ctx)

	l.opening(ctx)

	scanner := bufio.NewScanner(l.in)
	fmt.Fprint(l.out, userLabel)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			// Blank input: no turn, no pipeline call, just a fresh prompt.
		case line == "exit" || line == "quit":
			fmt.Fprintln(l.out, "bye!")
			return nil
		default:
			l.answer(ctx, log, line)
		}
		fmt.Fprint(l.out, userLabel)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("chat: reading input: %w", err)
	}
	fmt.Fprintln(l.out)
	return nil
}

// opening emits the greeting for a fresh session, or replays the recorded
// turns of a resumed one without re-appending them.
func (l *Loop) opening(ctx context.Context) {
	if l.session.Greet(ctx, Greeting) {
		fmt.Fprintln(l.out, botLabel+Greeting)
		return
	}
	for _, turn := range l.session.History() {
		label := botLabel
		if turn.Role == memory.RoleUser {
			label = userLabel
		}
		fmt.Fprintln(l.out, label+turn.Content)
	}
}

// answer asks one question and forwards the token stream to the terminal as
// it arrives.
func (l *Loop) answer(ctx context.Context, log *slog.Logger, query string) {
	stream, err := l.session.Ask(ctx, query)
	if err != nil {
		if errors.Is(err, session.ErrBlankQuery) {
			return
		}
		log.Error("chat: question failed", slog.String("error", err.Error()))
		fmt.Fprintln(l.out, botLabel+failureNotice)
		return
	}
	defer stream.Close()

	fmt.Fprint(l.out, botLabel)
	for {
		tok, err := stream.Recv()
		if err == io.EOF {
			fmt.Fprintln(l.out)
			return
		}
		if err != nil {
			log.Error("chat: answer interrupted", slog.String("error", err.Error()))
			fmt.Fprintln(l.out)
			fmt.Fprintln(l.out, botLabel+failureNotice)
			return
		}
		fmt.Fprint(l.out, tok)
	}
}
