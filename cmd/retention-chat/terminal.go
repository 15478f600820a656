package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/capitalize-ai/retention-chat/internal/model"
)

var (
	aiColor    = color.New(color.FgCyan)
	userColor  = color.New(color.FgGreen)
	offerColor = color.New(color.FgYellow, color.Bold)
	errorColor = color.New(color.FgRed)
	dimColor   = color.New(color.Faint)
)

type reasonChoice struct {
	value        model.CancellationReason
	label        string
	requiresText bool
}

var reasonChoices = []reasonChoice{
	{model.ReasonTooExpensive, "It's too expensive", false},
	{model.ReasonNotUsing, "I'm not using it enough", false},
	{model.ReasonTechnicalIssues, "Technical issues", false},
	{model.ReasonFoundAlternative, "I found an alternative", false},
	{model.ReasonOther, "Something else", true},
}

// terminal renders chat state as a scrolling transcript.
type terminal struct {
	mu        sync.Mutex
	out       io.Writer
	printed   int
	offerShow string
}

func newTerminal(out io.Writer) *terminal {
	return &terminal{out: out}
}

func (t *terminal) help() {
	t.mu.Lock()
	defer t.mu.Unlock()
	dimColor.Fprintln(t.out, "Commands: /accept /reject /refresh /dismiss /new /close /help /quit")
}

func (t *terminal) info(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	dimColor.Fprintln(t.out, msg)
}

// reset makes the next render print the whole transcript.
func (t *terminal) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.printed = 0
	t.offerShow = ""
}

func (t *terminal) prompt(st model.ChatState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	label := "you"
	if st.Step == model.StepOfferPresented {
		label = "you (/accept or /reject)"
	}
	userColor.Fprintf(t.out, "%s> ", label)
}

func (t *terminal) render(st model.ChatState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if st.Conversation == nil {
		t.printed = 0
		return
	}
	msgs := st.Conversation.Messages
	if t.printed > len(msgs) {
		t.printed = 0
	}
	for _, m := range msgs[t.printed:] {
		t.message(m)
	}
	t.printed = len(msgs)

	if st.CurrentOffer != nil && st.CurrentOffer.ID != t.offerShow && st.Step == model.StepOfferPresented {
		t.offer(st.CurrentOffer)
		t.offerShow = st.CurrentOffer.ID
	}
}

func (t *terminal) message(m model.Message) {
	switch m.Sender {
	case model.SenderUser:
		suffix := ""
		if m.Pending {
			suffix = " (not delivered)"
		}
		userColor.Fprintf(t.out, "  you: %s%s\n", m.Content, suffix)
	default:
		aiColor.Fprintf(t.out, "agent: %s\n", m.Content)
	}
}

func (t *terminal) offer(o *model.RetentionOffer) {
	offerColor.Fprintf(t.out, "\n  ★ %s\n", o.Title)
	fmt.Fprintf(t.out, "    %s\n", o.Description)
	fmt.Fprintf(t.out, "    Save %s/month, %s in total\n",
		money(o.Savings.Monthly, o.Savings.Currency), money(o.Savings.Total, o.Savings.Currency))
	if !o.ExpiresAt.IsZero() {
		fmt.Fprintf(t.out, "    Expires %s\n", o.ExpiresAt.Local().Format("Jan 2, 2006"))
	}
	for _, term := range o.Terms {
		dimColor.Fprintf(t.out, "    - %s\n", term)
	}
	fmt.Fprintln(t.out)
}

func (t *terminal) showError(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	errorColor.Fprintf(t.out, "! %s (retry, or /dismiss)\n", msg)
}

func (t *terminal) showCompletion(done model.Completion) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch done.Outcome {
	case model.OutcomeAccepted:
		offerColor.Fprintln(t.out, "Thanks for staying with us!")
	case model.OutcomeRejected:
		dimColor.Fprintln(t.out, "Your cancellation has been recorded.")
	}
}

// askReason lists the cancellation reasons and reads a choice.
func (t *terminal) askReason(in *bufio.Scanner) (reasonChoice, bool) {
	t.mu.Lock()
	fmt.Fprintln(t.out, "Why are you cancelling?")
	for i, c := range reasonChoices {
		fmt.Fprintf(t.out, "  %d) %s\n", i+1, c.label)
	}
	t.mu.Unlock()

	for {
		line, ok := t.ask(in, "choice: ")
		if !ok {
			return reasonChoice{}, false
		}
		n, err := strconv.Atoi(line)
		if err == nil && n >= 1 && n <= len(reasonChoices) {
			return reasonChoices[n-1], true
		}
		t.info("Pick a number from the list.")
	}
}

// ask prints prompt and reads one non-empty line.
func (t *terminal) ask(in *bufio.Scanner, prompt string) (string, bool) {
	for {
		t.mu.Lock()
		userColor.Fprint(t.out, prompt)
		t.mu.Unlock()
		if !in.Scan() {
			return "", false
		}
		if line := strings.TrimSpace(in.Text()); line != "" {
			return line, true
		}
	}
}

func money(amount float64, currency string) string {
	if currency == "" || currency == "USD" {
		return fmt.Sprintf("$%.2f", amount)
	}
	return fmt.Sprintf("%.2f %s", amount, currency)
}
