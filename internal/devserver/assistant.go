package devserver

import (
	"context"
	"strconv"
	"strings"

	"github.com/oremus-labs/docai-console/internal/store"
)

// Assistant produces the reply to a user message.
type Assistant interface {
	Reply(ctx context.Context, history []store.Message, prompt string) (string, error)
}

// EchoAssistant answers by echoing the prompt with whitespace collapsed, so
// replies never contain line breaks that would split an event.
type EchoAssistant struct{}

// Reply implements Assistant.
func (EchoAssistant) Reply(_ context.Context, history []store.Message, prompt string) (string, error) {
	words := strings.Fields(prompt)
	if len(words) == 0 {
		return "I did not catch that.", nil
	}
	turns := 0
	for _, m := range history {
		if m.Role == roleUser {
			turns++
		}
	}
	reply := "You said: " + strings.Join(words, " ")
	if turns > 0 {
		reply += " (" + plural(turns, "earlier message") + " in this conversation)"
	}
	return reply, nil
}

// deltas splits text into word-sized pieces whose concatenation is text.
func deltas(text string) []string {
	var out []string
	start := 0
	for i := 1; i < len(text); i++ {
		if text[i] == ' ' && text[i-1] != ' ' {
			out = append(out, text[start:i])
			start = i
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
