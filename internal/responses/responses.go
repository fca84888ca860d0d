// Package responses produces the bot's canned replies to plain messages.
package responses

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// PrivatePrefix marks a message whose reply should arrive by DM.
const PrivatePrefix = "!"

var fallbacks = []string{
	"I do not understand",
	"what are you talking about?",
	"what kinda language is that?",
	"would you mind repeating that?",
}

// Responder picks a reply for a message.
type Responder struct {
	intn func(n int) int
}

// New returns a Responder using a random source.
func New() *Responder {
	return &Responder{intn: rand.IntN}
}

// SplitPrivate strips a leading PrivatePrefix and reports whether it was present.
func SplitPrivate(msg string) (string, bool) {
	if rest, ok := strings.CutPrefix(msg, PrivatePrefix); ok {
		return rest, true
	}
	return msg, false
}

// Reply returns the canned response to msg.
func (r *Responder) Reply(msg string) string {
	lowered := strings.ToLower(msg)

	switch {
	case lowered == "":
		return "well, you're awfully silent..."
	case strings.Contains(lowered, "hello"):
		return "hello there!"
	case strings.Contains(lowered, "how are you"):
		return "Good, thanks!"
	case strings.Contains(lowered, "bye"):
		return "see you!"
	case strings.Contains(lowered, "roll dice"):
		return fmt.Sprintf("you rolled: %d", r.intn(6)+1)
	default:
		return fallbacks[r.intn(len(fallbacks))]
	}
}
