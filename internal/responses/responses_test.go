package responses

import "testing"

func TestReply(t *testing.T) {
	r := &Responder{intn: func(n int) int { return n - 1 }}

	tests := []struct {
		msg  string
		want string
	}{
		{"", "well, you're awfully silent..."},
		{"Hello bot", "hello there!"},
		{"how are you today", "Good, thanks!"},
		{"ok BYE", "see you!"},
		{"roll dice please", "you rolled: 6"},
		{"hello, how are you", "hello there!"},
		{"qwerty", "would you mind repeating that?"},
	}
	for _, tt := range tests {
		if got := r.Reply(tt.msg); got != tt.want {
			t.Errorf("Reply(%q) = %q, want %q", tt.msg, got, tt.want)
		}
	}
}

func TestReply_DiceRange(t *testing.T) {
	r := New()
	for i := 0; i < 100; i++ {
		got := r.Reply("roll dice")
		if got < "you rolled: 1" || got > "you rolled: 6" || len(got) != len("you rolled: 1") {
			t.Fatalf("Reply(roll dice) = %q", got)
		}
	}
}

func TestSplitPrivate(t *testing.T) {
	if msg, ok := SplitPrivate("!hello"); !ok || msg != "hello" {
		t.Errorf("SplitPrivate(!hello) = %q, %v", msg, ok)
	}
	if msg, ok := SplitPrivate("hello"); ok || msg != "hello" {
		t.Errorf("SplitPrivate(hello) = %q, %v", msg, ok)
	}
}
