package app

import (
	"context"
	"errors"
	"testing"

	"cinechat/pkg/domain"
)

type stubProvider struct {
	name       string
	configured bool
	reply      string
	err        error
	calls      int
}

func (p *stubProvider) Name() string     { return p.name }
func (p *stubProvider) Configured() bool { return p.configured }
func (p *stubProvider) Reply(context.Context, string, []domain.Message) (string, error) {
	p.calls++
	return p.reply, p.err
}

func TestRespondFirstConfiguredProviderWins(t *testing.T) {
	primary := &stubProvider{name: "primary", configured: true, reply: "watch Blade Runner"}
	secondary := &stubProvider{name: "secondary", configured: true, reply: "watch Alien"}
	r := NewRecommender(primary, secondary)

	got := r.Respond(context.Background(), "something moody", nil)
	if got != "watch Blade Runner" {
		t.Fatalf("reply = %q, want primary reply", got)
	}
	if secondary.calls != 0 {
		t.Fatalf("secondary was called %d times", secondary.calls)
	}
}

func TestRespondSkipsUnconfiguredProviders(t *testing.T) {
	primary := &stubProvider{name: "primary", configured: false, reply: "never"}
	secondary := &stubProvider{name: "secondary", configured: true, reply: "watch Heat"}
	r := NewRecommender(primary, secondary)

	if got := r.Respond(context.Background(), "crime movie", nil); got != "watch Heat" {
		t.Fatalf("reply = %q, want secondary reply", got)
	}
	if primary.calls != 0 {
		t.Fatalf("unconfigured provider was called %d times", primary.calls)
	}
}

func TestRespondFallsThroughOnFailure(t *testing.T) {
	primary := &stubProvider{name: "primary", configured: true, err: errors.New("boom")}
	secondary := &stubProvider{name: "secondary", configured: true, reply: "watch Arrival"}
	r := NewRecommender(primary, secondary)

	if got := r.Respond(context.Background(), "smart sci-fi", nil); got != "watch Arrival" {
		t.Fatalf("reply = %q, want secondary reply", got)
	}
	if primary.calls != 1 {
		t.Fatalf("primary calls = %d, want 1", primary.calls)
	}
}

func TestRespondNeverFails(t *testing.T) {
	primary := &stubProvider{name: "primary", configured: true, err: errors.New("down")}
	secondary := &stubProvider{name: "secondary", configured: true, err: errors.New("also down")}
	r := NewRecommender(primary, secondary)

	got := r.Respond(context.Background(), "anything", nil)
	if got != FallbackReply {
		t.Fatalf("reply = %q, want the fixed fallback text", got)
	}
}

func TestRespondWithNoProviders(t *testing.T) {
	r := NewRecommender()
	if got := r.Respond(context.Background(), "anything", nil); got != FallbackReply {
		t.Fatalf("reply = %q, want the fixed fallback text", got)
	}
}

func TestFormatHistoryWindowAndTags(t *testing.T) {
	history := []domain.Message{
		{Kind: domain.KindHuman, Content: "oldest"},
		{Kind: domain.KindHuman, Content: "hi"},
		{Kind: domain.KindAI, Content: "hello, want a movie?"},
		{Kind: domain.KindSystem, Content: "room created"},
	}
	got := formatHistory(history, 3)
	want := "User: hi\nAssistant: hello, want a movie?\nSystem: room created"
	if got != want {
		t.Fatalf("formatHistory = %q, want %q", got, want)
	}
	if formatHistory(nil, 5) != "" {
		t.Fatal("empty history should format to empty string")
	}
}
