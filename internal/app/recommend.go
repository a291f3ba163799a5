package app

import (
	"context"
	"log/slog"
	"strings"

	"cinechat/pkg/domain"
)

// FallbackReply is returned verbatim when every provider fails or none is
// configured, so the user never sees an error.
const FallbackReply = `I couldn't reach my recommendation sources just now, so here are a few picks that never miss:

1. The Shawshank Redemption (1994) - Frank Darabont's hopeful prison drama.
2. Spirited Away (2001) - Hayao Miyazaki's animated masterpiece.
3. Inception (2010) - Christopher Nolan's heist thriller inside dreams.
4. Parasite (2019) - Bong Joon-ho's genre-bending Palme d'Or winner.

Ask me again in a moment and I'll tailor suggestions to your taste.`

// Provider produces a recommendation reply from a user message and recent
// room history. Configured reports whether required credentials are present;
// unconfigured providers are skipped without attempting a call.
type Provider interface {
	Name() string
	Configured() bool
	Reply(ctx context.Context, userMessage string, history []domain.Message) (string, error)
}

// Recommender runs an ordered provider chain: first configured provider
// that succeeds wins, everything else falls through to FallbackReply.
type Recommender struct {
	providers []Provider
}

// NewRecommender builds the pipeline from providers in priority order.
func NewRecommender(providers ...Provider) *Recommender {
	return &Recommender{providers: providers}
}

// Respond never fails: it always returns displayable text.
func (r *Recommender) Respond(ctx context.Context, userMessage string, history []domain.Message) string {
	for _, p := range r.providers {
		if p == nil || !p.Configured() {
			continue
		}
		reply, err := p.Reply(ctx, userMessage, history)
		if err != nil {
			slog.Warn("recommendation provider failed", "provider", p.Name(), "err", err)
			continue
		}
		if strings.TrimSpace(reply) != "" {
			return reply
		}
		slog.Warn("recommendation provider returned empty reply", "provider", p.Name())
	}
	return FallbackReply
}

// formatHistory renders the last n messages as speaker-tagged lines.
func formatHistory(history []domain.Message, n int) string {
	if n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}
	var sb strings.Builder
	for _, msg := range history {
		switch msg.Kind {
		case domain.KindAI:
			sb.WriteString("Assistant")
		case domain.KindSystem:
			sb.WriteString("System")
		default:
			sb.WriteString("User")
		}
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}
