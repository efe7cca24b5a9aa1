package webchat

import (
	"context"
	"fmt"
	"strings"

	"github.com/highclaw/webchat-channel/pkg/pluginsdk"
)

// OutboundAdapter is the host-facing send surface: it chunks long text and
// degrades media to text since the wire protocol carries text only.
type OutboundAdapter struct {
	service        *Service
	TextChunkLimit int
}

// NewOutboundAdapter wraps a service with the default chunk limit.
func NewOutboundAdapter(service *Service) *OutboundAdapter {
	return &OutboundAdapter{service: service, TextChunkLimit: pluginsdk.DefaultTextChunkLimit}
}

// SendText delivers text to a target, splitting it into chunks when it
// exceeds the limit. It stops at the first failed chunk.
func (a *OutboundAdapter) SendText(ctx context.Context, accountID, to, text, replyTo string) ([]SendOutcome, error) {
	chunks := pluginsdk.ChunkText(text, pluginsdk.ResolveTextChunkLimit(a.TextChunkLimit))
	outcomes := make([]SendOutcome, 0, len(chunks))
	for i, chunk := range chunks {
		// Only the first chunk threads the reply reference.
		ref := ""
		if i == 0 {
			ref = replyTo
		}
		outcome := a.service.Send(ctx, accountID, to, chunk, ref)
		outcomes = append(outcomes, outcome)
		if !outcome.OK() {
			return outcomes, fmt.Errorf("chunk %d/%d failed: %s", i+1, len(chunks), outcome.Error)
		}
	}
	return outcomes, nil
}

// SendMedia delivers a message with attachments. The protocol has no media
// upload, so attachments are rendered as link or placeholder lines appended
// to the text.
func (a *OutboundAdapter) SendMedia(ctx context.Context, accountID, to, text string, media []pluginsdk.Media, replyTo string) ([]SendOutcome, error) {
	var b strings.Builder
	b.WriteString(text)
	for _, m := range media {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		switch {
		case m.URL != "":
			b.WriteString(m.URL)
		case m.Filename != "":
			fmt.Fprintf(&b, "[attachment: %s]", m.Filename)
		default:
			fmt.Fprintf(&b, "[attachment: %s]", m.MimeType)
		}
	}
	return a.SendText(ctx, accountID, to, b.String(), replyTo)
}
