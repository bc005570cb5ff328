package generatereply

import (
	"encoding/json"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const emptyContext = "(kosong: tidak ada data dari database untuk pertanyaan ini)"

// BuildMessages lays out the system instructions, the grounding context and
// the user's question.
func BuildMessages(req Request) []openai.ChatCompletionMessage {
	var b strings.Builder
	b.WriteString("KONTEKS:\n")
	b.WriteString(renderContext(req))
	b.WriteString("\n\nPERTANYAAN:\n")
	b.WriteString(strings.TrimSpace(req.Message))

	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: req.Instructions},
		{Role: openai.ChatMessageRoleUser, Content: b.String()},
	}
}

func renderContext(req Request) string {
	if req.Bundle.IsEmpty() {
		return emptyContext
	}
	pc := promptContext{
		Trips:       req.Bundle.Trips,
		Promos:      req.Bundle.Promos,
		Bookings:    req.Bundle.Bookings,
		Collections: req.Bundle.Collections,
	}
	data, err := json.MarshalIndent(pc, "", "  ")
	if err != nil {
		return emptyContext
	}
	return string(data)
}
