package llm

import (
	"context"
	"fmt"
)

// StaticAdapter is a deterministic Adapter for offline operation and
// tests: it never calls out to a real model, answering from a fixed
// response or a simple echo of the request. Grounded on the pack's
// interface-first style of swapping in small in-memory fakes for
// external dependencies (e.g. the indexer's fake context generators).
type StaticAdapter struct {
	// Response, if set, is returned verbatim for every Complete call.
	// Empty means "echo the user message" instead.
	Response string
}

// NewStaticAdapter builds a StaticAdapter with a fixed response. An empty
// response makes Complete echo back the request's user message.
func NewStaticAdapter(response string) *StaticAdapter {
	return &StaticAdapter{Response: response}
}

func (s *StaticAdapter) Complete(_ context.Context, req Request) (*Response, error) {
	content := s.Response
	if content == "" {
		content = fmt.Sprintf("```answer\n%s\n```", req.UserMessage)
	}
	return &Response{
		Content: content,
		TokensUsed: TokensUsed{
			Prompt:     s.CountTokens(req.SystemPrompt + req.UserMessage),
			Completion: s.CountTokens(content),
			Total:      s.CountTokens(req.SystemPrompt+req.UserMessage) + s.CountTokens(content),
		},
		FinishReason: FinishStop,
	}, nil
}

func (s *StaticAdapter) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

func (s *StaticAdapter) Available(context.Context) bool { return true }
