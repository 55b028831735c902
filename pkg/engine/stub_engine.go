package engine

import (
	"context"
	"sync"
)

// StubEngine returns canned replies and records what it was asked.
type StubEngine struct {
	mu       sync.Mutex
	Reply    Reply
	Err      error
	Calls    int
	Messages []Message
	Tools    []Tool
}

func NewStubEngine(reply Reply) *StubEngine {
	return &StubEngine{Reply: reply}
}

// NewToolCallStub answers every request with a single tool invocation.
func NewToolCallStub(name string, arguments string) *StubEngine {
	return &StubEngine{Reply: Reply{ToolCalls: []ToolCall{{Name: name, Arguments: arguments}}}}
}

func (s *StubEngine) Generate(ctx context.Context, messages []Message, tools []Tool) (Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	s.Messages = messages
	s.Tools = tools
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}
	if s.Err != nil {
		return Reply{}, s.Err
	}
	return s.Reply, nil
}
