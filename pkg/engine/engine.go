package engine

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai/jsonschema"
)

var ErrEngineUnavailable = errors.New("language engine unavailable")

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

type Message struct {
	Role    string
	Content string
}

// Tool is one operation the engine may choose to invoke. Parameters is the JSON Schema of the
// call arguments.
type Tool struct {
	Name        string
	Description string
	Parameters  jsonschema.Definition
}

type ToolCall struct {
	Name      string
	Arguments string
}

// Reply is either free text or a list of tool invocations. Interpreting the shape is left to
// the caller.
type Reply struct {
	Text      string
	ToolCalls []ToolCall
}

// Engine is the natural-language understanding black box.
type Engine interface {
	Generate(ctx context.Context, messages []Message, tools []Tool) (Reply, error)
}

func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}
