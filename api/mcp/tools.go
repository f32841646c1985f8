package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/chainchat/pkg/conversation"
)

var (
	rewindToolName    = "rewind_conversation"
	rewindDescription = "Read the most recent messages of a chainchat conversation from the ledger, oldest first. Pass the returned cursor as 'before' to page further back."

	sendToolName    = "send_message"
	sendDescription = "Append a message to a chainchat conversation. The call returns once the transaction is mined and confirmed, with the block the message was recorded at."
)

// RewindInput represents the input arguments for the rewind_conversation tool.
type RewindInput struct {
	Conversation string `json:"conversation" jsonschema:"the conversation name"`
	Limit        uint   `json:"limit,omitempty" jsonschema:"maximum number of messages to return (default 10)"`
	Before       uint64 `json:"before,omitempty" jsonschema:"page back from this pointer, as returned in cursor by a previous call"`
}

// RewindOutput represents the structured output of rewind_conversation.
type RewindOutput struct {
	Conversation   string          `json:"conversation"`
	ConversationID string          `json:"conversation_id"`
	Messages       []MessageOutput `json:"messages"`
	Cursor         uint64          `json:"cursor"`
	Head           uint64          `json:"head"`
}

// MessageOutput is a single rewound message.
type MessageOutput struct {
	Pointer uint64 `json:"pointer"`
	Index   uint   `json:"index"`
	Prev    uint64 `json:"prev"`
	Text    string `json:"text"`
}

// SendInput represents the input arguments for the send_message tool.
type SendInput struct {
	Conversation string `json:"conversation" jsonschema:"the conversation name"`
	Message      string `json:"message" jsonschema:"the message text to append"`
}

// SendOutput represents the structured output of send_message.
type SendOutput struct {
	Conversation string `json:"conversation"`
	Pointer      uint64 `json:"pointer"`
}

const defaultRewindLimit uint = 10

// handleRewind processes a rewind_conversation request via MCP.
func (s *Server) handleRewind(ctx context.Context, _ *mcp.CallToolRequest, input RewindInput) (*mcp.CallToolResult, RewindOutput, error) {
	name := strings.TrimSpace(input.Conversation)
	if name == "" {
		return toolError("conversation is required"), RewindOutput{}, nil
	}

	limit := input.Limit
	if limit == 0 {
		limit = defaultRewindLimit
	}
	limit = min(limit, s.config.MaxLimit)

	conv := conversation.New(name, s.config.Ledger, s.config.Logger)

	var (
		result *conversation.RewindResult
		err    error
	)
	if input.Before != 0 {
		result, err = conv.RewindFrom(ctx, conversation.Pointer(input.Before), limit)
	} else {
		result, err = conv.Rewind(ctx, limit)
	}
	if err != nil {
		return toolError(fmt.Sprintf("Rewind failed: %v", err)), RewindOutput{}, nil
	}

	output := RewindOutput{
		Conversation:   name,
		ConversationID: conv.ID.String(),
		Messages:       make([]MessageOutput, len(result.Messages)),
		Cursor:         uint64(result.Cursor),
		Head:           uint64(result.Head),
	}
	for i, msg := range result.Messages {
		output.Messages[i] = MessageOutput{
			Pointer: uint64(msg.Pointer),
			Index:   msg.Index,
			Prev:    uint64(msg.Prev),
			Text:    msg.Text,
		}
	}

	return jsonResult(output)
}

// handleSend processes a send_message request via MCP.
func (s *Server) handleSend(ctx context.Context, _ *mcp.CallToolRequest, input SendInput) (*mcp.CallToolResult, SendOutput, error) {
	name := strings.TrimSpace(input.Conversation)
	if name == "" {
		return toolError("conversation is required"), SendOutput{}, nil
	}
	if input.Message == "" {
		return toolError("message is required"), SendOutput{}, nil
	}

	pointer, err := s.config.Sender.Send(ctx, conversation.NewID(name), input.Message)
	if err != nil {
		return toolError(fmt.Sprintf("Send failed: %v", err)), SendOutput{}, nil
	}

	s.config.Logger.Info("message sent via MCP",
		"conversation", name,
		"pointer", uint64(pointer),
	)

	return jsonResult(SendOutput{
		Conversation: name,
		Pointer:      uint64(pointer),
	})
}

func jsonResult[T any](output T) (*mcp.CallToolResult, T, error) {
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		var zero T
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err)), zero, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}
