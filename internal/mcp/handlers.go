package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mike-a-ellis/docchat/internal/conversation"
)

// excerptRunes bounds the chunk text quoted per source.
const excerptRunes = 300

// makeAskHandler creates the ask tool handler.
// Questions asked before ingestion completes are rejected with the session status.
func makeAskHandler(sess Session) func(
	context.Context, *mcp.CallToolRequest, AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (
		*mcp.CallToolResult, AskOutput, error,
	) {
		question := strings.TrimSpace(input.Question)
		if question == "" {
			return nil, AskOutput{}, errors.New("question is required")
		}

		turn, err := sess.Ask(ctx, question)
		if err != nil {
			if errors.Is(err, conversation.ErrNotReady) {
				info := sess.Info()
				msg := fmt.Sprintf("session not ready: ingestion is %s", info.Status)
				if info.Error != "" {
					msg += ": " + info.Error
				}
				return nil, AskOutput{}, errors.New(msg)
			}
			return nil, AskOutput{}, fmt.Errorf("ask failed: %w", err)
		}

		sources := make([]SourceRef, 0, len(turn.Sources))
		for _, src := range turn.Sources {
			sources = append(sources, SourceRef{
				Path:    src.Path,
				Score:   src.Score,
				Excerpt: excerpt(src.Content),
			})
		}

		return nil, AskOutput{
			Answer:  turn.Answer,
			Sources: sources,
			Turn:    turn.Number,
		}, nil
	}
}

// makeStatusHandler creates the get_session_status tool handler.
func makeStatusHandler(sess Session) func(
	context.Context, *mcp.CallToolRequest, StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ StatusInput) (
		*mcp.CallToolResult, StatusOutput, error,
	) {
		info := sess.Info()

		out := StatusOutput{
			SessionID: info.ID,
			Status:    string(info.Status),
			Ready:     info.Ready,
			Folder:    info.Folder,
			Files:     info.Files,
			Documents: info.Documents,
			Chunks:    info.Chunks,
			ChunkSize: info.ChunkSize,
			Skipped:   nonNil(info.Skipped),
			Failed:    nonNil(info.Failed),
			Turns:     info.Turns,
			Error:     info.Error,
		}
		if info.Duration > 0 {
			out.Duration = info.Duration.Round(time.Millisecond).String()
		}
		return nil, out, nil
	}
}

// makeHistoryHandler creates the get_chat_history tool handler.
func makeHistoryHandler(sess Session) func(
	context.Context, *mcp.CallToolRequest, HistoryInput,
) (*mcp.CallToolResult, HistoryOutput, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input HistoryInput) (
		*mcp.CallToolResult, HistoryOutput, error,
	) {
		turns := sess.Turns()
		if input.Limit > 0 && len(turns) > input.Limit {
			turns = turns[len(turns)-input.Limit:]
		}

		out := HistoryOutput{
			Turns: make([]TurnOutput, len(turns)),
			Count: len(turns),
		}
		for i, t := range turns {
			paths := make([]string, 0, len(t.Sources))
			for _, src := range t.Sources {
				paths = append(paths, src.Path)
			}
			out.Turns[i] = TurnOutput{
				Question: t.Question,
				Answer:   t.Answer,
				Sources:  paths,
				AskedAt:  t.AskedAt,
			}
		}
		return nil, out, nil
	}
}

func excerpt(s string) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= excerptRunes {
		return string(r)
	}
	return string(r[:excerptRunes]) + "..."
}

// nonNil ensures empty lists marshal as [] rather than null.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
