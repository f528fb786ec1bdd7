package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mike-a-ellis/docchat/internal/conversation"
	"github.com/mike-a-ellis/docchat/internal/indexer"
	"github.com/mike-a-ellis/docchat/internal/session"
	"github.com/mike-a-ellis/docchat/internal/storage"
)

type scriptedSession struct {
	answers map[string]string
	failing map[string]error
	turns   []conversation.Turn
}

func (s *scriptedSession) Ask(_ context.Context, q string) (*conversation.Turn, error) {
	if err := s.failing[q]; err != nil {
		return nil, err
	}
	turn := conversation.Turn{
		Question: q,
		Answer:   s.answers[q],
		Sources:  []*storage.ScoredChunk{{Chunk: &storage.Chunk{Path: "leave.txt"}, Score: 0.8}},
	}
	s.turns = append(s.turns, turn)
	return &turn, nil
}

func (s *scriptedSession) Turns() []conversation.Turn { return s.turns }

func (s *scriptedSession) Info() session.Info {
	return session.Info{ID: "abc", Status: session.StatusComplete, Documents: 2, Chunks: 3, Turns: len(s.turns)}
}

func TestChatLoop(t *testing.T) {
	sess := &scriptedSession{
		answers: map[string]string{"How much leave?": "25 days.", "And sick leave?": "10 days."},
		failing: map[string]error{"boom?": errors.New("rate limited")},
	}
	in := strings.NewReader("How much leave?\n\nboom?\nAnd sick leave?\n/history\n/status\n/quit\nnever asked\n")
	var out bytes.Buffer

	require.NoError(t, chatLoop(context.Background(), sess, in, &out, true))

	text := out.String()
	assert.Contains(t, text, "25 days.")
	assert.Contains(t, text, "[0.80] leave.txt")
	assert.Contains(t, text, "error: rate limited")
	assert.Contains(t, text, "2. Q: And sick leave?")
	assert.Contains(t, text, "session abc: complete, 2 documents, 3 chunks, 2 turns")
	assert.Len(t, sess.turns, 2)
}

func TestChatLoop_EOF(t *testing.T) {
	sess := &scriptedSession{answers: map[string]string{"q": "a"}}
	var out bytes.Buffer

	require.NoError(t, chatLoop(context.Background(), sess, strings.NewReader("q"), &out, false))
	assert.Contains(t, out.String(), "a")
	assert.NotContains(t, out.String(), "leave.txt")
}

func TestChatLoop_NotReadyStops(t *testing.T) {
	sess := &scriptedSession{failing: map[string]error{"q": conversation.ErrNotReady}}

	err := chatLoop(context.Background(), sess, strings.NewReader("q\nq\n"), &bytes.Buffer{}, false)
	assert.ErrorIs(t, err, conversation.ErrNotReady)
}

func TestPrintResult(t *testing.T) {
	var out bytes.Buffer
	printResult(&out, &indexer.IngestResult{
		Folder:    "handbook",
		Files:     3,
		Documents: 2,
		Chunks:    2,
		ChunkSize: 4000,
		Skipped:   []string{"logo.png"},
		Failed:    []indexer.FailedFile{{Path: "bad.docx", Stage: indexer.StageExtract, Reason: "invalid file"}},
		Duration:  1234 * time.Millisecond,
	})

	text := out.String()
	assert.Contains(t, text, "Chunks: 2 (size 4000)")
	assert.Contains(t, text, "- logo.png")
	assert.Contains(t, text, "- bad.docx (extract): invalid file")
	assert.Contains(t, text, "Duration: 1.234s")
}
