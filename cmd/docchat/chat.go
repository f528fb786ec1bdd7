package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mike-a-ellis/docchat/internal/conversation"
	"github.com/mike-a-ellis/docchat/internal/session"
)

var showSources bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ingest a folder, then answer questions about it",
	Long: `Ingests the configured folder and starts an interactive conversation.
Each question is answered from the most relevant chunks and the chat history.

Type /history to list previous turns, /status for the session, and /quit or
Ctrl-D to exit.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&showSources, "sources", false, "print the retrieved sources after each answer")
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Ingesting documents...")
	result, err := a.Session.Ingest(cmd.Context())
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	fmt.Fprintf(out, "Ready: %d documents in %d chunks. Ask a question, /quit to exit.\n", result.Documents, result.Chunks)

	return chatLoop(cmd.Context(), a.Session, cmd.InOrStdin(), out, showSources)
}

// asker is the part of a session the loop drives.
type asker interface {
	Ask(ctx context.Context, question string) (*conversation.Turn, error)
	Turns() []conversation.Turn
	Info() session.Info
}

// chatLoop reads one question per line until EOF or /quit. Failed questions
// are reported and the loop continues.
func chatLoop(ctx context.Context, sess asker, in io.Reader, out io.Writer, sources bool) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, "\n> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/history":
			for i, t := range sess.Turns() {
				fmt.Fprintf(out, "%d. Q: %s\n   A: %s\n", i+1, t.Question, t.Answer)
			}
			continue
		case "/status":
			info := sess.Info()
			fmt.Fprintf(out, "session %s: %s, %d documents, %d chunks, %d turns\n",
				info.ID, info.Status, info.Documents, info.Chunks, info.Turns)
			continue
		}

		turn, err := sess.Ask(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, conversation.ErrNotReady) || errors.Is(err, session.ErrClosed) {
				return err
			}
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}

		fmt.Fprintln(out, turn.Answer)
		if sources {
			for _, src := range turn.Sources {
				fmt.Fprintf(out, "  [%.2f] %s\n", src.Score, src.Path)
			}
		}
	}
}
