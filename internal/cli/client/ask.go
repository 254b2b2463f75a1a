package client

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

type chatRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
	K         int    `json:"k,omitempty"`
	Stream    *bool  `json:"stream,omitempty"`
}

type chatSource struct {
	Text      string  `json:"text"`
	SourceRef string  `json:"source_ref,omitempty"`
	Score     float64 `json:"score"`
}

type chatResponse struct {
	SessionID string       `json:"session_id"`
	Answer    string       `json:"answer"`
	Sources   []chatSource `json:"sources"`
}

func AskCmd() *cobra.Command {
	var (
		sessionID  string
		k          int
		noStream   bool
		newSession bool
		sources    bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the uploaded documents",
		Long: `Ask a question grounded in the uploaded documents.

The answer streams to stdout as it is generated. The session id is
remembered between invocations so follow-up questions share context;
use --new to start a fresh conversation.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			question := strings.Join(args, " ")
			return runAsk(cmd, question, sessionID, k, noStream, newSession, sources, outputJSON)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID (defaults to the saved session)")
	cmd.Flags().IntVar(&k, "k", 0, "Number of context chunks to retrieve (server default if 0)")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "Wait for the full answer instead of streaming")
	cmd.Flags().BoolVar(&newSession, "new", false, "Start a new conversation")
	cmd.Flags().BoolVar(&sources, "sources", false, "Print retrieved sources after the answer")

	return cmd
}

func runAsk(cmd *cobra.Command, question, sessionID string, k int, noStream, newSession, showSources, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	if sessionID == "" && !newSession {
		if config, err := LoadGlobalConfig(); err == nil && config != nil {
			sessionID = config.SessionID
		}
	}

	req := chatRequest{
		Question:  question,
		SessionID: sessionID,
		K:         k,
	}

	if noStream || outputJSON {
		stream := false
		req.Stream = &stream

		resp, err := api.Post("/v1/chat", req)
		if err != nil {
			return err
		}

		var chat chatResponse
		if err := json.Unmarshal(resp.Data, &chat); err != nil {
			return fmt.Errorf("failed to parse chat response: %w", err)
		}

		_ = SaveSessionID(chat.SessionID)

		if outputJSON {
			data, _ := json.MarshalIndent(chat, "", "  ")
			fmt.Println(string(data))
			return nil
		}

		fmt.Println(chat.Answer)
		if showSources {
			printSources(chat.Sources)
		}
		return nil
	}

	var final *chatResponse
	err = api.Stream("/v1/chat", req, func(ev StreamEvent) error {
		switch ev.Event {
		case "token":
			var tok struct {
				Delta string `json:"delta"`
			}
			if err := json.Unmarshal(ev.Data, &tok); err != nil {
				return fmt.Errorf("failed to parse token event: %w", err)
			}
			fmt.Print(tok.Delta)
		case "done":
			var chat chatResponse
			if err := json.Unmarshal(ev.Data, &chat); err != nil {
				return fmt.Errorf("failed to parse done event: %w", err)
			}
			final = &chat
		case "error":
			var apiErr struct {
				Error string `json:"error"`
				Code  string `json:"code"`
			}
			if err := json.Unmarshal(ev.Data, &apiErr); err != nil {
				return fmt.Errorf("stream failed")
			}
			fmt.Fprintln(os.Stderr)
			return fmt.Errorf("%s", apiErr.Error)
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Println()

	if final != nil {
		_ = SaveSessionID(final.SessionID)
		if showSources {
			printSources(final.Sources)
		}
	}

	return nil
}

func printSources(sources []chatSource) {
	if len(sources) == 0 {
		return
	}
	fmt.Println("\nSources:")
	for i, s := range sources {
		ref := s.SourceRef
		if ref == "" {
			ref = "(inline text)"
		}
		excerpt := s.Text
		if len(excerpt) > 80 {
			excerpt = excerpt[:80] + "..."
		}
		fmt.Printf("  %d. %s (score %.3f): %s\n", i+1, ref, s.Score, excerpt)
	}
}
