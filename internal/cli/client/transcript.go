package client

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

type transcriptMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

type transcriptResponse struct {
	SessionID string              `json:"session_id"`
	Messages  []transcriptMessage `json:"messages"`
}

func TranscriptCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "transcript",
		Short: "Show the conversation transcript",
		Long:  "Prints the full message history of a chat session (defaults to the saved session)",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runTranscript(cmd, sessionID, outputJSON)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID (defaults to the saved session)")

	return cmd
}

func runTranscript(cmd *cobra.Command, sessionID string, outputJSON bool) error {
	if sessionID == "" {
		if config, err := LoadGlobalConfig(); err == nil && config != nil {
			sessionID = config.SessionID
		}
	}
	if sessionID == "" {
		return fmt.Errorf("no session to show (ask a question first or pass --session)")
	}

	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/v1/transcript?session_id=" + url.QueryEscape(sessionID))
	if err != nil {
		return err
	}

	var transcript transcriptResponse
	if err := json.Unmarshal(resp.Data, &transcript); err != nil {
		return fmt.Errorf("failed to parse transcript: %w", err)
	}

	if outputJSON {
		data, _ := json.MarshalIndent(transcript, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if len(transcript.Messages) == 0 {
		fmt.Printf("No messages in session %s\n", transcript.SessionID)
		return nil
	}

	for _, m := range transcript.Messages {
		fmt.Printf("[%s] %s\n", m.Role, m.Content)
	}

	return nil
}
