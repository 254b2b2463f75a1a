package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

type uploadResponse struct {
	UploadID   string `json:"upload_id"`
	Filename   string `json:"filename"`
	Chunks     int    `json:"chunks"`
	Characters int    `json:"characters"`
	Archived   bool   `json:"archived"`
}

func UploadCmd() *cobra.Command {
	var (
		text string
		name string
	)

	cmd := &cobra.Command{
		Use:   "upload [file...]",
		Short: "Upload documents into the context",
		Long: `Upload one or more documents to be chunked, embedded, and made
available for retrieval. Supports .txt, .md, .pdf, and .docx files.
Use --text to ingest inline text instead of a file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runUpload(cmd, args, text, name, outputJSON)
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Inline text to ingest instead of a file")
	cmd.Flags().StringVar(&name, "name", "", "Document name for inline text (required with --text)")

	return cmd
}

func runUpload(cmd *cobra.Command, files []string, text, name string, outputJSON bool) error {
	if text == "" && len(files) == 0 {
		return fmt.Errorf("provide a file to upload or use --text")
	}
	if text != "" && len(files) > 0 {
		return fmt.Errorf("--text cannot be combined with file arguments")
	}

	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	var results []uploadResponse

	if text != "" {
		if name == "" {
			return fmt.Errorf("--name is required with --text")
		}
		resp, err := api.Post("/v1/documents", map[string]string{"text": text, "name": name})
		if err != nil {
			return err
		}
		var result uploadResponse
		if err := json.Unmarshal(resp.Data, &result); err != nil {
			return fmt.Errorf("failed to parse upload response: %w", err)
		}
		results = append(results, result)
	}

	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			return fmt.Errorf("cannot read %s: %w", file, err)
		}

		resp, err := api.PostMultipart("/v1/documents", file, "")
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", filepath.Base(file), err)
		}

		var result uploadResponse
		if err := json.Unmarshal(resp.Data, &result); err != nil {
			return fmt.Errorf("failed to parse upload response: %w", err)
		}
		results = append(results, result)
	}

	if outputJSON {
		data, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	for _, r := range results {
		archived := ""
		if r.Archived {
			archived = ", archived"
		}
		fmt.Printf("Uploaded %s: %d chunks from %d characters%s (id: %s)\n",
			r.Filename, r.Chunks, r.Characters, archived, r.UploadID)
	}

	return nil
}
