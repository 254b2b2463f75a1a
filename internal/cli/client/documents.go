package client

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

type uploadItem struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes"`
	ChunkCount  int    `json:"chunk_count"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	Archived    bool   `json:"archived"`
	CreatedAt   string `json:"created_at"`
}

type uploadList struct {
	Uploads []uploadItem `json:"uploads"`
	Cursor  string       `json:"cursor,omitempty"`
	HasMore bool         `json:"has_more"`
}

func DocumentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "Inspect uploaded documents",
		Long:  "List uploaded documents and download archived originals",
	}

	cmd.AddCommand(DocumentsListCmd())
	cmd.AddCommand(DocumentsDownloadCmd())

	return cmd
}

func DocumentsListCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List uploaded documents",
		Long:  "List the tenant's uploaded documents, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runDocumentsList(cmd, limit, cursor, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func runDocumentsList(cmd *cobra.Command, limit int, cursor string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	path := "/v1/documents?limit=" + strconv.Itoa(limit)
	if cursor != "" {
		path += "&cursor=" + cursor
	}

	resp, err := api.Get(path)
	if err != nil {
		return err
	}

	var list uploadList
	if err := json.Unmarshal(resp.Data, &list); err != nil {
		return fmt.Errorf("failed to parse document list: %w", err)
	}

	if outputJSON {
		data, _ := json.MarshalIndent(list, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if len(list.Uploads) == 0 {
		fmt.Println("No documents uploaded")
		return nil
	}

	fmt.Println("Documents:")
	for _, u := range list.Uploads {
		status := u.Status
		if u.Error != "" {
			status += " (" + u.Error + ")"
		}
		fmt.Printf("  %s: %s [%s] %d chunks, %d bytes, %s\n",
			u.ID, u.Filename, status, u.ChunkCount, u.SizeBytes, u.CreatedAt)
	}
	if list.HasMore && list.Cursor != "" {
		fmt.Printf("\nMore results available. Use --cursor %s\n", list.Cursor)
	}

	return nil
}

func DocumentsDownloadCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download the archived original of an upload",
		Long:  "Fetches a presigned URL for the archived document and downloads it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runDocumentsDownload(cmd, args[0], output, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&output, "output-file", "f", "", "Write to this path instead of printing the URL")

	return cmd
}

func runDocumentsDownload(cmd *cobra.Command, uploadID, outputPath string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/v1/documents/" + uploadID + "/download")
	if err != nil {
		return err
	}

	var result struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse download response: %w", err)
	}

	if outputPath != "" {
		if err := api.DownloadFile(result.URL, outputPath); err != nil {
			return err
		}
		if !outputJSON {
			fmt.Printf("Downloaded to %s\n", outputPath)
			return nil
		}
	}

	if outputJSON {
		data, _ := json.MarshalIndent(map[string]string{"url": result.URL, "file": outputPath}, "", "  ")
		fmt.Println(string(data))
	} else if outputPath == "" {
		fmt.Println(result.URL)
	}

	return nil
}
