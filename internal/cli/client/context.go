package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func ContextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Show context size",
		Long:  "Reports how many chunks are currently stored for the tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runContext(cmd, outputJSON)
		},
	}

	return cmd
}

func runContext(cmd *cobra.Command, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/v1/context")
	if err != nil {
		return err
	}

	var result struct {
		Chunks int `json:"chunks"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
	} else {
		fmt.Printf("Context holds %d chunks\n", result.Chunks)
	}

	return nil
}
