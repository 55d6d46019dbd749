package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github/itish2003/autorag/models"
)

var askJSON bool

var askCmd = &cobra.Command{
	Use:   "ask <workspace_id> <question>...",
	Short: "Ask a question against a workspace",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the full response as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	resp, err := a.rag.Ask(ctx, args[0], strings.Join(args[1:], " "))
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}
	if askJSON {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal response: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	printAnswer(cmd, resp)
	return nil
}

func printAnswer(cmd *cobra.Command, resp *models.AskResponse) {
	r := resp.RAGResult
	cmd.Println(r.Answer)
	cmd.Println()
	cmd.Printf("confidence: %.2f  state: %s  needs review: %t\n", r.Confidence, r.State, r.NeedsHumanReview)
	for _, c := range r.Citations {
		cmd.Printf("  - %s #%d\n", c.Source, c.ChunkIndex)
	}
	if r.ReviewComment != "" {
		cmd.Printf("review: %s\n", r.ReviewComment)
	}
	if r.FollowupQuestion != nil {
		cmd.Printf("follow-up: %s\n", *r.FollowupQuestion)
	}
}
