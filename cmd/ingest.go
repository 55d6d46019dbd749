package cmd

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github/itish2003/autorag/models"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <workspace_id> <file>...",
	Short: "Index local files into a workspace",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	workspaceID := args[0]

	files := make([]models.UploadedFile, 0, len(args)-1)
	for _, path := range args[1:] {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		files = append(files, models.UploadedFile{
			Filename:    filepath.Base(path),
			ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
			Data:        data,
		})
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	n, err := a.ingest.Ingest(ctx, workspaceID, files)
	if err != nil {
		return fmt.Errorf("ingest failed after %d chunks: %w", n, err)
	}
	cmd.Printf("Indexed %d chunks into workspace %s\n", n, workspaceID)
	return nil
}
