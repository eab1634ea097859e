package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contact-verifier/internal/ingest"
)

var importFilePath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import contacts from a CSV or XLSX file into a new batch",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		batch, stats, err := ingest.New(env.Store).ImportFile(ctx, importFilePath)
		if err != nil {
			return eris.Wrap(err, "import file")
		}

		zap.L().Info("import complete",
			zap.String("batch_id", batch.ID),
			zap.Int("contacts", stats.Imported),
			zap.Int("skipped_empty", stats.EmptyRows),
		)
		fmt.Println(batch.ID)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFilePath, "file", "", "path to CSV or XLSX file (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
