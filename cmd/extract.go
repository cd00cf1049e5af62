package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contract-extract/internal/pipeline"
	"github.com/sells-group/contract-extract/pkg/vision"
)

var (
	extractFromJSON bool
	extractSaveRec  string
	extractStore    bool
	extractForce    bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <image-or-json>",
	Short: "Extract contract fields from a single document",
	Long: `Runs OCR on a scanned contract image and resolves the structured
fields. Pass --from-json to replay a previously saved recognition result
instead of calling the OCR service.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("extract"); err != nil {
			return err
		}

		path := args[0]
		if _, err := os.Stat(path); err != nil {
			return eris.Wrapf(err, "extract: input %s", path)
		}

		rec, err := buildRecognizer(extractFromJSON)
		if err != nil {
			return err
		}

		doc, err := rec.Recognize(ctx, path)
		if err != nil {
			return eris.Wrap(err, "extract: recognize")
		}

		if extractSaveRec != "" {
			saved, err := vision.Save(extractSaveRec, doc)
			if err != nil {
				return eris.Wrap(err, "extract: save recognition")
			}
			zap.L().Info("saved recognition result", zap.String("path", saved))
		}

		engine, err := buildEngine()
		if err != nil {
			return err
		}

		var runOpts []pipeline.RunOption
		if extractForce {
			runOpts = append(runOpts, pipeline.WithForceEscalation())
		}

		result, err := engine.Run(ctx, doc, runOpts...)
		if err != nil {
			return eris.Wrap(err, "extract: run")
		}

		if extractStore {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return err
			}
			if err := st.SaveRun(ctx, result); err != nil {
				return eris.Wrap(err, "extract: save run")
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result.ToMap())
	},
}

func init() {
	extractCmd.Flags().BoolVar(&extractFromJSON, "from-json", false, "treat the input as a saved recognition JSON file")
	extractCmd.Flags().StringVar(&extractSaveRec, "save-recognition", "", "directory to save the raw recognition result to")
	extractCmd.Flags().BoolVar(&extractStore, "store", false, "persist the run to the configured store")
	extractCmd.Flags().BoolVar(&extractForce, "force-escalation", false, "send the run to model review regardless of confidence")
	rootCmd.AddCommand(extractCmd)
}
