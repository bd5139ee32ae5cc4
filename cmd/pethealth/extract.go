package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/pet-health-tracker/constants"
	"github.com/joseph-ayodele/pet-health-tracker/internal/extract"
)

var extractTextOnly bool

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "OCR a report file and print the extracted fields as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		mimeType := constants.MIMEForExt(filepath.Ext(path))
		if mimeType == "" {
			return fmt.Errorf("unsupported file type %q", filepath.Ext(path))
		}

		rec := extract.NewOCRAdapter(newOCR(cfg.OCR, logger), logger)
		if extractTextOnly {
			text, err := rec.Recognize(cmd.Context(), data, mimeType)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		}

		rep, err := extract.NewExtractor(rec, logger).Extract(cmd.Context(), data, mimeType)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	},
}

func init() {
	extractCmd.Flags().BoolVar(&extractTextOnly, "text", false, "print the recognized text instead of parsed fields")
	rootCmd.AddCommand(extractCmd)
}
