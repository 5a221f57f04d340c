package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/atotto/clipboard"
	"github.com/jpfielding/dicom.go/pkg/dicom/search"
	"github.com/jpfielding/dicom.go/pkg/dicom/tag"
	"github.com/spf13/cobra"
)

// NewFindCmd searches a directory tree for files carrying a tag
func NewFindCmd(ctx context.Context, e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find [root]",
		Short: "Find DICOM files by tag and value",
		Long:  "Walk a directory tree and list the DICOM files carrying a tag, optionally with a value containing the search string (case insensitive).",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			tagName, _ := cmd.Flags().GetString("tag")
			t, err := tag.Parse(tagName)
			if err != nil {
				return err
			}
			value, _ := cmd.Flags().GetString("value")
			onePer := e.cfg.Search.OnePerDirectory
			if cmd.Flags().Changed("one-per-dir") {
				onePer, _ = cmd.Flags().GetBool("one-per-dir")
			}

			matches, err := search.Search(ctx, search.Options{
				Root:             root,
				Tag:              t,
				Value:            value,
				OnePerDirectory:  onePer,
				ProgressInterval: e.cfg.ProgressInterval(),
				Logger:           e.logger,
				Progress: func(p search.Progress) {
					e.logger.Info("searching", "scanned", p.Scanned, "matches", p.Matches, "dir", p.Dir)
				},
			})
			if err != nil {
				return err
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				if err := json.NewEncoder(os.Stdout).Encode(matches); err != nil {
					return err
				}
			} else {
				for _, m := range matches {
					fmt.Printf("%s\t%s\n", m.Path, m.Value)
				}
			}
			if doCopy, _ := cmd.Flags().GetBool("copy"); doCopy && len(matches) > 0 {
				if err := clipboard.WriteAll(search.Paths(matches)); err != nil {
					return fmt.Errorf("copying to clipboard: %w", err)
				}
				e.logger.Info("copied paths to clipboard", "count", len(matches))
			}
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("tag", "t", "PatientID", "tag keyword or (gggg,eeee)")
	pf.StringP("value", "s", "", "keep only values containing this string")
	pf.Bool("one-per-dir", false, "read only the first file of each directory")
	pf.Bool("json", false, "print matches as JSON")
	pf.Bool("copy", false, "copy matched paths to the clipboard")
	return cmd
}
