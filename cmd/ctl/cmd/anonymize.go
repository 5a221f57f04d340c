package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jpfielding/dicom.go/pkg/dicom/anonymize"
	"github.com/spf13/cobra"
)

// NewAnonymizeCmd rewrites a set of files without identifying data
func NewAnonymizeCmd(ctx context.Context, e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "anonymize [files or directories...]",
		Short: "Anonymize DICOM files",
		Long:  "Anonymize every input file as one batch, so study IDs and UIDs stay consistent across the set, and write the results to the output directory.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := e.cfg.Anonymize
			if path, _ := cmd.Flags().GetString("settings"); path != "" {
				s, err := anonymize.LoadSettings(path)
				if err != nil {
					return err
				}
				settings = s
			}
			if v, _ := cmd.Flags().GetString("dates"); v != "" {
				settings.Dates = anonymize.DateMode(v)
			}
			if err := settings.Validate(); err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				return fmt.Errorf("--out is required")
			}

			paths, err := expand(args)
			if err != nil {
				return err
			}
			written, err := anonymize.Files(ctx, settings, paths, out,
				anonymize.WithLogger(e.logger),
				anonymize.WithProgress(func(f float64) {
					e.logger.Debug("anonymizing", "progress", fmt.Sprintf("%.0f%%", f*100))
				}))
			if err != nil {
				return err
			}
			for _, p := range written {
				fmt.Println(p)
			}
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("out", "o", "", "output directory")
	pf.String("settings", "", "YAML anonymization settings, overriding the config file section")
	pf.String("dates", "", "date handling (keep|null|shift)")
	return cmd
}

// expand replaces directories with the .dcm files below them.
func expand(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".dcm") {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
