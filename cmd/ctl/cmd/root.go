package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jpfielding/dicom.go/pkg/config"
	"github.com/jpfielding/dicom.go/pkg/logging"
	"github.com/spf13/cobra"
)

// env is filled in before any subcommand runs.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	closer io.Closer
}

func NewRoot(ctx context.Context, gitsha string) *cobra.Command {
	e := &env{cfg: config.Default(), logger: slog.Default()}
	cmd := &cobra.Command{
		Use:           "dicomctl",
		Short:         "a CLI to read, search, anonymize and exchange DICOM files",
		Long:          "dicomctl decodes part 10 files, searches directory trees by tag, anonymizes studies and speaks the DICOM upper layer protocol as a client or server.",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
			}
			level, ok := logging.ParseLevel(cfg.Log.Level)

			var w io.Writer = os.Stdout
			if cfg.Log.File.Path != "" {
				file := logging.Rotating(cfg.Log.File)
				e.closer = file
				w = io.MultiWriter(os.Stdout, file)
			}
			e.cfg = cfg
			e.logger = logging.Logger(w, cfg.Log.JSON, level)
			slog.SetDefault(e.logger)
			if !ok {
				slog.WarnContext(ctx, "Invalid log level, defaulting to INFO", "level", cfg.Log.Level)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.closer != nil {
				_ = e.closer.Close()
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			printCommandTree(cmd, 0)
		},
	}
	cmd.AddCommand(
		NewVersionCmd(ctx, gitsha),
		NewDecodeCmd(ctx, e),
		NewInspectCmd(ctx, e),
		NewFindCmd(ctx, e),
		NewAnonymizeCmd(ctx, e),
		NewEchoCmd(ctx, e),
		NewStoreCmd(ctx, e),
		NewQueryCmd(ctx, e),
		NewServeCmd(ctx, e),
	)
	pf := cmd.PersistentFlags()
	pf.String("log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	pf.String("config", "", "YAML configuration file")
	return cmd
}

func printCommandTree(cmd *cobra.Command, indent int) {
	fmt.Println(strings.Repeat("\t", indent), cmd.Use+":", cmd.Short)
	for _, subCmd := range cmd.Commands() {
		printCommandTree(subCmd, indent+1)
	}
}

func NewVersionCmd(ctx context.Context, gitsha string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "git sha for this build",
		Long:  "git sha for this build",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(gitsha)
		},
	}
	return cmd
}
