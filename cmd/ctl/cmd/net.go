package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/jpfielding/dicom.go/pkg/dicom"
	"github.com/jpfielding/dicom.go/pkg/dicom/tag"
	"github.com/jpfielding/dicom.go/pkg/net/client"
	"github.com/jpfielding/dicom.go/pkg/net/dimse"
	"github.com/jpfielding/dicom.go/pkg/net/server"
	"github.com/jpfielding/dicom.go/pkg/net/trace"
	"github.com/spf13/cobra"
)

// addClientFlags registers the association flags shared by the SCU commands.
func addClientFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringP("addr", "a", "", "SCP address host:port (default from config)")
	pf.String("calling-ae", "", "calling AE title (default from config)")
	pf.String("called-ae", "", "called AE title (default from config)")
	pf.String("pcap", "", "record the association to a pcap file")
}

// dial opens an association using the config client section and flags.
func dial(ctx context.Context, cmd *cobra.Command, e *env, abstract ...string) (*client.Client, func(), error) {
	cfg := e.cfg.ClientConfig(e.logger)
	addr := e.cfg.Client.Address
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		addr = v
	}
	if v, _ := cmd.Flags().GetString("calling-ae"); v != "" {
		cfg.CallingAE = v
	}
	if v, _ := cmd.Flags().GetString("called-ae"); v != "" {
		cfg.CalledAE = v
	}
	if len(abstract) > 0 {
		cfg.AbstractSyntaxes = abstract
	}

	cleanup := func() {}
	if path, _ := cmd.Flags().GetString("pcap"); path != "" {
		rec, err := trace.Create(path)
		if err != nil {
			return nil, nil, err
		}
		cleanup = func() { _ = rec.Close() }
		cfg.Tracer = rec.Flow(nil, nil, true)
	}

	c, err := client.Connect(ctx, addr, cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return c, cleanup, nil
}

// NewEchoCmd verifies a peer with C-ECHO
func NewEchoCmd(ctx context.Context, e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "echo",
		Short: "C-ECHO an SCP",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cleanup, err := dial(ctx, cmd, e)
			if err != nil {
				return err
			}
			defer cleanup()
			defer c.Close()
			if err := c.Echo(ctx); err != nil {
				return err
			}
			e.logger.Info("echo succeeded", "remote_addr", c.Association().RemoteAddr())
			return c.Release(ctx)
		},
	}
	addClientFlags(cmd)
	return cmd
}

// NewStoreCmd sends files with C-STORE
func NewStoreCmd(ctx context.Context, e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store [files or directories...]",
		Short: "C-STORE files to an SCP",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := expand(args)
			if err != nil {
				return err
			}
			files := make([]*dicom.File, 0, len(paths))
			classes := []string{dicom.VerificationSOPClassUID}
			seen := map[string]bool{}
			for _, p := range paths {
				f, err := dicom.ReadFile(p, e.cfg.ReaderOptions(e.logger)...)
				if err != nil {
					e.logger.Warn("skipping unreadable file", "path", p, "error", err)
					continue
				}
				files = append(files, f)
				if uid, ok := f.Dataset.GetString(tag.SOPClassUID); ok && !seen[uid] {
					seen[uid] = true
					classes = append(classes, uid)
				}
			}

			c, cleanup, err := dial(ctx, cmd, e, classes...)
			if err != nil {
				return err
			}
			defer cleanup()
			defer c.Close()

			failed := 0
			for i, f := range files {
				if err := c.Store(ctx, f.Dataset); err != nil {
					failed++
					e.logger.Error("store failed", "index", i, "error", err)
					continue
				}
			}
			e.logger.Info("store finished", "sent", len(files)-failed, "failed", failed)
			if err := c.Release(ctx); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d stores failed", failed, len(files))
			}
			return nil
		},
	}
	addClientFlags(cmd)
	return cmd
}

// NewQueryCmd runs a series level C-FIND
func NewQueryCmd(ctx context.Context, e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "C-FIND series on an SCP",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := dimse.NewSeriesQuery()
			if v, _ := cmd.Flags().GetString("study"); v != "" {
				q.SetStudyInstanceUID(v)
			}
			if v, _ := cmd.Flags().GetString("series"); v != "" {
				q.SetSeriesInstanceUID(v)
			}
			if v, _ := cmd.Flags().GetString("modality"); v != "" {
				q.SetModality(v)
			}
			if v, _ := cmd.Flags().GetString("description"); v != "" {
				q.SetSeriesDescription(v)
			}

			c, cleanup, err := dial(ctx, cmd, e, dicom.VerificationSOPClassUID, dicom.StudyRootQueryRetrieveFindUID)
			if err != nil {
				return err
			}
			defer cleanup()
			defer c.Close()

			found, err := c.FindSeries(ctx, q)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SERIES UID\tMODALITY\tNUMBER\tINSTANCES\tDESCRIPTION")
			for _, s := range found {
				num, _ := s.SeriesNumber()
				count, _ := s.NumberOfSeriesRelatedInstances()
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", s.SeriesInstanceUID(), s.Modality(), num, count, s.SeriesDescription())
			}
			if err := w.Flush(); err != nil {
				return err
			}
			return c.Release(ctx)
		},
	}
	addClientFlags(cmd)
	pf := cmd.PersistentFlags()
	pf.String("study", "", "study instance UID")
	pf.String("series", "", "series instance UID(s), backslash separated")
	pf.String("modality", "", "modality, * and ? wildcards allowed")
	pf.String("description", "", "series description, * and ? wildcards allowed")
	return cmd
}

// NewServeCmd runs the SCP
func NewServeCmd(ctx context.Context, e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a C-ECHO, C-STORE and C-FIND SCP",
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := e.cfg.Server
			if v, _ := cmd.Flags().GetString("addr"); v != "" {
				sc.Address = v
			}
			if v, _ := cmd.Flags().GetString("ae"); v != "" {
				sc.AETitle = v
			}
			if v, _ := cmd.Flags().GetString("store"); v != "" {
				sc.StoreDir = v
			}
			if v, _ := cmd.Flags().GetString("pcap"); v != "" {
				sc.Pcap = v
			}
			e.cfg.Server = sc

			opts := e.cfg.ServerOptions(e.logger)
			if sc.Pcap != "" {
				rec, err := trace.Create(sc.Pcap)
				if err != nil {
					return err
				}
				defer rec.Close()
				opts = append(opts, server.WithRecorder(rec))
			}
			s, err := server.New(sc.AETitle, opts...)
			if err != nil {
				return err
			}
			slog.InfoContext(ctx, "starting server", "ae_title", sc.AETitle, "store_dir", sc.StoreDir)
			if err := s.ListenAndServe(ctx, sc.Address); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("addr", "a", "", "listen address (default from config)")
	pf.String("ae", "", "AE title (default from config)")
	pf.String("store", "", "directory for received instances; enables C-STORE and C-FIND")
	pf.String("pcap", "", "record every association to a pcap file")
	return cmd
}
