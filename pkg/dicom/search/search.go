// Package search walks a directory tree looking for DICOM files that carry a
// tag, optionally with a value containing a search string.
package search

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/jpfielding/dicom.go/pkg/dicom"
)

// DefaultProgressInterval throttles progress callbacks.
const DefaultProgressInterval = time.Second

// Options for Search.
type Options struct {
	Root string
	Tag  dicom.Tag
	// Value, when set, keeps only matches whose value contains it, ignoring
	// case.
	Value string
	// OnePerDirectory reads only the first file of each directory.
	OnePerDirectory bool
	// Progress is called at most once per ProgressInterval while searching
	// and once at the end.
	Progress         func(Progress)
	ProgressInterval time.Duration
	Logger           *slog.Logger
}

// Progress is a running count.
type Progress struct {
	Scanned int
	Matches int
	Dir     string
}

// Match is one file carrying the tag.
type Match struct {
	Path   string               `json:"path"`
	Value  string               `json:"value"`
	Status dicom.PreambleStatus `json:"status"`
}

// Search visits Root depth first: the files of a directory in name order,
// then its subdirectories. Unreadable files and directories are logged and
// skipped. It returns what was found so far together with ctx.Err() when
// cancelled.
func Search(ctx context.Context, opts Options) ([]Match, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := opts.ProgressInterval
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	filter := strings.ToLower(opts.Value)

	var (
		matches []Match
		scanned int
		last    = time.Now()
	)
	report := func(dir string, force bool) {
		if opts.Progress == nil {
			return
		}
		if now := time.Now(); force || now.Sub(last) >= interval {
			last = now
			opts.Progress(Progress{Scanned: scanned, Matches: len(matches), Dir: dir})
		}
	}

	stack := []string{opts.Root}
	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			logger.Warn("reading directory", "dir", dir, "error", err)
			continue
		}
		var subdirs []string
		read := false
		for _, entry := range entries {
			if entry.IsDir() {
				subdirs = append(subdirs, filepath.Join(dir, entry.Name()))
				continue
			}
			if read && opts.OnePerDirectory {
				continue
			}
			if err := ctx.Err(); err != nil {
				return matches, err
			}
			read = true
			scanned++
			path := filepath.Join(dir, entry.Name())
			if m, ok := inspect(logger, path, opts.Tag); ok && contains(m.Value, filter) {
				matches = append(matches, m)
			}
			report(dir, false)
		}
		// reversed so the first subdirectory is searched next
		slices.Reverse(subdirs)
		stack = append(stack, subdirs...)
	}
	report(opts.Root, true)
	return matches, nil
}

func contains(value, filter string) bool {
	return filter == "" || strings.Contains(strings.ToLower(value), filter)
}

func inspect(logger *slog.Logger, path string, t dicom.Tag) (Match, bool) {
	v, err := dicom.ReadTag(path, t, dicom.WithLogger(logger))
	switch {
	case errors.Is(err, dicom.ErrNotFound), errors.Is(err, dicom.ErrWrongMagic), errors.Is(err, dicom.ErrNoPreamble):
		return Match{}, false
	case err != nil:
		logger.Warn("reading file", "path", path, "error", err)
		return Match{}, false
	}
	return Match{Path: path, Value: text(logger, v), Status: v.Status}, true
}

func text(logger *slog.Logger, v *dicom.TagValue) string {
	enc, err := dicom.LookupCharset(v.CharacterSet)
	if err != nil {
		logger.Debug("unknown character set", "charset", v.CharacterSet, "error", err)
		return v.Element.ValueString()
	}
	s, err := v.Element.DecodeText(enc)
	if err != nil {
		logger.Debug("decoding value", "error", err)
	}
	return s
}

// Paths joins the match paths one per line.
func Paths(matches []Match) string {
	var b strings.Builder
	for i, m := range matches {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.Path)
	}
	return b.String()
}
