package anonymize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jpfielding/dicom.go/pkg/dicom"
)

// Files anonymizes each input file and writes it under outDir with the same
// base name, returning the written paths. File meta is rebuilt from the
// anonymized SOP identifiers when present.
func Files(ctx context.Context, s Settings, paths []string, outDir string, opts ...Option) ([]string, error) {
	files := make([]*dicom.File, len(paths))
	inputs := make([]*dicom.Dataset, len(paths))
	for i, path := range paths {
		f, err := dicom.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		files[i], inputs[i] = f, f.Dataset
	}
	p, err := New(s, inputs, opts...)
	if err != nil {
		return nil, err
	}
	if err := p.Run(ctx, inputs); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", outDir, err)
	}

	out := make([]string, 0, len(files))
	for i, f := range files {
		anon, err := dicom.NewFile(f.Dataset, f.Syntax())
		if err != nil {
			// without SOP identifiers the original meta is kept
			anon = &dicom.File{Meta: f.Meta, Dataset: f.Dataset}
		}
		dst := filepath.Join(outDir, filepath.Base(paths[i]))
		if _, err := dicom.WriteFile(dst, anon); err != nil {
			return out, fmt.Errorf("writing %s: %w", dst, err)
		}
		out = append(out, dst)
	}
	return out, nil
}
