// Package anonymize strips identifying information from decoded data sets
// with a fixed sequence of in-memory stages.
package anonymize

import (
	"context"
	"log/slog"

	"github.com/jpfielding/dicom.go/pkg/dicom"
)

// Pipeline runs its stages in order over each data set.
type Pipeline struct {
	stages   []Stage
	logger   *slog.Logger
	progress func(float64)
}

type Option func(*Pipeline)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithProgress is called after each stage with the fraction done, 0.0 to 1.0.
func WithProgress(fn func(float64)) Option {
	return func(p *Pipeline) { p.progress = fn }
}

// New builds the pipeline. The study ID and UID stages learn their mappings
// from inputs, which should hold every data set that will be anonymized so
// that cross references stay consistent.
func New(s Settings, inputs []*dicom.Dataset, opts ...Option) (*Pipeline, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if s.StudyIDs {
		p.stages = append(p.stages, newStudyIDs(inputs))
	}
	if s.UIDs {
		p.stages = append(p.stages, newUIDs(s.UIDRoot, s.UIDSalt, inputs))
	}
	if s.Names {
		p.stages = append(p.stages, names{})
	}
	if s.PrivateTags {
		p.stages = append(p.stages, privateTags{})
	}
	if s.Profile {
		p.stages = append(p.stages, profile{})
	}
	p.stages = append(p.stages, newPatient(s))

	d := &dates{mode: s.Dates}
	if s.Dates == DatesShift {
		d.anchor, _ = parseAnchor(s.DateAnchor)
	}
	p.stages = append(p.stages, d)
	return p, nil
}

// Stages names the stages in run order.
func (p *Pipeline) Stages() []string {
	out := make([]string, len(p.stages))
	for i, s := range p.stages {
		out[i] = s.Name()
	}
	return out
}

// Anonymize rewrites ds in place.
func (p *Pipeline) Anonymize(ds *dicom.Dataset) {
	n := len(p.stages)
	for i, s := range p.stages {
		s.Anonymize(ds)
		p.logger.Debug("anonymize stage done", "stage", s.Name())
		if p.progress != nil {
			p.progress(float64(i+1) / float64(n))
		}
	}
}

// Run anonymizes every data set, stopping early when ctx is done.
func (p *Pipeline) Run(ctx context.Context, datasets []*dicom.Dataset) error {
	for _, ds := range datasets {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.Anonymize(ds)
	}
	return nil
}
