package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/jpfielding/dicom.go/pkg/dicom"
	"github.com/jpfielding/dicom.go/pkg/dicom/tag"
	"github.com/jpfielding/dicom.go/pkg/dicom/transfer"
	"github.com/jpfielding/dicom.go/pkg/dicom/vr"
	"github.com/jpfielding/dicom.go/pkg/net/dimse"
)

// Store keeps received instances as part 10 files named by SOP instance UID.
type Store struct {
	dir    string
	logger *slog.Logger
	mu     sync.RWMutex
}

// NewStore creates dir when missing.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store %s: %w", dir, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger}, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) path(uid string) string {
	name := strings.Map(func(r rune) rune {
		if r == '.' || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, uid)
	return filepath.Join(s.dir, name+".dcm")
}

// ErrInstanceUID is returned by Put for an empty or malformed SOP instance UID.
var ErrInstanceUID = errors.New("store: invalid SOP instance UID")

func validUID(uid string) bool {
	if uid == "" || len(uid) > 64 {
		return false
	}
	for _, r := range uid {
		if r != '.' && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// Put writes ds, replacing an earlier copy of the same instance.
func (s *Store) Put(ds *dicom.Dataset) (string, error) {
	uid, _ := ds.GetString(tag.SOPInstanceUID)
	if !validUID(uid) {
		return "", fmt.Errorf("%w: %q", ErrInstanceUID, uid)
	}
	f, err := dicom.NewFile(ds, transfer.ExplicitVRLittleEndian)
	if err != nil {
		return "", err
	}
	path := s.path(uid)

	s.mu.Lock()
	defer s.mu.Unlock()
	tmp := path + ".tmp"
	if _, err := dicom.WriteFile(tmp, f); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("renaming %s: %w", tmp, err)
	}
	return path, nil
}

// Series answers a series level query with one identifier per matching
// series, holding the keys the query asked for.
func (s *Store) Series(ctx context.Context, q *dimse.SeriesQuery) ([]*dicom.Dataset, error) {
	s.mu.RLock()
	entries, err := os.ReadDir(s.dir)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("listing store: %w", err)
	}

	type series struct {
		first *dicom.Dataset
		count int
	}
	found := map[string]*series{}
	var order []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".dcm" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(s.dir, entry.Name())
		f, err := dicom.ReadFile(path, dicom.WithLogger(s.logger))
		if err != nil {
			s.logger.Warn("skipping unreadable instance", "path", path, "error", err)
			continue
		}
		if !q.Matches(f.Dataset) {
			continue
		}
		uid, _ := f.Dataset.GetString(tag.SeriesInstanceUID)
		if cur, ok := found[uid]; ok {
			cur.count++
			continue
		}
		found[uid] = &series{first: f.Dataset, count: 1}
		order = append(order, uid)
	}
	slices.Sort(order)

	out := make([]*dicom.Dataset, 0, len(order))
	for _, uid := range order {
		out = append(out, identifier(q, found[uid].first, found[uid].count))
	}
	return out, nil
}

// identifier copies the requested keys from ds.
func identifier(q *dimse.SeriesQuery, ds *dicom.Dataset, count int) *dicom.Dataset {
	out := &dicom.Dataset{}
	for _, e := range q.Elements {
		switch e.Tag {
		case tag.QueryRetrieveLevel, tag.SpecificCharacterSet:
			out.Set(e.Clone())
		case tag.NumberOfSeriesRelatedInstances:
			if n, err := dicom.NewElement(e.Tag, vr.IS, count); err == nil {
				out.Set(n)
			}
		default:
			if got, ok := ds.Find(e.Tag); ok {
				out.Set(got.Clone())
			} else {
				c := e.Clone()
				c.Clear()
				out.Set(c)
			}
		}
	}
	return out
}
