package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jpfielding/dicom.go/pkg/dicom"
	"github.com/jpfielding/dicom.go/pkg/dicom/tag"
	"github.com/jpfielding/dicom.go/pkg/dicom/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path, modality string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	ds, err := dicom.NewDataset(
		dicom.WithElement(tag.SOPClassUID, dicom.CTImageStorageUID),
		dicom.WithElement(tag.SOPInstanceUID, dicom.GenerateUID("")),
		dicom.WithElement(tag.Modality, modality),
		dicom.WithElement(tag.PatientName, "Doe^John"),
	)
	require.NoError(t, err)
	f, err := dicom.NewFile(ds, transfer.ExplicitVRLittleEndian)
	require.NoError(t, err)
	_, err = dicom.WriteFile(path, f)
	require.NoError(t, err)
}

func tree(t *testing.T) string {
	root := t.TempDir()
	write(t, filepath.Join(root, "a.dcm"), "CT")
	write(t, filepath.Join(root, "b.dcm"), "MR")
	write(t, filepath.Join(root, "sub", "c.dcm"), "CT")
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("not dicom at all, long enough to pass the preamble length check"), 0o644))
	return root
}

func TestSearchValueFilter(t *testing.T) {
	root := tree(t)
	matches, err := Search(context.Background(), Options{Root: root, Tag: tag.Modality, Value: "ct"})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, filepath.Join(root, "a.dcm"), matches[0].Path)
	assert.Equal(t, filepath.Join(root, "sub", "c.dcm"), matches[1].Path)
	assert.Equal(t, "CT", matches[0].Value)
	assert.Equal(t, dicom.PreambleOk, matches[0].Status)
}

func TestSearchWithoutFilter(t *testing.T) {
	matches, err := Search(context.Background(), Options{Root: tree(t), Tag: tag.Modality})
	require.NoError(t, err)
	assert.Len(t, matches, 3)
}

func TestSearchOnePerDirectory(t *testing.T) {
	root := tree(t)
	matches, err := Search(context.Background(), Options{Root: root, Tag: tag.Modality, OnePerDirectory: true})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, filepath.Join(root, "a.dcm"), matches[0].Path)
	assert.Equal(t, filepath.Join(root, "sub", "c.dcm"), matches[1].Path)
}

func TestSearchOutOfOrderFile(t *testing.T) {
	root := t.TempDir()
	ds := &dicom.Dataset{}
	for _, kv := range [][2]any{
		{tag.SOPClassUID, dicom.CTImageStorageUID},
		{tag.SOPInstanceUID, dicom.GenerateUID("")},
		{tag.PatientName, "Doe^Jane"},
		{tag.Modality, "CT"},
	} {
		tg := kv[0].(dicom.Tag)
		v, _ := tag.LookupVR(tg)
		e, err := dicom.NewElement(tg, v, kv[1])
		require.NoError(t, err)
		ds.Add(e)
	}
	f, err := dicom.NewFile(ds, transfer.ExplicitVRLittleEndian)
	require.NoError(t, err)
	path := filepath.Join(root, "unordered.dcm")
	_, err = dicom.WriteFile(path, f)
	require.NoError(t, err)

	matches, err := Search(context.Background(), Options{Root: root, Tag: tag.Modality, Value: "CT"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, path, matches[0].Path)
}

func TestSearchMissingTag(t *testing.T) {
	matches, err := Search(context.Background(), Options{Root: tree(t), Tag: tag.StudyDescription})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSearchProgress(t *testing.T) {
	var seen []Progress
	_, err := Search(context.Background(), Options{
		Root:             tree(t),
		Tag:              tag.Modality,
		Progress:         func(p Progress) { seen = append(seen, p) },
		ProgressInterval: time.Hour,
	})
	require.NoError(t, err)
	// only the final report fits in an hour
	require.Len(t, seen, 1)
	assert.Equal(t, 4, seen[0].Scanned)
	assert.Equal(t, 3, seen[0].Matches)
}

func TestSearchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Search(ctx, Options{Root: tree(t), Tag: tag.Modality})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearchMissingRootIsLogged(t *testing.T) {
	matches, err := Search(context.Background(), Options{Root: filepath.Join(t.TempDir(), "gone"), Tag: tag.Modality})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestPaths(t *testing.T) {
	assert.Equal(t, "a\nb", Paths([]Match{{Path: "a"}, {Path: "b"}}))
}
