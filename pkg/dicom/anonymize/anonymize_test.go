package anonymize

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jpfielding/dicom.go/pkg/dicom"
	"github.com/jpfielding/dicom.go/pkg/dicom/tag"
	"github.com/jpfielding/dicom.go/pkg/dicom/transfer"
	"github.com/jpfielding/dicom.go/pkg/dicom/vr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func patientDataset(t *testing.T, studyID, instance string) *dicom.Dataset {
	t.Helper()
	ref, err := dicom.NewDataset(
		dicom.WithElement(tag.ReferencedSOPClassUID, dicom.CTImageStorageUID),
		dicom.WithElement(tag.ReferencedSOPInstanceUID, "1.2.3.4.1"),
	)
	require.NoError(t, err)
	ds, err := dicom.NewDataset(
		dicom.WithElement(tag.SOPClassUID, dicom.CTImageStorageUID),
		dicom.WithElement(tag.SOPInstanceUID, instance),
		dicom.WithElement(tag.StudyInstanceUID, "1.2.3"),
		dicom.WithElement(tag.StudyID, studyID),
		dicom.WithElement(tag.StudyDate, "20240110"),
		dicom.WithElement(tag.PatientName, "Doe^John"),
		dicom.WithElement(tag.PatientID, "PAT-001"),
		dicom.WithElement(tag.PatientBirthDate, "19800105"),
		dicom.WithElement(tag.PatientAge, "044Y"),
		dicom.WithElement(tag.ReferringPhysicianName, "House^Greg"),
		dicom.WithElement(tag.InstitutionName, "General"),
		dicom.WithElement(tag.AccessionNumber, "ACC1"),
		dicom.WithTypedElement(tag.New(0x0009, 0x1001), vr.LO, "vendor"),
		dicom.WithSequence(tag.ReferencedImageSequence, ref),
	)
	require.NoError(t, err)
	return ds
}

func str(t *testing.T, ds *dicom.Dataset, tg dicom.Tag) string {
	t.Helper()
	s, _ := ds.GetString(tg)
	return s
}

func TestStageOrder(t *testing.T) {
	p, err := New(Default(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"study-ids", "uids", "names", "private-tags", "profile", "patient", "dates"}, p.Stages())

	s := Default()
	s.StudyIDs, s.UIDs, s.Names, s.PrivateTags, s.Profile = false, false, false, false, false
	p, err = New(s, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"patient", "dates"}, p.Stages())
}

func TestProgressAfterEachStage(t *testing.T) {
	var seen []float64
	s := Default()
	s.StudyIDs, s.UIDs, s.Names = false, false, false
	p, err := New(s, nil, WithProgress(func(f float64) { seen = append(seen, f) }))
	require.NoError(t, err)
	p.Anonymize(patientDataset(t, "S1", "1.2.3.4"))
	assert.Equal(t, []float64{0.25, 0.5, 0.75, 1}, seen)
}

func TestDefaultPipeline(t *testing.T) {
	a := patientDataset(t, "S9", "1.2.3.4")
	b := patientDataset(t, "S2", "1.2.3.5")
	p, err := New(Default(), []*dicom.Dataset{a, b})
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background(), []*dicom.Dataset{a, b}))

	// study IDs numbered in sorted order across inputs
	assert.Equal(t, "2", str(t, a, tag.StudyID))
	assert.Equal(t, "1", str(t, b, tag.StudyID))

	// shared UIDs map to the same replacement, class UIDs are kept
	assert.Equal(t, str(t, a, tag.StudyInstanceUID), str(t, b, tag.StudyInstanceUID))
	assert.NotEqual(t, "1.2.3", str(t, a, tag.StudyInstanceUID))
	assert.NotEqual(t, str(t, a, tag.SOPInstanceUID), str(t, b, tag.SOPInstanceUID))
	assert.Equal(t, dicom.CTImageStorageUID, str(t, a, tag.SOPClassUID))
	item := dicom.GetSequenceItems(a, tag.ReferencedImageSequence)[0]
	assert.NotEqual(t, "1.2.3.4.1", str(t, item, tag.ReferencedSOPInstanceUID))

	assert.Equal(t, "Anonymous^Anonymous", str(t, a, tag.PatientName))
	assert.Equal(t, "00000000", str(t, a, tag.PatientID))
	assert.False(t, a.Contains(tag.New(0x0009, 0x1001)))
	assert.False(t, a.Contains(tag.InstitutionName))
	e, ok := a.Find(tag.AccessionNumber)
	require.True(t, ok)
	assert.True(t, e.IsEmpty())
	// the profile empties the referring physician after names replaced it
	e, ok = a.Find(tag.ReferringPhysicianName)
	require.True(t, ok)
	assert.True(t, e.IsEmpty())

	// shifted so the birth date lands on the anchor, keeping the interval
	assert.Equal(t, "19000101", str(t, a, tag.PatientBirthDate))
	assert.Equal(t, "19440107", str(t, a, tag.StudyDate))
}

func TestNamesKeepsPatient(t *testing.T) {
	ds := patientDataset(t, "S1", "1.2.3.4")
	names{}.Anonymize(ds)
	assert.Equal(t, "Doe^John", str(t, ds, tag.PatientName))
	assert.Equal(t, anonymizedName, str(t, ds, tag.ReferringPhysicianName))
}

func TestDateModes(t *testing.T) {
	ds := patientDataset(t, "S1", "1.2.3.4")
	(&dates{mode: DatesKeep}).Anonymize(ds)
	assert.Equal(t, "20240110", str(t, ds, tag.StudyDate))

	(&dates{mode: DatesNull}).Anonymize(ds)
	for _, tg := range []dicom.Tag{tag.StudyDate, tag.PatientBirthDate, tag.PatientAge} {
		e, ok := ds.Find(tg)
		require.True(t, ok)
		assert.True(t, e.IsEmpty(), "%v", tg)
	}
}

func TestShiftWithoutBirthDateUsesEarliest(t *testing.T) {
	ds, err := dicom.NewDataset(
		dicom.WithElement(tag.StudyDate, "20240110"),
		dicom.WithElement(tag.SeriesDate, "20240109"),
	)
	require.NoError(t, err)
	anchor, err := parseAnchor("20000101")
	require.NoError(t, err)
	(&dates{mode: DatesShift, anchor: anchor}).Anonymize(ds)
	assert.Equal(t, "20000101", str(t, ds, tag.SeriesDate))
	assert.Equal(t, "20000102", str(t, ds, tag.StudyDate))
}

func TestPatientAddsMissing(t *testing.T) {
	ds := &dicom.Dataset{}
	newPatient(Settings{PatientID: "X1"}).Anonymize(ds)
	assert.Equal(t, anonymizedName, str(t, ds, tag.PatientName))
	assert.Equal(t, "X1", str(t, ds, tag.PatientID))
}

func TestSettings(t *testing.T) {
	assert.NoError(t, Default().Validate())
	bad := Default()
	bad.Dates = "blur"
	assert.Error(t, bad.Validate())
	bad = Default()
	bad.DateAnchor = "1900"
	assert.Error(t, bad.Validate())

	path := filepath.Join(t.TempDir(), "anon.yaml")
	require.NoError(t, os.WriteFile(path, []byte("uids: false\npatient_id: P9\ndates: keep\n"), 0o644))
	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.False(t, s.UIDs)
	assert.True(t, s.Names)
	assert.Equal(t, "P9", s.PatientID)
	assert.Equal(t, DatesKeep, s.Dates)
}

func TestFiles(t *testing.T) {
	in := t.TempDir()
	var paths []string
	for i, uid := range []string{"1.2.3.4", "1.2.3.5"} {
		f, err := dicom.NewFile(patientDataset(t, "S1", uid), transfer.ExplicitVRLittleEndian)
		require.NoError(t, err)
		path := filepath.Join(in, []string{"a.dcm", "b.dcm"}[i])
		_, err = dicom.WriteFile(path, f)
		require.NoError(t, err)
		paths = append(paths, path)
	}

	out := filepath.Join(t.TempDir(), "anon")
	written, err := Files(context.Background(), Default(), paths, out)
	require.NoError(t, err)
	require.Len(t, written, 2)

	f, err := dicom.ReadFile(written[0])
	require.NoError(t, err)
	assert.Equal(t, "00000000", str(t, f.Dataset, tag.PatientID))
	assert.Equal(t, str(t, f.Dataset, tag.SOPInstanceUID), str(t, f.Meta, tag.MediaStorageSOPInstanceUID))
}

func TestSaltedUIDsRepeatAcrossRuns(t *testing.T) {
	s := Default()
	s.UIDSalt = "site-7"
	s.UIDRoot = "1.2.826.0.1"

	run := func() string {
		ds := patientDataset(t, "S1", "1.2.3.4")
		p, err := New(s, []*dicom.Dataset{ds})
		require.NoError(t, err)
		p.Anonymize(ds)
		return str(t, ds, tag.SOPInstanceUID)
	}
	first := run()
	assert.Equal(t, first, run())
	assert.True(t, strings.HasPrefix(first, "1.2.826.0.1."))
	assert.NotEqual(t, "1.2.3.4", first)
}
