package anonymize

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jpfielding/dicom.go/pkg/dicom"
	"github.com/jpfielding/dicom.go/pkg/dicom/tag"
	"github.com/jpfielding/dicom.go/pkg/dicom/vr"
)

// Stage rewrites one data set in place.
type Stage interface {
	Name() string
	Anonymize(ds *dicom.Dataset)
}

// each calls fn for ds and every nested sequence item.
func each(ds *dicom.Dataset, fn func(*dicom.Dataset)) {
	if ds == nil {
		return
	}
	fn(ds)
	for _, e := range ds.Elements {
		for _, item := range e.Items {
			each(item, fn)
		}
	}
}

// studyIDs numbers the distinct study IDs of all inputs 1, 2, 3... in
// sorted order.
type studyIDs struct {
	ids map[string]string
}

func newStudyIDs(inputs []*dicom.Dataset) *studyIDs {
	var seen []string
	for _, ds := range inputs {
		if id, ok := ds.GetString(tag.StudyID); ok && !slices.Contains(seen, id) {
			seen = append(seen, id)
		}
	}
	slices.Sort(seen)
	s := &studyIDs{ids: make(map[string]string, len(seen))}
	for i, id := range seen {
		s.ids[id] = strconv.Itoa(i + 1)
	}
	return s
}

func (*studyIDs) Name() string { return "study-ids" }

func (s *studyIDs) Anonymize(ds *dicom.Dataset) {
	e, ok := ds.Find(tag.StudyID)
	if !ok {
		return
	}
	id, _ := e.GetString()
	if repl, ok := s.ids[id]; ok {
		e.SetString(repl)
	}
}

// wellKnown UIDs name standard classes and syntaxes, never instances.
func wellKnown(uid string) bool {
	return strings.HasPrefix(uid, "1.2.840.10008.")
}

// uids replaces instance UIDs consistently across every input so references
// between data sets still resolve.
type uids struct {
	root    string
	salt    string
	mapping map[string]string
}

func newUIDs(root, salt string, inputs []*dicom.Dataset) *uids {
	u := &uids{root: root, salt: salt, mapping: map[string]string{}}
	for _, ds := range inputs {
		ds.Walk(func(e *dicom.Element) bool {
			if e.VR == vr.UI {
				for _, v := range e.Strings() {
					u.replacement(v)
				}
			}
			return true
		})
	}
	return u
}

func (u *uids) replacement(uid string) string {
	if uid == "" || wellKnown(uid) {
		return uid
	}
	repl, ok := u.mapping[uid]
	if !ok {
		if u.salt != "" {
			repl = dicom.HashedUID(u.root, u.salt+uid)
		} else {
			repl = dicom.GenerateUID(u.root)
		}
		u.mapping[uid] = repl
	}
	return repl
}

func (*uids) Name() string { return "uids" }

func (u *uids) Anonymize(ds *dicom.Dataset) {
	ds.Walk(func(e *dicom.Element) bool {
		if e.VR != vr.UI || e.IsEmpty() {
			return true
		}
		vals := e.Strings()
		for i, v := range vals {
			vals[i] = u.replacement(v)
		}
		e.SetStrings(vals...)
		return true
	})
}

const anonymizedName = "Anonymized"

// names replaces every person name other than the patient's.
type names struct{}

func (names) Name() string { return "names" }

func (names) Anonymize(ds *dicom.Dataset) {
	ds.Walk(func(e *dicom.Element) bool {
		if e.VR == vr.PN && e.Tag != tag.PatientName && !e.IsEmpty() {
			e.SetString(anonymizedName)
		}
		return true
	})
}

type privateTags struct{}

func (privateTags) Name() string { return "private-tags" }

func (privateTags) Anonymize(ds *dicom.Dataset) {
	each(ds, func(d *dicom.Dataset) {
		d.RemoveIf(func(e *dicom.Element) bool { return e.Tag.IsPrivate() })
	})
}

// profile applies a subset of the basic confidentiality profile: identifying
// attributes are removed or emptied.
type profile struct{}

var (
	profileRemove = []dicom.Tag{
		tag.IssuerOfPatientID,
		tag.OtherPatientIDs,
		tag.OtherPatientNames,
		tag.PatientBirthTime,
		tag.PatientAddress,
		tag.PatientMotherBirthName,
		tag.PatientTelephoneNumbers,
		tag.EthnicGroup,
		tag.PatientComments,
		tag.InstitutionName,
		tag.InstitutionAddress,
		tag.InstitutionalDepartmentName,
		tag.StationName,
		tag.DeviceSerialNumber,
		tag.PhysiciansOfRecord,
		tag.NameOfPhysiciansReadingStudy,
		tag.OperatorsName,
		tag.PerformingPhysicianName,
		tag.ImageComments,
	}
	profileEmpty = []dicom.Tag{
		tag.AccessionNumber,
		tag.ReferringPhysicianName,
	}
)

func (profile) Name() string { return "profile" }

func (profile) Anonymize(ds *dicom.Dataset) {
	each(ds, func(d *dicom.Dataset) {
		d.RemoveIf(func(e *dicom.Element) bool { return slices.Contains(profileRemove, e.Tag) })
		for _, t := range profileEmpty {
			if e, ok := d.Find(t); ok {
				e.Clear()
			}
		}
	})
}

// patient sets the patient name and ID, adding them when absent.
type patient struct {
	name, id string
}

func newPatient(s Settings) *patient {
	name := s.LastName
	if s.FirstName != "" {
		name += "^" + s.FirstName
	}
	if name == "" {
		name = anonymizedName
	}
	return &patient{name: name, id: s.PatientID}
}

func (*patient) Name() string { return "patient" }

func (p *patient) Anonymize(ds *dicom.Dataset) {
	set(ds, tag.PatientName, vr.PN, p.name)
	set(ds, tag.PatientID, vr.LO, p.id)
}

func set(ds *dicom.Dataset, t dicom.Tag, v vr.VR, value string) {
	if e, ok := ds.Find(t); ok {
		e.SetString(value)
		return
	}
	e, err := dicom.NewElement(t, v, value)
	if err != nil {
		panic(fmt.Sprintf("encoding %s: %v", v, err))
	}
	ds.Set(e)
}

type dates struct {
	mode   DateMode
	anchor time.Time
}

func parseAnchor(s string) (time.Time, error) {
	t, err := dicom.ParseDate(s)
	if err != nil {
		return t, fmt.Errorf("date_anchor: %w", err)
	}
	return t, nil
}

func (*dates) Name() string { return "dates" }

func (d *dates) Anonymize(ds *dicom.Dataset) {
	switch d.mode {
	case DatesNull:
		ds.Walk(func(e *dicom.Element) bool {
			if e.VR == vr.DA || e.VR == vr.DT || e.Tag == tag.PatientAge {
				e.Clear()
			}
			return true
		})
	case DatesShift:
		days, ok := d.offset(ds)
		if !ok {
			return
		}
		ds.Walk(func(e *dicom.Element) bool {
			shift(e, days)
			return true
		})
	}
}

// offset moves the birth date, or failing that the earliest date, onto the
// anchor.
func (d *dates) offset(ds *dicom.Dataset) (int, bool) {
	var base time.Time
	if e, ok := ds.Find(tag.PatientBirthDate); ok {
		base, _ = e.GetTime()
	}
	if base.IsZero() {
		ds.Walk(func(e *dicom.Element) bool {
			if e.VR != vr.DA {
				return true
			}
			if t, ok := e.GetTime(); ok && (base.IsZero() || t.Before(base)) {
				base = t
			}
			return true
		})
	}
	if base.IsZero() {
		return 0, false
	}
	return int((d.anchor.Unix() - base.Unix()) / 86400), true
}

func shift(e *dicom.Element, days int) {
	var parse func(string) (time.Time, error)
	var format func(time.Time) string
	switch e.VR {
	case vr.DA:
		parse, format = dicom.ParseDate, dicom.FormatDate
	case vr.DT:
		parse, format = dicom.ParseDateTime, dicom.FormatDateTime
	default:
		return
	}
	if e.IsEmpty() {
		return
	}
	vals := e.Strings()
	for i, v := range vals {
		t, err := parse(v)
		if err != nil {
			continue
		}
		vals[i] = format(t.AddDate(0, 0, days))
	}
	e.SetStrings(vals...)
}
