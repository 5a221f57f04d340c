package dimse

import (
	"strings"
	"time"

	"github.com/jpfielding/dicom.go/pkg/dicom"
	"github.com/jpfielding/dicom.go/pkg/dicom/tag"
	"github.com/jpfielding/dicom.go/pkg/dicom/vr"
)

// QueryLevel is the (0008,0052) value of a query identifier.
type QueryLevel string

const (
	LevelPatient QueryLevel = "PATIENT"
	LevelStudy   QueryLevel = "STUDY"
	LevelSeries  QueryLevel = "SERIES"
	LevelImage   QueryLevel = "IMAGE"
)

// seriesKeys are the return keys of a series level query, in tag order.
var seriesKeys = []dicom.Tag{
	tag.SeriesDate,
	tag.SeriesTime,
	tag.Modality,
	tag.SeriesDescription,
	tag.StudyInstanceUID,
	tag.SeriesInstanceUID,
	tag.SeriesNumber,
	tag.NumberOfSeriesRelatedInstances,
}

// SeriesQuery is a typed view over a series level C-FIND identifier.
type SeriesQuery struct {
	*dicom.Dataset
}

// NewSeriesQuery returns an identifier with every series return key present
// and empty.
func NewSeriesQuery() *SeriesQuery {
	q := &SeriesQuery{Dataset: &dicom.Dataset{}}
	q.SetLevel(LevelSeries)
	for _, t := range seriesKeys {
		q.setString(t, "")
	}
	return q
}

// AsSeriesQuery wraps a received identifier.
func AsSeriesQuery(ds *dicom.Dataset) *SeriesQuery {
	return &SeriesQuery{Dataset: ds}
}

func (q *SeriesQuery) setString(t dicom.Tag, s string) {
	q.Set(element(t, s))
}

func (q *SeriesQuery) str(t dicom.Tag) string {
	s, _ := q.GetString(t)
	return s
}

// Level defaults to PATIENT when absent.
func (q *SeriesQuery) Level() QueryLevel {
	if s := q.str(tag.QueryRetrieveLevel); s != "" {
		return QueryLevel(s)
	}
	return LevelPatient
}

func (q *SeriesQuery) SetLevel(l QueryLevel) { q.setString(tag.QueryRetrieveLevel, string(l)) }

func (q *SeriesQuery) StudyInstanceUID() string { return q.str(tag.StudyInstanceUID) }

func (q *SeriesQuery) SetStudyInstanceUID(uid string) { q.setString(tag.StudyInstanceUID, uid) }

func (q *SeriesQuery) SeriesInstanceUID() string { return q.str(tag.SeriesInstanceUID) }

func (q *SeriesQuery) SetSeriesInstanceUID(uid string) { q.setString(tag.SeriesInstanceUID, uid) }

func (q *SeriesQuery) Modality() string { return q.str(tag.Modality) }

func (q *SeriesQuery) SetModality(m string) { q.setString(tag.Modality, m) }

func (q *SeriesQuery) SeriesDescription() string { return q.str(tag.SeriesDescription) }

func (q *SeriesQuery) SetSeriesDescription(d string) { q.setString(tag.SeriesDescription, d) }

func (q *SeriesQuery) intValue(t dicom.Tag) (int, bool) {
	e, ok := q.Find(t)
	if !ok {
		return 0, false
	}
	return e.GetInt()
}

// SeriesNumber is absent when the key is missing or empty.
func (q *SeriesQuery) SeriesNumber() (int, bool) { return q.intValue(tag.SeriesNumber) }

func (q *SeriesQuery) SetSeriesNumber(n int) { q.Set(element(tag.SeriesNumber, n)) }

func (q *SeriesQuery) NumberOfSeriesRelatedInstances() (int, bool) {
	return q.intValue(tag.NumberOfSeriesRelatedInstances)
}

func (q *SeriesQuery) SetNumberOfSeriesRelatedInstances(n int) {
	q.Set(element(tag.NumberOfSeriesRelatedInstances, n))
}

func (q *SeriesQuery) timeValue(t dicom.Tag) (time.Time, bool) {
	e, ok := q.Find(t)
	if !ok {
		return time.Time{}, false
	}
	return e.GetTime()
}

func (q *SeriesQuery) SeriesDate() (time.Time, bool) { return q.timeValue(tag.SeriesDate) }

func (q *SeriesQuery) SetSeriesDate(d time.Time) { q.Set(element(tag.SeriesDate, d)) }

func (q *SeriesQuery) SeriesTime() (time.Time, bool) { return q.timeValue(tag.SeriesTime) }

func (q *SeriesQuery) SetSeriesTime(d time.Time) { q.Set(element(tag.SeriesTime, d)) }

// Matches applies the non-empty matching keys of the query to ds. String keys
// support * and ? wildcards, UID keys accept backslash separated lists and
// DA keys accept ranges such as "20240101-20240131".
func (q *SeriesQuery) Matches(ds *dicom.Dataset) bool {
	for _, e := range q.Elements {
		switch {
		case e.Tag == tag.QueryRetrieveLevel, e.Tag == tag.SpecificCharacterSet,
			e.Tag == tag.NumberOfSeriesRelatedInstances, e.IsEmpty(), e.Items != nil:
			continue
		}
		key := e.ValueString()
		if key == "" || key == "*" {
			continue
		}
		got, _ := ds.Find(e.Tag)
		value := ""
		if got != nil {
			value = got.ValueString()
		}
		if !matchKey(e, key, value) {
			return false
		}
	}
	return true
}

func matchKey(e *dicom.Element, key, value string) bool {
	switch {
	case e.VR == vr.UI:
		for _, uid := range strings.Split(key, `\`) {
			if uid == value {
				return true
			}
		}
		return false
	case e.VR == vr.DA && strings.Contains(key, "-"):
		lo, hi, _ := strings.Cut(key, "-")
		return value != "" && (lo == "" || value >= lo) && (hi == "" || value <= hi)
	}
	return wildcard(key, value)
}

// wildcard matches * (any run) and ? (one character).
func wildcard(pattern, s string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			for i := len(s); i >= 0; i-- {
				if wildcard(pattern[1:], s[i:]) {
					return true
				}
			}
			return false
		case '?':
			if s == "" {
				return false
			}
		default:
			if s == "" || s[0] != pattern[0] {
				return false
			}
		}
		pattern, s = pattern[1:], s[1:]
	}
	return s == ""
}
