package anonymize

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DateMode selects how dates are treated.
type DateMode string

const (
	// DatesKeep leaves every date untouched.
	DatesKeep DateMode = "keep"
	// DatesNull empties dates, date times and the patient age.
	DatesNull DateMode = "null"
	// DatesShift moves every date by the same number of days per data set so
	// intervals such as the patient age survive.
	DatesShift DateMode = "shift"
)

// Settings toggles the optional stages and carries replacement values. The
// patient identity and date stages always run.
type Settings struct {
	StudyIDs    bool     `yaml:"study_ids"`
	UIDs        bool     `yaml:"uids"`
	Names       bool     `yaml:"names"`
	PrivateTags bool     `yaml:"private_tags"`
	Profile     bool     `yaml:"profile"`
	FirstName   string   `yaml:"first_name"`
	LastName    string   `yaml:"last_name"`
	PatientID   string   `yaml:"patient_id"`
	Dates       DateMode `yaml:"dates"`
	// DateAnchor is where the birth date (or the earliest date) lands when
	// shifting, formatted yyyyMMdd.
	DateAnchor string `yaml:"date_anchor"`
	// UIDRoot prefixes generated UIDs; empty uses 2.25.
	UIDRoot string `yaml:"uid_root"`
	// UIDSalt, when set, derives each replacement UID from the salt and the
	// original so separate runs map a UID the same way.
	UIDSalt string `yaml:"uid_salt"`
}

// Default enables every stage.
func Default() Settings {
	return Settings{
		StudyIDs:    true,
		UIDs:        true,
		Names:       true,
		PrivateTags: true,
		Profile:     true,
		FirstName:   "Anonymous",
		LastName:    "Anonymous",
		PatientID:   "00000000",
		Dates:       DatesShift,
		DateAnchor:  "19000101",
	}
}

func (s Settings) Validate() error {
	switch s.Dates {
	case DatesKeep, DatesNull, DatesShift:
	default:
		return fmt.Errorf("dates must be keep, null or shift, got %q", s.Dates)
	}
	if s.Dates == DatesShift {
		if _, err := parseAnchor(s.DateAnchor); err != nil {
			return err
		}
	}
	if len(s.UIDRoot) > 32 {
		return fmt.Errorf("uid_root longer than 32 characters: %q", s.UIDRoot)
	}
	return nil
}

// LoadSettings reads YAML settings over Default.
func LoadSettings(path string) (Settings, error) {
	s := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read settings %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse YAML: %w", err)
	}
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("validate settings: %w", err)
	}
	return s, nil
}
