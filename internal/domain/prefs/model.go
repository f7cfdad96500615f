// Package prefs persists the user's report-section toggles and
// professional identity. The stored blob carries a schema version and is
// migrated forward on load, so structural changes never silently break
// older data.
package prefs

// SchemaVersion is the current preferences schema version.
const SchemaVersion = 1

// Preferences controls which optional report sections are included, plus
// the professional identity printed in the report header. The main result,
// legal disclaimer, and footer timestamp are always included and have no
// toggle here.
type Preferences struct {
	SchemaVersion int `json:"schema_version"`

	IncludeIdentity         bool `json:"include_identity"`
	IncludePatient          bool `json:"include_patient"`
	IncludeParameters       bool `json:"include_parameters"`
	IncludeInterpretation   bool `json:"include_interpretation"`
	IncludeSafetyGoals      bool `json:"include_safety_goals"`
	IncludeMedicationSafety bool `json:"include_medication_safety"`
	IncludeAuditBlock       bool `json:"include_audit_block"`
	IncludeNotes            bool `json:"include_notes"`
	IncludeQR               bool `json:"include_qr"`

	ProfessionalName string `json:"professional_name"`
	LicenseNumber    string `json:"license_number"`
}

// Defaults returns the preferences created on first use.
func Defaults() Preferences {
	return Preferences{
		SchemaVersion:           SchemaVersion,
		IncludeIdentity:         true,
		IncludePatient:          true,
		IncludeParameters:       true,
		IncludeInterpretation:   true,
		IncludeSafetyGoals:      false,
		IncludeMedicationSafety: false,
		IncludeAuditBlock:       true,
		IncludeNotes:            false,
		IncludeQR:               true,
	}
}

// migrate brings an older stored blob up to the current schema. Version 0
// blobs predate the toggle set and get the defaults for fields they lack.
func migrate(p Preferences) Preferences {
	switch p.SchemaVersion {
	case 0:
		d := Defaults()
		d.ProfessionalName = p.ProfessionalName
		d.LicenseNumber = p.LicenseNumber
		return d
	default:
		p.SchemaVersion = SchemaVersion
		return p
	}
}
