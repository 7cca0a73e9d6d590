// Package applicant holds the typed records of the applicant base and the
// boundary that turns loosely typed Airtable field maps into them.
package applicant

// Field names of the applicant base.
const (
	FieldApplicantID        = "Applicant ID"
	FieldSnapshot           = "Compressed JSON"
	FieldShortlisted        = "Shortlist Status"
	FieldSummary            = "LLM Summary"
	FieldScore              = "LLM Score"
	FieldFollowUps          = "LLM Follow-Ups"
	FieldScoreReason        = "Score Reason"
	FieldCreatedBy          = "Created By"
	FieldPersonalDetailsID  = "Personal Details ID"
	FieldSalaryPreferenceID = "Salary Preference ID"
	FieldExperienceID       = "Experience ID"
	// FieldApplicantLink is the back-reference every child table carries.
	// It shares the name of the applicant identifier field.
	FieldApplicantLink = FieldApplicantID
)

// Tables names the tables of the base. Child table names double as the names
// of the link fields on the applicant record and as snapshot keys.
type Tables struct {
	Applicants        string `mapstructure:"applicants" validate:"required"`
	PersonalDetails   string `mapstructure:"personal-details" validate:"required"`
	SalaryPreferences string `mapstructure:"salary-preferences" validate:"required"`
	WorkExperience    string `mapstructure:"work-experience" validate:"required"`
	ShortlistedLeads  string `mapstructure:"shortlisted-leads" validate:"required"`
}

func DefaultTables() Tables {
	return Tables{
		Applicants:        "Applicants",
		PersonalDetails:   "Personal Details",
		SalaryPreferences: "Salary Preferences",
		WorkExperience:    "Work Experience",
		ShortlistedLeads:  "Shortlisted Leads",
	}
}

// Applicant is the root record.
type Applicant struct {
	RecordID    string
	ApplicantID string
	Snapshot    string
	Shortlisted bool

	PersonalDetailsLinks  []string
	SalaryPreferenceLinks []string
	WorkExperienceLinks   []string
}

// HasSnapshot reports whether a snapshot document was stored.
func (a *Applicant) HasSnapshot() bool {
	return a.Snapshot != ""
}

type PersonalDetails struct {
	FullName string `json:"Full Name,omitempty" mapstructure:"Full Name"`
	Email    string `json:"Email,omitempty" mapstructure:"Email" validate:"omitempty,email"`
	Location string `json:"Location,omitempty" mapstructure:"Location"`
	LinkedIn string `json:"LinkedIn Profile,omitempty" mapstructure:"LinkedIn Profile" validate:"omitempty,url"`
}

type SalaryPreference struct {
	PreferredRate *float64 `json:"Preferred Rate,omitempty" mapstructure:"Preferred Rate" validate:"omitempty,gte=0"`
	MinimumRate   *float64 `json:"Minimum Rate,omitempty" mapstructure:"Minimum Rate" validate:"omitempty,gte=0"`
	Currency      string   `json:"Currency,omitempty" mapstructure:"Currency"`
	// Availability is hours per week or a percentage, depending on the base.
	Availability *float64 `json:"Availability,omitempty" mapstructure:"Availability" validate:"omitempty,gte=0"`
}

// WorkExperience dates are YYYY-MM-DD. An empty End means the job is ongoing.
type WorkExperience struct {
	Company      string `json:"Company,omitempty" mapstructure:"Company"`
	Title        string `json:"Title,omitempty" mapstructure:"Title"`
	Start        string `json:"Start,omitempty" mapstructure:"Start" validate:"omitempty,datetime=2006-01-02"`
	End          string `json:"End,omitempty" mapstructure:"End" validate:"omitempty,datetime=2006-01-02"`
	Technologies string `json:"Technologies,omitempty" mapstructure:"Technologies"`
}

// Lead is a shortlisted applicant.
type Lead struct {
	ApplicantRecordID string
	Snapshot          string
	Reason            string
}
