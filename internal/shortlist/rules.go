// Package shortlist decides which applicants become leads.
package shortlist

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/spigell/applicant-pipeline/internal/applicant"
	"github.com/spigell/applicant-pipeline/internal/snapshot"
)

const dateLayout = "2006-01-02"

var validate = validator.New()

// Rules are the shortlisting thresholds.
type Rules struct {
	MinExperienceYears float64  `mapstructure:"min_experience_years" validate:"gte=0"`
	TierOneCompanies   []string `mapstructure:"tier_one_companies"`
	MaxPreferredRate   float64  `mapstructure:"max_preferred_rate" validate:"gte=0"`
	MinHoursAvailable  float64  `mapstructure:"min_hours_available" validate:"gte=0"`
	Locations          []string `mapstructure:"location" validate:"min=1"`
}

func (r Rules) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("shortlist rules: %w", err)
	}
	return nil
}

// LookupError means the snapshot lacks data a rule needs.
type LookupError struct {
	Category string
	Field    string
}

func (e *LookupError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("snapshot has no %s", e.Category)
	}
	return fmt.Sprintf("snapshot has no %s in %s", e.Field, e.Category)
}

// Rule names in evaluation order.
const (
	RuleExperience   = "experience"
	RuleCompensation = "compensation"
	RuleLocation     = "location"
)

type Decision struct {
	Qualified bool
	// FailedRule is set when the applicant did not qualify.
	FailedRule string
	Years      float64
	Companies  []string
	Reason     string
}

// TotalYears sums the whole days of every entry and converts them to years
// rounded to two decimals. Overlapping jobs are counted twice. An entry
// without End runs until now, an entry without Start is ignored.
func TotalYears(entries []*applicant.WorkExperience, now time.Time) (float64, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	days := 0
	for _, entry := range entries {
		if entry == nil || entry.Start == "" {
			continue
		}

		start, err := time.Parse(dateLayout, entry.Start)
		if err != nil {
			return 0, fmt.Errorf("start of %q: %w", entry.Company, err)
		}

		end := today
		if entry.End != "" {
			if end, err = time.Parse(dateLayout, entry.End); err != nil {
				return 0, fmt.Errorf("end of %q: %w", entry.Company, err)
			}
		}

		days += int(math.Floor(end.Sub(start).Hours() / 24))
	}

	return math.Round(float64(days)/365*100) / 100, nil
}

// Evaluate applies the rules in order and stops at the first one that fails.
func (r Rules) Evaluate(doc *snapshot.Document, now time.Time) (*Decision, error) {
	years, err := TotalYears(doc.WorkExperience, now)
	if err != nil {
		return nil, err
	}

	decision := &Decision{Years: years, Companies: companies(doc.WorkExperience)}

	if years < r.MinExperienceYears && !r.hasTierOne(decision.Companies) {
		decision.FailedRule = RuleExperience
		return decision, nil
	}

	salary := doc.SalaryPreference
	if salary == nil {
		return nil, &LookupError{Category: "salary preference"}
	}
	if salary.PreferredRate == nil {
		return nil, &LookupError{Category: "salary preference", Field: "Preferred Rate"}
	}
	if salary.Availability == nil {
		return nil, &LookupError{Category: "salary preference", Field: "Availability"}
	}
	if *salary.PreferredRate > r.MaxPreferredRate || *salary.Availability < r.MinHoursAvailable {
		decision.FailedRule = RuleCompensation
		return decision, nil
	}

	personal := doc.PersonalDetails
	if personal == nil {
		return nil, &LookupError{Category: "personal details"}
	}
	if personal.Location == "" {
		return nil, &LookupError{Category: "personal details", Field: "Location"}
	}
	if !contains(r.Locations, personal.Location) {
		decision.FailedRule = RuleLocation
		return decision, nil
	}

	decision.Qualified = true
	decision.Reason = fmt.Sprintf("Location: %s, Total Experience: %s years, Companies: [%s], Preferred Rate: %s, Availability: %s",
		personal.Location,
		formatYears(years),
		strings.Join(decision.Companies, ", "),
		formatNumber(*salary.PreferredRate),
		formatNumber(*salary.Availability),
	)

	return decision, nil
}

func (r Rules) hasTierOne(companies []string) bool {
	for _, company := range companies {
		if contains(r.TierOneCompanies, company) {
			return true
		}
	}
	return false
}

func companies(entries []*applicant.WorkExperience) []string {
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry != nil && entry.Company != "" {
			names = append(names, entry.Company)
		}
	}
	return names
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatYears always keeps a fractional part, so 2 years reads "2.0".
func formatYears(v float64) string {
	s := formatNumber(v)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
