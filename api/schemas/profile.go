package schemas

// -- Applicant Profile --

// ApplicantProfile is the structured, read-only record the engine consults
// when synthesizing answers. The engine never writes to the profile store.
type ApplicantProfile struct {
	ApplicantID string `json:"applicant_id"`
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`

	Skills          []string `json:"skills"`
	TenureYears     float64  `json:"tenure_years"`
	EducationLevel  string   `json:"education_level"`
	Availability    string   `json:"availability"`
	NoticePeriod    string   `json:"notice_period"`

	// WorkAuthorization is tri-state: nil means the profile does not state
	// eligibility, and the synthesizer never infers it.
	WorkAuthorization *bool `json:"work_authorization,omitempty"`
	RequiresSponsorship *bool `json:"requires_sponsorship,omitempty"`

	LocationPreference string `json:"location_preference"`
	City               string `json:"city"`
	WillingToRelocate  *bool  `json:"willing_to_relocate,omitempty"`

	// CompensationExpectation is an annual figure in the portal currency;
	// zero means unstated.
	CompensationExpectation int `json:"compensation_expectation"`
}
