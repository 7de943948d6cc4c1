package schemas

// -- Screening Question Schemas --

// ControlKind is the closed set of form control types the engine understands.
// Every consumer (detector, synthesizer, validator) switches exhaustively on
// this union instead of inspecting raw markup at decision time.
type ControlKind string

const (
	ControlText       ControlKind = "text"
	ControlTextArea   ControlKind = "textarea"
	ControlSelect     ControlKind = "select"
	ControlRadioGroup ControlKind = "radio_group"
	ControlCheckbox   ControlKind = "checkbox"
	ControlFile       ControlKind = "file"
	ControlRange      ControlKind = "range"
)

// QuestionOption is one choice of an enumerable control.
type QuestionOption struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Disabled bool   `json:"disabled,omitempty"`
}

// ScreeningQuestion is one detected question on the current page. It is
// created fresh per page visit and not persisted beyond the page except as
// part of the checkpoint once answered.
type ScreeningQuestion struct {
	// QuestionID is stable within the page (derived from name/id/position).
	QuestionID string `json:"question_id"`
	RawLabel   string `json:"raw_label"`
	Kind       ControlKind `json:"control_kind"`
	Required   bool        `json:"required"`
	// Options is populated for enumerable kinds (select, radio_group).
	Options []QuestionOption `json:"options,omitempty"`
	// GroupName is the shared name attribute of a radio_group's options;
	// empty when the group is nameless and cannot be addressed per option.
	GroupName string `json:"group_name,omitempty"`
	// Selector is the XPath used to target the control for interaction.
	Selector string `json:"selector"`
	// DocumentOrder positions the question for deterministic
	// answer-then-validate sequencing.
	DocumentOrder int `json:"document_order"`
}

// -- Answer Schemas --

// IntentCategory is a coarse classification of what a screening question is
// really asking.
type IntentCategory string

const (
	IntentQualification      IntentCategory = "qualification"
	IntentAvailability       IntentCategory = "availability"
	IntentLocation           IntentCategory = "location"
	IntentLegalAuthorization IntentCategory = "legal_authorization"
	IntentCompensation       IntentCategory = "compensation"
	IntentSkills             IntentCategory = "skills"
	IntentCultureFit         IntentCategory = "culture_fit"
	IntentCommitment         IntentCategory = "commitment"
	IntentEducation          IntentCategory = "education"
	IntentSchedule           IntentCategory = "schedule"
	IntentUnknown            IntentCategory = "unknown"
)

// AnswerSource records how an answer value was produced.
type AnswerSource string

const (
	SourceProfileMatch       AnswerSource = "profile_match"
	SourceSafeDefault        AnswerSource = "safe_default"
	SourceExternalAssistance AnswerSource = "external_assistance"
)

// AnswerValue is the control-kind-appropriate value for one question.
// Exactly one of the payload fields is meaningful for a given Kind.
type AnswerValue struct {
	Kind ControlKind `json:"kind"`
	// Text carries the value for text, textarea and range controls.
	Text string `json:"text,omitempty"`
	// Option carries the selected option value for select and radio_group.
	Option string `json:"option,omitempty"`
	// Checked carries the state for checkbox controls.
	Checked bool `json:"checked,omitempty"`
	// FilePath carries the file to attach for file controls.
	FilePath string `json:"file_path,omitempty"`
}

// Flat returns a single-string rendering of the value, used for the
// checkpoint payload and for logging.
func (v AnswerValue) Flat() string {
	switch v.Kind {
	case ControlSelect, ControlRadioGroup:
		return v.Option
	case ControlCheckbox:
		if v.Checked {
			return "true"
		}
		return "false"
	case ControlFile:
		return v.FilePath
	default:
		return v.Text
	}
}

// AnswerCandidate is the synthesizer's output for one question.
type AnswerCandidate struct {
	QuestionID string         `json:"question_id"`
	Intent     IntentCategory `json:"intent_category"`
	Value      AnswerValue    `json:"value"`
	// Confidence is a [0,1] score of how reliable the value is.
	Confidence float64      `json:"confidence"`
	Source     AnswerSource `json:"source"`
	// Unresolved marks a question the synthesizer declined to answer: the
	// confidence gate failed and no assistance was available.
	Unresolved bool `json:"unresolved,omitempty"`
}
