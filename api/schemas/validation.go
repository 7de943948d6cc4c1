package schemas

// -- Validation Schemas --

// DetectionStrategy identifies which scan flagged a field as rejected.
// Portals are inconsistent about which signal they expose, so the handler
// runs all strategies and merges with OR semantics: any strategy reporting a
// failure counts as a failure.
type DetectionStrategy string

const (
	// DetectedViaInvalidState matches explicit invalid-state markup
	// (aria-invalid, data-invalid and friends) on the control itself.
	DetectedViaInvalidState DetectionStrategy = "invalid_state"
	// DetectedViaErrorStyling matches error-styled elements adjacent to a
	// field (class names carrying "error"/"invalid").
	DetectedViaErrorStyling DetectionStrategy = "error_styling"
	// DetectedViaAlertRole matches alert-role announcements referencing a
	// field.
	DetectedViaAlertRole DetectionStrategy = "alert_role"
)

// ValidationFailure is one rejected field after a submission attempt.
type ValidationFailure struct {
	FieldID     string            `json:"field_id"`
	Selector    string            `json:"selector"`
	Message     string            `json:"message,omitempty"`
	DetectedVia DetectionStrategy `json:"detected_via"`
	// SuggestedCorrection is populated only for the narrow set of field
	// semantics the handler knows how to normalize (phone, email, URL).
	SuggestedCorrection *string `json:"suggested_correction,omitempty"`
	AttemptCount        int     `json:"attempt_count"`
}
