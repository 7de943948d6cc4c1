package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/api/schemas"
)

func snapshotOf(t *testing.T, body string) *schemas.Snapshot {
	t.Helper()
	snap, err := schemas.ParseSnapshot("https://jobs.example.com/apply/personal", body, time.Now())
	require.NoError(t, err)
	return snap
}

func TestDetectFailures(t *testing.T) {
	h := NewHandler(zap.NewNop())

	t.Run("aria-invalid on the control", func(t *testing.T) {
		snap := snapshotOf(t, `
			<html><body>
			  <input type="tel" name="phone" aria-invalid="true" aria-describedby="phone-err">
			  <span id="phone-err">Enter a valid phone number</span>
			</body></html>`)

		failures := h.DetectFailures(snap)
		require.Len(t, failures, 1)
		assert.Equal(t, "phone", failures[0].FieldID)
		assert.Equal(t, schemas.DetectedViaInvalidState, failures[0].DetectedVia)
		assert.Equal(t, "Enter a valid phone number", failures[0].Message)
	})

	t.Run("error-styled sibling resolves to its control", func(t *testing.T) {
		snap := snapshotOf(t, `
			<html><body>
			  <div>
			    <input type="email" name="email" value="PAT@EXAMPLE.COM ">
			    <div class="field-error">Invalid email address</div>
			  </div>
			</body></html>`)

		failures := h.DetectFailures(snap)
		require.Len(t, failures, 1)
		assert.Equal(t, "email", failures[0].FieldID)
		assert.Equal(t, schemas.DetectedViaErrorStyling, failures[0].DetectedVia)
		assert.Equal(t, "Invalid email address", failures[0].Message)
	})

	t.Run("alert role with aria-describedby back-reference", func(t *testing.T) {
		snap := snapshotOf(t, `
			<html><body>
			  <input type="url" name="portfolio" aria-describedby="alert-1">
			  <div role="alert" id="alert-1">Enter a valid URL</div>
			</body></html>`)

		failures := h.DetectFailures(snap)
		require.Len(t, failures, 1)
		assert.Equal(t, "portfolio", failures[0].FieldID)
		assert.Equal(t, schemas.DetectedViaAlertRole, failures[0].DetectedVia)
	})

	t.Run("strategies merge with OR semantics, first match wins per field", func(t *testing.T) {
		// The phone field trips both the invalid-state and error-styling
		// strategies; it must be reported once, attributed to the first.
		snap := snapshotOf(t, `
			<html><body>
			  <div>
			    <input type="tel" name="phone" aria-invalid="true">
			    <div class="error">Bad phone</div>
			  </div>
			  <div>
			    <input type="text" name="city">
			    <div class="invalid-feedback">City is required</div>
			  </div>
			</body></html>`)

		failures := h.DetectFailures(snap)
		require.Len(t, failures, 2)
		assert.Equal(t, "phone", failures[0].FieldID)
		assert.Equal(t, schemas.DetectedViaInvalidState, failures[0].DetectedVia)
		assert.Equal(t, "city", failures[1].FieldID)
		assert.Equal(t, schemas.DetectedViaErrorStyling, failures[1].DetectedVia)
	})

	t.Run("clean page reports nothing", func(t *testing.T) {
		snap := snapshotOf(t, `<html><body><input type="text" name="ok" value="fine"></body></html>`)
		assert.Empty(t, h.DetectFailures(snap))
	})
}

func TestSuggestCorrection(t *testing.T) {
	h := NewHandler(zap.NewNop())

	t.Run("phone reformats to NANP style", func(t *testing.T) {
		failure := &schemas.ValidationFailure{
			FieldID: "phone", Message: "Enter a valid phone number",
		}
		got := h.SuggestCorrection(failure, "1234567890")
		require.NotNil(t, got)
		assert.Equal(t, "(123) 456-7890", *got)
		require.NotNil(t, failure.SuggestedCorrection, "the suggestion is recorded on the failure")
		assert.Equal(t, *got, *failure.SuggestedCorrection)
	})

	t.Run("leading country code is stripped", func(t *testing.T) {
		got := h.SuggestCorrection(&schemas.ValidationFailure{
			FieldID: "mobile_number", Message: "invalid",
		}, "1-555-010-2030")
		require.NotNil(t, got)
		assert.Equal(t, "(555) 010-2030", *got)
	})

	t.Run("unparseable phone yields no suggestion", func(t *testing.T) {
		got := h.SuggestCorrection(&schemas.ValidationFailure{
			FieldID: "phone", Message: "invalid",
		}, "12345")
		assert.Nil(t, got)
	})

	t.Run("email is lowercased and trimmed", func(t *testing.T) {
		got := h.SuggestCorrection(&schemas.ValidationFailure{
			FieldID: "email", Message: "Invalid email",
		}, " PAT@Example.COM ")
		require.NotNil(t, got)
		assert.Equal(t, "pat@example.com", *got)
	})

	t.Run("bare domain gains a scheme", func(t *testing.T) {
		got := h.SuggestCorrection(&schemas.ValidationFailure{
			FieldID: "portfolio", Message: "Enter a valid URL for your website",
		}, "example.com/work")
		require.NotNil(t, got)
		assert.Equal(t, "https://example.com/work", *got)
	})

	t.Run("unknown semantics pass through with no suggestion", func(t *testing.T) {
		got := h.SuggestCorrection(&schemas.ValidationFailure{
			FieldID: "favorite_color", Message: "This field is required",
		}, "")
		assert.Nil(t, got)
	})
}
