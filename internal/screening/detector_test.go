package screening

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/api/schemas"
)

const screeningPage = `
<html><body>
  <form>
    <label for="full-name">Full Name</label>
    <input type="text" id="full-name" name="full_name" required>

    <fieldset>
      <legend>Are you legally authorized to work in Canada?</legend>
      <input type="radio" name="work_auth" value="yes" id="wa-yes" required>
      <label for="wa-yes">Yes</label>
      <input type="radio" name="work_auth" value="no" id="wa-no">
      <label for="wa-no">No</label>
    </fieldset>

    <label for="edu">Highest level of education</label>
    <select id="edu" name="education" required>
      <option value="">Select...</option>
      <option value="bachelors">Bachelor's degree</option>
      <option value="masters">Master's degree</option>
    </select>

    <label for="pitch">Tell us about a project you are proud of</label>
    <textarea id="pitch" name="pitch"></textarea>

    <label for="resume">Resume</label>
    <input type="file" id="resume" name="resume_upload" required>

    <input type="checkbox" id="terms" name="accept_terms" required>
    <label for="terms">I agree to the terms</label>

    <input type="hidden" name="csrf" value="tok">
  </form>
</body></html>`

func detect(t *testing.T, body string) []schemas.ScreeningQuestion {
	t.Helper()
	snap, err := schemas.ParseSnapshot("https://jobs.example.com/apply/screening", body, time.Now())
	require.NoError(t, err)
	return NewDetector(zap.NewNop()).DetectQuestions(snap)
}

func TestDetectQuestions(t *testing.T) {
	questions := detect(t, screeningPage)
	require.Len(t, questions, 6)

	byID := map[string]schemas.ScreeningQuestion{}
	for _, q := range questions {
		byID[q.QuestionID] = q
	}

	t.Run("document order is preserved", func(t *testing.T) {
		var ids []string
		for _, q := range questions {
			ids = append(ids, q.QuestionID)
		}
		assert.Equal(t, []string{"full_name", "work_auth", "education", "pitch", "resume_upload", "accept_terms"}, ids)
	})

	t.Run("radio inputs collapse into one group question", func(t *testing.T) {
		q, ok := byID["work_auth"]
		require.True(t, ok)
		assert.Equal(t, schemas.ControlRadioGroup, q.Kind)
		assert.Equal(t, "work_auth", q.GroupName)
		assert.True(t, q.Required, "one required option marks the group required")
		assert.Equal(t, "Are you legally authorized to work in Canada?", q.RawLabel)
		require.Len(t, q.Options, 2)
		assert.Equal(t, "yes", q.Options[0].Value)
		assert.Equal(t, "Yes", q.Options[0].Label)
	})

	t.Run("select options skip the placeholder row", func(t *testing.T) {
		q := byID["education"]
		assert.Equal(t, schemas.ControlSelect, q.Kind)
		require.Len(t, q.Options, 2)
		assert.Equal(t, "bachelors", q.Options[0].Value)
	})

	t.Run("labels resolve through label[for]", func(t *testing.T) {
		assert.Equal(t, "Full Name", byID["full_name"].RawLabel)
		assert.Equal(t, "Tell us about a project you are proud of", byID["pitch"].RawLabel)
	})

	t.Run("file and checkbox controls are detected", func(t *testing.T) {
		assert.Equal(t, schemas.ControlFile, byID["resume_upload"].Kind)
		assert.Equal(t, schemas.ControlCheckbox, byID["accept_terms"].Kind)
		assert.True(t, byID["accept_terms"].Required)
	})

	t.Run("hidden inputs are ignored", func(t *testing.T) {
		_, found := byID["csrf"]
		assert.False(t, found)
	})
}

func TestDetectQuestionsLabelFallbacks(t *testing.T) {
	t.Run("aria-label wins when no label element exists", func(t *testing.T) {
		questions := detect(t, `<html><body><input type="text" name="loc" aria-label="Current city"></body></html>`)
		require.Len(t, questions, 1)
		assert.Equal(t, "Current city", questions[0].RawLabel)
	})

	t.Run("preceding text is the catch-all", func(t *testing.T) {
		questions := detect(t, `<html><body><p>Expected salary (CAD)</p><input type="number" name="salary"></body></html>`)
		require.Len(t, questions, 1)
		assert.Equal(t, "Expected salary (CAD)", questions[0].RawLabel)
	})

	t.Run("aria-required marks a question required", func(t *testing.T) {
		questions := detect(t, `<html><body><input type="text" name="x" aria-required="true"></body></html>`)
		require.Len(t, questions, 1)
		assert.True(t, questions[0].Required)
	})
}

func TestDetectQuestionsNamelessRadioGroup(t *testing.T) {
	questions := detect(t, `<html><body>
	  <p>Preferred shift</p>
	  <input type="radio" id="shift-day" value="day">
	  <label for="shift-day">Day</label>
	</body></html>`)
	require.Len(t, questions, 1)
	assert.Equal(t, schemas.ControlRadioGroup, questions[0].Kind)
	assert.Empty(t, questions[0].GroupName)
}

func TestDetectQuestionsEmptyPage(t *testing.T) {
	questions := detect(t, `<html><body><p>Thanks for applying!</p></body></html>`)
	assert.Empty(t, questions)
}
