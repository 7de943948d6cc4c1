// Package synthesis decides, per screening question, what to answer and how
// confident that answer is. Low-confidence answers are escalated to the
// external assistance collaborator; when assistance is unavailable the
// field is recorded unresolved rather than guessed.
package synthesis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/api/schemas"
)

// Confidence tiers: an exact profile match outranks a keyword default,
// which outranks the generic fallback.
const (
	confidenceContact  = 0.95
	confidenceProfile  = 0.9
	confidenceDefault  = 0.65
	confidenceFallback = 0.4
	// confidenceAssistCap bounds how much the collaborator's self-reported
	// confidence is trusted after re-scoring.
	confidenceAssistCap = 0.85
)

// Synthesizer produces answer candidates for detected questions.
type Synthesizer struct {
	assist        schemas.AssistClient // nil when assistance is unavailable
	threshold     float64
	assistTimeout time.Duration
	log           *zap.Logger
}

// New creates a synthesizer. assist may be nil; the synthesizer then
// degrades to the unresolved-field path for anything below threshold.
func New(assist schemas.AssistClient, threshold float64, assistTimeout time.Duration, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{
		assist:        assist,
		threshold:     threshold,
		assistTimeout: assistTimeout,
		log:           logger.Named("synthesis"),
	}
}

// Synthesize runs the fixed pipeline: classify intent, derive a
// kind-appropriate value from the profile or a conservative safe default,
// score confidence from signal strength, and escalate to assistance when
// the gate demands it. A required field is never answered with a guess
// below threshold: with no assistance available it comes back unresolved.
func (s *Synthesizer) Synthesize(ctx context.Context, q schemas.ScreeningQuestion, profile *schemas.ApplicantProfile) schemas.AnswerCandidate {
	intent := classifyIntent(q.RawLabel)

	candidate := schemas.AnswerCandidate{
		QuestionID: q.QuestionID,
		Intent:     intent,
	}

	if text, baseConf, source, ok := s.baseAnswer(q, intent, profile); ok {
		candidate.Value, candidate.Confidence = shapeValue(q, text, baseConf)
		candidate.Source = source
	}

	needsAssist := candidate.Confidence < s.threshold || isOpenEnded(q.RawLabel)
	if !needsAssist {
		return candidate
	}

	if s.assist == nil {
		if candidate.Confidence >= s.threshold {
			// Open-ended but confidently answered from the profile; keep it.
			return candidate
		}
		s.log.Info("Assistance unavailable; recording field unresolved",
			zap.String("question_id", q.QuestionID),
			zap.String("intent", string(intent)),
			zap.Float64("confidence", candidate.Confidence))
		candidate.Unresolved = true
		return candidate
	}

	assisted, err := s.escalate(ctx, q, intent, profile)
	if err != nil {
		s.log.Warn("Assistance call failed",
			zap.String("question_id", q.QuestionID),
			zap.Error(err))
		if candidate.Confidence < s.threshold {
			candidate.Unresolved = true
		}
		return candidate
	}
	if assisted.Confidence < s.threshold {
		// The collaborator itself is unsure; prefer the unresolved path
		// over a low-confidence external guess.
		assisted.Unresolved = true
	}
	return assisted
}

// escalate submits the question and minimal applicant context to the
// assistance collaborator and re-scores the reply. The reply is never
// trusted blindly: its confidence is capped and option answers must still
// map onto a real option.
func (s *Synthesizer) escalate(ctx context.Context, q schemas.ScreeningQuestion, intent schemas.IntentCategory, profile *schemas.ApplicantProfile) (schemas.AnswerCandidate, error) {
	ctx, cancel := context.WithTimeout(ctx, s.assistTimeout)
	defer cancel()

	answer, err := s.assist.Answer(ctx, schemas.AssistRequest{
		QuestionText:   q.RawLabel,
		Kind:           q.Kind,
		Options:        q.Options,
		ProfileContext: profileContext(profile),
	})
	if err != nil {
		return schemas.AnswerCandidate{}, err
	}

	conf := answer.Confidence
	if conf > confidenceAssistCap {
		conf = confidenceAssistCap
	}
	value, conf := shapeValue(q, answer.Value, conf)

	s.log.Debug("Assistance answered question",
		zap.String("question_id", q.QuestionID),
		zap.Float64("confidence", conf))
	return schemas.AnswerCandidate{
		QuestionID: q.QuestionID,
		Intent:     intent,
		Value:      value,
		Confidence: conf,
		Source:     schemas.SourceExternalAssistance,
	}, nil
}

// baseAnswer derives the pre-escalation answer text and its confidence:
// profile match first, then the intent-specific safe default, then the
// generic fallback.
func (s *Synthesizer) baseAnswer(q schemas.ScreeningQuestion, intent schemas.IntentCategory, profile *schemas.ApplicantProfile) (string, float64, schemas.AnswerSource, bool) {
	if text, conf, ok := s.profileAnswer(q, intent, profile); ok {
		return text, conf, schemas.SourceProfileMatch, true
	}
	if text, ok := safeDefault(intent); ok {
		return text, confidenceDefault, schemas.SourceSafeDefault, true
	}
	if text, ok := genericFallback(q); ok {
		return text, confidenceFallback, schemas.SourceSafeDefault, true
	}
	return "", 0, "", false
}

// -- Profile matching --

// profileAnswer attempts a direct match from the applicant profile for the
// detected intent. Contact fields are matched regardless of intent.
func (s *Synthesizer) profileAnswer(q schemas.ScreeningQuestion, intent schemas.IntentCategory, profile *schemas.ApplicantProfile) (string, float64, bool) {
	if profile == nil {
		return "", 0, false
	}

	if text, ok := contactAnswer(q.RawLabel, profile); ok {
		return text, confidenceContact, true
	}

	lower := strings.ToLower(q.RawLabel)
	switch intent {
	case schemas.IntentQualification:
		if strings.Contains(lower, "year") && profile.TenureYears > 0 {
			return strconv.FormatFloat(profile.TenureYears, 'f', -1, 64), confidenceProfile, true
		}
		if _, ok := mentionedSkill(lower, profile); ok {
			return "Yes", confidenceProfile, true
		}
	case schemas.IntentAvailability:
		if strings.Contains(lower, "notice") && profile.NoticePeriod != "" {
			return profile.NoticePeriod, confidenceProfile, true
		}
		if profile.Availability != "" {
			return profile.Availability, confidenceProfile, true
		}
	case schemas.IntentLocation:
		if strings.Contains(lower, "relocat") && profile.WillingToRelocate != nil {
			return yesNo(*profile.WillingToRelocate), confidenceProfile, true
		}
		if profile.City != "" && (strings.Contains(lower, "city") || strings.Contains(lower, "located") || strings.Contains(lower, "location")) {
			return profile.City, confidenceProfile, true
		}
		if profile.LocationPreference != "" {
			return profile.LocationPreference, confidenceProfile, true
		}
	case schemas.IntentLegalAuthorization:
		if strings.Contains(lower, "sponsor") && profile.RequiresSponsorship != nil {
			return yesNo(*profile.RequiresSponsorship), confidenceProfile, true
		}
		// Work authorization is answered "yes" only when the profile
		// explicitly states eligibility, never inferred.
		if profile.WorkAuthorization != nil {
			return yesNo(*profile.WorkAuthorization), confidenceProfile, true
		}
	case schemas.IntentCompensation:
		if profile.CompensationExpectation > 0 {
			return strconv.Itoa(profile.CompensationExpectation), confidenceProfile, true
		}
	case schemas.IntentSkills:
		if _, ok := mentionedSkill(lower, profile); ok {
			return "Yes", confidenceProfile, true
		}
	case schemas.IntentEducation:
		if profile.EducationLevel != "" {
			return profile.EducationLevel, confidenceProfile, true
		}
	case schemas.IntentSchedule:
		if profile.Availability != "" {
			return profile.Availability, confidenceProfile, true
		}
	}
	return "", 0, false
}

// contactAnswer matches plain identity fields straight off the profile.
func contactAnswer(label string, profile *schemas.ApplicantProfile) (string, bool) {
	lower := strings.ToLower(label)
	switch {
	case strings.Contains(lower, "email") && profile.Email != "":
		return profile.Email, true
	case (strings.Contains(lower, "phone") || strings.Contains(lower, "mobile")) && profile.Phone != "":
		return profile.Phone, true
	case (strings.Contains(lower, "full name") || strings.Contains(lower, "your name")) && profile.FullName != "":
		return profile.FullName, true
	}
	return "", false
}

func mentionedSkill(lowerLabel string, profile *schemas.ApplicantProfile) (string, bool) {
	for _, skill := range profile.Skills {
		if skill != "" && strings.Contains(lowerLabel, strings.ToLower(skill)) {
			return skill, true
		}
	}
	return "", false
}

// -- Defaults --

// safeDefault applies a conservative, intent-specific default. Legal
// authorization and compensation have no safe default: guessing either is
// worse than escalating.
func safeDefault(intent schemas.IntentCategory) (string, bool) {
	switch intent {
	case schemas.IntentCommitment:
		return "Yes", true
	case schemas.IntentSchedule:
		return "Yes", true
	case schemas.IntentAvailability:
		return "Two weeks", true
	default:
		return "", false
	}
}

// genericFallback produces a below-threshold placeholder answer whose only
// purpose is to carry the question into the escalation path with a value
// shape already derived.
func genericFallback(q schemas.ScreeningQuestion) (string, bool) {
	switch q.Kind {
	case schemas.ControlSelect, schemas.ControlRadioGroup:
		for _, opt := range q.Options {
			if !opt.Disabled {
				return opt.Value, true
			}
		}
		return "", false
	case schemas.ControlCheckbox:
		return "false", true
	case schemas.ControlRange:
		return "", false
	default:
		return "", false
	}
}

// -- Value shaping --

// shapeValue converts a textual answer into the control-kind-appropriate
// value. For enumerable kinds the text must map onto a real option; a poor
// mapping lowers confidence so the gate can catch it.
func shapeValue(q schemas.ScreeningQuestion, text string, conf float64) (schemas.AnswerValue, float64) {
	switch q.Kind {
	case schemas.ControlSelect, schemas.ControlRadioGroup:
		option, quality := chooseOption(q.Options, text)
		if option == "" {
			return schemas.AnswerValue{Kind: q.Kind}, 0
		}
		return schemas.AnswerValue{Kind: q.Kind, Option: option}, conf * quality
	case schemas.ControlCheckbox:
		return schemas.AnswerValue{Kind: q.Kind, Checked: truthy(text)}, conf
	case schemas.ControlRange:
		if _, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err != nil {
			return schemas.AnswerValue{Kind: q.Kind}, 0
		}
		return schemas.AnswerValue{Kind: q.Kind, Text: strings.TrimSpace(text)}, conf
	case schemas.ControlFile:
		return schemas.AnswerValue{Kind: q.Kind, FilePath: text}, conf
	default:
		return schemas.AnswerValue{Kind: q.Kind, Text: text}, conf
	}
}

// chooseOption maps answer text onto the closest available option and
// reports the mapping quality in (0,1].
func chooseOption(options []schemas.QuestionOption, text string) (string, float64) {
	want := strings.ToLower(strings.TrimSpace(text))
	if want == "" {
		return "", 0
	}

	// Exact value or label match first.
	for _, opt := range options {
		if opt.Disabled {
			continue
		}
		if strings.EqualFold(opt.Value, want) || strings.EqualFold(opt.Label, want) {
			return opt.Value, 1.0
		}
	}
	// Substring match either direction.
	for _, opt := range options {
		if opt.Disabled {
			continue
		}
		label := strings.ToLower(opt.Label)
		value := strings.ToLower(opt.Value)
		if strings.Contains(label, want) || strings.Contains(want, label) ||
			strings.Contains(value, want) || strings.Contains(want, value) {
			return opt.Value, 0.8
		}
	}
	// Yes/no style normalization.
	if truthy(want) || want == "no" || want == "false" {
		for _, opt := range options {
			if opt.Disabled {
				continue
			}
			label := strings.ToLower(opt.Label)
			if truthy(want) && (label == "yes" || strings.HasPrefix(label, "yes")) {
				return opt.Value, 0.9
			}
			if !truthy(want) && (label == "no" || strings.HasPrefix(label, "no")) {
				return opt.Value, 0.9
			}
		}
	}
	return "", 0
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "y", "1":
		return true
	}
	return false
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// profileContext renders the minimal applicant context shared with the
// assistance collaborator. Only coarse, answer-relevant facts are included,
// never the full profile.
func profileContext(p *schemas.ApplicantProfile) string {
	if p == nil {
		return ""
	}
	var parts []string
	if p.TenureYears > 0 {
		parts = append(parts, fmt.Sprintf("%.0f years of experience", p.TenureYears))
	}
	if len(p.Skills) > 0 {
		parts = append(parts, "skills: "+strings.Join(p.Skills, ", "))
	}
	if p.EducationLevel != "" {
		parts = append(parts, "education: "+p.EducationLevel)
	}
	if p.Availability != "" {
		parts = append(parts, "availability: "+p.Availability)
	}
	if p.LocationPreference != "" {
		parts = append(parts, "location preference: "+p.LocationPreference)
	}
	return strings.Join(parts, "; ")
}
