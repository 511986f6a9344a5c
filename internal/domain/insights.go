package domain

import (
	"encoding/json"
	"math"
	"time"
)

const (
	MinEngagementScore     = 1
	MaxEngagementScore     = 10
	DefaultEngagementScore = 5
)

// CallInsights is the structured evaluation of one session's transcript.
type CallInsights struct {
	SessionID         string    `json:"session_id"`
	SentimentChanges  []string  `json:"sentiment_changes"`
	Objections        []string  `json:"objections"`
	DropOffPoint      string    `json:"drop_off_point"`
	EngagementScore   int       `json:"engagement_score"`
	OutcomeSummary    string    `json:"outcome_summary"`
	AppointmentBooked bool      `json:"appointment_booked"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ClampEngagement rounds and clamps a score into [1,10].
// Bounds are checked on the float so huge values never reach the int conversion.
func ClampEngagement(v float64) int {
	switch {
	case math.IsNaN(v):
		return DefaultEngagementScore
	case v >= MaxEngagementScore:
		return MaxEngagementScore
	case v <= MinEngagementScore:
		return MinEngagementScore
	}
	return int(math.Round(v))
}

// ParseInsights decodes a reasoning reply into insights. Each field is read on
// its own; anything missing or unreadable takes its default.
func ParseInsights(sessionID, content string) CallInsights {
	out := CallInsights{
		SessionID:        sessionID,
		SentimentChanges: []string{},
		Objections:       []string{},
		EngagementScore:  DefaultEngagementScore,
	}
	fields := decodeObject([]byte(content))
	if fields == nil {
		return out
	}

	out.SentimentChanges = lenientList(fields["sentiment_changes"])
	out.Objections = lenientList(fields["objections"])
	out.DropOffPoint = lenientString(fields["drop_off_point"])
	out.OutcomeSummary = lenientString(fields["outcome_summary"])
	out.AppointmentBooked = lenientBool(fields["appointment_booked"])
	if score, ok := lenientNumber(fields["engagement_score"]); ok {
		out.EngagementScore = ClampEngagement(score)
	}
	return out
}

// CallAnalysis is the document stored on a call record by the webhook path.
type CallAnalysis struct {
	Objections             []string `json:"objections"`
	EmotionalTone          string   `json:"emotional_tone"`
	EngagementScore        int      `json:"engagement_score"`
	ConversionProbability  float64  `json:"conversion_probability"`
	Strengths              []string `json:"strengths"`
	Weaknesses             []string `json:"weaknesses"`
	KeyMoments             []string `json:"key_moments"`
	ImprovementSuggestions []string `json:"improvement_suggestions"`
	AppointmentBooked      bool     `json:"appointment_booked"`
	OutcomeSummary         string   `json:"outcome_summary,omitempty"`
}

// ParseCallAnalysis decodes a call analysis with the same per-field leniency as insights.
func ParseCallAnalysis(content string) CallAnalysis {
	out := CallAnalysis{
		Objections:             []string{},
		Strengths:              []string{},
		Weaknesses:             []string{},
		KeyMoments:             []string{},
		ImprovementSuggestions: []string{},
		EngagementScore:        DefaultEngagementScore,
	}
	fields := decodeObject([]byte(content))
	if fields == nil {
		return out
	}
	out.Objections = lenientList(fields["objections"])
	out.EmotionalTone = lenientString(fields["emotional_tone"])
	out.Strengths = lenientList(fields["strengths"])
	out.Weaknesses = lenientList(fields["weaknesses"])
	out.KeyMoments = lenientList(fields["key_moments"])
	out.ImprovementSuggestions = lenientList(fields["improvement_suggestions"])
	out.AppointmentBooked = lenientBool(fields["appointment_booked"])
	out.OutcomeSummary = lenientString(fields["outcome_summary"])
	if score, ok := lenientNumber(fields["engagement_score"]); ok {
		out.EngagementScore = ClampEngagement(score)
	}
	if p, ok := lenientNumber(fields["conversion_probability"]); ok {
		out.ConversionProbability = math.Max(0, math.Min(1, p))
	}
	return out
}

// AnalysisFromInsights converts session insights into the call record analysis shape.
func AnalysisFromInsights(in CallInsights) CallAnalysis {
	return CallAnalysis{
		Objections:             in.Objections,
		EmotionalTone:          lastOr(in.SentimentChanges, ""),
		EngagementScore:        in.EngagementScore,
		Strengths:              []string{},
		Weaknesses:             []string{},
		KeyMoments:             keyMoments(in),
		ImprovementSuggestions: []string{},
		AppointmentBooked:      in.AppointmentBooked,
		OutcomeSummary:         in.OutcomeSummary,
	}
}

func keyMoments(in CallInsights) []string {
	if in.DropOffPoint == "" {
		return []string{}
	}
	return []string{"drop-off: " + in.DropOffPoint}
}

func lastOr(items []string, def string) string {
	if len(items) == 0 {
		return def
	}
	return items[len(items)-1]
}

// MarshalAnalysis encodes an analysis for storage.
func MarshalAnalysis(a CallAnalysis) json.RawMessage {
	b, _ := json.Marshal(a)
	return b
}
