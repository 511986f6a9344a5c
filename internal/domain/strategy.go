package domain

import (
	"fmt"
	"time"
)

// Known objection handling keys. Other keys are allowed and rendered after these.
const (
	ObjectionPrice         = "price"
	ObjectionTiming        = "timing"
	ObjectionNotInterested = "not_interested"
)

// Strategy is the structured conversation plan rendered into the agent's system prompt.
type Strategy struct {
	Description       string            `json:"description,omitempty"`
	Opening           Opening           `json:"opening"`
	Qualification     Qualification     `json:"qualification"`
	ObjectionHandling map[string]string `json:"objection_handling"`
	CallToAction      CallToAction      `json:"call_to_action"`
	Tone              Tone              `json:"tone"`
}

type Opening struct {
	Greeting string `json:"greeting"`
	Intro    string `json:"intro"`
}

type Qualification struct {
	Questions []string `json:"questions"`
}

type CallToAction struct {
	MainCTA        string `json:"main_cta"`
	AlternativeCTA string `json:"alternative_cta"`
}

type Tone struct {
	Style   string `json:"style"`
	Pace    string `json:"pace"`
	Empathy string `json:"empathy"`
}

// StrategyVersion is one snapshot of a strategy plus its counters.
type StrategyVersion struct {
	ID             string    `json:"id"`
	Version        string    `json:"version"`
	Content        Strategy  `json:"strategy"`
	IsActive       bool      `json:"is_active"`
	TotalCalls     int       `json:"total_calls"`
	TotalBookings  int       `json:"total_bookings"`
	ConversionRate float64   `json:"conversion_rate"`
	CreatedAt      time.Time `json:"created_at"`
}

// ConversionRate computes bookings over calls, zero when there are no calls.
func ConversionRate(calls, bookings int) float64 {
	if calls <= 0 {
		return 0
	}
	return float64(bookings) / float64(calls)
}

// BaselineStrategy is the v1.0 real estate strategy created when the store is empty.
func BaselineStrategy() Strategy {
	return Strategy{
		Description: "Baseline real estate agent - conversational and professional",
		Opening: Opening{
			Greeting: "Hi! This is Sarah calling from Premier Realty. How are you doing today?",
			Intro:    "I saw you expressed interest in viewing properties in the area. I have some amazing listings that just came on the market that I think you would love.",
		},
		Qualification: Qualification{Questions: []string{
			"What type of property are you looking for - a house, condo, or townhouse?",
			"What is your ideal timeline for moving?",
			"Do you have a budget range in mind?",
		}},
		ObjectionHandling: map[string]string{
			ObjectionPrice:         "I completely understand budget is important. These properties actually offer great value for the area, and I can show you the comparable sales data. Would it help to see them in person?",
			ObjectionTiming:        "No pressure at all! Even if you are just starting to look, seeing properties now gives you a better sense of what is out there. Would a quick 20-minute viewing work for you?",
			ObjectionNotInterested: "I appreciate your honesty. Can I ask what changed? Maybe I can find something more aligned with what you are looking for.",
		},
		CallToAction: CallToAction{
			MainCTA:        "I have openings this week - would Thursday afternoon or Saturday morning work better for you?",
			AlternativeCTA: "If this week is too soon, I can send you photos and schedule something for next week. What works best?",
		},
		Tone: Tone{
			Style:   "friendly, professional, consultative",
			Pace:    "moderate - give space for responses",
			Empathy: "high - acknowledge concerns genuinely",
		},
	}
}

// WithDefaults returns a copy of s where every empty field is taken from base.
func (s Strategy) WithDefaults(base Strategy) Strategy {
	out := s
	if out.Description == "" {
		out.Description = base.Description
	}
	if out.Opening.Greeting == "" {
		out.Opening.Greeting = base.Opening.Greeting
	}
	if out.Opening.Intro == "" {
		out.Opening.Intro = base.Opening.Intro
	}
	if len(out.Qualification.Questions) == 0 {
		out.Qualification.Questions = append([]string(nil), base.Qualification.Questions...)
	}
	merged := make(map[string]string, len(base.ObjectionHandling)+len(out.ObjectionHandling))
	for k, v := range base.ObjectionHandling {
		merged[k] = v
	}
	for k, v := range out.ObjectionHandling {
		if v != "" {
			merged[k] = v
		}
	}
	out.ObjectionHandling = merged
	if out.CallToAction.MainCTA == "" {
		out.CallToAction.MainCTA = base.CallToAction.MainCTA
	}
	if out.CallToAction.AlternativeCTA == "" {
		out.CallToAction.AlternativeCTA = base.CallToAction.AlternativeCTA
	}
	if out.Tone.Style == "" {
		out.Tone.Style = base.Tone.Style
	}
	if out.Tone.Pace == "" {
		out.Tone.Pace = base.Tone.Pace
	}
	if out.Tone.Empathy == "" {
		out.Tone.Empathy = base.Tone.Empathy
	}
	return out
}

// DecodeStrategy reads a strategy document. The document must be a JSON object;
// individual fields are read leniently and unknown fields are ignored.
func DecodeStrategy(raw []byte) (Strategy, error) {
	fields := decodeObject(raw)
	if fields == nil {
		return Strategy{}, fmt.Errorf("%w: strategy must be a JSON object", ErrInvalidInput)
	}

	s := Strategy{Description: lenientString(fields["description"])}

	if opening := decodeObject(fields["opening"]); opening != nil {
		s.Opening.Greeting = lenientString(opening["greeting"])
		s.Opening.Intro = lenientString(opening["intro"])
	} else {
		s.Opening.Greeting = lenientString(fields["opening"])
	}

	if q := decodeObject(fields["qualification"]); q != nil {
		s.Qualification.Questions = lenientList(q["questions"])
	} else {
		s.Qualification.Questions = lenientList(fields["qualification"])
	}

	if oh := decodeObject(fields["objection_handling"]); oh != nil {
		s.ObjectionHandling = make(map[string]string, len(oh))
		for k, v := range oh {
			if text := lenientString(v); text != "" {
				s.ObjectionHandling[k] = text
			}
		}
	}

	if cta := decodeObject(fields["call_to_action"]); cta != nil {
		s.CallToAction.MainCTA = lenientString(cta["main_cta"])
		s.CallToAction.AlternativeCTA = lenientString(cta["alternative_cta"])
	} else {
		s.CallToAction.MainCTA = lenientString(fields["call_to_action"])
	}

	if tone := decodeObject(fields["tone"]); tone != nil {
		s.Tone.Style = lenientString(tone["style"])
		s.Tone.Pace = lenientString(tone["pace"])
		s.Tone.Empathy = lenientString(tone["empathy"])
	} else {
		s.Tone.Style = lenientString(fields["tone"])
	}

	return s, nil
}

// UnmarshalJSON decodes leniently so stored and proposed documents share one path.
func (s *Strategy) UnmarshalJSON(b []byte) error {
	decoded, err := DecodeStrategy(b)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}
