package prompt

import (
	"strings"
	"testing"

	"github.com/adam-a-i/ruya/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestRenderBaseline(t *testing.T) {
	out := Render(domain.BaselineStrategy())

	assert.Contains(t, out, "OPENING:\nHi! This is Sarah calling from Premier Realty.")
	assert.Contains(t, out, "1. What type of property are you looking for")
	assert.Contains(t, out, "3. Do you have a budget range in mind?")
	assert.Contains(t, out, "- Price concerns: I completely understand")
	assert.Contains(t, out, "Primary: I have openings this week")
	assert.Contains(t, out, "- Empathy: high")
	assert.Contains(t, out, EndCallSentinel)

	price := strings.Index(out, "Price concerns")
	timing := strings.Index(out, "Timing concerns")
	notInterested := strings.Index(out, "Not interested")
	assert.True(t, price < timing && timing < notInterested)
}

func TestRenderIsStable(t *testing.T) {
	s := domain.BaselineStrategy()
	s.ObjectionHandling["spouse_decides"] = "Happy to include them."
	s.ObjectionHandling["already_have_agent"] = "No problem at all."

	first := Render(s)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Render(s))
	}
	assert.Less(t, strings.Index(first, "Already have agent"), strings.Index(first, "Spouse decides"))
}

func TestRenderEmptyStrategy(t *testing.T) {
	assert.NotPanics(t, func() {
		out := Render(domain.Strategy{})
		assert.Contains(t, out, "QUALIFICATION QUESTIONS:")
	})
}

func TestParseReply(t *testing.T) {
	t.Run("no sentinel", func(t *testing.T) {
		r := ParseReply("  Would Thursday work for you?  ")
		assert.False(t, r.EndCall)
		assert.Equal(t, "Would Thursday work for you?", r.Text)
	})

	t.Run("sentinel stripped", func(t *testing.T) {
		r := ParseReply("Thanks for your time, have a great day! " + EndCallSentinel)
		assert.True(t, r.EndCall)
		assert.Equal(t, "Thanks for your time, have a great day!", r.Text)
		assert.NotContains(t, r.Text, "END_CALL")
	})

	t.Run("loose spelling", func(t *testing.T) {
		r := ParseReply("Goodbye. [ end_call ]")
		assert.True(t, r.EndCall)
		assert.Equal(t, "Goodbye.", r.Text)
	})
}

func TestIsOpening(t *testing.T) {
	assert.True(t, IsOpening(OpeningSentinel))
	assert.False(t, IsOpening("hello"))
}
