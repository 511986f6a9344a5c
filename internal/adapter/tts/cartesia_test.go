package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héllo", Truncate("héllo", 10))
	assert.Equal(t, "hé", Truncate("héllo", 2))

	long := strings.Repeat("ü", MaxTextRunes+10)
	out := Truncate(long, MaxTextRunes)
	assert.Equal(t, MaxTextRunes, utf8.RuneCountInString(out))
	assert.True(t, utf8.ValidString(out))
}

func TestSynthesize(t *testing.T) {
	var got cartesiaTTSRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tts/bytes", r.URL.Path)
		assert.Equal(t, "Bearer ct-key", r.Header.Get("Authorization"))
		assert.Equal(t, cartesiaVersion, r.Header.Get("Cartesia-Version"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte("ID3audio"))
	}))
	defer srv.Close()

	p := NewCartesia(Config{APIKey: "ct-key", BaseURL: srv.URL})
	out, err := p.Synthesize(context.Background(), strings.Repeat("a", MaxTextRunes+500), SynthesizeOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3audio"), out.Audio)
	assert.Equal(t, MaxTextRunes, len(got.Transcript))
	assert.Equal(t, defaultVoiceID, got.Voice.ID)
}

func TestSynthesizeErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusPaymentRequired)
	}))
	defer srv.Close()

	p := NewCartesia(Config{APIKey: "k", BaseURL: srv.URL})
	_, err := p.Synthesize(context.Background(), "hello", SynthesizeOptions{})
	assert.ErrorContains(t, err, "cartesia error 402")

	_, err = p.Synthesize(context.Background(), "   ", SynthesizeOptions{})
	assert.Error(t, err)

	assert.Nil(t, NewCartesia(Config{}))
}
