// Package tts synthesizes agent replies into audio.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxTextRunes caps the text sent to the synthesis service.
const MaxTextRunes = 2500

const (
	cartesiaVersion = "2025-04-16"
	defaultVoiceID  = "a0e99841-438c-4a64-b679-ae501e7d6091"
)

// Synthesizer turns text into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error)
}

type SynthesizeOptions struct {
	Voice string
}

// Synthesis is the synthesized audio.
type Synthesis struct {
	Audio       []byte
	ContentType string
}

type Config struct {
	APIKey  string
	VoiceID string
	BaseURL string
	Timeout time.Duration
}

type CartesiaProvider struct {
	cfg        Config
	httpClient *http.Client
}

// NewCartesia returns nil when no API key is configured.
func NewCartesia(cfg Config) *CartesiaProvider {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.cartesia.ai"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.VoiceID == "" {
		cfg.VoiceID = defaultVoiceID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &CartesiaProvider{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

type cartesiaTTSRequest struct {
	ModelID      string               `json:"model_id"`
	Transcript   string               `json:"transcript"`
	Voice        cartesiaVoiceSpec    `json:"voice"`
	OutputFormat cartesiaOutputFormat `json:"output_format"`
}

type cartesiaVoiceSpec struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type cartesiaOutputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	BitRate    int    `json:"bit_rate,omitempty"`
}

// Truncate cuts text to at most max runes without splitting a character.
func Truncate(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	i := 0
	for pos := range text {
		if i == max {
			return text[:pos]
		}
		i++
	}
	return text
}

func (c *CartesiaProvider) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error) {
	text = Truncate(strings.TrimSpace(text), MaxTextRunes)
	if text == "" {
		return nil, fmt.Errorf("text required")
	}
	voiceID := opts.Voice
	if voiceID == "" {
		voiceID = c.cfg.VoiceID
	}

	body, err := json.Marshal(cartesiaTTSRequest{
		ModelID:      "sonic-3",
		Transcript:   text,
		Voice:        cartesiaVoiceSpec{Mode: "id", ID: voiceID},
		OutputFormat: cartesiaOutputFormat{Container: "mp3", SampleRate: 44100, BitRate: 128000},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/tts/bytes", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Cartesia-Version", cartesiaVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cartesia request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("cartesia error %d: %s", resp.StatusCode, string(errBody))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	return &Synthesis{Audio: audio, ContentType: "audio/mpeg"}, nil
}
