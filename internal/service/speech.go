package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/adam-a-i/ruya/internal/adapter/tts"
	"github.com/adam-a-i/ruya/internal/domain"
)

// Synthesize renders text to audio. Nothing is stored.
func (s *Service) Synthesize(ctx context.Context, req domain.SpeechRequest) (*tts.Synthesis, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: text is required", domain.ErrInvalidInput)
	}
	if s.synthesizer == nil {
		return nil, fmt.Errorf("speech synthesis: %w", domain.ErrServiceUnavailable)
	}
	if timeout := s.config.TTSTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	out, err := s.synthesizer.Synthesize(ctx, req.Text, tts.SynthesizeOptions{Voice: req.VoiceID})
	if err != nil {
		return nil, fmt.Errorf("speech synthesis failed: %w", err)
	}
	return out, nil
}
