// Package service implements the call session, analysis and strategy
// mutation logic on top of the store and the external adapters.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adam-a-i/ruya/internal/adapter/llm"
	"github.com/adam-a-i/ruya/internal/adapter/telephony"
	"github.com/adam-a-i/ruya/internal/adapter/tts"
	"github.com/adam-a-i/ruya/internal/adapter/voice"
	"github.com/adam-a-i/ruya/internal/config"
	"github.com/adam-a-i/ruya/internal/domain"
	"github.com/adam-a-i/ruya/internal/logger"
	"github.com/adam-a-i/ruya/internal/repository"
	"github.com/adam-a-i/ruya/policy"
)

// Deps are the collaborators of a Service. Nil adapters mean "not configured".
type Deps struct {
	Store       store.Store
	LLM         llm.LLMClient
	Dialer      telephony.Dialer
	Publisher   voice.Publisher
	Synthesizer tts.Synthesizer
	Policy      *policy.Engine
	Config      *config.Config
	Logger      *logger.Logger
}

type Service struct {
	store       store.Store
	llmClient   llm.LLMClient
	dialer      telephony.Dialer
	publisher   voice.Publisher
	synthesizer tts.Synthesizer
	policy      *policy.Engine
	config      *config.Config
	log         *logger.Logger

	pipeline *Pipeline

	// one *sync.Mutex per session id
	turnLocks sync.Map
	mutateMu  sync.Mutex
}

func New(d Deps) *Service {
	cfg := d.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	if cfg.MutationThreshold <= 0 {
		cfg.MutationThreshold = 5
	}
	if cfg.MutationSampleSize <= 0 {
		cfg.MutationSampleSize = 10
	}
	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}

	s := &Service{
		store:       d.Store,
		llmClient:   d.LLM,
		dialer:      d.Dialer,
		publisher:   d.Publisher,
		synthesizer: d.Synthesizer,
		policy:      d.Policy,
		config:      cfg,
		log:         log.With("component", "service"),
	}
	s.pipeline = NewPipeline(d.Store, log, PipelineOptions{
		Workers:    cfg.PipelineWorkers,
		QueueSize:  cfg.PipelineQueueSize,
		JobTimeout: cfg.PipelineJobTimeout(),
	})
	s.pipeline.Register(domain.JobTypeAnalyzeCall, s.runAnalyzeCallJob)
	s.pipeline.Register(domain.JobTypeMutationCheck, s.runMutationCheckJob)
	return s
}

// Pipeline returns the background job pipeline.
func (s *Service) Pipeline() *Pipeline {
	return s.pipeline
}

// Bootstrap creates the baseline strategy when the store has no versions yet.
func (s *Service) Bootstrap(ctx context.Context) (*domain.StrategyVersion, error) {
	active, err := s.store.GetActiveVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get active version: %w", err)
	}
	if active != nil {
		return active, nil
	}
	versions, err := s.store.ListVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	if len(versions) > 0 {
		// History exists but nothing is active. Leave it for an operator.
		return nil, domain.ErrNoActiveVersion
	}

	baseline := &domain.StrategyVersion{
		ID:        uuid.New().String(),
		Version:   domain.BaselineVersionTag,
		Content:   domain.BaselineStrategy(),
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateVersion(ctx, baseline); err != nil {
		return nil, fmt.Errorf("failed to create baseline version: %w", err)
	}
	s.log.Info("created baseline strategy", "version", baseline.Version)
	return baseline, nil
}

// activeVersion returns the active version or ErrNoActiveVersion.
func (s *Service) activeVersion(ctx context.Context) (*domain.StrategyVersion, error) {
	v, err := s.store.GetActiveVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get active version: %w", err)
	}
	if v == nil {
		return nil, domain.ErrNoActiveVersion
	}
	return v, nil
}

// chat sends one request to the reasoning service under the configured timeout.
func (s *Service) chat(ctx context.Context, messages []llm.ChatMessage, temperature float64, maxTokens int, jsonMode bool) (string, error) {
	if s.llmClient == nil {
		return "", fmt.Errorf("reasoning service: %w", domain.ErrServiceUnavailable)
	}
	if timeout := s.config.LLMTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req := &llm.ChatCompletionRequest{
		Model:       s.config.LLMModel,
		Messages:    messages,
		Temperature: &temperature,
	}
	if maxTokens > 0 {
		req.MaxTokens = &maxTokens
	}
	if jsonMode {
		req.ResponseFormat = llm.JSONObjectFormat()
	}

	resp, err := s.llmClient.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("reasoning request failed: %w", err)
	}
	return resp.Content(), nil
}
