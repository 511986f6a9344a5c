// Package config provides configuration for the ruya service.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the service configuration.
type Config struct {
	// Server settings
	HTTPPort     int `env:"HTTP_PORT" envDefault:"8080"`
	InternalPort int `env:"INTERNAL_PORT" envDefault:"8081"`

	// Database
	DatabaseURL string `env:"DATABASE_URL" envDefault:"file:ruya.db?cache=shared&mode=rwc"`

	// Logging
	LogMode string `env:"LOG_MODE" envDefault:"development"`

	// Reasoning service (OpenAI-compatible or Azure OpenAI)
	LLMMode            string `env:"LLM_MODE"`
	LLMBaseURL         string `env:"LLM_BASE_URL" envDefault:"https://api.openai.com"`
	LLMAPIKey          string `env:"LLM_API_KEY"`
	LLMModel           string `env:"LLM_MODEL" envDefault:"gpt-4o"`
	LLMAzureDeployment string `env:"LLM_AZURE_DEPLOYMENT"`
	LLMAzureAPIVersion string `env:"LLM_AZURE_API_VERSION" envDefault:"2024-02-15-preview"`
	LLMTimeoutMS       int    `env:"LLM_TIMEOUT_MS" envDefault:"30000"`

	// Telephony (Twilio Studio)
	TwilioAccountSID   string   `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken    string   `env:"TWILIO_AUTH_TOKEN"`
	TwilioFlowSID      string   `env:"TWILIO_STUDIO_FLOW_SID"`
	TwilioFromNumber   string   `env:"TWILIO_FROM_NUMBER"`
	TwilioBaseURL      string   `env:"TWILIO_BASE_URL" envDefault:"https://studio.twilio.com/v2"`
	TwilioMaxRetries   int      `env:"TWILIO_MAX_RETRIES" envDefault:"3"`
	TelephonyTimeoutMS int      `env:"TELEPHONY_TIMEOUT_MS" envDefault:"15000"`
	DialBlocklist      []string `env:"DIAL_BLOCKLIST" envSeparator:","`

	// Voice delivery (Vapi)
	VapiAPIKey      string `env:"VAPI_API_KEY"`
	VapiAssistantID string `env:"VAPI_ASSISTANT_ID"`
	VapiBaseURL     string `env:"VAPI_BASE_URL" envDefault:"https://api.vapi.ai"`
	VapiModel       string `env:"VAPI_MODEL" envDefault:"gpt-4"`
	VoiceTimeoutMS  int    `env:"VOICE_TIMEOUT_MS" envDefault:"15000"`

	// Speech synthesis (Cartesia)
	CartesiaAPIKey  string `env:"CARTESIA_API_KEY"`
	CartesiaVoiceID string `env:"CARTESIA_VOICE_ID"`
	CartesiaBaseURL string `env:"CARTESIA_BASE_URL" envDefault:"https://api.cartesia.ai"`
	TTSTimeoutMS    int    `env:"TTS_TIMEOUT_MS" envDefault:"20000"`

	// Webhook
	WebhookSecret string `env:"WEBHOOK_SECRET"`

	// Mutation engine
	MutationThreshold  int `env:"MUTATION_THRESHOLD" envDefault:"5"`
	MutationSampleSize int `env:"MUTATION_SAMPLE_SIZE" envDefault:"10"`

	// Pipeline
	PipelineWorkers      int `env:"PIPELINE_WORKERS" envDefault:"2"`
	PipelineQueueSize    int `env:"PIPELINE_QUEUE_SIZE" envDefault:"256"`
	PipelineJobTimeoutMS int `env:"PIPELINE_JOB_TIMEOUT_MS" envDefault:"120000"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.MutationThreshold <= 0 {
		cfg.MutationThreshold = 5
	}
	if cfg.MutationSampleSize <= 0 {
		cfg.MutationSampleSize = 10
	}
	if cfg.PipelineWorkers <= 0 {
		cfg.PipelineWorkers = 1
	}
	return cfg, nil
}

// LLMTimeout returns the reasoning call timeout.
func (c *Config) LLMTimeout() time.Duration { return ms(c.LLMTimeoutMS) }

// TelephonyTimeout returns the dial timeout.
func (c *Config) TelephonyTimeout() time.Duration { return ms(c.TelephonyTimeoutMS) }

// VoiceTimeout returns the voice delivery timeout.
func (c *Config) VoiceTimeout() time.Duration { return ms(c.VoiceTimeoutMS) }

// TTSTimeout returns the speech synthesis timeout.
func (c *Config) TTSTimeout() time.Duration { return ms(c.TTSTimeoutMS) }

// PipelineJobTimeout bounds a single background job.
func (c *Config) PipelineJobTimeout() time.Duration { return ms(c.PipelineJobTimeoutMS) }

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
