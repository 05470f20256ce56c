package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/MegaGrindStone/chat-widget/internal/models"
	"github.com/MegaGrindStone/chat-widget/internal/services"
	"github.com/MegaGrindStone/chat-widget/internal/webhook"
	"gopkg.in/yaml.v3"
)

type responderConfig interface {
	responder(systemPrompt string, logger *slog.Logger) (webhook.Responder, error)
}

// BaseResponderConfig contains the common fields for all responder configurations.
type BaseResponderConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type config struct {
	Port         string          `yaml:"port"`
	LogLevel     string          `yaml:"logLevel"`
	DBPath       string          `yaml:"dbPath"`
	RequireAuth  bool            `yaml:"requireAuth"`
	Envelope     bool            `yaml:"envelope"`
	SystemPrompt string          `yaml:"systemPrompt"`
	Clients      []models.Client `yaml:"clients"`
	Responder    responderConfig `yaml:"responder"`
}

type echoConfig struct {
	BaseResponderConfig `yaml:",inline"`
	Prefix              string `yaml:"prefix"`
}

type ollamaConfig struct {
	BaseResponderConfig `yaml:",inline"`
	Host                string `yaml:"host"`
}

type openAIConfig struct {
	BaseResponderConfig `yaml:",inline"`
	APIKey              string                 `yaml:"apiKey"`
	BaseURL             string                 `yaml:"baseUrl"`
	Parameters          services.LLMParameters `yaml:"parameters"`
}

const defaultOllamaHost = "http://localhost:11434"

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port         string          `yaml:"port"`
		LogLevel     string          `yaml:"logLevel"`
		DBPath       string          `yaml:"dbPath"`
		RequireAuth  bool            `yaml:"requireAuth"`
		Envelope     bool            `yaml:"envelope"`
		SystemPrompt string          `yaml:"systemPrompt"`
		Clients      []models.Client `yaml:"clients"`
		Responder    map[string]any  `yaml:"responder"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	c.Port = rawConfig.Port
	c.LogLevel = rawConfig.LogLevel
	c.DBPath = rawConfig.DBPath
	c.RequireAuth = rawConfig.RequireAuth
	c.Envelope = rawConfig.Envelope
	c.SystemPrompt = rawConfig.SystemPrompt
	c.Clients = rawConfig.Clients

	provider := "echo"
	if p, ok := rawConfig.Responder["provider"].(string); ok {
		provider = p
	}

	responderRawYAML, err := yaml.Marshal(rawConfig.Responder)
	if err != nil {
		return err
	}

	var rc responderConfig
	switch provider {
	case "echo":
		rc = &echoConfig{}
	case "ollama":
		rc = &ollamaConfig{}
	case "openai":
		rc = &openAIConfig{}
	default:
		return fmt.Errorf("unknown responder provider: %s", provider)
	}

	if err := yaml.Unmarshal(responderRawYAML, rc); err != nil {
		return err
	}

	c.Responder = rc
	return nil
}

func (c config) logLevel() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func (e echoConfig) responder(string, *slog.Logger) (webhook.Responder, error) {
	return webhook.Echo{Prefix: e.Prefix}, nil
}

func (o ollamaConfig) responder(systemPrompt string, logger *slog.Logger) (webhook.Responder, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = defaultOllamaHost
	}
	return services.NewOllama(host, o.Model, systemPrompt, logger)
}

func (o openAIConfig) responder(systemPrompt string, logger *slog.Logger) (webhook.Responder, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return services.NewOpenAI(apiKey, o.BaseURL, o.Model, systemPrompt, o.Parameters, logger), nil
}
