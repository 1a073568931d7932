package config

import "os"

// APIKeySource represents where an API key comes from.
type APIKeySource string

const (
	KeySourceEnv    APIKeySource = "env"
	KeySourceConfig APIKeySource = "config"
	KeySourceNone   APIKeySource = "none"
)

// KeyStatus represents the status of an API key.
type KeyStatus struct {
	Name   string       `json:"name"`
	EnvVar string       `json:"env_var"`
	Source APIKeySource `json:"source"`
	IsSet  bool         `json:"is_set"`
	Masked string       `json:"masked,omitempty"` // e.g., "sk-...abc"
}

// CheckAPIKeys returns the status of every LLM provider key.
func CheckAPIKeys(cfg *Config) []KeyStatus {
	return []KeyStatus{
		checkKey("OpenAI API Key", cfg.LLM.OpenAIKey, EnvPrefix+"_LLM_OPENAI_KEY"),
		checkKey("Gemini API Key", cfg.LLM.GeminiKey, EnvPrefix+"_LLM_GEMINI_KEY"),
		checkKey("Anthropic API Key", cfg.LLM.AnthropicKey, EnvPrefix+"_LLM_ANTHROPIC_KEY"),
	}
}

// HasAnyProvider reports whether at least one LLM backend can be reached.
func HasAnyProvider(cfg *Config) bool {
	return cfg.LLM.OpenAIKey != "" || cfg.LLM.GeminiKey != "" ||
		cfg.LLM.AnthropicKey != "" || cfg.LLM.OllamaURL != ""
}

// checkKey checks if a key is set and where it came from.
func checkKey(name, value, envVar string) KeyStatus {
	status := KeyStatus{
		Name:   name,
		EnvVar: envVar,
		IsSet:  value != "",
	}

	if value != "" {
		if os.Getenv(envVar) != "" {
			status.Source = KeySourceEnv
		} else {
			status.Source = KeySourceConfig
		}
		status.Masked = maskKey(value)
	} else {
		status.Source = KeySourceNone
	}

	return status
}

// maskKey masks an API key for display, showing only first 3 and last 3 chars.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}

// Redacted returns a copy of the config with every API key masked. Unset
// keys stay empty.
func (c Config) Redacted() Config {
	for _, k := range []*string{&c.LLM.OpenAIKey, &c.LLM.GeminiKey, &c.LLM.AnthropicKey} {
		if *k != "" {
			*k = maskKey(*k)
		}
	}
	c.API.CORSOrigins = append([]string(nil), c.API.CORSOrigins...)
	return c
}
