package generatereply

import "time"

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Model:       "gpt-4o-mini",
		MaxTokens:   512,
		Temperature: 0.3,
		Timeout:     15 * time.Second,
	}
}
