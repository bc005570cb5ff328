package classifyintent

import "time"

type Config struct {
	// OnTopicThreshold is the number of travel terms a message needs to be
	// treated as general travel instead of off-topic.
	OnTopicThreshold int
	MaxKeywords      int
	Timeout          time.Duration
}

func LoadConfig() *Config {
	return &Config{
		OnTopicThreshold: 1,
		MaxKeywords:      5,
		Timeout:          5 * time.Second,
	}
}
