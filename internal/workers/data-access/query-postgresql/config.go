package querypostgresql

import "time"

type Config struct {
	// Timeout bounds a single plan.
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 5 * time.Second,
	}
}
