package queryelasticsearch

import "time"

type Config struct {
	Timeout     time.Duration
	IndexPrefix string
	// PrimaryKeys maps a table to its key column, filled from the schema registry.
	PrimaryKeys map[string]string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:     5 * time.Second,
		PrimaryKeys: map[string]string{},
	}
}
