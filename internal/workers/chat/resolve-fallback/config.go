package resolvefallback

type Config struct {
	// ThematicThreshold is the minimum TopicScore for an empty domain-specific
	// intent to get a thematic answer instead of general advice.
	ThematicThreshold int
}

func LoadConfig() *Config {
	return &Config{
		ThematicThreshold: 1,
	}
}
