package composeresponse

type Config struct {
	// ValidateOutput checks every composed payload against response.schema.json.
	ValidateOutput bool
}

func LoadConfig() *Config {
	return &Config{
		ValidateOutput: true,
	}
}
