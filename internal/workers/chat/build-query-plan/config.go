package buildqueryplan

type Config struct {
	PageSize         int
	SchedulePageSize int
	ArticlePageSize  int
	// DetailPageSize caps facility and itinerary rows across all matched trips.
	DetailPageSize int
	ReviewPageSize int
}

func LoadConfig() *Config {
	return &Config{
		PageSize:         10,
		SchedulePageSize: 5,
		ArticlePageSize:  5,
		DetailPageSize:   20,
		ReviewPageSize:   5,
	}
}
