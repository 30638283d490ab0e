package settings

// Keys read from runtime_settings.
const (
	// FreeGuidesPerMonthKey overrides the free-tier monthly guide allowance.
	FreeGuidesPerMonthKey = "FREE_GUIDES_PER_MONTH"
	// FreeQuestionsPerDayKey overrides the free-tier daily question allowance.
	FreeQuestionsPerDayKey = "FREE_QUESTIONS_PER_DAY"
	// UsageLogsRetentionDaysKey sets how long usage_logs rows are kept; 0 keeps forever.
	UsageLogsRetentionDaysKey = "USAGE_LOGS_RETENTION_DAYS"
)
