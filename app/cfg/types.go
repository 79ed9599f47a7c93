package cfg

type Cfg struct {
	// Storage configuration
	DBPath     string
	SourcesDir string

	// Pipeline configuration
	ScheduleInterval int // seconds
	WorkerCount      int
	MaxFetchRetries  int
	FetchTimeout     int // seconds
	LookbackHours    int

	// Delivery configuration
	SMTPHost           string
	SMTPPort           string
	SMTPUser           string
	SMTPPassword       string
	SMTPFrom           string
	SMTPFromName       string
	Recipients         []string
	MaxDeliveryRetries int
	DeliveryTimeout    int // seconds

	// Summarization configuration
	CohereAPIKey string
	CohereModel  string

	// HTTP API configuration
	Port         string
	APIAccessKey string

	// Application metadata
	UserAgent string
	Debug     bool
	Version   string
}
