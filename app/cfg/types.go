package cfg

type Cfg struct {
	// Database configuration
	DBPath string

	// Application configuration
	ProfilesDir       string
	Port              string
	BaseUrl           string
	WorkerCount       int
	SchedulerInterval int
	FetchTimeout      int
	APIAccessKey      string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
