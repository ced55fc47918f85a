package cfg

type (
	App struct {
		Name    string
		Version string
	}

	Mysql struct {
		Host                  string
		Port                  string
		Username              string
		Password              string
		Database              string
		MaxIdleConnection     int
		MaxOpenConnection     int
		MaxLifeTimeConnection int
	}

	// Gitstar là cấu hình cho trang xếp hạng repository (crawl bằng HTML)
	Gitstar struct {
		BaseUrl  string
		PerPage  int
		MaxPages int // Chặn trên an toàn cho pha tăng trưởng của binary search
	}

	GithubApi struct {
		AccessToken       string
		ApiUrl            string
		ReleasesApiUrl    string // Template chứa {user} và {repo}
		PerPage           int
		InitialBudget     int // Budget giả định trước khi quan sát được header đầu tiên
		ReserveFloor      int // Số request giữ lại, không bao giờ dùng đến
		RequestsPerSecond int
		RateLimitResetMin int
	}

	Crawler struct {
		Workers           int
		BatchSize         int
		FlushIntervalMs   int
		QueueSize         int
		MaxRetries        int
		RetryBaseDelayMs  int
		RetryMaxDelayMs   int
		RequestTimeoutSec int
		MaxRepos          int
		OnConflict        string // "upsert" hoặc "skip" khi trùng natural key
	}

	KafkaProducer struct {
		TopicRepo    string
		TopicRelease string
	}

	Kafka struct {
		Brokers  []string
		Producer KafkaProducer
	}

	Output struct {
		JsonFile string
		CsvFile  string
	}
)

type Config struct {
	App       App
	Mysql     Mysql
	Gitstar   Gitstar
	GithubApi GithubApi
	Crawler   Crawler
	Kafka     Kafka
	Output    Output
}
