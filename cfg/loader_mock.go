package cfg

type MockLoader struct{}

func NewMockLoader() (*MockLoader, error) {
	return &MockLoader{}, nil
}

func (yl *MockLoader) Load() (*Config, error) {
	return &Config{
		// App
		App: App{
			Name:    "crawl-repo",
			Version: "0.0.1",
		},

		// Mysql
		Mysql: Mysql{
			Host:                  "127.0.0.1",
			Password:              "root",
			Username:              "root",
			Port:                  "3306",
			Database:              "github_data",
			MaxIdleConnection:     10,
			MaxOpenConnection:     100,
			MaxLifeTimeConnection: 3600,
		},

		// Gitstar ranking
		Gitstar: Gitstar{
			BaseUrl:  "https://gitstar-ranking.com/repositories",
			PerPage:  100,
			MaxPages: 1024,
		},

		// GithubApi
		GithubApi: GithubApi{
			AccessToken:       "",
			ApiUrl:            "https://api.github.com",
			ReleasesApiUrl:    "https://api.github.com/repos/{user}/{repo}/releases",
			PerPage:           100,
			InitialBudget:     60,
			ReserveFloor:      10,
			RequestsPerSecond: 10,
			RateLimitResetMin: 60,
		},

		// Crawler
		Crawler: Crawler{
			Workers:           4,
			BatchSize:         100,
			FlushIntervalMs:   5000,
			QueueSize:         256,
			MaxRetries:        3,
			RetryBaseDelayMs:  2000,
			RetryMaxDelayMs:   60000,
			RequestTimeoutSec: 30,
			MaxRepos:          5000,
			OnConflict:        "upsert",
		},

		// Kafka
		Kafka: Kafka{
			Brokers: []string{"127.0.0.1:9092"},
			Producer: KafkaProducer{
				TopicRepo:    "crawler.repos",
				TopicRelease: "crawler.releases",
			},
		},

		// Output
		Output: Output{
			JsonFile: "output/github_repos.json",
			CsvFile:  "output/github_repos.csv",
		},
	}, nil
}
