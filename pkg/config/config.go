package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	Object    ObjectStoreConfig
	Harmony   HarmonyConfig
	Weather   WeatherConfig
	Geocode   GeocodeConfig
	Auth      AuthConfig
	Scheduler SchedulerConfig
	HTTP      HTTPConfig
	UPES      UPESConfig
	Route     RouteConfig
	Alerts    AlertsConfig
	Queue     QueueConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ObjectStoreConfig struct {
	Provider    string // "" disables object storage
	EndpointURL string
	Bucket      string
	Region      string
	AccessKeyID string
	SecretKey   string
	LocalFallbackDir string
}

func (o ObjectStoreConfig) Configured() bool {
	return o.Provider != "" && o.Bucket != ""
}

type HarmonyConfig struct {
	BaseURL            string
	BearerToken        string
	EarthdataUsername  string
	EarthdataPassword  string
	URSATokenURL       string
	URSATokensURL      string
	BBoxWest           float64
	BBoxSouth          float64
	BBoxEast           float64
	BBoxNorth          float64
	PersistPollutionGrid bool
}

type WeatherConfig struct {
	APIKey  string
	BaseURL string
}

type GeocodeConfig struct {
	BaseURL string
	APIKey  string
}

type AuthConfig struct {
	SecretKey             string
	AccessTokenExpireMins int
}

type SchedulerConfig struct {
	// Minute offsets within the hour at which each stage fires, matching
	// the beat schedule: ingestion :00, upes :15, route exposure :20, alerts :25.
	IngestionMinute int
	UPESMinute      int
	ExposureMinute  int
	AlertsMinute    int
}

type HTTPConfig struct {
	Port int
}

type UPESConfig struct {
	GridResolutionDeg float64
	TrafficAlpha      float64
	EMALambda         float64
	EMAEnabled        bool
	OutputBase        string
}

type RouteConfig struct {
	Enabled        bool
	OSMBufferKM    float64
	ResultCacheTTL time.Duration
}

type AlertsConfig struct {
	DeteriorationBasePct float64
	HazardThreshold      float64
	WindSpeedMinKPH      float64
	WindAngleDeg         float64
	N8NWebhookURL        string
}

type QueueConfig struct {
	Brokers        []string
	TopicIngestion string
	TopicUPESReady string
	TopicAlerts    string
	NumPartitions  int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "aeris"),
			Password:     getEnv("DB_PASSWORD", "aeris"),
			DBName:       getEnv("DB_NAME", "aeris"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_URL", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Object: ObjectStoreConfig{
			Provider:         getEnv("OBJECT_STORAGE_PROVIDER", ""),
			EndpointURL:      getEnv("OBJECT_STORAGE_ENDPOINT_URL", ""),
			Bucket:           getEnv("OBJECT_STORAGE_BUCKET", ""),
			Region:           getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretKey:        getEnv("AWS_SECRET_ACCESS_KEY", ""),
			LocalFallbackDir: getEnv("OBJECT_STORAGE_LOCAL_DIR", "./data/blobs"),
		},
		Harmony: HarmonyConfig{
			BaseURL:              getEnv("HARMONY_BASE_URL", "https://harmony.earthdata.nasa.gov"),
			BearerToken:          getEnv("BEARER_TOKEN", ""),
			EarthdataUsername:    getEnv("EARTHDATA_USERNAME", ""),
			EarthdataPassword:    getEnv("EARTHDATA_PASSWORD", ""),
			URSATokenURL:         getEnv("URSA_TOKEN_URL", "https://urs.earthdata.nasa.gov/api/users/find_or_create_token"),
			URSATokensURL:        getEnv("URSA_TOKENS_URL", "https://urs.earthdata.nasa.gov/api/users/tokens"),
			BBoxWest:             getEnvAsFloat("TEMPO_BBOX_WEST", -125.0),
			BBoxSouth:            getEnvAsFloat("TEMPO_BBOX_SOUTH", 24.0),
			BBoxEast:             getEnvAsFloat("TEMPO_BBOX_EAST", -66.0),
			BBoxNorth:            getEnvAsFloat("TEMPO_BBOX_NORTH", 50.0),
			PersistPollutionGrid: getEnvAsBool("PERSIST_POLLUTION_GRID", true),
		},
		Weather: WeatherConfig{
			APIKey:  getEnv("WEATHER_API_KEY", ""),
			BaseURL: getEnv("WEATHER_API_BASE_URL", "https://api.weatherapi.com/v1"),
		},
		Geocode: GeocodeConfig{
			BaseURL: getEnv("GEOCODE_BASE_URL", "https://nominatim.openstreetmap.org"),
			APIKey:  getEnv("GEOCODE_API_KEY", ""),
		},
		Auth: AuthConfig{
			SecretKey:             getEnv("SECRET_KEY", "dev-secret-change-me"),
			AccessTokenExpireMins: getEnvAsInt("ACCESS_TOKEN_EXPIRE_MINUTES", 60),
		},
		Scheduler: SchedulerConfig{
			IngestionMinute: getEnvAsInt("SCHEDULER_INGESTION_MINUTE", 0),
			UPESMinute:      getEnvAsInt("SCHEDULER_UPES_MINUTE", 15),
			ExposureMinute:  getEnvAsInt("SCHEDULER_EXPOSURE_MINUTE", 20),
			AlertsMinute:    getEnvAsInt("SCHEDULER_ALERTS_MINUTE", 25),
		},
		HTTP: HTTPConfig{
			Port: getEnvAsInt("HTTP_PORT", 8000),
		},
		UPES: UPESConfig{
			GridResolutionDeg: getEnvAsFloat("UPES_GRID_RESOLUTION_DEG", 0.05),
			TrafficAlpha:      getEnvAsFloat("UPES_TRAFFIC_ALPHA", 0.0),
			EMALambda:         getEnvAsFloat("UPES_EMA_LAMBDA", 0.6),
			EMAEnabled:        getEnvAsBool("UPES_EMA_ENABLED", true),
			OutputBase:        getEnv("UPES_OUTPUT_BASE", "./data/upes"),
		},
		Route: RouteConfig{
			Enabled:        getEnvAsBool("ROUTE_OPTIMIZATION_ENABLED", true),
			OSMBufferKM:    getEnvAsFloat("ROUTE_OSM_BUFFER_KM", 3.0),
			ResultCacheTTL: getEnvAsDuration("ROUTE_RESULT_CACHE_TTL", 5*time.Minute),
		},
		Alerts: AlertsConfig{
			DeteriorationBasePct: getEnvAsFloat("ALERTS_DETERIORATION_BASE_PCT", 0.15),
			HazardThreshold:      getEnvAsFloat("ALERTS_HAZARD_THRESHOLD", 0.85),
			WindSpeedMinKPH:      getEnvAsFloat("ALERTS_WIND_SPEED_MIN_KPH", 5.0),
			WindAngleDeg:         getEnvAsFloat("ALERTS_WIND_ANGLE_DEG", 45.0),
			N8NWebhookURL:        getEnv("ALERTS_N8N_WEBHOOK_URL", ""),
		},
		Queue: QueueConfig{
			Brokers:        strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicIngestion: getEnv("KAFKA_TOPIC_INGESTION", "aeris.ingestion.completed"),
			TopicUPESReady: getEnv("KAFKA_TOPIC_UPES_READY", "aeris.upes.ready"),
			TopicAlerts:    getEnv("KAFKA_TOPIC_ALERTS", "aeris.alerts.triggered"),
			NumPartitions:  getEnvAsInt("KAFKA_NUM_PARTITIONS", 4),
		},
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
