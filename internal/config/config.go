package config

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

type Config struct {
	Port       string `long:"port" env:"PORT" default:"4000" description:"HTTP server port"`
	Env        string `long:"env" env:"APP_ENV" default:"development" description:"development or production"`
	CORSOrigin string `long:"cors-origins" env:"CORS_ORIGINS" default:"*" description:"Comma separated allowed origins"`

	DBDriver   string `long:"db-driver" env:"DB_DRIVER" default:"sqlite" choice:"sqlite" choice:"mongo" description:"Storage backend"`
	SQLitePath string `long:"sqlite-path" env:"SQLITE_PATH" default:"./data/thientam.db" description:"SQLite database file"`
	MongoURI   string `long:"mongo-uri" env:"MONGO_URI" default:"mongodb://localhost:27017" description:"MongoDB connection string"`
	MongoDB    string `long:"mongo-db" env:"MONGO_DB" default:"buddhist_readings" description:"MongoDB database name"`

	JWTSecret      string        `long:"jwt-secret" env:"JWT_SECRET" description:"Access token signing secret (required)"`
	RefreshSecret  string        `long:"refresh-secret" env:"REFRESH_SECRET" description:"Refresh token signing secret (required)"`
	AdminAccessTTL time.Duration `long:"admin-access-ttl" env:"ADMIN_ACCESS_TTL" default:"1h" description:"Admin access token lifetime"`
	UserAccessTTL  time.Duration `long:"user-access-ttl" env:"USER_ACCESS_TTL" default:"168h" description:"End-user access token lifetime"`
	RefreshTTL     time.Duration `long:"refresh-ttl" env:"REFRESH_TTL" default:"720h" description:"Refresh token lifetime"`

	RedisAddr     string        `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address; enables rate limiting and shared token revocation"`
	RedisPassword string        `long:"redis-password" env:"REDIS_PASSWORD" description:"Redis password"`
	RateGlobal    int           `long:"rate-global" env:"RATE_LIMIT_GLOBAL" default:"300" description:"Requests per window per IP"`
	RateAuth      int           `long:"rate-auth" env:"RATE_LIMIT_AUTH" default:"10" description:"Auth requests per window per IP"`
	RateWindow    time.Duration `long:"rate-window" env:"RATE_LIMIT_WINDOW" default:"15m" description:"Rate limit window"`

	MediaBackend string `long:"media-backend" env:"MEDIA_BACKEND" description:"Media storage backend: cloudinary, minio or empty"`

	CloudinaryCloud  string `long:"cloudinary-cloud-name" env:"CLOUDINARY_CLOUD_NAME" description:"Cloudinary cloud name"`
	CloudinaryKey    string `long:"cloudinary-api-key" env:"CLOUDINARY_API_KEY" description:"Cloudinary API key"`
	CloudinarySecret string `long:"cloudinary-api-secret" env:"CLOUDINARY_API_SECRET" description:"Cloudinary API secret"`

	MinioEndpoint  string `long:"minio-endpoint" env:"MINIO_ENDPOINT" description:"MinIO endpoint host:port"`
	MinioAccessKey string `long:"minio-access-key" env:"MINIO_ACCESS_KEY" description:"MinIO access key"`
	MinioSecretKey string `long:"minio-secret-key" env:"MINIO_SECRET_KEY" description:"MinIO secret key"`
	MinioBucket    string `long:"minio-bucket" env:"MINIO_BUCKET" default:"thientam" description:"MinIO bucket"`
	MinioUseSSL    bool   `long:"minio-use-ssl" env:"MINIO_USE_SSL" description:"Use TLS for MinIO"`
	MinioPublicURL string `long:"minio-public-url" env:"MINIO_PUBLIC_URL" description:"Public base URL objects are served from"`

	ElevenLabsKey string `long:"elevenlabs-api-key" env:"ELEVENLABS_API_KEY" description:"ElevenLabs API key"`
	GeminiKey     string `long:"gemini-api-key" env:"GEMINI_API_KEY" description:"Gemini API key"`
}

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production") || strings.EqualFold(c.Env, "prod")
}

func (c *Config) CORSOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Load reads .env (if present) and then flags/env. It returns nil, nil when
// --help was requested.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadArgs(os.Args[1:])
}

func LoadArgs(args []string) (*Config, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if cfg.GeminiKey == "" {
		cfg.GeminiKey = cmp.Or(os.Getenv("GOOGLE_GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY"))
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.RefreshSecret == "" {
		return errors.New("REFRESH_SECRET is required")
	}
	if c.JWTSecret == c.RefreshSecret {
		return errors.New("JWT_SECRET and REFRESH_SECRET must differ")
	}
	switch c.MediaBackend {
	case "cloudinary":
		if c.CloudinaryCloud == "" || c.CloudinaryKey == "" || c.CloudinarySecret == "" {
			return errors.New("cloudinary backend needs CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET")
		}
	case "minio":
		if c.MinioEndpoint == "" || c.MinioAccessKey == "" || c.MinioSecretKey == "" {
			return errors.New("minio backend needs MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY")
		}
	case "":
	default:
		return fmt.Errorf("unknown media backend %q", c.MediaBackend)
	}
	if c.RateGlobal <= 0 || c.RateAuth <= 0 || c.RateWindow <= 0 {
		return errors.New("rate limits must be positive")
	}
	return nil
}
