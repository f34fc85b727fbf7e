package config

import (
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/iancoleman/strcase"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	configFileEnv     = "CONFIG_FILE"
	defaultConfigFile = "/config/folio.yaml"
)

// CoverOverride pins a cover image for every title by one of the listed
// author spellings.
type CoverOverride struct {
	Authors  []string `koanf:"authors" json:"authors"`
	CoverURL string   `koanf:"cover_url" json:"cover_url"`
}

type Config struct {
	DatabaseBusyTimeout       time.Duration `koanf:"database_busy_timeout" default:"5s"`
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count" default:"5"`
	DatabaseConnectRetryDelay time.Duration `koanf:"database_connect_retry_delay" default:"2s"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseFilePath          string        `koanf:"database_file_path" validate:"required"`
	DatabaseMaxRetries        int           `koanf:"database_max_retries" default:"5"`

	// Environment "test" enables the /test routes.
	Environment string `koanf:"environment" default:"production"`

	ServerHost      string `koanf:"server_host" default:"0.0.0.0"`
	ServerPort      int    `koanf:"server_port" default:"3689"`
	UploadMaxSize   string `koanf:"upload_max_size" default:"200M"`
	WorkerProcesses int    `koanf:"worker_processes" default:"2"`
	WorkerQueueSize int    `koanf:"worker_queue_size" default:"64"`

	// Remote backend. Leaving RemoteURL empty keeps every write local.
	// Bearer tokens are only trusted once RemoteJWTSecret has checked them,
	// so a remote cannot be configured without it.
	RemoteAPIKey    string `koanf:"remote_api_key"`
	RemoteJWTSecret string `koanf:"remote_jwt_secret" validate:"required_with=RemoteURL"`
	RemoteURL       string `koanf:"remote_url"`

	PlaceholderCoverURL string `koanf:"placeholder_cover_url" default:"https://placehold.co/400x600?text=No+Cover"`

	CoverOverrides           []CoverOverride `koanf:"cover_overrides"`
	DiscoveryRequestTimeout  time.Duration   `koanf:"discovery_request_timeout" default:"15s"`
	DiscoveryRequestsPerSec  float64         `koanf:"discovery_requests_per_sec" default:"5"`
	GoogleBooksAPIKey        string          `koanf:"google_books_api_key"`
	GoogleBooksURL           string          `koanf:"google_books_url" default:"https://www.googleapis.com/books/v1"`
	ImageProbeTimeout        time.Duration   `koanf:"image_probe_timeout" default:"5s"`
	OpenLibraryCoversURL     string          `koanf:"open_library_covers_url" default:"https://covers.openlibrary.org"`
	OpenLibraryURL           string          `koanf:"open_library_url" default:"https://openlibrary.org"`
	StorefrontProxyPrimary   string          `koanf:"storefront_proxy_primary" default:"https://api.allorigins.win/raw?url={url}"`
	StorefrontProxySecondary string          `koanf:"storefront_proxy_secondary" default:"https://corsproxy.io/?url={url}"`
	StorefrontSearchURL      string          `koanf:"storefront_search_url" default:"https://www.goodreads.com/search"`

	ArchiveAnnasSearchURL  string `koanf:"archive_annas_search_url" default:"https://annas-archive.org/search?q="`
	ArchiveLibgenSearchURL string `koanf:"archive_libgen_search_url" default:"https://libgen.is/search.php?req="`

	PDFRendererDisabled     bool          `koanf:"pdf_renderer_disabled"`
	PDFRendererInstances    int           `koanf:"pdf_renderer_instances" default:"1"`
	PDFRendererInstanceWait time.Duration `koanf:"pdf_renderer_instance_wait" default:"30s"`

	EventsHeartbeatInterval time.Duration `koanf:"events_heartbeat_interval" default:"30s"`
}

// New builds the configuration from defaults, then the optional YAML file at
// CONFIG_FILE, then environment variables.
func New() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	k := koanf.New(".")

	path := os.Getenv(configFileEnv)
	if path == "" {
		path = defaultConfigFile
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file %s", path)
		}
	}

	keys := knownKeys()
	err := k.Load(env.Provider("", ".", func(s string) string {
		key := strings.ToLower(s)
		if _, ok := keys[key]; !ok {
			return ""
		}
		return key
	}), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load environment")
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}

	if err := validateRequired(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewForTest returns a configuration backed by an in-memory database with
// every outbound integration left at its default URL.
func NewForTest() *Config {
	cfg := &Config{}
	_ = defaults.Set(cfg)
	cfg.DatabaseFilePath = ":memory:"
	cfg.Environment = "test"
	cfg.DatabaseConnectRetryCount = 1
	cfg.DatabaseConnectRetryDelay = 0
	cfg.ServerHost = "127.0.0.1"
	cfg.ServerPort = 0
	cfg.WorkerProcesses = 1
	return cfg
}

func knownKeys() map[string]struct{} {
	keys := map[string]struct{}{}
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		if tag := t.Field(i).Tag.Get("koanf"); tag != "" {
			keys[tag] = struct{}{}
		}
	}
	return keys
}

func validateRequired(cfg *Config) error {
	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.WithStack(err)
	}
	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		key := toSnakeCase(fe.StructField())
		missing = append(missing, strings.ToUpper(key)+" (env) / "+key+" (config file)")
	}
	return errors.Errorf("missing required config: %s", strings.Join(missing, ", "))
}

func toSnakeCase(s string) string {
	return strcase.ToSnake(s)
}
