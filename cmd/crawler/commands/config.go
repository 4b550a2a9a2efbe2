package commands

import (
	"errors"
	"fmt"
	"matrusp-crawler/internal/campus"
	"matrusp-crawler/internal/components/telemetry"
	"matrusp-crawler/internal/configutil"
	"matrusp-crawler/internal/output"
	"matrusp-crawler/internal/publish"
	"matrusp-crawler/internal/scrapers/jupiter"
	"os"
	"time"

	"dario.cat/mergo"
	"github.com/spf13/cobra"
)

const (
	default_config     = "crawler.json5"
	default_user_agent = "MatrUSPbot/2.0 (+http://www.github.com/matrusp/matrusp)"
)

var configPath string

type Config struct {
	BaseUrl            string           `json:"base_url" yaml:"base_url" env:"MATRUSP_BASE_URL"`
	UserAgent          string           `json:"user_agent" yaml:"user_agent" env:"MATRUSP_USER_AGENT"`
	Concurrency        int              `json:"concurrency" yaml:"concurrency" env:"MATRUSP_CONCURRENCY"`
	TimeoutSeconds     int              `json:"timeout_seconds" yaml:"timeout_seconds" env:"MATRUSP_TIMEOUT_SECONDS"`
	Out                string           `json:"out" yaml:"out" env:"MATRUSP_OUT"`
	NoGzip             bool             `json:"no_gzip" yaml:"no_gzip" env:"MATRUSP_NO_GZIP"`
	Brotli             bool             `json:"brotli" yaml:"brotli" env:"MATRUSP_BROTLI"`
	Units              []int            `json:"units" yaml:"units" env:"MATRUSP_UNITS" env-separator:","`
	Campi              []string         `json:"campi" yaml:"campi" env:"MATRUSP_CAMPI" env-separator:","`
	Database           string           `json:"database" yaml:"database" env:"MATRUSP_DATABASE"`
	RequestsPerSecond  float64          `json:"requests_per_second" yaml:"requests_per_second" env:"MATRUSP_REQUESTS_PER_SECOND"`
	InsecureSkipVerify bool             `json:"insecure_skip_verify" yaml:"insecure_skip_verify" env:"MATRUSP_INSECURE_SKIP_VERIFY"`
	Report             string           `json:"report" yaml:"report" env:"MATRUSP_REPORT"`
	Telemetry          telemetry.Config `json:"telemetry" yaml:"telemetry"`
	Publish            publish.Config   `json:"publish" yaml:"publish"`
}

func defaultConfig() Config {
	return Config{
		BaseUrl:        jupiter.DefaultBaseUrl,
		UserAgent:      default_user_agent,
		Concurrency:    jupiter.DefaultConcurrency,
		TimeoutSeconds: int(jupiter.DefaultTimeout / time.Second),
		Out:            output.DefaultOut,
		Campi:          campus.DefaultActive,
	}
}

func (c Config) timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c Config) campi() (campus.Resolver, error) {
	return campus.NewResolver(c.Campi)
}

// loadConfig layers, from lowest to highest priority: the defaults, the
// config file (and its .local override), the MATRUSP_* environment and the
// flags explicitly set on cmd.
func loadConfig(cmd *cobra.Command) (Config, error) {
	config := defaultConfig()

	path := configutil.Locate(configPath)
	fromFile, err := configutil.ReadConfig[Config](path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return config, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		err = mergo.Merge(&config, fromFile, mergo.WithOverride)
		if err != nil {
			return config, err
		}
	}

	err = configutil.ApplyEnv(&config)
	if err != nil {
		return config, fmt.Errorf("read environment: %w", err)
	}

	applyFlags(cmd, &config)

	if config.Concurrency <= 0 {
		return config, fmt.Errorf("concurrency must be positive, got %d", config.Concurrency)
	}
	if config.TimeoutSeconds <= 0 {
		return config, fmt.Errorf("timeout must be positive, got %d", config.TimeoutSeconds)
	}
	_, err = config.campi()
	if err != nil {
		return config, err
	}
	return config, nil
}

var flags struct {
	baseUrl     string
	concurrency int
	timeout     int
	out         string
	noGzip      bool
	brotli      bool
	units       []int
	campi       []string
	database    string
	rps         float64
	insecure    bool
	report      string
}

func addCrawlFlags(cmd *cobra.Command) {
	defaults := defaultConfig()
	f := cmd.Flags()
	f.StringVar(&flags.baseUrl, "base-url", defaults.BaseUrl, "JupiterWeb base url")
	f.IntVarP(&flags.concurrency, "concurrency", "s", defaults.Concurrency, "number of subjects fetched at the same time")
	f.IntVarP(&flags.timeout, "timeout", "t", defaults.TimeoutSeconds, "request timeout in seconds, doubled on retry")
	f.StringVarP(&flags.out, "out", "o", defaults.Out, "file name of the aggregate dataset")
	f.BoolVar(&flags.noGzip, "nogzip", false, "do not write gzipped copies of the JSON files")
	f.BoolVar(&flags.brotli, "brotli", false, "also write brotli compressed copies of the JSON files")
	f.IntSliceVarP(&flags.units, "units", "u", nil, "only crawl these unit codes")
	f.StringSliceVar(&flags.campi, "campi", defaults.Campi, "campi whose units are resolved by name, * for all of them")
	f.StringVar(&flags.database, "db", "", "also store the dataset into this sqlite file")
	f.Float64Var(&flags.rps, "rps", 0, "limit the request rate, 0 is unlimited")
	f.BoolVar(&flags.insecure, "insecure", false, "skip TLS certificate verification")
	f.StringVar(&flags.report, "report", "", "write a markdown report of the run to this file")
}

func applyFlags(cmd *cobra.Command, config *Config) {
	f := cmd.Flags()
	changed := func(name string) bool {
		return f.Lookup(name) != nil && f.Changed(name)
	}
	if changed("base-url") {
		config.BaseUrl = flags.baseUrl
	}
	if changed("concurrency") {
		config.Concurrency = flags.concurrency
	}
	if changed("timeout") {
		config.TimeoutSeconds = flags.timeout
	}
	if changed("out") {
		config.Out = flags.out
	}
	if changed("nogzip") {
		config.NoGzip = flags.noGzip
	}
	if changed("brotli") {
		config.Brotli = flags.brotli
	}
	if changed("units") {
		config.Units = flags.units
	}
	if changed("campi") {
		config.Campi = flags.campi
	}
	if changed("db") {
		config.Database = flags.database
	}
	if changed("rps") {
		config.RequestsPerSecond = flags.rps
	}
	if changed("insecure") {
		config.InsecureSkipVerify = flags.insecure
	}
	if changed("report") {
		config.Report = flags.report
	}
}
