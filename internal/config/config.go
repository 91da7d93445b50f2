package config

import (
	"errors"
	"io/fs"
	"sync"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/John-Robertt/v2raygen/pkg/logger"
)

type Config struct {
	Logger       logger.Config `yaml:"logger"`
	Subscription Subscription  `yaml:"subscription"`
	Ports        Ports         `yaml:"ports"`
	Output       Output        `yaml:"output"`
	Routing      Routing       `yaml:"routing"`
}

type Subscription struct {
	URL             string `yaml:"url" env:"SUB_URL" env-description:"Subscription link to download from"`
	File            string `yaml:"file" env:"SUB_FILE" env-default:"server_list/downloaded_subscription.txt" env-description:"Local subscription file path"`
	FetchTimeoutSec int    `yaml:"fetch_timeout_sec" env:"SUB_FETCH_TIMEOUT_SEC" env-default:"15" env-description:"Subscription download timeout"`
}

type Ports struct {
	SocksBase int `yaml:"socks_base" env:"SOCKS_PORT_BASE" env-default:"50001" env-description:"Starting SOCKS inbound port"`
	HTTPBase  int `yaml:"http_base" env:"HTTP_PORT_BASE" env-default:"51001" env-description:"Starting HTTP inbound port"`
}

type Output struct {
	ConfigFile    string `yaml:"config" env:"CONFIG_FILE" env-default:"config/config.json" env-description:"Base config output path; _local/_lan suffixed files are written"`
	MapFile       string `yaml:"map" env:"MAP_FILE" env-default:"config/inbound_outbound_map.json" env-description:"In-out map JSON output path"`
	ServerListDir string `yaml:"server_list_dir" env:"SERVER_LIST_DIR" env-default:"server_list" env-description:"Directory for intermediate subscription artifacts"`
}

type Routing struct {
	// PreferredIndex picks the node used for the preferred-domain routing
	// rule; set to -1 to disable. Indexes past the end of the subscription
	// are ignored rather than failing the run.
	PreferredIndex int `yaml:"preferred_index" env:"PREFERRED_NODE_INDEX" env-default:"29" env-description:"Node index for the preferred-domain rule"`
}

var (
	once   = sync.Once{}
	cfg    = &Config{}
	errCfg error
)

// New reads the YAML config at configPath with env overrides. A missing file
// is not an error: defaults plus environment apply, so the tool works with no
// config file at all.
func New(configPath string, skipConfig bool) (*Config, error) {
	once.Do(func() {
		cfg = &Config{}

		if skipConfig {
			errCfg = cleanenv.ReadEnv(cfg)
			return
		}

		errCfg = cleanenv.ReadConfig(configPath, cfg)
		if errors.Is(errCfg, fs.ErrNotExist) {
			errCfg = cleanenv.ReadEnv(cfg)
		}
	})

	return cfg, errCfg
}
