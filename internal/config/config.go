package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

const (
	DefaultProjectName   = "Test project"
	DefaultInventoryFile = "inventory"
	DefaultAWXURL        = "https://localhost"
	DefaultProjectsRoot  = "/var/lib/awx/projects"

	// The sync wait budget is fixed: 120 checks, one second apart.
	DefaultSyncAttempts = 120
	DefaultSyncInterval = time.Second
)

// Config holds everything a single inventory run needs.
type Config struct {
	AWXURL    string `yaml:"awx_url"`
	Token     string `yaml:"token"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	VerifySSL bool   `yaml:"verify_ssl"`

	ProjectName   string `yaml:"project_name"`
	InventoryFile string `yaml:"inventory_file"`
	ProjectsRoot  string `yaml:"projects_root"`
	StrictSync    bool   `yaml:"strict_sync"`

	SyncAttempts int           `yaml:"-"`
	SyncInterval time.Duration `yaml:"-"`
}

// Default returns a Config with every field at its default value.
func Default() *Config {
	return &Config{
		AWXURL:        DefaultAWXURL,
		VerifySSL:     true,
		ProjectName:   DefaultProjectName,
		InventoryFile: DefaultInventoryFile,
		ProjectsRoot:  DefaultProjectsRoot,
		SyncAttempts:  DefaultSyncAttempts,
		SyncInterval:  DefaultSyncInterval,
	}
}

// Load builds a Config from defaults, the optional YAML file at path and
// the environment, in that order of precedence (lowest first).
// An empty path means no file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.ProjectName = getEnv(c.ProjectName, "PROJECT_NAME")
	c.InventoryFile = getEnv(c.InventoryFile, "INVENTORY_FILE")
	c.AWXURL = getEnv(c.AWXURL, "AWX_URL", "TOWER_HOST")
	c.Token = getEnv(c.Token, "AWX_TOKEN", "TOWER_OAUTH_TOKEN")
	c.Username = getEnv(c.Username, "AWX_USERNAME", "TOWER_USERNAME")
	c.Password = getEnv(c.Password, "AWX_PASSWORD", "TOWER_PASSWORD")
	c.ProjectsRoot = getEnv(c.ProjectsRoot, "AWX_PROJECTS_ROOT")

	if v := getEnv("", "AWX_VERIFY_SSL", "TOWER_VERIFY_SSL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid AWX_VERIFY_SSL %q: %w", v, err)
		}
		c.VerifySSL = b
	}
	return nil
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if c.ProjectName == "" {
		errs = append(errs, fmt.Errorf("project name is empty"))
	}
	if c.InventoryFile == "" {
		errs = append(errs, fmt.Errorf("inventory file name is empty"))
	}
	if c.ProjectsRoot == "" {
		errs = append(errs, fmt.Errorf("projects root is empty"))
	}

	u, err := url.Parse(c.AWXURL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("invalid AWX URL %q: %w", c.AWXURL, err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("AWX URL %q must use http or https", c.AWXURL))
	case u.Host == "":
		errs = append(errs, fmt.Errorf("AWX URL %q has no host", c.AWXURL))
	}

	if c.Token != "" && c.Username != "" {
		errs = append(errs, fmt.Errorf("token and username are mutually exclusive"))
	}
	if c.Username != "" && c.Password == "" {
		errs = append(errs, fmt.Errorf("username %q given without a password", c.Username))
	}
	if c.SyncAttempts < 1 {
		errs = append(errs, fmt.Errorf("sync attempts must be positive, got %d", c.SyncAttempts))
	}

	return utilerrors.NewAggregate(errs)
}

// getEnv returns the value of the first set key, or fallback.
func getEnv(fallback string, keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return fallback
}
