// Package config loads the settings of the zonalbatch command from a yaml file.
package config

import (
	"bytes"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"os"
	"time"
)

//Config settings of one calculation plus the run history and publishing targets
type Config struct {
	Raster          string        `yaml:"raster"`
	Vector          string        `yaml:"vector"`
	IDField         string        `yaml:"id_field"`
	Aggregates      []string      `yaml:"aggregates"`
	Arrays          []string      `yaml:"arrays"`
	ParallelJobs    int           `yaml:"parallel_jobs"`
	Output          string        `yaml:"output"`
	Virtual         bool          `yaml:"virtual"`
	Prefix          string        `yaml:"prefix"`
	Format          string        `yaml:"format"`
	Checksum        string        `yaml:"checksum"`
	MaxRunningTasks int           `yaml:"max_running_tasks"`
	LogLevel        string        `yaml:"log_level"`
	DB              DBConfig      `yaml:"db"`
	Publish         PublishConfig `yaml:"publish"`
}

//DBConfig run history database, an empty driver disables recording
type DBConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type PublishConfig struct {
	FTP  *FTPConfig `yaml:"ftp"`
	Path string     `yaml:"path"`
}

type FTPConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	User     string        `yaml:"user"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`
}

//Default the settings used for keys missing in the file
func Default() *Config {
	return &Config{
		ParallelJobs:    1,
		MaxRunningTasks: 16,
		LogLevel:        "info",
	}
}

//Load read path over the defaults, unknown keys are an error
func Load(path string) (*Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config file %s", path)
	}
	return Parse(contents)
}

//Parse decode yaml contents over the defaults
func Parse(contents []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(contents))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if cfg.Publish.FTP != nil {
		if cfg.Publish.FTP.Port == 0 {
			cfg.Publish.FTP.Port = 21
		}
		if cfg.Publish.FTP.Timeout == 0 {
			cfg.Publish.FTP.Timeout = 30 * time.Second
		}
	}
	return cfg, nil
}
