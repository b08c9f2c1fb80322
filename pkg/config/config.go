// config is the package containing configuration for ferryd, shared so
// it can be used by ferryd itself as well as other programs e.g.,
// `ferryctl`.
package config

import (
	"fmt"
	"time"
)

const (
	ConfigPath         = "/etc/ferryd/conf"
	ConfigName         = "ferry-config.yaml"
	ConfigType         = "yaml"
	FerryConfigVersion = "v1"
)

type Config struct {
	// This is expected to be present in a config file (and will not
	// correspond to a flag). The value determines how the config file
	// is interpreted: for now, if it is not equal to
	// FerryConfigVersion above, it is considered an invalid
	// configuration.
	ConfigVersion string `mapstructure:"ferryConfigVersion"`

	LogFormat     string `mapstructure:"logFormat"`
	Listen        string `mapstructure:"listen"`
	ListenMetrics string `mapstructure:"listenMetrics"`

	// Source repository for the application being deployed
	GitURL          string        `mapstructure:"gitUrl"`
	GitBranch       string        `mapstructure:"gitBranch"`
	GitTimeout      time.Duration `mapstructure:"gitTimeout"`
	GitPollInterval time.Duration `mapstructure:"gitPollInterval"`

	// Pipeline definitions
	PipelineFile []string      `mapstructure:"pipelineFile"`
	StageTimeout time.Duration `mapstructure:"stageTimeout"`
	WorkDir      string        `mapstructure:"workDir"`
	AppDir       string        `mapstructure:"appDir"`

	// Python toolchain used for build and test stages
	PythonInterpreter string `mapstructure:"pythonInterpreter"`
	TestCommand       string `mapstructure:"testCommand"`

	// Remote host the deploy stage targets. These may be left empty
	// here and supplied by a credentials provider instead; see
	// provider.go.
	RemoteHost        string `mapstructure:"remoteHost"`
	RemoteUser        string `mapstructure:"remoteUser"`
	RemoteKeyPath     string `mapstructure:"remoteKeyPath"`
	RemoteAppDir      string `mapstructure:"remoteAppDir"`
	RemoteSecretDir   string `mapstructure:"remoteSecretDir"`
	RemoteServiceUnit string `mapstructure:"remoteServiceUnit"`
	RemoteStartCmd    string `mapstructure:"remoteStartCmd"`

	// Webhook trigger settings
	NotifyRPS   float64 `mapstructure:"notifyRps"`
	NotifyBurst int     `mapstructure:"notifyBurst"`

	RunHistoryLimit int `mapstructure:"runHistoryLimit"`
}

func (c Config) IsValid() error {
	if c.ConfigVersion != FerryConfigVersion {
		return fmt.Errorf("config file is expected to include `ferryConfigVersion: %s` to mark it as a ferry config", FerryConfigVersion)
	}
	return nil
}
