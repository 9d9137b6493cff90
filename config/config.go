package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/maastricht-university/svs-acoustic/residual"
	"github.com/maastricht-university/svs-acoustic/stream"
)

// ResidualF0 enables residual log-F0 correction on a model. OutIndex is the
// log-F0 column in that model's own output.
type ResidualF0 struct {
	OutIndex         int     `yaml:"out_index" mapstructure:"out_index"`
	MaxResidualCents float64 `yaml:"max_residual_cents" mapstructure:"max_residual_cents"`
}

type Model struct {
	URL            string        `yaml:"url" mapstructure:"url"`
	TimeoutSeconds int           `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	OutDim         int           `yaml:"out_dim" mapstructure:"out_dim"`
	Mixture        bool          `yaml:"mixture" mapstructure:"mixture"`
	DimWise        bool          `yaml:"dim_wise" mapstructure:"dim_wise"`
	Streams        stream.Layout `yaml:"streams" mapstructure:"streams"`
	ResidualF0     *ResidualF0   `yaml:"residual_f0" mapstructure:"residual_f0"`
	ShallowAR      string        `yaml:"shallow_ar" mapstructure:"shallow_ar"` // filter checkpoint path
}

type Models struct {
	Energy Model `yaml:"energy" mapstructure:"energy"`
	Pitch  Model `yaml:"pitch" mapstructure:"pitch"`
	Timbre Model `yaml:"timbre" mapstructure:"timbre"`
}

type Root struct {
	Pipeline struct {
		Name    string `yaml:"name" mapstructure:"name"`
		Version string `yaml:"version" mapstructure:"version"`
		LogLvl  string `yaml:"log_level" mapstructure:"log_level"`
	} `yaml:"pipeline" mapstructure:"pipeline"`
	Pitch  residual.Params `yaml:"pitch" mapstructure:"pitch"`
	Models Models          `yaml:"models" mapstructure:"models"`
	Paths  struct {
		Outputs string `yaml:"outputs" mapstructure:"outputs"`
	} `yaml:"paths" mapstructure:"paths"`
}

// Load reads path, or when path is empty looks for config.yaml under
// config/$CONFIG_ENV (default dev) and then the working directory.
// SVS_-prefixed environment variables override file values, e.g.
// SVS_PIPELINE_LOG_LEVEL.
func Load(path string) (*Root, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SVS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join("config", env))
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Root
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := residual.DefaultParams()
	v.SetDefault("pipeline.log_level", "info")
	v.SetDefault("paths.outputs", "outputs")
	v.SetDefault("pitch.in_index", d.InIndex)
	v.SetDefault("pitch.in_min", d.InMin)
	v.SetDefault("pitch.in_max", d.InMax)
	v.SetDefault("pitch.out_index", d.OutIndex)
	v.SetDefault("pitch.out_mean", d.OutMean)
	v.SetDefault("pitch.out_scale", d.OutScale)
	v.SetDefault("pitch.max_residual_cents", d.MaxResidualCents)
}

func DurSeconds(n int) time.Duration { return time.Duration(n) * time.Second }
