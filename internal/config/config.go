// Package config 使用 viper 汇总命令行参数、环境变量与配置文件。
// 优先级从高到低：显式 flag、REPOLOC_* 环境变量、配置文件、默认值。
package config

import (
	"regexp"
	"runtime"
	"strings"

	"github.com/jmgilman/go/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix 是环境变量前缀，例如 REPOLOC_USERNAME。
const EnvPrefix = "REPOLOC"

// 配置键。
const (
	KeyUsername      = "username"
	KeyToken         = "token"
	KeyCache         = "cache"
	KeyWorkers       = "workers"
	KeyExclude       = "exclude"
	KeyFormat        = "format"
	KeyOutput        = "output"
	KeyFigure        = "figure"
	KeyFigureMetrics = "figure_metrics"
	KeyReadme        = "readme"
	KeyTemplate      = "template"
	KeyLogLevel      = "log_level"
	KeyAPIURL        = "api_url"
)

// unsafePathChars 匹配不适合出现在文件名中的字符。
var unsafePathChars = regexp.MustCompile(`[^a-z0-9._-]+`)

// FigureMetricNames 是图表可以堆叠的指标。
var FigureMetricNames = []string{"lines", "code", "comments", "blanks"}

// Config 是一次运行的完整配置。
type Config struct {
	Username      string   `mapstructure:"username"`
	Token         string   `mapstructure:"token"`
	Cache         string   `mapstructure:"cache"`
	Workers       int      `mapstructure:"workers"`
	Exclude       []string `mapstructure:"exclude"`
	Format        string   `mapstructure:"format"`
	Output        string   `mapstructure:"output"`
	Figure        string   `mapstructure:"figure"`
	FigureMetrics []string `mapstructure:"figure_metrics"`
	Readme        string   `mapstructure:"readme"`
	Template      string   `mapstructure:"template"`
	LogLevel      string   `mapstructure:"log_level"`
	APIURL        string   `mapstructure:"api_url"`
}

// Default 返回默认配置。Cache 为空表示按账号推导，见 DefaultCachePath。
func Default() *Config {
	return &Config{
		Workers:       runtime.NumCPU(),
		Exclude:       []string{"*.json", "*.svg", "*.SVG"},
		Format:        "table",
		FigureMetrics: []string{"code", "comments", "blanks"},
		LogLevel:      "info",
	}
}

// New 创建带默认值与环境变量绑定的 viper 实例。
func New() *viper.Viper {
	v := viper.New()

	defaults := Default()
	v.SetDefault(KeyUsername, defaults.Username)
	v.SetDefault(KeyToken, defaults.Token)
	v.SetDefault(KeyCache, defaults.Cache)
	v.SetDefault(KeyWorkers, defaults.Workers)
	v.SetDefault(KeyExclude, defaults.Exclude)
	v.SetDefault(KeyFormat, defaults.Format)
	v.SetDefault(KeyOutput, defaults.Output)
	v.SetDefault(KeyFigure, defaults.Figure)
	v.SetDefault(KeyFigureMetrics, defaults.FigureMetrics)
	v.SetDefault(KeyReadme, defaults.Readme)
	v.SetDefault(KeyTemplate, defaults.Template)
	v.SetDefault(KeyLogLevel, defaults.LogLevel)
	v.SetDefault(KeyAPIURL, defaults.APIURL)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// token 额外兼容 GitHub Actions 的 GITHUB_TOKEN。
	_ = v.BindEnv(KeyToken, EnvPrefix+"_TOKEN", "GITHUB_TOKEN")

	return v
}

// BindFlags 把 flag 绑定到同名配置键，flag 名中的 - 对应键中的 _。
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(flag *pflag.Flag) {
		if bindErr != nil {
			return
		}
		key := strings.ReplaceAll(flag.Name, "-", "_")
		if err := v.BindPFlag(key, flag); err != nil {
			bindErr = errors.WithContext(errors.Wrap(err, errors.CodeInvalidConfig, "failed to bind flag"), "flag", flag.Name)
		}
	})
	return bindErr
}

// Load 读取可选配置文件并解码、校验配置。configFile 为空时只使用 flag 与环境变量。
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			err = errors.Wrap(err, errors.CodeInvalidConfig, "failed to read config file")
			return nil, errors.WithContext(err, "path", configFile)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "failed to decode config")
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultCachePath 返回账号专属的缓存文件名。缓存条目只以仓库名为键，
// 不同账号共用一个文件会互相复用同名仓库的报告。
func DefaultCachePath(username string) string {
	name := unsafePathChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(username)), "_")
	return "checkpoint-" + name + ".db"
}

// normalize 统一大小写并去掉空白，未配置 cache 时按账号推导路径。
func (c *Config) normalize() {
	c.Username = strings.TrimSpace(c.Username)
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	c.Output = strings.TrimSpace(c.Output)
	c.Cache = strings.TrimSpace(c.Cache)
	if c.Cache == "" && c.Username != "" {
		c.Cache = DefaultCachePath(c.Username)
	}
	for i, metric := range c.FigureMetrics {
		c.FigureMetrics[i] = strings.ToLower(strings.TrimSpace(metric))
	}
	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}
}

// Validate 检查与具体子命令无关的配置项。
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return invalid(KeyWorkers, "workers cannot be negative")
	}
	if c.Format != "table" && c.Format != "json" {
		return invalid(KeyFormat, "unsupported format, allowed values: table, json")
	}
	if len(c.FigureMetrics) == 0 {
		return invalid(KeyFigureMetrics, "at least one figure metric is required")
	}
	for _, metric := range c.FigureMetrics {
		if !isFigureMetric(metric) {
			return errors.WithContext(invalid(KeyFigureMetrics, "unsupported figure metric"), "metric", metric)
		}
	}
	return nil
}

// RequireCache 用于只查看缓存的命令：需要显式的 cache 路径或可推导路径的 username。
func (c *Config) RequireCache() error {
	if c.Cache == "" {
		return invalid(KeyCache, "cache path is required (flag --cache or --username)")
	}
	return nil
}

// RequireUsername 用于需要访问 GitHub 的命令。
func (c *Config) RequireUsername() error {
	if c.Username == "" {
		return invalid(KeyUsername, "username is required (flag --username or REPOLOC_USERNAME)")
	}
	return nil
}

func isFigureMetric(metric string) bool {
	for _, name := range FigureMetricNames {
		if metric == name {
			return true
		}
	}
	return false
}

func invalid(field, message string) error {
	return errors.WithContext(errors.New(errors.CodeInvalidConfig, message), "field", field)
}
