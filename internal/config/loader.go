package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	defaultListenPort   = 5000
	defaultFetchTimeout = 30 * time.Second
	defaultWaitTimeout  = 10 * time.Second
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	for i := range cfg.Origins {
		applyOriginDefaults(&cfg.Origins[i])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := resolvePaths(&cfg.Global); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", defaultListenPort)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("StoragePath", "")
	v.SetDefault("PlaceholderPath", "")
	v.SetDefault("AliveTime", 0)
	v.SetDefault("FetchTimeout", "30s")
	v.SetDefault("WaitTimeout", "10s")
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = defaultListenPort
	}
	if g.FetchTimeout.DurationValue() == 0 {
		g.FetchTimeout = Duration(defaultFetchTimeout)
	}
	if g.WaitTimeout.DurationValue() == 0 {
		g.WaitTimeout = Duration(defaultWaitTimeout)
	}
	g.StoragePath = strings.TrimSpace(g.StoragePath)
	g.PlaceholderPath = strings.TrimSpace(g.PlaceholderPath)
}

func applyOriginDefaults(o *OriginConfig) {
	o.Name = strings.ToLower(strings.TrimSpace(o.Name))
	o.Upstream = strings.TrimRight(strings.TrimSpace(o.Upstream), "/")
}

// resolvePaths 把相对路径转换为绝对路径；空值保持为空，表示对应功能关闭。
func resolvePaths(g *GlobalConfig) error {
	if g.StoragePath != "" {
		abs, err := filepath.Abs(g.StoragePath)
		if err != nil {
			return fmt.Errorf("无法解析缓存目录: %w", err)
		}
		g.StoragePath = abs
	}
	if g.PlaceholderPath != "" {
		abs, err := filepath.Abs(g.PlaceholderPath)
		if err != nil {
			return fmt.Errorf("无法解析占位文件路径: %w", err)
		}
		g.PlaceholderPath = abs
	}
	return nil
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
