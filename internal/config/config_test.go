package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	cfgPath := testConfigPath(t, "valid.toml")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.Global.WaitTimeout.DurationValue() != defaultWaitTimeout {
		t.Fatalf("WaitTimeout 应该自动填充默认值，实际 %v", cfg.Global.WaitTimeout.DurationValue())
	}
	if cfg.Global.FetchTimeout.DurationValue() != 15*time.Second {
		t.Fatalf("纯数字 FetchTimeout 应按秒解析，实际 %v", cfg.Global.FetchTimeout.DurationValue())
	}
	if cfg.Global.AliveTime.DurationValue() != time.Hour {
		t.Fatalf("AliveTime 应被保留")
	}
	if !filepath.IsAbs(cfg.Global.StoragePath) || !cfg.Global.DiskEnabled() {
		t.Fatalf("StoragePath 应转换为绝对路径: %s", cfg.Global.StoragePath)
	}
	if !filepath.IsAbs(cfg.Global.PlaceholderPath) {
		t.Fatalf("PlaceholderPath 应转换为绝对路径: %s", cfg.Global.PlaceholderPath)
	}
	if !cfg.Global.LogCompress || cfg.Global.LogMaxBackups != 10 {
		t.Fatalf("日志轮转默认值缺失: %+v", cfg.Global)
	}
	if len(cfg.Origins) != 2 {
		t.Fatalf("应解析出 2 个 Origin，实际 %d", len(cfg.Origins))
	}
	if cfg.Origins[0].Name != "unsplash" || cfg.Origins[0].Upstream != "https://images.unsplash.com" {
		t.Fatalf("Origin 未被规范化: %+v", cfg.Origins[0])
	}
}

func TestLoadWithoutStorageKeepsDiskDisabled(t *testing.T) {
	path := writeTempConfig(t, `ListenPort = 6000`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.Global.DiskEnabled() || cfg.Global.StoragePath != "" {
		t.Fatalf("未配置 StoragePath 时不应启用磁盘缓存")
	}
	if cfg.Global.PlaceholderPath != "" {
		t.Fatalf("未配置 PlaceholderPath 时应保持为空")
	}
	if len(cfg.Origins) != 0 {
		t.Fatalf("Origin 为可选项")
	}
}

func TestValidateEnforcesListenPortRange(t *testing.T) {
	cfg := validConfig()
	cfg.Global.ListenPort = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatalf("ListenPort 超出范围应当报错")
	}
}

func TestValidateGlobalFields(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative alive time", func(c *Config) { c.Global.AliveTime = Duration(-time.Second) }},
		{"zero fetch timeout", func(c *Config) { c.Global.FetchTimeout = 0 }},
		{"zero wait timeout", func(c *Config) { c.Global.WaitTimeout = 0 }},
		{"unknown log level", func(c *Config) { c.Global.LogLevel = "loud" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestOriginValidation(t *testing.T) {
	testCases := []struct {
		name      string
		origin    OriginConfig
		shouldErr bool
	}{
		{"https ok", OriginConfig{Name: "cdn", Upstream: "https://cdn.example.com"}, false},
		{"http ok", OriginConfig{Name: "cdn", Upstream: "http://10.0.0.1:8080"}, false},
		{"missing name", OriginConfig{Upstream: "https://cdn.example.com"}, true},
		{"slash in name", OriginConfig{Name: "a/b", Upstream: "https://cdn.example.com"}, true},
		{"missing upstream", OriginConfig{Name: "cdn"}, true},
		{"unsupported scheme", OriginConfig{Name: "cdn", Upstream: "ftp://cdn.example.com"}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Origins = []OriginConfig{tc.origin}
			err := cfg.Validate()
			if tc.shouldErr && err == nil {
				t.Fatalf("expected error for origin %+v", tc.origin)
			}
			if !tc.shouldErr && err != nil {
				t.Fatalf("unexpected error for origin %+v: %v", tc.origin, err)
			}
		})
	}
}

func TestValidateRejectsDuplicateOrigins(t *testing.T) {
	cfg := validConfig()
	cfg.Origins = append(cfg.Origins, cfg.Origins[0])
	err := cfg.Validate()
	fieldErr, ok := err.(FieldError)
	if !ok {
		t.Fatalf("重复 Origin 应返回 FieldError，实际 %v", err)
	}
	if fieldErr.Field != "Origin[cdn].Name" {
		t.Fatalf("字段路径不正确: %s", fieldErr.Field)
	}
}

func TestValidateRejectsCaseInsensitiveDuplicateOrigins(t *testing.T) {
	cfg := validConfig()
	cfg.Origins = []OriginConfig{
		{Name: "Foo", Upstream: "https://a.example.com"},
		{Name: "foo", Upstream: "https://b.example.com"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("仅大小写不同的 Origin 应视为重复")
	}
}

func TestOriginNames(t *testing.T) {
	if names := OriginNames(nil); names != nil {
		t.Fatalf("空列表应返回 nil")
	}
	names := OriginNames(validConfig().Origins)
	if len(names) != 1 || names[0] != "cdn" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func validConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			ListenPort:   5000,
			LogLevel:     "info",
			FetchTimeout: Duration(time.Second),
			WaitTimeout:  Duration(time.Second),
		},
		Origins: []OriginConfig{
			{
				Name:     "cdn",
				Upstream: "https://cdn.example.com",
			},
		},
	}
}
