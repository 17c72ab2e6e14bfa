package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.LogLevel != "" {
		if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
			return newFieldError("Global.LogLevel", "无法识别的日志级别: "+g.LogLevel)
		}
	}
	if g.AliveTime.DurationValue() < 0 {
		return newFieldError("Global.AliveTime", "不能为负数")
	}
	if g.FetchTimeout.DurationValue() <= 0 {
		return newFieldError("Global.FetchTimeout", "必须大于 0")
	}
	if g.WaitTimeout.DurationValue() <= 0 {
		return newFieldError("Global.WaitTimeout", "必须大于 0")
	}

	seenNames := map[string]struct{}{}
	for i := range c.Origins {
		origin := &c.Origins[i]
		if origin.Name == "" {
			return newFieldError("Origin[].Name", "不能为空")
		}
		if strings.ContainsAny(origin.Name, "/ ") {
			return newFieldError(originField(origin.Name, "Name"), "不允许包含空格或斜杠")
		}
		// 别名匹配大小写不敏感，按规范化后的名字判重。
		normalized := strings.ToLower(strings.TrimSpace(origin.Name))
		if _, exists := seenNames[normalized]; exists {
			return newFieldError(originField(origin.Name, "Name"), "重复")
		}
		seenNames[normalized] = struct{}{}

		if err := validateUpstream(origin.Upstream); err != nil {
			return fmt.Errorf("%s: %w", originField(origin.Name, "Upstream"), err)
		}
	}

	return nil
}

func validateUpstream(raw string) error {
	if raw == "" {
		return errors.New("缺少上游地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，上游: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("上游缺少 Host: %s", raw)
	}
	return nil
}
