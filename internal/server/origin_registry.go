package server

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/any-hub/any-cache/internal/config"
)

// OriginRoute 将 Origin 配置与解析后的上游 URL 聚合在一起，避免每次请求重复解析。
type OriginRoute struct {
	// Config 是用户在 config.toml 中声明的 Origin 字段副本。
	Config config.OriginConfig
	// UpstreamURL 在构造 Registry 时提前解析完成。
	UpstreamURL *url.URL
}

// OriginRegistry 提供别名到 OriginRoute 的查询能力。
type OriginRegistry struct {
	routes  map[string]*OriginRoute
	ordered []*OriginRoute
}

// NewOriginRegistry 根据配置构建别名映射。调用方应在启动阶段创建一次并复用。
func NewOriginRegistry(cfg *config.Config) (*OriginRegistry, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	registry := &OriginRegistry{
		routes: make(map[string]*OriginRoute, len(cfg.Origins)),
	}

	for _, origin := range cfg.Origins {
		name := normalizeOriginName(origin.Name)
		if name == "" {
			return nil, errors.New("origin name is empty")
		}
		if _, exists := registry.routes[name]; exists {
			return nil, fmt.Errorf("duplicate origin alias detected for %s", name)
		}

		upstreamURL, err := url.Parse(origin.Upstream)
		if err != nil {
			return nil, fmt.Errorf("invalid upstream for origin %s: %w", origin.Name, err)
		}
		if upstreamURL.Scheme == "" || upstreamURL.Host == "" {
			return nil, fmt.Errorf("upstream for origin %s must be absolute: %s", origin.Name, origin.Upstream)
		}

		route := &OriginRoute{Config: origin, UpstreamURL: upstreamURL}
		registry.routes[name] = route
		registry.ordered = append(registry.ordered, route)
	}

	return registry, nil
}

// Lookup 根据别名查找 OriginRoute，大小写不敏感。
func (r *OriginRegistry) Lookup(name string) (*OriginRoute, bool) {
	if r == nil {
		return nil, false
	}
	route, ok := r.routes[normalizeOriginName(name)]
	return route, ok
}

// List 返回当前注册的 OriginRoute 列表（按配置定义的顺序），用于 /-/stats 输出。
func (r *OriginRegistry) List() []OriginRoute {
	if r == nil || len(r.ordered) == 0 {
		return nil
	}

	result := make([]OriginRoute, len(r.ordered))
	for i, route := range r.ordered {
		result[i] = *route
	}
	return result
}

// Resolve 把别名下的相对路径与查询串拼接到上游 URL 上，返回可直接传给 Lookup 的地址。
func (r *OriginRegistry) Resolve(name, path, rawQuery string) (string, bool) {
	route, ok := r.Lookup(name)
	if !ok {
		return "", false
	}
	return route.Resolve(path, rawQuery), true
}

// Resolve 把 path 追加到上游基础路径之后。
func (o *OriginRoute) Resolve(path, rawQuery string) string {
	target := *o.UpstreamURL
	base := strings.TrimRight(target.Path, "/")
	target.Path = base + "/" + strings.TrimLeft(path, "/")
	target.RawPath = ""
	target.RawQuery = rawQuery
	target.Fragment = ""
	return target.String()
}

func normalizeOriginName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
