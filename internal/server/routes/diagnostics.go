package routes

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/any-hub/any-cache/internal/cache"
	"github.com/any-hub/any-cache/internal/server"
)

// StatsProvider 是 /-/stats 所需的最小接口，*cache.Cache 满足它。
type StatsProvider interface {
	Stats() cache.Stats
}

// RegisterDiagnostics 暴露 /-/stats 与 /-/metrics 诊断接口。
// gatherer 为空时不注册 /-/metrics。
func RegisterDiagnostics(app *fiber.App, stats StatsProvider, origins *server.OriginRegistry, gatherer prometheus.Gatherer) {
	if app == nil || stats == nil {
		return
	}

	app.Get("/-/stats", func(c fiber.Ctx) error {
		return c.JSON(encodeStats(stats.Stats(), origins.List()))
	})

	if gatherer != nil {
		app.Get("/-/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}

// statsPayload 中的 alive_time_ms 仅反映配置值，缓存条目不会因此过期。
type statsPayload struct {
	Entries         int             `json:"entries"`
	InFlight        int             `json:"in_flight"`
	DiskEnabled     bool            `json:"disk_enabled"`
	DiskPath        string          `json:"disk_path,omitempty"`
	Placeholder     bool            `json:"placeholder"`
	AliveTimeMillis int64           `json:"alive_time_ms"`
	Origins         []originPayload `json:"origins"`
}

type originPayload struct {
	Name     string `json:"name"`
	Upstream string `json:"upstream"`
}

func encodeStats(s cache.Stats, routes []server.OriginRoute) statsPayload {
	payload := statsPayload{
		Entries:         s.Entries,
		InFlight:        s.InFlight,
		DiskEnabled:     s.DiskEnabled,
		DiskPath:        s.DiskPath,
		Placeholder:     s.Placeholder,
		AliveTimeMillis: s.AliveTime.Milliseconds(),
		Origins:         make([]originPayload, 0, len(routes)),
	}
	for _, route := range routes {
		payload.Origins = append(payload.Origins, originPayload{
			Name:     route.Config.Name,
			Upstream: route.UpstreamURL.String(),
		})
	}
	return payload
}
