package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/any-hub/any-cache/internal/cache"
	"github.com/any-hub/any-cache/internal/config"
	"github.com/any-hub/any-cache/internal/logging"
	"github.com/any-hub/any-cache/internal/server"
	"github.com/any-hub/any-cache/internal/server/routes"
	"github.com/any-hub/any-cache/internal/version"
)

const shutdownTimeout = 5 * time.Second

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	fetchURL    string
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["origins"] = config.OriginNames(cfg.Origins)
		fields["disk_enabled"] = cfg.Global.DiskEnabled()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 启动顺序为 “配置 → 指标注册表 → Cache → Fiber server”，
	// 所有请求共享同一个 Cache 实例，保证在途去重跨请求生效。
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	c, err := buildCache(ctx, cfg, logger, registry)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存失败: %v\n", err)
		return 1
	}

	if opts.fetchURL != "" {
		return runFetch(ctx, cfg, c, opts.fetchURL)
	}

	origins, err := server.NewOriginRegistry(cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "构建 Origin 注册表失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["origins"] = config.OriginNames(cfg.Origins)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["disk_enabled"] = c.Stats().DiskEnabled
	fields["alive_time"] = cfg.Global.AliveTime.DurationValue().String()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(ctx, cfg, c, origins, registry, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// buildCache 读取占位文件并构造共享的 Cache；占位文件不可读视为配置错误。
func buildCache(ctx context.Context, cfg *config.Config, logger *logrus.Logger, reg prometheus.Registerer) (*cache.Cache, error) {
	var placeholder []byte
	if cfg.Global.PlaceholderPath != "" {
		data, err := os.ReadFile(cfg.Global.PlaceholderPath)
		if err != nil {
			return nil, fmt.Errorf("读取占位文件失败: %w", err)
		}
		placeholder = data
	}

	fetcher := cache.NewHTTPFetcher(server.NewUpstreamClient(cfg), "any-cache/"+version.Version)
	return cache.New(cache.Config{
		Placeholder:    placeholder,
		LocalCachePath: cfg.Global.StoragePath,
		AliveTime:      cfg.Global.AliveTime.DurationValue(),
	}, fetcher, logger,
		cache.WithMetrics(cache.NewMetrics(reg)),
		cache.WithFetchTimeout(cfg.Global.FetchTimeout.DurationValue()),
		cache.WithContext(ctx),
	), nil
}

// runFetch 执行一次查找并把结果写到 stdout，随后等待落盘完成。
func runFetch(ctx context.Context, cfg *config.Config, c *cache.Cache, raw string) int {
	fetchCtx, cancel := context.WithTimeout(ctx, cfg.Global.FetchTimeout.DurationValue())
	defer cancel()

	payload, err := c.Get(fetchCtx, raw)
	if err != nil {
		switch {
		case errors.Is(err, cache.ErrInvalidKey):
			fmt.Fprintf(stdErr, "无效的 URL: %v\n", err)
		default:
			fmt.Fprintf(stdErr, "获取失败: %v\n", err)
		}
		return 1
	}
	if _, err := stdOut.Write(payload.Bytes()); err != nil {
		fmt.Fprintf(stdErr, "写出结果失败: %v\n", err)
		return 1
	}
	c.Wait()
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("any-cache", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
		fetchURL   string
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 ANY_CACHE_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")
	fs.StringVar(&fetchURL, "fetch", "", "获取单个 URL 并输出到 stdout 后退出")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("ANY_CACHE_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
		fetchURL:    fetchURL,
	}, nil
}

// startHTTPServer 在 errgroup 中运行监听与信号处理，收到退出信号后优雅关闭并等待落盘完成。
func startHTTPServer(ctx context.Context, cfg *config.Config, c *cache.Cache, origins *server.OriginRegistry, reg prometheus.Gatherer, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:      logger,
		Cache:       c,
		Origins:     origins,
		WaitTimeout: cfg.Global.WaitTimeout.DurationValue(),
		ListenPort:  port,
	})
	if err != nil {
		return err
	}
	routes.RegisterDiagnostics(app, c, origins, reg)

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Listen(fmt.Sprintf(":%d", port), fiber.ListenConfig{DisableStartupMessage: true})
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.WithFields(logrus.Fields{"action": "shutdown"}).Info("Fiber 服务关闭")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	err = g.Wait()
	c.Wait()
	return err
}
