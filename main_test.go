package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseCLIFlagsPriority(t *testing.T) {
	t.Setenv("ANY_CACHE_CONFIG", "/tmp/env.toml")

	opts, err := parseCLIFlags([]string{})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/env.toml" {
		t.Fatalf("应优先使用环境变量，得到 %s", opts.configPath)
	}

	opts, err = parseCLIFlags([]string{"--config", "/tmp/flag.toml", "-fetch", "https://example.com/a.png"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/flag.toml" {
		t.Fatalf("flag 应高于环境变量，得到 %s", opts.configPath)
	}
	if opts.fetchURL != "https://example.com/a.png" {
		t.Fatalf("fetch 参数未解析，得到 %s", opts.fetchURL)
	}
}

func TestParseCLIFlagsDefaultPath(t *testing.T) {
	t.Setenv("ANY_CACHE_CONFIG", "")
	opts, err := parseCLIFlags(nil)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "config.toml" {
		t.Fatalf("默认配置路径应为 config.toml，得到 %s", opts.configPath)
	}
	if _, err := parseCLIFlags([]string{"--unknown"}); err == nil {
		t.Fatalf("未知参数应返回错误")
	}
}

func TestRunCheckConfigSuccess(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "valid.toml"), checkOnly: true})
	if code != 0 {
		t.Fatalf("期望退出码 0，得到 %d", code)
	}
}

func TestRunCheckConfigFailure(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "missing.toml"), checkOnly: true})
	if code == 0 {
		t.Fatalf("无效配置应返回非零退出码")
	}
	if !strings.Contains(stdErrBuffer().String(), "加载配置失败") {
		t.Fatalf("stderr 应包含错误提示，得到 %s", stdErrBuffer().String())
	}
}

func TestRunVersionOutput(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{showVersion: true})
	if code != 0 {
		t.Fatalf("version 模式应成功退出，得到 %d", code)
	}
	if !strings.Contains(stdOutBuffer().String(), "any-cache") {
		t.Fatalf("version 输出应包含 any-cache 标识")
	}
}

func TestRunFetchWritesPayloadAndPersists(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "any-cache/") {
			http.Error(w, "bad agent", http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte("remote-bytes"))
	}))
	defer upstream.Close()

	storage := filepath.Join(t.TempDir(), "storage")
	configPath := writeConfigFile(t, fmt.Sprintf(`
LogLevel = "error"
StoragePath = "%s"
FetchTimeout = "5s"
`, storage))

	useBufferWriters(t)
	code := run(cliOptions{configPath: configPath, fetchURL: upstream.URL + "/a.bin"})
	if code != 0 {
		t.Fatalf("fetch 模式应成功退出，得到 %d (stderr=%s)", code, stdErrBuffer().String())
	}
	if got := stdOut.(*bytes.Buffer).String(); got != "remote-bytes" {
		t.Fatalf("stdout 应输出原始内容，得到 %q", got)
	}

	entries, err := os.ReadDir(storage)
	if err != nil {
		t.Fatalf("读取缓存目录失败: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("应落盘 1 个文件，实际 %d", len(entries))
	}
}

func TestRunFetchFailsOnInvalidURL(t *testing.T) {
	configPath := writeConfigFile(t, `LogLevel = "error"`)

	useBufferWriters(t)
	code := run(cliOptions{configPath: configPath, fetchURL: "not a url"})
	if code == 0 {
		t.Fatalf("无效 URL 应返回非零退出码")
	}
	if !strings.Contains(stdErrBuffer().String(), "无效的 URL") {
		t.Fatalf("stderr 应提示无效 URL，得到 %s", stdErrBuffer().String())
	}
}

func TestRunFailsWhenPlaceholderMissing(t *testing.T) {
	configPath := writeConfigFile(t, fmt.Sprintf(`
LogLevel = "error"
PlaceholderPath = "%s"
`, filepath.Join(t.TempDir(), "absent.png")))

	useBufferWriters(t)
	code := run(cliOptions{configPath: configPath, fetchURL: "https://example.com/a.png"})
	if code == 0 {
		t.Fatalf("占位文件缺失应返回非零退出码")
	}
}
