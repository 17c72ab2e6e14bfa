package cache

import (
	"context"
	"io"
	"net/http"
)

// Fetcher 是网络回源原语：返回 URL 对应的完整字节或错误，Cache 对所有错误一视同仁。
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// FetcherFunc 允许用普通函数实现 Fetcher，测试中常用。
type FetcherFunc func(ctx context.Context, rawURL string) ([]byte, error)

// Fetch 使 FetcherFunc 满足 Fetcher。
func (f FetcherFunc) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	return f(ctx, rawURL)
}

// HTTPFetcher 通过 GET 请求拉取内容，非 2xx 响应视为失败。
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher 使用给定 client 构造 Fetcher，client 为空时退回 http.DefaultClient。
func NewHTTPFetcher(client *http.Client, userAgent string) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{client: client, userAgent: userAgent}
}

// Fetch 发起 GET 请求并读取完整响应体。
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{URL: rawURL, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	return body, nil
}
