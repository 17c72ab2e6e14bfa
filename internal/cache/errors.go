package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidKey 表示原始字符串无法解析为合法的绝对 URL。
	ErrInvalidKey = errors.New("invalid cache key")
	// ErrChannelClosed 表示 Reply 的接收方已经关闭，投递被丢弃。
	ErrChannelClosed = errors.New("reply channel closed")
	// ErrDiskMiss 表示磁盘影子缓存中没有可用条目（不存在或读取失败）。
	ErrDiskMiss = errors.New("disk cache miss")
)

// FetchError 描述一次网络回源失败；Status 为 0 表示请求未拿到响应。
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
