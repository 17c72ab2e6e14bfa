package cache

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Key 是规范化之后的 URL，构造后不可变。String 用作 map 键，Hash 用于分片和磁盘文件名。
type Key struct {
	url  *url.URL
	raw  string
	hash uint64
}

// Normalize 将原始字符串解析为 Key：scheme/host 小写、去掉 fragment 与默认端口，空路径补为 "/"。
func Normalize(raw string) (Key, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Key{}, fmt.Errorf("%w: empty url", ErrInvalidKey)
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if u.Scheme == "" {
		return Key{}, fmt.Errorf("%w: missing scheme in %q", ErrInvalidKey, trimmed)
	}
	if u.Host == "" || u.Opaque != "" {
		return Key{}, fmt.Errorf("%w: missing host in %q", ErrInvalidKey, trimmed)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = canonicalHost(u.Scheme, u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}

	s := u.String()
	return Key{url: u, raw: s, hash: xxhash.Sum64String(s)}, nil
}

// MustNormalize 用于测试与常量 URL，解析失败直接 panic。
func MustNormalize(raw string) Key {
	key, err := Normalize(raw)
	if err != nil {
		panic(err)
	}
	return key
}

// String 返回规范化后的 URL 字符串。
func (k Key) String() string {
	return k.raw
}

// Hash 返回规范化字符串的 xxhash64。
func (k Key) Hash() uint64 {
	return k.hash
}

// URL 返回解析结果的副本，调用方修改不会影响 Key。
func (k Key) URL() *url.URL {
	if k.url == nil {
		return nil
	}
	clone := *k.url
	return &clone
}

// IsZero 表示 Key 未经 Normalize 构造。
func (k Key) IsZero() bool {
	return k.url == nil
}

func canonicalHost(scheme, hostport string) string {
	host := hostport
	port := ""
	if h, p, err := net.SplitHostPort(hostport); err == nil {
		host, port = h, p
	}
	host = strings.ToLower(strings.TrimSuffix(strings.Trim(host, "[]"), "."))

	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		return net.JoinHostPort(host, port)
	}
	if strings.Contains(host, ":") {
		return "[" + host + "]"
	}
	return host
}
