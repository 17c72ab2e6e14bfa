package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// DiskStore 是可选的磁盘影子缓存：每个 Key 对应 basePath 下的一个文件，
// 文件名为规范化 URL 的 xxhash64（16 位十六进制），内容为原始字节，不带任何元数据。
// 目录被视为由单个 Cache 实例独占。
type DiskStore struct {
	basePath string

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

// NewDiskStore 以 basePath 为根目录构建磁盘缓存，目录不存在时自动创建。
func NewDiskStore(basePath string) (*DiskStore, error) {
	if basePath == "" {
		return nil, errors.New("storage path required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	return &DiskStore{
		basePath: abs,
		locks:    make(map[string]*entryLock),
	}, nil
}

// Dir 返回缓存根目录的绝对路径。
func (s *DiskStore) Dir() string {
	return s.basePath
}

// PathFor 返回 key 对应的缓存文件路径，结果只与规范化 URL 有关。
func (s *DiskStore) PathFor(key Key) string {
	return filepath.Join(s.basePath, fmt.Sprintf("%016x", key.Hash()))
}

// TryRead 读取 key 对应的缓存文件；文件不存在与读取失败一律视为未命中。
func (s *DiskStore) TryRead(ctx context.Context, key Key) (Payload, bool) {
	p, err := s.read(ctx, key)
	return p, err == nil
}

// read 与 TryRead 相同，但保留失败原因（均包裹 ErrDiskMiss）供日志使用。
func (s *DiskStore) read(ctx context.Context, key Key) (Payload, error) {
	if err := ctx.Err(); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrDiskMiss, err)
	}

	filePath := s.PathFor(key)
	info, err := os.Stat(filePath)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrDiskMiss, err)
	}
	if info.IsDir() {
		return Payload{}, fmt.Errorf("%w: %s is a directory", ErrDiskMiss, filePath)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrDiskMiss, err)
	}
	return ownedPayload(data, SourceDisk), nil
}

// Write 通过临时文件 + rename 原子地写入 payload；同一 Key 的并发写入被串行化。
func (s *DiskStore) Write(ctx context.Context, key Key, p Payload) error {
	unlock := s.lockEntry(key)
	defer unlock()

	filePath := s.PathFor(key)
	tempFile, err := os.CreateTemp(s.basePath, ".cache-*")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	_, err = copyWithContext(ctx, tempFile, p.Reader())
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return err
	}

	if err := os.Rename(tempName, filePath); err != nil {
		os.Remove(tempName)
		return err
	}
	return nil
}

func (s *DiskStore) lockEntry(key Key) func() {
	name := key.String()
	s.mu.Lock()
	lock := s.locks[name]
	if lock == nil {
		lock = &entryLock{}
		s.locks[name] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, name)
		}
		s.mu.Unlock()
	}
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
