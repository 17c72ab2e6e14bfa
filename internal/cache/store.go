package cache

import (
	"sort"

	gocache "github.com/patrickmn/go-cache"
)

// ResultStore 是权威的内存缓存：Key → Payload，底层为不过期的 go-cache。
// 只支持插入或覆盖（后写者胜出），不提供删除与淘汰。
type ResultStore struct {
	items *gocache.Cache
}

// NewResultStore 创建空的存储；条目永不过期，也不启动清理协程。
func NewResultStore() *ResultStore {
	return &ResultStore{
		items: gocache.New(gocache.NoExpiration, 0),
	}
}

// Get 返回缓存的 Payload，来源标记为 SourceMemory。
func (s *ResultStore) Get(key Key) (Payload, bool) {
	obj, found := s.items.Get(key.String())
	if !found {
		return Payload{}, false
	}
	p, ok := obj.(Payload)
	if !ok {
		return Payload{}, false
	}
	return p.withSource(SourceMemory), true
}

// Insert 写入或覆盖 key 对应的 Payload。
func (s *ResultStore) Insert(key Key, p Payload) {
	s.items.Set(key.String(), p, gocache.NoExpiration)
}

// Len 返回当前条目数。
func (s *ResultStore) Len() int {
	return s.items.ItemCount()
}

// Keys 返回已缓存的 URL 列表（排序后），用于诊断输出。
func (s *ResultStore) Keys() []string {
	items := s.items.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
