package cache

import "sync"

// InFlight 记录正在回源的 Key 以及在此期间加入等待的 Reply。
// 一个 Key 从 fetch 被调度起存在，直到该 fetch 的收尾逻辑执行完毕。
type InFlight struct {
	mu   sync.Mutex
	keys map[string][]*Reply
}

// NewInFlight 创建空的在途登记表。
func NewInFlight() *InFlight {
	return &InFlight{keys: make(map[string][]*Reply)}
}

// TryMark 原子地登记 key：首次登记返回 true，调用方负责发起 fetch；
// key 已在途时返回 false，并把 waiter（非 nil 时）挂到该 key 上等待结果。
func (f *InFlight) TryMark(key Key, waiter *Reply) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	waiters, exists := f.keys[key.String()]
	if exists {
		if waiter != nil {
			f.keys[key.String()] = append(waiters, waiter)
		}
		return false
	}
	f.keys[key.String()] = nil
	return true
}

// Unmark 移除 key，并返回在途期间挂入的 waiter。
func (f *InFlight) Unmark(key Key) []*Reply {
	f.mu.Lock()
	defer f.mu.Unlock()

	waiters := f.keys[key.String()]
	delete(f.keys, key.String())
	return waiters
}

// Contains 报告 key 当前是否在途。
func (f *InFlight) Contains(key Key) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.keys[key.String()]
	return ok
}

// Len 返回在途 key 数量。
func (f *InFlight) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.keys)
}
