package cache

import (
	"context"
	"sync"
)

// Reply 是单个请求独占的投递通道，容量为 1：最多先收到占位内容，再收到最终结果。
// 投递永不阻塞，槽位中尚未被读取的旧值会被新值替换，接收方总能看到最新状态。
type Reply struct {
	ch   chan Payload
	done chan struct{}
	once sync.Once
	mu   sync.Mutex
}

// NewReply 创建一个新的投递通道。
func NewReply() *Reply {
	return &Reply{
		ch:   make(chan Payload, 1),
		done: make(chan struct{}),
	}
}

// C 返回只读通道，供接收方消费。
func (r *Reply) C() <-chan Payload {
	return r.ch
}

// Close 表示接收方不再关心结果，之后的 Send 返回 ErrChannelClosed。可重复调用。
func (r *Reply) Close() {
	r.once.Do(func() { close(r.done) })
}

// Send 非阻塞地投递 Payload。nil Reply 与已关闭的 Reply 都返回 ErrChannelClosed。
func (r *Reply) Send(p Payload) error {
	if r == nil {
		return ErrChannelClosed
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.done:
		return ErrChannelClosed
	default:
	}

	for {
		select {
		case r.ch <- p:
			return nil
		default:
		}
		// 槽位被未读的旧值占用，丢弃它再重试；mu 保证没有其它发送方抢占。
		select {
		case <-r.ch:
		default:
		}
	}
}

// Await 持续读取 Reply，直到收到非占位的 Payload（返回 true），或 ctx 结束（返回 false）。
// ctx 结束时返回最后一次看到的 Payload，可能是占位内容，也可能是零值。
func (r *Reply) Await(ctx context.Context) (Payload, bool) {
	var last Payload
	for {
		select {
		case p := <-r.ch:
			last = p
			if !p.IsPlaceholder() {
				return p, true
			}
		case <-ctx.Done():
			// 超时与最终结果同时就绪时优先返回结果。
			select {
			case p := <-r.ch:
				if !p.IsPlaceholder() {
					return p, true
				}
				last = p
			default:
			}
			return last, false
		}
	}
}
