package cache

import "bytes"

// Source 标记 Payload 的来源，便于上层输出诊断头。
type Source string

const (
	SourcePlaceholder Source = "placeholder"
	SourceMemory      Source = "memory"
	SourceDisk        Source = "disk"
	SourceNetwork     Source = "network"
)

// Payload 是不可变的共享字节缓冲：复制 Payload 值不会复制底层数组，
// 同一份数据可以同时投递给 Reply、写入 ResultStore 并落盘。
type Payload struct {
	data   []byte
	source Source
}

// NewPayload 复制 data 构造 Payload，之后调用方可以自由复用 data。
func NewPayload(data []byte, source Source) Payload {
	return Payload{data: bytes.Clone(data), source: source}
}

// ownedPayload 接管 data 的所有权，调用方不得再修改它。
func ownedPayload(data []byte, source Source) Payload {
	if data == nil {
		data = []byte{}
	}
	return Payload{data: data, source: source}
}

// Bytes 返回共享的底层字节，调用方只读。
func (p Payload) Bytes() []byte {
	return p.data
}

// Len 返回字节数。
func (p Payload) Len() int {
	return len(p.data)
}

// Source 返回 Payload 的来源。
func (p Payload) Source() Source {
	return p.source
}

// IsPlaceholder 表示该 Payload 来自配置的占位内容。
func (p Payload) IsPlaceholder() bool {
	return p.source == SourcePlaceholder
}

// IsZero 表示尚未收到任何 Payload。
func (p Payload) IsZero() bool {
	return p.source == ""
}

// Reader 返回一个读取共享字节的 Reader。
func (p Payload) Reader() *bytes.Reader {
	return bytes.NewReader(p.data)
}

func (p Payload) withSource(source Source) Payload {
	p.source = source
	return p
}
