package engine

// Buffer holds one response between ingestion and transmission.
type Buffer struct {
	Envelope Envelope
	Size     int
}

// BufferPool hands out response buffers. Fetch must not block: when no
// buffer is free it fails with ErrResourceExhausted.
type BufferPool interface {
	Fetch() (*Buffer, error)
	Release(b *Buffer)
}

// FixedPool is a BufferPool with a fixed number of preallocated buffers.
type FixedPool struct {
	free chan *Buffer
}

func NewBufferPool(size int) *FixedPool {
	p := &FixedPool{free: make(chan *Buffer, size)}
	for i := 0; i < size; i++ {
		p.free <- &Buffer{}
	}
	return p
}

func (p *FixedPool) Fetch() (*Buffer, error) {
	select {
	case b := <-p.free:
		return b, nil
	default:
		return nil, ErrResourceExhausted
	}
}

func (p *FixedPool) Release(b *Buffer) {
	if b == nil {
		return
	}
	*b = Buffer{}
	select {
	case p.free <- b:
	default:
		// Not one of ours, or released twice.
	}
}

// Available reports how many buffers can be fetched right now.
func (p *FixedPool) Available() int {
	return len(p.free)
}
