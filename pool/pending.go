package pool

import "container/list"

// PendingStream is a NewStream call that hasn't been attached to a client
// yet: it's waiting in Base's FIFO queue for a connecting/early-data client
// to become ready, or for a new connection to be created for it.
type PendingStream struct {
	ctx          AttachContext
	canSendEarlyData bool
	element      *list.Element // this stream's node in Base.pending, set on enqueue
}

// newPendingStream allocates a queue entry; Base does this inline at
// NewStream time (see PoolOps doc comment for why there's no hook here).
func newPendingStream(ctx AttachContext, canSendEarlyData bool) *PendingStream {
	return &PendingStream{ctx: ctx, canSendEarlyData: canSendEarlyData}
}

// pendingQueue is Base's FIFO of not-yet-attached streams, a thin wrapper
// over container/list so cancellation (removal from the middle) stays O(1)
// given the element handle stored on PendingStream.
type pendingQueue struct {
	l *list.List
}

func newPendingQueue() *pendingQueue {
	return &pendingQueue{l: list.New()}
}

func (q *pendingQueue) pushBack(p *PendingStream) {
	p.element = q.l.PushBack(p)
}

func (q *pendingQueue) popFront() *PendingStream {
	front := q.l.Front()
	if front == nil {
		return nil
	}
	q.l.Remove(front)
	p := front.Value.(*PendingStream)
	p.element = nil
	return p
}

func (q *pendingQueue) remove(p *PendingStream) {
	if p.element == nil {
		return
	}
	q.l.Remove(p.element)
	p.element = nil
}

func (q *pendingQueue) len() int { return q.l.Len() }

func (q *pendingQueue) peekFront() *PendingStream {
	front := q.l.Front()
	if front == nil {
		return nil
	}
	return front.Value.(*PendingStream)
}
