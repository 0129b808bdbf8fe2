package player

import "github.com/sonroyaalmerol/kumalink/internal/utils"

// Queue holds the tracks waiting to be played, head first. It is not safe for
// concurrent use; the owning Session's mutex guards it.
type Queue struct {
	items []QueuedTrack
}

func (q *Queue) Len() int { return len(q.items) }

func (q *Queue) Append(tracks ...QueuedTrack) {
	q.items = append(q.items, tracks...)
}

// Prepend puts t back at the head of the queue.
func (q *Queue) Prepend(t QueuedTrack) {
	q.items = append([]QueuedTrack{t}, q.items...)
}

func (q *Queue) Peek() (QueuedTrack, bool) {
	if len(q.items) == 0 {
		return QueuedTrack{}, false
	}
	return q.items[0], true
}

func (q *Queue) Pop() (QueuedTrack, bool) {
	t, ok := q.Peek()
	if !ok {
		return t, false
	}
	q.items[0] = QueuedTrack{}
	q.items = q.items[1:]
	return t, true
}

// Get returns the track at zero-based index i.
func (q *Queue) Get(i int) (QueuedTrack, error) {
	if err := q.check(i); err != nil {
		return QueuedTrack{}, err
	}
	return q.items[i], nil
}

// RemoveAt removes the track at zero-based index i. An invalid index leaves
// the queue untouched.
func (q *Queue) RemoveAt(i int) (QueuedTrack, error) {
	if err := q.check(i); err != nil {
		return QueuedTrack{}, err
	}
	t := q.items[i]
	q.items = append(q.items[:i], q.items[i+1:]...)
	return t, nil
}

// Move relocates the track at zero-based index from so that it ends up at
// index to.
func (q *Queue) Move(from, to int) (QueuedTrack, error) {
	if err := q.check(from); err != nil {
		return QueuedTrack{}, err
	}
	if err := q.check(to); err != nil {
		return QueuedTrack{}, err
	}
	t := q.items[from]
	q.items = append(q.items[:from], q.items[from+1:]...)
	q.items = append(q.items[:to], append([]QueuedTrack{t}, q.items[to:]...)...)
	return t, nil
}

// Clear empties the queue and returns how many tracks were dropped.
func (q *Queue) Clear() int {
	n := len(q.items)
	q.items = nil
	return n
}

func (q *Queue) Shuffle() {
	utils.ShuffleSlice(q.items)
}

// List returns a copy of the queued tracks in playback order.
func (q *Queue) List() []QueuedTrack {
	out := make([]QueuedTrack, len(q.items))
	copy(out, q.items)
	return out
}

func (q *Queue) check(i int) error {
	if i < 0 || i >= len(q.items) {
		return &IndexOutOfRangeError{Index: i + 1, Count: len(q.items)}
	}
	return nil
}
