package screen

// Queue holds the screens of one rebuild. It has a single owner (the display
// pump) so it carries no lock: a rebuild and a drain never run concurrently.
type Queue struct {
	screens []*Screen
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Clear() {
	q.screens = nil
}

func (q *Queue) Append(s *Screen) {
	if s == nil {
		return
	}
	q.screens = append(q.screens, s)
}

// Drain returns the pending screens in enqueue order and empties the queue.
func (q *Queue) Drain() []*Screen {
	screens := q.screens
	q.screens = nil
	return screens
}

func (q *Queue) Len() int {
	return len(q.screens)
}
