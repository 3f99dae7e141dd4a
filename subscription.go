package vcursor

import "sync"

// Subscription is a registered handler. Unsubscribe removes it and is safe
// to call more than once.
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	once sync.Once
	off  func()
}

// NewSubscription returns a Subscription that runs off exactly once.
func NewSubscription(off func()) Subscription {
	return &subscription{off: off}
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		if s.off != nil {
			s.off()
		}
	})
}

// subscriptions collects handles so teardown releases every one of them.
type subscriptions []Subscription

func (ss *subscriptions) add(s Subscription) {
	*ss = append(*ss, s)
}

func (ss *subscriptions) release() {
	for i := len(*ss) - 1; i >= 0; i-- {
		(*ss)[i].Unsubscribe()
	}
	*ss = nil
}
