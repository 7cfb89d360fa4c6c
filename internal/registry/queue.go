package registry

// Queue is a FIFO of identity names. Remove keeps the order of the rest.
type Queue struct {
	items []string
}

func (that *Queue) Push(name string) {
	that.items = append(that.items, name)
}

// Pop removes and returns the head.
func (that *Queue) Pop() (string, bool) {
	if len(that.items) == 0 {
		return "", false
	}

	head := that.items[0]
	that.items[0] = ""
	that.items = that.items[1:]

	return head, true
}

func (that *Queue) Remove(name string) bool {
	for i, item := range that.items {
		if item == name {
			that.items = append(that.items[:i:i], that.items[i+1:]...)
			return true
		}
	}

	return false
}

func (that *Queue) Len() int {
	return len(that.items)
}

// Items returns a copy in queue order.
func (that *Queue) Items() []string {
	return append([]string(nil), that.items...)
}
