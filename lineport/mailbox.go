package lineport

// mailbox is a latest-wins single slot. There must be only one goroutine calling put.
type mailbox struct {
	slot chan (string)
}

func newMailbox() *mailbox {
	return &mailbox{slot: make(chan (string), 1)}
}

// put stores line, discarding an unread previous line
func (m *mailbox) put(line string) {
	for {
		select {
		case m.slot <- line:
			return
		default:
		}

		select {
		case <-m.slot:
		default:
		}
	}
}

// take returns the stored line and empties the slot
func (m *mailbox) take() (string, bool) {
	select {
	case line := <-m.slot:
		return line, true
	default:
		return "", false
	}
}

func (m *mailbox) clear() {
	m.take()
}
