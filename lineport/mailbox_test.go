package lineport

import (
	"testing"
)

func TestMailbox(t *testing.T) {
	m := newMailbox()

	if _, ok := m.take(); ok {
		t.Error("New mailbox not empty")
	}

	m.put("a")
	m.put("b")
	m.put("c")

	line, ok := m.take()
	if !ok || line != "c" {
		t.Error("Mailbox did not keep the latest line", line, ok)
	}
	if _, ok := m.take(); ok {
		t.Error("Mailbox not empty after take")
	}

	m.put("d")
	m.clear()
	if _, ok := m.take(); ok {
		t.Error("Mailbox not empty after clear")
	}

	/* Empty string is a valid line */
	m.put("")
	if line, ok := m.take(); !ok || line != "" {
		t.Error("Empty line lost")
	}
}
