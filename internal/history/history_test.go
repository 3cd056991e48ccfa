package history

import (
	"fmt"
	"testing"
)

type counter struct{ value int }

func add(c *counter, n int) Command {
	return Func{
		Desc:   fmt.Sprintf("add %d", n),
		Do:     func() { c.value += n },
		Revert: func() { c.value -= n },
	}
}

func TestUndoRedoAtBoundsAreNoops(t *testing.T) {
	h := New(0)
	if h.Undo() {
		t.Fatalf("undo on empty history should report false")
	}
	if h.Redo() {
		t.Fatalf("redo on empty history should report false")
	}
	if h.Cursor() != -1 {
		t.Fatalf("cursor moved: %d", h.Cursor())
	}

	c := &counter{}
	h.ExecuteCommand(add(c, 1))
	if h.Redo() {
		t.Fatalf("redo at end should report false")
	}
	if c.value != 1 || h.Cursor() != 0 {
		t.Fatalf("unexpected state value=%d cursor=%d", c.value, h.Cursor())
	}
}

func TestUndoRedoSequence(t *testing.T) {
	h := New(0)
	c := &counter{}
	h.ExecuteCommand(add(c, 1))
	h.ExecuteCommand(add(c, 10))

	h.Undo()
	if c.value != 1 || !h.CanRedo() {
		t.Fatalf("after undo value=%d", c.value)
	}
	h.Redo()
	if c.value != 11 || h.CanRedo() {
		t.Fatalf("after redo value=%d", c.value)
	}
	h.Undo()
	h.Undo()
	if c.value != 0 || h.CanUndo() {
		t.Fatalf("after full undo value=%d", c.value)
	}
}

func TestExecuteTruncatesRedo(t *testing.T) {
	h := New(0)
	c := &counter{}
	h.ExecuteCommand(add(c, 1))
	h.ExecuteCommand(add(c, 2))
	h.Undo()
	h.ExecuteCommand(add(c, 5))

	if got := h.Descriptions(); len(got) != 2 || got[1] != "add 5" {
		t.Fatalf("redo branch not discarded: %v", got)
	}
	if h.CanRedo() {
		t.Fatalf("nothing should be redoable")
	}
	if c.value != 6 {
		t.Fatalf("value=%d", c.value)
	}
}

func TestLimitDropsOldest(t *testing.T) {
	h := New(3)
	c := &counter{}
	for i := 1; i <= 5; i++ {
		h.ExecuteCommand(add(c, i))
	}
	if h.Len() != 3 || h.Cursor() != 2 {
		t.Fatalf("len=%d cursor=%d", h.Len(), h.Cursor())
	}
	if got := h.Descriptions(); got[0] != "add 3" {
		t.Fatalf("oldest entries should be dropped: %v", got)
	}
	for h.Undo() {
	}
	if c.value != 1+2 {
		t.Fatalf("only the last three commands are undoable, value=%d", c.value)
	}
}

func TestDefaultLimit(t *testing.T) {
	h := New(-1)
	c := &counter{}
	for i := 0; i < DefaultLimit+10; i++ {
		h.ExecuteCommand(add(c, 1))
	}
	if h.Len() != DefaultLimit {
		t.Fatalf("len=%d", h.Len())
	}
	h.Clear()
	if h.CanUndo() || h.Len() != 0 {
		t.Fatalf("clear failed")
	}
}
