// Package history 实现有上限的线性撤销/重做栈。
package history

import "sync"

// DefaultLimit 超出后丢弃最早的命令。
const DefaultLimit = 50

// Command 是可逆的文档修改。
type Command interface {
	Execute()
	Undo()
	Description() string
}

// Func 用一对闭包实现 Command。
type Func struct {
	Desc   string
	Do     func()
	Revert func()
}

func (f Func) Execute() {
	if f.Do != nil {
		f.Do()
	}
}

func (f Func) Undo() {
	if f.Revert != nil {
		f.Revert()
	}
}

func (f Func) Description() string { return f.Desc }

// History 记录已执行的命令和游标，没有可撤销内容时游标为 -1。
type History struct {
	mu       sync.Mutex
	commands []Command
	cursor   int
	limit    int
}

// New 返回空历史，limit 非正时使用 DefaultLimit。
func New(limit int) *History {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &History{cursor: -1, limit: limit}
}

// ExecuteCommand 丢弃可重做部分，记录并执行 cmd。
func (h *History) ExecuteCommand(cmd Command) {
	h.mu.Lock()
	h.commands = append(h.commands[:h.cursor+1], cmd)
	if len(h.commands) > h.limit {
		h.commands = append([]Command(nil), h.commands[len(h.commands)-h.limit:]...)
	}
	h.cursor = len(h.commands) - 1
	h.mu.Unlock()

	cmd.Execute()
}

// Undo 回退游标处的命令，无可撤销时返回 false。
func (h *History) Undo() bool {
	h.mu.Lock()
	if h.cursor < 0 {
		h.mu.Unlock()
		return false
	}
	cmd := h.commands[h.cursor]
	h.cursor--
	h.mu.Unlock()

	cmd.Undo()
	return true
}

// Redo 重新执行下一条命令，已到末尾时返回 false。
func (h *History) Redo() bool {
	h.mu.Lock()
	if h.cursor >= len(h.commands)-1 {
		h.mu.Unlock()
		return false
	}
	h.cursor++
	cmd := h.commands[h.cursor]
	h.mu.Unlock()

	cmd.Execute()
	return true
}

func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor >= 0
}

func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor < len(h.commands)-1
}

func (h *History) Cursor() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.commands)
}

// Descriptions 按时间顺序列出命令描述。
func (h *History) Descriptions() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.commands))
	for i, c := range h.commands {
		out[i] = c.Description()
	}
	return out
}

func (h *History) Clear() {
	h.mu.Lock()
	h.commands = nil
	h.cursor = -1
	h.mu.Unlock()
}
