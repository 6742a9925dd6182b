package core

// History is an ordered, append-only sequence of items. Methods never mutate
// the receiver's backing array, so a History handed to a caller stays stable
// while a run keeps appending to its own copy.
type History []Item

// NewHistory creates a history holding a single user message.
func NewHistory(input string) History {
	return History{NewUserMessage(input)}
}

// Clone returns an independent copy.
func (h History) Clone() History {
	if h == nil {
		return nil
	}
	out := make(History, len(h))
	copy(out, h)
	return out
}

// Append returns a new history with items added at the end.
func (h History) Append(items ...Item) History {
	out := make(History, len(h), len(h)+len(items))
	copy(out, h)
	return append(out, items...)
}

// Since returns the items appended after the first n entries.
func (h History) Since(n int) History {
	if n >= len(h) {
		return History{}
	}
	if n < 0 {
		n = 0
	}
	return h[n:].Clone()
}

// LastAssistantText returns the text of the most recent assistant message.
func (h History) LastAssistantText() string {
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].Kind == ItemAssistantMessage {
			return h[i].Text
		}
	}
	return ""
}

// FindToolResult returns the result recorded for callID.
func (h History) FindToolResult(callID string) (ToolResult, bool) {
	for _, it := range h {
		if it.Kind == ItemToolResult && it.ToolResult != nil && it.ToolResult.CallID == callID {
			return *it.ToolResult, true
		}
	}
	return ToolResult{}, false
}

// Filter returns the items of the given kind, in order.
func (h History) Filter(kind ItemKind) History {
	out := History{}
	for _, it := range h {
		if it.Kind == kind {
			out = append(out, it)
		}
	}
	return out
}

// PendingToolCalls returns the tool calls of the trailing batch that have no
// recorded result yet, in request order.
func (h History) PendingToolCalls() []ToolCall {
	start := len(h)
	for start > 0 {
		k := h[start-1].Kind
		if k != ItemToolCall && k != ItemToolResult {
			break
		}
		start--
	}

	answered := map[string]bool{}
	for _, it := range h[start:] {
		if it.Kind == ItemToolResult && it.ToolResult != nil {
			answered[it.ToolResult.CallID] = true
		}
	}

	var pending []ToolCall
	for _, it := range h[start:] {
		if it.Kind == ItemToolCall && it.ToolCall != nil && !answered[it.ToolCall.ID] {
			pending = append(pending, *it.ToolCall)
		}
	}
	return pending
}
