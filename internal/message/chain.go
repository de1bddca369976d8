package message

import (
	"strings"
)

// Chain is an ordered sequence of segments
type Chain []Segment

// NewChain builds a chain from segments
func NewChain(segments ...Segment) Chain {
	c := make(Chain, 0, len(segments))
	return append(c, segments...)
}

// Text builds a single-segment plain chain
func Text(text string) Chain {
	return Chain{Plain(text)}
}

func (c *Chain) Append(segments ...Segment) {
	*c = append(*c, segments...)
}

// Prepend inserts a segment at the front
func (c *Chain) Prepend(seg Segment) {
	c.Insert(0, seg)
}

// Insert places seg at index i, clamping i into [0, len]
func (c *Chain) Insert(i int, seg Segment) {
	if i < 0 {
		i = 0
	}
	if i > len(*c) {
		i = len(*c)
	}
	*c = append(*c, Segment{})
	copy((*c)[i+1:], (*c)[i:])
	(*c)[i] = seg
}

// Pop removes and returns the segment at index i
func (c *Chain) Pop(i int) (Segment, bool) {
	if i < 0 || i >= len(*c) {
		return Segment{}, false
	}
	seg := (*c)[i]
	*c = append((*c)[:i:i], (*c)[i+1:]...)
	return seg, true
}

// ExtractFirst pops the leading segment when its type is one of types.
// With no types given, the leading segment is popped unconditionally.
func (c *Chain) ExtractFirst(types ...SegmentType) (Segment, bool) {
	if len(*c) == 0 {
		return Segment{}, false
	}
	if len(types) == 0 || (*c)[0].isOneOf(types) {
		return c.Pop(0)
	}
	return Segment{}, false
}

// IndexOf returns the index of the first segment matching pred, or -1
func (c Chain) IndexOf(pred func(Segment) bool) int {
	for i, seg := range c {
		if pred(seg) {
			return i
		}
	}
	return -1
}

// PlainText concatenates the text of all plain segments
func (c Chain) PlainText() string {
	var sb strings.Builder
	for _, seg := range c {
		if seg.IsText() {
			sb.WriteString(seg.Text())
		}
	}
	return sb.String()
}

func (c Chain) String() string {
	var sb strings.Builder
	for _, seg := range c {
		sb.WriteString(seg.String())
	}
	return sb.String()
}

// Export returns the wire form of the chain
func (c Chain) Export() []map[string]any {
	out := make([]map[string]any, 0, len(c))
	for _, seg := range c {
		out = append(out, seg.Export())
	}
	return out
}

func (s Segment) isOneOf(types []SegmentType) bool {
	for _, t := range types {
		if s.Type == t {
			return true
		}
	}
	return false
}
