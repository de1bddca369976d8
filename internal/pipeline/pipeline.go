// Package pipeline annotates decoded message events before dispatch: it
// pulls the Source and Quote segments out of the chain and works out whether
// the message is addressed to the bot.
package pipeline

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/keepmind9/miraibridge/internal/event"
	"github.com/keepmind9/miraibridge/internal/logger"
	"github.com/keepmind9/miraibridge/internal/message"
	"github.com/sirupsen/logrus"
)

type step struct {
	name      string
	groupOnly bool
	run       func(p *Pipeline, ev event.MessageEvent)
}

// Steps run in this order. ToMe is only ever set, never cleared.
var steps = []step{
	{name: "source", run: (*Pipeline).extractSource},
	{name: "quote", run: (*Pipeline).extractQuote},
	{name: "nickname", groupOnly: true, run: (*Pipeline).extractNickname},
	{name: "at", groupOnly: true, run: (*Pipeline).extractAt},
}

// Pipeline holds the compiled nickname matcher. It is stateless otherwise
// and safe for concurrent use on distinct events.
type Pipeline struct {
	nick *regexp.Regexp
}

// New compiles the nickname pattern once. Empty nicknames are ignored.
func New(nicknames []string) *Pipeline {
	var alts []string
	for _, n := range nicknames {
		if n = strings.TrimSpace(n); n != "" {
			alts = append(alts, regexp.QuoteMeta(n))
		}
	}
	p := &Pipeline{}
	if len(alts) > 0 {
		p.nick = regexp.MustCompile(`(?i)^(` + strings.Join(alts, "|") + `)([\s,，]*|$)`)
	}
	return p
}

// Process mutates message events in place and returns ev. Other
// categories pass through untouched.
func (p *Pipeline) Process(ev event.Event) event.Event {
	m, ok := ev.(event.MessageEvent)
	if !ok {
		return ev
	}
	_, group := ev.(*event.GroupMessage)

	for _, s := range steps {
		if s.groupOnly && !group {
			continue
		}
		s.run(p, m)
	}

	h := m.Msg()
	if len(h.MessageChain) == 0 {
		h.MessageChain = message.NewChain(message.Plain(""))
	}
	return ev
}

func (p *Pipeline) extractSource(ev event.MessageEvent) {
	h := ev.Msg()
	seg, ok := h.MessageChain.ExtractFirst(message.TypeSource)
	if !ok {
		return
	}
	id, _ := seg.Int64("id")
	ts, _ := seg.Int64("time")
	h.Source = &event.MessageSource{ID: id, Time: ts}
}

func (p *Pipeline) extractQuote(ev event.MessageEvent) {
	h := ev.Msg()
	seg, ok := h.MessageChain.ExtractFirst(message.TypeQuote)
	if !ok {
		return
	}

	var q event.MessageQuote
	b, err := json.Marshal(seg.Data)
	if err == nil {
		err = json.Unmarshal(b, &q)
	}
	if err != nil {
		logger.WithFields(logrus.Fields{
			"type":  ev.EventType(),
			"error": err,
		}).Debug("quote-segment-malformed")
		q.ID, _ = seg.Int64("id")
		q.SenderID, _ = seg.Int64("senderId")
	}
	h.Quote = &q
	if q.SenderID == h.SelfID {
		h.ToMe = true
	}
}

func (p *Pipeline) extractNickname(ev event.MessageEvent) {
	if p.nick == nil {
		return
	}
	h := ev.Msg()
	seg, ok := h.MessageChain.ExtractFirst(message.TypePlain)
	if !ok {
		return
	}

	text := seg.Text()
	if loc := p.nick.FindStringSubmatchIndex(text); loc != nil {
		logger.WithFields(logrus.Fields{
			"account":  h.SelfID,
			"nickname": text[loc[2]:loc[3]],
		}).Info("user-calling-bot-by-nickname")
		h.ToMe = true
		seg = message.Plain(text[loc[1]:])
	}
	h.MessageChain.Prepend(seg)
}

func (p *Pipeline) extractAt(ev event.MessageEvent) {
	h := ev.Msg()
	i := h.MessageChain.IndexOf(func(s message.Segment) bool {
		if s.Type != message.TypeAt {
			return false
		}
		target, ok := s.Int64("target")
		return ok && target == h.SelfID
	})
	if i < 0 {
		return
	}
	h.MessageChain.Pop(i)
	h.ToMe = true
}
