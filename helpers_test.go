package vcursor

import (
	"encoding/json"
	"fmt"
	"sort"
	"testing"
	"time"

	"golang.org/x/net/html"
)

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

// manualClock is a Scheduler driven by Advance.
type manualClock struct {
	now    time.Time
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	at  time.Time
	seq int
	f   func()
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) {
	c.seq++
	c.timers = append(c.timers, &manualTimer{at: c.now.Add(d), seq: c.seq, f: f})
}

// Advance moves the clock forward by d, firing due timers in order. Timers
// scheduled by callbacks fire too if they fall due within d.
func (c *manualClock) Advance(d time.Duration) {
	end := c.now.Add(d)
	for {
		sort.Slice(c.timers, func(i, j int) bool {
			if c.timers[i].at.Equal(c.timers[j].at) {
				return c.timers[i].seq < c.timers[j].seq
			}
			return c.timers[i].at.Before(c.timers[j].at)
		})
		if len(c.timers) == 0 || c.timers[0].at.After(end) {
			break
		}
		t := c.timers[0]
		c.timers = c.timers[1:]
		c.now = t.at
		t.f()
	}
	c.now = end
}

// Pending counts timers not yet fired.
func (c *manualClock) Pending() int {
	return len(c.timers)
}

func newDoc(t *testing.T, content string) *HTMLDocument {
	t.Helper()
	doc, err := NewHTMLDocument(content)
	if err != nil {
		t.Fatalf("NewHTMLDocument: %v", err)
	}
	return doc
}

// leafID returns the node id of the i-th text leaf of block b.
func leafID(t *testing.T, doc *HTMLDocument, b, i int) string {
	t.Helper()
	var leaves []string
	WalkTextLeaves(doc.Blocks()[b].Element, func(leaf *html.Node) bool {
		id, _ := doc.NodeID(leaf)
		leaves = append(leaves, id)
		return true
	})
	if i >= len(leaves) {
		t.Fatalf("block %d has %d leaves", b, len(leaves))
	}
	return leaves[i]
}
