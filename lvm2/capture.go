package lvm2

import (
	"strings"
	"sync"
)

// Line is one log callback emission from the engine.
type Line struct {
	Level   LogLevel
	File    string
	LineNo  int
	DMErrno int
	Message string
}

// noMessagesDoc is substituted when a command completes without emitting a
// single print line. Some commands legitimately print nothing.
const noMessagesDoc = `{"lvmgate": "no messages from command"}`

// capture accumulates a command's print lines and hands the finished
// report back to the thread waiting inside the gateway. The buffer is
// scoped to one command but physically reused; it is empty at the start of
// every invocation and drained exactly once, when the completion marker
// arrives.
type capture struct {
	mu       sync.Mutex
	cond     *sync.Cond
	buf      strings.Builder
	queue    []string
	poisoned bool
	tap      func(Line)
}

func newCapture() *capture {
	c := &capture{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// logLine is the callback handed to the engine's logging facility. The
// engine calls it synchronously inside Run, on the invoking thread, in
// emission order, with the completion marker as the final line of a
// command. That ordering is the engine's contract; nothing here can verify
// it, and a violation interleaves output across commands.
func (c *capture) logLine(level int, file string, lineNo, dmErrno int, message string) {
	c.mu.Lock()
	defer func() {
		if r := recover(); r != nil {
			// Whatever faulted left the buffer in an unknown state.
			c.poisoned = true
			c.cond.Broadcast()
			c.mu.Unlock()
			panic(r)
		}
		c.mu.Unlock()
	}()

	lvl := LevelFromNative(level)
	if c.tap != nil {
		c.tap(Line{Level: lvl, File: file, LineNo: lineNo, DMErrno: dmErrno, Message: message})
	}

	switch {
	case IsCompletionMarker(lvl, file, message):
		out := c.buf.String()
		if out == "" {
			out = noMessagesDoc
		}
		c.buf.Reset()
		c.queue = append(c.queue, out)
		c.cond.Broadcast()
	case lvl == LevelPrint:
		// Print lines concatenate verbatim. The engine emits one structured
		// document per command and includes any separators itself.
		c.buf.WriteString(message)
	}
}

// receive takes the next completed report off the queue. The callback runs
// inside the engine invocation, so in the common case the report is queued
// before control returns to the gateway and receive never waits. There is
// no timeout: an engine that never emits the marker blocks this caller,
// and every later one, indefinitely.
func (c *capture) receive() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		if c.poisoned {
			return "", &CommandError{Code: RetDataChannelPoisoned}
		}
		if len(c.queue) > 0 {
			break
		}
		c.cond.Wait()
	}

	out := c.queue[0]
	c.queue = c.queue[1:]
	return out, nil
}

// setTap registers fn to observe every raw log line. fn runs inside the
// engine's callback with the capture lock held; it must be fast and must
// not call back into this package.
func (c *capture) setTap(fn func(Line)) {
	c.mu.Lock()
	c.tap = fn
	c.mu.Unlock()
}
