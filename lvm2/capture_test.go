package lvm2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureConcatenatesPrintLinesVerbatim(t *testing.T) {
	c := newCapture()

	c.logLine(4, "report.c", 1, 0, `{"a":`)
	c.logLine(4, "report.c", 2, 0, `1}`)
	c.logLine(7, "lvmcmdline.c", 3325, 0, "Completed: pvs")

	out, err := c.receive()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, out)
}

func TestCaptureIgnoresNonPrintSeverities(t *testing.T) {
	c := newCapture()

	c.logLine(3, "toollib.c", 1, 5, "some error text")
	c.logLine(5, "toollib.c", 2, 0, "verbose noise")
	c.logLine(7, "toollib.c", 3, 0, "debug noise")
	c.logLine(4, "report.c", 4, 0, `{"report":[]}`)
	c.logLine(7, "lvmcmdline.c", 3325, 0, "Completed: pvs")

	out, err := c.receive()
	require.NoError(t, err)
	assert.Equal(t, `{"report":[]}`, out)
}

func TestCaptureEmptyBufferYieldsPlaceholder(t *testing.T) {
	c := newCapture()

	c.logLine(7, "lvmcmdline.c", 3325, 0, "Completed: vgchange -ay")

	out, err := c.receive()
	require.NoError(t, err)
	assert.Equal(t, noMessagesDoc, out)
}

func TestCaptureQueueIsFIFO(t *testing.T) {
	c := newCapture()

	c.logLine(4, "report.c", 1, 0, "first")
	c.logLine(7, "lvmcmdline.c", 3325, 0, "Completed: one")
	c.logLine(4, "report.c", 2, 0, "second")
	c.logLine(7, "lvmcmdline.c", 3326, 0, "Completed: two")

	out, err := c.receive()
	require.NoError(t, err)
	assert.Equal(t, "first", out)

	out, err = c.receive()
	require.NoError(t, err)
	assert.Equal(t, "second", out)
}

func TestCaptureBufferResetsBetweenCommands(t *testing.T) {
	c := newCapture()

	c.logLine(4, "report.c", 1, 0, "leftover")
	c.logLine(7, "lvmcmdline.c", 3325, 0, "Completed: one")
	_, err := c.receive()
	require.NoError(t, err)

	c.logLine(7, "lvmcmdline.c", 3326, 0, "Completed: two")
	out, err := c.receive()
	require.NoError(t, err)
	assert.Equal(t, noMessagesDoc, out, "second command must not see the first command's output")
}

func TestCapturePoisonedReceive(t *testing.T) {
	c := newCapture()
	c.poisoned = true

	_, err := c.receive()
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, RetDataChannelPoisoned, cmdErr.Code)
	assert.True(t, cmdErr.Permanent())
}

func TestCapturePanicInTapPoisons(t *testing.T) {
	c := newCapture()
	c.setTap(func(Line) { panic("tap fault") })

	require.Panics(t, func() {
		c.logLine(4, "report.c", 1, 0, "output")
	})

	_, err := c.receive()
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, RetDataChannelPoisoned, cmdErr.Code)
}

func TestCaptureTapObservesEveryLine(t *testing.T) {
	c := newCapture()

	var seen []Line
	c.setTap(func(l Line) { seen = append(seen, l) })

	c.logLine(3, "toollib.c", 10, 5, "error text")
	c.logLine(4, "report.c", 11, 0, "{}")
	c.logLine(7, "lvmcmdline.c", 3325, 0, "Completed: pvs")

	require.Len(t, seen, 3)
	assert.Equal(t, LevelError, seen[0].Level)
	assert.Equal(t, 5, seen[0].DMErrno)
	assert.Equal(t, LevelPrint, seen[1].Level)
	assert.Equal(t, LevelDebug, seen[2].Level)
	assert.Equal(t, "Completed: pvs", seen[2].Message)
}
