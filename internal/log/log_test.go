package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestLevelsAndFields(t *testing.T) {
	c := qt.New(t)
	var buf bytes.Buffer
	Init(LogLevelWarn, "", &buf)
	c.Cleanup(func() { Init(LogLevelInfo, "stderr", nil) })

	Debugw("hidden", "k", 1)
	Infow("hidden too")
	c.Assert(buf.Len(), qt.Equals, 0)

	Errorw(errors.New("boom"), "request failed", "code", 50002, "dangling")
	var entry map[string]any
	c.Assert(json.Unmarshal(buf.Bytes(), &entry), qt.IsNil)
	c.Assert(entry["level"], qt.Equals, "error")
	c.Assert(entry["message"], qt.Equals, "request failed")
	c.Assert(entry["error"], qt.Equals, "boom")
	c.Assert(entry["code"], qt.Equals, float64(50002))
	c.Assert(entry["dangling"], qt.Equals, "MISSING")
}

func TestNoneDisablesLogging(t *testing.T) {
	c := qt.New(t)
	var buf bytes.Buffer
	Init(LogLevelNone, "", &buf)
	c.Cleanup(func() { Init(LogLevelInfo, "stderr", nil) })

	Warnw("silent")
	Warn(errors.New("silent"))
	c.Assert(buf.Len(), qt.Equals, 0)
}
