package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field names shared by every package.
const (
	KeyRunID      = "run_id"
	KeyTarget     = "target"
	KeyTask       = "task"
	KeyTaskState  = "state"
	KeyMode       = "mode"
	KeyDurationMS = "duration_ms"
	KeyPath       = "path"
	KeyOp         = "op"
	KeyTool       = "tool"
	KeyEntry      = "entry"
	KeyCount      = "count"
	KeyMethod     = "method"
	KeyStatus     = "status"
	KeyRemoteAddr = "remote_addr"
	KeyURL        = "url"
	KeyError      = "error"
)

func RunID(id string) slog.Attr        { return slog.String(KeyRunID, id) }
func Target(name string) slog.Attr     { return slog.String(KeyTarget, name) }
func Task(name string) slog.Attr       { return slog.String(KeyTask, name) }
func TaskState(s string) slog.Attr     { return slog.String(KeyTaskState, s) }
func Mode(m string) slog.Attr          { return slog.String(KeyMode, m) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Op(op string) slog.Attr           { return slog.String(KeyOp, op) }
func Tool(name string) slog.Attr       { return slog.String(KeyTool, name) }
func Entry(name string) slog.Attr      { return slog.String(KeyEntry, name) }
func Count(n int) slog.Attr            { return slog.Int(KeyCount, n) }
func Method(m string) slog.Attr        { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr        { return slog.Int(KeyStatus, code) }
func RemoteAddr(addr string) slog.Attr { return slog.String(KeyRemoteAddr, addr) }
func URL(u string) slog.Attr           { return slog.String(KeyURL, u) }

// Duration reports d in milliseconds under KeyDurationMS.
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
