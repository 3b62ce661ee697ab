package log

import (
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// Timestamps of the logfmt and json outputs carry milliseconds.
const timeFormat = "2006-01-02T15:04:05.000-0700"

func newJSONHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level, ReplaceAttr: replaceAttr(false)})
}

func newLogfmtHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level, ReplaceAttr: replaceAttr(true)})
}

// replaceAttr uses the short t and lvl keys of the terminal output, and prints
// amounts, hashes and addresses through their String method.
func replaceAttr(logfmt bool) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, attr slog.Attr) slog.Attr {
		if len(groups) == 0 {
			switch attr.Key {
			case slog.TimeKey:
				if attr.Value.Kind() != slog.KindTime {
					break
				}
				if logfmt {
					return slog.String("t", attr.Value.Time().Format(timeFormat))
				}
				return slog.Attr{Key: "t", Value: attr.Value}
			case slog.LevelKey:
				if l, ok := attr.Value.Any().(slog.Level); ok {
					return slog.String("lvl", log.LevelString(l))
				}
			}
		}
		switch v := attr.Value.Any().(type) {
		case time.Time:
			if logfmt {
				return slog.String(attr.Key, v.Format(timeFormat))
			}
		case fmt.Stringer:
			return slog.String(attr.Key, stringOf(v))
		}
		return attr
	}
}

func stringOf(v fmt.Stringer) string {
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return "<nil>"
	}
	return v.String()
}
