/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package logger provides the leveled, structured logger every long-lived
// component in this module accepts at construction time, backed by
// github.com/sirupsen/logrus. Components never import logrus directly; they
// depend on the Logger interface and fall back to a discard logger when the
// caller passes a nil FuncLog, the same default-injection idiom the teacher
// library uses for httpserver.New(cfg, defLog).
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Field is one key/value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Logger is the leveled logging facade used throughout httpkit.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Errorf(format string, args ...interface{})

	// With returns a child logger that always includes the given fields.
	With(fields ...Field) Logger
}

// FuncLog is the factory signature threaded through constructors, mirroring
// the teacher's liblog.FuncLog: a nil FuncLog means "use the default".
type FuncLog func() Logger

type logrusLogger struct {
	entry *logrus.Entry
}

// New wraps an existing *logrus.Logger.
func New(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.New()
	}
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

// Discard returns a Logger that drops every entry, used as the default when
// no FuncLog is supplied.
func Discard() Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return New(l)
}

// Default returns a Logger writing text-formatted entries to stderr at Info
// level, the out-of-the-box behaviour for CLI tools built on this module.
func Default() Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	return New(l)
}

func (g *logrusLogger) with(fields []Field) *logrus.Entry {
	if len(fields) == 0 {
		return g.entry
	}

	data := make(logrus.Fields, len(fields))
	for _, f := range fields {
		data[f.Key] = f.Value
	}

	return g.entry.WithFields(data)
}

func (g *logrusLogger) Debug(msg string, fields ...Field) { g.with(fields).Debug(msg) }
func (g *logrusLogger) Info(msg string, fields ...Field)  { g.with(fields).Info(msg) }
func (g *logrusLogger) Warn(msg string, fields ...Field)  { g.with(fields).Warn(msg) }
func (g *logrusLogger) Error(msg string, fields ...Field) { g.with(fields).Error(msg) }

func (g *logrusLogger) Errorf(format string, args ...interface{}) {
	g.entry.Errorf(format, args...)
}

func (g *logrusLogger) With(fields ...Field) Logger {
	return &logrusLogger{entry: g.with(fields)}
}

// OrDiscard returns f() if f is non-nil, else the discard logger — the
// one-line guard every constructor in this module applies to its FuncLog
// parameter.
func OrDiscard(f FuncLog) Logger {
	if f == nil {
		return Discard()
	}

	if l := f(); l != nil {
		return l
	}

	return Discard()
}
