/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
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
 */

// Package logger wraps logrus with the leveled, field-tagged entry points the
// rest of the engine uses, plus adapters for code that expects a stdlib
// *log.Logger or an hclog.Logger.
package logger

import (
	"io"
	"log"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the leveled logging facade used throughout the engine.
type Logger interface {
	Entry(lvl Level, msg string) Entry
	SetLevel(lvl Level)
	SetOutput(w io.Writer)
	SetJSON(enabled bool)

	Panic(msg string, field ...Field)
	Fatal(msg string, field ...Field)
	Error(msg string, field ...Field)
	Warn(msg string, field ...Field)
	Info(msg string, field ...Field)
	Debug(msg string, field ...Field)
}

// Field is a structured key/value attached to a log entry.
type Field struct {
	Key string
	Val interface{}
}

// F builds a Field.
func F(key string, val interface{}) Field {
	return Field{Key: key, Val: val}
}

// Entry is a started logrus entry, returned so callers can chain additional
// fields before emitting.
type Entry struct {
	e *logrus.Entry
}

// WithField attaches an additional field and returns the updated Entry.
func (n Entry) WithField(key string, val interface{}) Entry {
	if n.e == nil {
		return n
	}
	return Entry{e: n.e.WithField(key, val)}
}

// Log emits the entry at the level it was created with.
func (n Entry) Log(msg string) {
	if n.e == nil {
		return
	}
	n.e.Log(n.e.Level, msg)
}

type logger struct {
	l *logrus.Logger
}

// New builds a Logger writing to stderr at InfoLevel with a text formatter,
// matching logrus's own defaults.
func New() Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &logger{l: l}
}

func (o *logger) Entry(lvl Level, msg string) Entry {
	if lvl == NilLevel {
		return Entry{}
	}
	e := o.l.WithField("component", "httpengine")
	e.Level = lvl.toLogrus()
	_ = msg
	return Entry{e: e}
}

func (o *logger) SetLevel(lvl Level) {
	o.l.SetLevel(lvl.toLogrus())
}

func (o *logger) SetOutput(w io.Writer) {
	o.l.SetOutput(w)
}

func (o *logger) SetJSON(enabled bool) {
	if enabled {
		o.l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		o.l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func (o *logger) withFields(field ...Field) *logrus.Entry {
	e := o.l.WithField("component", "httpengine")
	for _, f := range field {
		e = e.WithField(f.Key, f.Val)
	}
	return e
}

func (o *logger) Panic(msg string, field ...Field) { o.withFields(field...).Panic(msg) }
func (o *logger) Fatal(msg string, field ...Field) { o.withFields(field...).Fatal(msg) }
func (o *logger) Error(msg string, field ...Field) { o.withFields(field...).Error(msg) }
func (o *logger) Warn(msg string, field ...Field)  { o.withFields(field...).Warn(msg) }
func (o *logger) Info(msg string, field ...Field)  { o.withFields(field...).Info(msg) }
func (o *logger) Debug(msg string, field ...Field) { o.withFields(field...).Debug(msg) }

// GetStdLogger returns a standard library *log.Logger that writes into this
// Logger at the given level, for wiring into code that only accepts the
// stdlib interface (e.g. net/http.Server.ErrorLog).
func GetStdLogger(lg Logger, lvl Level, flags int) *log.Logger {
	return log.New(&stdLogWriter{lg: lg, lvl: lvl}, "", flags)
}

type stdLogWriter struct {
	lg  Logger
	lvl Level
}

func (s *stdLogWriter) Write(p []byte) (int, error) {
	s.lg.Entry(s.lvl, "").Log(string(p))
	return len(p), nil
}
