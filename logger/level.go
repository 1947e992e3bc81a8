/*
 * MIT License
 *
 * Copyright (c) 2019 Nicolas JUHEL
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

package logger

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Level is a leveled-logging severity, ordered from most to least severe.
type Level uint8

const (
	// PanicLevel logs then panics.
	PanicLevel Level = iota
	// FatalLevel logs then exits the process.
	FatalLevel
	// ErrorLevel logs a condition that stopped the caller's current operation.
	ErrorLevel
	// WarnLevel logs a condition the caller can continue past.
	WarnLevel
	// InfoLevel logs a notable event with no impact on correctness.
	InfoLevel
	// DebugLevel logs detail only useful while diagnosing a problem.
	DebugLevel
	// NilLevel never logs anything; an Entry created at NilLevel is a
	// no-op, which disables a log statement at a call site without removing
	// the call.
	NilLevel
)

// GetLevelListString returns the lower-case names of every level that can be
// configured, excluding NilLevel.
func GetLevelListString() []string {
	return []string{
		PanicLevel.String(),
		FatalLevel.String(),
		ErrorLevel.String(),
		WarnLevel.String(),
		InfoLevel.String(),
		DebugLevel.String(),
	}
}

// GetLevelString resolves a configured level name to a Level, falling back
// to InfoLevel when the name does not match.
func GetLevelString(l string) Level {
	switch strings.ToLower(l) {
	case PanicLevel.String():
		return PanicLevel
	case FatalLevel.String():
		return FatalLevel
	case ErrorLevel.String():
		return ErrorLevel
	case WarnLevel.String():
		return WarnLevel
	case InfoLevel.String():
		return InfoLevel
	case DebugLevel.String():
		return DebugLevel
	default:
		return InfoLevel
	}
}

func (l Level) toLogrus() logrus.Level {
	switch l {
	case PanicLevel:
		return logrus.PanicLevel
	case FatalLevel:
		return logrus.FatalLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	case WarnLevel:
		return logrus.WarnLevel
	case InfoLevel:
		return logrus.InfoLevel
	case DebugLevel:
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

// String returns the lower-case name of the level.
func (l Level) String() string {
	switch l {
	case PanicLevel:
		return "panic"
	case FatalLevel:
		return "fatal"
	case ErrorLevel:
		return "error"
	case WarnLevel:
		return "warn"
	case InfoLevel:
		return "info"
	case DebugLevel:
		return "debug"
	case NilLevel:
		return "nil"
	default:
		return "unknown"
	}
}
