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
 */

// Package errors provides code-classified error handling for the request
// engine: every failure mode the engine can produce is a CodeError constant
// with an associated message, and every Error carries an optional parent
// chain compatible with errors.Is / errors.As.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error extends the standard error interface with code classification and
// parent chaining. It is not safe for concurrent modification (AddParent);
// concurrent reads are safe.
type Error interface {
	error

	// Code returns the classification of this error.
	Code() CodeError

	// HasParent reports whether at least one parent error was attached.
	HasParent() bool

	// AddParent appends non-nil parents to this error's parent chain.
	AddParent(parent ...error)

	// Parent returns the attached parent errors, in attachment order.
	Parent() []error

	// Is reports whether err is, or wraps, an error with the same code.
	Is(err error) bool

	// Unwrap exposes the parent chain to errors.Is / errors.As.
	Unwrap() []error
}

type ers struct {
	code   CodeError
	msg    string
	parent []error
}

// New builds an Error with the given code, message, and optional parents.
func New(code CodeError, message string, parent ...error) Error {
	e := &ers{code: code, msg: message}
	e.AddParent(parent...)
	return e
}

func (e *ers) Code() CodeError {
	return e.code
}

func (e *ers) HasParent() bool {
	return len(e.parent) > 0
}

func (e *ers) AddParent(parent ...error) {
	for _, p := range parent {
		if p != nil {
			e.parent = append(e.parent, p)
		}
	}
}

func (e *ers) Parent() []error {
	return e.parent
}

func (e *ers) Error() string {
	if len(e.parent) == 0 {
		return fmt.Sprintf("[%d] %s", e.code.Uint16(), e.msg)
	}

	parts := make([]string, 0, len(e.parent))
	for _, p := range e.parent {
		parts = append(parts, p.Error())
	}
	return fmt.Sprintf("[%d] %s: %s", e.code.Uint16(), e.msg, strings.Join(parts, "; "))
}

func (e *ers) Is(err error) bool {
	var o *ers
	if errors.As(err, &o) {
		return o.code == e.code
	}
	return false
}

func (e *ers) Unwrap() []error {
	return e.parent
}
