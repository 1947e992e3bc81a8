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

package errors

// CodeError is a numeric classification of an Error, similar in spirit to an
// HTTP status code.
type CodeError uint16

// UnknownError is the zero-value fallback classification.
const UnknownError CodeError = 0

const (
	// ErrSocketInit covers failures creating, binding, or listening on the
	// acceptor socket.
	ErrSocketInit CodeError = iota + 100
	// ErrPollAdd covers failures registering a handle with the poller shim.
	ErrPollAdd
	// ErrPollRearm covers failures rearming one-shot readiness.
	ErrPollRearm
	// ErrAcceptFailed covers unexpected (non would-block) accept failures.
	ErrAcceptFailed
	// ErrSendFailed covers a failed blocking send on a connection socket.
	ErrSendFailed
	// ErrParseMalformed marks a connection whose parser reported a tokenizer
	// error.
	ErrParseMalformed
	// ErrDoubleCommit marks an attempt to commit an already-committed
	// request instance.
	ErrDoubleCommit
	// ErrPoolDuplicate marks an attempt to insert an id already present in
	// the ready pool.
	ErrPoolDuplicate
	// ErrHandleNilPayload marks an attempt to register a nil payload in the
	// handle table.
	ErrHandleNilPayload
	// ErrTimerStopped marks a rejected AddItem call after Stop was invoked.
	ErrTimerStopped
	// ErrConfigInvalid marks a config validation failure.
	ErrConfigInvalid
	// ErrConfigLoad marks a failure loading configuration from its source.
	ErrConfigLoad
)

var codeMessage = map[CodeError]string{
	UnknownError:        "unknown error",
	ErrSocketInit:       "failed to initialize listening socket",
	ErrPollAdd:          "failed to register handle with poller",
	ErrPollRearm:        "failed to rearm one-shot readiness",
	ErrAcceptFailed:     "failed to accept connection",
	ErrSendFailed:       "failed to send response bytes",
	ErrParseMalformed:   "malformed http request",
	ErrDoubleCommit:     "response already committed",
	ErrPoolDuplicate:    "duplicate id inserted into ready pool",
	ErrHandleNilPayload: "nil payload registered in handle table",
	ErrTimerStopped:     "timer queue is stopping",
	ErrConfigInvalid:    "invalid configuration",
	ErrConfigLoad:       "failed to load configuration",
}

// Uint16 returns the numeric value of the code.
func (c CodeError) Uint16() uint16 {
	return uint16(c)
}

// Message returns the registered human-readable message for this code, or
// the generic unknown-error message if it was never registered.
func (c CodeError) Message() string {
	if m, ok := codeMessage[c]; ok {
		return m
	}
	return codeMessage[UnknownError]
}

// Error builds a new Error classified with this code, optionally chaining
// one or more parent errors.
//
//	err := liberr.ErrDoubleCommit.Error(nil)
//	err := liberr.ErrSendFailed.Error(origErr)
func (c CodeError) Error(parent ...error) Error {
	return New(c, c.Message(), parent...)
}
