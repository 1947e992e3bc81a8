// Package request implements the read-view and response-builder handed to
// user processors: parsed request fields are read through it, and exactly
// one response may be built and committed through it. Commit is the
// critical section — it renders the status line, headers, and body into one
// buffer and hands it to the connection's sender in a single write.
package request

import (
	"bytes"
	"strconv"
	"sync"

	liberr "github.com/sabouaram/httpengine/errors"
	"github.com/sabouaram/httpengine/httpparse"
)

// Sender is the subset of the reactor a committed response is written
// through. It exists so request does not need to import reactor's full
// connection-lifecycle surface.
type Sender interface {
	SendBlocking(connectionHandle int64, buf []byte)
}

// Instance is a single request/response exchange: one parsed request,
// bound to the connection it arrived on, plus the response being built for
// it. It is not safe to share across connections, but Commit/SetResponseHeader
// etc. are safe to call from whichever goroutine currently owns the
// instance (checkout's user-processor thread, or the timer queue's timeout
// thread — never both at once, since the server runs every processor under
// the per-request response context's lock).
type Instance struct {
	sender           Sender
	connectionHandle int64
	parser           *httpparse.Parser
	instanceID       int64

	mu          sync.Mutex
	committed   bool
	headers     map[string]string
	body        bytes.Buffer
	contentType string
}

// New builds a response-pending Instance bound to parser's already-completed
// parse of one request on connectionHandle.
func New(sender Sender, connectionHandle int64, parser *httpparse.Parser, instanceID int64) *Instance {
	return &Instance{
		sender:           sender,
		connectionHandle: connectionHandle,
		parser:           parser,
		instanceID:       instanceID,
		headers:          make(map[string]string),
	}
}

// ID returns the handle-table id this instance is registered under.
func (i *Instance) ID() int64 { return i.instanceID }

// Method returns the parsed HTTP method ("" for a response parse).
func (i *Instance) Method() string { return i.parser.Method() }

// Version returns the parsed "major.minor" HTTP version string.
func (i *Instance) Version() string { return i.parser.Version() }

// URL returns the parsed request URL.
func (i *Instance) URL() string { return i.parser.URL() }

// HeaderCount returns the number of request headers parsed.
func (i *Instance) HeaderCount() int { return i.parser.HeaderCount() }

// HeaderName returns the name of the index'th request header.
func (i *Instance) HeaderName(index int) string { return i.parser.HeaderName(index) }

// HeaderValue returns the value of the index'th request header.
func (i *Instance) HeaderValue(index int) string { return i.parser.HeaderValue(index) }

// Header looks up a request header by name, case-insensitively.
func (i *Instance) Header(name string) (string, bool) { return i.parser.Header(name) }

// Body returns the parsed request body.
func (i *Instance) Body() []byte { return i.parser.Body() }

// Committed reports whether Commit has already succeeded on this instance.
func (i *Instance) Committed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.committed
}

// SetContentType records a content type for this response. Matching the
// engine's fixed "HTTP/1.1 200 OK" response shape, it is retained but never
// emitted on the wire; callers that need Content-Type visible to the peer
// must set it explicitly with SetResponseHeader.
func (i *Instance) SetContentType(contentType string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.contentType = contentType
}

// SetResponseHeader sets a response header. A later call for the same name
// (case-sensitive) overwrites the earlier value; wire order among distinct
// header names is unspecified.
func (i *Instance) SetResponseHeader(name, value string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.headers[name] = value
}

// AppendBody appends raw bytes to the response body.
func (i *Instance) AppendBody(buf []byte) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.body.Write(buf)
}

// AppendBodyText appends a string to the response body.
func (i *Instance) AppendBodyText(text string) {
	i.AppendBody([]byte(text))
}

// buildHeader renders the status line and header block. It is the one place
// a status line is written, and that line is always "HTTP/1.1 200 OK":
// Instance offers no way to choose another status.
func (i *Instance) buildHeader() []byte {
	var b bytes.Buffer
	b.WriteString("HTTP/1.1 200 OK\r\n")
	b.WriteString("Content-Length: ")
	b.WriteString(strconv.Itoa(i.body.Len()))
	b.WriteString("\r\n")
	for name, value := range i.headers {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	return b.Bytes()
}

// Commit renders the status line, headers, and body into one buffer and
// sends it on the owning connection. It may only succeed once: a second
// call returns ErrDoubleCommit without touching the connection.
func (i *Instance) Commit() liberr.Error {
	i.mu.Lock()
	if i.committed {
		i.mu.Unlock()
		return liberr.ErrDoubleCommit.Error(nil)
	}

	payload := i.buildHeader()
	payload = append(payload, i.body.Bytes()...)
	i.committed = true
	i.mu.Unlock()

	i.sender.SendBlocking(i.connectionHandle, payload)
	return nil
}
