package httpparse

import (
	"strconv"
	"strings"
)

type header struct {
	name  []byte
	value []byte
}

// Parser accumulates tokenizer callbacks into a ready-to-use view of one
// HTTP request or response. It is single-use: call Setup once, feed bytes to
// Execute as they arrive, and read back Method/URL/Headers/Body/etc once
// Completed reports true.
type Parser struct {
	parseRequest   bool
	expectHeadOnly bool

	tok *tokenizer

	headers    []header
	lastIsField bool
	body       []byte
}

// NewParser builds a Parser defaulted to request parsing.
func NewParser() *Parser {
	return &Parser{parseRequest: true}
}

// SetParseRequest configures the parser to read an HTTP request (method,
// URL, request version).
func (p *Parser) SetParseRequest() { p.parseRequest = true }

// SetParseResponse configures the parser to read an HTTP response (status
// line, status code, reason phrase).
func (p *Parser) SetParseResponse() { p.parseRequest = false }

// SetExpectHeadOnly tells a response parser to stop after the header block,
// matching a request that used the HEAD method (which never carries a body
// regardless of Content-Length/Transfer-Encoding).
func (p *Parser) SetExpectHeadOnly(value bool) {
	p.expectHeadOnly = value
}

// Setup must be called once before the first Execute call; the parser
// cannot be reused for a second message afterward.
func (p *Parser) Setup() {
	p.tok = newTokenizer(p.parseRequest, p.expectHeadOnly, p)
}

// Execute feeds newly received bytes to the parser. It returns the number
// of bytes consumed, which is less than len(data) when the message
// completes (or parsing fails) before the end of data; unconsumed bytes belong to the connection's
// next message (pipelining) and should be re-fed after a fresh Setup.
func (p *Parser) Execute(data []byte) int {
	return p.tok.execute(data)
}

// Completed reports whether a full message (headers, and body if any) has
// been parsed.
func (p *Parser) Completed() bool { return p.tok.completed }

// OK reports whether the byte stream seen so far is well-formed.
func (p *Parser) OK() bool { return p.tok.ok }

// HeaderCount returns the number of header lines parsed.
func (p *Parser) HeaderCount() int { return len(p.headers) }

// HeaderName returns the raw name of the header at index.
func (p *Parser) HeaderName(index int) string { return string(p.headers[index].name) }

// HeaderValue returns the raw value of the header at index.
func (p *Parser) HeaderValue(index int) string { return string(p.headers[index].value) }

// Header looks up the first header matching name case-insensitively.
func (p *Parser) Header(name string) (string, bool) {
	for _, h := range p.headers {
		if strings.EqualFold(string(h.name), name) {
			return string(h.value), true
		}
	}
	return "", false
}

// URL returns the request target; empty for response parsing.
func (p *Parser) URL() string { return string(p.tok.url) }

// Body returns the accumulated message body.
func (p *Parser) Body() []byte { return p.body }

// ResponseReason returns the status line's reason phrase; empty for request
// parsing.
func (p *Parser) ResponseReason() string { return string(p.tok.reason) }

// Method returns the parsed request method; empty for response parsing.
func (p *Parser) Method() string { return string(p.tok.method) }

// StatusCode returns the parsed response status code; zero for request
// parsing.
func (p *Parser) StatusCode() int { return p.tok.statusCode }

// Version returns the HTTP version as "major.minor".
func (p *Parser) Version() string {
	return strconv.Itoa(p.tok.httpMajor) + "." + strconv.Itoa(p.tok.httpMinor)
}

// onHeaderField implements callbacks. A header name may arrive split across
// several calls (buffer boundaries); consecutive field calls without an
// intervening value call extend the current header rather than starting a
// new one, mirroring the original parser's vector-append behavior.
func (p *Parser) onHeaderField(b []byte) {
	if !p.lastIsField || len(p.headers) == 0 {
		p.headers = append(p.headers, header{})
	}
	last := &p.headers[len(p.headers)-1]
	last.name = append(last.name, b...)
	p.lastIsField = true
}

func (p *Parser) onHeaderValue(b []byte) {
	if len(p.headers) == 0 {
		return
	}
	last := &p.headers[len(p.headers)-1]
	last.value = append(last.value, b...)
	p.lastIsField = false

	name := string(last.name)
	if strings.EqualFold(name, "Content-Length") {
		if v, err := strconv.ParseInt(strings.TrimSpace(string(last.value)), 10, 64); err == nil {
			p.tok.haveLength = true
			p.tok.contentLen = v
		}
	}
	if strings.EqualFold(name, "Transfer-Encoding") {
		if strings.Contains(strings.ToLower(string(last.value)), "chunked") {
			p.tok.chunked = true
		}
	}
	if strings.EqualFold(name, "Connection") {
		if strings.EqualFold(strings.TrimSpace(string(last.value)), "close") {
			p.tok.connClose = true
		}
	}
}

func (p *Parser) onHeadersComplete() bool {
	return p.parseRequest && strings.EqualFold(string(p.tok.method), "HEAD")
}

func (p *Parser) onBody(b []byte) {
	p.body = append(p.body, b...)
}

func (p *Parser) onMessageComplete() {}
