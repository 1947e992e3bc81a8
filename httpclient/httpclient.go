// Package httpclient is a small blocking HTTP/1.1 client that emits the
// exact request byte layouts this engine's server is tested against. It is
// a test-only collaborator, not part of the engine's runtime surface.
package httpclient

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	liberr "github.com/sabouaram/httpengine/errors"
)

// Option configures a Client. The functional-option shape mirrors the
// teacher's httpcli constructor style.
type Option func(*Client)

// WithKeepAlive sets the Connection header value the client sends; the
// default is "close".
func WithKeepAlive(keepAlive bool) Option {
	return func(c *Client) { c.keepAlive = keepAlive }
}

// WithTimeout bounds every dial/read/write the client performs; the
// default is five seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithHeader adds an extra header to POST requests, sent in insertion order
// between Content-Type and Accept-Encoding. GET requests do not carry it.
func WithHeader(name, value string) Option {
	return func(c *Client) { c.extraHeaders = append(c.extraHeaders, [2]string{name, value}) }
}

// WithAcceptEncoding sets the Accept-Encoding value a POST request sends;
// the default is "identity".
func WithAcceptEncoding(encoding string) Option {
	return func(c *Client) { c.acceptEncoding = encoding }
}

// WithContentType sets the Content-Type value a POST request sends; the
// default is "text/plain".
func WithContentType(contentType string) Option {
	return func(c *Client) { c.contentType = contentType }
}

// Client is a blocking HTTP/1.1 client over a single short-lived TCP
// connection per call: every Get/Post dials, sends, reads one response, and
// closes.
type Client struct {
	host           string
	port           string
	keepAlive      bool
	timeout        time.Duration
	extraHeaders   [][2]string
	acceptEncoding string
	contentType    string
}

// New builds a Client targeting host:port.
func New(host, port string, opts ...Option) *Client {
	c := &Client{
		host:           host,
		port:           port,
		timeout:        5 * time.Second,
		acceptEncoding: "identity",
		contentType:    "text/plain",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Response is a parsed HTTP/1.1 response.
type Response struct {
	StatusLine string
	Headers    map[string]string
	Body       []byte
}

func (c *Client) connectionHeaderValue() string {
	if c.keepAlive {
		return "keep-alive"
	}
	return "close"
}

// BuildGetHeader returns the exact bytes a GET request for url is sent as,
// without dialing anything.
func (c *Client) BuildGetHeader(url string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "GET %s HTTP/1.1\r\n", url)
	fmt.Fprintf(&b, "Host: %s:%s\r\n", c.host, c.port)
	fmt.Fprintf(&b, "Connection: %s\r\n", c.connectionHeaderValue())
	b.WriteString("Accept: */*\r\n\r\n")
	return []byte(b.String())
}

// BuildPostRequest returns the exact bytes a POST request carrying payload
// is sent as, without dialing anything.
func (c *Client) BuildPostRequest(url string, payload []byte) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "POST %s HTTP/1.1\r\n", url)
	fmt.Fprintf(&b, "Host: %s:%s\r\n", c.host, c.port)
	fmt.Fprintf(&b, "Connection: %s\r\n", c.connectionHeaderValue())
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(payload))
	fmt.Fprintf(&b, "Content-Type: %s\r\n", c.contentType)
	for _, h := range c.extraHeaders {
		fmt.Fprintf(&b, "%s: %s\r\n", h[0], h[1])
	}
	fmt.Fprintf(&b, "Accept-Encoding: %s\r\n\r\n", c.acceptEncoding)
	b.Write(payload)
	return []byte(b.String())
}

// Get sends a GET request for url and returns the parsed response.
func (c *Client) Get(url string) (*Response, liberr.Error) {
	return c.roundTrip(c.BuildGetHeader(url))
}

// Post sends a POST request for url carrying payload and returns the
// parsed response.
func (c *Client) Post(url string, payload []byte) (*Response, liberr.Error) {
	return c.roundTrip(c.BuildPostRequest(url, payload))
}

func (c *Client) roundTrip(request []byte) (*Response, liberr.Error) {
	addr := net.JoinHostPort(c.host, c.port)
	conn, err := net.DialTimeout("tcp", addr, c.timeout)
	if err != nil {
		return nil, liberr.ErrSendFailed.Error(err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, liberr.ErrSendFailed.Error(err)
	}

	if _, err := conn.Write(request); err != nil {
		return nil, liberr.ErrSendFailed.Error(err)
	}

	return readResponse(conn)
}

func readResponse(r io.Reader) (*Response, liberr.Error) {
	reader := bufio.NewReader(r)

	statusLine, err := reader.ReadString('\n')
	if err != nil {
		return nil, liberr.ErrParseMalformed.Error(err)
	}

	headers := make(map[string]string)
	contentLength := 0
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, liberr.ErrParseMalformed.Error(err)
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			break
		}
		name, value, ok := strings.Cut(trimmed, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		headers[name] = value
		if strings.EqualFold(name, "Content-Length") {
			if n, convErr := strconv.Atoi(value); convErr == nil {
				contentLength = n
			}
		}
	}

	body := make([]byte, contentLength)
	if contentLength > 0 {
		if _, err := io.ReadFull(reader, body); err != nil {
			return nil, liberr.ErrParseMalformed.Error(err)
		}
	}

	return &Response{
		StatusLine: strings.TrimRight(statusLine, "\r\n"),
		Headers:    headers,
		Body:       body,
	}, nil
}
