package httpparse_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sabouaram/httpengine/httpparse"
)

func TestParsesSimpleGETRequest(t *testing.T) {
	p := httpparse.NewParser()
	p.SetParseRequest()
	p.Setup()

	raw := "GET /widgets?id=7 HTTP/1.1\r\nHost: example.com\r\nAccept: */*\r\n\r\n"
	n := p.Execute([]byte(raw))

	require.True(t, p.OK())
	require.True(t, p.Completed())
	require.Equal(t, len(raw), n)
	require.Equal(t, "GET", p.Method())
	require.Equal(t, "/widgets?id=7", p.URL())
	require.Equal(t, "1.1", p.Version())

	host, ok := p.Header("host")
	require.True(t, ok)
	require.Equal(t, "example.com", host)
	require.Empty(t, p.Body())
}

func TestParsesPOSTRequestWithContentLengthSplitAcrossExecuteCalls(t *testing.T) {
	p := httpparse.NewParser()
	p.SetParseRequest()
	p.Setup()

	head := "POST /submit HTTP/1.1\r\nHost: example.com\r\nContent-Length: 11\r\n\r\n"
	body1 := "hello "
	body2 := "world"

	n1 := p.Execute([]byte(head))
	require.Equal(t, len(head), n1)
	require.False(t, p.Completed())

	n2 := p.Execute([]byte(body1))
	require.Equal(t, len(body1), n2)
	require.False(t, p.Completed())

	n3 := p.Execute([]byte(body2))
	require.Equal(t, len(body2), n3)
	require.True(t, p.Completed())
	require.True(t, p.OK())
	require.Equal(t, "hello world", string(p.Body()))
}

func TestParsesHeaderFieldSplitAcrossExecuteCalls(t *testing.T) {
	p := httpparse.NewParser()
	p.SetParseRequest()
	p.Setup()

	full := "GET / HTTP/1.1\r\nX-Custom-Header: value\r\n\r\n"
	mid := len("GET / HTTP/1.1\r\nX-Cust")

	n1 := p.Execute([]byte(full[:mid]))
	require.Equal(t, mid, n1)

	n2 := p.Execute([]byte(full[mid:]))
	require.Equal(t, len(full)-mid, n2)

	require.True(t, p.Completed())
	v, ok := p.Header("X-Custom-Header")
	require.True(t, ok)
	require.Equal(t, "value", v)
}

func TestParsesChunkedResponseBody(t *testing.T) {
	p := httpparse.NewParser()
	p.SetParseResponse()
	p.Setup()

	raw := "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nhello\r\n" +
		"6\r\n world\r\n" +
		"0\r\n\r\n"

	n := p.Execute([]byte(raw))
	require.True(t, p.OK())
	require.True(t, p.Completed())
	require.Equal(t, len(raw), n)
	require.Equal(t, 200, p.StatusCode())
	require.Equal(t, "OK", p.ResponseReason())
	require.Equal(t, "hello world", string(p.Body()))
}

func TestHeadRequestSkipsBody(t *testing.T) {
	p := httpparse.NewParser()
	p.SetParseRequest()
	p.Setup()

	raw := "HEAD / HTTP/1.1\r\nHost: example.com\r\nContent-Length: 40\r\n\r\n"
	n := p.Execute([]byte(raw))

	require.True(t, p.Completed())
	require.Equal(t, len(raw), n)
	require.Empty(t, p.Body())
}

func TestMalformedHeaderFieldMarksNotOK(t *testing.T) {
	p := httpparse.NewParser()
	p.SetParseRequest()
	p.Setup()

	raw := "GET / HTTP/1.1\r\nBad Header: value\r\n\r\n"
	p.Execute([]byte(raw))

	require.False(t, p.OK())
}

func TestRequestVersionSplitAcrossExecuteCalls(t *testing.T) {
	full := "POST /some_post_url?q=search#hey HTTP/2.0\r\nHost: example.com\r\n\r\n"

	for chunkLen := 1; chunkLen <= 4; chunkLen++ {
		p := httpparse.NewParser()
		p.SetParseRequest()
		p.Setup()

		for start := 0; start < len(full); start += chunkLen {
			end := start + chunkLen
			if end > len(full) {
				end = len(full)
			}
			p.Execute([]byte(full[start:end]))
		}

		require.True(t, p.OK())
		require.True(t, p.Completed())
		require.Equal(t, "2.0", p.Version(), "version split at chunk length %d must not fall back to the default", chunkLen)
	}
}

func TestRequestFedInSixByteChunksParsesVersion(t *testing.T) {
	p := httpparse.NewParser()
	p.SetParseRequest()
	p.Setup()

	raw := "POST /some_post_url?q=search#hey HTTP/1.1\r\nHost: example.com\r\nContent-Length: 4\r\n\r\nbody"

	var consumed int
	for start := 0; start < len(raw); start += 6 {
		end := start + 6
		if end > len(raw) {
			end = len(raw)
		}
		consumed += p.Execute([]byte(raw[start:end]))
		if p.Completed() {
			break
		}
	}

	require.True(t, p.OK())
	require.True(t, p.Completed())
	require.Equal(t, "POST", p.Method())
	require.Equal(t, "/some_post_url?q=search#hey", p.URL())
	require.Equal(t, "1.1", p.Version())
	require.Equal(t, "body", string(p.Body()))
}

func TestResponseVersionSplitAcrossExecuteCalls(t *testing.T) {
	p := httpparse.NewParser()
	p.SetParseResponse()
	p.Setup()

	full := "HTTP/2.0 200 OK\r\nContent-Length: 0\r\n\r\n"
	mid := len("HTTP/2")

	n1 := p.Execute([]byte(full[:mid]))
	require.Equal(t, mid, n1)

	n2 := p.Execute([]byte(full[mid:]))
	require.Equal(t, len(full)-mid, n2)

	require.True(t, p.OK())
	require.True(t, p.Completed())
	require.Equal(t, "2.0", p.Version())
	require.Equal(t, 200, p.StatusCode())
}

func TestChunkedResponseWithTwoDigitHexSizesSplitAcrossExecuteCalls(t *testing.T) {
	p := httpparse.NewParser()
	p.SetParseResponse()
	p.Setup()

	firstChunk := make([]byte, 0x25)
	for i := range firstChunk {
		firstChunk[i] = 'a'
	}
	secondChunk := make([]byte, 0x1C)
	for i := range secondChunk {
		secondChunk[i] = 'b'
	}

	raw := "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"25\r\n" + string(firstChunk) + "\r\n" +
		"1C\r\n" + string(secondChunk) + "\r\n" +
		"0\r\n\r\n"

	mid := len("HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n") + 1

	n1 := p.Execute([]byte(raw[:mid]))
	require.Equal(t, mid, n1)
	require.False(t, p.Completed())

	n2 := p.Execute([]byte(raw[mid:]))
	require.Equal(t, len(raw)-mid, n2)

	require.True(t, p.OK())
	require.True(t, p.Completed())
	require.Equal(t, string(firstChunk)+string(secondChunk), string(p.Body()))
}

func TestPipelinedRequestsLeaveRemainderUnconsumed(t *testing.T) {
	p := httpparse.NewParser()
	p.SetParseRequest()
	p.Setup()

	first := "GET /a HTTP/1.1\r\nHost: example.com\r\n\r\n"
	second := "GET /b HTTP/1.1\r\nHost: example.com\r\n\r\n"

	n := p.Execute([]byte(first + second))
	require.True(t, p.Completed())
	require.Equal(t, len(first), n, "parser must stop at the message boundary, leaving the next request for a fresh Parser")
}
