package httpclient_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sabouaram/httpengine/httpclient"
	"github.com/sabouaram/httpengine/httpparse"
	"github.com/sabouaram/httpengine/httpserver"
	"github.com/sabouaram/httpengine/request"
)

func TestBuildGetHeaderMatchesExactByteLayout(t *testing.T) {
	c := httpclient.New("TEST_HOST", "TEST_PORT")
	got := c.BuildGetHeader("TEST_URL")
	want := "GET TEST_URL HTTP/1.1\r\nHost: TEST_HOST:TEST_PORT\r\nConnection: close\r\nAccept: */*\r\n\r\n"
	require.Equal(t, want, string(got))
}

func TestBuildGetHeaderKeepAlive(t *testing.T) {
	c := httpclient.New("h", "p", httpclient.WithKeepAlive(true))
	got := string(c.BuildGetHeader("/x"))
	require.Contains(t, got, "Connection: keep-alive\r\n")
}

func TestBuildPostRequestLayout(t *testing.T) {
	c := httpclient.New("h", "p",
		httpclient.WithContentType("application/json"),
		httpclient.WithAcceptEncoding("gzip"),
		httpclient.WithHeader("X-Trace", "abc"),
	)
	got := string(c.BuildPostRequest("/widgets", []byte("hi")))

	want := "POST /widgets HTTP/1.1\r\n" +
		"Host: h:p\r\n" +
		"Connection: close\r\n" +
		"Content-Length: 2\r\n" +
		"Content-Type: application/json\r\n" +
		"X-Trace: abc\r\n" +
		"Accept-Encoding: gzip\r\n\r\n" +
		"hi"
	require.Equal(t, want, got)
}

func TestRequestBytesRoundTripThroughParser(t *testing.T) {
	c := httpclient.New("h", "p")
	raw := c.BuildPostRequest("/widgets", []byte("payload"))

	p := httpparse.NewParser()
	p.SetParseRequest()
	p.Setup()
	n := p.Execute(raw)

	require.Equal(t, len(raw), n)
	require.True(t, p.OK())
	require.True(t, p.Completed())
	require.Equal(t, "POST", p.Method())
	require.Equal(t, "/widgets", p.URL())
	require.Equal(t, []byte("payload"), p.Body())
}

func TestGetRoundTripsAgainstALiveServer(t *testing.T) {
	processor := httpserver.ProcessorFunc(func(inst *request.Instance) {
		inst.AppendBodyText("hello " + inst.URL())
		_ = inst.Commit()
	})

	s, err := httpserver.New("127.0.0.1", 0, 2, 5000, processor, httpserver.Options{})
	require.Nil(t, err)
	defer s.Stop()

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				s.Checkout(processor)
			}
		}
	}()

	c := httpclient.New("127.0.0.1", portString(s.ActualPort()))
	resp, reqErr := c.Get("/ping")
	require.Nil(t, reqErr)
	require.Equal(t, "HTTP/1.1 200 OK", resp.StatusLine)
	require.Equal(t, "hello /ping", string(resp.Body))
}

func portString(port int) string {
	return httpclientTestItoa(port)
}

func httpclientTestItoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
