package request_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sabouaram/httpengine/httpparse"
	"github.com/sabouaram/httpengine/request"
)

type fakeSender struct {
	mu     sync.Mutex
	handle int64
	sent   [][]byte
}

func (f *fakeSender) SendBlocking(connectionHandle int64, buf []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handle = connectionHandle
	cp := append([]byte(nil), buf...)
	f.sent = append(f.sent, cp)
}

func parsedGET(t *testing.T) *httpparse.Parser {
	t.Helper()
	p := httpparse.NewParser()
	p.SetParseRequest()
	p.Setup()
	raw := "GET /widgets HTTP/1.1\r\nHost: example.com\r\n\r\n"
	n := p.Execute([]byte(raw))
	require.Equal(t, len(raw), n)
	require.True(t, p.OK())
	require.True(t, p.Completed())
	return p
}

func TestCommitSendsStatusLineContentLengthAndHeaders(t *testing.T) {
	sender := &fakeSender{}
	p := parsedGET(t)
	inst := request.New(sender, 7, p, 42)

	inst.SetResponseHeader("X-Test", "yes")
	inst.AppendBodyText("hello")

	err := inst.Commit()
	require.Nil(t, err)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Equal(t, int64(7), sender.handle)
	require.Len(t, sender.sent, 1)

	payload := string(sender.sent[0])
	require.True(t, strings.HasPrefix(payload, "HTTP/1.1 200 OK\r\n"))
	require.Contains(t, payload, "Content-Length: 5\r\n")
	require.Contains(t, payload, "X-Test: yes\r\n")
	require.True(t, strings.HasSuffix(payload, "\r\n\r\nhello"))
}

func TestDoubleCommitFailsAndDoesNotResend(t *testing.T) {
	sender := &fakeSender{}
	p := parsedGET(t)
	inst := request.New(sender, 1, p, 1)

	require.Nil(t, inst.Commit())
	err := inst.Commit()
	require.NotNil(t, err)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.sent, 1)
}

func TestSetContentTypeIsStoredButNeverEmitted(t *testing.T) {
	sender := &fakeSender{}
	p := parsedGET(t)
	inst := request.New(sender, 1, p, 1)

	inst.SetContentType("application/json")
	require.Nil(t, inst.Commit())

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.NotContains(t, string(sender.sent[0]), "application/json")
	require.NotContains(t, string(sender.sent[0]), "Content-Type")
}

func TestZeroLengthBodyReportsContentLengthZero(t *testing.T) {
	sender := &fakeSender{}
	p := parsedGET(t)
	inst := request.New(sender, 1, p, 1)

	require.Nil(t, inst.Commit())

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Contains(t, string(sender.sent[0]), "Content-Length: 0\r\n")
}

func TestReadAccessorsDelegateToParser(t *testing.T) {
	sender := &fakeSender{}
	p := parsedGET(t)
	inst := request.New(sender, 1, p, 99)

	require.Equal(t, int64(99), inst.ID())
	require.Equal(t, "GET", inst.Method())
	require.Equal(t, "/widgets", inst.URL())
	require.Equal(t, "1.1", inst.Version())

	value, ok := inst.Header("Host")
	require.True(t, ok)
	require.Equal(t, "example.com", value)
}
