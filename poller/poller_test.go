package poller_test

import (
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sabouaram/httpengine/poller"
	"github.com/sabouaram/httpengine/sockutil"
)

func TestAddDeliversReadinessOnce(t *testing.T) {
	p, err := poller.New()
	require.NoError(t, err)
	defer p.Close()

	listenFD, lerr := sockutil.ListenStream("127.0.0.1", 0, true)
	require.Nil(t, lerr)
	defer sockutil.Close(listenFD)

	port, lerr := sockutil.BoundPort(listenFD)
	require.Nil(t, lerr)

	require.NoError(t, p.Add(1, listenFD))

	clientConn, derr := net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(port))
	require.NoError(t, derr)
	defer clientConn.Close()

	var mu sync.Mutex
	fired := 0
	done := make(chan struct{})
	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			p.ProcessNextBatch(func(handle int64) {
				mu.Lock()
				fired++
				mu.Unlock()
			})
		}
		close(done)
	}()
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, fired, "one-shot readiness should fire exactly once until rearmed")
}

