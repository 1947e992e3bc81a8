// Package httpserver binds the reactor, ready pool, handle table, timer
// queue, and request builder into the engine's public surface: accept
// connections, parse requests, hand each completed request to whichever
// worker calls Checkout first or, failing that, to the timeout processor
// once max_latency_millis elapses.
package httpserver

import (
	"os"
	"sync"
	"sync/atomic"
	"time"

	liberr "github.com/sabouaram/httpengine/errors"
	"github.com/sabouaram/httpengine/handletable"
	"github.com/sabouaram/httpengine/httpparse"
	"github.com/sabouaram/httpengine/logger"
	"github.com/sabouaram/httpengine/metrics"
	"github.com/sabouaram/httpengine/reactor"
	"github.com/sabouaram/httpengine/readypool"
	"github.com/sabouaram/httpengine/request"
	"github.com/sabouaram/httpengine/timerqueue"
)

// Processor handles one checked-out request. It must call inst.Commit (or
// leave it uncommitted, in which case another caller may still complete it)
// before returning.
type Processor interface {
	Process(inst *request.Instance)
}

// ProcessorFunc adapts a plain function to Processor.
type ProcessorFunc func(inst *request.Instance)

// Process calls f.
func (f ProcessorFunc) Process(inst *request.Instance) { f(inst) }

const defaultTimerWorkers = 5

// Options configures optional collaborators for New. The zero value is a
// fully functional server with no logging or metrics and five timer
// workers.
type Options struct {
	Logger       logger.Logger
	Metrics      *metrics.Collector
	TimerWorkers int
}

// Server binds every engine component behind the lifecycle spec.md assigns
// it: Checkout/Reprocess/Run/Cancel/Stop, plus atomic counters.
type Server struct {
	host string

	reactorRef       *reactor.Reactor
	pool             *readypool.Pool
	table            *handletable.Table
	timers           *timerqueue.Queue
	timeoutProcessor Processor
	log              logger.Logger
	metricsCollector *metrics.Collector

	maxLatencyMillis atomic.Int64
	running          atomic.Bool
	stopped          atomic.Bool

	totalCount      atomic.Int64
	processedCount  atomic.Int64
	timeoutCount    atomic.Int64
	checkedOutCount atomic.Int64
}

type responseContext struct {
	mu               sync.Mutex
	parser           *httpparse.Parser
	timeoutProcessor Processor
	connectionHandle int64
	server           *Server
	committed        bool
	instanceID       int64
	addedAt          time.Time
}

func (ctx *responseContext) setInstanceID(id int64) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	ctx.instanceID = id
}

func (ctx *responseContext) isCommitted() bool {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return ctx.committed
}

// applyProcessor runs processor against a transient request.Instance bound
// to this context, under the context's own lock, so at most one processor
// invocation (checkout, reprocess, or the timeout callback) observes
// committed==false and gets to act. viaTimeout tells the caller which of
// processed/timed-out counters to bump on commit; a Processor value may be
// backed by a non-comparable func, so this is passed explicitly rather than
// inferred by comparing it against ctx.timeoutProcessor.
func (ctx *responseContext) applyProcessor(processor Processor, viaTimeout bool) bool {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	if ctx.committed {
		return false
	}

	inst := request.New(ctx.server.reactorRef, ctx.connectionHandle, ctx.parser, ctx.instanceID)
	processor.Process(inst)
	ctx.committed = inst.Committed()

	if ctx.committed {
		if viaTimeout {
			ctx.server.timeoutCount.Add(1)
			ctx.server.metricsCollector.IncTimedOut()
		} else {
			ctx.server.processedCount.Add(1)
			ctx.server.metricsCollector.IncProcessed()
		}
		ctx.server.metricsCollector.ObserveCommitLatency(time.Since(ctx.addedAt))
	}
	return ctx.committed
}

func (ctx *responseContext) finalize() {
	ctx.applyProcessor(ctx.timeoutProcessor, true)
	if !ctx.isCommitted() && ctx.server.log != nil {
		ctx.server.log.Error("timeout processor returned without committing",
			logger.F("instance_id", ctx.instanceID))
	}
}

type connectionHandler struct {
	server           *Server
	reactorRef       *reactor.Reactor
	connectionHandle int64
	parser           *httpparse.Parser
}

func (h *connectionHandler) SetContext(handle int64, r *reactor.Reactor) {
	h.connectionHandle = handle
	h.reactorRef = r
}

// HandleBuffer feeds buf to the connection's in-progress parser, looping so
// that a burst containing more than one pipelined request yields a
// response context per request instead of only the first.
func (h *connectionHandler) HandleBuffer(buf []byte) {
	for len(buf) > 0 {
		if h.parser == nil {
			h.parser = httpparse.NewParser()
			h.parser.SetParseRequest()
			h.parser.Setup()
		}

		consumed := h.parser.Execute(buf)

		if !h.parser.OK() {
			h.reactorRef.CloseConnection(h.connectionHandle)
			return
		}

		if h.parser.Completed() {
			ctx := &responseContext{
				parser:           h.parser,
				timeoutProcessor: h.server.timeoutProcessor,
				connectionHandle: h.connectionHandle,
				server:           h.server,
				instanceID:       -1,
				addedAt:          time.Now(),
			}
			h.parser = nil
			h.server.addReady(ctx)
		}

		if consumed <= 0 {
			break
		}
		buf = buf[consumed:]
	}
}

func (h *connectionHandler) Finalize() {}

type handlerFactory struct {
	server *Server
}

func (f *handlerFactory) Get() reactor.ConnectionHandler {
	return &connectionHandler{server: f.server}
}

// New binds host:port (port 0 picks an ephemeral port) and starts accepting
// connections immediately; the server is serving before New returns.
// workerThreadCount sizes the reactor's poller worker pool; maxLatencyMillis
// bounds how long a request may wait in the ready pool before
// timeoutProcessor is invoked in place of a user Processor (<=0 means every
// request is finalized immediately via the timeout processor, never
// reaching the ready pool).
func New(host string, port int, workerThreadCount int, maxLatencyMillis int64, timeoutProcessor Processor, opts Options) (*Server, liberr.Error) {
	timerWorkers := opts.TimerWorkers
	if timerWorkers < 1 {
		timerWorkers = defaultTimerWorkers
	}

	s := &Server{
		host:             host,
		pool:             readypool.New(),
		table:            handletable.New(),
		timeoutProcessor: timeoutProcessor,
		log:              opts.Logger,
		metricsCollector: opts.Metrics,
	}
	s.maxLatencyMillis.Store(maxLatencyMillis)

	s.timers = timerqueue.New(s.timerFired, timerWorkers)

	r, err := reactor.New(host, port, &handlerFactory{server: s}, workerThreadCount, opts.Logger)
	if err != nil {
		s.timers.Stop()
		return nil, err
	}
	s.reactorRef = r

	s.running.Store(true)
	return s, nil
}

// ActualPort reports the port the reactor's acceptor socket is bound to.
func (s *Server) ActualPort() int { return s.reactorRef.ActualPort() }

// URL is the http://host:port this server is reachable at.
func (s *Server) URL() string {
	return "http://" + s.host + ":" + itoa(s.ActualPort())
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// SetMaxLatencyMillis updates the timeout window new requests are subject
// to; in-flight requests already scheduled keep their original deadline.
func (s *Server) SetMaxLatencyMillis(maxLatencyMillis int64) {
	s.maxLatencyMillis.Store(maxLatencyMillis)
}

func nowEpochMillis() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

func (s *Server) addReady(ctx *responseContext) {
	s.totalCount.Add(1)
	s.metricsCollector.IncTotal()

	if !s.running.Load() || s.maxLatencyMillis.Load() <= 0 {
		ctx.finalize()
		return
	}

	id, err := s.table.NewID(ctx, ctx.finalize)
	if err != nil {
		ctx.finalize()
		return
	}
	ctx.setInstanceID(id)

	s.timers.AddItem(timerqueue.Context{Value2: id}, nowEpochMillis()+s.maxLatencyMillis.Load()) //nolint:errcheck
	s.pool.Insert(id)

	s.metricsCollector.SetReadyPoolDepth(s.pool.Len())
	s.metricsCollector.SetHandleTableLive(s.table.Len())
}

func (s *Server) timerFired(tc timerqueue.Context) {
	id := tc.Value2
	_ = s.applyProcessorByID(id, s.timeoutProcessor, true)
	s.pool.Erase(id)
}

func (s *Server) applyProcessorByID(id int64, processor Processor, viaTimeout bool) bool {
	payload, ok := s.table.AddrefAndGet(id)
	if !ok {
		return false
	}

	ctx := payload.(*responseContext)
	committed := ctx.applyProcessor(processor, viaTimeout)

	derefCount := 1
	if committed {
		derefCount = 2
	}
	s.table.Deref(id, derefCount)
	return committed
}

// Checkout pops the newest ready request, if any, and runs processor on it
// in the calling goroutine. It returns immediately if the ready pool is
// empty.
func (s *Server) Checkout(processor Processor) {
	id, ok := s.pool.PopCandidate()
	if !ok {
		return
	}
	s.checkedOutCount.Add(1)
	s.metricsCollector.IncCheckedOut()
	_ = s.applyProcessorByID(id, processor, false)
}

// Reprocess applies processor to the request still registered under id,
// without touching the ready pool. It is for two-phase workers that
// checked out a request earlier (to read headers on one goroutine) and now
// want to commit its response on another. ok is false if id has already
// timed out or been finalized.
func (s *Server) Reprocess(id int64, processor Processor) (ok bool) {
	return s.applyProcessorByID(id, processor, false)
}

// Counters is a point-in-time snapshot of the server's atomic counters.
type Counters struct {
	Total      int64
	Processed  int64
	TimedOut   int64
	CheckedOut int64
}

// Snapshot reads the current counters.
func (s *Server) Snapshot() Counters {
	return Counters{
		Total:      s.totalCount.Load(),
		Processed:  s.processedCount.Load(),
		TimedOut:   s.timeoutCount.Load(),
		CheckedOut: s.checkedOutCount.Load(),
	}
}

// Run blocks, polling in ~50ms slices, until Cancel or Stop is called. A
// counters summary is logged roughly every five seconds when debugOut is
// true or the DEBUG_OUT environment variable is set, matching the
// original's DEBUG_OUT-gated console output.
func (s *Server) Run(debugOut bool) {
	debugOut = debugOut || os.Getenv("DEBUG_OUT") != ""

	const sleepSlice = 50 * time.Millisecond
	iters := 0
	for s.running.Load() {
		time.Sleep(sleepSlice)
		iters++
		if iters == 100 {
			if debugOut && s.log != nil {
				c := s.Snapshot()
				s.log.Info("httpengine counters",
					logger.F("total", c.Total),
					logger.F("processed", percentageText(c.Processed, c.Total)),
					logger.F("timed_out", percentageText(c.TimedOut, c.Total)),
					logger.F("checked_out", percentageText(c.CheckedOut, c.Total)),
				)
			}
			iters = 0
		}
	}
	s.Stop()
}

func percentageText(part, total int64) string {
	if total == 0 {
		return "0%"
	}
	return itoa(int(part*100/total)) + "%"
}

// Cancel flips the running flag off, letting a blocked Run return (and
// itself call Stop) without forcing an immediate teardown from the calling
// goroutine.
func (s *Server) Cancel() {
	s.running.Store(false)
}

// Stop is idempotent. It stops accepting new ready requests, forces the
// timer queue to flush every pending timeout (committing every
// un-committed context via the timeout processor), sweeps any context the
// timer flush still missed via the handle table's finalizers, then tears
// down the reactor, closing every live connection.
func (s *Server) Stop() {
	if s.stopped.Swap(true) {
		return
	}
	s.running.Store(false)

	s.timers.Stop()
	s.table.CleanAll()
	s.reactorRef.Stop()
}
