// Package httpparse implements an incremental, callback-driven HTTP/1.1
// byte-level tokenizer together with a higher-level Parser that accumulates
// the callbacks into a usable request or response view. The tokenizer is
// hand-written rather than pulled from a dependency: no package in the
// reviewed ecosystem exposes the joyent http_parser-style
// on_header_field/on_header_value/on_headers_complete/on_body callback
// contract this engine is built around, so it is reproduced here as the one
// deliberately self-contained piece of the parsing stack.
package httpparse

import "strconv"

type tokenState int

const (
	stateReqMethod tokenState = iota
	stateReqURL
	stateReqVersion
	stateResVersion
	stateResStatusCode
	stateResReasonStart
	stateResReason
	stateStartLineCR
	stateStartLineLF
	stateHeaderFieldStart
	stateHeaderField
	stateHeaderValueStart
	stateHeaderValue
	stateHeaderValueCR
	stateHeaderValueLF
	stateHeadersDone
	stateBodyIdentity
	stateBodyUntilClose
	stateChunkSize
	stateChunkSizeCR
	stateChunkData
	stateChunkDataCR
	stateChunkDataLF
	stateChunkTrailer
	stateMessageDone
	stateError
)

const (
	kNone = iota
	kField
	kValue
)

// callbacks mirrors the joyent http_parser callback surface this tokenizer
// reproduces: one entry point per token kind, called with the slice of
// newly available bytes for that token, which may span many execute calls
// when a chunk boundary falls in the middle of a token.
type callbacks interface {
	onHeaderField(b []byte)
	onHeaderValue(b []byte)
	onHeadersComplete() (skipBody bool)
	onBody(b []byte)
	onMessageComplete()
}

// tokenizer is the incremental byte-level state machine driving a Parser.
// execute may be called any number of times with arbitrary chunk
// boundaries; parsing resumes exactly where the previous call left off.
type tokenizer struct {
	isRequest      bool
	expectHeadOnly bool
	cb             callbacks

	state tokenState
	ok    bool

	method     []byte
	url        []byte
	reason     []byte
	versionBuf []byte
	httpMajor  int
	httpMinor  int
	statusCode int

	chunkSizeBuf []byte

	statusDigits []byte

	lastHeaderField int
	haveLength      bool
	contentLen      int64
	chunked         bool
	connClose       bool
	chunkRemain     int64

	completed bool
}

func newTokenizer(isRequest bool, expectHeadOnly bool, cb callbacks) *tokenizer {
	t := &tokenizer{
		isRequest:       isRequest,
		expectHeadOnly:  expectHeadOnly,
		cb:              cb,
		ok:              true,
		lastHeaderField: kNone,
		httpMajor:       1,
		httpMinor:       1,
	}
	if isRequest {
		t.state = stateReqMethod
	} else {
		t.state = stateResVersion
	}
	return t
}

func isTokenChar(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}

// execute feeds a new chunk of bytes into the state machine and returns the
// number of bytes consumed. A short count with ok() still true means the
// message finished (or head-only truncation kicked in) before data was
// exhausted; any bytes past the returned count belong to the next message.
func (t *tokenizer) execute(data []byte) int {
	if !t.ok {
		return 0
	}

	i, mark := 0, -1

	for i < len(data) {
		c := data[i]

		switch t.state {
		case stateReqMethod:
			if c == ' ' {
				t.method = append(t.method, data[markOr(mark, i):i]...)
				mark = -1
				t.state = stateReqURL
				i++
				continue
			}
			if mark < 0 {
				mark = i
			}
			i++

		case stateReqURL:
			if c == ' ' {
				t.url = append(t.url, data[markOr(mark, i):i]...)
				mark = -1
				t.state = stateReqVersion
				i++
				continue
			}
			if mark < 0 {
				mark = i
			}
			i++

		case stateReqVersion:
			if c == '\r' || c == '\n' {
				t.httpMajor, t.httpMinor = parseVersionDigits(string(append(t.versionBuf, data[markOr(mark, i):i]...)))
				t.versionBuf = nil
				mark = -1
				t.state = stateStartLineCR
				continue
			}
			if mark < 0 {
				mark = i
			}
			i++

		case stateResVersion:
			if c == ' ' {
				t.httpMajor, t.httpMinor = parseVersionDigits(string(append(t.versionBuf, data[markOr(mark, i):i]...)))
				t.versionBuf = nil
				mark = -1
				t.state = stateResStatusCode
				i++
				continue
			}
			if mark < 0 {
				mark = i
			}
			i++

		case stateResStatusCode:
			if c == ' ' || c == '\r' || c == '\n' {
				if v, err := strconv.Atoi(string(t.statusDigits)); err == nil {
					t.statusCode = v
				}
				if c == ' ' {
					t.state = stateResReasonStart
					i++
					continue
				}
				t.state = stateStartLineCR
				continue
			}
			t.statusDigits = append(t.statusDigits, c)
			i++

		case stateResReasonStart:
			if c == '\r' || c == '\n' {
				t.state = stateStartLineCR
				continue
			}
			t.state = stateResReason
			mark = i

		case stateResReason:
			if c == '\r' || c == '\n' {
				t.reason = append(t.reason, data[markOr(mark, i):i]...)
				mark = -1
				t.state = stateStartLineCR
				continue
			}
			if mark < 0 {
				mark = i
			}
			i++

		case stateStartLineCR:
			if c == '\r' {
				i++
				continue
			}
			if c == '\n' {
				i++
				t.state = stateHeaderFieldStart
				continue
			}
			// Tolerate a bare LF already consumed above; anything else here
			// is unexpected but we resync on the next header-field start.
			t.state = stateHeaderFieldStart

		case stateHeaderFieldStart:
			if c == '\r' {
				i++
				continue
			}
			if c == '\n' {
				i++
				t.state = t.afterHeaders()
				if t.state == stateError {
					return i
				}
				if t.state == stateMessageDone {
					t.finish()
					return i
				}
				continue
			}
			t.state = stateHeaderField
			mark = i

		case stateHeaderField:
			if mark < 0 {
				mark = i
			}
			if c == ':' {
				t.cb.onHeaderField(data[mark:i])
				mark = -1
				t.lastHeaderField = kField
				t.state = stateHeaderValueStart
				i++
				continue
			}
			if !isTokenChar(c) {
				t.ok = false
				t.state = stateError
				return i
			}
			i++

		case stateHeaderValueStart:
			if c == ' ' || c == '\t' {
				i++
				continue
			}
			t.state = stateHeaderValue
			mark = i

		case stateHeaderValue:
			if mark < 0 {
				mark = i
			}
			if c == '\r' {
				t.flushHeaderValue(data, mark, i)
				mark = -1
				t.state = stateHeaderValueCR
				i++
				continue
			}
			if c == '\n' {
				t.flushHeaderValue(data, mark, i)
				mark = -1
				t.state = stateHeaderFieldStart
				i++
				continue
			}
			i++

		case stateHeaderValueCR:
			if c == '\n' {
				i++
			}
			t.state = stateHeaderFieldStart

		case stateBodyIdentity:
			n := t.chunkRemain
			if avail := int64(len(data) - i); avail < n {
				n = avail
			}
			if n > 0 {
				t.cb.onBody(data[i : i+int(n)])
				i += int(n)
				t.chunkRemain -= n
			}
			if t.chunkRemain <= 0 {
				t.finish()
				return i
			}

		case stateBodyUntilClose:
			if i < len(data) {
				t.cb.onBody(data[i:])
				i = len(data)
			}

		case stateChunkSize:
			if c == '\r' || c == '\n' || c == ';' {
				size, perr := parseHexInt64(append(t.chunkSizeBuf, data[markOr(mark, i):i]...))
				t.chunkSizeBuf = nil
				mark = -1
				if perr != nil {
					t.ok = false
					t.state = stateError
					return i
				}
				t.chunkRemain = size
				if c == ';' {
					// chunk extension: consume bytes up to CRLF without
					// re-parsing the size.
					t.state = stateChunkSizeCR
					i++
					continue
				}
				i++
				if c == '\n' {
					if t.chunkRemain == 0 {
						t.state = stateChunkTrailer
					} else {
						t.state = stateChunkData
					}
					continue
				}
				t.state = stateChunkSizeCR
				continue
			}
			if mark < 0 {
				mark = i
			}
			i++

		case stateChunkSizeCR:
			if c == '\n' {
				i++
				if t.chunkRemain == 0 {
					t.state = stateChunkTrailer
				} else {
					t.state = stateChunkData
				}
				continue
			}
			i++

		case stateChunkData:
			n := t.chunkRemain
			if avail := int64(len(data) - i); avail < n {
				n = avail
			}
			if n > 0 {
				t.cb.onBody(data[i : i+int(n)])
				i += int(n)
				t.chunkRemain -= n
			}
			if t.chunkRemain <= 0 {
				t.state = stateChunkDataCR
			}

		case stateChunkDataCR:
			if c == '\r' {
				i++
			}
			t.state = stateChunkDataLF

		case stateChunkDataLF:
			if c == '\n' {
				i++
			}
			t.state = stateChunkSize

		case stateChunkTrailer:
			if c == '\n' {
				i++
				t.finish()
				return i
			}
			i++

		case stateMessageDone, stateError:
			return i
		}
	}

	if mark >= 0 {
		switch t.state {
		case stateReqMethod:
			t.method = append(t.method, data[mark:]...)
		case stateReqURL:
			t.url = append(t.url, data[mark:]...)
		case stateReqVersion, stateResVersion:
			t.versionBuf = append(t.versionBuf, data[mark:]...)
		case stateResReason:
			t.reason = append(t.reason, data[mark:]...)
		case stateChunkSize:
			t.chunkSizeBuf = append(t.chunkSizeBuf, data[mark:]...)
		case stateHeaderField:
			t.cb.onHeaderField(data[mark:])
			t.lastHeaderField = kField
		case stateHeaderValue:
			t.cb.onHeaderValue(data[mark:])
		}
	}

	return i
}

func (t *tokenizer) flushHeaderValue(data []byte, mark, end int) {
	if mark < 0 {
		t.cb.onHeaderValue(nil)
		return
	}
	t.cb.onHeaderValue(data[mark:end])
}

func markOr(mark, fallback int) int {
	if mark < 0 {
		return fallback
	}
	return mark
}

// afterHeaders decides the body-framing mode from Content-Length,
// Transfer-Encoding, and the request/response context once the blank line
// ending the header block has been consumed.
func (t *tokenizer) afterHeaders() tokenState {
	skip := t.cb.onHeadersComplete()
	if skip || t.expectHeadOnly {
		return stateMessageDone
	}
	switch {
	case t.chunked:
		return stateChunkSize
	case t.haveLength:
		if t.contentLen == 0 {
			return stateMessageDone
		}
		t.chunkRemain = t.contentLen
		return stateBodyIdentity
	case t.isRequest:
		return stateMessageDone
	case t.connClose:
		return stateBodyUntilClose
	default:
		return stateMessageDone
	}
}

func (t *tokenizer) finish() {
	t.completed = true
	t.cb.onMessageComplete()
}

func parseVersionDigits(text string) (major, minor int) {
	major, minor = 1, 1
	const prefix = "HTTP/"
	if len(text) > len(prefix) && text[:len(prefix)] == prefix {
		text = text[len(prefix):]
	}
	for i := 0; i < len(text); i++ {
		if text[i] == '.' {
			if v, err := strconv.Atoi(text[:i]); err == nil {
				major = v
			}
			if v, err := strconv.Atoi(text[i+1:]); err == nil {
				minor = v
			}
			return
		}
	}
	return
}

func parseHexInt64(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, strconv.ErrSyntax
	}
	var v int64
	for _, c := range b {
		var d int64
		switch {
		case c >= '0' && c <= '9':
			d = int64(c - '0')
		case c >= 'a' && c <= 'f':
			d = int64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			d = int64(c-'A') + 10
		default:
			return 0, strconv.ErrSyntax
		}
		v = v*16 + d
	}
	return v, nil
}
