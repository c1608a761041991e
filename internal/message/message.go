// Package message defines the unit of pipeline work and the shared-ownership
// ack token that makes fan-out safe.
package message

import (
	"sync"
	"sync/atomic"

	"github.com/rc1405/fiddler/internal/value"
)

// Kind classifies a Message for the executor and trackers.
type Kind uint8

const (
	KindDefault Kind = iota
	KindControl
	KindEndOfStream
)

// Disposition is the terminal outcome recorded against an ack token share.
type Disposition uint8

const (
	DispositionPending Disposition = iota
	DispositionAck
	DispositionNack
)

// AckPolicy governs how a fanned-out parent resolves once all of its
// children have reached a terminal disposition.
type AckPolicy uint8

const (
	// NackOnAnyFailure acks only if every child acked; any nack or error
	// nacks the parent. This is the default.
	NackOnAnyFailure AckPolicy = iota
	// NackOnAllFailures nacks the parent only if every child failed.
	NackOnAllFailures
)

// AckFunc is supplied by an input and invoked exactly once per token,
// reporting the final disposition and, for nacks, a reason.
type AckFunc func(disposition Disposition, reason error)

// Token is the shared, refcounted handle that makes "one input message may
// spawn many, and the parent acks only once all of them have terminated"
// safe under concurrent access from arbitrary worker goroutines.
//
// Token intentionally has no notion of which pipeline or stream it belongs
// to - that's layered on by the tracker, which observes Enter/Leave via the
// pipeline executor rather than through the token itself.
type Token struct {
	mu         sync.Mutex
	pending    int64
	anyOK      bool
	anyFail    bool
	failReason error
	resolved   bool
	policy     AckPolicy
	ack        AckFunc
}

// NewToken wraps an input's AckFunc in a fresh, single-owner token.
func NewToken(ack AckFunc, policy AckPolicy) *Token {
	return &Token{pending: 1, ack: ack, policy: policy}
}

// Share increments the refcount, to be called once per derived message
// before the original is dropped. The derived messages keep pointing at this
// same token; nothing new is returned.
func (t *Token) Share(n int) {
	if n <= 0 {
		return
	}
	atomic.AddInt64(&t.pending, int64(n))
}

// Drop is called by the executor once for every terminal disposition of a
// message carrying this token (ack, nack, or filter - filter counts as a
// success). When the last share drops, the token fires its underlying
// AckFunc exactly once.
func (t *Token) Drop(ok bool, reason error) {
	t.mu.Lock()
	if ok {
		t.anyOK = true
	} else {
		t.anyFail = true
		if t.failReason == nil {
			t.failReason = reason
		}
	}
	remaining := atomic.AddInt64(&t.pending, -1)
	if remaining > 0 {
		t.mu.Unlock()
		return
	}
	if t.resolved {
		t.mu.Unlock()
		return
	}
	t.resolved = true
	anyFail := t.anyFail
	anyOK := t.anyOK
	failReason := t.failReason
	policy := t.policy
	ackFn := t.ack
	t.mu.Unlock()

	if ackFn == nil {
		return
	}

	switch policy {
	case NackOnAllFailures:
		if anyOK || !anyFail {
			ackFn(DispositionAck, nil)
		} else {
			ackFn(DispositionNack, failReason)
		}
	default: // NackOnAnyFailure
		if anyFail {
			ackFn(DispositionNack, failReason)
		} else {
			ackFn(DispositionAck, nil)
		}
	}
}

// Metadata is the string -> Value mapping attached to every Message.
type Metadata struct {
	d *value.Dict
}

// NewMetadata returns an empty metadata set.
func NewMetadata() *Metadata { return &Metadata{d: value.NewDict()} }

func (m *Metadata) Get(key string) (value.Value, bool) {
	if m == nil || m.d == nil {
		return value.Null(), false
	}
	if !m.d.Has(key) {
		return value.Null(), false
	}
	return m.d.Get(key), true
}

func (m *Metadata) Set(key string, v value.Value) {
	if m.d == nil {
		m.d = value.NewDict()
	}
	m.d = m.d.Set(key, v)
}

func (m *Metadata) SetString(key, v string) { m.Set(key, value.Str(v)) }

func (m *Metadata) Keys() []string {
	if m == nil || m.d == nil {
		return nil
	}
	return m.d.Keys()
}

// Clone returns an independent copy of the keys and values (Dict.Clone).
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return NewMetadata()
	}
	return &Metadata{d: m.d.Clone()}
}

// AsDict exposes the metadata as a Value for script/JMESPath consumption.
func (m *Metadata) AsDict() *value.Dict {
	if m == nil || m.d == nil {
		return value.NewDict()
	}
	return m.d
}

// Message is the unit of pipeline work.
type Message struct {
	Bytes    []byte
	Metadata *Metadata
	Kind     Kind
	StreamID string

	token *Token
}

// New constructs a default-kind message carrying token as is; it does not
// call Share.
func New(b []byte, token *Token) *Message {
	return &Message{Bytes: b, Metadata: NewMetadata(), Kind: KindDefault, token: token}
}

// Token returns the message's ack token.
func (m *Message) Token() *Token { return m.token }

// SetToken rebinds the message to a token; used when the executor builds
// derived messages that share the parent's token.
func (m *Message) SetToken(t *Token) { m.token = t }

// Clone makes an independent copy suitable for fan-out, sharing the same
// ack token (callers must call Token().Share on the parent token first).
func (m *Message) Clone() *Message {
	return &Message{
		Bytes:    append([]byte(nil), m.Bytes...),
		Metadata: m.Metadata.Clone(),
		Kind:     m.Kind,
		StreamID: m.StreamID,
		token:    m.token,
	}
}

// Fingerprint composes a stable hash of the payload plus selected metadata
// keys, used by the stream tracker's optional deduplication.
func Fingerprint(m *Message, metaKeys []string) string {
	return fingerprint(m.Bytes, m.Metadata, metaKeys)
}
