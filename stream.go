package utcp

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StreamResult is the universal iterator a streaming call returns,
// wrapping every transport's native chunk source in the same envelope.
type StreamResult interface {
	Next() (interface{}, error)
	Close() error
}

// ChunkKind discriminates the three shapes an envelope frame can carry.
type ChunkKind string

const (
	ChunkKindData  ChunkKind = "chunk"
	ChunkKindError ChunkKind = "error"
	ChunkKindEnd   ChunkKind = "end"
)

// Chunk is one frame of a streamed tool call, sequence-numbered from zero
// within its stream so callers can detect drops or reordering.
type Chunk struct {
	StreamID  string                 `json:"stream_id"`
	Sequence  int                    `json:"sequence"`
	Kind      ChunkKind              `json:"kind"`
	Data      interface{}            `json:"data,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// sliceStreamResult replays a pre-collected slice of items as a
// StreamResult, for callers that already hold every chunk in memory.
type sliceStreamResult struct {
	mu      sync.Mutex
	items   []interface{}
	index   int
	closeFn func() error
}

// NewSliceStreamResult wraps a fixed slice of already-collected items as a
// StreamResult.
func NewSliceStreamResult(items []interface{}, closeFn func() error) StreamResult {
	return &sliceStreamResult{items: items, closeFn: closeFn}
}

func (s *sliceStreamResult) Next() (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index >= len(s.items) {
		return nil, io.EOF
	}
	v := s.items[s.index]
	s.index++
	return v, nil
}

func (s *sliceStreamResult) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

// channelStreamResult adapts a Go channel of raw items (plus a side error
// channel) produced by a transport's background reader goroutine.
type channelStreamResult struct {
	items   <-chan interface{}
	errs    <-chan error
	closeFn func() error
	done    bool
}

// NewChannelStreamResult wraps a channel-fed stream, the shape WebSocket/
// SSE/streamable-HTTP transports read their wire frames into.
func NewChannelStreamResult(items <-chan interface{}, errs <-chan error, closeFn func() error) StreamResult {
	return &channelStreamResult{items: items, errs: errs, closeFn: closeFn}
}

func (c *channelStreamResult) Next() (interface{}, error) {
	if c.done {
		return nil, io.EOF
	}
	select {
	case v, ok := <-c.items:
		if !ok {
			c.done = true
			return nil, io.EOF
		}
		return v, nil
	case err, ok := <-c.errs:
		if !ok || err == nil {
			c.done = true
			return nil, io.EOF
		}
		c.done = true
		return nil, err
	}
}

func (c *channelStreamResult) Close() error {
	if c.closeFn == nil {
		return nil
	}
	return c.closeFn()
}

// wrapAsChunks drains a StreamResult into a channel of Chunk envelopes,
// sequence-numbered from zero, terminated by a ChunkKindEnd frame (or a
// ChunkKindError frame on failure). This is the "universal stream-chunk
// wrapping" every transport's CallToolStream funnels through.
func wrapAsChunks(sr StreamResult) <-chan Chunk {
	return wrapAsChunksWithMetadata(sr, nil)
}

// sentinelKind recognizes the wire-visible {"type":"error",...}/
// {"type":"end",...} sentinel objects, so a
// transport that already emits its own end/error markers inline in its
// item stream (rather than via StreamResult's error return / io.EOF)
// still folds into the right envelope variant.
func sentinelKind(v interface{}) (ChunkKind, string, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return "", "", false
	}
	t, _ := m["type"].(string)
	switch t {
	case "error":
		msg, _ := m["error"].(string)
		return ChunkKindError, msg, true
	case "end":
		return ChunkKindEnd, "", true
	default:
		return "", "", false
	}
}

// wrapAsChunksWithMetadata is wrapAsChunks with per-chunk metadata
// (transport/tool/provider/protocol/…) stamped onto every frame.
func wrapAsChunksWithMetadata(sr StreamResult, metadata map[string]interface{}) <-chan Chunk {
	out := make(chan Chunk)
	streamID := uuid.NewString()
	go func() {
		defer close(out)
		defer sr.Close()
		seq := 0
		for {
			v, err := sr.Next()
			if errors.Is(err, io.EOF) {
				out <- Chunk{StreamID: streamID, Sequence: seq, Kind: ChunkKindEnd, Timestamp: time.Now(), Metadata: metadata}
				return
			}
			if err != nil {
				out <- Chunk{StreamID: streamID, Sequence: seq, Kind: ChunkKindError, Error: err.Error(), Timestamp: time.Now(), Metadata: metadata}
				return
			}
			if kind, msg, ok := sentinelKind(v); ok {
				out <- Chunk{StreamID: streamID, Sequence: seq, Kind: kind, Error: msg, Timestamp: time.Now(), Metadata: metadata}
				return
			}
			out <- Chunk{StreamID: streamID, Sequence: seq, Kind: ChunkKindData, Data: v, Timestamp: time.Now(), Metadata: metadata}
			seq++
		}
	}()
	return out
}

// envelopeStreamResult is the StreamResult a streaming caller actually
// receives: each Next() yields one Chunk envelope frame instead of a raw
// transport item.
type envelopeStreamResult struct {
	ch   <-chan Chunk
	done bool
}

// newEnvelopeStreamResult wraps a transport's native StreamResult into
// the universal Chunk/End/Error envelope, stamping metadata onto every
// frame. A stream that is already an envelope stream is returned
// unchanged, without new metadata.
func newEnvelopeStreamResult(raw StreamResult, metadata map[string]interface{}) StreamResult {
	if env, ok := raw.(*envelopeStreamResult); ok {
		return env
	}
	return &envelopeStreamResult{ch: wrapAsChunksWithMetadata(raw, metadata)}
}

func (e *envelopeStreamResult) Next() (interface{}, error) {
	if e.done {
		return nil, io.EOF
	}
	chunk, ok := <-e.ch
	if !ok {
		e.done = true
		return nil, io.EOF
	}
	if chunk.Kind == ChunkKindEnd || chunk.Kind == ChunkKindError {
		e.done = true
	}
	return chunk, nil
}

func (e *envelopeStreamResult) Close() error {
	e.done = true
	return nil
}
