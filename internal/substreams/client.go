package substreams

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/synnergy-labs/chain-indexer/internal/store"
)

// streamMethod is the gRPC method path the upstream substreams endpoint
// serves its block stream on.
const streamMethod = "/sf.substreams.rpc.v2.Stream/Blocks"

// Client subscribes to a substreams module's output as a resumable stream
// of envelopes (§6 "Upstream stream"). Implementations own reconnection;
// callers only see New/Undo/Progress envelopes in stream order.
type Client interface {
	// Stream opens a subscription starting just after cursor (empty cursor
	// means from the beginning). The returned envelope channel is closed
	// when ctx is canceled or the stream can no longer be sustained; a
	// single terminal error, if any, is sent on the error channel before
	// that happens.
	Stream(ctx context.Context, cursor string) (<-chan Envelope, <-chan error)
}

// grpcClient is the production Client: a raw, codec-less gRPC stream over
// an existing connection, decoded with wire.WalkMessage rather than
// generated stubs (§6 treats the upstream stream as out-of-scope wire
// interface only).
type grpcClient struct {
	conn   *grpc.ClientConn
	module string
}

// NewClient wraps an already-dialed connection to the substreams endpoint.
// Dialing (TLS, API token, endpoint address) is the caller's concern; this
// keeps the client itself easy to test against an in-process server.
func NewClient(conn *grpc.ClientConn, module string) Client {
	return &grpcClient{conn: conn, module: module}
}

func (c *grpcClient) Stream(ctx context.Context, cursor string) (<-chan Envelope, <-chan error) {
	out := make(chan Envelope)
	errs := make(chan error, 1)
	go c.run(ctx, cursor, out, errs)
	return out, errs
}

func (c *grpcClient) run(ctx context.Context, cursor string, out chan<- Envelope, errs chan<- error) {
	defer close(out)

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0 // retry forever; MaxInterval only caps the wait, so only ctx cancellation stops us

	for {
		if ctx.Err() != nil {
			return
		}
		next, delivered, err := c.runOnce(ctx, cursor, out)
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		if delivered {
			b.Reset()
		}
		cursor = next

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			errs <- store.SubstreamsErrorf("substreams: exhausted reconnect attempts: %v", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// runOnce opens one stream, pushes envelopes to out until the stream ends
// or errors, and returns the cursor to resume from plus whether at least
// one envelope was delivered (used to decide whether to reset backoff).
func (c *grpcClient) runOnce(ctx context.Context, cursor string, out chan<- Envelope) (resumeCursor string, delivered bool, err error) {
	resumeCursor = cursor

	stream, err := c.conn.NewStream(ctx, &grpc.StreamDesc{StreamName: "Blocks", ServerStreams: true}, streamMethod, grpc.ForceCodec(rawCodec{}))
	if err != nil {
		return resumeCursor, false, store.SubstreamsErrorf("substreams: open stream: %v", err)
	}

	req := encodeRequest(c.module, cursor)
	if err := stream.SendMsg(&req); err != nil {
		return resumeCursor, false, store.SubstreamsErrorf("substreams: send request: %v", err)
	}
	if err := stream.CloseSend(); err != nil {
		return resumeCursor, false, store.SubstreamsErrorf("substreams: close send: %v", err)
	}

	for {
		var raw []byte
		if err := stream.RecvMsg(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return resumeCursor, delivered, nil
			}
			return resumeCursor, delivered, store.SubstreamsErrorf("substreams: recv: %v", err)
		}

		env, err := DecodeEnvelope(raw)
		if err != nil {
			return resumeCursor, delivered, err
		}

		switch env.Kind {
		case KindNew:
			resumeCursor = env.New.Cursor
		case KindUndo:
			resumeCursor = env.Undo.LastValidCursor
		case KindProgress:
			continue
		}

		select {
		case out <- env:
			delivered = true
		case <-ctx.Done():
			return resumeCursor, delivered, nil
		}
	}
}

// Field numbers for the outbound request envelope, mirroring the real
// substreams rpc.v2 Request shape closely enough to exercise the same
// hand-rolled wire encoding the wire package uses for decoding.
const (
	fieldRequestStartCursor = 1
	fieldRequestModule      = 2
)

func encodeRequest(module, cursor string) []byte {
	var buf []byte
	if cursor != "" {
		buf = protowire.AppendTag(buf, fieldRequestStartCursor, protowire.BytesType)
		buf = protowire.AppendBytes(buf, []byte(cursor))
	}
	buf = protowire.AppendTag(buf, fieldRequestModule, protowire.BytesType)
	buf = protowire.AppendBytes(buf, []byte(module))
	return buf
}

// rawCodec passes message bytes straight through, bypassing proto
// marshaling entirely since the client decodes the envelope itself with
// wire.WalkMessage rather than generated types.
type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	b, ok := v.(*[]byte)
	if !ok {
		return nil, store.SubstreamsErrorf("substreams: rawCodec.Marshal: unsupported type %T", v)
	}
	return *b, nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	b, ok := v.(*[]byte)
	if !ok {
		return store.SubstreamsErrorf("substreams: rawCodec.Unmarshal: unsupported type %T", v)
	}
	*b = append((*b)[:0], data...)
	return nil
}

func (rawCodec) Name() string { return "raw" }
