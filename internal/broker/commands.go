package broker

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"stomp-broker/internal/stomp"
)

// Handler processes one ingress frame for an already-handshaken connection.
// It returns nothing: protocol-level problems are turned into ERROR frames
// in place (spec.md §7), and other failures are logged by the handler.
type Handler func(ctx context.Context, b *Broker, conn *Connection, f *stomp.Frame)

// commandTable maps uppercased STOMP command names to handlers (spec.md
// §4.6). CONNECT is deliberately absent: it is valid only as the first
// frame on a socket and is handled by the session's handshake step, not by
// this table.
var commandTable = map[string]Handler{
	stomp.CmdSubscribe:   handleSubscribe,
	stomp.CmdUnsubscribe: handleUnsubscribe,
	stomp.CmdSend:        handleSend,
	stomp.CmdBegin:       handleNoop,
	stomp.CmdCommit:      handleNoop,
	stomp.CmdAbort:       handleNoop,
}

// Dispatch looks up f.Command (case-insensitive per spec.md §4.6) and runs
// it, wrapping every handler except DISCONNECT with the receipt
// combinator: a RECEIPT frame follows completion whenever the frame
// carried a `receipt` header, even if the handler itself wrote an ERROR
// (spec.md §9, open question 4 — preserved deliberately). DISCONNECT is
// handled directly by the session loop, not through this table.
func Dispatch(ctx context.Context, b *Broker, conn *Connection, f *stomp.Frame) {
	command := strings.ToUpper(f.Command)
	handler, ok := commandTable[command]
	if !ok {
		conn.Send(stomp.NewFrame(stomp.CmdError).WithBody([]byte(
			fmt.Sprintf("Unknown command: %s", f.Command),
		)))
		b.metrics.IncError()
		return
	}
	handler(ctx, b, conn, f)
	if receiptID, ok := f.Contains(stomp.HeaderReceipt); ok {
		conn.Send(stomp.NewFrame(stomp.CmdReceipt, stomp.HeaderReceiptID, receiptID))
		b.metrics.IncReceipt()
	}
}

func handleSubscribe(ctx context.Context, b *Broker, conn *Connection, f *stomp.Frame) {
	header, ok := f.Contains(stomp.HeaderDestination)
	if !ok {
		sendInvalidDestination(b, conn)
		return
	}
	dest, ok := stomp.ParseDestination(header)
	if !ok {
		sendInvalidDestination(b, conn)
		return
	}
	prefetch := DefaultPrefetch
	if v, ok := f.Contains("prefetch"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			prefetch = n
		}
	}

	switch dest.Kind {
	case stomp.DestTopic:
		b.SubscribeTopic(conn, dest.Name, prefetch)
	case stomp.DestQueue:
		if err := b.SubscribeQueue(ctx, conn, dest.Name, prefetch); err != nil {
			b.logger.Error("queue subscribe replay failed",
				zap.Int64("conn", conn.ID), zap.String("queue", dest.Name), zap.Error(err))
		}
	}
}

func handleUnsubscribe(ctx context.Context, b *Broker, conn *Connection, f *stomp.Frame) {
	header, ok := f.Contains(stomp.HeaderDestination)
	if !ok {
		sendInvalidDestination(b, conn)
		return
	}
	dest, ok := stomp.ParseDestination(header)
	if !ok {
		sendInvalidDestination(b, conn)
		return
	}

	switch dest.Kind {
	case stomp.DestTopic:
		b.UnsubscribeTopic(conn, dest.Name)
	case stomp.DestQueue:
		b.UnsubscribeQueue(conn, dest.Name)
	}
}

func handleSend(ctx context.Context, b *Broker, conn *Connection, f *stomp.Frame) {
	header, ok := f.Contains(stomp.HeaderDestination)
	if !ok {
		sendInvalidDestination(b, conn)
		return
	}
	dest, ok := stomp.ParseDestination(header)
	if !ok {
		sendInvalidDestination(b, conn)
		return
	}

	msg := &Message{
		ID:          fmt.Sprintf("conn-%d:%s", conn.ID, NewMsgID()),
		Destination: dest,
		Priority:    0,
		Timestamp:   now(),
		Body:        f.Body,
	}

	switch dest.Kind {
	case stomp.DestTopic:
		b.PublishTopic(dest.Name, msg)
	case stomp.DestQueue:
		if err := b.PublishQueue(ctx, dest.Name, msg); err != nil {
			b.logger.Error("queue publish failed",
				zap.Int64("conn", conn.ID), zap.String("queue", dest.Name), zap.Error(err))
		}
	}
}

func handleNoop(ctx context.Context, b *Broker, conn *Connection, f *stomp.Frame) {}

func sendInvalidDestination(b *Broker, conn *Connection) {
	conn.Send(stomp.NewFrame(stomp.CmdError).WithBody([]byte(stomp.ErrInvalidDestination)))
	b.metrics.IncError()
}

// handleConnect runs the handshake step (spec.md §4.6): valid only as the
// first frame on a socket. Any other first command elicits an ERROR
// frame and the caller aborts the connection.
func handleConnect(b *Broker, conn *Connection, f *stomp.Frame) bool {
	if strings.ToUpper(f.Command) != stomp.CmdConnect {
		conn.Send(stomp.NewFrame(stomp.CmdError).WithBody([]byte("Excepted CONNECT frame.")))
		b.metrics.IncError()
		return false
	}
	conn.Send(stomp.NewFrame(stomp.CmdConnected, stomp.HeaderSession, fmt.Sprintf("%d", conn.ID)))
	return true
}
