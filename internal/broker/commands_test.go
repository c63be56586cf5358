package broker

import (
	"context"
	"testing"

	"stomp-broker/internal/stomp"
)

func drain(t *testing.T, conn *Connection) *stomp.Frame {
	t.Helper()
	select {
	case f := <-conn.Outbound():
		return f
	default:
		t.Fatal("expected a queued outbound frame")
		return nil
	}
}

func drainEmpty(t *testing.T, conn *Connection) {
	t.Helper()
	select {
	case f := <-conn.Outbound():
		t.Fatalf("expected no further frame, got %+v", f)
	default:
	}
}

// TestReceiptEmittedAfterSubscribe exercises scenario 5 of spec.md §8:
// SUBSCRIBE with a receipt header yields a RECEIPT after the subscription
// (and any replay) takes effect.
func TestReceiptEmittedAfterSubscribe(t *testing.T) {
	b, _ := newTestBroker()
	conn := newConnWithID(1)
	b.Register(conn)

	f := stomp.NewFrame(stomp.CmdSubscribe, stomp.HeaderDestination, "/topic/news", stomp.HeaderReceipt, "r1")
	Dispatch(context.Background(), b, conn, f)

	receipt := drain(t, conn)
	if receipt.Command != stomp.CmdReceipt {
		t.Fatalf("expected RECEIPT, got %s", receipt.Command)
	}
	if id, _ := receipt.Contains(stomp.HeaderReceiptID); id != "r1" {
		t.Fatalf("receipt-id: got %q", id)
	}
}

// TestReceiptEmittedAfterError exercises open question 4 (spec.md §9):
// a RECEIPT still follows an ERROR for the same frame.
func TestReceiptEmittedAfterError(t *testing.T) {
	b, _ := newTestBroker()
	conn := newConnWithID(1)
	b.Register(conn)

	f := stomp.NewFrame(stomp.CmdSubscribe, stomp.HeaderDestination, "not-a-destination", stomp.HeaderReceipt, "r2")
	Dispatch(context.Background(), b, conn, f)

	errFrame := drain(t, conn)
	if errFrame.Command != stomp.CmdError {
		t.Fatalf("expected ERROR, got %s", errFrame.Command)
	}
	receipt := drain(t, conn)
	if receipt.Command != stomp.CmdReceipt {
		t.Fatalf("expected RECEIPT after ERROR, got %s", receipt.Command)
	}
}

func TestUnknownCommandProducesError(t *testing.T) {
	b, _ := newTestBroker()
	conn := newConnWithID(1)
	b.Register(conn)

	Dispatch(context.Background(), b, conn, stomp.NewFrame("FROB"))

	f := drain(t, conn)
	if f.Command != stomp.CmdError {
		t.Fatalf("expected ERROR, got %s", f.Command)
	}
}

// TestDoubleUnsubscribeIsNoop exercises the round-trip property of
// spec.md §8: a second UNSUBSCRIBE for the same destination is a no-op.
func TestDoubleUnsubscribeIsNoop(t *testing.T) {
	b, _ := newTestBroker()
	conn := newConnWithID(1)
	b.Register(conn)
	b.SubscribeTopic(conn, "news", DefaultPrefetch)

	unsub := stomp.NewFrame(stomp.CmdUnsubscribe, stomp.HeaderDestination, "/topic/news")
	Dispatch(context.Background(), b, conn, unsub)
	drainEmpty(t, conn)
	Dispatch(context.Background(), b, conn, unsub) // must not panic
	drainEmpty(t, conn)

	if len(b.topics.Members("news")) != 0 {
		t.Fatal("expected no members after unsubscribe")
	}
}

func TestHandleConnectRejectsNonConnectFirstFrame(t *testing.T) {
	b, _ := newTestBroker()
	conn := newConnWithID(1)

	ok := handleConnect(b, conn, stomp.NewFrame(stomp.CmdSend))
	if ok {
		t.Fatal("expected handshake to fail for a non-CONNECT first frame")
	}
	f := drain(t, conn)
	if f.Command != stomp.CmdError {
		t.Fatalf("expected ERROR, got %s", f.Command)
	}
	if string(f.Body) != "Excepted CONNECT frame." {
		t.Fatalf("unexpected error body: %q", f.Body)
	}
}

func TestHandleConnectAccepted(t *testing.T) {
	b, _ := newTestBroker()
	conn := newConnWithID(7)

	ok := handleConnect(b, conn, stomp.NewFrame(stomp.CmdConnect))
	if !ok {
		t.Fatal("expected handshake to succeed for CONNECT")
	}
	f := drain(t, conn)
	if f.Command != stomp.CmdConnected {
		t.Fatalf("expected CONNECTED, got %s", f.Command)
	}
	if session, _ := f.Contains(stomp.HeaderSession); session != "7" {
		t.Fatalf("session: got %q", session)
	}
}
