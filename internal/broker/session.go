package broker

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"

	"go.uber.org/zap"

	"stomp-broker/internal/stomp"
)

// Session drives one connection's lifetime: the handshake, the read loop
// that feeds frames to Dispatch, and the writer pump that drains the
// connection's outbound channel — grounded on the teacher's paired
// readPump/handleConnection split (pkg/websocket/client.go), adapted from
// a websocket upgrade handshake to a STOMP CONNECT handshake.
type Session struct {
	broker *Broker
	logger *zap.Logger
}

func NewSession(b *Broker, logger *zap.Logger) *Session {
	return &Session{broker: b, logger: logger}
}

// Serve owns conn end to end: it registers, handshakes, reads frames until
// EOF/error/DISCONNECT, then unregisters. It blocks until the session ends,
// so callers run it in its own goroutine per accepted connection.
func (s *Session) Serve(ctx context.Context, netConn net.Conn) {
	conn := NewConnection(netConn)
	codec := stomp.NewCodec(bufio.NewReader(netConn), bufio.NewWriter(netConn))

	writerDone := make(chan struct{})
	go s.writePump(conn, writerDone)

	s.broker.Register(conn)
	defer func() {
		s.broker.Disconnect(conn)
		<-writerDone
	}()

	first, err := codec.ReadFrame()
	if err != nil {
		s.logEOF(conn, err)
		return
	}
	if !handleConnect(s.broker, conn, first) {
		return
	}
	s.logger.Info("session connected", zap.Int64("conn", conn.ID), zap.String("remote", conn.RemoteAddr))

	for {
		frame, err := codec.ReadFrame()
		if err != nil {
			s.logEOF(conn, err)
			return
		}
		if isDisconnect(frame) {
			return
		}
		Dispatch(ctx, s.broker, conn, frame)
	}
}

func isDisconnect(f *stomp.Frame) bool {
	return f.Command == stomp.CmdDisconnect || f.Command == "disconnect"
}

func (s *Session) logEOF(conn *Connection, err error) {
	if errors.Is(err, io.EOF) {
		s.logger.Info("session closed", zap.Int64("conn", conn.ID))
		return
	}
	s.logger.Warn("session read error", zap.Int64("conn", conn.ID), zap.Error(err))
}

// writePump serializes every frame destined for this connection through a
// single codec writer (spec.md §5 "per-stream serialization"): concurrent
// publishes that Send to the same connection never interleave partial
// frames because only this goroutine ever calls WriteFrame for conn.
func (s *Session) writePump(conn *Connection, done chan struct{}) {
	defer close(done)
	codec := stomp.NewCodec(nil, bufio.NewWriter(conn.netConn()))
	for {
		select {
		case frame := <-conn.Outbound():
			if err := codec.WriteFrame(frame); err != nil {
				s.logger.Warn("session write error", zap.Int64("conn", conn.ID), zap.Error(err))
				conn.Close()
				return
			}
		case <-conn.Done():
			return
		}
	}
}
