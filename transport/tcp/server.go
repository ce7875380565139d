package tcp

import (
	"bufio"
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/tictactoe/game/protocol"
	"github.com/wricardo/mcp-training/tictactoe/game/service"
)

// DefaultWriteTimeout bounds a single write to a client.
const DefaultWriteTimeout = 5 * time.Second

var logger = logrus.WithField("component", "tcp")

// Server accepts TCP connections and runs one read loop per connection.
type Server struct {
	addr         string
	svc          service.GameService
	writeTimeout time.Duration

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// NewServer creates a server that will listen on addr.
func NewServer(addr string, svc service.GameService) *Server {
	return &Server{
		addr:         addr,
		svc:          svc,
		writeTimeout: DefaultWriteTimeout,
		conns:        make(map[net.Conn]struct{}),
	}
}

// ListenAndServe listens on the configured address and serves until ctx
// is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.Wrapf(err, "listen %s", s.addr)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is cancelled. On shutdown
// the listener and every open connection are closed and Serve waits for
// the read loops to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	logger.WithField("addr", ln.Addr().String()).Info("tcp server listening")

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		ln.Close()
		s.closeAll()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				logger.Info("tcp server stopped")
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				time.Sleep(50 * time.Millisecond)
				continue
			}
			s.wg.Wait()
			return errors.Wrap(err, "accept")
		}

		s.track(conn, true)
		if ctx.Err() != nil {
			// accepted after closeAll ran
			conn.Close()
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(conn, false)
			s.handle(ctx, conn)
		}()
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	peer := newConnPeer(conn, s.writeTimeout)
	defer peer.Close()

	sess, err := s.svc.Open(ctx, peer, remote)
	if err != nil {
		return
	}
	defer s.svc.Close(ctx, sess.ID)

	scanner := bufio.NewScanner(conn)
	// A line longer than MaxLineLength stops the scanner with
	// bufio.ErrTooLong and ends the connection without an invalid-input
	// count.
	scanner.Buffer(make([]byte, 0, 1024), protocol.MaxLineLength+2)
	for scanner.Scan() {
		if !s.svc.Handle(ctx, sess.ID, scanner.Text()) {
			return
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		logger.WithError(err).WithFields(logrus.Fields{"session": sess.ID, "remote": remote}).Debug("read loop ended")
	}
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

// connPeer serializes writes to one connection.
type connPeer struct {
	conn    net.Conn
	timeout time.Duration
	mu      sync.Mutex
	once    sync.Once
}

func newConnPeer(conn net.Conn, timeout time.Duration) *connPeer {
	return &connPeer{conn: conn, timeout: timeout}
}

func (p *connPeer) WriteLine(line string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.conn.SetWriteDeadline(time.Now().Add(p.timeout)); err != nil {
		return errors.Wrap(err, "set write deadline")
	}
	if _, err := io.WriteString(p.conn, line+"\n"); err != nil {
		return errors.Wrap(err, "write")
	}
	return nil
}

func (p *connPeer) Close() error {
	var err error
	p.once.Do(func() { err = p.conn.Close() })
	return err
}
