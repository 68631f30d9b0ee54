// Package rcontest provides an in-process remote console server for tests.
package rcontest

import (
	"bufio"
	"errors"
	"net"
	"sync"

	"github.com/banshee-data/cloudblocks/internal/rcon"
)

// Server accepts remote console connections on a loopback port, checks the
// password and records every command it receives.
type Server struct {
	Password string
	// Reply produces the response body for a command. Nil replies with an
	// empty body.
	Reply func(cmd string) string
	// DropAfter closes the connection instead of answering the Nth command
	// (1-based). Zero never drops.
	DropAfter int
	// PreambleOnAuth sends an empty response value ahead of the auth
	// response, as some servers do.
	PreambleOnAuth bool

	ln       net.Listener
	mu       sync.Mutex
	commands []string
	logins   int
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
}

// NewServer starts a server that accepts password.
func NewServer(password string) (*Server, error) {
	s := NewUnstartedServer(password)
	if err := s.Start(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewUnstartedServer returns a server whose fields may be adjusted before
// Start is called.
func NewUnstartedServer(password string) *Server {
	return &Server{Password: password}
}

// Start begins listening on a loopback port.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	s.ln = ln
	s.wg.Add(1)
	go s.serve()
	return nil
}

// Addr returns the "host:port" the server listens on.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Commands returns the commands received so far, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Logins returns the number of successful logins.
func (s *Server) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

// Close stops accepting connections, drops open ones and waits for
// handlers to exit.
func (s *Server) Close() error {
	err := s.ln.Close()
	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return err
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		s.mu.Lock()
		if s.conns == nil {
			s.conns = make(map[net.Conn]struct{})
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.conns, conn)
				s.mu.Unlock()
				conn.Close()
			}()
			s.handle(conn)
		}()
	}
}

func (s *Server) handle(conn net.Conn) {
	r := bufio.NewReader(conn)
	authed := false
	for {
		req, err := rcon.Decode(r)
		if err != nil {
			return
		}
		switch req.Type {
		case rcon.TypeAuth:
			if s.PreambleOnAuth {
				if err := rcon.Encode(conn, rcon.Packet{ID: req.ID, Type: rcon.TypeResponseValue}); err != nil {
					return
				}
			}
			id := req.ID
			if req.Body != s.Password {
				id = rcon.AuthFailedID
			} else {
				authed = true
				s.mu.Lock()
				s.logins++
				s.mu.Unlock()
			}
			if err := rcon.Encode(conn, rcon.Packet{ID: id, Type: rcon.TypeAuthResponse}); err != nil {
				return
			}
		case rcon.TypeExecCommand:
			if !authed {
				if err := rcon.Encode(conn, rcon.Packet{ID: rcon.AuthFailedID, Type: rcon.TypeResponseValue}); err != nil {
					return
				}
				continue
			}
			s.mu.Lock()
			s.commands = append(s.commands, req.Body)
			n := len(s.commands)
			s.mu.Unlock()
			if s.DropAfter > 0 && n >= s.DropAfter {
				return
			}
			body := ""
			if s.Reply != nil {
				body = s.Reply(req.Body)
			}
			if err := rcon.Encode(conn, rcon.Packet{ID: req.ID, Type: rcon.TypeResponseValue, Body: body}); err != nil {
				return
			}
		}
	}
}
