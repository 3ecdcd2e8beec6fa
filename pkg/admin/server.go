// Package admin provides the local control channel of the auto-upload daemon.
package admin

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/addityasingh/glaceon/pkg/service"
	"github.com/sirupsen/logrus"
)

// Controller defines the subsystem operations reachable through the channel.
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	Status() service.Status
}

const (
	// Admin commands
	StartCmd   = "START"
	StopCmd    = "STOP"
	RestartCmd = "RESTART"
	StatusCmd  = "STATUS"

	DefaultPort = 9401

	// Default timeout for a lifecycle command
	DefaultCommandTimeout = 45 * time.Second

	// How long a client has to send its command line
	DefaultReadTimeout = 5 * time.Second
)

// Server accepts one-line commands on loopback.
type Server struct {
	controller Controller
	logger     *logrus.Logger
	port       int

	readTimeout time.Duration

	mu       sync.Mutex
	listener net.Listener
	active   map[net.Conn]struct{}
	conns    sync.WaitGroup
}

// NewServer creates a new admin server instance.
func NewServer(controller Controller, port int, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}

	return &Server{
		controller:  controller,
		port:        port,
		logger:      logger,
		readTimeout: DefaultReadTimeout,
		active:      make(map[net.Conn]struct{}),
	}
}

// Start begins listening for admin connections.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", s.port))
	if err != nil {
		return fmt.Errorf("starting admin server: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Infof("🔧 Admin server listening on %s", listener.Addr())

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				s.logger.WithError(err).Warn("Failed to accept admin connection")
				continue
			}

			if !s.track(conn) {
				conn.Close()
				return
			}
			go func() {
				defer s.untrack(conn)
				s.handleConnection(conn)
			}()
		}
	}()

	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close stops accepting, closes open connections and waits for their
// handlers to return. A command already executing still runs to completion.
func (s *Server) Close() error {
	s.mu.Lock()
	listener := s.listener
	s.listener = nil
	if listener != nil {
		for conn := range s.active {
			conn.Close()
		}
	}
	s.mu.Unlock()

	if listener == nil {
		return nil
	}
	err := listener.Close()
	s.conns.Wait()
	return err
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return false
	}
	s.active[conn] = struct{}{}
	s.conns.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.active, conn)
	s.mu.Unlock()
	s.conns.Done()
}

// handleConnection processes a single admin connection.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		s.logger.WithError(err).Debug("Failed to read from admin connection")
		return
	}

	s.writeResponse(conn, s.Execute(strings.TrimSpace(line)))
}

// Execute runs one command and returns the response line.
func (s *Server) Execute(command string) string {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultCommandTimeout)
	defer cancel()

	var err error
	switch strings.ToUpper(command) {
	case StartCmd:
		err = s.controller.Start(ctx)
	case StopCmd:
		err = s.controller.Stop(ctx)
	case RestartCmd:
		err = s.controller.Restart(ctx)
	case StatusCmd:
		data, jerr := json.Marshal(s.controller.Status())
		if jerr != nil {
			return fmt.Sprintf("ERROR: %v", jerr)
		}
		return string(data)
	default:
		return "ERROR: Unknown command"
	}

	if err != nil {
		s.logger.WithError(err).Errorf("Admin command %s failed", command)
		return fmt.Sprintf("ERROR: %v", err)
	}
	s.logger.Infof("🔧 Admin command %s applied", strings.ToUpper(command))
	return "OK"
}

// writeResponse writes a response to an admin connection.
func (s *Server) writeResponse(conn net.Conn, response string) {
	if _, err := conn.Write([]byte(response + "\n")); err != nil {
		s.logger.WithError(err).Warn("Failed to write admin response")
	}
}

// SendCommand sends a command to the admin server at addr and returns its
// response line. An "ERROR: " response is returned as an error.
func SendCommand(addr, command string) (string, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return "", fmt.Errorf("connecting to admin server: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(command + "\n")); err != nil {
		return "", fmt.Errorf("sending command: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(DefaultCommandTimeout + 5*time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading response: %w", err)
	}

	response := strings.TrimSpace(line)
	if msg, ok := strings.CutPrefix(response, "ERROR: "); ok {
		return "", errors.New(msg)
	}
	return response, nil
}

// ParseStatus decodes a STATUS response.
func ParseStatus(response string) (service.Status, error) {
	var st service.Status
	if err := json.Unmarshal([]byte(response), &st); err != nil {
		return st, fmt.Errorf("parsing status: %w", err)
	}
	return st, nil
}
