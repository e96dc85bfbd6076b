package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"blackbox/internal/orchestrator"
	"blackbox/internal/session"
	"blackbox/internal/vault"
)

// TurnHandler processes one transcript. Implemented by the orchestrator.
type TurnHandler interface {
	HandleTurn(ctx context.Context, transcript string) orchestrator.Response
}

// Server upgrades the UI shell connection and pumps messages. One client at
// a time; the shell reconnects after a restart, it never multiplexes.
type Server struct {
	turns  TurnHandler
	vault  *vault.Service
	sess   *session.Manager
	logger *slog.Logger

	upgrader websocket.Upgrader

	mu   sync.Mutex
	busy bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger attaches a logger. Transcript text and passphrases never appear
// in log output; sensitive replies are logged by turn id only.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New builds the bridge server.
func New(turns TurnHandler, vaultSvc *vault.Service, sess *session.Manager, opts ...Option) (*Server, error) {
	if turns == nil || vaultSvc == nil || sess == nil {
		return nil, errors.New("ws: turn handler, vault, and session are required")
	}
	s := &Server{
		turns: turns,
		vault: vaultSvc,
		sess:  sess,
		// Loopback only; the shell connects from the same machine.
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ServeHTTP upgrades and runs the message loop until the client disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.acquire() {
		http.Error(w, "a shell is already connected", http.StatusConflict)
		return
	}
	defer s.release()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("websocket upgrade failed", "err", err)
		}
		return
	}
	defer conn.Close()

	if s.logger != nil {
		s.logger.Info("shell connected", "remote", conn.RemoteAddr().String())
	}
	s.pump(conn)
	if s.logger != nil {
		s.logger.Info("shell disconnected")
	}
}

func (s *Server) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	return true
}

func (s *Server) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// pump reads messages until the connection drops. Messages are handled in
// order on this goroutine; the orchestrator serializes turns anyway, so
// pipelining would buy nothing.
func (s *Server) pump(conn *websocket.Conn) {
	for {
		var msg Inbound
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && s.logger != nil {
				s.logger.Debug("read ended", "err", err)
			}
			return
		}

		out := s.dispatch(context.Background(), msg)
		if err := conn.WriteJSON(out); err != nil {
			if s.logger != nil {
				s.logger.Warn("write failed", "err", err)
			}
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, msg Inbound) Outbound {
	switch msg.Type {
	case TypeTranscript:
		resp := s.turns.HandleTurn(ctx, msg.Text)
		if s.logger != nil {
			s.logger.Info("turn answered",
				"turn_id", resp.TurnID, "transcript_len", len(msg.Text), "sensitive", resp.Sensitive)
		}
		return Outbound{Type: TypeResponse, TurnID: resp.TurnID, Text: resp.Text, Sensitive: resp.Sensitive}

	case TypeUnlock:
		return s.unlock(ctx, msg.Passphrase)

	case TypeLock:
		s.vault.Lock()
		return s.state()

	case TypeStatus:
		return s.state()

	default:
		return Outbound{Type: TypeError, Error: "unknown message type"}
	}
}

// unlock verifies the passphrase, initializing the vault first when this is
// the very first unlock of a fresh device. The passphrase buffer is wiped
// as soon as the vault is done with it.
func (s *Server) unlock(ctx context.Context, passphrase string) Outbound {
	if passphrase == "" {
		return Outbound{Type: TypeError, Error: "passphrase required"}
	}
	buf := []byte(passphrase)
	defer func() {
		for i := range buf {
			buf[i] = 0
		}
	}()

	err := s.vault.Unlock(ctx, buf)
	if errors.Is(err, vault.ErrHeaderMissing) {
		if err = s.vault.Init(ctx, buf); err == nil {
			err = s.vault.Unlock(ctx, buf)
		}
	}
	switch {
	case err == nil:
		return s.state()
	case errors.Is(err, vault.ErrWrongPassphrase):
		return Outbound{Type: TypeError, Error: "wrong passphrase"}
	default:
		if s.logger != nil {
			s.logger.Error("unlock failed", "err", err)
		}
		return Outbound{Type: TypeError, Error: "unlock failed"}
	}
}

func (s *Server) state() Outbound {
	return Outbound{Type: TypeState, State: s.sess.State().String()}
}
