package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bitterfly/go-chaos/whoami/game"
	"github.com/bitterfly/go-chaos/whoami/server/containers"
	"github.com/bitterfly/go-chaos/whoami/server/message"
	"github.com/bitterfly/go-chaos/whoami/utils"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	inviteSize      = 256
	shutdownTimeout = 5 * time.Second
)

type Config struct {
	TokenSecret string
	TokenTTL    time.Duration
	// BotSecretHash is the bcrypt hash of the secret the chat bot logs
	// participants in with.
	BotSecretHash []byte
	// InviteURL is a format string with one %s for the game code.
	InviteURL string
}

type Server struct {
	Mux      *mux.Router
	Server   *http.Server
	Manager  *game.Manager
	Hub      *Hub
	Token    Token
	Upgrader websocket.Upgrader
	config   Config
	log      *zap.Logger
}

type contextKey string

const payloadKey contextKey = "payload"

func New(manager *game.Manager, hub *Hub, config Config, log *zap.Logger) *Server {
	s := &Server{
		Mux:     mux.NewRouter(),
		Manager: manager,
		Hub:     hub,
		Token:   NewToken(config.TokenSecret, config.TokenTTL),
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients authenticate with the token in the path.
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		config: config,
		log:    log,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	authRouter := s.Mux.PathPrefix("/api").Subrouter()
	authRouter.Use(s.authHandler)
	authRouter.HandleFunc("/game", s.handleGameCreate).Methods("POST")
	authRouter.HandleFunc("/game", s.handleGameList).Methods("GET")
	authRouter.HandleFunc("/game/{code}", s.handleGameShow).Methods("GET")
	authRouter.HandleFunc("/game/{code}/players", s.handleGamePlayers).Methods("GET")
	authRouter.HandleFunc("/game/{code}/join", s.handleGameJoin).Methods("POST")
	authRouter.HandleFunc("/game/{code}/collect", s.handleGameCollect).Methods("POST")
	authRouter.HandleFunc("/game/{code}/words", s.handleWordSubmit).Methods("POST")
	authRouter.HandleFunc("/game/{code}/guess", s.handleGuess).Methods("POST")
	authRouter.HandleFunc("/game/{code}/targets", s.handleTargets).Methods("GET")
	authRouter.HandleFunc("/game/{code}/targets/{id}", s.handleTargetSelect).Methods("POST")
	authRouter.HandleFunc("/game/{code}/end", s.handleGameEnd).Methods("POST")
	authRouter.HandleFunc("/game/{code}/cancel", s.handleGameCancel).Methods("POST")
	authRouter.HandleFunc("/text", s.handleText).Methods("POST")
	authRouter.HandleFunc("/pending", s.handlePendingCancel).Methods("DELETE")

	s.Mux.HandleFunc("/api/login", s.handleUserLogin).Methods("POST")
	s.Mux.HandleFunc("/api/game/{code}/invite.png", s.handleInvite).Methods("GET")
	s.Mux.HandleFunc("/api/ws/{sessionToken}", s.handleWebsocket)
	s.Mux.Use(mux.CORSMethodMiddleware(s.Mux))
}

// Handler wraps the router with CORS and access logging.
func (s *Server) Handler() http.Handler {
	allowedOrigins := handlers.AllowedOrigins([]string{"*"})
	allowedMethods := handlers.AllowedMethods([]string{"POST", "OPTIONS", "GET", "DELETE"})
	allowedHeaders := handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization"})

	return handlers.LoggingHandler(
		zap.NewStdLog(s.log.Named("access")).Writer(),
		handlers.CORS(allowedOrigins, allowedMethods, allowedHeaders)(s.Mux))
}

// Connect serves on address until ctx is done, then shuts down gracefully.
func (s *Server) Connect(ctx context.Context, address string) error {
	s.Server = &http.Server{
		Addr:              address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- s.Server.ListenAndServe()
	}()
	s.log.Info("starting server", zap.String("address", address))

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("error connecting to server %s: %w", address, err)
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.Hub.Close()
	return s.Server.Shutdown(shutdownCtx)
}

func (s *Server) authHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, err := s.Token.CheckTokenRequest(r)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(err.Error()))
			return
		}

		ctx := context.WithValue(r.Context(), payloadKey, payload)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func participant(r *http.Request) *Payload {
	payload, _ := r.Context().Value(payloadKey).(*Payload)
	return payload
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func statusOf(err error) int {
	switch game.KindOf(err) {
	case game.NotFound:
		return http.StatusNotFound
	case game.Forbidden:
		return http.StatusForbidden
	case game.InvalidInput:
		return http.StatusBadRequest
	case game.Conflict:
		return http.StatusConflict
	case game.PreconditionFailed:
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, handler string, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "Something went wrong."
	}
	s.log.Debug("request failed",
		zap.String("handler", handler),
		zap.Int("status", status),
		zap.Error(err))
	w.WriteHeader(status)
	w.Write([]byte(msg))
}

func gameCode(r *http.Request) string {
	return mux.Vars(r)["code"]
}

func (s *Server) handleUserLogin(w http.ResponseWriter, r *http.Request) {
	user, err := containers.ParseLoginUser(r.Body)
	if err != nil || user.ID == 0 || strings.TrimSpace(user.Name) == "" {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("Bad user json."))
		return
	}
	if err := bcrypt.CompareHashAndPassword(s.config.BotSecretHash, []byte(user.Secret)); err != nil {
		s.log.Info("[handleUserLogin] rejected secret", zap.Int64("user", user.ID), zap.Error(err))
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("Wrong secret."))
		return
	}

	token, err := s.Token.CreateToken(user.ID, strings.TrimSpace(user.Name))
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Could not create authentication token."))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessionToken": token,
	})
}

func (s *Server) handleGameCreate(w http.ResponseWriter, r *http.Request) {
	p := participant(r)
	code, err := s.Manager.CreateGame(r.Context(), p.ID, p.Name)
	if err != nil {
		s.writeError(w, "handleGameCreate", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"code": code})
}

func (s *Server) handleGameList(w http.ResponseWriter, r *http.Request) {
	games, err := s.Manager.GamesFor(r.Context(), participant(r).ID)
	if err != nil {
		s.writeError(w, "handleGameList", err)
		return
	}
	writeJSON(w, http.StatusOK, games)
}

func (s *Server) handleGameShow(w http.ResponseWriter, r *http.Request) {
	view, err := s.Manager.View(r.Context(), gameCode(r), participant(r).ID)
	if err != nil {
		s.writeError(w, "handleGameShow", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGamePlayers(w http.ResponseWriter, r *http.Request) {
	players, err := s.Manager.Players(r.Context(), gameCode(r))
	if err != nil {
		s.writeError(w, "handleGamePlayers", err)
		return
	}
	writeJSON(w, http.StatusOK, players)
}

func (s *Server) handleGameJoin(w http.ResponseWriter, r *http.Request) {
	p := participant(r)
	if err := s.Manager.JoinGame(r.Context(), gameCode(r), p.ID, p.Name); err != nil {
		s.writeError(w, "handleGameJoin", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleGameCollect(w http.ResponseWriter, r *http.Request) {
	if err := s.Manager.BeginCollecting(r.Context(), gameCode(r), participant(r).ID); err != nil {
		s.writeError(w, "handleGameCollect", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleWordSubmit(w http.ResponseWriter, r *http.Request) {
	word, err := containers.ParseWord(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("Bad word json."))
		return
	}
	res, err := s.Manager.SubmitWord(r.Context(), gameCode(r), participant(r).ID, word.To, word.Text)
	if err != nil {
		s.writeError(w, "handleWordSubmit", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	text, err := containers.ParseText(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("Bad guess json."))
		return
	}
	res, err := s.Manager.AttemptGuess(r.Context(), gameCode(r), participant(r).ID, text.Text)
	if err != nil {
		s.writeError(w, "handleGuess", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := s.Manager.RequestNewTarget(r.Context(), gameCode(r), participant(r).ID)
	if err != nil {
		s.writeError(w, "handleTargets", err)
		return
	}
	writeJSON(w, http.StatusOK, targets)
}

func (s *Server) handleTargetSelect(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseInt64(mux.Vars(r), "id")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("ID is not int."))
		return
	}
	target, err := s.Manager.SelectTarget(r.Context(), gameCode(r), participant(r).ID, id)
	if err != nil {
		s.writeError(w, "handleTargetSelect", err)
		return
	}
	writeJSON(w, http.StatusOK, target)
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	text, err := containers.ParseText(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("Bad text json."))
		return
	}
	res, err := s.Manager.HandleText(r.Context(), participant(r).ID, text.Text)
	if err != nil {
		s.writeError(w, "handleText", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePendingCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.Manager.CancelPending(r.Context(), participant(r).ID); err != nil {
		s.writeError(w, "handlePendingCancel", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGameEnd(w http.ResponseWriter, r *http.Request) {
	report, err := s.Manager.EndGame(r.Context(), gameCode(r), participant(r).ID)
	if err != nil {
		s.writeError(w, "handleGameEnd", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleGameCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.Manager.CancelGame(r.Context(), gameCode(r), participant(r).ID); err != nil {
		s.writeError(w, "handleGameCancel", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	info, err := s.Manager.Game(r.Context(), gameCode(r))
	if err != nil {
		s.writeError(w, "handleInvite", err)
		return
	}
	png, err := qrcode.Encode(fmt.Sprintf(s.config.InviteURL, info.Code), qrcode.Medium, inviteSize)
	if err != nil {
		s.writeError(w, "handleInvite", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	payload, err := s.Token.CheckTokenVars(mux.Vars(r))
	if err != nil {
		s.log.Info("[handleWebsocket] could not validate token", zap.Error(err))
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	ws, err := s.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("[handleWebsocket] could not upgrade to ws", zap.Error(err))
		return
	}

	c := s.Hub.add(payload.ID, ws)
	defer func() {
		s.Hub.remove(c)
		ws.Close()
	}()
	s.log.Debug("websocket connected", zap.Int64("user", payload.ID), zap.Stringer("conn", c.id))

	s.listen(r.Context(), c)
}

// listen answers the text frames of one connection until it closes.
func (s *Server) listen(ctx context.Context, c *client) {
	for {
		var msg message.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type != message.Text {
			s.log.Debug("can't decode message", zap.String("type", string(msg.Type)))
			continue
		}
		text, _ := msg.Msg.(string)

		res, err := s.Manager.HandleText(ctx, c.userID, text)
		reply := message.Message{Type: message.Text, Game: res.Code, Msg: res}
		if err != nil {
			reply = message.Message{Type: message.Error, Msg: err.Error()}
		}
		if err := c.send(reply); err != nil {
			s.log.Warn("failed to answer text message", zap.Int64("user", c.userID), zap.Error(err))
			return
		}
	}
}
