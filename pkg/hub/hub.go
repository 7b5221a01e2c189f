// Package sockets encapsulates all of the websocket communication: the hub
// owning the chat state and the per-connection sessions feeding it.
package sockets

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"axochat.org/axochat/pkg/auth"
	"axochat.org/axochat/pkg/config"
	"axochat.org/axochat/pkg/message"
	"axochat.org/axochat/pkg/moderation"
)

// sessionState is the hub's view of one live connection.
type sessionState struct {
	send chan<- []byte

	// sessionHash is the pending Mojang handshake nonce; empty means no
	// handshake is in progress.
	sessionHash string

	// user is set iff the connection is logged in. A connection logs in at
	// most once.
	user *User
}

func (s *sessionState) isLoggedIn() bool { return s.user != nil }

// userSession groups every connection authenticated under one name.
type userSession struct {
	rateLimiter *message.RateLimiter
	connections map[InternalId]struct{}
}

type connect struct {
	send  chan<- []byte
	reply chan<- InternalId
}

type inbound struct {
	id     InternalId
	packet ServerPacket
}

// mojangResult re-enters the hub loop when a hasJoined call finishes.
type mojangResult struct {
	id      InternalId
	claimed User
	mojang  uuid.UUID
	err     error
}

// Hub owns all mutable chat state. Every read and write happens on the
// goroutine running Run; sessions talk to it exclusively through channels.
type Hub struct {
	cfg        *config.Config
	auth       *auth.Authenticator // nil when [auth] is not configured
	mojang     *auth.MojangClient
	moderation *moderation.Moderation
	rng        *rand.ChaCha8

	nextID      uint64
	connections map[InternalId]*sessionState
	users       map[string]*userSession

	register   chan connect
	unregister chan InternalId
	packets    chan inbound
	mojangDone chan mojangResult

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewHub builds a hub. authn may be nil, which disables the JWT packets.
func NewHub(cfg *config.Config, authn *auth.Authenticator, mojang *auth.MojangClient, mod *moderation.Moderation) (*Hub, error) {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("seeding hub rng: %w", err)
	}
	return &Hub{
		cfg:         cfg,
		auth:        authn,
		mojang:      mojang,
		moderation:  mod,
		rng:         rand.NewChaCha8(seed),
		connections: make(map[InternalId]*sessionState),
		users:       make(map[string]*userSession),
		register:    make(chan connect),
		unregister:  make(chan InternalId),
		packets:     make(chan inbound, 32),
		mojangDone:  make(chan mojangResult, 8),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}, nil
}

// Run processes hub messages until Stop is called. It owns all hub state.
func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			c.reply <- h.addConnection(c.send)
		case id := <-h.unregister:
			h.removeConnection(id)
		case in := <-h.packets:
			h.handlePacket(in.id, in.packet)
		case res := <-h.mojangDone:
			h.finishMojangLogin(res)
		case <-h.stop:
			return
		}
	}
}

// Stop ends the Run loop. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Connect registers an outbound sink and returns the new connection's id,
// or 0 when the hub has stopped. 0 is never a valid id.
func (h *Hub) Connect(send chan<- []byte) InternalId {
	reply := make(chan InternalId, 1)
	select {
	case h.register <- connect{send: send, reply: reply}:
		return <-reply
	case <-h.stop:
		return 0
	}
}

// Disconnect removes the connection and its user table entries.
func (h *Hub) Disconnect(id InternalId) {
	select {
	case h.unregister <- id:
	case <-h.stop:
	}
}

// HandlePacket queues one decoded packet for the hub loop.
func (h *Hub) HandlePacket(id InternalId, packet ServerPacket) {
	select {
	case h.packets <- inbound{id: id, packet: packet}:
	case <-h.stop:
	}
}

func (h *Hub) addConnection(send chan<- []byte) InternalId {
	h.nextID++
	id := InternalId(h.nextID)
	h.connections[id] = &sessionState{send: send}
	log.Debug().Stringer("id", id).Msg("connection-joined")
	return id
}

func (h *Hub) removeConnection(id InternalId) {
	conn, ok := h.connections[id]
	if !ok {
		return
	}
	delete(h.connections, id)
	close(conn.send)

	if conn.user == nil {
		log.Debug().Stringer("id", id).Msg("connection-left")
		return
	}
	if us, ok := h.users[conn.user.Name]; ok {
		delete(us.connections, id)
		if len(us.connections) == 0 {
			delete(h.users, conn.user.Name)
		}
	}
	log.Info().Stringer("id", id).Str("name", conn.user.Name).Msg("connection-left")
}

func (h *Hub) handlePacket(id InternalId, packet ServerPacket) {
	conn, ok := h.connections[id]
	if !ok {
		log.Warn().Stringer("id", id).Msg("packet-from-unknown-connection")
		return
	}

	switch p := packet.(type) {
	case *RequestMojangInfo:
		h.requestMojangInfo(conn)
	case *LoginMojang:
		h.startMojangLogin(id, conn, User(*p))
	case *RequestJWT:
		h.requestJWT(id, conn)
	case *LoginJWT:
		h.loginJWT(id, conn, p)
	case *Message:
		h.handleMessage(id, conn, p.Content)
	case *PrivateMessage:
		h.handlePrivateMessage(id, conn, p)
	case *BanUser:
		h.banUser(id, conn, p.User)
	case *UnbanUser:
		h.unbanUser(id, conn, p.User)
	case *RequestUserCount:
		h.requestUserCount(id, conn)
	default:
		log.Warn().Stringer("id", id).Msg("unhandled-packet-type")
	}
}

// requestMojangInfo draws a fresh session hash and hands it to the client,
// which presents it to Mojang as the serverId of a join.
func (h *Hub) requestMojangInfo(conn *sessionState) {
	var nonce [20]byte
	h.rng.Read(nonce[:])
	// Minecraft server hashes are signed; keep ours non-negative.
	nonce[0] &= 0x7f

	conn.sessionHash = auth.EncodeSHA1Bytes(nonce[:])
	h.sendPacket(conn, &MojangInfo{SessionHash: conn.sessionHash})
}

// startMojangLogin fires the hasJoined call on its own goroutine; the result
// re-enters the hub loop via mojangDone. Other packets may be processed in
// between, so finishMojangLogin re-resolves the connection.
func (h *Hub) startMojangLogin(id InternalId, conn *sessionState, claimed User) {
	if conn.isLoggedIn() {
		log.Info().Stringer("id", id).Msg("tried-to-login-twice")
		h.sendError(conn, ErrAlreadyLoggedIn)
		return
	}
	if conn.sessionHash == "" {
		h.sendError(conn, ErrMojangRequestMissing)
		return
	}
	serverID := conn.sessionHash
	conn.sessionHash = ""

	go func() {
		mojangID, err := h.mojang.HasJoined(context.Background(), claimed.Name, serverID)
		select {
		case h.mojangDone <- mojangResult{id: id, claimed: claimed, mojang: mojangID, err: err}:
		case <-h.stop:
		}
	}()
}

func (h *Hub) finishMojangLogin(res mojangResult) {
	conn, ok := h.connections[res.id]
	if !ok {
		log.Debug().Stringer("id", res.id).Msg("mojang-result-for-closed-connection")
		return
	}
	if conn.isLoggedIn() {
		// Logged in through another path while hasJoined was in flight.
		log.Debug().Stringer("id", res.id).Msg("mojang-result-after-login")
		return
	}
	if res.err != nil {
		log.Warn().Err(res.err).Stringer("id", res.id).Str("name", res.claimed.Name).
			Msg("mojang-login-failed")
		h.sendError(conn, ErrLoginFailed)
		return
	}
	if res.mojang != res.claimed.UUID {
		log.Info().Stringer("id", res.id).Stringer("claimed", res.claimed.UUID).
			Stringer("mojang", res.mojang).Msg("mojang-uuid-mismatch")
		h.sendError(conn, ErrInvalidId)
		return
	}
	h.completeLogin(res.id, conn, res.claimed)
}

func (h *Hub) requestJWT(id InternalId, conn *sessionState) {
	if h.auth == nil {
		h.sendError(conn, ErrNotSupported)
		return
	}
	if !conn.isLoggedIn() {
		h.sendError(conn, ErrNotLoggedIn)
		return
	}
	token, err := h.auth.NewToken(auth.User{Name: conn.user.Name, UUID: conn.user.UUID})
	if err != nil {
		log.Warn().Err(err).Stringer("id", id).Msg("could-not-sign-token")
		h.sendError(conn, ErrInternal)
		return
	}
	h.sendPacket(conn, &NewJWT{Token: token})
}

func (h *Hub) loginJWT(id InternalId, conn *sessionState, p *LoginJWT) {
	if h.auth == nil {
		h.sendError(conn, ErrNotSupported)
		return
	}
	if conn.isLoggedIn() {
		log.Info().Stringer("id", id).Msg("tried-to-login-twice")
		h.sendError(conn, ErrAlreadyLoggedIn)
		return
	}
	u, err := h.auth.Auth(p.Token)
	if err != nil {
		log.Warn().Err(err).Stringer("id", id).Msg("jwt-login-failed")
		h.sendError(conn, ErrLoginFailed)
		return
	}
	h.completeLogin(id, conn, User{
		Name:          u.Name,
		UUID:          u.UUID,
		AllowMessages: p.AllowMessages,
	})
}

// completeLogin runs in one hub step: it binds the connection to the user,
// indexes it under the user's name and confirms to the client.
func (h *Hub) completeLogin(id InternalId, conn *sessionState, user User) {
	conn.user = &user
	conn.sessionHash = ""

	us := h.users[user.Name]
	if us == nil {
		us = &userSession{
			rateLimiter: message.NewRateLimiter(
				h.cfg.Message.MaxMessages,
				h.cfg.Message.CountDuration.Duration(),
			),
			connections: make(map[InternalId]struct{}),
		}
		h.users[user.Name] = us
	}
	us.connections[id] = struct{}{}

	log.Info().Stringer("id", id).Str("name", user.Name).Stringer("uuid", user.UUID).
		Msg("logged-in")
	h.sendPacket(conn, &Success{Reason: ReasonLogin})
}

// checkMessage runs the shared preconditions for outgoing messages: login,
// content rules, ban state and the rate limit.
func (h *Hub) checkMessage(id InternalId, conn *sessionState, content string) bool {
	if !conn.isLoggedIn() {
		log.Info().Stringer("id", id).Msg("not-logged-in")
		h.sendError(conn, ErrNotLoggedIn)
		return false
	}
	if verr := message.Validate(content, h.cfg.Message.MaxLength); verr != nil {
		h.sendError(conn, validationError(verr))
		return false
	}
	if h.moderation.IsBanned(conn.user.UUID) {
		h.sendError(conn, ErrBanned)
		return false
	}
	if !h.users[conn.user.Name].rateLimiter.CheckNewMessage() {
		log.Info().Stringer("id", id).Str("name", conn.user.Name).Msg("rate-limited")
		h.sendError(conn, ErrRateLimited)
		return false
	}
	return true
}

func (h *Hub) handleMessage(id InternalId, conn *sessionState, content string) {
	if !h.checkMessage(id, conn, content) {
		return
	}
	log.Debug().Stringer("id", id).Str("name", conn.user.Name).Msg("broadcasting-message")

	buf, err := EncodeClientPacket(&MessageOut{AuthorInfo: *conn.user, Content: content})
	if err != nil {
		log.Err(err).Msg("encoding-message")
		h.sendError(conn, ErrInternal)
		return
	}
	// Every logged-in connection gets a copy, the sender's own included.
	for cid, c := range h.connections {
		if !c.isLoggedIn() {
			continue
		}
		select {
		case c.send <- buf:
		default:
			log.Debug().Stringer("id", cid).Msg("send-buffer-full")
		}
	}
}

func (h *Hub) handlePrivateMessage(id InternalId, conn *sessionState, p *PrivateMessage) {
	if !h.checkMessage(id, conn, p.Content) {
		return
	}
	receiver, ok := h.users[p.Receiver]
	if !ok {
		log.Debug().Stringer("id", id).Str("receiver", p.Receiver).
			Msg("private-message-to-unknown-user")
		return
	}

	buf, err := EncodeClientPacket(&PrivateMessageOut{AuthorInfo: *conn.user, Content: p.Content})
	if err != nil {
		log.Err(err).Msg("encoding-private-message")
		h.sendError(conn, ErrInternal)
		return
	}
	delivered := false
	for cid := range receiver.connections {
		rc := h.connections[cid]
		if rc == nil || !rc.user.AllowMessages {
			continue
		}
		select {
		case rc.send <- buf:
			delivered = true
		default:
			log.Debug().Stringer("id", cid).Msg("send-buffer-full")
		}
	}
	if !delivered {
		h.sendError(conn, ErrPrivateMessageNotAccepted)
	}
}

// requireModerator gates the moderation packets.
func (h *Hub) requireModerator(id InternalId, conn *sessionState) bool {
	if !conn.isLoggedIn() {
		h.sendError(conn, ErrNotLoggedIn)
		return false
	}
	if !h.moderation.IsModerator(conn.user.UUID) {
		log.Info().Stringer("id", id).Str("name", conn.user.Name).
			Msg("non-moderator-action-refused")
		h.sendError(conn, ErrNotPermitted)
		return false
	}
	return true
}

func (h *Hub) banUser(id InternalId, conn *sessionState, target uuid.UUID) {
	if !h.requireModerator(id, conn) {
		return
	}
	switch err := h.moderation.Ban(target); {
	case errors.Is(err, moderation.ErrModerator):
		h.sendError(conn, ErrNotPermitted)
	case err != nil:
		log.Warn().Err(err).Stringer("target", target).Msg("could-not-persist-ban")
		h.sendError(conn, ErrInternal)
	default:
		log.Info().Str("name", conn.user.Name).Stringer("target", target).Msg("banned-user")
		h.sendPacket(conn, &Success{Reason: ReasonBan})
	}
}

func (h *Hub) unbanUser(id InternalId, conn *sessionState, target uuid.UUID) {
	if !h.requireModerator(id, conn) {
		return
	}
	switch err := h.moderation.Unban(target); {
	case errors.Is(err, moderation.ErrNotBanned):
		h.sendError(conn, ErrNotBanned)
	case err != nil:
		log.Warn().Err(err).Stringer("target", target).Msg("could-not-persist-unban")
		h.sendError(conn, ErrInternal)
	default:
		log.Info().Str("name", conn.user.Name).Stringer("target", target).Msg("unbanned-user")
		h.sendPacket(conn, &Success{Reason: ReasonUnban})
	}
}

func (h *Hub) requestUserCount(id InternalId, conn *sessionState) {
	if !h.requireModerator(id, conn) {
		return
	}
	loggedIn := 0
	for _, us := range h.users {
		loggedIn += len(us.connections)
	}
	h.sendPacket(conn, &UserCount{
		Connections: uint32(len(h.connections)),
		LoggedIn:    uint32(loggedIn),
	})
}

// sendPacket delivers best-effort: a full sink drops the packet rather than
// blocking the hub loop.
func (h *Hub) sendPacket(conn *sessionState, p ClientPacket) {
	buf, err := EncodeClientPacket(p)
	if err != nil {
		log.Err(err).Msg("encoding-client-packet")
		return
	}
	select {
	case conn.send <- buf:
	default:
		log.Debug().Msg("send-buffer-full")
	}
}

func (h *Hub) sendError(conn *sessionState, cerr ClientError) {
	h.sendPacket(conn, &ErrorPacket{Message: cerr})
}

func validationError(verr *message.InvalidContent) ClientError {
	switch verr.Reason {
	case message.Empty:
		return ErrEmptyMessage
	case message.TooLong:
		return ErrMessageTooLong
	default:
		return InvalidCharacter(verr.Char)
	}
}
