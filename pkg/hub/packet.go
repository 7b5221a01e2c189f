package sockets

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// User is an authenticated identity. The uuid is the durable key used by
// moderation; the name is how other users address them.
type User struct {
	Name          string    `json:"name"`
	UUID          uuid.UUID `json:"uuid"`
	AllowMessages bool      `json:"allow_messages"`
}

// envelope is the wire framing for both directions: a tag and a payload.
type envelope struct {
	M string          `json:"m"`
	C json.RawMessage `json:"c,omitempty"`
}

// ServerPacket is a message sent by a client to the server.
type ServerPacket interface {
	isServerPacket()
}

type RequestMojangInfo struct{}

// LoginMojang carries the identity the client claims; the hub verifies the
// claim against the session server before trusting it.
type LoginMojang User

type RequestJWT struct{}

type LoginJWT struct {
	Token         string `json:"token"`
	AllowMessages bool   `json:"allow_messages"`
}

type Message struct {
	Content string `json:"content"`
}

type PrivateMessage struct {
	Receiver string `json:"receiver"`
	Content  string `json:"content"`
}

type BanUser struct {
	User uuid.UUID `json:"user"`
}

type UnbanUser struct {
	User uuid.UUID `json:"user"`
}

type RequestUserCount struct{}

func (*RequestMojangInfo) isServerPacket() {}
func (*LoginMojang) isServerPacket()       {}
func (*RequestJWT) isServerPacket()        {}
func (*LoginJWT) isServerPacket()          {}
func (*Message) isServerPacket()           {}
func (*PrivateMessage) isServerPacket()    {}
func (*BanUser) isServerPacket()           {}
func (*UnbanUser) isServerPacket()         {}
func (*RequestUserCount) isServerPacket()  {}

// DecodeServerPacket parses one incoming text frame. Unknown tags are an
// error; the session logs and drops such frames.
func DecodeServerPacket(data []byte) (ServerPacket, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}

	var p ServerPacket
	switch env.M {
	case "RequestMojangInfo":
		return &RequestMojangInfo{}, nil
	case "RequestJWT":
		return &RequestJWT{}, nil
	case "RequestUserCount":
		return &RequestUserCount{}, nil
	case "LoginMojang":
		p = &LoginMojang{}
	case "LoginJWT":
		p = &LoginJWT{}
	case "Message":
		p = &Message{}
	case "PrivateMessage":
		p = &PrivateMessage{}
	case "BanUser":
		p = &BanUser{}
	case "UnbanUser":
		p = &UnbanUser{}
	default:
		return nil, fmt.Errorf("unknown packet tag %q", env.M)
	}

	if len(env.C) == 0 {
		return nil, fmt.Errorf("packet %q is missing its content", env.M)
	}
	if err := json.Unmarshal(env.C, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ClientPacket is a message sent by the server to a client.
type ClientPacket interface {
	clientTag() string
}

type MojangInfo struct {
	SessionHash string `json:"session_hash"`
}

type NewJWT struct {
	Token string `json:"token"`
}

type MessageOut struct {
	AuthorInfo User   `json:"author_info"`
	Content    string `json:"content"`
}

type PrivateMessageOut struct {
	AuthorInfo User   `json:"author_info"`
	Content    string `json:"content"`
}

type UserCount struct {
	Connections uint32 `json:"connections"`
	LoggedIn    uint32 `json:"logged_in"`
}

// Success reasons.
const (
	ReasonLogin = "Login"
	ReasonBan   = "Ban"
	ReasonUnban = "Unban"
)

type Success struct {
	Reason string `json:"reason"`
}

type ErrorPacket struct {
	Message ClientError `json:"message"`
}

func (*MojangInfo) clientTag() string        { return "MojangInfo" }
func (*NewJWT) clientTag() string            { return "NewJWT" }
func (*MessageOut) clientTag() string        { return "Message" }
func (*PrivateMessageOut) clientTag() string { return "PrivateMessage" }
func (*UserCount) clientTag() string         { return "UserCount" }
func (*Success) clientTag() string           { return "Success" }
func (*ErrorPacket) clientTag() string       { return "Error" }

// EncodeClientPacket serializes one outgoing text frame.
func EncodeClientPacket(p ClientPacket) ([]byte, error) {
	c, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{M: p.clientTag(), C: c})
}
