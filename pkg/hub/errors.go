package sockets

import (
	"encoding/json"
	"fmt"
)

// ClientError is the closed set of protocol errors surfaced to clients. On
// the wire most values are plain strings; InvalidCharacter carries the
// offending character as `{"InvalidCharacter": "<ch>"}`.
type ClientError struct {
	code string
	ch   rune
}

var (
	ErrNotSupported              = ClientError{code: "NotSupported"}
	ErrLoginFailed               = ClientError{code: "LoginFailed"}
	ErrNotLoggedIn               = ClientError{code: "NotLoggedIn"}
	ErrAlreadyLoggedIn           = ClientError{code: "AlreadyLoggedIn"}
	ErrMojangRequestMissing      = ClientError{code: "MojangRequestMissing"}
	ErrNotPermitted              = ClientError{code: "NotPermitted"}
	ErrNotBanned                 = ClientError{code: "NotBanned"}
	ErrBanned                    = ClientError{code: "Banned"}
	ErrRateLimited               = ClientError{code: "RateLimited"}
	ErrPrivateMessageNotAccepted = ClientError{code: "PrivateMessageNotAccepted"}
	ErrEmptyMessage              = ClientError{code: "EmptyMessage"}
	ErrMessageTooLong            = ClientError{code: "MessageTooLong"}
	ErrInvalidId                 = ClientError{code: "InvalidId"}
	ErrInternal                  = ClientError{code: "Internal"}
)

const invalidCharacterCode = "InvalidCharacter"

// InvalidCharacter builds the error for a message containing ch.
func InvalidCharacter(ch rune) ClientError {
	return ClientError{code: invalidCharacterCode, ch: ch}
}

func (e ClientError) Error() string {
	switch e.code {
	case "NotSupported":
		return "method not supported"
	case "LoginFailed":
		return "login failed"
	case "NotLoggedIn":
		return "not logged in"
	case "AlreadyLoggedIn":
		return "already logged in"
	case "MojangRequestMissing":
		return "mojang request missing"
	case "NotPermitted":
		return "not permitted"
	case "NotBanned":
		return "not banned"
	case "Banned":
		return "banned"
	case "RateLimited":
		return "rate limited"
	case "PrivateMessageNotAccepted":
		return "private message not accepted"
	case "EmptyMessage":
		return "empty message"
	case "MessageTooLong":
		return "message was too long"
	case invalidCharacterCode:
		return fmt.Sprintf("message contained invalid character: %q", e.ch)
	case "InvalidId":
		return "invalid id"
	default:
		return "internal error"
	}
}

func (e ClientError) MarshalJSON() ([]byte, error) {
	if e.code == invalidCharacterCode {
		return json.Marshal(map[string]string{e.code: string(e.ch)})
	}
	return json.Marshal(e.code)
}

func (e *ClientError) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.code, e.ch = s, 0
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	for code, ch := range m {
		e.code, e.ch = code, 0
		for _, r := range ch {
			e.ch = r
			break
		}
	}
	return nil
}
