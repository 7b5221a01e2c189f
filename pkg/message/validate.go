package message

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

type InvalidReason int

const (
	Empty InvalidReason = iota
	TooLong
	BadCharacter
)

// InvalidContent says why a message may not be sent.
type InvalidContent struct {
	Reason InvalidReason
	Char   rune // set for BadCharacter
}

func (e *InvalidContent) Error() string {
	switch e.Reason {
	case Empty:
		return "empty message"
	case TooLong:
		return "message was too long"
	default:
		return fmt.Sprintf("message contained invalid character: %q", e.Char)
	}
}

// Validate checks content against the chat rules and returns nil when it may
// be sent. Length is counted in code points. Allowed characters are the
// space, graphic ASCII and unicode letters and digits.
func Validate(content string, maxLength int) *InvalidContent {
	if content == "" {
		return &InvalidContent{Reason: Empty}
	}
	if utf8.RuneCountInString(content) > maxLength {
		return &InvalidContent{Reason: TooLong}
	}
	for _, ch := range content {
		if ch == ' ' || (ch > 0x20 && ch < 0x7f) || unicode.IsLetter(ch) || unicode.IsDigit(ch) {
			continue
		}
		return &InvalidContent{Reason: BadCharacter, Char: ch}
	}
	return nil
}
