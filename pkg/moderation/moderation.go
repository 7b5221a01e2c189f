// Package moderation keeps the moderator and ban sets, persisted as
// newline-delimited uuid files.
package moderation

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrModerator is returned when trying to ban a moderator.
	ErrModerator = errors.New("cannot ban a moderator")

	// ErrNotBanned is returned when trying to unban a user who is not banned.
	ErrNotBanned = errors.New("user is not banned")
)

// Moderation is not safe for concurrent use; the hub is its only caller.
type Moderation struct {
	bannedPath string
	moderators map[uuid.UUID]struct{}
	banned     map[uuid.UUID]struct{}
}

// New loads both files. A missing file is treated as empty and created.
func New(moderatorsPath, bannedPath string) (*Moderation, error) {
	moderators, err := readUUIDFile(moderatorsPath)
	if err != nil {
		return nil, err
	}
	banned, err := readUUIDFile(bannedPath)
	if err != nil {
		return nil, err
	}
	return &Moderation{
		bannedPath: bannedPath,
		moderators: moderators,
		banned:     banned,
	}, nil
}

func (m *Moderation) IsModerator(user uuid.UUID) bool {
	_, ok := m.moderators[user]
	return ok
}

func (m *Moderation) IsBanned(user uuid.UUID) bool {
	_, ok := m.banned[user]
	return ok
}

// Ban adds user to the ban set and appends it to the ban file. Moderators
// cannot be banned.
func (m *Moderation) Ban(user uuid.UUID) error {
	if m.IsModerator(user) {
		return ErrModerator
	}
	if _, ok := m.banned[user]; ok {
		return nil
	}
	m.banned[user] = struct{}{}

	f, err := os.OpenFile(m.bannedPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintln(f, user.String())
	return err
}

// Unban removes user from the ban set and rewrites the ban file.
func (m *Moderation) Unban(user uuid.UUID) error {
	if _, ok := m.banned[user]; !ok {
		return ErrNotBanned
	}
	delete(m.banned, user)

	var buf bytes.Buffer
	for u := range m.banned {
		fmt.Fprintln(&buf, u.String())
	}
	return os.WriteFile(m.bannedPath, buf.Bytes(), 0o644)
}

func readUUIDFile(path string) (map[uuid.UUID]struct{}, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			return nil, fmt.Errorf("creating %s: %w", path, err)
		}
		return map[uuid.UUID]struct{}{}, nil
	}
	if err != nil {
		return nil, err
	}

	ids := make(map[uuid.UUID]struct{})
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		id, err := uuid.Parse(line)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		ids[id] = struct{}{}
	}
	return ids, nil
}
