// Package directory resolves login credentials to member profiles.
// The roster implementation answers from a configured member list; the
// production deployment is expected to swap in a client for the bar
// association's registry API behind the same interface.
package directory

import (
	"context"
	"errors"
	"strings"

	"github.com/lawdesk/kioskd/internal/session"
	"github.com/rs/zerolog"
)

// ErrNotRegistered is returned when credentials match no member in good
// standing. Callers surface it as a generic rejection without detail.
var ErrNotRegistered = errors.New("directory: not registered")

// Credentials is the tuple presented at login.
type Credentials struct {
	Registration string
	CPF          string
}

// Member is one roster entry.
type Member struct {
	Registration string
	CPF          string
	BirthDate    string
	Name         string
	Role         string
}

// Validator checks credentials and issues profiles.
type Validator interface {
	Lookup(ctx context.Context, creds Credentials) (session.Profile, error)
}

// Roster is a Validator over a static member list.
type Roster struct {
	members map[string]Member // key: registration
	logger  zerolog.Logger
}

// NewRoster creates a roster validator.
func NewRoster(members []Member, logger zerolog.Logger) *Roster {
	byRegistration := make(map[string]Member, len(members))
	for _, m := range members {
		byRegistration[strings.ToUpper(m.Registration)] = m
	}

	return &Roster{
		members: byRegistration,
		logger:  logger.With().Str("component", "directory").Logger(),
	}
}

// Lookup matches credentials against the roster.
func (r *Roster) Lookup(ctx context.Context, creds Credentials) (session.Profile, error) {
	member, ok := r.members[strings.ToUpper(creds.Registration)]
	if !ok || member.CPF != creds.CPF {
		return session.Profile{}, ErrNotRegistered
	}

	return session.Profile{
		Registration: member.Registration,
		Name:         member.Name,
		Role:         member.Role,
	}, nil
}
