package domain

import (
	"regexp"
	"strings"
	"time"
)

// Email extraction pattern, see https://emailregex.com/
var emailRx = regexp.MustCompile(`[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+`)

// User is a staff directory entry plus their current game state.
// Construct via NewUser so identifiers are always in canonical form.
type User struct {
	SlackID      string
	SlackChannel string // IM channel shared with the bot; empty until resolved
	Email        string
	FullName     string
	PrefName     string
	Phone        string
	PhotoURL     string
	// Eligible marks whether this user may be picked as a challenge target.
	Eligible bool
	// Challenge is the SlackID of the user currently being guessed; empty
	// means no active challenge. ChallengeAt is set iff Challenge is set;
	// the two are only ever written or cleared together.
	Challenge   string
	ChallengeAt *time.Time
}

// NewUser creates a user with a validated, canonical slack ID.
func NewUser(slackID string) (*User, error) {
	id, err := NormalizeID("slack_id", slackID)
	if err != nil {
		return nil, err
	}
	return &User{SlackID: id}, nil
}

// SetEmail stores the first address-shaped substring of raw, or clears the
// field when none is present. Slack pads profile fields with display text
// around the address in some workspaces.
func (u *User) SetEmail(raw string) {
	u.Email = emailRx.FindString(raw)
}

// SetChallenge records an active challenge as an atomic pair.
func (u *User) SetChallenge(targetID string, at time.Time) error {
	id, err := NormalizeID("challenge", targetID)
	if err != nil {
		return err
	}
	at = at.UTC()
	u.Challenge = id
	u.ChallengeAt = &at
	return nil
}

// ClearChallenge removes the active challenge as an atomic pair.
func (u *User) ClearChallenge() {
	u.Challenge = ""
	u.ChallengeAt = nil
}

// HasChallenge reports whether the user is currently guessing someone.
func (u *User) HasChallenge() bool {
	return u.Challenge != ""
}

// FirstName returns the capitalised first token of the full name, or an
// empty string when no name is known.
func (u *User) FirstName() string {
	fields := strings.Fields(u.FullName)
	if len(fields) == 0 {
		return ""
	}
	first := []rune(strings.ToLower(fields[0]))
	return strings.ToUpper(string(first[0])) + string(first[1:])
}

// AllNames returns every whitespace-delimited token of the full and
// preferred names, lower-cased, as the set of names the user may be
// known by in the guessing game.
func (u *User) AllNames() map[string]struct{} {
	names := make(map[string]struct{})
	for _, tok := range strings.Fields(u.FullName) {
		names[strings.ToLower(tok)] = struct{}{}
	}
	for _, tok := range strings.Fields(u.PrefName) {
		names[strings.ToLower(tok)] = struct{}{}
	}
	return names
}

// MatchesName reports whether guess equals any of the user's known names,
// ignoring case and surrounding whitespace.
func (u *User) MatchesName(guess string) bool {
	guess = strings.ToLower(strings.TrimSpace(guess))
	if guess == "" {
		return false
	}
	_, ok := u.AllNames()[guess]
	return ok
}
