package germanminer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/google/uuid"
)

// Player is a remote player identity. At least one of Playername and UUID is
// always known; Load resolves the other via the lookup endpoints. UUIDs are
// stored in canonical dashed lowercase form.
type Player struct {
	shared *shared

	Playername string
	UUID       string

	loaded bool
}

func newPlayer(sh *shared, playername, playerUUID string) *Player {
	return &Player{
		shared:     sh,
		Playername: playername,
		UUID:       playerUUID,
	}
}

// Loaded reports whether both identifying keys are resolved.
func (p *Player) Loaded() bool {
	return p.loaded
}

// Load resolves the missing identifying key. A player with neither key fails
// immediately without a network call.
func (p *Player) Load(ctx context.Context) error {
	if p.Playername == "" && p.UUID == "" {
		return ErrMissingIdentifier
	}

	switch {
	case p.UUID == "":
		resolved, err := lookupUUID(ctx, p.shared, p.Playername)
		if err != nil {
			return err
		}
		p.UUID = resolved
	case p.Playername == "":
		resolved, err := lookupPlayername(ctx, p.shared, p.UUID)
		if err != nil {
			return err
		}
		p.Playername = resolved
	}

	p.loaded = true
	return nil
}

func lookupUUID(ctx context.Context, sh *shared, playername string) (string, error) {
	params := url.Values{}
	params.Set("playername", playername)

	data, err := sh.fetch(ctx, endpointUUID, params, false)
	if err != nil {
		return "", err
	}

	var payload struct {
		UUID *string `json:"uuid"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", &ValidationError{Endpoint: endpointUUID, Reason: fmt.Sprintf("malformed payload: %v", err)}
	}
	if payload.UUID == nil {
		return "", &ValidationError{Endpoint: endpointUUID, Reason: `missing field "uuid"`}
	}

	parsed, err := uuid.Parse(*payload.UUID)
	if err != nil {
		return "", &ValidationError{Endpoint: endpointUUID, Reason: fmt.Sprintf("unparseable uuid %q", *payload.UUID)}
	}

	return parsed.String(), nil
}

func lookupPlayername(ctx context.Context, sh *shared, playerUUID string) (string, error) {
	params := url.Values{}
	params.Set("uuid", playerUUID)

	data, err := sh.fetch(ctx, endpointPlayername, params, false)
	if err != nil {
		return "", err
	}

	var payload struct {
		Playername *string `json:"playername"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", &ValidationError{Endpoint: endpointPlayername, Reason: fmt.Sprintf("malformed payload: %v", err)}
	}
	if payload.Playername == nil || *payload.Playername == "" {
		return "", &ValidationError{Endpoint: endpointPlayername, Reason: `missing field "playername"`}
	}

	return *payload.Playername, nil
}

// PlayerService looks up player identities. Both entry points resolve the
// player eagerly, regardless of the client's lazy flag.
type PlayerService struct {
	shared *shared
}

// FromPlayername returns the player with the given name, with the UUID
// resolved.
func (s *PlayerService) FromPlayername(ctx context.Context, playername string) (*Player, error) {
	if playername == "" {
		return nil, ErrMissingIdentifier
	}

	player := newPlayer(s.shared, playername, "")
	if err := player.Load(ctx); err != nil {
		return nil, err
	}
	return player, nil
}

// FromUUID returns the player with the given UUID, with the playername
// resolved. The input UUID is validated and normalized before any request.
func (s *PlayerService) FromUUID(ctx context.Context, rawUUID string) (*Player, error) {
	if rawUUID == "" {
		return nil, ErrMissingIdentifier
	}

	parsed, err := uuid.Parse(rawUUID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUUID, rawUUID)
	}

	player := newPlayer(s.shared, "", parsed.String())
	if err := player.Load(ctx); err != nil {
		return nil, err
	}
	return player, nil
}
