package main

import (
	"crypto/rand"
	"strings"
	"sync"
)

const (
	roomCodeLength   = 4
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// The 36^4 code space makes collisions rare; the cap only guards
	// against a pathological registry.
	maxCodeAttempts = 64
)

// Registry is the single source of truth for live rooms, keyed by
// code. Rooms remove themselves when their last player leaves.
type Registry struct {
	cfg     *Config
	matcher Matcher
	source  QuestionSource
	store   GameStore

	mu    sync.Mutex
	rooms map[string]*Room
}

func newRegistry(cfg *Config, matcher Matcher, source QuestionSource, store GameStore) *Registry {
	return &Registry{
		cfg:     cfg,
		matcher: matcher,
		source:  source,
		store:   store,
		rooms:   make(map[string]*Room),
	}
}

// Create allocates a fresh room with the requester seated as host and
// starts its actor.
func (reg *Registry) Create(c *Client, name, userID, theme string) (*Room, PlayerState, error) {
	host := &Player{
		id:     "1",
		name:   name,
		isHost: true,
		userID: userID,
		client: c,
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	code, err := reg.newCodeLocked()
	if err != nil {
		return nil, PlayerState{}, err
	}

	room := newRoom(code, reg.cfg, reg, reg.matcher, reg.source, reg.store)
	room.theme = theme
	room.players = append(room.players, host)
	reg.rooms[code] = room

	go room.run()

	logf(reg.cfg, "ROOMS: Room %s created by %q (theme %q)", code, name, theme)

	return room, host.state(), nil
}

// Get looks up a live room; codes are case-insensitive on the wire.
func (reg *Registry) Get(code string) (*Room, error) {
	reg.mu.Lock()
	room, ok := reg.rooms[strings.ToUpper(code)]
	reg.mu.Unlock()

	if !ok {
		return nil, errRoomNotFound
	}
	return room, nil
}

// remove is idempotent; rooms call it as they shut down.
func (reg *Registry) remove(code string) {
	reg.mu.Lock()
	delete(reg.rooms, code)
	reg.mu.Unlock()
}

// RoomCount reports the number of live rooms, for the health endpoint.
func (reg *Registry) RoomCount() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

// Stop drops every room. Game state is ephemeral by design, so
// teardown is just releasing the actors.
func (reg *Registry) Stop() {
	reg.mu.Lock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		rooms = append(rooms, room)
	}
	reg.rooms = make(map[string]*Room)
	reg.mu.Unlock()

	for _, room := range rooms {
		close(room.stop)
	}
}

func (reg *Registry) newCodeLocked() (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := randomRoomCode()
		if _, exists := reg.rooms[code]; !exists {
			return code, nil
		}
	}
	return "", errCodeSpaceExhausted
}

// randomRoomCode draws uniformly from the code alphabet, rejecting
// bytes that would introduce modulo bias.
func randomRoomCode() string {
	const max = byte(255 - (256 % len(roomCodeAlphabet)))

	out := make([]byte, 0, roomCodeLength)
	buf := make([]byte, roomCodeLength*2)

	for {
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}

		for _, b := range buf {
			if b <= max {
				out = append(out, roomCodeAlphabet[int(b)%len(roomCodeAlphabet)])
				if len(out) == roomCodeLength {
					return string(out)
				}
			}
		}
	}
}
