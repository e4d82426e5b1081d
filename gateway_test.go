package main

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGameServer(t *testing.T, cfg *Config, matcher Matcher, source QuestionSource) (*httptest.Server, *Registry) {
	t.Helper()

	reg := newRegistry(cfg, matcher, source, nil)
	t.Cleanup(reg.Stop)

	mux := httprouter.New()
	mux.GET("/ws", serveWS(cfg, reg))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv, reg
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func sendWS(t *testing.T, conn *websocket.Conn, msg ClientMessage) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

// expectWS reads until a message of the wanted type arrives, skipping
// unrelated broadcasts.
func expectWS(t *testing.T, conn *websocket.Conn, msgType string) map[string]any {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))

	for time.Now().Before(deadline) {
		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %q", msgType)
		if msg["type"] == msgType {
			return msg
		}
	}

	t.Fatalf("timed out waiting for %q", msgType)
	return nil
}

func TestEndToEndSyncGame(t *testing.T) {
	cfg := testConfig()
	matcher := newOracleMatcher(cfg)
	source := stubQuestionSource{err: errors.New("database offline")}

	srv, _ := newGameServer(t, cfg, matcher, source)

	host := dialWS(t, srv)
	guest := dialWS(t, srv)

	sendWS(t, host, ClientMessage{Type: "create-room", PlayerName: "Alex"})
	created := expectWS(t, host, "room-created")
	code, _ := created["roomCode"].(string)
	require.Regexp(t, roomCodePattern, code)

	sendWS(t, guest, ClientMessage{Type: "join-room", RoomCode: code, PlayerName: "Sam"})
	joined := expectWS(t, host, "player-joined")
	assert.Len(t, joined["players"], 2)

	// The theme lookup fails, so the built-in pool backs the game.
	sendWS(t, host, ClientMessage{Type: "start-game", RoomCode: code, Theme: "travel"})
	for _, conn := range []*websocket.Conn{host, guest} {
		started := expectWS(t, conn, "game-started")
		assert.Len(t, started["questions"], cfg.rounds)
		assert.Equal(t, "sync", started["mode"])
		assert.EqualValues(t, 0, started["currentRound"])
	}

	for round := 0; round < cfg.rounds; round++ {
		sendWS(t, host, ClientMessage{
			Type: "submit-answer", RoomCode: code, PlayerID: "1",
			Answer: fmt.Sprintf("host answer %d", round),
		})
		answered := expectWS(t, guest, "player-answered")
		assert.Equal(t, "1", answered["playerId"])

		sendWS(t, guest, ClientMessage{
			Type: "submit-answer", RoomCode: code, PlayerID: "2",
			Answer: fmt.Sprintf("guest answer %d", round),
		})

		// The oracle is unreachable, so the deterministic fallback
		// judges every round: different answers never match.
		for _, conn := range []*websocket.Conn{host, guest} {
			complete := expectWS(t, conn, "round-complete")
			assert.Equal(t, false, complete["isMatch"])
			assert.EqualValues(t, 0, complete["similarity"])
		}

		sendWS(t, host, ClientMessage{Type: "next-round", RoomCode: code})
		if round < cfg.rounds-1 {
			for _, conn := range []*websocket.Conn{host, guest} {
				next := expectWS(t, conn, "next-round")
				assert.EqualValues(t, round+1, next["currentRound"])
				assert.NotEmpty(t, next["question"])
			}
		}
	}

	for _, conn := range []*websocket.Conn{host, guest} {
		over := expectWS(t, conn, "game-over")
		assert.EqualValues(t, cfg.rounds, over["totalRounds"])
		assert.Len(t, over["matchExplanations"], cfg.rounds)
		assert.Contains(t, over["vibeAnalysis"], "Opposites attract")

		scores, ok := over["scores"].(map[string]any)
		require.True(t, ok)
		assert.EqualValues(t, 0, scores["player1"])
		assert.EqualValues(t, 0, scores["player2"])
	}
}

func TestJoinErrorsOverWS(t *testing.T) {
	cfg := testConfig()
	srv, _ := newGameServer(t, cfg, stubMatcher{}, nil)

	conn := dialWS(t, srv)

	sendWS(t, conn, ClientMessage{Type: "join-room", RoomCode: "NOPE", PlayerName: "Sam"})
	errMsg := expectWS(t, conn, "error")
	assert.Equal(t, "Room not found", errMsg["message"])

	sendWS(t, conn, ClientMessage{Type: "rejoin-room", RoomCode: "NOPE", UserID: "user-a"})
	errMsg = expectWS(t, conn, "error")
	assert.Equal(t, "Room not found", errMsg["message"])
}

func TestRejoinOverWS(t *testing.T) {
	cfg := testConfig()
	srv, _ := newGameServer(t, cfg, stubMatcher{narrative: "ok"}, nil)

	host := dialWS(t, srv)
	guest := dialWS(t, srv)

	sendWS(t, host, ClientMessage{Type: "create-room", PlayerName: "Alex", UserID: "user-a"})
	created := expectWS(t, host, "room-created")
	code, _ := created["roomCode"].(string)

	sendWS(t, guest, ClientMessage{Type: "join-room", RoomCode: code, PlayerName: "Sam", UserID: "user-b"})
	expectWS(t, host, "player-joined")

	sendWS(t, host, ClientMessage{Type: "start-game", RoomCode: code})
	expectWS(t, guest, "game-started")

	// Dropping the socket mid-game opens the rejoin window.
	require.NoError(t, host.Close())

	notice := expectWS(t, guest, "player-disconnected")
	assert.Equal(t, true, notice["canRejoin"])

	replacement := dialWS(t, srv)
	sendWS(t, replacement, ClientMessage{Type: "rejoin-room", RoomCode: code, UserID: "user-a"})

	rejoined := expectWS(t, replacement, "rejoined")
	room, ok := rejoined["room"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, code, room["code"])
	assert.Equal(t, true, room["gameStarted"])
	assert.Len(t, room["players"], 2)

	partnerView := expectWS(t, guest, "player-rejoined")
	player, ok := partnerView["player"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1", player["id"])
}

func TestRoomStateOverWS(t *testing.T) {
	cfg := testConfig()
	srv, _ := newGameServer(t, cfg, stubMatcher{}, nil)

	host := dialWS(t, srv)

	sendWS(t, host, ClientMessage{Type: "create-room", PlayerName: "Alex", Theme: "food"})
	created := expectWS(t, host, "room-created")
	code, _ := created["roomCode"].(string)

	sendWS(t, host, ClientMessage{Type: "get-room-state", RoomCode: code})
	state := expectWS(t, host, "room-state")
	assert.Len(t, state["players"], 1)
	assert.Equal(t, "food", state["theme"])
	assert.Equal(t, false, state["gameStarted"])
}
