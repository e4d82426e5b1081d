package main

// Wire protocol for the /ws endpoint. Field names follow the client
// app and must not change without a coordinated client release.

// ClientMessage is the single inbound envelope; Type selects which of
// the optional fields are meaningful.
type ClientMessage struct {
	Type       string `json:"type"`                 // "create-room", "join-room", "rejoin-room", "start-game", "submit-answer", "next-round", "theme-selected", "get-room-state"
	RoomCode   string `json:"roomCode,omitempty"`   // all but create-room
	PlayerName string `json:"playerName,omitempty"` // create-room / join-room
	UserID     string `json:"userId,omitempty"`     // durable identity, optional everywhere
	Theme      string `json:"theme,omitempty"`      // create-room / start-game / theme-selected
	Mode       string `json:"mode,omitempty"`       // start-game, "sync" or "guess"
	PlayerID   string `json:"playerId,omitempty"`   // submit-answer
	Answer     string `json:"answer,omitempty"`     // submit-answer
}

type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

type RoomCreatedMessage struct {
	Type     string      `json:"type"` // "room-created"
	RoomCode string      `json:"roomCode"`
	Player   PlayerState `json:"player"`
}

type PlayerJoinedMessage struct {
	Type    string        `json:"type"` // "player-joined"
	Players []PlayerState `json:"players"`
	Player  PlayerState   `json:"player"`
}

type GameStartedMessage struct {
	Type         string   `json:"type"` // "game-started"
	Questions    []string `json:"questions"`
	CurrentRound int      `json:"currentRound"`
	Theme        string   `json:"theme,omitempty"`
	Mode         string   `json:"mode"`
	AnswererID   string   `json:"answererId,omitempty"` // guess mode only
	GuesserID    string   `json:"guesserId,omitempty"`  // guess mode only
}

type PlayerAnsweredMessage struct {
	Type     string `json:"type"` // "player-answered"
	PlayerID string `json:"playerId"`
}

type RoundCompleteMessage struct {
	Type          string `json:"type"` // "round-complete"
	Player1Answer string `json:"player1Answer"`
	Player2Answer string `json:"player2Answer"`
	IsMatch       bool   `json:"isMatch"`
	Similarity    int    `json:"similarity"`
	Explanation   string `json:"explanation"`
	Scores        Scores `json:"scores"`
}

type NextRoundMessage struct {
	Type         string `json:"type"` // "next-round"
	CurrentRound int    `json:"currentRound"`
	Question     string `json:"question"`
}

type GameOverMessage struct {
	Type              string   `json:"type"` // "game-over"
	Scores            Scores   `json:"scores"`
	TotalRounds       int      `json:"totalRounds"`
	VibeAnalysis      string   `json:"vibeAnalysis"`
	MatchExplanations []string `json:"matchExplanations"`
	Theme             string   `json:"theme,omitempty"`
}

type PlayerDisconnectedMessage struct {
	Type            string      `json:"type"` // "player-disconnected"
	Player          PlayerState `json:"player"`
	CanRejoin       bool        `json:"canRejoin"`
	RejoinTimeoutMs int64       `json:"rejoinTimeoutMs"`
}

type PlayerLeftMessage struct {
	Type    string        `json:"type"` // "player-left"
	Players []PlayerState `json:"players"`
}

type RejoinedMessage struct {
	Type string       `json:"type"` // "rejoined"
	Room RoomSnapshot `json:"room"`
}

type PlayerRejoinedMessage struct {
	Type   string      `json:"type"` // "player-rejoined"
	Player PlayerState `json:"player"`
}

type ThemeSelectedMessage struct {
	Type  string `json:"type"` // "theme-selected"
	Theme string `json:"theme"`
}

type RoomStateMessage struct {
	Type        string        `json:"type"` // "room-state"
	Players     []PlayerState `json:"players"`
	Theme       string        `json:"theme,omitempty"`
	GameStarted bool          `json:"gameStarted"`
}

// PlayerState is the client-visible view of a player.
type PlayerState struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IsHost bool   `json:"isHost"`
	UserID string `json:"userId,omitempty"`
}

// Scores holds cumulative match counts, keyed by player slot.
type Scores struct {
	Player1 int `json:"player1"`
	Player2 int `json:"player2"`
}

// RoomSnapshot is the full state sent to a rejoining player.
type RoomSnapshot struct {
	Code         string        `json:"code"`
	Players      []PlayerState `json:"players"`
	CurrentRound int           `json:"currentRound"`
	Question     string        `json:"question"`
	Scores       Scores        `json:"scores"`
	GameStarted  bool          `json:"gameStarted"`
	Theme        string        `json:"theme,omitempty"`
	Mode         string        `json:"mode,omitempty"`
}
