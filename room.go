// Two players share a room identified by a 4-character code.
// The host creates the room and a partner joins; once both are present
// the host starts the game, which locks in a themed question set.
// Each round both players answer the same prompt, an external oracle
// judges whether the answers are compatible, and the round result is
// broadcast before either player may advance.
// Identified players who drop mid-game keep their seat for a grace
// period and may rejoin; anonymous players are removed immediately.

package main

import (
	"context"
	"time"
)

const (
	modeSync  = "sync"
	modeGuess = "guess"
)

// Player is one of the two room members. client is nil while the
// player is inside the rejoin window.
type Player struct {
	id     string
	name   string
	isHost bool
	userID string
	client *Client
}

func (p *Player) state() PlayerState {
	return PlayerState{
		ID:     p.id,
		Name:   p.name,
		IsHost: p.isHost,
		UserID: p.userID,
	}
}

// roundAnswers holds the answer slots for one round. A round is
// complete exactly when both slots are filled; slots are write-once.
type roundAnswers struct {
	player1 string
	player2 string
	has1    bool
	has2    bool
}

func (a *roundAnswers) set(playerID, answer string) bool {
	switch playerID {
	case "1":
		if a.has1 {
			return false
		}
		a.player1, a.has1 = answer, true
	case "2":
		if a.has2 {
			return false
		}
		a.player2, a.has2 = answer, true
	default:
		return false
	}
	return true
}

func (a *roundAnswers) filled(playerID string) bool {
	switch playerID {
	case "1":
		return a.has1
	case "2":
		return a.has2
	}
	return false
}

func (a *roundAnswers) complete() bool {
	return a.has1 && a.has2
}

// disconnectRecord holds a vacated seat during the rejoin window.
type disconnectRecord struct {
	player       *Player
	disconnectAt time.Time
	timer        *time.Timer
}

type joinRequest struct {
	client *Client
	name   string
	userID string
	reply  chan error
}

type rejoinRequest struct {
	client *Client
	userID string
	reply  chan error
}

type envelope struct {
	from *Client
	msg  ClientMessage
}

// Room owns all state for one game. A single goroutine (run) consumes
// the channels below, so every mutation is serialized per room without
// locks; rooms never touch each other's state.
type Room struct {
	code string
	cfg  *Config

	registry *Registry
	matcher  Matcher
	source   QuestionSource
	store    GameStore

	players      []*Player
	questions    []string
	currentRound int
	answers      map[int]*roundAnswers
	scores       Scores
	explanations []string
	matches      []bool
	disconnected map[string]*disconnectRecord
	gameStarted  bool
	finished     bool
	theme        string
	mode         string
	scoring      scoringPolicy
	answererID   string
	guesserID    string

	inbox      chan envelope
	joins      chan joinRequest
	rejoins    chan rejoinRequest
	departures chan *Client
	expiries   chan string
	stop       chan struct{}
	done       chan struct{}

	closed bool
}

func newRoom(code string, cfg *Config, reg *Registry, matcher Matcher, source QuestionSource, store GameStore) *Room {
	return &Room{
		code:         code,
		cfg:          cfg,
		registry:     reg,
		matcher:      matcher,
		source:       source,
		store:        store,
		answers:      make(map[int]*roundAnswers),
		disconnected: make(map[string]*disconnectRecord),
		inbox:        make(chan envelope, 64),
		joins:        make(chan joinRequest),
		rejoins:      make(chan rejoinRequest),
		departures:   make(chan *Client, 8),
		expiries:     make(chan string, 8),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

func (r *Room) run() {
	defer close(r.done)

	for {
		select {
		case req := <-r.joins:
			r.handleJoin(req)
		case req := <-r.rejoins:
			r.handleRejoin(req)
		case env := <-r.inbox:
			r.handleMessage(env)
		case c := <-r.departures:
			r.handleDeparture(c)
		case userID := <-r.expiries:
			r.handleExpiry(userID)
		case <-r.stop:
			r.shutdown()
		}

		if r.closed {
			return
		}
	}
}

// shutdown removes the room from the registry and ends the actor.
// Only called from within run.
func (r *Room) shutdown() {
	for _, rec := range r.disconnected {
		rec.timer.Stop()
	}
	r.registry.remove(r.code)
	r.closed = true
}

// --- delivery, called from gateway goroutines ---

func (r *Room) deliver(env envelope) bool {
	select {
	case r.inbox <- env:
		return true
	case <-r.done:
		return false
	}
}

func (r *Room) requestJoin(c *Client, name, userID string) error {
	req := joinRequest{client: c, name: name, userID: userID, reply: make(chan error, 1)}
	select {
	case r.joins <- req:
	case <-r.done:
		return errRoomNotFound
	}
	select {
	case err := <-req.reply:
		return err
	case <-r.done:
		return errRoomNotFound
	}
}

func (r *Room) requestRejoin(c *Client, userID string) error {
	req := rejoinRequest{client: c, userID: userID, reply: make(chan error, 1)}
	select {
	case r.rejoins <- req:
	case <-r.done:
		return errRoomNotFound
	}
	select {
	case err := <-req.reply:
		return err
	case <-r.done:
		return errRoomNotFound
	}
}

// depart reports whether the room accepted the departure; when it
// returns false the room is already gone and the caller owns cleanup.
func (r *Room) depart(c *Client) bool {
	select {
	case r.departures <- c:
		return true
	case <-r.done:
		return false
	}
}

func (r *Room) expire(userID string) {
	select {
	case r.expiries <- userID:
	case <-r.done:
	}
}

// --- actor-side handlers ---

func (r *Room) handleJoin(req joinRequest) {
	// A finished room only lingers for late reads; to a joiner it no
	// longer exists.
	if r.finished {
		req.reply <- errRoomNotFound
		return
	}
	if len(r.players) >= 2 {
		req.reply <- errRoomFull
		return
	}

	player := &Player{
		id:     "2",
		name:   req.name,
		isHost: false,
		userID: req.userID,
		client: req.client,
	}
	r.players = append(r.players, player)
	req.reply <- nil

	logf(r.cfg, "ROOMS: Player %q joined %s", req.name, r.code)

	r.broadcast(PlayerJoinedMessage{
		Type:    "player-joined",
		Players: r.playerStates(),
		Player:  player.state(),
	})
}

func (r *Room) handleRejoin(req rejoinRequest) {
	rec, ok := r.disconnected[req.userID]
	if !ok {
		req.reply <- errNoDisconnectRecord
		return
	}

	if time.Since(rec.disconnectAt) > r.cfg.rejoinTimeout {
		req.reply <- errRejoinExpired
		rec.timer.Stop()
		r.finalizeRemoval(req.userID)
		return
	}

	rec.timer.Stop()
	delete(r.disconnected, req.userID)
	rec.player.client = req.client
	req.reply <- nil

	logf(r.cfg, "ROOMS: Player %q rejoined %s", rec.player.name, r.code)

	r.sendTo(req.client, RejoinedMessage{
		Type: "rejoined",
		Room: r.snapshot(),
	})
	r.broadcastExcept(req.client, PlayerRejoinedMessage{
		Type:   "player-rejoined",
		Player: rec.player.state(),
	})
}

func (r *Room) handleMessage(env envelope) {
	switch env.msg.Type {
	case "start-game":
		r.startGame(env)
	case "theme-selected":
		r.selectTheme(env)
	case "submit-answer":
		r.submitAnswer(env)
	case "next-round":
		r.nextRound(env)
	case "get-room-state":
		r.sendTo(env.from, RoomStateMessage{
			Type:        "room-state",
			Players:     r.playerStates(),
			Theme:       r.theme,
			GameStarted: r.gameStarted,
		})
	}
}

func (r *Room) startGame(env envelope) {
	// Stale client messages can arrive at any time; starting is only
	// meaningful for a full, un-started room.
	if r.gameStarted || r.finished || len(r.players) != 2 || r.playerFor(env.from) == nil {
		return
	}

	if env.msg.Theme != "" {
		r.theme = env.msg.Theme
	}

	r.mode = env.msg.Mode
	if r.mode != modeSync && r.mode != modeGuess {
		r.mode = r.cfg.defaultMode
	}
	if r.mode == modeGuess {
		r.scoring = guessScoring{}
		r.answererID = r.players[0].id
		r.guesserID = r.players[1].id
	} else {
		r.scoring = syncScoring{}
	}

	r.questions = r.resolveQuestions()
	r.gameStarted = true
	r.currentRound = 0

	logf(r.cfg, "ROOMS: Game started in %s (theme %q, mode %s)", r.code, r.theme, r.mode)

	r.broadcast(GameStartedMessage{
		Type:         "game-started",
		Questions:    r.questions,
		CurrentRound: r.currentRound,
		Theme:        r.theme,
		Mode:         r.mode,
		AnswererID:   r.answererID,
		GuesserID:    r.guesserID,
	})
}

// resolveQuestions prefers the themed source but falls back to the
// built-in pool on failure or a short result, never a partial set.
func (r *Room) resolveQuestions() []string {
	if r.source == nil || r.theme == "" {
		return sampleDefaultQuestions(r.cfg.rounds)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	questions, err := r.source.Sample(ctx, r.theme, r.cfg.rounds)
	if err != nil {
		logf(r.cfg, "ROOMS: Question lookup failed for theme %q, using defaults: %v", r.theme, err)
		return sampleDefaultQuestions(r.cfg.rounds)
	}
	if len(questions) < r.cfg.rounds {
		logf(r.cfg, "ROOMS: Theme %q returned %d of %d questions, using defaults", r.theme, len(questions), r.cfg.rounds)
		return sampleDefaultQuestions(r.cfg.rounds)
	}

	return questions[:r.cfg.rounds]
}

func (r *Room) selectTheme(env envelope) {
	if r.gameStarted || r.playerFor(env.from) == nil {
		return
	}

	r.theme = env.msg.Theme

	r.broadcast(ThemeSelectedMessage{
		Type:  "theme-selected",
		Theme: r.theme,
	})
}

func (r *Room) submitAnswer(env envelope) {
	if !r.gameStarted || r.finished || r.currentRound >= len(r.questions) {
		return
	}

	player := r.playerFor(env.from)
	if player == nil || player.id != env.msg.PlayerID {
		return
	}

	round, ok := r.answers[r.currentRound]
	if !ok {
		round = &roundAnswers{}
		r.answers[r.currentRound] = round
	}

	if !r.scoring.maySubmit(r, player.id, round) {
		return
	}
	if !round.set(player.id, env.msg.Answer) {
		return
	}

	logf(r.cfg, "ROOMS: Answer submitted by player %s in %s round %d", player.id, r.code, r.currentRound)

	r.broadcastExcept(env.from, PlayerAnsweredMessage{
		Type:     "player-answered",
		PlayerID: player.id,
	})

	if round.complete() {
		r.completeRound(round)
	}
}

// completeRound judges the pair of answers and publishes the verdict.
// The oracle call blocks this room's actor only; events for the room
// that arrive meanwhile queue in the inbox and apply afterwards.
func (r *Room) completeRound(round *roundAnswers) {
	question := r.questions[r.currentRound]

	result := r.matcher.Evaluate(context.Background(), question,
		round.player1, round.player2, r.players[0].name, r.players[1].name)

	if result.IsMatch {
		r.scoring.applyMatch(r)
	}
	r.explanations = append(r.explanations, result.Explanation)
	r.matches = append(r.matches, result.IsMatch)

	r.broadcast(RoundCompleteMessage{
		Type:          "round-complete",
		Player1Answer: round.player1,
		Player2Answer: round.player2,
		IsMatch:       result.IsMatch,
		Similarity:    result.Similarity,
		Explanation:   result.Explanation,
		Scores:        r.scoring.displayScores(r),
	})
}

func (r *Room) nextRound(env envelope) {
	if !r.gameStarted || r.finished {
		return
	}

	player := r.playerFor(env.from)
	if player == nil || !r.scoring.mayAdvance(r, player.id) {
		return
	}

	// A round only ever advances past a judged pair of answers; this
	// also makes duplicate advance requests harmless.
	round, ok := r.answers[r.currentRound]
	if !ok || !round.complete() {
		return
	}

	r.currentRound++

	if r.currentRound < len(r.questions) {
		r.broadcast(NextRoundMessage{
			Type:         "next-round",
			CurrentRound: r.currentRound,
			Question:     r.questions[r.currentRound],
		})
		return
	}

	r.finishGame()
}

func (r *Room) finishGame() {
	r.finished = true

	scores := r.scoring.displayScores(r)
	vibe := r.matcher.Summarize(context.Background(), scores,
		len(r.questions), r.players[0].name, r.players[1].name)

	logf(r.cfg, "ROOMS: Game over in %s", r.code)

	// The in-memory result is authoritative for the live session;
	// clients hear the outcome before any storage work begins.
	r.broadcast(GameOverMessage{
		Type:              "game-over",
		Scores:            scores,
		TotalRounds:       len(r.questions),
		VibeAnalysis:      vibe,
		MatchExplanations: r.explanations,
		Theme:             r.theme,
	})

	r.persistGame()
}

// persistGame records the finished game for identified pairs. The
// write runs in its own goroutine and failures are only logged.
func (r *Room) persistGame() {
	if r.store == nil || r.players[0].userID == "" || r.players[1].userID == "" {
		return
	}

	game := CompletedGame{
		UserA: r.players[0].userID,
		UserB: r.players[1].userID,
		Theme: r.theme,
	}
	for i := range r.questions {
		round, ok := r.answers[i]
		if !ok || !round.complete() {
			continue
		}
		resultText := ""
		if i < len(r.explanations) {
			resultText = r.explanations[i]
		}
		game.Rounds = append(game.Rounds, RoundRecord{
			Question:   r.questions[i],
			Answer1:    round.player1,
			Answer2:    round.player2,
			IsMatch:    r.matchedRound(i),
			ResultText: resultText,
		})
	}

	cfg, store, code := r.cfg, r.store, r.code
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := store.RecordCompletedGame(ctx, game); err != nil {
			logf(cfg, "STORE: Failed to record game %s: %v", code, err)
			return
		}
		logf(cfg, "STORE: Recorded game %s", code)
	}()
}

func (r *Room) handleDeparture(c *Client) {
	player := r.playerFor(c)
	if player == nil {
		// Connection already replaced by a rejoin, or never seated.
		return
	}

	player.client = nil

	if r.gameStarted && !r.finished && player.userID != "" {
		timer := time.AfterFunc(r.cfg.rejoinTimeout, func() {
			r.expire(player.userID)
		})
		r.disconnected[player.userID] = &disconnectRecord{
			player:       player,
			disconnectAt: time.Now(),
			timer:        timer,
		}

		logf(r.cfg, "ROOMS: Player %q disconnected from %s, rejoin window open", player.name, r.code)

		r.broadcast(PlayerDisconnectedMessage{
			Type:            "player-disconnected",
			Player:          player.state(),
			CanRejoin:       true,
			RejoinTimeoutMs: r.cfg.rejoinTimeout.Milliseconds(),
		})
		return
	}

	r.removePlayer(player)
}

func (r *Room) handleExpiry(userID string) {
	if _, ok := r.disconnected[userID]; !ok {
		return
	}
	r.finalizeRemoval(userID)
}

func (r *Room) finalizeRemoval(userID string) {
	rec, ok := r.disconnected[userID]
	if !ok {
		return
	}
	delete(r.disconnected, userID)

	logf(r.cfg, "ROOMS: Rejoin window closed for %q in %s", rec.player.name, r.code)

	r.removePlayer(rec.player)
}

func (r *Room) removePlayer(player *Player) {
	dst := r.players[:0]
	for _, p := range r.players {
		if p != player {
			dst = append(dst, p)
		}
	}
	r.players = dst

	if len(r.players) == 0 {
		logf(r.cfg, "ROOMS: Room %s deleted", r.code)
		r.shutdown()
		return
	}

	r.broadcast(PlayerLeftMessage{
		Type:    "player-left",
		Players: r.playerStates(),
	})
}

// --- helpers ---

func (r *Room) matchedRound(i int) bool {
	return i < len(r.matches) && r.matches[i]
}

func (r *Room) playerFor(c *Client) *Player {
	for _, p := range r.players {
		if p.client == c {
			return p
		}
	}
	return nil
}

func (r *Room) playerStates() []PlayerState {
	states := make([]PlayerState, 0, len(r.players))
	for _, p := range r.players {
		states = append(states, p.state())
	}
	return states
}

func (r *Room) snapshot() RoomSnapshot {
	question := ""
	if r.currentRound < len(r.questions) {
		question = r.questions[r.currentRound]
	}

	scores := r.scores
	if r.scoring != nil {
		scores = r.scoring.displayScores(r)
	}

	return RoomSnapshot{
		Code:         r.code,
		Players:      r.playerStates(),
		CurrentRound: r.currentRound,
		Question:     question,
		Scores:       scores,
		GameStarted:  r.gameStarted,
		Theme:        r.theme,
		Mode:         r.mode,
	}
}

// sendTo never blocks and never panics: the send channel is never
// closed, dead clients are detected via done, and slow ones are
// dropped.
func (r *Room) sendTo(c *Client, msg any) {
	if c == nil {
		return
	}
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- msg:
	default:
		logf(r.cfg, "ROOMS: Dropped message to slow client in %s", r.code)
	}
}

func (r *Room) broadcast(msg any) {
	for _, p := range r.players {
		r.sendTo(p.client, msg)
	}
}

func (r *Room) broadcastExcept(except *Client, msg any) {
	for _, p := range r.players {
		if p.client == except {
			continue
		}
		r.sendTo(p.client, msg)
	}
}

// --- scoring policies ---

// scoringPolicy isolates how a verdict moves the scores and who may
// act, so the symmetric and answerer/guesser variants share one
// controller.
type scoringPolicy interface {
	applyMatch(r *Room)
	maySubmit(r *Room, playerID string, round *roundAnswers) bool
	mayAdvance(r *Room, playerID string) bool
	displayScores(r *Room) Scores
}

// syncScoring: both players answer the same question and move
// together; a match increments both scores.
type syncScoring struct{}

func (syncScoring) applyMatch(r *Room) {
	r.scores.Player1++
	r.scores.Player2++
}

func (syncScoring) maySubmit(*Room, string, *roundAnswers) bool { return true }

func (syncScoring) mayAdvance(*Room, string) bool { return true }

func (syncScoring) displayScores(r *Room) Scores { return r.scores }

// guessScoring: the answerer responds truthfully and the guesser
// predicts the response. Only the guesser scores, submits second, and
// advances rounds; both players see the guesser's total.
type guessScoring struct{}

func (guessScoring) applyMatch(r *Room) {
	if r.guesserID == "1" {
		r.scores.Player1++
		return
	}
	r.scores.Player2++
}

func (guessScoring) maySubmit(r *Room, playerID string, round *roundAnswers) bool {
	if playerID != r.guesserID {
		return true
	}
	return round.filled(r.answererID)
}

func (guessScoring) mayAdvance(r *Room, playerID string) bool {
	return playerID == r.guesserID
}

func (guessScoring) displayScores(r *Room) Scores {
	total := r.scores.Player2
	if r.guesserID == "1" {
		total = r.scores.Player1
	}
	return Scores{Player1: total, Player2: total}
}
