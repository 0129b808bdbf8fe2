package player

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

type fakeAudio struct {
	mu         sync.Mutex
	calls      []string
	played     []string
	sent       map[string]QueuedTrack
	paused     bool
	players    map[snowflake.ID]bool
	createErr  error
	playErr    error
	stopErr    error
	destroyErr error
	position   time.Duration
}

func newFakeAudio() *fakeAudio {
	return &fakeAudio{players: make(map[snowflake.ID]bool), sent: make(map[string]QueuedTrack)}
}

func (a *fakeAudio) record(call string) {
	a.calls = append(a.calls, call)
}

func (a *fakeAudio) CreatePlayer(_ context.Context, guildID snowflake.ID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("create")
	if a.createErr != nil {
		return a.createErr
	}
	a.players[guildID] = true
	return nil
}

func (a *fakeAudio) Play(_ context.Context, _ snowflake.ID, t QueuedTrack, _ int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("play:" + t.ID)
	if a.playErr != nil {
		return a.playErr
	}
	a.played = append(a.played, t.ID)
	a.sent[t.ID] = t
	return nil
}

// echo returns the track as the audio server would hand it back in a
// callback, metadata included.
func (a *fakeAudio) echo(id string) QueuedTrack {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t, ok := a.sent[id]; ok {
		return t
	}
	return QueuedTrack{Track: Track{ID: id, Title: id}}
}

func (a *fakeAudio) setPlayErr(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.playErr = err
}

func (a *fakeAudio) Stop(context.Context, snowflake.ID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("stop")
	return a.stopErr
}

func (a *fakeAudio) SetPaused(_ context.Context, _ snowflake.ID, paused bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("paused")
	a.paused = paused
	return nil
}

func (a *fakeAudio) Seek(context.Context, snowflake.ID, time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("seek")
	return nil
}

func (a *fakeAudio) Position(snowflake.ID) time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.position
}

func (a *fakeAudio) Destroy(_ context.Context, guildID snowflake.ID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("destroy")
	delete(a.players, guildID)
	return a.destroyErr
}

func (a *fakeAudio) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

func (a *fakeAudio) Played() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.played...)
}

func (a *fakeAudio) count(call string) int {
	n := 0
	for _, c := range a.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

type fakeVoice struct {
	mu          sync.Mutex
	connected   map[snowflake.ID]snowflake.ID
	connects    int
	disconnects int
	connectErr  error
}

func newFakeVoice() *fakeVoice {
	return &fakeVoice{connected: make(map[snowflake.ID]snowflake.ID)}
}

func (v *fakeVoice) Connect(_ context.Context, guildID, channelID snowflake.ID) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.connects++
	if v.connectErr != nil {
		return v.connectErr
	}
	v.connected[guildID] = channelID
	return nil
}

func (v *fakeVoice) Disconnect(_ context.Context, guildID snowflake.ID) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.disconnects++
	delete(v.connected, guildID)
	return nil
}

func (v *fakeVoice) channel(guildID snowflake.ID) (snowflake.ID, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	ch, ok := v.connected[guildID]
	return ch, ok
}

// fakeResolver resolves "playlist:a,b,c" into a playlist and anything else
// into a single track whose ID is the query.
type fakeResolver struct {
	mu      sync.Mutex
	queries []string
	results map[string]Resolution
}

func (r *fakeResolver) Resolve(_ context.Context, query string, _ int) (Resolution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, query)
	if res, ok := r.results[query]; ok {
		if len(res.Tracks) == 0 {
			return Resolution{}, ErrNoResults
		}
		return res, nil
	}
	return Resolution{Tracks: []Track{{ID: query, Encoded: "enc-" + query, Title: query, Length: 3 * time.Minute}}}, nil
}

type postedMessage struct {
	channelID snowflake.ID
	trackID   string
}

type fakeNotifier struct {
	mu         sync.Mutex
	next       snowflake.ID
	live       map[snowflake.ID]postedMessage
	posted     []string
	tracks     []QueuedTrack
	deleted    []snowflake.ID
	errors     []string
	violations int
	postErr    error
	deleteErr  error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{next: 1000, live: make(map[snowflake.ID]postedMessage)}
}

func (n *fakeNotifier) PostNowPlaying(_ context.Context, channelID snowflake.ID, t QueuedTrack) (snowflake.ID, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.postErr != nil {
		return 0, n.postErr
	}
	if len(n.live) > 0 {
		n.violations++
	}
	n.next++
	n.live[n.next] = postedMessage{channelID: channelID, trackID: t.ID}
	n.posted = append(n.posted, t.ID)
	n.tracks = append(n.tracks, t)
	return n.next, nil
}

func (n *fakeNotifier) PostError(_ context.Context, _ snowflake.ID, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, text)
	return nil
}

func (n *fakeNotifier) DeleteMessage(_ context.Context, _, messageID snowflake.ID) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.live[messageID]; !ok {
		n.violations++
	}
	delete(n.live, messageID)
	n.deleted = append(n.deleted, messageID)
	return n.deleteErr
}

func (n *fakeNotifier) liveTracks() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.live))
	for _, m := range n.live {
		out = append(out, m.trackID)
	}
	return out
}

func (n *fakeNotifier) Posted() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.posted...)
}

func (n *fakeNotifier) PostedTracks() []QueuedTrack {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]QueuedTrack(nil), n.tracks...)
}

func (n *fakeNotifier) Errors() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.errors...)
}

func (n *fakeNotifier) Violations() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.violations
}

type fakeVoiceStates struct {
	mu        sync.Mutex
	users     map[snowflake.ID]snowflake.ID
	listeners map[snowflake.ID]int
}

func newFakeVoiceStates() *fakeVoiceStates {
	return &fakeVoiceStates{users: make(map[snowflake.ID]snowflake.ID), listeners: make(map[snowflake.ID]int)}
}

func (v *fakeVoiceStates) put(userID, channelID snowflake.ID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if prev, ok := v.users[userID]; ok {
		v.listeners[prev]--
	}
	if channelID == 0 {
		delete(v.users, userID)
		return
	}
	v.users[userID] = channelID
	v.listeners[channelID]++
}

func (v *fakeVoiceStates) UserVoiceChannel(_, userID snowflake.ID) (snowflake.ID, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	ch, ok := v.users[userID]
	return ch, ok
}

func (v *fakeVoiceStates) ListenerCount(_, channelID snowflake.ID) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.listeners[channelID]
}

type fakeSettings struct {
	set PlaybackSettings
	err error
}

func (s fakeSettings) PlaybackSettings(context.Context, snowflake.ID) (PlaybackSettings, error) {
	return s.set, s.err
}

// fakeArtwork checks that it is never called while the guild's session is
// locked.
type fakeArtwork struct {
	ctrl *Controller
	url  string

	mu       sync.Mutex
	calls    int
	whileLocked int
}

func (a *fakeArtwork) Best(_ context.Context, t Track) string {
	locked := false
	if sess := a.ctrl.store.Get(testGuild); sess != nil {
		if sess.mu.TryLock() {
			sess.mu.Unlock()
		} else {
			locked = true
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if locked {
		a.whileLocked++
	}
	return a.url + t.ID
}

var errBoom = errors.New("boom")

const (
	testGuild   snowflake.ID = 100
	testVoice   snowflake.ID = 200
	testText    snowflake.ID = 300
	testUser    snowflake.ID = 400
	testBot     snowflake.ID = 500
	otherVoice  snowflake.ID = 201
	otherText   snowflake.ID = 301
	anotherUser snowflake.ID = 401
)

type harness struct {
	ctrl     *Controller
	audio    *fakeAudio
	voice    *fakeVoice
	resolver *fakeResolver
	notifier *fakeNotifier
	states   *fakeVoiceStates
	monitor  *OccupancyMonitor
}

func noIdleSettings() PlaybackSettings {
	set := DefaultPlaybackSettings()
	set.IdleTimeout = 0
	return set
}

func newHarness(set PlaybackSettings) *harness {
	h := &harness{
		audio:    newFakeAudio(),
		voice:    newFakeVoice(),
		resolver: &fakeResolver{results: make(map[string]Resolution)},
		notifier: newFakeNotifier(),
		states:   newFakeVoiceStates(),
	}
	h.ctrl = NewController(Deps{
		Audio:       h.audio,
		Voice:       h.voice,
		Resolver:    h.resolver,
		Notifier:    h.notifier,
		VoiceStates: h.states,
		Settings:    fakeSettings{set: set},
		Now:         func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	})
	h.monitor = NewOccupancyMonitor(h.ctrl, testBot)
	h.states.put(testUser, testVoice)
	return h
}

func requester() Requester {
	return Requester{ID: testUser, DisplayName: "alice", AvatarURL: "https://cdn.example/alice.png"}
}

// current returns the track the session believes is playing.
func (h *harness) current(guildID snowflake.ID) *QueuedTrack {
	sess := h.ctrl.store.Get(guildID)
	if sess == nil {
		return nil
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.current == nil {
		return nil
	}
	cur := *sess.current
	return &cur
}

func (h *harness) slot(guildID snowflake.ID) NowPlayingSlot {
	sess := h.ctrl.store.Get(guildID)
	if sess == nil {
		return NowPlayingSlot{}
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.slot
}
