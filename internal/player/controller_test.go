package player

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func join(t *testing.T, h *harness) {
	t.Helper()
	_, err := h.ctrl.Join(context.Background(), JoinRequest{GuildID: testGuild, TextChannel: testText, Requester: requester()})
	require.NoError(t, err)
}

func play(t *testing.T, h *harness, query string) PlayResult {
	t.Helper()
	res, err := h.ctrl.Play(context.Background(), PlayRequest{GuildID: testGuild, Query: query, TextChannel: testText, Requester: requester()})
	require.NoError(t, err)
	return res
}

func started(h *harness, id string) {
	h.ctrl.HandleTrackStart(context.Background(), testGuild, h.audio.echo(id))
}

func ended(h *harness, id string, reason TrackEndReason) {
	h.ctrl.HandleTrackEnd(context.Background(), testGuild, h.audio.echo(id), reason)
}

func TestJoinUsesRequesterChannel(t *testing.T) {
	h := newHarness(noIdleSettings())

	res, err := h.ctrl.Join(context.Background(), JoinRequest{GuildID: testGuild, TextChannel: testText, Requester: requester()})
	require.NoError(t, err)
	assert.Equal(t, testVoice, res.ChannelID)

	sess := h.ctrl.store.Get(testGuild)
	require.NotNil(t, sess)
	assert.Equal(t, testVoice, sess.VoiceChannel())
	assert.Equal(t, 0, sess.queue.Len())
	assert.Equal(t, NowPlayingIdle, sess.slot.State())
	assert.Equal(t, []string{"create"}, h.audio.Calls())
	ch, ok := h.voice.channel(testGuild)
	assert.True(t, ok)
	assert.Equal(t, testVoice, ch)
}

func TestJoinPrefersRequestedChannel(t *testing.T) {
	h := newHarness(noIdleSettings())
	requested := otherVoice

	res, err := h.ctrl.Join(context.Background(), JoinRequest{GuildID: testGuild, ChannelID: &requested, Requester: requester()})
	require.NoError(t, err)
	assert.Equal(t, otherVoice, res.ChannelID)
}

func TestJoinWithoutTargetChannel(t *testing.T) {
	h := newHarness(noIdleSettings())

	_, err := h.ctrl.Join(context.Background(), JoinRequest{GuildID: testGuild, Requester: Requester{ID: anotherUser}})
	assert.ErrorIs(t, err, ErrMissingTargetVoiceChannel)
	assert.Nil(t, h.ctrl.store.Get(testGuild))
	assert.Equal(t, 0, h.voice.connects)
}

func TestJoinTwiceKeepsOneSession(t *testing.T) {
	h := newHarness(noIdleSettings())
	join(t, h)
	first := h.ctrl.store.Get(testGuild)

	join(t, h)
	assert.Same(t, first, h.ctrl.store.Get(testGuild))
	assert.Equal(t, 1, h.voice.connects)
	assert.Equal(t, 1, h.audio.count("create"))

	moved := otherVoice
	_, err := h.ctrl.Join(context.Background(), JoinRequest{GuildID: testGuild, ChannelID: &moved, TextChannel: otherText, Requester: requester()})
	require.NoError(t, err)
	assert.Same(t, first, h.ctrl.store.Get(testGuild))
	assert.Equal(t, otherVoice, first.VoiceChannel())
	assert.Equal(t, 2, h.voice.connects)
	assert.Equal(t, 1, h.audio.count("create"))
	assert.Equal(t, 1, h.ctrl.store.Len())
}

func TestConcurrentJoinsCreateOneSession(t *testing.T) {
	h := newHarness(noIdleSettings())

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.ctrl.Join(context.Background(), JoinRequest{GuildID: testGuild, TextChannel: testText, Requester: requester()})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, h.ctrl.store.Len())
	assert.Equal(t, 1, h.audio.count("create"))
}

func TestJoinConnectFailureLeavesNoSession(t *testing.T) {
	h := newHarness(noIdleSettings())
	h.voice.connectErr = errBoom

	_, err := h.ctrl.Join(context.Background(), JoinRequest{GuildID: testGuild, Requester: requester()})
	assert.ErrorIs(t, err, errBoom)
	assert.Nil(t, h.ctrl.store.Get(testGuild))
	assert.Zero(t, h.audio.count("create"))
	// the join request may still be answered, so the voice side is closed too
	assert.Equal(t, 1, h.voice.disconnects)
}

func TestPlayConnectFailureDisconnects(t *testing.T) {
	h := newHarness(noIdleSettings())
	h.voice.connectErr = errBoom

	_, err := h.ctrl.Play(context.Background(), PlayRequest{GuildID: testGuild, Query: "a", Requester: requester()})
	assert.ErrorIs(t, err, errBoom)
	assert.Nil(t, h.ctrl.store.Get(testGuild))
	assert.Equal(t, 1, h.voice.disconnects)
	assert.Empty(t, h.audio.Played())
}

func TestMoveFailureKeepsSession(t *testing.T) {
	h := newHarness(noIdleSettings())
	join(t, h)
	h.voice.connectErr = errBoom

	moved := otherVoice
	_, err := h.ctrl.Join(context.Background(), JoinRequest{GuildID: testGuild, ChannelID: &moved, Requester: requester()})
	assert.ErrorIs(t, err, errBoom)
	sess := h.ctrl.store.Get(testGuild)
	require.NotNil(t, sess)
	assert.Equal(t, testVoice, sess.VoiceChannel())
	assert.Zero(t, h.voice.disconnects)
}

func TestJoinPlayerFailureDisconnects(t *testing.T) {
	h := newHarness(noIdleSettings())
	h.audio.createErr = errBoom

	_, err := h.ctrl.Join(context.Background(), JoinRequest{GuildID: testGuild, Requester: requester()})
	assert.ErrorIs(t, err, errBoom)
	assert.Nil(t, h.ctrl.store.Get(testGuild))
	assert.Equal(t, 1, h.voice.disconnects)

	_, connected := h.voice.channel(testGuild)
	assert.False(t, connected)
}

func TestLeaveAfterJoin(t *testing.T) {
	h := newHarness(noIdleSettings())
	join(t, h)

	require.NoError(t, h.ctrl.Leave(context.Background(), testGuild))
	assert.Nil(t, h.ctrl.store.Get(testGuild))
	assert.Equal(t, 1, h.voice.disconnects)
	assert.Equal(t, 1, h.audio.count("destroy"))

	assert.ErrorIs(t, h.ctrl.Leave(context.Background(), testGuild), ErrNotConnected)
}

func TestLeaveWithoutSession(t *testing.T) {
	h := newHarness(noIdleSettings())
	assert.ErrorIs(t, h.ctrl.Leave(context.Background(), testGuild), ErrNotConnected)
}

func TestLeaveDisconnectsEvenWhenDestroyFails(t *testing.T) {
	h := newHarness(noIdleSettings())
	join(t, h)
	h.audio.destroyErr = errBoom

	require.NoError(t, h.ctrl.Leave(context.Background(), testGuild))
	assert.Equal(t, 1, h.voice.disconnects)
	assert.Nil(t, h.ctrl.store.Get(testGuild))
}

func TestLeaveWhilePlayingRetiresMessage(t *testing.T) {
	h := newHarness(noIdleSettings())
	play(t, h, "a")
	play(t, h, "b")
	started(h, "a")
	require.Equal(t, []string{"a"}, h.notifier.liveTracks())

	require.NoError(t, h.ctrl.Leave(context.Background(), testGuild))
	assert.Empty(t, h.notifier.liveTracks())
	assert.Equal(t, 1, h.audio.count("stop"))

	// the trailing end event lands after the session is gone
	ended(h, "a", EndStopped)
	assert.Empty(t, h.notifier.liveTracks())
	assert.Equal(t, []string{"a"}, h.audio.Played())
	assert.Zero(t, h.notifier.Violations())
}

func TestScenarioJoinPlaySkip(t *testing.T) {
	h := newHarness(noIdleSettings())
	res, err := h.ctrl.Join(context.Background(), JoinRequest{GuildID: testGuild, TextChannel: testText, Requester: requester()})
	require.NoError(t, err)
	assert.Equal(t, testVoice, res.ChannelID)

	pr := play(t, h, "http://track1")
	assert.True(t, pr.Started)
	require.Len(t, pr.Tracks, 1)
	assert.Equal(t, "alice", pr.Tracks[0].Requester.DisplayName)
	assert.Equal(t, time.UTC, pr.Tracks[0].RequestedAt.Location())
	assert.Equal(t, []string{"http://track1"}, h.audio.Played())

	started(h, "http://track1")
	assert.Equal(t, []string{"http://track1"}, h.notifier.liveTracks())

	skipped, err := h.ctrl.Skip(context.Background(), testGuild)
	require.NoError(t, err)
	assert.Equal(t, "http://track1", skipped.ID)
	assert.Equal(t, 1, h.audio.count("stop"))

	ended(h, "http://track1", EndStopped)
	page, err := h.ctrl.QueueList(testGuild, 1)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Nil(t, page.Current)
	assert.Empty(t, h.notifier.liveTracks())
	assert.Zero(t, h.notifier.Violations())
}

func TestScenarioRemoveFromQueue(t *testing.T) {
	h := newHarness(noIdleSettings())
	play(t, h, "playing")
	play(t, h, "A")
	play(t, h, "B")
	play(t, h, "C")

	removed, err := h.ctrl.QueueRemove(testGuild, 2)
	require.NoError(t, err)
	assert.Equal(t, "B", removed.ID)

	list, err := h.ctrl.QueueSnapshot(testGuild)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, titles(list))

	_, err = h.ctrl.QueueRemove(testGuild, 5)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = h.ctrl.QueueRemove(testGuild, 0)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	list, err = h.ctrl.QueueSnapshot(testGuild)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, titles(list))
}

func TestScenarioBackToBackPlays(t *testing.T) {
	h := newHarness(noIdleSettings())

	var wg sync.WaitGroup
	results := make([]PlayResult, 2)
	for i, q := range []string{"first", "second"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.ctrl.Play(context.Background(), PlayRequest{GuildID: testGuild, Query: q, TextChannel: testText, Requester: requester()})
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()

	played := h.audio.Played()
	require.Len(t, played, 1)
	assert.True(t, results[0].Started != results[1].Started)
	assert.Equal(t, 1, h.ctrl.store.Len())
	assert.Equal(t, 1, h.audio.count("create"))

	started(h, played[0])
	assert.Len(t, h.notifier.Posted(), 1)

	list, err := h.ctrl.QueueSnapshot(testGuild)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotEqual(t, played[0], list[0].ID)
}

func TestPlayWithoutVoiceChannel(t *testing.T) {
	h := newHarness(noIdleSettings())

	_, err := h.ctrl.Play(context.Background(), PlayRequest{GuildID: testGuild, Query: "x", Requester: Requester{ID: anotherUser}})
	assert.ErrorIs(t, err, ErrMissingTargetVoiceChannel)
	assert.Nil(t, h.ctrl.store.Get(testGuild))
	assert.Empty(t, h.resolver.queries)
}

func TestPlayNoResults(t *testing.T) {
	h := newHarness(noIdleSettings())
	h.resolver.results["nothing"] = Resolution{}

	_, err := h.ctrl.Play(context.Background(), PlayRequest{GuildID: testGuild, Query: "nothing", Requester: requester()})
	assert.ErrorIs(t, err, ErrNoResults)
	assert.Nil(t, h.ctrl.store.Get(testGuild))
}

func TestPlayPlaylist(t *testing.T) {
	h := newHarness(noIdleSettings())
	h.resolver.results["list"] = Resolution{
		PlaylistName: "mix",
		Tracks:       []Track{{ID: "p1", Title: "p1"}, {ID: "p2", Title: "p2"}, {ID: "p3", Title: "p3"}},
	}

	res := play(t, h, "list")
	assert.Equal(t, "mix", res.PlaylistName)
	assert.Len(t, res.Tracks, 3)
	assert.Equal(t, []string{"p1"}, h.audio.Played())

	list, err := h.ctrl.QueueSnapshot(testGuild)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p3"}, titles(list))
}

func TestPlayReassignsTextChannel(t *testing.T) {
	h := newHarness(noIdleSettings())
	join(t, h)

	_, err := h.ctrl.Play(context.Background(), PlayRequest{GuildID: testGuild, Query: "a", TextChannel: otherText, Requester: requester()})
	require.NoError(t, err)
	started(h, "a")

	slot := h.slot(testGuild)
	assert.Equal(t, otherText, slot.ChannelID)
}

func TestTrackEndAdvancesQueue(t *testing.T) {
	h := newHarness(noIdleSettings())
	play(t, h, "a")
	play(t, h, "b")
	started(h, "a")

	ended(h, "a", EndFinished)
	assert.Equal(t, []string{"a", "b"}, h.audio.Played())
	assert.Empty(t, h.notifier.liveTracks())

	started(h, "b")
	assert.Equal(t, []string{"b"}, h.notifier.liveTracks())
	assert.Zero(t, h.notifier.Violations())
}

func TestPlayFailureKeepsTrackQueued(t *testing.T) {
	h := newHarness(noIdleSettings())
	join(t, h)
	h.audio.setPlayErr(errBoom)

	_, err := h.ctrl.Play(context.Background(), PlayRequest{GuildID: testGuild, Query: "a", TextChannel: testText, Requester: requester()})
	assert.ErrorIs(t, err, errBoom)
	assert.Nil(t, h.current(testGuild))
	list, err := h.ctrl.QueueSnapshot(testGuild)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, titles(list))

	h.audio.setPlayErr(nil)
	play(t, h, "b")
	assert.Equal(t, []string{"a"}, h.audio.Played())
	list, err = h.ctrl.QueueSnapshot(testGuild)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, titles(list))
}

func TestPlayFailureSchedulesIdleLeave(t *testing.T) {
	set := DefaultPlaybackSettings()
	set.IdleTimeout = 20 * time.Millisecond
	h := newHarness(set)
	h.audio.setPlayErr(errBoom)

	_, err := h.ctrl.Play(context.Background(), PlayRequest{GuildID: testGuild, Query: "a", Requester: requester()})
	assert.ErrorIs(t, err, errBoom)
	assert.Eventually(t, func() bool { return h.ctrl.store.Get(testGuild) == nil }, time.Second, 5*time.Millisecond)
}

func TestAdvanceFailureKeepsNextTrack(t *testing.T) {
	h := newHarness(noIdleSettings())
	play(t, h, "a")
	play(t, h, "b")
	h.audio.setPlayErr(errBoom)

	ended(h, "a", EndFinished)
	assert.Nil(t, h.current(testGuild))
	list, err := h.ctrl.QueueSnapshot(testGuild)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, titles(list))
	assert.Equal(t, []string{"Couldn't start the next track."}, h.notifier.Errors())
}

func TestStopFailureKeepsPlayback(t *testing.T) {
	h := newHarness(noIdleSettings())
	play(t, h, "a")
	play(t, h, "b")
	h.audio.stopErr = errBoom

	assert.ErrorIs(t, h.ctrl.Stop(context.Background(), testGuild), errBoom)
	require.NotNil(t, h.current(testGuild))
	assert.Equal(t, "a", h.current(testGuild).ID)
	list, err := h.ctrl.QueueSnapshot(testGuild)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, titles(list))
}

func TestTrackStartUsesCarriedRequester(t *testing.T) {
	h := newHarness(noIdleSettings())
	play(t, h, "a")
	_, err := h.ctrl.Play(context.Background(), PlayRequest{
		GuildID: testGuild, Query: "b", TextChannel: testText,
		Requester: Requester{ID: anotherUser, DisplayName: "bob"},
	})
	require.NoError(t, err)

	// a start for a track the session doesn't consider current still shows
	// who asked for it
	h.ctrl.HandleTrackStart(context.Background(), testGuild, QueuedTrack{
		Track:     Track{ID: "b", Title: "b"},
		Requester: Requester{ID: anotherUser, DisplayName: "bob"},
	})
	posted := h.notifier.PostedTracks()
	require.Len(t, posted, 1)
	assert.Equal(t, "bob", posted[0].Requester.DisplayName)
	assert.False(t, posted[0].RequestedAt.IsZero())

	started(h, "a")
	posted = h.notifier.PostedTracks()
	require.Len(t, posted, 2)
	assert.Equal(t, "alice", posted[1].Requester.DisplayName)
}

func TestTrackStartResolvesArtworkUnlocked(t *testing.T) {
	h := newHarness(noIdleSettings())
	art := &fakeArtwork{ctrl: h.ctrl, url: "https://img/"}
	h.ctrl.artwork = art
	play(t, h, "a")

	started(h, "a")
	posted := h.notifier.PostedTracks()
	require.Len(t, posted, 1)
	assert.Equal(t, "https://img/a", posted[0].ArtworkURL)
	assert.Equal(t, 1, art.calls)
	assert.Zero(t, art.whileLocked)
}

func TestStopClearsQueue(t *testing.T) {
	h := newHarness(noIdleSettings())
	play(t, h, "a")
	play(t, h, "b")
	started(h, "a")

	require.NoError(t, h.ctrl.Stop(context.Background(), testGuild))
	assert.Nil(t, h.current(testGuild))

	ended(h, "a", EndStopped)
	assert.Equal(t, []string{"a"}, h.audio.Played())
	assert.Empty(t, h.notifier.liveTracks())

	list, err := h.ctrl.QueueSnapshot(testGuild)
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.ErrorIs(t, h.ctrl.Stop(context.Background(), testGuild), ErrNothingPlaying)
}

func TestCommandsWithoutPlayback(t *testing.T) {
	h := newHarness(noIdleSettings())

	assert.ErrorIs(t, h.ctrl.Stop(context.Background(), testGuild), ErrNotConnected)
	_, err := h.ctrl.QueueList(testGuild, 1)
	assert.ErrorIs(t, err, ErrNotConnected)

	join(t, h)
	_, err = h.ctrl.Pause(context.Background(), testGuild)
	assert.ErrorIs(t, err, ErrNothingPlaying)
	_, err = h.ctrl.Resume(context.Background(), testGuild)
	assert.ErrorIs(t, err, ErrNothingPlaying)
	_, err = h.ctrl.Skip(context.Background(), testGuild)
	assert.ErrorIs(t, err, ErrNothingPlaying)
	assert.ErrorIs(t, h.ctrl.Stop(context.Background(), testGuild), ErrNothingPlaying)
	_, err = h.ctrl.NowPlaying(testGuild)
	assert.ErrorIs(t, err, ErrNothingPlaying)
}

func TestPauseAndResume(t *testing.T) {
	h := newHarness(noIdleSettings())
	play(t, h, "a")

	cur, err := h.ctrl.Pause(context.Background(), testGuild)
	require.NoError(t, err)
	assert.Equal(t, "a", cur.ID)
	assert.True(t, h.audio.paused)

	snap, err := h.ctrl.NowPlaying(testGuild)
	require.NoError(t, err)
	assert.True(t, snap.Paused)

	_, err = h.ctrl.Resume(context.Background(), testGuild)
	require.NoError(t, err)
	assert.False(t, h.audio.paused)
}

func TestSeek(t *testing.T) {
	h := newHarness(noIdleSettings())
	h.resolver.results["live"] = Resolution{Tracks: []Track{{ID: "live", IsStream: true}}}
	play(t, h, "a")

	_, err := h.ctrl.Seek(context.Background(), testGuild, time.Minute)
	require.NoError(t, err)
	_, err = h.ctrl.Seek(context.Background(), testGuild, time.Hour)
	assert.ErrorIs(t, err, ErrSeekOutOfRange)

	require.NoError(t, h.ctrl.Stop(context.Background(), testGuild))
	play(t, h, "live")
	_, err = h.ctrl.Seek(context.Background(), testGuild, time.Second)
	assert.ErrorIs(t, err, ErrNotSeekable)
}

func TestLoopTrackReplays(t *testing.T) {
	h := newHarness(noIdleSettings())
	play(t, h, "a")
	play(t, h, "b")
	require.NoError(t, h.ctrl.SetLoop(testGuild, LoopTrack))

	ended(h, "a", EndFinished)
	assert.Equal(t, []string{"a", "a"}, h.audio.Played())

	_, err := h.ctrl.Skip(context.Background(), testGuild)
	require.NoError(t, err)
	ended(h, "a", EndStopped)
	assert.Equal(t, []string{"a", "a", "b"}, h.audio.Played())
}

func TestLoopQueueRequeues(t *testing.T) {
	h := newHarness(noIdleSettings())
	play(t, h, "a")
	play(t, h, "b")
	require.NoError(t, h.ctrl.SetLoop(testGuild, LoopQueue))

	ended(h, "a", EndFinished)
	ended(h, "b", EndFinished)
	ended(h, "a", EndFinished)
	assert.Equal(t, []string{"a", "b", "a", "b"}, h.audio.Played())
}

func TestLoadFailedPostsErrorAndAdvances(t *testing.T) {
	h := newHarness(noIdleSettings())
	play(t, h, "bad")
	play(t, h, "good")

	ended(h, "bad", EndLoadFailed)
	assert.Equal(t, []string{"bad", "good"}, h.audio.Played())
	require.Len(t, h.notifier.Errors(), 1)
	assert.Contains(t, h.notifier.Errors()[0], "bad")
}

func TestStaleTrackEndDoesNotAdvance(t *testing.T) {
	h := newHarness(noIdleSettings())
	play(t, h, "a")
	play(t, h, "b")

	ended(h, "zzz", EndFinished)
	ended(h, "a", EndReplaced)
	ended(h, "a", EndCleanup)
	assert.Equal(t, []string{"a"}, h.audio.Played())
	assert.Equal(t, "a", h.current(testGuild).ID)
}

func TestQueueListPagination(t *testing.T) {
	h := newHarness(noIdleSettings())
	play(t, h, "now")
	for i := range 23 {
		play(t, h, fmt.Sprintf("t%02d", i+1))
	}

	page, err := h.ctrl.QueueList(testGuild, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 23, page.Total)
	require.Len(t, page.Entries, QueuePageSize)
	assert.Equal(t, 11, page.Entries[0].Position)
	assert.Equal(t, "t11", page.Entries[0].Track.ID)
	require.NotNil(t, page.Current)
	assert.Equal(t, "now", page.Current.ID)

	page, err = h.ctrl.QueueList(testGuild, 99)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Page)
	assert.Len(t, page.Entries, 3)

	page, err = h.ctrl.QueueList(testGuild, -4)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
}

func TestQueueClearKeepsCurrent(t *testing.T) {
	h := newHarness(noIdleSettings())
	play(t, h, "a")
	play(t, h, "b")
	play(t, h, "c")

	n, err := h.ctrl.QueueClear(testGuild)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "a", h.current(testGuild).ID)
	assert.Zero(t, h.audio.count("stop"))
}

func TestQueueMoveAndShuffle(t *testing.T) {
	h := newHarness(noIdleSettings())
	play(t, h, "now")
	play(t, h, "a")
	play(t, h, "b")
	play(t, h, "c")

	moved, err := h.ctrl.QueueMove(testGuild, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, "c", moved.ID)
	list, _ := h.ctrl.QueueSnapshot(testGuild)
	assert.Equal(t, []string{"c", "a", "b"}, titles(list))

	_, err = h.ctrl.QueueMove(testGuild, 4, 1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	n, err := h.ctrl.QueueShuffle(testGuild)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestIdleTimeoutLeaves(t *testing.T) {
	set := DefaultPlaybackSettings()
	set.IdleTimeout = 20 * time.Millisecond
	h := newHarness(set)
	play(t, h, "a")

	ended(h, "a", EndFinished)
	assert.Eventually(t, func() bool { return h.ctrl.store.Get(testGuild) == nil }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.voice.disconnects)
}

func TestPlayCancelsIdleTimer(t *testing.T) {
	set := DefaultPlaybackSettings()
	set.IdleTimeout = 30 * time.Millisecond
	h := newHarness(set)
	play(t, h, "a")
	ended(h, "a", EndFinished)

	play(t, h, "b")
	time.Sleep(80 * time.Millisecond)
	assert.NotNil(t, h.ctrl.store.Get(testGuild))
	assert.Equal(t, "b", h.current(testGuild).ID)
}

func TestJoinWithoutPlaybackGoesIdle(t *testing.T) {
	set := DefaultPlaybackSettings()
	set.IdleTimeout = 20 * time.Millisecond
	h := newHarness(set)
	join(t, h)

	assert.Eventually(t, func() bool { return h.ctrl.store.Get(testGuild) == nil }, time.Second, 5*time.Millisecond)
}

func TestGuildsAreIndependent(t *testing.T) {
	h := newHarness(noIdleSettings())

	var wg sync.WaitGroup
	for g := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			guildID := snowflake.ID(1000 + g)
			_, err := h.ctrl.Play(context.Background(), PlayRequest{GuildID: guildID, Query: "q", TextChannel: testText, Requester: requester()})
			assert.NoError(t, err)
			if g%2 == 0 {
				assert.NoError(t, h.ctrl.Leave(context.Background(), guildID))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, h.ctrl.store.Len())
}

func TestShutdownLeavesAll(t *testing.T) {
	h := newHarness(noIdleSettings())
	join(t, h)
	_, err := h.ctrl.Play(context.Background(), PlayRequest{GuildID: 7, Query: "x", Requester: requester()})
	require.NoError(t, err)

	h.ctrl.Shutdown(context.Background())
	assert.Zero(t, h.ctrl.store.Len())
}
