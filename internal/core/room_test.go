package core

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"beacon/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []Frame
	fail   bool
}

func (f *fakeConn) TrySend(fr Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("backpressure")
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {}

func (f *fakeConn) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func TestVideoRoomCapacity(t *testing.T) {
	room := NewRoomService(domain.NewRoom("r1", domain.RoomVideo))

	require.NoError(t, room.AddMember("a", &fakeConn{}))
	require.NoError(t, room.AddMember("b", &fakeConn{}))
	require.ErrorIs(t, room.AddMember("c", &fakeConn{}), ErrRoomFull)
	require.Equal(t, 2, room.MemberCount())
	require.NotContains(t, room.Members(), ConnID("c"))
}

func TestVideoRoomAddMemberIdempotent(t *testing.T) {
	room := NewRoomService(domain.NewRoom("r1", domain.RoomVideo))

	require.NoError(t, room.AddMember("a", &fakeConn{}))
	require.NoError(t, room.AddMember("a", &fakeConn{}))
	require.Equal(t, 1, room.MemberCount())
}

func TestChatRoomUnbounded(t *testing.T) {
	room := NewRoomService(domain.NewRoom("lobby", domain.RoomChat))
	for i := 0; i < 50; i++ {
		require.NoError(t, room.AddMember(ConnID(rune('a'+i)), &fakeConn{}))
	}
	require.Equal(t, 50, room.MemberCount())
}

// Two goroutines race for the last slot; exactly one may win.
func TestVideoRoomAdmissionRace(t *testing.T) {
	for i := 0; i < 100; i++ {
		room := NewRoomService(domain.NewRoom("r1", domain.RoomVideo))
		require.NoError(t, room.AddMember("a", &fakeConn{}))

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func(j int) {
				defer wg.Done()
				errs[j] = room.AddMember(ConnID(rune('b'+j)), &fakeConn{})
			}(j)
		}
		wg.Wait()

		var full int
		for _, err := range errs {
			if errors.Is(err, ErrRoomFull) {
				full++
			} else {
				require.NoError(t, err)
			}
		}
		require.Equal(t, 1, full)
		require.Equal(t, 2, room.MemberCount())
	}
}

func TestBroadcastIncludesSender(t *testing.T) {
	room := NewRoomService(domain.NewRoom("lobby", domain.RoomChat))
	a, b := &fakeConn{}, &fakeConn{}
	require.NoError(t, room.AddMember("a", a))
	require.NoError(t, room.AddMember("b", b))

	res := room.Broadcast(Frame(`{"type":"newMessage"}`))
	require.Equal(t, 2, res.SentTo)
	require.Equal(t, 1, a.count())
	require.Equal(t, 1, b.count())
}

func TestBroadcastExceptSkipsSender(t *testing.T) {
	room := NewRoomService(domain.NewRoom("lobby", domain.RoomChat))
	a, b := &fakeConn{}, &fakeConn{}
	require.NoError(t, room.AddMember("a", a))
	require.NoError(t, room.AddMember("b", b))

	res := room.BroadcastExcept("a", Frame(`{}`))
	require.Equal(t, 1, res.SentTo)
	require.Equal(t, 0, a.count())
	require.Equal(t, 1, b.count())
}

func TestBroadcastReportsDropped(t *testing.T) {
	room := NewRoomService(domain.NewRoom("lobby", domain.RoomChat))
	slow := &fakeConn{fail: true}
	require.NoError(t, room.AddMember("a", &fakeConn{}))
	require.NoError(t, room.AddMember("slow", slow))

	res := room.Broadcast(Frame(`{}`))
	require.Equal(t, 1, res.SentTo)
	require.Equal(t, []ConnID{"slow"}, res.Dropped)
}

func TestUnicastOther(t *testing.T) {
	room := NewRoomService(domain.NewRoom("r1", domain.RoomVideo))
	a, b := &fakeConn{}, &fakeConn{}
	require.NoError(t, room.AddMember("a", a))

	_, err := room.UnicastOther("a", Frame(`{}`))
	require.ErrorIs(t, err, ErrNoPeer)

	require.NoError(t, room.AddMember("b", b))
	to, err := room.UnicastOther("a", Frame(`{}`))
	require.NoError(t, err)
	require.Equal(t, ConnID("b"), to)
	require.Equal(t, 0, a.count())
	require.Equal(t, 1, b.count())
}

func TestRemoveMemberNoopWhenAbsent(t *testing.T) {
	room := NewRoomService(domain.NewRoom("r1", domain.RoomVideo))
	room.RemoveMember("ghost")
	require.Equal(t, 0, room.MemberCount())
}
