package runtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"messenger/auth"
	"messenger/domain"
	"messenger/errors"
	"messenger/observability"
	"messenger/repositories"
)

// newTestEngine wires a complete engine on a throwaway badger store.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	issuer := auth.NewTokenIssuer("access-secret", "refresh-secret", 30*time.Minute, 168*time.Hour)
	chats := repositories.NewChatRepository(db)
	gate := auth.NewGate(log, issuer, chats)
	stats := observability.NewDeliveryStats(log)

	return NewEngine(log, gate, repositories.NewMessageRepository(db, log),
		repositories.NewWatermarkRepository(db), stats, make(chan domain.Message, 64), Options{
			SoftCap:     64,
			Grace:       time.Second,
			PageSize:    10,
			MaxLength:   128,
			Attempts:    3,
			BackoffBase: time.Millisecond,
		})
}

func attachFresh(t *testing.T, engine *Engine, chatID, userID uuid.UUID) (*Connection, *fakeTransport) {
	t.Helper()
	transport := newFakeTransport()
	conn, err := engine.Attach(context.Background(), chatID, userID, transport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Detach(conn) })
	return conn, transport
}

func TestEngine_PostReachesEveryLiveConnection(t *testing.T) {
	req := require.New(t)
	engine := newTestEngine(t)
	chatID := uuid.New()
	alice := uuid.New()
	bob := uuid.New()

	_, aliceTransport := attachFresh(t, engine, chatID, alice)
	_, bobTransport := attachFresh(t, engine, chatID, bob)

	message, err := engine.Post(context.Background(), chatID, alice, "hello everyone")
	req.NoError(err)
	req.Equal(uint64(1), message.Seq)

	// The sender hears its own message back, with the assigned sequence
	for _, transport := range []*fakeTransport{aliceTransport, bobTransport} {
		req.Eventually(func() bool { return len(transport.Events()) == 1 },
			time.Second, 5*time.Millisecond)
		event, ok := transport.Events()[0].(domain.MessagePosted)
		req.True(ok)
		req.Equal("hello everyone", event.Body)
		req.Equal(uint64(1), event.Seq)
	}
}

func TestEngine_SequencesGrowDenselyPerChat(t *testing.T) {
	req := require.New(t)
	engine := newTestEngine(t)
	chatID := uuid.New()
	sender := uuid.New()

	for want := uint64(1); want <= 5; want++ {
		message, err := engine.Post(context.Background(), chatID, sender, "tick")
		req.NoError(err)
		req.Equal(want, message.Seq)
	}

	head, err := engine.Head(chatID)
	req.NoError(err)
	req.Equal(uint64(5), head)
}

func TestEngine_ReadIsFannedOutToOthersOnly(t *testing.T) {
	req := require.New(t)
	engine := newTestEngine(t)
	chatID := uuid.New()
	alice := uuid.New()
	bob := uuid.New()

	_, aliceTransport := attachFresh(t, engine, chatID, alice)
	_, bobTransport := attachFresh(t, engine, chatID, bob)

	message, err := engine.Post(context.Background(), chatID, alice, "read me")
	req.NoError(err)

	seq, advanced, err := engine.Read(chatID, bob, message.ID)
	req.NoError(err)
	req.True(advanced)
	req.Equal(uint64(1), seq)

	// Alice sees her message and Bob's acknowledgement
	req.Eventually(func() bool { return len(aliceTransport.Events()) == 2 },
		time.Second, 5*time.Millisecond)
	ack, ok := aliceTransport.Events()[1].(domain.ReadAcknowledged)
	req.True(ok)
	req.Equal(bob, ack.UserID)
	req.Equal(uint64(1), ack.Seq)

	// Bob only ever sees the message itself
	time.Sleep(30 * time.Millisecond)
	req.Len(bobTransport.Events(), 1)

	watermark, err := engine.Watermark(chatID, bob)
	req.NoError(err)
	req.Equal(uint64(1), watermark)
}

func TestEngine_ReadOfUnknownMessageFails(t *testing.T) {
	req := require.New(t)
	engine := newTestEngine(t)

	_, _, err := engine.Read(uuid.New(), uuid.New(), uuid.New())
	req.ErrorIs(err, errors.ErrUnknownMessage)
}

func TestEngine_ResumeReplaysExactlyTheMissedRange(t *testing.T) {
	req := require.New(t)
	engine := newTestEngine(t)
	chatID := uuid.New()
	alice := uuid.New()
	bob := uuid.New()

	// Bob saw message 1, then lost his connection
	for i := 0; i < 3; i++ {
		_, err := engine.Post(context.Background(), chatID, alice, "while you were away")
		req.NoError(err)
	}

	transport := newFakeTransport()
	conn, err := engine.Attach(context.Background(), chatID, bob, transport, lo.ToPtr(uint64(1)))
	req.NoError(err)
	defer engine.Detach(conn)

	req.Eventually(func() bool { return len(transport.Events()) == 2 },
		time.Second, 5*time.Millisecond)
	req.Equal([]uint64{2, 3}, sequences(transport.Events()))

	// Live traffic follows the replay seamlessly
	_, err = engine.Post(context.Background(), chatID, alice, "welcome back")
	req.NoError(err)
	req.Eventually(func() bool { return len(transport.Events()) == 3 },
		time.Second, 5*time.Millisecond)
	req.Equal([]uint64{2, 3, 4}, sequences(transport.Events()))
}

func TestEngine_FreshAttachIsLiveOnly(t *testing.T) {
	req := require.New(t)
	engine := newTestEngine(t)
	chatID := uuid.New()
	alice := uuid.New()
	bob := uuid.New()

	for i := 0; i < 2; i++ {
		_, err := engine.Post(context.Background(), chatID, alice, "history")
		req.NoError(err)
	}

	// No resume cursor: history stays in the archive
	_, transport := attachFresh(t, engine, chatID, bob)
	time.Sleep(30 * time.Millisecond)
	req.Empty(transport.Events())

	_, err := engine.Post(context.Background(), chatID, alice, "fresh")
	req.NoError(err)
	req.Eventually(func() bool { return len(transport.Events()) == 1 },
		time.Second, 5*time.Millisecond)
	req.Equal([]uint64{3}, sequences(transport.Events()))
}

func TestEngine_ResumeBeyondHeadIsRejected(t *testing.T) {
	req := require.New(t)
	engine := newTestEngine(t)
	chatID := uuid.New()

	transport := newFakeTransport()
	_, err := engine.Attach(context.Background(), chatID, uuid.New(), transport, lo.ToPtr(uint64(42)))
	req.ErrorIs(err, errors.ErrStaleResume)

	// The transport was closed and told why
	closed, reason := transport.CloseReason()
	req.True(closed)
	req.ErrorIs(reason, errors.ErrStaleResume)
}

func TestEngine_SecondAttachReplacesTheFirst(t *testing.T) {
	req := require.New(t)
	engine := newTestEngine(t)
	chatID := uuid.New()
	alice := uuid.New()
	bob := uuid.New()

	firstTransport := newFakeTransport()
	_, err := engine.Attach(context.Background(), chatID, bob, firstTransport, nil)
	req.NoError(err)

	secondTransport := newFakeTransport()
	second, err := engine.Attach(context.Background(), chatID, bob, secondTransport, nil)
	req.NoError(err)
	defer engine.Detach(second)

	closed, reason := firstTransport.CloseReason()
	req.True(closed)
	req.ErrorIs(reason, errors.ErrConnectionReplaced)

	_, err = engine.Post(context.Background(), chatID, alice, "to the survivor")
	req.NoError(err)
	req.Eventually(func() bool { return len(secondTransport.Events()) == 1 },
		time.Second, 5*time.Millisecond)
	req.Empty(firstTransport.Events())
}

func TestEngine_DetachStopsDelivery(t *testing.T) {
	req := require.New(t)
	engine := newTestEngine(t)
	chatID := uuid.New()
	alice := uuid.New()
	bob := uuid.New()

	transport := newFakeTransport()
	conn, err := engine.Attach(context.Background(), chatID, bob, transport, nil)
	req.NoError(err)

	engine.Detach(conn)

	_, err = engine.Post(context.Background(), chatID, alice, "into the void")
	req.NoError(err)
	time.Sleep(30 * time.Millisecond)
	req.Empty(transport.Events())
}

func TestEngine_PostValidation(t *testing.T) {
	engine := newTestEngine(t)

	t.Run("should refuse an empty body", func(t *testing.T) {
		req := require.New(t)
		_, err := engine.Post(context.Background(), uuid.New(), uuid.New(), " ")
		req.ErrorIs(err, errors.ErrEmptyBody)
	})

	t.Run("should refuse an oversized body", func(t *testing.T) {
		req := require.New(t)
		big := make([]byte, 0, 200)
		for i := 0; i < 200; i++ {
			big = append(big, 'a')
		}
		_, err := engine.Post(context.Background(), uuid.New(), uuid.New(), string(big))
		req.ErrorIs(err, errors.ErrBodyTooLarge)
	})
}
