package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"messenger/auth"
	"messenger/domain"
	"messenger/repositories"
)

// Every seeded account shares this password so the data stays usable with
// the client and tester binaries.
const seedPassword = "DemoPass123!"

var seedBodies = []string{
	"morning, anything broken overnight?",
	"nothing in the alerts, pipeline is green",
	"pushing the fix for the pagination cursor now",
	"can someone review my branch before lunch?",
	"done, left two comments",
	"merged, thanks",
	"deploy to staging is running",
	"staging looks good, promoting",
}

// runSeed fills the store with three accounts, a direct chat and a group
// chat, a message history and read watermarks. The store must not be held
// by a running server: the seed opens it read-write.
func runSeed(dbPath string, messages int) error {
	if messages < 1 {
		messages = 1
	}

	db, err := badger.Open(badger.DefaultOptions(dbPath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("open for writing: %w", err)
	}
	defer db.Close()

	silent := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := repositories.NewUserRepository(db)
	chats := repositories.NewChatRepository(db)
	store := repositories.NewMessageRepository(db, silent)
	marks := repositories.NewWatermarkRepository(db)

	hash, err := auth.HashPassword(seedPassword)
	if err != nil {
		return err
	}

	accounts := make([]domain.User, 0, 3)
	for _, a := range []struct{ email, name string }{
		{"alice@demo.local", "Alice"},
		{"bob@demo.local", "Bob"},
		{"carol@demo.local", "Carol"},
	} {
		user, err := users.CreateUser(a.email, a.name, hash)
		if err != nil {
			return fmt.Errorf("create %s (already seeded?): %w", a.email, err)
		}
		accounts = append(accounts, user)
	}
	alice, bob, carol := accounts[0], accounts[1], accounts[2]

	now := time.Now()

	direct := domain.Chat{
		ID:        uuid.New(),
		Kind:      domain.KindDirect,
		CreatorID: alice.ID,
		CreatedAt: now,
	}
	err = chats.CreateChat(direct, []domain.Participant{
		{ChatID: direct.ID, UserID: alice.ID, Role: domain.RoleMember, JoinedAt: now},
		{ChatID: direct.ID, UserID: bob.ID, Role: domain.RoleMember, JoinedAt: now},
	})
	if err != nil {
		return fmt.Errorf("create direct chat: %w", err)
	}

	group := domain.Chat{
		ID:        uuid.New(),
		Kind:      domain.KindGroup,
		Name:      "demo-room",
		CreatorID: alice.ID,
		CreatedAt: now,
	}
	err = chats.CreateChat(group, []domain.Participant{
		{ChatID: group.ID, UserID: alice.ID, Role: domain.RoleAdmin, JoinedAt: now},
		{ChatID: group.ID, UserID: bob.ID, Role: domain.RoleMember, JoinedAt: now},
		{ChatID: group.ID, UserID: carol.ID, Role: domain.RoleMember, JoinedAt: now},
	})
	if err != nil {
		return fmt.Errorf("create group chat: %w", err)
	}

	// The group history: rotating senders and bodies, one minute apart,
	// ending now. Append keeps the seq high-water mark in step, so a server
	// started on this store continues at messages+1.
	senders := []uuid.UUID{alice.ID, bob.ID, carol.ID}
	for i := 1; i <= messages; i++ {
		msg := domain.Message{
			ID:        uuid.New(),
			ChatID:    group.ID,
			SenderID:  senders[i%len(senders)],
			Seq:       uint64(i),
			Body:      seedBodies[i%len(seedBodies)],
			CreatedAt: now.Add(-time.Duration(messages-i) * time.Minute),
		}
		if err := store.Append(msg); err != nil {
			return fmt.Errorf("append seq %d: %w", i, err)
		}
	}

	for i, body := range []string{"lunch?", "give me five minutes"} {
		msg := domain.Message{
			ID:        uuid.New(),
			ChatID:    direct.ID,
			SenderID:  senders[i%2],
			Seq:       uint64(i + 1),
			Body:      body,
			CreatedAt: now.Add(-time.Duration(2-i) * time.Minute),
		}
		if err := store.Append(msg); err != nil {
			return fmt.Errorf("append direct seq %d: %w", i+1, err)
		}
	}

	// Partial read state so the watermark keys show up in the inspector.
	if err := marks.SetWatermark(group.ID, bob.ID, uint64(messages/2)); err != nil {
		return err
	}
	if err := marks.SetWatermark(group.ID, carol.ID, uint64(messages/4)); err != nil {
		return err
	}
	if err := marks.SetWatermark(direct.ID, bob.ID, 2); err != nil {
		return err
	}

	fmt.Printf("✅ Seeded 3 users, 2 chats, %d messages into %s\n", messages+2, dbPath)
	fmt.Printf("   Accounts alice@demo.local / bob@demo.local / carol@demo.local, password %q\n", seedPassword)
	fmt.Printf("   Group chat %s, direct chat %s\n", group.ID, direct.ID)
	return nil
}
