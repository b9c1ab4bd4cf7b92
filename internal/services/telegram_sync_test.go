package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	tgclient "github.com/advisorkit/consultant-backend/internal/clients/telegram"
	pkgerr "github.com/advisorkit/consultant-backend/internal/pkg/errors"
	"github.com/advisorkit/consultant-backend/internal/types"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

type fakeRooms struct {
	rooms   map[int64]*types.ChatRoom
	cursors map[int64]int64
}

func newFakeRooms(rooms ...*types.ChatRoom) *fakeRooms {
	f := &fakeRooms{rooms: map[int64]*types.ChatRoom{}, cursors: map[int64]int64{}}
	for _, r := range rooms {
		f.rooms[r.ID] = r
		f.cursors[r.ID] = r.LastSyncedMessageID
	}
	return f
}

func (f *fakeRooms) Upsert(ctx context.Context, tx *gorm.DB, room *types.ChatRoom) (*types.ChatRoom, error) {
	f.rooms[room.ID] = room
	return room, nil
}

func (f *fakeRooms) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.ChatRoom, error) {
	room, ok := f.rooms[id]
	if !ok {
		return nil, pkgerr.ErrNotFound
	}
	return room, nil
}

func (f *fakeRooms) ListActive(ctx context.Context, tx *gorm.DB) ([]*types.ChatRoom, error) {
	var out []*types.ChatRoom
	for _, r := range f.rooms {
		if r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRooms) List(ctx context.Context, tx *gorm.DB) ([]*types.ChatRoom, error) {
	var out []*types.ChatRoom
	for _, r := range f.rooms {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRooms) DistinctClientNames(ctx context.Context, tx *gorm.DB) ([]string, error) {
	return nil, nil
}

func (f *fakeRooms) AdvanceCursor(ctx context.Context, tx *gorm.DB, chatID, messageID int64) error {
	if messageID > f.cursors[chatID] {
		f.cursors[chatID] = messageID
	}
	return nil
}

type fakeMessages struct {
	saved map[string]*types.ChatMessage
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{saved: map[string]*types.ChatMessage{}}
}

func msgKey(chatID, messageID int64) string {
	return fmt.Sprintf("%d/%d", chatID, messageID)
}

func (f *fakeMessages) Create(ctx context.Context, tx *gorm.DB, msg *types.ChatMessage) (*types.ChatMessage, error) {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	f.saved[msgKey(msg.ChatID, msg.MessageID)] = msg
	return msg, nil
}

func (f *fakeMessages) Exists(ctx context.Context, tx *gorm.DB, chatID, messageID int64) (bool, error) {
	_, ok := f.saved[msgKey(chatID, messageID)]
	return ok, nil
}

func (f *fakeMessages) CountByChat(ctx context.Context, tx *gorm.DB, chatID int64) (int64, error) {
	var n int64
	for _, m := range f.saved {
		if m.ChatID == chatID {
			n++
		}
	}
	return n, nil
}

type fakeVectors struct {
	created []*types.ChatEmbedding
}

func (f *fakeVectors) Create(ctx context.Context, tx *gorm.DB, emb *types.ChatEmbedding) (*types.ChatEmbedding, error) {
	f.created = append(f.created, emb)
	return emb, nil
}

func (f *fakeVectors) CountByChat(ctx context.Context, tx *gorm.DB, chatID int64) (int64, error) {
	return int64(len(f.created)), nil
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	return nil, fmt.Errorf("embedding backend down")
}

func (f failingEmbedder) EmbedOne(ctx context.Context, input string) ([]float32, error) {
	return nil, fmt.Errorf("embedding backend down")
}

// fakeSession records every method invoked on it. The Session interface
// deliberately exposes no send or edit API; this fake verifies the ingestor
// stays within the read-only surface it is given.
type fakeSession struct {
	calls   []string
	history []tgclient.Message
	minIDs  []int64
}

func (f *fakeSession) Run(ctx context.Context, ready func(ctx context.Context) error) error {
	f.calls = append(f.calls, "Run")
	return ready(ctx)
}

func (f *fakeSession) Subscribe(h tgclient.Handler) {
	f.calls = append(f.calls, "Subscribe")
}

func (f *fakeSession) History(ctx context.Context, chatID int64, minID int64, fn func(msg tgclient.Message) error) error {
	f.calls = append(f.calls, "History")
	f.minIDs = append(f.minIDs, minID)
	for _, m := range f.history {
		if m.ChatID == chatID && m.MessageID > minID {
			if err := fn(m); err != nil {
				return err
			}
		}
	}
	return nil
}

func longText(prefix string) string {
	return prefix + strings.Repeat(" обсуждение деталей проекта", 4)
}

func newSyncService(t *testing.T, rooms *fakeRooms, msgs *fakeMessages, vecs *fakeVectors, embedder EmbeddingClient) TelegramSyncService {
	t.Helper()
	if embedder == nil {
		embedder = fakeEmbedder{}
	}
	return NewTelegramSyncService(testDB(t), rooms, msgs, vecs, embedder, testLogger(t))
}

func TestSaveAndIndexDropsShortMessages(t *testing.T) {
	msgs := newFakeMessages()
	vecs := &fakeVectors{}
	svc := newSyncService(t, newFakeRooms(), msgs, vecs, nil)

	saved, err := svc.SaveAndIndexMessage(context.Background(), tgclient.Message{
		ChatID: -100, MessageID: 1, Date: time.Now(), Text: "ок, до завтра",
	})
	if err != nil {
		t.Fatalf("SaveAndIndexMessage: %v", err)
	}
	if saved {
		t.Fatal("short message must be dropped")
	}
	if len(msgs.saved) != 0 || len(vecs.created) != 0 {
		t.Fatal("nothing may be persisted for a short message")
	}
}

func TestSaveAndIndexStoresMessageVectorAndCursor(t *testing.T) {
	rooms := newFakeRooms(&types.ChatRoom{ID: -100, Title: "чат", IsActive: true, LastSyncedMessageID: 5})
	msgs := newFakeMessages()
	vecs := &fakeVectors{}
	svc := newSyncService(t, rooms, msgs, vecs, nil)

	sender := "Иван"
	saved, err := svc.SaveAndIndexMessage(context.Background(), tgclient.Message{
		ChatID: -100, MessageID: 42, Date: time.Now(), SenderName: &sender,
		Text: longText("Подготовил план запуска."),
	})
	if err != nil {
		t.Fatalf("SaveAndIndexMessage: %v", err)
	}
	if !saved {
		t.Fatal("expected message to be saved")
	}

	row, ok := msgs.saved[msgKey(-100, 42)]
	if !ok {
		t.Fatal("message row missing")
	}
	if len(vecs.created) != 1 {
		t.Fatalf("expected 1 vector, got %d", len(vecs.created))
	}
	emb := vecs.created[0]
	if emb.MessageID != row.ID || emb.ChunkIndex != 0 || emb.ChunkText != *row.Text {
		t.Fatalf("embedding row mismatched: %+v", emb)
	}
	if rooms.cursors[-100] != 42 {
		t.Fatalf("cursor %d, want 42", rooms.cursors[-100])
	}
}

func TestSaveAndIndexSkipsDuplicates(t *testing.T) {
	rooms := newFakeRooms(&types.ChatRoom{ID: -100, IsActive: true})
	msgs := newFakeMessages()
	vecs := &fakeVectors{}
	svc := newSyncService(t, rooms, msgs, vecs, nil)

	msg := tgclient.Message{ChatID: -100, MessageID: 7, Date: time.Now(), Text: longText("Решили перенести")}
	if _, err := svc.SaveAndIndexMessage(context.Background(), msg); err != nil {
		t.Fatalf("first save: %v", err)
	}
	saved, err := svc.SaveAndIndexMessage(context.Background(), msg)
	if err != nil {
		t.Fatalf("duplicate save: %v", err)
	}
	if saved {
		t.Fatal("duplicate must be skipped")
	}
	if len(vecs.created) != 1 {
		t.Fatalf("duplicate produced extra vector: %d", len(vecs.created))
	}
}

func TestSaveAndIndexFailsWhenEmbeddingFails(t *testing.T) {
	rooms := newFakeRooms(&types.ChatRoom{ID: -100, IsActive: true})
	svc := newSyncService(t, rooms, newFakeMessages(), &fakeVectors{}, failingEmbedder{})

	_, err := svc.SaveAndIndexMessage(context.Background(), tgclient.Message{
		ChatID: -100, MessageID: 9, Date: time.Now(), Text: longText("Большое сообщение"),
	})
	if err == nil {
		t.Fatal("expected error when embedding fails")
	}
	if rooms.cursors[-100] != 0 {
		t.Fatal("cursor must not advance when the unit fails")
	}
}

func TestCatchupChatReplaysAboveCursor(t *testing.T) {
	room := &types.ChatRoom{ID: -200, Title: "чат", IsActive: true, LastSyncedMessageID: 10}
	rooms := newFakeRooms(room)
	msgs := newFakeMessages()
	svc := newSyncService(t, rooms, msgs, &fakeVectors{}, nil)

	sess := &fakeSession{history: []tgclient.Message{
		{ChatID: -200, MessageID: 9, Date: time.Now(), Text: longText("старое сообщение")},
		{ChatID: -200, MessageID: 11, Date: time.Now(), Text: longText("новое сообщение")},
		{ChatID: -200, MessageID: 12, Date: time.Now(), Text: "коротко"},
		{ChatID: -200, MessageID: 13, Date: time.Now(), Text: longText("ещё одно")},
	}}

	saved, err := svc.CatchupChat(context.Background(), sess, room)
	if err != nil {
		t.Fatalf("CatchupChat: %v", err)
	}
	if saved != 2 {
		t.Fatalf("saved %d, want 2 (one below cursor, one too short)", saved)
	}
	if len(sess.minIDs) != 1 || sess.minIDs[0] != 10 {
		t.Fatalf("history must start from the stored cursor, got %v", sess.minIDs)
	}
	if rooms.cursors[-200] != 13 {
		t.Fatalf("cursor %d, want 13", rooms.cursors[-200])
	}
}

func TestCatchupAllTouchesOnlyReadOnlySessionSurface(t *testing.T) {
	rooms := newFakeRooms(
		&types.ChatRoom{ID: -1, Title: "a", IsActive: true},
		&types.ChatRoom{ID: -2, Title: "b", IsActive: false},
	)
	svc := newSyncService(t, rooms, newFakeMessages(), &fakeVectors{}, nil)

	sess := &fakeSession{}
	if err := svc.CatchupAll(context.Background(), sess); err != nil {
		t.Fatalf("CatchupAll: %v", err)
	}
	for _, call := range sess.calls {
		if call != "History" {
			t.Fatalf("unexpected session call %q", call)
		}
	}
	if len(sess.calls) != 1 {
		t.Fatalf("expected history for the single active room, got %v", sess.calls)
	}
}

func TestWatcherIgnoresUnwatchedAndInactiveRooms(t *testing.T) {
	rooms := newFakeRooms(&types.ChatRoom{ID: -5, Title: "архив", IsActive: false})
	msgs := newFakeMessages()
	svc := newSyncService(t, rooms, msgs, &fakeVectors{}, nil)
	w := NewTelegramWatcher(&fakeSession{}, svc, rooms, time.Hour, testLogger(t))

	// unknown chat
	if err := w.handleLive(context.Background(), tgclient.Message{
		ChatID: -999, MessageID: 1, Date: time.Now(), Text: longText("чужой чат"),
	}); err != nil {
		t.Fatalf("handleLive unknown: %v", err)
	}
	// inactive chat
	if err := w.handleLive(context.Background(), tgclient.Message{
		ChatID: -5, MessageID: 2, Date: time.Now(), Text: longText("архивный чат"),
	}); err != nil {
		t.Fatalf("handleLive inactive: %v", err)
	}
	if len(msgs.saved) != 0 {
		t.Fatal("no messages may be stored for unwatched or inactive rooms")
	}
}
