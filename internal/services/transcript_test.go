package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerr "github.com/advisorkit/consultant-backend/internal/pkg/errors"
	"github.com/advisorkit/consultant-backend/internal/repos"
	"github.com/advisorkit/consultant-backend/internal/types"
)

type fakeFireflies struct {
	transcript *Transcript
	err        error
	calls      int
}

func (f *fakeFireflies) GetTranscript(ctx context.Context, transcriptID string) (*Transcript, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.transcript, nil
}

type memMeetings struct {
	repos.MeetingRepo
	byFireflies map[string]*types.Meeting
	created     []*types.Meeting
}

func newMemMeetings() *memMeetings {
	return &memMeetings{byFireflies: map[string]*types.Meeting{}}
}

func (m *memMeetings) GetByFirefliesID(ctx context.Context, tx *gorm.DB, firefliesID string) (*types.Meeting, error) {
	meeting, ok := m.byFireflies[firefliesID]
	if !ok {
		return nil, pkgerr.ErrNotFound
	}
	return meeting, nil
}

func (m *memMeetings) Create(ctx context.Context, tx *gorm.DB, meeting *types.Meeting) (*types.Meeting, error) {
	if meeting.ID == uuid.Nil {
		meeting.ID = uuid.New()
	}
	if meeting.FirefliesID != nil {
		m.byFireflies[*meeting.FirefliesID] = meeting
	}
	m.created = append(m.created, meeting)
	return meeting, nil
}

type fakeIndexer struct {
	IndexingService
	chunks  int
	err     error
	indexed []uuid.UUID
}

func (f *fakeIndexer) IndexMeeting(ctx context.Context, meetingID uuid.UUID, force bool) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.indexed = append(f.indexed, meetingID)
	return f.chunks, nil
}

func TestProcessWebhookIgnoresOtherEvents(t *testing.T) {
	ff := &fakeFireflies{}
	svc := NewTranscriptService(ff, newMemMeetings(), &fakeIndexer{}, testLogger(t))

	res, err := svc.ProcessWebhook(context.Background(), "Transcription started", "abc")
	if err != nil {
		t.Fatalf("ProcessWebhook: %v", err)
	}
	if res.Status != "ignored" {
		t.Fatalf("status %q, want ignored", res.Status)
	}
	if ff.calls != 0 {
		t.Fatal("provider must not be called for ignored events")
	}
}

func TestProcessWebhookIngestsAndIndexes(t *testing.T) {
	date := time.Date(2026, time.January, 15, 14, 0, 0, 0, time.UTC)
	ff := &fakeFireflies{transcript: &Transcript{
		ID:    "ff-1",
		Title: "Ромашка - стратегическая сессия",
		Date:  &date,
		Sentences: []Sentence{
			{Speaker: "Мария", Text: "Начнём с воронки."},
			{Speaker: "Иван", Text: "Конверсия выросла до 4%."},
			{Speaker: "", Text: "   "},
		},
	}}
	meetings := newMemMeetings()
	indexer := &fakeIndexer{chunks: 3}
	svc := NewTranscriptService(ff, meetings, indexer, testLogger(t))

	res, err := svc.ProcessWebhook(context.Background(), "Transcription completed", "ff-1")
	if err != nil {
		t.Fatalf("ProcessWebhook: %v", err)
	}
	if res.Status != "ok" || res.Chunks != 3 {
		t.Fatalf("result %+v", res)
	}

	if len(meetings.created) != 1 {
		t.Fatalf("meetings created %d", len(meetings.created))
	}
	m := meetings.created[0]
	if m.Title != "Ромашка - стратегическая сессия" || m.FirefliesID == nil || *m.FirefliesID != "ff-1" {
		t.Fatalf("meeting %+v", m)
	}
	want := "Мария: Начнём с воронки.\nИван: Конверсия выросла до 4%."
	if m.Transcript == nil || *m.Transcript != want {
		t.Fatalf("transcript %q, want %q", *m.Transcript, want)
	}
	if len(indexer.indexed) != 1 || indexer.indexed[0] != m.ID {
		t.Fatalf("indexed %v", indexer.indexed)
	}
}

func TestProcessWebhookIsIdempotent(t *testing.T) {
	ff := &fakeFireflies{transcript: &Transcript{
		ID:        "ff-2",
		Title:     "Встреча",
		Sentences: []Sentence{{Speaker: "А", Text: "Текст."}},
	}}
	meetings := newMemMeetings()
	svc := NewTranscriptService(ff, meetings, &fakeIndexer{chunks: 1}, testLogger(t))

	first, err := svc.ProcessWebhook(context.Background(), "Transcription completed", "ff-2")
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	second, err := svc.ProcessWebhook(context.Background(), "Transcription completed", "ff-2")
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if second.Status != "duplicate" {
		t.Fatalf("status %q, want duplicate", second.Status)
	}
	if *second.MeetingID != *first.MeetingID {
		t.Fatal("duplicate must reference the original meeting")
	}
	if len(meetings.created) != 1 {
		t.Fatalf("redelivery created extra meetings: %d", len(meetings.created))
	}
}

func TestProcessWebhookSavesMeetingWhenIndexingFails(t *testing.T) {
	ff := &fakeFireflies{transcript: &Transcript{
		ID:        "ff-3",
		Title:     "Встреча",
		Sentences: []Sentence{{Speaker: "А", Text: "Достаточно длинный текст."}},
	}}
	meetings := newMemMeetings()
	indexer := &fakeIndexer{err: errors.New("embedding backend down")}
	svc := NewTranscriptService(ff, meetings, indexer, testLogger(t))

	res, err := svc.ProcessWebhook(context.Background(), "Transcription completed", "ff-3")
	if err != nil {
		t.Fatalf("ProcessWebhook: %v", err)
	}
	if res.Status != "saved_unindexed" {
		t.Fatalf("status %q, want saved_unindexed", res.Status)
	}
	if len(meetings.created) != 1 {
		t.Fatal("meeting must be persisted even when indexing fails")
	}
}

func TestFormatTranscriptFallbacks(t *testing.T) {
	tr := &Transcript{Sentences: []Sentence{
		{Speaker: "", Text: "Без спикера."},
		{Speaker: "Иван", Text: ""},
	}}
	if got, want := tr.FormatTranscript(), "Unknown: Без спикера."; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
