package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerr "github.com/advisorkit/consultant-backend/internal/pkg/errors"
	"github.com/advisorkit/consultant-backend/internal/repos"
	"github.com/advisorkit/consultant-backend/internal/types"
)

type summarizerMeetings struct {
	repos.MeetingRepo
	meetings map[uuid.UUID]*types.Meeting
	typed    map[uuid.UUID]string
}

func newSummarizerMeetings(meetings ...*types.Meeting) *summarizerMeetings {
	f := &summarizerMeetings{meetings: map[uuid.UUID]*types.Meeting{}, typed: map[uuid.UUID]string{}}
	for _, m := range meetings {
		f.meetings[m.ID] = m
	}
	return f
}

func (f *summarizerMeetings) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Meeting, error) {
	m, ok := f.meetings[id]
	if !ok {
		return nil, pkgerr.ErrNotFound
	}
	return m, nil
}

func (f *summarizerMeetings) UpdateType(ctx context.Context, tx *gorm.DB, id uuid.UUID, meetingType string) error {
	if _, ok := f.meetings[id]; !ok {
		return pkgerr.ErrNotFound
	}
	f.typed[id] = meetingType
	return nil
}

type recordingSummaries struct {
	repos.SummaryRepo
	created []*types.Summary
}

func (f *recordingSummaries) Create(ctx context.Context, tx *gorm.DB, summary *types.Summary) (*types.Summary, error) {
	f.created = append(f.created, summary)
	return summary, nil
}

func newSummarizerFixture(t *testing.T, settings map[string]string, meetings ...*types.Meeting) (SummarizerService, *summarizerMeetings, *recordingSummaries, *fakeModel) {
	t.Helper()
	meetingsRepo := newSummarizerMeetings(meetings...)
	summariesRepo := &recordingSummaries{}
	model := &fakeModel{}
	svc := NewSummarizerService(testDB(t), meetingsRepo, summariesRepo, model, &fakeSettings{values: settings}, testLogger(t))
	return svc, meetingsRepo, summariesRepo, model
}

func transcriptMeeting(text string) *types.Meeting {
	return &types.Meeting{ID: uuid.New(), Title: "Ромашка - диагностика", Transcript: &text}
}

func TestSummarizeStoresSummaryAndTagsMeeting(t *testing.T) {
	meeting := transcriptMeeting("Клиент рассказал о падении продаж в рознице.")
	svc, meetingsRepo, summariesRepo, model := newSummarizerFixture(t, nil, meeting)
	model.answer = "  Резюме: продажи падают, договорились о диагностике.  "

	summary, err := svc.Summarize(context.Background(), meeting.ID, types.MeetingTypeDiagnostics)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary.ContentText != "Резюме: продажи падают, договорились о диагностике." {
		t.Fatalf("content %q", summary.ContentText)
	}
	if summary.MeetingType != types.MeetingTypeDiagnostics {
		t.Fatalf("summary type %q", summary.MeetingType)
	}
	if len(summariesRepo.created) != 1 {
		t.Fatalf("created %d summaries", len(summariesRepo.created))
	}
	if got := meetingsRepo.typed[meeting.ID]; got != types.MeetingTypeDiagnostics {
		t.Fatalf("meeting type not updated, got %q", got)
	}
	if !strings.Contains(model.user, *meeting.Transcript) {
		t.Fatalf("transcript not substituted into the prompt: %q", model.user)
	}
	if strings.Contains(model.user, "{transcript}") {
		t.Fatalf("placeholder survived substitution: %q", model.user)
	}
	if !strings.Contains(model.system, "диагностической сессии") {
		t.Fatalf("system prompt must match the meeting type: %q", model.system)
	}
}

func TestSummarizeUsesPromptOverridesFromSettings(t *testing.T) {
	meeting := transcriptMeeting("Обсудили план на квартал.")
	overrides := map[string]string{
		"summary_system_prompt_working_meeting": "Резюмируй строго списком.",
		"summary_user_prompt_working_meeting":   "Текст: {transcript}. Дай список.",
	}
	svc, _, _, model := newSummarizerFixture(t, overrides, meeting)

	if _, err := svc.Summarize(context.Background(), meeting.ID, types.MeetingTypeWorking); err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if model.system != "Резюмируй строго списком." {
		t.Fatalf("system override ignored: %q", model.system)
	}
	if model.user != "Текст: Обсудили план на квартал.. Дай список." {
		t.Fatalf("user override ignored: %q", model.user)
	}
}

func TestSummarizeRejectsUnknownMeetingType(t *testing.T) {
	meeting := transcriptMeeting("Любой транскрипт.")
	svc, _, summariesRepo, model := newSummarizerFixture(t, nil, meeting)

	_, err := svc.Summarize(context.Background(), meeting.ID, "retrospective")
	if !errors.Is(err, pkgerr.ErrInvalidArgument) {
		t.Fatalf("err %v, want ErrInvalidArgument", err)
	}
	if model.calls != 0 || len(summariesRepo.created) != 0 {
		t.Fatal("invalid type must not reach the model or the store")
	}
}

func TestSummarizeRequiresTranscript(t *testing.T) {
	meeting := &types.Meeting{ID: uuid.New(), Title: "Без транскрипта"}
	svc, _, _, model := newSummarizerFixture(t, nil, meeting)

	_, err := svc.Summarize(context.Background(), meeting.ID, types.MeetingTypeIntro)
	if !errors.Is(err, pkgerr.ErrInvalidArgument) {
		t.Fatalf("err %v, want ErrInvalidArgument", err)
	}
	if model.calls != 0 {
		t.Fatal("a meeting without transcript must not reach the model")
	}
}

func TestSummarizeUnknownMeeting(t *testing.T) {
	svc, _, _, _ := newSummarizerFixture(t, nil)

	_, err := svc.Summarize(context.Background(), uuid.New(), types.MeetingTypeWorking)
	if !errors.Is(err, pkgerr.ErrNotFound) {
		t.Fatalf("err %v, want ErrNotFound", err)
	}
}

func TestSummarizeRejectsUserPromptWithoutPlaceholder(t *testing.T) {
	meeting := transcriptMeeting("Транскрипт встречи.")
	overrides := map[string]string{
		"summary_user_prompt_intro": "Составь резюме без текста.",
	}
	svc, _, _, model := newSummarizerFixture(t, overrides, meeting)

	_, err := svc.Summarize(context.Background(), meeting.ID, types.MeetingTypeIntro)
	if !errors.Is(err, pkgerr.ErrInvalidArgument) {
		t.Fatalf("err %v, want ErrInvalidArgument", err)
	}
	if model.calls != 0 {
		t.Fatal("a broken prompt template must not reach the model")
	}
}
