package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/advisorkit/consultant-backend/internal/logger"
	pkgerr "github.com/advisorkit/consultant-backend/internal/pkg/errors"
	"github.com/advisorkit/consultant-backend/internal/repos"
	"github.com/advisorkit/consultant-backend/internal/types"
)

// Per-type prompt overrides live in the settings table under these key
// prefixes, suffixed with the meeting type. The user template must contain
// summaryTranscriptPlaceholder.
const (
	SettingSummarySystemPromptPrefix = "summary_system_prompt_"
	SettingSummaryUserPromptPrefix   = "summary_user_prompt_"

	summaryTranscriptPlaceholder = "{transcript}"
)

// defaultSummarySystemPrompts and defaultSummaryUserPrompts cover every valid
// meeting type, so an unset setting never blocks generation.
var defaultSummarySystemPrompts = map[string]string{
	types.MeetingTypeWorking:     "Ты — ассистент бизнес-консультанта. Составь структурированное резюме рабочей встречи с клиентом: обсуждённые вопросы, принятые решения, договорённости и следующие шаги. Пиши по-русски, кратко и по делу.",
	types.MeetingTypeDiagnostics: "Ты — ассистент бизнес-консультанта. Составь резюме диагностической сессии: текущее состояние бизнеса клиента, выявленные проблемы и узкие места, гипотезы причин и рекомендации. Пиши по-русски, кратко и по делу.",
	types.MeetingTypeTraction:    "Ты — ассистент бизнес-консультанта. Составь резюме трекшн-встречи: статус по задачам прошлого периода, достигнутые результаты, отклонения от плана и задачи на следующий период. Пиши по-русски, кратко и по делу.",
	types.MeetingTypeIntro:       "Ты — ассистент бизнес-консультанта. Составь резюме ознакомительной встречи: кто клиент, его бизнес, ключевой запрос и ожидания, договорённости о дальнейшей работе. Пиши по-русски, кратко и по делу.",
}

var defaultSummaryUserPrompts = map[string]string{
	types.MeetingTypeWorking:     "Транскрипт встречи:\n\n{transcript}\n\nСоставь резюме.",
	types.MeetingTypeDiagnostics: "Транскрипт диагностической сессии:\n\n{transcript}\n\nСоставь резюме.",
	types.MeetingTypeTraction:    "Транскрипт трекшн-встречи:\n\n{transcript}\n\nСоставь резюме.",
	types.MeetingTypeIntro:       "Транскрипт ознакомительной встречи:\n\n{transcript}\n\nСоставь резюме.",
}

// SummarizerService generates a typed summary for a meeting transcript and
// stores it. Storing the summary and tagging the meeting with the type happen
// in one transaction.
type SummarizerService interface {
	Summarize(ctx context.Context, meetingID uuid.UUID, meetingType string) (*types.Summary, error)
}

type summarizerService struct {
	db        *gorm.DB
	meetings  repos.MeetingRepo
	summaries repos.SummaryRepo
	model     ChatModel
	settings  SettingsService
	log       *logger.Logger
}

func NewSummarizerService(
	db *gorm.DB,
	meetings repos.MeetingRepo,
	summaries repos.SummaryRepo,
	model ChatModel,
	settings SettingsService,
	log *logger.Logger,
) SummarizerService {
	return &summarizerService{
		db:        db,
		meetings:  meetings,
		summaries: summaries,
		model:     model,
		settings:  settings,
		log:       log.With("service", "SummarizerService"),
	}
}

func (s *summarizerService) Summarize(ctx context.Context, meetingID uuid.UUID, meetingType string) (*types.Summary, error) {
	if !types.ValidMeetingType(meetingType) {
		return nil, fmt.Errorf("%w: unknown meeting type %q", pkgerr.ErrInvalidArgument, meetingType)
	}

	meeting, err := s.meetings.GetByID(ctx, nil, meetingID)
	if err != nil {
		return nil, err
	}
	if meeting.Transcript == nil || strings.TrimSpace(*meeting.Transcript) == "" {
		return nil, fmt.Errorf("%w: meeting %s has no transcript", pkgerr.ErrInvalidArgument, meetingID)
	}

	system, user, err := s.resolvePrompts(ctx, meetingType)
	if err != nil {
		return nil, err
	}
	user = strings.ReplaceAll(user, summaryTranscriptPlaceholder, *meeting.Transcript)

	text, err := s.model.Generate(ctx, system, user)
	if err != nil {
		return nil, fmt.Errorf("generate summary for meeting %s: %w", meetingID, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("model returned an empty summary for meeting %s", meetingID)
	}

	summary := &types.Summary{
		MeetingID:   meetingID,
		MeetingType: meetingType,
		ContentText: text,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.summaries.Create(ctx, tx, summary); err != nil {
			return err
		}
		return s.meetings.UpdateType(ctx, tx, meetingID, meetingType)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("summary generated",
		"meeting_id", meetingID.String(),
		"meeting_type", meetingType,
		"chars", len(text),
	)
	return summary, nil
}

// resolvePrompts prefers per-type prompt settings over the built-in defaults.
func (s *summarizerService) resolvePrompts(ctx context.Context, meetingType string) (string, string, error) {
	system := defaultSummarySystemPrompts[meetingType]
	user := defaultSummaryUserPrompts[meetingType]

	if val, ok, err := s.settings.Get(ctx, SettingSummarySystemPromptPrefix+meetingType); err != nil {
		return "", "", err
	} else if ok && strings.TrimSpace(val) != "" {
		system = val
	}
	if val, ok, err := s.settings.Get(ctx, SettingSummaryUserPromptPrefix+meetingType); err != nil {
		return "", "", err
	} else if ok && strings.TrimSpace(val) != "" {
		user = val
	}
	if !strings.Contains(user, summaryTranscriptPlaceholder) {
		return "", "", fmt.Errorf("%w: user prompt for %s lacks %s", pkgerr.ErrInvalidArgument, meetingType, summaryTranscriptPlaceholder)
	}
	return system, user, nil
}
