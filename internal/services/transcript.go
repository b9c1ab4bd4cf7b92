package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/advisorkit/consultant-backend/internal/logger"
	pkgerr "github.com/advisorkit/consultant-backend/internal/pkg/errors"
	"github.com/advisorkit/consultant-backend/internal/repos"
	"github.com/advisorkit/consultant-backend/internal/types"
)

// webhookEventCompleted is the only Fireflies event that triggers ingestion.
const webhookEventCompleted = "Transcription completed"

// TranscriptService turns Fireflies webhook deliveries into stored, indexed
// meetings.
type TranscriptService interface {
	ProcessWebhook(ctx context.Context, eventType, transcriptID string) (*WebhookResult, error)
}

type WebhookResult struct {
	Status    string     `json:"status"`
	MeetingID *uuid.UUID `json:"meeting_id,omitempty"`
	Chunks    int        `json:"chunks,omitempty"`
}

type transcriptService struct {
	fireflies FirefliesClient
	meetings  repos.MeetingRepo
	indexer   IndexingService
	log       *logger.Logger
}

func NewTranscriptService(
	fireflies FirefliesClient,
	meetings repos.MeetingRepo,
	indexer IndexingService,
	log *logger.Logger,
) TranscriptService {
	return &transcriptService{
		fireflies: fireflies,
		meetings:  meetings,
		indexer:   indexer,
		log:       log.With("service", "TranscriptService"),
	}
}

// ProcessWebhook ingests one delivery. Events other than transcription
// completion are acknowledged and ignored. Redelivery of a known fireflies id
// is a no-op returning the existing meeting.
func (s *transcriptService) ProcessWebhook(ctx context.Context, eventType, transcriptID string) (*WebhookResult, error) {
	if eventType != webhookEventCompleted {
		s.log.Debug("ignoring webhook event", "event_type", eventType)
		return &WebhookResult{Status: "ignored"}, nil
	}
	if strings.TrimSpace(transcriptID) == "" {
		return nil, fmt.Errorf("%w: missing meetingId", pkgerr.ErrInvalidArgument)
	}

	existing, err := s.meetings.GetByFirefliesID(ctx, nil, transcriptID)
	if err == nil {
		s.log.Info("transcript already ingested", "fireflies_id", transcriptID, "meeting_id", existing.ID.String())
		return &WebhookResult{Status: "duplicate", MeetingID: &existing.ID}, nil
	}
	if !errors.Is(err, pkgerr.ErrNotFound) {
		return nil, err
	}

	transcript, err := s.fireflies.GetTranscript(ctx, transcriptID)
	if err != nil {
		return nil, fmt.Errorf("fetch transcript %s: %w", transcriptID, err)
	}

	text := transcript.FormatTranscript()
	if text == "" {
		s.log.Warn("transcript has no sentences", "fireflies_id", transcriptID)
		return &WebhookResult{Status: "empty"}, nil
	}

	title := strings.TrimSpace(transcript.Title)
	if title == "" {
		title = "Untitled meeting"
	}

	meeting := &types.Meeting{
		FirefliesID: &transcriptID,
		Title:       title,
		Date:        transcript.Date,
		Transcript:  &text,
	}
	if _, err := s.meetings.Create(ctx, nil, meeting); err != nil {
		// a concurrent delivery may have won the unique-index race
		if again, lookupErr := s.meetings.GetByFirefliesID(ctx, nil, transcriptID); lookupErr == nil {
			return &WebhookResult{Status: "duplicate", MeetingID: &again.ID}, nil
		}
		return nil, fmt.Errorf("save meeting: %w", err)
	}

	chunks, err := s.indexer.IndexMeeting(ctx, meeting.ID, false)
	if err != nil {
		// the meeting is saved; indexing can be retried via POST /api/rag/index
		s.log.Error("indexing newly ingested meeting failed",
			"meeting_id", meeting.ID.String(),
			"error", err.Error(),
		)
		return &WebhookResult{Status: "saved_unindexed", MeetingID: &meeting.ID}, nil
	}

	s.log.Info("transcript ingested",
		"fireflies_id", transcriptID,
		"meeting_id", meeting.ID.String(),
		"chunks", chunks,
	)
	return &WebhookResult{Status: "ok", MeetingID: &meeting.ID, Chunks: chunks}, nil
}
