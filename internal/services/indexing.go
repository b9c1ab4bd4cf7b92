package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/advisorkit/consultant-backend/internal/logger"
	"github.com/advisorkit/consultant-backend/internal/repos"
	"github.com/advisorkit/consultant-backend/internal/types"
)

// IndexingService chunks meeting transcripts, embeds the chunks and stores
// the vectors. Replacing a meeting's index is atomic: old rows are deleted
// and new rows inserted inside one transaction.
type IndexingService interface {
	IndexMeeting(ctx context.Context, meetingID uuid.UUID, force bool) (int, error)
	IndexAll(ctx context.Context, force bool) (*IndexRunReport, error)
	ReindexMeeting(ctx context.Context, meetingID uuid.UUID) (int, error)
	DeleteMeetingIndex(ctx context.Context, meetingID uuid.UUID) (int64, error)
	Stats(ctx context.Context) (*repos.IndexStats, error)
}

// indexAllConcurrency bounds parallel meeting indexing so bulk runs do not
// hammer the embeddings API.
const indexAllConcurrency = 4

type IndexRunReport struct {
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	Chunks  int `json:"chunks"`
}

type indexingService struct {
	db         *gorm.DB
	meetings   repos.MeetingRepo
	embeddings repos.MeetingEmbeddingRepo
	embedder   EmbeddingClient
	chunker    *Chunker
	log        *logger.Logger
}

func NewIndexingService(
	db *gorm.DB,
	meetings repos.MeetingRepo,
	embeddings repos.MeetingEmbeddingRepo,
	embedder EmbeddingClient,
	chunker *Chunker,
	log *logger.Logger,
) IndexingService {
	return &indexingService{
		db:         db,
		meetings:   meetings,
		embeddings: embeddings,
		embedder:   embedder,
		chunker:    chunker,
		log:        log.With("service", "IndexingService"),
	}
}

// IndexMeeting indexes one meeting and returns the number of chunks written.
// An already indexed meeting is skipped (returns 0) unless force is set, in
// which case the old index is replaced.
func (s *indexingService) IndexMeeting(ctx context.Context, meetingID uuid.UUID, force bool) (int, error) {
	meeting, err := s.meetings.GetByID(ctx, nil, meetingID)
	if err != nil {
		return 0, err
	}
	if meeting.Transcript == nil || *meeting.Transcript == "" {
		return 0, fmt.Errorf("meeting %s has no transcript", meetingID)
	}

	if !force {
		indexed, err := s.embeddings.HasAny(ctx, nil, meetingID)
		if err != nil {
			return 0, err
		}
		if indexed {
			s.log.Debug("meeting already indexed, skipping", "meeting_id", meetingID.String())
			return 0, nil
		}
	}

	chunks := s.chunker.Split(*meeting.Transcript)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("meeting %s transcript produced no chunks", meetingID)
	}

	vectors, err := s.embedder.Embed(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed meeting %s: %w", meetingID, err)
	}

	rows := make([]*types.MeetingEmbedding, len(chunks))
	for i, chunk := range chunks {
		rows[i] = &types.MeetingEmbedding{
			MeetingID:  meetingID,
			ChunkText:  chunk,
			ChunkIndex: i,
			Embedding:  pgvector.NewVector(vectors[i]),
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.embeddings.DeleteByMeeting(ctx, tx, meetingID); err != nil {
			return err
		}
		return s.embeddings.CreateBatch(ctx, tx, rows)
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("meeting indexed",
		"meeting_id", meetingID.String(),
		"chunks", len(rows),
		"forced", force,
	)
	return len(rows), nil
}

// IndexAll walks every meeting that has a transcript, a few at a time. A
// failure on one meeting is counted and logged but does not stop the run.
func (s *indexingService) IndexAll(ctx context.Context, force bool) (*IndexRunReport, error) {
	meetings, err := s.meetings.ListWithTranscripts(ctx, nil)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	report := &IndexRunReport{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(indexAllConcurrency)
	for _, m := range meetings {
		m := m
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			n, err := s.IndexMeeting(gctx, m.ID, force)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				s.log.Error("indexing meeting failed", "meeting_id", m.ID.String(), "error", err.Error())
				return nil
			}
			if n == 0 {
				report.Skipped++
				return nil
			}
			report.Indexed++
			report.Chunks += n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	return report, nil
}

// ReindexMeeting replaces a meeting's index regardless of current state.
func (s *indexingService) ReindexMeeting(ctx context.Context, meetingID uuid.UUID) (int, error) {
	return s.IndexMeeting(ctx, meetingID, true)
}

func (s *indexingService) DeleteMeetingIndex(ctx context.Context, meetingID uuid.UUID) (int64, error) {
	return s.embeddings.DeleteByMeeting(ctx, nil, meetingID)
}

func (s *indexingService) Stats(ctx context.Context) (*repos.IndexStats, error) {
	return s.embeddings.Stats(ctx, nil)
}
