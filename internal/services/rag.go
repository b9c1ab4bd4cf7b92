package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/advisorkit/consultant-backend/internal/logger"
	pkgerr "github.com/advisorkit/consultant-backend/internal/pkg/errors"
	"github.com/advisorkit/consultant-backend/internal/repos"
)

// apologyAnswer is returned verbatim when neither corpus yields a hit. The
// generative model is not invoked in that case.
const apologyAnswer = "К сожалению, я не нашёл релевантной информации по вашему вопросу."

const defaultSystemPrompt = `Ты — ассистент бизнес-консультанта. Отвечай на вопросы строго на основе предоставленных транскриптов встреч и переписок в Telegram.

ПРАВИЛА ОТВЕТА:
1. Давай КОНКРЕТНЫЕ ответы с деталями из источников:
   - Цитируй ключевые фразы участников (в кавычках)
   - Указывай даты встреч и сообщений
   - Перечисляй конкретные решения, договорённости, цифры, метрики
   - Называй имена участников, если они упоминаются в контексте
2. Структурируй ответ: используй нумерованные списки для перечислений
3. Для каждого тезиса указывай источник — название встречи и дату или название чата
4. Старайся использовать каждый отдельный источник из контекста, когда он относится к вопросу
5. Если информации недостаточно для полного ответа — честно скажи, чего не хватает
6. НЕ придумывай и НЕ додумывай информацию, которой нет в контексте
7. Отвечай на языке вопроса`

type AskRequest struct {
	Question    string     `json:"question"`
	ClientID    *uuid.UUID `json:"client_id,omitempty"`
	NumChunks   *int       `json:"num_chunks,omitempty"`
	SearchChats *bool      `json:"search_chats,omitempty"`
}

type MeetingSource struct {
	MeetingID    uuid.UUID `json:"meeting_id"`
	MeetingTitle string    `json:"meeting_title"`
	MeetingDate  *string   `json:"meeting_date,omitempty"`
	Similarity   float64   `json:"similarity"`
}

type ChatSource struct {
	ChatID      int64   `json:"chat_id"`
	ChatTitle   string  `json:"chat_title"`
	ClientName  *string `json:"client_name,omitempty"`
	MessageDate string  `json:"message_date"`
	SenderName  *string `json:"sender_name,omitempty"`
	Similarity  float64 `json:"similarity"`
}

type AskResponse struct {
	Answer       string          `json:"answer"`
	Sources      []MeetingSource `json:"sources"`
	ChatSources  []ChatSource    `json:"chat_sources"`
	ClientFilter string          `json:"client_filter,omitempty"`
	DateFilter   string          `json:"date_filter,omitempty"`
}

// RAGService answers free-form questions over the meeting and chat corpora.
type RAGService interface {
	Ask(ctx context.Context, req AskRequest) (*AskResponse, error)
	GetMeetingContext(ctx context.Context, meetingID uuid.UUID, question string) (string, error)
}

type ragService struct {
	meetings   repos.MeetingRepo
	chatRooms  repos.ChatRoomRepo
	embeddings repos.MeetingEmbeddingRepo
	search     repos.SearchRepo
	embedder   EmbeddingClient
	model      ChatModel
	settings   SettingsService
	now        func() time.Time
	log        *logger.Logger
}

func NewRAGService(
	meetings repos.MeetingRepo,
	chatRooms repos.ChatRoomRepo,
	embeddings repos.MeetingEmbeddingRepo,
	search repos.SearchRepo,
	embedder EmbeddingClient,
	model ChatModel,
	settings SettingsService,
	log *logger.Logger,
) RAGService {
	return &ragService{
		meetings:   meetings,
		chatRooms:  chatRooms,
		embeddings: embeddings,
		search:     search,
		embedder:   embedder,
		model:      model,
		settings:   settings,
		now:        time.Now,
		log:        log.With("service", "RAGService"),
	}
}

func (s *ragService) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", pkgerr.ErrInvalidArgument)
	}

	queryVec, err := s.embedder.EmbedOne(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	titleFilter := s.inferTitleFilter(ctx, question)
	dateRange := parseDateRange(question, s.now())
	if titleFilter != "" {
		s.log.Info("inferred client filter", "filter", string(titleFilter))
	}
	if dateRange != nil {
		s.log.Info("inferred date filter", "period", dateRange.Description)
	}

	meetingHits, err := s.searchMeetingsCascade(ctx, queryVec, req, titleFilter, dateRange)
	if err != nil {
		return nil, err
	}

	var chatHits []repos.ChatHit
	if s.shouldSearchChats(ctx, req) {
		chatHits, err = s.searchChatsCascade(ctx, queryVec, question, dateRange)
		if err != nil {
			// chat corpus is secondary; meeting hits alone still make an answer
			s.log.Error("chat search failed", "error", err.Error())
			chatHits = nil
		}
	}

	resp := &AskResponse{
		Sources:      meetingSources(meetingHits),
		ChatSources:  chatSources(chatHits),
		ClientFilter: string(titleFilter),
	}
	if dateRange != nil {
		resp.DateFilter = dateRange.Description
	}

	if len(meetingHits) == 0 && len(chatHits) == 0 {
		resp.Answer = apologyAnswer
		return resp, nil
	}

	answer, err := s.generate(ctx, question, meetingHits, chatHits, titleFilter, dateRange)
	if err != nil {
		return nil, err
	}
	resp.Answer = answer
	return resp, nil
}

// searchMeetingsCascade walks the relaxation ladder: full filters, then
// without the date range, then without the title filter at tighter
// parameters. Unfiltered questions go straight to the tight parameters.
func (s *ragService) searchMeetingsCascade(
	ctx context.Context,
	queryVec []float32,
	req AskRequest,
	titleFilter repos.TitleFilter,
	dateRange *repos.DateRange,
) ([]repos.MeetingHit, error) {
	hasFilters := req.ClientID != nil || titleFilter != "" || dateRange != nil

	params := repos.MeetingSearchParams{
		MaxPerGroup:   2,
		MaxTotal:      20,
		MinSimilarity: 0.15,
		ClientID:      req.ClientID,
		TitleFilter:   titleFilter,
		DateRange:     dateRange,
	}
	if !hasFilters {
		params.MaxPerGroup, params.MaxTotal, params.MinSimilarity = 1, 15, 0.20
	}
	if req.NumChunks != nil && *req.NumChunks > 0 {
		params.MaxTotal = *req.NumChunks
	}

	hits, err := s.search.SearchMeetings(ctx, queryVec, params)
	if err != nil {
		return nil, fmt.Errorf("meeting search: %w", err)
	}
	if !hasFilters || len(hits) >= 3 {
		return hits, nil
	}

	if dateRange != nil {
		s.log.Info("few meeting hits, dropping date filter", "hits", len(hits))
		params.DateRange = nil
		hits, err = s.search.SearchMeetings(ctx, queryVec, params)
		if err != nil {
			return nil, fmt.Errorf("meeting search: %w", err)
		}
		if len(hits) >= 3 {
			return hits, nil
		}
	}

	if titleFilter != "" {
		s.log.Info("few meeting hits, dropping title filter", "hits", len(hits))
		params.TitleFilter = ""
		params.MaxPerGroup, params.MaxTotal, params.MinSimilarity = 1, 15, 0.20
		if req.NumChunks != nil && *req.NumChunks > 0 {
			params.MaxTotal = *req.NumChunks
		}
		hits, err = s.search.SearchMeetings(ctx, queryVec, params)
		if err != nil {
			return nil, fmt.Errorf("meeting search: %w", err)
		}
	}
	return hits, nil
}

func (s *ragService) searchChatsCascade(
	ctx context.Context,
	queryVec []float32,
	question string,
	dateRange *repos.DateRange,
) ([]repos.ChatHit, error) {
	clientFilter := s.inferChatClientFilter(ctx, question)
	hasFilters := clientFilter != "" || dateRange != nil

	params := repos.ChatSearchParams{
		MaxPerGroup:   3,
		MaxTotal:      15,
		MinSimilarity: 0.15,
		ClientName:    clientFilter,
		DateRange:     dateRange,
	}
	if !hasFilters {
		params.MaxPerGroup, params.MaxTotal, params.MinSimilarity = 2, 10, 0.20
	}

	hits, err := s.search.SearchChats(ctx, queryVec, params)
	if err != nil {
		return nil, err
	}
	if hasFilters && len(hits) < 2 && dateRange != nil {
		s.log.Info("few chat hits, dropping date filter", "hits", len(hits))
		params.DateRange = nil
		return s.search.SearchChats(ctx, queryVec, params)
	}
	return hits, nil
}

func (s *ragService) shouldSearchChats(ctx context.Context, req AskRequest) bool {
	if req.SearchChats != nil {
		return *req.SearchChats
	}
	enabled, err := s.settings.GetBool(ctx, SettingRAGSearchChats, false)
	if err != nil {
		s.log.Warn("reading chat search flag failed", "error", err.Error())
		return false
	}
	return enabled
}

// inferTitleFilter matches known client names, taken from meeting-title
// prefixes, against the question.
func (s *ragService) inferTitleFilter(ctx context.Context, question string) repos.TitleFilter {
	titles, err := s.meetings.DistinctTitles(ctx, nil)
	if err != nil {
		s.log.Warn("loading meeting titles failed", "error", err.Error())
		return ""
	}
	names := make(map[string]struct{}, len(titles))
	for _, title := range titles {
		name := strings.TrimSpace(strings.SplitN(title, " - ", 2)[0])
		if len([]rune(name)) > 2 {
			names[name] = struct{}{}
		}
	}
	return repos.TitleFilter(bestClientMatch(question, names))
}

func (s *ragService) inferChatClientFilter(ctx context.Context, question string) repos.ClientNameFilter {
	clientNames, err := s.chatRooms.DistinctClientNames(ctx, nil)
	if err != nil {
		s.log.Warn("loading chat client names failed", "error", err.Error())
		return ""
	}
	names := make(map[string]struct{}, len(clientNames))
	for _, name := range clientNames {
		name = strings.TrimSpace(name)
		if len([]rune(name)) > 2 {
			names[name] = struct{}{}
		}
	}
	return repos.ClientNameFilter(bestClientMatch(question, names))
}

// bestClientMatch returns the candidate whose lowercased form appears in the
// question with the longest match. Candidates that do not appear whole still
// match through any of their words longer than 3 runes.
func bestClientMatch(question string, candidates map[string]struct{}) string {
	questionLower := strings.ToLower(question)

	best := ""
	bestLen := 0
	for name := range candidates {
		nameLower := strings.ToLower(name)
		if strings.Contains(questionLower, nameLower) {
			if n := len([]rune(nameLower)); n > bestLen {
				best, bestLen = name, n
			}
			continue
		}
		for _, word := range strings.Fields(nameLower) {
			if len([]rune(word)) > 3 && strings.Contains(questionLower, word) {
				if n := len([]rune(word)); n > bestLen {
					best, bestLen = name, n
				}
			}
		}
	}
	return best
}

func (s *ragService) generate(
	ctx context.Context,
	question string,
	meetingHits []repos.MeetingHit,
	chatHits []repos.ChatHit,
	titleFilter repos.TitleFilter,
	dateRange *repos.DateRange,
) (string, error) {
	system := defaultSystemPrompt
	if custom, ok, err := s.settings.Get(ctx, SettingRAGSystemPrompt); err == nil && ok && strings.TrimSpace(custom) != "" {
		system = custom
	}
	if note := filterNote(titleFilter, dateRange); note != "" {
		system += "\n\n" + note
	}

	user := fmt.Sprintf(`Контекст из встреч и чатов:

%s

---

Вопрос: %s

Дай подробный ответ с конкретными деталями из контекста:`, assembleContext(meetingHits, chatHits), question)

	return s.model.Generate(ctx, system, user)
}

func filterNote(titleFilter repos.TitleFilter, dateRange *repos.DateRange) string {
	var parts []string
	if titleFilter != "" {
		parts = append(parts, fmt.Sprintf("Важно: пользователь спрашивает конкретно про клиента/компанию «%s». Фокусируйся ТОЛЬКО на информации об этом клиенте. Игнорируй данные о других клиентах.", titleFilter))
	}
	if dateRange != nil {
		parts = append(parts, fmt.Sprintf("Вопрос касается периода «%s». Используй только информацию из этого периода.", dateRange.Description))
	}
	return strings.Join(parts, "\n")
}

// assembleContext renders meeting hits grouped by meeting and chat hits
// grouped by chat, in globally-ranked first-seen order.
func assembleContext(meetingHits []repos.MeetingHit, chatHits []repos.ChatHit) string {
	var sections []string
	if block := meetingContextBlock(meetingHits); block != "" {
		sections = append(sections, "ИНФОРМАЦИЯ ИЗ ВСТРЕЧ:\n\n"+block)
	}
	if block := chatContextBlock(chatHits); block != "" {
		sections = append(sections, "ИНФОРМАЦИЯ ИЗ TELEGRAM-ЧАТОВ:\n\n"+block)
	}
	return strings.Join(sections, "\n\n---\n\n")
}

func meetingContextBlock(hits []repos.MeetingHit) string {
	if len(hits) == 0 {
		return ""
	}
	order := make([]uuid.UUID, 0, len(hits))
	groups := make(map[uuid.UUID][]repos.MeetingHit)
	for _, h := range hits {
		if _, seen := groups[h.MeetingID]; !seen {
			order = append(order, h.MeetingID)
		}
		groups[h.MeetingID] = append(groups[h.MeetingID], h)
	}

	var blocks []string
	for i, id := range order {
		group := groups[id]
		header := fmt.Sprintf("[Встреча %d: %s", i+1, group[0].MeetingTitle)
		if group[0].MeetingDate != nil {
			header += fmt.Sprintf(" (%s)", group[0].MeetingDate.Format("2006-01-02"))
		}
		header += "]"

		chunks := make([]string, 0, len(group))
		for _, h := range group {
			chunks = append(chunks, h.ChunkText)
		}
		// the first chunk sits directly under the banner, blank lines only
		// separate chunks
		blocks = append(blocks, header+"\n"+strings.Join(chunks, "\n\n"))
	}
	return strings.Join(blocks, "\n\n")
}

func chatContextBlock(hits []repos.ChatHit) string {
	if len(hits) == 0 {
		return ""
	}
	order := make([]string, 0, len(hits))
	groups := make(map[string][]repos.ChatHit)
	for _, h := range hits {
		if _, seen := groups[h.ChatTitle]; !seen {
			order = append(order, h.ChatTitle)
		}
		groups[h.ChatTitle] = append(groups[h.ChatTitle], h)
	}

	var blocks []string
	for i, title := range order {
		group := groups[title]
		client := "Неизвестный"
		if group[0].ClientName != nil && *group[0].ClientName != "" {
			client = *group[0].ClientName
		}
		lines := []string{fmt.Sprintf("[Telegram чат %d: %s (клиент: %s)]", i+1, title, client)}
		for _, h := range group {
			sender := "Неизвестный"
			if h.SenderName != nil && *h.SenderName != "" {
				sender = *h.SenderName
			}
			lines = append(lines, fmt.Sprintf("[%s, %s]: %s", h.MessageDate.Format("2006-01-02"), sender, h.ChunkText))
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

func meetingSources(hits []repos.MeetingHit) []MeetingSource {
	out := make([]MeetingSource, 0, len(hits))
	for _, h := range hits {
		src := MeetingSource{
			MeetingID:    h.MeetingID,
			MeetingTitle: h.MeetingTitle,
			Similarity:   h.Similarity,
		}
		if h.MeetingDate != nil {
			d := h.MeetingDate.Format("2006-01-02")
			src.MeetingDate = &d
		}
		out = append(out, src)
	}
	return out
}

func chatSources(hits []repos.ChatHit) []ChatSource {
	out := make([]ChatSource, 0, len(hits))
	for _, h := range hits {
		out = append(out, ChatSource{
			ChatID:      h.ChatID,
			ChatTitle:   h.ChatTitle,
			ClientName:  h.ClientName,
			MessageDate: h.MessageDate.Format("2006-01-02"),
			SenderName:  h.SenderName,
			Similarity:  h.Similarity,
		})
	}
	return out
}

// GetMeetingContext answers a question against the first chunks of one
// meeting, without vector search.
func (s *ragService) GetMeetingContext(ctx context.Context, meetingID uuid.UUID, question string) (string, error) {
	chunks, err := s.embeddings.GetChunks(ctx, nil, meetingID, 10)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return "Эта встреча не проиндексирована.", nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.ChunkText
	}

	if strings.TrimSpace(question) == "" {
		question = "Расскажи основное содержание"
	}

	user := fmt.Sprintf(`Транскрипт встречи:

%s

---

%s`, strings.Join(texts, "\n\n"), question)

	return s.model.Generate(ctx, "Ты — ассистент для анализа транскриптов встреч. Отвечай кратко и по делу.", user)
}
