package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/advisorkit/consultant-backend/internal/repos"
	"github.com/advisorkit/consultant-backend/internal/types"
)

type stubMeetings struct {
	repos.MeetingRepo
	titles []string
}

func (s *stubMeetings) DistinctTitles(ctx context.Context, tx *gorm.DB) ([]string, error) {
	return s.titles, nil
}

type stubChatRooms struct {
	repos.ChatRoomRepo
	clientNames []string
}

func (s *stubChatRooms) DistinctClientNames(ctx context.Context, tx *gorm.DB) ([]string, error) {
	return s.clientNames, nil
}

type stubEmbeddings struct {
	repos.MeetingEmbeddingRepo
	chunks []*types.MeetingEmbedding
}

func (s *stubEmbeddings) GetChunks(ctx context.Context, tx *gorm.DB, meetingID uuid.UUID, limit int) ([]*types.MeetingEmbedding, error) {
	if limit < len(s.chunks) {
		return s.chunks[:limit], nil
	}
	return s.chunks, nil
}

type fakeSearch struct {
	meetingParams  []repos.MeetingSearchParams
	meetingResults [][]repos.MeetingHit
	chatParams     []repos.ChatSearchParams
	chatResults    [][]repos.ChatHit
}

func (f *fakeSearch) SearchMeetings(ctx context.Context, vec []float32, p repos.MeetingSearchParams) ([]repos.MeetingHit, error) {
	f.meetingParams = append(f.meetingParams, p)
	if len(f.meetingResults) == 0 {
		return nil, nil
	}
	hits := f.meetingResults[0]
	if len(f.meetingResults) > 1 {
		f.meetingResults = f.meetingResults[1:]
	}
	return hits, nil
}

func (f *fakeSearch) SearchChats(ctx context.Context, vec []float32, p repos.ChatSearchParams) ([]repos.ChatHit, error) {
	f.chatParams = append(f.chatParams, p)
	if len(f.chatResults) == 0 {
		return nil, nil
	}
	hits := f.chatResults[0]
	if len(f.chatResults) > 1 {
		f.chatResults = f.chatResults[1:]
	}
	return hits, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i := range out {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func (f fakeEmbedder) EmbedOne(ctx context.Context, input string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

type fakeModel struct {
	calls  int
	system string
	user   string
	answer string
}

func (f *fakeModel) Generate(ctx context.Context, system, user string) (string, error) {
	f.calls++
	f.system, f.user = system, user
	if f.answer == "" {
		return "ответ модели", nil
	}
	return f.answer, nil
}

type fakeSettings struct {
	values map[string]string
}

func (f *fakeSettings) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeSettings) GetBool(ctx context.Context, key string, def bool) (bool, error) {
	v, ok := f.values[key]
	if !ok {
		return def, nil
	}
	return v == "true", nil
}

func (f *fakeSettings) Set(ctx context.Context, key, value string, description *string) error {
	if f.values == nil {
		f.values = map[string]string{}
	}
	f.values[key] = value
	return nil
}

func (f *fakeSettings) List(ctx context.Context) ([]*types.Setting, error) { return nil, nil }

func newTestRAG(t *testing.T, search *fakeSearch, model *fakeModel, settings *fakeSettings, titles, clientNames []string) RAGService {
	t.Helper()
	if settings == nil {
		settings = &fakeSettings{}
	}
	svc := NewRAGService(
		&stubMeetings{titles: titles},
		&stubChatRooms{clientNames: clientNames},
		&stubEmbeddings{},
		search,
		fakeEmbedder{},
		model,
		settings,
		testLogger(t),
	).(*ragService)
	svc.now = func() time.Time { return time.Date(2026, time.February, 10, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestAskReturnsApologyWhenNothingFound(t *testing.T) {
	search := &fakeSearch{}
	model := &fakeModel{}
	svc := newTestRAG(t, search, model, nil, nil, nil)

	resp, err := svc.Ask(context.Background(), AskRequest{Question: "что с воронкой продаж?"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if resp.Answer != apologyAnswer {
		t.Fatalf("answer %q, want apology", resp.Answer)
	}
	if len(resp.Sources) != 0 || len(resp.ChatSources) != 0 {
		t.Fatalf("expected empty sources, got %d/%d", len(resp.Sources), len(resp.ChatSources))
	}
	if model.calls != 0 {
		t.Fatal("model must not be invoked on empty retrieval")
	}
}

func TestAskUnfilteredUsesTightParameters(t *testing.T) {
	meetingID := uuid.New()
	search := &fakeSearch{
		meetingResults: [][]repos.MeetingHit{{
			{MeetingID: meetingID, MeetingTitle: "Ретро", ChunkText: "обсудили план", Similarity: 0.7},
		}},
	}
	model := &fakeModel{}
	svc := newTestRAG(t, search, model, nil, nil, nil)

	resp, err := svc.Ask(context.Background(), AskRequest{Question: "что решили?"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(search.meetingParams) != 1 {
		t.Fatalf("expected single search, got %d", len(search.meetingParams))
	}
	p := search.meetingParams[0]
	if p.MaxPerGroup != 1 || p.MaxTotal != 15 || p.MinSimilarity != 0.20 {
		t.Fatalf("unfiltered params %+v", p)
	}
	if model.calls != 1 {
		t.Fatal("model must be invoked when hits exist")
	}
	if len(resp.Sources) != 1 || resp.Sources[0].MeetingTitle != "Ретро" {
		t.Fatalf("sources %+v", resp.Sources)
	}
}

func TestAskCascadeDropsDateThenTitle(t *testing.T) {
	search := &fakeSearch{
		meetingResults: [][]repos.MeetingHit{
			{}, // filtered attempt: nothing
			{{MeetingID: uuid.New(), MeetingTitle: "Ромашка - созвон", ChunkText: "x", Similarity: 0.5}}, // date dropped: still < 3
			{
				{MeetingID: uuid.New(), MeetingTitle: "a", ChunkText: "x", Similarity: 0.5},
				{MeetingID: uuid.New(), MeetingTitle: "b", ChunkText: "y", Similarity: 0.4},
			},
		},
	}
	model := &fakeModel{}
	svc := newTestRAG(t, search, model, nil, []string{"Ромашка - стратегическая сессия"}, nil)

	_, err := svc.Ask(context.Background(), AskRequest{Question: "что обсуждали с ромашка в Q4 2025?"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(search.meetingParams) != 3 {
		t.Fatalf("expected 3 cascade attempts, got %d", len(search.meetingParams))
	}

	first := search.meetingParams[0]
	if first.MaxPerGroup != 2 || first.MaxTotal != 20 || first.MinSimilarity != 0.15 {
		t.Fatalf("filtered params %+v", first)
	}
	if first.TitleFilter == "" || first.DateRange == nil {
		t.Fatalf("first attempt must carry both filters: %+v", first)
	}

	second := search.meetingParams[1]
	if second.DateRange != nil {
		t.Fatal("second attempt must drop the date range")
	}
	if second.TitleFilter == "" {
		t.Fatal("second attempt must keep the title filter")
	}

	third := search.meetingParams[2]
	if third.TitleFilter != "" || third.DateRange != nil {
		t.Fatalf("third attempt must be unfiltered: %+v", third)
	}
	if third.MaxPerGroup != 1 || third.MaxTotal != 15 || third.MinSimilarity != 0.20 {
		t.Fatalf("third attempt params %+v", third)
	}
}

func TestAskInfersClientFromTitleWord(t *testing.T) {
	search := &fakeSearch{
		meetingResults: [][]repos.MeetingHit{{
			{MeetingID: uuid.New(), MeetingTitle: "ООО Ромашка - договор", ChunkText: "z", Similarity: 0.6},
			{MeetingID: uuid.New(), MeetingTitle: "ООО Ромашка - итоги", ChunkText: "w", Similarity: 0.5},
			{MeetingID: uuid.New(), MeetingTitle: "ООО Ромашка - планы", ChunkText: "v", Similarity: 0.4},
		}},
	}
	model := &fakeModel{}
	svc := newTestRAG(t, search, model, nil, []string{"ООО Ромашка - договор", "Acme - sync"}, nil)

	resp, err := svc.Ask(context.Background(), AskRequest{Question: "какие планы у ромашка?"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if resp.ClientFilter != "ООО Ромашка" {
		t.Fatalf("client filter %q, want ООО Ромашка", resp.ClientFilter)
	}
	if got := search.meetingParams[0].TitleFilter; got != "ООО Ромашка" {
		t.Fatalf("search title filter %q", got)
	}
	if !strings.Contains(model.system, "ООО Ромашка") {
		t.Fatal("filter note missing from system prompt")
	}
}

func TestAskChatSearchDisabledByDefault(t *testing.T) {
	search := &fakeSearch{
		meetingResults: [][]repos.MeetingHit{{
			{MeetingID: uuid.New(), MeetingTitle: "t", ChunkText: "c", Similarity: 0.9},
		}},
	}
	svc := newTestRAG(t, search, &fakeModel{}, nil, nil, nil)

	if _, err := svc.Ask(context.Background(), AskRequest{Question: "вопрос"}); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(search.chatParams) != 0 {
		t.Fatal("chat corpus must not be searched unless enabled")
	}
}

func TestAskChatSearchEnabledViaSetting(t *testing.T) {
	sender := "Мария"
	client := "Ромашка"
	search := &fakeSearch{
		chatResults: [][]repos.ChatHit{{
			{ChatID: -100200, ChatTitle: "Ромашка / рабочая группа", ClientName: &client,
				MessageDate: time.Date(2026, time.January, 5, 10, 0, 0, 0, time.UTC),
				SenderName:  &sender, ChunkText: "созвон перенесли", Similarity: 0.8},
		}},
	}
	model := &fakeModel{}
	settings := &fakeSettings{values: map[string]string{SettingRAGSearchChats: "true"}}
	svc := newTestRAG(t, search, model, settings, nil, []string{"Ромашка"})

	resp, err := svc.Ask(context.Background(), AskRequest{Question: "что писали про созвон?"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(search.chatParams) == 0 {
		t.Fatal("chat corpus must be searched when the setting is on")
	}
	if len(resp.ChatSources) != 1 || resp.ChatSources[0].ChatTitle != "Ромашка / рабочая группа" {
		t.Fatalf("chat sources %+v", resp.ChatSources)
	}
	if !strings.Contains(model.user, "[Telegram чат 1: Ромашка / рабочая группа (клиент: Ромашка)]") {
		t.Fatalf("chat banner missing from context:\n%s", model.user)
	}
	if !strings.Contains(model.user, "[2026-01-05, Мария]: созвон перенесли") {
		t.Fatalf("chat message line missing from context:\n%s", model.user)
	}
}

func TestAskNumChunksOverridesMaxTotal(t *testing.T) {
	search := &fakeSearch{
		meetingResults: [][]repos.MeetingHit{{
			{MeetingID: uuid.New(), MeetingTitle: "t", ChunkText: "c", Similarity: 0.9},
		}},
	}
	svc := newTestRAG(t, search, &fakeModel{}, nil, nil, nil)

	n := 5
	if _, err := svc.Ask(context.Background(), AskRequest{Question: "вопрос", NumChunks: &n}); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if got := search.meetingParams[0].MaxTotal; got != 5 {
		t.Fatalf("MaxTotal %d, want 5", got)
	}
}

func TestAssembleContextMeetingGroups(t *testing.T) {
	id1, id2 := uuid.New(), uuid.New()
	date := time.Date(2025, time.November, 3, 0, 0, 0, 0, time.UTC)
	hits := []repos.MeetingHit{
		{MeetingID: id1, MeetingTitle: "Ромашка - стратегия", MeetingDate: &date, ChunkText: "первый чанк", Similarity: 0.9},
		{MeetingID: id2, MeetingTitle: "Acme - sync", ChunkText: "другая встреча", Similarity: 0.8},
		{MeetingID: id1, MeetingTitle: "Ромашка - стратегия", MeetingDate: &date, ChunkText: "второй чанк", Similarity: 0.7},
	}

	got := assembleContext(hits, nil)
	if !strings.Contains(got, "[Встреча 1: Ромашка - стратегия (2025-11-03)]") {
		t.Fatalf("banner missing:\n%s", got)
	}
	if !strings.Contains(got, "[Встреча 2: Acme - sync]") {
		t.Fatalf("dateless banner missing:\n%s", got)
	}
	// chunks of one meeting stay under its banner in rank order
	block1 := got[strings.Index(got, "[Встреча 1"):strings.Index(got, "[Встреча 2")]
	if !strings.Contains(block1, "первый чанк") || !strings.Contains(block1, "второй чанк") {
		t.Fatalf("chunks not grouped under meeting banner:\n%s", got)
	}
}

func TestAssembleContextChunkDirectlyUnderBanner(t *testing.T) {
	id := uuid.New()
	date := time.Date(2025, time.November, 3, 0, 0, 0, 0, time.UTC)
	hits := []repos.MeetingHit{
		{MeetingID: id, MeetingTitle: "Ромашка - стратегия", MeetingDate: &date, ChunkText: "первый чанк", Similarity: 0.9},
		{MeetingID: id, MeetingTitle: "Ромашка - стратегия", MeetingDate: &date, ChunkText: "второй чанк", Similarity: 0.7},
	}

	want := "ИНФОРМАЦИЯ ИЗ ВСТРЕЧ:\n\n" +
		"[Встреча 1: Ромашка - стратегия (2025-11-03)]\n" +
		"первый чанк\n\n" +
		"второй чанк"
	if got := assembleContext(hits, nil); got != want {
		t.Fatalf("context layout:\n%q\nwant:\n%q", got, want)
	}
}

func TestGetMeetingContextUnindexed(t *testing.T) {
	model := &fakeModel{}
	svc := newTestRAG(t, &fakeSearch{}, model, nil, nil, nil)

	got, err := svc.GetMeetingContext(context.Background(), uuid.New(), "о чем встреча?")
	if err != nil {
		t.Fatalf("GetMeetingContext: %v", err)
	}
	if got != "Эта встреча не проиндексирована." {
		t.Fatalf("answer %q", got)
	}
	if model.calls != 0 {
		t.Fatal("model must not be invoked for an unindexed meeting")
	}
}
