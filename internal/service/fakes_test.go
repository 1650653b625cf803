package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"time"

	"fitcoach/coach-backend/internal/domain"
	"fitcoach/coach-backend/internal/llm"
	"fitcoach/coach-backend/internal/repository"
	"fitcoach/coach-backend/internal/storage"

	openai "github.com/sashabaranov/go-openai"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- fake TrainingRecordRepository ---

type fakeRecordRepo struct {
	records []domain.TrainingRecord
	err     error
}

func (r *fakeRecordRepo) live() []domain.TrainingRecord {
	out := make([]domain.TrainingRecord, 0, len(r.records))
	for _, record := range r.records {
		if !record.Deleted {
			out = append(out, record)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PerformedAt.After(out[j].PerformedAt)
	})
	return out
}

func (r *fakeRecordRepo) GetByUserSince(ctx context.Context, userID string, since time.Time) ([]domain.TrainingRecord, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []domain.TrainingRecord
	for _, record := range r.live() {
		if !record.PerformedAt.Before(since) {
			out = append(out, record)
		}
	}
	return out, nil
}

func (r *fakeRecordRepo) GetRecent(ctx context.Context, userID string, limit int) ([]domain.TrainingRecord, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := r.live()
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRecordRepo) GetByID(ctx context.Context, userID string, id primitive.ObjectID) (*domain.TrainingRecord, error) {
	if r.err != nil {
		return nil, r.err
	}
	for i := range r.records {
		if r.records[i].ID == id && !r.records[i].Deleted {
			return &r.records[i], nil
		}
	}
	return nil, repository.ErrNotFound
}

// --- fake ExerciseTypeRepository ---

type fakeTypeRepo struct {
	types []domain.ExerciseType
	err   error
}

func (r *fakeTypeRepo) GetByUser(ctx context.Context, userID string) ([]domain.ExerciseType, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.types, nil
}

func (r *fakeTypeRepo) GetByCategory(ctx context.Context, userID, category string) ([]domain.ExerciseType, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []domain.ExerciseType
	for _, entry := range r.types {
		if entry.Category == category {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (r *fakeTypeRepo) Search(ctx context.Context, userID, keyword string) ([]domain.ExerciseType, error) {
	return r.GetByUser(ctx, userID)
}

// --- fake RoutineRepository ---

type fakeRoutineRepo struct {
	routines []domain.Routine
	created  []*domain.Routine
}

func (r *fakeRoutineRepo) Create(ctx context.Context, routine *domain.Routine) (primitive.ObjectID, error) {
	routine.ID = primitive.NewObjectID()
	r.created = append(r.created, routine)
	r.routines = append(r.routines, *routine)
	return routine.ID, nil
}

func (r *fakeRoutineRepo) GetByUser(ctx context.Context, userID string) ([]domain.Routine, error) {
	return r.routines, nil
}

func (r *fakeRoutineRepo) GetByID(ctx context.Context, userID string, id primitive.ObjectID) (*domain.Routine, error) {
	for i := range r.routines {
		if r.routines[i].ID == id {
			return &r.routines[i], nil
		}
	}
	return nil, repository.ErrNotFound
}

// --- fake ChatLogRepository ---

type fakeChatLogRepo struct {
	entries []domain.ChatLog
}

func (r *fakeChatLogRepo) Append(ctx context.Context, entry *domain.ChatLog) error {
	entry.ID = primitive.NewObjectID()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeChatLogRepo) GetBySession(ctx context.Context, userID, sessionID string, limit int) ([]domain.ChatLog, error) {
	var out []domain.ChatLog
	for _, entry := range r.entries {
		if entry.UserID == userID && entry.SessionID == sessionID {
			out = append(out, entry)
		}
	}
	return out, nil
}

// --- fake StreamSessionRepository ---

type fakeStreamRepo struct {
	sessions    map[string]*domain.StreamSession
	createErr   error
	failAppends int // next N appends fail with a transient error
	appendCalls int
}

func newFakeStreamRepo() *fakeStreamRepo {
	return &fakeStreamRepo{sessions: map[string]*domain.StreamSession{}}
}

func (r *fakeStreamRepo) Create(ctx context.Context, session *domain.StreamSession) error {
	if r.createErr != nil {
		return r.createErr
	}
	key := domain.StreamKey{UserID: session.UserID, SessionID: session.SessionID, StreamID: session.StreamID}
	session.ID = key.DocumentID()
	session.Status = domain.StreamPending
	session.Content = ""
	session.Meta = nil
	r.sessions[session.ID] = session
	return nil
}

func (r *fakeStreamRepo) Get(ctx context.Context, key domain.StreamKey) (*domain.StreamSession, error) {
	session, ok := r.sessions[key.DocumentID()]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (r *fakeStreamRepo) AppendContent(ctx context.Context, key domain.StreamKey, text string) error {
	r.appendCalls++
	if r.failAppends > 0 {
		r.failAppends--
		return errors.New("transient store failure")
	}
	session, ok := r.sessions[key.DocumentID()]
	if !ok {
		return repository.ErrNotFound
	}
	session.Content += text
	session.Version++
	session.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *fakeStreamRepo) SetMetadata(ctx context.Context, key domain.StreamKey, meta *domain.StreamMeta) error {
	session, ok := r.sessions[key.DocumentID()]
	if !ok {
		return repository.ErrNotFound
	}
	session.Meta = meta
	session.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *fakeStreamRepo) SetStatus(ctx context.Context, key domain.StreamKey, status domain.StreamStatus, errMsg string) error {
	session, ok := r.sessions[key.DocumentID()]
	if !ok {
		return repository.ErrNotFound
	}
	if session.Status.Terminal() {
		return repository.ErrUpdateFailed
	}
	session.Status = status
	session.Error = errMsg
	session.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *fakeStreamRepo) Delete(ctx context.Context, key domain.StreamKey) error {
	if _, ok := r.sessions[key.DocumentID()]; !ok {
		return repository.ErrNotFound
	}
	delete(r.sessions, key.DocumentID())
	return nil
}

// --- fake llm.Client ---

type fakeLLM struct {
	completions    []openai.ChatCompletionResponse
	completionErr  error
	completionCall int
	streamFactory  func() (llm.ChatStream, error)
}

func (f *fakeLLM) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.completionCall++
	if f.completionErr != nil {
		return openai.ChatCompletionResponse{}, f.completionErr
	}
	idx := f.completionCall - 1
	if idx >= len(f.completions) {
		idx = len(f.completions) - 1
	}
	return f.completions[idx], nil
}

func (f *fakeLLM) CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (llm.ChatStream, error) {
	if f.streamFactory == nil {
		return nil, errors.New("streaming transport unavailable")
	}
	return f.streamFactory()
}

// scriptedStream replays chunks and then either EOFs or fails.
type scriptedStream struct {
	chunks []string
	idx    int
	err    error // returned after chunks are exhausted; nil means io.EOF
}

func (s *scriptedStream) Recv() (openai.ChatCompletionStreamResponse, error) {
	if s.idx < len(s.chunks) {
		chunk := s.chunks[s.idx]
		s.idx++
		return openai.ChatCompletionStreamResponse{
			Choices: []openai.ChatCompletionStreamChoice{
				{Delta: openai.ChatCompletionStreamChoiceDelta{Content: chunk}},
			},
		}, nil
	}
	if s.err != nil {
		return openai.ChatCompletionStreamResponse{}, s.err
	}
	return openai.ChatCompletionStreamResponse{}, io.EOF
}

func (s *scriptedStream) Close() error { return nil }

// --- fake storage.TranscriptArchive ---

type fakeArchive struct {
	saved   map[string][]byte
	deleted []string
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{saved: map[string][]byte{}}
}

func (a *fakeArchive) SaveTranscript(ctx context.Context, userID, sessionID string, transcript []byte) (string, error) {
	key := storage.TranscriptKeyPrefix(userID) + sessionID + "/transcript.json"
	a.saved[key] = transcript
	return key, nil
}

func (a *fakeArchive) GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error) {
	return "https://archive.test/" + objectKey + "?signed=1", nil
}

func (a *fakeArchive) DeleteObject(ctx context.Context, objectKey string) error {
	a.deleted = append(a.deleted, objectKey)
	return nil
}

// --- test fixtures ---

// fixedTestNow pins "today" to Wednesday 2026-03-18 so window math is stable.
func fixedTestNow() time.Time {
	return time.Date(2026, 3, 18, 12, 0, 0, 0, time.UTC)
}

func testRecord(date string, intensity domain.Intensity, volumes map[string]float64, exercises ...domain.ExerciseEntry) domain.TrainingRecord {
	performed, _ := time.ParseInLocation("2006-01-02", date, time.UTC)
	return domain.TrainingRecord{
		ID:               primitive.NewObjectID(),
		UserID:           "user-1",
		Date:             date,
		PerformedAt:      performed.Add(10 * time.Hour),
		Intensity:        intensity,
		VolumeByCategory: volumes,
		Exercises:        exercises,
	}
}

func testEntry(name, category string, sets ...domain.SetEntry) domain.ExerciseEntry {
	return domain.ExerciseEntry{Name: name, Category: category, SetCount: len(sets), Sets: sets}
}

func testSet(number int, weight float64, reps int) domain.SetEntry {
	return domain.SetEntry{SetNumber: number, Weight: weight, Reps: reps}
}

// --- response builders ---

// openaiResponse keeps completion scripts in tests readable.
type openaiResponse = openai.ChatCompletionResponse

func finalResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
		},
	}
}

func toolCallResponse(callID, name, args string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{
					{
						ID:       callID,
						Type:     openai.ToolTypeFunction,
						Function: openai.FunctionCall{Name: name, Arguments: args},
					},
				},
			}},
		},
	}
}
