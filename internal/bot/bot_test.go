package bot

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"videobot/internal/domain"
	"videobot/internal/infra"
	"videobot/internal/seedance"
	"videobot/internal/storage"
)

// memStore is an in-memory domain.Store mirroring the semantics of the
// Postgres implementation closely enough for flow tests: version-checked
// session writes and transition-validated status updates included.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	jobs     map[int64]*domain.Job
	sessions map[int64]*domain.Session

	failCreateJob bool
}

func newMemStore() *memStore {
	return &memStore{
		nextID:   1,
		jobs:     make(map[int64]*domain.Job),
		sessions: make(map[int64]*domain.Session),
	}
}

func (m *memStore) CreateJob(ctx context.Context, userID, chatID int64, photos []string, prompt string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateJob {
		return 0, fmt.Errorf("storage offline")
	}
	id := m.nextID
	m.nextID++
	m.jobs[id] = &domain.Job{
		ID:        id,
		UserID:    userID,
		ChatID:    chatID,
		Photos:    append([]string(nil), photos...),
		Prompt:    prompt,
		Status:    domain.JobStatusPending,
		CreatedAt: time.Now(),
	}

	sess := m.sessions[userID]
	if sess == nil {
		sess = &domain.Session{UserID: userID}
		m.sessions[userID] = sess
	}
	sess.State = domain.SessionStateGenerating
	sess.Photos = append([]string(nil), photos...)
	sess.CurrentPrompt = prompt
	sess.LastJobID = &id
	sess.Version++
	return id, nil
}

func (m *memStore) GetJob(ctx context.Context, jobID int64) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *memStore) GetUserJobs(ctx context.Context, userID int64, limit int) ([]domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var jobs []domain.Job
	for _, job := range m.jobs {
		if job.UserID == userID {
			jobs = append(jobs, *job)
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID > jobs[j].ID })
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (m *memStore) UpdateJobStatus(ctx context.Context, jobID int64, status domain.JobStatus, update domain.StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if !domain.CanTransition(job.Status, status) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, job.Status, status)
	}
	job.Status = status
	if update.ProviderJobID != nil {
		job.ProviderJobID = *update.ProviderJobID
	}
	if update.ArtifactPath != nil {
		job.ArtifactPath = *update.ArtifactPath
	}
	if update.ErrorMessage != nil {
		job.ErrorMessage = *update.ErrorMessage
	}
	if status == domain.JobStatusCompleted {
		now := time.Now()
		job.CompletedAt = &now
	}
	return nil
}

func (m *memStore) GetPendingJobs(ctx context.Context) ([]domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var jobs []domain.Job
	for _, job := range m.jobs {
		if job.Status == domain.JobStatusPending {
			jobs = append(jobs, *job)
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs, nil
}

func (m *memStore) CountJobsByStatus(ctx context.Context) (map[domain.JobStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[domain.JobStatus]int)
	for _, job := range m.jobs {
		counts[job.Status]++
	}
	return counts, nil
}

func (m *memStore) GetUserSession(ctx context.Context, userID int64) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *sess
	cp.Photos = append([]string(nil), sess.Photos...)
	return &cp, nil
}

func (m *memStore) UpdateUserState(ctx context.Context, userID int64, state domain.SessionState, version int64, update domain.SessionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[userID]
	if !ok {
		sess = &domain.Session{UserID: userID, Version: 1}
		m.sessions[userID] = sess
	} else if version != sess.Version {
		return fmt.Errorf("%w: have %d, want %d", domain.ErrConflict, version, sess.Version)
	} else {
		sess.Version++
	}
	sess.State = state
	if update.Photos != nil {
		sess.Photos = append([]string(nil), *update.Photos...)
	}
	if update.CurrentPrompt != nil {
		sess.CurrentPrompt = *update.CurrentPrompt
	}
	if update.LastJobID != nil {
		sess.LastJobID = update.LastJobID
	}
	sess.UpdatedAt = time.Now()
	return nil
}

func (m *memStore) ClearUserSession(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

func (m *memStore) ResetUserGenerationState(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[userID]
	if !ok {
		return nil
	}
	sess.State = domain.SessionStateIdle
	sess.Photos = nil
	sess.CurrentPrompt = ""
	sess.Version++
	sess.UpdatedAt = time.Now()
	return nil
}

var _ domain.Store = (*memStore)(nil)

// recordingSender captures outbound messages for assertions.
type recordingSender struct {
	mu       sync.Mutex
	messages []string
	videos   []string
	sendErr  error
}

func (s *recordingSender) SendMessage(chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, text)
	return nil
}

func (s *recordingSender) SendMarkdown(chatID int64, text string) error {
	return s.SendMessage(chatID, text)
}

func (s *recordingSender) SendVideo(chatID int64, path, caption string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.videos = append(s.videos, path)
	return nil
}

func (s *recordingSender) lastMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return ""
	}
	return s.messages[len(s.messages)-1]
}

func (s *recordingSender) contains(substr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.messages {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

// stubFetcher serves fixed bytes for any file id.
type stubFetcher struct {
	data []byte
	err  error
}

func (f *stubFetcher) Download(ctx context.Context, fileID string, dst io.Writer) error {
	if f.err != nil {
		return f.err
	}
	_, err := dst.Write(f.data)
	return err
}

// stubGenerator returns a canned result or error.
type stubGenerator struct {
	result *seedance.Result
	err    error
	block  chan struct{} // when set, GenerateVideo waits for ctx or close
}

func (g *stubGenerator) GenerateVideo(ctx context.Context, req seedance.Request) (*seedance.Result, error) {
	if g.block != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-g.block:
		}
	}
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

func (g *stubGenerator) JobStatus(ctx context.Context, jobID string) (*seedance.Result, error) {
	return g.result, g.err
}

func (g *stubGenerator) CancelJob(ctx context.Context, jobID string) (bool, error) {
	return true, nil
}

type testEnv struct {
	bot    *Bot
	store  *memStore
	sender *recordingSender
	gen    *stubGenerator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	photos, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("photo store: %v", err)
	}
	videos, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("video store: %v", err)
	}

	cfg := &infra.Config{
		MaxPhotos:         4,
		GenerationTimeout: 5 * time.Second,
		AdminUserID:       99,
	}
	store := newMemStore()
	sender := &recordingSender{}
	gen := &stubGenerator{}
	fetcher := &stubFetcher{data: []byte("jpeg-bytes")}

	logger := infra.NewLogger("test")
	b := New(cfg, logger, store, gen, photos, videos, sender, fetcher)
	return &testEnv{bot: b, store: store, sender: sender, gen: gen}
}

func textMessage(userID, chatID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: chatID},
		Text: text,
	}
}

func photoMessage(userID, chatID int64) *tgbotapi.Message {
	return &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: chatID},
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small", Width: 90, Height: 90},
			{FileID: "large", Width: 1280, Height: 1280},
		},
	}
}
