package app

import (
	"context"
	"io"
	"sync"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"prepai/internal/ai"
	"prepai/internal/model"
	"prepai/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Every new connection to :memory: is its own database, so the pool
	// must stay at a single connection.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&model.User{},
		&model.Document{},
		&model.Chunk{},
		&model.Chat{},
		&model.Message{},
		&model.TurnEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// fakeEmbedder returns deterministic vectors. Texts registered in byText get
// their fixed vector; everything else falls back to defaultVec.
type fakeEmbedder struct {
	byText     map[string][]float32
	defaultVec []float32
	embedErr   error
	batchErr   error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	if v, ok := f.byText[text]; ok {
		return v, nil
	}
	return f.defaultVec, nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := f.byText[text]; ok {
			out[i] = v
			continue
		}
		out[i] = f.defaultVec
	}
	return out, nil
}

type fakeGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeGenerator) Complete(_ context.Context, messages []ai.ChatMessage) (string, error) {
	if len(messages) > 0 {
		f.prompts = append(f.prompts, messages[len(messages)-1].Content)
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeObjectStore struct {
	uploads   map[string][]byte
	uploadErr error
}

func (f *fakeObjectStore) Upload(_ context.Context, key, _ string, data []byte) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	if f.uploads == nil {
		f.uploads = map[string][]byte{}
	}
	f.uploads[key] = data
	return "https://storage.test/" + key, nil
}

func (f *fakeObjectStore) Delete(_ context.Context, key string) error {
	delete(f.uploads, key)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []model.TurnEvent
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, event model.TurnEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

// fakeTranscriptCache is an in-memory TranscriptCache.
type fakeTranscriptCache struct {
	mu          sync.Mutex
	transcripts map[uint][]model.Message
	dirty       map[uint]bool
	sets        int
	hits        int
}

func newFakeTranscriptCache() *fakeTranscriptCache {
	return &fakeTranscriptCache{
		transcripts: map[uint][]model.Message{},
		dirty:       map[uint]bool{},
	}
}

func (f *fakeTranscriptCache) GetTranscript(_ context.Context, chatID uint) ([]model.Message, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs, ok := f.transcripts[chatID]
	if ok {
		f.hits++
	}
	return msgs, ok, nil
}

func (f *fakeTranscriptCache) SetTranscript(_ context.Context, chatID uint, messages []model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts[chatID] = messages
	f.sets++
	return nil
}

func (f *fakeTranscriptCache) Invalidate(_ context.Context, chatID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.transcripts, chatID)
	return nil
}

func (f *fakeTranscriptCache) MarkDirty(_ context.Context, chatID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirty[chatID] = true
	return nil
}

func (f *fakeTranscriptCache) IsDirty(_ context.Context, chatID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirty[chatID], nil
}

func textExtractorReturning(text string, err error) TextExtractor {
	return func(io.Reader) (string, error) {
		return text, err
	}
}

func seedUser(t *testing.T, db *gorm.DB, email string) *model.User {
	t.Helper()
	user := &model.User{Email: email, PasswordHash: "x"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func seedDocument(t *testing.T, db *gorm.DB, userID uint, docType, filename string) *model.Document {
	t.Helper()
	doc := &model.Document{
		UserID:   userID,
		Type:     docType,
		Filename: filename,
		FileURL:  "https://storage.test/" + filename,
	}
	if err := db.Create(doc).Error; err != nil {
		t.Fatalf("seed document: %v", err)
	}
	return doc
}

func seedChunk(t *testing.T, db *gorm.DB, doc *model.Document, text string, vec []float32) *model.Chunk {
	t.Helper()
	chunk := &model.Chunk{
		UserID:     doc.UserID,
		DocumentID: doc.ID,
		Type:       doc.Type,
		Text:       text,
	}
	chunk.SetEmbedding(vec)
	if err := db.Create(chunk).Error; err != nil {
		t.Fatalf("seed chunk: %v", err)
	}
	return chunk
}

func seedInterview(t *testing.T, db *gorm.DB, userID uint) (*model.Chat, *repository.ChatRepository) {
	t.Helper()
	resume := seedDocument(t, db, userID, model.DocumentTypeResume, "resume.pdf")
	jd := seedDocument(t, db, userID, model.DocumentTypeJD, "jd.pdf")
	seedChunk(t, db, resume, "resume chunk", []float32{1, 0, 0})
	seedChunk(t, db, jd, "jd chunk", []float32{0, 1, 0})

	chatRepo := repository.NewChatRepository(db)
	chat := &model.Chat{
		UserID:         userID,
		ResumeDocID:    resume.ID,
		JDDocID:        jd.ID,
		ResumeFilename: resume.Filename,
		JDFilename:     jd.Filename,
	}
	opening := &model.Message{Seq: 1, Role: model.RoleModel, Content: "Tell me about your Go experience."}
	if err := chatRepo.CreateWithOpening(chat, opening); err != nil {
		t.Fatalf("seed interview: %v", err)
	}
	return chat, chatRepo
}

func mustNoErr(t *testing.T, err error, what string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", what, err)
	}
}
