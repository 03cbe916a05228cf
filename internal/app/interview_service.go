package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"prepai/internal/ai"
	"prepai/internal/model"
	"prepai/internal/platform/logger"
	"prepai/internal/repository"
)

// SessionState is the explicit interview lifecycle state. A session without
// a persisted chat is awaiting its start; once the opening question exists
// it stays in AwaitingAnswer for as long as the candidate keeps answering.
type SessionState int

const (
	StateAwaitingStart SessionState = iota
	StateAwaitingAnswer
)

func (s SessionState) String() string {
	if s == StateAwaitingAnswer {
		return "awaiting_answer"
	}
	return "awaiting_start"
}

const noContextPlaceholder = "No specific resume context found."

// InterviewService runs the interview lifecycle: opening question on start,
// then one feedback-plus-question exchange per submitted answer.
type InterviewService struct {
	chatRepo    *repository.ChatRepository
	messageRepo *repository.MessageRepository
	docRepo     *repository.DocumentRepository
	chunkRepo   *repository.ChunkRepository
	retrieval   *RetrievalService
	generator   Generator
	cache       TranscriptCache
	publisher   TurnEventPublisher
	topK        int
	log         *logger.Logger

	// Serializes turns per chat so concurrent submits cannot interleave
	// message pairs. Process-local; one server instance owns a chat.
	// Entries are refcounted and removed once the last waiter releases,
	// so the map does not grow with the number of chats ever seen.
	lockMu    sync.Mutex
	chatLocks map[uint]*chatTurnLock
}

type chatTurnLock struct {
	mu   sync.Mutex
	refs int
}

type StartResult struct {
	ChatID       uint   `json:"chat_id"`
	FirstMessage string `json:"first_message"`
}

type ChatDetail struct {
	Chat     *model.Chat     `json:"chat"`
	Messages []model.Message `json:"messages"`
}

func NewInterviewService(
	chatRepo *repository.ChatRepository,
	messageRepo *repository.MessageRepository,
	docRepo *repository.DocumentRepository,
	chunkRepo *repository.ChunkRepository,
	retrieval *RetrievalService,
	generator Generator,
	cache TranscriptCache,
	publisher TurnEventPublisher,
	topK int,
	log *logger.Logger,
) *InterviewService {
	if topK <= 0 {
		topK = 2
	}
	return &InterviewService{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		docRepo:     docRepo,
		chunkRepo:   chunkRepo,
		retrieval:   retrieval,
		generator:   generator,
		cache:       cache,
		publisher:   publisher,
		topK:        topK,
		log:         log.With("component", "interview_service"),
	}
}

// State reports the explicit session state for a chat ID. Zero or unknown
// chat IDs are awaiting start.
func (s *InterviewService) State(chatID uint) (SessionState, error) {
	if chatID == 0 {
		return StateAwaitingStart, nil
	}
	chat, err := s.chatRepo.GetByID(chatID)
	if err != nil {
		return StateAwaitingStart, err
	}
	if chat == nil {
		return StateAwaitingStart, nil
	}
	return StateAwaitingAnswer, nil
}

// Start creates an interview from a résumé and a job description the caller
// owns. The JD must already have chunks; the opening question is generated
// from its full chunk text in source order.
func (s *InterviewService) Start(ctx context.Context, userID, resumeID, jdID uint) (*StartResult, error) {
	if userID == 0 || resumeID == 0 || jdID == 0 {
		return nil, ErrInvalidInput
	}

	resumeDoc, err := s.docRepo.GetByIDAndUserID(resumeID, userID)
	if err != nil {
		return nil, err
	}
	jdDoc, err := s.docRepo.GetByIDAndUserID(jdID, userID)
	if err != nil {
		return nil, err
	}
	if resumeDoc == nil || jdDoc == nil {
		return nil, ErrNotFound
	}

	jdChunks, err := s.chunkRepo.ListByDocumentIDs([]uint{jdID})
	if err != nil {
		return nil, err
	}
	if len(jdChunks) == 0 {
		return nil, ErrNotFound
	}
	jdTexts := make([]string, len(jdChunks))
	for i := range jdChunks {
		jdTexts[i] = jdChunks[i].Text
	}

	prompt := "You are a technical interviewer. Generate ONE (and only one) opening interview question based on this job description: " +
		strings.Join(jdTexts, "\n\n")
	question, err := s.generator.Complete(ctx, []ai.ChatMessage{{Role: "user", Content: prompt}})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	question = strings.TrimSpace(question)

	chat := &model.Chat{
		UserID:         userID,
		ResumeDocID:    resumeID,
		JDDocID:        jdID,
		ResumeFilename: resumeDoc.Filename,
		JDFilename:     jdDoc.Filename,
	}
	opening := &model.Message{
		Seq:     1,
		Role:    model.RoleModel,
		Content: question,
	}
	if err := s.chatRepo.CreateWithOpening(chat, opening); err != nil {
		return nil, err
	}

	s.publishAudit(ctx, model.TurnEvent{
		ChatID: chat.ID,
		UserID: userID,
		Reply:  question,
	})

	s.log.Infow("interview started", "user_id", userID, "chat_id", chat.ID)
	return &StartResult{ChatID: chat.ID, FirstMessage: question}, nil
}

// SubmitAnswer records the candidate's answer and returns the model's
// feedback plus the next question. The whole turn runs under the chat's
// lock so concurrent submits append intact [user, model] pairs.
func (s *InterviewService) SubmitAnswer(ctx context.Context, userID, chatID uint, answer string) (string, error) {
	answer = strings.TrimSpace(answer)
	if userID == 0 || chatID == 0 || answer == "" {
		return "", ErrInvalidInput
	}

	chat, err := s.chatRepo.GetByID(chatID)
	if err != nil {
		return "", err
	}
	if chat == nil || chat.UserID != userID {
		return "", ErrNotFound
	}

	lock := s.acquireChatLock(chatID)
	defer s.releaseChatLock(chatID, lock)

	lastQuestion, err := s.messageRepo.LastModelMessage(chatID)
	if err != nil {
		return "", err
	}
	if lastQuestion == nil {
		return "", ErrNotFound
	}

	contextTexts, err := s.retrieval.Retrieve(ctx, answer, []uint{chat.ResumeDocID, chat.JDDocID}, s.topK)
	if err != nil {
		return "", err
	}
	contextText := strings.Join(contextTexts, "\n\n")
	if contextText == "" {
		contextText = noContextPlaceholder
	}

	prompt := buildTurnPrompt(contextText, lastQuestion.Content, answer)
	reply, err := s.generator.Complete(ctx, []ai.ChatMessage{{Role: "user", Content: prompt}})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	reply = strings.TrimSpace(reply)

	count, err := s.messageRepo.CountByChatID(chatID)
	if err != nil {
		return "", err
	}
	userMsg := &model.Message{
		ChatID:  chatID,
		Seq:     int(count) + 1,
		Role:    model.RoleUser,
		Content: answer,
	}
	modelMsg := &model.Message{
		ChatID:  chatID,
		Seq:     int(count) + 2,
		Role:    model.RoleModel,
		Content: reply,
	}
	if err := s.messageRepo.AppendPair(userMsg, modelMsg); err != nil {
		return "", err
	}

	if s.cache != nil {
		_ = s.cache.MarkDirty(ctx, chatID)
		_ = s.cache.Invalidate(ctx, chatID)
	}
	s.publishAudit(ctx, model.TurnEvent{
		ChatID:   chatID,
		UserID:   userID,
		Question: lastQuestion.Content,
		Answer:   answer,
		Reply:    reply,
	})

	return reply, nil
}

// ListHistory returns the caller's chats, newest first.
func (s *InterviewService) ListHistory(userID uint) ([]repository.ChatSummary, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.chatRepo.ListSummariesByUserID(userID)
}

// GetChat returns a full transcript. ErrNotFound when the chat is missing,
// ErrNotOwner when it belongs to someone else.
func (s *InterviewService) GetChat(ctx context.Context, userID, chatID uint) (*ChatDetail, error) {
	if userID == 0 || chatID == 0 {
		return nil, ErrInvalidInput
	}
	chat, err := s.chatRepo.GetByID(chatID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, ErrNotFound
	}
	if chat.UserID != userID {
		return nil, ErrNotOwner
	}

	if s.cache != nil {
		dirty, dirtyErr := s.cache.IsDirty(ctx, chatID)
		if dirtyErr == nil && !dirty {
			if cached, hit, cacheErr := s.cache.GetTranscript(ctx, chatID); cacheErr == nil && hit {
				return &ChatDetail{Chat: chat, Messages: cached}, nil
			}
		}
	}

	messages, err := s.messageRepo.ListByChatID(chatID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if dirty, dirtyErr := s.cache.IsDirty(ctx, chatID); dirtyErr == nil && !dirty {
			_ = s.cache.SetTranscript(ctx, chatID, messages)
		}
	}
	return &ChatDetail{Chat: chat, Messages: messages}, nil
}

func (s *InterviewService) publishAudit(ctx context.Context, event model.TurnEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warnw("publish turn audit failed", "error", err, "chat_id", event.ChatID)
	}
}

func (s *InterviewService) acquireChatLock(chatID uint) *chatTurnLock {
	s.lockMu.Lock()
	if s.chatLocks == nil {
		s.chatLocks = make(map[uint]*chatTurnLock)
	}
	lock, ok := s.chatLocks[chatID]
	if !ok {
		lock = &chatTurnLock{}
		s.chatLocks[chatID] = lock
	}
	lock.refs++
	s.lockMu.Unlock()

	lock.mu.Lock()
	return lock
}

func (s *InterviewService) releaseChatLock(chatID uint, lock *chatTurnLock) {
	lock.mu.Unlock()

	s.lockMu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(s.chatLocks, chatID)
	}
	s.lockMu.Unlock()
}

func buildTurnPrompt(contextText, lastQuestion, answer string) string {
	var b strings.Builder
	b.WriteString("**Role:** You are a senior technical interviewer.\n")
	b.WriteString("**Context:** " + contextText + "\n")
	b.WriteString("**Task:** The candidate is answering your last question.\n")
	b.WriteString("**Your Last Question:** \"" + lastQuestion + "\"\n")
	b.WriteString("**Candidate's Answer:** \"" + answer + "\"\n")
	b.WriteString("**Your Response (in two parts):**\n")
	b.WriteString("1.  **Feedback:** Score (1-10) and brief feedback.\n")
	b.WriteString("2.  **Next Question:** Ask ONE new follow-up question.\n\n")
	b.WriteString("Keep both parts concise and to the point. Don't add any fillers.")
	return b.String()
}
