package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"fitcoach/coach-backend/internal/config"
	"fitcoach/coach-backend/internal/domain"
	"fitcoach/coach-backend/internal/llm"
	"fitcoach/coach-backend/internal/repository"
	"fitcoach/coach-backend/internal/storage"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"
)

const systemPrompt = `You are an AI fitness coach inside a training-log app.
You can call tools to inspect the user's training history, detect risks, and
generate routine recommendations. Ground every claim in tool results or the
server-prefetched context; never invent numbers.
Answer with a single JSON object: {"reply": string, "highlights": [string],
"actions": [{"type": string, "args": object}]}. Keep the reply conversational
and end with a concrete next step the user can take.`

const streamingPromptSuffix = `
For this response, reply in plain conversational text instead of JSON.`

const fallbackReplyText = "I couldn't work that out from your training data. " +
	"Could you be more specific about what you'd like to know?"

// simulated chunk size, in runes, for the streaming fallback
const fallbackChunkRunes = 48

// CoachReply is the structured final answer of one orchestrator run.
type CoachReply struct {
	Reply      string                   `json:"reply"`
	Highlights []string                 `json:"highlights"`
	Actions    []domain.SuggestedAction `json:"actions"`
}

// CoachService runs the bounded LLM conversation loop and the streaming
// delivery path around it.
type CoachService interface {
	Run(ctx context.Context, userID, sessionID, message string) (*CoachReply, error)
	RunStreaming(ctx context.Context, userID, sessionID, message string, key domain.StreamKey) (*CoachReply, error)
}

// coachService implements the CoachService interface.
type coachService struct {
	llm      llm.Client
	tools    ToolService
	stream   StreamService
	agg      AggregationService
	risk     RiskService
	rec      RecommendService
	chatLogs repository.ChatLogRepository
	archive  storage.TranscriptArchive // optional; nil disables archiving

	model         string
	maxIterations int
	flushInterval time.Duration
	runBudget     time.Duration
	chunkDelay    time.Duration
}

// NewCoachService creates a new instance of coachService.
func NewCoachService(
	llmClient llm.Client,
	tools ToolService,
	stream StreamService,
	agg AggregationService,
	risk RiskService,
	rec RecommendService,
	chatLogs repository.ChatLogRepository,
	archive storage.TranscriptArchive,
	model string,
	cfg config.CoachConfig,
) CoachService {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 4
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 200 * time.Millisecond
	}
	if cfg.RunBudget <= 0 {
		cfg.RunBudget = 3 * time.Minute
	}
	return &coachService{
		llm:           llmClient,
		tools:         tools,
		stream:        stream,
		agg:           agg,
		risk:          risk,
		rec:           rec,
		chatLogs:      chatLogs,
		archive:       archive,
		model:         model,
		maxIterations: cfg.MaxIterations,
		flushInterval: cfg.FlushInterval,
		runBudget:     cfg.RunBudget,
		chunkDelay:    cfg.ChunkDelay,
	}
}

// Run executes the non-streaming tool-calling loop and returns the final
// structured reply.
func (s *coachService) Run(ctx context.Context, userID, sessionID, message string) (*CoachReply, error) {
	if userID == "" || sessionID == "" || message == "" {
		return nil, ErrInvalidArgument
	}
	ctx, cancel := context.WithTimeout(ctx, s.runBudget)
	defer cancel()

	reply, err := s.runLoop(ctx, userID, sessionID, s.seedMessages(message, "", false))
	if err != nil {
		return nil, err
	}
	s.persistExchange(ctx, userID, sessionID, message, reply.Reply)
	return reply, nil
}

// runLoop is the bounded agent loop: completion, tool dispatch, repeat. It
// never exceeds maxIterations no matter how many tool calls the model
// requests per turn; exhausting the bound yields the canned fallback, not an
// error.
func (s *coachService) runLoop(ctx context.Context, userID, sessionID string, messages []openai.ChatCompletionMessage) (*CoachReply, error) {
	tools := s.tools.Definitions()
	for i := 0; i < s.maxIterations; i++ {
		resp, err := s.llm.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:      s.model,
			Messages:   messages,
			Tools:      tools,
			ToolChoice: "auto",
		})
		if err != nil {
			return nil, fmt.Errorf("chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil, errors.New("chat completion returned no choices")
		}
		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			// No tool calls means this is the final answer.
			return parseReply(msg.Content), nil
		}

		// The assistant's tool-call message goes into history verbatim; each
		// result is keyed back to its call id.
		messages = append(messages, msg)
		for _, call := range msg.ToolCalls {
			result := s.tools.Dispatch(ctx, userID, sessionID, call.Function.Name, json.RawMessage(call.Function.Arguments))
			payload, err := json.Marshal(result)
			if err != nil {
				payload = []byte(`{"ok":false,"error":"failed to encode tool result"}`)
			}
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    string(payload),
				ToolCallID: call.ID,
			})
		}
	}
	log.Printf("WARN: coach loop hit iteration cap for session %s", sessionID)
	return &CoachReply{Reply: fallbackReplyText, Highlights: []string{}, Actions: []domain.SuggestedAction{}}, nil
}

// RunStreaming delivers the answer incrementally through the stream manager.
// The three context engines are pre-computed eagerly instead of offered as
// tool calls, and a transport failure falls back to the non-streaming loop
// with simulated chunked delivery, so content still grows monotonically to
// the full final answer.
func (s *coachService) RunStreaming(ctx context.Context, userID, sessionID, message string, key domain.StreamKey) (*CoachReply, error) {
	if userID == "" || sessionID == "" || message == "" || key.StreamID == "" {
		return nil, ErrInvalidArgument
	}
	ctx, cancel := context.WithTimeout(ctx, s.runBudget)
	defer cancel()

	if err := s.stream.Initialize(ctx, key); err != nil {
		return nil, err
	}

	reply, err := s.runStreamingInner(ctx, userID, sessionID, message, key)
	if err != nil {
		msg := err.Error()
		if ctx.Err() != nil {
			msg = "coach run exceeded its time budget"
		}
		// The run context may already be dead; use a short fresh one so the
		// stream never stays stuck in pending/streaming.
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cleanupCancel()
		if terr := s.stream.Transition(cleanupCtx, key, domain.StreamError, msg); terr != nil {
			log.Printf("ERROR: Failed to mark stream %s as errored: %v", key.DocumentID(), terr)
		}
		return nil, err
	}
	return reply, nil
}

func (s *coachService) runStreamingInner(ctx context.Context, userID, sessionID, message string, key domain.StreamKey) (*CoachReply, error) {
	prefetch := s.prefetchContext(ctx, userID)
	if err := s.stream.Transition(ctx, key, domain.StreamStreaming, ""); err != nil {
		log.Printf("WARN: Failed to mark stream %s as streaming: %v", key.DocumentID(), err)
	}

	messages := s.seedMessages(message, prefetch.block(), true)

	var (
		reply     *CoachReply
		delivered string
		streamErr error
	)
	chatStream, err := s.llm.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    s.model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		streamErr = err
	} else {
		delivered, streamErr = s.consumeStream(ctx, chatStream, key)
	}

	if streamErr == nil {
		// The client has already seen the delivered text token by token, so
		// the reply keeps it verbatim; extracting structure out of it here
		// would make the final reply disagree with the stream content.
		reply = &CoachReply{Reply: delivered, Highlights: []string{}, Actions: []domain.SuggestedAction{}}
	} else {
		log.Printf("WARN: Streaming transport failed after %d bytes, falling back to chunked delivery: %v", len(delivered), streamErr)
		fallback, err := s.runLoop(ctx, userID, sessionID, s.seedMessages(message, prefetch.block(), false))
		if err != nil {
			return nil, err
		}
		reply = fallback
		s.simulateChunks(ctx, key, delivered, reply.Reply)
	}

	// Post-check: when a plan was generated the reply must end with an
	// actionable next step, whether or not the model complied.
	if prefetch.plan != nil && !hasCallToAction(reply.Reply) {
		cta := " " + prefetch.plan.CallToAction
		reply.Reply += cta
		if err := s.stream.AppendContent(ctx, key, cta); err != nil {
			log.Printf("WARN: Failed to append call to action on %s: %v", key.DocumentID(), err)
		}
	}

	if err := s.stream.SetMetadata(ctx, key, buildMeta(reply, prefetch)); err != nil {
		log.Printf("WARN: Failed to set stream metadata on %s: %v", key.DocumentID(), err)
	}
	if err := s.stream.Transition(ctx, key, domain.StreamDone, ""); err != nil {
		log.Printf("WARN: Failed to finalize stream %s: %v", key.DocumentID(), err)
	}

	s.persistExchange(ctx, userID, sessionID, message, reply.Reply)
	s.archiveTranscript(userID, sessionID, message, reply)
	return reply, nil
}

// prefetched carries the eagerly computed engine context. Failures degrade to
// defaults; the conversation proceeds regardless.
type prefetched struct {
	statsJSON string
	risksJSON string
	planJSON  string
	plan      *RecommendationPlan
}

// prefetchContext runs the three context engines concurrently with bounded
// fan-out. The goroutines write disjoint fields and always return nil, so one
// failing fetch never cancels its siblings.
func (s *coachService) prefetchContext(ctx context.Context, userID string) prefetched {
	var p prefetched
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(3)

	g.Go(func() error {
		stats, err := s.agg.RecentStats(ctx, userID, 4)
		if err != nil {
			log.Printf("WARN: stats prefetch degraded for user %s: %v", userID, err)
			return nil
		}
		p.statsJSON = marshalOrEmpty(stats)
		return nil
	})
	g.Go(func() error {
		risks, err := s.risk.DetectRisk(ctx, userID)
		if err != nil {
			log.Printf("WARN: risk prefetch degraded for user %s: %v", userID, err)
			return nil
		}
		p.risksJSON = marshalOrEmpty(risks)
		return nil
	})
	g.Go(func() error {
		plan, err := s.rec.RecommendRoutine(ctx, userID, nil)
		if err != nil {
			log.Printf("WARN: recommendation prefetch degraded for user %s: %v", userID, err)
			return nil
		}
		p.plan = plan
		p.planJSON = marshalOrEmpty(plan)
		return nil
	})
	_ = g.Wait()
	return p
}

func marshalOrEmpty(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func (p prefetched) block() string {
	var b strings.Builder
	b.WriteString("Server-prefetched context:\n")
	writeLine := func(name, value string) {
		if value == "" {
			value = "unavailable"
		}
		fmt.Fprintf(&b, "%s: %s\n", name, value)
	}
	writeLine("recent_stats", p.statsJSON)
	writeLine("risk_signals", p.risksJSON)
	writeLine("recommended_plan", p.planJSON)
	return b.String()
}

func (s *coachService) seedMessages(message, contextBlock string, streaming bool) []openai.ChatCompletionMessage {
	system := systemPrompt
	if streaming {
		system += streamingPromptSuffix
	}
	if contextBlock != "" {
		system += "\n\n" + contextBlock
	}
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
		{Role: openai.ChatMessageRoleUser, Content: message},
	}
}

// consumeStream forwards tokens to the stream manager, flushing the buffered
// text at most every flushInterval to bound write amplification. It returns
// everything received so far alongside any transport error.
func (s *coachService) consumeStream(ctx context.Context, chatStream llm.ChatStream, key domain.StreamKey) (string, error) {
	defer chatStream.Close()

	var full, buffer strings.Builder
	lastFlush := time.Now()
	flush := func() {
		if buffer.Len() == 0 {
			return
		}
		if err := s.stream.AppendContent(ctx, key, buffer.String()); err != nil {
			// Best-effort live feedback; the persisted transcript stays
			// authoritative.
			log.Printf("WARN: Dropped stream frame on %s: %v", key.DocumentID(), err)
		}
		buffer.Reset()
		lastFlush = time.Now()
	}

	for {
		resp, err := chatStream.Recv()
		if errors.Is(err, io.EOF) {
			flush()
			return full.String(), nil
		}
		if err != nil {
			flush()
			return full.String(), err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		buffer.WriteString(delta)
		if time.Since(lastFlush) >= s.flushInterval {
			flush()
		}
	}
}

// simulateChunks preserves the client-visible contract when the transport
// could not stream: the final text is appended in small chunks with short
// delays so content still grows incrementally.
func (s *coachService) simulateChunks(ctx context.Context, key domain.StreamKey, alreadyDelivered, finalText string) {
	remainder := finalText
	if alreadyDelivered != "" {
		if strings.HasPrefix(finalText, alreadyDelivered) {
			remainder = finalText[len(alreadyDelivered):]
		} else {
			// The partial stream diverged from the fallback answer; content
			// must only grow, so separate and deliver the full answer.
			remainder = "\n" + finalText
		}
	}
	runes := []rune(remainder)
	for start := 0; start < len(runes); start += fallbackChunkRunes {
		end := start + fallbackChunkRunes
		if end > len(runes) {
			end = len(runes)
		}
		if err := s.stream.AppendContent(ctx, key, string(runes[start:end])); err != nil {
			log.Printf("WARN: Dropped fallback chunk on %s: %v", key.DocumentID(), err)
		}
		if s.chunkDelay > 0 && end < len(runes) {
			time.Sleep(s.chunkDelay)
		}
	}
}

// parseReply parses the structured final answer, degrading to treating the
// raw text as the reply when the model didn't produce valid JSON.
func parseReply(raw string) *CoachReply {
	trimmed := strings.TrimSpace(raw)
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			var reply CoachReply
			if err := json.Unmarshal([]byte(trimmed[start:end+1]), &reply); err == nil && reply.Reply != "" {
				if reply.Highlights == nil {
					reply.Highlights = []string{}
				}
				if reply.Actions == nil {
					reply.Actions = []domain.SuggestedAction{}
				}
				return &reply
			}
		}
	}
	return &CoachReply{Reply: trimmed, Highlights: []string{}, Actions: []domain.SuggestedAction{}}
}

// hasCallToAction checks the deterministic marker phrases a reply may close
// with.
func hasCallToAction(reply string) bool {
	lower := strings.ToLower(reply)
	for _, marker := range []string{"shall i", "would you like", "want me to", "should i "} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func buildMeta(reply *CoachReply, prefetch prefetched) *domain.StreamMeta {
	meta := &domain.StreamMeta{
		Highlights: reply.Highlights,
		Actions:    reply.Actions,
	}
	if len(meta.Actions) == 0 && prefetch.plan != nil {
		meta.Actions = []domain.SuggestedAction{{
			Type: "add_routine",
			Args: map[string]any{"draft": prefetch.plan.Draft},
		}}
	}
	return meta
}

// persistExchange appends the user/assistant lines to the authoritative chat
// log. Best-effort: a logging failure never fails the run.
func (s *coachService) persistExchange(ctx context.Context, userID, sessionID, userMessage, assistantReply string) {
	now := time.Now().UTC()
	entries := []*domain.ChatLog{
		{UserID: userID, SessionID: sessionID, Role: "user", Content: userMessage, CreatedAt: now},
		{UserID: userID, SessionID: sessionID, Role: "assistant", Content: assistantReply, CreatedAt: now},
	}
	for _, entry := range entries {
		if err := s.chatLogs.Append(ctx, entry); err != nil {
			log.Printf("ERROR: Failed to persist chat log for session %s: %v", sessionID, err)
		}
	}
}

// archiveTranscript uploads the finished exchange to object storage,
// best-effort on its own short deadline.
func (s *coachService) archiveTranscript(userID, sessionID, userMessage string, reply *CoachReply) {
	if s.archive == nil {
		return
	}
	transcript, err := json.Marshal(map[string]any{
		"userId":     userID,
		"sessionId":  sessionID,
		"message":    userMessage,
		"reply":      reply.Reply,
		"highlights": reply.Highlights,
		"actions":    reply.Actions,
		"archivedAt": time.Now().UTC(),
	})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := s.archive.SaveTranscript(ctx, userID, sessionID, transcript); err != nil {
		log.Printf("WARN: Transcript archive failed for session %s: %v", sessionID, err)
	}
}
