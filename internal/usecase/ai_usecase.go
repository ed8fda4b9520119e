package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/SnippyKid/OmegaChat-sub000/internal/config"
	"github.com/SnippyKid/OmegaChat-sub000/internal/models"
	"github.com/SnippyKid/OmegaChat-sub000/internal/repo/github"
	"github.com/SnippyKid/OmegaChat-sub000/internal/repo/llm"
	"github.com/SnippyKid/OmegaChat-sub000/internal/repo/mongodb"
)

// maxRateLimitRetries bounds how many additional candidates are tried after
// the first rate-limited call.
const maxRateLimitRetries = 3

var backoffSchedule = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

type AIUsecase interface {
	// GenerateCode runs the whole bridge: typing indicator, optional
	// repository context, model fallback ladder, and delivery of the
	// result (or an error-flagged message) into the room.
	GenerateCode(ctx context.Context, roomID, userID primitive.ObjectID, prompt string) (*models.Message, error)
}

type aiUsecase struct {
	provider    llm.Provider
	modelCache  llm.ModelCache
	github      github.Client
	roomRepo    mongodb.RoomRepository
	userRepo    mongodb.UserRepository
	broadcaster Broadcaster
	conf        config.LLMConfig
}

func NewAIUsecase(
	provider llm.Provider,
	modelCache llm.ModelCache,
	githubClient github.Client,
	roomRepo mongodb.RoomRepository,
	userRepo mongodb.UserRepository,
	broadcaster Broadcaster,
	conf *config.Config,
) AIUsecase {
	return &aiUsecase{
		provider:    provider,
		modelCache:  modelCache,
		github:      githubClient,
		roomRepo:    roomRepo,
		userRepo:    userRepo,
		broadcaster: broadcaster,
		conf:        conf.LLM,
	}
}

func (uc *aiUsecase) GenerateCode(ctx context.Context, roomID, userID primitive.ObjectID, prompt string) (*models.Message, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", models.ErrValidation)
	}
	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasMember(userID) {
		return nil, models.ErrNotAMember
	}

	// Model selection and the context fetch can take seconds, so the
	// indicator goes out before any network call and is cleared on every
	// terminal path.
	uc.broadcaster.Publish(roomID, models.EventAITyping, map[string]any{"room_id": roomID.Hex()})
	defer uc.broadcaster.Publish(roomID, models.EventAITypingStopped, map[string]any{"room_id": roomID.Hex()})

	fullPrompt := uc.withRepoContext(ctx, room, userID, prompt)

	genCtx, cancel := context.WithTimeout(ctx, uc.conf.GenerateTimeout)
	defer cancel()

	text, err := uc.generateWithFallback(genCtx, fullPrompt)
	if err != nil {
		return uc.deliverFailure(ctx, roomID, err)
	}

	payload := llm.ParseCompletion(text)
	msg := &models.Message{
		Author: models.BotAuthor(models.BotAssistant),
		Kind:   models.KindAICode,
		Body:   payload.Explanation,
		AICode: payload,
	}
	if err := uc.roomRepo.AppendMessage(ctx, roomID, msg); err != nil {
		return nil, fmt.Errorf("append generated message: %w", err)
	}
	uc.broadcaster.Publish(roomID, models.EventAICodeGenerated, msg)
	uc.broadcaster.Publish(roomID, models.EventNewMessage, msg)
	return msg, nil
}

// withRepoContext prepends a compact repository summary to the prompt when
// the room has a linked repository. Any fetch failure degrades to the bare
// prompt.
func (uc *aiUsecase) withRepoContext(ctx context.Context, room *models.Room, userID primitive.ObjectID, prompt string) string {
	if room.RepoFullName == "" {
		return prompt
	}

	fetchCtx, cancel := context.WithTimeout(ctx, uc.conf.ContextTimeout)
	defer cancel()

	token := ""
	if user, err := uc.userRepo.GetByID(fetchCtx, userID); err == nil {
		token = user.GithubToken
	}
	repoCtx, err := uc.github.FetchRepoContext(fetchCtx, token, room.RepoFullName)
	if err != nil {
		log.Warnw(ctx, "repo context unavailable, generating without it",
			"repo", room.RepoFullName, "error", err)
		return prompt
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\n", repoCtx.FullName)
	if repoCtx.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", repoCtx.Description)
	}
	if repoCtx.Language != "" {
		fmt.Fprintf(&b, "Primary language: %s\n", repoCtx.Language)
	}
	if len(repoCtx.RecentCommits) > 0 {
		fmt.Fprintf(&b, "Recent commits:\n- %s\n", strings.Join(repoCtx.RecentCommits, "\n- "))
	}
	b.WriteString("\n")
	b.WriteString(prompt)
	return b.String()
}

// generateWithFallback walks the candidate ladder: explicit override, cached
// last-working model, then the provider's fixed preference list. Rate limits
// trigger bounded backoff over the remaining candidates; a missing model
// triggers one live model-list query.
func (uc *aiUsecase) generateWithFallback(ctx context.Context, prompt string) (string, error) {
	candidates := uc.candidateModels()
	attempted := make([]string, 0, len(candidates))
	rateLimitRetries := 0
	listQueried := false

	var lastErr error
	for i := 0; i < len(candidates); i++ {
		model := candidates[i]
		attempted = append(attempted, model)

		text, err := uc.provider.Generate(ctx, model, prompt)
		if err == nil {
			uc.modelCache.Set(model)
			return text, nil
		}
		lastErr = err
		log.Warnw(ctx, "generation attempt failed",
			"provider", uc.provider.Name(), "model", model, "error", err)

		switch {
		case errors.Is(err, models.ErrUpstreamRateLimited):
			if rateLimitRetries >= maxRateLimitRetries || i == len(candidates)-1 {
				return "", uc.terminal(attempted, models.ErrUpstreamRateLimited)
			}
			if err := sleepCtx(ctx, backoffSchedule[min(rateLimitRetries, len(backoffSchedule)-1)]); err != nil {
				return "", uc.terminal(attempted, models.ErrUpstreamTimeout)
			}
			rateLimitRetries++

		case errors.Is(err, llm.ErrModelNotFound):
			uc.modelCache.Invalidate()
			if listQueried {
				continue
			}
			listQueried = true
			if live := uc.liveModel(ctx, attempted); live != "" {
				rest := append([]string{live}, candidates[i+1:]...)
				candidates = append(candidates[:i+1], rest...)
			}

		case errors.Is(err, models.ErrUpstreamAuthFailed):
			return "", uc.terminal(attempted, err)

		case errors.Is(err, models.ErrUpstreamTimeout):
			if ctx.Err() != nil {
				return "", uc.terminal(attempted, models.ErrUpstreamTimeout)
			}
		}
	}
	return "", uc.terminal(attempted, lastErr)
}

// candidateModels is preference-ordered and deduplicated.
func (uc *aiUsecase) candidateModels() []string {
	var candidates []string
	if uc.conf.ModelOverride != "" {
		candidates = append(candidates, uc.conf.ModelOverride)
	}
	if cached, ok := uc.modelCache.Get(); ok {
		candidates = append(candidates, cached)
	}
	candidates = append(candidates, uc.provider.FallbackModels()...)

	seen := make(map[string]bool, len(candidates))
	deduped := candidates[:0]
	for _, m := range candidates {
		if !seen[m] {
			seen[m] = true
			deduped = append(deduped, m)
		}
	}
	return deduped
}

func (uc *aiUsecase) liveModel(ctx context.Context, attempted []string) string {
	available, err := uc.provider.ListModels(ctx)
	if err != nil {
		log.Warnw(ctx, "live model list unavailable", "provider", uc.provider.Name(), "error", err)
		return ""
	}
	tried := make(map[string]bool, len(attempted))
	for _, m := range attempted {
		tried[m] = true
	}
	for _, m := range available {
		if !tried[m] {
			return m
		}
	}
	return ""
}

func (uc *aiUsecase) terminal(attempted []string, cause error) error {
	return &models.GenerationError{
		Provider:        uc.provider.Name(),
		AttemptedModels: attempted,
		Cause:           cause,
	}
}

// deliverFailure turns a terminal generation error into an error-flagged room
// message so every participant sees the request failed.
func (uc *aiUsecase) deliverFailure(ctx context.Context, roomID primitive.ObjectID, genErr error) (*models.Message, error) {
	log.Errorw(ctx, "generation failed", "room_id", roomID.Hex(), "error", genErr)

	msg := &models.Message{
		Author:  models.BotAuthor(models.BotAssistant),
		Kind:    models.KindAICode,
		Body:    fmt.Sprintf("I couldn't generate a response: %v", genErr),
		IsError: true,
	}
	if err := uc.roomRepo.AppendMessage(ctx, roomID, msg); err != nil {
		log.Errorw(ctx, "append failure message", "room_id", roomID.Hex(), "error", err)
		return nil, genErr
	}
	uc.broadcaster.Publish(roomID, models.EventNewMessage, msg)
	return msg, genErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
