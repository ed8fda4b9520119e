package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/SnippyKid/OmegaChat-sub000/internal/config"
	"github.com/SnippyKid/OmegaChat-sub000/internal/models"
	"github.com/SnippyKid/OmegaChat-sub000/internal/repo/github"
	"github.com/SnippyKid/OmegaChat-sub000/internal/repo/llm"
)

type fakeProvider struct {
	fallbacks []string
	replies   map[string]string
	failures  map[string]error
	available []string
	calls     []string
	listCalls int
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Generate(ctx context.Context, model, prompt string) (string, error) {
	p.calls = append(p.calls, model)
	if err, ok := p.failures[model]; ok {
		return "", err
	}
	if reply, ok := p.replies[model]; ok {
		return reply, nil
	}
	return "", models.ErrUpstreamError
}

func (p *fakeProvider) ListModels(ctx context.Context) ([]string, error) {
	p.listCalls++
	return p.available, nil
}

func (p *fakeProvider) FallbackModels() []string { return p.fallbacks }

type fakeGithub struct{}

func (fakeGithub) FetchRepoContext(ctx context.Context, token, fullName string) (*github.RepoContext, error) {
	return nil, models.ErrUpstreamTimeout
}

func (fakeGithub) FetchRepoStats(ctx context.Context, token, fullName string) (*github.RepoStats, error) {
	return nil, models.ErrUpstreamTimeout
}

func newAIFixture(t *testing.T, provider llm.Provider) (*memRoomRepo, *recordingBroadcaster, AIUsecase, *models.Room, primitive.ObjectID) {
	t.Helper()
	roomRepo := newMemRoomRepo()
	userRepo := newMemUserRepo()
	broadcaster := &recordingBroadcaster{}
	conf := &config.Config{}
	conf.LLM.GenerateTimeout = 5 * time.Second
	conf.LLM.ContextTimeout = 100 * time.Millisecond
	conf.LLM.ModelCacheTTL = time.Minute

	uc := NewAIUsecase(provider, llm.NewModelCache(time.Minute), fakeGithub{}, roomRepo, userRepo, broadcaster, conf)

	owner := primitive.NewObjectID()
	room := &models.Room{Name: "room", Members: []primitive.ObjectID{owner}}
	require.NoError(t, roomRepo.Create(context.Background(), room))
	return roomRepo, broadcaster, uc, room, owner
}

func shortBackoff(t *testing.T) {
	t.Helper()
	orig := backoffSchedule
	backoffSchedule = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	t.Cleanup(func() { backoffSchedule = orig })
}

func TestGenerateCodeFallsBackPastRateLimit(t *testing.T) {
	shortBackoff(t)
	provider := &fakeProvider{
		fallbacks: []string{"primary", "secondary"},
		failures:  map[string]error{"primary": models.ErrUpstreamRateLimited},
		replies:   map[string]string{"secondary": "Use a map.\n```go\nm := map[string]int{}\n```"},
	}
	_, broadcaster, uc, room, owner := newAIFixture(t, provider)

	msg, err := uc.GenerateCode(context.Background(), room.ID, owner, "write a hello world function")
	require.NoError(t, err)

	assert.Equal(t, []string{"primary", "secondary"}, provider.calls)
	require.NotNil(t, msg.AICode)
	assert.Equal(t, "m := map[string]int{}", msg.AICode.Code)
	assert.Equal(t, "go", msg.AICode.Language)
	assert.Equal(t, models.BotAssistant, msg.Author.Bot)

	names := broadcaster.eventNames()
	assert.Contains(t, names, models.EventAITyping)
	assert.Contains(t, names, models.EventAICodeGenerated)
	assert.Equal(t, models.EventAITypingStopped, names[len(names)-1])
}

func TestGenerateCodeExhaustionListsAttemptedModels(t *testing.T) {
	shortBackoff(t)
	provider := &fakeProvider{
		fallbacks: []string{"a", "b", "c"},
		failures: map[string]error{
			"a": models.ErrUpstreamRateLimited,
			"b": models.ErrUpstreamRateLimited,
			"c": models.ErrUpstreamRateLimited,
		},
	}
	roomRepo, broadcaster, uc, room, owner := newAIFixture(t, provider)

	msg, err := uc.GenerateCode(context.Background(), room.ID, owner, "anything")
	require.Error(t, err)

	var genErr *models.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, []string{"a", "b", "c"}, genErr.AttemptedModels)
	assert.ErrorIs(t, genErr.Cause, models.ErrUpstreamRateLimited)

	// The failure is still delivered into the room as an error-flagged
	// message, not silently dropped.
	require.NotNil(t, msg)
	assert.True(t, msg.IsError)
	stored, err := roomRepo.GetByID(context.Background(), room.ID)
	require.NoError(t, err)
	last := stored.Messages[len(stored.Messages)-1]
	assert.True(t, last.IsError)

	names := broadcaster.eventNames()
	assert.Equal(t, models.EventAITypingStopped, names[len(names)-1])
}

func TestGenerateCodeRecoversFromMissingModel(t *testing.T) {
	provider := &fakeProvider{
		fallbacks: []string{"gone"},
		failures:  map[string]error{"gone": llm.ErrModelNotFound},
		available: []string{"gone", "live"},
		replies:   map[string]string{"live": "plain explanation, no code"},
	}
	_, _, uc, room, owner := newAIFixture(t, provider)

	msg, err := uc.GenerateCode(context.Background(), room.ID, owner, "anything")
	require.NoError(t, err)

	assert.Equal(t, 1, provider.listCalls)
	assert.Equal(t, []string{"gone", "live"}, provider.calls)
	assert.Empty(t, msg.AICode.Code)
	assert.Equal(t, "plain explanation, no code", msg.AICode.Explanation)
}

func TestGenerateCodeRequiresMembership(t *testing.T) {
	provider := &fakeProvider{fallbacks: []string{"m"}, replies: map[string]string{"m": "ok"}}
	_, _, uc, room, _ := newAIFixture(t, provider)

	_, err := uc.GenerateCode(context.Background(), room.ID, primitive.NewObjectID(), "prompt")
	assert.ErrorIs(t, err, models.ErrNotAMember)
	assert.Empty(t, provider.calls)
}
