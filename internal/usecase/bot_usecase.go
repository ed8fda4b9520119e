package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"

	"github.com/SnippyKid/OmegaChat-sub000/internal/config"
	"github.com/SnippyKid/OmegaChat-sub000/internal/models"
	"github.com/SnippyKid/OmegaChat-sub000/internal/repo/github"
	"github.com/SnippyKid/OmegaChat-sub000/internal/repo/mongodb"
)

// RepoWebhook is the subset of an inbound repository webhook the notifier
// cares about.
type RepoWebhook struct {
	Event        string
	Action       string
	Title        string
	SenderLogin  string
	RepoFullName string
}

type BotUsecase interface {
	// HandleRepoWebhook fans a repository event out to every room linked to
	// the repository, directly or through a project. It returns how many
	// rooms were notified.
	HandleRepoWebhook(ctx context.Context, hook RepoWebhook) (int, error)
	// RepoStats serves the in-room dk_bot stats command with a synthetic
	// bot message, degrading to an explanatory message when no repository
	// or credential is available.
	RepoStats(ctx context.Context, roomID, userID primitive.ObjectID) (*models.Message, error)
}

type botUsecase struct {
	roomRepo    mongodb.RoomRepository
	projectRepo mongodb.ProjectRepository
	userRepo    mongodb.UserRepository
	github      github.Client
	broadcaster Broadcaster
	conf        config.GitHubConfig
}

func NewBotUsecase(
	roomRepo mongodb.RoomRepository,
	projectRepo mongodb.ProjectRepository,
	userRepo mongodb.UserRepository,
	githubClient github.Client,
	broadcaster Broadcaster,
	conf *config.Config,
) BotUsecase {
	return &botUsecase{
		roomRepo:    roomRepo,
		projectRepo: projectRepo,
		userRepo:    userRepo,
		github:      githubClient,
		broadcaster: broadcaster,
		conf:        conf.GitHub,
	}
}

func (uc *botUsecase) HandleRepoWebhook(ctx context.Context, hook RepoWebhook) (int, error) {
	if hook.Event == "" || hook.RepoFullName == "" {
		return 0, fmt.Errorf("%w: webhook event and repository name are required", models.ErrValidation)
	}

	rooms, err := uc.linkedRooms(ctx, hook.RepoFullName)
	if err != nil {
		return 0, err
	}
	if len(rooms) == 0 {
		return 0, nil
	}

	body := formatRepoEvent(hook)
	var notified atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for _, room := range rooms {
		g.Go(func() error {
			msg := &models.Message{
				Author: models.BotAuthor(models.BotRepo),
				Kind:   models.KindRepo,
				Body:   body,
				RepoEvent: &models.RepoEventPayload{
					RepoFullName: hook.RepoFullName,
					Event:        hook.Event,
					Action:       hook.Action,
					Title:        hook.Title,
					SenderLogin:  hook.SenderLogin,
				},
			}
			if err := uc.roomRepo.AppendMessage(gctx, room.ID, msg); err != nil {
				log.Errorw(gctx, "append webhook message",
					"room_id", room.ID.Hex(), "repo", hook.RepoFullName, "error", err)
				return nil
			}
			uc.broadcaster.Publish(room.ID, models.EventNewMessage, msg)
			notified.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return int(notified.Load()), nil
}

// linkedRooms resolves every room tied to a repository: rooms linking it
// directly plus rooms of any project linking it. Duplicates collapse by id.
func (uc *botUsecase) linkedRooms(ctx context.Context, repoFullName string) ([]*models.Room, error) {
	direct, err := uc.roomRepo.GetByRepoFullName(ctx, repoFullName)
	if err != nil {
		return nil, fmt.Errorf("rooms by repository: %w", err)
	}

	projects, err := uc.projectRepo.GetByRepoFullName(ctx, repoFullName)
	if err != nil {
		return nil, fmt.Errorf("projects by repository: %w", err)
	}
	var viaProjects []*models.Room
	if len(projects) > 0 {
		ids := make([]primitive.ObjectID, 0, len(projects))
		for _, p := range projects {
			ids = append(ids, p.ID)
		}
		viaProjects, err = uc.roomRepo.GetByProjectIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("rooms by project: %w", err)
		}
	}

	seen := make(map[primitive.ObjectID]bool)
	var rooms []*models.Room
	for _, r := range append(direct, viaProjects...) {
		if !seen[r.ID] {
			seen[r.ID] = true
			rooms = append(rooms, r)
		}
	}
	return rooms, nil
}

func (uc *botUsecase) RepoStats(ctx context.Context, roomID, userID primitive.ObjectID) (*models.Message, error) {
	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasMember(userID) {
		return nil, models.ErrNotAMember
	}

	repoFullName := uc.roomRepoName(ctx, room)
	if repoFullName == "" {
		return uc.deliver(ctx, roomID, "This room has no linked repository, so there are no stats to show.")
	}

	token := uc.resolveToken(ctx, room)

	fetchCtx, cancel := context.WithTimeout(ctx, uc.conf.StatsTimeout)
	defer cancel()

	stats, err := uc.github.FetchRepoStats(fetchCtx, token, repoFullName)
	if err != nil {
		log.Warnw(ctx, "repo stats unavailable", "repo", repoFullName, "error", err)
		return uc.deliver(ctx, roomID,
			fmt.Sprintf("I couldn't fetch stats for %s right now. Please try again later.", repoFullName))
	}

	return uc.deliver(ctx, roomID, formatRepoStats(stats))
}

func (uc *botUsecase) roomRepoName(ctx context.Context, room *models.Room) string {
	if room.RepoFullName != "" {
		return room.RepoFullName
	}
	if room.ProjectID == nil {
		return ""
	}
	project, err := uc.projectRepo.GetByID(ctx, *room.ProjectID)
	if err != nil {
		log.Warnw(ctx, "lookup linked project", "project_id", room.ProjectID.Hex(), "error", err)
		return ""
	}
	return project.RepoFullName
}

// resolveToken prefers the linked project owner's credential, then any
// member's, then the service-level token.
func (uc *botUsecase) resolveToken(ctx context.Context, room *models.Room) string {
	var ordered []primitive.ObjectID
	if room.ProjectID != nil {
		if project, err := uc.projectRepo.GetByID(ctx, *room.ProjectID); err == nil {
			ordered = append(ordered, project.OwnerID)
		}
	}
	ordered = append(ordered, room.Members...)

	seen := make(map[primitive.ObjectID]bool)
	for _, id := range ordered {
		if seen[id] {
			continue
		}
		seen[id] = true
		user, err := uc.userRepo.GetByID(ctx, id)
		if err != nil {
			continue
		}
		if user.GithubToken != "" {
			return user.GithubToken
		}
	}
	return uc.conf.Token
}

func (uc *botUsecase) deliver(ctx context.Context, roomID primitive.ObjectID, body string) (*models.Message, error) {
	msg := &models.Message{
		Author: models.BotAuthor(models.BotRepo),
		Kind:   models.KindSystem,
		Body:   body,
	}
	if err := uc.roomRepo.AppendMessage(ctx, roomID, msg); err != nil {
		return nil, fmt.Errorf("append bot message: %w", err)
	}
	uc.broadcaster.Publish(roomID, models.EventDKBotResponse, msg)
	uc.broadcaster.Publish(roomID, models.EventNewMessage, msg)
	return msg, nil
}

func formatRepoEvent(hook RepoWebhook) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", hook.RepoFullName, hook.Event)
	if hook.Action != "" {
		fmt.Fprintf(&b, " %s", hook.Action)
	}
	if hook.Title != "" {
		fmt.Fprintf(&b, ": %s", hook.Title)
	}
	if hook.SenderLogin != "" {
		fmt.Fprintf(&b, " (by %s)", hook.SenderLogin)
	}
	return b.String()
}

func formatRepoStats(stats *github.RepoStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Stats for %s\n", stats.FullName)
	if stats.Description != "" {
		fmt.Fprintf(&b, "%s\n", stats.Description)
	}
	if stats.Language != "" {
		fmt.Fprintf(&b, "Language: %s\n", stats.Language)
	}
	fmt.Fprintf(&b, "Stars: %d | Forks: %d | Open issues: %d | Watchers: %d\n",
		stats.Stars, stats.Forks, stats.OpenIssues, stats.Watchers)
	fmt.Fprintf(&b, "Default branch: %s", stats.DefaultBranch)
	if stats.PushedAt != nil {
		fmt.Fprintf(&b, "\nLast push: %s", stats.PushedAt.Format("2006-01-02 15:04 MST"))
	}
	return b.String()
}
