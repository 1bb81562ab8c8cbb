package services

import (
	"context"
	"errors"
	"html"
	"slices"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/pocket-tcg/api/internal/platform/textutil"
	"github.com/pocket-tcg/api/internal/repositories"
	"github.com/pocket-tcg/api/internal/view"
)

const (
	directoryEventRegistered = "directory.registered"
	maxDisplayNameRunes      = 64
)

var errDirectoryUserRequired = errors.New("directory: user id is required")

// ErrDirectoryUserRequired indicates the caller did not supply a user id.
var ErrDirectoryUserRequired = errDirectoryUserRequired

// DirectoryServiceDeps bundles collaborators for NewDirectoryService.
type DirectoryServiceDeps struct {
	Repository repositories.DirectoryRepository
	// ExcludeSelf drops the signed-in user from Friends.
	ExcludeSelf bool
	// Locale drives display-name collation. Defaults to English.
	Locale string
	Logger EventLogger
}

type directoryService struct {
	repo        repositories.DirectoryRepository
	excludeSelf bool
	tag         language.Tag
	policy      *bluemonday.Policy
	logger      EventLogger
}

var _ DirectoryService = (*directoryService)(nil)

// NewDirectoryService builds the directory service.
func NewDirectoryService(deps DirectoryServiceDeps) (DirectoryService, error) {
	if deps.Repository == nil {
		return nil, errors.New("directory service: repository is required")
	}
	tag := language.English
	if locale := strings.TrimSpace(deps.Locale); locale != "" {
		parsed, err := language.Parse(locale)
		if err != nil {
			return nil, err
		}
		tag = parsed
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &directoryService{
		repo:        deps.Repository,
		excludeSelf: deps.ExcludeSelf,
		tag:         tag,
		policy:      bluemonday.StrictPolicy(),
		logger:      logger,
	}, nil
}

// Register records the signed-in user under their uid. Markup is stripped from the display name;
// an empty name falls back to the email local part and then to the uid.
func (s *directoryService) Register(ctx context.Context, cmd RegisterUserCommand) (UserSummary, error) {
	uid := strings.TrimSpace(cmd.UID)
	if uid == "" {
		return UserSummary{}, errDirectoryUserRequired
	}
	user := UserSummary{UID: uid, DisplayName: s.displayName(cmd)}
	if err := s.repo.Upsert(ctx, user); err != nil {
		return UserSummary{}, err
	}
	s.logger(ctx, directoryEventRegistered, map[string]any{"userId": uid})
	return user, nil
}

func (s *directoryService) List(ctx context.Context) ([]UserSummary, error) {
	snap, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return s.sorted(snap.Users), nil
}

func (s *directoryService) Friends(ctx context.Context, self string) ([]UserSummary, error) {
	users, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return view.Friends(users, self, s.excludeSelf), nil
}

func (s *directoryService) Watch(ctx context.Context) (<-chan []UserSummary, error) {
	src, err := s.repo.Watch(ctx)
	if err != nil {
		return nil, err
	}
	mailbox := repositories.NewLatest[[]UserSummary]()
	go func() {
		defer mailbox.Close()
		for snap := range src {
			mailbox.Offer(s.sorted(snap.Users))
		}
	}()
	return mailbox.C(), nil
}

// sorted orders users by collated display name, then uid. Collators keep internal buffers, so
// each call builds its own.
func (s *directoryService) sorted(users []UserSummary) []UserSummary {
	out := slices.Clone(users)
	c := collate.New(s.tag, collate.IgnoreCase, collate.Loose)
	slices.SortStableFunc(out, func(a, b UserSummary) int {
		if cmp := c.CompareString(a.DisplayName, b.DisplayName); cmp != 0 {
			return cmp
		}
		return strings.Compare(a.UID, b.UID)
	})
	return out
}

func (s *directoryService) displayName(cmd RegisterUserCommand) string {
	name := s.plainText(cmd.DisplayName)
	if name == "" {
		if local, _, ok := strings.Cut(strings.TrimSpace(cmd.Email), "@"); ok {
			name = s.plainText(local)
		}
	}
	if name == "" {
		name = strings.TrimSpace(cmd.UID)
	}
	return textutil.TruncateRunes(name, maxDisplayNameRunes)
}

// plainText strips markup and collapses whitespace. The policy escapes entities, which are
// decoded again because names are stored as text.
func (s *directoryService) plainText(raw string) string {
	return textutil.CollapseSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}
