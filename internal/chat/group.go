package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"go-talk/internal/apperr"
	"go-talk/internal/httpx"
)

// GroupService administers groups. Membership changes are visible to the
// router immediately since fan-out never caches membership.
type GroupService struct {
	repo     *Repository
	registry *Registry
}

func NewGroupService(repo *Repository, registry *Registry) *GroupService {
	return &GroupService{repo: repo, registry: registry}
}

func (s *GroupService) Create(ctx context.Context, creatorID string, req CreateGroupRequest) (*GroupDetail, error) {
	if err := httpx.Validate(&req); err != nil {
		return nil, err
	}
	g := &Group{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		CreatorID:   creatorID,
		CreatedAt:   time.Now().UTC(),
	}
	memberIDs := lo.Without(lo.Uniq(req.MemberIDs), creatorID)
	if err := s.repo.CreateGroup(ctx, g, memberIDs); err != nil {
		return nil, err
	}
	return s.detail(ctx, g)
}

func (s *GroupService) List(ctx context.Context, userID string) ([]Group, error) {
	return s.repo.GroupsForUser(ctx, userID)
}

// Get returns the group with its members; only members may see it.
func (s *GroupService) Get(ctx context.Context, groupID, userID string) (*GroupDetail, error) {
	g, err := s.repo.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if _, err := s.role(ctx, groupID, userID); err != nil {
		return nil, err
	}
	return s.detail(ctx, g)
}

// AddMember lets a group admin add a user.
func (s *GroupService) AddMember(ctx context.Context, groupID, actorID, userID string) (*GroupDetail, error) {
	g, err := s.requireAdmin(ctx, groupID, actorID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.AddMember(ctx, groupID, userID, RoleMember); err != nil {
		return nil, err
	}
	return s.detail(ctx, g)
}

// RemoveMember lets an admin remove anyone, and any member remove themselves.
// The removed user's live session also leaves the room.
func (s *GroupService) RemoveMember(ctx context.Context, groupID, actorID, userID string) error {
	if actorID == userID {
		if _, err := s.repo.GetGroup(ctx, groupID); err != nil {
			return err
		}
	} else if _, err := s.requireAdmin(ctx, groupID, actorID); err != nil {
		return err
	}
	if err := s.repo.RemoveMember(ctx, groupID, userID); err != nil {
		return err
	}
	s.registry.Evict(userID, groupID)
	return nil
}

func (s *GroupService) requireAdmin(ctx context.Context, groupID, actorID string) (*Group, error) {
	g, err := s.repo.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	role, err := s.role(ctx, groupID, actorID)
	if err != nil {
		return nil, err
	}
	if role != RoleAdmin {
		return nil, fmt.Errorf("%w: admin role required", apperr.ErrPermissionDenied)
	}
	return g, nil
}

func (s *GroupService) role(ctx context.Context, groupID, userID string) (Role, error) {
	role, err := s.repo.MemberRole(ctx, groupID, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return "", fmt.Errorf("%w: not a member of the group", apperr.ErrPermissionDenied)
	}
	return role, err
}

func (s *GroupService) detail(ctx context.Context, g *Group) (*GroupDetail, error) {
	members, err := s.repo.Members(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	return &GroupDetail{Group: *g, Members: members}, nil
}
