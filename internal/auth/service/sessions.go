package service

import (
	"context"
	"sort"

	"trustcore/internal/auth/models"
	id "trustcore/pkg/domain"
	"trustcore/pkg/requestcontext"
)

// ListSessions returns the principal's active sessions, most recently used
// first. currentSessionID marks the session the request arrived on.
func (s *Service) ListSessions(ctx context.Context, principal *models.Principal, currentSessionID id.SessionID) ([]models.SessionView, error) {
	now := requestcontext.Now(ctx)

	sessions, err := s.sessions.ListByUser(ctx, principal.ID)
	if err != nil {
		return nil, err
	}

	views := make([]models.SessionView, 0, len(sessions))
	for _, session := range sessions {
		if !session.IsActive(now) {
			continue
		}
		views = append(views, models.SessionView{
			ID:         session.ID,
			IP:         session.IP,
			DeviceName: session.DeviceName,
			CreatedAt:  session.CreatedAt,
			LastUsedAt: session.LastUsedAt,
			Current:    session.ID == currentSessionID,
		})
	}

	sort.Slice(views, func(i, j int) bool {
		return views[i].LastUsedAt.After(views[j].LastUsedAt)
	})
	return views, nil
}
