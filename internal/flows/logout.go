package flows

import (
	"context"
)

type LogoutStore interface {
	RemoveRefreshToken(ctx context.Context, id, token string) error
	ClearRefreshTokens(ctx context.Context, id string) error
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Hooks
	Store       LogoutStore
	DigestToken func(string) string

	Metrics struct {
		Logout    int
		LogoutAll int
	}
	Events struct {
		Logout    string
		LogoutAll string
	}
}

// RunLogout revokes one refresh token of accountID. An empty token revokes
// nothing, and revoking a token that is not live is not an error.
func RunLogout(ctx context.Context, accountID, refreshToken string, deps LogoutDeps) error {
	deps.normalize()
	if refreshToken != "" {
		if err := deps.Store.RemoveRefreshToken(ctx, accountID, deps.DigestToken(refreshToken)); err != nil {
			deps.EmitAudit(ctx, deps.Events.Logout, false, accountID, err, nil)
			return err
		}
	}
	deps.MetricInc(deps.Metrics.Logout)
	deps.EmitAudit(ctx, deps.Events.Logout, true, accountID, nil, nil)
	return nil
}

// RunLogoutAll revokes every refresh token of accountID.
func RunLogoutAll(ctx context.Context, accountID string, deps LogoutDeps) error {
	deps.normalize()
	if err := deps.Store.ClearRefreshTokens(ctx, accountID); err != nil {
		deps.EmitAudit(ctx, deps.Events.LogoutAll, false, accountID, err, nil)
		return err
	}
	deps.MetricInc(deps.Metrics.LogoutAll)
	deps.EmitAudit(ctx, deps.Events.LogoutAll, true, accountID, nil, nil)
	return nil
}
