package services

import (
	"context"
	"fmt"
	"strings"

	"vibeproof/models"
)

// AppChecks evaluates app_action missions against local state only.
type AppChecks struct {
	State AppStateReader
	Clock Clock
}

func NewAppChecks(state AppStateReader, clock Clock) *AppChecks {
	return &AppChecks{State: state, Clock: clock}
}

func (a *AppChecks) Action(ctx context.Context, principal string, cfg models.VerificationConfig) (VerificationResult, error) {
	action := cfgString(cfg, "action")
	if action == "" {
		return VerificationResult{}, missingConfig("action")
	}

	profile, err := a.State.Profile(ctx, principal)
	if err != nil {
		return VerificationResult{}, fmt.Errorf("loading profile: %w", err)
	}

	switch action {
	case "profile_created":
		if profile == nil {
			return notMet("Profile has not been created yet"), nil
		}
		return passed("Profile created", map[string]any{"action": action}), nil

	case "username_set":
		if profile == nil || strings.TrimSpace(profile.Username) == "" {
			return notMet("Username is not set"), nil
		}
		return passed("Username set", map[string]any{"action": action, "username": profile.Username}), nil

	case "social_linked":
		provider := cfgString(cfg, "provider")
		if provider != "" {
			acct, err := a.State.LinkedAccount(ctx, principal, provider)
			if err != nil {
				return VerificationResult{}, fmt.Errorf("loading linked account: %w", err)
			}
			if acct == nil {
				return notMet("No %s account linked", provider), nil
			}
			return passed("Account linked", map[string]any{"action": action, "provider": provider}), nil
		}
		providers, err := a.State.LinkedProviders(ctx, principal)
		if err != nil {
			return VerificationResult{}, fmt.Errorf("loading linked accounts: %w", err)
		}
		if len(providers) == 0 {
			return notMet("No social account linked"), nil
		}
		return passed("Account linked", map[string]any{"action": action, "providers": providers}), nil

	case "checked_in_today":
		today := a.Clock.Today()
		if profile == nil || profile.CheckedInOn != today {
			return notMet("Not checked in today"), nil
		}
		return passed("Checked in today", map[string]any{"action": action, "date": today}), nil

	case "flag":
		flag := cfgString(cfg, "flag")
		if flag == "" {
			return VerificationResult{}, missingConfig("flag")
		}
		if profile == nil || !profile.Flags[flag] {
			return notMet("Action %q not recorded yet", flag), nil
		}
		return passed("Action recorded", map[string]any{"action": action, "flag": flag}), nil

	default:
		return VerificationResult{}, fmt.Errorf("%w: unknown app action %q", ErrValidation, action)
	}
}
