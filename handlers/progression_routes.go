// handlers/progression_routes.go
package handlers

import (
	"strconv"
	"strings"

	"vibeproof/middleware"
	"vibeproof/models"
	"vibeproof/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type profileRequest struct {
	Username string   `json:"username" validate:"omitempty,min=3,max=32"`
	Flags    []string `json:"flags" validate:"omitempty,max=16,dive,min=1,max=48"`
}

type linkSocialRequest struct {
	Provider       string `json:"provider" validate:"required,oneof=x"`
	ExternalUserID string `json:"external_user_id" validate:"required,max=64"`
	Username       string `json:"username" validate:"max=64"`
	AccessToken    string `json:"access_token" validate:"required"`
}

func progressView(prog *models.UserProgress, badges []services.AwardedBadge) fiber.Map {
	return fiber.Map{
		"id":                 prog.ID,
		"wallet":             prog.Wallet,
		"xp":                 prog.XP,
		"level":              prog.Level,
		"xp_into_level":      prog.XP % services.XPPerLevel,
		"xp_for_next_level":  services.XPPerLevel - prog.XP%services.XPPerLevel,
		"streak":             prog.Streak,
		"longest_streak":     prog.LongestStreak,
		"last_active_date":   prog.LastActiveDate,
		"missions_completed": prog.MissionsCompleted,
		"last_level_up_at":   prog.LastLevelUpAt,
		"badges":             badges,
	}
}

func SetupProgressionRoutes(app *fiber.App, progress *services.ProgressionService, state *services.AppStateService, ledger *services.Ledger, logger *zap.Logger) {
	// The gateway forwards /api/v1/vibe/user/* -> /user/*
	securedGroup := app.Group("/user", middleware.WalletContextMiddleware(logger))

	securedGroup.Get("/progress", func(c *fiber.Ctx) error {
		wallet := middleware.Wallet(c)

		prog, err := progress.EnsureProgressRecord(c.UserContext(), wallet)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load progress record",
				"cause": err.Error(),
			})
		}
		var badges []services.AwardedBadge
		if progress.Badges != nil {
			if badges, err = progress.Badges.ListForWallet(c.UserContext(), wallet); err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "failed to get badges",
					"cause": err.Error(),
				})
			}
		}
		return c.JSON(progressView(prog, badges))
	})

	securedGroup.Get("/completions", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", "50"))
		rows, err := ledger.ListByPrincipal(c.UserContext(), middleware.Wallet(c), limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to get completions",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"completions": rows})
	})

	// Check-in marks today's app state and counts toward the streak; it grants no XP.
	securedGroup.Post("/check-in", func(c *fiber.Ctx) error {
		wallet := middleware.Wallet(c)
		today := progress.Clock.Today()

		profile, err := state.CheckIn(c.UserContext(), wallet, today)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "check-in failed",
				"cause": err.Error(),
			})
		}
		prog, err := progress.RecordActivity(c.UserContext(), wallet)
		if err != nil {
			return respondError(c, "failed to update streak", err)
		}
		return c.JSON(fiber.Map{
			"date":    today,
			"profile": profile,
			"streak":  prog.Streak,
		})
	})

	securedGroup.Put("/profile", func(c *fiber.Ctx) error {
		var req profileRequest
		if ok, err := parseBody(c, &req); !ok {
			return err
		}
		wallet := middleware.Wallet(c)
		ctx := c.UserContext()

		profile, err := state.EnsureProfile(ctx, wallet)
		if err == nil && strings.TrimSpace(req.Username) != "" {
			profile, err = state.SetUsername(ctx, wallet, req.Username)
		}
		for _, flag := range req.Flags {
			if err != nil {
				break
			}
			profile, err = state.SetFlag(ctx, wallet, flag, true)
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to update profile",
				"cause": err.Error(),
			})
		}
		return c.JSON(profile)
	})

	// Stores a token the client obtained through its own OAuth flow.
	securedGroup.Post("/social", func(c *fiber.Ctx) error {
		var req linkSocialRequest
		if ok, err := parseBody(c, &req); !ok {
			return err
		}
		acct := &models.SocialAccount{
			Wallet:         middleware.Wallet(c),
			Provider:       req.Provider,
			ExternalUserID: req.ExternalUserID,
			Username:       strings.TrimPrefix(req.Username, "@"),
			AccessToken:    req.AccessToken,
		}
		if err := state.LinkSocial(c.UserContext(), acct); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to link account",
				"cause": err.Error(),
			})
		}
		logger.Info("social account linked", zap.String("wallet", acct.Wallet), zap.String("provider", acct.Provider))
		return c.Status(fiber.StatusCreated).JSON(acct)
	})
}
