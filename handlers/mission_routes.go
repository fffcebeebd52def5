// handlers/mission_routes.go
package handlers

import (
	"time"

	"vibeproof/middleware"
	"vibeproof/models"
	"vibeproof/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// missionView is a board entry annotated with the caller's latest attempt.
type missionView struct {
	ID                 string                    `json:"id"`
	TemplateID         string                    `json:"template_id"`
	Title              string                    `json:"title"`
	Description        string                    `json:"description"`
	VerificationType   models.VerificationType   `json:"verification_type"`
	VerificationConfig models.VerificationConfig `json:"verification_config,omitempty"`
	XPReward           int64                     `json:"xp_reward"`
	StartsAt           *time.Time                `json:"starts_at,omitempty"`
	ExpiresAt          *time.Time                `json:"expires_at,omitempty"`
	Status             models.CompletionStatus   `json:"status,omitempty"`
}

type verifyRequest struct {
	InstanceID  string `json:"instance_id" validate:"required_without=TemplateID,excluded_with=TemplateID,max=128"`
	TemplateID  string `json:"template_id" validate:"required_without=InstanceID,max=64"`
	ManualProof string `json:"manual_proof" validate:"max=2000"`
}

func SetupMissionRoutes(app *fiber.App, missions *services.MissionService, logger *zap.Logger) {
	// Boards are readable anonymously; a wallet header adds per-mission status.
	public := app.Group("/missions", middleware.WalletFromHeader())

	public.Get("/daily", func(c *fiber.Ctx) error {
		date, err := queryDate(c, missions.Clock)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid date, expected YYYY-MM-DD",
				"cause": err.Error(),
			})
		}
		views, err := instanceViews(c, missions, missions.Catalog.DailyInstances(date))
		if err != nil {
			return respondError(c, "failed to load mission status", err)
		}
		return c.JSON(fiber.Map{
			"date":     missions.Catalog.DailyPeriod(date),
			"missions": views,
		})
	})

	public.Get("/weekly", func(c *fiber.Ctx) error {
		date, err := queryDate(c, missions.Clock)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid date, expected YYYY-MM-DD",
				"cause": err.Error(),
			})
		}
		views, err := instanceViews(c, missions, missions.Catalog.WeeklyInstances(date))
		if err != nil {
			return respondError(c, "failed to load mission status", err)
		}
		return c.JSON(fiber.Map{
			"week":     missions.Catalog.WeeklyPeriod(date),
			"missions": views,
		})
	})

	public.Get("/one-time", func(c *fiber.Ctx) error {
		templates := missions.Catalog.GetOneTimeTemplates()
		views := make([]missionView, 0, len(templates))
		keys := make([]string, 0, len(templates))
		for _, t := range templates {
			views = append(views, missionView{
				ID:                 t.ID,
				TemplateID:         t.ID,
				Title:              t.Title,
				Description:        t.Description,
				VerificationType:   t.VerificationType,
				VerificationConfig: t.VerificationConfig,
				XPReward:           t.XPReward,
			})
			keys = append(keys, t.ID)
		}
		if err := annotate(c, missions, views, keys); err != nil {
			return respondError(c, "failed to load mission status", err)
		}
		return c.JSON(fiber.Map{"missions": views})
	})

	// Group middleware applies to the whole prefix, so the wallet requirement is per route.
	public.Post("/verify", middleware.WalletContextMiddleware(logger), func(c *fiber.Ctx) error {
		var req verifyRequest
		if ok, err := parseBody(c, &req); !ok {
			return err
		}

		row, err := missions.VerifyMission(c.UserContext(), middleware.Wallet(c),
			services.MissionRef{InstanceID: req.InstanceID, TemplateID: req.TemplateID}, req.ManualProof)
		if err != nil {
			return respondError(c, "verification rejected", err)
		}

		return c.JSON(fiber.Map{
			"verified":   row.Status == models.CompletionVerified,
			"message":    row.VerificationResult["message"],
			"completion": row,
		})
	})
}

func queryDate(c *fiber.Ctx, clock services.Clock) (time.Time, error) {
	q := c.Query("date")
	if q == "" {
		return clock.Now(), nil
	}
	return time.ParseInLocation("2006-01-02", q, clock.Location())
}

func instanceViews(c *fiber.Ctx, missions *services.MissionService, insts []models.MissionInstance) ([]missionView, error) {
	views := make([]missionView, 0, len(insts))
	keys := make([]string, 0, len(insts))
	for _, inst := range insts {
		starts := inst.StartsAt
		views = append(views, missionView{
			ID:                 inst.ID,
			TemplateID:         inst.TemplateID,
			Title:              inst.Title,
			Description:        inst.Description,
			VerificationType:   inst.VerificationType,
			VerificationConfig: inst.VerificationConfig,
			XPReward:           inst.XPReward,
			StartsAt:           &starts,
			ExpiresAt:          inst.ExpiresAt,
		})
		keys = append(keys, inst.ID)
	}
	return views, annotate(c, missions, views, keys)
}

func annotate(c *fiber.Ctx, missions *services.MissionService, views []missionView, keys []string) error {
	wallet := middleware.Wallet(c)
	if wallet == "" {
		return nil
	}
	status, err := missions.Ledger.StatusByMission(c.UserContext(), wallet, keys)
	if err != nil {
		return err
	}
	for i := range views {
		views[i].Status = status[views[i].ID]
	}
	return nil
}
