package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"vibeproof/models"
)

// Rotation parameters. Changing any of them changes every derived instance id.
const (
	DailyCount   = 4
	DailyStride  = 7
	WeeklyCount  = 2
	WeeklyStride = 3
)

// Catalog is the read-only mission definition set plus the rotation functions.
type Catalog struct {
	daily   []models.MissionTemplate
	weekly  []models.MissionTemplate
	oneTime []models.MissionTemplate
	byID    map[string]models.MissionTemplate
	loc     *time.Location
}

// NewCatalog builds the catalog from the static pools. Calendar days are taken in loc.
func NewCatalog(loc *time.Location) *Catalog {
	return NewCatalogFromPools(models.DailyMissionPool, models.WeeklyMissionPool, models.OneTimeMissions, loc)
}

func NewCatalogFromPools(daily, weekly, oneTime []models.MissionTemplate, loc *time.Location) *Catalog {
	if loc == nil {
		loc = time.UTC
	}
	c := &Catalog{
		daily:   activeOnly(daily),
		weekly:  activeOnly(weekly),
		oneTime: activeOnly(oneTime),
		byID:    map[string]models.MissionTemplate{},
		loc:     loc,
	}
	for _, pool := range [][]models.MissionTemplate{daily, weekly, oneTime} {
		for _, t := range pool {
			c.byID[t.ID] = t
		}
	}
	return c
}

func activeOnly(pool []models.MissionTemplate) []models.MissionTemplate {
	out := make([]models.MissionTemplate, 0, len(pool))
	for _, t := range pool {
		if t.Active {
			out = append(out, t)
		}
	}
	return out
}

// rotate picks count distinct entries at (key + i*stride) mod n, probing forward
// with wrap-around when a slot is already taken.
func rotate(pool []models.MissionTemplate, key, count, stride int) []models.MissionTemplate {
	n := len(pool)
	if n == 0 || count <= 0 {
		return nil
	}
	if count > n {
		count = n
	}
	used := make([]bool, n)
	out := make([]models.MissionTemplate, 0, count)
	for i := 0; i < count; i++ {
		idx := ((key+i*stride)%n + n) % n
		for probes := 0; used[idx] && probes < n; probes++ {
			idx = (idx + 1) % n
		}
		if used[idx] {
			break
		}
		used[idx] = true
		out = append(out, pool[idx])
	}
	return out
}

func (c *Catalog) midnight(date time.Time) time.Time {
	d := date.In(c.loc)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, c.loc)
}

// DailyPeriod is YYYY-MM-DD in the catalog zone.
func (c *Catalog) DailyPeriod(date time.Time) string {
	return date.In(c.loc).Format(dayLayout)
}

// WeeklyPeriod is the ISO week, YYYY-Www.
func (c *Catalog) WeeklyPeriod(date time.Time) string {
	year, week := date.In(c.loc).ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// SelectDailyTemplates is a pure function of the calendar day.
func (c *Catalog) SelectDailyTemplates(date time.Time) []models.MissionTemplate {
	return rotate(c.daily, date.In(c.loc).YearDay(), DailyCount, DailyStride)
}

// SelectWeeklyTemplates is a pure function of the ISO week number.
func (c *Catalog) SelectWeeklyTemplates(date time.Time) []models.MissionTemplate {
	_, week := date.In(c.loc).ISOWeek()
	return rotate(c.weekly, week, WeeklyCount, WeeklyStride)
}

func instanceFrom(t models.MissionTemplate, period string, starts, expires time.Time) models.MissionInstance {
	exp := expires
	return models.MissionInstance{
		ID:                 InstanceID(t.ID, period),
		TemplateID:         t.ID,
		Period:             period,
		Title:              t.Title,
		Description:        t.Description,
		VerificationType:   t.VerificationType,
		VerificationConfig: t.VerificationConfig,
		XPReward:           t.XPReward,
		StartsAt:           starts,
		ExpiresAt:          &exp,
	}
}

// InstanceID derives the instance key for a template and period.
func InstanceID(templateID, period string) string {
	return templateID + "_" + period
}

// DailyInstances materializes the day's rotation. Equal dates yield equal output.
func (c *Catalog) DailyInstances(date time.Time) []models.MissionInstance {
	period := c.DailyPeriod(date)
	starts := c.midnight(date)
	expires := starts.AddDate(0, 0, 1)
	templates := c.SelectDailyTemplates(date)
	out := make([]models.MissionInstance, 0, len(templates))
	for _, t := range templates {
		out = append(out, instanceFrom(t, period, starts, expires))
	}
	return out
}

// WeeklyInstances materializes the ISO week's rotation, Monday to Monday.
func (c *Catalog) WeeklyInstances(date time.Time) []models.MissionInstance {
	period := c.WeeklyPeriod(date)
	day := c.midnight(date)
	offset := (int(day.Weekday()) + 6) % 7
	starts := day.AddDate(0, 0, -offset)
	expires := starts.AddDate(0, 0, 7)
	templates := c.SelectWeeklyTemplates(date)
	out := make([]models.MissionInstance, 0, len(templates))
	for _, t := range templates {
		out = append(out, instanceFrom(t, period, starts, expires))
	}
	return out
}

// TemplatesForDate is what the mission board shows for a day.
type TemplatesForDate struct {
	Date   string                   `json:"date"`
	Week   string                   `json:"week"`
	Daily  []models.MissionInstance `json:"daily"`
	Weekly []models.MissionInstance `json:"weekly"`
}

func (c *Catalog) GetTemplatesForDate(date time.Time) TemplatesForDate {
	return TemplatesForDate{
		Date:   c.DailyPeriod(date),
		Week:   c.WeeklyPeriod(date),
		Daily:  c.DailyInstances(date),
		Weekly: c.WeeklyInstances(date),
	}
}

func (c *Catalog) GetOneTimeTemplates() []models.MissionTemplate {
	out := make([]models.MissionTemplate, len(c.oneTime))
	copy(out, c.oneTime)
	return out
}

// Template looks up any template, active or not.
func (c *Catalog) Template(id string) (models.MissionTemplate, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// ResolveInstance re-derives an instance from its id. Ids the rotation would not
// have produced for their period are rejected with ErrMissionNotFound.
func (c *Catalog) ResolveInstance(id string) (models.MissionInstance, error) {
	cut := strings.LastIndex(id, "_")
	if cut <= 0 || cut == len(id)-1 {
		return models.MissionInstance{}, fmt.Errorf("%w: malformed instance id %q", ErrMissionNotFound, id)
	}
	period := id[cut+1:]

	var candidates []models.MissionInstance
	if date, err := time.ParseInLocation(dayLayout, period, c.loc); err == nil {
		candidates = c.DailyInstances(date)
	} else if date, ok := c.parseISOWeek(period); ok {
		candidates = c.WeeklyInstances(date)
	} else {
		return models.MissionInstance{}, fmt.Errorf("%w: bad period in %q", ErrMissionNotFound, id)
	}

	for _, inst := range candidates {
		if inst.ID == id {
			return inst, nil
		}
	}
	return models.MissionInstance{}, fmt.Errorf("%w: %q is not in rotation", ErrMissionNotFound, id)
}

// parseISOWeek turns YYYY-Www into the Monday of that week.
func (c *Catalog) parseISOWeek(period string) (time.Time, bool) {
	if len(period) != 8 || period[4:6] != "-W" {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(period[:4])
	if err != nil {
		return time.Time{}, false
	}
	week, err := strconv.Atoi(period[6:])
	if err != nil || week < 1 || week > 53 {
		return time.Time{}, false
	}
	// January 4th is always in ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, c.loc)
	monday := jan4.AddDate(0, 0, -((int(jan4.Weekday())+6)%7)+(week-1)*7)
	if y, w := monday.ISOWeek(); y != year || w != week {
		return time.Time{}, false
	}
	return monday, true
}
