package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tgienger/depplan/internal/models"
)

// activityTimeLayout is the zone-less layout the date-range endpoint parses.
const activityTimeLayout = "2006-01-02T15:04:05"

func (c *Client) activities(ctx context.Context, op string, projectID int64, suffix string, q url.Values) ([]models.Activity, error) {
	var out []models.Activity
	path := idPath("/projects/%d/activities", projectID) + suffix
	if err := c.do(ctx, http.MethodGet, path, q, nil, &out); err != nil {
		return nil, fmt.Errorf("api.%s: %w", op, err)
	}
	return out, nil
}

// RecentActivities returns the newest limit entries.
func (c *Client) RecentActivities(ctx context.Context, projectID int64, limit int) ([]models.Activity, error) {
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	return c.activities(ctx, "RecentActivities", projectID, "/recent", q)
}

// ActivitiesPage returns one zero-based page of the activity log.
func (c *Client) ActivitiesPage(ctx context.Context, projectID int64, page, size int) (*models.ActivityPage, error) {
	q := url.Values{"page": {strconv.Itoa(page)}, "size": {strconv.Itoa(size)}}
	var out models.ActivityPage
	if err := c.do(ctx, http.MethodGet, idPath("/projects/%d/activities/paginated", projectID), q, nil, &out); err != nil {
		return nil, fmt.Errorf("api.ActivitiesPage: %w", err)
	}
	return &out, nil
}

// ActivitiesBetween returns entries with start <= timestamp <= end.
func (c *Client) ActivitiesBetween(ctx context.Context, projectID int64, start, end time.Time) ([]models.Activity, error) {
	q := url.Values{
		"startDate": {start.Format(activityTimeLayout)},
		"endDate":   {end.Format(activityTimeLayout)},
	}
	return c.activities(ctx, "ActivitiesBetween", projectID, "/date-range", q)
}

// UserActivities returns entries authored by one user.
func (c *Client) UserActivities(ctx context.Context, projectID, userID int64) ([]models.Activity, error) {
	return c.activities(ctx, "UserActivities", projectID, idPath("/user/%d", userID), nil)
}

// ActivitiesByType returns entries of one activity type.
func (c *Client) ActivitiesByType(ctx context.Context, projectID int64, typ models.ActivityType) ([]models.Activity, error) {
	return c.activities(ctx, "ActivitiesByType", projectID, "/type/"+url.PathEscape(strings.ToLower(string(typ))), nil)
}

// EntityActivities returns entries about one entity, e.g. ("TASK", 12).
func (c *Client) EntityActivities(ctx context.Context, projectID int64, entityType string, entityID int64) ([]models.Activity, error) {
	suffix := "/entity/" + url.PathEscape(entityType) + idPath("/%d", entityID)
	return c.activities(ctx, "EntityActivities", projectID, suffix, nil)
}

// ActivityStatistics returns per-type activity counts.
func (c *Client) ActivityStatistics(ctx context.Context, projectID int64) ([]models.ActivityStat, error) {
	var out []models.ActivityStat
	if err := c.do(ctx, http.MethodGet, idPath("/projects/%d/activities/statistics", projectID), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("api.ActivityStatistics: %w", err)
	}
	return out, nil
}
