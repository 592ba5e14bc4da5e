package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nightfeed/nightfeed/app/database"
	"github.com/nightfeed/nightfeed/app/extract"
	"github.com/nightfeed/nightfeed/app/feed"
	"github.com/nightfeed/nightfeed/app/fetch"
	"github.com/nightfeed/nightfeed/app/filter"
)

func NewHandler(profileRepo database.ProfileRepository, itemRepo database.ItemRepository,
	refresher RefresherInterface) *Handler {
	return &Handler{
		profileRepo: profileRepo,
		itemRepo:    itemRepo,
		generator:   feed.NewGenerator(),
		refresher:   refresher,
	}
}

// GetFeed serves the RSS document for a profile token. The token is the
// only credential: unknown and disabled profiles are indistinguishable
// from missing ones. Serving first ensures freshness, but a failed
// refresh still serves whatever is stored.
func (h *Handler) GetFeed(c *gin.Context) {
	token := strings.TrimSuffix(c.Param("token"), ".xml")
	if token == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	profile, err := h.profileRepo.GetProfileByToken(token)
	if err != nil {
		slog.Error("Database error", "operation", "get_profile", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if profile == nil || !profile.Enabled {
		c.Status(http.StatusNotFound)
		return
	}

	if _, err := h.refresher.EnsureFresh(c.Request.Context(), profile); err != nil {
		slog.Error("On-access refresh failed, serving stored items", "profile_id", profile.ID, "error", err)
	}

	items, err := h.itemRepo.GetItems(profile.ID, profile.MaxItems)
	if err != nil {
		slog.Error("Database error", "operation", "get_items", "profile_id", profile.ID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	rss, err := h.generator.Run(*profile, items)
	if err != nil {
		slog.Error("RSS generation error", "profile_id", profile.ID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/rss+xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(items)))
	c.Header("X-Last-Updated", profile.UpdatedAt.Format(time.RFC3339))

	c.String(http.StatusOK, rss)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if count, err := h.profileRepo.GetProfileCount(); err == nil {
		health["profiles"] = count
	}
	if count, err := h.profileRepo.GetEnabledProfileCount(); err == nil {
		health["enabled_profiles"] = count
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := gin.H{}

	if count, err := h.profileRepo.GetProfileCount(); err == nil {
		stats["profiles"] = count
	}
	if count, err := h.profileRepo.GetEnabledProfileCount(); err == nil {
		stats["enabled_profiles"] = count
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) APIListProfiles(c *gin.Context) {
	profiles, err := h.profileRepo.GetProfiles()
	if err != nil {
		slog.Error("Database error", "operation", "list_profiles", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	out := make([]gin.H, 0, len(profiles))
	for i := range profiles {
		out = append(out, h.profileJSON(&profiles[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"profiles": out,
		"total":    len(out),
	})
}

func (h *Handler) APICreateProfile(c *gin.Context) {
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload", "details": err.Error()})
		return
	}

	profile := &database.Profile{
		MaxItems:               25,
		RefreshIntervalMinutes: 60,
		FetchMode:              database.FetchModeHTTP,
		Enabled:                true,
		Status:                 database.StatusIdle,
	}
	if err := applyProfileRequest(&req, profile); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if !profile.Enabled {
		profile.Status = database.StatusDisabled
	}

	if err := h.profileRepo.CreateProfile(profile); err != nil {
		slog.Error("Database error", "operation", "create_profile", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	slog.Info("Profile created", "profile_id", profile.ID, "source_url", profile.SourceURL)
	c.JSON(http.StatusCreated, h.profileJSON(profile))
}

func (h *Handler) APIGetProfile(c *gin.Context) {
	profile := h.profileFromPath(c)
	if profile == nil {
		return
	}

	details := h.profileJSON(profile)
	details["last_error"] = profile.LastError
	if count, err := h.itemRepo.GetItemCount(profile.ID); err == nil {
		details["item_count"] = count
	}

	c.JSON(http.StatusOK, details)
}

func (h *Handler) APIUpdateProfile(c *gin.Context) {
	profile := h.profileFromPath(c)
	if profile == nil {
		return
	}

	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload", "details": err.Error()})
		return
	}

	wasEnabled := profile.Enabled
	if err := applyProfileRequest(&req, profile); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	if err := h.profileRepo.UpdateProfile(profile); err != nil {
		slog.Error("Database error", "operation", "update_profile", "profile_id", profile.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if profile.Enabled != wasEnabled {
		if err := h.profileRepo.SetProfileEnabled(profile.ID, profile.Enabled, time.Now().UTC()); err != nil {
			slog.Error("Database error", "operation", "set_enabled", "profile_id", profile.ID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
	}

	c.JSON(http.StatusOK, h.profileJSON(profile))
}

func (h *Handler) APIDeleteProfile(c *gin.Context) {
	profile := h.profileFromPath(c)
	if profile == nil {
		return
	}

	if err := h.profileRepo.DeleteProfile(profile.ID); err != nil {
		slog.Error("Database error", "operation", "delete_profile", "profile_id", profile.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	slog.Info("Profile deleted", "profile_id", profile.ID)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) APIEnableProfile(c *gin.Context) {
	h.setEnabled(c, true)
}

func (h *Handler) APIDisableProfile(c *gin.Context) {
	h.setEnabled(c, false)
}

func (h *Handler) setEnabled(c *gin.Context, enabled bool) {
	profile := h.profileFromPath(c)
	if profile == nil {
		return
	}

	if err := h.profileRepo.SetProfileEnabled(profile.ID, enabled, time.Now().UTC()); err != nil {
		slog.Error("Database error", "operation", "set_enabled", "profile_id", profile.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	updated, err := h.profileRepo.GetProfile(profile.ID)
	if err != nil || updated == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, h.profileJSON(updated))
}

// APIRefreshProfile runs a manual refresh synchronously and reports the
// outcome, so an operator tuning selectors gets immediate feedback.
func (h *Handler) APIRefreshProfile(c *gin.Context) {
	profile := h.profileFromPath(c)
	if profile == nil {
		return
	}

	result, err := h.refresher.Refresh(c.Request.Context(), profile.ID, database.RefreshManual)
	if err != nil {
		slog.Error("Manual refresh failed", "profile_id", profile.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Refresh failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"outcome":   result.Outcome,
		"new_items": result.NewItems,
	})
}

func (h *Handler) APIPurgeProfile(c *gin.Context) {
	profile := h.profileFromPath(c)
	if profile == nil {
		return
	}

	purged, err := h.itemRepo.PurgeItems(profile.ID)
	if err != nil {
		slog.Error("Database error", "operation", "purge_items", "profile_id", profile.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	slog.Info("Profile items purged", "profile_id", profile.ID, "purged", purged)
	c.JSON(http.StatusOK, gin.H{"success": true, "purged": purged})
}

// APIPreviewProfile dry-runs the pipeline for a saved profile without
// storing anything or touching the refresh schedule.
func (h *Handler) APIPreviewProfile(c *gin.Context) {
	profile := h.profileFromPath(c)
	if profile == nil {
		return
	}

	preview, err := h.refresher.Preview(c.Request.Context(), profile)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Preview failed", "details": err.Error()})
		return
	}

	items := make([]gin.H, 0, len(preview.Items))
	for _, item := range preview.Items {
		items = append(items, gin.H{
			"title":   item.Title,
			"link":    item.Link,
			"summary": item.Summary,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"items":            items,
		"extracted":        preview.Extracted,
		"filtered_out":     preview.FilteredOut,
		"dropped_off_host": preview.DroppedOffHost,
		"dropped_partial":  preview.DroppedPartial,
	})
}

// profileFromPath resolves the :id parameter, writing the error response
// itself and returning nil when the profile cannot be served.
func (h *Handler) profileFromPath(c *gin.Context) *database.Profile {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid profile ID"})
		return nil
	}

	profile, err := h.profileRepo.GetProfile(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_profile", "profile_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return nil
	}
	if profile == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
		return nil
	}

	return profile
}

func (h *Handler) profileJSON(p *database.Profile) gin.H {
	out := gin.H{
		"id":                       p.ID,
		"token":                    p.Token,
		"feed_url":                 feed.FeedURL(p.Token),
		"title":                    p.Title,
		"source_url":               p.SourceURL,
		"item_selector":            p.ItemSelector,
		"title_selector":           p.TitleSelector,
		"link_selector":            p.LinkSelector,
		"summary_selector":         p.SummarySelector,
		"include_filters":          p.IncludeFilters,
		"exclude_filters":          p.ExcludeFilters,
		"max_items":                p.MaxItems,
		"refresh_interval_minutes": p.RefreshIntervalMinutes,
		"fetch_mode":               p.FetchMode,
		"enabled":                  p.Enabled,
		"status":                   p.Status,
		"last_outcome":             p.LastOutcome,
		"created_at":               p.CreatedAt,
		"updated_at":               p.UpdatedAt,
		"item_count":               p.ItemCount,
	}
	if next := p.NextDue(); next != nil {
		out["next_due"] = next
	}
	return out
}

// applyProfileRequest validates the payload and copies it onto the
// profile. Selector and filter validation happens here, at save time,
// never during a refresh run.
func applyProfileRequest(req *ProfileRequest, p *database.Profile) error {
	if req.Title != "" {
		p.Title = req.Title
	}
	if p.Title == "" {
		return &ValidationError{Field: "title", Reason: "title is required"}
	}

	if req.SourceURL != "" {
		p.SourceURL = req.SourceURL
	}
	u, err := url.Parse(p.SourceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return &ValidationError{Field: "source_url", Reason: "must be an absolute http or https URL"}
	}

	if req.ItemSelector != "" {
		p.ItemSelector = req.ItemSelector
	}
	if req.TitleSelector != "" {
		p.TitleSelector = req.TitleSelector
	}
	if req.LinkSelector != "" {
		p.LinkSelector = req.LinkSelector
	}
	p.SummarySelector = req.SummarySelector

	if _, err := extract.NewSpec(p.ItemSelector, p.TitleSelector, p.LinkSelector, p.SummarySelector); err != nil {
		return err
	}

	p.IncludeFilters = req.IncludeFilters
	p.ExcludeFilters = req.ExcludeFilters
	if _, err := filter.Parse(p.IncludeFilters); err != nil {
		return err
	}
	if _, err := filter.Parse(p.ExcludeFilters); err != nil {
		return err
	}

	if req.MaxItems != nil {
		if *req.MaxItems < 1 {
			return &ValidationError{Field: "max_items", Reason: "must be positive"}
		}
		p.MaxItems = *req.MaxItems
	}

	if req.RefreshIntervalMinutes != nil {
		if *req.RefreshIntervalMinutes < 0 {
			return &ValidationError{Field: "refresh_interval_minutes", Reason: "must be zero or positive"}
		}
		p.RefreshIntervalMinutes = *req.RefreshIntervalMinutes
	}

	if req.FetchMode != "" {
		mode, err := fetch.ParseMode(req.FetchMode)
		if err != nil {
			return err
		}
		p.FetchMode = string(mode)
	}

	if req.Enabled != nil {
		p.Enabled = *req.Enabled
	}

	return nil
}

// ValidationError reports an invalid profile field in a request payload.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}
