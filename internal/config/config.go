package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Hardcover
		Sync
		FieldMap
		Tasks
	}

	HTTP struct {
		Port int32
		Host string
	}

	Global struct {
		ShutdownTimeoutInSeconds int
	}

	Database struct {
		Path string
	}

	Hardcover struct {
		Token             string
		APIURL            string
		Timeout           time.Duration
		MaxRetries        int
		RequestsPerMinute int
		ReviewMaxLen      int
	}

	Sync struct {
		Enabled  bool
		Schedule string // Cron format: "0 */6 * * *" = every 6 hours
		DryRun   bool   // Scheduled runs report changes without applying them

		Rating   bool
		Progress bool
		Dates    bool
		Review   bool

		// Hardcover status IDs to include when pulling; empty = all
		Statuses []int
	}

	// FieldMap binds each sync role to a local custom field name. An empty
	// value means the role is not synced. is_read is pull-only: it is a
	// projection of status, never pushed.
	FieldMap struct {
		Status          string
		Rating          string
		ProgressPages   string
		ProgressPercent string
		DateStarted     string
		DateFinished    string
		Review          string
		IsRead          string
	}

	Tasks struct {
		Enabled           bool
		Workers           int
		MaxRetries        int
		RetryDelay        time.Duration
		TaskTimeout       time.Duration
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8189)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)

	// Hardcover API defaults
	v.SetDefault("hardcover_api_url", DefaultAPIURL)
	v.SetDefault("hardcover_timeout", "30s")
	v.SetDefault("hardcover_max_retries", 3)
	v.SetDefault("hardcover_requests_per_minute", 55) // limit is 60/min, keep headroom
	v.SetDefault("hardcover_review_max_len", DefaultReviewMaxLen)

	// Sync behavior defaults
	v.SetDefault("sync_enabled", false)
	v.SetDefault("sync_schedule", "0 */6 * * *") // Every 6 hours
	v.SetDefault("sync_dry_run", true)
	v.SetDefault("sync_rating", true)
	v.SetDefault("sync_progress", true)
	v.SetDefault("sync_dates", true)
	v.SetDefault("sync_review", true)
	v.SetDefault("sync_statuses", []int{})

	// Field mapping defaults match the columns created by the library importer
	v.SetDefault("field_status", "status")
	v.SetDefault("field_rating", "rating")
	v.SetDefault("field_progress_pages", "progress_pages")
	v.SetDefault("field_progress_percent", "progress_percent")
	v.SetDefault("field_date_started", "date_started")
	v.SetDefault("field_date_finished", "date_finished")
	v.SetDefault("field_review", "review")
	v.SetDefault("field_is_read", "is_read")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 1) // sync runs are serialized by design
	v.SetDefault("task_max_retries", 0)
	v.SetDefault("task_retry_delay", "1m")
	v.SetDefault("task_timeout", "30m")
	v.SetDefault("task_release_after", "45m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Hardcover: Hardcover{
			Token:             v.GetString("HARDCOVER_TOKEN"),
			APIURL:            v.GetString("HARDCOVER_API_URL"),
			Timeout:           v.GetDuration("HARDCOVER_TIMEOUT"),
			MaxRetries:        v.GetInt("HARDCOVER_MAX_RETRIES"),
			RequestsPerMinute: v.GetInt("HARDCOVER_REQUESTS_PER_MINUTE"),
			ReviewMaxLen:      v.GetInt("HARDCOVER_REVIEW_MAX_LEN"),
		},
		Sync: Sync{
			Enabled:  v.GetBool("SYNC_ENABLED"),
			Schedule: v.GetString("SYNC_SCHEDULE"),
			DryRun:   v.GetBool("SYNC_DRY_RUN"),
			Rating:   v.GetBool("SYNC_RATING"),
			Progress: v.GetBool("SYNC_PROGRESS"),
			Dates:    v.GetBool("SYNC_DATES"),
			Review:   v.GetBool("SYNC_REVIEW"),
			Statuses: v.GetIntSlice("SYNC_STATUSES"),
		},
		FieldMap: FieldMap{
			Status:          v.GetString("FIELD_STATUS"),
			Rating:          v.GetString("FIELD_RATING"),
			ProgressPages:   v.GetString("FIELD_PROGRESS_PAGES"),
			ProgressPercent: v.GetString("FIELD_PROGRESS_PERCENT"),
			DateStarted:     v.GetString("FIELD_DATE_STARTED"),
			DateFinished:    v.GetString("FIELD_DATE_FINISHED"),
			Review:          v.GetString("FIELD_REVIEW"),
			IsRead:          v.GetString("FIELD_IS_READ"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			MaxRetries:        v.GetInt("TASK_MAX_RETRIES"),
			RetryDelay:        v.GetDuration("TASK_RETRY_DELAY"),
			TaskTimeout:       v.GetDuration("TASK_TIMEOUT"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
	}
}
