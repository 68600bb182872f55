package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/hardcover-sync/internal/database"
)

// HealthResponse reports service health alongside the readiness of the two
// sync dependencies: the library database and the Hardcover credentials.
type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks"`
}

type HealthController struct {
	db              *database.Database
	tokenConfigured bool
	version         string
}

func NewHealthController(db *database.Database, tokenConfigured bool, version string) *HealthController {
	return &HealthController{
		db:              db,
		tokenConfigured: tokenConfigured,
		version:         version,
	}
}

func (h *HealthController) Status(c *gin.Context) {
	checks := make(map[string]string)
	status := "healthy"

	// Library database connectivity
	if h.db != nil {
		sqlDB, err := h.db.DB.DB()
		if err != nil {
			checks["database"] = "error: " + err.Error()
			status = "unhealthy"
		} else if err := sqlDB.Ping(); err != nil {
			checks["database"] = "error: " + err.Error()
			status = "unhealthy"
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not configured"
	}

	// A missing token is reported but not unhealthy: browsing the library
	// and the link cache works offline, only matching and sync need it.
	if h.tokenConfigured {
		checks["hardcover"] = "token configured"
	} else {
		checks["hardcover"] = "token not configured"
	}

	health := HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  checks,
	}

	statusCode := http.StatusOK
	if status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.IndentedJSON(statusCode, health)
}
