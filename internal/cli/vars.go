package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/valter-silva-au/commission-desk/internal/core"
	"github.com/valter-silva-au/commission-desk/internal/observability"
	"github.com/valter-silva-au/commission-desk/internal/tui"
	"github.com/valter-silva-au/commission-desk/pkg/models"
)

// Service instances, set during app initialization in app.go.
var (
	Config *models.GlobalConfig
	Logger *logrus.Logger

	Sessions      core.SessionManager
	Router        *core.Router
	Backend       tui.Backend
	Stores        tui.Stores
	Controller    *core.SubmitController
	NewSubmitFlow core.SubmitFlowFactory
	Timings       tui.Timings
)

// Observability service instances, set during app initialization in app.go.
var (
	Events      core.EventLogger
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
)
