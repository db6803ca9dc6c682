package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	// Classification actions
	AuditActionClassify         AuditAction = "EPIC_CLASSIFY"
	AuditActionManualOverride   AuditAction = "MAPPING_OVERRIDE"
	AuditActionMappingSelfHeal  AuditAction = "MAPPING_SELF_HEAL"
	AuditActionDataQualityIssue AuditAction = "DATA_QUALITY_WARNING"

	// Baseline recomputation
	AuditActionRecomputeStart    AuditAction = "RECOMPUTE_START"
	AuditActionRecomputeComplete AuditAction = "RECOMPUTE_COMPLETE"
	AuditActionRecomputeFailed   AuditAction = "RECOMPUTE_FAILED"
	AuditActionLockAcquired      AuditAction = "LOCK_ACQUIRED"
	AuditActionLockStale         AuditAction = "LOCK_STALE_RELEASED"

	// Forecast operations
	AuditActionForecastGenerate AuditAction = "FORECAST_GENERATE"
	AuditActionForecastExport   AuditAction = "FORECAST_EXPORT"

	// Ingestion and configuration
	AuditActionHoursUpsert  AuditAction = "HOURS_UPSERT"
	AuditActionConfigUpdate AuditAction = "PROJECT_CONFIG_UPDATE"

	// API operations
	AuditActionAPIRequest AuditAction = "API_REQUEST"
	AuditActionAPIError   AuditAction = "API_ERROR"
)

// AuditEvent represents an audit log entry
type AuditEvent struct {
	Action      AuditAction
	Resource    string
	ResourceID  string
	Details     map[string]interface{}
	ClientIP    string
	RequestID   string
	OperationID string
	Success     bool
	Error       string
	Duration    int64 // milliseconds
	Method      string
	Path        string
	StatusCode  int
}

// auditLogger is a specialized logger for audit events
var auditLogger zerolog.Logger

// InitAudit initializes the audit logger
func InitAudit() {
	auditLogger = globalLogger.With().Str("log_type", "audit").Logger()
}

// Audit logs an audit event
func Audit(ctx context.Context, event AuditEvent) {
	if event.RequestID == "" {
		event.RequestID = GetRequestID(ctx)
	}
	if event.OperationID == "" {
		event.OperationID = GetOperationID(ctx)
	}

	logEvent := auditLogger.Info()
	if !event.Success {
		logEvent = auditLogger.Warn()
	}

	logEvent.
		Str("action", string(event.Action)).
		Str("resource", event.Resource).
		Str("resource_id", event.ResourceID).
		Str("client_ip", event.ClientIP).
		Str("request_id", event.RequestID).
		Bool("success", event.Success).
		Time("timestamp", time.Now().UTC())

	if event.OperationID != "" {
		logEvent.Str("operation_id", event.OperationID)
	}

	if event.Error != "" {
		logEvent.Str("error", event.Error)
	}

	if event.Duration > 0 {
		logEvent.Int64("duration_ms", event.Duration)
	}

	if event.Method != "" {
		logEvent.Str("method", event.Method)
	}

	if event.Path != "" {
		logEvent.Str("path", event.Path)
	}

	if event.StatusCode > 0 {
		logEvent.Int("status_code", event.StatusCode)
	}

	if len(event.Details) > 0 {
		logEvent.Interface("details", event.Details)
	}

	logEvent.Msg("Audit event")
}

// AuditRequest logs an API request audit event
func AuditRequest(ctx context.Context, method, path string, statusCode int, duration int64, clientIP string) {
	success := statusCode < 400
	action := AuditActionAPIRequest
	if !success {
		action = AuditActionAPIError
	}

	Audit(ctx, AuditEvent{
		Action:     action,
		Resource:   "api",
		ResourceID: path,
		Method:     method,
		Path:       path,
		StatusCode: statusCode,
		Duration:   duration,
		ClientIP:   clientIP,
		Success:    success,
	})
}

// DataQuality logs a non-fatal data-quality warning, e.g. a mapping that
// points outside the taxonomy or a temporal bucket coverage gap.
func DataQuality(ctx context.Context, resource, resourceID, detail string) {
	Audit(ctx, AuditEvent{
		Action:     AuditActionDataQualityIssue,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    map[string]interface{}{"detail": detail},
		Success:    false,
	})
}
