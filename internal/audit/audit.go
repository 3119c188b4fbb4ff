package audit

import (
	"context"

	"github.com/dhruvin2968/facebook-messaging/pkg/log"
)

// Audit actions for the messaging service.
const (
	ActionAnnounce     = "dm.announce"
	ActionRejected     = "dm.announce_rejected"
	ActionSend         = "dm.send"
	ActionSendFailed   = "dm.send_failed"
	ActionSpoofDropped = "dm.spoof_dropped"
	ActionDisconnect   = "dm.disconnect"
)

const (
	fieldAction = "action"
	fieldDetail = "detail"
)

// Log emits a structured audit entry via the context logger.
func Log(ctx context.Context, action, userID, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(fieldAction, action).
		Str(log.FieldUserID, userID).
		Msg(msg)
}

// LogWithDetail emits an audit entry with an extra detail field.
func LogWithDetail(ctx context.Context, action, userID, detail, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(fieldAction, action).
		Str(log.FieldUserID, userID).
		Str(fieldDetail, detail).
		Msg(msg)
}
