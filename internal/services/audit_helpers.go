package services

import "context"

// recordAudit logs the supplied entry while tolerating audit failures.
func recordAudit(audit *AuditService, ctx context.Context, entry AuditEntry) {
	if audit == nil {
		return
	}
	_ = audit.Log(ctx, entry)
}

// recordGuestAudit appends a guest audit record while tolerating failures.
func recordGuestAudit(audit *AuditService, ctx context.Context, entry GuestAuditEntry) {
	if audit == nil {
		return
	}
	_ = audit.LogGuest(ctx, entry)
}
