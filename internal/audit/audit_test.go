package audit_test

import (
	"context"
	"testing"

	"github.com/Jeffreasy/tenantcore/internal/audit"
	"github.com/Jeffreasy/tenantcore/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestMulti_FansOutToEveryService(t *testing.T) {
	a := &recordingLogger{}
	b := &recordingLogger{}
	multi := audit.Multi{a, b}

	orgID := uuid.New()
	userID := uuid.New()
	multi.Log(context.Background(), domain.AuditLoginSuccess, &orgID, &userID, map[string]any{"ip": "127.0.0.1"})

	assert.Len(t, a.calls, 1)
	assert.Len(t, b.calls, 1)
	assert.Equal(t, domain.AuditLoginSuccess, a.calls[0])
}

func TestMockLogger_NeverPanics(t *testing.T) {
	var svc audit.Service = audit.MockLogger{}
	assert.NotPanics(t, func() {
		svc.Log(context.Background(), domain.AuditLoginFailed, nil, nil, nil)
	})
}

type recordingLogger struct {
	calls []domain.AuditAction
}

func (r *recordingLogger) Log(ctx context.Context, action domain.AuditAction, orgID, userID *uuid.UUID, metadata map[string]any) {
	r.calls = append(r.calls, action)
}
