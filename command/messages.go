package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-marketo/core"
)

const (
	TypeSyncLead        = "marketo.command.lead.sync"
	TypeDeleteLead      = "marketo.command.lead.delete"
	TypeEnqueueLeadSync = "marketo.command.lead.enqueue_sync"
)

type SyncLeadMessage struct {
	Request core.SyncLeadRequest
}

func (SyncLeadMessage) Type() string { return TypeSyncLead }

func (m SyncLeadMessage) Validate() error {
	return validateSyncRequest(m.Request)
}

type DeleteLeadMessage struct {
	LeadIDs []int
}

func (DeleteLeadMessage) Type() string { return TypeDeleteLead }

func (m DeleteLeadMessage) Validate() error {
	if len(m.LeadIDs) == 0 {
		return commandValidationError("lead_ids", "at least one lead id is required")
	}
	for _, id := range m.LeadIDs {
		if id <= 0 {
			return commandValidationError("lead_ids", fmt.Sprintf("lead id %d is invalid", id))
		}
	}
	return nil
}

// EnqueueLeadSyncMessage defers a lead sync to the job queue.
type EnqueueLeadSyncMessage struct {
	Request core.SyncLeadRequest
}

func (EnqueueLeadSyncMessage) Type() string { return TypeEnqueueLeadSync }

func (m EnqueueLeadSyncMessage) Validate() error {
	return validateSyncRequest(m.Request)
}

func validateSyncRequest(req core.SyncLeadRequest) error {
	if len(req.Lead) == 0 {
		return commandValidationError("lead", "lead payload is required")
	}
	if action := strings.TrimSpace(req.Options.Action); action != "" && !core.IsValidSyncAction(action) {
		return commandValidationError("options.action", fmt.Sprintf("unsupported sync action %q", action))
	}
	return nil
}
