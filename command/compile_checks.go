package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-marketo/core"
)

var (
	_ gocmd.Commander[SyncLeadMessage]        = (*SyncLeadCommand)(nil)
	_ gocmd.Commander[DeleteLeadMessage]      = (*DeleteLeadCommand)(nil)
	_ gocmd.Commander[EnqueueLeadSyncMessage] = (*EnqueueLeadSyncCommand)(nil)

	_ LeadMutator      = (*core.Service)(nil)
	_ LeadSyncEnqueuer = (*core.LeadSyncQueue)(nil)
)
