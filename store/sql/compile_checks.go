package sqlstore

import (
	"github.com/goliatone/go-crmsync/core"
)

var (
	_ core.ContactStore     = (*ContactStore)(nil)
	_ core.TagStore         = (*TagStore)(nil)
	_ core.TagStore         = (*CachedTagStore)(nil)
	_ core.NoteStore        = (*NoteStore)(nil)
	_ core.ActivityStore    = (*ActivityStore)(nil)
	_ core.CredentialStore  = (*CredentialStore)(nil)
	_ core.CredentialIssuer = (*CredentialStore)(nil)
	_ core.DeliveryLog      = (*DeliveryLogStore)(nil)
)
