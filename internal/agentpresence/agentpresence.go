// Package agentpresence implements the best-effort SIP contact registry
// poke (§4.8): after a call-center bridge, update the agent extension's
// presence so the agent console reflects "Waiting" rather than a stale
// state. Grounded on the teacher's fire-and-forget status-cache update
// pattern in internal/ingest/pipeline.go's UpdateTRInstanceStatus.
package agentpresence

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/voxswitch/ivr-engine/internal/telephony"
)

// unregisteredSentinel is the literal string the host's contact-registry
// probe returns for an extension with no active SIP registration.
const unregisteredSentinel = "error/user_not_registered"

// Status is the presence state applied to an agent extension.
type Status struct {
	Extension string
	Status    string // "Available" or "Logged Out"
	Contact   string
	State     string // "Waiting" when Available
}

// Updater issues presence updates via the host's generic command channel.
// One Updater is shared across calls; it holds no per-call state.
type Updater struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Updater {
	return &Updater{log: log.With().Str("component", "agentpresence").Logger()}
}

// Update probes the host's SIP contact registry for extension and applies
// the resulting presence state. Failures are logged and never propagated —
// this never alters call control for the call that triggered it.
func (u *Updater) Update(ctx context.Context, host telephony.Session, extension string) {
	contact, err := host.ExecuteString(ctx, fmt.Sprintf("sofia_contact */%s", extension))
	if err != nil {
		u.log.Warn().Err(err).Str("extension", extension).Msg("contact registry probe failed")
		return
	}
	contact = strings.TrimSpace(contact)

	status := Status{Extension: extension}
	if contact == unregisteredSentinel || contact == "" {
		status.Status = "Logged Out"
	} else {
		status.Status = "Available"
		status.Contact = contact
		status.State = "Waiting"
	}

	if err := u.apply(ctx, host, status); err != nil {
		u.log.Warn().Err(err).Str("extension", extension).Msg("failed to apply agent presence")
		return
	}
	u.log.Debug().Str("extension", extension).Str("status", status.Status).Msg("agent presence updated")
}

func (u *Updater) apply(ctx context.Context, host telephony.Session, s Status) error {
	cmd := fmt.Sprintf("presence_update %s status=%q contact=%q state=%q", s.Extension, s.Status, s.Contact, s.State)
	_, err := host.ExecuteString(ctx, cmd)
	return err
}
