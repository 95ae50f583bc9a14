package bot

// Capability is an abstract permission flag checked before a moderation action.
type Capability string

const (
	CanKick           Capability = "can-kick"
	CanBan            Capability = "can-ban"
	CanModerate       Capability = "can-moderate"
	CanManageMessages Capability = "can-manage-messages"
	CanManageChannels Capability = "can-manage-channels"
	IsAdministrator   Capability = "is-administrator"
)

var capabilityNames = map[Capability]string{
	CanKick:           "Kick Members",
	CanBan:            "Ban Members",
	CanModerate:       "Moderate Members",
	CanManageMessages: "Manage Messages",
	CanManageChannels: "Manage Channels",
	IsAdministrator:   "Administrator",
}

// DisplayName is the human label used in denial replies.
func (c Capability) DisplayName() string {
	if name, ok := capabilityNames[c]; ok {
		return name
	}
	return string(c)
}
