package bot

import (
	"github.com/ecamargo/wabot/pkg/config"
	"github.com/ecamargo/wabot/pkg/gateway"
)

// EligibleMembers filters the team down to agents a chat may be assigned to:
// active, role not excluded, and inside the whitelist/blacklist rules.
func EligibleMembers(members []gateway.TeamMember, team config.TeamConfig) []gateway.TeamMember {
	var out []gateway.TeamMember

	for _, m := range members {
		if !m.Active() {
			continue
		}
		if hasString(team.SkipRoles, m.Role) {
			continue
		}
		if hasString(team.Blacklist, m.ID) {
			continue
		}
		if len(team.Whitelist) > 0 && !hasString(team.Whitelist, m.ID) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func hasString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
