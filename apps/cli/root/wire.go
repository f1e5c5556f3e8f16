package root

import (
	"github.com/zenGate-Global/palmyra-orgs/apps/cli/cmd/auth"
	"github.com/zenGate-Global/palmyra-orgs/apps/cli/cmd/cliapp"
	orgcmd "github.com/zenGate-Global/palmyra-orgs/apps/cli/cmd/org"
)

func init() {
	Root().AddCommand(orgcmd.Command(cliapp.FromEnvironment))
	Root().AddCommand(auth.Command(cliapp.FromEnvironment))
}
