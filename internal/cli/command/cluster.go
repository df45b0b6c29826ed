package command

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/gridmesh/internal/infra/buildinfo"
	"github.com/yndnr/gridmesh/internal/server/httpserver/handler"
)

// MemberRow is one line of the members listing.
type MemberRow struct {
	Address  string    `json:"address" yaml:"address"`
	State    string    `json:"state" yaml:"state"`
	Self     bool      `json:"self" yaml:"self"`
	Joined   time.Time `json:"joined" yaml:"joined" table:"wide"`
	LastSeen time.Time `json:"last_seen" yaml:"last_seen" table:"wide"`
}

// MembersCommand lists the members known to the node.
func MembersCommand() *cli.Command {
	return &cli.Command{
		Name:  "members",
		Usage: "List the cluster members known to the node",
		Action: func(c *cli.Context) error {
			resp, err := stateFrom(c).session.Admin().Members(c.Context)
			if err != nil {
				return err
			}
			return render(c, memberRows(resp.Members))
		},
	}
}

func memberRows(members []handler.MemberInfo) []MemberRow {
	rows := make([]MemberRow, 0, len(members))
	for _, m := range members {
		rows = append(rows, MemberRow{
			Address:  m.Address,
			State:    m.State,
			Self:     m.Self,
			Joined:   m.Joined,
			LastSeen: m.LastSeen,
		})
	}
	return rows
}

// HealthCommand shows the liveness report of the node.
func HealthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Show node liveness",
		Action: func(c *cli.Context) error {
			h, err := stateFrom(c).session.Admin().Health(c.Context)
			if err != nil {
				return err
			}
			return render(c, h)
		},
	}
}

// ReadyCommand fails unless the node is ready to serve.
func ReadyCommand() *cli.Command {
	return &cli.Command{
		Name:  "ready",
		Usage: "Check that the node is active",
		Action: func(c *cli.Context) error {
			h, err := stateFrom(c).session.Admin().Ready(c.Context)
			if err != nil {
				return err
			}
			return render(c, h)
		},
	}
}

// Status summarises one node for the status command.
type Status struct {
	NodeID       string `json:"node_id" yaml:"node_id"`
	Address      string `json:"address" yaml:"address"`
	Health       string `json:"health" yaml:"health"`
	Joined       bool   `json:"joined" yaml:"joined"`
	Members      int    `json:"members" yaml:"members"`
	PendingTasks int    `json:"pending_io_tasks" yaml:"pending_io_tasks" table:"wide"`
	CommandAddr  string `json:"command_addr" yaml:"command_addr" table:"wide"`
	AdminURL     string `json:"admin_url" yaml:"admin_url" table:"wide"`
	CLIVersion   string `json:"cli_version" yaml:"cli_version" table:"wide"`
}

// StatusCommand combines health and membership into one report.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show node health and membership",
		Action: func(c *cli.Context) error {
			s := stateFrom(c)
			admin := s.session.Admin()
			h, err := admin.Health(c.Context)
			if err != nil {
				return err
			}
			m, err := admin.Members(c.Context)
			if err != nil {
				return err
			}
			return render(c, &Status{
				NodeID:       h.NodeID,
				Address:      m.Self,
				Health:       h.Status,
				Joined:       h.Joined,
				Members:      len(m.Members),
				PendingTasks: m.PendingTasks,
				CommandAddr:  s.session.CommandAddr(),
				AdminURL:     admin.BaseURL(),
				CLIVersion:   buildinfo.String(),
			})
		},
	}
}
