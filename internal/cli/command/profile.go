package command

import (
	"fmt"
	"sort"

	"github.com/urfave/cli/v2"

	clicfg "github.com/yndnr/gridmesh/internal/cli/config"
)

// ProfileRow is one profile in the config listing.
type ProfileRow struct {
	Name        string `json:"name" yaml:"name"`
	Current     bool   `json:"current" yaml:"current"`
	CommandAddr string `json:"command_addr" yaml:"command_addr"`
	AdminAddr   string `json:"admin_addr" yaml:"admin_addr"`
}

// ConfigCommand manages the CLI settings file.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage CLI profiles",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "List profiles",
				Action: showProfiles,
			},
			{
				Name:      "use",
				Usage:     "Select the current profile",
				ArgsUsage: "<profile>",
				Action:    useProfile,
			},
			{
				Name:      "set-profile",
				Usage:     "Create or update a profile",
				ArgsUsage: "<profile>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "command", Usage: "command address (host:port)"},
					&cli.StringFlag{Name: "admin", Usage: "admin address (host:port)"},
				},
				Action: setProfile,
			},
		},
	}
}

func showProfiles(c *cli.Context) error {
	s := stateFrom(c)
	rows := make([]ProfileRow, 0, len(s.settings.Profiles))
	for name, p := range s.settings.Profiles {
		rows = append(rows, ProfileRow{
			Name:        name,
			Current:     name == s.settings.Current,
			CommandAddr: p.CommandAddr,
			AdminAddr:   p.AdminAddr,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return render(c, rows)
}

func useProfile(c *cli.Context) error {
	name, err := requireArg(c, 0, "profile")
	if err != nil {
		return err
	}
	s := stateFrom(c)
	if _, ok := s.settings.Profiles[name]; !ok {
		return fmt.Errorf("unknown profile %q", name)
	}
	s.settings.Current = name
	if err := clicfg.Save(s.settings, s.configPath); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Switched to profile %q\n", name)
	return nil
}

func setProfile(c *cli.Context) error {
	name, err := requireArg(c, 0, "profile")
	if err != nil {
		return err
	}
	s := stateFrom(c)
	if s.settings.Profiles == nil {
		s.settings.Profiles = map[string]clicfg.Profile{}
	}
	p := s.settings.Profiles[name]
	if v := c.String("command"); v != "" {
		p.CommandAddr = v
	}
	if v := c.String("admin"); v != "" {
		p.AdminAddr = v
	}
	s.settings.Profiles[name] = p
	if err := clicfg.Save(s.settings, s.configPath); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Profile %q saved\n", name)
	return nil
}
