package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	clicfg "github.com/yndnr/gridmesh/internal/cli/config"
	"github.com/yndnr/gridmesh/internal/cli/connection"
	"github.com/yndnr/gridmesh/internal/cli/output"
	"github.com/yndnr/gridmesh/internal/infra/buildinfo"
)

const appName = "gridmesh-cli"

// state is shared by the commands of one invocation, or of one shell.
type state struct {
	settings   *clicfg.CLIConfig
	configPath string
	session    *connection.Session
	format     output.Format
	wide       bool
}

const stateKey = "state"

// App creates the CLI application.
func App() *cli.App {
	return newApp(nil)
}

// newApp builds the command tree. A non-nil st is reused instead of being
// resolved from flags, which is how shell lines share one connection.
func newApp(st *state) *cli.App {
	return &cli.App{
		Name:     appName,
		Usage:    "inspect and drive a gridmesh node",
		Version:  buildinfo.String(),
		Flags:    globalFlags(),
		Commands: commands(st == nil),
		Metadata: map[string]any{},
		Before: func(c *cli.Context) error {
			if st != nil {
				c.App.Metadata[stateKey] = st.withFlags(c)
				return nil
			}
			s, err := newState(c)
			if err != nil {
				return err
			}
			c.App.Metadata[stateKey] = s
			return nil
		},
		After: func(c *cli.Context) error {
			if st != nil {
				return nil
			}
			if s, ok := c.App.Metadata[stateKey].(*state); ok && s.session != nil {
				return s.session.Close()
			}
			return nil
		},
	}
}

// commands lists the command tree. The shell and config commands are left
// out inside a shell.
func commands(topLevel bool) []*cli.Command {
	cmds := []*cli.Command{PingCommand()}
	cmds = append(cmds, LatchCommands()...)
	cmds = append(cmds,
		MembersCommand(),
		HealthCommand(),
		ReadyCommand(),
		StatusCommand(),
		ExecCommand(),
	)
	if topLevel {
		cmds = append(cmds, ConfigCommand(), ShellCommand())
	}
	return cmds
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "CLI settings file",
			EnvVars: []string{"GRIDMESH_CLI_CONFIG"},
			Value:   clicfg.DefaultConfigPath(),
		},
		&cli.StringFlag{
			Name:    "profile",
			Aliases: []string{"p"},
			Usage:   "node profile from the settings file",
			EnvVars: []string{"GRIDMESH_PROFILE"},
		},
		&cli.StringFlag{
			Name:    "command-addr",
			Aliases: []string{"c"},
			Usage:   "node command address (host:port), overrides the profile",
			EnvVars: []string{"GRIDMESH_COMMAND_ADDR"},
		},
		&cli.StringFlag{
			Name:    "admin-addr",
			Aliases: []string{"a"},
			Usage:   "node admin address (host:port), overrides the profile",
			EnvVars: []string{"GRIDMESH_ADMIN_ADDR"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format: table, json, yaml",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "show more columns",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "timeout of one request",
		},
	}
}

// newState resolves settings and flags. Flags win over the profile, the
// profile over the defaults.
func newState(c *cli.Context) (*state, error) {
	path := c.String("config")
	settings, err := clicfg.Load(path)
	if err != nil {
		return nil, err
	}
	if p := c.String("profile"); p != "" {
		if _, ok := settings.Profiles[p]; !ok {
			return nil, fmt.Errorf("unknown profile %q", p)
		}
		settings.Current = p
	}

	profile := settings.Active()
	if v := c.String("command-addr"); v != "" {
		profile.CommandAddr = v
	}
	if v := c.String("admin-addr"); v != "" {
		profile.AdminAddr = v
	}

	formatName := settings.Output
	if v := c.String("output"); v != "" {
		formatName = v
	}
	format, err := output.ParseFormat(formatName)
	if err != nil {
		return nil, err
	}

	timeout := settings.Timeout
	if v := c.Duration("timeout"); v > 0 {
		timeout = v
	}
	if timeout <= 0 {
		timeout = clicfg.DefaultTimeout
	}

	return &state{
		settings:   settings,
		configPath: path,
		session:    connection.NewSession(profile.CommandAddr, profile.AdminAddr, timeout),
		format:     format,
		wide:       c.Bool("wide"),
	}, nil
}

// withFlags returns a copy of s with the output flags of one shell line
// applied. The session is shared.
func (s *state) withFlags(c *cli.Context) *state {
	cp := *s
	if v := c.String("output"); v != "" {
		if f, err := output.ParseFormat(v); err == nil {
			cp.format = f
		}
	}
	if c.Bool("wide") {
		cp.wide = true
	}
	return &cp
}

func stateFrom(c *cli.Context) *state {
	s, _ := c.App.Metadata[stateKey].(*state)
	return s
}

// render writes data in the selected output format.
func render(c *cli.Context, data any) error {
	s := stateFrom(c)
	return output.NewFormatter(s.format, s.wide).Format(c.App.Writer, data)
}
