package config

import "time"

// CLIConfig is the content of the CLI settings file.
type CLIConfig struct {
	// Output is the default output format: table, json or yaml.
	Output string `yaml:"output"`

	// Timeout bounds one request to a node.
	Timeout time.Duration `yaml:"timeout"`

	// Current names the profile used when no address flag is given.
	Current string `yaml:"current"`

	Profiles map[string]Profile `yaml:"profiles"`
}

// Profile is how to reach one node.
type Profile struct {
	CommandAddr string `yaml:"command_addr"`
	AdminAddr   string `yaml:"admin_addr"`
}

// Default CLI settings, matching the node's default listeners.
const (
	DefaultCommandAddr = "127.0.0.1:5901"
	DefaultAdminAddr   = "127.0.0.1:5080"
	DefaultOutput      = "table"
	DefaultTimeout     = 10 * time.Second
	DefaultProfile     = "local"
)

// Default returns the settings used when no file exists.
func Default() *CLIConfig {
	return &CLIConfig{
		Output:  DefaultOutput,
		Timeout: DefaultTimeout,
		Current: DefaultProfile,
		Profiles: map[string]Profile{
			DefaultProfile: {CommandAddr: DefaultCommandAddr, AdminAddr: DefaultAdminAddr},
		},
	}
}

// Active returns the current profile. A missing profile yields the default
// addresses.
func (c *CLIConfig) Active() Profile {
	p, ok := c.Profiles[c.Current]
	if !ok {
		p = Profile{}
	}
	if p.CommandAddr == "" {
		p.CommandAddr = DefaultCommandAddr
	}
	if p.AdminAddr == "" {
		p.AdminAddr = DefaultAdminAddr
	}
	return p
}
