package config

import "time"

// Default configuration values.
const (
	DefaultPort         = 5701
	DefaultPortCount    = 100
	DefaultMaxFrameSize = 16 << 20

	DefaultSocketBufferKB = 32

	DefaultIOThreadCount              = 3
	DefaultConnectionMonitorInterval  = 100 * time.Millisecond
	DefaultConnectionMonitorMaxFaults = 3
	DefaultHeartbeatInterval          = 5 * time.Second
	DefaultConnectTimeout             = 5 * time.Second

	DefaultMulticastGroup    = "224.2.2.3"
	DefaultMulticastPort     = 54327
	DefaultMulticastTTL      = 32
	DefaultMulticastInterval = 2 * time.Second

	DefaultGossipPort = 5801

	DefaultCommandAddr        = "127.0.0.1:5901"
	DefaultCommandIdleTimeout = 5 * time.Minute
	DefaultMaxConnections     = 1024
	DefaultAdminAddr          = "127.0.0.1:5080"

	DefaultEncryptionAlgorithm = ""
	DefaultIterationCount      = 3

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Network: NetworkSection{
			Port:              DefaultPort,
			PortAutoIncrement: true,
			PortCount:         DefaultPortCount,
			MaxFrameSize:      DefaultMaxFrameSize,
		},
		Socket: SocketSection{
			ReceiveBufferKB: DefaultSocketBufferKB,
			SendBufferKB:    DefaultSocketBufferKB,
			KeepAlive:       true,
			NoDelay:         true,
			BindAny:         true,
		},
		IO: IOSection{
			ThreadCount:                DefaultIOThreadCount,
			ConnectionMonitorInterval:  DefaultConnectionMonitorInterval,
			ConnectionMonitorMaxFaults: DefaultConnectionMonitorMaxFaults,
			HeartbeatInterval:          DefaultHeartbeatInterval,
			ConnectTimeout:             DefaultConnectTimeout,
		},
		Discovery: DiscoverySection{
			Multicast: MulticastConfig{
				Enabled:  false,
				Group:    DefaultMulticastGroup,
				Port:     DefaultMulticastPort,
				TTL:      DefaultMulticastTTL,
				Interval: DefaultMulticastInterval,
				Loopback: true,
			},
			Gossip: GossipConfig{
				Enabled:  false,
				BindPort: DefaultGossipPort,
			},
		},
		Server: ServerSection{
			Command: CommandConfig{
				Enabled:        true,
				Addr:           DefaultCommandAddr,
				IdleTimeout:    DefaultCommandIdleTimeout,
				MaxConnections: DefaultMaxConnections,
			},
			Admin: AdminConfig{
				Enabled: true,
				Addr:    DefaultAdminAddr,
			},
		},
		Security: SecuritySection{
			SymmetricEncryption: SymmetricEncryptionConfig{
				Algorithm:      DefaultEncryptionAlgorithm,
				IterationCount: DefaultIterationCount,
			},
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
