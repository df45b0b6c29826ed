package config

import "time"

// ServerConfig is the root configuration for gridmesh-server.
type ServerConfig struct {
	Node      NodeSection      `koanf:"node"`
	Network   NetworkSection   `koanf:"network"`
	Socket    SocketSection    `koanf:"socket"`
	IO        IOSection        `koanf:"io"`
	Discovery DiscoverySection `koanf:"discovery"`
	Server    ServerSection    `koanf:"server"`
	Security  SecuritySection  `koanf:"security"`
	Log       LogSection       `koanf:"log"`
}

// NodeSection identifies this node.
type NodeSection struct {
	// ID is the node identifier. Generated at startup when empty.
	ID string `koanf:"id"`

	// PublicAddress is the host advertised to peers. When empty the
	// bind address is used, or a private interface address if binding to
	// all interfaces.
	PublicAddress string `koanf:"public_address"`
}

// NetworkSection configures the member listener and outbound connections.
type NetworkSection struct {
	// BindAddr is the interface for the member listener ("" or "0.0.0.0" for all).
	BindAddr string `koanf:"bind_addr"`

	// Port is the first member port tried.
	Port int `koanf:"port"`

	// PortAutoIncrement tries Port+1, Port+2, ... when Port is taken.
	PortAutoIncrement bool `koanf:"port_auto_increment"`

	// PortCount bounds the ports tried with auto-increment.
	PortCount int `koanf:"port_count"`

	// ReuseAddress sets SO_REUSEADDR on the member listener.
	ReuseAddress bool `koanf:"reuse_address"`

	// OutboundPortDefinitions restricts local ports for outbound member
	// connections, e.g. ["33000-33100", "38000,38500"]. "*" or "0" allows any.
	OutboundPortDefinitions []string `koanf:"outbound_port_definitions"`

	// OutboundPorts lists individual allowed outbound ports.
	OutboundPorts []int `koanf:"outbound_ports"`

	// MaxFrameSize caps the payload of one member frame, in bytes.
	MaxFrameSize int `koanf:"max_frame_size"`
}

// SocketSection tunes member sockets.
type SocketSection struct {
	ReceiveBufferKB int  `koanf:"receive_buffer_kb"`
	SendBufferKB    int  `koanf:"send_buffer_kb"`
	LingerSeconds   int  `koanf:"linger_seconds"`
	KeepAlive       bool `koanf:"keep_alive"`
	NoDelay         bool `koanf:"no_delay"`
	// BindAny binds the member listener to all interfaces regardless of BindAddr.
	BindAny bool `koanf:"bind_any"`
}

// IOSection configures IO goroutines and connection health.
type IOSection struct {
	// ThreadCount is the number of packet workers member frames are
	// dispatched on.
	ThreadCount int `koanf:"thread_count"`

	// ConnectionMonitorInterval is the minimum spacing between two counted
	// faults of one endpoint; faults closer together count once.
	ConnectionMonitorInterval time.Duration `koanf:"connection_monitor_interval"`

	// ConnectionMonitorMaxFaults is the number of counted faults after
	// which the endpoint is removed.
	ConnectionMonitorMaxFaults int `koanf:"connection_monitor_max_faults"`

	// HeartbeatInterval is the idle period after which a heartbeat frame
	// is sent on a member connection.
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`

	// ConnectTimeout bounds outbound member connection attempts.
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
}

// DiscoverySection configures peer discovery.
type DiscoverySection struct {
	Multicast MulticastConfig `koanf:"multicast"`
	Gossip    GossipConfig    `koanf:"gossip"`
}

// MulticastConfig configures the multicast announcer and receiver.
type MulticastConfig struct {
	Enabled   bool          `koanf:"enabled"`
	Group     string        `koanf:"group"`
	Port      int           `koanf:"port"`
	TTL       int           `koanf:"ttl"`
	Interval  time.Duration `koanf:"interval"`
	Loopback  bool          `koanf:"loopback"`
	Interface string        `koanf:"interface"`
}

// GossipConfig configures the memberlist-based membership protocol.
type GossipConfig struct {
	Enabled  bool     `koanf:"enabled"`
	BindAddr string   `koanf:"bind_addr"`
	BindPort int      `koanf:"bind_port"`
	Seeds    []string `koanf:"seeds"`
}

// ServerSection configures client-facing endpoints.
type ServerSection struct {
	Command CommandConfig `koanf:"command"`
	Admin   AdminConfig   `koanf:"admin"`
}

// CommandConfig configures the client command server.
type CommandConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`

	// RateLimit is the sustained commands per second per client IP (0 disables).
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`

	IdleTimeout    time.Duration `koanf:"idle_timeout"`
	MaxConnections int           `koanf:"max_connections"`
}

// AdminConfig configures the admin HTTP server (health, metrics).
type AdminConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// SecuritySection groups the connection security policies.
type SecuritySection struct {
	SocketInterceptor    SocketInterceptorConfig    `koanf:"socket_interceptor"`
	SymmetricEncryption  SymmetricEncryptionConfig  `koanf:"symmetric_encryption"`
	AsymmetricEncryption AsymmetricEncryptionConfig `koanf:"asymmetric_encryption"`
	SSL                  SSLConfig                  `koanf:"ssl"`
}

// SocketInterceptorConfig filters member connections before the handshake.
type SocketInterceptorConfig struct {
	Enabled      bool     `koanf:"enabled"`
	AllowedCIDRs []string `koanf:"allowed_cidrs"`
}

// SymmetricEncryptionConfig enables AEAD sealing of member frames with a
// key derived from a shared password and salt.
type SymmetricEncryptionConfig struct {
	Enabled bool `koanf:"enabled"`
	// Algorithm is "aes-gcm", "chacha20-poly1305" or "" (auto by CPU).
	Algorithm      string `koanf:"algorithm"`
	Password       string `koanf:"password"`
	Salt           string `koanf:"salt"`
	IterationCount int    `koanf:"iteration_count"`
}

// AsymmetricEncryptionConfig describes key-store based member encryption.
// The node recognises the section but does not offer the capability.
type AsymmetricEncryptionConfig struct {
	Enabled   bool   `koanf:"enabled"`
	KeyAlias  string `koanf:"key_alias"`
	KeyStore  string `koanf:"key_store"`
	StoreType string `koanf:"store_type"`
}

// SSLConfig enables TLS on member connections.
type SSLConfig struct {
	Enabled           bool   `koanf:"enabled"`
	CertFile          string `koanf:"cert_file"`
	KeyFile           string `koanf:"key_file"`
	CAFile            string `koanf:"ca_file"`
	CADir             string `koanf:"ca_dir"`
	RequireClientCert bool   `koanf:"require_client_cert"`
	ServerName        string `koanf:"server_name"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
