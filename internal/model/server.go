package model

// Server is the parsed form of one vmess:// descriptor.
//
// Alias comes from the subscription's "ps" field. It may be empty in the raw
// payload; the parser defaults it to "address:port" so downstream stages can
// rely on it being non-empty. Transport fields keep the subscription's values
// as-is; the synthesizer decides which of them end up in streamSettings.
type Server struct {
	Address string
	Port    int
	ID      string
	Alias   string

	// Transport options ("net", "tls", "host", "path", ...). Network and TLS
	// are normalized to "tcp"/"none" when the payload omits them.
	Network    string
	TLS        string
	Host       string
	Path       string
	SNI        string
	ALPN       string
	HeaderType string

	AlterID  int
	Security string

	MuxEnabled     bool
	MuxConcurrency int
}

// Allocation pairs one Server with its local inbound port pair.
// SocksPort and HTTPPort are always base+Index; see internal/alloc.
type Allocation struct {
	Index     int
	SocksPort int
	HTTPPort  int
	Server    Server
}
