package synth

import (
	"fmt"
	"strings"

	"github.com/John-Robertt/v2raygen/internal/model"
	"github.com/John-Robertt/v2raygen/internal/routing"
)

// Variant selects the listen address of every generated inbound. It is the
// only thing that differs between the two documents produced per run.
type Variant string

const (
	VariantLocal Variant = "local" // loopback only
	VariantLAN   Variant = "lan"   // all interfaces
)

func (v Variant) ListenAddress() (string, bool) {
	switch v {
	case VariantLocal:
		return "127.0.0.1", true
	case VariantLAN:
		return "0.0.0.0", true
	default:
		return "", false
	}
}

type SynthError struct {
	AppError model.AppError
	Cause    error
}

func (e *SynthError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *SynthError) Unwrap() error { return e.Cause }

type Options struct {
	// PreferredIndex picks the node whose outbound handles the rule set's
	// preferred domains. Negative or >= len(allocs) means no such rule is
	// emitted.
	PreferredIndex int
}

// Tag helpers. Inbound tags carry the allocated port, outbound tags the
// sequence index; one routing rule per allocation binds them together.
func SocksTag(port int) string { return fmt.Sprintf("socks5-%d", port) }

func HTTPTag(port int) string { return fmt.Sprintf("http-%d", port) }

func OutboundTag(index int) string { return fmt.Sprintf("proxy-%d", index) }

// Build assembles one complete client config for the given variant. Apart
// from each inbound's listen address the output is identical across variants.
func Build(allocs []model.Allocation, variant Variant, rs routing.RuleSet, opt Options) (*model.Config, error) {
	listen, ok := variant.ListenAddress()
	if !ok {
		return nil, &SynthError{
			AppError: model.AppError{
				Code:    "UNSUPPORTED_VARIANT",
				Message: fmt.Sprintf("不支持的监听变体：%s", variant),
				Stage:   "synthesize",
			},
		}
	}

	cfg := &model.Config{
		Log:       buildLog(),
		DNS:       buildDNS(),
		Inbounds:  buildInbounds(allocs, listen),
		Outbounds: buildOutbounds(allocs),
		Routing:   buildRouting(allocs, rs, opt),
	}
	return cfg, nil
}

func buildLog() model.LogConfig {
	return model.LogConfig{Access: "", Error: "", Loglevel: "warning"}
}

func buildDNS() model.DNSConfig {
	return model.DNSConfig{
		Hosts: map[string]string{
			"dns.google":        "8.8.8.8",
			"proxy.example.com": "127.0.0.1",
		},
		Servers: []any{
			model.DNSServer{
				Address:      "1.1.1.1",
				SkipFallback: true,
				Domains:      []string{"domain:googleapis.cn", "domain:gstatic.com"},
			},
			model.DNSServer{
				Address:      "223.5.5.5",
				SkipFallback: true,
				Domains:      []string{"geosite:cn", "geosite:geolocation-cn"},
				ExpectIPs:    []string{"geoip:cn"},
			},
			"1.1.1.1",
			"8.8.8.8",
			"https://dns.google/dns-query",
		},
	}
}

func buildInbounds(allocs []model.Allocation, listen string) []model.Inbound {
	inbounds := make([]model.Inbound, 0, len(allocs)*2)
	for _, a := range allocs {
		inbounds = append(inbounds,
			inbound(SocksTag(a.SocksPort), a.SocksPort, listen, "socks"),
			inbound(HTTPTag(a.HTTPPort), a.HTTPPort, listen, "http"),
		)
	}
	return inbounds
}

func inbound(tag string, port int, listen, protocol string) model.Inbound {
	return model.Inbound{
		Tag:      tag,
		Port:     port,
		Listen:   listen,
		Protocol: protocol,
		Sniffing: model.Sniffing{
			Enabled:      true,
			DestOverride: []string{"http", "tls"},
			RouteOnly:    false,
		},
		Settings: model.InboundSettings{
			Auth:             "noauth",
			UDP:              true,
			AllowTransparent: false,
		},
	}
}

func buildOutbounds(allocs []model.Allocation) []model.Outbound {
	outbounds := make([]model.Outbound, 0, len(allocs)+2)
	for _, a := range allocs {
		outbounds = append(outbounds, serverOutbound(a))
	}
	outbounds = append(outbounds,
		model.Outbound{Tag: "direct", Protocol: "freedom", Settings: model.OutboundSettings{}},
		model.Outbound{
			Tag:      "block",
			Protocol: "blackhole",
			Settings: model.OutboundSettings{Response: &model.BlackholeResponse{Type: "http"}},
		},
	)
	return outbounds
}

func serverOutbound(a model.Allocation) model.Outbound {
	srv := a.Server

	stream := &model.StreamSettings{
		Network:  srv.Network,
		Security: srv.TLS,
	}
	if srv.Network == "ws" {
		path := srv.Path
		if path == "" {
			path = "/"
		}
		host := srv.Host
		if host == "" {
			host = srv.Address
		}
		stream.WSSettings = &model.WSSettings{
			Path:    path,
			Headers: map[string]string{"Host": host},
		}
	}
	if srv.TLS == "tls" {
		tls := &model.TLSSettings{
			ServerName:    srv.SNI,
			AllowInsecure: false,
		}
		if tls.ServerName == "" {
			tls.ServerName = srv.Host
		}
		if srv.ALPN != "" {
			tls.ALPN = strings.Split(srv.ALPN, ",")
		}
		stream.TLSSettings = tls
	}

	return model.Outbound{
		Tag:      OutboundTag(a.Index),
		Protocol: "vmess",
		Settings: model.OutboundSettings{
			Vnext: []model.Vnext{{
				Address: srv.Address,
				Port:    srv.Port,
				Users: []model.VnextUser{{
					ID:       srv.ID,
					AlterID:  srv.AlterID,
					Email:    "t@t.tt",
					Security: srv.Security,
				}},
			}},
		},
		StreamSettings: stream,
		Mux: &model.Mux{
			Enabled:     srv.MuxEnabled,
			Concurrency: muxConcurrency(srv),
		},
	}
}

func muxConcurrency(srv model.Server) int {
	if srv.MuxConcurrency != 0 {
		return srv.MuxConcurrency
	}
	return -1
}

func buildRouting(allocs []model.Allocation, rs routing.RuleSet, opt Options) model.Routing {
	rules := make([]model.Rule, 0, len(rs.Head)+1+len(rs.Static)+len(allocs))
	rules = append(rules, rs.Head...)

	if opt.PreferredIndex >= 0 && opt.PreferredIndex < len(allocs) && len(rs.PreferredDomains) > 0 {
		rules = append(rules, model.Rule{
			Type:        "field",
			OutboundTag: OutboundTag(opt.PreferredIndex),
			Domain:      rs.PreferredDomains,
		})
	}

	rules = append(rules, rs.Static...)

	for _, a := range allocs {
		rules = append(rules, model.Rule{
			Type:        "field",
			InboundTag:  []string{SocksTag(a.SocksPort), HTTPTag(a.HTTPPort)},
			OutboundTag: OutboundTag(a.Index),
		})
	}

	return model.Routing{
		DomainStrategy: rs.DomainStrategy,
		Rules:          rules,
	}
}
