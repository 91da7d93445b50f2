package synth

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/John-Robertt/v2raygen/internal/model"
	"github.com/John-Robertt/v2raygen/internal/routing"
)

func testAllocs(n int) []model.Allocation {
	allocs := make([]model.Allocation, n)
	for i := range allocs {
		allocs[i] = model.Allocation{
			Index:     i,
			SocksPort: 50001 + i,
			HTTPPort:  51001 + i,
			Server: model.Server{
				Address:  fmt.Sprintf("10.0.0.%d", i+1),
				Port:     443,
				ID:       fmt.Sprintf("id-%d", i),
				Alias:    fmt.Sprintf("node %d", i),
				Network:  "tcp",
				TLS:      "none",
				Security: "auto",
			},
		}
	}
	return allocs
}

func mustRuleSet(t *testing.T) routing.RuleSet {
	t.Helper()
	rs, err := routing.Load()
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	return rs
}

func TestBuild_InboundsAndOutbounds(t *testing.T) {
	allocs := testAllocs(3)
	cfg, err := Build(allocs, VariantLocal, mustRuleSet(t), Options{PreferredIndex: -1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Inbounds) != 6 {
		t.Fatalf("inbounds=%d, want=6", len(cfg.Inbounds))
	}
	// direct + block on top of the per-node outbounds.
	if len(cfg.Outbounds) != 5 {
		t.Fatalf("outbounds=%d, want=5", len(cfg.Outbounds))
	}

	for i, a := range allocs {
		socks := cfg.Inbounds[i*2]
		if socks.Tag != SocksTag(a.SocksPort) || socks.Port != a.SocksPort || socks.Protocol != "socks" {
			t.Fatalf("socks inbound %d: %+v", i, socks)
		}
		httpIn := cfg.Inbounds[i*2+1]
		if httpIn.Tag != HTTPTag(a.HTTPPort) || httpIn.Port != a.HTTPPort || httpIn.Protocol != "http" {
			t.Fatalf("http inbound %d: %+v", i, httpIn)
		}
		if socks.Listen != "127.0.0.1" || httpIn.Listen != "127.0.0.1" {
			t.Fatalf("inbound %d listen=%q/%q, want loopback", i, socks.Listen, httpIn.Listen)
		}

		out := cfg.Outbounds[i]
		if out.Tag != OutboundTag(i) || out.Protocol != "vmess" {
			t.Fatalf("outbound %d: tag=%q protocol=%q", i, out.Tag, out.Protocol)
		}
		vnext := out.Settings.Vnext
		if len(vnext) != 1 || vnext[0].Address != a.Server.Address || vnext[0].Port != a.Server.Port {
			t.Fatalf("outbound %d vnext: %+v", i, vnext)
		}
		if vnext[0].Users[0].ID != a.Server.ID {
			t.Fatalf("outbound %d user id=%q, want=%q", i, vnext[0].Users[0].ID, a.Server.ID)
		}
	}

	if cfg.Outbounds[3].Tag != "direct" || cfg.Outbounds[3].Protocol != "freedom" {
		t.Fatalf("outbound 3: %+v", cfg.Outbounds[3])
	}
	if cfg.Outbounds[4].Tag != "block" || cfg.Outbounds[4].Protocol != "blackhole" {
		t.Fatalf("outbound 4: %+v", cfg.Outbounds[4])
	}
}

func TestBuild_VariantsDifferOnlyInListen(t *testing.T) {
	allocs := testAllocs(4)
	rs := mustRuleSet(t)
	opt := Options{PreferredIndex: 1}

	local, err := Build(allocs, VariantLocal, rs, opt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lan, err := Build(allocs, VariantLAN, rs, opt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(local.Inbounds) != len(lan.Inbounds) {
		t.Fatalf("inbound count mismatch: %d vs %d", len(local.Inbounds), len(lan.Inbounds))
	}
	for i := range lan.Inbounds {
		if lan.Inbounds[i].Listen != "0.0.0.0" {
			t.Fatalf("lan inbound %d listen=%q, want=0.0.0.0", i, lan.Inbounds[i].Listen)
		}
		lan.Inbounds[i].Listen = local.Inbounds[i].Listen
	}
	if !reflect.DeepEqual(local, lan) {
		t.Fatalf("variants differ beyond listen address")
	}
}

func TestBuild_RoutingBindsInboundsToOutbound(t *testing.T) {
	allocs := testAllocs(2)
	cfg, err := Build(allocs, VariantLocal, mustRuleSet(t), Options{PreferredIndex: -1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rules := cfg.Routing.Rules
	if cfg.Routing.DomainStrategy != "AsIs" {
		t.Fatalf("domainStrategy=%q, want=AsIs", cfg.Routing.DomainStrategy)
	}

	// The last len(allocs) rules are the per-node bindings, in order.
	binds := rules[len(rules)-len(allocs):]
	for i, a := range allocs {
		r := binds[i]
		want := []string{SocksTag(a.SocksPort), HTTPTag(a.HTTPPort)}
		if !reflect.DeepEqual(r.InboundTag, want) {
			t.Fatalf("rule %d inboundTag=%v, want=%v", i, r.InboundTag, want)
		}
		if r.OutboundTag != OutboundTag(i) {
			t.Fatalf("rule %d outboundTag=%q, want=%q", i, r.OutboundTag, OutboundTag(i))
		}
	}
}

func TestBuild_PreferredIndex(t *testing.T) {
	allocs := testAllocs(3)
	rs := mustRuleSet(t)

	with, err := Build(allocs, VariantLocal, rs, Options{PreferredIndex: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, r := range with.Routing.Rules {
		if r.OutboundTag == OutboundTag(2) && len(r.Domain) > 0 {
			found = true
		}
	}
	if !found {
		t.Fatalf("preferred-domain rule missing")
	}

	// Out-of-range index drops the rule instead of failing the run.
	without, err := Build(allocs, VariantLocal, rs, Options{PreferredIndex: 29})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(without.Routing.Rules) != len(with.Routing.Rules)-1 {
		t.Fatalf("rules=%d, want one fewer than %d", len(without.Routing.Rules), len(with.Routing.Rules))
	}
}

func TestBuild_StreamSettings(t *testing.T) {
	allocs := testAllocs(1)
	allocs[0].Server.Network = "ws"
	allocs[0].Server.TLS = "tls"
	allocs[0].Server.Host = "cdn.example.com"
	allocs[0].Server.Path = "/ray"
	allocs[0].Server.SNI = ""
	allocs[0].Server.ALPN = "h2,http/1.1"

	cfg, err := Build(allocs, VariantLocal, mustRuleSet(t), Options{PreferredIndex: -1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ss := cfg.Outbounds[0].StreamSettings
	if ss == nil || ss.Network != "ws" || ss.Security != "tls" {
		t.Fatalf("streamSettings: %+v", ss)
	}
	if ss.WSSettings == nil || ss.WSSettings.Path != "/ray" {
		t.Fatalf("wsSettings: %+v", ss.WSSettings)
	}
	if ss.WSSettings.Headers["Host"] != "cdn.example.com" {
		t.Fatalf("ws host=%q, want=cdn.example.com", ss.WSSettings.Headers["Host"])
	}
	// SNI empty: serverName falls back to host.
	if ss.TLSSettings == nil || ss.TLSSettings.ServerName != "cdn.example.com" {
		t.Fatalf("tlsSettings: %+v", ss.TLSSettings)
	}
	if !reflect.DeepEqual(ss.TLSSettings.ALPN, []string{"h2", "http/1.1"}) {
		t.Fatalf("alpn=%v", ss.TLSSettings.ALPN)
	}
	if ss.TLSSettings.AllowInsecure {
		t.Fatalf("allowInsecure must stay false")
	}
}

func TestBuild_WSDefaults(t *testing.T) {
	allocs := testAllocs(1)
	allocs[0].Server.Network = "ws"

	cfg, err := Build(allocs, VariantLocal, mustRuleSet(t), Options{PreferredIndex: -1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ws := cfg.Outbounds[0].StreamSettings.WSSettings
	if ws.Path != "/" {
		t.Fatalf("path=%q, want=/", ws.Path)
	}
	if ws.Headers["Host"] != allocs[0].Server.Address {
		t.Fatalf("host=%q, want server address", ws.Headers["Host"])
	}
}

func TestBuild_UnsupportedVariant(t *testing.T) {
	_, err := Build(testAllocs(1), Variant("wan"), mustRuleSet(t), Options{})
	var se *SynthError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SynthError, got %T: %v", err, err)
	}
	if se.AppError.Code != "UNSUPPORTED_VARIANT" {
		t.Fatalf("code=%q, want=UNSUPPORTED_VARIANT", se.AppError.Code)
	}
}
