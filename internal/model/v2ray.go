package model

// Config is a complete V2Ray/Xray client configuration document. Field order
// matches the generated JSON key order (log, dns, inbounds, outbounds,
// routing).
type Config struct {
	Log       LogConfig  `json:"log"`
	DNS       DNSConfig  `json:"dns"`
	Inbounds  []Inbound  `json:"inbounds"`
	Outbounds []Outbound `json:"outbounds"`
	Routing   Routing    `json:"routing"`
}

type LogConfig struct {
	Access   string `json:"access"`
	Error    string `json:"error"`
	Loglevel string `json:"loglevel"`
}

// DNSConfig.Servers is heterogeneous in the v2ray schema: entries are either
// plain address strings or DNSServer objects.
type DNSConfig struct {
	Hosts   map[string]string `json:"hosts"`
	Servers []any             `json:"servers"`
}

type DNSServer struct {
	Address      string   `json:"address"`
	SkipFallback bool     `json:"skipFallback"`
	Domains      []string `json:"domains,omitempty"`
	ExpectIPs    []string `json:"expectIPs,omitempty"`
}

type Inbound struct {
	Tag      string          `json:"tag"`
	Port     int             `json:"port"`
	Listen   string          `json:"listen"`
	Protocol string          `json:"protocol"`
	Sniffing Sniffing        `json:"sniffing"`
	Settings InboundSettings `json:"settings"`
}

type Sniffing struct {
	Enabled      bool     `json:"enabled"`
	DestOverride []string `json:"destOverride"`
	RouteOnly    bool     `json:"routeOnly"`
}

type InboundSettings struct {
	Auth             string `json:"auth"`
	UDP              bool   `json:"udp"`
	AllowTransparent bool   `json:"allowTransparent"`
}

type Outbound struct {
	Tag            string           `json:"tag"`
	Protocol       string           `json:"protocol"`
	Settings       OutboundSettings `json:"settings"`
	StreamSettings *StreamSettings  `json:"streamSettings,omitempty"`
	Mux            *Mux             `json:"mux,omitempty"`
}

// OutboundSettings marshals as "{}" for freedom outbounds, which is what the
// client expects.
type OutboundSettings struct {
	Vnext    []Vnext            `json:"vnext,omitempty"`
	Response *BlackholeResponse `json:"response,omitempty"`
}

type BlackholeResponse struct {
	Type string `json:"type"`
}

type Vnext struct {
	Address string      `json:"address"`
	Port    int         `json:"port"`
	Users   []VnextUser `json:"users"`
}

type VnextUser struct {
	ID       string `json:"id"`
	AlterID  int    `json:"alterId"`
	Email    string `json:"email"`
	Security string `json:"security"`
}

type StreamSettings struct {
	Network     string       `json:"network"`
	Security    string       `json:"security"`
	WSSettings  *WSSettings  `json:"wsSettings,omitempty"`
	TLSSettings *TLSSettings `json:"tlsSettings,omitempty"`
}

type WSSettings struct {
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers,omitempty"`
}

type TLSSettings struct {
	ServerName    string   `json:"serverName"`
	AllowInsecure bool     `json:"allowInsecure"`
	ALPN          []string `json:"alpn,omitempty"`
}

type Mux struct {
	Enabled     bool `json:"enabled"`
	Concurrency int  `json:"concurrency"`
}

type Routing struct {
	DomainStrategy string `json:"domainStrategy"`
	Rules          []Rule `json:"rules"`
}

// Rule is one v2ray routing rule. The yaml tags exist because the static
// rule set ships as an embedded YAML asset (internal/routing).
type Rule struct {
	Type        string   `json:"type" yaml:"type"`
	InboundTag  []string `json:"inboundTag,omitempty" yaml:"inbound_tag"`
	OutboundTag string   `json:"outboundTag" yaml:"outbound_tag"`
	Domain      []string `json:"domain,omitempty" yaml:"domain"`
	IP          []string `json:"ip,omitempty" yaml:"ip"`
	Port        string   `json:"port,omitempty" yaml:"port"`
	Network     string   `json:"network,omitempty" yaml:"network"`
}
