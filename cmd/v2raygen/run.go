package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/John-Robertt/v2raygen/internal/alloc"
	"github.com/John-Robertt/v2raygen/internal/config"
	"github.com/John-Robertt/v2raygen/internal/fetch"
	"github.com/John-Robertt/v2raygen/internal/mapping"
	"github.com/John-Robertt/v2raygen/internal/output"
	"github.com/John-Robertt/v2raygen/internal/routing"
	"github.com/John-Robertt/v2raygen/internal/sub/vmess"
	"github.com/John-Robertt/v2raygen/internal/synth"
)

const (
	decodedURIsName   = "decoded_server_urls.txt"
	serverDetailsName = "parsed_server_details.txt"
)

// run executes the whole pipeline. Any returned error is fatal and happens
// before output files are written; skipped nodes only produce warnings.
func run(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) error {
	source := cfg.Subscription.File
	var content []byte

	if cfg.Subscription.URL != "" {
		source = cfg.Subscription.URL
		log.Infof("downloading subscription from %s", source)

		body, err := fetch.SubscriptionWithOptions(ctx, source, fetch.Options{
			Timeout: time.Duration(cfg.Subscription.FetchTimeoutSec) * time.Second,
		})
		if err != nil {
			return err
		}
		if err := output.WriteBytes(cfg.Subscription.File, body); err != nil {
			return fmt.Errorf("save downloaded subscription: %w", err)
		}
		log.Infof("subscription saved to %s", cfg.Subscription.File)
		content = body
	} else {
		b, err := os.ReadFile(cfg.Subscription.File)
		if err != nil {
			return fmt.Errorf("read subscription file: %w", err)
		}
		content = b
	}

	uris, err := vmess.DecodeSubscription(source, string(content))
	if err != nil {
		return err
	}

	servers, skips := vmess.ParseURIs(source, uris)
	for _, s := range skips {
		log.Warnf("skipping invalid node at line %d: %v", s.Line, s.Err)
	}
	log.Infof("parsed %d nodes, skipped %d", len(servers), len(skips))

	allocs, err := alloc.Allocate(servers, cfg.Ports.SocksBase, cfg.Ports.HTTPBase)
	if err != nil {
		return err
	}

	rs, err := routing.Load()
	if err != nil {
		return err
	}

	opt := synth.Options{PreferredIndex: cfg.Routing.PreferredIndex}
	localCfg, err := synth.Build(allocs, synth.VariantLocal, rs, opt)
	if err != nil {
		return err
	}
	lanCfg, err := synth.Build(allocs, synth.VariantLAN, rs, opt)
	if err != nil {
		return err
	}

	mapJSON, err := mapping.RenderJSON(allocs)
	if err != nil {
		return err
	}
	mapCSV, err := mapping.RenderCSV(allocs)
	if err != nil {
		return err
	}

	// The pipeline is done; everything below is file output.
	if err := output.WriteDecodedURIs(filepath.Join(cfg.Output.ServerListDir, decodedURIsName), uris); err != nil {
		return err
	}
	if err := output.WriteServerDetails(filepath.Join(cfg.Output.ServerListDir, serverDetailsName), servers); err != nil {
		return err
	}

	localPath, lanPath := output.ConfigPaths(cfg.Output.ConfigFile)
	if err := output.WriteConfig(localPath, localCfg); err != nil {
		return err
	}
	log.Infof("config (local) written to %s", localPath)

	if err := output.WriteConfig(lanPath, lanCfg); err != nil {
		return err
	}
	log.Infof("config (lan) written to %s", lanPath)

	if err := output.WriteBytes(cfg.Output.MapFile, mapJSON); err != nil {
		return err
	}
	log.Infof("in-out map (json) written to %s", cfg.Output.MapFile)

	csvPath := output.MapCSVPath(cfg.Output.MapFile)
	if err := output.WriteBytes(csvPath, mapCSV); err != nil {
		return err
	}
	log.Infof("in-out map (csv) written to %s", csvPath)

	return nil
}
