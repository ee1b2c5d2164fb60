package main

import (
	"fmt"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/open-edge-platform/stack-installer/internal/downloader"
	"github.com/open-edge-platform/stack-installer/internal/extractor"
	"github.com/open-edge-platform/stack-installer/internal/installer"
	"github.com/open-edge-platform/stack-installer/internal/pkgmanager"
	"github.com/open-edge-platform/stack-installer/internal/repository"
	"github.com/open-edge-platform/stack-installer/internal/utils/config"
	"github.com/open-edge-platform/stack-installer/internal/utils/network"
)

func newRepository(cfg *config.GlobalConfig) (*repository.Repository, repository.Source, error) {
	helpers := config.NewConfigHelpers(cfg)
	source, err := repository.ParseSource(helpers.CatalogSource())
	if err != nil {
		return nil, source, err
	}
	repo := repository.New(
		repository.WithManifestURL(cfg.Catalog.ManifestURL),
		repository.WithLocalFile(helpers.LocalCatalogPath()),
		repository.WithAllowedHosts(cfg.Catalog.AllowedHosts...),
		repository.WithUserAgent(cfg.Download.UserAgent),
		repository.WithSource(source),
	)
	return repo, source, nil
}

func newDownloader(cfg *config.GlobalConfig) (*downloader.Downloader, error) {
	opts := []downloader.Option{
		downloader.WithHTTPClient(network.NewSecureHTTPClient(cfg.Download.Timeout)),
		downloader.WithFallbackClient(network.NewFallbackHTTPClient(cfg.Download.Timeout)),
		downloader.WithUserAgent(cfg.Download.UserAgent),
		downloader.WithRetry(cfg.Download.MaxAttempts, cfg.Download.BaseBackoff),
	}
	if path := cfg.Verification.KeyringFile; path != "" {
		keyring, err := loadKeyring(path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, downloader.WithKeyring(keyring))
	}
	return downloader.New(opts...), nil
}

// loadKeyring reads an armored OpenPGP public keyring.
func loadKeyring(path string) (openpgp.EntityList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	defer f.Close()
	keyring, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil {
		return nil, fmt.Errorf("reading keyring %s: %w", path, err)
	}
	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring %s contains no keys", path)
	}
	return keyring, nil
}

func newOrchestrator(cfg *config.GlobalConfig) (*installer.Orchestrator, error) {
	repo, source, err := newRepository(cfg)
	if err != nil {
		return nil, err
	}
	dl, err := newDownloader(cfg)
	if err != nil {
		return nil, err
	}
	return installer.New(
		installer.WithCatalog(repo, source),
		installer.WithPackageInstaller(pkgmanager.New(repo, dl, extractor.New())),
	), nil
}
