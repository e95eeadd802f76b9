// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultOSRMImage is the official osrm-backend image. It ships
	// osrm-extract/partition/customize alongside osrm-routed, so one
	// container can preprocess and serve.
	DefaultOSRMImage = "osrm/osrm-backend:v5.27.1"

	// DefaultOSRMPort is osrm-routed's HTTP port.
	DefaultOSRMPort = "5000"

	// DefaultOSRMProfile is the routing profile used for extraction.
	DefaultOSRMProfile = "/opt/car.lua"
)

// OSRMContainer is a running osrm-routed instance serving a
// preprocessed OpenStreetMap extract.
type OSRMContainer struct {
	testcontainers.Container
	URL string
}

// OSRMOption configures the OSRM container.
type OSRMOption func(*osrmConfig)

type osrmConfig struct {
	image        string
	pbfPath      string
	profile      string
	startTimeout time.Duration
}

// WithOSRMImage overrides the osrm-backend image.
func WithOSRMImage(image string) OSRMOption {
	return func(c *osrmConfig) {
		c.image = image
	}
}

// WithPBF points the container at a host-side .osm.pbf extract. The
// file is copied in and preprocessed before osrm-routed starts.
// Required; keep the extract small (Geofabrik's Monaco works well).
func WithPBF(path string) OSRMOption {
	return func(c *osrmConfig) {
		c.pbfPath = path
	}
}

// WithOSRMProfile overrides the extraction profile (default car).
func WithOSRMProfile(profile string) OSRMOption {
	return func(c *osrmConfig) {
		c.profile = profile
	}
}

// WithOSRMStartTimeout bounds preprocessing plus startup. The default
// of two minutes fits small extracts.
func WithOSRMStartTimeout(timeout time.Duration) OSRMOption {
	return func(c *osrmConfig) {
		c.startTimeout = timeout
	}
}

// NewOSRMContainer starts osrm-backend against the configured extract.
// The container runs the full MLD pipeline (extract, partition,
// customize) and then serves the OSRM v1 HTTP API on OSRMContainer.URL.
func NewOSRMContainer(ctx context.Context, opts ...OSRMOption) (*OSRMContainer, error) {
	cfg := &osrmConfig{
		image:        DefaultOSRMImage,
		profile:      DefaultOSRMProfile,
		startTimeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.pbfPath == "" {
		return nil, fmt.Errorf("osrm container needs an extract: use WithPBF")
	}

	pipeline := fmt.Sprintf(
		"osrm-extract -p %s /data/region.osm.pbf && osrm-partition /data/region.osrm && osrm-customize /data/region.osrm && osrm-routed --algorithm mld /data/region.osrm",
		cfg.profile,
	)

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{DefaultOSRMPort + "/tcp"},
		Files: []testcontainers.ContainerFile{{
			HostFilePath:      cfg.pbfPath,
			ContainerFilePath: "/data/region.osm.pbf",
			FileMode:          0o644,
		}},
		Cmd: []string{"sh", "-c", pipeline},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(DefaultOSRMPort+"/tcp"),
			// Any HTTP answer means osrm-routed is up; probe
			// coordinates outside the extract still get a response.
			wait.ForHTTP("/nearest/v1/driving/7.4194,43.7310").
				WithPort(DefaultOSRMPort+"/tcp").
				WithStatusCodeMatcher(func(status int) bool {
					return status >= 200 && status < 500
				}),
		).WithStartupTimeout(cfg.startTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create osrm container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, DefaultOSRMPort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	return &OSRMContainer{
		Container: container,
		URL:       fmt.Sprintf("http://%s:%s", host, port.Port()),
	}, nil
}
