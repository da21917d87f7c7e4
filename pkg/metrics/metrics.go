// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metrics exports per-device TCG storage status as Prometheus
// metrics, rendered through expfmt exactly as cmd/tcgdiskstat does
// today — lifted out of that binary into a package so any future
// binary (tcgdiskstat, tcgstoragectl, a daemon) can reuse the same
// Collector without duplicating its gauge definitions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sedtools/tcgsed/pkg/core"
	"github.com/sedtools/tcgsed/pkg/drive"
)

var (
	driveInfoDesc = prometheus.NewDesc(
		"tcg_storage_drive_info",
		"Info metric regarding the detected drives",
		[]string{"device", "model", "serial", "firmware", "protocol"}, nil,
	)
	tcgSupportedDesc = prometheus.NewDesc(
		"tcg_storage_supported",
		"Boolean describing whether a drive supports any TCG storage standards",
		[]string{"device"}, nil,
	)
	sscSupportedDesc = prometheus.NewDesc(
		"tcg_storage_ssc_supported",
		"Boolean describing whether a particular SSC is supported by the drive or not",
		[]string{"device", "ssc"}, nil,
	)
	lockingEnabledDesc = prometheus.NewDesc(
		"tcg_storage_locking_enabled",
		"Boolean describing whether the drive is reporting range locking has been enabled",
		[]string{"device"}, nil,
	)
	sidAuthBlockedDesc = prometheus.NewDesc(
		"tcg_storage_sid_authentication_blocked",
		"Boolean describing if the Block SID feature has made authentication to the drive currently impossible",
		[]string{"device"}, nil,
	)
	defaultSIDPINDesc = prometheus.NewDesc(
		"tcg_storage_default_sid_pin_detected",
		"Boolean describing if the Block SID feature reports the default SID PIN is in use",
		[]string{"device"}, nil,
	)
)

// DeviceStatus is one device's identity plus its Level 0 discovery
// result. Level0 is nil for a device that does not support any TCG
// storage standard.
type DeviceStatus struct {
	Device   string
	Identity *drive.Identity
	Level0   *core.Level0Discovery
}

// Collector renders a slice of DeviceStatus as Prometheus metrics. It
// is an unchecked collector — Describe intentionally sends nothing,
// exactly as cmd/tcgdiskstat/metric.go's metricCollector does, because
// the set of ssc-supported label values is only known at Collect time.
type Collector struct {
	Devices []DeviceStatus
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.Devices {
		ch <- prometheus.MustNewConstMetric(driveInfoDesc, prometheus.GaugeValue, 1,
			s.Device, s.Identity.Model, s.Identity.SerialNumber, s.Identity.Firmware, s.Identity.Protocol)

		supported := 0.0
		if s.Level0 != nil {
			supported = 1
		}
		ch <- prometheus.MustNewConstMetric(tcgSupportedDesc, prometheus.GaugeValue, supported, s.Device)
		if s.Level0 == nil {
			continue
		}

		for _, ssc := range SSCFeatures(s.Level0) {
			ch <- prometheus.MustNewConstMetric(sscSupportedDesc, prometheus.GaugeValue, 1, s.Device, ssc)
		}

		lockingEnabled := 0.0
		if l := s.Level0.Locking; l != nil && l.LockingEnabled {
			lockingEnabled = 1
		}
		ch <- prometheus.MustNewConstMetric(lockingEnabledDesc, prometheus.GaugeValue, lockingEnabled, s.Device)

		if b := s.Level0.BlockSID; b != nil {
			authBlocked, defaultPIN := 0.0, 0.0
			if !b.SIDValueState {
				defaultPIN = 1
			}
			if b.SIDAuthenticationBlockedState {
				authBlocked = 1
			}
			ch <- prometheus.MustNewConstMetric(sidAuthBlockedDesc, prometheus.GaugeValue, authBlocked, s.Device)
			ch <- prometheus.MustNewConstMetric(defaultSIDPINDesc, prometheus.GaugeValue, defaultPIN, s.Device)
		}
	}
}

// SSCFeatures lists the human-readable names of the SSC families a
// Level 0 discovery payload advertises support for.
func SSCFeatures(l0 *core.Level0Discovery) []string {
	var feat []string
	if l0.Enterprise != nil {
		feat = append(feat, "Enterprise")
	}
	if l0.OpalV1 != nil {
		feat = append(feat, "Opal 1")
	}
	if l0.OpalV2 != nil {
		feat = append(feat, "Opal 2")
	}
	if l0.Opalite != nil {
		feat = append(feat, "Opalite")
	}
	if l0.PyriteV1 != nil {
		feat = append(feat, "Pyrite 1")
	}
	if l0.PyriteV2 != nil {
		feat = append(feat, "Pyrite 2")
	}
	if l0.RubyV1 != nil {
		feat = append(feat, "Ruby 1")
	}
	return feat
}
