// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sedtools/tcgsed/pkg/core"
	"github.com/sedtools/tcgsed/pkg/core/feature"
	"github.com/sedtools/tcgsed/pkg/drive"
)

func TestSSCFeaturesListsEachSupportedFamily(t *testing.T) {
	l0 := &core.Level0Discovery{OpalV2: &feature.OpalV2{}, PyriteV1: &feature.PyriteV1{}}
	got := SSCFeatures(l0)
	want := []string{"Opal 2", "Pyrite 1"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("SSCFeatures() = %v, want %v", got, want)
	}
}

func TestSSCFeaturesEmptyForUnsupportedDevice(t *testing.T) {
	if got := SSCFeatures(&core.Level0Discovery{}); len(got) != 0 {
		t.Fatalf("SSCFeatures() = %v, want empty", got)
	}
}

func TestCollectorEmitsDriveInfoForUnsupportedDevice(t *testing.T) {
	c := &Collector{Devices: []DeviceStatus{
		{Device: "/dev/sda", Identity: &drive.Identity{Model: "M", SerialNumber: "S", Firmware: "F", Protocol: "ata"}},
	}}
	reg := prometheus.NewPedanticRegistry()
	reg.MustRegister(c)

	const want = `
# HELP tcg_storage_drive_info Info metric regarding the detected drives
# TYPE tcg_storage_drive_info gauge
tcg_storage_drive_info{device="/dev/sda",firmware="F",model="M",protocol="ata",serial="S"} 1
# HELP tcg_storage_supported Boolean describing whether a drive supports any TCG storage standards
# TYPE tcg_storage_supported gauge
tcg_storage_supported{device="/dev/sda"} 0
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want),
		"tcg_storage_drive_info", "tcg_storage_supported"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}

func TestCollectorEmitsLockingAndBlockSIDMetricsWhenSupported(t *testing.T) {
	c := &Collector{Devices: []DeviceStatus{
		{
			Device:   "/dev/sda",
			Identity: &drive.Identity{Model: "M", SerialNumber: "S", Firmware: "F", Protocol: "ata"},
			Level0: &core.Level0Discovery{
				OpalV2:  &feature.OpalV2{},
				Locking: &feature.Locking{LockingSupported: true, LockingEnabled: true},
				BlockSID: &feature.BlockSID{
					SIDValueState:                 false,
					SIDAuthenticationBlockedState: true,
				},
			},
		},
	}}
	reg := prometheus.NewPedanticRegistry()
	reg.MustRegister(c)

	const want = `
# HELP tcg_storage_locking_enabled Boolean describing whether the drive is reporting range locking has been enabled
# TYPE tcg_storage_locking_enabled gauge
tcg_storage_locking_enabled{device="/dev/sda"} 1
# HELP tcg_storage_sid_authentication_blocked Boolean describing if the Block SID feature has made authentication to the drive currently impossible
# TYPE tcg_storage_sid_authentication_blocked gauge
tcg_storage_sid_authentication_blocked{device="/dev/sda"} 1
# HELP tcg_storage_default_sid_pin_detected Boolean describing if the Block SID feature reports the default SID PIN is in use
# TYPE tcg_storage_default_sid_pin_detected gauge
tcg_storage_default_sid_pin_detected{device="/dev/sda"} 1
# HELP tcg_storage_ssc_supported Boolean describing whether a particular SSC is supported by the drive or not
# TYPE tcg_storage_ssc_supported gauge
tcg_storage_ssc_supported{device="/dev/sda",ssc="Opal 2"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want),
		"tcg_storage_locking_enabled", "tcg_storage_sid_authentication_blocked",
		"tcg_storage_default_sid_pin_detected", "tcg_storage_ssc_supported"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}
