// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Implements TCG Storage Core Table operations

package table

import (
	"github.com/sedtools/tcgsed/pkg/core"
	"github.com/sedtools/tcgsed/pkg/core/uid"
)

// Base_Method_IsSupported probes whether the TPer implements method m
// by issuing a Get against its MethodID table row and reporting
// whether the call succeeds, per 5.3.3.2 MethodID Table discovery.
func Base_Method_IsSupported(s *core.Session, m uid.MethodID) bool {
	_, err := GetFullRow(s, uid.RowUID(m))
	return err == nil
}

// Base_TableIsSupported probes whether table t exists on this TPer by
// reading its descriptor row in the Table table.
func Base_TableIsSupported(s *core.Session, t uid.TableUID) bool {
	_, err := GetFullRow(s, uid.Base_TableRowForTable(t))
	return err == nil
}
